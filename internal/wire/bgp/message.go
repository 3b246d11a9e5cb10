package bgp

import "fmt"

// EncodeMessage frames a Message body with its 19-byte header.
func EncodeMessage(m Message) ([]byte, error) {
	var body []byte
	var err error
	switch v := m.(type) {
	case OpenMessage:
		body, err = EncodeOpen(v)
	case UpdateMessage:
		body, err = EncodeUpdate(v)
	case NotificationMessage:
		body = EncodeNotification(v)
	case KeepaliveMessage:
		body = EncodeKeepalive()
	case RouteRefreshMessage:
		body = EncodeRouteRefresh(v)
	default:
		return nil, fmt.Errorf("bgp: no encoder for message type %T", m)
	}
	if err != nil {
		return nil, err
	}
	header, err := EncodeHeader(m.Type(), len(body))
	if err != nil {
		return nil, err
	}
	return append(header, body...), nil
}

// DecodeMessage decodes one full framed message (header + body) from data,
// returning the message and the number of bytes consumed.
func DecodeMessage(data []byte) (Message, int, error) {
	header, err := DecodeHeader(data)
	if err != nil {
		return nil, 0, err
	}
	body := data[HeaderSize:header.Length]
	var msg Message
	switch header.Type {
	case MsgOpen:
		msg, err = DecodeOpen(body)
	case MsgUpdate:
		msg, err = DecodeUpdate(body)
	case MsgNotification:
		msg, err = DecodeNotification(body)
	case MsgKeepalive:
		msg, err = DecodeKeepalive(body)
	case MsgRouteRefresh:
		msg, err = DecodeRouteRefresh(body)
	default:
		return nil, 0, fmt.Errorf("bgp: unknown message type %d", header.Type)
	}
	if err != nil {
		return nil, 0, err
	}
	return msg, int(header.Length), nil
}
