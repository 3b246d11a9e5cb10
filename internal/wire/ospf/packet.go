package ospf

import "fmt"

// Packet is a fully decoded OSPF packet: its header plus the typed body,
// selected by Header.Type.
type Packet struct {
	Header PacketHeader
	Body   any // HelloPacket, DatabaseDescriptionPacket, LinkStateRequestPacket, LinkStateUpdatePacket, or LinkStateAckPacket
}

// DecodePacket validates the header and dispatches to the matching body
// decoder.
func DecodePacket(data []byte) (Packet, error) {
	h, err := DecodeHeader(data)
	if err != nil {
		return Packet{}, err
	}
	body := data[PacketHeaderSize:h.Length]
	var decoded any
	switch h.Type {
	case PacketTypeHello:
		decoded, err = DecodeHello(body)
	case PacketTypeDatabaseDescription:
		decoded, err = DecodeDatabaseDescription(body)
	case PacketTypeLinkStateRequest:
		decoded, err = DecodeLinkStateRequest(body)
	case PacketTypeLinkStateUpdate:
		decoded, err = DecodeLinkStateUpdate(body)
	case PacketTypeLinkStateAck:
		decoded, err = DecodeLinkStateAck(body)
	default:
		return Packet{}, fmt.Errorf("ospf: unknown packet type %d", h.Type)
	}
	if err != nil {
		return Packet{}, err
	}
	return Packet{Header: h, Body: decoded}, nil
}

// EncodePacketBody assembles a full packet from a header (RouterID/AreaID/
// AuType/AuthData set by the caller; Type/Length/Checksum are derived)
// and one of the typed bodies.
func EncodePacketBody(h PacketHeader, body any) ([]byte, error) {
	var encoded []byte
	switch v := body.(type) {
	case HelloPacket:
		h.Type = PacketTypeHello
		encoded = EncodeHello(v)
	case DatabaseDescriptionPacket:
		h.Type = PacketTypeDatabaseDescription
		encoded = EncodeDatabaseDescription(v)
	case LinkStateRequestPacket:
		h.Type = PacketTypeLinkStateRequest
		encoded = EncodeLinkStateRequest(v)
	case LinkStateUpdatePacket:
		h.Type = PacketTypeLinkStateUpdate
		encoded = EncodeLinkStateUpdate(v)
	case LinkStateAckPacket:
		h.Type = PacketTypeLinkStateAck
		encoded = EncodeLinkStateAck(v)
	default:
		return nil, fmt.Errorf("ospf: no encoder for body type %T", body)
	}
	return EncodePacket(h, encoded), nil
}
