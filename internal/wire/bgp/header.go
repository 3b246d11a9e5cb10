// Package bgp implements the RFC 4271 wire codec: message framing, path
// attributes, and the capability TLVs of RFC 5492/6793/4724. It is pure
// encode/decode — no session state lives here (see internal/bgpfsm and
// internal/bgpsession for that).
package bgp

import (
	"encoding/binary"
	"fmt"

	"github.com/route-beacon/ribagent/internal/rerrors"
)

// MarkerSize is the length of the all-ones marker that opens every BGP
// message.
const MarkerSize = 16

// HeaderSize is the fixed 19-byte header: marker + 2-byte length + 1-byte type.
const HeaderSize = 19

// MaxMessageSize is the RFC 4271 ceiling; this core does not negotiate the
// extended-messages capability, so every message is capped at 4096 bytes.
const MaxMessageSize = 4096

// Message type codes.
const (
	MsgOpen         uint8 = 1
	MsgUpdate       uint8 = 2
	MsgNotification uint8 = 3
	MsgKeepalive    uint8 = 4
	MsgRouteRefresh uint8 = 5
)

// Header is the 19-byte BGP message header.
type Header struct {
	Length uint16
	Type   uint8
}

// EncodeHeader writes the 19-byte header for a body of the given length.
func EncodeHeader(msgType uint8, bodyLen int) ([]byte, error) {
	total := HeaderSize + bodyLen
	if total > MaxMessageSize {
		return nil, fmt.Errorf("%w: message length %d exceeds %d", rerrors.ErrWireFormat, total, MaxMessageSize)
	}
	buf := make([]byte, HeaderSize)
	for i := 0; i < MarkerSize; i++ {
		buf[i] = 0xFF
	}
	binary.BigEndian.PutUint16(buf[16:18], uint16(total))
	buf[18] = msgType
	return buf, nil
}

// DecodeHeader validates the marker and returns the parsed header. It does
// not consume the body; callers pass data[HeaderSize:header.Length] to the
// appropriate body decoder.
func DecodeHeader(data []byte) (Header, error) {
	if len(data) < HeaderSize {
		return Header{}, fmt.Errorf("%w: HeaderSyncLost: short header (%d bytes)", rerrors.ErrWireFormat, len(data))
	}
	for i := 0; i < MarkerSize; i++ {
		if data[i] != 0xFF {
			return Header{}, fmt.Errorf("%w: HeaderSyncLost: bad marker at byte %d", rerrors.ErrWireFormat, i)
		}
	}
	length := binary.BigEndian.Uint16(data[16:18])
	if int(length) < HeaderSize || int(length) > MaxMessageSize {
		return Header{}, fmt.Errorf("%w: BadLength: %d", rerrors.ErrWireFormat, length)
	}
	if len(data) < int(length) {
		return Header{}, fmt.Errorf("%w: BadLength: have %d bytes, header claims %d", rerrors.ErrWireFormat, len(data), length)
	}
	return Header{Length: length, Type: data[18]}, nil
}

// Message is any decoded BGP message body, tagged by its Type.
type Message interface {
	Type() uint8
}
