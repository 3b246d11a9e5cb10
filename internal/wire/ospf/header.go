package ospf

import (
	"encoding/binary"
	"fmt"

	"github.com/route-beacon/ribagent/internal/rerrors"
)

// PacketHeaderSize is the fixed 24-byte OSPF packet header.
const PacketHeaderSize = 24

const ospfVersion uint8 = 2

// Packet type codes (RFC 2328 section A.3.1).
const (
	PacketTypeHello              uint8 = 1
	PacketTypeDatabaseDescription uint8 = 2
	PacketTypeLinkStateRequest   uint8 = 3
	PacketTypeLinkStateUpdate    uint8 = 4
	PacketTypeLinkStateAck       uint8 = 5
)

// Authentication types (RFC 2328 section D.3). This core only originates
// AuTypeNone; DecodeHeader does not check the AuType of received packets.
const (
	AuTypeNone uint16 = 0
)

// PacketHeader is the 24-byte header common to every OSPF packet.
type PacketHeader struct {
	Type       uint8
	Length     uint16
	RouterID   uint32
	AreaID     uint32
	Checksum   uint16
	AuType     uint16
	AuthData   [8]byte
}

// EncodeHeader serializes the 24-byte header for a body of length bodyLen,
// leaving the checksum field zero: callers compute it with Fletcher16
// over the full packet once the body is in place and patch it in.
func EncodeHeader(h PacketHeader, bodyLen int) []byte {
	out := make([]byte, PacketHeaderSize)
	out[0] = ospfVersion
	out[1] = h.Type
	binary.BigEndian.PutUint16(out[2:4], uint16(PacketHeaderSize+bodyLen))
	binary.BigEndian.PutUint32(out[4:8], h.RouterID)
	binary.BigEndian.PutUint32(out[8:12], h.AreaID)
	binary.BigEndian.PutUint16(out[12:14], 0)
	binary.BigEndian.PutUint16(out[14:16], h.AuType)
	copy(out[16:24], h.AuthData[:])
	return out
}

// DecodeHeader parses and validates a 24-byte OSPF packet header.
func DecodeHeader(data []byte) (PacketHeader, error) {
	if len(data) < PacketHeaderSize {
		return PacketHeader{}, fmt.Errorf("%w: OSPF header truncated (%d bytes)", rerrors.ErrWireFormat, len(data))
	}
	if data[0] != ospfVersion {
		return PacketHeader{}, fmt.Errorf("%w: unsupported OSPF version %d", rerrors.ErrProtocolViolation, data[0])
	}
	length := binary.BigEndian.Uint16(data[2:4])
	if int(length) < PacketHeaderSize || int(length) > len(data) {
		return PacketHeader{}, fmt.Errorf("%w: OSPF packet length %d inconsistent with buffer of %d bytes", rerrors.ErrWireFormat, length, len(data))
	}
	var auth [8]byte
	copy(auth[:], data[16:24])
	return PacketHeader{
		Type:     data[1],
		Length:   length,
		RouterID: binary.BigEndian.Uint32(data[4:8]),
		AreaID:   binary.BigEndian.Uint32(data[8:12]),
		Checksum: binary.BigEndian.Uint16(data[12:14]),
		AuType:   binary.BigEndian.Uint16(data[14:16]),
		AuthData: auth,
	}, nil
}

// EncodePacket assembles the full packet (header with checksum filled in,
// plus body) for a body already serialized by the caller.
func EncodePacket(h PacketHeader, body []byte) []byte {
	buf := EncodeHeader(h, len(body))
	buf = append(buf, body...)
	c0, c1 := Fletcher16(buf, 12)
	buf[12] = c0
	buf[13] = c1
	return buf
}
