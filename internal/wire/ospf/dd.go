package ospf

import (
	"encoding/binary"
	"fmt"

	"github.com/route-beacon/ribagent/internal/rerrors"
)

// DD packet flag bits (RFC 2328 section A.3.3).
const (
	DDFlagInit uint8 = 0x04 // I-bit
	DDFlagMore uint8 = 0x02 // M-bit
	DDFlagMS   uint8 = 0x01 // MS-bit: sender is master
)

// DatabaseDescriptionPacket is the RFC 2328 section A.3.3 DD packet.
type DatabaseDescriptionPacket struct {
	InterfaceMTU     uint16
	Options          uint8
	Flags            uint8
	DDSequenceNumber uint32
	LSAHeaders       []LSAHeader
}

func EncodeDatabaseDescription(d DatabaseDescriptionPacket) []byte {
	out := make([]byte, 8, 8+LSAHeaderSize*len(d.LSAHeaders))
	binary.BigEndian.PutUint16(out[0:2], d.InterfaceMTU)
	out[2] = d.Options
	out[3] = d.Flags
	binary.BigEndian.PutUint32(out[4:8], d.DDSequenceNumber)
	for _, h := range d.LSAHeaders {
		out = append(out, EncodeLSAHeader(h)...)
	}
	return out
}

func DecodeDatabaseDescription(data []byte) (DatabaseDescriptionPacket, error) {
	if len(data) < 8 {
		return DatabaseDescriptionPacket{}, fmt.Errorf("%w: DD packet truncated", rerrors.ErrWireFormat)
	}
	d := DatabaseDescriptionPacket{
		InterfaceMTU:     binary.BigEndian.Uint16(data[0:2]),
		Options:          data[2],
		Flags:            data[3],
		DDSequenceNumber: binary.BigEndian.Uint32(data[4:8]),
	}
	offset := 8
	for offset < len(data) {
		if offset+LSAHeaderSize > len(data) {
			return DatabaseDescriptionPacket{}, fmt.Errorf("%w: DD packet LSA header list has a partial entry", rerrors.ErrWireFormat)
		}
		h, err := DecodeLSAHeader(data[offset : offset+LSAHeaderSize])
		if err != nil {
			return DatabaseDescriptionPacket{}, err
		}
		d.LSAHeaders = append(d.LSAHeaders, h)
		offset += LSAHeaderSize
	}
	return d, nil
}

func (d DatabaseDescriptionPacket) IsInit() bool    { return d.Flags&DDFlagInit != 0 }
func (d DatabaseDescriptionPacket) HasMore() bool   { return d.Flags&DDFlagMore != 0 }
func (d DatabaseDescriptionPacket) IsMaster() bool  { return d.Flags&DDFlagMS != 0 }
