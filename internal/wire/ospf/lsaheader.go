// Package ospf implements the RFC 2328 OSPFv2 wire codec: the 24-byte
// packet envelope, the Hello/DD/LSR/LSU/LSAck bodies, and LSA headers and
// typed bodies (Router, Network, Summary, AS-External). As with the bgp
// package, this is pure encode/decode — adjacency and flooding state live
// in internal/ospfadjacency and internal/ospfflooding.
package ospf

import (
	"encoding/binary"
	"fmt"

	"github.com/route-beacon/ribagent/internal/rerrors"
)

// LSAHeaderSize is the fixed 20-byte LSA header.
const LSAHeaderSize = 20

// lsaChecksumFieldOffset is the byte offset of the checksum field within
// the 20-byte LSA header.
const lsaChecksumFieldOffset = 16

// LSA type codes (RFC 2328 section A.4.1).
const (
	LSATypeRouter     uint8 = 1
	LSATypeNetwork    uint8 = 2
	LSATypeSummary    uint8 = 3
	LSATypeASBRSummary uint8 = 4
	LSATypeASExternal uint8 = 5
)

// InitialSequenceNumber and MaxSequenceNumber bound the lollipop sequence
// space of RFC 2328 section 12.1.6.
const (
	InitialSequenceNumber int32 = -2147483647 // 0x80000001
	MaxSequenceNumber     int32 = 2147483647  // 0x7FFFFFFF
)

// LSAHeader is the 20-byte header common to every LSA.
type LSAHeader struct {
	Age               uint16
	Options           uint8
	Type              uint8
	LinkStateID       uint32
	AdvertisingRouter uint32
	SeqNumber         int32
	Checksum          uint16
	Length            uint16
}

// EncodeLSAHeader serializes the 20-byte header.
func EncodeLSAHeader(h LSAHeader) []byte {
	out := make([]byte, LSAHeaderSize)
	binary.BigEndian.PutUint16(out[0:2], h.Age)
	out[2] = h.Options
	out[3] = h.Type
	binary.BigEndian.PutUint32(out[4:8], h.LinkStateID)
	binary.BigEndian.PutUint32(out[8:12], h.AdvertisingRouter)
	binary.BigEndian.PutUint32(out[12:16], uint32(h.SeqNumber))
	binary.BigEndian.PutUint16(out[16:18], h.Checksum)
	binary.BigEndian.PutUint16(out[18:20], h.Length)
	return out
}

// DecodeLSAHeader parses a 20-byte LSA header.
func DecodeLSAHeader(data []byte) (LSAHeader, error) {
	if len(data) < LSAHeaderSize {
		return LSAHeader{}, fmt.Errorf("%w: LSA header truncated (%d bytes)", rerrors.ErrWireFormat, len(data))
	}
	return LSAHeader{
		Age:               binary.BigEndian.Uint16(data[0:2]),
		Options:           data[2],
		Type:              data[3],
		LinkStateID:       binary.BigEndian.Uint32(data[4:8]),
		AdvertisingRouter: binary.BigEndian.Uint32(data[8:12]),
		SeqNumber:         int32(binary.BigEndian.Uint32(data[12:16])),
		Checksum:          binary.BigEndian.Uint16(data[16:18]),
		Length:            binary.BigEndian.Uint16(data[18:20]),
	}, nil
}

// Key identifies an LSA by its (Type, LinkStateID, AdvertisingRouter)
// triple, the lookup key for the link-state database (RFC 2328 section 12).
type Key struct {
	Type              uint8
	LinkStateID       uint32
	AdvertisingRouter uint32
}

func (h LSAHeader) Key() Key {
	return Key{Type: h.Type, LinkStateID: h.LinkStateID, AdvertisingRouter: h.AdvertisingRouter}
}

// SequenceMoreRecent reports whether a is more recent than b under the
// signed ordering of RFC 2328 section 12.1.6. It is a plain signed
// comparison: InitialSequenceNumber is never more recent than
// MaxSequenceNumber.
func SequenceMoreRecent(a, b int32) bool { return a > b }

// NextSequence returns the next sequence number after s, wrapping from
// MaxSequenceNumber back to InitialSequenceNumber.
func NextSequence(s int32) int32 {
	if s == MaxSequenceNumber {
		return InitialSequenceNumber
	}
	return s + 1
}

const maxAge uint16 = 3600

// MaxAge is the age (seconds) at which an LSA is due for flushing (RFC
// 2328 section 14).
func MaxAge() uint16 { return maxAge }
