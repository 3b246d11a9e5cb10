package ospf

import (
	"encoding/binary"
	"fmt"

	"github.com/route-beacon/ribagent/internal/rerrors"
)

// Router-LSA link type codes (RFC 2328 section A.4.2).
const (
	LinkTypePointToPoint    uint8 = 1
	LinkTypeTransit         uint8 = 2
	LinkTypeStub            uint8 = 3
	LinkTypeVirtualLink     uint8 = 4
)

// Router-LSA flag bits.
const (
	RouterLSAFlagVirtual   uint8 = 0x04 // V-bit
	RouterLSAFlagExternal  uint8 = 0x02 // E-bit (ASBR)
	RouterLSAFlagBorder    uint8 = 0x01 // B-bit (ABR)
)

// RouterLink is one link entry of a Router-LSA, TOS-0 metric only.
type RouterLink struct {
	LinkID   uint32
	LinkData uint32
	Type     uint8
	Metric   uint16
}

// RouterLSABody is the RFC 2328 section A.4.2 Router-LSA body.
type RouterLSABody struct {
	Flags uint8
	Links []RouterLink
}

func EncodeRouterLSABody(b RouterLSABody) []byte {
	out := make([]byte, 4, 4+12*len(b.Links))
	out[0] = b.Flags
	out[1] = 0
	binary.BigEndian.PutUint16(out[2:4], uint16(len(b.Links)))
	for _, l := range b.Links {
		var entry [12]byte
		binary.BigEndian.PutUint32(entry[0:4], l.LinkID)
		binary.BigEndian.PutUint32(entry[4:8], l.LinkData)
		entry[8] = l.Type
		entry[9] = 0 // #TOS, always 0: this core does not originate TOS metrics
		binary.BigEndian.PutUint16(entry[10:12], l.Metric)
		out = append(out, entry[:]...)
	}
	return out
}

func DecodeRouterLSABody(data []byte) (RouterLSABody, error) {
	if len(data) < 4 {
		return RouterLSABody{}, fmt.Errorf("%w: Router-LSA body truncated", rerrors.ErrWireFormat)
	}
	b := RouterLSABody{Flags: data[0]}
	numLinks := int(binary.BigEndian.Uint16(data[2:4]))
	offset := 4
	for i := 0; i < numLinks; i++ {
		if offset+12 > len(data) {
			return RouterLSABody{}, fmt.Errorf("%w: Router-LSA link %d truncated", rerrors.ErrWireFormat, i)
		}
		numTOS := int(data[offset+9])
		b.Links = append(b.Links, RouterLink{
			LinkID:   binary.BigEndian.Uint32(data[offset : offset+4]),
			LinkData: binary.BigEndian.Uint32(data[offset+4 : offset+8]),
			Type:     data[offset+8],
			Metric:   binary.BigEndian.Uint16(data[offset+10 : offset+12]),
		})
		offset += 12 + numTOS*4
	}
	return b, nil
}

// NetworkLSABody is the RFC 2328 section A.4.3 Network-LSA body.
type NetworkLSABody struct {
	NetworkMask     uint32
	AttachedRouters []uint32
}

func EncodeNetworkLSABody(b NetworkLSABody) []byte {
	out := make([]byte, 4, 4+4*len(b.AttachedRouters))
	binary.BigEndian.PutUint32(out[0:4], b.NetworkMask)
	for _, r := range b.AttachedRouters {
		var e [4]byte
		binary.BigEndian.PutUint32(e[:], r)
		out = append(out, e[:]...)
	}
	return out
}

func DecodeNetworkLSABody(data []byte) (NetworkLSABody, error) {
	if len(data) < 4 || (len(data)-4)%4 != 0 {
		return NetworkLSABody{}, fmt.Errorf("%w: Network-LSA body malformed", rerrors.ErrWireFormat)
	}
	b := NetworkLSABody{NetworkMask: binary.BigEndian.Uint32(data[0:4])}
	for offset := 4; offset < len(data); offset += 4 {
		b.AttachedRouters = append(b.AttachedRouters, binary.BigEndian.Uint32(data[offset:offset+4]))
	}
	return b, nil
}

// SummaryLSABody is the RFC 2328 section A.4.4 Summary-LSA body (used for
// both type-3 network summaries and type-4 ASBR summaries; the Link State
// ID holds the summarized network or the ASBR's router ID respectively).
type SummaryLSABody struct {
	NetworkMask uint32
	Metric      uint32 // 24 significant bits
}

func EncodeSummaryLSABody(b SummaryLSABody) []byte {
	out := make([]byte, 8)
	binary.BigEndian.PutUint32(out[0:4], b.NetworkMask)
	binary.BigEndian.PutUint32(out[4:8], b.Metric&0x00FFFFFF)
	return out
}

func DecodeSummaryLSABody(data []byte) (SummaryLSABody, error) {
	if len(data) < 8 {
		return SummaryLSABody{}, fmt.Errorf("%w: Summary-LSA body truncated", rerrors.ErrWireFormat)
	}
	return SummaryLSABody{
		NetworkMask: binary.BigEndian.Uint32(data[0:4]),
		Metric:      binary.BigEndian.Uint32(data[4:8]) & 0x00FFFFFF,
	}, nil
}

// ASExternalLSABody is the RFC 2328 section A.4.5 AS-External-LSA body,
// single TOS-0 entry only.
type ASExternalLSABody struct {
	NetworkMask       uint32
	ExternalType2     bool // E-bit: metric type 2 (externally comparable) vs type 1
	Metric            uint32
	ForwardingAddress uint32
	ExternalRouteTag  uint32
}

func EncodeASExternalLSABody(b ASExternalLSABody) []byte {
	out := make([]byte, 12)
	binary.BigEndian.PutUint32(out[0:4], b.NetworkMask)
	word := b.Metric & 0x00FFFFFF
	if b.ExternalType2 {
		word |= 0x80000000
	}
	binary.BigEndian.PutUint32(out[4:8], word)
	binary.BigEndian.PutUint32(out[8:12], b.ForwardingAddress)
	// ExternalRouteTag is omitted here to keep the minimal single-entry
	// body at 12 bytes; callers needing the tag use
	// EncodeASExternalLSABodyWithTag.
	return out
}

func EncodeASExternalLSABodyWithTag(b ASExternalLSABody) []byte {
	out := EncodeASExternalLSABody(b)
	var tag [4]byte
	binary.BigEndian.PutUint32(tag[:], b.ExternalRouteTag)
	return append(out, tag[:]...)
}

func DecodeASExternalLSABody(data []byte) (ASExternalLSABody, error) {
	if len(data) < 12 {
		return ASExternalLSABody{}, fmt.Errorf("%w: AS-External-LSA body truncated", rerrors.ErrWireFormat)
	}
	word := binary.BigEndian.Uint32(data[4:8])
	b := ASExternalLSABody{
		NetworkMask:       binary.BigEndian.Uint32(data[0:4]),
		ExternalType2:     word&0x80000000 != 0,
		Metric:            word & 0x00FFFFFF,
		ForwardingAddress: binary.BigEndian.Uint32(data[8:12]),
	}
	if len(data) >= 16 {
		b.ExternalRouteTag = binary.BigEndian.Uint32(data[12:16])
	}
	return b, nil
}
