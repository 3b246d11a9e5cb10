package bgp

import (
	"encoding/binary"
	"fmt"
	"net/netip"

	"github.com/route-beacon/ribagent/internal/rerrors"
)

// AttrType is a BGP path attribute type code (spec section 3).
type AttrType uint8

const (
	AttrOrigin          AttrType = 1
	AttrASPath          AttrType = 2
	AttrNextHop         AttrType = 3
	AttrMED             AttrType = 4
	AttrLocalPref       AttrType = 5
	AttrAtomicAggregate AttrType = 6
	AttrAggregator      AttrType = 7
	AttrCommunities     AttrType = 8
	AttrOriginatorID    AttrType = 9
	AttrClusterList     AttrType = 10
	AttrMpReachNLRI     AttrType = 14
	AttrMpUnreachNLRI   AttrType = 15
)

// Attribute flag bits.
const (
	FlagOptional       uint8 = 0x80
	FlagTransitive     uint8 = 0x40
	FlagPartial        uint8 = 0x20
	FlagExtendedLength uint8 = 0x10
)

// Well-known communities (spec section 4.1).
const (
	CommunityNoExport          uint32 = 0xFFFFFF01
	CommunityNoAdvertise       uint32 = 0xFFFFFF02
	CommunityNoExportSubconfed uint32 = 0xFFFFFF03
	CommunityNoPeer            uint32 = 0xFFFFFF04
)

// Origin values.
const (
	OriginIGP        uint8 = 0
	OriginEGP        uint8 = 1
	OriginIncomplete uint8 = 2
)

// AS_PATH segment types.
const (
	ASPathSet      uint8 = 1
	ASPathSequence uint8 = 2
)

// AttrValue is implemented by every typed attribute value.
type AttrValue interface {
	isAttrValue()
}

type OriginValue uint8

func (OriginValue) isAttrValue() {}

// ASPathSegment is one (type, ASN list) segment of an AS_PATH.
type ASPathSegment struct {
	Type uint8
	ASNs []uint32
}

type ASPathValue struct {
	Segments []ASPathSegment
}

func (ASPathValue) isAttrValue() {}

// Length is the AS_PATH length metric of spec section 4.1: each ASN in an
// AS_SEQUENCE counts once, an entire AS_SET counts as exactly one.
func (a ASPathValue) Length() int {
	n := 0
	for _, seg := range a.Segments {
		if seg.Type == ASPathSequence {
			n += len(seg.ASNs)
		} else {
			n++
		}
	}
	return n
}

// NeighborAS is the leftmost ASN in the path, used by decision-process
// rule 4 (MED comparison is only valid between routes with the same
// neighbor AS) and RPKI origin validation (origin AS is the rightmost).
func (a ASPathValue) NeighborAS() (uint32, bool) {
	for _, seg := range a.Segments {
		if len(seg.ASNs) > 0 {
			return seg.ASNs[0], true
		}
	}
	return 0, false
}

// OriginAS is the rightmost ASN in the path — the AS that originated the
// route, used by RPKI validation (spec section 4.6).
func (a ASPathValue) OriginAS() (uint32, bool) {
	for i := len(a.Segments) - 1; i >= 0; i-- {
		seg := a.Segments[i]
		if len(seg.ASNs) > 0 {
			return seg.ASNs[len(seg.ASNs)-1], true
		}
	}
	return 0, false
}

// Contains reports whether asn appears anywhere in the path (used for
// egress loop prevention, spec section 3 invariant 4).
func (a ASPathValue) Contains(asn uint32) bool {
	for _, seg := range a.Segments {
		for _, x := range seg.ASNs {
			if x == asn {
				return true
			}
		}
	}
	return false
}

// Prepend returns a new AS_PATH with asn prepended to the head segment if
// it is an AS_SEQUENCE, or as a new leading AS_SEQUENCE segment otherwise.
func (a ASPathValue) Prepend(asn uint32) ASPathValue {
	if len(a.Segments) > 0 && a.Segments[0].Type == ASPathSequence {
		segs := make([]ASPathSegment, len(a.Segments))
		copy(segs, a.Segments)
		asns := make([]uint32, 0, len(segs[0].ASNs)+1)
		asns = append(asns, asn)
		asns = append(asns, segs[0].ASNs...)
		segs[0] = ASPathSegment{Type: ASPathSequence, ASNs: asns}
		return ASPathValue{Segments: segs}
	}
	segs := make([]ASPathSegment, 0, len(a.Segments)+1)
	segs = append(segs, ASPathSegment{Type: ASPathSequence, ASNs: []uint32{asn}})
	segs = append(segs, a.Segments...)
	return ASPathValue{Segments: segs}
}

type NextHopValue struct{ Addr netip.Addr }

func (NextHopValue) isAttrValue() {}

type MedValue uint32

func (MedValue) isAttrValue() {}

type LocalPrefValue uint32

func (LocalPrefValue) isAttrValue() {}

type AtomicAggregateValue struct{}

func (AtomicAggregateValue) isAttrValue() {}

type AggregatorValue struct {
	ASN      uint32
	RouterID netip.Addr
}

func (AggregatorValue) isAttrValue() {}

type CommunitiesValue struct{ Values []uint32 }

func (CommunitiesValue) isAttrValue() {}

// Community encodes "A:B" as (A<<16)|B.
func Community(a, b uint16) uint32 { return uint32(a)<<16 | uint32(b) }

type OriginatorIDValue struct{ RouterID netip.Addr }

func (OriginatorIDValue) isAttrValue() {}

type ClusterListValue struct{ ClusterIDs []uint32 }

func (ClusterListValue) isAttrValue() {}

type MpReachNLRIValue struct {
	AFI      uint16
	SAFI     uint8
	NextHops []netip.Addr
	NLRI     []Prefix
}

func (MpReachNLRIValue) isAttrValue() {}

type MpUnreachNLRIValue struct {
	AFI       uint16
	SAFI      uint8
	Withdrawn []Prefix
}

func (MpUnreachNLRIValue) isAttrValue() {}

// UnknownValue preserves an unrecognized attribute's raw bytes and flags
// so transitive attributes pass through unmodified (spec section 3).
type UnknownValue struct{ Raw []byte }

func (UnknownValue) isAttrValue() {}

// Attribute is one decoded path attribute: its wire type code, its flag
// bits, and its typed value.
type Attribute struct {
	Code  AttrType
	Flags uint8
	Value AttrValue
}

// AttributeMap holds at most one attribute per type code (spec section 3
// invariant 2). The map itself is the enforcement: Set replaces any prior
// entry for the same code.
type AttributeMap map[AttrType]*Attribute

func NewAttributeMap() AttributeMap { return make(AttributeMap) }

func (m AttributeMap) Set(a *Attribute) { m[a.Code] = a }

func (m AttributeMap) Get(code AttrType) (*Attribute, bool) {
	a, ok := m[code]
	return a, ok
}

func (m AttributeMap) Origin() (uint8, bool) {
	if a, ok := m[AttrOrigin]; ok {
		return uint8(a.Value.(OriginValue)), true
	}
	return 0, false
}

func (m AttributeMap) ASPath() (ASPathValue, bool) {
	if a, ok := m[AttrASPath]; ok {
		return a.Value.(ASPathValue), true
	}
	return ASPathValue{}, false
}

func (m AttributeMap) NextHop() (netip.Addr, bool) {
	if a, ok := m[AttrNextHop]; ok {
		return a.Value.(NextHopValue).Addr, true
	}
	return netip.Addr{}, false
}

// MED returns the MED or 0 if absent (spec section 4.5 rule 4: "Missing
// MED is treated as 0").
func (m AttributeMap) MED() uint32 {
	if a, ok := m[AttrMED]; ok {
		return uint32(a.Value.(MedValue))
	}
	return 0
}

// LocalPref returns LOCAL_PREF or the default of 100 if absent (spec
// section 4.5 rule 1).
func (m AttributeMap) LocalPref() uint32 {
	if a, ok := m[AttrLocalPref]; ok {
		return uint32(a.Value.(LocalPrefValue))
	}
	return 100
}

func (m AttributeMap) Communities() []uint32 {
	if a, ok := m[AttrCommunities]; ok {
		return a.Value.(CommunitiesValue).Values
	}
	return nil
}

func (m AttributeMap) HasCommunity(c uint32) bool {
	for _, v := range m.Communities() {
		if v == c {
			return true
		}
	}
	return false
}

func (m AttributeMap) MpReach() (MpReachNLRIValue, bool) {
	if a, ok := m[AttrMpReachNLRI]; ok {
		return a.Value.(MpReachNLRIValue), true
	}
	return MpReachNLRIValue{}, false
}

func (m AttributeMap) MpUnreach() (MpUnreachNLRIValue, bool) {
	if a, ok := m[AttrMpUnreachNLRI]; ok {
		return a.Value.(MpUnreachNLRIValue), true
	}
	return MpUnreachNLRIValue{}, false
}

// Clone returns a shallow copy of the map (the per-attribute values are
// treated as immutable once decoded, so this is safe for egress transforms
// that replace a handful of entries without mutating the shared input).
func (m AttributeMap) Clone() AttributeMap {
	out := make(AttributeMap, len(m))
	for k, v := range m {
		cp := *v
		out[k] = &cp
	}
	return out
}

// EncodeAttributes serializes the map in ascending type-code order (the
// spec notes ordering is implementation-defined; a stable order keeps
// encode output deterministic for tests).
func EncodeAttributes(m AttributeMap) ([]byte, error) {
	codes := make([]AttrType, 0, len(m))
	for c := range m {
		codes = append(codes, c)
	}
	// Simple insertion sort; attribute counts are small (single digits).
	for i := 1; i < len(codes); i++ {
		for j := i; j > 0 && codes[j-1] > codes[j]; j-- {
			codes[j-1], codes[j] = codes[j], codes[j-1]
		}
	}
	var out []byte
	for _, c := range codes {
		b, err := encodeAttribute(m[c])
		if err != nil {
			return nil, err
		}
		out = append(out, b...)
	}
	return out, nil
}

func encodeAttribute(a *Attribute) ([]byte, error) {
	val, err := encodeAttrValue(a)
	if err != nil {
		return nil, fmt.Errorf("encoding attribute type %d: %w", a.Code, err)
	}
	flags := a.Flags &^ FlagExtendedLength
	if len(val) > 255 {
		flags |= FlagExtendedLength
	}
	var out []byte
	if flags&FlagExtendedLength != 0 {
		out = make([]byte, 4, 4+len(val))
		out[0] = flags
		out[1] = byte(a.Code)
		binary.BigEndian.PutUint16(out[2:4], uint16(len(val)))
	} else {
		out = make([]byte, 3, 3+len(val))
		out[0] = flags
		out[1] = byte(a.Code)
		out[2] = byte(len(val))
	}
	out = append(out, val...)
	return out, nil
}

// DecodeAttributes parses the path-attributes section of an UPDATE message.
func DecodeAttributes(data []byte) (AttributeMap, error) {
	m := NewAttributeMap()
	offset := 0
	for offset < len(data) {
		if offset+2 > len(data) {
			return nil, fmt.Errorf("%w: attribute header truncated at offset %d", rerrors.ErrWireFormat, offset)
		}
		flags := data[offset]
		code := AttrType(data[offset+1])
		offset += 2

		var attrLen int
		if flags&FlagExtendedLength != 0 {
			if offset+2 > len(data) {
				return nil, fmt.Errorf("%w: extended attribute length truncated", rerrors.ErrWireFormat)
			}
			attrLen = int(binary.BigEndian.Uint16(data[offset : offset+2]))
			offset += 2
		} else {
			if offset+1 > len(data) {
				return nil, fmt.Errorf("%w: attribute length truncated", rerrors.ErrWireFormat)
			}
			attrLen = int(data[offset])
			offset++
		}
		if offset+attrLen > len(data) {
			return nil, fmt.Errorf("%w: attribute value truncated (type %d, need %d, have %d)", rerrors.ErrWireFormat, code, attrLen, len(data)-offset)
		}
		raw := data[offset : offset+attrLen]
		offset += attrLen

		val, err := decodeAttrValue(code, raw)
		if err != nil {
			return nil, err
		}
		m.Set(&Attribute{Code: code, Flags: flags, Value: val})
	}
	return m, nil
}
