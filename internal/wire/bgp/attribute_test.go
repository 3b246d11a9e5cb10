package bgp

import (
	"net/netip"
	"testing"
)

func buildAttr(flags byte, code AttrType, data []byte) []byte {
	if len(data) > 255 {
		attr := make([]byte, 4+len(data))
		attr[0] = flags | FlagExtendedLength
		attr[1] = byte(code)
		attr[2] = byte(len(data) >> 8)
		attr[3] = byte(len(data))
		copy(attr[4:], data)
		return attr
	}
	attr := make([]byte, 3+len(data))
	attr[0] = flags
	attr[1] = byte(code)
	attr[2] = byte(len(data))
	copy(attr[3:], data)
	return attr
}

func TestDecodeAttributes_OriginAndNextHop(t *testing.T) {
	raw := append(
		buildAttr(FlagTransitive, AttrOrigin, []byte{OriginIGP}),
		buildAttr(FlagTransitive, AttrNextHop, []byte{192, 168, 1, 1})...,
	)
	m, err := DecodeAttributes(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	origin, ok := m.Origin()
	if !ok || origin != OriginIGP {
		t.Fatalf("origin = %v, %v", origin, ok)
	}
	nh, ok := m.NextHop()
	if !ok || nh != netip.MustParseAddr("192.168.1.1") {
		t.Fatalf("next hop = %v, %v", nh, ok)
	}
}

func TestDecodeAttributes_ASPathLengthAndEndpoints(t *testing.T) {
	asPathBytes := []byte{ASPathSequence, 3, 0, 0, 0xFD, 0xE9, 0, 0, 0xFD, 0xEA, 0, 0, 0xFD, 0xEB}
	raw := buildAttr(FlagTransitive, AttrASPath, asPathBytes)
	m, err := DecodeAttributes(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	path, ok := m.ASPath()
	if !ok {
		t.Fatal("expected AS_PATH present")
	}
	if path.Length() != 3 {
		t.Fatalf("length = %d, want 3", path.Length())
	}
	neighbor, _ := path.NeighborAS()
	origin, _ := path.OriginAS()
	if neighbor != 65001 || origin != 65003 {
		t.Fatalf("neighbor=%d origin=%d", neighbor, origin)
	}
	if !path.Contains(65002) {
		t.Fatal("expected path to contain 65002")
	}
}

func TestASPathValue_Prepend(t *testing.T) {
	p := ASPathValue{Segments: []ASPathSegment{{Type: ASPathSequence, ASNs: []uint32{65002, 65003}}}}
	got := p.Prepend(65001)
	want := []uint32{65001, 65002, 65003}
	if len(got.Segments) != 1 || len(got.Segments[0].ASNs) != 3 {
		t.Fatalf("got %+v", got)
	}
	for i, asn := range want {
		if got.Segments[0].ASNs[i] != asn {
			t.Fatalf("got %+v, want %v", got.Segments[0].ASNs, want)
		}
	}
}

func TestEncodeAttributes_ExtendedLength(t *testing.T) {
	values := make([]uint32, 100)
	for i := range values {
		values[i] = uint32(i)
	}
	m := NewAttributeMap()
	m.Set(&Attribute{Code: AttrCommunities, Flags: FlagOptional | FlagTransitive, Value: CommunitiesValue{Values: values}})
	enc, err := EncodeAttributes(m)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if enc[0]&FlagExtendedLength == 0 {
		t.Fatal("expected extended-length flag for 400-byte value")
	}
	back, err := DecodeAttributes(enc)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(back.Communities()) != 100 {
		t.Fatalf("got %d communities, want 100", len(back.Communities()))
	}
}

func TestDecodeAttributes_UnknownAttributePreservesRawBytes(t *testing.T) {
	raw := buildAttr(FlagOptional|FlagTransitive, AttrType(99), []byte{1, 2, 3, 4})
	m, err := DecodeAttributes(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a, ok := m.Get(AttrType(99))
	if !ok {
		t.Fatal("expected unknown attribute to be present")
	}
	uv, ok := a.Value.(UnknownValue)
	if !ok {
		t.Fatalf("got %T, want UnknownValue", a.Value)
	}
	if len(uv.Raw) != 4 || uv.Raw[3] != 4 {
		t.Fatalf("got %v", uv.Raw)
	}
}

func TestDecodeAttributes_TruncatedLength(t *testing.T) {
	if _, err := DecodeAttributes([]byte{FlagTransitive, byte(AttrOrigin), 5, 0}); err == nil {
		t.Fatal("expected truncation error")
	}
}

func TestMpReachNLRI_RoundTrip(t *testing.T) {
	v := MpReachNLRIValue{
		AFI:      AFIIPv6,
		SAFI:     SAFIUnicast,
		NextHops: []netip.Addr{netip.MustParseAddr("2001:db8::1")},
		NLRI:     []Prefix{{Addr: netip.MustParseAddr("2001:db8:1::"), Len: 48}},
	}
	m := NewAttributeMap()
	m.Set(&Attribute{Code: AttrMpReachNLRI, Flags: FlagOptional, Value: v})
	enc, err := EncodeAttributes(m)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	back, err := DecodeAttributes(enc)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got, ok := back.MpReach()
	if !ok {
		t.Fatal("expected MP_REACH_NLRI present")
	}
	if len(got.NLRI) != 1 || got.NLRI[0].String() != "2001:db8:1::/48" {
		t.Fatalf("got %+v", got)
	}
	if len(got.NextHops) != 1 || got.NextHops[0] != v.NextHops[0] {
		t.Fatalf("got next hops %+v", got.NextHops)
	}
}

func TestAttributeMap_MissingMEDAndLocalPrefDefaults(t *testing.T) {
	m := NewAttributeMap()
	if m.MED() != 0 {
		t.Fatalf("MED default = %d, want 0", m.MED())
	}
	if m.LocalPref() != 100 {
		t.Fatalf("LOCAL_PREF default = %d, want 100", m.LocalPref())
	}
}
