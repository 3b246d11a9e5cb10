package bgpadvanced

import (
	"net/netip"
	"testing"

	"github.com/route-beacon/ribagent/internal/bgprib"
	"github.com/route-beacon/ribagent/internal/wire/bgp"
)

func TestROATable_ValidWhenOriginAndLengthMatch(t *testing.T) {
	table := NewROATable()
	table.Add(ROA{Prefix: netip.MustParsePrefix("192.0.2.0/24"), MaxLength: 24, ASN: 65001})

	got := table.Validate(netip.MustParsePrefix("192.0.2.0/24"), 65001)
	if got != bgprib.RPKIValid {
		t.Fatalf("got %v, want Valid", got)
	}
}

func TestROATable_InvalidWrongOrigin(t *testing.T) {
	table := NewROATable()
	table.Add(ROA{Prefix: netip.MustParsePrefix("192.0.2.0/24"), MaxLength: 24, ASN: 65001})

	got := table.Validate(netip.MustParsePrefix("192.0.2.0/24"), 65002)
	if got != bgprib.RPKIInvalid {
		t.Fatalf("got %v, want Invalid (wrong origin AS)", got)
	}
}

func TestROATable_InvalidExceedsMaxLength(t *testing.T) {
	table := NewROATable()
	table.Add(ROA{Prefix: netip.MustParsePrefix("192.0.2.0/24"), MaxLength: 24, ASN: 65001})

	got := table.Validate(netip.MustParsePrefix("192.0.2.128/25"), 65001)
	if got != bgprib.RPKIInvalid {
		t.Fatalf("got %v, want Invalid (length exceeds max-length)", got)
	}
}

func TestROATable_NotFoundWhenNoCoveringROA(t *testing.T) {
	table := NewROATable()
	table.Add(ROA{Prefix: netip.MustParsePrefix("198.51.100.0/24"), MaxLength: 24, ASN: 65001})

	got := table.Validate(netip.MustParsePrefix("192.0.2.0/24"), 65001)
	if got != bgprib.RPKINotFound {
		t.Fatalf("got %v, want NotFound", got)
	}
}

func TestValidateRoute_ExtractsOriginFromASPath(t *testing.T) {
	table := NewROATable()
	table.Add(ROA{Prefix: netip.MustParsePrefix("192.0.2.0/24"), MaxLength: 24, ASN: 65002})

	attrs := bgp.NewAttributeMap()
	attrs.Set(&bgp.Attribute{Code: bgp.AttrASPath, Value: bgp.ASPathValue{
		Segments: []bgp.ASPathSegment{{Type: bgp.ASPathSequence, ASNs: []uint32{65001, 65002}}},
	}})
	route := bgprib.BgpRoute{
		Prefix:     bgp.Prefix{Addr: netip.MustParseAddr("192.0.2.0"), Len: 24},
		Attributes: attrs,
	}

	if got := ValidateRoute(table, route); got != bgprib.RPKIValid {
		t.Fatalf("got %v, want Valid (origin AS is rightmost ASN, 65002)", got)
	}
}

func TestValidateRoute_NotFoundWithoutASPath(t *testing.T) {
	table := NewROATable()
	route := bgprib.BgpRoute{
		Prefix:     bgp.Prefix{Addr: netip.MustParseAddr("192.0.2.0"), Len: 24},
		Attributes: bgp.NewAttributeMap(),
	}
	if got := ValidateRoute(table, route); got != bgprib.RPKINotFound {
		t.Fatalf("got %v, want NotFound", got)
	}
}
