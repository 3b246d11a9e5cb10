package bgpadvanced

import (
	"net/netip"

	"github.com/route-beacon/ribagent/internal/bgprib"
	"github.com/route-beacon/ribagent/internal/wire/bgp"
)

// ROA is one Route Origin Authorization record (RFC 6811): a prefix, the
// maximum length a covering announcement may use, and the AS it
// authorizes as origin.
type ROA struct {
	Prefix    netip.Prefix
	MaxLength int
	ASN       uint32
}

// ROATable is an in-memory cache of ROAs, indexed for the RFC 6811
// longest-covering-prefix lookup.
type ROATable struct {
	byPrefixLen map[int][]ROA
}

func NewROATable() *ROATable {
	return &ROATable{byPrefixLen: make(map[int][]ROA)}
}

func (t *ROATable) Add(r ROA) {
	t.byPrefixLen[r.Prefix.Bits()] = append(t.byPrefixLen[r.Prefix.Bits()], r)
}

// Validate implements the RFC 6811 origin-validation procedure: a route
// is Valid if some ROA covers the prefix, authorizes originASN, and
// permits a prefix length up to its MaxLength; Invalid if a covering ROA
// exists but none authorizes this (origin, length) pair; NotFound if no
// ROA covers the prefix at all.
func (t *ROATable) Validate(prefix netip.Prefix, originASN uint32) bgprib.RPKIState {
	found := false
	for length := 0; length <= prefix.Bits(); length++ {
		for _, roa := range t.byPrefixLen[length] {
			if !roa.Prefix.Overlaps(prefix) {
				continue
			}
			if !covers(roa.Prefix, prefix) {
				continue
			}
			found = true
			if roa.ASN == originASN && prefix.Bits() <= roa.MaxLength {
				return bgprib.RPKIValid
			}
		}
	}
	if found {
		return bgprib.RPKIInvalid
	}
	return bgprib.RPKINotFound
}

// covers reports whether outer fully contains inner (same address
// family, outer's prefix bits are a match over inner's network address,
// and outer is no more specific than inner).
func covers(outer, inner netip.Prefix) bool {
	if outer.Bits() > inner.Bits() {
		return false
	}
	masked, err := inner.Addr().Prefix(outer.Bits())
	if err != nil {
		return false
	}
	return masked.Addr() == outer.Addr()
}

// ValidateRoute extracts the origin ASN from route's AS_PATH and
// validates its prefix against t, returning RPKINotFound when the
// AS_PATH carries no origin (e.g. locally originated with an empty path).
func ValidateRoute(t *ROATable, route bgprib.BgpRoute) bgprib.RPKIState {
	path, ok := route.Attributes.Get(bgp.AttrASPath)
	if !ok {
		return bgprib.RPKINotFound
	}
	origin, ok := path.Value.(bgp.ASPathValue).OriginAS()
	if !ok {
		return bgprib.RPKINotFound
	}
	prefix := netip.PrefixFrom(route.Prefix.Addr, route.Prefix.Len)
	return t.Validate(prefix, origin)
}
