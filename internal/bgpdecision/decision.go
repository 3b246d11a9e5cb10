// Package bgpdecision implements the BGP best-path selection process
// (spec section 4.5), the egress transforms applied to a route leaving
// to a given peer, and the advertisement rules that decide whether a
// peer is eligible to receive a given best route at all. It is the sole
// owner of internal/bgprib.LocRIB (spec section 5): sessions send route
// changes here, and Decision.Run installs and removes their best routes.
// The agent's locally originated networks are installed into LocRIB
// directly, without passing through this package.
package bgpdecision

import (
	"net/netip"

	"github.com/route-beacon/ribagent/internal/bgprib"
	"github.com/route-beacon/ribagent/internal/wire/bgp"
)

// PeerKind distinguishes eBGP from iBGP for tie-break rule 5, egress
// transforms, and the advertisement rules.
type PeerKind int

const (
	EBGP PeerKind = iota
	IBGP
)

// Candidate is one Adj-RIB-In entry considered for a given prefix,
// together with the facts the tie-breakers need about its session.
type Candidate struct {
	Route    bgprib.BgpRoute
	Kind     PeerKind
	LocalASN uint32
}

// Best runs the eight ordered tie-breakers of spec section 4.5 over
// candidates and returns the index of the winner. candidates must be
// non-empty. preferDeterministic skips tie-break 6 (oldest wins) in
// favor of falling straight to the BGP-identifier/peer-address
// tiebreaks, per the spec's configurable "prefer deterministic" flag.
func Best(candidates []Candidate, preferDeterministic bool) int {
	best := 0
	for i := 1; i < len(candidates); i++ {
		if better(candidates[i], candidates[best], preferDeterministic) {
			best = i
		}
	}
	return best
}

// better reports whether a is strictly preferred over b.
func better(a, b Candidate, preferDeterministic bool) bool {
	// 1. Higher LOCAL_PREF wins.
	if lp := cmp(int64(a.Route.Attributes.LocalPref()), int64(b.Route.Attributes.LocalPref())); lp != 0 {
		return lp > 0
	}

	// 2. Shorter AS_PATH length wins.
	aPath, _ := a.Route.Attributes.ASPath()
	bPath, _ := b.Route.Attributes.ASPath()
	if c := cmp(int64(bPath.Length()), int64(aPath.Length())); c != 0 {
		return c > 0
	}

	// 3. Lower ORIGIN wins (IGP < EGP < INCOMPLETE).
	aOrigin, _ := a.Route.Attributes.Origin()
	bOrigin, _ := b.Route.Attributes.Origin()
	if c := cmp(int64(bOrigin), int64(aOrigin)); c != 0 {
		return c > 0
	}

	// 4. Lower MED wins, only when both routes share a neighbor AS.
	aNeighbor, aHasNeighbor := aPath.NeighborAS()
	bNeighbor, bHasNeighbor := bPath.NeighborAS()
	if aHasNeighbor && bHasNeighbor && aNeighbor == bNeighbor {
		if c := cmp(int64(b.Route.Attributes.MED()), int64(a.Route.Attributes.MED())); c != 0 {
			return c > 0
		}
	}

	// 5. eBGP over iBGP.
	if a.Kind != b.Kind {
		return a.Kind == EBGP
	}

	// 6. Older route wins (stability tiebreak; skippable).
	if !preferDeterministic {
		if !a.Route.Timestamp.Equal(b.Route.Timestamp) {
			return a.Route.Timestamp.Before(b.Route.Timestamp)
		}
	}

	// 7. Lower BGP-identifier of the advertising peer wins.
	if c := cmp(int64(bgpIDUint32(a.Route.Peer.RouterID)), int64(bgpIDUint32(b.Route.Peer.RouterID))); c != 0 {
		return c > 0
	}

	// 8. Lower peer address wins (final tiebreak).
	return lessAddr(a.Route.Peer.Address, b.Route.Peer.Address)
}

func cmp(a, b int64) int {
	switch {
	case a > b:
		return 1
	case a < b:
		return -1
	default:
		return 0
	}
}

func bgpIDUint32(id netip.Addr) uint32 {
	if !id.Is4() {
		return 0
	}
	b := id.As4()
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func lessAddr(a, b netip.Addr) bool {
	return a.Less(b)
}

// Decision runs the best-path process for a set of changed prefixes
// against Adj-RIB-In and installs the result into Loc-RIB, returning the
// InstallBest/WithdrawBest change set the agent must propagate (spec
// section 4.5).
type Decision struct {
	LocRIB              *bgprib.LocRIB
	LocalASN            uint32
	PreferDeterministic bool
}

// Change is one outcome of a decision run for a single prefix.
type Change struct {
	Prefix    bgp.Prefix
	Route     bgprib.BgpRoute
	Withdrawn bool
}

// Run evaluates candidates (already policy-filtered and excluding
// suppressed/invalid routes) for prefix and updates Loc-RIB accordingly.
// An empty candidates slice withdraws the prefix if it was previously
// installed.
func (d *Decision) Run(prefix bgp.Prefix, candidates []Candidate) *Change {
	if len(candidates) == 0 {
		if _, had := d.LocRIB.Remove(prefix); had {
			return &Change{Prefix: prefix, Withdrawn: true}
		}
		return nil
	}

	winner := candidates[Best(candidates, d.PreferDeterministic)].Route
	prev, hadPrev := d.LocRIB.Install(winner)
	if hadPrev && routesEqual(prev, winner) {
		return nil
	}
	return &Change{Prefix: prefix, Route: winner}
}

func routesEqual(a, b bgprib.BgpRoute) bool {
	return a.Peer.Address == b.Peer.Address && a.Timestamp.Equal(b.Timestamp)
}
