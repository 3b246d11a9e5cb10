package bgpdecision

import (
	"net/netip"

	"github.com/route-beacon/ribagent/internal/bgprib"
	"github.com/route-beacon/ribagent/internal/wire/bgp"
)

// EgressPeer describes the peer a route is about to be advertised to,
// the facts the egress transforms and advertisement rules need.
type EgressPeer struct {
	Address        netip.Addr
	Kind           PeerKind
	LocalInterface netip.Addr
	ReflectorClient bool
}

// Transform applies the egress transforms of spec section 4.5 (i)-(iii)
// to a clone of route, for advertisement to peer. Route reflection's
// transform (iv) is applied by internal/bgpadvanced before this runs.
func Transform(route bgprib.BgpRoute, localASN uint32, peer EgressPeer) bgprib.BgpRoute {
	out := route.Clone()

	if peer.Kind == EBGP || !hasNextHop(route.Attributes) {
		out.Attributes.Set(&bgp.Attribute{
			Code:  bgp.AttrNextHop,
			Flags: bgp.FlagTransitive,
			Value: bgp.NextHopValue{Addr: peer.LocalInterface},
		})
	}

	if peer.Kind == EBGP {
		path, _ := out.Attributes.ASPath()
		prepended := path.Prepend(localASN)
		out.Attributes.Set(&bgp.Attribute{
			Code:  bgp.AttrASPath,
			Flags: bgp.FlagTransitive,
			Value: prepended,
		})
		delete(out.Attributes, bgp.AttrLocalPref)
	} else {
		if _, ok := out.Attributes.Get(bgp.AttrLocalPref); !ok {
			out.Attributes.Set(&bgp.Attribute{
				Code:  bgp.AttrLocalPref,
				Flags: bgp.FlagTransitive,
				Value: bgp.LocalPrefValue(100),
			})
		}
	}

	return out
}

func hasNextHop(m bgp.AttributeMap) bool {
	_, ok := m.Get(bgp.AttrNextHop)
	return ok
}

// Eligible applies the base advertisement rules of spec section 4.5 for
// a non-reflector session. A router acting as a route reflector
// replaces the iBGP-to-iBGP check with internal/bgpadvanced's
// reflection ruleset instead of calling this function for that case.
func Eligible(route bgprib.BgpRoute, learnedFromKind PeerKind, peer EgressPeer) bool {
	if route.Peer.Address == peer.Address {
		return false
	}
	if route.Attributes.HasCommunity(bgp.CommunityNoAdvertise) {
		return false
	}
	if peer.Kind == EBGP && route.Attributes.HasCommunity(bgp.CommunityNoExport) {
		return false
	}
	if learnedFromKind == IBGP && peer.Kind == IBGP && !peer.ReflectorClient {
		return false
	}
	return true
}
