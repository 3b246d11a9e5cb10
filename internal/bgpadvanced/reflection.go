package bgpadvanced

import (
	"net/netip"

	"github.com/route-beacon/ribagent/internal/bgpdecision"
	"github.com/route-beacon/ribagent/internal/bgprib"
	"github.com/route-beacon/ribagent/internal/wire/bgp"
)

// Reflector holds the identity of a router acting as a route reflector
// (RFC 4456, spec section 4.6): its router id (for ORIGINATOR_ID) and
// its cluster id (for CLUSTER_LIST loop prevention).
type Reflector struct {
	RouterID  netip.Addr
	ClusterID uint32
}

// ReflectEligible reports whether route, learned from a session of kind
// learnedFrom with learnedFromClient set if that session is a
// reflector-client, should be reflected to peer, and applies loop
// prevention. It stands in for bgpdecision.Eligible on a route
// reflector: Eligible's split-horizon and NO_EXPORT/NO_ADVERTISE checks
// still apply, its iBGP-to-iBGP check is replaced by the reflection
// rules, and an eBGP peer receives any route that passes the checks.
func (rf Reflector) ReflectEligible(route bgprib.BgpRoute, learnedFrom bgpdecision.PeerKind, learnedFromClient bool, peer bgpdecision.EgressPeer) bool {
	if route.Peer.Address == peer.Address {
		return false
	}
	// Evaluated as eBGP-learned so that Eligible skips only its
	// iBGP-to-iBGP check, which the reflection rules below replace.
	if !bgpdecision.Eligible(route, bgpdecision.EBGP, peer) {
		return false
	}
	if originatorID, ok := route.Attributes.Get(bgp.AttrOriginatorID); ok {
		if originatorID.Value.(bgp.OriginatorIDValue).RouterID == rf.RouterID {
			return false
		}
	}
	if clusters, ok := route.Attributes.Get(bgp.AttrClusterList); ok {
		for _, id := range clusters.Value.(bgp.ClusterListValue).ClusterIDs {
			if id == rf.ClusterID {
				return false
			}
		}
	}

	if learnedFrom == bgpdecision.EBGP || peer.Kind == bgpdecision.EBGP {
		return true
	}
	if learnedFromClient {
		return true
	}
	return peer.ReflectorClient
}

// ReflectorClientOf exposes whether peer is configured as a
// reflector-client, read off bgpdecision.EgressPeer so callers building
// advertisement sets don't need a second config lookup.
func ReflectorClientOf(peer bgpdecision.EgressPeer) bool { return peer.ReflectorClient }

// Reflect applies the RFC 4456 transform to a clone of route before it
// is sent to peer: setting ORIGINATOR_ID on first reflection (a route
// originated on this router itself is never reflected, so ORIGINATOR_ID
// is only ever set once, at the first reflecting router) and prepending
// the local cluster id to CLUSTER_LIST.
func (rf Reflector) Reflect(route bgprib.BgpRoute) bgprib.BgpRoute {
	out := route.Clone()

	if _, ok := out.Attributes.Get(bgp.AttrOriginatorID); !ok {
		out.Attributes.Set(&bgp.Attribute{
			Code:  bgp.AttrOriginatorID,
			Flags: bgp.FlagOptional,
			Value: bgp.OriginatorIDValue{RouterID: route.Peer.RouterID},
		})
	}

	existing, _ := out.Attributes.Get(bgp.AttrClusterList)
	var ids []uint32
	if existing != nil {
		ids = existing.Value.(bgp.ClusterListValue).ClusterIDs
	}
	prepended := make([]uint32, 0, len(ids)+1)
	prepended = append(prepended, rf.ClusterID)
	prepended = append(prepended, ids...)
	out.Attributes.Set(&bgp.Attribute{
		Code:  bgp.AttrClusterList,
		Flags: bgp.FlagOptional,
		Value: bgp.ClusterListValue{ClusterIDs: prepended},
	})

	return out
}
