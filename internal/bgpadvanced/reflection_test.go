package bgpadvanced

import (
	"net/netip"
	"testing"

	"github.com/route-beacon/ribagent/internal/bgpdecision"
	"github.com/route-beacon/ribagent/internal/bgprib"
	"github.com/route-beacon/ribagent/internal/wire/bgp"
)

func reflector() Reflector {
	return Reflector{RouterID: netip.MustParseAddr("1.1.1.1"), ClusterID: 0x01010101}
}

func plainRoute(peer string) bgprib.BgpRoute {
	return bgprib.BgpRoute{
		Attributes: bgp.NewAttributeMap(),
		Peer:       bgprib.PeerIdentity{Address: netip.MustParseAddr(peer), RouterID: netip.MustParseAddr(peer)},
	}
}

func TestReflectEligible_EBGPLearnedReflectsToAllIBGP(t *testing.T) {
	rf := reflector()
	route := plainRoute("192.0.2.1")
	peer := bgpdecision.EgressPeer{Address: netip.MustParseAddr("10.0.0.2"), Kind: bgpdecision.IBGP}
	if !rf.ReflectEligible(route, bgpdecision.EBGP, false, peer) {
		t.Fatal("an eBGP-learned route must reflect to every iBGP peer")
	}
}

func TestReflectEligible_ClientLearnedReflectsToNonClient(t *testing.T) {
	rf := reflector()
	route := plainRoute("10.0.0.5")
	peer := bgpdecision.EgressPeer{Address: netip.MustParseAddr("10.0.0.2"), Kind: bgpdecision.IBGP, ReflectorClient: false}
	if !rf.ReflectEligible(route, bgpdecision.IBGP, true, peer) {
		t.Fatal("a route learned from a reflector client must reflect to a non-client iBGP peer")
	}
}

func TestReflectEligible_NonClientLearnedOnlyReflectsToClients(t *testing.T) {
	rf := reflector()
	route := plainRoute("10.0.0.5")

	nonClientPeer := bgpdecision.EgressPeer{Address: netip.MustParseAddr("10.0.0.2"), Kind: bgpdecision.IBGP, ReflectorClient: false}
	if rf.ReflectEligible(route, bgpdecision.IBGP, false, nonClientPeer) {
		t.Fatal("a route learned from a non-client must not reflect to another non-client")
	}

	clientPeer := bgpdecision.EgressPeer{Address: netip.MustParseAddr("10.0.0.3"), Kind: bgpdecision.IBGP, ReflectorClient: true}
	if !rf.ReflectEligible(route, bgpdecision.IBGP, false, clientPeer) {
		t.Fatal("a route learned from a non-client must still reflect to clients")
	}
}

func TestReflectEligible_OwnRouterIDInOriginatorIDBreaksLoop(t *testing.T) {
	rf := reflector()
	route := plainRoute("192.0.2.1")
	route.Attributes.Set(&bgp.Attribute{Code: bgp.AttrOriginatorID, Value: bgp.OriginatorIDValue{RouterID: rf.RouterID}})
	peer := bgpdecision.EgressPeer{Address: netip.MustParseAddr("10.0.0.2"), Kind: bgpdecision.IBGP}
	if rf.ReflectEligible(route, bgpdecision.EBGP, false, peer) {
		t.Fatal("a route carrying our own router id as ORIGINATOR_ID must not be reflected")
	}
}

func TestReflectEligible_OwnClusterIDInClusterListBreaksLoop(t *testing.T) {
	rf := reflector()
	route := plainRoute("192.0.2.1")
	route.Attributes.Set(&bgp.Attribute{Code: bgp.AttrClusterList, Value: bgp.ClusterListValue{ClusterIDs: []uint32{rf.ClusterID}}})
	peer := bgpdecision.EgressPeer{Address: netip.MustParseAddr("10.0.0.2"), Kind: bgpdecision.IBGP}
	if rf.ReflectEligible(route, bgpdecision.EBGP, false, peer) {
		t.Fatal("a route whose CLUSTER_LIST already contains our cluster id must not be reflected")
	}
}

func TestReflect_SetsOriginatorIDFromSourcePeerRouterID(t *testing.T) {
	rf := reflector()
	route := plainRoute("10.0.0.5")
	out := rf.Reflect(route)
	a, ok := out.Attributes.Get(bgp.AttrOriginatorID)
	if !ok {
		t.Fatal("expected ORIGINATOR_ID to be set")
	}
	if a.Value.(bgp.OriginatorIDValue).RouterID != route.Peer.RouterID {
		t.Fatal("expected ORIGINATOR_ID to carry the source peer's router id")
	}
}

func TestReflect_DoesNotOverwriteExistingOriginatorID(t *testing.T) {
	rf := reflector()
	route := plainRoute("10.0.0.5")
	first := netip.MustParseAddr("9.9.9.9")
	route.Attributes.Set(&bgp.Attribute{Code: bgp.AttrOriginatorID, Value: bgp.OriginatorIDValue{RouterID: first}})
	out := rf.Reflect(route)
	a, _ := out.Attributes.Get(bgp.AttrOriginatorID)
	if a.Value.(bgp.OriginatorIDValue).RouterID != first {
		t.Fatal("ORIGINATOR_ID must only be set at the first reflecting router")
	}
}

func TestReflect_PrependsClusterID(t *testing.T) {
	rf := reflector()
	route := plainRoute("10.0.0.5")
	route.Attributes.Set(&bgp.Attribute{Code: bgp.AttrClusterList, Value: bgp.ClusterListValue{ClusterIDs: []uint32{0x02020202}}})
	out := rf.Reflect(route)
	a, _ := out.Attributes.Get(bgp.AttrClusterList)
	ids := a.Value.(bgp.ClusterListValue).ClusterIDs
	if len(ids) != 2 || ids[0] != rf.ClusterID || ids[1] != 0x02020202 {
		t.Fatalf("got %v, want [%d, %d]", ids, rf.ClusterID, uint32(0x02020202))
	}
}
