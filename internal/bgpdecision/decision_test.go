package bgpdecision

import (
	"net/netip"
	"testing"
	"time"

	"github.com/route-beacon/ribagent/internal/bgprib"
	"github.com/route-beacon/ribagent/internal/wire/bgp"
)

func candidate(peer string, localPref uint32, asPathLen int, med uint32, kind PeerKind, ts time.Time) Candidate {
	attrs := bgp.NewAttributeMap()
	attrs.Set(&bgp.Attribute{Code: bgp.AttrLocalPref, Value: bgp.LocalPrefValue(localPref)})
	asns := make([]uint32, asPathLen)
	for i := range asns {
		asns[i] = uint32(100 + i)
	}
	attrs.Set(&bgp.Attribute{Code: bgp.AttrASPath, Value: bgp.ASPathValue{Segments: []bgp.ASPathSegment{{Type: bgp.ASPathSequence, ASNs: asns}}}})
	attrs.Set(&bgp.Attribute{Code: bgp.AttrMED, Value: bgp.MedValue(med)})
	attrs.Set(&bgp.Attribute{Code: bgp.AttrOrigin, Value: bgp.OriginValue(bgp.OriginIGP)})

	return Candidate{
		Route: bgprib.BgpRoute{
			Attributes: attrs,
			Peer:       bgprib.PeerIdentity{Address: netip.MustParseAddr(peer)},
			Timestamp:  ts,
		},
		Kind: kind,
	}
}

func TestBest_LocalPrefWins(t *testing.T) {
	c := []Candidate{
		candidate("192.0.2.1", 100, 3, 0, EBGP, time.Unix(0, 0)),
		candidate("192.0.2.2", 200, 5, 0, EBGP, time.Unix(0, 0)),
	}
	if got := Best(c, false); got != 1 {
		t.Fatalf("got %d, want 1 (higher LOCAL_PREF)", got)
	}
}

func TestBest_ShorterASPathWins(t *testing.T) {
	c := []Candidate{
		candidate("192.0.2.1", 100, 5, 0, EBGP, time.Unix(0, 0)),
		candidate("192.0.2.2", 100, 2, 0, EBGP, time.Unix(0, 0)),
	}
	if got := Best(c, false); got != 1 {
		t.Fatalf("got %d, want 1 (shorter AS_PATH)", got)
	}
}

func TestBest_MEDOnlySameNeighborAS(t *testing.T) {
	c := []Candidate{
		candidate("192.0.2.1", 100, 1, 50, EBGP, time.Unix(0, 0)),
		candidate("192.0.2.2", 100, 1, 10, EBGP, time.Unix(0, 0)),
	}
	if got := Best(c, false); got != 1 {
		t.Fatalf("got %d, want 1 (lower MED, same neighbor AS)", got)
	}
}

func TestBest_EBGPOverIBGP(t *testing.T) {
	c := []Candidate{
		candidate("192.0.2.1", 100, 1, 0, IBGP, time.Unix(0, 0)),
		candidate("192.0.2.2", 100, 1, 0, EBGP, time.Unix(0, 0)),
	}
	if got := Best(c, false); got != 1 {
		t.Fatalf("got %d, want 1 (eBGP beats iBGP)", got)
	}
}

func TestBest_OlderWinsStabilityTiebreak(t *testing.T) {
	c := []Candidate{
		candidate("192.0.2.1", 100, 1, 0, EBGP, time.Unix(100, 0)),
		candidate("192.0.2.2", 100, 1, 0, EBGP, time.Unix(0, 0)),
	}
	if got := Best(c, false); got != 1 {
		t.Fatalf("got %d, want 1 (older route wins)", got)
	}
}

func TestBest_PreferDeterministicSkipsAgeTiebreak(t *testing.T) {
	c := []Candidate{
		candidate("192.0.2.1", 100, 1, 0, EBGP, time.Unix(100, 0)),
		candidate("192.0.2.2", 100, 1, 0, EBGP, time.Unix(0, 0)),
	}
	// Equal on everything but age and peer address; with preferDeterministic
	// the age tiebreak is skipped, falling to lower peer address.
	if got := Best(c, true); got != 0 {
		t.Fatalf("got %d, want 0 (lower peer address, age skipped)", got)
	}
}

func TestDecision_Run_WithdrawOnEmptyCandidates(t *testing.T) {
	rib := bgprib.NewLocRIB()
	prefix := bgp.Prefix{Addr: netip.MustParseAddr("10.0.0.0"), Len: 24}
	rib.Install(bgprib.BgpRoute{Prefix: prefix, Attributes: bgp.NewAttributeMap()})

	d := &Decision{LocRIB: rib}
	change := d.Run(prefix, nil)
	if change == nil || !change.Withdrawn {
		t.Fatalf("expected withdrawal, got %+v", change)
	}
	if _, ok := rib.Lookup(prefix); ok {
		t.Fatal("expected prefix removed from Loc-RIB")
	}
}

func TestDecision_Run_InstallsWinner(t *testing.T) {
	rib := bgprib.NewLocRIB()
	prefix := bgp.Prefix{Addr: netip.MustParseAddr("10.0.0.0"), Len: 24}
	d := &Decision{LocRIB: rib}

	c := candidate("192.0.2.2", 200, 1, 0, EBGP, time.Unix(0, 0))
	c.Route.Prefix = prefix
	change := d.Run(prefix, []Candidate{c})
	if change == nil || change.Withdrawn {
		t.Fatalf("expected install, got %+v", change)
	}
	got, ok := rib.Lookup(prefix)
	if !ok || !got.Best {
		t.Fatal("expected winner installed as best")
	}
}

func TestEligible_NoExportBlocksEBGP(t *testing.T) {
	attrs := bgp.NewAttributeMap()
	attrs.Set(&bgp.Attribute{Code: bgp.AttrCommunities, Value: bgp.CommunitiesValue{Values: []uint32{bgp.CommunityNoExport}}})
	route := bgprib.BgpRoute{Attributes: attrs, Peer: bgprib.PeerIdentity{Address: netip.MustParseAddr("192.0.2.1")}}

	peer := EgressPeer{Address: netip.MustParseAddr("192.0.2.2"), Kind: EBGP}
	if Eligible(route, EBGP, peer) {
		t.Fatal("expected NO_EXPORT to block eBGP advertisement")
	}
}

func TestEligible_NotBackToOrigin(t *testing.T) {
	attrs := bgp.NewAttributeMap()
	route := bgprib.BgpRoute{Attributes: attrs, Peer: bgprib.PeerIdentity{Address: netip.MustParseAddr("192.0.2.1")}}
	peer := EgressPeer{Address: netip.MustParseAddr("192.0.2.1"), Kind: EBGP}
	if Eligible(route, EBGP, peer) {
		t.Fatal("expected route not to be advertised back to its source peer")
	}
}

func TestEligible_IBGPNotReflectedToIBGPByDefault(t *testing.T) {
	attrs := bgp.NewAttributeMap()
	route := bgprib.BgpRoute{Attributes: attrs, Peer: bgprib.PeerIdentity{Address: netip.MustParseAddr("192.0.2.1")}}
	peer := EgressPeer{Address: netip.MustParseAddr("192.0.2.2"), Kind: IBGP}
	if Eligible(route, IBGP, peer) {
		t.Fatal("expected iBGP-learned route not re-advertised to iBGP peer without reflection")
	}
}

func TestTransform_EBGPPrependsASPathAndStripsLocalPref(t *testing.T) {
	attrs := bgp.NewAttributeMap()
	attrs.Set(&bgp.Attribute{Code: bgp.AttrASPath, Value: bgp.ASPathValue{Segments: []bgp.ASPathSegment{{Type: bgp.ASPathSequence, ASNs: []uint32{200}}}}})
	attrs.Set(&bgp.Attribute{Code: bgp.AttrLocalPref, Value: bgp.LocalPrefValue(150)})
	route := bgprib.BgpRoute{Attributes: attrs}

	peer := EgressPeer{Kind: EBGP, LocalInterface: netip.MustParseAddr("203.0.113.1")}
	out := Transform(route, 100, peer)

	path, _ := out.Attributes.ASPath()
	if got, _ := path.NeighborAS(); got != 100 {
		t.Fatalf("got neighbor AS %d, want 100 (local AS prepended)", got)
	}
	if _, ok := out.Attributes.Get(bgp.AttrLocalPref); ok {
		t.Fatal("expected LOCAL_PREF stripped for eBGP egress")
	}
	nh, _ := out.Attributes.NextHop()
	if nh != peer.LocalInterface {
		t.Fatalf("got next hop %v, want %v", nh, peer.LocalInterface)
	}
}

func TestTransform_IBGPDefaultsLocalPref(t *testing.T) {
	route := bgprib.BgpRoute{Attributes: bgp.NewAttributeMap()}
	peer := EgressPeer{Kind: IBGP, LocalInterface: netip.MustParseAddr("203.0.113.1")}
	out := Transform(route, 100, peer)
	if got := out.Attributes.LocalPref(); got != 100 {
		t.Fatalf("got LOCAL_PREF %d, want 100", got)
	}
}
