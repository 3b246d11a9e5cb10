package bgprib

import (
	"net/netip"
	"testing"
	"time"

	"github.com/route-beacon/ribagent/internal/wire/bgp"
)

func testRoute(prefix string, peer string) BgpRoute {
	return BgpRoute{
		Prefix:     bgp.Prefix{Addr: netip.MustParsePrefix(prefix).Addr(), Len: netip.MustParsePrefix(prefix).Bits()},
		Attributes: bgp.NewAttributeMap(),
		Peer:       PeerIdentity{Address: netip.MustParseAddr(peer)},
		Source:     SourceFromPeer,
		Timestamp:  time.Unix(0, 0),
	}
}

func TestAdjRIBIn_InsertLookupRemove(t *testing.T) {
	a := NewAdjRIBIn()
	r := testRoute("10.0.0.0/24", "192.0.2.2")
	a.InsertOrReplace(r)

	got := a.Lookup(r.Prefix)
	if len(got) != 1 {
		t.Fatalf("got %d routes, want 1", len(got))
	}

	removed, ok := a.Remove(r.Prefix, "192.0.2.2")
	if !ok || removed.Prefix != r.Prefix {
		t.Fatalf("remove failed: %v, %v", removed, ok)
	}
	if len(a.Lookup(r.Prefix)) != 0 {
		t.Fatal("expected route gone after remove")
	}
}

func TestAdjRIBIn_InsertReplacesExisting(t *testing.T) {
	a := NewAdjRIBIn()
	a.InsertOrReplace(testRoute("10.0.0.0/24", "192.0.2.2"))
	r2 := testRoute("10.0.0.0/24", "192.0.2.2")
	r2.Timestamp = time.Unix(100, 0)
	a.InsertOrReplace(r2)

	got := a.Lookup(r2.Prefix)
	if len(got) != 1 || !got[0].Timestamp.Equal(r2.Timestamp) {
		t.Fatalf("got %+v", got)
	}
}

func TestAdjRIBIn_RemoveAllFrom(t *testing.T) {
	a := NewAdjRIBIn()
	a.InsertOrReplace(testRoute("10.0.0.0/24", "192.0.2.2"))
	a.InsertOrReplace(testRoute("10.0.1.0/24", "192.0.2.2"))
	a.InsertOrReplace(testRoute("10.0.2.0/24", "192.0.2.3"))

	removed := a.RemoveAllFrom("192.0.2.2")
	if len(removed) != 2 {
		t.Fatalf("got %d removed, want 2", len(removed))
	}
	if a.Len() != 1 {
		t.Fatalf("got %d remaining, want 1", a.Len())
	}
}

func TestAdjRIBIn_StaleLifecycle(t *testing.T) {
	a := NewAdjRIBIn()
	r := testRoute("10.0.0.0/24", "192.0.2.2")
	a.InsertOrReplace(r)

	marked := a.MarkStaleFrom("192.0.2.2")
	if len(marked) != 1 || !marked[0].Stale {
		t.Fatalf("got %+v", marked)
	}

	a.ClearStaleFrom("192.0.2.2", r.Prefix)
	got := a.Lookup(r.Prefix)
	if got[0].Stale {
		t.Fatal("expected stale flag cleared")
	}

	a.MarkStaleFrom("192.0.2.2")
	evicted := a.EvictStaleFrom("192.0.2.2")
	if len(evicted) != 1 {
		t.Fatalf("got %d evicted, want 1", len(evicted))
	}
	if a.Len() != 0 {
		t.Fatal("expected route evicted")
	}
}
