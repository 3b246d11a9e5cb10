package ospfspf

import (
	"testing"

	"github.com/route-beacon/ribagent/internal/wire/ospf"
)

func TestRun_DirectRouterToRouter(t *testing.T) {
	lsas := []ospf.LSA{
		routerLSA(1, []ospf.RouterLink{{Type: ospf.LinkTypePointToPoint, LinkID: 2, Metric: 10}}),
		routerLSA(2, []ospf.RouterLink{{Type: ospf.LinkTypePointToPoint, LinkID: 1, Metric: 10}}),
	}
	g, err := BuildGraph(lsas)
	if err != nil {
		t.Fatal(err)
	}
	routes := Run(g, 1)
	if len(routes) != 1 {
		t.Fatalf("got %d routes, want 1", len(routes))
	}
	r := routes[0]
	if r.Destination.ID != 2 || r.Cost != 10 || r.NextHop != 2 {
		t.Fatalf("got %+v, want router 2 at cost 10 via next hop 2", r)
	}
}

func TestRun_MultiHopPicksShortestPath(t *testing.T) {
	// 1 -(10)- 2 -(10)- 3, and 1 -(100)- 3 directly. Shortest to 3 is via 2.
	lsas := []ospf.LSA{
		routerLSA(1, []ospf.RouterLink{
			{Type: ospf.LinkTypePointToPoint, LinkID: 2, Metric: 10},
			{Type: ospf.LinkTypePointToPoint, LinkID: 3, Metric: 100},
		}),
		routerLSA(2, []ospf.RouterLink{
			{Type: ospf.LinkTypePointToPoint, LinkID: 1, Metric: 10},
			{Type: ospf.LinkTypePointToPoint, LinkID: 3, Metric: 10},
		}),
		routerLSA(3, []ospf.RouterLink{
			{Type: ospf.LinkTypePointToPoint, LinkID: 1, Metric: 100},
			{Type: ospf.LinkTypePointToPoint, LinkID: 2, Metric: 10},
		}),
	}
	g, err := BuildGraph(lsas)
	if err != nil {
		t.Fatal(err)
	}
	routes := Run(g, 1)
	var to3 *Route
	for i := range routes {
		if routes[i].Destination.ID == 3 && routes[i].Destination.Kind == NodeRouter {
			to3 = &routes[i]
		}
	}
	if to3 == nil {
		t.Fatal("expected a route to router 3")
	}
	if to3.Cost != 20 || to3.NextHop != 2 {
		t.Fatalf("got cost=%d nextHop=%d, want cost=20 nextHop=2 (via router 2)", to3.Cost, to3.NextHop)
	}
}

func TestRun_TransitNetworkNextHopIsAttachedRouter(t *testing.T) {
	lsas := []ospf.LSA{
		routerLSA(1, []ospf.RouterLink{{Type: ospf.LinkTypeTransit, LinkID: 100, Metric: 5}}),
		routerLSA(2, []ospf.RouterLink{{Type: ospf.LinkTypeTransit, LinkID: 100, Metric: 5}}),
		networkLSA(100, []uint32{1, 2}),
	}
	g, err := BuildGraph(lsas)
	if err != nil {
		t.Fatal(err)
	}
	routes := Run(g, 1)
	var to2 *Route
	for i := range routes {
		if routes[i].Destination.Kind == NodeRouter && routes[i].Destination.ID == 2 {
			to2 = &routes[i]
		}
	}
	if to2 == nil {
		t.Fatal("expected a route to router 2 via the transit network")
	}
	if to2.Cost != 5 || to2.NextHop != 2 {
		t.Fatalf("got cost=%d nextHop=%d, want cost=5 nextHop=2", to2.Cost, to2.NextHop)
	}
}

func TestRun_UnreachableRouterOmitted(t *testing.T) {
	lsas := []ospf.LSA{
		routerLSA(1, nil),
		routerLSA(2, nil), // isolated, no links at all
	}
	g, err := BuildGraph(lsas)
	if err != nil {
		t.Fatal(err)
	}
	routes := Run(g, 1)
	for _, r := range routes {
		if r.Destination.ID == 2 {
			t.Fatal("router 2 has no links and must be unreachable")
		}
	}
}

func TestRun_UnknownSourceReturnsNil(t *testing.T) {
	g, _ := BuildGraph(nil)
	if routes := Run(g, 999); routes != nil {
		t.Fatalf("got %v, want nil for an unknown source router", routes)
	}
}
