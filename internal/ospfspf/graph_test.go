package ospfspf

import (
	"testing"

	"github.com/route-beacon/ribagent/internal/wire/ospf"
)

func routerLSA(routerID uint32, links []ospf.RouterLink) ospf.LSA {
	body := ospf.EncodeRouterLSABody(ospf.RouterLSABody{Links: links})
	h := ospf.LSAHeader{Type: ospf.LSATypeRouter, LinkStateID: routerID, AdvertisingRouter: routerID}
	return ospf.LSA{Header: h, Body: body}
}

func networkLSA(networkID uint32, attached []uint32) ospf.LSA {
	body := ospf.EncodeNetworkLSABody(ospf.NetworkLSABody{AttachedRouters: attached})
	h := ospf.LSAHeader{Type: ospf.LSATypeNetwork, LinkStateID: networkID, AdvertisingRouter: attached[0]}
	return ospf.LSA{Header: h, Body: body}
}

func TestBuildGraph_PointToPointEdge(t *testing.T) {
	lsas := []ospf.LSA{
		routerLSA(1, []ospf.RouterLink{{Type: ospf.LinkTypePointToPoint, LinkID: 2, Metric: 10}}),
		routerLSA(2, []ospf.RouterLink{{Type: ospf.LinkTypePointToPoint, LinkID: 1, Metric: 10}}),
	}
	g, err := BuildGraph(lsas)
	if err != nil {
		t.Fatal(err)
	}
	i1 := g.index[NodeID{Kind: NodeRouter, ID: 1}]
	if len(g.nodes[i1].edges) != 1 || g.nodes[i1].edges[0].metric != 10 {
		t.Fatalf("got edges %v, want one edge of metric 10", g.nodes[i1].edges)
	}
}

func TestBuildGraph_TransitNetworkZeroWeightBack(t *testing.T) {
	lsas := []ospf.LSA{
		routerLSA(1, []ospf.RouterLink{{Type: ospf.LinkTypeTransit, LinkID: 100, Metric: 5}}),
		networkLSA(100, []uint32{1, 2}),
	}
	g, err := BuildGraph(lsas)
	if err != nil {
		t.Fatal(err)
	}
	netIdx := g.index[NodeID{Kind: NodeTransitNetwork, ID: 100}]
	for _, e := range g.nodes[netIdx].edges {
		if e.metric != 0 {
			t.Fatalf("expected network-to-router edges at weight 0, got %d", e.metric)
		}
	}
	if len(g.nodes[netIdx].edges) != 2 {
		t.Fatalf("got %d edges from network node, want 2", len(g.nodes[netIdx].edges))
	}
}

func TestBuildGraph_StubNetwork(t *testing.T) {
	lsas := []ospf.LSA{
		routerLSA(1, []ospf.RouterLink{{Type: ospf.LinkTypeStub, LinkID: 0xC0000200, LinkData: 0xFFFFFF00, Metric: 7}}),
	}
	g, err := BuildGraph(lsas)
	if err != nil {
		t.Fatal(err)
	}
	stubID := NodeID{Kind: NodeStubNetwork, ID: 0xC0000200, Mask: 0xFFFFFF00}
	idx, ok := g.index[stubID]
	if !ok {
		t.Fatal("expected stub network node created")
	}
	i1 := g.index[NodeID{Kind: NodeRouter, ID: 1}]
	found := false
	for _, e := range g.nodes[i1].edges {
		if e.to == idx && e.metric == 7 {
			found = true
		}
	}
	if !found {
		t.Fatal("expected router-to-stub edge at the link's metric")
	}
}
