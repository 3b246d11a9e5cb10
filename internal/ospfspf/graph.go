// Package ospfspf runs Dijkstra's shortest-path-first algorithm over an
// area's link-state database (spec section 4.9). The graph of routers
// and transit-network nodes is rebuilt from scratch on every run and
// held in a single arena, referenced by integer index, so the cyclic
// router<->network references never need a pointer-based structure
// (spec section 9's "arena + integer indices" design note).
package ospfspf

import "github.com/route-beacon/ribagent/internal/wire/ospf"

// NodeKind distinguishes a router vertex from a synthetic
// transit-network or stub-network vertex.
type NodeKind int

const (
	NodeRouter NodeKind = iota
	NodeTransitNetwork
	NodeStubNetwork
)

// NodeID identifies a router by its router id, or a synthetic network
// node by (its DR interface address for transit, or the stub network
// address for stub).
type NodeID struct {
	Kind NodeKind
	ID   uint32
	Mask uint32 // stub networks only: distinguishes networks sharing an address across masks
}

// edge is one directed link out of a node, with its metric.
type edge struct {
	to     int // arena index
	metric uint32
}

// node is one arena-allocated graph vertex.
type node struct {
	id    NodeID
	edges []edge
}

// Graph is the arena: nodes indexed by position, referenced by int.
type Graph struct {
	nodes []node
	index map[NodeID]int
}

func newGraph() *Graph {
	return &Graph{index: make(map[NodeID]int)}
}

func (g *Graph) nodeIndex(id NodeID) int {
	if i, ok := g.index[id]; ok {
		return i
	}
	i := len(g.nodes)
	g.nodes = append(g.nodes, node{id: id})
	g.index[id] = i
	return i
}

func (g *Graph) addEdge(from, to NodeID, metric uint32) {
	fi := g.nodeIndex(from)
	ti := g.nodeIndex(to)
	g.nodes[fi].edges = append(g.nodes[fi].edges, edge{to: ti, metric: metric})
}

// BuildGraph constructs the SPF graph from every Router-LSA and
// Network-LSA in headers' bodies (spec section 4.9):
//   - each router is a node; each Router-LSA link contributes an edge
//   - a transit-network link produces an edge to a synthetic network
//     node keyed by the link's DR interface address (LinkID on a
//     LinkTypeTransit entry); the corresponding Network-LSA attaches
//     each listed router back to that node at weight 0
//   - a stub-network link produces an edge to a synthetic stub node at
//     the link's metric
//   - point-to-point links produce direct router-to-router edges
func BuildGraph(lsas []ospf.LSA) (*Graph, error) {
	g := newGraph()
	for _, lsa := range lsas {
		if lsa.Header.Type != ospf.LSATypeRouter {
			continue
		}
		body, err := ospf.DecodeRouterLSABody(lsa.Body)
		if err != nil {
			return nil, err
		}
		router := NodeID{Kind: NodeRouter, ID: lsa.Header.AdvertisingRouter}
		for _, link := range body.Links {
			switch link.Type {
			case ospf.LinkTypePointToPoint:
				g.addEdge(router, NodeID{Kind: NodeRouter, ID: link.LinkID}, uint32(link.Metric))
			case ospf.LinkTypeTransit:
				net := NodeID{Kind: NodeTransitNetwork, ID: link.LinkID}
				g.addEdge(router, net, uint32(link.Metric))
			case ospf.LinkTypeStub:
				stub := NodeID{Kind: NodeStubNetwork, ID: link.LinkID, Mask: link.LinkData}
				g.addEdge(router, stub, uint32(link.Metric))
			}
		}
	}

	for _, lsa := range lsas {
		if lsa.Header.Type != ospf.LSATypeNetwork {
			continue
		}
		body, err := ospf.DecodeNetworkLSABody(lsa.Body)
		if err != nil {
			return nil, err
		}
		net := NodeID{Kind: NodeTransitNetwork, ID: lsa.Header.LinkStateID}
		for _, routerID := range body.AttachedRouters {
			g.addEdge(net, NodeID{Kind: NodeRouter, ID: routerID}, 0)
		}
	}

	return g, nil
}
