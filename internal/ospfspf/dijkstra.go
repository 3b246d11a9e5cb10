package ospfspf

import "container/heap"

// Route is one computed destination: the synthetic or router node
// reached, its total cost, and the first-hop router on the shortest
// path from the local router (spec section 4.9 — "the next hop is the
// first router on the shortest path, not the local router").
type Route struct {
	Destination NodeID
	Cost        uint32
	NextHop     uint32 // router id of the first hop
}

type heapItem struct {
	node int
	cost uint32
}

type minHeap []heapItem

func (h minHeap) Len() int            { return len(h) }
func (h minHeap) Less(i, j int) bool  { return h[i].cost < h[j].cost }
func (h minHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *minHeap) Push(x interface{}) { *h = append(*h, x.(heapItem)) }
func (h *minHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Run computes single-source shortest paths from localRouterID over g
// (spec section 4.9). Ties in cost are left as whichever path Dijkstra
// settles first — this spec treats only the first-found path, not
// equal-cost multipath.
func Run(g *Graph, localRouterID uint32) []Route {
	source, ok := g.index[NodeID{Kind: NodeRouter, ID: localRouterID}]
	if !ok {
		return nil
	}

	const unreached = ^uint32(0)
	dist := make([]uint32, len(g.nodes))
	nextHop := make([]uint32, len(g.nodes))
	settled := make([]bool, len(g.nodes))
	for i := range dist {
		dist[i] = unreached
	}
	dist[source] = 0

	h := &minHeap{{node: source, cost: 0}}
	heap.Init(h)

	for h.Len() > 0 {
		top := heap.Pop(h).(heapItem)
		u := top.node
		if settled[u] {
			continue
		}
		settled[u] = true

		for _, e := range g.nodes[u].edges {
			if settled[e.to] {
				continue
			}
			newCost := dist[u] + e.metric
			if dist[e.to] != unreached && newCost >= dist[e.to] {
				continue
			}
			dist[e.to] = newCost
			// Propagate the first router already found along this path;
			// if none has been found yet (the path so far is only
			// synthetic network nodes, including the source itself),
			// this edge's destination becomes that first router once
			// it lands on one.
			known := uint32(0)
			if u != source {
				known = nextHop[u]
			}
			if known == 0 && g.nodes[e.to].id.Kind == NodeRouter {
				known = g.nodes[e.to].id.ID
			}
			nextHop[e.to] = known
			heap.Push(h, heapItem{node: e.to, cost: newCost})
		}
	}

	var routes []Route
	for i, n := range g.nodes {
		if i == source || dist[i] == unreached {
			continue
		}
		routes = append(routes, Route{Destination: n.id, Cost: dist[i], NextHop: nextHop[i]})
	}
	return routes
}
