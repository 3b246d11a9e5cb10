package bgprib

import "github.com/route-beacon/ribagent/internal/wire/bgp"

// AdjRIBOut holds, per peer, the route as it should appear on the wire to
// that peer after egress transforms (spec section 3). One per (peer,
// prefix).
type AdjRIBOut struct {
	perPeer map[string]map[bgp.Prefix]*BgpRoute
}

func NewAdjRIBOut() *AdjRIBOut {
	return &AdjRIBOut{perPeer: make(map[string]map[bgp.Prefix]*BgpRoute)}
}

func (o *AdjRIBOut) forPeer(peer string) map[bgp.Prefix]*BgpRoute {
	m, ok := o.perPeer[peer]
	if !ok {
		m = make(map[bgp.Prefix]*BgpRoute)
		o.perPeer[peer] = m
	}
	return m
}

// InsertOrReplace records the route advertised to peer for r.Prefix.
func (o *AdjRIBOut) InsertOrReplace(peer string, r BgpRoute) {
	cp := r
	o.forPeer(peer)[r.Prefix] = &cp
}

// Remove deletes the advertised route for (peer, prefix), returning it
// if present — callers use this when a route is withdrawn from a peer.
func (o *AdjRIBOut) Remove(peer string, prefix bgp.Prefix) (BgpRoute, bool) {
	m := o.forPeer(peer)
	r, ok := m[prefix]
	if !ok {
		return BgpRoute{}, false
	}
	delete(m, prefix)
	return *r, true
}

func (o *AdjRIBOut) Lookup(peer string, prefix bgp.Prefix) (BgpRoute, bool) {
	m, ok := o.perPeer[peer]
	if !ok {
		return BgpRoute{}, false
	}
	r, ok := m[prefix]
	if !ok {
		return BgpRoute{}, false
	}
	return *r, true
}

// RemovePeer deletes all state for peer (session teardown).
func (o *AdjRIBOut) RemovePeer(peer string) {
	delete(o.perPeer, peer)
}

func (o *AdjRIBOut) IterPeer(peer string, fn func(BgpRoute)) {
	for _, r := range o.perPeer[peer] {
		fn(*r)
	}
}
