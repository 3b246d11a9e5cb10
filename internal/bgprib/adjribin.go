package bgprib

import "github.com/route-beacon/ribagent/internal/wire/bgp"

type adjInKey struct {
	prefix bgp.Prefix
	peer   string
}

// AdjRIBIn holds the routes received from every peer, one per (prefix,
// peer) pair (spec section 3).
type AdjRIBIn struct {
	routes map[adjInKey]*BgpRoute
}

func NewAdjRIBIn() *AdjRIBIn {
	return &AdjRIBIn{routes: make(map[adjInKey]*BgpRoute)}
}

func key(prefix bgp.Prefix, peer string) adjInKey { return adjInKey{prefix: prefix, peer: peer} }

// InsertOrReplace installs r, replacing any prior route for the same
// (prefix, peer) pair.
func (a *AdjRIBIn) InsertOrReplace(r BgpRoute) {
	cp := r
	a.routes[key(r.Prefix, r.Peer.Address.String())] = &cp
}

// Remove deletes the route for (prefix, peer), returning it if present.
func (a *AdjRIBIn) Remove(prefix bgp.Prefix, peer string) (BgpRoute, bool) {
	k := key(prefix, peer)
	r, ok := a.routes[k]
	if !ok {
		return BgpRoute{}, false
	}
	delete(a.routes, k)
	return *r, true
}

// Lookup returns every route held for prefix, across all peers.
func (a *AdjRIBIn) Lookup(prefix bgp.Prefix) []BgpRoute {
	var out []BgpRoute
	for k, r := range a.routes {
		if k.prefix == prefix {
			out = append(out, *r)
		}
	}
	return out
}

// RemoveAllFrom deletes every route learned from peer, returning the
// removed set (used on session teardown, spec section 7 TransportError
// handling, unless graceful restart applies).
func (a *AdjRIBIn) RemoveAllFrom(peer string) []BgpRoute {
	var removed []BgpRoute
	for k, r := range a.routes {
		if k.peer == peer {
			removed = append(removed, *r)
			delete(a.routes, k)
		}
	}
	return removed
}

// MarkStaleFrom flags every route from peer as stale in place, for RFC
// 4724 graceful restart (spec section 4.6): routes survive a session
// drop rather than being deleted immediately.
func (a *AdjRIBIn) MarkStaleFrom(peer string) []BgpRoute {
	var marked []BgpRoute
	for k, r := range a.routes {
		if k.peer == peer {
			r.Stale = true
			marked = append(marked, *r)
		}
	}
	return marked
}

// EvictStaleFrom removes every stale route from peer (restart-timer
// expiry, or post-End-of-RIB cleanup).
func (a *AdjRIBIn) EvictStaleFrom(peer string) []BgpRoute {
	var removed []BgpRoute
	for k, r := range a.routes {
		if k.peer == peer && r.Stale {
			removed = append(removed, *r)
			delete(a.routes, k)
		}
	}
	return removed
}

// ClearStaleFrom un-marks the route for (prefix, peer), if one is held (a
// fresh route for that prefix arrived before the restart timer or
// End-of-RIB fired). Other stale routes from peer stay stale.
func (a *AdjRIBIn) ClearStaleFrom(peer string, prefix bgp.Prefix) {
	if r, ok := a.routes[key(prefix, peer)]; ok {
		r.Stale = false
	}
}

// Iter calls fn for every route currently held.
func (a *AdjRIBIn) Iter(fn func(BgpRoute)) {
	for _, r := range a.routes {
		fn(*r)
	}
}

func (a *AdjRIBIn) Len() int { return len(a.routes) }
