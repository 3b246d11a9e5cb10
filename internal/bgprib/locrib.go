package bgprib

import "github.com/route-beacon/ribagent/internal/wire/bgp"

// LocRIB holds the single best route per prefix (spec section 3). It is
// owned exclusively by the decision process (internal/bgpdecision).
type LocRIB struct {
	routes map[bgp.Prefix]*BgpRoute
}

func NewLocRIB() *LocRIB {
	return &LocRIB{routes: make(map[bgp.Prefix]*BgpRoute)}
}

// Install sets the best route for r.Prefix, returning the previous best
// if one existed.
func (l *LocRIB) Install(r BgpRoute) (BgpRoute, bool) {
	prev, had := l.routes[r.Prefix]
	cp := r
	cp.Best = true
	l.routes[r.Prefix] = &cp
	if had {
		return *prev, true
	}
	return BgpRoute{}, false
}

// Remove deletes the best route for prefix, returning it if present.
func (l *LocRIB) Remove(prefix bgp.Prefix) (BgpRoute, bool) {
	prev, ok := l.routes[prefix]
	if !ok {
		return BgpRoute{}, false
	}
	delete(l.routes, prefix)
	return *prev, true
}

func (l *LocRIB) Lookup(prefix bgp.Prefix) (BgpRoute, bool) {
	r, ok := l.routes[prefix]
	if !ok {
		return BgpRoute{}, false
	}
	return *r, true
}

func (l *LocRIB) Iter(fn func(BgpRoute)) {
	for _, r := range l.routes {
		fn(*r)
	}
}

func (l *LocRIB) Len() int { return len(l.routes) }
