// Package fib implements the FIB installer collaborator of spec section 6:
// a narrow interface the agent calls to install or withdraw forwarding
// state, plus the Manager that sits in front of it and enforces the
// shared-resource policy of spec section 5 (idempotent install,
// last-writer-wins on conflicting next hops, source-tag precedence).
//
// The FIB installer is the only state OSPF and BGP engines touch
// concurrently, so unlike internal/bgpsession and internal/ospfadjacency
// (single-owner-goroutine, no mutex) Manager guards its bookkeeping with a
// mutex.
package fib

import (
	"context"
	"fmt"
	"net/netip"
	"sync"

	"go.uber.org/zap"

	"github.com/route-beacon/ribagent/internal/metrics"
	"github.com/route-beacon/ribagent/internal/rerrors"
)

// SourceTag identifies which protocol is asking to own a FIB entry.
type SourceTag string

const (
	SourceOSPF   SourceTag = "ospf"
	SourceBGP    SourceTag = "bgp"
	SourceStatic SourceTag = "static"
)

// Route is one install request: a prefix, its next hop, the protocol
// that computed it, and that protocol's metric for tie-breaking against
// a competing source at the same prefix.
type Route struct {
	Prefix  netip.Prefix
	NextHop netip.Addr
	Source  SourceTag
	Metric  uint32
}

// Installer is the collaborator contract of spec section 6: install and
// remove, both best-effort. The agent never aborts on an Installer error;
// it logs and continues (spec section 7, FibError).
type Installer interface {
	Install(ctx context.Context, route Route) error
	Remove(ctx context.Context, prefix netip.Prefix) error
}

// DefaultPrecedence is the tie-break order Manager applies when two
// sources hold conflicting next hops for the same prefix at equal metric:
// static wins over both dynamic protocols, and OSPF wins over BGP, per
// spec section 5 ("source-tag precedence (OSPF-best over BGP for
// equal-cost, configurable)"). Index 0 is highest precedence.
var DefaultPrecedence = []SourceTag{SourceStatic, SourceOSPF, SourceBGP}

// Manager is the agent-facing front end over an Installer: it tracks what
// it last told the backend for each prefix so it can make Install
// idempotent and resolve conflicting owners by precedence and metric
// before it is a no-op, before it touches the backend at all.
type Manager struct {
	mu         sync.Mutex
	installed  map[netip.Prefix]Route
	backend    Installer
	precedence map[SourceTag]int
	logger     *zap.Logger
}

// NewManager builds a Manager. A nil precedence uses DefaultPrecedence;
// a nil logger uses zap.NewNop().
func NewManager(backend Installer, precedence []SourceTag, logger *zap.Logger) *Manager {
	if precedence == nil {
		precedence = DefaultPrecedence
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	rank := make(map[SourceTag]int, len(precedence))
	for i, s := range precedence {
		rank[s] = i
	}
	return &Manager{
		installed:  make(map[netip.Prefix]Route),
		backend:    backend,
		precedence: rank,
		logger:     logger,
	}
}

// Install applies route, unless an existing entry for the same prefix is
// identical (idempotent no-op), held by a higher-precedence source (at any
// metric), or held by a source of equal precedence at a strictly better
// metric. A losing request is simply dropped; it does
// not touch the backend and is not an error, since the winning source's
// entry remains correct.
//
// On an eventual tie in both precedence and metric, the new request wins
// (last-writer-wins), matching spec section 5.
func (m *Manager) Install(ctx context.Context, route Route) error {
	m.mu.Lock()
	existing, ok := m.installed[route.Prefix]
	if ok && existing == route {
		m.mu.Unlock()
		return nil
	}
	if ok && m.loses(route, existing) {
		m.mu.Unlock()
		m.logger.Debug("fib install suppressed by precedence",
			zap.String("prefix", route.Prefix.String()),
			zap.String("requested_source", string(route.Source)),
			zap.String("installed_source", string(existing.Source)))
		metrics.FibOperationsTotal.WithLabelValues("install", string(route.Source), "suppressed").Inc()
		return nil
	}
	m.installed[route.Prefix] = route
	m.mu.Unlock()

	if err := m.backend.Install(ctx, route); err != nil {
		m.logger.Warn("fib install failed",
			zap.String("prefix", route.Prefix.String()),
			zap.String("next_hop", route.NextHop.String()),
			zap.String("source", string(route.Source)),
			zap.Error(err))
		metrics.FibOperationsTotal.WithLabelValues("install", string(route.Source), "error").Inc()
		return fmt.Errorf("%w: installing %s via %s: %v", rerrors.ErrFib, route.Prefix, route.Source, err)
	}
	metrics.FibOperationsTotal.WithLabelValues("install", string(route.Source), "ok").Inc()
	return nil
}

// loses reports whether candidate is out-ranked by current: a strictly
// lower precedence rank (index 0 = highest) always loses; at equal
// precedence, a strictly worse metric loses; everything else (including a
// full tie) is a win for candidate, since ties are last-writer-wins.
func (m *Manager) loses(candidate, current Route) bool {
	cr, cok := m.precedence[candidate.Source]
	xr, xok := m.precedence[current.Source]
	if !cok {
		cr = len(m.precedence)
	}
	if !xok {
		xr = len(m.precedence)
	}
	if cr != xr {
		return cr > xr
	}
	return candidate.Metric > current.Metric
}

// Remove withdraws the entry for prefix if and only if it is currently
// owned by source. A caller whose route was already displaced by a
// higher-precedence source (and so was never actually installed, or was
// overwritten) gets a harmless no-op rather than accidentally withdrawing
// someone else's forwarding state; this sharpens the spec's literal
// `remove(prefix)` contract to stay correct under the same shared-resource
// policy Install enforces.
func (m *Manager) Remove(ctx context.Context, prefix netip.Prefix, source SourceTag) error {
	m.mu.Lock()
	existing, ok := m.installed[prefix]
	if !ok || existing.Source != source {
		m.mu.Unlock()
		return nil
	}
	delete(m.installed, prefix)
	m.mu.Unlock()

	if err := m.backend.Remove(ctx, prefix); err != nil {
		m.logger.Warn("fib remove failed",
			zap.String("prefix", prefix.String()),
			zap.String("source", string(source)),
			zap.Error(err))
		metrics.FibOperationsTotal.WithLabelValues("remove", string(source), "error").Inc()
		return fmt.Errorf("%w: removing %s: %v", rerrors.ErrFib, prefix, err)
	}
	metrics.FibOperationsTotal.WithLabelValues("remove", string(source), "ok").Inc()
	return nil
}

// Lookup returns the route currently tracked for prefix, if any.
func (m *Manager) Lookup(prefix netip.Prefix) (Route, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.installed[prefix]
	return r, ok
}
