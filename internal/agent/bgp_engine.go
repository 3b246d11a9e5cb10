package agent

import (
	"context"
	"fmt"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/route-beacon/ribagent/internal/bgpadvanced"
	"github.com/route-beacon/ribagent/internal/bgpdecision"
	"github.com/route-beacon/ribagent/internal/bgpfsm"
	"github.com/route-beacon/ribagent/internal/bgprib"
	"github.com/route-beacon/ribagent/internal/bgpsession"
	"github.com/route-beacon/ribagent/internal/config"
	"github.com/route-beacon/ribagent/internal/diagnostics"
	"github.com/route-beacon/ribagent/internal/events"
	"github.com/route-beacon/ribagent/internal/fib"
	"github.com/route-beacon/ribagent/internal/metrics"
	"github.com/route-beacon/ribagent/internal/transport"
	"github.com/route-beacon/ribagent/internal/wire/bgp"
)

// restartSweepInterval governs how often a pending graceful-restart timer
// (RFC 4724) is checked for expiry; there is no per-timer callback in
// internal/bgpadvanced.RestartState, so the engine polls.
const restartSweepInterval = 1 * time.Second

// bgpEngineEventKind distinguishes what reached the engine's single event
// channel: every internal/bgpsession.Peer runs its own goroutine, so their
// Callbacks only ever build an immutable bgpEngineEvent and post it here —
// internal/bgpdecision's LocRIB is touched from this one goroutine only,
// per spec section 5's single-owner discipline for the decision process.
type bgpEngineEventKind int

const (
	evBGPUpdate bgpEngineEventKind = iota
	evBGPStateChange
	evBGPSessionDown
	evBGPRouteRefresh
	evRestartSweep
)

type bgpEngineEvent struct {
	kind       bgpEngineEventKind
	peer       *bgpPeerHandle
	peerID     bgprib.PeerIdentity
	routes     []bgprib.BgpRoute
	withdrawn  []bgp.Prefix
	state      bgpfsm.State
	restarting bool
	afi        uint16
	safi       uint8
}

// bgpPeerHandle is one configured neighbor's full bookkeeping: the
// session runtime from internal/bgpsession plus the egress facts and
// per-peer advanced-feature state the engine needs once routes are ready
// to advertise.
type bgpPeerHandle struct {
	cfg     config.PeerConfig
	session *bgpsession.Peer
	addr    netip.Addr
	kind    bgpdecision.PeerKind
	restart *bgpadvanced.RestartState
	rpki    bool
}

// bgpEngine owns one router's whole BGP speaker: every configured Peer,
// the shared RIB structures of internal/bgprib, and the decision process
// of internal/bgpdecision. It mirrors ospfEngine's shape: background
// goroutines (one internal/bgpsession.Peer.Run per neighbor, plus a
// restart-sweep ticker) only ever produce bgpEngineEvent values; all RIB
// mutation happens inside the one goroutine running Run's dispatch loop.
type bgpEngine struct {
	cfg      config.BGPConfig
	routerID netip.Addr
	local    netip.Addr

	tcp    transport.TCP
	logger *zap.Logger
	fib    *fib.Manager
	ctx    context.Context

	adjIn    *bgprib.AdjRIBIn
	locRIB   *bgprib.LocRIB
	adjOut   *bgprib.AdjRIBOut
	decision *bgpdecision.Decision

	damping   *bgpadvanced.Damping
	reflector *bgpadvanced.Reflector
	roaTable  *bgpadvanced.ROATable

	// flowspec holds the RFC 5575 rule matcher for any peer configured
	// with enable_flowspec, built so it is ready for a control-plane
	// rule source; this core's wire/bgp MP_REACH_NLRI decode always runs
	// DecodeNLRIList, the unicast prefix format, and cannot parse
	// FlowSpec's component-TLV NLRI encoding (RFC 5575 section 4), so no
	// wire path feeds it yet. See DESIGN.md.
	flowspec *bgpadvanced.FlowspecTable

	peers map[netip.Addr]*bgpPeerHandle

	hook events.Hook
	diag *diagnostics.Buffer

	events chan bgpEngineEvent
	done   chan struct{}
}

// newBGPEngine builds a bgpEngine and all of its Peers, but starts
// nothing — Run dials/listens every peer and begins processing events.
// hook receives InstallBest/WithdrawBest/AdjacencyChange events for the
// journal and event bus; diag, if non-nil, captures raw wire messages
// for offline debugging. Either may be a disabled no-op implementation.
func newBGPEngine(cfg config.BGPConfig, routerID netip.Addr, tcp transport.TCP, fibMgr *fib.Manager, hook events.Hook, diag *diagnostics.Buffer, logger *zap.Logger) (*bgpEngine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if hook == nil {
		hook = events.NopHook{}
	}

	var damping *bgpadvanced.Damping
	var reflector *bgpadvanced.Reflector
	for _, p := range cfg.Peers {
		if p.EnableFlapDamping && damping == nil {
			damping = bgpadvanced.NewDamping(bgpadvanced.DefaultDampingConfig())
		}
	}
	if cfg.RouteReflector {
		// CLUSTER_ID accepts the same dotted-quad-or-integer forms as an
		// OSPF router id, so parseOSPFID (defined in ospf_engine.go) is
		// reused rather than duplicated here.
		clusterID, err := parseOSPFID(cfg.ClusterID)
		if err != nil {
			return nil, fmt.Errorf("%w: bgp cluster_id %q: %v", config.ErrConfiguration, cfg.ClusterID, err)
		}
		reflector = &bgpadvanced.Reflector{RouterID: routerID, ClusterID: clusterID}
	}

	locRIB := bgprib.NewLocRIB()
	e := &bgpEngine{
		cfg:       cfg,
		routerID:  routerID,
		local:     routerID,
		tcp:       tcp,
		logger:    logger,
		fib:       fibMgr,
		adjIn:     bgprib.NewAdjRIBIn(),
		locRIB:    locRIB,
		adjOut:    bgprib.NewAdjRIBOut(),
		decision:  &bgpdecision.Decision{LocRIB: locRIB, LocalASN: cfg.LocalAS},
		damping:   damping,
		reflector: reflector,
		roaTable:  bgpadvanced.NewROATable(),
		flowspec:  bgpadvanced.NewFlowspecTable(),
		peers:     make(map[netip.Addr]*bgpPeerHandle),
		hook:      hook,
		diag:      diag,
		events:    make(chan bgpEngineEvent, 64),
		done:      make(chan struct{}),
	}

	for _, pc := range cfg.Peers {
		addr, err := netip.ParseAddr(pc.Address)
		if err != nil {
			return nil, fmt.Errorf("%w: bgp peer address %q: %v", config.ErrConfiguration, pc.Address, err)
		}
		kind := bgpdecision.EBGP
		if pc.PeerAS == cfg.LocalAS {
			kind = bgpdecision.IBGP
		}
		var restart *bgpadvanced.RestartState
		if pc.EnableGracefulRestart {
			restart = bgpadvanced.NewRestartState(0)
		}
		handle := &bgpPeerHandle{cfg: pc, addr: addr, kind: kind, restart: restart, rpki: pc.EnableRPKI}
		local := bgpsession.LocalInfo{
			RouterID:         routerID,
			LocalAS:          cfg.LocalAS,
			HoldTime:         cfg.HoldTimeDuration(),
			ConnectRetryTime: cfg.ConnectRetryDuration(),
			Address:          routerID,
		}
		var peerDamping *bgpadvanced.Damping
		if pc.EnableFlapDamping {
			peerDamping = damping
		}
		handle.session = bgpsession.NewPeer(pc, local, tcp, logger, peerDamping, bgpsession.Callbacks{
			OnUpdate: func(peer bgprib.PeerIdentity, routes []bgprib.BgpRoute, withdrawn []bgp.Prefix) {
				e.postEvent(bgpEngineEvent{kind: evBGPUpdate, peer: handle, peerID: peer, routes: routes, withdrawn: withdrawn})
			},
			OnStateChange: func(_ netip.Addr, state bgpfsm.State) {
				metrics.BGPFSMTransitionsTotal.WithLabelValues(addr.String(), state.String()).Inc()
				metrics.BGPSessionState.WithLabelValues(addr.String()).Set(float64(state))
				e.hook.AdjacencyChange(events.AdjacencyEvent{Protocol: "bgp", Neighbor: addr.String(), State: state.String(), Timestamp: time.Now()})
				e.postEvent(bgpEngineEvent{kind: evBGPStateChange, peer: handle, state: state})
			},
			OnSessionDown: func(_ netip.Addr, restarting bool) {
				e.postEvent(bgpEngineEvent{kind: evBGPSessionDown, peer: handle, restarting: restarting})
			},
			OnRouteRefresh: func(_ netip.Addr, afi uint16, safi uint8) {
				e.postEvent(bgpEngineEvent{kind: evBGPRouteRefresh, peer: handle, afi: afi, safi: safi})
			},
			OnRawMessage: func(_ netip.Addr, raw []byte) {
				if e.diag != nil {
					e.diag.Capture("bgp", addr.String(), raw)
				}
			},
		})
		e.peers[addr] = handle
	}

	return e, nil
}

func (e *bgpEngine) postEvent(ev bgpEngineEvent) {
	select {
	case e.events <- ev:
	case <-e.done:
	}
}

// Run starts every peer's session runtime and the restart-sweep ticker,
// installs any locally originated networks, then drives the engine's
// event loop until ctx is cancelled. On cancellation it cancels every
// peer's own context, which makes internal/bgpsession.Peer.Run send a
// Cease NOTIFICATION on any Established session before returning (spec
// section 4.10's graceful BGP shutdown).
func (e *bgpEngine) Run(ctx context.Context) error {
	e.ctx = ctx
	peerCtx, cancelPeers := context.WithCancel(ctx)
	defer cancelPeers()

	for _, h := range e.peers {
		h := h
		go func() {
			if err := h.session.Run(peerCtx); err != nil && ctx.Err() == nil {
				e.logger.Warn("bgp session ended", zap.String("peer", h.addr.String()), zap.Error(err))
			}
		}()
	}

	e.originateLocalNetworks()
	go e.restartSweepTicker(ctx)

	for {
		select {
		case <-ctx.Done():
			close(e.done)
			<-time.After(200 * time.Millisecond) // best-effort window for queued Cease NOTIFICATIONs to flush
			return nil
		case ev := <-e.events:
			e.dispatch(ev)
		}
	}
}

func (e *bgpEngine) restartSweepTicker(ctx context.Context) {
	ticker := time.NewTicker(restartSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.postEvent(bgpEngineEvent{kind: evRestartSweep})
		}
	}
}

func (e *bgpEngine) dispatch(ev bgpEngineEvent) {
	switch ev.kind {
	case evBGPUpdate:
		e.handleUpdate(ev.peer, ev.peerID, ev.routes, ev.withdrawn)
	case evBGPStateChange:
		e.handleStateChange(ev.peer, ev.state)
	case evBGPSessionDown:
		e.handleSessionDown(ev.peer, ev.restarting)
	case evBGPRouteRefresh:
		e.handleRouteRefresh(ev.peer, ev.afi, ev.safi)
	case evRestartSweep:
		e.handleRestartSweep()
	}
}

// handleUpdate applies one peer's NLRI/withdrawals to Adj-RIB-In, runs
// RPKI origin validation where enabled, then reruns the decision process
// for every touched prefix and propagates the result.
func (e *bgpEngine) handleUpdate(h *bgpPeerHandle, peerID bgprib.PeerIdentity, routes []bgprib.BgpRoute, withdrawn []bgp.Prefix) {
	metrics.BGPUpdatesTotal.WithLabelValues(peerID.Address.String(), "in").Inc()

	touched := make(map[bgp.Prefix]struct{}, len(routes)+len(withdrawn))

	for _, w := range withdrawn {
		e.adjIn.Remove(w, peerID.Address.String())
		touched[w] = struct{}{}
	}

	for _, r := range routes {
		if h.rpki {
			r.RPKI = bgpadvanced.ValidateRoute(e.roaTable, r)
			if h.cfg.RPKIRejectInvalid && r.RPKI == bgprib.RPKIInvalid {
				metrics.BGPRPKIRejectsTotal.WithLabelValues(peerID.Address.String()).Inc()
				e.logger.Info("bgp: rejecting RPKI-invalid route", zap.String("prefix", r.Prefix.String()), zap.String("peer", peerID.Address.String()))
				continue
			}
		}
		r.Peer = peerID
		e.adjIn.InsertOrReplace(r)
		touched[r.Prefix] = struct{}{}
	}

	for prefix := range touched {
		e.rerunDecision(prefix)
	}
}

// rerunDecision collects every candidate for prefix from Adj-RIB-In
// (excluding routes currently suppressed by flap damping), runs
// internal/bgpdecision.Best, and on a change installs into the FIB and
// re-advertises to every eligible peer.
func (e *bgpEngine) rerunDecision(prefix bgp.Prefix) {
	start := time.Now()
	now := start
	var candidates []bgpdecision.Candidate
	for _, r := range e.adjIn.Lookup(prefix) {
		if r.Stale {
			continue
		}
		if e.damping != nil && e.damping.IsSuppressed(prefix, now) {
			metrics.BGPFlapSuppressedTotal.WithLabelValues(r.Peer.Address.String()).Inc()
			continue
		}
		kind := bgpdecision.EBGP
		if h, ok := e.peerHandleFor(r.Peer.Address); ok {
			kind = h.kind
		}
		candidates = append(candidates, bgpdecision.Candidate{Route: r, Kind: kind, LocalASN: e.cfg.LocalAS})
	}

	change := e.decision.Run(prefix, candidates)
	metrics.BGPDecisionRunDuration.Observe(time.Since(start).Seconds())
	metrics.BGPLocRIBPrefixes.Set(float64(e.locRIB.Len()))
	if change == nil {
		return
	}

	netipPrefix := netip.PrefixFrom(prefix.Addr, prefix.Len)
	if change.Withdrawn {
		if err := e.fib.Remove(e.ctx, netipPrefix, fib.SourceBGP); err != nil {
			e.logger.Warn("bgp: fib remove failed", zap.Error(err))
		}
		e.hook.WithdrawBest(events.BestPathEvent{Prefix: netipPrefix, Peer: change.Route.Peer.Address, Withdrawn: true, Timestamp: now})
	} else {
		if nh, ok := change.Route.Attributes.NextHop(); ok {
			route := fib.Route{Prefix: netipPrefix, NextHop: nh, Source: fib.SourceBGP, Metric: change.Route.Attributes.MED()}
			if err := e.fib.Install(e.ctx, route); err != nil {
				e.logger.Warn("bgp: fib install failed", zap.Error(err))
			}
			e.hook.InstallBest(events.BestPathEvent{Prefix: netipPrefix, NextHop: nh, Peer: change.Route.Peer.Address, ASPath: asPathString(change.Route.Attributes), Timestamp: now})
		}
	}

	e.advertise(prefix, change)
}

// asPathString renders an AS_PATH attribute as a space-separated list of
// ASNs, AS_SET segments parenthesized, for the journal and event bus —
// neither needs the wire AS_PATH encoding, just a human-readable summary.
func asPathString(attrs bgp.AttributeMap) string {
	asPath, ok := attrs.ASPath()
	if !ok {
		return ""
	}
	var b strings.Builder
	for i, seg := range asPath.Segments {
		if i > 0 {
			b.WriteByte(' ')
		}
		if seg.Type == bgp.ASPathSet {
			b.WriteByte('(')
		}
		for j, asn := range seg.ASNs {
			if j > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(strconv.FormatUint(uint64(asn), 10))
		}
		if seg.Type == bgp.ASPathSet {
			b.WriteByte(')')
		}
	}
	return b.String()
}

func (e *bgpEngine) peerHandleFor(addr netip.Addr) (*bgpPeerHandle, bool) {
	h, ok := e.peers[addr]
	return h, ok
}

// advertise propagates change to every peer eligible to receive it,
// applying route reflection (RFC 4456) ahead of the base advertisement
// rules when this router is a reflector, then the egress transforms of
// spec section 4.5.
func (e *bgpEngine) advertise(prefix bgp.Prefix, change *bgpdecision.Change) {
	learnedFromClient := false
	learnedFromKind := bgpdecision.EBGP
	if !change.Withdrawn {
		if h, ok := e.peerHandleFor(change.Route.Peer.Address); ok {
			learnedFromKind = h.kind
			learnedFromClient = h.cfg.RouteReflectorClient
		}
	}

	for addr, h := range e.peers {
		if h.session.State() != bgpfsm.Established {
			continue
		}
		egressPeer := bgpdecision.EgressPeer{Address: addr, Kind: h.kind, LocalInterface: e.routerID, ReflectorClient: h.cfg.RouteReflectorClient}

		if change.Withdrawn {
			if _, had := e.adjOut.Remove(addr.String(), prefix); had {
				h.session.Advertise(bgp.UpdateMessage{WithdrawnRoutes: []bgp.Prefix{prefix}, Attributes: bgp.NewAttributeMap()})
			}
			continue
		}

		eligible := false
		route := change.Route
		if e.reflector != nil {
			eligible = e.reflector.ReflectEligible(route, learnedFromKind, learnedFromClient, egressPeer)
			if eligible {
				route = e.reflector.Reflect(route)
			}
		} else {
			eligible = bgpdecision.Eligible(route, learnedFromKind, egressPeer)
		}
		if !eligible {
			continue
		}

		out := bgpdecision.Transform(route, e.cfg.LocalAS, egressPeer)
		e.adjOut.InsertOrReplace(addr.String(), out)
		h.session.Advertise(bgp.UpdateMessage{Attributes: out.Attributes, NLRI: []bgp.Prefix{prefix}})
	}
}

// handleStateChange reacts to a session reaching Established by resending
// every currently-eligible Loc-RIB entry to it, the way a freshly
// connected peer's initial table dump works.
func (e *bgpEngine) handleStateChange(h *bgpPeerHandle, state bgpfsm.State) {
	if state != bgpfsm.Established {
		return
	}
	e.locRIB.Iter(func(r bgprib.BgpRoute) {
		change := &bgpdecision.Change{Prefix: r.Prefix, Route: r}
		e.advertiseOne(h, change)
	})
}

// handleRouteRefresh reacts to a ROUTE-REFRESH (RFC 2918) by resending the
// full Loc-RIB to the requesting peer, the same replay handleStateChange
// does for a session that just reached Established. This core's wire
// codec only carries IPv4 unicast NLRI, so any other requested address
// family is logged and ignored rather than silently answered wrong.
func (e *bgpEngine) handleRouteRefresh(h *bgpPeerHandle, afi uint16, safi uint8) {
	if afi != bgp.AFIIPv4 || safi != bgp.SAFIUnicast {
		e.logger.Warn("bgp: ignoring route-refresh for unsupported address family",
			zap.String("peer", h.addr.String()), zap.Uint16("afi", afi), zap.Uint8("safi", safi))
		return
	}
	if h.session.State() != bgpfsm.Established {
		return
	}
	e.locRIB.Iter(func(r bgprib.BgpRoute) {
		change := &bgpdecision.Change{Prefix: r.Prefix, Route: r}
		e.advertiseOne(h, change)
	})
}

// advertiseOne is advertise narrowed to a single destination peer, used
// to replay Loc-RIB to a peer that just reached Established without
// re-evaluating every other peer's eligibility.
func (e *bgpEngine) advertiseOne(h *bgpPeerHandle, change *bgpdecision.Change) {
	learnedFromKind := bgpdecision.EBGP
	learnedFromClient := false
	if hh, ok := e.peerHandleFor(change.Route.Peer.Address); ok {
		learnedFromKind = hh.kind
		learnedFromClient = hh.cfg.RouteReflectorClient
	}
	egressPeer := bgpdecision.EgressPeer{Address: h.addr, Kind: h.kind, LocalInterface: e.routerID, ReflectorClient: h.cfg.RouteReflectorClient}

	eligible := false
	route := change.Route
	if e.reflector != nil {
		eligible = e.reflector.ReflectEligible(route, learnedFromKind, learnedFromClient, egressPeer)
		if eligible {
			route = e.reflector.Reflect(route)
		}
	} else {
		eligible = bgpdecision.Eligible(route, learnedFromKind, egressPeer)
	}
	if !eligible {
		return
	}
	out := bgpdecision.Transform(route, e.cfg.LocalAS, egressPeer)
	e.adjOut.InsertOrReplace(h.addr.String(), out)
	h.session.Advertise(bgp.UpdateMessage{Attributes: out.Attributes, NLRI: []bgp.Prefix{change.Prefix}})
}

// handleSessionDown marks a dropped peer's Adj-RIB-In entries stale if
// graceful restart was negotiated (RFC 4724), or removes them outright
// and reruns the decision process for every affected prefix otherwise.
func (e *bgpEngine) handleSessionDown(h *bgpPeerHandle, restarting bool) {
	if restarting && h.restart != nil {
		if gr := h.session.NegotiatedCapabilities().GracefulRestart; gr != nil {
			h.restart.RestartTime = time.Duration(gr.RestartTimeSeconds) * time.Second
		}
		h.restart.BeginRestart(time.Now())
		stale := e.adjIn.MarkStaleFrom(h.addr.String())
		for _, r := range stale {
			e.rerunDecision(r.Prefix)
		}
		return
	}
	removed := e.adjIn.RemoveAllFrom(h.addr.String())
	e.adjOut.RemovePeer(h.addr.String())
	for _, r := range removed {
		e.rerunDecision(r.Prefix)
	}
}

func (e *bgpEngine) handleRestartSweep() {
	now := time.Now()
	for _, h := range e.peers {
		if h.restart == nil || !h.restart.Expired(now) {
			continue
		}
		evicted := e.adjIn.EvictStaleFrom(h.addr.String())
		h.restart.Clear()
		for _, r := range evicted {
			e.rerunDecision(r.Prefix)
		}
	}
}

// originateLocalNetworks installs spec section 6's statically originated
// networks directly into Loc-RIB with an empty AS_PATH and IGP origin,
// then advertises them to every peer, the same path a route learned from
// a session takes once it wins the decision process.
func (e *bgpEngine) originateLocalNetworks() {
	for _, cidr := range e.cfg.OriginatedNetworks {
		prefix, err := netip.ParsePrefix(cidr)
		if err != nil {
			e.logger.Warn("bgp: skipping malformed originated_networks entry", zap.String("value", cidr), zap.Error(err))
			continue
		}
		bgpPrefix := bgp.Prefix{Addr: prefix.Addr(), Len: prefix.Bits()}
		attrs := bgp.NewAttributeMap()
		attrs.Set(&bgp.Attribute{Code: bgp.AttrOrigin, Flags: bgp.FlagTransitive, Value: bgp.OriginValue(0)})
		attrs.Set(&bgp.Attribute{Code: bgp.AttrASPath, Flags: bgp.FlagTransitive, Value: bgp.ASPathValue{}})
		route := bgprib.BgpRoute{
			Prefix:     bgpPrefix,
			Attributes: attrs,
			Peer:       bgprib.PeerIdentity{RouterID: e.routerID},
			Source:     bgprib.SourceLocalOrigination,
			Timestamp:  time.Now(),
		}
		prev, had := e.locRIB.Install(route)
		if had && prev.Peer == route.Peer && prev.Timestamp.Equal(route.Timestamp) {
			continue
		}
		netipPrefix := netip.PrefixFrom(bgpPrefix.Addr, bgpPrefix.Len)
		if err := e.fib.Install(e.ctx, fib.Route{Prefix: netipPrefix, NextHop: e.routerID, Source: fib.SourceBGP}); err != nil {
			e.logger.Warn("bgp: fib install for originated network failed", zap.Error(err))
		}
		e.advertise(bgpPrefix, &bgpdecision.Change{Prefix: bgpPrefix, Route: route})
	}
}
