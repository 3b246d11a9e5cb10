package agent

import (
	"context"
	"encoding/binary"
	"fmt"
	"math/bits"
	"net"
	"net/netip"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/route-beacon/ribagent/internal/config"
	"github.com/route-beacon/ribagent/internal/diagnostics"
	"github.com/route-beacon/ribagent/internal/events"
	"github.com/route-beacon/ribagent/internal/fib"
	"github.com/route-beacon/ribagent/internal/metrics"
	"github.com/route-beacon/ribagent/internal/ospfadjacency"
	"github.com/route-beacon/ribagent/internal/ospfflooding"
	"github.com/route-beacon/ribagent/internal/ospffsm"
	"github.com/route-beacon/ribagent/internal/ospflsdb"
	"github.com/route-beacon/ribagent/internal/ospfspf"
	"github.com/route-beacon/ribagent/internal/transport"
	"github.com/route-beacon/ribagent/internal/wire/ospf"
)

const (
	// maxDDBatch bounds how many LSA headers one Database Description
	// packet carries; real implementations size this from the
	// interface MTU, which this core does not query from the host
	// (spec section 1's non-goal), so a fixed conservative batch is
	// used instead.
	maxDDBatch            = 16
	interfaceMTU          = 1500
	ospfLinkMetric uint16 = 10
)

// ospfEventKind distinguishes the producers feeding ospfEngine's single
// event channel, mirroring internal/bgpsession's sessionEvent shape:
// every background goroutine (socket reader, Hello ticker, per-neighbor
// inactivity timer, retransmission ticker, SPF hold-down timer) only
// ever produces an immutable ospfEvent; all engine-state mutation
// happens inside the one goroutine running ospfEngine.Run.
type ospfEventKind int

const (
	evPacket ospfEventKind = iota
	evHelloTick
	evInactivity
	evRxmtTick
	evSPFTick
	evAgeTick
)

// ageTickInterval is how often the LSDB's ages advance (RFC 2328 section
// 14); one second keeps MaxAge eviction timing accurate without a
// dedicated per-LSA timer.
const ageTickInterval = 1 * time.Second

type ospfEvent struct {
	kind       ospfEventKind
	packet     ospf.Packet
	source     net.IP
	neighborID uint32
}

// ospfNeighbor is one neighbor's full bookkeeping: the adjacency state
// from internal/ospfadjacency, plus the DD exchange and retransmission
// list that only exist once it starts talking to us.
type ospfNeighbor struct {
	*ospfadjacency.Neighbor
	exchange        *ospfadjacency.ExchangeState
	rxmt            *ospfflooding.RetransmissionList
	inactivityTimer *time.Timer
}

// ospfEngine drives one OSPF interface: Hello/DR-BDR-election/Database-
// Description from internal/ospfadjacency, reliable flooding from
// internal/ospfflooding, and SPF from internal/ospfspf, installing the
// results into the shared FIB. As with internal/bgpsession.Peer, exactly
// one goroutine (the one running Run) ever mutates engine state; the
// reader, ticker, and timer goroutines only ever produce events.
type ospfEngine struct {
	cfg         config.OSPFConfig
	routerID    uint32
	areaID      uint32
	networkKind ospffsm.NetworkKind
	ifaceCfg    ospfadjacency.InterfaceConfig
	sourceAddr  netip.Addr
	networkAddr uint32
	netmask     uint32

	l3     transport.L3
	socket transport.L3Socket

	logger *zap.Logger
	fib    *fib.Manager
	ctx    context.Context

	lsdb                    *ospflsdb.LSDB
	neighbors               map[uint32]*ospfNeighbor
	drRouterID, bdrRouterID uint32
	myRouterLSASeq          int32
	originatedOnce          bool
	installedPrefixes       map[netip.Prefix]struct{}

	holddown *ospfspf.HoldDownScheduler
	events   chan ospfEvent
	done     chan struct{}

	hook events.Hook
	diag *diagnostics.Buffer
}

// newOSPFEngine builds an ospfEngine. hook receives AdjacencyChange and
// LsaInstalled events for the journal and event bus; diag, if non-nil,
// captures raw wire packets for offline debugging. Either may be a
// disabled no-op implementation.
func newOSPFEngine(cfg config.OSPFConfig, routerID uint32, l3 transport.L3, fibMgr *fib.Manager, hook events.Hook, diag *diagnostics.Buffer, logger *zap.Logger) (*ospfEngine, error) {
	areaID, err := parseOSPFID(cfg.AreaID)
	if err != nil {
		return nil, fmt.Errorf("%w: ospf area_id %q", config.ErrConfiguration, cfg.AreaID)
	}
	source, err := netip.ParseAddr(cfg.SourceAddress)
	if err != nil {
		return nil, fmt.Errorf("%w: ospf source_address %q: %v", config.ErrConfiguration, cfg.SourceAddress, err)
	}
	netmask := cidrToMask(cfg.PrefixLength)
	sourceU32 := addrToUint32(source)
	networkAddr := sourceU32 & netmask

	kind := networkKindOf(cfg.NetworkType)
	if logger == nil {
		logger = zap.NewNop()
	}
	if hook == nil {
		hook = events.NopHook{}
	}

	return &ospfEngine{
		cfg:         cfg,
		routerID:    routerID,
		areaID:      areaID,
		networkKind: kind,
		sourceAddr:  source,
		networkAddr: networkAddr,
		netmask:     netmask,
		ifaceCfg: ospfadjacency.InterfaceConfig{
			NetworkMask:   netmask,
			HelloInterval: uint16(cfg.HelloInterval),
			DeadInterval:  uint32(cfg.DeadInterval),
			AreaID:        areaID,
			Network:       kind,
		},
		l3:                l3,
		fib:               fibMgr,
		logger:            logger,
		lsdb:              ospflsdb.NewLSDB(),
		neighbors:         make(map[uint32]*ospfNeighbor),
		installedPrefixes: make(map[netip.Prefix]struct{}),
		holddown:          ospfspf.NewHoldDownScheduler(ospfspf.DefaultHoldDown),
		events:            make(chan ospfEvent, 64),
		done:              make(chan struct{}),
		hook:              hook,
		diag:              diag,
	}, nil
}

func networkKindOf(s string) ospffsm.NetworkKind {
	switch s {
	case "p2p", "virtual-link":
		return ospffsm.PointToPoint
	case "p2mp":
		return ospffsm.PointToMultipoint
	default:
		return ospffsm.Broadcast
	}
}

// parseOSPFID parses an OSPF area or router id given either in dotted-
// quad form ("0.0.0.1") or as a plain decimal integer.
func parseOSPFID(s string) (uint32, error) {
	if addr, err := netip.ParseAddr(s); err == nil && addr.Is4() {
		return addrToUint32(addr), nil
	}
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("neither a dotted-quad nor an integer: %q", s)
	}
	return uint32(n), nil
}

func addrToUint32(a netip.Addr) uint32 {
	b := a.As4()
	return binary.BigEndian.Uint32(b[:])
}

func uint32ToAddr(v uint32) netip.Addr {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return netip.AddrFrom4(b)
}

func uint32ToIP(v uint32) net.IP {
	b := make(net.IP, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

func cidrToMask(bits int) uint32 {
	if bits <= 0 {
		return 0
	}
	if bits >= 32 {
		return 0xFFFFFFFF
	}
	return ^uint32(0) << uint(32-bits)
}

// Run opens the interface's raw socket, joins the OSPF multicast groups,
// and drives the engine's event loop until ctx is cancelled, at which
// point it performs the graceful-shutdown Hello of spec section 4.10
// before closing the socket.
func (e *ospfEngine) Run(ctx context.Context) error {
	e.ctx = ctx
	socket, err := e.l3.Open(e.cfg.Interface, uint32ToIP(addrToUint32(e.sourceAddr)))
	if err != nil {
		return fmt.Errorf("ospf: opening interface %s: %w", e.cfg.Interface, err)
	}
	e.socket = socket
	defer socket.Close()

	if err := socket.JoinMulticast(transport.AllSPFRoutersAddr); err != nil {
		return fmt.Errorf("ospf: joining AllSPFRouters: %w", err)
	}
	if e.networkKind == ospffsm.Broadcast {
		if err := socket.JoinMulticast(transport.AllDRoutersAddr); err != nil {
			e.logger.Warn("ospf: joining AllDRouters failed", zap.Error(err))
		}
	}

	go e.readLoop()
	go e.helloTicker(ctx)
	go e.rxmtTicker(ctx)
	go e.ageTicker(ctx)

	e.sendHello()
	e.reoriginateRouterLSA()

	for {
		select {
		case <-ctx.Done():
			e.shutdown()
			close(e.done)
			return nil
		case ev := <-e.events:
			e.dispatch(ev)
		}
	}
}

func (e *ospfEngine) readLoop() {
	for {
		data, source, err := e.socket.Receive()
		if err != nil {
			return
		}
		if e.diag != nil {
			e.diag.Capture("ospf", source.String(), data)
		}
		pkt, err := ospf.DecodePacket(data)
		if err != nil {
			e.logger.Debug("ospf: dropping malformed packet", zap.Error(err))
			continue
		}
		select {
		case e.events <- ospfEvent{kind: evPacket, packet: pkt, source: source}:
		case <-e.done:
			return
		}
	}
}

func (e *ospfEngine) helloTicker(ctx context.Context) {
	interval := time.Duration(e.cfg.HelloInterval) * time.Second
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			select {
			case e.events <- ospfEvent{kind: evHelloTick}:
			case <-e.done:
				return
			}
		}
	}
}

func (e *ospfEngine) rxmtTicker(ctx context.Context) {
	ticker := time.NewTicker(ospfflooding.DefaultRxmtInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			select {
			case e.events <- ospfEvent{kind: evRxmtTick}:
			case <-e.done:
				return
			}
		}
	}
}

func (e *ospfEngine) ageTicker(ctx context.Context) {
	ticker := time.NewTicker(ageTickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			select {
			case e.events <- ospfEvent{kind: evAgeTick}:
			case <-e.done:
				return
			}
		}
	}
}

func (e *ospfEngine) dispatch(ev ospfEvent) {
	switch ev.kind {
	case evPacket:
		e.handlePacket(ev.packet, ev.source)
	case evHelloTick:
		e.sendHello()
	case evInactivity:
		e.handleInactivity(ev.neighborID)
	case evRxmtTick:
		e.handleRxmtTick()
	case evSPFTick:
		e.holddown.Fired(e.areaID)
		e.runSPF()
	case evAgeTick:
		e.handleAgeTick()
	}
}

// handleAgeTick advances every stored LSA's age by one second (RFC 2328
// section 14) and reacts to whatever reaches MaxAge: this router's own
// Router-LSA is re-originated rather than flushed, since nothing else in
// this core refreshes it before MaxAge; any other router's LSA is
// reflooded as a MaxAge flush and the routing table recomputed.
func (e *ospfEngine) handleAgeTick() {
	evicted := e.lsdb.AgeBy(uint16(ageTickInterval.Seconds()), time.Now())
	if len(evicted) == 0 {
		return
	}
	needSPF := false
	for _, lsa := range evicted {
		if lsa.Header.Type == ospf.LSATypeRouter && lsa.Header.AdvertisingRouter == e.routerID {
			e.reoriginateRouterLSA()
			continue
		}
		e.floodLSA(lsa, 0)
		needSPF = true
	}
	if needSPF {
		e.scheduleSPF()
	}
}

func (e *ospfEngine) handlePacket(pkt ospf.Packet, source net.IP) {
	if pkt.Header.AreaID != e.areaID {
		e.logger.Debug("ospf: dropping packet from a different area", zap.Uint32("area", pkt.Header.AreaID))
		return
	}
	if hello, ok := pkt.Body.(ospf.HelloPacket); ok {
		e.handleHello(pkt.Header.RouterID, source, hello)
		return
	}
	n, ok := e.neighbors[pkt.Header.RouterID]
	if !ok {
		e.logger.Debug("ospf: dropping packet from a router with no established Hello exchange", zap.Uint32("router_id", pkt.Header.RouterID))
		return
	}
	switch body := pkt.Body.(type) {
	case ospf.DatabaseDescriptionPacket:
		e.handleDD(n, body)
	case ospf.LinkStateRequestPacket:
		e.handleLSR(n, body)
	case ospf.LinkStateUpdatePacket:
		e.handleLSU(n, body)
	case ospf.LinkStateAckPacket:
		e.handleLSAck(n, body)
	}
}

func (e *ospfEngine) handleHello(routerID uint32, source net.IP, hello ospf.HelloPacket) {
	if mismatch := ospfadjacency.ValidateHello(e.ifaceCfg, hello, e.areaID); mismatch != ospfadjacency.MismatchNone {
		e.logger.Debug("ospf: rejecting mismatched Hello", zap.Uint32("router_id", routerID), zap.Int("mismatch", int(mismatch)))
		return
	}
	n, ok := e.neighbors[routerID]
	if !ok {
		n = &ospfNeighbor{
			Neighbor: ospfadjacency.NewNeighbor(routerID, source.String()),
			rxmt:     ospfflooding.NewRetransmissionList(),
		}
		e.neighbors[routerID] = n
	}
	for _, ev := range n.ApplyHello(hello, e.routerID) {
		e.applyOSPFEffects(n, n.FSM.Transition(ev))
	}
	e.runElection()

	if n.FSM.State == ospffsm.TwoWay {
		selfDRorBDR := e.drRouterID == e.routerID || e.bdrRouterID == e.routerID
		neighborDRorBDR := e.drRouterID == n.RouterID || e.bdrRouterID == n.RouterID
		if ospffsm.ShouldFormAdjacency(e.networkKind, selfDRorBDR, neighborDRorBDR) {
			e.applyOSPFEffects(n, n.FSM.Transition(ospffsm.AdjOK))
		}
	}
}

// runElection is only meaningful on broadcast segments; RFC 2328 does
// not elect a DR/BDR on point-to-point or point-to-multipoint links.
func (e *ospfEngine) runElection() {
	if e.networkKind != ospffsm.Broadcast {
		return
	}
	candidates := []ospfadjacency.ElectionCandidate{
		{RouterID: e.routerID, Priority: e.cfg.RouterPriority, DR: e.drRouterID, BDR: e.bdrRouterID},
	}
	for _, n := range e.neighbors {
		if n.FSM.State < ospffsm.TwoWay || n.Priority == 0 {
			continue
		}
		candidates = append(candidates, ospfadjacency.ElectionCandidate{RouterID: n.RouterID, Priority: n.Priority, DR: n.DR, BDR: n.BDR})
	}
	e.drRouterID, e.bdrRouterID = ospfadjacency.Elect(candidates)
}

func (e *ospfEngine) handleDD(n *ospfNeighbor, dd ospf.DatabaseDescriptionPacket) {
	switch n.FSM.State {
	case ospffsm.ExStart:
		if !ospfadjacency.NegotiationDone(n.exchange, dd) {
			return
		}
		if !n.exchange.Master {
			n.exchange.AdoptSlaveSequence(dd.DDSequenceNumber)
		}
		n.exchange.BuildSummary(e.lsdb)
		e.applyOSPFEffects(n, n.FSM.Transition(ospffsm.NegotiationDone))
		e.processExchangeDD(n, dd)
	case ospffsm.Exchange:
		e.processExchangeDD(n, dd)
	default:
		e.logger.Debug("ospf: dropping unexpected DD", zap.Uint32("router_id", n.RouterID), zap.String("state", n.FSM.State.String()))
	}
}

func (e *ospfEngine) processExchangeDD(n *ospfNeighbor, dd ospf.DatabaseDescriptionPacket) {
	n.exchange.ReceiveSummary(dd, e.lsdb)
	if !n.exchange.Master {
		n.exchange.DDSequenceNumber = dd.DDSequenceNumber
	}
	e.sendNextDD(n)
	if n.exchange.Done() {
		event, skipLoading := n.exchange.NextState()
		e.applyOSPFEffects(n, n.FSM.Transition(event))
		if skipLoading {
			e.applyOSPFEffects(n, n.FSM.Transition(ospffsm.LoadingDone))
		} else {
			e.sendLSR(n)
		}
	}
}

// sendNextDD walks the outgoing summary list one batch at a time. The
// master's sequence number advances as each non-final batch goes out;
// the slave never advances its own, it only ever echoes the master's
// latest number back (set in processExchangeDD).
func (e *ospfEngine) sendNextDD(n *ospfNeighbor) {
	batch, more := n.exchange.NextBatch(maxDDBatch)
	flags := uint8(0)
	if n.exchange.Master {
		flags |= ospf.DDFlagMS
	}
	if more {
		flags |= ospf.DDFlagMore
	} else {
		n.exchange.MarkLocalDone()
	}
	dd := ospf.DatabaseDescriptionPacket{InterfaceMTU: interfaceMTU, Flags: flags, DDSequenceNumber: n.exchange.DDSequenceNumber, LSAHeaders: batch}
	e.sendPacket(dd, net.ParseIP(n.Address))
	if n.exchange.Master && more {
		n.exchange.DDSequenceNumber = ospf.NextSequence(n.exchange.DDSequenceNumber)
	}
}

func (e *ospfEngine) sendLSR(n *ospfNeighbor) {
	if len(n.exchange.RequestList) == 0 {
		return
	}
	requests := make([]ospf.LSRequest, 0, len(n.exchange.RequestList))
	for _, key := range n.exchange.RequestList {
		requests = append(requests, ospf.LSRequest{LSType: uint32(key.Type), LinkStateID: key.LinkStateID, AdvertisingRouter: key.AdvertisingRouter})
	}
	e.sendPacket(ospf.LinkStateRequestPacket{Requests: requests}, net.ParseIP(n.Address))
}

func (e *ospfEngine) handleLSR(n *ospfNeighbor, lsr ospf.LinkStateRequestPacket) {
	var lsas []ospf.LSA
	for _, req := range lsr.Requests {
		lsa, ok := e.lsdb.Get(req.Key())
		if !ok {
			e.applyOSPFEffects(n, n.FSM.Transition(ospffsm.BadLSReq))
			return
		}
		lsas = append(lsas, lsa)
	}
	if len(lsas) > 0 {
		e.sendLSUDirect(n, lsas)
	}
}

func (e *ospfEngine) handleLSU(n *ospfNeighbor, lsu ospf.LinkStateUpdatePacket) {
	for _, lsa := range lsu.LSAs {
		result := ospfflooding.ReceiveLSA(e.lsdb, lsa, time.Now(), false)
		key := lsa.Header.Key()
		switch result.Outcome {
		case ospfflooding.OutcomeNewer:
			// Every other neighbor's retransmission list can only hold an
			// older instance of this key at this point, so the just-
			// installed LSA's own sequence number is a valid upper bound
			// for RemoveStalePriorInstance's "not more recent than" check.
			for id, other := range e.neighbors {
				if id == n.RouterID {
					continue
				}
				other.rxmt.RemoveStalePriorInstance(key, lsa.Header.SeqNumber)
			}
			e.hook.LsaInstalled(events.LSAEvent{
				RouterID:    uint32ToAddr(lsa.Header.AdvertisingRouter).String(),
				LSType:      lsa.Header.Type,
				LinkStateID: uint32ToAddr(lsa.Header.LinkStateID).String(),
				SeqNumber:   lsa.Header.SeqNumber,
				Timestamp:   time.Now(),
			})
			e.floodLSA(lsa, n.RouterID)
			e.sendAck(n, lsa.Header)
			removeFromRequestList(n, key)
			e.scheduleSPF()
		case ospfflooding.OutcomeSame:
			n.rxmt.Ack(key)
			e.sendAck(n, lsa.Header)
		case ospfflooding.OutcomeOlder:
			e.sendLSUDirect(n, []ospf.LSA{result.OlderInstance})
		case ospfflooding.OutcomeBadChecksum:
			e.logger.Warn("ospf: dropped LSA with bad checksum", zap.Uint32("neighbor", n.RouterID))
		}
	}
	if n.FSM.State == ospffsm.Loading && n.exchange != nil && len(n.exchange.RequestList) == 0 {
		e.applyOSPFEffects(n, n.FSM.Transition(ospffsm.LoadingDone))
	}
}

func removeFromRequestList(n *ospfNeighbor, key ospf.Key) {
	if n.exchange == nil {
		return
	}
	filtered := n.exchange.RequestList[:0]
	for _, k := range n.exchange.RequestList {
		if k != key {
			filtered = append(filtered, k)
		}
	}
	n.exchange.RequestList = filtered
}

func (e *ospfEngine) handleLSAck(n *ospfNeighbor, ack ospf.LinkStateAckPacket) {
	for _, h := range ack.LSAHeaders {
		n.rxmt.Ack(h.Key())
	}
}

func (e *ospfEngine) handleRxmtTick() {
	now := time.Now()
	for _, n := range e.neighbors {
		due := n.rxmt.DueForRetransmission(now, ospfflooding.DefaultRxmtInterval)
		if len(due) > 0 {
			metrics.OSPFRetransmitsTotal.WithLabelValues(strconv.FormatUint(uint64(n.RouterID), 10)).Add(float64(len(due)))
			e.sendLSUDirect(n, due)
		}
	}
}

func (e *ospfEngine) handleInactivity(routerID uint32) {
	n, ok := e.neighbors[routerID]
	if !ok {
		return
	}
	e.applyOSPFEffects(n, n.FSM.Transition(ospffsm.InactivityTimer))
	delete(e.neighbors, routerID)
	e.runElection()
	e.reoriginateRouterLSA()
	e.scheduleSPF()
}

// applyOSPFEffects realizes the side effects internal/ospffsm's pure
// transition table reports, the same realization-layer role
// internal/bgpsession plays for internal/bgpfsm.
func (e *ospfEngine) applyOSPFEffects(n *ospfNeighbor, effects []ospffsm.Effect) {
	metrics.OSPFNeighborState.WithLabelValues(n.Address, e.cfg.Interface).Set(float64(n.FSM.State))
	if len(effects) > 0 {
		e.hook.AdjacencyChange(events.AdjacencyEvent{Protocol: "ospf", Neighbor: n.Address, State: n.FSM.State.String(), Timestamp: time.Now()})
	}
	for _, eff := range effects {
		switch eff.Action {
		case ospffsm.ActionStartInactivityTimer, ospffsm.ActionResetInactivityTimer:
			e.resetInactivityTimer(n)
		case ospffsm.ActionStopInactivityTimer:
			if n.inactivityTimer != nil {
				n.inactivityTimer.Stop()
			}
		case ospffsm.ActionClearLists:
			n.exchange = nil
			n.rxmt = ospfflooding.NewRetransmissionList()
		case ospffsm.ActionStartExStart:
			e.startExchange(n)
		case ospffsm.ActionReoriginateRouterLSA:
			e.reoriginateRouterLSA()
		case ospffsm.ActionFloodSelfOriginatedLSAs:
			e.floodSelfOriginated(n)
		case ospffsm.ActionClearAdjacency:
			// Nothing further to realize: the list/timer cleanup above
			// already tore down everything this neighbor's adjacency owned.
		}
	}
}

func (e *ospfEngine) resetInactivityTimer(n *ospfNeighbor) {
	if n.inactivityTimer != nil {
		n.inactivityTimer.Stop()
	}
	routerID := n.RouterID
	d := time.Duration(e.cfg.DeadInterval) * time.Second
	n.inactivityTimer = time.AfterFunc(d, func() {
		select {
		case e.events <- ospfEvent{kind: evInactivity, neighborID: routerID}:
		case <-e.done:
		}
	})
}

func (e *ospfEngine) startExchange(n *ospfNeighbor) {
	startSeq := uint32(time.Now().Unix())
	n.exchange = ospfadjacency.BeginNegotiation(e.routerID, n.RouterID, startSeq)
	flags := ospf.DDFlagInit | ospf.DDFlagMore
	if n.exchange.Master {
		flags |= ospf.DDFlagMS
	}
	dd := ospf.DatabaseDescriptionPacket{InterfaceMTU: interfaceMTU, Flags: flags, DDSequenceNumber: startSeq}
	e.sendPacket(dd, net.ParseIP(n.Address))
}

func (e *ospfEngine) floodSelfOriginated(n *ospfNeighbor) {
	lsa, ok := e.lsdb.Get(ospf.Key{Type: ospf.LSATypeRouter, LinkStateID: e.routerID, AdvertisingRouter: e.routerID})
	if !ok {
		return
	}
	e.sendLSUDirect(n, []ospf.LSA{lsa})
	n.rxmt.Add(lsa, time.Now())
}

// floodLSA reflloods lsa to every neighbor at Exchange or beyond except
// excludeRouterID (the neighbor it was just received from). On a
// broadcast segment it is multicast once, to AllSPFRouters or
// AllDRouters per spec section 4.8's sender-is-DR rule; on point-to-
// point/point-to-multipoint links it goes unicast to each neighbor.
func (e *ospfEngine) floodLSA(lsa ospf.LSA, excludeRouterID uint32) {
	now := time.Now()
	if e.networkKind == ospffsm.Broadcast {
		dest := transport.AllDRoutersAddr
		if ospfflooding.DestinationOf(e.drRouterID == e.routerID) == ospfflooding.AllSPFRouters {
			dest = transport.AllSPFRoutersAddr
		}
		e.sendPacket(ospf.LinkStateUpdatePacket{LSAs: []ospf.LSA{lsa}}, dest)
		for id, nb := range e.neighbors {
			if id == excludeRouterID || nb.FSM.State < ospffsm.Exchange {
				continue
			}
			nb.rxmt.Add(lsa, now)
		}
		return
	}
	for id, nb := range e.neighbors {
		if id == excludeRouterID || nb.FSM.State < ospffsm.Exchange {
			continue
		}
		e.sendLSUDirect(nb, []ospf.LSA{lsa})
		nb.rxmt.Add(lsa, now)
	}
}

func (e *ospfEngine) sendLSUDirect(n *ospfNeighbor, lsas []ospf.LSA) {
	e.sendPacket(ospf.LinkStateUpdatePacket{LSAs: lsas}, net.ParseIP(n.Address))
}

func (e *ospfEngine) sendAck(n *ospfNeighbor, header ospf.LSAHeader) {
	e.sendPacket(ospf.LinkStateAckPacket{LSAHeaders: []ospf.LSAHeader{header}}, net.ParseIP(n.Address))
}

func (e *ospfEngine) sendHello() {
	neighborIDs := make([]uint32, 0, len(e.neighbors))
	for id := range e.neighbors {
		neighborIDs = append(neighborIDs, id)
	}
	hello := ospf.HelloPacket{
		NetworkMask:            e.netmask,
		HelloInterval:          uint16(e.cfg.HelloInterval),
		RouterPriority:         e.cfg.RouterPriority,
		RouterDeadInterval:     uint32(e.cfg.DeadInterval),
		DesignatedRouter:       e.drRouterID,
		BackupDesignatedRouter: e.bdrRouterID,
		Neighbors:              neighborIDs,
	}
	e.sendPacket(hello, e.helloDestination())
}

func (e *ospfEngine) helloDestination() net.IP {
	if e.cfg.UnicastPeer != "" {
		return net.ParseIP(e.cfg.UnicastPeer)
	}
	return transport.AllSPFRoutersAddr
}

func (e *ospfEngine) sendPacket(body any, dest net.IP) {
	header := ospf.PacketHeader{RouterID: e.routerID, AreaID: e.areaID, AuType: ospf.AuTypeNone}
	encoded, err := ospf.EncodePacketBody(header, body)
	if err != nil {
		e.logger.Warn("ospf: encoding outgoing packet failed", zap.Error(err))
		return
	}
	if err := e.socket.Send(encoded, dest); err != nil {
		e.logger.Warn("ospf: sending packet failed", zap.String("dest", dest.String()), zap.Error(err))
	}
}

// reoriginateRouterLSA rebuilds and installs this router's own Router-
// LSA from the current neighbor/topology state (spec section 4.9's
// "the router re-originates its Router-LSA whenever its adjacencies
// change"), then floods it.
//
// On a broadcast segment the whole multi-access network is represented
// by a single transit-network node keyed by this router's own interface
// address rather than strictly the segment DR's, since resolving every
// router's DR-facing address across the segment is out of scope for
// this core's single-interface model.
func (e *ospfEngine) reoriginateRouterLSA() {
	var links []ospf.RouterLink
	fullCount := 0
	for _, n := range e.neighbors {
		if n.FSM.State != ospffsm.Full {
			continue
		}
		fullCount++
		if e.networkKind == ospffsm.PointToPoint || e.networkKind == ospffsm.PointToMultipoint {
			links = append(links, ospf.RouterLink{LinkID: n.RouterID, LinkData: addrToUint32(e.sourceAddr), Type: ospf.LinkTypePointToPoint, Metric: ospfLinkMetric})
		}
	}
	if e.networkKind == ospffsm.Broadcast {
		if fullCount > 0 {
			links = append(links, ospf.RouterLink{LinkID: addrToUint32(e.sourceAddr), LinkData: addrToUint32(e.sourceAddr), Type: ospf.LinkTypeTransit, Metric: ospfLinkMetric})
		} else {
			links = append(links, ospf.RouterLink{LinkID: e.networkAddr, LinkData: e.netmask, Type: ospf.LinkTypeStub, Metric: 1})
		}
	} else if fullCount == 0 {
		links = append(links, ospf.RouterLink{LinkID: e.networkAddr, LinkData: e.netmask, Type: ospf.LinkTypeStub, Metric: 1})
	}

	if e.originatedOnce {
		e.myRouterLSASeq = ospf.NextSequence(e.myRouterLSASeq)
	} else {
		e.myRouterLSASeq = ospf.InitialSequenceNumber
		e.originatedOnce = true
	}

	header := ospf.LSAHeader{
		Type:              ospf.LSATypeRouter,
		LinkStateID:       e.routerID,
		AdvertisingRouter: e.routerID,
		SeqNumber:         e.myRouterLSASeq,
	}
	body := ospf.EncodeRouterLSABody(ospf.RouterLSABody{Links: links})
	encoded := ospf.EncodeLSA(header, body)
	lsa, err := ospf.DecodeLSA(encoded)
	if err != nil {
		e.logger.Warn("ospf: re-encoding self-originated Router-LSA failed", zap.Error(err))
		return
	}
	e.lsdb.Install(lsa, time.Now())
	e.hook.LsaInstalled(events.LSAEvent{
		RouterID:    uint32ToAddr(header.AdvertisingRouter).String(),
		LSType:      header.Type,
		LinkStateID: uint32ToAddr(header.LinkStateID).String(),
		SeqNumber:   header.SeqNumber,
		Timestamp:   time.Now(),
	})
	e.floodLSA(lsa, 0)
	e.scheduleSPF()
}

func (e *ospfEngine) scheduleSPF() {
	fireAt := e.holddown.Trigger(e.areaID, time.Now())
	delay := time.Until(fireAt)
	if delay < 0 {
		delay = 0
	}
	time.AfterFunc(delay, func() {
		select {
		case e.events <- ospfEvent{kind: evSPFTick}:
		case <-e.done:
		}
	})
}

// runSPF recomputes shortest paths over the area LSDB and installs the
// resulting stub-network routes into the FIB, withdrawing any prefix
// this router previously installed that no longer appears.
func (e *ospfEngine) runSPF() {
	start := time.Now()
	areaLabel := strconv.FormatUint(uint64(e.areaID), 10)
	metrics.OSPFSPFRunsTotal.WithLabelValues(areaLabel).Inc()
	defer func() {
		metrics.OSPFSPFDuration.WithLabelValues(areaLabel).Observe(time.Since(start).Seconds())
		metrics.OSPFLSDBSize.Set(float64(e.lsdb.Len()))
	}()

	var lsas []ospf.LSA
	e.lsdb.IterHeaders(func(h ospf.LSAHeader) {
		if lsa, ok := e.lsdb.Get(h.Key()); ok {
			lsas = append(lsas, lsa)
		}
	})
	graph, err := ospfspf.BuildGraph(lsas)
	if err != nil {
		e.logger.Warn("ospf: building SPF graph failed", zap.Error(err))
		return
	}
	routes := ospfspf.Run(graph, e.routerID)

	nextHopByRouter := make(map[uint32]netip.Addr, len(e.neighbors))
	for id, n := range e.neighbors {
		if addr, err := netip.ParseAddr(n.Address); err == nil {
			nextHopByRouter[id] = addr
		}
	}

	seen := make(map[netip.Prefix]struct{}, len(routes))
	for _, r := range routes {
		if r.Destination.Kind != ospfspf.NodeStubNetwork {
			continue
		}
		bits := bits.OnesCount32(r.Destination.Mask)
		prefix := netip.PrefixFrom(uint32ToAddr(r.Destination.ID), bits)
		nextHop, ok := nextHopByRouter[r.NextHop]
		if !ok {
			// No direct neighbor address is known for this first hop
			// (a multi-hop path beyond this interface's neighbors);
			// this single-interface core has no further topology to
			// resolve a next hop from, so it falls back to treating
			// the router id itself as the next-hop address, which
			// holds whenever router ids are assigned as loopback
			// addresses (a common operational convention).
			nextHop = uint32ToAddr(r.NextHop)
		}
		seen[prefix] = struct{}{}
		route := fib.Route{Prefix: prefix, NextHop: nextHop, Source: fib.SourceOSPF, Metric: r.Cost}
		if err := e.fib.Install(e.ctx, route); err != nil {
			e.logger.Warn("ospf: fib install failed", zap.Error(err))
		}
	}
	for prefix := range e.installedPrefixes {
		if _, ok := seen[prefix]; ok {
			continue
		}
		if err := e.fib.Remove(e.ctx, prefix, fib.SourceOSPF); err != nil {
			e.logger.Warn("ospf: fib remove failed", zap.Error(err))
		}
	}
	e.installedPrefixes = seen
}

// shutdown implements spec section 4.10's graceful OSPF teardown:
// sending a Hello with an empty neighbor list to hasten adjacency
// teardown on peers, best-effort.
func (e *ospfEngine) shutdown() {
	for _, n := range e.neighbors {
		if n.inactivityTimer != nil {
			n.inactivityTimer.Stop()
		}
	}
	hello := ospf.HelloPacket{
		NetworkMask:        e.netmask,
		HelloInterval:      uint16(e.cfg.HelloInterval),
		RouterPriority:     e.cfg.RouterPriority,
		RouterDeadInterval: uint32(e.cfg.DeadInterval),
	}
	e.sendPacket(hello, e.helloDestination())
}
