// Package bgpsession drives internal/bgpfsm's pure state machine against
// a real internal/transport connection: it owns the peer's TCP stream,
// realizes every bgpfsm.Effect (timers, wire I/O, capability
// negotiation), and hands decoded UPDATE content to the caller-supplied
// Callbacks rather than touching internal/bgprib or internal/bgpdecision
// directly, keeping this package a pure session runtime (spec section
// 4.4). Exactly one goroutine — the one running Run — ever mutates a
// Peer's fields; timers and the connection goroutines only ever send
// immutable sessionEvent values over the event channel, per the
// single-owner-task discipline of spec section 5.
package bgpsession

import (
	"bufio"
	"context"
	"io"
	"net/netip"
	"time"

	"github.com/route-beacon/ribagent/internal/bgpadvanced"
	"github.com/route-beacon/ribagent/internal/bgpdecision"
	"github.com/route-beacon/ribagent/internal/bgpfsm"
	"github.com/route-beacon/ribagent/internal/bgprib"
	"github.com/route-beacon/ribagent/internal/config"
	"github.com/route-beacon/ribagent/internal/transport"
	"github.com/route-beacon/ribagent/internal/wire/bgp"
	"go.uber.org/zap"
)

// BGPPort is the well-known BGP TCP port (RFC 4271 section 4).
const BGPPort uint16 = 179

// largeHoldTime is RFC 4271 section 8.2.2's suggested hold time while a
// session sits in OpenSent before the real value is negotiated.
const largeHoldTime = 240 * time.Second

// LocalInfo is the subset of router-wide identity a Peer needs that does
// not vary per neighbor.
type LocalInfo struct {
	RouterID         netip.Addr
	LocalAS          uint32
	HoldTime         time.Duration
	ConnectRetryTime time.Duration
	Address          netip.Addr // local interface address toward this peer
}

// Callbacks are how a Peer reports session and routing events to its
// owner (internal/agent), which alone touches internal/bgprib and
// internal/bgpdecision (spec section 5's single-owner discipline).
type Callbacks struct {
	// OnUpdate is called with every NLRI/withdrawal carried by an UPDATE
	// received while Established.
	OnUpdate func(peer bgprib.PeerIdentity, routes []bgprib.BgpRoute, withdrawn []bgp.Prefix)
	// OnStateChange is called after every FSM transition.
	OnStateChange func(peerAddr netip.Addr, state bgpfsm.State)
	// OnSessionDown is called once when a session leaves Established,
	// so the owner can mark routes stale for graceful restart (RFC 4724)
	// or remove them outright if restart was not negotiated.
	OnSessionDown func(peerAddr netip.Addr, restarting bool)
	// OnRouteRefresh is called on a received ROUTE-REFRESH (RFC 2918),
	// so the owner can resend Adj-RIB-Out for the requested address
	// family; Peer itself holds no RIB to replay from.
	OnRouteRefresh func(peerAddr netip.Addr, afi uint16, safi uint8)
	// OnRawMessage is called with every raw wire message this peer
	// reads, before decoding, so an optional diagnostics capture buffer
	// can retain it independently of whether decoding succeeds. Left
	// nil, nothing is captured.
	OnRawMessage func(peerAddr netip.Addr, raw []byte)
}

type sessionEvent struct {
	kind         bgpfsm.Event
	msg          bgp.Message
	stream       transport.Stream
	routeRefresh *bgp.RouteRefreshMessage
}

// Peer runs one BGP session's FSM against a real connection.
type Peer struct {
	cfg   config.PeerConfig
	local LocalInfo
	kind  bgpdecision.PeerKind

	transport transport.TCP
	logger    *zap.Logger
	callbacks Callbacks

	damping *bgpadvanced.Damping
	restart *bgpadvanced.RestartState

	fsm       *bgpfsm.FSM
	events    chan sessionEvent
	advertise chan bgp.UpdateMessage
	done      chan struct{}

	stream       transport.Stream
	localOpen    bgp.OpenMessage
	negotiated   NegotiatedCapabilities
	peerRouterID netip.Addr
	held         map[bgp.Prefix]struct{}

	connectRetryTimer *time.Timer
	holdTimer         *time.Timer
	keepaliveTimer    *time.Timer
}

// NewPeer constructs a Peer in the Idle state. damping may be nil (no
// flap damping for this peer); it is expected to be shared across every
// eBGP peer of the same router per spec section 4.6's default scope.
func NewPeer(cfg config.PeerConfig, local LocalInfo, tcp transport.TCP, logger *zap.Logger, damping *bgpadvanced.Damping, callbacks Callbacks) *Peer {
	kind := bgpdecision.EBGP
	if cfg.PeerAS == local.LocalAS {
		kind = bgpdecision.IBGP
	}
	var restart *bgpadvanced.RestartState
	if cfg.EnableGracefulRestart {
		restart = bgpadvanced.NewRestartState(0)
	}
	return &Peer{
		cfg:       cfg,
		local:     local,
		kind:      kind,
		transport: tcp,
		logger:    logger,
		callbacks: callbacks,
		damping:   damping,
		restart:   restart,
		fsm:       bgpfsm.New(local.HoldTime),
		events:    make(chan sessionEvent, 16),
		advertise: make(chan bgp.UpdateMessage, 64),
		done:      make(chan struct{}),
		held:      make(map[bgp.Prefix]struct{}),
	}
}

// Kind reports whether this session is eBGP or iBGP.
func (p *Peer) Kind() bgpdecision.PeerKind { return p.kind }

// State reports the FSM's current state.
func (p *Peer) State() bgpfsm.State { return p.fsm.State }

// NegotiatedCapabilities reports what the last successful OPEN exchange
// agreed to; callers should check State() is at least OpenConfirm first.
func (p *Peer) NegotiatedCapabilities() NegotiatedCapabilities { return p.negotiated }

// Address is the peer's configured neighbor address.
func (p *Peer) Address() (netip.Addr, error) { return netip.ParseAddr(p.cfg.Address) }

// Advertise queues an UPDATE for this peer. It is silently dropped if the
// session is not Established by the time Run's goroutine dequeues it —
// the owner (internal/agent) is expected to re-advertise the current
// best path once OnStateChange reports Established again, the same way
// a real implementation resends Adj-RIB-Out on session re-establishment.
func (p *Peer) Advertise(update bgp.UpdateMessage) {
	select {
	case p.advertise <- update:
	case <-p.done:
	}
}

// Run drives the session until ctx is cancelled or the FSM returns to
// Idle after a connection attempt concludes. The caller (internal/agent)
// is responsible for calling Run again to retry, mirroring RFC 4271
// section 8.2.1's AutomaticStart being a policy decision above the FSM.
func (p *Peer) Run(ctx context.Context) error {
	defer close(p.done)

	start := bgpfsm.ManualStart
	if p.cfg.Passive {
		start = bgpfsm.ManualStartPassive
	}
	p.dispatch(ctx, sessionEvent{kind: start})

	for {
		select {
		case <-ctx.Done():
			p.dispatch(context.Background(), sessionEvent{kind: bgpfsm.ManualStop})
			return ctx.Err()
		case se := <-p.events:
			wasEstablished := p.fsm.State == bgpfsm.Established
			p.dispatch(ctx, se)
			if wasEstablished && p.fsm.State != bgpfsm.Established {
				p.sessionDown()
			}
			if p.fsm.State == bgpfsm.Idle {
				return nil
			}
		case upd := <-p.advertise:
			if p.fsm.State == bgpfsm.Established {
				p.send(upd)
			}
		}
	}
}

func (p *Peer) postEvent(se sessionEvent) {
	select {
	case p.events <- se:
	case <-p.done:
	}
}

func (p *Peer) dispatch(ctx context.Context, se sessionEvent) {
	if se.routeRefresh != nil {
		p.handleRouteRefresh(*se.routeRefresh)
		return
	}

	kind := se.kind

	if kind == bgpfsm.TCPConnectionConfirmed && se.stream != nil {
		p.stream = se.stream
		go p.readLoop(se.stream)
	}

	if kind == bgpfsm.BGPOpen {
		open, _ := se.msg.(bgp.OpenMessage)
		holdTime, holdOK := bgpfsm.NegotiateHoldTime(uint16(p.local.HoldTime/time.Second), open.HoldTime)
		if (p.cfg.PeerAS != 0 && open.ASN != p.cfg.PeerAS) || !holdOK {
			kind = bgpfsm.BGPOpenMsgErr
		} else {
			p.fsm.HoldTime = time.Duration(holdTime) * time.Second
			p.fsm.KeepaliveTime = bgpfsm.KeepaliveFromHoldTime(p.fsm.HoldTime)
			p.negotiated = Negotiate(p.localOpen, open)
			p.peerRouterID = open.RouterID
			if p.restart != nil && p.negotiated.GracefulRestart != nil {
				p.restart.Negotiated = true
				p.restart.RestartTime = time.Duration(p.negotiated.GracefulRestart.RestartTimeSeconds) * time.Second
				p.restart.ForwardingPreserved = restartAddressFamilies(*p.negotiated.GracefulRestart)
			}
		}
	}

	effects := p.fsm.Transition(kind)
	p.applyEffects(ctx, effects)

	if kind == bgpfsm.UpdateMsg && p.fsm.State == bgpfsm.Established {
		if update, ok := se.msg.(bgp.UpdateMessage); ok {
			if p.handleUpdate(update) {
				p.applyEffects(ctx, p.fsm.Transition(bgpfsm.CeaseMaxPrefixesExceeded))
			}
		}
	}

	if p.callbacks.OnStateChange != nil {
		if addr, err := p.Address(); err == nil {
			p.callbacks.OnStateChange(addr, p.fsm.State)
		}
	}
}

func (p *Peer) sessionDown() {
	p.held = make(map[bgp.Prefix]struct{})
	restarting := p.restart != nil && p.restart.Negotiated
	if p.restart != nil {
		if restarting {
			p.restart.BeginRestart(time.Now())
		} else {
			p.restart.Clear()
		}
	}
	if p.callbacks.OnSessionDown != nil {
		if addr, err := p.Address(); err == nil {
			p.callbacks.OnSessionDown(addr, restarting)
		}
	}
}

// handleUpdate applies one UPDATE to Peer's own held-prefix count (kept
// independently of internal/bgprib, which this package never touches) and
// reports the NLRI/withdrawals to the owner. It returns true once the
// held count has passed cfg.MaxPrefixes, telling dispatch to tear the
// session down with a Cease NOTIFICATION (RFC 4486 subcode 1).
func (p *Peer) handleUpdate(update bgp.UpdateMessage) bool {
	addr, err := p.Address()
	if err != nil {
		return false
	}
	peer := bgprib.PeerIdentity{Address: addr, RouterID: p.peerRouterID}

	now := time.Now()
	for _, w := range update.WithdrawnRoutes {
		delete(p.held, w)
		if p.damping != nil {
			p.damping.RecordWithdraw(w, now)
		}
	}

	var routes []bgprib.BgpRoute
	if len(update.NLRI) > 0 {
		if p.damping != nil {
			for _, n := range update.NLRI {
				p.damping.RecordAttributeChange(n, now)
			}
		}
		for _, n := range update.NLRI {
			p.held[n] = struct{}{}
			routes = append(routes, bgprib.BgpRoute{
				Prefix:     n,
				Attributes: update.Attributes.Clone(),
				Peer:       peer,
				Source:     bgprib.SourceFromPeer,
				Timestamp:  now,
			})
		}
	}

	if p.restart != nil && update.IsEndOfRIBMarker() {
		p.restart.MarkEndOfRIB(bgpadvanced.AddressFamily{AFI: bgp.AFIIPv4, SAFI: bgp.SAFIUnicast})
	}

	if p.callbacks.OnUpdate != nil && (len(routes) > 0 || len(update.WithdrawnRoutes) > 0) {
		p.callbacks.OnUpdate(peer, routes, update.WithdrawnRoutes)
	}

	return p.cfg.MaxPrefixes > 0 && len(p.held) > p.cfg.MaxPrefixes
}

// handleRouteRefresh reacts to a received ROUTE-REFRESH (RFC 2918). Unlike
// every other message type it carries no FSM transition of its own — the
// request is purely a signal for the owner to resend Adj-RIB-Out for the
// given address family — so it bypasses fsm.Transition entirely rather
// than being shoehorned into an Event the FSM was never meant to see.
func (p *Peer) handleRouteRefresh(m bgp.RouteRefreshMessage) {
	if p.fsm.State != bgpfsm.Established || p.callbacks.OnRouteRefresh == nil {
		return
	}
	addr, err := p.Address()
	if err != nil {
		return
	}
	p.callbacks.OnRouteRefresh(addr, m.AFI, m.SAFI)
}

func (p *Peer) applyEffects(ctx context.Context, effects []bgpfsm.Effect) {
	for _, e := range effects {
		switch e.Action {
		case bgpfsm.ActionInitializeResources:
			// nothing to pre-allocate; state lives in Peer's fields already.
		case bgpfsm.ActionReleaseResources:
			p.closeStream()
		case bgpfsm.ActionStartConnectRetryTimer, bgpfsm.ActionResetConnectRetryTimer:
			p.arm(&p.connectRetryTimer, p.connectRetryTime(), bgpfsm.ConnectRetryTimerExpires)
		case bgpfsm.ActionStopConnectRetryTimer:
			p.stop(&p.connectRetryTimer)
		case bgpfsm.ActionIncrementConnectRetryCounter:
			// bgpfsm already incremented its own counter; nothing to do here.
		case bgpfsm.ActionConnect:
			go p.dial(ctx)
		case bgpfsm.ActionListen:
			go p.accept(ctx)
		case bgpfsm.ActionDropConnection:
			p.closeStream()
		case bgpfsm.ActionSendOpen:
			p.sendOpen()
		case bgpfsm.ActionSendKeepalive:
			p.send(bgp.KeepaliveMessage{})
		case bgpfsm.ActionSendNotification:
			p.send(bgp.NotificationMessage{ErrorCode: e.NotificationCode, ErrorSubcode: e.NotificationSubcode})
		case bgpfsm.ActionStartHoldTimerLarge:
			p.arm(&p.holdTimer, largeHoldTime, bgpfsm.HoldTimerExpires)
		case bgpfsm.ActionStartHoldTimer:
			p.arm(&p.holdTimer, p.fsm.HoldTime, bgpfsm.HoldTimerExpires)
		case bgpfsm.ActionStopHoldTimer:
			p.stop(&p.holdTimer)
		case bgpfsm.ActionStartKeepaliveTimer:
			p.arm(&p.keepaliveTimer, p.fsm.KeepaliveTime, bgpfsm.KeepaliveTimerExpires)
		case bgpfsm.ActionStopKeepaliveTimer:
			p.stop(&p.keepaliveTimer)
		}
	}
}

func (p *Peer) connectRetryTime() time.Duration {
	if p.local.ConnectRetryTime > 0 {
		return p.local.ConnectRetryTime
	}
	return 30 * time.Second
}

func (p *Peer) arm(timer **time.Timer, d time.Duration, ev bgpfsm.Event) {
	p.stop(timer)
	if d <= 0 {
		return
	}
	*timer = time.AfterFunc(d, func() {
		p.postEvent(sessionEvent{kind: ev})
	})
}

func (p *Peer) stop(timer **time.Timer) {
	if *timer != nil {
		(*timer).Stop()
		*timer = nil
	}
}

func (p *Peer) dial(ctx context.Context) {
	addr, err := p.Address()
	if err != nil {
		p.postEvent(sessionEvent{kind: bgpfsm.TCPConnectionFails})
		return
	}
	stream, err := p.transport.Connect(ctx, addr.String(), BGPPort)
	if err != nil {
		p.postEvent(sessionEvent{kind: bgpfsm.TCPConnectionFails})
		return
	}
	p.postEvent(sessionEvent{kind: bgpfsm.TCPConnectionConfirmed, stream: stream})
}

func (p *Peer) accept(ctx context.Context) {
	ln, err := p.transport.Listen(ctx, p.local.Address.String(), BGPPort)
	if err != nil {
		p.postEvent(sessionEvent{kind: bgpfsm.TCPConnectionFails})
		return
	}
	defer ln.Close()
	stream, err := ln.Accept(ctx)
	if err != nil {
		p.postEvent(sessionEvent{kind: bgpfsm.TCPConnectionFails})
		return
	}
	p.postEvent(sessionEvent{kind: bgpfsm.TCPConnectionConfirmed, stream: stream})
}

func (p *Peer) closeStream() {
	if p.stream != nil {
		p.stream.Close()
		p.stream = nil
	}
}

func (p *Peer) sendOpen() {
	restartTime := uint16(0)
	if p.restart != nil {
		restartTime = 120
	}
	p.localOpen = BuildOpenMessage(p.local.LocalAS, uint16(p.local.HoldTime/time.Second), p.local.RouterID, p.cfg, restartTime)
	p.send(p.localOpen)
}

func (p *Peer) send(msg bgp.Message) {
	if p.stream == nil {
		return
	}
	encoded, err := bgp.EncodeMessage(msg)
	if err != nil {
		if p.logger != nil {
			p.logger.Error("failed to encode outgoing BGP message", zap.Error(err))
		}
		return
	}
	if _, err := p.stream.Write(encoded); err != nil {
		p.postEvent(sessionEvent{kind: bgpfsm.TCPConnectionFails})
	}
}

// readLoop owns only its stream argument, never Peer's mutable fields,
// so it stays safe to run concurrently with the Run goroutine.
func (p *Peer) readLoop(stream transport.Stream) {
	r := bufio.NewReaderSize(stream, bgp.MaxMessageSize)
	for {
		header := make([]byte, bgp.HeaderSize)
		if _, err := io.ReadFull(r, header); err != nil {
			p.postEvent(sessionEvent{kind: bgpfsm.TCPConnectionFails})
			return
		}
		hdr, err := bgp.DecodeHeader(header)
		if err != nil {
			p.postEvent(sessionEvent{kind: bgpfsm.BGPHeaderErr})
			return
		}
		full := make([]byte, hdr.Length)
		copy(full, header)
		if hdr.Length > bgp.HeaderSize {
			if _, err := io.ReadFull(r, full[bgp.HeaderSize:]); err != nil {
				p.postEvent(sessionEvent{kind: bgpfsm.TCPConnectionFails})
				return
			}
		}
		if p.callbacks.OnRawMessage != nil {
			if addr, err := p.Address(); err == nil {
				p.callbacks.OnRawMessage(addr, full)
			}
		}
		msg, _, err := bgp.DecodeMessage(full)
		if err != nil {
			p.postEvent(sessionEvent{kind: bgpfsm.BGPHeaderErr})
			return
		}
		p.postEvent(eventFor(msg))
	}
}

func eventFor(msg bgp.Message) sessionEvent {
	switch m := msg.(type) {
	case bgp.OpenMessage:
		return sessionEvent{kind: bgpfsm.BGPOpen, msg: m}
	case bgp.KeepaliveMessage:
		return sessionEvent{kind: bgpfsm.KeepAliveMsg}
	case bgp.UpdateMessage:
		return sessionEvent{kind: bgpfsm.UpdateMsg, msg: m}
	case bgp.NotificationMessage:
		if m.ErrorCode == bgp.ErrCodeOpenMessage && m.ErrorSubcode == bgp.SubcodeUnsupportedVersionNumber {
			return sessionEvent{kind: bgpfsm.NotifMsgVerErr, msg: m}
		}
		return sessionEvent{kind: bgpfsm.NotifMsg, msg: m}
	case bgp.RouteRefreshMessage:
		rr := m
		return sessionEvent{routeRefresh: &rr}
	default:
		return sessionEvent{kind: bgpfsm.BGPHeaderErr}
	}
}
