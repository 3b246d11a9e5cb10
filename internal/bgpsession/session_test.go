package bgpsession

import (
	"context"
	"net/netip"
	"testing"
	"time"

	"github.com/route-beacon/ribagent/internal/bgpfsm"
	"github.com/route-beacon/ribagent/internal/bgprib"
	"github.com/route-beacon/ribagent/internal/config"
	"github.com/route-beacon/ribagent/internal/transport"
	"github.com/route-beacon/ribagent/internal/wire/bgp"
)

// fixedPortTCP pins NetTCP's listener to a specific port regardless of
// what the caller asks for, so the test's active side can dial a port
// chosen ahead of time without racing an OS-assigned ephemeral port.
type fixedPortTCP struct {
	transport.NetTCP
	port uint16
}

func (f fixedPortTCP) Listen(ctx context.Context, address string, _ uint16) (transport.Listener, error) {
	return f.NetTCP.Listen(ctx, address, f.port)
}

func (f fixedPortTCP) Connect(ctx context.Context, address string, _ uint16) (transport.Stream, error) {
	return f.NetTCP.Connect(ctx, address, f.port)
}

func TestPeer_ActiveAndPassiveReachEstablished(t *testing.T) {
	const port = 17179

	var activeStates, passiveStates []bgpfsm.State
	activeDone := make(chan struct{})
	passiveDone := make(chan struct{})

	passiveCfg := config.PeerConfig{Address: "127.0.0.1", PeerAS: 65001, Passive: true}
	passiveLocal := LocalInfo{
		RouterID: netip.MustParseAddr("10.0.0.2"),
		LocalAS:  65002,
		HoldTime: 90 * time.Second,
		Address:  netip.MustParseAddr("127.0.0.1"),
	}
	passive := NewPeer(passiveCfg, passiveLocal, fixedPortTCP{port: port}, nil, nil, Callbacks{
		OnStateChange: func(addr netip.Addr, s bgpfsm.State) {
			passiveStates = append(passiveStates, s)
			if s == bgpfsm.Established {
				close(passiveDone)
			}
		},
	})

	activeCfg := config.PeerConfig{Address: "127.0.0.1", PeerAS: 65002}
	activeLocal := LocalInfo{
		RouterID: netip.MustParseAddr("10.0.0.1"),
		LocalAS:  65001,
		HoldTime: 90 * time.Second,
		Address:  netip.MustParseAddr("127.0.0.1"),
	}
	var receivedRoutes []bgprib.BgpRoute
	active := NewPeer(activeCfg, activeLocal, fixedPortTCP{port: port}, nil, nil, Callbacks{
		OnStateChange: func(addr netip.Addr, s bgpfsm.State) {
			activeStates = append(activeStates, s)
			if s == bgpfsm.Established {
				close(activeDone)
			}
		},
		OnUpdate: func(peer bgprib.PeerIdentity, routes []bgprib.BgpRoute, withdrawn []bgp.Prefix) {
			receivedRoutes = append(receivedRoutes, routes...)
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	go passive.Run(ctx)
	// give the passive listener a head start binding the port.
	time.Sleep(50 * time.Millisecond)
	go active.Run(ctx)

	select {
	case <-activeDone:
	case <-time.After(4 * time.Second):
		t.Fatalf("active side never reached Established, states so far: %v", activeStates)
	}
	select {
	case <-passiveDone:
	case <-time.After(4 * time.Second):
		t.Fatalf("passive side never reached Established, states so far: %v", passiveStates)
	}

	prefix, _ := netip.ParsePrefix("192.0.2.0/24")
	update := bgp.UpdateMessage{
		NLRI: []bgp.Prefix{{Addr: prefix.Addr(), Len: prefix.Bits()}},
		Attributes: func() bgp.AttributeMap {
			m := bgp.NewAttributeMap()
			m.Set(&bgp.Attribute{Code: bgp.AttrOrigin, Flags: bgp.FlagTransitive, Value: bgp.OriginValue(0)})
			m.Set(&bgp.Attribute{Code: bgp.AttrASPath, Flags: bgp.FlagTransitive, Value: bgp.ASPathValue{}})
			m.Set(&bgp.Attribute{Code: bgp.AttrNextHop, Flags: bgp.FlagTransitive, Value: bgp.NextHopValue{Addr: netip.MustParseAddr("127.0.0.1")}})
			return m
		}(),
	}
	encoded, err := bgp.EncodeMessage(update)
	if err != nil {
		t.Fatalf("EncodeMessage: %v", err)
	}
	if _, err := passive.stream.Write(encoded); err != nil {
		t.Fatalf("writing update from passive to active: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for len(receivedRoutes) == 0 {
		select {
		case <-deadline:
			t.Fatal("active side never delivered the UPDATE to OnUpdate")
		case <-time.After(10 * time.Millisecond):
		}
	}
	if receivedRoutes[0].Prefix.Addr != prefix.Addr() {
		t.Fatalf("got prefix %v, want %v", receivedRoutes[0].Prefix.Addr, prefix.Addr())
	}

	cancel()
}

func TestEventFor_RouteRefreshDoesNotMisclassifyAsHeaderError(t *testing.T) {
	se := eventFor(bgp.RouteRefreshMessage{AFI: bgp.AFIIPv4, SAFI: bgp.SAFIUnicast})
	if se.routeRefresh == nil {
		t.Fatal("expected a routeRefresh event, got nil")
	}
	if se.routeRefresh.AFI != bgp.AFIIPv4 || se.routeRefresh.SAFI != bgp.SAFIUnicast {
		t.Fatalf("got %+v, want AFI=%d SAFI=%d", se.routeRefresh, bgp.AFIIPv4, bgp.SAFIUnicast)
	}
}

func TestPeer_RouteRefreshInvokesCallbackWithoutFSMTransition(t *testing.T) {
	var gotAddr netip.Addr
	var gotAFI uint16
	var gotSAFI uint8
	calls := 0

	cfg := config.PeerConfig{Address: "127.0.0.1", PeerAS: 65001}
	local := LocalInfo{RouterID: netip.MustParseAddr("10.0.0.1"), LocalAS: 65002, HoldTime: 90 * time.Second}
	p := NewPeer(cfg, local, transport.NetTCP{}, nil, nil, Callbacks{
		OnRouteRefresh: func(addr netip.Addr, afi uint16, safi uint8) {
			calls++
			gotAddr, gotAFI, gotSAFI = addr, afi, safi
		},
	})
	p.fsm.State = bgpfsm.Established

	p.dispatch(context.Background(), sessionEvent{routeRefresh: &bgp.RouteRefreshMessage{AFI: bgp.AFIIPv4, SAFI: bgp.SAFIUnicast}})

	if calls != 1 {
		t.Fatalf("got %d OnRouteRefresh calls, want 1", calls)
	}
	if gotAddr.String() != "127.0.0.1" || gotAFI != bgp.AFIIPv4 || gotSAFI != bgp.SAFIUnicast {
		t.Fatalf("got addr=%v afi=%d safi=%d, want 127.0.0.1/%d/%d", gotAddr, gotAFI, gotSAFI, bgp.AFIIPv4, bgp.SAFIUnicast)
	}
	if p.fsm.State != bgpfsm.Established {
		t.Fatalf("route-refresh must not change FSM state, got %v", p.fsm.State)
	}
}

func TestPeer_HandleUpdate_MaxPrefixesExceededTearsDownSession(t *testing.T) {
	cfg := config.PeerConfig{Address: "127.0.0.1", PeerAS: 65001, MaxPrefixes: 1}
	local := LocalInfo{RouterID: netip.MustParseAddr("10.0.0.1"), LocalAS: 65002, HoldTime: 90 * time.Second}
	p := NewPeer(cfg, local, transport.NetTCP{}, nil, nil, Callbacks{})
	p.fsm.State = bgpfsm.Established

	attrs := bgp.NewAttributeMap()
	attrs.Set(&bgp.Attribute{Code: bgp.AttrOrigin, Flags: bgp.FlagTransitive, Value: bgp.OriginValue(0)})
	attrs.Set(&bgp.Attribute{Code: bgp.AttrASPath, Flags: bgp.FlagTransitive, Value: bgp.ASPathValue{}})

	firstPrefix, _ := netip.ParsePrefix("192.0.2.0/24")
	first := bgp.UpdateMessage{NLRI: []bgp.Prefix{{Addr: firstPrefix.Addr(), Len: firstPrefix.Bits()}}, Attributes: attrs}
	if exceeded := p.handleUpdate(first); exceeded {
		t.Fatal("one prefix under a limit of one must not exceed it")
	}

	secondPrefix, _ := netip.ParsePrefix("198.51.100.0/24")
	second := bgp.UpdateMessage{NLRI: []bgp.Prefix{{Addr: secondPrefix.Addr(), Len: secondPrefix.Bits()}}, Attributes: attrs}
	if exceeded := p.handleUpdate(second); !exceeded {
		t.Fatal("a second prefix past a limit of one must report exceeded")
	}

	p.dispatch(context.Background(), sessionEvent{kind: bgpfsm.UpdateMsg, msg: second})
	if p.fsm.State != bgpfsm.Idle {
		t.Fatalf("got %v, want Idle after max-prefixes teardown", p.fsm.State)
	}
}
