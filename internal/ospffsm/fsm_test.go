package ospffsm

import "testing"

func hasAction(effects []Effect, a Action) bool {
	for _, e := range effects {
		if e.Action == a {
			return true
		}
	}
	return false
}

func TestFSM_DownToInitOnHello(t *testing.T) {
	f := New()
	f.Transition(HelloReceived)
	if f.State != Init {
		t.Fatalf("got %v, want Init", f.State)
	}
}

func TestFSM_FullAdjacencySequence(t *testing.T) {
	f := New()
	f.Transition(HelloReceived)
	f.Transition(TwoWayReceived)
	if f.State != TwoWay {
		t.Fatalf("got %v, want 2-Way", f.State)
	}

	effects := f.Transition(AdjOK)
	if f.State != ExStart {
		t.Fatalf("got %v, want ExStart", f.State)
	}
	if !hasAction(effects, ActionStartExStart) {
		t.Fatalf("expected ActionStartExStart, got %+v", effects)
	}

	f.Transition(NegotiationDone)
	if f.State != Exchange {
		t.Fatalf("got %v, want Exchange", f.State)
	}

	f.Transition(ExchangeDone)
	if f.State != Loading {
		t.Fatalf("got %v, want Loading", f.State)
	}

	effects = f.Transition(LoadingDone)
	if f.State != Full {
		t.Fatalf("got %v, want Full", f.State)
	}
	if !hasAction(effects, ActionReoriginateRouterLSA) || !hasAction(effects, ActionFloodSelfOriginatedLSAs) {
		t.Fatalf("expected re-origination and flooding on entering Full, got %+v", effects)
	}
}

func TestFSM_SeqNumberMismatchAbortsToExStart(t *testing.T) {
	f := New()
	f.State = Exchange
	f.Transition(SeqNumberMismatch)
	if f.State != ExStart {
		t.Fatalf("got %v, want ExStart", f.State)
	}
}

func TestFSM_KillNbrFromAnyStateGoesDown(t *testing.T) {
	for _, s := range []State{Attempt, Init, TwoWay, ExStart, Exchange, Loading, Full} {
		f := &FSM{State: s}
		f.Transition(KillNbr)
		if f.State != Down {
			t.Fatalf("from %v: got %v, want Down", s, f.State)
		}
	}
}

func TestShouldFormAdjacency_Broadcast(t *testing.T) {
	if !ShouldFormAdjacency(Broadcast, true, false) {
		t.Fatal("expected adjacency when self is DR/BDR")
	}
	if !ShouldFormAdjacency(Broadcast, false, true) {
		t.Fatal("expected adjacency when neighbor is DR/BDR")
	}
	if ShouldFormAdjacency(Broadcast, false, false) {
		t.Fatal("expected no adjacency when neither is DR/BDR")
	}
}

func TestShouldFormAdjacency_PointToPointAlwaysForms(t *testing.T) {
	if !ShouldFormAdjacency(PointToPoint, false, false) {
		t.Fatal("expected point-to-point to always form adjacency")
	}
	if !ShouldFormAdjacency(PointToMultipoint, false, false) {
		t.Fatal("expected point-to-multipoint to always form adjacency")
	}
}

func TestIsMaster_HigherRouterIDWins(t *testing.T) {
	if !IsMaster(10, 5) {
		t.Fatal("expected higher router id to be master")
	}
	if IsMaster(5, 10) {
		t.Fatal("expected lower router id to not be master")
	}
}

func TestFSM_OneWayDropsToInit(t *testing.T) {
	f := &FSM{State: Full}
	f.Transition(OneWay)
	if f.State != Init {
		t.Fatalf("got %v, want Init", f.State)
	}
}
