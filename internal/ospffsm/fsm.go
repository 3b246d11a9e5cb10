// Package ospffsm implements the RFC 2328 section 10.3 OSPF neighbor
// finite state machine as a pure transition table, mirroring the
// internal/bgpfsm kernel's shape: Transition consumes one Event and
// returns the Effects the adjacency runtime (internal/ospfadjacency)
// must realize (re-origination, flooding, timer control).
package ospffsm

type State int

const (
	Down State = iota
	Attempt
	Init
	TwoWay
	ExStart
	Exchange
	Loading
	Full
)

func (s State) String() string {
	switch s {
	case Down:
		return "Down"
	case Attempt:
		return "Attempt"
	case Init:
		return "Init"
	case TwoWay:
		return "2-Way"
	case ExStart:
		return "ExStart"
	case Exchange:
		return "Exchange"
	case Loading:
		return "Loading"
	case Full:
		return "Full"
	default:
		return "unknown"
	}
}

type Event int

const (
	HelloReceived Event = iota
	Start
	TwoWayReceived
	NegotiationDone
	ExchangeDone
	LoadingDone
	AdjOK
	SeqNumberMismatch
	BadLSReq
	OneWay
	KillNbr
	InactivityTimer
	LLDown
)

type Action int

const (
	ActionStartInactivityTimer Action = iota
	ActionResetInactivityTimer
	ActionStopInactivityTimer
	ActionStartExStart
	ActionClearLists
	ActionReoriginateRouterLSA
	ActionFloodSelfOriginatedLSAs
	ActionClearAdjacency
)

type Effect struct {
	Action Action
}

func act(a Action) Effect { return Effect{Action: a} }

// NetworkKind distinguishes the AdjOK? decision of RFC 2328 section 10.4:
// on broadcast/NBMA networks full adjacency forms only with the DR/BDR;
// on point-to-point and point-to-multipoint it always forms.
type NetworkKind int

const (
	Broadcast NetworkKind = iota
	PointToPoint
	PointToMultipoint
)

// ShouldFormAdjacency implements the AdjOK? decision.
func ShouldFormAdjacency(network NetworkKind, selfIsDRorBDR, neighborIsDRorBDR bool) bool {
	if network == PointToPoint || network == PointToMultipoint {
		return true
	}
	return selfIsDRorBDR || neighborIsDRorBDR
}

// IsMaster decides ExStart master/slave by RFC 2328 section 10.8: the
// side with the numerically larger router id is master.
func IsMaster(localRouterID, neighborRouterID uint32) bool {
	return localRouterID > neighborRouterID
}

// FSM is one OSPF neighbor's state machine.
type FSM struct {
	State State
}

func New() *FSM { return &FSM{State: Down} }

func (f *FSM) goTo(s State) { f.State = s }

// Transition applies event to the FSM's current state and returns the
// effects the caller must realize.
func (f *FSM) Transition(event Event) []Effect {
	switch f.State {
	case Down:
		return f.down(event)
	case Attempt:
		return f.attempt(event)
	case Init:
		return f.init(event)
	case TwoWay:
		return f.twoWay(event)
	case ExStart:
		return f.exStart(event)
	case Exchange:
		return f.exchange(event)
	case Loading:
		return f.loading(event)
	case Full:
		return f.full(event)
	default:
		return nil
	}
}

func (f *FSM) down(event Event) []Effect {
	switch event {
	case Start:
		f.goTo(Attempt)
		return []Effect{act(ActionStartInactivityTimer)}
	case HelloReceived:
		f.goTo(Init)
		return []Effect{act(ActionStartInactivityTimer)}
	default:
		return nil
	}
}

func (f *FSM) attempt(event Event) []Effect {
	switch event {
	case HelloReceived:
		f.goTo(Init)
		return []Effect{act(ActionResetInactivityTimer)}
	case InactivityTimer, LLDown, KillNbr:
		f.goTo(Down)
		return []Effect{act(ActionStopInactivityTimer), act(ActionClearLists), act(ActionClearAdjacency)}
	default:
		return nil
	}
}

func (f *FSM) init(event Event) []Effect {
	switch event {
	case HelloReceived:
		return []Effect{act(ActionResetInactivityTimer)}
	case TwoWayReceived:
		// AdjOK? is applied by the caller before delivering this event:
		// when it does not hold, the caller sends TwoWayReceived only to
		// remain in 2-Way rather than forwarding to ExStart.
		f.goTo(TwoWay)
		return nil
	case OneWay:
		return nil
	case InactivityTimer, LLDown, KillNbr:
		f.goTo(Down)
		return []Effect{act(ActionStopInactivityTimer), act(ActionClearLists), act(ActionClearAdjacency)}
	default:
		return nil
	}
}

func (f *FSM) twoWay(event Event) []Effect {
	switch event {
	case HelloReceived:
		return []Effect{act(ActionResetInactivityTimer)}
	case AdjOK:
		f.goTo(ExStart)
		return []Effect{act(ActionStartExStart)}
	case OneWay:
		f.goTo(Init)
		return []Effect{act(ActionClearLists)}
	case InactivityTimer, LLDown, KillNbr:
		f.goTo(Down)
		return []Effect{act(ActionStopInactivityTimer), act(ActionClearLists), act(ActionClearAdjacency)}
	default:
		return nil
	}
}

func (f *FSM) exStart(event Event) []Effect {
	switch event {
	case HelloReceived:
		return []Effect{act(ActionResetInactivityTimer)}
	case NegotiationDone:
		f.goTo(Exchange)
		return nil
	case OneWay:
		f.goTo(Init)
		return []Effect{act(ActionClearLists)}
	case AdjOK:
		// Re-evaluated AdjOK? determines the adjacency no longer applies
		// (e.g. DR/BDR change); drop back to 2-Way.
		f.goTo(TwoWay)
		return []Effect{act(ActionClearLists)}
	case InactivityTimer, LLDown, KillNbr:
		f.goTo(Down)
		return []Effect{act(ActionStopInactivityTimer), act(ActionClearLists), act(ActionClearAdjacency)}
	default:
		return nil
	}
}

func (f *FSM) exchange(event Event) []Effect {
	switch event {
	case HelloReceived:
		return []Effect{act(ActionResetInactivityTimer)}
	case ExchangeDone:
		f.goTo(Loading)
		return nil
	case SeqNumberMismatch, BadLSReq:
		f.goTo(ExStart)
		return []Effect{act(ActionClearLists), act(ActionStartExStart)}
	case OneWay:
		f.goTo(Init)
		return []Effect{act(ActionClearLists)}
	case AdjOK:
		f.goTo(TwoWay)
		return []Effect{act(ActionClearLists)}
	case InactivityTimer, LLDown, KillNbr:
		f.goTo(Down)
		return []Effect{act(ActionStopInactivityTimer), act(ActionClearLists), act(ActionClearAdjacency)}
	default:
		return nil
	}
}

func (f *FSM) loading(event Event) []Effect {
	switch event {
	case HelloReceived:
		return []Effect{act(ActionResetInactivityTimer)}
	case LoadingDone:
		f.goTo(Full)
		return []Effect{act(ActionReoriginateRouterLSA), act(ActionFloodSelfOriginatedLSAs)}
	case SeqNumberMismatch, BadLSReq:
		f.goTo(ExStart)
		return []Effect{act(ActionClearLists), act(ActionStartExStart)}
	case OneWay:
		f.goTo(Init)
		return []Effect{act(ActionClearLists)}
	case AdjOK:
		f.goTo(TwoWay)
		return []Effect{act(ActionClearLists)}
	case InactivityTimer, LLDown, KillNbr:
		f.goTo(Down)
		return []Effect{act(ActionStopInactivityTimer), act(ActionClearLists), act(ActionClearAdjacency)}
	default:
		return nil
	}
}

func (f *FSM) full(event Event) []Effect {
	switch event {
	case HelloReceived:
		return []Effect{act(ActionResetInactivityTimer)}
	case SeqNumberMismatch, BadLSReq:
		f.goTo(ExStart)
		return []Effect{act(ActionClearLists), act(ActionStartExStart)}
	case OneWay:
		f.goTo(Init)
		return []Effect{act(ActionClearLists)}
	case AdjOK:
		f.goTo(TwoWay)
		return []Effect{act(ActionClearLists)}
	case InactivityTimer, LLDown, KillNbr:
		f.goTo(Down)
		return []Effect{act(ActionStopInactivityTimer), act(ActionClearLists), act(ActionClearAdjacency)}
	default:
		return nil
	}
}
