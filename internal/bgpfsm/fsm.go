// Package bgpfsm implements the RFC 4271 section 8 BGP session finite
// state machine as a pure transition table: Transition consumes one
// Event and returns the Effects the session runtime (internal/bgpsession)
// must realize on the wire and with timers. No I/O, no timers, and no
// locking live here — the FSM only tracks State and the few counters
// RFC 4271 requires (ConnectRetryCounter, the negotiated HoldTime).
package bgpfsm

import (
	"time"

	"github.com/route-beacon/ribagent/internal/wire/bgp"
)

type State int

const (
	Idle State = iota
	Connect
	Active
	OpenSent
	OpenConfirm
	Established
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Connect:
		return "Connect"
	case Active:
		return "Active"
	case OpenSent:
		return "OpenSent"
	case OpenConfirm:
		return "OpenConfirm"
	case Established:
		return "Established"
	default:
		return "unknown"
	}
}

type Event int

const (
	ManualStart Event = iota
	ManualStartPassive
	ManualStop
	AutomaticStart
	AutomaticStop
	ConnectRetryTimerExpires
	HoldTimerExpires
	KeepaliveTimerExpires
	DelayOpenTimerExpires
	TCPConnectionConfirmed
	TCPConnectionFails
	BGPOpen
	BGPHeaderErr
	BGPOpenMsgErr
	NotifMsgVerErr
	NotifMsg
	KeepAliveMsg
	UpdateMsg
	UpdateMsgErr
	// CeaseMaxPrefixesExceeded is not an RFC 4271 FSM input: it is raised
	// by internal/bgpsession once a peer's accepted prefix count passes
	// its configured limit (RFC 4486 Cease subcode 1), valid only from
	// Established.
	CeaseMaxPrefixesExceeded
)

type Action int

const (
	ActionInitializeResources Action = iota
	ActionReleaseResources
	ActionStartConnectRetryTimer
	ActionStopConnectRetryTimer
	ActionResetConnectRetryTimer
	ActionIncrementConnectRetryCounter
	ActionConnect
	ActionListen
	ActionDropConnection
	ActionSendOpen
	ActionSendKeepalive
	ActionSendNotification
	ActionStartHoldTimerLarge
	ActionStartHoldTimer
	ActionStopHoldTimer
	ActionStartKeepaliveTimer
	ActionStopKeepaliveTimer
)

// Effect is one action the session runtime must perform in response to a
// Transition. NotificationCode/Subcode are only meaningful when Action is
// ActionSendNotification.
type Effect struct {
	Action              Action
	NotificationCode    uint8
	NotificationSubcode uint8
}

func act(a Action) Effect { return Effect{Action: a} }

func notify(code, subcode uint8) Effect {
	return Effect{Action: ActionSendNotification, NotificationCode: code, NotificationSubcode: subcode}
}

// largeHoldTime is the RFC 4271 section 8.2.2-suggested value a session
// sets its hold timer to in OpenSent, before the real HoldTime is
// negotiated from the peer's OPEN.
const largeHoldTime = 240 * time.Second

// FSM is one BGP session's state machine.
type FSM struct {
	State               State
	ConnectRetryCounter int
	HoldTime            time.Duration
	KeepaliveTime       time.Duration
}

// New returns an FSM in the Idle state with the given configured
// (not yet negotiated) hold time.
func New(holdTime time.Duration) *FSM {
	return &FSM{State: Idle, HoldTime: holdTime, KeepaliveTime: KeepaliveFromHoldTime(holdTime)}
}

func (f *FSM) goTo(s State) { f.State = s }

// NegotiateHoldTime applies RFC 4271 section 4.2's rule: the negotiated
// HoldTime is the smaller of the two offered values; 1 and 2 are invalid
// values for either side.
func NegotiateHoldTime(local, peer uint16) (uint16, bool) {
	if local == 1 || local == 2 || peer == 1 || peer == 2 {
		return 0, false
	}
	if local < peer {
		return local, true
	}
	return peer, true
}

// KeepaliveFromHoldTime returns HoldTime/3, the RFC 4271 section 8.2.2
// relationship between hold and keepalive intervals. A zero HoldTime
// (timers disabled) yields a zero KeepaliveTime.
func KeepaliveFromHoldTime(hold time.Duration) time.Duration {
	if hold == 0 {
		return 0
	}
	return hold / 3
}

// ResolveCollision reports whether the connection identified by localID
// should be kept when a collision is detected against a connection from
// remoteID: RFC 4271 section 6.8 keeps the connection initiated by the
// peer with the numerically lower BGP identifier.
func ResolveCollision(localID, remoteID uint32) bool {
	return localID < remoteID
}

// Transition applies event to the FSM's current state and returns the
// effects the caller must realize.
func (f *FSM) Transition(event Event) []Effect {
	switch f.State {
	case Idle:
		return f.idle(event)
	case Connect:
		return f.connect(event)
	case Active:
		return f.active(event)
	case OpenSent:
		return f.openSent(event)
	case OpenConfirm:
		return f.openConfirm(event)
	case Established:
		return f.established(event)
	default:
		return nil
	}
}

func (f *FSM) idle(event Event) []Effect {
	switch event {
	case ManualStart, AutomaticStart:
		f.ConnectRetryCounter = 0
		f.goTo(Connect)
		return []Effect{act(ActionInitializeResources), act(ActionStartConnectRetryTimer), act(ActionConnect)}
	case ManualStartPassive:
		f.ConnectRetryCounter = 0
		f.goTo(Active)
		return []Effect{act(ActionInitializeResources), act(ActionStartConnectRetryTimer), act(ActionListen)}
	default:
		return nil
	}
}

func (f *FSM) connect(event Event) []Effect {
	switch event {
	case ManualStop:
		f.ConnectRetryCounter = 0
		f.goTo(Idle)
		return []Effect{act(ActionDropConnection), act(ActionReleaseResources), act(ActionStopConnectRetryTimer)}
	case ConnectRetryTimerExpires:
		return []Effect{act(ActionDropConnection), act(ActionResetConnectRetryTimer), act(ActionConnect)}
	case TCPConnectionConfirmed:
		f.goTo(OpenSent)
		return []Effect{act(ActionStopConnectRetryTimer), act(ActionSendOpen), act(ActionStartHoldTimerLarge)}
	case TCPConnectionFails:
		f.goTo(Active)
		return []Effect{act(ActionResetConnectRetryTimer)}
	default:
		f.ConnectRetryCounter++
		f.goTo(Idle)
		return []Effect{act(ActionDropConnection), act(ActionReleaseResources), act(ActionStopConnectRetryTimer), act(ActionIncrementConnectRetryCounter)}
	}
}

func (f *FSM) active(event Event) []Effect {
	switch event {
	case ManualStop:
		f.ConnectRetryCounter = 0
		f.goTo(Idle)
		return []Effect{act(ActionDropConnection), act(ActionReleaseResources), act(ActionStopConnectRetryTimer)}
	case ConnectRetryTimerExpires:
		f.goTo(Connect)
		return []Effect{act(ActionResetConnectRetryTimer), act(ActionConnect), act(ActionListen)}
	case TCPConnectionConfirmed:
		f.goTo(OpenSent)
		return []Effect{act(ActionStopConnectRetryTimer), act(ActionSendOpen), act(ActionStartHoldTimerLarge)}
	case TCPConnectionFails:
		f.ConnectRetryCounter++
		f.goTo(Idle)
		return []Effect{act(ActionResetConnectRetryTimer), act(ActionDropConnection), act(ActionReleaseResources), act(ActionIncrementConnectRetryCounter)}
	default:
		f.ConnectRetryCounter++
		f.goTo(Idle)
		return []Effect{act(ActionDropConnection), act(ActionReleaseResources), act(ActionStopConnectRetryTimer), act(ActionIncrementConnectRetryCounter)}
	}
}

func (f *FSM) openSent(event Event) []Effect {
	switch event {
	case ManualStop:
		f.ConnectRetryCounter = 0
		f.goTo(Idle)
		return []Effect{notify(bgp.ErrCodeCease, 0), act(ActionDropConnection), act(ActionReleaseResources), act(ActionStopConnectRetryTimer)}
	case TCPConnectionFails:
		f.goTo(Active)
		return []Effect{act(ActionResetConnectRetryTimer)}
	case BGPOpen:
		f.goTo(OpenConfirm)
		effects := []Effect{act(ActionSendKeepalive)}
		if f.HoldTime != 0 {
			effects = append(effects, act(ActionStartKeepaliveTimer), act(ActionStartHoldTimer))
		} else {
			effects = append(effects, act(ActionStopHoldTimer))
		}
		return effects
	case BGPHeaderErr:
		f.ConnectRetryCounter++
		f.goTo(Idle)
		return []Effect{notify(bgp.ErrCodeMessageHeader, 0), act(ActionDropConnection), act(ActionReleaseResources), act(ActionIncrementConnectRetryCounter)}
	case BGPOpenMsgErr:
		f.ConnectRetryCounter++
		f.goTo(Idle)
		return []Effect{notify(bgp.ErrCodeOpenMessage, 0), act(ActionDropConnection), act(ActionReleaseResources), act(ActionIncrementConnectRetryCounter)}
	case NotifMsgVerErr:
		f.goTo(Idle)
		return []Effect{act(ActionDropConnection), act(ActionReleaseResources), act(ActionStopConnectRetryTimer)}
	default:
		f.ConnectRetryCounter++
		f.goTo(Idle)
		return []Effect{notify(bgp.ErrCodeFSM, 0), act(ActionDropConnection), act(ActionReleaseResources), act(ActionIncrementConnectRetryCounter)}
	}
}

func (f *FSM) openConfirm(event Event) []Effect {
	switch event {
	case ManualStop:
		f.ConnectRetryCounter = 0
		f.goTo(Idle)
		return []Effect{notify(bgp.ErrCodeCease, 0), act(ActionDropConnection), act(ActionReleaseResources), act(ActionStopConnectRetryTimer), act(ActionStopHoldTimer), act(ActionStopKeepaliveTimer)}
	case HoldTimerExpires:
		f.ConnectRetryCounter++
		f.goTo(Idle)
		return []Effect{notify(bgp.ErrCodeHoldTimerExpired, 0), act(ActionDropConnection), act(ActionReleaseResources), act(ActionIncrementConnectRetryCounter)}
	case KeepaliveTimerExpires:
		return []Effect{act(ActionSendKeepalive), act(ActionStartKeepaliveTimer)}
	case TCPConnectionFails:
		f.goTo(Idle)
		return []Effect{act(ActionReleaseResources), act(ActionStopConnectRetryTimer)}
	case NotifMsg, NotifMsgVerErr:
		f.goTo(Idle)
		return []Effect{act(ActionDropConnection), act(ActionReleaseResources), act(ActionStopConnectRetryTimer)}
	case KeepAliveMsg:
		f.goTo(Established)
		effects := []Effect{}
		if f.HoldTime != 0 {
			effects = append(effects, act(ActionStartHoldTimer))
		}
		return effects
	case BGPHeaderErr:
		f.ConnectRetryCounter++
		f.goTo(Idle)
		return []Effect{notify(bgp.ErrCodeMessageHeader, 0), act(ActionDropConnection), act(ActionReleaseResources), act(ActionIncrementConnectRetryCounter)}
	case BGPOpenMsgErr:
		f.ConnectRetryCounter++
		f.goTo(Idle)
		return []Effect{notify(bgp.ErrCodeOpenMessage, 0), act(ActionDropConnection), act(ActionReleaseResources), act(ActionIncrementConnectRetryCounter)}
	default:
		f.ConnectRetryCounter++
		f.goTo(Idle)
		return []Effect{notify(bgp.ErrCodeFSM, 0), act(ActionDropConnection), act(ActionReleaseResources), act(ActionIncrementConnectRetryCounter)}
	}
}

func (f *FSM) established(event Event) []Effect {
	switch event {
	case ManualStop:
		f.ConnectRetryCounter = 0
		f.goTo(Idle)
		return []Effect{notify(bgp.ErrCodeCease, 0), act(ActionDropConnection), act(ActionReleaseResources), act(ActionStopConnectRetryTimer), act(ActionStopHoldTimer), act(ActionStopKeepaliveTimer)}
	case HoldTimerExpires:
		f.ConnectRetryCounter++
		f.goTo(Idle)
		return []Effect{notify(bgp.ErrCodeHoldTimerExpired, 0), act(ActionDropConnection), act(ActionReleaseResources), act(ActionIncrementConnectRetryCounter)}
	case KeepaliveTimerExpires:
		return []Effect{act(ActionSendKeepalive), act(ActionStartKeepaliveTimer)}
	case KeepAliveMsg:
		if f.HoldTime != 0 {
			return []Effect{act(ActionStartHoldTimer)}
		}
		return nil
	case UpdateMsg:
		if f.HoldTime != 0 {
			return []Effect{act(ActionStartHoldTimer)}
		}
		return nil
	case UpdateMsgErr:
		f.ConnectRetryCounter++
		f.goTo(Idle)
		return []Effect{notify(bgp.ErrCodeUpdateMessage, 0), act(ActionDropConnection), act(ActionReleaseResources), act(ActionIncrementConnectRetryCounter)}
	case CeaseMaxPrefixesExceeded:
		f.ConnectRetryCounter++
		f.goTo(Idle)
		return []Effect{notify(bgp.ErrCodeCease, bgp.SubcodeMaxPrefixesReached), act(ActionDropConnection), act(ActionReleaseResources), act(ActionStopConnectRetryTimer), act(ActionStopHoldTimer), act(ActionStopKeepaliveTimer)}
	case NotifMsg:
		f.goTo(Idle)
		return []Effect{act(ActionDropConnection), act(ActionReleaseResources), act(ActionStopConnectRetryTimer)}
	case TCPConnectionFails:
		f.ConnectRetryCounter++
		f.goTo(Idle)
		return []Effect{act(ActionReleaseResources), act(ActionIncrementConnectRetryCounter)}
	case BGPHeaderErr:
		f.ConnectRetryCounter++
		f.goTo(Idle)
		return []Effect{notify(bgp.ErrCodeMessageHeader, 0), act(ActionDropConnection), act(ActionReleaseResources), act(ActionIncrementConnectRetryCounter)}
	default:
		f.ConnectRetryCounter++
		f.goTo(Idle)
		return []Effect{notify(bgp.ErrCodeFSM, 0), act(ActionDropConnection), act(ActionReleaseResources), act(ActionIncrementConnectRetryCounter)}
	}
}
