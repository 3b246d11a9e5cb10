// Package events defines the single event vocabulary the agent's engines
// emit for anything outside the hot path to observe: a best-path change
// in BGP's decision process, an OSPF adjacency transition, or an LSA
// this router just installed into its own database. internal/journal,
// internal/eventbus, and the structured log are three independent sinks
// for this same stream, each implementing Hook.
package events

import (
	"net/netip"
	"time"
)

// BestPathEvent describes a Loc-RIB change: a prefix either won by a new
// best route (Withdrawn false) or lost its only route (Withdrawn true).
type BestPathEvent struct {
	Prefix    netip.Prefix
	NextHop   netip.Addr
	Peer      netip.Addr
	ASPath    string
	Withdrawn bool
	Timestamp time.Time
}

// AdjacencyEvent describes an OSPF or BGP neighbor's state transition.
type AdjacencyEvent struct {
	Protocol  string // "ospf" or "bgp"
	Neighbor  string
	State     string
	Timestamp time.Time
}

// LSAEvent describes an LSA this router just installed into its LSDB,
// whether self-originated or received during flooding.
type LSAEvent struct {
	RouterID    string
	LSType      uint8
	LinkStateID string
	SeqNumber   int32
	Timestamp   time.Time
}

// Hook is the sink interface the agent notifies on every routing-relevant
// state transition. Implementations must not block the engine goroutine
// that calls them — internal/journal and internal/eventbus both hand the
// event to a buffered channel and return immediately.
type Hook interface {
	InstallBest(BestPathEvent)
	WithdrawBest(BestPathEvent)
	AdjacencyChange(AdjacencyEvent)
	LsaInstalled(LSAEvent)
}

// NopHook discards every event. It is the Hook used when no journal,
// event bus, or diagnostics sink is configured.
type NopHook struct{}

func (NopHook) InstallBest(BestPathEvent)      {}
func (NopHook) WithdrawBest(BestPathEvent)     {}
func (NopHook) AdjacencyChange(AdjacencyEvent) {}
func (NopHook) LsaInstalled(LSAEvent)          {}

// Multi fans one event out to every Hook in order, letting the journal,
// the event bus, and the diagnostics buffer subscribe to the same stream
// independently of one another.
type Multi []Hook

func (m Multi) InstallBest(e BestPathEvent) {
	for _, h := range m {
		h.InstallBest(e)
	}
}

func (m Multi) WithdrawBest(e BestPathEvent) {
	for _, h := range m {
		h.WithdrawBest(e)
	}
}

func (m Multi) AdjacencyChange(e AdjacencyEvent) {
	for _, h := range m {
		h.AdjacencyChange(e)
	}
}

func (m Multi) LsaInstalled(e LSAEvent) {
	for _, h := range m {
		h.LsaInstalled(e)
	}
}
