// Package ospfflooding implements the reliable flooding procedure of
// spec section 4.8: processing a received Link State Update against the
// area LSDB, maintaining per-neighbor retransmission lists, and the
// area/AS flooding-scope rules.
package ospfflooding

import (
	"time"

	"github.com/route-beacon/ribagent/internal/ospflsdb"
	"github.com/route-beacon/ribagent/internal/wire/ospf"
)

// Outcome is the disposition of one received LSA (spec section 4.8).
type Outcome int

const (
	OutcomeNewer Outcome = iota
	OutcomeSame
	OutcomeOlder
	OutcomeBadChecksum
)

// ReceiveResult is everything the caller must act on for one LSA out of
// a received LSU.
type ReceiveResult struct {
	LSA             ospf.LSA
	Outcome         Outcome
	OlderInstance   ospf.LSA // set only on OutcomeOlder: what we hold instead
	ScheduleDelayed bool     // broadcast networks: group-ack instead of direct
}

// ReceiveLSA applies spec section 4.8's reception procedure for one LSA
// against lsdb: validate checksum, install if newer (the caller must
// then remove it from every neighbor's retransmission list that held
// the prior instance and reflood), treat a matching instance as an
// implicit ack, or push back the newer instance we hold.
func ReceiveLSA(lsdb *ospflsdb.LSDB, lsa ospf.LSA, now time.Time, delayedAck bool) ReceiveResult {
	if !lsa.VerifyChecksum() {
		return ReceiveResult{LSA: lsa, Outcome: OutcomeBadChecksum}
	}

	key := lsa.Header.Key()
	existing, ok := lsdb.Get(key)
	switch {
	case !ok || ospflsdb.IsNewer(lsa.Header, existing.Header):
		lsdb.Install(lsa, now)
		return ReceiveResult{LSA: lsa, Outcome: OutcomeNewer, ScheduleDelayed: delayedAck}
	case ospflsdb.IsNewer(existing.Header, lsa.Header):
		return ReceiveResult{LSA: lsa, Outcome: OutcomeOlder, OlderInstance: existing}
	default:
		return ReceiveResult{LSA: lsa, Outcome: OutcomeSame}
	}
}

// Scope is the flooding scope of an LSA type (spec section 4.8).
type Scope int

const (
	ScopeArea Scope = iota
	ScopeAS
)

func ScopeOf(lsaType uint8) Scope {
	if lsaType == ospf.LSATypeASExternal {
		return ScopeAS
	}
	return ScopeArea
}

// DestinationOf picks the multicast/flood destination on a broadcast
// segment (spec section 4.8): AllDRouters when the sender is not the
// DR, AllSPFRouters when it is.
type BroadcastDestination int

const (
	AllSPFRouters BroadcastDestination = iota
	AllDRouters
)

func DestinationOf(senderIsDR bool) BroadcastDestination {
	if senderIsDR {
		return AllSPFRouters
	}
	return AllDRouters
}
