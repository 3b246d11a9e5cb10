package bgpadvanced

import "time"

// RestartState is the per-peer graceful restart bookkeeping of RFC 4724
// (spec section 4.6): whether the capability was negotiated, which
// AFI/SAFI the peer preserves forwarding state for, and the restart
// timer governing how long stale routes survive a session drop.
type RestartState struct {
	Negotiated          bool
	RestartTime         time.Duration
	ForwardingPreserved map[AddressFamily]bool
	deadline            time.Time
	eorReceived         map[AddressFamily]bool
}

// AddressFamily is the AFI/SAFI pair a graceful-restart capability entry
// or End-of-RIB marker applies to.
type AddressFamily struct {
	AFI  uint16
	SAFI uint8
}

func NewRestartState(restartTime time.Duration) *RestartState {
	return &RestartState{
		RestartTime:         restartTime,
		ForwardingPreserved: make(map[AddressFamily]bool),
		eorReceived:         make(map[AddressFamily]bool),
	}
}

// BeginRestart starts the restart timer from now; the caller is
// responsible for having already called AdjRIBIn.MarkStaleFrom for the
// dropped peer.
func (r *RestartState) BeginRestart(now time.Time) {
	r.deadline = now.Add(r.RestartTime)
	r.eorReceived = make(map[AddressFamily]bool)
}

// Expired reports whether the restart timer has elapsed; the caller
// should then evict remaining stale routes via AdjRIBIn.EvictStaleFrom.
func (r *RestartState) Expired(now time.Time) bool {
	return !r.deadline.IsZero() && !now.Before(r.deadline)
}

// MarkEndOfRIB records that the peer has signaled End-of-RIB for family.
// DoneForAllFamilies reports once every preserved family has done so,
// at which point the caller should evict any remaining stale routes
// for families that preserve forwarding but never reached End-of-RIB,
// and clear the restart timer.
func (r *RestartState) MarkEndOfRIB(family AddressFamily) {
	r.eorReceived[family] = true
}

func (r *RestartState) DoneForAllFamilies() bool {
	for family, preserved := range r.ForwardingPreserved {
		if preserved && !r.eorReceived[family] {
			return false
		}
	}
	return true
}

// Clear resets the restart timer and End-of-RIB bookkeeping once the
// restart has completed or been abandoned.
func (r *RestartState) Clear() {
	r.deadline = time.Time{}
	r.eorReceived = make(map[AddressFamily]bool)
}
