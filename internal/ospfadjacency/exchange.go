package ospfadjacency

import (
	"github.com/route-beacon/ribagent/internal/ospffsm"
	"github.com/route-beacon/ribagent/internal/ospflsdb"
	"github.com/route-beacon/ribagent/internal/wire/ospf"
)

// ExchangeState tracks one neighbor's Database Description exchange
// (spec section 4.7), from ExStart negotiation through the summary-list
// walk to the link-state-request-list it leaves behind for Loading.
type ExchangeState struct {
	Master           bool
	DDSequenceNumber uint32
	SummaryRemaining []ospf.LSAHeader
	RequestList      []ospf.Key
	localDone        bool
	neighborDone     bool
}

// BeginNegotiation implements ExStart (spec section 4.7): both sides set
// I=M=MS=1; the side with the larger router id becomes master and picks
// the starting sequence number, the slave adopts whatever sequence the
// master used in its first DD.
func BeginNegotiation(localRouterID, neighborRouterID uint32, startSeq uint32) *ExchangeState {
	return &ExchangeState{
		Master:           ospffsm.IsMaster(localRouterID, neighborRouterID),
		DDSequenceNumber: startSeq,
	}
}

// NegotiationDone reports whether a received DD in ExStart completes
// negotiation: master/slave agree on who leads, and the packet no longer
// advertises I=1 MS mismatched with the peer's expected role.
func NegotiationDone(local *ExchangeState, peerDD ospf.DatabaseDescriptionPacket) bool {
	if !peerDD.IsInit() {
		return false
	}
	return peerDD.IsMaster() != local.Master
}

// AdoptSlaveSequence is called once by the slave on receiving the
// master's first DD, to adopt the master's sequence number for the
// exchange (RFC 2328 section 10.8).
func (e *ExchangeState) AdoptSlaveSequence(masterSeq uint32) {
	if !e.Master {
		e.DDSequenceNumber = masterSeq
	}
}

// BuildSummary populates e's outgoing summary list from every header in
// lsdb, to be walked down across successive DD packets (spec section
// 4.7's "master sends a DD with its summary list").
func (e *ExchangeState) BuildSummary(lsdb *ospflsdb.LSDB) {
	var headers []ospf.LSAHeader
	lsdb.IterHeaders(func(h ospf.LSAHeader) { headers = append(headers, h) })
	e.SummaryRemaining = headers
}

// NextBatch pops up to n headers off the front of the outgoing summary
// list for the next DD packet, and reports whether more remain (M-bit).
func (e *ExchangeState) NextBatch(n int) (batch []ospf.LSAHeader, more bool) {
	if n > len(e.SummaryRemaining) {
		n = len(e.SummaryRemaining)
	}
	batch = e.SummaryRemaining[:n]
	e.SummaryRemaining = e.SummaryRemaining[n:]
	return batch, len(e.SummaryRemaining) > 0
}

// ReceiveSummary folds one DD packet's headers into the request list:
// any (type, link-state id, advertising router) absent from lsdb, or
// present but older than the advertised header, is appended (spec
// section 4.7). It also records whether the peer's DD signaled M=0.
func (e *ExchangeState) ReceiveSummary(peerDD ospf.DatabaseDescriptionPacket, lsdb *ospflsdb.LSDB) {
	for _, h := range peerDD.LSAHeaders {
		key := h.Key()
		existing, ok := lsdb.Get(key)
		if !ok || ospflsdb.IsNewer(h, existing.Header) {
			e.RequestList = append(e.RequestList, key)
		}
	}
	if !peerDD.HasMore() {
		e.neighborDone = true
	}
}

// MarkLocalDone records that our own outgoing DD carried M=0.
func (e *ExchangeState) MarkLocalDone() { e.localDone = true }

// Done reports Exchange completion: both sides have sent a DD with M=0
// (spec section 4.7's "Exchange ends when both sides send DD with M=0").
func (e *ExchangeState) Done() bool { return e.localDone && e.neighborDone }

// NextState decides the event to feed ospffsm once Done reports true:
// ExchangeDone if requests remain to be fetched via LSR (transitioning
// to Loading, whose completion fires LoadingDone), or directly signals
// the caller that Loading can be skipped when the request list is empty.
func (e *ExchangeState) NextState() (event ospffsm.Event, skipLoading bool) {
	if len(e.RequestList) == 0 {
		return ospffsm.ExchangeDone, true
	}
	return ospffsm.ExchangeDone, false
}
