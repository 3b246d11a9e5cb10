package ospfflooding

import (
	"time"

	"github.com/route-beacon/ribagent/internal/wire/ospf"
)

// DefaultRxmtInterval is RxmtInterval's default (spec section 4.8).
const DefaultRxmtInterval = 5 * time.Second

// rxmtEntry is one LSA pending acknowledgement from a neighbor.
type rxmtEntry struct {
	lsa    ospf.LSA
	sentAt time.Time
}

// RetransmissionList is one neighbor's link-state-retransmission-list
// (spec section 4.8): every LSA flooded to that neighbor that has not
// yet been acknowledged, with the timestamp needed to decide when to
// retransmit.
type RetransmissionList struct {
	entries map[ospf.Key]*rxmtEntry
}

func NewRetransmissionList() *RetransmissionList {
	return &RetransmissionList{entries: make(map[ospf.Key]*rxmtEntry)}
}

// Add enters lsa onto the list, replacing any prior instance for the
// same key — used both when an LSA is first flooded to this neighbor
// and whenever it is retransmitted.
func (l *RetransmissionList) Add(lsa ospf.LSA, now time.Time) {
	l.entries[lsa.Header.Key()] = &rxmtEntry{lsa: lsa, sentAt: now}
}

// Ack removes the entry for key — a matching LSAck received from this
// neighbor, or the implicit ack of receiving the same instance back
// from it.
func (l *RetransmissionList) Ack(key ospf.Key) {
	delete(l.entries, key)
}

// Has reports whether key is currently outstanding.
func (l *RetransmissionList) Has(key ospf.Key) bool {
	_, ok := l.entries[key]
	return ok
}

// DueForRetransmission returns every entry whose RxmtInterval has
// elapsed without an ack, per spec section 4.8's "if a matching LSAck is
// not received within RxmtInterval, the LSA is retransmitted". Returned
// entries are re-stamped with now as if just retransmitted; callers
// drive the actual LSU send.
func (l *RetransmissionList) DueForRetransmission(now time.Time, interval time.Duration) []ospf.LSA {
	var due []ospf.LSA
	for key, e := range l.entries {
		if now.Sub(e.sentAt) >= interval {
			due = append(due, e.lsa)
			l.entries[key] = &rxmtEntry{lsa: e.lsa, sentAt: now}
		}
	}
	return due
}

// Len reports the number of outstanding entries.
func (l *RetransmissionList) Len() int { return len(l.entries) }

// RemoveStalePriorInstance drops key if it still holds priorSeq or an
// older sequence number — used when a newer instance is installed, to
// remove "the prior instance" from every neighbor's retransmission list
// (spec section 4.8) without clobbering an entry some other flood
// already advanced past priorSeq.
func (l *RetransmissionList) RemoveStalePriorInstance(key ospf.Key, priorSeq int32) {
	e, ok := l.entries[key]
	if !ok {
		return
	}
	if !ospf.SequenceMoreRecent(e.lsa.Header.SeqNumber, priorSeq) {
		delete(l.entries, key)
	}
}
