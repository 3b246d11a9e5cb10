// Package ospflsdb is the OSPF half of spec section 4.2's RIB/LSDB
// primitives: a per-area link-state database keyed by (type, link-state
// id, advertising router), with the newer-LSA comparison of section 4.8
// and MaxAge eviction. As with internal/bgprib, there is no locking here
// — the LSDB is reached only from its owning flooding/SPF task.
package ospflsdb

import (
	"time"

	"github.com/route-beacon/ribagent/internal/wire/ospf"
)

// InstallResult is the outcome of offering an LSA to the database.
type InstallResult int

const (
	Installed InstallResult = iota
	Duplicate
	Older
)

func (r InstallResult) String() string {
	switch r {
	case Installed:
		return "Installed"
	case Duplicate:
		return "Duplicate"
	case Older:
		return "Older"
	default:
		return "unknown"
	}
}

// entry pairs a stored LSA with the wall-clock time it was installed, so
// Age can be derived without mutating the header's Age field on every
// tick.
type entry struct {
	lsa         ospf.LSA
	installedAt time.Time
}

// LSDB is a single area's link-state database (RFC 2328 section 12).
type LSDB struct {
	entries map[ospf.Key]*entry
}

func NewLSDB() *LSDB {
	return &LSDB{entries: make(map[ospf.Key]*entry)}
}

// maxAgeDiff bounds the age-based tiebreak of the newer-LSA rule (spec
// section 4.8 / RFC 2328 section 13.1).
const maxAgeDiff = 900

// IsNewer reports whether a supersedes b under the RFC 2328 section
// 13.1 comparison: lollipop sequence first, then checksum (larger
// wins), then age (MaxAge beats non-MaxAge; otherwise smaller age wins
// outside MaxAgeDiff of each other).
func IsNewer(a, b ospf.LSAHeader) bool {
	if a.SeqNumber != b.SeqNumber {
		return ospf.SequenceMoreRecent(a.SeqNumber, b.SeqNumber)
	}
	if a.Checksum != b.Checksum {
		return a.Checksum > b.Checksum
	}
	aMax := a.Age >= ospf.MaxAge()
	bMax := b.Age >= ospf.MaxAge()
	if aMax != bMax {
		return aMax
	}
	diff := int(a.Age) - int(b.Age)
	if diff < 0 {
		diff = -diff
	}
	if diff <= maxAgeDiff {
		return false
	}
	return a.Age < b.Age
}

// Install offers lsa to the database, applying the newer-LSA rule
// against any existing instance with the same key.
func (d *LSDB) Install(lsa ospf.LSA, now time.Time) InstallResult {
	key := lsa.Header.Key()
	existing, ok := d.entries[key]
	if !ok {
		d.entries[key] = &entry{lsa: lsa, installedAt: now}
		return Installed
	}
	switch {
	case IsNewer(lsa.Header, existing.lsa.Header):
		d.entries[key] = &entry{lsa: lsa, installedAt: now}
		return Installed
	case IsNewer(existing.lsa.Header, lsa.Header):
		return Older
	default:
		return Duplicate
	}
}

// Get returns the LSA stored for key, if any.
func (d *LSDB) Get(key ospf.Key) (ospf.LSA, bool) {
	e, ok := d.entries[key]
	if !ok {
		return ospf.LSA{}, false
	}
	return e.lsa, true
}

// Remove deletes the LSA for key, returning it if present.
func (d *LSDB) Remove(key ospf.Key) (ospf.LSA, bool) {
	e, ok := d.entries[key]
	if !ok {
		return ospf.LSA{}, false
	}
	delete(d.entries, key)
	return e.lsa, true
}

// IterHeaders calls fn with the header of every stored LSA — used to
// build DD summary lists and link-state-request lists (spec section 4.7).
func (d *LSDB) IterHeaders(fn func(ospf.LSAHeader)) {
	for _, e := range d.entries {
		fn(e.lsa.Header)
	}
}

// Len reports the number of LSAs currently installed.
func (d *LSDB) Len() int { return len(d.entries) }

// AgeBy advances every stored LSA's effective age by elapsed seconds and
// evicts any that reach MaxAge, returning the evicted set (spec section
// 4.2's age_by operation, RFC 2328 section 14).
func (d *LSDB) AgeBy(elapsedSeconds uint16, now time.Time) []ospf.LSA {
	var evicted []ospf.LSA
	for key, e := range d.entries {
		newAge := uint32(e.lsa.Header.Age) + uint32(elapsedSeconds)
		if newAge >= uint32(ospf.MaxAge()) {
			e.lsa.Header.Age = ospf.MaxAge()
			evicted = append(evicted, e.lsa)
			delete(d.entries, key)
			continue
		}
		e.lsa.Header.Age = uint16(newAge)
		e.installedAt = now
	}
	return evicted
}
