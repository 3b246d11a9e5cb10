package ospflsdb

import (
	"testing"
	"time"

	"github.com/route-beacon/ribagent/internal/wire/ospf"
)

func testLSA(seq int32, checksum uint16, age uint16) ospf.LSA {
	return ospf.LSA{
		Header: ospf.LSAHeader{
			Age:               age,
			Type:              ospf.LSATypeRouter,
			LinkStateID:       1,
			AdvertisingRouter: 1,
			SeqNumber:         seq,
			Checksum:          checksum,
			Length:            ospf.LSAHeaderSize,
		},
	}
}

func TestLSDB_InstallNewInstalledThenDuplicate(t *testing.T) {
	d := NewLSDB()
	now := time.Unix(0, 0)

	if got := d.Install(testLSA(ospf.InitialSequenceNumber, 100, 0), now); got != Installed {
		t.Fatalf("got %v, want Installed", got)
	}
	if got := d.Install(testLSA(ospf.InitialSequenceNumber, 100, 0), now); got != Duplicate {
		t.Fatalf("got %v, want Duplicate", got)
	}
}

func TestLSDB_InstallNewerBySequence(t *testing.T) {
	d := NewLSDB()
	now := time.Unix(0, 0)
	d.Install(testLSA(ospf.InitialSequenceNumber, 100, 0), now)

	newer := testLSA(ospf.InitialSequenceNumber+1, 100, 0)
	if got := d.Install(newer, now); got != Installed {
		t.Fatalf("got %v, want Installed", got)
	}
	got, ok := d.Get(newer.Header.Key())
	if !ok || got.Header.SeqNumber != newer.Header.SeqNumber {
		t.Fatalf("got %+v", got)
	}
}

func TestLSDB_InstallOlderRejected(t *testing.T) {
	d := NewLSDB()
	now := time.Unix(0, 0)
	d.Install(testLSA(ospf.InitialSequenceNumber+5, 100, 0), now)

	older := testLSA(ospf.InitialSequenceNumber+1, 100, 0)
	if got := d.Install(older, now); got != Older {
		t.Fatalf("got %v, want Older", got)
	}
	got, _ := d.Get(older.Header.Key())
	if got.Header.SeqNumber != ospf.InitialSequenceNumber+5 {
		t.Fatal("expected existing instance to remain installed")
	}
}

func TestIsNewer_ChecksumTiebreak(t *testing.T) {
	a := ospf.LSAHeader{SeqNumber: 1, Checksum: 200, Age: 0}
	b := ospf.LSAHeader{SeqNumber: 1, Checksum: 100, Age: 0}
	if !IsNewer(a, b) {
		t.Fatal("expected higher checksum to win at equal sequence")
	}
	if IsNewer(b, a) {
		t.Fatal("expected lower checksum to lose")
	}
}

func TestIsNewer_MaxAgeBeatsNonMaxAge(t *testing.T) {
	a := ospf.LSAHeader{SeqNumber: 1, Checksum: 100, Age: ospf.MaxAge()}
	b := ospf.LSAHeader{SeqNumber: 1, Checksum: 100, Age: 10}
	if !IsNewer(a, b) {
		t.Fatal("expected MaxAge instance to be newer")
	}
}

func TestIsNewer_AgeWithinMaxAgeDiffIsNotNewer(t *testing.T) {
	a := ospf.LSAHeader{SeqNumber: 1, Checksum: 100, Age: 100}
	b := ospf.LSAHeader{SeqNumber: 1, Checksum: 100, Age: 500}
	if IsNewer(a, b) || IsNewer(b, a) {
		t.Fatal("expected ages within MaxAgeDiff to be indistinguishable")
	}
}

func TestIsNewer_AgeBeyondMaxAgeDiffSmallerWins(t *testing.T) {
	a := ospf.LSAHeader{SeqNumber: 1, Checksum: 100, Age: 10}
	b := ospf.LSAHeader{SeqNumber: 1, Checksum: 100, Age: 1000}
	if !IsNewer(a, b) {
		t.Fatal("expected smaller age to win beyond MaxAgeDiff")
	}
}

func TestLSDB_RemoveAndIterHeaders(t *testing.T) {
	d := NewLSDB()
	now := time.Unix(0, 0)
	l := testLSA(ospf.InitialSequenceNumber, 100, 0)
	d.Install(l, now)

	count := 0
	d.IterHeaders(func(ospf.LSAHeader) { count++ })
	if count != 1 {
		t.Fatalf("got %d headers, want 1", count)
	}

	removed, ok := d.Remove(l.Header.Key())
	if !ok || removed.Header.SeqNumber != l.Header.SeqNumber {
		t.Fatalf("remove failed: %+v, %v", removed, ok)
	}
	if d.Len() != 0 {
		t.Fatal("expected LSDB empty after remove")
	}
}

func TestLSDB_AgeByEvictsAtMaxAge(t *testing.T) {
	d := NewLSDB()
	now := time.Unix(0, 0)
	l := testLSA(ospf.InitialSequenceNumber, 100, ospf.MaxAge()-5)
	d.Install(l, now)

	evicted := d.AgeBy(10, now.Add(10*time.Second))
	if len(evicted) != 1 {
		t.Fatalf("got %d evicted, want 1", len(evicted))
	}
	if d.Len() != 0 {
		t.Fatal("expected LSDB empty after MaxAge eviction")
	}
}

func TestLSDB_AgeByLeavesFreshEntries(t *testing.T) {
	d := NewLSDB()
	now := time.Unix(0, 0)
	l := testLSA(ospf.InitialSequenceNumber, 100, 0)
	d.Install(l, now)

	evicted := d.AgeBy(60, now.Add(60*time.Second))
	if len(evicted) != 0 {
		t.Fatalf("got %d evicted, want 0", len(evicted))
	}
	got, ok := d.Get(l.Header.Key())
	if !ok || got.Header.Age != 60 {
		t.Fatalf("got age %d, want 60", got.Header.Age)
	}
}
