package ospfflooding

import (
	"testing"
	"time"

	"github.com/route-beacon/ribagent/internal/ospflsdb"
	"github.com/route-beacon/ribagent/internal/wire/ospf"
)

func checksummedLSA(seq int32, linkStateID uint32) ospf.LSA {
	h := ospf.LSAHeader{Type: ospf.LSATypeRouter, LinkStateID: linkStateID, AdvertisingRouter: 1, SeqNumber: seq}
	encoded := ospf.EncodeLSA(h, nil)
	lsa, err := ospf.DecodeLSA(encoded)
	if err != nil {
		panic(err)
	}
	return lsa
}

func TestReceiveLSA_NewerIsInstalled(t *testing.T) {
	lsdb := ospflsdb.NewLSDB()
	now := time.Unix(0, 0)
	lsa := checksummedLSA(1, 1)
	result := ReceiveLSA(lsdb, lsa, now, false)
	if result.Outcome != OutcomeNewer {
		t.Fatalf("got %v, want OutcomeNewer", result.Outcome)
	}
	if _, ok := lsdb.Get(lsa.Header.Key()); !ok {
		t.Fatal("expected LSA installed in LSDB")
	}
}

func TestReceiveLSA_SameInstanceIsImplicitAck(t *testing.T) {
	lsdb := ospflsdb.NewLSDB()
	now := time.Unix(0, 0)
	lsa := checksummedLSA(1, 1)
	lsdb.Install(lsa, now)

	result := ReceiveLSA(lsdb, lsa, now, false)
	if result.Outcome != OutcomeSame {
		t.Fatalf("got %v, want OutcomeSame", result.Outcome)
	}
}

func TestReceiveLSA_OlderReturnsOurInstance(t *testing.T) {
	lsdb := ospflsdb.NewLSDB()
	now := time.Unix(0, 0)
	newer := checksummedLSA(5, 1)
	lsdb.Install(newer, now)

	older := checksummedLSA(1, 1)
	result := ReceiveLSA(lsdb, older, now, false)
	if result.Outcome != OutcomeOlder {
		t.Fatalf("got %v, want OutcomeOlder", result.Outcome)
	}
	if result.OlderInstance.Header.SeqNumber != 5 {
		t.Fatalf("got seq %d, want 5 (our newer instance pushed back)", result.OlderInstance.Header.SeqNumber)
	}
}

func TestReceiveLSA_BadChecksumRejected(t *testing.T) {
	lsdb := ospflsdb.NewLSDB()
	lsa := checksummedLSA(1, 1)
	lsa.Header.Checksum ^= 0xFFFF // corrupt it
	result := ReceiveLSA(lsdb, lsa, time.Unix(0, 0), false)
	if result.Outcome != OutcomeBadChecksum {
		t.Fatalf("got %v, want OutcomeBadChecksum", result.Outcome)
	}
	if lsdb.Len() != 0 {
		t.Fatal("a bad-checksum LSA must not be installed")
	}
}

func TestReceiveLSA_NewerSchedulesDelayedAckWhenRequested(t *testing.T) {
	lsdb := ospflsdb.NewLSDB()
	result := ReceiveLSA(lsdb, checksummedLSA(1, 1), time.Unix(0, 0), true)
	if !result.ScheduleDelayed {
		t.Fatal("expected delayed (group) ack scheduling on broadcast networks")
	}
}

func TestScopeOf(t *testing.T) {
	if ScopeOf(ospf.LSATypeRouter) != ScopeArea {
		t.Fatal("Router LSA should be area-scoped")
	}
	if ScopeOf(ospf.LSATypeNetwork) != ScopeArea {
		t.Fatal("Network LSA should be area-scoped")
	}
	if ScopeOf(ospf.LSATypeASExternal) != ScopeAS {
		t.Fatal("AS-External LSA should be AS-scoped")
	}
}

func TestDestinationOf(t *testing.T) {
	if DestinationOf(true) != AllSPFRouters {
		t.Fatal("a DR-sourced flood should target AllSPFRouters")
	}
	if DestinationOf(false) != AllDRouters {
		t.Fatal("a non-DR-sourced flood should target AllDRouters")
	}
}
