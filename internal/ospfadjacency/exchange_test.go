package ospfadjacency

import (
	"testing"
	"time"

	"github.com/route-beacon/ribagent/internal/ospffsm"
	"github.com/route-beacon/ribagent/internal/ospflsdb"
	"github.com/route-beacon/ribagent/internal/wire/ospf"
)

func TestBeginNegotiation_HigherRouterIDIsMaster(t *testing.T) {
	e := BeginNegotiation(10, 5, 100)
	if !e.Master {
		t.Fatal("expected local (router id 10) to be master over 5")
	}
	e2 := BeginNegotiation(5, 10, 100)
	if e2.Master {
		t.Fatal("expected local (router id 5) to be slave to 10")
	}
}

func TestNegotiationDone_RequiresInitAndRoleAgreement(t *testing.T) {
	local := &ExchangeState{Master: true}
	peerDD := ospf.DatabaseDescriptionPacket{Flags: ospf.DDFlagInit | ospf.DDFlagMore | ospf.DDFlagMS}
	// Peer (slave side talking to us, the master) should NOT also claim MS.
	if NegotiationDone(local, peerDD) {
		t.Fatal("both sides claiming master should not be negotiation-done")
	}

	peerSlaveDD := ospf.DatabaseDescriptionPacket{Flags: ospf.DDFlagInit | ospf.DDFlagMore}
	if !NegotiationDone(local, peerSlaveDD) {
		t.Fatal("expected negotiation done: peer is slave, we are master")
	}
}

func TestExchangeState_AdoptSlaveSequence(t *testing.T) {
	e := BeginNegotiation(5, 10, 1) // local is slave
	e.AdoptSlaveSequence(777)
	if e.DDSequenceNumber != 777 {
		t.Fatalf("got %d, want 777", e.DDSequenceNumber)
	}

	master := BeginNegotiation(10, 5, 1)
	master.AdoptSlaveSequence(999)
	if master.DDSequenceNumber == 999 {
		t.Fatal("master must not adopt a sequence number from the slave")
	}
}

func TestExchangeState_BuildSummaryAndNextBatch(t *testing.T) {
	lsdb := ospflsdb.NewLSDB()
	now := time.Unix(0, 0)
	for i := 0; i < 5; i++ {
		lsdb.Install(ospf.LSA{Header: ospf.LSAHeader{Type: ospf.LSATypeRouter, LinkStateID: uint32(i), AdvertisingRouter: 1}}, now)
	}
	e := &ExchangeState{}
	e.BuildSummary(lsdb)
	if len(e.SummaryRemaining) != 5 {
		t.Fatalf("got %d headers, want 5", len(e.SummaryRemaining))
	}

	batch, more := e.NextBatch(3)
	if len(batch) != 3 || !more {
		t.Fatalf("got batch=%d more=%v, want 3,true", len(batch), more)
	}
	batch2, more2 := e.NextBatch(3)
	if len(batch2) != 2 || more2 {
		t.Fatalf("got batch=%d more=%v, want 2,false", len(batch2), more2)
	}
}

func TestExchangeState_ReceiveSummaryBuildsRequestList(t *testing.T) {
	lsdb := ospflsdb.NewLSDB()
	now := time.Unix(0, 0)
	existingKey := ospf.LSAHeader{Type: ospf.LSATypeRouter, LinkStateID: 1, AdvertisingRouter: 1, SeqNumber: 5}
	lsdb.Install(ospf.LSA{Header: existingKey}, now)

	e := &ExchangeState{}
	peerDD := ospf.DatabaseDescriptionPacket{
		Flags: ospf.DDFlagMore,
		LSAHeaders: []ospf.LSAHeader{
			{Type: ospf.LSATypeRouter, LinkStateID: 1, AdvertisingRouter: 1, SeqNumber: 7}, // newer than ours
			{Type: ospf.LSATypeRouter, LinkStateID: 2, AdvertisingRouter: 1, SeqNumber: 1}, // absent from our LSDB
		},
	}
	e.ReceiveSummary(peerDD, lsdb)
	if len(e.RequestList) != 2 {
		t.Fatalf("got %d requests, want 2", len(e.RequestList))
	}
	if e.neighborDone {
		t.Fatal("peer DD had M=1, should not be marked done")
	}
}

func TestExchangeState_DoneRequiresBothSides(t *testing.T) {
	e := &ExchangeState{}
	if e.Done() {
		t.Fatal("should not be done initially")
	}
	e.MarkLocalDone()
	if e.Done() {
		t.Fatal("should not be done with only the local side finished")
	}
	e.ReceiveSummary(ospf.DatabaseDescriptionPacket{}, ospflsdb.NewLSDB()) // M=0
	if !e.Done() {
		t.Fatal("expected done once both sides have sent M=0")
	}
}

func TestExchangeState_NextStateSkipsLoadingWhenNoRequests(t *testing.T) {
	e := &ExchangeState{}
	event, skip := e.NextState()
	if event != ospffsm.ExchangeDone || !skip {
		t.Fatalf("got event=%v skip=%v, want ExchangeDone,true", event, skip)
	}

	e.RequestList = []ospf.Key{{Type: ospf.LSATypeRouter, LinkStateID: 1, AdvertisingRouter: 1}}
	event2, skip2 := e.NextState()
	if event2 != ospffsm.ExchangeDone || skip2 {
		t.Fatalf("got event=%v skip=%v, want ExchangeDone,false", event2, skip2)
	}
}
