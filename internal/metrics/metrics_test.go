package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegister_NoDuplicateCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	collectors := []prometheus.Collector{
		BGPFSMTransitionsTotal,
		BGPSessionState,
		BGPUpdatesTotal,
		BGPDecisionRunDuration,
		BGPLocRIBPrefixes,
		BGPFlapSuppressedTotal,
		BGPRPKIRejectsTotal,
		OSPFNeighborState,
		OSPFSPFRunsTotal,
		OSPFSPFDuration,
		OSPFLSDBSize,
		OSPFRetransmitsTotal,
		FibOperationsTotal,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			t.Fatalf("registering collector: %v", err)
		}
	}
}

func TestBGPSessionState_SetAndRead(t *testing.T) {
	BGPSessionState.WithLabelValues("192.0.2.2").Set(5)
	got := testutil.ToFloat64(BGPSessionState.WithLabelValues("192.0.2.2"))
	if got != 5 {
		t.Fatalf("got %v, want 5", got)
	}
}
