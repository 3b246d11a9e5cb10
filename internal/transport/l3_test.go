package transport

import "testing"

func TestOSPFProtocolNumber(t *testing.T) {
	if OSPFProtocolNumber != 89 {
		t.Fatalf("got %d, want 89", OSPFProtocolNumber)
	}
}

func TestWellKnownMulticastAddresses(t *testing.T) {
	if AllSPFRoutersAddr.String() != "224.0.0.5" {
		t.Fatalf("got %s, want 224.0.0.5", AllSPFRoutersAddr)
	}
	if AllDRoutersAddr.String() != "224.0.0.6" {
		t.Fatalf("got %s, want 224.0.0.6", AllDRoutersAddr)
	}
}
