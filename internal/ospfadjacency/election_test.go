package ospfadjacency

import "testing"

func TestElect_DRHighestPriorityAmongDeclaring(t *testing.T) {
	candidates := []ElectionCandidate{
		{RouterID: 1, Priority: 1, DR: 1, BDR: 0},
		{RouterID: 2, Priority: 2, DR: 2, BDR: 0},
		{RouterID: 3, Priority: 1, DR: 0, BDR: 3},
	}
	dr, _ := Elect(candidates)
	if dr != 2 {
		t.Fatalf("got DR %d, want 2 (highest priority declaring itself DR)", dr)
	}
}

func TestElect_BDRAmongNonDRDeclaringBDR(t *testing.T) {
	candidates := []ElectionCandidate{
		{RouterID: 1, Priority: 2, DR: 1, BDR: 0},
		{RouterID: 2, Priority: 3, DR: 0, BDR: 2},
		{RouterID: 3, Priority: 1, DR: 0, BDR: 3},
	}
	_, bdr := Elect(candidates)
	if bdr != 2 {
		t.Fatalf("got BDR %d, want 2 (highest priority among BDR-declaring non-DR candidates)", bdr)
	}
}

func TestElect_RouterIDTiebreak(t *testing.T) {
	candidates := []ElectionCandidate{
		{RouterID: 1, Priority: 5, DR: 1, BDR: 0},
		{RouterID: 5, Priority: 5, DR: 5, BDR: 0},
	}
	dr, _ := Elect(candidates)
	if dr != 5 {
		t.Fatalf("got DR %d, want 5 (higher router id breaks equal priority)", dr)
	}
}

func TestElect_NoDRDeclaredPromotesBDR(t *testing.T) {
	candidates := []ElectionCandidate{
		{RouterID: 1, Priority: 1, DR: 0, BDR: 1},
		{RouterID: 2, Priority: 2, DR: 0, BDR: 2},
	}
	dr, _ := Elect(candidates)
	if dr != 2 {
		t.Fatalf("got DR %d, want 2 (BDR promoted to DR when no one declares DR)", dr)
	}
}

func TestElect_NoCandidatesReturnsZero(t *testing.T) {
	dr, bdr := Elect(nil)
	if dr != 0 || bdr != 0 {
		t.Fatalf("got dr=%d bdr=%d, want 0,0", dr, bdr)
	}
}
