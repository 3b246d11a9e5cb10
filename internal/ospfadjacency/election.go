package ospfadjacency

// ElectionCandidate is one neighbor's input to DR/BDR election (spec
// section 4.7), plus the local router's own candidacy when it is
// included in the same run.
type ElectionCandidate struct {
	RouterID uint32
	Priority uint8
	DR       uint32
	BDR      uint32
}

// Elect runs the RFC 2328 section 9.4 DR/BDR election over candidates,
// all of which must already be at state >= 2-Way with Priority > 0
// (callers filter before calling). It returns the elected DR and BDR
// router ids (0 if none).
//
// The BDR is chosen first: among candidates not declaring themselves DR,
// those declaring themselves BDR are preferred (all of them if none do);
// from that pool, highest priority, tiebreak by highest router id. The DR is then chosen: among
// candidates declaring themselves DR, highest priority, tiebreak by
// highest router id; if none declare DR, the just-elected BDR is
// promoted to DR and election is re-run for BDR.
func Elect(candidates []ElectionCandidate) (dr, bdr uint32) {
	bdr = electBDR(candidates)
	dr = electDR(candidates)
	if dr == 0 {
		dr = bdr
		bdr = electBDR(withoutDR(candidates, dr))
	}
	return dr, bdr
}

func electBDR(candidates []ElectionCandidate) uint32 {
	declaringBDR := make([]ElectionCandidate, 0, len(candidates))
	for _, c := range candidates {
		if c.DR != c.RouterID && c.BDR == c.RouterID {
			declaringBDR = append(declaringBDR, c)
		}
	}
	pool := declaringBDR
	if len(pool) == 0 {
		for _, c := range candidates {
			if c.DR != c.RouterID {
				pool = append(pool, c)
			}
		}
	}
	return highestPriorityThenRouterID(pool)
}

func electDR(candidates []ElectionCandidate) uint32 {
	var declaringDR []ElectionCandidate
	for _, c := range candidates {
		if c.DR == c.RouterID {
			declaringDR = append(declaringDR, c)
		}
	}
	return highestPriorityThenRouterID(declaringDR)
}

func highestPriorityThenRouterID(candidates []ElectionCandidate) uint32 {
	var best *ElectionCandidate
	for i := range candidates {
		c := &candidates[i]
		if best == nil || c.Priority > best.Priority ||
			(c.Priority == best.Priority && c.RouterID > best.RouterID) {
			best = c
		}
	}
	if best == nil {
		return 0
	}
	return best.RouterID
}

func withoutDR(candidates []ElectionCandidate, dr uint32) []ElectionCandidate {
	out := make([]ElectionCandidate, 0, len(candidates))
	for _, c := range candidates {
		if c.RouterID != dr {
			out = append(out, c)
		}
	}
	return out
}
