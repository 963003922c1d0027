// internal/game/win.go
package game

// EvaluateWinner decides the game from the recorded round results and the
// current rejection count. It returns the empty Team while undecided.
func EvaluateWinner(results [NumRounds]*RoundResult, rejectionCount int) Team {
	if rejectionCount >= MaxRejections {
		return TeamImpastas
	}

	var succeeded, failed int
	for _, r := range results {
		if r == nil {
			continue
		}
		if r.Success {
			succeeded++
		} else {
			failed++
		}
	}

	switch {
	case failed >= RoundsToWin:
		return TeamImpastas
	case succeeded >= RoundsToWin:
		return TeamChefs
	}
	return ""
}
