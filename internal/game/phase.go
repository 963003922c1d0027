// internal/game/phase.go
package game

import "time"

// setPhase moves the session into p and reprograms the phase timer. A zero
// window clears the deadline.
func (e *Engine) setPhase(r *room, p Phase, window time.Duration) {
	s := r.session
	s.CurrentPhase = p
	s.PhaseDeadline = nil
	if window > 0 {
		dl := e.clock.Now().Add(window)
		s.PhaseDeadline = &dl
	}
	e.schedulePhaseTimer(r)
}

func (e *Engine) enterProposing(r *room) {
	s := r.session
	e.setPhase(r, PhaseProposing, e.timings.Proposing)
	e.emit(r, phaseChangeEvent(s))
	e.emit(r, proposalStartedEvent(s))
}

func (e *Engine) enterVoting(r *room, p *Proposal) {
	s := r.session
	e.setPhase(r, PhaseVoting, e.timings.Voting)
	e.emit(r, proposalSubmittedEvent(s, p))
	e.emit(r, phaseChangeEvent(s))
}

func (e *Engine) enterCooking(r *room, p *Proposal) {
	s := r.session
	s.IngredientSelections = nil
	e.setPhase(r, PhaseCooking, 0)
	e.emit(r, cookingStartedEvent(p.ProposedTeam))
	e.emit(r, phaseChangeEvent(s))

	// cooks removed while the vote was open count as healthy
	for _, id := range p.ProposedTeam {
		if !s.HasPlayer(id) {
			s.IngredientSelections = append(s.IngredientSelections, IngredientSelection{
				PlayerID:   id,
				Ingredient: IngredientHealthy,
			})
		}
	}
	if len(s.IngredientSelections) >= len(p.ProposedTeam) {
		e.finalizeCooking(r)
	}
}

// concludeGame ends the game in favour of winner. A Chefs win in a Head Chef
// game first gives one Impasta the chance to redeem their team.
func (e *Engine) concludeGame(r *room, winner Team) {
	s := r.session
	if winner == TeamChefs && s.Rules.HasHeadChef && s.Rules.AllowRedemption && len(s.Impastas) > 0 {
		e.enterRedemption(r)
		return
	}
	e.enterGameOver(r, winner)
}

func (e *Engine) enterGameOver(r *room, winner Team) {
	s := r.session
	s.Winner = winner
	e.setPhase(r, PhaseGameOver, 0)
	for id := range r.disconnectTimers {
		r.stopDisconnect(id)
	}

	e.roomLogger(s).WithField("winner", winner).Info("game over")
	e.logAction(r, "", ActionGameOver, map[string]interface{}{
		"winner":   winner,
		"redeemed": s.Redeemed,
	})
	e.emit(r, gameOverEvent(s))
	e.emit(r, phaseChangeEvent(s))

	if e.onGameEnd != nil {
		e.onGameEnd(buildResult(s, e.clock.Now()))
	}
	e.scheduleCleanup(r)
}

// afterRoundResult decides the game or opens the next round.
func (e *Engine) afterRoundResult(r *room) {
	s := r.session
	if w := EvaluateWinner(s.RoundResults, s.RejectionCount); w != "" {
		e.concludeGame(r, w)
		return
	}
	if s.Round >= NumRounds {
		e.concludeGame(r, TeamChefs)
		return
	}
	s.Round++
	s.RejectionCount = 0
	s.IngredientSelections = nil
	s.advanceProponent()
	e.enterProposing(r)
}

// registerRejection counts a rejected or expired proposal. The fifth one
// fails the round and hands the game to the Impastas.
func (e *Engine) registerRejection(r *room) {
	s := r.session
	s.RejectionCount++
	if s.RejectionCount >= MaxRejections {
		e.recordRound(r, RoundResult{Success: false, RottenCount: 0})
		e.concludeGame(r, TeamImpastas)
		return
	}
	s.advanceProponent()
	e.enterProposing(r)
}

func (e *Engine) recordRound(r *room, res RoundResult) {
	s := r.session
	if !s.recordResult(res) {
		return
	}
	e.logAction(r, "", ActionRoundComplete, map[string]interface{}{
		"round":       s.Round,
		"success":     res.Success,
		"rottenCount": res.RottenCount,
	})
	e.emit(r, roundCompleteEvent(s.Round, res))
}
