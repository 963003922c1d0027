// internal/game/redemption.go
package game

import "fmt"

// enterRedemption holds a Chefs win open while one random Impasta tries to
// find the Head Chef.
func (e *Engine) enterRedemption(r *room) {
	s := r.session
	s.Winner = TeamChefs

	e.rngMu.Lock()
	s.RedemptionImpasta = s.Impastas[e.rng.Intn(len(s.Impastas))]
	e.rngMu.Unlock()

	e.setPhase(r, PhaseRedemption, e.timings.Redemption)
	e.roomLogger(s).WithField("player", s.RedemptionImpasta).Info("redemption started")
	e.emit(r, redemptionSelectedEvent(s))
	e.emit(r, phaseChangeEvent(s))
}

// KillChef is the redemption Impasta's single guess. Hitting the Head Chef
// hands the win to the Impastas; anything else confirms the Chefs win.
func (e *Engine) KillChef(roomID, playerID, targetID string) error {
	return e.withRoom(roomID, func(r *room) error {
		s := r.session
		if s.CurrentPhase != PhaseRedemption {
			return fmt.Errorf("%w: no redemption in progress", ErrWrongPhase)
		}
		if playerID != s.RedemptionImpasta {
			return ErrNotRedemptionImpasta
		}
		if !s.wasSeated(targetID) || s.IsImpasta(targetID) {
			return fmt.Errorf("%w: %s", ErrInvalidTarget, targetID)
		}

		winner := TeamChefs
		if targetID == s.HeadChef {
			winner = TeamImpastas
			s.Redeemed = true
		}
		e.logAction(r, playerID, ActionKillChef, map[string]interface{}{
			"target": targetID,
			"hit":    s.Redeemed,
		})
		e.enterGameOver(r, winner)
		e.emit(r, gameUpdateEvent(s))
		return nil
	})
}
