// internal/game/cooking.go
package game

import "fmt"

// SelectIngredient records a selected cook's secret ingredient. Once every
// cook has chosen, the round is scored.
func (e *Engine) SelectIngredient(roomID, playerID string, ingredient Ingredient) error {
	return e.withRoom(roomID, func(r *room) error {
		s := r.session
		if s.CurrentPhase != PhaseCooking {
			return fmt.Errorf("%w: cannot cook during %s", ErrWrongPhase, s.CurrentPhase)
		}
		p := s.CurrentProposal()
		if p == nil || !p.includes(playerID) {
			return ErrNotSelected
		}
		if s.hasSelected(playerID) {
			return ErrDuplicateSelection
		}
		switch ingredient {
		case IngredientHealthy:
		case IngredientRotten:
			if !s.IsImpasta(playerID) {
				return fmt.Errorf("%w: only impastas can add rotten ingredients", ErrInvalidChoice)
			}
		default:
			return fmt.Errorf("%w: unknown ingredient %q", ErrInvalidChoice, ingredient)
		}

		s.IngredientSelections = append(s.IngredientSelections, IngredientSelection{
			PlayerID:   playerID,
			Ingredient: ingredient,
		})
		e.logAction(r, playerID, ActionSelect, map[string]interface{}{
			"round":      s.Round,
			"ingredient": ingredient,
		})

		if len(s.IngredientSelections) >= len(p.ProposedTeam) {
			e.finalizeCooking(r)
		}
		e.emit(r, gameUpdateEvent(s))
		return nil
	})
}

func (e *Engine) finalizeCooking(r *room) {
	s := r.session
	rotten := s.rottenCount()
	e.recordRound(r, RoundResult{
		Success:     rotten < s.Rules.FailureThreshold(s.Round),
		RottenCount: rotten,
	})
	e.afterRoundResult(r)
}
