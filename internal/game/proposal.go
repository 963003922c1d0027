// internal/game/proposal.go
package game

import "fmt"

// ProposeTeam records the current proponent's team for this round and opens voting.
func (e *Engine) ProposeTeam(roomID, playerID string, team []string) error {
	return e.withRoom(roomID, func(r *room) error {
		s := r.session
		if s.CurrentPhase != PhaseProposing {
			return fmt.Errorf("%w: cannot propose during %s", ErrWrongPhase, s.CurrentPhase)
		}
		if s.CurrentProponent() != playerID {
			return ErrNotYourTurn
		}
		want := s.Rules.TeamSize(s.Round)
		if len(team) != want {
			return fmt.Errorf("%w: must propose exactly %d chefs", ErrWrongTeamSize, want)
		}
		seen := make(map[string]bool, len(team))
		for _, id := range team {
			if !s.HasPlayer(id) {
				return fmt.Errorf("%w: %s is not in this game", ErrInvalidTeam, id)
			}
			if seen[id] {
				return fmt.Errorf("%w: %s proposed twice", ErrInvalidTeam, id)
			}
			seen[id] = true
		}

		p := &Proposal{
			Proponent:    playerID,
			ProposedTeam: append([]string(nil), team...),
			Votes:        []Vote{},
		}
		s.RoundProposals[s.Round-1] = p

		e.logAction(r, playerID, ActionProposeChefs, map[string]interface{}{
			"round":         s.Round,
			"proposedChefs": p.ProposedTeam,
		})
		e.enterVoting(r, p)
		e.emit(r, gameUpdateEvent(s))
		return nil
	})
}

// SkipProposal passes the proposing turn to the next player. A voluntary
// skip does not count as a rejection.
func (e *Engine) SkipProposal(roomID, playerID string) error {
	return e.withRoom(roomID, func(r *room) error {
		s := r.session
		if s.CurrentPhase != PhaseProposing {
			return fmt.Errorf("%w: cannot skip during %s", ErrWrongPhase, s.CurrentPhase)
		}
		if s.CurrentProponent() != playerID {
			return ErrNotYourTurn
		}

		s.advanceProponent()
		e.logAction(r, playerID, ActionSkipProposal, map[string]interface{}{
			"round":         s.Round,
			"nextProponent": s.CurrentProponent(),
		})
		e.emit(r, proposalSkippedEvent(playerID, s.CurrentProponent()))
		e.enterProposing(r)
		e.emit(r, gameUpdateEvent(s))
		return nil
	})
}

// CastVote records playerID's vote on the current proposal. The vote is
// resolved as soon as every seated player has voted.
func (e *Engine) CastVote(roomID, playerID string, inFavor bool) error {
	return e.withRoom(roomID, func(r *room) error {
		s := r.session
		if s.CurrentPhase != PhaseVoting {
			return fmt.Errorf("%w: cannot vote during %s", ErrWrongPhase, s.CurrentPhase)
		}
		p := s.CurrentProposal()
		if p == nil {
			return ErrNoActiveProposal
		}
		if !s.HasPlayer(playerID) {
			return ErrPlayerNotFound
		}
		if p.hasVoted(playerID) {
			return ErrDuplicateVote
		}

		p.Votes = append(p.Votes, Vote{PlayerID: playerID, InFavor: inFavor})
		e.logAction(r, playerID, ActionVote, map[string]interface{}{
			"round":   s.Round,
			"inFavor": inFavor,
		})

		if s.voteQuorum(p) {
			e.finalizeVote(r)
		}
		e.emit(r, gameUpdateEvent(s))
		return nil
	})
}

// finalizeVote counts missing voters as against, then either starts cooking
// or registers a rejection.
func (e *Engine) finalizeVote(r *room) {
	s := r.session
	p := s.CurrentProposal()
	if p == nil {
		e.registerRejection(r)
		return
	}
	for _, pl := range s.Players {
		if !p.hasVoted(pl.ID) {
			p.Votes = append(p.Votes, Vote{PlayerID: pl.ID, InFavor: false})
		}
	}

	yes, no := p.tally(s)
	passed := yes > no
	e.logAction(r, "", ActionVoteComplete, map[string]interface{}{
		"round":    s.Round,
		"passed":   passed,
		"yesCount": yes,
		"noCount":  no,
	})
	e.emit(r, voteCompleteEvent(passed, yes, no))

	if passed {
		e.enterCooking(r, p)
		return
	}
	e.registerRejection(r)
}
