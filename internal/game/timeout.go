// internal/game/timeout.go
package game

// schedulePhaseTimer replaces the room's phase timer with one for the
// current deadline. Phases without a deadline leave no timer behind.
func (e *Engine) schedulePhaseTimer(r *room) {
	r.stopPhaseTimer()
	s := r.session
	if s.PhaseDeadline == nil {
		return
	}
	seq := r.timerSeq
	phase := s.CurrentPhase
	d := s.PhaseDeadline.Sub(e.clock.Now())
	r.phaseTimer = e.clock.AfterFunc(d, func() {
		e.onPhaseTimeout(r, seq, phase)
	})
}

// onPhaseTimeout runs the same transitions a player action would. Firings
// from a replaced timer are ignored.
func (e *Engine) onPhaseTimeout(r *room, seq uint64, phase Phase) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || seq != r.timerSeq || r.session.CurrentPhase != phase {
		return
	}
	r.phaseTimer = nil
	s := r.session

	e.roomLogger(s).WithField("phase", phase).Debug("phase deadline reached")
	switch phase {
	case PhaseProposing:
		e.expireProposal(r)
	case PhaseVoting:
		e.finalizeVote(r)
	case PhaseRedemption:
		e.enterGameOver(r, TeamChefs)
	default:
		return
	}
	e.emit(r, gameUpdateEvent(s))
}

// expireProposal handles a proponent who let the window run out. Unlike a
// voluntary skip, it counts towards the rejection limit.
func (e *Engine) expireProposal(r *room) {
	s := r.session
	var next interface{}
	if s.RejectionCount+1 < MaxRejections {
		next = s.ProponentOrder[(s.CurrentProponentIndex+1)%len(s.ProponentOrder)]
	}
	e.logAction(r, s.CurrentProponent(), ActionProposalExpire, map[string]interface{}{
		"round": s.Round,
	})
	e.emit(r, NewEvent(EventProposalSkipped, map[string]interface{}{
		"skippedBy":     SkippedByTimeout,
		"nextProponent": next,
	}))
	e.registerRejection(r)
}
