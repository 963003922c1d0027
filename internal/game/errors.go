// internal/game/errors.go
package game

import "errors"

// Errors returned by engine operations. Callers match them with errors.Is;
// most are wrapped with extra context.
var (
	ErrRoomNotFound             = errors.New("game not found")
	ErrGameInProgress           = errors.New("game already in progress")
	ErrPlayerNotFound           = errors.New("player not in game")
	ErrUnsupportedConfiguration = errors.New("unsupported player count or mode")

	ErrWrongPhase       = errors.New("action not allowed in current phase")
	ErrNotYourTurn      = errors.New("not your turn to propose")
	ErrWrongTeamSize    = errors.New("wrong team size")
	ErrInvalidTeam      = errors.New("invalid team")
	ErrNoActiveProposal = errors.New("no active proposal")
	ErrDuplicateVote    = errors.New("already voted")

	ErrNotSelected        = errors.New("not selected to cook this round")
	ErrDuplicateSelection = errors.New("already selected an ingredient")
	ErrInvalidChoice      = errors.New("invalid ingredient choice")

	ErrNotRedemptionImpasta = errors.New("not the redemption impasta")
	ErrInvalidTarget        = errors.New("invalid redemption target")
)
