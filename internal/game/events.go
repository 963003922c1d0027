// internal/game/events.go
package game

import (
	"encoding/json"
	"time"

	"github.com/jason-s-yu/impasta/internal/models"
)

// GameEventType tags every outbound message.
type GameEventType string

const (
	EventGameStarting       GameEventType = "game_starting"
	EventGameUpdate         GameEventType = "game_update"
	EventRoleReveal         GameEventType = "role_reveal"
	EventPhaseChange        GameEventType = "phase_change"
	EventProposalStarted    GameEventType = "proposal_started"
	EventProposalSubmitted  GameEventType = "proposal_submitted"
	EventProposalSkipped    GameEventType = "proposal_skipped"
	EventVoteComplete       GameEventType = "vote_complete"
	EventCookingStarted     GameEventType = "cooking_started"
	EventRoundComplete      GameEventType = "round_complete"
	EventRedemptionSelected GameEventType = "redemption_selected"
	EventGameOver           GameEventType = "game_over"
	EventPlayerLeft         GameEventType = "player_left"
	EventPlayerJoined       GameEventType = "player_joined"
	EventLobbyUpdate        GameEventType = "lobby_update"
	EventKeepalive          GameEventType = "keepalive"
	EventPong               GameEventType = "pong"
	EventError              GameEventType = "error"
)

// SkippedByTimeout marks a proposal_skipped event raised by the proposing deadline.
const SkippedByTimeout = "timeout"

// GameEvent is a message for the clients of one room. Payload keys are
// flattened next to "type" on the wire. When To is set, only that player
// receives the event.
type GameEvent struct {
	Type    GameEventType
	To      string
	Payload map[string]interface{}
}

func (ev GameEvent) MarshalJSON() ([]byte, error) {
	m := make(map[string]interface{}, len(ev.Payload)+1)
	for k, v := range ev.Payload {
		m[k] = v
	}
	m["type"] = ev.Type
	return json.Marshal(m)
}

// NewEvent builds a room-wide event.
func NewEvent(t GameEventType, payload map[string]interface{}) GameEvent {
	return GameEvent{Type: t, Payload: payload}
}

// ToPlayer returns a copy of ev addressed to a single player.
func (ev GameEvent) ToPlayer(playerID string) GameEvent {
	ev.To = playerID
	return ev
}

// deadlineMillis encodes a deadline as Unix milliseconds, or nil for none.
func deadlineMillis(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UnixMilli()
}

func nullable(id string) interface{} {
	if id == "" {
		return nil
	}
	return id
}

func phaseChangeEvent(s *GameSession) GameEvent {
	return NewEvent(EventPhaseChange, map[string]interface{}{
		"newPhase": s.CurrentPhase,
		"deadline": deadlineMillis(s.PhaseDeadline),
	})
}

func proposalStartedEvent(s *GameSession) GameEvent {
	return NewEvent(EventProposalStarted, map[string]interface{}{
		"proponent": s.CurrentProponent(),
		"deadline":  deadlineMillis(s.PhaseDeadline),
	})
}

func proposalSubmittedEvent(s *GameSession, p *Proposal) GameEvent {
	return NewEvent(EventProposalSubmitted, map[string]interface{}{
		"proponent":     p.Proponent,
		"proposedChefs": p.ProposedTeam,
		"deadline":      deadlineMillis(s.PhaseDeadline),
	})
}

func proposalSkippedEvent(skippedBy, next string) GameEvent {
	return NewEvent(EventProposalSkipped, map[string]interface{}{
		"skippedBy":     skippedBy,
		"nextProponent": next,
	})
}

func voteCompleteEvent(passed bool, yes, no int) GameEvent {
	return NewEvent(EventVoteComplete, map[string]interface{}{
		"passed":   passed,
		"yesCount": yes,
		"noCount":  no,
	})
}

func cookingStartedEvent(team []string) GameEvent {
	return NewEvent(EventCookingStarted, map[string]interface{}{
		"selectedChefs": team,
	})
}

func roundCompleteEvent(round int, res RoundResult) GameEvent {
	return NewEvent(EventRoundComplete, map[string]interface{}{
		"roundNumber": round,
		"success":     res.Success,
		"rottenCount": res.RottenCount,
	})
}

func gameOverEvent(s *GameSession) GameEvent {
	return NewEvent(EventGameOver, map[string]interface{}{
		"winner":       s.Winner,
		"impastas":     s.Impastas,
		"headChef":     nullable(s.HeadChef),
		"players":      append([]models.Player(nil), s.Players...),
		"roundResults": s.RoundResults,
		"round":        s.Round,
	})
}

func redemptionSelectedEvent(s *GameSession) GameEvent {
	return NewEvent(EventRedemptionSelected, map[string]interface{}{
		"deadline": deadlineMillis(s.PhaseDeadline),
	}).ToPlayer(s.RedemptionImpasta)
}

func gameUpdateEvent(s *GameSession) GameEvent {
	return NewEvent(EventGameUpdate, map[string]interface{}{
		"game": ClientView(s),
	})
}

func roleRevealEvent(s *GameSession, playerID string) GameEvent {
	r := RevealFor(s, playerID)
	return NewEvent(EventRoleReveal, map[string]interface{}{
		"yourRole":        r.YourRole,
		"isHeadChef":      r.IsHeadChef,
		"isHiddenImpasta": r.IsHiddenImpasta,
		"knownImpastas":   r.KnownImpastas,
	}).ToPlayer(playerID)
}

// PlayerJoinedEvent announces a new lobby member.
func PlayerJoinedEvent(p models.Player) GameEvent {
	return NewEvent(EventPlayerJoined, map[string]interface{}{"player": p})
}

// PlayerLeftEvent announces that a member left the room.
func PlayerLeftEvent(playerID string) GameEvent {
	return NewEvent(EventPlayerLeft, map[string]interface{}{"playerId": playerID})
}

// LobbyUpdateEvent carries the full lobby record.
func LobbyUpdateEvent(l models.Lobby) GameEvent {
	return NewEvent(EventLobbyUpdate, map[string]interface{}{"lobby": l})
}

// ErrorEvent reports a rejected action to the connection that sent it.
func ErrorEvent(message, code string) GameEvent {
	return NewEvent(EventError, map[string]interface{}{
		"message": message,
		"code":    code,
	})
}
