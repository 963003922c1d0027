// internal/game/action_log.go
package game

import (
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/impasta/internal/models"
)

// Action types written to the action log.
const (
	ActionGameStart      = "game_start"
	ActionProposeChefs   = "propose_chefs"
	ActionSkipProposal   = "skip_proposal"
	ActionProposalExpire = "proposal_timeout"
	ActionVote           = "vote"
	ActionVoteComplete   = "vote_complete"
	ActionSelect         = "select_ingredient"
	ActionRoundComplete  = "round_complete"
	ActionKillChef       = "kill_chef"
	ActionPlayerRemoved  = "player_removed"
	ActionGameOver       = "game_over"
)

// ActionRecord is one entry of a game's ordered action history.
type ActionRecord struct {
	GameID        uuid.UUID              `json:"game_id"`
	RoomID        string                 `json:"room_id"`
	ActionIndex   int                    `json:"action_index"`
	ActorID       string                 `json:"actor_id"`
	ActionType    string                 `json:"action_type"`
	ActionPayload map[string]interface{} `json:"action_payload"`
	Timestamp     int64                  `json:"timestamp"`
}

// ActionLogger receives action records. Implementations must not block the caller.
type ActionLogger interface {
	LogAction(rec ActionRecord)
}

// PlayerResult is one player's line in a finished game.
type PlayerResult struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
	Impasta  bool   `json:"impasta"`
	HeadChef bool   `json:"headChef"`
	Won      bool   `json:"won"`
}

// GameResult summarizes a finished game for persistence.
type GameResult struct {
	GameID         uuid.UUID               `json:"gameId"`
	RoomID         string                  `json:"roomId"`
	Mode           models.GameMode         `json:"gamemode"`
	Winner         Team                    `json:"winner"`
	Redeemed       bool                    `json:"redeemed"`
	RejectionCount int                     `json:"rejectionCount"`
	RoundResults   [NumRounds]*RoundResult `json:"roundResults"`
	Players        []PlayerResult          `json:"players"`
	StartedAt      time.Time               `json:"startedAt"`
	EndedAt        time.Time               `json:"endedAt"`
}

func buildResult(s *GameSession, endedAt time.Time) GameResult {
	c := s.Clone()
	res := GameResult{
		GameID:         c.ID,
		RoomID:         c.RoomID,
		Mode:           c.Mode,
		Winner:         c.Winner,
		Redeemed:       c.Redeemed,
		RejectionCount: c.RejectionCount,
		RoundResults:   c.RoundResults,
		StartedAt:      c.StartedAt,
		EndedAt:        endedAt,
	}
	for _, p := range c.Players {
		imp := c.IsImpasta(p.ID)
		res.Players = append(res.Players, PlayerResult{
			PlayerID: p.ID,
			Name:     p.Name,
			Impasta:  imp,
			HeadChef: p.ID == c.HeadChef,
			Won:      imp == (c.Winner == TeamImpastas),
		})
	}
	return res
}
