// internal/game/sync_state.go
package game

import (
	"github.com/google/uuid"
	"github.com/jason-s-yu/impasta/internal/models"
)

// ClientState is the session as every player may see it. Role secrets
// (impastas, hidden impasta, head chef, redemption impasta) are never copied in.
type ClientState struct {
	GameID                uuid.UUID                `json:"gameId"`
	RoomID                string                   `json:"roomId"`
	HostID                string                   `json:"hostId"`
	Gamemode              models.GameMode          `json:"gamemode"`
	Rules                 RuleConfig               `json:"rules"`
	Players               []models.Player          `json:"players"`
	Round                 int                      `json:"round"`
	RoundProposals        [NumRounds]*Proposal     `json:"roundProposals"`
	RoundResults          [NumRounds]*RoundResult  `json:"roundResults"`
	ProponentOrder        []string                 `json:"proponentOrder"`
	CurrentProponentIndex int                      `json:"currentProponentIndex"`
	CurrentProponent      string                   `json:"currentProponent"`
	RejectionCount        int                      `json:"rejectionCount"`
	CurrentPhase          Phase                    `json:"currentPhase"`
	PhaseDeadline         interface{}              `json:"phaseDeadline"`
	IngredientSelections  []IngredientSelectionObf `json:"ingredientSelections"`
	Winner                Team                     `json:"winner,omitempty"`
}

// IngredientSelectionObf shows who has cooked without revealing what they chose.
type IngredientSelectionObf struct {
	PlayerID string `json:"playerId"`
}

// ClientView builds the client-safe snapshot of s.
func ClientView(s *GameSession) ClientState {
	c := s.Clone()
	view := ClientState{
		GameID:                c.ID,
		RoomID:                c.RoomID,
		HostID:                c.HostID,
		Gamemode:              c.Mode,
		Rules:                 c.Rules,
		Players:               c.Players,
		Round:                 c.Round,
		RoundProposals:        c.RoundProposals,
		RoundResults:          c.RoundResults,
		ProponentOrder:        c.ProponentOrder,
		CurrentProponentIndex: c.CurrentProponentIndex,
		CurrentProponent:      c.CurrentProponent(),
		RejectionCount:        c.RejectionCount,
		CurrentPhase:          c.CurrentPhase,
		PhaseDeadline:         deadlineMillis(c.PhaseDeadline),
		IngredientSelections:  make([]IngredientSelectionObf, 0, len(c.IngredientSelections)),
	}
	for _, sel := range c.IngredientSelections {
		view.IngredientSelections = append(view.IngredientSelections, IngredientSelectionObf{PlayerID: sel.PlayerID})
	}
	// the provisional win during redemption stays private
	if c.CurrentPhase == PhaseGameOver {
		view.Winner = c.Winner
	}
	return view
}

// Role names used in role_reveal.
const (
	RoleChef    = "chef"
	RoleImpasta = "impasta"
)

// RoleReveal is what one player is told about their own role and the Impastas they know.
type RoleReveal struct {
	YourRole        string   `json:"yourRole"`
	IsHeadChef      bool     `json:"isHeadChef"`
	IsHiddenImpasta bool     `json:"isHiddenImpasta"`
	KnownImpastas   []string `json:"knownImpastas"`
}

// RevealFor computes the private role disclosure for playerID.
func RevealFor(s *GameSession, playerID string) RoleReveal {
	r := RoleReveal{
		YourRole:      RoleChef,
		KnownImpastas: []string{},
	}

	switch {
	case s.IsImpasta(playerID):
		r.YourRole = RoleImpasta
		r.IsHiddenImpasta = playerID == s.HiddenImpasta
		if r.IsHiddenImpasta {
			break
		}
		for _, id := range s.Impastas {
			if id == playerID {
				continue
			}
			// hidden Impastas stay unknown to their teammates in split modes
			if s.Rules.HasKnownSplit() && id == s.HiddenImpasta {
				continue
			}
			r.KnownImpastas = append(r.KnownImpastas, id)
		}
	case playerID == s.HeadChef:
		r.IsHeadChef = true
		r.KnownImpastas = append(r.KnownImpastas, s.Impastas...)
	}
	return r
}
