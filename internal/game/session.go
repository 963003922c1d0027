// internal/game/session.go
package game

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/impasta/internal/models"
)

// Phase is the current step of the round state machine.
type Phase string

const (
	PhaseProposing  Phase = "proposing"
	PhaseVoting     Phase = "voting"
	PhaseCooking    Phase = "cooking"
	PhaseRedemption Phase = "redemption"
	PhaseGameOver   Phase = "game_over"
)

// Team identifies a winning side.
type Team string

const (
	TeamChefs    Team = "chefs"
	TeamImpastas Team = "impastas"
)

// Ingredient is a cook's secret contribution to a round.
type Ingredient string

const (
	IngredientHealthy Ingredient = "healthy"
	IngredientRotten  Ingredient = "rotten"
)

// Vote is a single ballot on the current proposal.
type Vote struct {
	PlayerID string `json:"playerId"`
	InFavor  bool   `json:"inFavor"`
}

// Proposal is the team put forward for a round and the votes cast on it.
type Proposal struct {
	Proponent    string   `json:"proponent"`
	ProposedTeam []string `json:"proposal"`
	Votes        []Vote   `json:"votes"`
}

func (p *Proposal) hasVoted(playerID string) bool {
	for _, v := range p.Votes {
		if v.PlayerID == playerID {
			return true
		}
	}
	return false
}

func (p *Proposal) includes(playerID string) bool {
	for _, id := range p.ProposedTeam {
		if id == playerID {
			return true
		}
	}
	return false
}

// tally counts the ballots cast by players still seated in s. Ballots from
// players removed mid-vote stay on the record but no longer count.
func (p *Proposal) tally(s *GameSession) (yes, no int) {
	for _, v := range p.Votes {
		if !s.HasPlayer(v.PlayerID) {
			continue
		}
		if v.InFavor {
			yes++
		} else {
			no++
		}
	}
	return yes, no
}

// voteQuorum reports whether every seated player has a ballot on p.
func (s *GameSession) voteQuorum(p *Proposal) bool {
	for _, pl := range s.Players {
		if !p.hasVoted(pl.ID) {
			return false
		}
	}
	return true
}

// RoundResult is the outcome of a cooked round. It encodes as [success, rottenCount].
type RoundResult struct {
	Success     bool
	RottenCount int
}

func (r RoundResult) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{r.Success, r.RottenCount})
}

func (r *RoundResult) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 2 {
		return fmt.Errorf("round result: expected 2 elements, got %d", len(raw))
	}
	if err := json.Unmarshal(raw[0], &r.Success); err != nil {
		return err
	}
	return json.Unmarshal(raw[1], &r.RottenCount)
}

// IngredientSelection records what one cook put in the pot.
type IngredientSelection struct {
	PlayerID   string     `json:"playerId"`
	Ingredient Ingredient `json:"ingredient"`
}

// GameSession is the authoritative state of one room's game. Only the engine
// mutates it, always while holding the room lock.
type GameSession struct {
	ID      uuid.UUID
	RoomID  string
	HostID  string
	Mode    models.GameMode
	Rules   RuleConfig
	Players []models.Player

	// secret roles
	Impastas      []string
	HiddenImpasta string
	HeadChef      string

	Round                 int
	RoundProposals        [NumRounds]*Proposal
	RoundResults          [NumRounds]*RoundResult
	ProponentOrder        []string
	CurrentProponentIndex int
	RejectionCount        int

	CurrentPhase         Phase
	PhaseDeadline        *time.Time
	IngredientSelections []IngredientSelection
	RedemptionImpasta    string

	// Winner is set once the game is decided. During redemption it holds the
	// provisional Chefs win.
	Winner   Team
	Redeemed bool

	StartedAt time.Time
}

// CurrentProponent returns the player whose turn it is to propose.
func (s *GameSession) CurrentProponent() string {
	if len(s.ProponentOrder) == 0 {
		return ""
	}
	return s.ProponentOrder[s.CurrentProponentIndex]
}

// CurrentProposal returns this round's proposal, or nil if none was made.
func (s *GameSession) CurrentProposal() *Proposal {
	return s.RoundProposals[s.Round-1]
}

func (s *GameSession) advanceProponent() {
	s.CurrentProponentIndex = (s.CurrentProponentIndex + 1) % len(s.ProponentOrder)
}

// HasPlayer reports whether playerID is seated in this game.
func (s *GameSession) HasPlayer(playerID string) bool {
	return s.playerIndex(playerID) >= 0
}

func (s *GameSession) playerIndex(playerID string) int {
	for i, p := range s.Players {
		if p.ID == playerID {
			return i
		}
	}
	return -1
}

// wasSeated reports whether playerID was dealt into this game, even if they
// have since been removed.
func (s *GameSession) wasSeated(playerID string) bool {
	for _, id := range s.ProponentOrder {
		if id == playerID {
			return true
		}
	}
	return false
}

// IsImpasta reports whether playerID is on the Impasta team.
func (s *GameSession) IsImpasta(playerID string) bool {
	for _, id := range s.Impastas {
		if id == playerID {
			return true
		}
	}
	return false
}

func (s *GameSession) hasSelected(playerID string) bool {
	for _, sel := range s.IngredientSelections {
		if sel.PlayerID == playerID {
			return true
		}
	}
	return false
}

func (s *GameSession) rottenCount() int {
	n := 0
	for _, sel := range s.IngredientSelections {
		if sel.Ingredient == IngredientRotten {
			n++
		}
	}
	return n
}

// recordResult fills the current round's slot. A slot is written at most once.
func (s *GameSession) recordResult(res RoundResult) bool {
	idx := s.Round - 1
	if s.RoundResults[idx] != nil {
		return false
	}
	s.RoundResults[idx] = &res
	return true
}

// Clone returns a deep copy safe to hand out of the room lock.
func (s *GameSession) Clone() GameSession {
	c := *s
	c.Players = append([]models.Player(nil), s.Players...)
	c.Impastas = append([]string(nil), s.Impastas...)
	c.ProponentOrder = append([]string(nil), s.ProponentOrder...)
	c.IngredientSelections = append([]IngredientSelection(nil), s.IngredientSelections...)
	for i, p := range s.RoundProposals {
		if p == nil {
			continue
		}
		cp := *p
		cp.ProposedTeam = append([]string(nil), p.ProposedTeam...)
		cp.Votes = append([]Vote(nil), p.Votes...)
		c.RoundProposals[i] = &cp
	}
	for i, r := range s.RoundResults {
		if r == nil {
			continue
		}
		cr := *r
		c.RoundResults[i] = &cr
	}
	if s.PhaseDeadline != nil {
		d := *s.PhaseDeadline
		c.PhaseDeadline = &d
	}
	return c
}
