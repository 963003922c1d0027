// internal/game/rules.go
package game

import (
	"fmt"

	"github.com/jason-s-yu/impasta/internal/models"
)

const (
	// NumRounds is the fixed length of a game.
	NumRounds = 5
	// MaxRejections ends the game in favour of the Impastas once reached.
	MaxRejections = 5
	// RoundsToWin is the number of successful (or failed) rounds that decides the game.
	RoundsToWin = 3

	MinPlayers = 6
	MaxPlayers = 8
)

// RuleConfig is the immutable rule set derived from the player count and game mode.
type RuleConfig struct {
	ImpastaCount      int            `json:"impastaCount"`
	RoundTeamSizes    [NumRounds]int `json:"roundProposals"`
	FailureThresholds [NumRounds]int `json:"failureThreshold"`

	// ImpastasKnown and ImpastasHidden are only present for modes that split
	// the Impastas into known and hidden members.
	ImpastasKnown  *int `json:"impastasKnown,omitempty"`
	ImpastasHidden *int `json:"impastasHidden,omitempty"`

	HasHeadChef     bool `json:"hasHeadChef,omitempty"`
	AllowRedemption bool `json:"allowRedemption,omitempty"`
}

// HasKnownSplit reports whether the mode distinguishes known from hidden Impastas.
func (r RuleConfig) HasKnownSplit() bool {
	return r.ImpastasKnown != nil
}

// HiddenCount returns the number of hidden Impastas, zero when the mode has none.
func (r RuleConfig) HiddenCount() int {
	if r.ImpastasHidden == nil {
		return 0
	}
	return *r.ImpastasHidden
}

// TeamSize returns the required team size for a 1-based round number.
func (r RuleConfig) TeamSize(round int) int {
	return r.RoundTeamSizes[round-1]
}

// FailureThreshold returns the rotten count at which a 1-based round fails.
func (r RuleConfig) FailureThreshold(round int) int {
	return r.FailureThresholds[round-1]
}

type baseRules struct {
	impastas   int
	teamSizes  [NumRounds]int
	thresholds [NumRounds]int
}

var baseTable = map[int]baseRules{
	6: {impastas: 2, teamSizes: [NumRounds]int{2, 3, 4, 3, 4}, thresholds: [NumRounds]int{1, 1, 1, 1, 1}},
	7: {impastas: 3, teamSizes: [NumRounds]int{2, 3, 3, 4, 4}, thresholds: [NumRounds]int{1, 1, 1, 2, 1}},
	8: {impastas: 3, teamSizes: [NumRounds]int{3, 4, 4, 5, 5}, thresholds: [NumRounds]int{1, 1, 1, 2, 1}},
}

// known/hidden split per player count
type split struct{ known, hidden int }

var hiddenSplits = map[int]split{6: {0, 2}, 7: {2, 1}, 8: {2, 1}}
var headChefSplits = map[int]split{6: {2, 0}, 7: {2, 1}, 8: {2, 1}}

// ResolveRules returns the rule set for the given player count and mode.
func ResolveRules(playerCount int, mode models.GameMode) (RuleConfig, error) {
	base, ok := baseTable[playerCount]
	if !ok || !mode.Valid() {
		return RuleConfig{}, fmt.Errorf("%w: %d players in %q mode", ErrUnsupportedConfiguration, playerCount, mode)
	}

	rules := RuleConfig{
		ImpastaCount:      base.impastas,
		RoundTeamSizes:    base.teamSizes,
		FailureThresholds: base.thresholds,
	}

	switch mode {
	case models.ModeHidden:
		s := hiddenSplits[playerCount]
		rules.ImpastasKnown, rules.ImpastasHidden = intPtr(s.known), intPtr(s.hidden)
	case models.ModeHeadChef:
		s := headChefSplits[playerCount]
		rules.ImpastasKnown, rules.ImpastasHidden = intPtr(s.known), intPtr(s.hidden)
		rules.HasHeadChef = true
		rules.AllowRedemption = true
	}
	return rules, nil
}

func intPtr(v int) *int { return &v }
