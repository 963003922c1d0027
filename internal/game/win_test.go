// internal/game/win_test.go
package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func results(outcomes ...bool) [NumRounds]*RoundResult {
	var out [NumRounds]*RoundResult
	for i, ok := range outcomes {
		r := RoundResult{Success: ok}
		if !ok {
			r.RottenCount = 1
		}
		out[i] = &r
	}
	return out
}

func TestEvaluateWinner(t *testing.T) {
	tests := []struct {
		name       string
		results    [NumRounds]*RoundResult
		rejections int
		want       Team
	}{
		{"no rounds", results(), 0, ""},
		{"two each", results(true, false, true, false), 0, ""},
		{"three successes", results(true, true, true), 0, TeamChefs},
		{"three failures", results(false, false, false), 0, TeamImpastas},
		{"late chefs win", results(false, true, false, true, true), 0, TeamChefs},
		{"late impastas win", results(true, false, true, false, false), 0, TeamImpastas},
		{"rejection limit", results(true), MaxRejections, TeamImpastas},
		{"rejection limit beats successes", results(true, true, true), MaxRejections, TeamImpastas},
		{"four rejections", results(true), MaxRejections - 1, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EvaluateWinner(tt.results, tt.rejections))
		})
	}
}

func TestRecordResultIsWriteOnce(t *testing.T) {
	s := &GameSession{Round: 2}
	assert.True(t, s.recordResult(RoundResult{Success: true}))
	assert.False(t, s.recordResult(RoundResult{Success: false, RottenCount: 3}))
	assert.Equal(t, RoundResult{Success: true}, *s.RoundResults[1])
}
