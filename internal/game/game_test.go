// internal/game/game_test.go
package game

import (
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/jason-s-yu/impasta/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRoom = "KITCH1"

// testGame drives one room through a fake clock and records what the hub
// delivers, both room-wide and per player.
type testGame struct {
	t      *testing.T
	engine *Engine
	clock  *fakeClock

	events       <-chan GameEvent
	playerEvents map[string]<-chan GameEvent

	mu      sync.Mutex
	results []GameResult
	closed  []string
}

func testLobby(n int, mode models.GameMode) models.Lobby {
	players := make([]models.Player, n)
	for i := range players {
		players[i] = models.Player{
			ID:     fmt.Sprintf("p%d", i+1),
			Name:   fmt.Sprintf("Cook%d", i+1),
			IsHost: i == 0,
		}
	}
	return models.Lobby{
		RoomID:  testRoom,
		HostID:  "p1",
		Players: players,
		Mode:    mode,
		Status:  models.RoomWaiting,
	}
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// setupTestGame starts a game for n players in mode with a seeded RNG. opts
// are applied after the test defaults.
func setupTestGame(t *testing.T, n int, mode models.GameMode, seed int64, opts ...Option) *testGame {
	t.Helper()
	tg := &testGame{
		t:            t,
		clock:        newFakeClock(),
		playerEvents: make(map[string]<-chan GameEvent),
	}
	base := []Option{
		WithClock(tg.clock),
		WithRand(rand.New(rand.NewSource(seed))),
		WithLogger(quietLogger()),
		WithGameEndHook(func(res GameResult) {
			tg.mu.Lock()
			defer tg.mu.Unlock()
			tg.results = append(tg.results, res)
		}),
		WithRoomClosedHook(func(roomID string) {
			tg.mu.Lock()
			defer tg.mu.Unlock()
			tg.closed = append(tg.closed, roomID)
		}),
	}
	tg.engine = NewEngine(append(base, opts...)...)

	lobby := testLobby(n, mode)
	ch, cancel := tg.engine.Hub().Subscribe(testRoom, "", 4096)
	t.Cleanup(cancel)
	tg.events = ch
	for _, p := range lobby.Players {
		pch, pcancel := tg.engine.Hub().Subscribe(testRoom, p.ID, 4096)
		t.Cleanup(pcancel)
		tg.playerEvents[p.ID] = pch
	}

	_, err := tg.engine.StartGame(lobby)
	require.NoError(t, err)
	return tg
}

func drainChan(ch <-chan GameEvent) []GameEvent {
	var out []GameEvent
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, ev)
		default:
			return out
		}
	}
}

// drain returns the room-wide events delivered since the last call.
func (tg *testGame) drain() []GameEvent { return drainChan(tg.events) }

// drainPlayer returns everything playerID received since the last call.
func (tg *testGame) drainPlayer(playerID string) []GameEvent {
	return drainChan(tg.playerEvents[playerID])
}

func (tg *testGame) session() GameSession {
	tg.t.Helper()
	s, err := tg.engine.Snapshot(testRoom)
	require.NoError(tg.t, err)
	return s
}

func (tg *testGame) chefs() []string {
	s := tg.session()
	var out []string
	for _, p := range s.Players {
		if !s.IsImpasta(p.ID) {
			out = append(out, p.ID)
		}
	}
	return out
}

func (tg *testGame) voteAll(inFavor bool) {
	tg.t.Helper()
	for _, p := range tg.session().Players {
		require.NoError(tg.t, tg.engine.CastVote(testRoom, p.ID, inFavor))
	}
}

// playRound proposes a team, passes it unanimously and cooks it so that the
// round succeeds or fails as requested.
func (tg *testGame) playRound(success bool) {
	tg.t.Helper()
	s := tg.session()
	require.Equal(tg.t, PhaseProposing, s.CurrentPhase)

	want := s.Rules.TeamSize(s.Round)
	rotten := 0
	var team []string
	if !success {
		rotten = s.Rules.FailureThreshold(s.Round)
		team = append(team, s.Impastas[:rotten]...)
	}
	for _, p := range s.Players {
		if len(team) == want {
			break
		}
		if !contains(team, p.ID) {
			team = append(team, p.ID)
		}
	}

	require.NoError(tg.t, tg.engine.ProposeTeam(testRoom, s.CurrentProponent(), team))
	tg.voteAll(true)
	for i, id := range team {
		ing := IngredientHealthy
		if i < rotten {
			ing = IngredientRotten
		}
		require.NoError(tg.t, tg.engine.SelectIngredient(testRoom, id, ing))
	}
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func eventTypes(evs []GameEvent) []GameEventType {
	out := make([]GameEventType, len(evs))
	for i, ev := range evs {
		out[i] = ev.Type
	}
	return out
}

func findEvent(evs []GameEvent, t GameEventType) *GameEvent {
	for i := range evs {
		if evs[i].Type == t {
			return &evs[i]
		}
	}
	return nil
}

func TestStartGameOpensFirstProposal(t *testing.T) {
	tg := setupTestGame(t, 6, models.ModeClassic, 1)
	s := tg.session()

	assert.Equal(t, PhaseProposing, s.CurrentPhase)
	assert.Equal(t, 1, s.Round)
	assert.Equal(t, 0, s.RejectionCount)
	assert.Len(t, s.Impastas, 2)
	assert.ElementsMatch(t, []string{"p1", "p2", "p3", "p4", "p5", "p6"}, s.ProponentOrder)
	require.NotNil(t, s.PhaseDeadline)
	assert.Equal(t, tg.clock.Now().Add(90*time.Second), *s.PhaseDeadline)

	evs := tg.drain()
	assert.Equal(t, []GameEventType{EventGameStarting, EventGameUpdate, EventPhaseChange, EventProposalStarted}, eventTypes(evs))
	started := findEvent(evs, EventProposalStarted)
	assert.Equal(t, s.CurrentProponent(), started.Payload["proponent"])
	assert.Equal(t, s.PhaseDeadline.UnixMilli(), started.Payload["deadline"])

	// every player gets exactly one private role reveal
	for _, p := range s.Players {
		var reveals int
		for _, ev := range tg.drainPlayer(p.ID) {
			if ev.Type == EventRoleReveal {
				reveals++
				assert.Equal(t, p.ID, ev.To)
			}
		}
		assert.Equal(t, 1, reveals, "player %s", p.ID)
	}
}

func TestStartGameRejectsBadLobbies(t *testing.T) {
	e := NewEngine(WithClock(newFakeClock()), WithLogger(quietLogger()))

	_, err := e.StartGame(testLobby(5, models.ModeClassic))
	assert.ErrorIs(t, err, ErrUnsupportedConfiguration)

	_, err = e.StartGame(testLobby(6, models.GameMode("chaos")))
	assert.ErrorIs(t, err, ErrUnsupportedConfiguration)

	_, err = e.StartGame(testLobby(6, models.ModeClassic))
	require.NoError(t, err)
	_, err = e.StartGame(testLobby(6, models.ModeClassic))
	assert.ErrorIs(t, err, ErrGameInProgress)
}

// A 6-player game where a round-1 team of two is approved by everyone and cooked healthy.
func TestPassingVoteAndHealthyRound(t *testing.T) {
	tg := setupTestGame(t, 6, models.ModeClassic, 1)
	s := tg.session()
	tg.drain()

	team := []string{s.Players[0].ID, s.Players[1].ID}
	require.NoError(t, tg.engine.ProposeTeam(testRoom, s.CurrentProponent(), team))

	s = tg.session()
	assert.Equal(t, PhaseVoting, s.CurrentPhase)
	require.NotNil(t, s.PhaseDeadline)
	assert.Equal(t, tg.clock.Now().Add(20*time.Second), *s.PhaseDeadline)
	assert.Equal(t, []GameEventType{EventProposalSubmitted, EventPhaseChange, EventGameUpdate}, eventTypes(tg.drain()))

	tg.voteAll(true)
	s = tg.session()
	assert.Equal(t, PhaseCooking, s.CurrentPhase)
	assert.Nil(t, s.PhaseDeadline)

	evs := tg.drain()
	vc := findEvent(evs, EventVoteComplete)
	require.NotNil(t, vc)
	assert.Equal(t, true, vc.Payload["passed"])
	assert.Equal(t, 6, vc.Payload["yesCount"])
	assert.Equal(t, 0, vc.Payload["noCount"])
	cs := findEvent(evs, EventCookingStarted)
	require.NotNil(t, cs)
	assert.Equal(t, team, cs.Payload["selectedChefs"])

	for _, id := range team {
		require.NoError(t, tg.engine.SelectIngredient(testRoom, id, IngredientHealthy))
	}

	s = tg.session()
	require.NotNil(t, s.RoundResults[0])
	assert.Equal(t, RoundResult{Success: true, RottenCount: 0}, *s.RoundResults[0])
	assert.Equal(t, 2, s.Round)
	assert.Equal(t, 0, s.RejectionCount)
	assert.Equal(t, 1, s.CurrentProponentIndex)
	assert.Equal(t, PhaseProposing, s.CurrentPhase)

	rc := findEvent(tg.drain(), EventRoundComplete)
	require.NotNil(t, rc)
	assert.Equal(t, 1, rc.Payload["roundNumber"])
	assert.Equal(t, true, rc.Payload["success"])
}

// Round 4 with seven players tolerates a single rotten ingredient.
func TestRoundFourThresholdSevenPlayers(t *testing.T) {
	tg := setupTestGame(t, 7, models.ModeClassic, 7)
	tg.playRound(true)
	tg.playRound(false)
	tg.playRound(true)

	s := tg.session()
	require.Equal(t, 4, s.Round)
	require.Equal(t, 4, s.Rules.TeamSize(4))
	require.Equal(t, 2, s.Rules.FailureThreshold(4))

	chefs := tg.chefs()
	team := []string{s.Impastas[0], chefs[0], chefs[1], chefs[2]}
	require.NoError(t, tg.engine.ProposeTeam(testRoom, s.CurrentProponent(), team))
	tg.voteAll(true)
	require.NoError(t, tg.engine.SelectIngredient(testRoom, s.Impastas[0], IngredientRotten))
	for _, id := range team[1:] {
		require.NoError(t, tg.engine.SelectIngredient(testRoom, id, IngredientHealthy))
	}

	s = tg.session()
	require.NotNil(t, s.RoundResults[3])
	assert.Equal(t, RoundResult{Success: true, RottenCount: 1}, *s.RoundResults[3])
	// third success in classic mode ends the game outright
	assert.Equal(t, PhaseGameOver, s.CurrentPhase)
	assert.Equal(t, TeamChefs, s.Winner)
}

func TestRoundFourTwoRottenFails(t *testing.T) {
	tg := setupTestGame(t, 7, models.ModeClassic, 8)
	tg.playRound(true)
	tg.playRound(false)
	tg.playRound(true)

	s := tg.session()
	chefs := tg.chefs()
	team := []string{s.Impastas[0], s.Impastas[1], chefs[0], chefs[1]}
	require.NoError(t, tg.engine.ProposeTeam(testRoom, s.CurrentProponent(), team))
	tg.voteAll(true)
	require.NoError(t, tg.engine.SelectIngredient(testRoom, team[0], IngredientRotten))
	require.NoError(t, tg.engine.SelectIngredient(testRoom, team[1], IngredientRotten))
	require.NoError(t, tg.engine.SelectIngredient(testRoom, team[2], IngredientHealthy))
	require.NoError(t, tg.engine.SelectIngredient(testRoom, team[3], IngredientHealthy))

	s = tg.session()
	assert.Equal(t, RoundResult{Success: false, RottenCount: 2}, *s.RoundResults[3])
	assert.Equal(t, 5, s.Round)
	assert.Equal(t, PhaseProposing, s.CurrentPhase)
}

// Round 1 of a 6-player game: a 4 yes / 2 no vote passes and one rotten
// ingredient is enough to spoil the dish.
func TestSplitVotePassesAndRottenFails(t *testing.T) {
	tg := setupTestGame(t, 6, models.ModeClassic, 26)
	s := tg.session()
	require.Equal(t, 2, s.Rules.TeamSize(1))
	require.Equal(t, 1, s.Rules.FailureThreshold(1))

	chef, imp := tg.chefs()[0], s.Impastas[0]
	team := []string{chef, imp}
	require.NoError(t, tg.engine.ProposeTeam(testRoom, s.CurrentProponent(), team))
	tg.drain()

	for i, p := range s.Players {
		require.NoError(t, tg.engine.CastVote(testRoom, p.ID, i < 4))
	}
	s = tg.session()
	require.Equal(t, PhaseCooking, s.CurrentPhase)

	vc := findEvent(tg.drain(), EventVoteComplete)
	require.NotNil(t, vc)
	assert.Equal(t, true, vc.Payload["passed"])
	assert.Equal(t, 4, vc.Payload["yesCount"])
	assert.Equal(t, 2, vc.Payload["noCount"])

	require.NoError(t, tg.engine.SelectIngredient(testRoom, chef, IngredientHealthy))
	require.NoError(t, tg.engine.SelectIngredient(testRoom, imp, IngredientRotten))

	s = tg.session()
	require.NotNil(t, s.RoundResults[0])
	assert.Equal(t, RoundResult{Success: false, RottenCount: 1}, *s.RoundResults[0])
	assert.Equal(t, 2, s.Round)
	assert.Equal(t, 0, s.RejectionCount)
	assert.Equal(t, PhaseProposing, s.CurrentPhase)

	rc := findEvent(tg.drain(), EventRoundComplete)
	require.NotNil(t, rc)
	assert.Equal(t, false, rc.Payload["success"])
}

func TestTiedVoteRejectsAndAdvancesProponent(t *testing.T) {
	tg := setupTestGame(t, 6, models.ModeClassic, 27)
	s := tg.session()
	start := s.CurrentProponentIndex
	require.NoError(t, tg.engine.ProposeTeam(testRoom, s.CurrentProponent(), []string{"p1", "p2"}))
	tg.drain()

	for i, p := range s.Players {
		require.NoError(t, tg.engine.CastVote(testRoom, p.ID, i < 3))
	}

	s = tg.session()
	assert.Equal(t, PhaseProposing, s.CurrentPhase)
	assert.Equal(t, 1, s.Round)
	assert.Equal(t, 1, s.RejectionCount)
	assert.Equal(t, (start+1)%len(s.ProponentOrder), s.CurrentProponentIndex)
	assert.Equal(t, s.ProponentOrder[(start+1)%len(s.ProponentOrder)], s.CurrentProponent())
	assert.Nil(t, s.RoundResults[0])

	vc := findEvent(tg.drain(), EventVoteComplete)
	require.NotNil(t, vc)
	assert.Equal(t, false, vc.Payload["passed"])
	assert.Equal(t, 3, vc.Payload["yesCount"])
	assert.Equal(t, 3, vc.Payload["noCount"])
}

// Five rejected proposals in round 2 end the game for the Impastas.
func TestFiveRejectionsEndGame(t *testing.T) {
	tg := setupTestGame(t, 6, models.ModeClassic, 2)
	tg.playRound(true)

	for i := 0; i < MaxRejections; i++ {
		s := tg.session()
		require.Equal(t, PhaseProposing, s.CurrentPhase)
		require.Equal(t, 2, s.Round)
		require.Equal(t, i, s.RejectionCount)
		team := []string{s.Players[0].ID, s.Players[1].ID, s.Players[2].ID}
		require.NoError(t, tg.engine.ProposeTeam(testRoom, s.CurrentProponent(), team))
		tg.voteAll(false)
	}

	s := tg.session()
	assert.Equal(t, PhaseGameOver, s.CurrentPhase)
	assert.Equal(t, TeamImpastas, s.Winner)
	assert.Equal(t, MaxRejections, s.RejectionCount)
	require.NotNil(t, s.RoundResults[1])
	assert.Equal(t, RoundResult{Success: false, RottenCount: 0}, *s.RoundResults[1])
	assert.Nil(t, s.RoundResults[2])

	evs := tg.drain()
	over := findEvent(evs, EventGameOver)
	require.NotNil(t, over)
	assert.Equal(t, TeamImpastas, over.Payload["winner"])
	assert.ElementsMatch(t, s.Impastas, over.Payload["impastas"])
	assert.Nil(t, over.Payload["headChef"])

	tg.mu.Lock()
	defer tg.mu.Unlock()
	require.Len(t, tg.results, 1)
	assert.Equal(t, TeamImpastas, tg.results[0].Winner)
	for _, pr := range tg.results[0].Players {
		assert.Equal(t, pr.Impasta, pr.Won, "player %s", pr.PlayerID)
	}
}

func TestRejectionCountResetsEachRound(t *testing.T) {
	tg := setupTestGame(t, 6, models.ModeClassic, 3)
	s := tg.session()
	require.NoError(t, tg.engine.ProposeTeam(testRoom, s.CurrentProponent(), []string{"p1", "p2"}))
	tg.voteAll(false)
	require.Equal(t, 1, tg.session().RejectionCount)

	tg.playRound(true)
	s = tg.session()
	assert.Equal(t, 2, s.Round)
	assert.Equal(t, 0, s.RejectionCount)
}

func TestHeadChefRedemptionHit(t *testing.T) {
	tg := setupTestGame(t, 6, models.ModeHeadChef, 4)
	tg.playRound(true)
	tg.playRound(true)
	tg.drain()
	tg.playRound(true)

	s := tg.session()
	require.Equal(t, PhaseRedemption, s.CurrentPhase)
	assert.Equal(t, TeamChefs, s.Winner)
	require.True(t, s.IsImpasta(s.RedemptionImpasta))
	require.NotEmpty(t, s.HeadChef)
	require.NotNil(t, s.PhaseDeadline)
	assert.Equal(t, tg.clock.Now().Add(21*time.Second), *s.PhaseDeadline)

	// no game_over is broadcast while redemption is pending
	evs := tg.drain()
	assert.Nil(t, findEvent(evs, EventGameOver))
	assert.Nil(t, findEvent(evs, EventRedemptionSelected), "redemption notice must be private")
	assert.NotNil(t, findEvent(tg.drainPlayer(s.RedemptionImpasta), EventRedemptionSelected))

	view, err := tg.engine.State(testRoom)
	require.NoError(t, err)
	assert.Empty(t, view.Winner)

	var bystander string
	for _, id := range s.Impastas {
		if id != s.RedemptionImpasta {
			bystander = id
		}
	}
	assert.ErrorIs(t, tg.engine.KillChef(testRoom, bystander, s.HeadChef), ErrNotRedemptionImpasta)
	assert.ErrorIs(t, tg.engine.KillChef(testRoom, s.RedemptionImpasta, bystander), ErrInvalidTarget)
	assert.ErrorIs(t, tg.engine.KillChef(testRoom, s.RedemptionImpasta, "nobody"), ErrInvalidTarget)

	require.NoError(t, tg.engine.KillChef(testRoom, s.RedemptionImpasta, s.HeadChef))
	s = tg.session()
	assert.Equal(t, PhaseGameOver, s.CurrentPhase)
	assert.Equal(t, TeamImpastas, s.Winner)
	assert.True(t, s.Redeemed)

	over := findEvent(tg.drain(), EventGameOver)
	require.NotNil(t, over)
	assert.Equal(t, TeamImpastas, over.Payload["winner"])
	assert.Equal(t, s.HeadChef, over.Payload["headChef"])

	assert.ErrorIs(t, tg.engine.KillChef(testRoom, s.RedemptionImpasta, s.HeadChef), ErrWrongPhase)
}

func TestHeadChefRedemptionMiss(t *testing.T) {
	tg := setupTestGame(t, 7, models.ModeHeadChef, 5)
	tg.playRound(true)
	tg.playRound(true)
	tg.playRound(true)

	s := tg.session()
	require.Equal(t, PhaseRedemption, s.CurrentPhase)
	var target string
	for _, id := range tg.chefs() {
		if id != s.HeadChef {
			target = id
			break
		}
	}
	require.NoError(t, tg.engine.KillChef(testRoom, s.RedemptionImpasta, target))

	s = tg.session()
	assert.Equal(t, PhaseGameOver, s.CurrentPhase)
	assert.Equal(t, TeamChefs, s.Winner)
	assert.False(t, s.Redeemed)
}

func TestRedemptionTimeoutKeepsChefsWin(t *testing.T) {
	tg := setupTestGame(t, 8, models.ModeHeadChef, 6)
	tg.playRound(true)
	tg.playRound(true)
	tg.playRound(true)
	require.Equal(t, PhaseRedemption, tg.session().CurrentPhase)

	tg.clock.Advance(20 * time.Second)
	require.Equal(t, PhaseRedemption, tg.session().CurrentPhase)

	tg.clock.Advance(1 * time.Second)
	s := tg.session()
	assert.Equal(t, PhaseGameOver, s.CurrentPhase)
	assert.Equal(t, TeamChefs, s.Winner)
}

func TestImpastasWinWithoutRedemption(t *testing.T) {
	tg := setupTestGame(t, 6, models.ModeHeadChef, 9)
	tg.playRound(false)
	tg.playRound(false)
	tg.playRound(false)

	s := tg.session()
	assert.Equal(t, PhaseGameOver, s.CurrentPhase)
	assert.Equal(t, TeamImpastas, s.Winner)
	assert.Empty(t, s.RedemptionImpasta)
}

func TestRoundFiveDefaultsToChefs(t *testing.T) {
	tg := setupTestGame(t, 8, models.ModeClassic, 10)
	tg.playRound(true)
	tg.playRound(false)
	tg.playRound(true)
	tg.playRound(false)
	require.Equal(t, 5, tg.session().Round)
	tg.playRound(true)

	s := tg.session()
	assert.Equal(t, PhaseGameOver, s.CurrentPhase)
	assert.Equal(t, TeamChefs, s.Winner)
}

func TestWrongTeamSizeEveryRound(t *testing.T) {
	for _, n := range []int{6, 7, 8} {
		t.Run(fmt.Sprintf("%d players", n), func(t *testing.T) {
			tg := setupTestGame(t, n, models.ModeClassic, int64(n))
			pattern := []bool{true, false, true, false, true}
			for round := 1; round <= NumRounds; round++ {
				s := tg.session()
				require.Equal(t, round, s.Round)
				want := s.Rules.TeamSize(round)
				ids := make([]string, 0, len(s.Players))
				for _, p := range s.Players {
					ids = append(ids, p.ID)
				}
				for _, size := range []int{0, want - 1, want + 1} {
					err := tg.engine.ProposeTeam(testRoom, s.CurrentProponent(), ids[:size])
					assert.ErrorIs(t, err, ErrWrongTeamSize, "round %d size %d", round, size)
				}
				assert.Equal(t, PhaseProposing, tg.session().CurrentPhase)
				tg.playRound(pattern[round-1])
			}
			assert.Equal(t, PhaseGameOver, tg.session().CurrentPhase)
		})
	}
}

func TestProposalValidation(t *testing.T) {
	tg := setupTestGame(t, 6, models.ModeClassic, 11)
	s := tg.session()
	proponent := s.CurrentProponent()
	var other string
	for _, id := range s.ProponentOrder {
		if id != proponent {
			other = id
			break
		}
	}

	assert.ErrorIs(t, tg.engine.ProposeTeam(testRoom, other, []string{"p1", "p2"}), ErrNotYourTurn)
	assert.ErrorIs(t, tg.engine.ProposeTeam(testRoom, proponent, []string{"p1", "p1"}), ErrInvalidTeam)
	assert.ErrorIs(t, tg.engine.ProposeTeam(testRoom, proponent, []string{"p1", "ghost"}), ErrInvalidTeam)
	assert.ErrorIs(t, tg.engine.CastVote(testRoom, "p1", true), ErrWrongPhase)
	assert.ErrorIs(t, tg.engine.SelectIngredient(testRoom, "p1", IngredientHealthy), ErrWrongPhase)
	assert.ErrorIs(t, tg.engine.KillChef(testRoom, "p1", "p2"), ErrWrongPhase)
	assert.ErrorIs(t, tg.engine.ProposeTeam("NOPE00", proponent, []string{"p1", "p2"}), ErrRoomNotFound)

	require.NoError(t, tg.engine.ProposeTeam(testRoom, proponent, []string{"p1", "p2"}))
	assert.ErrorIs(t, tg.engine.ProposeTeam(testRoom, proponent, []string{"p1", "p2"}), ErrWrongPhase)
	assert.ErrorIs(t, tg.engine.SkipProposal(testRoom, proponent), ErrWrongPhase)

	require.NoError(t, tg.engine.CastVote(testRoom, "p1", true))
	assert.ErrorIs(t, tg.engine.CastVote(testRoom, "p1", false), ErrDuplicateVote)
	assert.ErrorIs(t, tg.engine.CastVote(testRoom, "ghost", false), ErrPlayerNotFound)
}

func TestCookingValidation(t *testing.T) {
	tg := setupTestGame(t, 6, models.ModeClassic, 12)
	s := tg.session()
	chefs := tg.chefs()
	team := []string{chefs[0], chefs[1]}
	require.NoError(t, tg.engine.ProposeTeam(testRoom, s.CurrentProponent(), team))
	tg.voteAll(true)
	require.Equal(t, PhaseCooking, tg.session().CurrentPhase)

	assert.ErrorIs(t, tg.engine.SelectIngredient(testRoom, s.Impastas[0], IngredientRotten), ErrNotSelected)
	assert.ErrorIs(t, tg.engine.SelectIngredient(testRoom, chefs[0], IngredientRotten), ErrInvalidChoice)
	assert.ErrorIs(t, tg.engine.SelectIngredient(testRoom, chefs[0], Ingredient("spicy")), ErrInvalidChoice)

	require.NoError(t, tg.engine.SelectIngredient(testRoom, chefs[0], IngredientHealthy))
	assert.ErrorIs(t, tg.engine.SelectIngredient(testRoom, chefs[0], IngredientHealthy), ErrDuplicateSelection)
	assert.Equal(t, PhaseCooking, tg.session().CurrentPhase)
}

func TestVoluntarySkipDoesNotCountAsRejection(t *testing.T) {
	tg := setupTestGame(t, 6, models.ModeClassic, 13)
	s := tg.session()
	first := s.CurrentProponent()
	tg.drain()

	require.NoError(t, tg.engine.SkipProposal(testRoom, first))
	s = tg.session()
	assert.Equal(t, 0, s.RejectionCount)
	assert.Equal(t, 1, s.CurrentProponentIndex)
	assert.Equal(t, PhaseProposing, s.CurrentPhase)

	evs := tg.drain()
	assert.Equal(t, []GameEventType{EventProposalSkipped, EventPhaseChange, EventProposalStarted, EventGameUpdate}, eventTypes(evs))
	assert.Equal(t, first, evs[0].Payload["skippedBy"])
	assert.Equal(t, s.CurrentProponent(), evs[0].Payload["nextProponent"])

	assert.ErrorIs(t, tg.engine.SkipProposal(testRoom, first), ErrNotYourTurn)
}

func TestProposingTimeoutCountsAsRejection(t *testing.T) {
	tg := setupTestGame(t, 6, models.ModeClassic, 14)
	tg.drain()

	tg.clock.Advance(89 * time.Second)
	assert.Equal(t, 0, tg.session().RejectionCount)

	tg.clock.Advance(1 * time.Second)
	s := tg.session()
	assert.Equal(t, 1, s.RejectionCount)
	assert.Equal(t, 1, s.CurrentProponentIndex)
	assert.Equal(t, PhaseProposing, s.CurrentPhase)
	assert.Equal(t, tg.clock.Now().Add(90*time.Second), *s.PhaseDeadline)

	skipped := findEvent(tg.drain(), EventProposalSkipped)
	require.NotNil(t, skipped)
	assert.Equal(t, SkippedByTimeout, skipped.Payload["skippedBy"])
	assert.Equal(t, s.CurrentProponent(), skipped.Payload["nextProponent"])

	for i := 0; i < MaxRejections-1; i++ {
		tg.clock.Advance(90 * time.Second)
	}
	s = tg.session()
	assert.Equal(t, PhaseGameOver, s.CurrentPhase)
	assert.Equal(t, TeamImpastas, s.Winner)
	assert.Equal(t, RoundResult{Success: false, RottenCount: 0}, *s.RoundResults[0])
}

func TestVotingTimeoutCountsMissingAsNo(t *testing.T) {
	tg := setupTestGame(t, 6, models.ModeClassic, 15)
	s := tg.session()
	require.NoError(t, tg.engine.ProposeTeam(testRoom, s.CurrentProponent(), []string{"p1", "p2"}))
	for _, id := range []string{"p1", "p2", "p3"} {
		require.NoError(t, tg.engine.CastVote(testRoom, id, true))
	}
	tg.drain()

	tg.clock.Advance(20 * time.Second)
	s = tg.session()
	assert.Equal(t, PhaseProposing, s.CurrentPhase)
	assert.Equal(t, 1, s.RejectionCount)
	assert.Len(t, s.RoundProposals[0].Votes, 6)

	vc := findEvent(tg.drain(), EventVoteComplete)
	require.NotNil(t, vc)
	assert.Equal(t, false, vc.Payload["passed"])
	assert.Equal(t, 3, vc.Payload["yesCount"])
	assert.Equal(t, 3, vc.Payload["noCount"])
}

func TestVotingTimeoutCanPass(t *testing.T) {
	tg := setupTestGame(t, 6, models.ModeClassic, 16)
	s := tg.session()
	require.NoError(t, tg.engine.ProposeTeam(testRoom, s.CurrentProponent(), []string{"p1", "p2"}))
	for _, id := range []string{"p1", "p2", "p3", "p4"} {
		require.NoError(t, tg.engine.CastVote(testRoom, id, true))
	}
	tg.clock.Advance(20 * time.Second)
	assert.Equal(t, PhaseCooking, tg.session().CurrentPhase)
}

func TestReplacedTimersDoNotFire(t *testing.T) {
	tg := setupTestGame(t, 6, models.ModeClassic, 17)
	s := tg.session()

	tg.clock.Advance(10 * time.Second)
	require.NoError(t, tg.engine.ProposeTeam(testRoom, s.CurrentProponent(), []string{"p1", "p2"}))
	tg.clock.Advance(5 * time.Second)
	tg.voteAll(true)
	require.Equal(t, PhaseCooking, tg.session().CurrentPhase)
	tg.drain()

	// both the old proposing deadline and the voting deadline pass
	tg.clock.Advance(5 * time.Minute)
	s = tg.session()
	assert.Equal(t, PhaseCooking, s.CurrentPhase)
	assert.Equal(t, 0, s.RejectionCount)
	assert.Empty(t, tg.drain())
}

func TestConnectSendsPrivateState(t *testing.T) {
	tg := setupTestGame(t, 6, models.ModeHidden, 18)
	tg.drainPlayer("p2")
	tg.drainPlayer("p3")
	tg.drain()

	require.NoError(t, tg.engine.Connect(testRoom, "p2"))
	evs := tg.drainPlayer("p2")
	assert.Equal(t, []GameEventType{EventGameUpdate, EventRoleReveal, EventPhaseChange}, eventTypes(evs))
	for _, ev := range evs {
		assert.Equal(t, "p2", ev.To)
	}
	assert.Empty(t, tg.drain(), "state sync is not broadcast")
	assert.Empty(t, tg.drainPlayer("p3"))

	assert.ErrorIs(t, tg.engine.Connect(testRoom, "ghost"), ErrPlayerNotFound)
	assert.ErrorIs(t, tg.engine.Connect("NOPE00", "p2"), ErrRoomNotFound)
}

func TestDisconnectGraceRemovesPlayer(t *testing.T) {
	tg := setupTestGame(t, 6, models.ModeClassic, 19)
	for _, p := range tg.session().Players {
		require.NoError(t, tg.engine.Attach(testRoom, p.ID))
	}
	orderBefore := tg.session().ProponentOrder
	tg.drain()

	require.NoError(t, tg.engine.Disconnect(testRoom, "p3"))
	tg.clock.Advance(29 * time.Second)
	s := tg.session()
	assert.True(t, s.HasPlayer("p3"))

	tg.clock.Advance(1 * time.Second)
	s = tg.session()
	assert.False(t, s.HasPlayer("p3"))
	assert.Len(t, s.Players, 5)
	assert.Equal(t, orderBefore, s.ProponentOrder)

	left := findEvent(tg.drain(), EventPlayerLeft)
	require.NotNil(t, left)
	assert.Equal(t, "p3", left.Payload["playerId"])
}

func TestReconnectCancelsRemoval(t *testing.T) {
	tg := setupTestGame(t, 6, models.ModeClassic, 20)
	for _, p := range tg.session().Players {
		require.NoError(t, tg.engine.Attach(testRoom, p.ID))
	}

	require.NoError(t, tg.engine.Disconnect(testRoom, "p4"))
	tg.clock.Advance(10 * time.Second)
	require.NoError(t, tg.engine.Connect(testRoom, "p4"))
	tg.clock.Advance(60 * time.Second)
	s := tg.session()
	assert.True(t, s.HasPlayer("p4"))
}

func TestLastDisconnectDeletesRoom(t *testing.T) {
	tg := setupTestGame(t, 6, models.ModeClassic, 21)
	require.NoError(t, tg.engine.Attach(testRoom, "p1"))
	require.NoError(t, tg.engine.Attach(testRoom, "p2"))

	require.NoError(t, tg.engine.Disconnect(testRoom, "p1"))
	require.NoError(t, tg.engine.Disconnect(testRoom, "p2"))
	tg.clock.Advance(30 * time.Second)

	assert.False(t, tg.engine.HasGame(testRoom))
	tg.mu.Lock()
	assert.Equal(t, []string{testRoom}, tg.closed)
	tg.mu.Unlock()
	assert.Equal(t, 0, tg.clock.pending())
}

func TestRemovedCookCountsAsHealthy(t *testing.T) {
	tg := setupTestGame(t, 6, models.ModeClassic, 22)
	for _, p := range tg.session().Players {
		require.NoError(t, tg.engine.Attach(testRoom, p.ID))
	}
	s := tg.session()
	team := []string{"p1", "p2"}
	require.NoError(t, tg.engine.ProposeTeam(testRoom, s.CurrentProponent(), team))
	tg.voteAll(true)
	require.NoError(t, tg.engine.SelectIngredient(testRoom, "p1", IngredientHealthy))

	require.NoError(t, tg.engine.Disconnect(testRoom, "p2"))
	tg.clock.Advance(30 * time.Second)

	s = tg.session()
	require.NotNil(t, s.RoundResults[0])
	assert.Equal(t, RoundResult{Success: true, RottenCount: 0}, *s.RoundResults[0])
	assert.Equal(t, 2, s.Round)
}

// A ballot from a player removed mid-vote neither completes the quorum nor
// counts in the tally.
func TestRemovedVoterLeavesQuorum(t *testing.T) {
	timings := DefaultTimings()
	timings.Voting = 60 * time.Second
	tg := setupTestGame(t, 6, models.ModeClassic, 25, WithTimings(timings))
	for _, p := range tg.session().Players {
		require.NoError(t, tg.engine.Attach(testRoom, p.ID))
	}
	s := tg.session()
	require.NoError(t, tg.engine.ProposeTeam(testRoom, s.CurrentProponent(), []string{"p1", "p2"}))
	require.NoError(t, tg.engine.CastVote(testRoom, "p3", false))

	require.NoError(t, tg.engine.Disconnect(testRoom, "p3"))
	tg.clock.Advance(30 * time.Second)
	s = tg.session()
	require.False(t, s.HasPlayer("p3"))
	require.Equal(t, PhaseVoting, s.CurrentPhase)
	tg.drain()

	for _, id := range []string{"p1", "p2", "p4", "p5"} {
		require.NoError(t, tg.engine.CastVote(testRoom, id, id != "p5"))
	}
	s = tg.session()
	assert.Equal(t, PhaseVoting, s.CurrentPhase, "p6 has not voted yet")
	assert.Len(t, s.RoundProposals[0].Votes, 5)
	assert.Nil(t, findEvent(tg.drain(), EventVoteComplete))

	require.NoError(t, tg.engine.CastVote(testRoom, "p6", false))
	s = tg.session()
	assert.Equal(t, PhaseCooking, s.CurrentPhase)

	vc := findEvent(tg.drain(), EventVoteComplete)
	require.NotNil(t, vc)
	assert.Equal(t, true, vc.Payload["passed"])
	assert.Equal(t, 3, vc.Payload["yesCount"])
	assert.Equal(t, 2, vc.Payload["noCount"])
}

func TestRemovalCompletesVoteQuorum(t *testing.T) {
	timings := DefaultTimings()
	timings.Voting = 60 * time.Second
	tg := setupTestGame(t, 6, models.ModeClassic, 28, WithTimings(timings))
	for _, p := range tg.session().Players {
		require.NoError(t, tg.engine.Attach(testRoom, p.ID))
	}
	s := tg.session()
	require.NoError(t, tg.engine.ProposeTeam(testRoom, s.CurrentProponent(), []string{"p1", "p3"}))
	for _, id := range []string{"p1", "p2", "p4", "p5", "p6"} {
		require.NoError(t, tg.engine.CastVote(testRoom, id, true))
	}
	require.Equal(t, PhaseVoting, tg.session().CurrentPhase)
	tg.drain()

	require.NoError(t, tg.engine.Disconnect(testRoom, "p3"))
	tg.clock.Advance(30 * time.Second)

	s = tg.session()
	assert.Equal(t, PhaseCooking, s.CurrentPhase)
	assert.Equal(t, []IngredientSelection{{PlayerID: "p3", Ingredient: IngredientHealthy}}, s.IngredientSelections)

	vc := findEvent(tg.drain(), EventVoteComplete)
	require.NotNil(t, vc)
	assert.Equal(t, 5, vc.Payload["yesCount"])
	assert.Equal(t, 0, vc.Payload["noCount"])

	require.NoError(t, tg.engine.SelectIngredient(testRoom, "p1", IngredientHealthy))
	s = tg.session()
	require.NotNil(t, s.RoundResults[0])
	assert.Equal(t, RoundResult{Success: true, RottenCount: 0}, *s.RoundResults[0])
}

func TestCleanupAfterGameOver(t *testing.T) {
	tg := setupTestGame(t, 6, models.ModeClassic, 23)
	tg.playRound(false)
	tg.playRound(false)
	tg.playRound(false)
	require.Equal(t, PhaseGameOver, tg.session().CurrentPhase)

	tg.clock.Advance(1 * time.Second)
	assert.False(t, tg.engine.HasGame(testRoom))
}

func TestCleanupWaitsForConnectedClients(t *testing.T) {
	tg := setupTestGame(t, 6, models.ModeClassic, 24)
	require.NoError(t, tg.engine.Attach(testRoom, "p1"))
	tg.playRound(false)
	tg.playRound(false)
	tg.playRound(false)
	require.Equal(t, PhaseGameOver, tg.session().CurrentPhase)

	// disconnects after the game ends never schedule removal
	require.NoError(t, tg.engine.Attach(testRoom, "p2"))
	require.NoError(t, tg.engine.Disconnect(testRoom, "p2"))

	tg.clock.Advance(1 * time.Second)
	assert.True(t, tg.engine.HasGame(testRoom))

	tg.clock.Advance(30 * time.Second)
	assert.False(t, tg.engine.HasGame(testRoom))
	assert.Equal(t, 0, tg.clock.pending())
}

func TestGameUpdateHidesSecrets(t *testing.T) {
	tg := setupTestGame(t, 7, models.ModeHeadChef, 25)
	tg.playRound(true)
	tg.playRound(true)
	tg.playRound(true)
	require.Equal(t, PhaseRedemption, tg.session().CurrentPhase)

	for _, ev := range tg.drain() {
		if ev.Type != EventGameUpdate {
			continue
		}
		data, err := json.Marshal(ev)
		require.NoError(t, err)
		var decoded struct {
			Game map[string]json.RawMessage `json:"game"`
		}
		require.NoError(t, json.Unmarshal(data, &decoded))
		for _, key := range []string{"impastas", "hiddenImpasta", "headChef", "redemptionImpasta"} {
			assert.NotContains(t, decoded.Game, key)
		}
	}
}

func TestActionLogIsOrdered(t *testing.T) {
	rec := &recordingLog{}
	e := NewEngine(
		WithClock(newFakeClock()),
		WithRand(rand.New(rand.NewSource(26))),
		WithLogger(quietLogger()),
		WithActionLogger(rec),
	)
	s, err := e.StartGame(testLobby(6, models.ModeClassic))
	require.NoError(t, err)
	require.NoError(t, e.SkipProposal(testRoom, s.CurrentProponent()))

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.records, 2)
	assert.Equal(t, ActionGameStart, rec.records[0].ActionType)
	assert.Equal(t, ActionSkipProposal, rec.records[1].ActionType)
	assert.Equal(t, 1, rec.records[0].ActionIndex)
	assert.Equal(t, 2, rec.records[1].ActionIndex)
	assert.Equal(t, s.ID, rec.records[1].GameID)
}

type recordingLog struct {
	mu      sync.Mutex
	records []ActionRecord
}

func (l *recordingLog) LogAction(rec ActionRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, rec)
}

func TestRoleMatchesRoleReveal(t *testing.T) {
	tg := setupTestGame(t, 8, models.ModeHeadChef, 9)
	s := tg.session()

	head, err := tg.engine.Role(testRoom, s.HeadChef)
	require.NoError(t, err)
	assert.True(t, head.IsHeadChef)
	assert.ElementsMatch(t, s.Impastas, head.KnownImpastas)

	imp, err := tg.engine.Role(testRoom, s.Impastas[0])
	require.NoError(t, err)
	assert.Equal(t, RoleImpasta, imp.YourRole)
	assert.NotContains(t, imp.KnownImpastas, s.Impastas[0])

	_, err = tg.engine.Role(testRoom, "stranger")
	assert.ErrorIs(t, err, ErrPlayerNotFound)
	_, err = tg.engine.Role("NOROOM", s.HeadChef)
	assert.ErrorIs(t, err, ErrRoomNotFound)
}
