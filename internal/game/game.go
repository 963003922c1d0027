// internal/game/game.go
package game

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/impasta/internal/models"
	"github.com/sirupsen/logrus"
)

// Timings holds every phase window and grace period the engine schedules.
type Timings struct {
	Proposing       time.Duration
	Voting          time.Duration
	Redemption      time.Duration
	DisconnectGrace time.Duration
	CleanupDelay    time.Duration
	CleanupGrace    time.Duration
}

// DefaultTimings returns the standard game timings.
func DefaultTimings() Timings {
	return Timings{
		Proposing:       90 * time.Second,
		Voting:          20 * time.Second,
		Redemption:      21 * time.Second,
		DisconnectGrace: 30 * time.Second,
		CleanupDelay:    1 * time.Second,
		CleanupGrace:    30 * time.Second,
	}
}

// LobbyService is the pre-game collaborator the engine reads from when a host starts a game.
type LobbyService interface {
	GetLobby(roomID string) (models.Lobby, error)
	ValidateStart(lobby models.Lobby, playerID string) error
}

// OnGameEndFunc receives the result of a finished game. It is called with the
// room lock held and must not call back into the engine.
type OnGameEndFunc func(result GameResult)

// Engine runs every live game. Each room is serialized by its own lock;
// player actions, timer callbacks and connection events all go through it.
type Engine struct {
	registry *Registry
	hub      *Hub
	clock    Clock
	timings  Timings
	logger   *logrus.Logger
	actions  ActionLogger

	onGameEnd    OnGameEndFunc
	onRoomClosed func(roomID string)

	rngMu sync.Mutex
	rng   *rand.Rand
}

// Option configures an Engine.
type Option func(*Engine)

func WithClock(c Clock) Option { return func(e *Engine) { e.clock = c } }

func WithRand(r *rand.Rand) Option { return func(e *Engine) { e.rng = r } }

func WithTimings(t Timings) Option { return func(e *Engine) { e.timings = t } }

func WithLogger(l *logrus.Logger) Option { return func(e *Engine) { e.logger = l } }

func WithHub(h *Hub) Option { return func(e *Engine) { e.hub = h } }

func WithActionLogger(a ActionLogger) Option { return func(e *Engine) { e.actions = a } }

func WithGameEndHook(f OnGameEndFunc) Option { return func(e *Engine) { e.onGameEnd = f } }

// WithRoomClosedHook registers f to run after a room's game is deleted.
func WithRoomClosedHook(f func(roomID string)) Option {
	return func(e *Engine) { e.onRoomClosed = f }
}

// NewEngine builds an engine. Unset options fall back to the real clock, a
// time-seeded RNG, default timings and the standard logrus logger.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		registry: NewRegistry(),
		timings:  DefaultTimings(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = logrus.StandardLogger()
	}
	if e.clock == nil {
		e.clock = RealClock()
	}
	if e.rng == nil {
		e.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if e.hub == nil {
		e.hub = NewHub(e.logger)
	}
	return e
}

// Hub returns the event hub connections subscribe to.
func (e *Engine) Hub() *Hub { return e.hub }

// Registry returns the live game registry.
func (e *Engine) Registry() *Registry { return e.registry }

// HasGame reports whether roomID has a live game.
func (e *Engine) HasGame(roomID string) bool { return e.registry.Has(roomID) }

// Start loads the lobby, checks that playerID may start it and starts the game.
func (e *Engine) Start(lobbies LobbyService, roomID, playerID string) (GameSession, error) {
	lobby, err := lobbies.GetLobby(roomID)
	if err != nil {
		return GameSession{}, err
	}
	if err := lobbies.ValidateStart(lobby, playerID); err != nil {
		return GameSession{}, err
	}
	return e.StartGame(lobby)
}

// StartGame creates the session for a lobby, deals roles and opens the first
// proposing window.
func (e *Engine) StartGame(lobby models.Lobby) (GameSession, error) {
	rules, err := ResolveRules(len(lobby.Players), lobby.Mode)
	if err != nil {
		return GameSession{}, err
	}

	ids := make([]string, len(lobby.Players))
	for i, p := range lobby.Players {
		ids[i] = p.ID
	}

	e.rngMu.Lock()
	roles := AssignRoles(e.rng, ids, rules)
	order := shuffled(e.rng, ids)
	e.rngMu.Unlock()

	s := &GameSession{
		ID:             uuid.New(),
		RoomID:         lobby.RoomID,
		HostID:         lobby.HostID,
		Mode:           lobby.Mode,
		Rules:          rules,
		Players:        append([]models.Player(nil), lobby.Players...),
		Impastas:       roles.Impastas,
		HiddenImpasta:  roles.HiddenImpasta,
		HeadChef:       roles.HeadChef,
		Round:          1,
		ProponentOrder: order,
		StartedAt:      e.clock.Now(),
	}

	r := newRoom(s)
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := e.registry.add(r); err != nil {
		return GameSession{}, err
	}

	e.roomLogger(s).WithFields(logrus.Fields{
		"players": len(s.Players),
		"mode":    s.Mode,
	}).Info("game started")
	e.logAction(r, s.HostID, ActionGameStart, map[string]interface{}{
		"players":        ids,
		"gamemode":       s.Mode,
		"impastas":       s.Impastas,
		"hiddenImpasta":  s.HiddenImpasta,
		"headChef":       s.HeadChef,
		"proponentOrder": order,
	})

	e.emit(r, NewEvent(EventGameStarting, map[string]interface{}{"roomId": s.RoomID}))
	e.emit(r, gameUpdateEvent(s))
	for _, id := range ids {
		e.emit(r, roleRevealEvent(s, id))
	}
	e.enterProposing(r)

	return s.Clone(), nil
}

// Connect registers a live connection for playerID and sends them the
// current state and their role. A pending disconnect removal is cancelled.
func (e *Engine) Connect(roomID, playerID string) error {
	return e.connect(roomID, playerID, true)
}

// Attach registers a connection that already received the game start
// broadcast, so nothing is resent.
func (e *Engine) Attach(roomID, playerID string) error {
	return e.connect(roomID, playerID, false)
}

func (e *Engine) connect(roomID, playerID string, send bool) error {
	return e.withRoom(roomID, func(r *room) error {
		if !r.session.HasPlayer(playerID) {
			return ErrPlayerNotFound
		}
		r.connections[playerID]++
		r.stopDisconnect(playerID)
		if send {
			e.sendState(r, playerID)
		}
		return nil
	})
}

// Sync resends the current state and role to playerID.
func (e *Engine) Sync(roomID, playerID string) error {
	return e.withRoom(roomID, func(r *room) error {
		if !r.session.HasPlayer(playerID) {
			return ErrPlayerNotFound
		}
		e.sendState(r, playerID)
		return nil
	})
}

func (e *Engine) sendState(r *room, playerID string) {
	s := r.session
	e.emit(r, gameUpdateEvent(s).ToPlayer(playerID))
	e.emit(r, roleRevealEvent(s, playerID))
	e.emit(r, phaseChangeEvent(s).ToPlayer(playerID))
	if s.CurrentPhase == PhaseRedemption && playerID == s.RedemptionImpasta {
		e.emit(r, redemptionSelectedEvent(s))
	}
}

// Disconnect drops one connection for playerID. When the player has no
// connection left, they are removed after the disconnect grace period unless
// they come back first.
func (e *Engine) Disconnect(roomID, playerID string) error {
	return e.withRoom(roomID, func(r *room) error {
		if r.connections[playerID] > 0 {
			r.connections[playerID]--
		}
		if r.connections[playerID] > 0 {
			return nil
		}
		delete(r.connections, playerID)
		if r.session.CurrentPhase == PhaseGameOver {
			return nil
		}

		r.stopDisconnect(playerID)
		r.graceSeq++
		seq := r.graceSeq
		t := e.clock.AfterFunc(e.timings.DisconnectGrace, func() {
			e.onDisconnectGrace(r, playerID, seq)
		})
		r.disconnectTimers[playerID] = pendingTimer{Timer: t, seq: seq}
		return nil
	})
}

func (e *Engine) onDisconnectGrace(r *room, playerID string, seq uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	p, ok := r.disconnectTimers[playerID]
	if !ok || p.seq != seq {
		return
	}
	delete(r.disconnectTimers, playerID)
	if r.connections[playerID] > 0 {
		return
	}

	if r.connectionCount() == 0 {
		e.closeRoom(r, "all players disconnected")
		return
	}
	e.removePlayer(r, playerID)
}

// removePlayer drops playerID from the seated players. The proponent order is
// left alone so the round bookkeeping does not shift.
func (e *Engine) removePlayer(r *room, playerID string) {
	s := r.session
	idx := s.playerIndex(playerID)
	if idx < 0 {
		return
	}
	players := make([]models.Player, 0, len(s.Players)-1)
	players = append(players, s.Players[:idx]...)
	s.Players = append(players, s.Players[idx+1:]...)

	e.roomLogger(s).WithField("player", playerID).Info("player removed after disconnect grace")
	e.logAction(r, playerID, ActionPlayerRemoved, nil)
	e.emit(r, PlayerLeftEvent(playerID))

	// the departed player may have been the last ballot outstanding
	if s.CurrentPhase == PhaseVoting {
		if p := s.CurrentProposal(); p != nil && s.voteQuorum(p) {
			e.finalizeVote(r)
		}
	}

	// a departed cook cannot block the round; their share counts as healthy
	if s.CurrentPhase == PhaseCooking {
		if p := s.CurrentProposal(); p != nil && p.includes(playerID) && !s.hasSelected(playerID) {
			s.IngredientSelections = append(s.IngredientSelections, IngredientSelection{
				PlayerID:   playerID,
				Ingredient: IngredientHealthy,
			})
			if len(s.IngredientSelections) >= len(p.ProposedTeam) {
				e.finalizeCooking(r)
			}
		}
	}
	e.emit(r, gameUpdateEvent(s))
}

// Snapshot returns a copy of the full session, secrets included.
func (e *Engine) Snapshot(roomID string) (GameSession, error) {
	var out GameSession
	err := e.withRoom(roomID, func(r *room) error {
		out = r.session.Clone()
		return nil
	})
	return out, err
}

// State returns the client-safe view of a room's game.
func (e *Engine) State(roomID string) (ClientState, error) {
	var out ClientState
	err := e.withRoom(roomID, func(r *room) error {
		out = ClientView(r.session)
		return nil
	})
	return out, err
}

// Role returns what playerID is allowed to know about roles in roomID.
func (e *Engine) Role(roomID, playerID string) (RoleReveal, error) {
	var out RoleReveal
	err := e.withRoom(roomID, func(r *room) error {
		if !r.session.HasPlayer(playerID) {
			return ErrPlayerNotFound
		}
		out = RevealFor(r.session, playerID)
		return nil
	})
	return out, err
}

// HasPlayer reports whether playerID is seated in roomID's live game.
func (e *Engine) HasPlayer(roomID, playerID string) bool {
	found := false
	_ = e.withRoom(roomID, func(r *room) error {
		found = r.session.HasPlayer(playerID)
		return nil
	})
	return found
}

// withRoom runs fn under the room lock.
func (e *Engine) withRoom(roomID string, fn func(r *room) error) error {
	r, ok := e.registry.get(roomID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrRoomNotFound, roomID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return fmt.Errorf("%w: %s", ErrRoomNotFound, roomID)
	}
	return fn(r)
}

func (e *Engine) emit(r *room, ev GameEvent) {
	e.hub.Publish(r.session.RoomID, ev)
}

func (e *Engine) logAction(r *room, actor, actionType string, payload map[string]interface{}) {
	r.actionIndex++
	if e.actions == nil {
		return
	}
	e.actions.LogAction(ActionRecord{
		GameID:        r.session.ID,
		RoomID:        r.session.RoomID,
		ActionIndex:   r.actionIndex,
		ActorID:       actor,
		ActionType:    actionType,
		ActionPayload: payload,
		Timestamp:     e.clock.Now().UnixMilli(),
	})
}

func (e *Engine) roomLogger(s *GameSession) *logrus.Entry {
	return e.logger.WithFields(logrus.Fields{
		"room": s.RoomID,
		"game": s.ID,
	})
}

// scheduleCleanup deletes a finished game after a short delay. If anyone is
// still connected when it fires, they get one more grace period.
func (e *Engine) scheduleCleanup(r *room) {
	r.stopCleanup()
	r.cleanupGrace = false
	r.cleanupTimer = e.clock.AfterFunc(e.timings.CleanupDelay, func() { e.onCleanup(r) })
}

func (e *Engine) onCleanup(r *room) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	if !r.cleanupGrace && r.connectionCount() > 0 {
		r.cleanupGrace = true
		r.cleanupTimer = e.clock.AfterFunc(e.timings.CleanupGrace, func() { e.onCleanup(r) })
		return
	}
	r.cleanupTimer = nil
	e.closeRoom(r, "game finished")
}

// closeRoom stops every timer and deletes the room. Caller holds r.mu.
func (e *Engine) closeRoom(r *room, reason string) {
	r.closed = true
	r.stopAll()
	e.registry.remove(r.session.RoomID, r)
	e.roomLogger(r.session).WithField("reason", reason).Info("game room deleted")
	if e.onRoomClosed != nil {
		e.onRoomClosed(r.session.RoomID)
	}
}
