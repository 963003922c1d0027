// internal/game/game_store.go
package game

import (
	"fmt"
	"sync"
)

// pendingTimer tags a timer with the sequence number its callback checks.
type pendingTimer struct {
	Timer
	seq uint64
}

// room is a registry entry: one session plus every timer scheduled for it.
// All fields are guarded by mu.
type room struct {
	mu      sync.Mutex
	session *GameSession
	closed  bool

	phaseTimer Timer
	timerSeq   uint64

	cleanupTimer Timer
	cleanupGrace bool

	disconnectTimers map[string]pendingTimer
	graceSeq         uint64
	connections      map[string]int

	actionIndex int
}

func newRoom(s *GameSession) *room {
	return &room{
		session:          s,
		disconnectTimers: make(map[string]pendingTimer),
		connections:      make(map[string]int),
	}
}

func (r *room) connectionCount() int {
	n := 0
	for _, c := range r.connections {
		n += c
	}
	return n
}

func (r *room) stopPhaseTimer() {
	r.timerSeq++
	if r.phaseTimer != nil {
		r.phaseTimer.Stop()
		r.phaseTimer = nil
	}
}

func (r *room) stopCleanup() {
	if r.cleanupTimer != nil {
		r.cleanupTimer.Stop()
		r.cleanupTimer = nil
	}
}

func (r *room) stopDisconnect(playerID string) {
	if t, ok := r.disconnectTimers[playerID]; ok {
		t.Stop()
		delete(r.disconnectTimers, playerID)
	}
}

// stopAll cancels every outstanding timer. Caller holds mu.
func (r *room) stopAll() {
	r.stopPhaseTimer()
	r.stopCleanup()
	for id := range r.disconnectTimers {
		r.stopDisconnect(id)
	}
}

// Registry owns the live game sessions, keyed by room code.
type Registry struct {
	mu    sync.Mutex
	rooms map[string]*room
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[string]*room),
	}
}

func (reg *Registry) add(r *room) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	id := r.session.RoomID
	if _, exists := reg.rooms[id]; exists {
		return fmt.Errorf("%w: %s", ErrGameInProgress, id)
	}
	reg.rooms[id] = r
	return nil
}

func (reg *Registry) get(roomID string) (*room, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	r, ok := reg.rooms[roomID]
	return r, ok
}

// remove drops the entry only if it still maps to r.
func (reg *Registry) remove(roomID string, r *room) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if cur, ok := reg.rooms[roomID]; ok && cur == r {
		delete(reg.rooms, roomID)
	}
}

// Has reports whether a game is live for roomID.
func (reg *Registry) Has(roomID string) bool {
	_, ok := reg.get(roomID)
	return ok
}

// Len returns the number of live games.
func (reg *Registry) Len() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return len(reg.rooms)
}
