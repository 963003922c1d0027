// internal/lobby/lobby_store.go
package lobby

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jason-s-yu/impasta/internal/game"
	"github.com/jason-s-yu/impasta/internal/models"
	"github.com/sirupsen/logrus"
)

var (
	ErrLobbyNotFound    = errors.New("room not found")
	ErrLobbyFull        = errors.New("room is full")
	ErrForbidden        = errors.New("only the host can start the game")
	ErrNotEnoughPlayers = errors.New("not enough players")
	ErrAlreadyStarted   = errors.New("game already started")
	ErrInvalidName      = errors.New("invalid player name")
	ErrInvalidMode      = errors.New("invalid gamemode")
)

const (
	// RoomCodeLength is the number of characters in a room code.
	RoomCodeLength = 6
	// MaxNameLength bounds player display names, in characters.
	MaxNameLength = 10

	// no 0/O or 1/I so codes survive being read aloud
	roomCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

// Store keeps pre-game rooms in memory. It satisfies game.LobbyService.
type Store struct {
	mu      sync.Mutex
	lobbies map[string]*models.Lobby
	logger  *logrus.Logger
}

// NewStore returns an empty lobby store.
func NewStore(logger *logrus.Logger) *Store {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Store{
		lobbies: make(map[string]*models.Lobby),
		logger:  logger,
	}
}

var _ game.LobbyService = (*Store)(nil)

// Create opens a new room with hostName as its only member.
func (s *Store) Create(hostName string, mode models.GameMode) (models.Lobby, models.Player, error) {
	name, err := cleanName(hostName)
	if err != nil {
		return models.Lobby{}, models.Player{}, err
	}
	if mode == "" {
		mode = models.ModeClassic
	}
	if !mode.Valid() {
		return models.Lobby{}, models.Player{}, fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	code, err := s.uniqueCode()
	if err != nil {
		return models.Lobby{}, models.Player{}, err
	}
	host := models.Player{ID: newPlayerID(), Name: name, IsHost: true}
	l := &models.Lobby{
		RoomID:  code,
		HostID:  host.ID,
		Players: []models.Player{host},
		Mode:    mode,
		Status:  models.RoomWaiting,
	}
	s.lobbies[code] = l

	s.logger.WithFields(logrus.Fields{"room": code, "player": host.ID, "mode": mode}).Info("room created")
	return copyLobby(l), host, nil
}

// Join adds a named player to a waiting room.
func (s *Store) Join(roomID, playerName string) (models.Lobby, models.Player, error) {
	name, err := cleanName(playerName)
	if err != nil {
		return models.Lobby{}, models.Player{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.lobbies[normalizeCode(roomID)]
	if !ok {
		return models.Lobby{}, models.Player{}, ErrLobbyNotFound
	}
	if l.Status != models.RoomWaiting {
		return models.Lobby{}, models.Player{}, ErrAlreadyStarted
	}
	if len(l.Players) >= game.MaxPlayers {
		return models.Lobby{}, models.Player{}, ErrLobbyFull
	}

	p := models.Player{ID: newPlayerID(), Name: name}
	l.Players = append(l.Players, p)
	s.logger.WithFields(logrus.Fields{"room": l.RoomID, "player": p.ID}).Info("player joined room")
	return copyLobby(l), p, nil
}

// Leave removes a player from a waiting room. The host role passes to the
// next player; an empty room is deleted. The second return is false when the
// room no longer exists.
func (s *Store) Leave(roomID, playerID string) (models.Lobby, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.lobbies[normalizeCode(roomID)]
	if !ok {
		return models.Lobby{}, false
	}
	idx := -1
	for i, p := range l.Players {
		if p.ID == playerID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return copyLobby(l), true
	}
	l.Players = append(l.Players[:idx:idx], l.Players[idx+1:]...)

	if len(l.Players) == 0 {
		delete(s.lobbies, l.RoomID)
		s.logger.WithField("room", l.RoomID).Info("room emptied and deleted")
		return models.Lobby{}, false
	}
	if l.HostID == playerID {
		l.Players[0].IsHost = true
		l.HostID = l.Players[0].ID
	}
	return copyLobby(l), true
}

// GetLobby returns a copy of the room.
func (s *Store) GetLobby(roomID string) (models.Lobby, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lobbies[normalizeCode(roomID)]
	if !ok {
		return models.Lobby{}, ErrLobbyNotFound
	}
	return copyLobby(l), nil
}

// ValidateStart checks that playerID may start the game in l.
func (s *Store) ValidateStart(l models.Lobby, playerID string) error {
	if l.HostID != playerID {
		return ErrForbidden
	}
	if l.Status != models.RoomWaiting {
		return ErrAlreadyStarted
	}
	if len(l.Players) < game.MinPlayers {
		return fmt.Errorf("%w: need at least %d, have %d", ErrNotEnoughPlayers, game.MinPlayers, len(l.Players))
	}
	return nil
}

// SetStatus updates the room lifecycle status.
func (s *Store) SetStatus(roomID string, status models.RoomStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lobbies[normalizeCode(roomID)]
	if !ok {
		return ErrLobbyNotFound
	}
	l.Status = status
	return nil
}

// Delete drops a room, typically once its game has been cleaned up.
func (s *Store) Delete(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lobbies[roomID]; ok {
		delete(s.lobbies, roomID)
		s.logger.WithField("room", roomID).Info("room deleted")
	}
}

// List returns every room, sorted by code.
func (s *Store) List() []models.Lobby {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Lobby, 0, len(s.lobbies))
	for _, l := range s.lobbies {
		out = append(out, copyLobby(l))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoomID < out[j].RoomID })
	return out
}

func (s *Store) uniqueCode() (string, error) {
	for attempt := 0; attempt < 10; attempt++ {
		code, err := randomCode()
		if err != nil {
			return "", err
		}
		if _, taken := s.lobbies[code]; !taken {
			return code, nil
		}
	}
	return "", errors.New("could not allocate a room code")
}

func randomCode() (string, error) {
	var b strings.Builder
	size := big.NewInt(int64(len(roomCodeAlphabet)))
	for i := 0; i < RoomCodeLength; i++ {
		n, err := rand.Int(rand.Reader, size)
		if err != nil {
			return "", fmt.Errorf("room code: %w", err)
		}
		b.WriteByte(roomCodeAlphabet[n.Int64()])
	}
	return b.String(), nil
}

func newPlayerID() string {
	return "player-" + uuid.NewString()
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func cleanName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if n := utf8.RuneCountInString(name); n < 1 || n > MaxNameLength {
		return "", fmt.Errorf("%w: must be 1-%d characters", ErrInvalidName, MaxNameLength)
	}
	return name, nil
}

func copyLobby(l *models.Lobby) models.Lobby {
	c := *l
	c.Players = append([]models.Player(nil), l.Players...)
	return c
}
