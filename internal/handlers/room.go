// internal/handlers/room.go
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/jason-s-yu/impasta/internal/auth"
	"github.com/jason-s-yu/impasta/internal/game"
	"github.com/jason-s-yu/impasta/internal/lobby"
	"github.com/jason-s-yu/impasta/internal/models"
)

type createRoomRequest struct {
	HostName string          `json:"hostName"`
	Mode     models.GameMode `json:"gamemode"`
}

type joinRoomRequest struct {
	RoomID string `json:"roomId"`
	Name   string `json:"name"`
}

// roomResponse hands the caller their seat: the room, their player id and
// the token the WebSocket upgrade requires.
type roomResponse struct {
	RoomID   string       `json:"roomId"`
	PlayerID string       `json:"playerId"`
	Token    string       `json:"token"`
	Lobby    models.Lobby `json:"lobby"`
}

// CreateRoomHandler opens a new room with the caller as host.
func (s *Server) CreateRoomHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req createRoomRequest
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, "bad room request payload", http.StatusBadRequest)
		return
	}

	l, host, err := s.lobbies.Create(req.HostName, req.Mode)
	if err != nil {
		http.Error(w, err.Error(), lobbyStatus(err))
		return
	}
	s.writeSeat(w, l, host)
}

// JoinRoomHandler seats a new player in a waiting room.
func (s *Server) JoinRoomHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req joinRoomRequest
	if err := decodeBody(r, &req); err != nil || req.RoomID == "" {
		http.Error(w, "bad join request payload", http.StatusBadRequest)
		return
	}

	l, p, err := s.lobbies.Join(req.RoomID, req.Name)
	if err != nil {
		http.Error(w, err.Error(), lobbyStatus(err))
		return
	}
	s.hub.Publish(l.RoomID, game.PlayerJoinedEvent(p))
	s.hub.Publish(l.RoomID, game.LobbyUpdateEvent(l))
	s.writeSeat(w, l, p)
}

// ListRoomsHandler lists every room that still accepts players.
func (s *Server) ListRoomsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	open := make([]models.Lobby, 0)
	for _, l := range s.lobbies.List() {
		if l.Status == models.RoomWaiting && len(l.Players) < game.MaxPlayers {
			open = append(open, l)
		}
	}
	writeJSON(w, http.StatusOK, open)
}

func (s *Server) writeSeat(w http.ResponseWriter, l models.Lobby, p models.Player) {
	token, err := auth.CreateJWT(l.RoomID, p.ID)
	if err != nil {
		s.logger.WithError(err).Error("failed to sign seat token")
		http.Error(w, "could not issue token", http.StatusInternalServerError)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     authCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, roomResponse{
		RoomID:   l.RoomID,
		PlayerID: p.ID,
		Token:    token,
		Lobby:    l,
	})
}

func decodeBody(r *http.Request, v interface{}) error {
	err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(v)
	if errors.Is(err, io.EOF) {
		return errors.New("empty body")
	}
	return err
}

func lobbyStatus(err error) int {
	switch {
	case errors.Is(err, lobby.ErrLobbyNotFound):
		return http.StatusNotFound
	case errors.Is(err, lobby.ErrLobbyFull), errors.Is(err, lobby.ErrAlreadyStarted):
		return http.StatusConflict
	case errors.Is(err, lobby.ErrInvalidName), errors.Is(err, lobby.ErrInvalidMode):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
