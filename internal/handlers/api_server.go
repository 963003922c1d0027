// internal/handlers/api_server.go
package handlers

import (
	"net/http"
	"time"

	"github.com/jason-s-yu/impasta/internal/game"
	"github.com/jason-s-yu/impasta/internal/lobby"
	"github.com/jason-s-yu/impasta/internal/middleware"
	"github.com/sirupsen/logrus"
)

// Options tune the transport.
type Options struct {
	AllowedOrigins    []string
	KeepaliveInterval time.Duration
}

// Server holds the collaborators every room endpoint needs.
type Server struct {
	engine  *game.Engine
	lobbies *lobby.Store
	hub     *game.Hub
	logger  *logrus.Logger
	opts    Options
}

// NewServer builds the HTTP and WebSocket front end for engine and lobbies.
func NewServer(engine *game.Engine, lobbies *lobby.Store, logger *logrus.Logger, opts Options) *Server {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	if opts.KeepaliveInterval <= 0 {
		opts.KeepaliveInterval = 30 * time.Second
	}
	return &Server{
		engine:  engine,
		lobbies: lobbies,
		hub:     engine.Hub(),
		logger:  logger,
		opts:    opts,
	}
}

// Routes registers every endpoint behind the request logger.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	logged := middleware.LogMiddleware(s.logger)

	mux.Handle("/room/create", logged(http.HandlerFunc(s.CreateRoomHandler)))
	mux.Handle("/room/join", logged(http.HandlerFunc(s.JoinRoomHandler)))
	mux.Handle("/room/list", logged(http.HandlerFunc(s.ListRoomsHandler)))
	mux.Handle("/room/ws/", logged(http.HandlerFunc(s.RoomWSHandler)))
	mux.HandleFunc("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}
