// internal/handlers/room_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/jason-s-yu/impasta/internal/auth"
	"github.com/jason-s-yu/impasta/internal/game"
	"github.com/jason-s-yu/impasta/internal/middleware"
	"github.com/jason-s-yu/impasta/internal/models"
	"github.com/sirupsen/logrus"
)

const writeTimeout = 5 * time.Second

// roomConn is one player's socket. Only its writer goroutine writes to ws.
type roomConn struct {
	ws       *websocket.Conn
	roomID   string
	playerID string
	direct   chan game.GameEvent
	logger   *logrus.Entry

	mu       sync.Mutex
	attached bool
}

// claimAttach marks the connection as counted by the engine. Only the first
// caller gets true.
func (c *roomConn) claimAttach() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.attached {
		return false
	}
	c.attached = true
	return true
}

func (c *roomConn) isAttached() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attached
}

// reply queues ev for this connection only. A full queue drops it.
func (c *roomConn) reply(ev game.GameEvent) {
	select {
	case c.direct <- ev:
	default:
		c.logger.WithField("event", ev.Type).Warn("direct queue full, dropping event")
	}
}

// RoomWSHandler serves /room/ws/{roomId}?token=... for both the lobby and
// the running game of a room.
func (s *Server) RoomWSHandler(w http.ResponseWriter, r *http.Request) {
	roomID := roomIDFromPath(r.URL.Path)
	if roomID == "" {
		http.Error(w, "missing room id", http.StatusBadRequest)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.opts.AllowedOrigins,
	})
	if err != nil {
		s.logger.Warnf("websocket accept error: %v", err)
		return
	}
	defer ws.Close(websocket.StatusInternalError, "handler finished")

	tokenRoom, playerID, err := auth.AuthenticateJWT(tokenFromRequest(r))
	if err != nil || tokenRoom != roomID {
		ws.Close(InvalidAuthTokenError, "invalid seat token for this room")
		return
	}

	inGame := s.engine.HasPlayer(roomID, playerID)
	if !inGame {
		l, err := s.lobbies.GetLobby(roomID)
		if err != nil {
			ws.Close(InvalidRoomIDError, "room does not exist")
			return
		}
		if _, ok := l.Player(playerID); !ok || s.engine.HasGame(roomID) {
			ws.Close(PlayerNotInRoomError, "player is not in this room")
			return
		}
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn := &roomConn{
		ws:       ws,
		roomID:   roomID,
		playerID: playerID,
		direct:   make(chan game.GameEvent, 16),
		logger:   s.logger.WithFields(logrus.Fields{"room": roomID, "player": playerID}),
	}
	events, unsubscribe := s.hub.Subscribe(roomID, playerID, game.DefaultSubscriberBuffer)
	middleware.LogWebSocketConnect(s.logger, r.RemoteAddr, roomID, playerID)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer cancel()
		s.writePump(ctx, conn, events)
	}()

	if s.engine.HasGame(roomID) {
		if conn.claimAttach() {
			if err := s.engine.Connect(roomID, playerID); err != nil {
				conn.logger.WithError(err).Warn("could not attach to game")
			}
		}
	} else if l, err := s.lobbies.GetLobby(roomID); err == nil {
		conn.reply(game.LobbyUpdateEvent(l))
	}

	readErr := s.readPump(ctx, conn)

	cancel()
	unsubscribe()
	wg.Wait()
	s.release(conn)
	middleware.LogWebSocketDisconnect(s.logger, r.RemoteAddr, roomID, playerID, readErr)
}

// release tells the engine or the lobby that this connection is gone.
func (s *Server) release(c *roomConn) {
	if c.isAttached() || s.engine.HasPlayer(c.roomID, c.playerID) {
		if err := s.engine.Disconnect(c.roomID, c.playerID); err != nil && !errors.Is(err, game.ErrRoomNotFound) {
			c.logger.WithError(err).Warn("disconnect failed")
		}
		return
	}
	l, ok := s.lobbies.Leave(c.roomID, c.playerID)
	s.hub.Publish(c.roomID, game.PlayerLeftEvent(c.playerID))
	if ok {
		s.hub.Publish(c.roomID, game.LobbyUpdateEvent(l))
	}
}

// readPump handles inbound messages until the socket closes. Rejected
// actions are answered only on this connection.
func (s *Server) readPump(ctx context.Context, c *roomConn) error {
	for {
		typ, msg, err := c.ws.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || ctx.Err() != nil {
				return nil
			}
			return err
		}
		if typ != websocket.MessageText {
			c.logger.Warnf("ignoring non-text message type %d", typ)
			continue
		}

		var act models.GameAction
		if err := json.Unmarshal(msg, &act); err != nil {
			c.reply(errorEvent(errBadMessage))
			continue
		}
		if err := s.dispatch(c.roomID, c.playerID, act, c.reply); err != nil {
			c.logger.WithError(err).WithField("action", act.Type).Debug("action rejected")
			c.reply(errorEvent(err))
		}
	}
}

// writePump serializes room events, direct replies and keepalives onto the socket.
func (s *Server) writePump(ctx context.Context, c *roomConn, events <-chan game.GameEvent) {
	ticker := time.NewTicker(s.opts.KeepaliveInterval)
	defer ticker.Stop()

	for {
		var ev game.GameEvent
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			ev = e
			if ev.Type == game.EventGameStarting && c.claimAttach() {
				if err := s.engine.Attach(c.roomID, c.playerID); err != nil {
					c.logger.WithError(err).Warn("could not attach to started game")
				}
			}
		case ev = <-c.direct:
		case t := <-ticker.C:
			ev = game.NewEvent(game.EventKeepalive, map[string]interface{}{"ts": t.UnixMilli()})
		}

		data, err := json.Marshal(ev)
		if err != nil {
			c.logger.WithError(err).Warn("failed to marshal outgoing event")
			continue
		}
		writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
		err = c.ws.Write(writeCtx, websocket.MessageText, data)
		cancel()
		if err != nil {
			c.logger.WithError(err).Debug("write failed, closing connection")
			return
		}
	}
}
