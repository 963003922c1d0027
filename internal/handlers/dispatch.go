// internal/handlers/dispatch.go
package handlers

import (
	"errors"
	"fmt"
	"time"

	"github.com/jason-s-yu/impasta/internal/game"
	"github.com/jason-s-yu/impasta/internal/lobby"
	"github.com/jason-s-yu/impasta/internal/models"
	"github.com/sirupsen/logrus"
)

var (
	errUnknownAction = errors.New("unknown action type")
	errMissingField  = errors.New("missing field")
	errBadMessage    = errors.New("malformed message")
)

// dispatch applies one inbound action for the connection's player. reply
// delivers a message to this connection only.
func (s *Server) dispatch(roomID, playerID string, act models.GameAction, reply func(game.GameEvent)) error {
	switch act.Type {
	case "propose_chefs":
		return s.engine.ProposeTeam(roomID, playerID, act.ProposedChefs)
	case "skip_proposal":
		return s.engine.SkipProposal(roomID, playerID)
	case "vote":
		if act.InFavor == nil {
			return fmt.Errorf("%w: inFavor", errMissingField)
		}
		return s.engine.CastVote(roomID, playerID, *act.InFavor)
	case "select_ingredient":
		return s.engine.SelectIngredient(roomID, playerID, game.Ingredient(act.Ingredient))
	case "kill_chef":
		if act.TargetChefID == "" {
			return fmt.Errorf("%w: targetChefId", errMissingField)
		}
		return s.engine.KillChef(roomID, playerID, act.TargetChefID)
	case "start_game":
		return s.startGame(roomID, playerID)
	case "sync_game":
		if s.engine.HasGame(roomID) {
			return s.engine.Sync(roomID, playerID)
		}
		l, err := s.lobbies.GetLobby(roomID)
		if err != nil {
			return err
		}
		reply(game.LobbyUpdateEvent(l))
		return nil
	case "ping":
		reply(game.NewEvent(game.EventPong, map[string]interface{}{"ts": time.Now().UnixMilli()}))
		return nil
	case "keepalive_ack":
		return nil
	default:
		return fmt.Errorf("%w: %q", errUnknownAction, act.Type)
	}
}

func (s *Server) startGame(roomID, playerID string) error {
	sess, err := s.engine.Start(s.lobbies, roomID, playerID)
	if err != nil {
		return err
	}
	if err := s.lobbies.SetStatus(roomID, models.RoomPlaying); err != nil {
		s.logger.WithError(err).WithField("room", roomID).Warn("room vanished after game start")
	}
	s.logger.WithFields(logrus.Fields{
		"room": roomID,
		"game": sess.ID,
	}).Info("host started game")
	return nil
}

// errorCodes maps sentinel errors to the stable codes clients switch on.
var errorCodes = []struct {
	err  error
	code string
}{
	{game.ErrWrongPhase, "wrong_phase"},
	{game.ErrNotYourTurn, "not_your_turn"},
	{game.ErrWrongTeamSize, "wrong_team_size"},
	{game.ErrInvalidTeam, "invalid_team"},
	{game.ErrNoActiveProposal, "no_active_proposal"},
	{game.ErrDuplicateVote, "duplicate_vote"},
	{game.ErrNotSelected, "not_selected"},
	{game.ErrDuplicateSelection, "duplicate_selection"},
	{game.ErrInvalidChoice, "invalid_choice"},
	{game.ErrNotRedemptionImpasta, "not_redemption_impasta"},
	{game.ErrInvalidTarget, "invalid_target"},
	{game.ErrUnsupportedConfiguration, "unsupported_configuration"},
	{game.ErrRoomNotFound, "room_not_found"},
	{game.ErrPlayerNotFound, "player_not_found"},
	{game.ErrGameInProgress, "game_in_progress"},
	{lobby.ErrLobbyNotFound, "room_not_found"},
	{lobby.ErrForbidden, "forbidden"},
	{lobby.ErrNotEnoughPlayers, "not_enough_players"},
	{lobby.ErrAlreadyStarted, "already_started"},
	{errUnknownAction, "unknown_action"},
	{errMissingField, "missing_field"},
	{errBadMessage, "bad_message"},
}

func errorCode(err error) string {
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return "internal_error"
}

func errorEvent(err error) game.GameEvent {
	return game.ErrorEvent(err.Error(), errorCode(err))
}
