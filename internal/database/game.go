// internal/database/game.go
package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/impasta/internal/game"
)

// RecordGameResult persists the outcome of a finished game and one row per
// player still seated at the end.
func RecordGameResult(ctx context.Context, res game.GameResult) error {
	rounds, err := json.Marshal(res.RoundResults)
	if err != nil {
		return fmt.Errorf("marshal round results: %w", err)
	}

	err = beginTxFunc(ctx, func(tx pgx.Tx) error {
		upsertGame := `
			INSERT INTO games (id, room_id, gamemode, status, winner, redeemed, rejection_count, round_results, start_time, end_time)
			VALUES ($1, $2, $3, 'completed', $4, $5, $6, $7, $8, $9)
			ON CONFLICT (id) DO UPDATE SET
				room_id = $2, gamemode = $3, status = 'completed', winner = $4,
				redeemed = $5, rejection_count = $6, round_results = $7, end_time = $9
		`
		if _, e := tx.Exec(ctx, upsertGame,
			res.GameID, res.RoomID, string(res.Mode), string(res.Winner), res.Redeemed,
			res.RejectionCount, rounds, res.StartedAt, res.EndedAt,
		); e != nil {
			return e
		}

		for _, row := range resultRows(res) {
			q := `
				INSERT INTO game_results (game_id, player_id, name, impasta, head_chef, did_win)
				VALUES ($1, $2, $3, $4, $5, $6)
				ON CONFLICT (game_id, player_id)
				DO UPDATE SET name = $3, impasta = $4, head_chef = $5, did_win = $6
			`
			if _, e := tx.Exec(ctx, q, row...); e != nil {
				return e
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("tx upsert game or results: %w", err)
	}
	return nil
}

func resultRows(res game.GameResult) [][]interface{} {
	rows := make([][]interface{}, 0, len(res.Players))
	for _, p := range res.Players {
		rows = append(rows, []interface{}{res.GameID, p.PlayerID, p.Name, p.Impasta, p.HeadChef, p.Won})
	}
	return rows
}

// InsertActions writes a batch of action records in one transaction. A game
// row is created on first sight and closed when its game_over action arrives.
func InsertActions(ctx context.Context, recs []game.ActionRecord) error {
	return beginTxFunc(ctx, func(tx pgx.Tx) error {
		for _, rec := range recs {
			if err := insertActionTx(ctx, tx, rec); err != nil {
				return fmt.Errorf("insert action %d of %s: %w", rec.ActionIndex, rec.GameID, err)
			}
		}
		return nil
	})
}

func insertActionTx(ctx context.Context, tx pgx.Tx, rec game.ActionRecord) error {
	upsertGameQ := `
		INSERT INTO games (id, room_id, status, start_time)
		VALUES ($1, $2, 'in_progress', $3)
		ON CONFLICT (id) DO NOTHING
	`
	at := time.UnixMilli(rec.Timestamp)
	if _, err := tx.Exec(ctx, upsertGameQ, rec.GameID, rec.RoomID, at); err != nil {
		return err
	}

	payload, err := json.Marshal(rec.ActionPayload)
	if err != nil {
		return err
	}
	actionInsertQ := `
		INSERT INTO game_actions (game_id, action_index, actor_id, action_type, action_payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (game_id, action_index) DO NOTHING
	`
	if _, err := tx.Exec(ctx, actionInsertQ,
		rec.GameID, rec.ActionIndex, rec.ActorID, rec.ActionType, payload, at,
	); err != nil {
		return err
	}

	if rec.ActionType == game.ActionGameOver {
		finalizeQ := `
			UPDATE games
			SET status = 'completed', end_time = $2
			WHERE id = $1 AND status = 'in_progress'
		`
		if _, err := tx.Exec(ctx, finalizeQ, rec.GameID, at); err != nil {
			return err
		}
	}
	return nil
}

// MarkGameAbandoned closes a game that stopped producing actions before it finished.
func MarkGameAbandoned(ctx context.Context, gameID uuid.UUID) error {
	return beginTxFunc(ctx, func(tx pgx.Tx) error {
		q := `
			UPDATE games
			SET status = 'abandoned', end_time = NOW()
			WHERE id = $1 AND status = 'in_progress'
		`
		_, err := tx.Exec(ctx, q, gameID)
		return err
	})
}

// ActionStore adapts the package functions to the historian's sink.
type ActionStore struct{}

func (ActionStore) InsertActions(ctx context.Context, recs []game.ActionRecord) error {
	return InsertActions(ctx, recs)
}

func (ActionStore) MarkGameAbandoned(ctx context.Context, gameID uuid.UUID) error {
	return MarkGameAbandoned(ctx, gameID)
}
