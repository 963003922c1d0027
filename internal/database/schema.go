// internal/database/schema.go
package database

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoDatabase is returned when a write is attempted without a pool.
var ErrNoDatabase = errors.New("database not connected")

var schema = []string{
	`CREATE TABLE IF NOT EXISTS games (
		id              UUID PRIMARY KEY,
		room_id         TEXT NOT NULL DEFAULT '',
		gamemode        TEXT NOT NULL DEFAULT '',
		status          TEXT NOT NULL DEFAULT 'in_progress',
		winner          TEXT,
		redeemed        BOOLEAN NOT NULL DEFAULT FALSE,
		rejection_count INT NOT NULL DEFAULT 0,
		round_results   JSONB,
		start_time      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		end_time        TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS game_actions (
		game_id        UUID NOT NULL REFERENCES games(id) ON DELETE CASCADE,
		action_index   INT NOT NULL,
		actor_id       TEXT NOT NULL DEFAULT '',
		action_type    TEXT NOT NULL,
		action_payload JSONB,
		created_at     TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (game_id, action_index)
	)`,
	`CREATE TABLE IF NOT EXISTS game_results (
		game_id   UUID NOT NULL REFERENCES games(id) ON DELETE CASCADE,
		player_id TEXT NOT NULL,
		name      TEXT NOT NULL,
		impasta   BOOLEAN NOT NULL,
		head_chef BOOLEAN NOT NULL,
		did_win   BOOLEAN NOT NULL,
		PRIMARY KEY (game_id, player_id)
	)`,
}

// EnsureSchema creates the tables used by the server and the historian.
func EnsureSchema(ctx context.Context) error {
	if DB == nil {
		return ErrNoDatabase
	}
	for _, stmt := range schema {
		if _, err := DB.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
