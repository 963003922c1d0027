// internal/models/player.go
package models

// Player is a participant in a room. The same value is copied from the lobby
// into the game session when the game starts.
type Player struct {
	ID     string `json:"playerId"`
	Name   string `json:"name"`
	IsHost bool   `json:"isHost"`
}
