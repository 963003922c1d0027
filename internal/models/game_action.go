// internal/models/game_action.go
package models

// GameAction is an inbound message from a room connection. Only the fields
// relevant to Type are set; the sender is taken from the authenticated
// connection, never from the message body.
type GameAction struct {
	Type          string   `json:"type"`
	RoomID        string   `json:"roomId,omitempty"`
	PlayerID      string   `json:"playerId,omitempty"`
	ProposedChefs []string `json:"proposedChefs,omitempty"`
	InFavor       *bool    `json:"inFavor,omitempty"`
	Ingredient    string   `json:"ingredient,omitempty"`
	TargetChefID  string   `json:"targetChefId,omitempty"`
}
