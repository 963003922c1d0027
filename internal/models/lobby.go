// internal/models/lobby.go
package models

// RoomStatus tracks where a room is in its lifecycle.
type RoomStatus string

const (
	RoomWaiting  RoomStatus = "waiting"
	RoomPlaying  RoomStatus = "playing"
	RoomFinished RoomStatus = "finished"
)

// Lobby is the pre-game room record. The game engine only reads it.
type Lobby struct {
	RoomID  string     `json:"roomId"`
	HostID  string     `json:"hostId"`
	Players []Player   `json:"players"`
	Mode    GameMode   `json:"gamemode"`
	Status  RoomStatus `json:"roomStatus"`
}

// Player returns the lobby member with the given id.
func (l Lobby) Player(id string) (Player, bool) {
	for _, p := range l.Players {
		if p.ID == id {
			return p, true
		}
	}
	return Player{}, false
}
