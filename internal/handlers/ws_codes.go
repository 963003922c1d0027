// internal/handlers/ws_codes.go
package handlers

// Custom WebSocket close codes used by the room handler.
// These provide more specific reasons for closure than standard codes.
const (
	InvalidAuthTokenError = 3001 // Seat token was invalid, expired, or issued for another room.
	PlayerNotInRoomError  = 3002 // Token is valid but the player is no longer seated in the room.
	InvalidRoomIDError    = 3003 // Target room in the WS URL does not exist.
)
