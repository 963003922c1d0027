// internal/models/game_mode.go
package models

// GameMode selects the role variant used when a game starts.
type GameMode string

const (
	ModeClassic  GameMode = "classic"
	ModeHidden   GameMode = "hidden"
	ModeHeadChef GameMode = "headChef"
)

// Valid reports whether m is one of the supported modes.
func (m GameMode) Valid() bool {
	switch m {
	case ModeClassic, ModeHidden, ModeHeadChef:
		return true
	}
	return false
}
