package flow

import "fmt"

// Mode is one of the mutually exclusive top-level application modes.
type Mode int

const (
	ModeCustomSceneBoot Mode = iota
	ModeBoot
	ModeMainMenu
	ModePlayGame
	ModeGamePause
	ModeGameQuit
	// ModeCustomScene is the playable mode reached when the application was
	// launched directly into a gameplay scene.
	ModeCustomScene
	// ModeRestartGame is the transient mode entered between two play sessions.
	ModeRestartGame
)

// Modes lists every known mode in declaration order.
var Modes = []Mode{
	ModeCustomSceneBoot,
	ModeBoot,
	ModeMainMenu,
	ModePlayGame,
	ModeGamePause,
	ModeGameQuit,
	ModeCustomScene,
	ModeRestartGame,
}

func (m Mode) String() string {
	switch m {
	case ModeCustomSceneBoot:
		return "CustomSceneBoot"
	case ModeBoot:
		return "Boot"
	case ModeMainMenu:
		return "MainMenu"
	case ModePlayGame:
		return "PlayGame"
	case ModeGamePause:
		return "GamePause"
	case ModeGameQuit:
		return "GameQuit"
	case ModeCustomScene:
		return "CustomScene"
	case ModeRestartGame:
		return "RestartGame"
	}
	return "Unknown"
}

// ParseMode returns the mode with the given name.
func ParseMode(name string) (Mode, error) {
	for _, m := range Modes {
		if m.String() == name {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown mode: %s", name)
}

// Playable reports whether gameplay is active in the mode, which is the
// precondition for pausing and resuming.
func (m Mode) Playable() bool {
	return m == ModePlayGame || m == ModeCustomScene
}
