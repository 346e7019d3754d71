package session

import "context"

// MusicKind selects a music track.
type MusicKind int

const (
	MusicMenu MusicKind = iota
	MusicBattle
)

func (k MusicKind) String() string {
	switch k {
	case MusicMenu:
		return "menu"
	case MusicBattle:
		return "battle"
	}
	return "unknown"
}

// SceneLoader loads and shows scenes.
type SceneLoader interface {
	// LoadScene starts loading the named scene. The returned channel
	// receives exactly one value when loading completes.
	LoadScene(ctx context.Context, name string) <-chan error
	ShowActiveScene()
	InitialSceneIs(name string) bool
}

// ControlSurface toggles the input maps and the pointer lock.
type ControlSurface interface {
	EnablePlayControls()
	DisablePlayControls()
	EnableMenuControls()
	DisableMenuControls()
	LockPointer()
	UnlockPointer()
}

type AudioCollaborator interface {
	PlayMusic(kind MusicKind)
}

// StatisticsCollaborator tracks the records of the current play session.
type StatisticsCollaborator interface {
	RecordScore(total int64)
	FinalizeSession()
	ResetSessionRecords()
}
