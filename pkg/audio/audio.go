package audio

import (
	"sync"

	"github.com/cbodonnell/gameflow/pkg/log"
	"github.com/cbodonnell/gameflow/pkg/session"
)

// Player keeps track of the music that is playing. Requesting the track
// already playing does not restart it.
type Player struct {
	lock    sync.RWMutex
	current session.MusicKind
	playing bool
	changes int
}

func NewPlayer() *Player {
	return &Player{}
}

func (p *Player) PlayMusic(kind session.MusicKind) {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.playing && p.current == kind {
		return
	}
	p.current = kind
	p.playing = true
	p.changes++
	log.Debug("Playing %s music", kind)
}

// Current returns the track that is playing, if any.
func (p *Player) Current() (session.MusicKind, bool) {
	p.lock.RLock()
	defer p.lock.RUnlock()
	return p.current, p.playing
}

// Changes returns how many times the track has changed.
func (p *Player) Changes() int {
	p.lock.RLock()
	defer p.lock.RUnlock()
	return p.changes
}
