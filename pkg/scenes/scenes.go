package scenes

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cbodonnell/gameflow/pkg/log"
)

// Loader is an in-process scene registry. Loading a scene takes the
// configured latency and then makes it the active scene.
type Loader struct {
	initialScene string
	latency      time.Duration
	known        map[string]bool

	lock        sync.RWMutex
	activeScene string
	visible     bool
}

type NewLoaderOptions struct {
	// InitialScene is the scene the process starts in.
	InitialScene string
	// Scenes lists the loadable scenes. Empty accepts any name.
	Scenes      []string
	LoadLatency time.Duration
}

func NewLoader(opts NewLoaderOptions) *Loader {
	known := make(map[string]bool, len(opts.Scenes))
	for _, name := range opts.Scenes {
		known[name] = true
	}
	return &Loader{
		initialScene: opts.InitialScene,
		latency:      opts.LoadLatency,
		known:        known,
		activeScene:  opts.InitialScene,
	}
}

// LoadScene loads the scene in the background. The returned channel
// receives nil once the scene is active, or the reason it is not.
func (l *Loader) LoadScene(ctx context.Context, name string) <-chan error {
	done := make(chan error, 1)
	if len(l.known) > 0 && !l.known[name] {
		done <- fmt.Errorf("unknown scene: %s", name)
		return done
	}

	go func() {
		if l.latency > 0 {
			timer := time.NewTimer(l.latency)
			defer timer.Stop()
			select {
			case <-timer.C:
			case <-ctx.Done():
				done <- ctx.Err()
				return
			}
		}

		l.lock.Lock()
		l.activeScene = name
		l.visible = true
		l.lock.Unlock()

		log.Debug("Scene %s loaded", name)
		done <- nil
	}()
	return done
}

func (l *Loader) ShowActiveScene() {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.visible = true
	log.Debug("Scene %s shown", l.activeScene)
}

func (l *Loader) InitialSceneIs(name string) bool {
	return l.initialScene == name
}

// ActiveScene returns the active scene and whether it is shown.
func (l *Loader) ActiveScene() (string, bool) {
	l.lock.RLock()
	defer l.lock.RUnlock()
	return l.activeScene, l.visible
}
