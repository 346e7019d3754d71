package session

import (
	"context"
	"sync"
	"time"

	"github.com/cbodonnell/gameflow/pkg/notify"
)

type fakeScenes struct {
	lock    sync.Mutex
	initial string
	// stall lists scenes whose load never completes.
	stall map[string]bool
	// latency delays the completion of every load.
	latency time.Duration
	loaded  []string
	shown   int
}

func (s *fakeScenes) LoadScene(ctx context.Context, name string) <-chan error {
	s.lock.Lock()
	defer s.lock.Unlock()
	done := make(chan error, 1)
	if s.stall[name] {
		return done
	}
	s.loaded = append(s.loaded, name)
	if s.latency <= 0 {
		done <- nil
		return done
	}
	go func(d time.Duration) {
		time.Sleep(d)
		done <- nil
	}(s.latency)
	return done
}

func (s *fakeScenes) ShowActiveScene() {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.shown++
}

func (s *fakeScenes) InitialSceneIs(name string) bool {
	return s.initial == name
}

func (s *fakeScenes) Loaded() []string {
	s.lock.Lock()
	defer s.lock.Unlock()
	return append([]string(nil), s.loaded...)
}

type fakeControls struct {
	lock          sync.Mutex
	play          bool
	menu          bool
	pointerLocked bool
	disablePlay   int
}

func (f *fakeControls) EnablePlayControls() {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.play = true
}

func (f *fakeControls) DisablePlayControls() {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.play = false
	f.disablePlay++
}

func (f *fakeControls) EnableMenuControls() {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.menu = true
}

func (f *fakeControls) DisableMenuControls() {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.menu = false
}

func (f *fakeControls) LockPointer() {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.pointerLocked = true
}

func (f *fakeControls) UnlockPointer() {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.pointerLocked = false
}

// state returns play, menu and pointer lock flags.
func (f *fakeControls) state() (bool, bool, bool) {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.play, f.menu, f.pointerLocked
}

func (f *fakeControls) disablePlayCount() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.disablePlay
}

type fakeAudio struct {
	lock   sync.Mutex
	tracks []MusicKind
}

func (a *fakeAudio) PlayMusic(kind MusicKind) {
	a.lock.Lock()
	defer a.lock.Unlock()
	a.tracks = append(a.tracks, kind)
}

func (a *fakeAudio) last() (MusicKind, bool) {
	a.lock.Lock()
	defer a.lock.Unlock()
	if len(a.tracks) == 0 {
		return 0, false
	}
	return a.tracks[len(a.tracks)-1], true
}

// fakeStatistics counts finalized sessions; like statistics.Service it
// finalizes a session at most once.
type fakeStatistics struct {
	lock      sync.Mutex
	scores    []int64
	active    bool
	finalized int
	resets    int
}

func (s *fakeStatistics) RecordScore(total int64) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.scores = append(s.scores, total)
}

func (s *fakeStatistics) FinalizeSession() {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.active {
		s.finalized++
		s.active = false
	}
}

func (s *fakeStatistics) ResetSessionRecords() {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.resets++
	s.active = true
}

func (s *fakeStatistics) counts() (int, int) {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.finalized, s.resets
}

// eventLog collects published events.
type eventLog struct {
	lock   sync.Mutex
	events []notify.Event
}

func (l *eventLog) handle(e notify.Event) {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) ofKind(kind notify.Kind) []notify.Event {
	l.lock.Lock()
	defer l.lock.Unlock()
	var out []notify.Event
	for _, e := range l.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}
