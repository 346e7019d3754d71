package notify

import (
	"sync"
	"time"

	"github.com/cbodonnell/gameflow/pkg/flow"
	"github.com/cbodonnell/gameflow/pkg/log"
)

// Kind identifies the type of a session event.
type Kind int

const (
	KindPauseChanged Kind = iota
	KindGameOver
	KindStateChanged
	KindScoreChanged
)

// Kinds lists every event kind.
var Kinds = []Kind{KindPauseChanged, KindGameOver, KindStateChanged, KindScoreChanged}

func (k Kind) String() string {
	switch k {
	case KindPauseChanged:
		return "pause-changed"
	case KindGameOver:
		return "game-over"
	case KindStateChanged:
		return "state-changed"
	case KindScoreChanged:
		return "score-changed"
	}
	return "unknown"
}

// Event is delivered to subscribers after the mutation it describes is complete.
type Event struct {
	Kind      Kind
	SessionID string
	// Paused is set for KindPauseChanged.
	Paused bool
	// Previous and Mode are set for KindStateChanged.
	Previous flow.Mode
	Mode     flow.Mode
	// Score is set for KindScoreChanged and KindGameOver.
	Score     int64
	Timestamp time.Time
}

// Handler receives events. Handlers must not block for long: they run on the
// publisher's goroutine.
type Handler func(event Event)

type registration struct {
	kind Kind
	id   uint64
}

// Bus is a fire-and-forget observer registry keyed by event kind.
type Bus struct {
	lock     sync.RWMutex
	handlers map[Kind]map[uint64]Handler
	nextID   uint64
}

func NewBus() *Bus {
	return &Bus{
		handlers: make(map[Kind]map[uint64]Handler),
	}
}

// Subscribe registers a handler for one or more kinds. With no kinds the
// handler receives every kind. The returned subscription must be closed to
// release the registration.
func (b *Bus) Subscribe(handler Handler, kinds ...Kind) *Subscription {
	if len(kinds) == 0 {
		kinds = Kinds
	}

	b.lock.Lock()
	defer b.lock.Unlock()

	sub := &Subscription{bus: b}
	for _, kind := range kinds {
		b.nextID++
		if b.handlers[kind] == nil {
			b.handlers[kind] = make(map[uint64]Handler)
		}
		b.handlers[kind][b.nextID] = handler
		sub.registrations = append(sub.registrations, registration{kind: kind, id: b.nextID})
	}
	return sub
}

// Publish delivers the event to every handler registered for its kind.
// Handlers are called outside the lock so they may subscribe or unsubscribe.
func (b *Bus) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	b.lock.RLock()
	handlers := make([]Handler, 0, len(b.handlers[event.Kind]))
	for _, h := range b.handlers[event.Kind] {
		handlers = append(handlers, h)
	}
	b.lock.RUnlock()

	for _, h := range handlers {
		dispatch(h, event)
	}
}

// SubscriberCount returns the number of handlers registered for kind.
func (b *Bus) SubscriberCount(kind Kind) int {
	b.lock.RLock()
	defer b.lock.RUnlock()
	return len(b.handlers[kind])
}

func (b *Bus) remove(registrations []registration) {
	b.lock.Lock()
	defer b.lock.Unlock()
	for _, r := range registrations {
		delete(b.handlers[r.kind], r.id)
	}
}

func dispatch(h Handler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("Notification handler for %s panicked: %v", event.Kind, r)
		}
	}()
	h(event)
}

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	bus           *Bus
	registrations []registration
	once          sync.Once
}

// Close releases the registration. It is safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.bus.remove(s.registrations)
	})
}
