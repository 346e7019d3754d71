package workers

import (
	"context"
	"time"

	"github.com/cbodonnell/gameflow/pkg/log"
	"github.com/cbodonnell/gameflow/pkg/messages"
	"github.com/cbodonnell/gameflow/pkg/notify"
	"github.com/cbodonnell/gameflow/pkg/queue"
)

// DefaultBroadcastInterval is how often queued events are sent out.
const DefaultBroadcastInterval = 50 * time.Millisecond

// Broadcaster delivers a message to every connected client.
type Broadcaster interface {
	Broadcast(ctx context.Context, msg *messages.Message) error
}

// NotificationWorker forwards session events to remote clients. Events are
// queued by the bus handler so publishers never wait on the network.
type NotificationWorker struct {
	bus         *notify.Bus
	eventQueue  queue.Queue[notify.Event]
	broadcaster Broadcaster
	interval    time.Duration
}

type NewNotificationWorkerOptions struct {
	Bus         *notify.Bus
	EventQueue  queue.Queue[notify.Event]
	Broadcaster Broadcaster
	Interval    time.Duration
}

func NewNotificationWorker(opts NewNotificationWorkerOptions) *NotificationWorker {
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultBroadcastInterval
	}
	eventQueue := opts.EventQueue
	if eventQueue == nil {
		eventQueue = queue.NewInMemoryQueue[notify.Event](queue.DefaultBufferSize)
	}
	return &NotificationWorker{
		bus:         opts.Bus,
		eventQueue:  eventQueue,
		broadcaster: opts.Broadcaster,
		interval:    interval,
	}
}

// Start subscribes to the bus and broadcasts queued events until ctx is done.
func (w *NotificationWorker) Start(ctx context.Context) {
	sub := w.bus.Subscribe(w.enqueue)
	defer sub.Close()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.broadcastPending(ctx)
		}
	}
}

func (w *NotificationWorker) enqueue(event notify.Event) {
	if err := w.eventQueue.Enqueue(event); err != nil {
		log.Warn("Dropped %s event: %v", event.Kind, err)
	}
}

func (w *NotificationWorker) broadcastPending(ctx context.Context) {
	for _, event := range w.eventQueue.ReadAll() {
		msg, err := messages.FromEvent(event)
		if err != nil {
			log.Error("Failed to convert %s event: %v", event.Kind, err)
			continue
		}
		if err := w.broadcaster.Broadcast(ctx, msg); err != nil {
			log.Error("Failed to broadcast %s message: %v", msg.Type, err)
		}
	}
}
