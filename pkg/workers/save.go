package workers

import (
	"context"
	"time"

	"github.com/cbodonnell/gameflow/pkg/log"
	"github.com/cbodonnell/gameflow/pkg/repositories"
	"github.com/cbodonnell/gameflow/pkg/repositories/models"
)

const (
	// SaveSessionChanSize is the buffer size of the save request channel.
	SaveSessionChanSize = 64
	// flushTimeout bounds saving pending requests after the worker is stopped.
	flushTimeout = 5 * time.Second
)

// SaveSessionRequest asks the worker to persist a session record.
type SaveSessionRequest struct {
	Record *models.SessionRecord
}

// Checkpointer exposes the record of the session in progress.
type Checkpointer interface {
	// Checkpoint returns the current record and whether a session is active.
	Checkpoint() (*models.SessionRecord, bool)
}

type SaveSessionWorker struct {
	repository      repositories.Repository
	saveSessionChan <-chan SaveSessionRequest
	checkpointer    Checkpointer
	interval        time.Duration
	done            chan struct{}
}

type NewSaveSessionWorkerOptions struct {
	Repository      repositories.Repository
	SaveSessionChan <-chan SaveSessionRequest
	// Checkpointer is optional. With a positive Interval the active session
	// is saved periodically so a crash loses at most one interval.
	Checkpointer Checkpointer
	Interval     time.Duration
}

// NewSaveSessionWorker creates a new SaveSessionWorker.
// The worker persists finished sessions as they arrive and periodically
// checkpoints the session in progress.
func NewSaveSessionWorker(opts NewSaveSessionWorkerOptions) *SaveSessionWorker {
	return &SaveSessionWorker{
		repository:      opts.Repository,
		saveSessionChan: opts.SaveSessionChan,
		checkpointer:    opts.Checkpointer,
		interval:        opts.Interval,
		done:            make(chan struct{}),
	}
}

// Start runs until ctx is done, then saves any requests still pending.
// A save that has started is not interrupted by ctx.
func (w *SaveSessionWorker) Start(ctx context.Context) {
	defer close(w.done)
	saveCtx := context.WithoutCancel(ctx)

	var tick <-chan time.Time
	if w.checkpointer != nil && w.interval > 0 {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			w.flush()
			return
		case saveRequest := <-w.saveSessionChan:
			w.saveSession(saveCtx, saveRequest.Record)
		case <-tick:
			if record, ok := w.checkpointer.Checkpoint(); ok {
				w.saveSession(saveCtx, record)
			}
		}
	}
}

// Done is closed once Start has returned.
func (w *SaveSessionWorker) Done() <-chan struct{} {
	return w.done
}

func (w *SaveSessionWorker) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	for {
		select {
		case saveRequest := <-w.saveSessionChan:
			w.saveSession(ctx, saveRequest.Record)
		default:
			return
		}
	}
}

func (w *SaveSessionWorker) saveSession(ctx context.Context, record *models.SessionRecord) {
	if err := w.repository.SaveSession(ctx, record); err != nil {
		log.Error("Failed to save session %s: %v", record.ID, err)
		return
	}
	log.Debug("Saved session %s with score %d", record.ID, record.Score)
}
