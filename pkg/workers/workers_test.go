package workers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cbodonnell/gameflow/pkg/flow"
	"github.com/cbodonnell/gameflow/pkg/messages"
	"github.com/cbodonnell/gameflow/pkg/notify"
	"github.com/cbodonnell/gameflow/pkg/repositories/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryRepository struct {
	lock  sync.Mutex
	saved map[string]*models.SessionRecord
	// failID makes saving that session fail.
	failID string
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{saved: make(map[string]*models.SessionRecord)}
}

func (r *memoryRepository) Close(ctx context.Context) error { return nil }

func (r *memoryRepository) SaveSession(ctx context.Context, record *models.SessionRecord) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if record.ID == r.failID {
		return errors.New("disk full")
	}
	copied := *record
	r.saved[record.ID] = &copied
	return nil
}

func (r *memoryRepository) LoadSession(ctx context.Context, id string) (*models.SessionRecord, error) {
	return nil, nil
}

func (r *memoryRepository) ListSessions(ctx context.Context, limit int) ([]*models.SessionRecord, error) {
	return nil, nil
}

func (r *memoryRepository) LoadStatistics(ctx context.Context) (*models.Statistics, error) {
	return &models.Statistics{}, nil
}

func (r *memoryRepository) get(id string) (*models.SessionRecord, bool) {
	r.lock.Lock()
	defer r.lock.Unlock()
	record, ok := r.saved[id]
	return record, ok
}

type staticCheckpointer struct {
	record *models.SessionRecord
}

func (c staticCheckpointer) Checkpoint() (*models.SessionRecord, bool) {
	return c.record, c.record != nil
}

func TestSaveSessionWorker_SavesRequests(t *testing.T) {
	repo := newMemoryRepository()
	requests := make(chan SaveSessionRequest, 1)
	worker := NewSaveSessionWorker(NewSaveSessionWorkerOptions{
		Repository:      repo,
		SaveSessionChan: requests,
	})

	ctx, cancel := context.WithCancel(context.Background())
	go worker.Start(ctx)

	requests <- SaveSessionRequest{Record: &models.SessionRecord{ID: "a", Score: 3}}
	require.Eventually(t, func() bool {
		_, ok := repo.get("a")
		return ok
	}, time.Second, time.Millisecond)

	cancel()
	<-worker.Done()
}

func TestSaveSessionWorker_FlushesOnStop(t *testing.T) {
	repo := newMemoryRepository()
	requests := make(chan SaveSessionRequest, 4)
	worker := NewSaveSessionWorker(NewSaveSessionWorkerOptions{
		Repository:      repo,
		SaveSessionChan: requests,
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	requests <- SaveSessionRequest{Record: &models.SessionRecord{ID: "late"}}
	worker.Start(ctx)

	_, ok := repo.get("late")
	assert.True(t, ok)
}

func TestSaveSessionWorker_Checkpoint(t *testing.T) {
	repo := newMemoryRepository()
	worker := NewSaveSessionWorker(NewSaveSessionWorkerOptions{
		Repository:      repo,
		SaveSessionChan: make(chan SaveSessionRequest),
		Checkpointer:    staticCheckpointer{record: &models.SessionRecord{ID: "live", Score: 9}},
		Interval:        5 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go worker.Start(ctx)

	require.Eventually(t, func() bool {
		record, ok := repo.get("live")
		return ok && record.Score == 9
	}, time.Second, time.Millisecond)
}

func TestSaveSessionWorker_RepositoryFailureKeepsRunning(t *testing.T) {
	repo := newMemoryRepository()
	repo.failID = "x"
	requests := make(chan SaveSessionRequest)
	worker := NewSaveSessionWorker(NewSaveSessionWorkerOptions{
		Repository:      repo,
		SaveSessionChan: requests,
	})

	ctx, cancel := context.WithCancel(context.Background())
	go worker.Start(ctx)

	requests <- SaveSessionRequest{Record: &models.SessionRecord{ID: "x"}}
	requests <- SaveSessionRequest{Record: &models.SessionRecord{ID: "y"}}

	cancel()
	<-worker.Done()
	_, okX := repo.get("x")
	_, okY := repo.get("y")
	assert.False(t, okX)
	assert.True(t, okY)
}

type recordingBroadcaster struct {
	lock     sync.Mutex
	messages []*messages.Message
}

func (b *recordingBroadcaster) Broadcast(ctx context.Context, msg *messages.Message) error {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.messages = append(b.messages, msg)
	return nil
}

func (b *recordingBroadcaster) types() []messages.MessageType {
	b.lock.Lock()
	defer b.lock.Unlock()
	out := make([]messages.MessageType, 0, len(b.messages))
	for _, m := range b.messages {
		out = append(out, m.Type)
	}
	return out
}

func TestNotificationWorker(t *testing.T) {
	bus := notify.NewBus()
	broadcaster := &recordingBroadcaster{}
	worker := NewNotificationWorker(NewNotificationWorkerOptions{
		Bus:         bus,
		Broadcaster: broadcaster,
		Interval:    2 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		worker.Start(ctx)
		close(done)
	}()
	require.Eventually(t, func() bool {
		return bus.SubscriberCount(notify.KindPauseChanged) == 1
	}, time.Second, time.Millisecond)

	bus.Publish(notify.Event{Kind: notify.KindPauseChanged, Paused: true})
	bus.Publish(notify.Event{Kind: notify.KindStateChanged, Previous: flow.ModePlayGame, Mode: flow.ModeGameQuit})

	require.Eventually(t, func() bool {
		return len(broadcaster.types()) == 2
	}, time.Second, time.Millisecond)
	assert.Equal(t, []messages.MessageType{
		messages.MessageTypePauseChanged,
		messages.MessageTypeStateChanged,
	}, broadcaster.types())

	cancel()
	<-done
	assert.Equal(t, 0, bus.SubscriberCount(notify.KindPauseChanged))
}
