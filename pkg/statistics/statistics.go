package statistics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cbodonnell/gameflow/pkg/log"
	"github.com/cbodonnell/gameflow/pkg/repositories"
	"github.com/cbodonnell/gameflow/pkg/repositories/models"
	"github.com/cbodonnell/gameflow/pkg/workers"
	"github.com/google/uuid"
)

// Service keeps the records of the session in progress and hands finished
// sessions to the save worker.
type Service struct {
	repository repositories.Repository
	saveChan   chan<- workers.SaveSessionRequest
	now        func() time.Time

	lock    sync.Mutex
	current *models.SessionRecord
}

type NewServiceOptions struct {
	Repository repositories.Repository
	SaveChan   chan<- workers.SaveSessionRequest
	// Now defaults to time.Now.
	Now func() time.Time
}

func NewService(opts NewServiceOptions) *Service {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		repository: opts.Repository,
		saveChan:   opts.SaveChan,
		now:        now,
	}
}

// ResetSessionRecords starts the records of a new session. A session still
// in progress is discarded.
func (s *Service) ResetSessionRecords() {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.current = &models.SessionRecord{
		ID:        uuid.NewString(),
		StartedAt: s.now(),
	}
}

// RecordScore stores the latest score total of the session in progress.
func (s *Service) RecordScore(total int64) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.current == nil {
		log.Debug("Score %d recorded outside a session", total)
		return
	}
	s.current.Score = total
}

// FinalizeSession ends the session in progress and queues it for saving.
// Without a session in progress it does nothing, so finalizing twice saves
// once.
func (s *Service) FinalizeSession() {
	s.lock.Lock()
	record := s.current
	s.current = nil
	s.lock.Unlock()

	if record == nil {
		return
	}
	record.EndedAt = s.now()
	record.DurationMillis = record.EndedAt.Sub(record.StartedAt).Milliseconds()
	record.Finished = true

	select {
	case s.saveChan <- workers.SaveSessionRequest{Record: record}:
		log.Info("Session %s finalized with score %d", record.ID, record.Score)
	default:
		log.Error("Failed to queue session %s for saving: save queue is full", record.ID)
	}
}

// Checkpoint returns a copy of the session in progress ending now.
func (s *Service) Checkpoint() (*models.SessionRecord, bool) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.current == nil {
		return nil, false
	}
	record := *s.current
	record.EndedAt = s.now()
	record.DurationMillis = record.EndedAt.Sub(record.StartedAt).Milliseconds()
	return &record, true
}

// Statistics returns the aggregate over every saved session.
func (s *Service) Statistics(ctx context.Context) (*models.Statistics, error) {
	stats, err := s.repository.LoadStatistics(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load statistics: %w", err)
	}
	return stats, nil
}

// Sessions returns the most recent saved sessions.
func (s *Service) Sessions(ctx context.Context, limit int) ([]*models.SessionRecord, error) {
	records, err := s.repository.ListSessions(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return records, nil
}
