package repositories

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/cbodonnell/gameflow/pkg/repositories/models"
	"github.com/quasilyte/gdata/v2"
	"gopkg.in/yaml.v3"
)

const (
	gdataSessionsObject   = "sessions"
	gdataSessionsProperty = "records"
)

// GdataRepository keeps session records in the per-user application data
// directory as a single YAML document. It suits a local single-player
// install where no database is available.
type GdataRepository struct {
	manager *gdata.Manager
	lock    sync.Mutex
}

func NewGdataRepository(appName string) (Repository, error) {
	manager, err := gdata.Open(gdata.Config{
		AppName: appName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open gdata storage: %v", err)
	}
	return &GdataRepository{
		manager: manager,
	}, nil
}

func (r *GdataRepository) Close(ctx context.Context) error {
	return nil
}

func (r *GdataRepository) SaveSession(ctx context.Context, record *models.SessionRecord) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	records, err := r.load()
	if err != nil {
		return err
	}

	replaced := false
	for i, existing := range records {
		if existing.ID == record.ID {
			if existing.Finished && !record.Finished {
				return nil
			}
			records[i] = record
			replaced = true
			break
		}
	}
	if !replaced {
		records = append(records, record)
	}

	data, err := yaml.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to marshal sessions: %v", err)
	}
	if err := r.manager.SaveObjectProp(gdataSessionsObject, gdataSessionsProperty, data); err != nil {
		return fmt.Errorf("failed to save sessions: %v", err)
	}

	return nil
}

func (r *GdataRepository) LoadSession(ctx context.Context, id string) (*models.SessionRecord, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	records, err := r.load()
	if err != nil {
		return nil, err
	}
	for _, record := range records {
		if record.ID == id {
			return record, nil
		}
	}
	return nil, &ErrNotFound{}
}

func (r *GdataRepository) ListSessions(ctx context.Context, limit int) ([]*models.SessionRecord, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	records, err := r.load()
	if err != nil {
		return nil, err
	}
	records = finished(records)
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].EndedAt.After(records[j].EndedAt)
	})
	if limit = listLimit(limit); len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

func (r *GdataRepository) LoadStatistics(ctx context.Context) (*models.Statistics, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	records, err := r.load()
	if err != nil {
		return nil, err
	}
	return aggregate(finished(records)), nil
}

func finished(records []*models.SessionRecord) []*models.SessionRecord {
	out := make([]*models.SessionRecord, 0, len(records))
	for _, record := range records {
		if record.Finished {
			out = append(out, record)
		}
	}
	return out
}

// load reads every record. A missing document is an empty store.
// The caller must hold the lock.
func (r *GdataRepository) load() ([]*models.SessionRecord, error) {
	if !r.manager.ObjectPropExists(gdataSessionsObject, gdataSessionsProperty) {
		return []*models.SessionRecord{}, nil
	}
	data, err := r.manager.LoadObjectProp(gdataSessionsObject, gdataSessionsProperty)
	if err != nil {
		return nil, fmt.Errorf("failed to load sessions: %v", err)
	}
	records := []*models.SessionRecord{}
	if err := yaml.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to unmarshal sessions: %v", err)
	}
	return records, nil
}

func aggregate(records []*models.SessionRecord) *models.Statistics {
	stats := &models.Statistics{}
	var totalDuration int64
	for _, record := range records {
		stats.GamesPlayed++
		stats.TotalScore += record.Score
		if record.Score > stats.BestScore {
			stats.BestScore = record.Score
		}
		totalDuration += record.DurationMillis
		if record.DurationMillis > stats.LongestSessionDurationMillis {
			stats.LongestSessionDurationMillis = record.DurationMillis
		}
	}
	if stats.GamesPlayed > 0 {
		stats.AverageSessionDurationMillis = (totalDuration + stats.GamesPlayed/2) / stats.GamesPlayed
	}
	return stats
}
