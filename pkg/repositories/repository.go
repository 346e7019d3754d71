package repositories

import (
	"context"

	"github.com/cbodonnell/gameflow/pkg/repositories/models"
)

// DefaultListLimit caps ListSessions when no limit is given.
const DefaultListLimit = 50

type Repository interface {
	Close(ctx context.Context) error
	// SaveSession inserts the record or replaces the one with the same ID.
	SaveSession(ctx context.Context, record *models.SessionRecord) error
	LoadSession(ctx context.Context, id string) (*models.SessionRecord, error)
	// ListSessions returns the most recently ended sessions first.
	ListSessions(ctx context.Context, limit int) ([]*models.SessionRecord, error)
	LoadStatistics(ctx context.Context) (*models.Statistics, error)
}

func listLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}
