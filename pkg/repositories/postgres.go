package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/cbodonnell/gameflow/pkg/log"
	"github.com/cbodonnell/gameflow/pkg/repositories/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository connects to the database at connStr. The sessions
// table is expected to exist, see migrations/postgres.
// The caller is responsible for calling Close() on the repository.
func NewPostgresRepository(ctx context.Context, connStr string) (Repository, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %v", err)
	}

	var username string
	var database string
	err = pool.QueryRow(ctx, "SELECT current_user, current_database()").Scan(&username, &database)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to query database: %v", err)
	}

	log.Info("Connected to %s as %s", database, username)

	return &PostgresRepository{
		pool: pool,
	}, nil
}

func (r *PostgresRepository) Close(ctx context.Context) error {
	r.pool.Close()
	return nil
}

func (r *PostgresRepository) SaveSession(ctx context.Context, record *models.SessionRecord) error {
	q := `
	INSERT INTO sessions (id, score, started_at, ended_at, duration_millis, finished) VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (id) DO UPDATE SET score = $2, started_at = $3, ended_at = $4, duration_millis = $5, finished = $6
	WHERE NOT sessions.finished OR $6;
	`
	_, err := r.pool.Exec(ctx, q, record.ID, record.Score, record.StartedAt, record.EndedAt, record.DurationMillis, record.Finished)
	if err != nil {
		return fmt.Errorf("failed to insert session: %v", err)
	}

	return nil
}

func (r *PostgresRepository) LoadSession(ctx context.Context, id string) (*models.SessionRecord, error) {
	q := `
	SELECT id::text, score, started_at, ended_at, duration_millis, finished FROM sessions WHERE id = $1;
	`
	record := &models.SessionRecord{}
	err := r.pool.QueryRow(ctx, q, id).Scan(&record.ID, &record.Score, &record.StartedAt, &record.EndedAt, &record.DurationMillis, &record.Finished)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &ErrNotFound{}
		}
		return nil, fmt.Errorf("failed to scan session: %v", err)
	}

	return record, nil
}

func (r *PostgresRepository) ListSessions(ctx context.Context, limit int) ([]*models.SessionRecord, error) {
	q := `
	SELECT id::text, score, started_at, ended_at, duration_millis, finished FROM sessions
	WHERE finished
	ORDER BY ended_at DESC
	LIMIT $1;
	`
	rows, err := r.pool.Query(ctx, q, listLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %v", err)
	}
	defer rows.Close()

	records := make([]*models.SessionRecord, 0)
	for rows.Next() {
		record := &models.SessionRecord{}
		if err := rows.Scan(&record.ID, &record.Score, &record.StartedAt, &record.EndedAt, &record.DurationMillis, &record.Finished); err != nil {
			return nil, fmt.Errorf("failed to scan session: %v", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sessions: %v", err)
	}

	return records, nil
}

func (r *PostgresRepository) LoadStatistics(ctx context.Context) (*models.Statistics, error) {
	q := `
	SELECT
		COUNT(*),
		COALESCE(MAX(score), 0),
		COALESCE(SUM(score), 0)::bigint,
		COALESCE(ROUND(AVG(duration_millis)), 0)::bigint,
		COALESCE(MAX(duration_millis), 0)
	FROM sessions
	WHERE finished;
	`
	stats := &models.Statistics{}
	err := r.pool.QueryRow(ctx, q).Scan(
		&stats.GamesPlayed,
		&stats.BestScore,
		&stats.TotalScore,
		&stats.AverageSessionDurationMillis,
		&stats.LongestSessionDurationMillis,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan statistics: %v", err)
	}

	return stats, nil
}
