package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/cbodonnell/gameflow/pkg/repositories/models"
	_ "github.com/mattn/go-sqlite3"
)

type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository opens the database at path and applies every
// migration in the migrations directory in lexical order.
func NewSQLiteRepository(ctx context.Context, path string, migrations string) (Repository, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %v", err)
	}
	// a single writer avoids SQLITE_BUSY between the save worker and readers
	db.SetMaxOpenConns(1)

	dir, err := os.ReadDir(migrations)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to read migrations directory: %v", err)
	}
	sort.Slice(dir, func(i, j int) bool { return dir[i].Name() < dir[j].Name() })

	for _, entry := range dir {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".sql" {
			continue
		}

		migrationPath := filepath.Join(migrations, entry.Name())
		migration, err := os.ReadFile(migrationPath)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to read migration %s: %v", migrationPath, err)
		}

		if _, err := db.ExecContext(ctx, string(migration)); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute migration %s: %v", migrationPath, err)
		}
	}

	return &SQLiteRepository{
		db: db,
	}, nil
}

func (r *SQLiteRepository) Close(ctx context.Context) error {
	return r.db.Close()
}

func (r *SQLiteRepository) SaveSession(ctx context.Context, record *models.SessionRecord) error {
	// a checkpoint never overwrites a finished session
	q := `
	INSERT INTO sessions (id, score, started_at, ended_at, duration_millis, finished)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT (id) DO UPDATE SET
		score = excluded.score,
		started_at = excluded.started_at,
		ended_at = excluded.ended_at,
		duration_millis = excluded.duration_millis,
		finished = excluded.finished
	WHERE sessions.finished = 0 OR excluded.finished = 1;
	`
	_, err := r.db.ExecContext(ctx, q,
		record.ID,
		record.Score,
		record.StartedAt.UnixMilli(),
		record.EndedAt.UnixMilli(),
		record.DurationMillis,
		record.Finished,
	)
	if err != nil {
		return fmt.Errorf("failed to insert session: %v", err)
	}

	return nil
}

func (r *SQLiteRepository) LoadSession(ctx context.Context, id string) (*models.SessionRecord, error) {
	q := `
	SELECT id, score, started_at, ended_at, duration_millis, finished FROM sessions WHERE id = ?;
	`
	record, err := scanSQLiteSession(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &ErrNotFound{}
		}
		return nil, fmt.Errorf("failed to scan session: %v", err)
	}

	return record, nil
}

func (r *SQLiteRepository) ListSessions(ctx context.Context, limit int) ([]*models.SessionRecord, error) {
	q := `
	SELECT id, score, started_at, ended_at, duration_millis, finished FROM sessions
	WHERE finished = 1
	ORDER BY ended_at DESC
	LIMIT ?;
	`
	rows, err := r.db.QueryContext(ctx, q, listLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %v", err)
	}
	defer rows.Close()

	records := make([]*models.SessionRecord, 0)
	for rows.Next() {
		record, err := scanSQLiteSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %v", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sessions: %v", err)
	}

	return records, nil
}

func (r *SQLiteRepository) LoadStatistics(ctx context.Context) (*models.Statistics, error) {
	q := `
	SELECT
		COUNT(*),
		COALESCE(MAX(score), 0),
		COALESCE(SUM(score), 0),
		COALESCE(AVG(duration_millis), 0.0),
		COALESCE(MAX(duration_millis), 0)
	FROM sessions
	WHERE finished = 1;
	`
	stats := &models.Statistics{}
	var average float64
	err := r.db.QueryRowContext(ctx, q).Scan(
		&stats.GamesPlayed,
		&stats.BestScore,
		&stats.TotalScore,
		&average,
		&stats.LongestSessionDurationMillis,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan statistics: %v", err)
	}
	stats.AverageSessionDurationMillis = int64(math.Round(average))

	return stats, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteSession(row rowScanner) (*models.SessionRecord, error) {
	var (
		record    models.SessionRecord
		startedAt int64
		endedAt   int64
	)
	if err := row.Scan(&record.ID, &record.Score, &startedAt, &endedAt, &record.DurationMillis, &record.Finished); err != nil {
		return nil, err
	}
	record.StartedAt = time.UnixMilli(startedAt)
	record.EndedAt = time.UnixMilli(endedAt)
	return &record, nil
}
