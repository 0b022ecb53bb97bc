// Package sqlite provides the default durable CounterStore, a single-file
// SQLite database. The schema mirrors the service's original usage table:
// one row per calendar date.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"cardmill/internal/quota/models"
	"cardmill/pkg/domain"
	dErrors "cardmill/pkg/domain-errors"
)

// Store persists per-date counters in SQLite.
type Store struct {
	db *sql.DB
}

// New creates the store and ensures the usage table exists.
func New(db *sql.DB) (*Store, error) {
	const schema = `CREATE TABLE IF NOT EXISTS api_usage (
		date TEXT PRIMARY KEY,
		count INTEGER NOT NULL
	)`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("create api_usage table: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Get(ctx context.Context, date domain.Date) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT count FROM api_usage WHERE date = ?`, date.String(),
	).Scan(&count)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeStorageUnavailable, "read usage counter")
	}
	return count, nil
}

func (s *Store) Set(ctx context.Context, date domain.Date, count int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO api_usage (date, count) VALUES (?, ?)
		 ON CONFLICT(date) DO UPDATE SET count = excluded.count`,
		date.String(), count,
	)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeStorageUnavailable, "write usage counter")
	}
	return nil
}

func (s *Store) SumUpTo(ctx context.Context, date domain.Date) (int, error) {
	var total sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT SUM(count) FROM api_usage WHERE date <= ?`, date.String(),
	).Scan(&total)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeStorageUnavailable, "sum usage counters")
	}
	if !total.Valid {
		return 0, nil
	}
	return int(total.Int64), nil
}

func (s *Store) List(ctx context.Context) ([]models.CounterRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT date, count FROM api_usage ORDER BY date`)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStorageUnavailable, "list usage counters")
	}
	defer rows.Close()

	var records []models.CounterRecord
	for rows.Next() {
		var (
			raw   string
			count int
		)
		if err := rows.Scan(&raw, &count); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeStorageUnavailable, "scan usage counter")
		}
		date, err := domain.ParseDate(raw)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeStorageUnavailable, "malformed date in usage table")
		}
		records = append(records, models.CounterRecord{Date: date, Count: count})
	}
	if err := rows.Err(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStorageUnavailable, "iterate usage counters")
	}
	return records, nil
}
