package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// sqlStore holds the database/sql plumbing shared by the SQLite and
// Postgres stores. Only the dialect specific statements differ.
type sqlStore struct {
	db *sql.DB

	schema    []string
	insertSQL string
	recentSQL string
}

func (s *sqlStore) Init(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return err
	}
	for _, stmt := range s.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *sqlStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// DB returns the underlying *sql.DB for direct queries.
func (s *sqlStore) DB() *sql.DB {
	return s.db
}

// Tx executes fn within a database transaction. The transaction is
// committed if fn returns nil, rolled back otherwise.
func (s *sqlStore) Tx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original: %w)", rbErr, err)
		}
		return err
	}

	return tx.Commit()
}

func (s *sqlStore) append(ctx context.Context, e Entry, ts any, at time.Time) (StoredReading, error) {
	if err := e.Validate(); err != nil {
		return StoredReading{}, err
	}

	row := StoredReading{
		Timestamp:      at,
		HeartRate:      e.HeartRate,
		BloodOxygen:    e.BloodOxygen,
		Status:         e.Status,
		Recommendation: e.Recommendation,
	}
	err := s.Tx(ctx, func(tx *sql.Tx) error {
		return tx.QueryRowContext(ctx, s.insertSQL,
			ts,
			e.HeartRate,
			e.BloodOxygen,
			e.Status,
			e.Recommendation,
		).Scan(&row.ID)
	})
	if err != nil {
		return StoredReading{}, fmt.Errorf("insert reading: %w", err)
	}
	return row, nil
}

func (s *sqlStore) Recent(ctx context.Context, limit int) ([]StoredReading, error) {
	if err := checkLimit(limit); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, s.recentSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent readings: %w", err)
	}
	defer rows.Close()

	out := make([]StoredReading, 0, limit)
	for rows.Next() {
		var (
			r  StoredReading
			ts any
		)
		if err := rows.Scan(&r.ID, &ts, &r.HeartRate, &r.BloodOxygen, &r.Status, &r.Recommendation); err != nil {
			return nil, fmt.Errorf("scan reading: %w", err)
		}
		if r.Timestamp, err = parseTimestamp(ts); err != nil {
			return nil, fmt.Errorf("reading %d: %w", r.ID, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// parseTimestamp accepts the representations drivers hand back for the ts column.
func parseTimestamp(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), nil
	case string:
		return time.Parse(time.RFC3339Nano, t)
	case []byte:
		return time.Parse(time.RFC3339Nano, string(t))
	default:
		return time.Time{}, fmt.Errorf("unexpected timestamp type %T", v)
	}
}
