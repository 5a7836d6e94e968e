package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver
)

// SQLite stores readings in a SQLite database via modernc.org/sqlite.
type SQLite struct {
	sqlStore
}

// NewSQLite opens (or creates) a SQLite database. Nothing is touched until Init.
func NewSQLite(dsn string) (*SQLite, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "vitalguard.db"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", dsn, err)
	}

	// SQLite performs best with a single write connection. This also keeps
	// ":memory:" databases alive for the lifetime of the store.
	db.SetMaxOpenConns(1)

	return &SQLite{sqlStore{
		db: db,
		schema: []string{
			// modernc.org/sqlite requires SQL statements, not DSN params.
			"PRAGMA journal_mode=WAL",
			"PRAGMA busy_timeout=5000",
			"PRAGMA synchronous=NORMAL",
			`CREATE TABLE IF NOT EXISTS health_readings (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				ts TEXT NOT NULL,
				heart_rate INTEGER NOT NULL,
				blood_oxygen INTEGER NOT NULL,
				status TEXT NOT NULL,
				recommendation TEXT NOT NULL CHECK (length(recommendation) <= 255)
			)`,
		},
		insertSQL: `INSERT INTO health_readings (ts, heart_rate, blood_oxygen, status, recommendation)
			VALUES (?, ?, ?, ?, ?) RETURNING id`,
		recentSQL: `SELECT id, ts, heart_rate, blood_oxygen, status, recommendation
			FROM health_readings ORDER BY id DESC LIMIT ?`,
	}}, nil
}

func (s *SQLite) Append(ctx context.Context, e Entry) (StoredReading, error) {
	at := nowUTC()
	return s.append(ctx, e, at.Format(timeLayout), at)
}

// timeLayout keeps a fixed width so text timestamps sort chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
