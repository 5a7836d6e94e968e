package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Postgres stores readings in PostgreSQL through the pgx database/sql driver.
type Postgres struct {
	sqlStore
}

// NewPostgres prepares a connection pool. Nothing is touched until Init.
func NewPostgres(dsn string) (*Postgres, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "postgres://localhost:5432/vitalguard?sslmode=disable"
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	return &Postgres{sqlStore{
		db: db,
		schema: []string{
			`CREATE TABLE IF NOT EXISTS health_readings (
				id BIGSERIAL PRIMARY KEY,
				ts TIMESTAMPTZ NOT NULL,
				heart_rate INTEGER NOT NULL,
				blood_oxygen INTEGER NOT NULL,
				status TEXT NOT NULL,
				recommendation VARCHAR(255) NOT NULL
			)`,
		},
		insertSQL: `INSERT INTO health_readings (ts, heart_rate, blood_oxygen, status, recommendation)
			VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		recentSQL: `SELECT id, ts, heart_rate, blood_oxygen, status, recommendation
			FROM health_readings ORDER BY id DESC LIMIT $1`,
	}}, nil
}

func (s *Postgres) Append(ctx context.Context, e Entry) (StoredReading, error) {
	at := nowUTC()
	return s.append(ctx, e, at, at)
}
