// Package storage persists scored readings and serves recent history.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// MaxRecommendationLen is the longest recommendation a store accepts.
const MaxRecommendationLen = 255

// ErrRecommendationTooLong is returned by Append for oversized recommendations.
var ErrRecommendationTooLong = fmt.Errorf("recommendation exceeds %d characters", MaxRecommendationLen)

// Entry is a scored reading before the store assigns its ID and timestamp.
type Entry struct {
	HeartRate      int
	BloodOxygen    int
	Status         string
	Recommendation string
}

// Validate checks the entry against the schema limits.
func (e Entry) Validate() error {
	if len([]rune(e.Recommendation)) > MaxRecommendationLen {
		return ErrRecommendationTooLong
	}
	return nil
}

// StoredReading is an Entry as persisted by a Store.
type StoredReading struct {
	ID             int64     `json:"id"`
	Timestamp      time.Time `json:"timestamp"`
	HeartRate      int       `json:"heart_rate"`
	BloodOxygen    int       `json:"blood_oxygen"`
	Status         string    `json:"status"`
	Recommendation string    `json:"recommendation"`
}

// Store is the persistence port used by the reading pipeline.
// Append is atomic: it either stores the whole entry or nothing.
type Store interface {
	// Init prepares the schema and verifies connectivity.
	Init(ctx context.Context) error
	// Append stores e, assigning a monotonic ID and the insert time.
	Append(ctx context.Context, e Entry) (StoredReading, error)
	// Recent returns up to limit readings, most recent first.
	Recent(ctx context.Context, limit int) ([]StoredReading, error)
	Close() error
}

// Config selects and configures a Store implementation.
type Config struct {
	Driver string `mapstructure:"driver" yaml:"driver"`
	DSN    string `mapstructure:"dsn" yaml:"dsn"`
	// MaxEntries caps how many readings the redis store retains; 0 keeps all.
	MaxEntries int `mapstructure:"max_entries" yaml:"max_entries"`
	// ConnectTimeout bounds the retries performed by Open.
	ConnectTimeout time.Duration `mapstructure:"connect_timeout" yaml:"connect_timeout"`
}

// New builds the Store named by cfg.Driver without connecting.
func New(cfg Config) (Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", "memory":
		return NewMemory(), nil
	case "sqlite":
		return NewSQLite(cfg.DSN)
	case "postgres", "postgresql":
		return NewPostgres(cfg.DSN)
	case "redis":
		return NewRedis(cfg.DSN, cfg.MaxEntries)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}

// Reverse returns readings in the opposite order, turning a Recent result
// into chronological order.
func Reverse(readings []StoredReading) []StoredReading {
	out := make([]StoredReading, len(readings))
	for i, r := range readings {
		out[len(readings)-1-i] = r
	}
	return out
}

func checkLimit(limit int) error {
	if limit < 0 {
		return errors.New("limit must not be negative")
	}
	return nil
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
