package storage

import (
	"context"
	"sync"
)

// Memory is an in-process Store. Data is lost on restart.
type Memory struct {
	mu     sync.RWMutex
	nextID int64
	rows   []StoredReading
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{nextID: 1}
}

func (m *Memory) Init(context.Context) error { return nil }

func (m *Memory) Close() error { return nil }

func (m *Memory) Append(_ context.Context, e Entry) (StoredReading, error) {
	if err := e.Validate(); err != nil {
		return StoredReading{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	row := StoredReading{
		ID:             m.nextID,
		Timestamp:      nowUTC(),
		HeartRate:      e.HeartRate,
		BloodOxygen:    e.BloodOxygen,
		Status:         e.Status,
		Recommendation: e.Recommendation,
	}
	m.nextID++
	m.rows = append(m.rows, row)
	return row, nil
}

func (m *Memory) Recent(_ context.Context, limit int) ([]StoredReading, error) {
	if err := checkLimit(limit); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit > len(m.rows) {
		limit = len(m.rows)
	}
	out := make([]StoredReading, 0, limit)
	for i := len(m.rows) - 1; i >= len(m.rows)-limit; i-- {
		out = append(out, m.rows[i])
	}
	return out, nil
}
