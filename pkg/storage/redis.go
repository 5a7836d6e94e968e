package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-redis/redis/v8"
)

const (
	redisSeqKey  = "vitalguard:readings:seq"
	redisListKey = "vitalguard:readings"
)

// Redis keeps readings in a capped list, newest at the head.
type Redis struct {
	client     *redis.Client
	maxEntries int
}

// NewRedis creates a client for addr, which may be host:port or a redis:// URL.
func NewRedis(addr string, maxEntries int) (*Redis, error) {
	if strings.TrimSpace(addr) == "" {
		addr = "localhost:6379"
	}

	opts := &redis.Options{Addr: addr}
	if strings.Contains(addr, "://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opts = parsed
	}
	opts.PoolSize = 50
	opts.MinIdleConns = 10
	opts.MaxRetries = 3

	return &Redis{client: redis.NewClient(opts), maxEntries: maxEntries}, nil
}

func (s *Redis) Init(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Redis) Close() error {
	return s.client.Close()
}

func (s *Redis) Append(ctx context.Context, e Entry) (StoredReading, error) {
	if err := e.Validate(); err != nil {
		return StoredReading{}, err
	}

	id, err := s.client.Incr(ctx, redisSeqKey).Result()
	if err != nil {
		return StoredReading{}, fmt.Errorf("allocate reading id: %w", err)
	}

	row := StoredReading{
		ID:             id,
		Timestamp:      nowUTC(),
		HeartRate:      e.HeartRate,
		BloodOxygen:    e.BloodOxygen,
		Status:         e.Status,
		Recommendation: e.Recommendation,
	}
	data, err := json.Marshal(row)
	if err != nil {
		return StoredReading{}, err
	}

	// MULTI/EXEC so the push and the trim land together or not at all.
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, redisListKey, data)
		if s.maxEntries > 0 {
			pipe.LTrim(ctx, redisListKey, 0, int64(s.maxEntries-1))
		}
		return nil
	})
	if err != nil {
		return StoredReading{}, fmt.Errorf("push reading: %w", err)
	}
	return row, nil
}

func (s *Redis) Recent(ctx context.Context, limit int) ([]StoredReading, error) {
	if err := checkLimit(limit); err != nil {
		return nil, err
	}
	if limit == 0 {
		return []StoredReading{}, nil
	}

	items, err := s.client.LRange(ctx, redisListKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("read recent readings: %w", err)
	}

	out := make([]StoredReading, 0, len(items))
	for _, item := range items {
		var r StoredReading
		if err := json.Unmarshal([]byte(item), &r); err != nil {
			return nil, fmt.Errorf("decode reading: %w", err)
		}
		out = append(out, r)
	}
	return out, nil
}
