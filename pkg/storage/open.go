package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// Open builds the configured store and retries Init with exponential
// backoff until it succeeds or cfg.ConnectTimeout elapses.
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	store, err := New(cfg)
	if err != nil {
		return nil, err
	}

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = timeout

	attempt := 0
	operation := func() error {
		attempt++
		err := store.Init(ctx)
		if err != nil {
			logger.Warn("storage init failed",
				zap.String("driver", cfg.Driver),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
		}
		return err
	}

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		store.Close()
		return nil, fmt.Errorf("init %s store: %w", cfg.Driver, err)
	}

	logger.Info("storage ready", zap.String("driver", cfg.Driver), zap.Int("attempts", attempt))
	return store, nil
}
