package pubsub

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

type RetryOptions struct {
	Attempts      int
	Base          time.Duration
	Cap           time.Duration
	JitterPercent int
	Logger        *slog.Logger
}

const (
	defaultRetryBase = time.Second
	defaultRetryCap  = 30 * time.Second
)

// Retry runs attempt with jittered exponential backoff until it succeeds, the attempts
// run out or ctx is cancelled.
func Retry(ctx context.Context, opts RetryOptions, attempt func(ctx context.Context) error) error {
	if opts.Attempts <= 0 {
		opts.Attempts = 1
	}
	if opts.Base <= 0 {
		opts.Base = defaultRetryBase
	}
	if opts.Cap <= 0 {
		opts.Cap = defaultRetryCap
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var lastErr error
	backoff := opts.Base
	for i := 1; i <= opts.Attempts; i++ {
		err := attempt(ctx)
		if err == nil {
			if i > 1 {
				logger.Info("rabbit connected", slog.Int("attempt", i))
			}
			return nil
		}
		lastErr = err
		if i == opts.Attempts {
			break
		}

		sleep := JitteredDelay(backoff, opts.Cap, opts.JitterPercent)
		logger.Warn("rabbit dial failed",
			slog.Int("attempt", i),
			slog.Duration("sleep", sleep),
			slog.Any("error", err),
		)
		if backoff*2 < opts.Cap {
			backoff *= 2
		} else {
			backoff = opts.Cap
		}

		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("dial cancelled: %w", ctx.Err())
		case <-timer.C:
		}
	}

	return fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", opts.Attempts, lastErr)
}
