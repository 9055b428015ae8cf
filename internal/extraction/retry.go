package extraction

import (
	"context"
	"log/slog"
	"time"
)

// sleepFunc pauses between retry attempts. The default honours context
// cancellation; tests inject a recording stub.
type sleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// withRetry runs fn up to cfg.MaxAttempts times, applying cfg.Timeout as a
// deadline on each attempt and sleeping cfg.RetryDelay between attempts.
// Retries are sequential, never parallel. The final error is returned when
// every attempt fails.
func withRetry(ctx context.Context, cfg Config, logCtx *slog.Logger, sleep sleepFunc, fn func(ctx context.Context) (string, error)) (string, error) {
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		attemptCtx := ctx
		var cancel context.CancelFunc
		if cfg.Timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		}
		text, err := fn(attemptCtx)
		if cancel != nil {
			cancel()
		}
		if err == nil {
			return text, nil
		}
		lastErr = err
		logCtx.Warn("Extraction attempt failed.", "attempt", attempt, "maxAttempts", attempts, "error", err)

		if attempt < attempts {
			if serr := sleep(ctx, cfg.RetryDelay); serr != nil {
				return "", lastErr
			}
		}
	}
	return "", lastErr
}
