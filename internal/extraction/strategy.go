// Package extraction implements the text-extraction pipeline: a set of
// interchangeable backend strategies and an orchestrator that runs them in a
// fixed priority order, with per-attempt timeouts and retry budgets, until
// one produces a validated result.
package extraction

import (
	"context"
	"time"
)

// Strategy is one interchangeable technique for extracting text from a
// document. Extract returns the raw backend output; the orchestrator
// normalizes and screens it before accepting.
type Strategy interface {
	Name() string
	Extract(ctx context.Context, src Source) (any, error)
}

// Config carries the per-strategy knobs, resolved once at orchestrator
// construction. Timeout bounds a single attempt; RetryDelay is the fixed
// pause between attempts of the same strategy.
type Config struct {
	Timeout     time.Duration
	MaxAttempts int
	RetryDelay  time.Duration
}

// DefaultLocalConfig is the budget for cheap strategies that make no remote
// model call: a single attempt with a short timeout.
func DefaultLocalConfig() Config {
	return Config{Timeout: 20 * time.Second, MaxAttempts: 1, RetryDelay: time.Second}
}

// DefaultRemoteConfig is the budget for flagship remote strategies: up to
// three attempts with a fixed backoff.
func DefaultRemoteConfig() Config {
	return Config{Timeout: 90 * time.Second, MaxAttempts: 3, RetryDelay: 2 * time.Second}
}
