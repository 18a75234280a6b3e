// retry/retry.go
package retry

import (
	"context"
	"math/rand"
	"time"
)

// Config configures retry behavior.
type Config struct {
	// MaxAttempts is the maximum number of attempts (including the first).
	// Default: 3.
	MaxAttempts int

	// InitialDelay is the delay before the second attempt. Zero means
	// attempts follow each other without waiting; negative values are
	// treated as zero.
	InitialDelay time.Duration

	// MaxDelay caps the delay between retries. Zero leaves delays uncapped.
	MaxDelay time.Duration

	// Multiplier increases the delay after each retry.
	// Default: 2.0 (exponential backoff).
	Multiplier float64

	// Jitter adds randomness to delays (0.0 to 1.0).
	Jitter float64

	// OnRetry is called after a failed attempt that will be retried, with the
	// 1-indexed attempt that failed and the delay before the next one.
	OnRetry func(attempt int, err error, delay time.Duration)

	// Wait sleeps for d or until ctx is done. Nil uses a timer.
	Wait func(ctx context.Context, d time.Duration) error
}

// DefaultConfig returns sensible retry defaults.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		Jitter:       0.1,
	}
}

// Do executes a function with retries using the given configuration.
func Do(ctx context.Context, cfg Config, fn func(ctx context.Context) error) error {
	_, err := DoWithResult(ctx, cfg, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// DoWithResult executes a function that returns a value with retries.
// It returns the first successful result, or the error of the last attempt
// once MaxAttempts is reached or ctx is done.
func DoWithResult[T any](ctx context.Context, cfg Config, fn func(ctx context.Context) (T, error)) (T, error) {
	cfg = withDefaults(cfg)

	var lastErr error
	var zero T

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			if lastErr != nil {
				return zero, lastErr
			}
			return zero, ctx.Err()
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		// Don't wait after the last attempt
		if attempt >= cfg.MaxAttempts {
			break
		}

		delay := addJitter(Delay(cfg, attempt+1), cfg.Jitter)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, delay)
		}

		if err := cfg.Wait(ctx, delay); err != nil {
			return zero, lastErr
		}
	}

	return zero, lastErr
}

// Delay returns the un-jittered delay that precedes the given 1-indexed
// attempt: zero for the first attempt, InitialDelay for the second, and
// InitialDelay*Multiplier^(attempt-2) after that, capped by MaxDelay.
func Delay(cfg Config, attempt int) time.Duration {
	cfg = withDefaults(cfg)
	if attempt <= 1 || cfg.InitialDelay <= 0 {
		return 0
	}
	d := float64(cfg.InitialDelay)
	for i := 2; i < attempt; i++ {
		d *= cfg.Multiplier
		if cfg.MaxDelay > 0 && d >= float64(cfg.MaxDelay) {
			return cfg.MaxDelay
		}
	}
	if cfg.MaxDelay > 0 && d > float64(cfg.MaxDelay) {
		return cfg.MaxDelay
	}
	return time.Duration(d)
}

// WithAttempts executes a function with the specified number of attempts.
func WithAttempts(ctx context.Context, attempts int, fn func(ctx context.Context) error) error {
	cfg := DefaultConfig()
	cfg.MaxAttempts = attempts
	return Do(ctx, cfg, fn)
}

// withDefaults applies default values to config.
func withDefaults(cfg Config) Config {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.InitialDelay < 0 {
		cfg.InitialDelay = 0
	}
	if cfg.MaxDelay < 0 {
		cfg.MaxDelay = 0
	}
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = 2.0
	}
	if cfg.Wait == nil {
		cfg.Wait = sleep
	}
	return cfg
}

// sleep waits for d, returning early with ctx.Err() if ctx is done first.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// addJitter adds randomness to a duration.
func addJitter(d time.Duration, jitter float64) time.Duration {
	if jitter <= 0 || d <= 0 {
		return d
	}
	// Add +/- jitter%
	delta := float64(d) * jitter
	min := float64(d) - delta
	max := float64(d) + delta
	return time.Duration(min + rand.Float64()*(max-min))
}

// Backoff strategies.

// ExponentialBackoff returns a config with exponential backoff.
func ExponentialBackoff(initial, max time.Duration, multiplier float64) Config {
	return Config{
		MaxAttempts:  5,
		InitialDelay: initial,
		MaxDelay:     max,
		Multiplier:   multiplier,
		Jitter:       0.1,
	}
}

// ConstantBackoff returns a config with constant delay between retries.
func ConstantBackoff(delay time.Duration, attempts int) Config {
	return Config{
		MaxAttempts:  attempts,
		InitialDelay: delay,
		MaxDelay:     delay,
		Multiplier:   1.0,
	}
}
