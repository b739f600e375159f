// Package retrylimit provides adaptive client-side rate limiting and retry
// for outbound API calls. The limiter speeds up while requests succeed and
// backs off when the remote signals overload, so a flaky upstream is never
// hammered. Works with any error type; HTTP-aware errors get special
// handling for 429 and 5xx.
package retrylimit

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// AdaptiveLimiter adjusts its rate from request outcomes. Thread-safe.
type AdaptiveLimiter struct {
	mu        sync.RWMutex
	limiter   *rate.Limiter
	minLimit  rate.Limit
	maxLimit  rate.Limit
	stepUp    rate.Limit
	stepDown  float64
	lastError time.Time
}

// NewAdaptiveLimiter creates a limiter starting at initial requests per
// second, bounded by min and max, incremented by stepUp on success and
// multiplied by stepDown (e.g. 0.5) on overload.
func NewAdaptiveLimiter(initial, min, max rate.Limit, stepUp rate.Limit, stepDown float64) *AdaptiveLimiter {
	if initial < 1 {
		initial = 1
	}
	if min < 1 {
		min = 1
	}
	burst := int(initial)
	if burst < 1 {
		burst = 1
	}
	return &AdaptiveLimiter{
		limiter:  rate.NewLimiter(initial, burst),
		minLimit: min,
		maxLimit: max,
		stepUp:   stepUp,
		stepDown: stepDown,
	}
}

// Wait blocks until a token is available or ctx is done.
func (a *AdaptiveLimiter) Wait(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return a.limiter.Wait(ctx)
}

// Success nudges the rate up after a successful request.
func (a *AdaptiveLimiter) Success() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if time.Since(a.lastError) > 10*time.Second {
		a.adjust(a.limiter.Limit() + a.stepUp)
	}
}

// Overloaded cuts the rate after a failure indicating remote overload.
func (a *AdaptiveLimiter) Overloaded() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lastError = time.Now()
	a.adjust(rate.Limit(float64(a.limiter.Limit()) * a.stepDown))
}

// CurrentLimit returns the current requests per second.
func (a *AdaptiveLimiter) CurrentLimit() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return float64(a.limiter.Limit())
}

func (a *AdaptiveLimiter) adjust(newLimit rate.Limit) {
	if newLimit > a.maxLimit {
		newLimit = a.maxLimit
	} else if newLimit < a.minLimit {
		newLimit = a.minLimit
	}
	if newLimit != a.limiter.Limit() {
		a.limiter.SetLimit(newLimit)
		burst := int(newLimit)
		if burst < 1 {
			burst = 1
		}
		a.limiter.SetBurst(burst)
	}
}

// HTTPError is implemented by errors carrying an HTTP status code. Optional;
// plain errors retry with the default backoff.
type HTTPError interface {
	error
	StatusCode() int
}

// Fatal wraps an error that must stop retries immediately.
type Fatal struct {
	Err error
}

func (f *Fatal) Error() string { return f.Err.Error() }
func (f *Fatal) Unwrap() error { return f.Err }

// Config tunes WithRetry.
type Config struct {
	MaxAttempts  int // 0 means DefaultConfig's cap
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	Jitter       bool
}

// DefaultConfig returns the retry settings used by the game API client.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  5,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

// WithRetry runs fn with exponential backoff, pacing attempts through lim
// when non-nil. Stops on success, Fatal errors, context cancellation, or the
// attempt cap.
func WithRetry(ctx context.Context, fn func() error, lim *AdaptiveLimiter) error {
	return WithRetryConfig(ctx, fn, lim, DefaultConfig())
}

// WithRetryConfig is WithRetry with explicit settings.
func WithRetryConfig(ctx context.Context, fn func() error, lim *AdaptiveLimiter, cfg Config) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultConfig().MaxAttempts
	}

	delay := cfg.InitialDelay
	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if lim != nil {
			if err := lim.Wait(ctx); err != nil {
				return err
			}
		}

		err := fn()
		if err == nil {
			if lim != nil {
				lim.Success()
			}
			return nil
		}

		var fatal *Fatal
		if errors.As(err, &fatal) {
			return fatal.Err
		}

		lastErr = err
		if lim != nil && isOverload(err) {
			lim.Overloaded()
		}

		next := delay
		if cfg.Jitter && delay > 0 {
			next = delay + time.Duration(rand.Int63n(int64(delay/4)+1))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(next):
		}

		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	return fmt.Errorf("max attempts (%d) exceeded: %w", cfg.MaxAttempts, lastErr)
}

func isOverload(err error) bool {
	var httpErr HTTPError
	if errors.As(err, &httpErr) {
		code := httpErr.StatusCode()
		return code == http.StatusTooManyRequests || (code >= 500 && code < 600)
	}
	return false
}
