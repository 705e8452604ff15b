// Package retrylimit provides an adaptive rate limiter and a retry helper
// for outbound HTTP clients. The limit rises on success and is cut on
// failure, so a struggling upstream is probed gently.
package retrylimit

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// AdaptiveLimiter manages a request rate that adjusts with request outcomes.
// Safe for concurrent use.
type AdaptiveLimiter struct {
	mu        sync.Mutex
	limiter   *rate.Limiter
	minLimit  rate.Limit
	maxLimit  rate.Limit
	stepUp    rate.Limit
	stepDown  float64
	lastError time.Time
}

// NewAdaptiveLimiter creates a limiter starting at initial requests per
// second, bounded by [min, max]. stepUp is added on success, stepDown is the
// multiplier applied on failure (e.g. 0.5 to halve).
func NewAdaptiveLimiter(initial, min, max, stepUp rate.Limit, stepDown float64) *AdaptiveLimiter {
	if initial < min {
		initial = min
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

// Wait blocks until a token is available or the context is done.
func (a *AdaptiveLimiter) Wait(ctx context.Context) error {
	return a.limiter.Wait(ctx)
}

// Success raises the rate, unless an error happened very recently.
func (a *AdaptiveLimiter) Success() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if time.Since(a.lastError) > 10*time.Second {
		a.set(a.limiter.Limit() + a.stepUp)
	}
}

// Throttle cuts the rate after a failure or overload response.
func (a *AdaptiveLimiter) Throttle() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lastError = time.Now()
	a.set(rate.Limit(float64(a.limiter.Limit()) * a.stepDown))
}

// CurrentLimit returns the current requests per second.
func (a *AdaptiveLimiter) CurrentLimit() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return float64(a.limiter.Limit())
}

func (a *AdaptiveLimiter) set(l rate.Limit) {
	if l > a.maxLimit {
		l = a.maxLimit
	}
	if l < a.minLimit {
		l = a.minLimit
	}
	if l != a.limiter.Limit() {
		a.limiter.SetLimit(l)
		burst := int(l)
		if burst < 1 {
			burst = 1
		}
		a.limiter.SetBurst(burst)
	}
}

// HTTPError is implemented by errors that carry an HTTP status code.
type HTTPError interface {
	error
	StatusCode() int
}

// Fatal wraps an error that must not be retried.
type Fatal struct{ Err error }

func (f *Fatal) Error() string { return f.Err.Error() }
func (f *Fatal) Unwrap() error { return f.Err }

// WithRetry runs fn up to maxAttempts times with exponential backoff and
// jitter, waiting on lim before each attempt. A *Fatal error or context
// cancellation stops immediately. 429 responses throttle the limiter and
// retry after a short fixed delay.
func WithRetry(ctx context.Context, fn func() error, lim *AdaptiveLimiter, maxAttempts int) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	delay := 500 * time.Millisecond
	const maxDelay = 10 * time.Second

	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if lim != nil {
			if werr := lim.Wait(ctx); werr != nil {
				return werr
			}
		}

		err = fn()
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
		if attempt == maxAttempts {
			break
		}

		wait := delay + jitter(delay)
		if isRateLimited(err) {
			if lim != nil {
				lim.Throttle()
			}
			wait = 100 * time.Millisecond
		} else if isServerError(err) && lim != nil {
			lim.Throttle()
		}
		log.Warn().Int("attempt", attempt).Err(err).Dur("sleep", wait).Msg("request failed, retrying")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}
	return fmt.Errorf("after %d attempts: %w", maxAttempts, err)
}

func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(d / 4)))
}

func isRateLimited(err error) bool {
	var he HTTPError
	return errors.As(err, &he) && he.StatusCode() == http.StatusTooManyRequests
}

func isServerError(err error) bool {
	var he HTTPError
	return errors.As(err, &he) && he.StatusCode() >= 500 && he.StatusCode() < 600
}
