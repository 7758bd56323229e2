package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jwebster45206/story-forge/internal/logger"
	"github.com/jwebster45206/story-forge/internal/services"
)

var (
	// ErrEmptyResponse is returned by a unit that produced nothing usable.
	ErrEmptyResponse = errors.New("empty response")
	// ErrRetryLimitExceeded wraps the last error once every attempt has failed.
	ErrRetryLimitExceeded = errors.New("retry limit exceeded")
	// ErrRateLimitExceeded is returned once rate-limit waits exhaust the wait budget.
	ErrRateLimitExceeded = errors.New("rate limit wait budget exceeded")
)

const (
	DefaultMaxRetries = 10
	MinBackoff        = 10 * time.Second
	MaxBackoff        = 60 * time.Second
	RateLimitBudget   = 15 * time.Minute
	// Cooldown is how long the command layer sleeps before exiting on ErrRateLimitExceeded.
	Cooldown = 15 * time.Minute
)

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the real Sleeper.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Policy configures Do.
type Policy struct {
	MaxRetries int
	WaitTime   time.Duration
	MaxBackoff time.Duration
	Budget     time.Duration

	// Immediate errors are retried without sleeping. ErrEmptyResponse always is.
	Immediate []error

	Sleep  Sleeper
	Logger *slog.Logger
}

// NewPolicy returns a policy with the standard backoff limits.
func NewPolicy(maxRetries int, waitTime time.Duration, log *slog.Logger, immediate ...error) Policy {
	return Policy{
		MaxRetries: maxRetries,
		WaitTime:   waitTime,
		MaxBackoff: MaxBackoff,
		Budget:     RateLimitBudget,
		Immediate:  immediate,
		Sleep:      Sleep,
		Logger:     log,
	}
}

func (p Policy) withDefaults() Policy {
	if p.MaxRetries <= 0 {
		p.MaxRetries = DefaultMaxRetries
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = MaxBackoff
	}
	if p.Budget <= 0 {
		p.Budget = RateLimitBudget
	}
	if p.Sleep == nil {
		p.Sleep = Sleep
	}
	if p.Logger == nil {
		p.Logger = slog.Default()
	}
	return p
}

func (p Policy) isImmediate(err error) bool {
	if errors.Is(err, ErrEmptyResponse) {
		return true
	}
	for _, target := range p.Immediate {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Do runs fn until it succeeds or the policy gives up.
//
// Immediate errors are retried at once. Rate-limited and transient backend
// errors sleep min(backoff, MaxBackoff, budget left) and do not use up an
// attempt; when the budget is spent Do returns ErrRateLimitExceeded. Any
// other error sleeps the current backoff. Errors from a nested Do that
// already gave up are returned as they are. Backoff starts at
// max(WaitTime, MinBackoff) and doubles up to MaxBackoff.
func Do[T any](ctx context.Context, p Policy, unit string, fn func(ctx context.Context) (T, error)) (T, error) {
	p = p.withDefaults()
	var zero T

	backoff := max(p.WaitTime, MinBackoff)
	var waited time.Duration
	var lastErr error

	for attempt := 1; attempt <= p.MaxRetries; {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err
		log := p.Logger.With("unit", unit, "attempt", attempt, "max_retries", p.MaxRetries, "error", err)

		switch {
		case errors.Is(err, context.Canceled):
			return zero, err

		// A nested unit already gave up.
		case errors.Is(err, ErrRateLimitExceeded), errors.Is(err, ErrRetryLimitExceeded):
			return zero, err

		case p.isImmediate(err):
			logger.Warning(log, "Invalid result, retrying")
			attempt++

		case services.IsRetryable(err):
			if waited >= p.Budget {
				return zero, fmt.Errorf("%w after waiting %s: %w", ErrRateLimitExceeded, waited, err)
			}
			d := min(backoff, p.MaxBackoff, p.Budget-waited)
			logger.Warning(log, "Backend busy, waiting", "wait", d, "kind", services.KindOf(err))
			if err := p.Sleep(ctx, d); err != nil {
				return zero, err
			}
			waited += d
			backoff = min(backoff*2, p.MaxBackoff)

		default:
			logger.Error(log, "Attempt failed")
			attempt++
			if attempt <= p.MaxRetries {
				if err := p.Sleep(ctx, backoff); err != nil {
					return zero, err
				}
				backoff = min(backoff*2, p.MaxBackoff)
			}
		}
	}

	return zero, fmt.Errorf("%s: %w after %d attempts: %w", unit, ErrRetryLimitExceeded, p.MaxRetries, lastErr)
}
