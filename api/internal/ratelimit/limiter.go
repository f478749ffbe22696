// Package ratelimit bounds the request rate per client identity across
// two independent fixed windows: a short one that catches bursts and a
// long one that catches slow drip abuse.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"chat-gate/api/internal/store"
)

const (
	ScopeMinute = "minute"
	ScopeDay    = "day"

	minuteWindow = time.Minute
	dayWindow    = 24 * time.Hour
)

type Limiter struct {
	counters  store.Counter
	perMinute int
	perDay    int
	now       func() time.Time
	log       zerolog.Logger
}

// New builds a limiter. A nil now defaults to time.Now; tests inject a
// fixed clock.
func New(counters store.Counter, perMinute, perDay int, now func() time.Time, log zerolog.Logger) *Limiter {
	if now == nil {
		now = time.Now
	}
	return &Limiter{
		counters:  counters,
		perMinute: perMinute,
		perDay:    perDay,
		now:       now,
		log:       log,
	}
}

// Result reports the first exceeded window, if any.
type Result struct {
	Allowed    bool
	Scope      string
	RetryAfter int // seconds until the window lapses
}

// Check increments both window counters for the identity, then
// compares post-increment counts against the limits, minute first.
// Both counters advance even when the minute window rejects, so a
// burst also consumes daily quota. The request that pushes a count
// over its limit is itself the one rejected: the effective allowance
// is exactly the configured limit.
func (l *Limiter) Check(ctx context.Context, identity string) (Result, error) {
	now := l.now().UTC()
	minKey := fmt.Sprintf("ip:%s:min:%d", identity, now.Unix()/60)
	dayKey := fmt.Sprintf("ip:%s:day:%s", identity, now.Format("2006-01-02"))

	minCount, err := l.counters.Increment(ctx, minKey, minuteWindow)
	if err != nil {
		return Result{}, err
	}
	dayCount, err := l.counters.Increment(ctx, dayKey, dayWindow)
	if err != nil {
		return Result{}, err
	}

	if minCount > int64(l.perMinute) {
		l.log.Info().Str("identity", identity).Str("scope", ScopeMinute).
			Int64("count", minCount).Msg("rate limit exceeded")
		return Result{Scope: ScopeMinute, RetryAfter: int(minuteWindow.Seconds())}, nil
	}
	if dayCount > int64(l.perDay) {
		l.log.Info().Str("identity", identity).Str("scope", ScopeDay).
			Int64("count", dayCount).Msg("rate limit exceeded")
		return Result{Scope: ScopeDay, RetryAfter: int(dayWindow.Seconds())}, nil
	}
	return Result{Allowed: true}, nil
}
