// Package store defines the counter port shared by all rate-limit
// backends. Counter records are the only durable state the gateway
// owns; keys are never deleted explicitly and lapse by TTL.
package store

import (
	"context"
	"time"
)

// Counter is an increment-and-get capability over a keyed store.
type Counter interface {
	// Increment atomically bumps the counter for key, creating it with
	// the given TTL when absent or expired, and returns the
	// post-increment value.
	Increment(ctx context.Context, key string, ttl time.Duration) (int64, error)
}
