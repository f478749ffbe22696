// Package postgres provides a counter store over Postgres, for
// deployments that already run a database but no Redis. The upsert
// resets rows whose window has lapsed, since Postgres has no native
// TTL; the increment is a single statement and therefore atomic.
package postgres

import (
	"context"
	"database/sql"
	"time"

	"chat-gate/api/internal/store"
)

type Store struct {
	db *sql.DB
}

var _ store.Counter = (*Store)(nil)

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Migrate creates the counter table when it does not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	const q = `
create table if not exists rate_counters (
	key        text primary key,
	count      bigint not null,
	expires_at timestamptz not null
)`
	_, err := s.db.ExecContext(ctx, q)
	return err
}

func (s *Store) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	const q = `
insert into rate_counters (key, count, expires_at)
values ($1, 1, now() + make_interval(secs => $2))
on conflict (key) do update
set count = case
		when rate_counters.expires_at <= now() then 1
		else rate_counters.count + 1
	end,
    expires_at = case
		when rate_counters.expires_at <= now() then now() + make_interval(secs => $2)
		else rate_counters.expires_at
	end
returning count`

	var count int64
	if err := s.db.QueryRowContext(ctx, q, key, ttl.Seconds()).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
