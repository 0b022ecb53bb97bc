// Package redis provides a Redis-backed CounterStore for multi-instance
// deployments. Counters live in a single hash with one field per calendar
// date; YYYY-MM-DD fields sort lexicographically, so range sums need no
// secondary index. Durability across restarts requires the Redis server to
// run with AOF or RDB persistence enabled.
package redis

import (
	"context"
	"sort"
	"strconv"

	goredis "github.com/redis/go-redis/v9"

	"cardmill/internal/quota/models"
	"cardmill/pkg/domain"
	dErrors "cardmill/pkg/domain-errors"
)

const defaultKey = "cardmill:usage"

// Store persists per-date counters in a Redis hash.
type Store struct {
	client goredis.Cmdable
	key    string
}

// Option configures Store.
type Option func(*Store)

// WithKey overrides the hash key (default "cardmill:usage").
func WithKey(key string) Option {
	return func(s *Store) { s.key = key }
}

// New creates a Redis-backed counter store.
func New(client goredis.Cmdable, opts ...Option) *Store {
	s := &Store{
		client: client,
		key:    defaultKey,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Get(ctx context.Context, date domain.Date) (int, error) {
	val, err := s.client.HGet(ctx, s.key, date.String()).Result()
	if err == goredis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeStorageUnavailable, "read usage counter")
	}
	count, err := strconv.Atoi(val)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeStorageUnavailable, "malformed usage counter")
	}
	return count, nil
}

func (s *Store) Set(ctx context.Context, date domain.Date, count int) error {
	if err := s.client.HSet(ctx, s.key, date.String(), count).Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeStorageUnavailable, "write usage counter")
	}
	return nil
}

func (s *Store) SumUpTo(ctx context.Context, date domain.Date) (int, error) {
	fields, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeStorageUnavailable, "sum usage counters")
	}

	cutoff := date.String()
	total := 0
	for field, val := range fields {
		if field > cutoff {
			continue
		}
		count, err := strconv.Atoi(val)
		if err != nil {
			return 0, dErrors.Wrap(err, dErrors.CodeStorageUnavailable, "malformed usage counter")
		}
		total += count
	}
	return total, nil
}

func (s *Store) List(ctx context.Context) ([]models.CounterRecord, error) {
	fields, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStorageUnavailable, "list usage counters")
	}

	records := make([]models.CounterRecord, 0, len(fields))
	for field, val := range fields {
		date, err := domain.ParseDate(field)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeStorageUnavailable, "malformed date in usage hash")
		}
		count, err := strconv.Atoi(val)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeStorageUnavailable, "malformed usage counter")
		}
		records = append(records, models.CounterRecord{Date: date, Count: count})
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Date.Before(records[j].Date)
	})
	return records, nil
}
