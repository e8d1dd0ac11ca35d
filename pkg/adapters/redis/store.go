// Package redis provides the durable adapters: a thred store, an audit
// log appender, a distributed per-thred lock and a Redis Streams queue
// transport.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/weftworks/weft/pkg/domain"
)

// Store implements ports.ThredStore and ports.LogStore on Redis. Thred
// records are JSON values indexed by a ZSET so List stays cheap; audit
// records append to a per-thred list.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

// Option configures the store.
type Option func(*Store)

// WithTTL sets an expiration for thred records. Zero keeps them until
// deleted.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) { s.ttl = ttl }
}

// WithPrefix overrides the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) { s.prefix = prefix }
}

// NewStore creates a store from an existing client.
func NewStore(client *backend.Client, opts ...Option) *Store {
	s := &Store{
		client: client,
		prefix: "weft:thred:",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) key(id string) string    { return s.prefix + id }
func (s *Store) logKey(id string) string { return s.prefix + "log:" + id }
func (s *Store) indexKey() string        { return s.prefix + "index" }

// far enough that an unexpiring record never falls out of the index.
const indexHorizon = 4102444800 // 2100-01-01

// Save persists the record and refreshes its index entry.
func (s *Store) Save(ctx context.Context, t *domain.Thred) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to marshal thred %s: %w", t.ID, err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.key(t.ID), data, s.ttl)

	score := float64(indexHorizon)
	if s.ttl > 0 {
		score = float64(time.Now().Add(s.ttl).Unix())
	}
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{Score: score, Member: t.ID})

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save thred %s: %w", t.ID, err)
	}
	return nil
}

// Load retrieves a record.
func (s *Store) Load(ctx context.Context, id string) (*domain.Thred, error) {
	val, err := s.client.Get(ctx, s.key(id)).Result()
	if err != nil {
		if err == backend.Nil {
			return nil, domain.ErrThredNotFound
		}
		return nil, fmt.Errorf("failed to load thred %s: %w", id, err)
	}

	var t domain.Thred
	if err := json.Unmarshal([]byte(val), &t); err != nil {
		return nil, fmt.Errorf("failed to unmarshal thred %s: %w", id, err)
	}
	return &t, nil
}

// Delete removes the record and its index entry. The audit log is kept.
func (s *Store) Delete(ctx context.Context, id string) error {
	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.key(id))
	pipe.ZRem(ctx, s.indexKey(), id)
	_, err := pipe.Exec(ctx)
	return err
}

// List returns known thred ids, lazily pruning expired index entries.
func (s *Store) List(ctx context.Context) ([]string, error) {
	now := float64(time.Now().Unix())
	if err := s.client.ZRemRangeByScore(ctx, s.indexKey(), "-inf", fmt.Sprintf("%f", now)).Err(); err != nil {
		return nil, fmt.Errorf("failed to prune thred index: %w", err)
	}

	ids, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list threds: %w", err)
	}
	return ids, nil
}

// Append adds an audit record to the thred's transition log.
func (s *Store) Append(ctx context.Context, rec *domain.ThredLogRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal log record: %w", err)
	}
	if err := s.client.RPush(ctx, s.logKey(rec.ThredID), data).Err(); err != nil {
		return fmt.Errorf("failed to append log record for %s: %w", rec.ThredID, err)
	}
	return nil
}

// Close closes the underlying client.
func (s *Store) Close() error { return s.client.Close() }
