package results

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Praises003/aether/internal/dispatch"
)

// RedisStore keeps results as JSON values that Redis expires after the TTL.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisStore creates a store using client. Keys are prefix+jobID.
func NewRedisStore(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) key(jobID string) string {
	return s.prefix + jobID
}

func (s *RedisStore) Put(ctx context.Context, jobID string, outcome dispatch.Outcome) error {
	if jobID == "" {
		return errors.New("job id cannot be empty")
	}

	data, err := json.Marshal(Entry{
		JobID:      jobID,
		Outcome:    outcome,
		RecordedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}

	if err := s.client.Set(ctx, s.key(jobID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, jobID string) (*Entry, error) {
	data, err := s.client.Get(ctx, s.key(jobID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("decoding result: %w", err)
	}
	return &e, nil
}

func (s *RedisStore) Delete(ctx context.Context, jobID string) error {
	if err := s.client.Del(ctx, s.key(jobID)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
