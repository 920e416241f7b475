package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
)

const (
	redisSeqKey   = "baselinegate:jobs:seq"
	redisIndexKey = "baselinegate:jobs:index"
	redisJobKey   = "baselinegate:jobs:%s"
)

// RedisStore is a Store backed by Redis, for deployments where the queue
// owner must survive restarts. Jobs are stored as JSON values; a sorted set
// scored by Seq provides the insertion-order index the Store contract
// requires.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// NextSeq increments and returns the shared sequence counter.
func (s *RedisStore) NextSeq(ctx context.Context) (uint64, error) {
	n, err := s.client.Incr(ctx, redisSeqKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to advance sequence: %w", err)
	}
	return uint64(n), nil
}

// Put stores the job JSON and indexes it by sequence number.
func (s *RedisStore) Put(ctx context.Context, job *Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, fmt.Sprintf(redisJobKey, job.ID), data, 0)
	pipe.ZAdd(ctx, redisIndexKey, &redis.Z{Score: float64(job.Seq), Member: job.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store job: %w", err)
	}
	return nil
}

// Get returns the job or nil when absent.
func (s *RedisStore) Get(ctx context.Context, id string) (*Job, error) {
	data, err := s.client.Get(ctx, fmt.Sprintf(redisJobKey, id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch job: %w", err)
	}

	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	return &job, nil
}

// ListActive returns non-terminal jobs in submission order.
func (s *RedisStore) ListActive(ctx context.Context) ([]*Job, error) {
	return s.list(ctx, func(j *Job) bool { return !j.Status.Terminal() })
}

// ListTerminal returns terminal jobs in submission order.
func (s *RedisStore) ListTerminal(ctx context.Context) ([]*Job, error) {
	return s.list(ctx, func(j *Job) bool { return j.Status.Terminal() })
}

func (s *RedisStore) list(ctx context.Context, keep func(*Job) bool) ([]*Job, error) {
	ids, err := s.client.ZRange(ctx, redisIndexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read job index: %w", err)
	}

	var out []*Job
	for _, id := range ids {
		job, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if job == nil {
			continue // index entry for a deleted job
		}
		if keep(job) {
			out = append(out, job)
		}
	}
	return out, nil
}

// Delete removes the job and its index entry.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, fmt.Sprintf(redisJobKey, id))
	pipe.ZRem(ctx, redisIndexKey, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	return nil
}
