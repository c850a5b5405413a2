package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis"
)

const (
	jobKeyPrefix = "scribe:job:"
	jobIndexKey  = "scribe:jobs"
	maxTxRetries = 5
)

// RedisStore persists jobs as JSON strings with a TTL. A set indexes the ids
// for List; ids whose record has expired are dropped from it on read.
type RedisStore struct {
	rc  *redis.Client
	ttl time.Duration
}

// RedisOptions configures NewRedisStore.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// NewRedisStore connects to redis and verifies the connection with PING.
func NewRedisStore(opts RedisOptions) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping().Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", opts.Addr, err)
	}
	return NewRedisStoreWithClient(client, opts.TTL), nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rc: client, ttl: ttl}
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.rc.Close()
}

func jobKey(id string) string {
	return jobKeyPrefix + id
}

func (s *RedisStore) Create(ctx context.Context, job *Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to encode job: %w", err)
	}
	rc := s.rc.WithContext(ctx)
	ok, err := rc.SetNX(jobKey(job.ID), data, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to store job: %w", err)
	}
	if !ok {
		return ErrExists
	}
	if err := rc.SAdd(jobIndexKey, job.ID).Err(); err != nil {
		return fmt.Errorf("failed to index job: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Job, error) {
	data, err := s.rc.WithContext(ctx).Get(jobKey(id)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load job: %w", err)
	}
	return decodeJob(data)
}

// Update runs fn inside WATCH/MULTI so concurrent writers retry instead of
// overwriting each other.
func (s *RedisStore) Update(ctx context.Context, id string, fn func(*Job) error) (*Job, error) {
	key := jobKey(id)
	var updated *Job

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(key).Bytes()
		if err == redis.Nil {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		job, err := decodeJob(data)
		if err != nil {
			return err
		}
		if err := fn(job); err != nil {
			return err
		}
		job.UpdatedAt = time.Now()
		encoded, err := json.Marshal(job)
		if err != nil {
			return fmt.Errorf("failed to encode job: %w", err)
		}
		_, err = tx.Pipelined(func(pipe redis.Pipeliner) error {
			pipe.Set(key, encoded, s.ttl)
			return nil
		})
		if err == nil {
			updated = job
		}
		return err
	}

	rc := s.rc.WithContext(ctx)
	for i := 0; i < maxTxRetries; i++ {
		err := rc.Watch(txf, key)
		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			return nil, err
		}
		return updated, nil
	}
	return nil, fmt.Errorf("failed to update job %s: too much contention", id)
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	rc := s.rc.WithContext(ctx)
	n, err := rc.Del(jobKey(id)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	if err := rc.SRem(jobIndexKey, id).Err(); err != nil {
		return fmt.Errorf("failed to unindex job: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *RedisStore) List(ctx context.Context) ([]*Job, error) {
	rc := s.rc.WithContext(ctx)
	ids, err := rc.SMembers(jobIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	out := make([]*Job, 0, len(ids))
	for _, id := range ids {
		job, err := s.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			rc.SRem(jobIndexKey, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	sortNewestFirst(out)
	return out, nil
}

func decodeJob(data []byte) (*Job, error) {
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to decode job: %w", err)
	}
	return &job, nil
}
