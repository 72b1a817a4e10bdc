package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Locker serializes ingestions per agent. The default pipeline runs
// without one, inheriting the unsynchronized read-modify-write of the
// agent configuration.
type Locker interface {
	// Acquire blocks until the agent lock is held or ctx is done. The
	// returned release function must be called exactly once.
	Acquire(ctx context.Context, agentID string) (release func(), err error)
}

// NoopLocker never blocks
type NoopLocker struct{}

func (NoopLocker) Acquire(_ context.Context, _ string) (func(), error) {
	return func() {}, nil
}

// KeyedMutex serializes ingestions per agent within one process
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewKeyedMutex creates an in-process per-agent mutex
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*sync.Mutex)}
}

func (k *KeyedMutex) Acquire(_ context.Context, agentID string) (func(), error) {
	k.mu.Lock()
	m, ok := k.locks[agentID]
	if !ok {
		m = &sync.Mutex{}
		k.locks[agentID] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock, nil
}

// RedisLocker serializes ingestions per agent across replicas using a
// SETNX lease with a TTL. The TTL caps how long a crashed holder can
// block others; it must exceed the pipeline's worst-case duration.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
	retry  time.Duration
}

// NewRedisLocker creates a Redis-backed per-agent lease
func NewRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &RedisLocker{
		client: client,
		ttl:    ttl,
		retry:  250 * time.Millisecond,
	}
}

func (r *RedisLocker) Acquire(ctx context.Context, agentID string) (func(), error) {
	key := fmt.Sprintf("ingest:lock:%s", agentID)
	token := uuid.New().String()

	for {
		ok, err := r.client.SetNX(ctx, key, token, r.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire agent lock: %w", err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(r.retry):
		}
	}

	release := func() {
		// Only delete the lease if we still hold it.
		const script = `if redis.call("get", KEYS[1]) == ARGV[1] then return redis.call("del", KEYS[1]) else return 0 end`
		if err := r.client.Eval(context.Background(), script, []string{key}, token).Err(); err != nil && err != redis.Nil {
			log.Warn().Err(err).Str("agent_id", agentID).Msg("Failed to release agent lock")
		}
	}
	return release, nil
}
