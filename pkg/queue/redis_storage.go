package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisStorage implements the dispatcher, worker, and reporter storage
// interfaces on top of Redis. Each tier is one list (RPUSH to append, BLPOP
// to claim); status records are plain keys with a retention TTL. All
// cross-worker coordination reduces to the atomicity of these commands, so
// workers need no shared in-process state.
type RedisStorage struct {
	client redis.UniversalClient
	prefix string
}

// RedisStorageOption is a functional option for configuring RedisStorage
type RedisStorageOption func(*RedisStorage)

// WithKeyPrefix sets the namespace prefix for all keys (default "jobs").
func WithKeyPrefix(prefix string) RedisStorageOption {
	return func(s *RedisStorage) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// NewRedisStorage creates a Redis-backed storage using the given client.
func NewRedisStorage(client redis.UniversalClient, opts ...RedisStorageOption) (*RedisStorage, error) {
	if client == nil {
		return nil, ErrStorageNil
	}

	s := &RedisStorage{
		client: client,
		prefix: "jobs",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *RedisStorage) queueKey(tier Tier) string {
	return s.prefix + ":queue:" + string(tier)
}

func (s *RedisStorage) statusKey(id uuid.UUID) string {
	return s.prefix + ":status:" + id.String()
}

// CreateStatus implements DispatcherStorage.
func (s *RedisStorage) CreateStatus(ctx context.Context, status *Status, retention time.Duration) error {
	b, err := json.Marshal(status)
	if err != nil {
		return errors.Join(ErrSerialization, err)
	}
	return s.storeErr(s.client.Set(ctx, s.statusKey(status.ID), b, retention).Err())
}

// Enqueue implements DispatcherStorage. The single RPUSH makes the append
// atomic with respect to concurrent enqueuers.
func (s *RedisStorage) Enqueue(ctx context.Context, env *Envelope) error {
	b, err := encodeEnvelope(env)
	if err != nil {
		return err
	}
	return s.storeErr(s.client.RPush(ctx, s.queueKey(env.Tier), b).Err())
}

// DequeueNext implements WorkerStorage. BLPOP inspects its keys in argument
// order and pops the head of the first non-empty list, which is exactly
// strict tier priority: a lower tier is never served while a higher one
// holds a job. The pop removes the envelope atomically, so no two callers
// can claim the same job.
func (s *RedisStorage) DequeueNext(ctx context.Context, tiers []Tier, block time.Duration) (*Envelope, error) {
	if len(tiers) == 0 {
		return nil, fmt.Errorf("%w: no tiers to dequeue from", ErrInvalidJob)
	}

	keys := make([]string, len(tiers))
	for i, tier := range tiers {
		keys[i] = s.queueKey(tier)
	}

	res, err := s.client.BLPop(ctx, block, keys...).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNoJob
		}
		return nil, s.storeErr(err)
	}

	// res is [key, payload]
	return decodeEnvelope([]byte(res[1]))
}

// MarkStarted implements WorkerStorage.
func (s *RedisStorage) MarkStarted(ctx context.Context, id uuid.UUID, at time.Time) error {
	return s.transition(ctx, id, StateStarted, func(status *Status) {
		status.StartedAt = &at
	})
}

// MarkFinished implements WorkerStorage.
func (s *RedisStorage) MarkFinished(ctx context.Context, id uuid.UUID, result []byte, at time.Time) error {
	return s.transition(ctx, id, StateFinished, func(status *Status) {
		status.Result = result
		status.EndedAt = &at
	})
}

// MarkFailed implements WorkerStorage.
func (s *RedisStorage) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string, at time.Time) error {
	return s.transition(ctx, id, StateFailed, func(status *Status) {
		status.Error = errMsg
		status.EndedAt = &at
	})
}

// MarkTimedOut implements WorkerStorage.
func (s *RedisStorage) MarkTimedOut(ctx context.Context, id uuid.UUID, errMsg string, at time.Time) error {
	return s.transition(ctx, id, StateTimedOut, func(status *Status) {
		status.Error = errMsg
		status.EndedAt = &at
	})
}

// GetStatus implements ReporterStorage.
func (s *RedisStorage) GetStatus(ctx context.Context, id uuid.UUID) (*Status, error) {
	b, err := s.client.Get(ctx, s.statusKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, s.storeErr(err)
	}

	var status Status
	if err := json.Unmarshal(b, &status); err != nil {
		return nil, errors.Join(ErrSerialization, err)
	}
	return &status, nil
}

// transition loads a status record, applies the state change if it is legal,
// and writes the record back preserving its TTL. The claiming worker is the
// record's only writer after creation, so load-modify-store does not race.
func (s *RedisStorage) transition(ctx context.Context, id uuid.UUID, next State, mutate func(*Status)) error {
	key := s.statusKey(id)

	b, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		return s.storeErr(err)
	}

	var status Status
	if err := json.Unmarshal(b, &status); err != nil {
		return errors.Join(ErrSerialization, err)
	}

	if !status.State.CanTransition(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, status.State, next)
	}

	status.State = next
	mutate(&status)

	nb, err := json.Marshal(status)
	if err != nil {
		return errors.Join(ErrSerialization, err)
	}
	return s.storeErr(s.client.Set(ctx, key, nb, redis.KeepTTL).Err())
}

// storeErr classifies driver failures. Context cancellation passes through
// untouched; anything else means the store is unreachable or misbehaving,
// which callers must be able to tell apart from empty and not-found results.
func (s *RedisStorage) storeErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return errors.Join(ErrStoreUnavailable, err)
}
