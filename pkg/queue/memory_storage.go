package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStorage implements all storage interfaces in memory for testing and
// local development. Semantics mirror RedisStorage: per-tier FIFO queues,
// atomic single-claim dequeue, status records that expire after their
// retention window.
type MemoryStorage struct {
	mu       sync.Mutex
	queues   map[Tier][]*Envelope
	statuses map[uuid.UUID]*statusEntry
}

type statusEntry struct {
	status    Status
	expiresAt time.Time
}

// NewMemoryStorage creates a new in-memory storage implementation.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		queues:   make(map[Tier][]*Envelope),
		statuses: make(map[uuid.UUID]*statusEntry),
	}
}

// CreateStatus implements DispatcherStorage.
func (ms *MemoryStorage) CreateStatus(ctx context.Context, status *Status, retention time.Duration) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	statusCopy := *status
	ms.statuses[status.ID] = &statusEntry{
		status:    statusCopy,
		expiresAt: time.Now().Add(retention),
	}
	return nil
}

// Enqueue implements DispatcherStorage.
func (ms *MemoryStorage) Enqueue(ctx context.Context, env *Envelope) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	envCopy := *env
	ms.queues[env.Tier] = append(ms.queues[env.Tier], &envCopy)
	return nil
}

// DequeueNext implements WorkerStorage. Tiers are scanned in the given order
// under one lock, so the head of the first non-empty tier is claimed by
// exactly one caller. While every tier is empty it polls until block elapses.
func (ms *MemoryStorage) DequeueNext(ctx context.Context, tiers []Tier, block time.Duration) (*Envelope, error) {
	if len(tiers) == 0 {
		return nil, fmt.Errorf("%w: no tiers to dequeue from", ErrInvalidJob)
	}

	deadline := time.Now().Add(block)
	for {
		if env := ms.tryDequeue(tiers); env != nil {
			return env, nil
		}
		if time.Now().After(deadline) {
			return nil, ErrNoJob
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func (ms *MemoryStorage) tryDequeue(tiers []Tier) *Envelope {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	for _, tier := range tiers {
		q := ms.queues[tier]
		if len(q) == 0 {
			continue
		}
		env := q[0]
		ms.queues[tier] = q[1:]
		return env
	}
	return nil
}

// MarkStarted implements WorkerStorage.
func (ms *MemoryStorage) MarkStarted(ctx context.Context, id uuid.UUID, at time.Time) error {
	return ms.transition(id, StateStarted, func(status *Status) {
		status.StartedAt = &at
	})
}

// MarkFinished implements WorkerStorage.
func (ms *MemoryStorage) MarkFinished(ctx context.Context, id uuid.UUID, result []byte, at time.Time) error {
	return ms.transition(id, StateFinished, func(status *Status) {
		status.Result = result
		status.EndedAt = &at
	})
}

// MarkFailed implements WorkerStorage.
func (ms *MemoryStorage) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string, at time.Time) error {
	return ms.transition(id, StateFailed, func(status *Status) {
		status.Error = errMsg
		status.EndedAt = &at
	})
}

// MarkTimedOut implements WorkerStorage.
func (ms *MemoryStorage) MarkTimedOut(ctx context.Context, id uuid.UUID, errMsg string, at time.Time) error {
	return ms.transition(id, StateTimedOut, func(status *Status) {
		status.Error = errMsg
		status.EndedAt = &at
	})
}

// GetStatus implements ReporterStorage.
func (ms *MemoryStorage) GetStatus(ctx context.Context, id uuid.UUID) (*Status, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	entry := ms.entry(id)
	if entry == nil {
		return nil, ErrNotFound
	}

	statusCopy := entry.status
	return &statusCopy, nil
}

func (ms *MemoryStorage) transition(id uuid.UUID, next State, mutate func(*Status)) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	entry := ms.entry(id)
	if entry == nil {
		return ErrNotFound
	}

	if !entry.status.State.CanTransition(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, entry.status.State, next)
	}

	entry.status.State = next
	mutate(&entry.status)
	return nil
}

// entry returns the live record for id, lazily evicting expired ones.
// Callers must hold ms.mu.
func (ms *MemoryStorage) entry(id uuid.UUID) *statusEntry {
	entry, exists := ms.statuses[id]
	if !exists {
		return nil
	}
	if time.Now().After(entry.expiresAt) {
		delete(ms.statuses, id)
		return nil
	}
	return entry
}
