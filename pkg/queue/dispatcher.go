package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/drawscape/jobdispatch/pkg/async"
	"github.com/drawscape/jobdispatch/pkg/logger"
)

// DispatcherStorage defines the durable-store operations a dispatcher needs.
type DispatcherStorage interface {
	// CreateStatus persists a fresh status record with the given retention.
	CreateStatus(ctx context.Context, status *Status, retention time.Duration) error

	// Enqueue appends the envelope to its tier's queue.
	Enqueue(ctx context.Context, env *Envelope) error
}

// SubmitMode tells the caller how a submission was carried out.
type SubmitMode string

const (
	// ModeQueued means the job was persisted and will run on a worker.
	ModeQueued SubmitMode = "queued"

	// ModeSync means the durable store was unreachable and the job ran
	// synchronously in the caller's context (degraded mode).
	ModeSync SubmitMode = "sync"
)

// Receipt is returned by Submit. Status is a snapshot: queued for an
// asynchronous submission, terminal for a synchronous fallback run.
type Receipt struct {
	JobID  uuid.UUID
	Mode   SubmitMode
	Status *Status
}

// Dispatcher is the sole entry point application code uses to submit work.
// It validates the submission, persists a queued status record before the
// envelope becomes visible to workers, and enqueues on the requested tier.
// When the durable store is unreachable it degrades to synchronous in-caller
// execution instead of failing.
type Dispatcher struct {
	storage  DispatcherStorage
	registry *Registry

	tiers          []Tier
	defaultTier    Tier
	defaultTimeout time.Duration
	retention      time.Duration
	retryAttempts  int
	retryBackoff   time.Duration
	logger         *slog.Logger
}

// NewDispatcher creates a new Dispatcher.
func NewDispatcher(storage DispatcherStorage, opts ...DispatcherOption) (*Dispatcher, error) {
	if storage == nil {
		return nil, ErrStorageNil
	}

	options := &dispatcherOptions{
		tiers:          DefaultTiers,
		defaultTier:    TierDefault,
		defaultTimeout: 5 * time.Minute,
		retention:      24 * time.Hour,
		retryAttempts:  2,
		retryBackoff:   100 * time.Millisecond,
		logger:         slog.Default(),
	}

	for _, opt := range opts {
		opt(options)
	}

	return &Dispatcher{
		storage:        storage,
		registry:       options.registry,
		tiers:          options.tiers,
		defaultTier:    options.defaultTier,
		defaultTimeout: options.defaultTimeout,
		retention:      options.retention,
		retryAttempts:  options.retryAttempts,
		retryBackoff:   options.retryBackoff,
		logger:         options.logger,
	}, nil
}

// Submit validates and enqueues a job, returning a receipt with its tracking
// id. The status record is written before the envelope so a worker can never
// finish a job whose status does not exist yet.
//
// If the durable store stays unreachable after the configured retries, the
// task runs synchronously through the fallback registry. The receipt then
// reports ModeSync with a terminal status; if the fallback run itself failed,
// the task's own error is returned alongside the receipt.
func (d *Dispatcher) Submit(ctx context.Context, task string, args Arguments, opts ...SubmitOption) (*Receipt, error) {
	if strings.TrimSpace(task) == "" {
		return nil, fmt.Errorf("%w: empty task reference", ErrInvalidJob)
	}

	options := &submitOptions{
		tier:    d.defaultTier,
		timeout: d.defaultTimeout,
	}
	for _, opt := range opts {
		opt(options)
	}

	if !d.knownTier(options.tier) {
		return nil, fmt.Errorf("%w: unrecognized tier %q", ErrInvalidJob, options.tier)
	}
	if options.timeout <= 0 {
		return nil, fmt.Errorf("%w: timeout must be positive", ErrInvalidJob)
	}

	env := &Envelope{
		ID:        uuid.New(),
		Task:      task,
		Args:      args,
		Tier:      options.tier,
		Timeout:   options.timeout,
		CreatedAt: time.Now().UTC(),
	}

	// Serialization problems surface to the submitter before persistence.
	if _, err := encodeEnvelope(env); err != nil {
		return nil, err
	}

	status := &Status{
		ID:        env.ID,
		State:     StateQueued,
		Timeout:   env.Timeout,
		CreatedAt: env.CreatedAt,
	}

	err := d.withRetry(ctx, func() error {
		if err := d.storage.CreateStatus(ctx, status, d.retention); err != nil {
			return err
		}
		return d.storage.Enqueue(ctx, env)
	})
	if err == nil {
		return &Receipt{JobID: env.ID, Mode: ModeQueued, Status: status}, nil
	}
	if !errors.Is(err, ErrStoreUnavailable) {
		return nil, fmt.Errorf("failed to submit task %q: %w", task, err)
	}

	return d.runSync(ctx, env)
}

// knownTier reports whether the tier is part of the configured set.
func (d *Dispatcher) knownTier(tier Tier) bool {
	for _, t := range d.tiers {
		if t == tier {
			return true
		}
	}
	return false
}

// withRetry runs fn, retrying store-unavailable failures a bounded number of
// times with a fixed backoff.
func (d *Dispatcher) withRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt <= d.retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return errors.Join(ErrStoreUnavailable, ctx.Err())
			case <-time.After(d.retryBackoff):
			}
		}

		err = fn()
		if err == nil || !errors.Is(err, ErrStoreUnavailable) {
			return err
		}
	}
	return err
}

// runSync executes the task in the caller's context, trading asynchronicity
// for availability. The receipt it returns carries a terminal status built
// in memory; nothing is persisted.
func (d *Dispatcher) runSync(ctx context.Context, env *Envelope) (*Receipt, error) {
	d.logger.Warn("durable store unreachable, executing job synchronously",
		logger.JobID(env.ID),
		logger.Task(env.Task),
		logger.Tier(string(env.Tier)))

	if d.registry == nil {
		return nil, fmt.Errorf("%w: no fallback registry configured", ErrStoreUnavailable)
	}

	task, ok := d.registry.Resolve(env.Task)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTask, env.Task)
	}

	startedAt := time.Now().UTC()
	status := &Status{
		ID:        env.ID,
		State:     StateStarted,
		Timeout:   env.Timeout,
		CreatedAt: env.CreatedAt,
		StartedAt: &startedAt,
	}
	receipt := &Receipt{JobID: env.ID, Mode: ModeSync, Status: status}

	// A queued record may have been persisted before the enqueue failed.
	// Overwrite it with the synchronous outcome so a caller polling the
	// receipt's id does not see a phantom queued job. Best effort: the store
	// was unreachable moments ago and may still be.
	defer func() {
		writeCtx, cancel := context.WithTimeout(context.Background(), statusWriteTimeout)
		defer cancel()
		if err := d.storage.CreateStatus(writeCtx, status, d.retention); err != nil {
			d.logger.Warn("could not persist synchronous job outcome",
				logger.JobID(env.ID),
				logger.Error(err))
		}
	}()

	execCtx, cancel := context.WithTimeout(ctx, env.Timeout)
	defer cancel()

	future := async.Async(execCtx, env.Args, func(ctx context.Context, args Arguments) (result any, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic in task: %v", r)
			}
		}()
		return task.Execute(ctx, args)
	})
	result, execErr := future.AwaitWithTimeout(env.Timeout)

	endedAt := time.Now().UTC()
	status.EndedAt = &endedAt

	switch {
	case errors.Is(execErr, async.ErrTimeout), errors.Is(execErr, context.DeadlineExceeded):
		status.State = StateTimedOut
		status.Error = fmt.Sprintf("execution exceeded timeout of %s", env.Timeout)
		return receipt, fmt.Errorf("task %q timed out after %s", env.Task, env.Timeout)
	case execErr != nil:
		status.State = StateFailed
		status.Error = execErr.Error()
		return receipt, execErr
	}

	raw, err := marshalResult(result)
	if err != nil {
		status.State = StateFailed
		status.Error = err.Error()
		return receipt, err
	}

	status.State = StateFinished
	status.Result = raw
	return receipt, nil
}
