package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/drawscape/jobdispatch/pkg/async"
	"github.com/drawscape/jobdispatch/pkg/logger"
)

// statusWriteTimeout bounds each attempt to persist a status update. Status
// writes run on a detached context so a graceful shutdown can still record
// results of jobs that were in flight.
const statusWriteTimeout = 5 * time.Second

// WorkerStorage defines the durable-store operations a worker needs.
type WorkerStorage interface {
	// DequeueNext blocks until a job is available in the highest-priority
	// non-empty tier, or returns ErrNoJob once block elapses. Claiming is
	// atomic: no two callers receive the same envelope.
	DequeueNext(ctx context.Context, tiers []Tier, block time.Duration) (*Envelope, error)

	// MarkStarted records that execution began at the given time.
	MarkStarted(ctx context.Context, id uuid.UUID, at time.Time) error

	// MarkFinished records successful completion with the serialized result.
	MarkFinished(ctx context.Context, id uuid.UUID, result []byte, at time.Time) error

	// MarkFailed records a task-level failure.
	MarkFailed(ctx context.Context, id uuid.UUID, errMsg string, at time.Time) error

	// MarkTimedOut records that execution exceeded the job's timeout.
	MarkTimedOut(ctx context.Context, id uuid.UUID, errMsg string, at time.Time) error
}

// Worker continuously converts queued envelopes into completed work. Each
// worker runs one job at a time; concurrency scales with the number of
// worker instances, which share nothing and coordinate only through the
// durable store's atomic dequeue.
type Worker struct {
	storage  WorkerStorage
	registry *Registry
	workerID uuid.UUID

	tiers              []Tier
	pollInterval       time.Duration
	statusWriteRetries int
	statusWriteBackoff time.Duration
	logger             *slog.Logger

	mu     sync.Mutex
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// NewWorker creates a new worker pulling from the given storage and
// resolving task references through the given registry.
func NewWorker(storage WorkerStorage, registry *Registry, opts ...WorkerOption) (*Worker, error) {
	if storage == nil {
		return nil, ErrStorageNil
	}
	if registry == nil {
		return nil, ErrRegistryNil
	}

	options := &workerOptions{
		tiers:              DefaultTiers,
		pollInterval:       5 * time.Second,
		statusWriteRetries: 3,
		statusWriteBackoff: 250 * time.Millisecond,
		logger:             slog.Default(),
	}

	for _, opt := range opts {
		opt(options)
	}

	return &Worker{
		storage:            storage,
		registry:           registry,
		workerID:           uuid.New(),
		tiers:              options.tiers,
		pollInterval:       options.pollInterval,
		statusWriteRetries: options.statusWriteRetries,
		statusWriteBackoff: options.statusWriteBackoff,
		logger:             options.logger,
	}, nil
}

// Start begins processing jobs in the background.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cancel != nil {
		return fmt.Errorf("worker already started")
	}
	if w.registry.Len() == 0 {
		return ErrNoTasks
	}

	w.ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(1)
	go w.run()

	w.logger.Info("worker started",
		logger.WorkerID(w.workerID),
		slog.Any("tiers", w.tiers))

	return nil
}

// Stop cancels the claim loop and waits for the in-flight job, if any, to
// finish reporting.
func (w *Worker) Stop() error {
	w.mu.Lock()
	if w.cancel == nil {
		w.mu.Unlock()
		return fmt.Errorf("worker not started")
	}
	cancel := w.cancel
	w.cancel = nil
	w.mu.Unlock()

	cancel()
	w.wg.Wait()

	w.logger.Info("worker stopped", logger.WorkerID(w.workerID))

	return nil
}

// Run starts the worker and returns a function suitable for errgroup.
func (w *Worker) Run(ctx context.Context) func() error {
	return func() error {
		if err := w.Start(ctx); err != nil {
			return err
		}

		<-ctx.Done()

		return w.Stop()
	}
}

// run is the claim loop: claim, execute, report, repeat.
func (w *Worker) run() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		default:
		}

		env, err := w.storage.DequeueNext(w.ctx, w.tiers, w.pollInterval)
		if err != nil {
			if errors.Is(err, ErrNoJob) {
				continue
			}
			if w.ctx.Err() != nil {
				return
			}

			w.logger.Error("failed to claim job",
				logger.WorkerID(w.workerID),
				logger.Error(err))

			// Back off before polling again so a dead store is not hammered.
			select {
			case <-w.ctx.Done():
				return
			case <-time.After(w.pollInterval):
			}
			continue
		}

		w.process(env)
	}
}

// process executes a claimed envelope and reports exactly one terminal state.
func (w *Worker) process(env *Envelope) {
	startedAt := time.Now().UTC()

	w.logger.Debug("claimed job",
		logger.WorkerID(w.workerID),
		logger.JobID(env.ID),
		logger.Task(env.Task),
		logger.Tier(string(env.Tier)))

	started := true
	if err := w.retryWrite(func(ctx context.Context) error {
		return w.storage.MarkStarted(ctx, env.ID, startedAt)
	}); err != nil {
		// The job is already claimed; dropping it here would lose it, so
		// execution proceeds and the terminal write re-attempts the started
		// transition first (a record still in queued cannot go terminal).
		started = false
		w.logger.Error("failed to mark job started",
			logger.WorkerID(w.workerID),
			logger.JobID(env.ID),
			logger.Error(err))
	}

	task, ok := w.registry.Resolve(env.Task)
	if !ok {
		w.logger.Error("no task registered for reference",
			logger.WorkerID(w.workerID),
			logger.JobID(env.ID),
			logger.Task(env.Task))
		w.reportTerminal(env, started, startedAt, func(ctx context.Context, at time.Time) error {
			return w.storage.MarkFailed(ctx, env.ID, fmt.Sprintf("%s: %s", ErrUnknownTask, env.Task), at)
		})
		return
	}

	execCtx, cancelExec := context.WithTimeout(context.Background(), env.Timeout)
	defer cancelExec()

	future := async.Async(execCtx, env.Args, func(ctx context.Context, args Arguments) (result any, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic in task: %v", r)
			}
		}()
		return task.Execute(ctx, args)
	})
	result, execErr := future.AwaitWithTimeout(env.Timeout)
	duration := time.Since(startedAt)

	switch {
	case errors.Is(execErr, async.ErrTimeout), errors.Is(execErr, context.DeadlineExceeded):
		// The task body may still be running; its eventual result is
		// discarded. Cancellation is cooperative, not preemptive.
		w.logger.Warn("job timed out",
			logger.WorkerID(w.workerID),
			logger.JobID(env.ID),
			logger.Task(env.Task),
			slog.Duration("timeout", env.Timeout))
		w.reportTerminal(env, started, startedAt, func(ctx context.Context, at time.Time) error {
			msg := fmt.Sprintf("execution exceeded timeout of %s", env.Timeout)
			return w.storage.MarkTimedOut(ctx, env.ID, msg, at)
		})

	case execErr != nil:
		w.logger.Error("job failed",
			logger.WorkerID(w.workerID),
			logger.JobID(env.ID),
			logger.Task(env.Task),
			slog.Duration("duration", duration),
			logger.Error(execErr))
		w.reportTerminal(env, started, startedAt, func(ctx context.Context, at time.Time) error {
			return w.storage.MarkFailed(ctx, env.ID, execErr.Error(), at)
		})

	default:
		raw, err := marshalResult(result)
		if err != nil {
			w.reportTerminal(env, started, startedAt, func(ctx context.Context, at time.Time) error {
				return w.storage.MarkFailed(ctx, env.ID, err.Error(), at)
			})
			return
		}

		w.logger.Info("job finished",
			logger.WorkerID(w.workerID),
			logger.JobID(env.ID),
			logger.Task(env.Task),
			logger.Tier(string(env.Tier)),
			slog.Duration("duration", duration))
		w.reportTerminal(env, started, startedAt, func(ctx context.Context, at time.Time) error {
			return w.storage.MarkFinished(ctx, env.ID, raw, at)
		})
	}
}

// reportTerminal persists a terminal state, retrying a bounded number of
// times. A record whose started transition was never recorded is brought
// through started first; writing the terminal state directly over queued is
// illegal. If every attempt fails the job is orphaned: its status stays
// behind until retention expiry and the reporter surfaces it as unknown.
func (w *Worker) reportTerminal(env *Envelope, started bool, startedAt time.Time, write func(ctx context.Context, at time.Time) error) {
	endedAt := time.Now().UTC()

	var err error
	for attempt := 0; attempt <= w.statusWriteRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(w.statusWriteBackoff)
		}

		if !started {
			if err = w.writeStatus(func(ctx context.Context) error {
				return w.storage.MarkStarted(ctx, env.ID, startedAt)
			}); err != nil {
				continue
			}
			started = true
		}

		if err = w.writeStatus(func(ctx context.Context) error {
			return write(ctx, endedAt)
		}); err == nil {
			return
		}
	}

	w.logger.Error("job orphaned: terminal status could not be persisted",
		logger.WorkerID(w.workerID),
		logger.JobID(env.ID),
		logger.Task(env.Task),
		logger.Error(err))
}

// retryWrite runs a status write with the worker's bounded retry policy.
func (w *Worker) retryWrite(fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; attempt <= w.statusWriteRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(w.statusWriteBackoff)
		}
		if err = w.writeStatus(fn); err == nil {
			return nil
		}
	}
	return err
}

// writeStatus runs a single status write on a detached, bounded context.
func (w *Worker) writeStatus(fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), statusWriteTimeout)
	defer cancel()
	return fn(ctx)
}
