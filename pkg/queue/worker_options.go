package queue

import (
	"log/slog"
	"time"
)

// WorkerOption is a functional option for configuring a worker
type WorkerOption func(*workerOptions)

type workerOptions struct {
	tiers              []Tier
	pollInterval       time.Duration
	statusWriteRetries int
	statusWriteBackoff time.Duration
	logger             *slog.Logger
}

// WithWorkerTiers sets which tiers the worker pulls from, highest priority
// first. Sustained submission to a high tier starves lower tiers; that is a
// property of strict priority ordering, not a defect.
func WithWorkerTiers(tiers ...Tier) WorkerOption {
	return func(o *workerOptions) {
		if len(tiers) > 0 {
			o.tiers = tiers
		}
	}
}

// WithPollInterval bounds how long a single dequeue blocks while all tiers
// are empty.
func WithPollInterval(d time.Duration) WorkerOption {
	return func(o *workerOptions) {
		if d > 0 {
			o.pollInterval = d
		}
	}
}

// WithStatusWriteRetries sets how many extra attempts a terminal status
// write gets before the job is logged as orphaned.
func WithStatusWriteRetries(n int) WorkerOption {
	return func(o *workerOptions) {
		if n >= 0 {
			o.statusWriteRetries = n
		}
	}
}

// WithStatusWriteBackoff sets the pause between terminal write attempts.
func WithStatusWriteBackoff(d time.Duration) WorkerOption {
	return func(o *workerOptions) {
		if d > 0 {
			o.statusWriteBackoff = d
		}
	}
}

// WithWorkerLogger sets the logger for the worker.
func WithWorkerLogger(logger *slog.Logger) WorkerOption {
	return func(o *workerOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithWorkerConfig applies values loaded from the environment.
func WithWorkerConfig(cfg Config) WorkerOption {
	return func(o *workerOptions) {
		if cfg.PollInterval > 0 {
			o.pollInterval = cfg.PollInterval
		}
		if cfg.StatusWriteRetries >= 0 {
			o.statusWriteRetries = cfg.StatusWriteRetries
		}
	}
}
