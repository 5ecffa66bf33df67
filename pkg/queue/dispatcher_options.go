package queue

import (
	"log/slog"
	"time"
)

// DispatcherOption is a functional option for configuring a Dispatcher
type DispatcherOption func(*dispatcherOptions)

type dispatcherOptions struct {
	registry       *Registry
	tiers          []Tier
	defaultTier    Tier
	defaultTimeout time.Duration
	retention      time.Duration
	retryAttempts  int
	retryBackoff   time.Duration
	logger         *slog.Logger
}

// WithTiers sets the recognized tier set, highest priority first. Submissions
// naming any other tier are rejected.
func WithTiers(tiers ...Tier) DispatcherOption {
	return func(o *dispatcherOptions) {
		if len(tiers) > 0 {
			o.tiers = tiers
		}
	}
}

// WithDefaultTier sets the tier used when a submission names none.
func WithDefaultTier(tier Tier) DispatcherOption {
	return func(o *dispatcherOptions) {
		if tier != "" {
			o.defaultTier = tier
		}
	}
}

// WithDefaultTimeout sets the execution timeout used when a submission names none.
func WithDefaultTimeout(d time.Duration) DispatcherOption {
	return func(o *dispatcherOptions) {
		if d > 0 {
			o.defaultTimeout = d
		}
	}
}

// WithRetention sets how long status records and results are kept.
func WithRetention(d time.Duration) DispatcherOption {
	return func(o *dispatcherOptions) {
		if d > 0 {
			o.retention = d
		}
	}
}

// WithStoreRetry bounds how hard Submit tries before declaring the store
// unavailable: attempts additional tries after the first failure, with a
// fixed backoff between them.
func WithStoreRetry(attempts int, backoff time.Duration) DispatcherOption {
	return func(o *dispatcherOptions) {
		if attempts >= 0 {
			o.retryAttempts = attempts
		}
		if backoff > 0 {
			o.retryBackoff = backoff
		}
	}
}

// WithFallbackRegistry enables synchronous in-caller execution when the
// durable store is unreachable. Without it, Submit surfaces
// ErrStoreUnavailable instead of degrading.
func WithFallbackRegistry(registry *Registry) DispatcherOption {
	return func(o *dispatcherOptions) {
		if registry != nil {
			o.registry = registry
		}
	}
}

// WithLogger sets the logger for the dispatcher.
func WithLogger(logger *slog.Logger) DispatcherOption {
	return func(o *dispatcherOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithDispatcherConfig applies values loaded from the environment.
func WithDispatcherConfig(cfg Config) DispatcherOption {
	return func(o *dispatcherOptions) {
		if cfg.DefaultTimeout > 0 {
			o.defaultTimeout = cfg.DefaultTimeout
		}
		if cfg.Retention > 0 {
			o.retention = cfg.Retention
		}
		if cfg.StoreRetryAttempts >= 0 {
			o.retryAttempts = cfg.StoreRetryAttempts
		}
		if cfg.StoreRetryBackoff > 0 {
			o.retryBackoff = cfg.StoreRetryBackoff
		}
	}
}

// SubmitOption is a functional option for the Submit method
type SubmitOption func(*submitOptions)

type submitOptions struct {
	tier    Tier
	timeout time.Duration
}

// WithTier routes the job to a specific tier.
func WithTier(tier Tier) SubmitOption {
	return func(o *submitOptions) {
		if tier != "" {
			o.tier = tier
		}
	}
}

// WithTimeout overrides the maximum wall-clock duration the job may run.
func WithTimeout(d time.Duration) SubmitOption {
	return func(o *submitOptions) {
		if d > 0 {
			o.timeout = d
		}
	}
}
