package queue

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ReporterStorage defines the read-only store access the reporter needs.
type ReporterStorage interface {
	// GetStatus fetches a status record, returning ErrNotFound for ids that
	// are unknown or expired.
	GetStatus(ctx context.Context, id uuid.UUID) (*Status, error)
}

// Report is the caller-facing view of a job's progress.
type Report struct {
	ID        uuid.UUID  `json:"id"`
	Status    State      `json:"status"`
	Result    []byte     `json:"result,omitempty"`
	Error     string     `json:"error,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// Reporter translates stored job state into caller-facing reports. It never
// writes; the one piece of interpretation it adds is surfacing orphaned jobs
// as unknown once they exceed their expected maximum duration.
type Reporter struct {
	storage ReporterStorage
	grace   time.Duration
}

// NewReporter creates a new Reporter.
func NewReporter(storage ReporterStorage, opts ...ReporterOption) (*Reporter, error) {
	if storage == nil {
		return nil, ErrStorageNil
	}

	options := &reporterOptions{
		grace: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(options)
	}

	return &Reporter{
		storage: storage,
		grace:   options.grace,
	}, nil
}

// JobStatus returns the current report for a job. Unknown and expired ids
// both yield ErrNotFound; the two are deliberately indistinguishable.
//
// A record stuck in started past started_at + timeout + grace is reported as
// unknown: its terminal status was never persisted and the record will stay
// this way until retention expiry.
func (r *Reporter) JobStatus(ctx context.Context, id uuid.UUID) (*Report, error) {
	status, err := r.storage.GetStatus(ctx, id)
	if err != nil {
		return nil, err
	}

	report := &Report{
		ID:        status.ID,
		Status:    status.State,
		Result:    status.Result,
		Error:     status.Error,
		CreatedAt: status.CreatedAt,
		StartedAt: status.StartedAt,
		EndedAt:   status.EndedAt,
	}

	if status.State == StateStarted && status.StartedAt != nil {
		deadline := status.StartedAt.Add(status.Timeout + r.grace)
		if time.Now().After(deadline) {
			report.Status = StateUnknown
			report.Error = "terminal status was never recorded"
		}
	}

	return report, nil
}

// ReporterOption is a functional option for configuring a Reporter
type ReporterOption func(*reporterOptions)

type reporterOptions struct {
	grace time.Duration
}

// WithUnknownGrace sets how far past its timeout a started job may run
// before the reporter treats it as orphaned.
func WithUnknownGrace(d time.Duration) ReporterOption {
	return func(o *reporterOptions) {
		if d > 0 {
			o.grace = d
		}
	}
}

// WithReporterConfig applies values loaded from the environment.
func WithReporterConfig(cfg Config) ReporterOption {
	return func(o *reporterOptions) {
		if cfg.UnknownAfterGrace > 0 {
			o.grace = cfg.UnknownAfterGrace
		}
	}
}
