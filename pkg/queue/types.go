package queue

import (
	"time"

	"github.com/google/uuid"
)

// Tier is a named priority level. Workers drain tiers in strict order: a job
// in a lower tier is never claimed while any higher tier holds a job.
type Tier string

const (
	TierHigh    Tier = "high"
	TierDefault Tier = "default"
	TierLow     Tier = "low"
)

// DefaultTiers is the tier order used when no custom tiers are configured,
// highest priority first.
var DefaultTiers = []Tier{TierHigh, TierDefault, TierLow}

// State represents the lifecycle state of a job.
type State string

const (
	StateQueued   State = "queued"
	StateStarted  State = "started"
	StateFinished State = "finished"
	StateFailed   State = "failed"
	StateTimedOut State = "timed_out"

	// StateUnknown is never persisted. The reporter synthesizes it for jobs
	// whose terminal status was never recorded (orphaned jobs).
	StateUnknown State = "unknown"
)

// Terminal reports whether the state is final. No transition leaves a
// terminal state.
func (s State) Terminal() bool {
	switch s {
	case StateFinished, StateFailed, StateTimedOut:
		return true
	}
	return false
}

// CanTransition reports whether moving from s to next is legal. The only
// allowed moves are queued to started and started to a terminal state.
func (s State) CanTransition(next State) bool {
	switch s {
	case StateQueued:
		return next == StateStarted
	case StateStarted:
		return next.Terminal()
	}
	return false
}

// Envelope is the immutable description of a unit of work. It is created by
// the dispatcher at submission time and never modified afterwards; workers
// only read it.
type Envelope struct {
	ID        uuid.UUID     `json:"id"`
	Task      string        `json:"task"`
	Args      Arguments     `json:"args"`
	Tier      Tier          `json:"tier"`
	Timeout   time.Duration `json:"timeout"`
	CreatedAt time.Time     `json:"created_at"`
}

// Status is the mutable record tracking a job from submission to completion.
// The dispatcher creates it in the queued state before the envelope becomes
// visible to any worker; after that the claiming worker is its sole writer.
// Records expire from storage after the configured retention window.
type Status struct {
	ID        uuid.UUID     `json:"id"`
	State     State         `json:"state"`
	Result    []byte        `json:"result,omitempty"`
	Error     string        `json:"error,omitempty"`
	Timeout   time.Duration `json:"timeout"`
	CreatedAt time.Time     `json:"created_at"`
	StartedAt *time.Time    `json:"started_at,omitempty"`
	EndedAt   *time.Time    `json:"ended_at,omitempty"`
}
