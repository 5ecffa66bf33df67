package queue

import "errors"

// Common errors
var (
	// ErrStorageNil is returned when a nil storage is provided
	ErrStorageNil = errors.New("storage cannot be nil")

	// ErrRegistryNil is returned when a nil task registry is provided
	ErrRegistryNil = errors.New("task registry cannot be nil")

	// ErrInvalidJob is returned when submission parameters are rejected
	// before anything is persisted
	ErrInvalidJob = errors.New("invalid job submission")

	// ErrSerialization is returned when an argument or result cannot be
	// represented in the wire format
	ErrSerialization = errors.New("value is not serializable")

	// ErrUnknownTask is returned when no task is registered for a reference
	ErrUnknownTask = errors.New("no task registered for reference")

	// ErrTaskAlreadyRegistered is returned when registering a duplicate task name
	ErrTaskAlreadyRegistered = errors.New("task already registered")

	// ErrNoTasks is returned when a worker starts with an empty registry
	ErrNoTasks = errors.New("no tasks registered")

	// ErrStoreUnavailable is returned when the durable store cannot be
	// reached; distinct from empty-queue and not-found conditions
	ErrStoreUnavailable = errors.New("durable store unavailable")

	// ErrNoJob is returned by a dequeue that found all tiers empty within
	// its block timeout; this is a normal condition, not a failure
	ErrNoJob = errors.New("no job available to claim")

	// ErrNotFound is returned when a status record does not exist, whether
	// it never existed or has expired
	ErrNotFound = errors.New("job not found or expired")

	// ErrInvalidTransition is returned when a status update would leave a
	// terminal state or skip the started state
	ErrInvalidTransition = errors.New("illegal job state transition")
)
