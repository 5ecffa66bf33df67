package queue

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Task is an invocable background task implementation. The context carries
// the job's execution deadline; the deadline expiring does not stop the task
// body, so long-running implementations must check ctx.Done() (or pass ctx to
// their I/O) to terminate promptly. A result that arrives after the deadline
// is discarded.
type Task interface {
	// Name returns the task reference the implementation is registered under,
	// conventionally "namespace.function" (e.g. "svg.generate").
	Name() string

	// Execute runs the task with the submitted arguments and returns a
	// serializable result or an error.
	Execute(ctx context.Context, args Arguments) (any, error)
}

// TaskFunc is the signature of a plain task implementation.
type TaskFunc func(ctx context.Context, args Arguments) (any, error)

// NewTask wraps a function as a Task registered under name.
func NewTask(name string, fn TaskFunc) Task {
	return &funcTask{name: name, fn: fn}
}

type funcTask struct {
	name string
	fn   TaskFunc
}

func (t *funcTask) Name() string { return t.name }

func (t *funcTask) Execute(ctx context.Context, args Arguments) (any, error) {
	return t.fn(ctx, args)
}

// NewTypedTask wraps a function taking a typed parameter struct. The named
// arguments of the envelope are decoded into T before the function runs, so
// implementations work with concrete fields instead of raw maps.
func NewTypedTask[T any](name string, fn func(ctx context.Context, params T) (any, error)) Task {
	return NewTask(name, func(ctx context.Context, args Arguments) (any, error) {
		var params T
		if err := args.Bind(&params); err != nil {
			return nil, err
		}
		return fn(ctx, params)
	})
}

// Registry maps task references to implementations. It is built explicitly at
// startup and injected into workers (and optionally into a dispatcher for
// synchronous fallback) rather than living as package-level state, which
// keeps the dispatch table testable.
type Registry struct {
	mu    sync.RWMutex
	tasks map[string]Task
}

// NewRegistry creates an empty task registry.
func NewRegistry() *Registry {
	return &Registry{tasks: make(map[string]Task)}
}

// Register adds task implementations to the registry. Registration happens
// once at startup; duplicate names are rejected.
func (r *Registry) Register(tasks ...Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, t := range tasks {
		if t == nil {
			continue
		}
		name := strings.TrimSpace(t.Name())
		if name == "" {
			return fmt.Errorf("%w: task has empty name", ErrInvalidJob)
		}
		if _, exists := r.tasks[name]; exists {
			return fmt.Errorf("%w: %s", ErrTaskAlreadyRegistered, name)
		}
		r.tasks[name] = t
	}
	return nil
}

// Resolve looks up the implementation for a task reference.
func (r *Registry) Resolve(name string) (Task, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tasks[name]
	return t, ok
}

// Len returns the number of registered tasks.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.tasks)
}
