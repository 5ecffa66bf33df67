package logger

import (
	"log/slog"
	"strconv"

	"github.com/google/uuid"
)

// Group creates a slog group attribute from the provided attributes.
func Group(name string, attrs ...slog.Attr) slog.Attr {
	return slog.Attr{Key: name, Value: slog.GroupValue(attrs...)}
}

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// Errors groups multiple non-nil errors under the key "errors".
// If all errors are nil, it returns an empty Attr.
func Errors(errs ...error) slog.Attr {
	as := make([]slog.Attr, 0, len(errs))
	for i, err := range errs {
		if err != nil {
			as = append(as, slog.Any(strconv.Itoa(i), err))
		}
	}
	if len(as) == 0 {
		return slog.Attr{}
	}
	return slog.Attr{Key: "errors", Value: slog.GroupValue(as...)}
}

// JobID records a job identifier under the key "job_id".
func JobID(id uuid.UUID) slog.Attr {
	return slog.String("job_id", id.String())
}

// WorkerID records a worker identifier under the key "worker_id".
func WorkerID(id uuid.UUID) slog.Attr {
	return slog.String("worker_id", id.String())
}

// Task records a task reference under the key "task".
func Task(name string) slog.Attr {
	return slog.String("task", name)
}

// Tier records a priority tier under the key "tier".
func Tier(tier string) slog.Attr {
	return slog.String("tier", tier)
}
