// Package logger builds configured slog.Logger instances for dispatcher and
// worker processes.
//
// New applies functional options over production-safe defaults (JSON
// handler, info level). WithDevelopment / WithProduction bundle the common
// per-environment settings; attr.go provides attribute helpers for the
// fields this codebase logs constantly (job_id, worker_id, task, tier).
//
// # Usage
//
//	log := logger.New(logger.WithProduction("jobdispatch-worker"))
//	logger.SetAsDefault(log)
//
//	log.Info("job finished", logger.JobID(id), logger.Task("svg.generate"))
package logger
