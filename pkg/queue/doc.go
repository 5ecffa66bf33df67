// Package queue is a background-job dispatch layer: request-handling code
// hands slow work (e.g. generating complex vector drawings) to asynchronous
// workers while the request path stays responsive.
//
// The package is organised around three main components:
//
//   - Dispatcher — validates a submission, persists a queued status record,
//     and pushes the job envelope onto its priority tier
//   - Worker     — claims envelopes in strict tier order, executes the
//     referenced task under its timeout, and reports a terminal status
//   - Reporter   — read-only translation of stored job state into a
//     caller-facing report
//
// Components interact only through small storage interfaces. RedisStorage is
// the production implementation (one list per tier, status records with a
// retention TTL); MemoryStorage backs tests and local development.
//
// # Priority and ordering
//
// Tiers are drained in strict order: a job in a lower tier is never claimed
// while any higher tier holds a job, and jobs within one tier run in
// submission order. Sustained submission to a high tier therefore starves
// lower tiers indefinitely; that is a documented property of strict
// priority, not a defect.
//
// # Task contract
//
// Task implementations are registered by reference in an explicit Registry
// built at startup. Cancellation is cooperative: when a job's timeout
// expires the worker records timed_out and abandons the execution, but the
// task body keeps running until it observes ctx.Done(). Tasks must
// therefore check their context (or pass it to their I/O) to stop promptly;
// any result produced after the deadline is discarded.
//
// # Degraded mode
//
// When the durable store is unreachable, Submit retries a bounded number of
// times and then executes the task synchronously in the caller's context,
// returning a receipt with ModeSync and a terminal status. Availability is
// traded for asynchronicity; the caller sees the switch in the receipt.
//
// # Usage
//
//	registry := queue.NewRegistry()
//	_ = registry.Register(queue.NewTask("svg.generate", generateSVG))
//
//	storage, _ := queue.NewRedisStorage(client)
//
//	dispatcher, _ := queue.NewDispatcher(storage,
//	    queue.WithFallbackRegistry(registry),
//	)
//	receipt, err := dispatcher.Submit(ctx, "svg.generate",
//	    queue.NamedArgs(map[string]any{"width": 420, "height": 297}),
//	    queue.WithTier(queue.TierHigh),
//	    queue.WithTimeout(5*time.Minute),
//	)
//
//	worker, _ := queue.NewWorker(storage, registry)
//	_ = worker.Start(ctx)
//
//	reporter, _ := queue.NewReporter(storage)
//	report, err := reporter.JobStatus(ctx, receipt.JobID)
//
// # Error Handling
//
// Package-level sentinel errors signal violations of business invariants and
// can be checked with errors.Is. ErrInvalidJob and ErrSerialization surface
// to the submitter before anything is persisted; task-level failures never
// do — they are captured as terminal status, and one job's failure cannot
// affect other jobs or workers.
package queue
