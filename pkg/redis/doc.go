// Package redis provides helpers for connecting the job dispatch layer to
// its durable store, a Redis server.
//
// The package wraps the go-redis client and adds:
//
//   - A robust Connect which retries the connection using the supplied
//     configuration, so workers do not flap on slow store startup.
//   - A health-check helper for liveness / readiness probes.
//
// Configuration is described by the Config struct whose fields can be
// populated from environment variables via github.com/caarlos0/env.
//
// # Usage
//
//	cfg := redis.Config{
//	    ConnectionURL:  "redis://localhost:6379/0",
//	    RetryAttempts:  3,
//	    RetryInterval:  5 * time.Second,
//	    ConnectTimeout: 30 * time.Second,
//	}
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//	    // the store is down; the dispatcher can still run in degraded mode
//	}
//	defer client.Close()
//
//	checker := redis.Healthcheck(client)
//	if err := checker(ctx); err != nil {
//	    // redis is not healthy
//	}
//
// # Errors
//
// The package defines sentinel errors (e.g. ErrRedisNotReady) that wrap the
// underlying go-redis errors using errors.Join, so they can be compared with
// errors.Is and unwrapped.
package redis
