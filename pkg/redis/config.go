package redis

import "time"

// Config describes how to reach the durable store. ConnectionURL follows the
// "redis://:password@host:6379/0" format (rediss:// for TLS); the remaining
// fields bound how long Connect keeps trying before giving up.
type Config struct {
	ConnectionURL  string        `env:"REDIS_URL,required"`
	RetryAttempts  int           `env:"REDIS_RETRY_ATTEMPTS" envDefault:"3"`
	RetryInterval  time.Duration `env:"REDIS_RETRY_INTERVAL" envDefault:"5s"`
	ConnectTimeout time.Duration `env:"REDIS_CONNECT_TIMEOUT" envDefault:"30s"`
}
