package queue

import "time"

// Config holds the configuration for the job dispatch layer
type Config struct {
	DefaultTimeout     time.Duration `env:"JOBS_DEFAULT_TIMEOUT" envDefault:"5m"`
	Retention          time.Duration `env:"JOBS_RETENTION" envDefault:"24h"`
	PollInterval       time.Duration `env:"JOBS_POLL_INTERVAL" envDefault:"5s"`
	StoreRetryAttempts int           `env:"JOBS_STORE_RETRY_ATTEMPTS" envDefault:"2"`
	StoreRetryBackoff  time.Duration `env:"JOBS_STORE_RETRY_BACKOFF" envDefault:"100ms"`
	StatusWriteRetries int           `env:"JOBS_STATUS_WRITE_RETRIES" envDefault:"3"`
	UnknownAfterGrace  time.Duration `env:"JOBS_UNKNOWN_AFTER_GRACE" envDefault:"30s"`
}
