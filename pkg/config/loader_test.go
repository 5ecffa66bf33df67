package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drawscape/jobdispatch/pkg/config"
)

type workerTestConfig struct {
	PollInterval time.Duration `env:"TEST_WORKER_POLL_INTERVAL" envDefault:"5s"`
	Tier         string        `env:"TEST_WORKER_TIER" envDefault:"default"`
}

type requiredTestConfig struct {
	URL string `env:"TEST_REQUIRED_MISSING_URL,required"`
}

func TestLoad(t *testing.T) {
	t.Run("defaults applied", func(t *testing.T) {
		var cfg workerTestConfig
		require.NoError(t, config.Load(&cfg))
		assert.Equal(t, 5*time.Second, cfg.PollInterval)
		assert.Equal(t, "default", cfg.Tier)
	})

	t.Run("cached on second load", func(t *testing.T) {
		// The first Load cached the parsed struct; environment changes after
		// that are deliberately not picked up.
		t.Setenv("TEST_WORKER_TIER", "high")

		var cfg workerTestConfig
		require.NoError(t, config.Load(&cfg))
		assert.Equal(t, "default", cfg.Tier)
	})

	t.Run("nil pointer", func(t *testing.T) {
		err := config.Load[workerTestConfig](nil)
		assert.ErrorIs(t, err, config.ErrNilPointer)
	})

	t.Run("missing required variable", func(t *testing.T) {
		var cfg requiredTestConfig
		err := config.Load(&cfg)
		assert.ErrorIs(t, err, config.ErrParsingConfig)
	})
}

func TestMustLoad(t *testing.T) {
	t.Run("panics on failure", func(t *testing.T) {
		assert.Panics(t, func() {
			var cfg requiredTestConfig
			config.MustLoad(&cfg)
		})
	})
}
