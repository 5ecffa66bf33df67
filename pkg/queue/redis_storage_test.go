package queue_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drawscape/jobdispatch/pkg/queue"
)

func newRedisStorage(t *testing.T) (*queue.RedisStorage, *miniredis.Miniredis) {
	t.Helper()

	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	storage, err := queue.NewRedisStorage(client)
	require.NoError(t, err)
	return storage, srv
}

func newEnvelope(task string, tier queue.Tier, named map[string]any) *queue.Envelope {
	return &queue.Envelope{
		ID:        uuid.New(),
		Task:      task,
		Args:      queue.NamedArgs(named),
		Tier:      tier,
		Timeout:   time.Minute,
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
}

func TestNewRedisStorage(t *testing.T) {
	t.Parallel()

	_, err := queue.NewRedisStorage(nil)
	assert.ErrorIs(t, err, queue.ErrStorageNil)
}

func TestRedisStorage_Queue(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("fifo within a tier", func(t *testing.T) {
		t.Parallel()

		storage, _ := newRedisStorage(t)

		first := newEnvelope("svg.generate", queue.TierDefault, map[string]any{"n": 1})
		second := newEnvelope("svg.generate", queue.TierDefault, map[string]any{"n": 2})
		require.NoError(t, storage.Enqueue(ctx, first))
		require.NoError(t, storage.Enqueue(ctx, second))

		got1, err := storage.DequeueNext(ctx, queue.DefaultTiers, 100*time.Millisecond)
		require.NoError(t, err)
		got2, err := storage.DequeueNext(ctx, queue.DefaultTiers, 100*time.Millisecond)
		require.NoError(t, err)

		assert.Equal(t, first.ID, got1.ID)
		assert.Equal(t, second.ID, got2.ID)
	})

	t.Run("strict tier priority", func(t *testing.T) {
		t.Parallel()

		storage, _ := newRedisStorage(t)

		low := newEnvelope("svg.generate", queue.TierLow, nil)
		high := newEnvelope("svg.generate", queue.TierHigh, nil)
		require.NoError(t, storage.Enqueue(ctx, low))
		require.NoError(t, storage.Enqueue(ctx, high))

		got, err := storage.DequeueNext(ctx, queue.DefaultTiers, 100*time.Millisecond)
		require.NoError(t, err)
		assert.Equal(t, high.ID, got.ID)

		got, err = storage.DequeueNext(ctx, queue.DefaultTiers, 100*time.Millisecond)
		require.NoError(t, err)
		assert.Equal(t, low.ID, got.ID)
	})

	t.Run("empty tiers return ErrNoJob after block", func(t *testing.T) {
		t.Parallel()

		storage, _ := newRedisStorage(t)

		_, err := storage.DequeueNext(ctx, queue.DefaultTiers, 50*time.Millisecond)
		assert.ErrorIs(t, err, queue.ErrNoJob)
	})

	t.Run("no tiers rejected", func(t *testing.T) {
		t.Parallel()

		storage, _ := newRedisStorage(t)

		_, err := storage.DequeueNext(ctx, nil, 50*time.Millisecond)
		assert.ErrorIs(t, err, queue.ErrInvalidJob)
	})

	t.Run("each envelope claimed exactly once", func(t *testing.T) {
		t.Parallel()

		storage, _ := newRedisStorage(t)

		const jobs = 10
		for i := 0; i < jobs; i++ {
			require.NoError(t, storage.Enqueue(ctx, newEnvelope("svg.generate", queue.TierDefault, map[string]any{"n": i})))
		}

		var mu sync.Mutex
		claimed := make(map[uuid.UUID]int)

		var wg sync.WaitGroup
		for w := 0; w < 4; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for {
					env, err := storage.DequeueNext(ctx, queue.DefaultTiers, 50*time.Millisecond)
					if err != nil {
						return
					}
					mu.Lock()
					claimed[env.ID]++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		assert.Len(t, claimed, jobs)
		for id, n := range claimed {
			assert.Equal(t, 1, n, "envelope %s claimed %d times", id, n)
		}
	})

	t.Run("arguments round-trip with integer fidelity", func(t *testing.T) {
		t.Parallel()

		storage, _ := newRedisStorage(t)

		env := newEnvelope("svg.generate", queue.TierDefault, map[string]any{
			"width":   420,
			"height":  297.5,
			"pattern": "spiral",
			"draft":   true,
			"extras":  map[string]any{"turns": 1000},
		})
		env.Args.Positional = []any{"plotter-1", 7}
		require.NoError(t, storage.Enqueue(ctx, env))

		got, err := storage.DequeueNext(ctx, queue.DefaultTiers, 100*time.Millisecond)
		require.NoError(t, err)

		assert.Equal(t, env.ID, got.ID)
		assert.Equal(t, env.Task, got.Task)
		assert.Equal(t, env.Timeout, got.Timeout)
		assert.True(t, env.CreatedAt.Equal(got.CreatedAt))

		// Numbers come back as json.Number, so 420 stays an integer.
		assert.Equal(t, json.Number("420"), got.Args.Named["width"])
		assert.Equal(t, json.Number("297.5"), got.Args.Named["height"])
		assert.Equal(t, "spiral", got.Args.Named["pattern"])
		assert.Equal(t, true, got.Args.Named["draft"])
		assert.Equal(t, json.Number("1000"), got.Args.Named["extras"].(map[string]any)["turns"])
		assert.Equal(t, []any{"plotter-1", json.Number("7")}, got.Args.Positional)
	})
}

func TestRedisStorage_Status(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	newStatus := func() *queue.Status {
		return &queue.Status{
			ID:        uuid.New(),
			State:     queue.StateQueued,
			Timeout:   time.Minute,
			CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
		}
	}

	t.Run("create and get", func(t *testing.T) {
		t.Parallel()

		storage, _ := newRedisStorage(t)

		status := newStatus()
		require.NoError(t, storage.CreateStatus(ctx, status, time.Hour))

		got, err := storage.GetStatus(ctx, status.ID)
		require.NoError(t, err)
		assert.Equal(t, status.ID, got.ID)
		assert.Equal(t, queue.StateQueued, got.State)
	})

	t.Run("missing id", func(t *testing.T) {
		t.Parallel()

		storage, _ := newRedisStorage(t)

		_, err := storage.GetStatus(ctx, uuid.New())
		assert.ErrorIs(t, err, queue.ErrNotFound)
	})

	t.Run("expires after retention", func(t *testing.T) {
		t.Parallel()

		storage, srv := newRedisStorage(t)

		status := newStatus()
		require.NoError(t, storage.CreateStatus(ctx, status, time.Minute))

		srv.FastForward(2 * time.Minute)

		_, err := storage.GetStatus(ctx, status.ID)
		assert.ErrorIs(t, err, queue.ErrNotFound)
	})

	t.Run("full transition sequence", func(t *testing.T) {
		t.Parallel()

		storage, _ := newRedisStorage(t)

		status := newStatus()
		require.NoError(t, storage.CreateStatus(ctx, status, time.Hour))

		startedAt := time.Now().UTC()
		require.NoError(t, storage.MarkStarted(ctx, status.ID, startedAt))
		require.NoError(t, storage.MarkFinished(ctx, status.ID, []byte(`"out.svg"`), startedAt.Add(time.Second)))

		got, err := storage.GetStatus(ctx, status.ID)
		require.NoError(t, err)
		assert.Equal(t, queue.StateFinished, got.State)
		assert.Equal(t, []byte(`"out.svg"`), got.Result)
		require.NotNil(t, got.StartedAt)
		require.NotNil(t, got.EndedAt)
	})

	t.Run("terminal states are final", func(t *testing.T) {
		t.Parallel()

		storage, _ := newRedisStorage(t)

		status := newStatus()
		require.NoError(t, storage.CreateStatus(ctx, status, time.Hour))
		require.NoError(t, storage.MarkStarted(ctx, status.ID, time.Now().UTC()))
		require.NoError(t, storage.MarkFailed(ctx, status.ID, "boom", time.Now().UTC()))

		err := storage.MarkFinished(ctx, status.ID, nil, time.Now().UTC())
		assert.ErrorIs(t, err, queue.ErrInvalidTransition)

		err = storage.MarkTimedOut(ctx, status.ID, "late", time.Now().UTC())
		assert.ErrorIs(t, err, queue.ErrInvalidTransition)
	})

	t.Run("skipping started is illegal", func(t *testing.T) {
		t.Parallel()

		storage, _ := newRedisStorage(t)

		status := newStatus()
		require.NoError(t, storage.CreateStatus(ctx, status, time.Hour))

		err := storage.MarkFinished(ctx, status.ID, nil, time.Now().UTC())
		assert.ErrorIs(t, err, queue.ErrInvalidTransition)
	})

	t.Run("transition keeps retention ttl", func(t *testing.T) {
		t.Parallel()

		storage, srv := newRedisStorage(t)

		status := newStatus()
		require.NoError(t, storage.CreateStatus(ctx, status, time.Minute))
		require.NoError(t, storage.MarkStarted(ctx, status.ID, time.Now().UTC()))

		srv.FastForward(2 * time.Minute)

		_, err := storage.GetStatus(ctx, status.ID)
		assert.ErrorIs(t, err, queue.ErrNotFound)
	})

	t.Run("transition on missing id", func(t *testing.T) {
		t.Parallel()

		storage, _ := newRedisStorage(t)

		err := storage.MarkStarted(ctx, uuid.New(), time.Now().UTC())
		assert.ErrorIs(t, err, queue.ErrNotFound)
	})
}

func TestRedisStorage_Unavailable(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	storage, srv := newRedisStorage(t)
	srv.Close()

	t.Run("enqueue", func(t *testing.T) {
		err := storage.Enqueue(ctx, newEnvelope("svg.generate", queue.TierDefault, nil))
		assert.ErrorIs(t, err, queue.ErrStoreUnavailable)
	})

	t.Run("dequeue", func(t *testing.T) {
		_, err := storage.DequeueNext(ctx, queue.DefaultTiers, 50*time.Millisecond)
		assert.ErrorIs(t, err, queue.ErrStoreUnavailable)
	})

	t.Run("create status", func(t *testing.T) {
		err := storage.CreateStatus(ctx, &queue.Status{ID: uuid.New(), State: queue.StateQueued}, time.Hour)
		assert.ErrorIs(t, err, queue.ErrStoreUnavailable)
	})

	t.Run("get status", func(t *testing.T) {
		_, err := storage.GetStatus(ctx, uuid.New())
		assert.ErrorIs(t, err, queue.ErrStoreUnavailable)
	})
}
