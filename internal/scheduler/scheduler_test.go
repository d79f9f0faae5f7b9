package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScheduler(t *testing.T) (*Scheduler, *Store) {
	t.Helper()

	store := NewStore(filepath.Join(t.TempDir(), "tasks.json"))
	require.NoError(t, store.Load())

	return New(store, nil, nil, MinCheckInterval), store
}

func TestTickDispatchesDueEnabledTask(t *testing.T) {
	sched, store := newTestScheduler(t)

	var calls int32
	sched.RegisterHandler("noop", func(ctx context.Context, task Task) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})

	_, err := store.Create(Task{Name: "t1", Enabled: true, NextRun: time.Now().Add(-time.Minute), ActionKind: "noop"})
	require.NoError(t, err)

	sched.tick(context.Background())
	sched.wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestTickSkipsDisabledTask(t *testing.T) {
	sched, store := newTestScheduler(t)

	var calls int32
	sched.RegisterHandler("noop", func(ctx context.Context, task Task) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})

	_, err := store.Create(Task{Name: "t1", Enabled: false, NextRun: time.Now().Add(-time.Minute), ActionKind: "noop"})
	require.NoError(t, err)

	sched.tick(context.Background())
	sched.wg.Wait()

	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestTickSkipsNotYetDueTask(t *testing.T) {
	sched, store := newTestScheduler(t)

	var calls int32
	sched.RegisterHandler("noop", func(ctx context.Context, task Task) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})

	_, err := store.Create(Task{Name: "t1", Enabled: true, NextRun: time.Now().Add(time.Hour), ActionKind: "noop"})
	require.NoError(t, err)

	sched.tick(context.Background())
	sched.wg.Wait()

	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestTickDisablesOnceTaskAfterSuccess(t *testing.T) {
	sched, store := newTestScheduler(t)

	sched.RegisterHandler("noop", func(ctx context.Context, task Task) error { return nil })

	created, err := store.Create(Task{Name: "t1", Enabled: true, Repeat: Once, NextRun: time.Now().Add(-time.Minute), ActionKind: "noop"})
	require.NoError(t, err)

	sched.tick(context.Background())
	sched.wg.Wait()

	got, ok := store.Get(created.ID)
	require.True(t, ok)
	assert.False(t, got.Enabled)
	assert.Equal(t, Success, got.LastStatus)
}

func TestTickRecomputesNextRunForHourlyTask(t *testing.T) {
	sched, store := newTestScheduler(t)

	sched.RegisterHandler("noop", func(ctx context.Context, task Task) error { return nil })

	before := time.Now()
	created, err := store.Create(Task{Name: "t1", Enabled: true, Repeat: Hourly, NextRun: before.Add(-time.Minute), ActionKind: "noop"})
	require.NoError(t, err)

	sched.tick(context.Background())
	sched.wg.Wait()

	got, ok := store.Get(created.ID)
	require.True(t, ok)
	assert.True(t, got.Enabled)
	assert.WithinDuration(t, before.Add(time.Hour), got.NextRun, 5*time.Second)
}

func TestTickTracksConsecutiveFailures(t *testing.T) {
	sched, store := newTestScheduler(t)

	sched.RegisterHandler("noop", func(ctx context.Context, task Task) error {
		return errors.New("boom")
	})

	created, err := store.Create(Task{Name: "t1", Enabled: true, Repeat: Daily, NextRun: time.Now().Add(-time.Minute), ActionKind: "noop"})
	require.NoError(t, err)

	sched.tick(context.Background())
	sched.wg.Wait()

	got, ok := store.Get(created.ID)
	require.True(t, ok)
	assert.Equal(t, Failure, got.LastStatus)
	assert.Equal(t, 1, got.ConsecutiveFailures)

	setNextRunPast(t, store, got.ID)

	sched.tick(context.Background())
	sched.wg.Wait()

	got2, ok := store.Get(created.ID)
	require.True(t, ok)
	assert.Equal(t, 2, got2.ConsecutiveFailures)
}

func TestTickSkipsTaskWithNoRegisteredHandler(t *testing.T) {
	sched, store := newTestScheduler(t)

	created, err := store.Create(Task{Name: "t1", Enabled: true, NextRun: time.Now().Add(-time.Minute), ActionKind: "unregistered"})
	require.NoError(t, err)

	sched.tick(context.Background())
	sched.wg.Wait()

	got, ok := store.Get(created.ID)
	require.True(t, ok)
	assert.Equal(t, Failure, got.LastStatus)
}

func setNextRunPast(t *testing.T, store *Store, id uint64) {
	t.Helper()

	task, ok := store.Get(id)
	require.True(t, ok)

	task.NextRun = time.Now().Add(-time.Minute)
	require.NoError(t, store.Update(task))
}
