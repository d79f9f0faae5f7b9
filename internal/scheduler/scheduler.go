package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/megacustom/core/internal/events"
)

// DefaultCheckInterval and MinCheckInterval bound how often the
// scheduler wakes to look for due tasks "default
// 60s, min 10s".
const (
	DefaultCheckInterval = 60 * time.Second
	MinCheckInterval = 10 * time.Second
)

// Dispatcher runs one task's action and reports its outcome. Handlers are
// registered per ActionKind; the scheduler never interprets
// ActionPayload itself.
type Dispatcher func(ctx context.Context, task Task) error

// Scheduler wakes every check interval, dispatches every enabled,
// non-running, due task to its registered handler, and persists the
// updated run bookkeeping.
type Scheduler struct {
	store         *Store
	bus           *events.Bus
	logger        *slog.Logger
	checkInterval time.Duration

	mu       sync.Mutex
	handlers map[string]Dispatcher
	running  map[uint64]bool

	wg     sync.WaitGroup
	cancel context.CancelFunc
	done chan struct{}
}

// New creates a Scheduler backed by store. checkInterval is clamped to
// MinCheckInterval; zero selects DefaultCheckInterval.
func New(store *Store, bus *events.Bus, logger *slog.Logger, checkInterval time.Duration) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}

	if checkInterval <= 0 {
		checkInterval = DefaultCheckInterval
	}

	if checkInterval < MinCheckInterval {
		checkInterval = MinCheckInterval
	}

	return &Scheduler{
		store:    store, bus: bus, logger: logger, checkInterval: checkInterval,
		handlers: make(map[string]Dispatcher),
		running:  make(map[uint64]bool),
	}
}

// RegisterHandler binds actionKind to a Dispatcher. A due task whose
// ActionKind has no registered handler is not run: a warning is logged
// and the run is recorded as a failure.
func (s *Scheduler) RegisterHandler(actionKind string, d Dispatcher) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.handlers[actionKind] = d
}

// Run starts the check-interval loop. It returns once ctx is cancelled or
// Stop is called; callers typically run it in its own goroutine.
func (s *Scheduler) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	defer close(s.done)

	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// Stop cancels the check-interval loop and waits for in-flight
// dispatches to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}

	if s.done != nil {
		<-s.done
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	now := time.Now()

	for _, t := range s.store.All() {
		if !t.DueFor(now) {
			continue
		}

		s.mu.Lock()
		if s.running[t.ID] {
			s.mu.Unlock()
			continue
		}

		s.running[t.ID] = true
		s.mu.Unlock()

		s.wg.Add(1)

		go s.dispatch(ctx, t)
	}
}

func (s *Scheduler) dispatch(ctx context.Context, t Task) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.running, t.ID)
		s.mu.Unlock()
	}()

	s.mu.Lock()
	handler, ok := s.handlers[t.ActionKind]
	s.mu.Unlock()

	var dispatchErr error

	if !ok {
		dispatchErr = fmt.Errorf("scheduler: no handler registered for action kind %q", t.ActionKind)
		s.logger.Warn("scheduler: skipping task, no handler", "task", t.Name, "action_kind", t.ActionKind)
	} else {
		dispatchErr = handler(ctx, t)
	}

	s.recordOutcome(t, dispatchErr)
}

// recordOutcome updates last_run/last_status/consecutive_failures and
// recomputes next_run from repeat, then persists the task: Once disables
// the task, Hourly/Daily/Weekly add the interval to now.
func (s *Scheduler) recordOutcome(t Task, dispatchErr error) {
	now := time.Now()

	current, ok := s.store.Get(t.ID)
	if !ok {
		return
	}

	current.LastRun = now

	if dispatchErr != nil {
		current.LastStatus = Failure
		current.ConsecutiveFailures++
		s.logger.Warn("scheduler: task failed", "task", t.Name, "error", dispatchErr)
	} else {
		current.LastStatus = Success
		current.ConsecutiveFailures = 0
	}

	if current.Repeat == Once {
		current.Enabled = false
	} else {
		current.NextRun = now.Add(current.Repeat.duration())
	}

	if err := s.store.Update(current); err != nil {
		s.logger.Warn("scheduler: persisting task outcome failed", "task", t.Name, "error", err)
	}

	s.publish(current)
}

func (s *Scheduler) publish(t Task) {
	if s.bus == nil {
		return
	}

	s.bus.Publish(events.Event{Topic: events.TopicScheduler, Kind: "TaskCompleted", Payload: t})
}

// AddTask creates and persists a new task.
func (s *Scheduler) AddTask(t Task) (Task, error) {
	return s.store.Create(t)
}

// RemoveTask deletes a task by id.
func (s *Scheduler) RemoveTask(id uint64) error {
	return s.store.Remove(id)
}

// SetEnabled toggles a task's enabled flag and persists the change.
func (s *Scheduler) SetEnabled(id uint64, enabled bool) error {
	t, ok := s.store.Get(id)
	if !ok {
		return ErrTaskNotFound
	}

	t.Enabled = enabled

	return s.store.Update(t)
}

// Tasks returns every task, in no particular order.
func (s *Scheduler) Tasks() []Task {
	return s.store.All()
}
