package transfer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/megacustom/core/internal/cloudclient"
	"github.com/megacustom/core/internal/events"
)

// Default/clamp bounds for max_concurrent.
const (
	DefaultMaxConcurrent = 3
	MinMaxConcurrent = 1
	MaxMaxConcurrent = 10
)

// summaryProgressInterval bounds how often a burst of progress events
// triggers a QueueStatus recompute, tuned for UI consumption at ~10 Hz max.
const summaryProgressInterval = 100 * time.Millisecond

// staleAfter is the default duration of speed_bps == 0 before a task's
// progress is reported as a temporary_error.
const staleAfter = 5 * time.Minute

// Scheduler is the concurrent admission-controlled transfer queue.
// Each subsystem owns its mutable state under one mutex; event
// publication happens off that mutex.
type Scheduler struct {
	client cloudclient.Client
	bus    *events.Bus
	logger *slog.Logger

	mu            sync.Mutex
	pending       *pendingQueue
	active        map[uint64]*Task
	paused        map[uint64]*Task
	terminal      map[uint64]*Task
	handles       map[uint64]cloudclient.TransferHandle
	nextID        uint64
	maxConcurrent int

	wake chan struct{}
	cancel context.CancelFunc
	done chan struct{}

	lastSummary atomic.Int64 // unix nano of last QueueStatus publish
}

// New creates a Scheduler bound to client, publishing events on bus.
// Call Run to start the admission loop.
func New(client cloudclient.Client, bus *events.Bus, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		client:        client,
		bus:           bus,
		logger:        logger,
		pending:       newPendingQueue(),
		active:        make(map[uint64]*Task),
		paused:        make(map[uint64]*Task),
		terminal:      make(map[uint64]*Task),
		handles:       make(map[uint64]cloudclient.TransferHandle),
		nextID:        1,
		maxConcurrent: DefaultMaxConcurrent,
		wake:          make(chan struct{}, 1),
	}
}

// Run starts the admission loop. It returns once ctx is cancelled or Stop
// is called; callers typically run it in its own goroutine.
func (s *Scheduler) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	defer close(s.done)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.wake:
			s.admit(ctx)
		case <-ticker.C:
			// Periodic tick catches staleness and ensures forward
			// progress even if a wake was coalesced away.
			s.admit(ctx)
			s.checkStale()
		}
	}
}

// Stop cancels the admission loop and waits for it to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	done := s.done
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	if done != nil {
		<-done
	}
}

func (s *Scheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Enqueue adds a new Pending task and wakes the admission loop.
func (s *Scheduler) Enqueue(kind Kind, source, destination string, size uint64, priority int32) *Task {
	s.mu.Lock()

	t := &Task{
		ID:          s.nextID,
		Kind:        kind,
		Source:      source,
		Destination: destination,
		Size:        size,
		State:       Pending,
		Priority:    priority,
		EnqueuedAt:  time.Now(),
	}
	s.nextID++

	s.pending.push(t)

	snap := t.snapshot()
	s.mu.Unlock()

	s.publish(TaskEvent{Kind: EventAdded, Task: snap})
	s.signal()

	return t
}

// SetMaxConcurrent changes the admission target, clamped to [1, 10], and
// wakes the admission loop.
func (s *Scheduler) SetMaxConcurrent(n int) {
	if n < MinMaxConcurrent {
		n = MinMaxConcurrent
	}

	if n > MaxMaxConcurrent {
		n = MaxMaxConcurrent
	}

	s.mu.Lock()
	s.maxConcurrent = n
	s.mu.Unlock()

	s.signal()
}

// admit promotes Pending tasks to Active until |Active| equals
// min(max_concurrent, |Pending|+|Active|).
func (s *Scheduler) admit(ctx context.Context) {
	var toStart []*Task

	s.mu.Lock()
	for len(s.active) < s.maxConcurrent {
		t := s.pending.pop()
		if t == nil {
			break
		}

		t.State = Active
		now := time.Now()
		t.Started = &now
		t.lastProgressAt = now
		s.active[t.ID] = t

		toStart = append(toStart, t)
	}
	s.mu.Unlock()

	for _, t := range toStart {
		s.startTask(ctx, t)
	}
}

// startTask resolves the destination, invokes the Cloud Client, and wires
// a listener that publishes progress and transitions the task on finish.
func (s *Scheduler) startTask(ctx context.Context, t *Task) {
	listener := cloudclient.ListenerFunc(func(ev cloudclient.TransferEvent) {
		s.onClientEvent(t.ID, ev)
	})

	var (
		handle cloudclient.TransferHandle
		err    error
	)

	switch t.Kind {
	case Upload:
		destPath := parentOf(t.Destination)

		parent, found, lookupErr := s.client.NodeByPath(ctx, destPath)
		if lookupErr != nil || !found {
			s.finish(t.ID, Failed, fmt.Errorf("transfer: destination not found: %s", destPath))
			return
		}

		handle, err = s.client.StartUpload(ctx, t.Source, parent, baseName(t.Destination), listener)
	case Download:
		node, found, lookupErr := s.client.NodeByPath(ctx, t.Source)
		if lookupErr != nil || !found {
			s.finish(t.ID, Failed, fmt.Errorf("transfer: source not found: %s", t.Source))
			return
		}

		handle, err = s.client.StartDownload(ctx, node, t.Destination, listener)
	}

	if err != nil {
		s.finish(t.ID, Failed, err)
		return
	}

	s.mu.Lock()
	s.handles[t.ID] = handle
	s.mu.Unlock()
}

// onClientEvent is the Listener callback; it may be invoked on any
// goroutine and re-marshals into task-state transitions plus published
// events.
func (s *Scheduler) onClientEvent(id uint64, ev cloudclient.TransferEvent) {
	switch ev.Kind {
	case cloudclient.EventProgress:
		s.updateProgress(id, ev.BytesSent, ev.TotalBytes)
	case cloudclient.EventTemporaryError:
		s.publish(TaskEvent{Kind: EventTemporaryError, Task: s.snapshotOf(id)})
	case cloudclient.EventFinished:
		if ev.Err != nil {
			s.finish(id, Failed, ev.Err)
		} else {
			s.finish(id, Completed, nil)
		}
	}
}

func (s *Scheduler) updateProgress(id uint64, bytes, size uint64) {
	s.mu.Lock()
	t, ok := s.active[id]
	if !ok {
		s.mu.Unlock()
		return
	}

	now := time.Now()

	var speed uint64
	if elapsed := now.Sub(t.lastProgressAt); elapsed > 0 && bytes > t.Bytes {
		speed = uint64(float64(bytes-t.Bytes) / elapsed.Seconds())
	}

	t.Bytes = bytes
	if size > 0 {
		t.Size = size
	}
	t.SpeedBPS = speed
	t.lastProgressAt = now

	snap := t.snapshot()
	s.mu.Unlock()

	s.publish(TaskEvent{Kind: EventProgress, Task: snap})
	s.maybePublishSummary()
}

// finish transitions an Active task to a terminal state and publishes the
// corresponding event; ids not in the active set are ignored (Cancel
// handles pending and paused tasks itself).
func (s *Scheduler) finish(id uint64, state State, err error) {
	s.mu.Lock()
	t, ok := s.active[id]
	if !ok {
		s.mu.Unlock()
		return
	}

	delete(s.active, id)
	delete(s.handles, id)

	t.State = state
	t.Err = err
	now := time.Now()
	t.Ended = &now
	s.terminal[id] = t

	snap := t.snapshot()
	s.mu.Unlock()

	kind := EventCompleted
	if state == Failed {
		kind = EventFailed
	} else if state == Cancelled {
		kind = EventCancelled
	}

	s.publish(TaskEvent{Kind: kind, Task: snap})
	s.publishSummary()
	s.signal()
}

// Cancel marks id Cancelled, asks the Cloud Client to cancel any
// underlying handle, and removes it from pending/active/paused.
func (s *Scheduler) Cancel(id uint64) error {
	s.mu.Lock()

	if t := s.pending.remove(id); t != nil {
		t.State = Cancelled
		now := time.Now()
		t.Ended = &now
		s.terminal[id] = t
		snap := t.snapshot()
		s.mu.Unlock()

		s.publish(TaskEvent{Kind: EventCancelled, Task: snap})
		s.publishSummary()

		return nil
	}

	if t, ok := s.paused[id]; ok {
		delete(s.paused, id)
		t.State = Cancelled
		now := time.Now()
		t.Ended = &now
		s.terminal[id] = t
		snap := t.snapshot()
		s.mu.Unlock()

		s.publish(TaskEvent{Kind: EventCancelled, Task: snap})
		s.publishSummary()

		return nil
	}

	handle, active := s.handles[id], s.active[id] != nil
	s.mu.Unlock()

	if !active {
		return fmt.Errorf("transfer: cancel: task %d not found or already terminal", id)
	}

	if handle != nil {
		handle.Cancel()
	}

	s.finish(id, Cancelled, fmt.Errorf("transfer: cancelled"))

	return nil
}

// CancelAll cancels every non-terminal task and empties the pending queue.
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	ids := make([]uint64, 0, len(s.active)+len(s.paused)+s.pending.Len())
	for id := range s.active {
		ids = append(ids, id)
	}
	for id := range s.paused {
		ids = append(ids, id)
	}
	for _, t := range s.pending.list() {
		ids = append(ids, t.ID)
	}
	s.mu.Unlock()

	for _, id := range ids {
		_ = s.Cancel(id)
	}
}

// Pause moves an Active task to Paused and invokes cloud cancel (restart
// semantics): resuming re-enqueues from zero bytes.
func (s *Scheduler) Pause(id uint64) error {
	s.mu.Lock()
	t, ok := s.active[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("transfer: pause: task %d is not active", id)
	}

	handle := s.handles[id]
	delete(s.active, id)
	delete(s.handles, id)

	t.State = Paused
	s.paused[id] = t
	s.mu.Unlock()

	if handle != nil {
		handle.Cancel()
	}

	s.publishSummary()
	s.signal()

	return nil
}

// Resume moves a Paused task back to Pending with Bytes reset to zero.
func (s *Scheduler) Resume(id uint64) error {
	s.mu.Lock()
	t, ok := s.paused[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("transfer: resume: task %d is not paused", id)
	}

	delete(s.paused, id)
	t.State = Pending
	t.Bytes = 0
	t.EnqueuedAt = time.Now()
	s.pending.push(t)
	s.mu.Unlock()

	s.signal()

	return nil
}

// Retry reopens a terminal Failed task back to Pending with incremented
// retries and cleared bytes. The user (or a higher-level engine) is
// responsible for calling Retry; the scheduler never auto-retries.
func (s *Scheduler) Retry(id uint64) error {
	s.mu.Lock()
	t, ok := s.terminal[id]
	if !ok || t.State != Failed {
		s.mu.Unlock()
		return fmt.Errorf("transfer: retry: task %d is not in a failed state", id)
	}

	delete(s.terminal, id)
	t.State = Pending
	t.Bytes = 0
	t.Err = nil
	t.Ended = nil
	t.Retries++
	t.EnqueuedAt = time.Now()
	s.pending.push(t)
	s.mu.Unlock()

	s.signal()

	return nil
}

// SetPriority reorders t within the pending queue and wakes admission.
func (s *Scheduler) SetPriority(id uint64, priority int32) error {
	s.mu.Lock()
	t := s.pending.remove(id)
	if t == nil {
		s.mu.Unlock()
		return fmt.Errorf("transfer: set_priority: task %d is not pending", id)
	}

	t.Priority = priority
	s.pending.push(t)
	s.mu.Unlock()

	s.signal()

	return nil
}

// MoveUp increases a pending task's priority by one, which can move it
// earlier in admission order.
func (s *Scheduler) MoveUp(id uint64) error {
	return s.nudgePriority(id, 1)
}

// MoveDown decreases priority by one step.
func (s *Scheduler) MoveDown(id uint64) error {
	return s.nudgePriority(id, -1)
}

func (s *Scheduler) nudgePriority(id uint64, delta int32) error {
	s.mu.Lock()
	t := s.pending.remove(id)
	if t == nil {
		s.mu.Unlock()
		return fmt.Errorf("transfer: move: task %d is not pending", id)
	}

	t.Priority += delta
	s.pending.push(t)
	s.mu.Unlock()

	s.signal()

	return nil
}

// Get returns a snapshot of the task with the given id, searching every
// set (exactly one of pending/active/paused/terminal holds it).
func (s *Scheduler) Get(id uint64) (Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.active[id]; ok {
		return t.snapshot(), true
	}

	if t, ok := s.paused[id]; ok {
		return t.snapshot(), true
	}

	if t, ok := s.terminal[id]; ok {
		return t.snapshot(), true
	}

	if t := s.pending.remove(id); t != nil {
		s.pending.push(t)
		return t.snapshot(), true
	}

	return Task{}, false
}

func (s *Scheduler) snapshotOf(id uint64) Task {
	t, _ := s.Get(id)
	return t
}

// ClearCompleted removes all terminal tasks from the terminal set.
func (s *Scheduler) ClearCompleted() {
	s.mu.Lock()
	s.terminal = make(map[uint64]*Task)
	s.mu.Unlock()
}

// Status returns the current queue summary.
func (s *Scheduler) Status() QueueStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.statusLocked()
}

func (s *Scheduler) statusLocked() QueueStatus {
	var qs QueueStatus

	qs.Active = len(s.active)
	qs.Pending = s.pending.Len()

	for _, t := range s.terminal {
		switch t.State {
		case Completed:
			qs.Completed++
		case Failed:
			qs.Failed++
		}
	}

	for _, t := range s.active {
		if t.Kind == Upload {
			qs.UploadBPS += t.SpeedBPS
		} else {
			qs.DownloadBPS += t.SpeedBPS
		}
	}

	return qs
}

func (s *Scheduler) publishSummary() {
	s.mu.Lock()
	qs := s.statusLocked()
	s.mu.Unlock()

	s.lastSummary.Store(time.Now().UnixNano())

	if s.bus != nil {
		s.bus.Publish(events.Event{Topic: events.TopicQueue, Kind: "QueueStatus", Payload: qs})
	}
}

// maybePublishSummary recomputes the summary at most ~10 Hz, tuned for
// UI consumption.
func (s *Scheduler) maybePublishSummary() {
	last := s.lastSummary.Load()
	if time.Since(time.Unix(0, last)) < summaryProgressInterval {
		return
	}

	s.publishSummary()
}

// checkStale reports speed_bps == 0 for longer than staleAfter as a
// temporary_error progress marker, not a failure.
func (s *Scheduler) checkStale() {
	s.mu.Lock()
	var stale []Task

	now := time.Now()

	for _, t := range s.active {
		if t.SpeedBPS == 0 && now.Sub(t.lastProgressAt) > staleAfter {
			stale = append(stale, t.snapshot())
		}
	}
	s.mu.Unlock()

	for _, t := range stale {
		s.publish(TaskEvent{Kind: EventTemporaryError, Task: t})
	}
}

func (s *Scheduler) publish(ev TaskEvent) {
	if s.bus == nil {
		return
	}

	kindName := map[TaskEventKind]string{
		EventAdded:  "Added", EventProgress: "Progress", EventCompleted: "Completed",
		EventFailed: "Failed", EventCancelled: "Cancelled", EventTemporaryError: "TemporaryError",
	}[ev.Kind]

	s.bus.Publish(events.Event{Topic: events.TopicTransfer, Kind: kindName, Payload: ev})
}

func parentOf(p string) string {
	i := len(p) - 1
	for i >= 0 && p[i] != '/' {
		i--
	}

	if i <= 0 {
		return "/"
	}

	return p[:i]
}

func baseName(p string) string {
	i := len(p) - 1
	for i >= 0 && p[i] != '/' {
		i--
	}

	return p[i+1:]
}
