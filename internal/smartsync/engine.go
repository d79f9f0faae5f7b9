package smartsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/megacustom/core/internal/cloudclient"
	"github.com/megacustom/core/internal/events"
	"github.com/megacustom/core/internal/transfer"
)

// ErrAlreadySyncing is returned by StartSync when the profile's is_syncing
// latch is already held.
var ErrAlreadySyncing = errors.New("smartsync: sync already running")

// pollGranularity is the busy-wait interval used while checking a
// profile's pause/cancel latches during execution.
const pollGranularity = 100 * time.Millisecond

// runState tracks one profile's in-flight sync run and its pause/cancel
// latches, plus resolved Ask-policy conflict overrides.
type runState struct {
	mu        sync.Mutex
	running   bool
	paused    bool
	cancelled bool
	overrides map[string]ConflictPolicy
}

// Engine manages every Smart Sync profile. It executes at most one sync
// per profile at a time, guarded by an is_syncing latch keyed by profile id.
type Engine struct {
	store     *ProfileStore
	client    cloudclient.Client
	scheduler *transfer.Scheduler
	bus       *events.Bus
	logger    *slog.Logger

	mu      sync.Mutex
	states  map[string]*runState
	history map[string][]HistoryEntry
}

// New creates an Engine backed by store, using client for remote walks and
// scheduler for per-file transfer dispatch.
func New(store *ProfileStore, client cloudclient.Client, scheduler *transfer.Scheduler, bus *events.Bus, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		store:   store, client: client, scheduler: scheduler, bus: bus, logger: logger,
		states:  make(map[string]*runState),
		history: make(map[string][]HistoryEntry),
	}
}

func (e *Engine) stateFor(profileID string) *runState {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, ok := e.states[profileID]
	if !ok {
		st = &runState{overrides: make(map[string]ConflictPolicy)}
		e.states[profileID] = st
	}

	return st
}

// IsSyncing reports whether profileID currently has a sync in progress.
func (e *Engine) IsSyncing(profileID string) bool {
	st := e.stateFor(profileID)
	st.mu.Lock()
	defer st.mu.Unlock()

	return st.running
}

// ResolveConflict registers policy as the resolution for a pending
// Ask-policy conflict, keyed by its relative path, so the next
// analysis/execution pass acts on it instead of re-emitting Conflict.
func (e *Engine) ResolveConflict(profileID, relPath string, policy ConflictPolicy) {
	st := e.stateFor(profileID)
	st.mu.Lock()
	defer st.mu.Unlock()

	st.overrides[relPath] = policy
}

// Pause requests the running sync for profileID pause before its next
// action (checked at ~100ms granularity).
func (e *Engine) Pause(profileID string) {
	st := e.stateFor(profileID)
	st.mu.Lock()
	st.paused = true
	st.mu.Unlock()
}

// Resume clears a pause request.
func (e *Engine) Resume(profileID string) {
	st := e.stateFor(profileID)
	st.mu.Lock()
	st.paused = false
	st.mu.Unlock()
}

// Cancel requests the running sync for profileID stop; its outcome will be
// StatusCancelled.
func (e *Engine) Cancel(profileID string) {
	st := e.stateFor(profileID)
	st.mu.Lock()
	st.cancelled = true
	st.mu.Unlock()
}

// History returns profileID's sync history, most recent last, capped at
// maxHistoryEntries.
func (e *Engine) History(profileID string) []HistoryEntry {
	e.mu.Lock()
	defer e.mu.Unlock()

	h := e.history[profileID]
	cp := make([]HistoryEntry, len(h))
	copy(cp, h)

	return cp
}

func (e *Engine) recordHistory(profileID string, entry HistoryEntry) {
	e.mu.Lock()
	defer e.mu.Unlock()

	h := append(e.history[profileID], entry)
	if len(h) > maxHistoryEntries {
		h = h[len(h)-maxHistoryEntries:]
	}

	e.history[profileID] = h
}

// StartSync runs the analysis phase followed by the execution phase for
// profileID. It returns ErrAlreadySyncing if a sync for this profile is
// already running.
func (e *Engine) StartSync(ctx context.Context, profileID string, onProgress func(Progress)) (HistoryEntry, error) {
	profile, ok := e.store.Get(profileID)
	if !ok {
		return HistoryEntry{}, ErrProfileNotFound
	}

	st := e.stateFor(profileID)

	st.mu.Lock()
	if st.running {
		st.mu.Unlock()
		return HistoryEntry{}, fmt.Errorf("%w: profile %s", ErrAlreadySyncing, profileID)
	}

	st.running = true
	st.cancelled = false
	overrides := st.overrides
	st.mu.Unlock()

	defer func() {
		st.mu.Lock()
		st.running = false
		st.mu.Unlock()
	}()

	lookup := func(relPath string) (ConflictPolicy, bool) {
		st.mu.Lock()
		defer st.mu.Unlock()

		p, ok := overrides[relPath]

		return p, ok
	}

	actions, err := Analyze(ctx, e.client, profile, lookup)
	if err != nil {
		entry := HistoryEntry{Timestamp: time.Now(), ProfileName: profile.Name, Status: StatusFailed}
		e.recordHistory(profileID, entry)

		return entry, fmt.Errorf("smartsync: analyzing profile %s: %w", profile.Name, err)
	}

	entry := e.execute(ctx, profile, st, actions, onProgress)
	e.recordHistory(profileID, entry)

	return entry, nil
}

// execute runs the execution phase: deletions after copies in the same
// pass, per-file errors counted but non-fatal, cancel/pause latches
// checked between actions.
func (e *Engine) execute(ctx context.Context, profile Profile, st *runState, actions []Action, onProgress func(Progress)) HistoryEntry {
	ordered := orderActions(actions)

	progress := Progress{ProfileID: profile.ID, TotalActions: len(ordered)}
	entry := HistoryEntry{Timestamp: time.Now(), ProfileName: profile.Name}

	for _, a := range ordered {
		for {
			st.mu.Lock()
			paused, cancelled := st.paused, st.cancelled
			st.mu.Unlock()

			if cancelled {
				entry.Status = StatusCancelled
				e.publishProgress(progress)

				return entry
			}

			if !paused {
				break
			}

			select {
			case <-ctx.Done():
				entry.Status = StatusCancelled
				return entry
			case <-time.After(pollGranularity):
			}
		}

		if err := e.dispatch(ctx, profile, a); err != nil {
			e.logger.Warn("smartsync: action failed", "profile", profile.Name, "path", a.RelPath, "error", err)
			entry.Errors++
		} else {
			switch a.Kind {
			case Upload:
				entry.Uploaded++
			case Download:
				entry.Downloaded++
			}
		}

		progress.ProcessedActions++
		progress.Uploaded = entry.Uploaded
		progress.Downloaded = entry.Downloaded
		progress.Errors = entry.Errors

		e.publishProgress(progress)

		if onProgress != nil {
			onProgress(progress)
		}
	}

	if entry.Status == StatusCompleted && len(ordered) > 0 && entry.Errors == len(ordered) {
		entry.Status = StatusFailed
	}

	return entry
}

// orderActions stably moves DeleteLocal/DeleteRemote actions after every
// other action, preserving relative order within each group: deletions run
// after copies in the same direction.
func orderActions(actions []Action) []Action {
	ordered := make([]Action, 0, len(actions))

	for _, a := range actions {
		if a.Kind != DeleteLocal && a.Kind != DeleteRemote {
			ordered = append(ordered, a)
		}
	}

	for _, a := range actions {
		if a.Kind == DeleteLocal || a.Kind == DeleteRemote {
			ordered = append(ordered, a)
		}
	}

	return ordered
}

// dispatch invokes the Cloud Client/scheduler for one action. Uploads and
// downloads are handed to the Transfer Scheduler without awaiting
// completion; deletes run synchronously.
func (e *Engine) dispatch(ctx context.Context, profile Profile, a Action) error {
	localAbs := filepath.Join(profile.LocalPath, filepath.FromSlash(a.RelPath))

	remoteRel := a.RelPath
	if a.RemoteRelPath != "" {
		remoteRel = a.RemoteRelPath
	}

	remoteAbs := path.Join(profile.RemotePath, remoteRel)

	switch a.Kind {
	case Upload:
		e.scheduler.Enqueue(transfer.Upload, localAbs, remoteAbs, a.LocalSize, 0)
		return nil
	case Download:
		e.scheduler.Enqueue(transfer.Download, remoteAbs, localAbs, a.RemoteSize, 0)
		return nil
	case DeleteLocal:
		if err := os.Remove(localAbs); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("smartsync: deleting local %s: %w", localAbs, err)
		}

		return nil
	case DeleteRemote:
		node, found, err := e.client.NodeByPath(ctx, remoteAbs)
		if err != nil {
			return fmt.Errorf("smartsync: resolving %s for delete: %w", remoteAbs, err)
		}

		if !found {
			return nil
		}

		return e.client.Remove(ctx, node)
	default: // Skip, Conflict
		return nil
	}
}

func (e *Engine) publishProgress(p Progress) {
	if e.bus == nil {
		return
	}

	e.bus.Publish(events.Event{Topic: events.TopicSync, Kind: "Progress", Payload: p})
}
