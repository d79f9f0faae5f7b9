// Package transfer implements the Transfer Scheduler
// an admission-controlled queue of uploads and downloads with progress,
// cancel/pause/resume, retry, and bounded concurrency.
package transfer

import (
	"time"
)

// Kind distinguishes uploads from downloads.
type Kind int

// Transfer kinds.
const (
	Upload Kind = iota
	Download
)

func (k Kind) String() string {
	if k == Download {
		return "download"
	}

	return "upload"
}

// State is a Task's position in the state machine:
// Pending -> Active -> {Completed | Failed | Cancelled}, with the
// sidechain Active <-> Paused.
type State int

// Task states.
const (
	Pending State = iota
	Active
	Paused
	Completed
	Failed
	Cancelled
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Active:
		return "active"
	case Paused:
		return "paused"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether s is one of the three terminal states.
func (s State) Terminal() bool {
	return s == Completed || s == Failed || s == Cancelled
}

// Task is a single upload or download in flight through the scheduler.
// Invariant: Bytes <= Size, and State in {Completed,Failed,Cancelled}
// implies Ended is non-nil.
type Task struct {
	ID   uint64
	Kind Kind
	Source string // local path (upload) or remote path (download)
	Destination string // remote path (upload) or local path (download)
	Size       uint64
	Bytes      uint64
	SpeedBPS   uint64
	State      State
	Err        error
	Priority   int32
	Retries    uint32
	EnqueuedAt time.Time
	Started    *time.Time
	Ended      *time.Time

	// lastProgressAt tracks when Bytes last changed, for staleness
	// detection: speed_bps == 0 for 5min implies a temporary error.
	lastProgressAt time.Time
}

// snapshot returns a value copy safe to hand to callers/events.
func (t *Task) snapshot() Task {
	cp := *t
	return cp
}

// ProgressEvent reports per-task progress. Delivered in monotonically
// non-decreasing Bytes order per task.
type ProgressEvent struct {
	ID       uint64
	Bytes    uint64
	Size     uint64
	SpeedBPS uint64
}

// QueueStatus is the periodic summary fan-out.
type QueueStatus struct {
	Active      int
	Pending     int
	Completed   int
	Failed      int
	UploadBPS   uint64
	DownloadBPS uint64
}

// TaskEvent is the payload of every transfer lifecycle event the scheduler
// publishes; Kind names the event and Task is a value snapshot of the task
// at the time of the event.
type TaskEvent struct {
	Kind TaskEventKind
	Task Task
}

// TaskEventKind enumerates the transfer lifecycle events published on
// events.TopicTransfer.
type TaskEventKind int

const (
	EventAdded TaskEventKind = iota
	EventProgress
	EventCompleted
	EventFailed
	EventCancelled
	EventTemporaryError
)
