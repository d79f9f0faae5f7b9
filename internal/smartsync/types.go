// Package smartsync implements the Smart Sync Engine: profile-driven,
// bidirectional synchronization between a local directory
// tree and a remote subtree, with conflict policies, include/exclude
// filtering, and history tracking. One Engine manages every profile but
// executes at most one sync per profile at a time.
package smartsync

import "time"

// Direction constrains which way files may be copied for a profile.
type Direction int

// Sync directions.
const (
	Bidirectional Direction = iota
	PushOnly // local -> remote only
	PullOnly // remote -> local only
)

func (d Direction) String() string {
	switch d {
	case PushOnly:
		return "push_only"
	case PullOnly:
		return "pull_only"
	default:
		return "bidirectional"
	}
}

// AllowsPush reports whether this direction permits local-to-remote copies.
func (d Direction) AllowsPush() bool { return d == Bidirectional || d == PushOnly }

// AllowsPull reports whether this direction permits remote-to-local copies.
func (d Direction) AllowsPull() bool { return d == Bidirectional || d == PullOnly }

// ConflictPolicy decides how a file present (and differing) on both sides
// is resolved.
type ConflictPolicy int

// Conflict policies.
const (
	Newer ConflictPolicy = iota
	Larger
	Local
	Remote
	KeepBoth
	Ask
)

func (p ConflictPolicy) String() string {
	switch p {
	case Larger:
		return "larger"
	case Local:
		return "local"
	case Remote:
		return "remote"
	case KeepBoth:
		return "keep_both"
	case Ask:
		return "ask"
	default:
		return "newer"
	}
}

// Profile is one persisted sync configuration.
type Profile struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	LocalPath      string         `json:"local_path"`
	RemotePath     string         `json:"remote_path"`
	Direction      Direction      `json:"direction"`
	ConflictPolicy ConflictPolicy `json:"conflict_policy"`
	IncludeGlobs   []string       `json:"include_globs,omitempty"`
	ExcludeGlobs   []string       `json:"exclude_globs,omitempty"`
	IncludeHidden  bool           `json:"include_hidden"`
	IncludeTemp    bool           `json:"include_temp"`
	DeleteOrphans  bool           `json:"delete_orphans"`
	MTimeTolerance time.Duration  `json:"mtime_tolerance"`
	Watch          bool           `json:"watch"`
}

// ActionKind enumerates the classification a relative path is assigned
// during the analysis phase.
type ActionKind int

// Action kinds
const (
	Skip ActionKind = iota
	Upload
	Download
	Conflict
	DeleteLocal
	DeleteRemote
)

func (k ActionKind) String() string {
	switch k {
	case Upload:
		return "upload"
	case Download:
		return "download"
	case Conflict:
		return "conflict"
	case DeleteLocal:
		return "delete_local"
	case DeleteRemote:
		return "delete_remote"
	default:
		return "skip"
	}
}

// Action is one file's disposition, produced by the analysis phase and
// consumed by the execution phase, which runs every deletion after all
// other actions.
type Action struct {
	RelPath      string
	Kind         ActionKind
	LocalSize    uint64
	RemoteSize   uint64
	LocalMTime   time.Time
	RemoteMTime  time.Time
	RemoteHandle uint64

	// ConflictID identifies an Ask-policy Conflict awaiting
	// Engine.ResolveConflict. Empty for every other action kind.
	ConflictID string

	// RemoteRelPath overrides the remote-side path for an Upload, used by
	// a KeepBoth resolution to write the local file to a new, numbered
	// remote name instead of the path the existing remote file occupies.
	// Empty means "same as RelPath".
	RemoteRelPath string
}

// SyncStatus is the terminal outcome of one sync run.
type SyncStatus int

// Sync statuses.
const (
	StatusCompleted SyncStatus = iota
	StatusFailed
	StatusCancelled
)

func (s SyncStatus) String() string {
	switch s {
	case StatusFailed:
		return "failed"
	case StatusCancelled:
		return "cancelled"
	default:
		return "completed"
	}
}

// HistoryEntry records one finished sync run. Per-profile history is
// capped at maxHistoryEntries, dropping the oldest.
type HistoryEntry struct {
	Timestamp   time.Time  `json:"ts"`
	ProfileName string     `json:"profile_name"`
	Uploaded    int        `json:"uploaded"`
	Downloaded  int        `json:"downloaded"`
	Errors      int        `json:"errors"`
	Status      SyncStatus `json:"status"`
}

// maxHistoryEntries bounds per-profile history.
const maxHistoryEntries = 100

// Progress is the aggregate view of an in-flight sync, fanned out on
// events.TopicSync.
type Progress struct {
	ProfileID        string
	TotalActions     int
	ProcessedActions int
	Uploaded         int
	Downloaded       int
	Errors           int
}
