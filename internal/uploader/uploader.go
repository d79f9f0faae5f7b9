package uploader

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/megacustom/core/internal/transfer"
)

// Uploader classifies a set of local source files against an ordered list
// of Rules and submits one Transfer Scheduler task per source. It holds
// no persistent state of its own; callers construct a new Uploader (or
// reuse one) per upload batch.
type Uploader struct {
	scheduler *transfer.Scheduler
	logger    *slog.Logger
}

// New creates an Uploader that submits tasks to scheduler.
func New(scheduler *transfer.Scheduler, logger *slog.Logger) *Uploader {
	if logger == nil {
		logger = slog.Default()
	}

	return &Uploader{scheduler: scheduler, logger: logger}
}

// Batch remembers the task ids produced by one StartUpload call, for
// aggregate progress and completion reporting.
type Batch struct {
	uploader *Uploader
	ids      []uint64
}

// BatchProgress is the aggregate view across every task in a Batch.
type BatchProgress struct {
	TotalFiles     int
	CompletedFiles int
	FailedFiles    int
	TotalBytes     uint64
	UploadedBytes  uint64
}

// Done reports whether every task in the batch has reached a terminal
// state.
func (p BatchProgress) Done() bool {
	return p.CompletedFiles+p.FailedFiles == p.TotalFiles
}

// classify returns the destination path for a source file, applying rules
// in order and falling back to the first destination, or "/" if none are
// configured.
func classify(rules []Rule, destinations []string, name string, size int64) (string, error) {
	for _, r := range rules {
		ok, err := r.matches(name, size)
		if err != nil {
			return "", err
		}

		if ok {
			return r.Destination, nil
		}
	}

	if len(destinations) > 0 {
		return destinations[0], nil
	}

	return "/", nil
}

// StartUpload stats each source, classifies it against rules, and enqueues
// one upload task per source on the Transfer Scheduler. Sources that fail
// to stat, and directories, are skipped with a logged warning. It returns
// an error only when a rule's pattern is invalid; per-file transfer
// failure surfaces via the scheduler, not here.
func (u *Uploader) StartUpload(
	_ context.Context, sources []string, destinations []string, rules []Rule, priority int32,
) (*Batch, error) {
	batch := &Batch{uploader: u}

	for _, src := range sources {
		info, err := os.Stat(src)
		if err != nil {
			u.logger.Warn("uploader: skipping unreadable source", "source", src, "error", err)
			continue
		}

		if info.IsDir() {
			u.logger.Warn("uploader: skipping directory source", "source", src)
			continue
		}

		name := filepath.Base(src)

		destDir, err := classify(rules, destinations, name, info.Size())
		if err != nil {
			return nil, fmt.Errorf("uploader: classify %s: %w", src, err)
		}

		destPath := joinRemotePath(destDir, name)

		task := u.scheduler.Enqueue(transfer.Upload, src, destPath, uint64(info.Size()), priority)
		batch.ids = append(batch.ids, task.ID)
	}

	return batch, nil
}

// joinRemotePath joins a remote directory and file name with a single
// slash, independent of host path conventions (remote paths always use
// forward slashes).
func joinRemotePath(dir, name string) string {
	if dir == "" {
		dir = "/"
	}

	if dir[len(dir)-1] == '/' {
		return dir + name
	}

	return dir + "/" + name
}

// Progress computes the current aggregate progress across the batch by
// querying the scheduler for each remembered task id.
func (b *Batch) Progress() BatchProgress {
	var p BatchProgress

	p.TotalFiles = len(b.ids)

	for _, id := range b.ids {
		t, ok := b.uploader.scheduler.Get(id)
		if !ok {
			continue
		}

		p.TotalBytes += t.Size
		p.UploadedBytes += t.Bytes

		switch t.State {
		case transfer.Completed:
			p.CompletedFiles++
		case transfer.Failed, transfer.Cancelled:
			p.FailedFiles++
		}
	}

	return p
}

// TaskIDs returns the scheduler task ids produced by this batch.
func (b *Batch) TaskIDs() []uint64 {
	cp := make([]uint64, len(b.ids))
	copy(cp, b.ids)

	return cp
}
