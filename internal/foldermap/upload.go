package foldermap

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/megacustom/core/internal/cloudclient"
	"github.com/megacustom/core/internal/transfer"
)

// mtimeTolerance absorbs filesystem mtime precision loss (FAT-style 2s
// granularity, vendor API second-precision timestamps) when deciding
// whether a remote file's fingerprint still matches the local one.
const mtimeTolerance = 2 * time.Second

// UploadOptions controls an upload or preview pass over one mapping.
type UploadOptions struct {
	DryRun       bool
	Incremental  bool
	Recursive    bool
	ShowProgress bool
}

// PreviewEntry describes one local file's upload disposition without
// starting a transfer.
type PreviewEntry struct {
	RelPath     string
	LocalSize   int64
	NeedsUpload bool
	SkipReason  string
}

// Progress reports the blocking aggregate view returned by Upload.
type Progress struct {
	CurrentFile   string
	UploadedFiles int
	TotalFiles    int
	UploadedBytes uint64
	TotalBytes    uint64
	BPS           uint64
}

// Uploader walks mapped local trees, ensures the mirrored remote folder
// structure, and enqueues per-file uploads on the Transfer Scheduler.
type Uploader struct {
	store     *Store
	client    cloudclient.Client
	scheduler *transfer.Scheduler
	logger    *slog.Logger
}

// NewUploader creates an Uploader operating over store's mappings.
func NewUploader(store *Store, client cloudclient.Client, scheduler *transfer.Scheduler, logger *slog.Logger) *Uploader {
	if logger == nil {
		logger = slog.Default()
	}

	return &Uploader{store: store, client: client, scheduler: scheduler, logger: logger}
}

// localFile is one file discovered while walking a mapping's local tree.
type localFile struct {
	relPath string
	absPath string
	size    int64
	mtime   time.Time
}

// walkLocal lists files under root, honoring recursive.
func walkLocal(root string, recursive bool) ([]localFile, error) {
	var out []localFile

	if !recursive {
		entries, err := os.ReadDir(root)
		if err != nil {
			return nil, fmt.Errorf("foldermap: reading %s: %w", root, err)
		}

		for _, e := range entries {
			if e.IsDir() {
				continue
			}

			info, err := e.Info()
			if err != nil {
				return nil, fmt.Errorf("foldermap: stat %s: %w", e.Name(), err)
			}

			out = append(out, localFile{relPath: e.Name(), absPath: filepath.Join(root, e.Name()), size: info.Size(), mtime: info.ModTime()})
		}

		return out, nil
	}

	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		out = append(out, localFile{relPath: filepath.ToSlash(rel), absPath: p, size: info.Size(), mtime: info.ModTime()})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("foldermap: walking %s: %w", root, err)
	}

	return out, nil
}

// needsUpload decides, for incremental mode, whether local should be
// uploaded: no remote counterpart, or a size/mtime mismatch beyond
// tolerance.
func (u *Uploader) needsUpload(ctx context.Context, remoteDir string, f localFile, incremental bool) (bool, string, error) {
	if !incremental {
		return true, "", nil
	}

	remotePath := path.Join(remoteDir, filepath.ToSlash(f.relPath))

	node, found, err := u.client.NodeByPath(ctx, remotePath)
	if err != nil {
		return false, "", fmt.Errorf("foldermap: checking remote %s: %w", remotePath, err)
	}

	if !found {
		return true, "", nil
	}

	if node.Size != uint64(f.size) {
		return true, "", nil
	}

	if f.mtime.Sub(node.MTime) > mtimeTolerance || node.MTime.Sub(f.mtime) > mtimeTolerance {
		return true, "", nil
	}

	return false, "unchanged", nil
}

// Preview reports the disposition of every file under the named mapping's
// local tree without starting any transfer.
func (u *Uploader) Preview(ctx context.Context, name string, opts UploadOptions) ([]PreviewEntry, error) {
	m, ok := u.store.Get(name)
	if !ok {
		return nil, ErrNotFound
	}

	files, err := walkLocal(m.Local, opts.Recursive)
	if err != nil {
		return nil, err
	}

	entries := make([]PreviewEntry, 0, len(files))

	for _, f := range files {
		needs, reason, err := u.needsUpload(ctx, m.Remote, f, opts.Incremental)
		if err != nil {
			return nil, err
		}

		entries = append(entries, PreviewEntry{RelPath: f.relPath, LocalSize: f.size, NeedsUpload: needs, SkipReason: reason})
	}

	return entries, nil
}

// Upload walks the mapping's local tree, ensures the mirrored remote
// folder structure, enqueues one transfer per file needing upload, and
// blocks only to report aggregate progress until every enqueued task
// reaches a terminal state. DryRun enqueues nothing and returns the would-be
// totals immediately.
func (u *Uploader) Upload(ctx context.Context, name string, opts UploadOptions, onProgress func(Progress)) (Progress, error) {
	m, ok := u.store.Get(name)
	if !ok {
		return Progress{}, ErrNotFound
	}

	if !m.Enabled {
		return Progress{}, fmt.Errorf("foldermap: mapping %q is disabled", name)
	}

	files, err := walkLocal(m.Local, opts.Recursive)
	if err != nil {
		return Progress{}, err
	}

	var toUpload []localFile

	for _, f := range files {
		needs, _, err := u.needsUpload(ctx, m.Remote, f, opts.Incremental)
		if err != nil {
			return Progress{}, err
		}

		if needs {
			toUpload = append(toUpload, f)
		}
	}

	total := Progress{TotalFiles: len(toUpload)}
	for _, f := range toUpload {
		total.TotalBytes += uint64(f.size)
	}

	if opts.DryRun || len(toUpload) == 0 {
		return total, nil
	}

	dirsEnsured := map[string]bool{}
	ids := make([]uint64, 0, len(toUpload))

	for _, f := range toUpload {
		remoteDir := path.Join(m.Remote, path.Dir(filepath.ToSlash(f.relPath)))

		if !dirsEnsured[remoteDir] {
			if _, err := u.client.CreateFolder(ctx, remoteDir); err != nil {
				return Progress{}, fmt.Errorf("foldermap: ensuring folder %s: %w", remoteDir, err)
			}

			dirsEnsured[remoteDir] = true
		}

		remotePath := path.Join(m.Remote, filepath.ToSlash(f.relPath))

		task := u.scheduler.Enqueue(transfer.Upload, f.absPath, remotePath, uint64(f.size), 0)
		ids = append(ids, task.ID)
	}

	return u.awaitBatch(ctx, total, toUpload, ids, onProgress)
}

// UploadAll runs Upload for every enabled mapping in turn.
func (u *Uploader) UploadAll(ctx context.Context, opts UploadOptions, onProgress func(Progress)) (map[string]Progress, error) {
	results := make(map[string]Progress)

	for _, m := range u.store.All() {
		if !m.Enabled {
			continue
		}

		p, err := u.Upload(ctx, m.Name, opts, onProgress)
		if err != nil {
			return results, fmt.Errorf("foldermap: uploading %q: %w", m.Name, err)
		}

		results[m.Name] = p
	}

	return results, nil
}

// awaitBatch polls the scheduler for each task id until all reach a
// terminal state, invoking onProgress with the running aggregate.
func (u *Uploader) awaitBatch(ctx context.Context, total Progress, files []localFile, ids []uint64, onProgress func(Progress)) (Progress, error) {
	const pollInterval = 50 * time.Millisecond

	nameByTask := make(map[uint64]string, len(ids))
	for i, id := range ids {
		if i < len(files) {
			nameByTask[id] = files[i].relPath
		}
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return total, ctx.Err()
		case <-ticker.C:
		}

		var (
			uploadedBytes uint64
			uploadedFiles int
			current       string
		)

		for _, id := range ids {
			t, ok := u.scheduler.Get(id)
			if !ok {
				continue
			}

			uploadedBytes += t.Bytes

			if t.State == transfer.Active {
				current = nameByTask[id]
			}

			if t.State.Terminal() {
				uploadedFiles++
			}
		}

		total.UploadedBytes = uploadedBytes
		total.UploadedFiles = uploadedFiles
		total.CurrentFile = current

		if onProgress != nil {
			onProgress(total)
		}

		if uploadedFiles == len(ids) {
			return total, nil
		}
	}
}
