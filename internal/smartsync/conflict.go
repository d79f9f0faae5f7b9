package smartsync

import (
	"fmt"
	"path/filepath"
	"strings"
)

// maxConflictSuffix bounds the numeric suffix search when generating a
// keep-both upload name.
const maxConflictSuffix = 1000

// resolveConflict decides the outcome(s) for a relative path present (and
// differing) on both sides, per the given conflict policy. Analyze passes
// the policy registered through ResolveConflict for this relPath, when
// there is one, in place of the profile's policy, so an Ask conflict that
// was already resolved is not emitted again. Every policy but KeepBoth
// produces exactly one Action; KeepBoth produces two (see applyKeepBoth).
func resolveConflict(
	policy ConflictPolicy, relPath string, local localEntry, remote remoteEntry, existsRemote func(string) bool,
) []Action {
	base := Action{
		RelPath: relPath, LocalSize: uint64(local.size), RemoteSize: remote.size,
		LocalMTime: local.mtime, RemoteMTime: remote.mtime, RemoteHandle: remote.handle,
	}

	switch policy {
	case Newer:
		if local.mtime.After(remote.mtime) {
			base.Kind = Upload
		} else {
			base.Kind = Download
		}
	case Larger:
		if uint64(local.size) >= remote.size {
			base.Kind = Upload
		} else {
			base.Kind = Download
		}
	case Local:
		base.Kind = Upload
	case Remote:
		base.Kind = Download
	case KeepBoth:
		return applyKeepBoth(relPath, local, remote, existsRemote)
	default: // Ask
		base.Kind = Conflict
		base.ConflictID = relPath
	}

	return []Action{base}
}

// applyKeepBoth never touches the file already on the remote side: it
// leaves that file exactly where it is (Skip) and uploads the local file
// under a new, numbered remote name instead, so neither side's existing
// file is ever renamed or overwritten.
func applyKeepBoth(relPath string, local localEntry, remote remoteEntry, existsRemote func(string) bool) []Action {
	upload := Action{
		RelPath:       relPath,
		RemoteRelPath: numberedName(relPath, existsRemote),
		Kind:          Upload,
		LocalSize:     uint64(local.size),
		LocalMTime:    local.mtime,
	}

	skip := Action{
		RelPath: relPath, Kind: Skip, LocalSize: uint64(local.size), RemoteSize: remote.size,
		LocalMTime: local.mtime, RemoteMTime: remote.mtime, RemoteHandle: remote.handle,
	}

	return []Action{upload, skip}
}

// numberedName builds "<stem>_<N><ext>", starting at N=1 and incrementing
// until exists reports the candidate is free.
func numberedName(relPath string, exists func(string) bool) string {
	stem, ext := conflictStemExt(relPath)

	for i := 1; i <= maxConflictSuffix; i++ {
		candidate := fmt.Sprintf("%s_%d%s", stem, i, ext)
		if exists == nil || !exists(candidate) {
			return candidate
		}
	}

	return fmt.Sprintf("%s_%d%s", stem, maxConflictSuffix, ext)
}

// conflictStemExt splits relPath into (stem, ext), treating a leading-dot
// dotfile with no further dot as having no extension (".bashrc" is
// numbered as ".bashrc_1" rather than "_1.bashrc").
func conflictStemExt(relPath string) (stem, ext string) {
	dir, base := filepath.Split(relPath)

	if strings.HasPrefix(base, ".") && strings.Count(base, ".") == 1 {
		return dir + base, ""
	}

	ext = filepath.Ext(base)
	stem = dir + strings.TrimSuffix(base, ext)

	return stem, ext
}
