package smartsync

import (
	"path/filepath"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
)

// tempSuffixes marks partial/temp files excluded unless a profile opts in
// via IncludeTemp.
var tempSuffixes = []string{".tmp", ".partial", ".crdownload"}

// filterSet compiles a profile's include/exclude globs once per analysis
// pass, adapted to profile-level include/exclude lists instead of
// per-directory marker files.
type filterSet struct {
	include *ignore.GitIgnore
	exclude *ignore.GitIgnore
	includeHidden bool
	includeTemp bool
}

func newFilterSet(p Profile) *filterSet {
	fs := &filterSet{includeHidden: p.IncludeHidden, includeTemp: p.IncludeTemp}

	if len(p.IncludeGlobs) > 0 {
		fs.include = ignore.CompileIgnoreLines(p.IncludeGlobs...)
	}

	if len(p.ExcludeGlobs) > 0 {
		fs.exclude = ignore.CompileIgnoreLines(p.ExcludeGlobs...)
	}

	return fs
}

// allows reports whether relPath should participate in sync analysis.
func (fs *filterSet) allows(relPath string) bool {
	if !fs.includeHidden && isHidden(relPath) {
		return false
	}

	if !fs.includeTemp && isTemp(relPath) {
		return false
	}

	slash := filepath.ToSlash(relPath)

	if fs.exclude != nil && fs.exclude.MatchesPath(slash) {
		return false
	}

	if fs.include != nil && !fs.include.MatchesPath(slash) {
		return false
	}

	return true
}

func isHidden(relPath string) bool {
	for _, part := range strings.Split(filepath.ToSlash(relPath), "/") {
		if strings.HasPrefix(part, ".") && part != "." && part != ".." {
			return true
		}
	}

	return false
}

func isTemp(relPath string) bool {
	name := filepath.Base(relPath)

	for _, suffix := range tempSuffixes {
		if strings.HasSuffix(strings.ToLower(name), suffix) {
			return true
		}
	}

	return strings.HasPrefix(name, "~")
}
