package smartsync

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterExcludesHiddenByDefault(t *testing.T) {
	fs := newFilterSet(Profile{})
	assert.False(t, fs.allows(".git/config"))
	assert.True(t, fs.allows("docs/readme.md"))
}

func TestFilterIncludesHiddenWhenFlagged(t *testing.T) {
	fs := newFilterSet(Profile{IncludeHidden: true})
	assert.True(t, fs.allows(".env"))
}

func TestFilterExcludesTempByDefault(t *testing.T) {
	fs := newFilterSet(Profile{})
	assert.False(t, fs.allows("download.crdownload"))
	assert.False(t, fs.allows("~lockfile"))
	assert.True(t, fs.allows("report.pdf"))
}

func TestFilterExcludeGlob(t *testing.T) {
	fs := newFilterSet(Profile{ExcludeGlobs: []string{"*.log"}})
	assert.False(t, fs.allows("app.log"))
	assert.True(t, fs.allows("app.txt"))
}

func TestFilterIncludeGlobRestrictsToMatches(t *testing.T) {
	fs := newFilterSet(Profile{IncludeGlobs: []string{"*.pdf"}})
	assert.True(t, fs.allows("report.pdf"))
	assert.False(t, fs.allows("report.docx"))
}
