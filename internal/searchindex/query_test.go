package searchindex

import (
	"testing"
	"time"

	"github.com/megacustom/core/internal/cloudclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)

func mustParse(t *testing.T, q string) ParsedQuery {
	t.Helper()

	parsed, err := ParseQuery(q, fixedNow)
	require.NoError(t, err)

	return parsed
}

func TestExtensionOperatorMatchesSetMembership(t *testing.T) {
	q := mustParse(t, "ext:pdf,docx")

	assert.True(t, q.Matches(IndexedNode{Name: "report.pdf"}))
	assert.True(t, q.Matches(IndexedNode{Name: "report.DOCX"}))
	assert.False(t, q.Matches(IndexedNode{Name: "report.txt"}))
}

func TestSizeOperatorGreaterThan(t *testing.T) {
	q := mustParse(t, "size:>100mb")

	assert.False(t, q.Matches(IndexedNode{Size: 100 * 1024 * 1024}))
	assert.True(t, q.Matches(IndexedNode{Size: 101 * 1024 * 1024}))
}

func TestSizeOperatorLessThan(t *testing.T) {
	q := mustParse(t, "size:<1gb")

	assert.True(t, q.Matches(IndexedNode{Size: 500 * 1024 * 1024}))
	assert.False(t, q.Matches(IndexedNode{Size: 2 * 1024 * 1024 * 1024}))
}

func TestSizeOperatorRange(t *testing.T) {
	q := mustParse(t, "size:10kb-50mb")

	assert.True(t, q.Matches(IndexedNode{Size: 1024 * 1024}))
	assert.False(t, q.Matches(IndexedNode{Size: 1024}))
}

func TestSizeOperatorEqualityTolerance(t *testing.T) {
	q := mustParse(t, "size:50mb")

	assert.True(t, q.Matches(IndexedNode{Size: 50 * 1024 * 1024}))
	assert.True(t, q.Matches(IndexedNode{Size: uint64(51 * 1024 * 1024)}))
	assert.False(t, q.Matches(IndexedNode{Size: 70 * 1024 * 1024}))
}

func TestDateModifiedToday(t *testing.T) {
	q := mustParse(t, "dm:today")

	assert.True(t, q.Matches(IndexedNode{MTime: fixedNow}))
	assert.False(t, q.Matches(IndexedNode{MTime: fixedNow.AddDate(0, 0, -1)}))
}

func TestDateModifiedExplicitDate(t *testing.T) {
	q := mustParse(t, "dm:2026-07-15")

	assert.True(t, q.Matches(IndexedNode{MTime: time.Date(2026, 7, 15, 8, 0, 0, 0, time.UTC)}))
	assert.False(t, q.Matches(IndexedNode{MTime: time.Date(2026, 7, 16, 8, 0, 0, 0, time.UTC)}))
}

func TestDateModifiedAfter(t *testing.T) {
	q := mustParse(t, "dm:>2026-07-01")

	assert.True(t, q.Matches(IndexedNode{MTime: time.Date(2026, 7, 15, 0, 0, 0, 0, time.UTC)}))
	assert.False(t, q.Matches(IndexedNode{MTime: time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC)}))
}

func TestPathOperatorCaseInsensitiveSubstring(t *testing.T) {
	q := mustParse(t, "path:documents")

	assert.True(t, q.Matches(IndexedNode{Path: "/Documents/report.pdf"}))
	assert.False(t, q.Matches(IndexedNode{Path: "/Pictures/report.pdf"}))
}

func TestTypeOperator(t *testing.T) {
	q := mustParse(t, "type:folder")

	assert.True(t, q.Matches(IndexedNode{Kind: cloudclient.KindFolder}))
	assert.False(t, q.Matches(IndexedNode{Kind: cloudclient.KindFile}))
}

func TestRegexOperator(t *testing.T) {
	q := mustParse(t, `regex:^foo.*\.pdf$`)

	assert.True(t, q.Matches(IndexedNode{Name: "foobar.pdf"}))
	assert.False(t, q.Matches(IndexedNode{Name: "barfoo.pdf"}))
}

func TestNegationExcludesMatchingTerm(t *testing.T) {
	q := mustParse(t, "!backup")

	assert.True(t, q.Matches(IndexedNode{Name: "report.pdf"}))
	assert.False(t, q.Matches(IndexedNode{Name: "backup-report.pdf"}))
}

func TestAlternationMatchesAnyOfGroup(t *testing.T) {
	q := mustParse(t, "invoice|receipt")

	assert.True(t, q.Matches(IndexedNode{Name: "2026-invoice.pdf"}))
	assert.True(t, q.Matches(IndexedNode{Name: "2026-receipt.pdf"}))
	assert.False(t, q.Matches(IndexedNode{Name: "2026-statement.pdf"}))
}

func TestBareTermsMatchNameOrPathAnd(t *testing.T) {
	q := mustParse(t, "report final")

	assert.True(t, q.Matches(IndexedNode{Name: "final-report.pdf"}))
	assert.False(t, q.Matches(IndexedNode{Name: "report-draft.pdf"}))
}

func TestWildcardAgainstName(t *testing.T) {
	q := mustParse(t, "*.mp4")

	assert.True(t, q.Matches(IndexedNode{Name: "movie.mp4"}))
	assert.False(t, q.Matches(IndexedNode{Name: "movie.mov"}))
}

func TestValidateRegexRejectsBadPattern(t *testing.T) {
	assert.NoError(t, ValidateRegex(`^foo.*$`))
	assert.Error(t, ValidateRegex(`(unterminated`))
}

func TestRelevanceScoreExactNameBeatsContains(t *testing.T) {
	exact := relevanceScore("report", IndexedNode{Name: "report", MTime: fixedNow.AddDate(-1, 0, 0)}, fixedNow)
	contains := relevanceScore("report", IndexedNode{Name: "quarterly-report-final", MTime: fixedNow.AddDate(-1, 0, 0)}, fixedNow)

	assert.Greater(t, exact, contains)
}
