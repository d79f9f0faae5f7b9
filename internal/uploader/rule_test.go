package uploader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchExtensionCaseInsensitiveAndDotOptional(t *testing.T) {
	r := Rule{Kind: ByExtension, Pattern: "JPG,.png", Enabled: true}

	ok, err := r.matches("photo.jpg", 10)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.matches("photo.PNG", 10)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.matches("photo.gif", 10)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMatchSizeRange(t *testing.T) {
	r := Rule{Kind: BySize, Pattern: "1-10", Enabled: true}

	const mb = 1024 * 1024

	ok, err := r.matches("x", 5*mb)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.matches("x", 20*mb)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMatchSizeInvalidPattern(t *testing.T) {
	r := Rule{Kind: BySize, Pattern: "not-a-range", Enabled: true}

	_, err := r.matches("x", 10)
	assert.Error(t, err)
}

func TestMatchWildcardCaseInsensitive(t *testing.T) {
	r := Rule{Kind: ByName, Pattern: "*.MP4", Enabled: true}

	ok, err := r.matches("clip.mp4", 0)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.matches("clip.mov", 0)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDisabledRuleNeverMatches(t *testing.T) {
	r := Rule{Kind: Default, Enabled: false}

	ok, err := r.matches("anything", 0)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClassifyFirstMatchWins(t *testing.T) {
	rules := []Rule{
		{Kind: ByExtension, Pattern: "pdf", Destination: "/docs", Enabled: true},
		{Kind: Default, Destination: "/misc", Enabled: true},
	}

	dest, err := classify(rules, nil, "report.pdf", 100)
	require.NoError(t, err)
	assert.Equal(t, "/docs", dest)

	dest, err = classify(rules, nil, "video.mp4", 100)
	require.NoError(t, err)
	assert.Equal(t, "/misc", dest)
}

func TestClassifyFallsBackToFirstDestination(t *testing.T) {
	rules := []Rule{{Kind: ByExtension, Pattern: "pdf", Destination: "/docs", Enabled: true}}

	dest, err := classify(rules, []string{"/fallback", "/other"}, "video.mp4", 100)
	require.NoError(t, err)
	assert.Equal(t, "/fallback", dest)
}

func TestClassifyFallsBackToRootWhenNoDestinations(t *testing.T) {
	dest, err := classify(nil, nil, "video.mp4", 100)
	require.NoError(t, err)
	assert.Equal(t, "/", dest)
}
