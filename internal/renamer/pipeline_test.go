package renamer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyPatternBasicRegexReplace(t *testing.T) {
	p := Pattern{Search: "IMG", Replace: "Photo"}

	out, err := ApplyPattern(p, "IMG_0001.jpg", time.Now(), 0)
	require.NoError(t, err)
	assert.Equal(t, "Photo_0001.jpg", out)
}

func TestApplyPatternPreserveExtensionHidesExtensionFromRegex(t *testing.T) {
	p := Pattern{Search: `\.jpg$`, Replace: "", PreserveExtension: true}

	out, err := ApplyPattern(p, "photo.jpg", time.Now(), 0)
	require.NoError(t, err)
	assert.Equal(t, "photo.jpg", out, "regex should not see the extension")
}

func TestApplyPatternApplyToExtensionMatchesWholeName(t *testing.T) {
	p := Pattern{Search: `\.jpeg$`, Replace: ".jpg", PreserveExtension: true, ApplyToExtension: true}

	out, err := ApplyPattern(p, "photo.jpeg", time.Now(), 0)
	require.NoError(t, err)
	assert.Equal(t, "photo.jpg", out)
}

func TestApplyPatternCaseInsensitive(t *testing.T) {
	p := Pattern{Search: "img", Replace: "photo", CaseSensitive: false}

	out, err := ApplyPattern(p, "IMG_0001.jpg", time.Now(), 0)
	require.NoError(t, err)
	assert.Equal(t, "photo_0001.jpg", out)
}

func TestApplyPatternMaxReplacementsLimitsCount(t *testing.T) {
	one := 1
	p := Pattern{Search: "a", Replace: "X", MaxReplacements: &one}

	out, err := ApplyPattern(p, "banana.txt", time.Now(), 0)
	require.NoError(t, err)
	assert.Equal(t, "bXnana.txt", out)
}

func TestApplyPatternCaseConversionUpper(t *testing.T) {
	p := Pattern{CaseConversion: CaseUpper}

	out, err := ApplyPattern(p, "report.txt", time.Now(), 0)
	require.NoError(t, err)
	assert.Equal(t, "REPORT.TXT", out)
}

func TestApplyPatternCaseConversionSnake(t *testing.T) {
	p := Pattern{CaseConversion: CaseSnake}

	out, err := ApplyPattern(p, "Quarterly Report Final.txt", time.Now(), 0)
	require.NoError(t, err)
	assert.Equal(t, "quarterly_report_final_txt", out)
}

func TestApplyPatternCaseConversionKebab(t *testing.T) {
	p := Pattern{CaseConversion: CaseKebab}

	out, err := ApplyPattern(p, "myFileName", time.Now(), 0)
	require.NoError(t, err)
	assert.Equal(t, "my-file-name", out)
}

func TestApplyPatternCharacterReplacements(t *testing.T) {
	p := Pattern{CharacterReplacements: map[string]string{" ": "_"}}

	out, err := ApplyPattern(p, "my file.txt", time.Now(), 0)
	require.NoError(t, err)
	assert.Equal(t, "my_file.txt", out)
}

func TestApplyPatternSequentialNumberingWithPlaceholder(t *testing.T) {
	p := Pattern{SequentialNumbering: true, NumberStart: 1, NumberPadding: 3}

	out, err := ApplyPattern(p, "photo-{num:04d}", time.Now(), 2)
	require.NoError(t, err)
	assert.Equal(t, "photo-0003", out)
}

func TestApplyPatternSequentialNumberingAppendsWhenNoPlaceholder(t *testing.T) {
	p := Pattern{SequentialNumbering: true, NumberStart: 1, NumberPadding: 3}

	out, err := ApplyPattern(p, "photo", time.Now(), 0)
	require.NoError(t, err)
	assert.Equal(t, "photo_001", out)
}

func TestApplyPatternInsertDatetimePrefixesUsingFileMTime(t *testing.T) {
	mtime := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)
	p := Pattern{InsertDatetime: true, DatetimeFormat: "2006-01-02", UseFileMTime: true}

	out, err := ApplyPattern(p, "notes.txt", mtime, 0)
	require.NoError(t, err)
	assert.Equal(t, "2026-03-05notes.txt", out)
}

func TestApplyPatternSanitizeStripsInvalidChars(t *testing.T) {
	p := Pattern{SanitizeForFilesystem: true}

	out, err := ApplyPattern(p, `bad:name?.txt`, time.Now(), 0)
	require.NoError(t, err)
	assert.Equal(t, "badname.txt", out)
}

func TestApplyPatternSanitizeEmptyResultFallsBack(t *testing.T) {
	p := Pattern{Search: ".*", Replace: "", SanitizeForFilesystem: true, PreserveExtension: false}

	out, err := ApplyPattern(p, "???", time.Now(), 0)
	require.NoError(t, err)
	assert.Equal(t, "renamed_file", out)
}

func TestApplyPatternExtendedStripsWhitespaceAndComments(t *testing.T) {
	p := Pattern{
		Search: `
			IMG # leading marker
			_
		`,
		Replace: "Photo_",
		Extended: true,
	}

	out, err := ApplyPattern(p, "IMG_0001.jpg", time.Now(), 0)
	require.NoError(t, err)
	assert.Equal(t, "Photo_0001.jpg", out)
}

func TestValidateRegexRejectsUnterminatedPattern(t *testing.T) {
	assert.Error(t, ValidateRegex("(unterminated", false))
	assert.NoError(t, ValidateRegex(`^foo.*\.pdf$`, false))
}
