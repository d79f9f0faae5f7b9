package renamer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportImportRulesRoundTrip(t *testing.T) {
	maxReplacements := 2

	rules := map[string]Pattern{
		"photos": {
			Search: `IMG_(\d+)`, Replace: "Photo_$1", PreserveExtension: true,
			CaseConversion: CaseTitle, MaxReplacements: &maxReplacements,
			CharacterReplacements: map[string]string{" ": "_"},
		},
		"invoices": {
			Search: `inv`, Replace: "Invoice", CaseSensitive: true,
			SequentialNumbering: true, NumberStart: 1, NumberPadding: 3,
		},
	}

	path := filepath.Join(t.TempDir(), "rules.json")

	require.NoError(t, ExportRules(path, rules))

	got, err := ImportRules(path)
	require.NoError(t, err)

	assert.Equal(t, rules, got)
}

func TestImportRulesRejectsUnsupportedVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version": 99, "rules": {}}`), 0o600))

	_, err := ImportRules(path)
	assert.Error(t, err)
}

func TestImportRulesRejectsMalformedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.json")
	require.NoError(t, os.WriteFile(path, []byte(`not json`), 0o600))

	_, err := ImportRules(path)
	assert.Error(t, err)
}

func TestRuleNamesSorted(t *testing.T) {
	rules := map[string]Pattern{"zeta": {}, "alpha": {}, "mid": {}}
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, RuleNames(rules))
}
