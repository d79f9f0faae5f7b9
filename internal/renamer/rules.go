package renamer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// RulesFilePerms restricts an exported rule file to owner-only
// read/write, matching every other on-disk document in this repo.
const RulesFilePerms = 0o600

// ruleDocument is the on-disk shape of an exported rule set: a name ->
// Pattern map, plus a version tag so a future format change can be
// detected on import rather than silently misparsed.
type ruleDocument struct {
	Version int                `json:"version"`
	Rules   map[string]Pattern `json:"rules"`
}

const rulesDocVersion = 1

// ExportRules writes every named pattern in rules to path as a single
// JSON document, replacing any existing file atomically. Named rules are
// the custom-rule round-trip this package exposes; a caller that only
// has one unnamed Pattern can export it under a key of its own choosing.
func ExportRules(path string, rules map[string]Pattern) error {
	doc := ruleDocument{Version: rulesDocVersion, Rules: rules}

	data, err := json.MarshalIndent(doc, "", " ")
	if err != nil {
		return fmt.Errorf("renamer: encoding rules: %w", err)
	}

	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, ".rules-*.tmp")
	if err != nil {
		return fmt.Errorf("renamer: creating temp file: %w", err)
	}

	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := os.Chmod(tmpPath, RulesFilePerms); err != nil {
		tmp.Close()
		return fmt.Errorf("renamer: setting permissions: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("renamer: writing: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("renamer: syncing: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("renamer: closing: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renamer: renaming: %w", err)
	}

	success = true

	return nil
}

// ImportRules reads a rule set previously written by ExportRules. Unlike
// the source this repo is descended from, it does not silently ignore
// unparseable data: a malformed file or unsupported version is returned
// as an error.
func ImportRules(path string) (map[string]Pattern, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("renamer: reading %s: %w", path, err)
	}

	var doc ruleDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("renamer: decoding %s: %w", path, err)
	}

	if doc.Version != rulesDocVersion {
		return nil, fmt.Errorf("renamer: %s: unsupported rules version %d", path, doc.Version)
	}

	if doc.Rules == nil {
		doc.Rules = map[string]Pattern{}
	}

	return doc.Rules, nil
}

// RuleNames returns the keys of rules in sorted order, for stable
// listing in the CLI.
func RuleNames(rules map[string]Pattern) []string {
	names := make([]string, 0, len(rules))
	for name := range rules {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}
