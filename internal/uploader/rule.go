// Package uploader implements the Multi-Destination Uploader: a precursor
// to the Transfer Scheduler that classifies a set of local source files
// against an ordered list of Upload Rules and materialises one transfer
// task per source at the computed destination.
package uploader

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// RuleKind selects how a Rule's Pattern is interpreted.
type RuleKind int

// Rule kinds
const (
	ByExtension RuleKind = iota
	BySize
	ByName
	Default
)

func (k RuleKind) String() string {
	switch k {
	case ByExtension:
		return "by_extension"
	case BySize:
		return "by_size"
	case ByName:
		return "by_name"
	default:
		return "default"
	}
}

// Rule is one entry of the ordered classification list. Order is
// significant: classify uses the first matching enabled rule.
type Rule struct {
	ID          string
	Kind        RuleKind
	Pattern     string
	Destination string
	Enabled     bool
}

// matches reports whether the rule applies to a source file of the given
// name and size (bytes). BySize and Default never inspect the name;
// ByExtension and ByName never inspect size.
func (r Rule) matches(name string, size int64) (bool, error) {
	if !r.Enabled {
		return false, nil
	}

	switch r.Kind {
	case ByExtension:
		return matchExtension(r.Pattern, name), nil
	case BySize:
		return matchSize(r.Pattern, size)
	case ByName:
		return matchWildcard(r.Pattern, name), nil
	default:
		return true, nil
	}
}

// matchExtension compares name's extension against a comma-separated list
// of extensions; the leading dot is optional and comparison is
// case-insensitive.
func matchExtension(pattern, name string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))

	for _, candidate := range strings.Split(pattern, ",") {
		candidate = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(candidate), ".")))
		if candidate == "" {
			continue
		}

		if candidate == ext {
			return true
		}
	}

	return false
}

// matchSize parses a "min-max" pattern in megabytes and reports whether
// size (bytes) falls within [min, max], both bounds inclusive.
func matchSize(pattern string, size int64) (bool, error) {
	parts := strings.SplitN(pattern, "-", 2)
	if len(parts) != 2 {
		return false, fmt.Errorf("uploader: invalid size pattern %q, want \"min-max\"", pattern)
	}

	minMB, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return false, fmt.Errorf("uploader: invalid size pattern %q: %w", pattern, err)
	}

	maxMB, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return false, fmt.Errorf("uploader: invalid size pattern %q: %w", pattern, err)
	}

	const bytesPerMB = 1024 * 1024
	sizeMB := float64(size) / bytesPerMB

	return sizeMB >= minMB && sizeMB <= maxMB, nil
}

// matchWildcard matches a shell-style wildcard pattern (`*`, `?`) against
// name, case-insensitively.
func matchWildcard(pattern, name string) bool {
	ok, err := filepath.Match(strings.ToLower(pattern), strings.ToLower(name))
	return err == nil && ok
}
