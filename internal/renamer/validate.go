package renamer

import (
	"fmt"
	"regexp"
)

// ValidateRegex reports whether pattern compiles as RE2, after applying
// the same extended-mode preprocessing ApplyPattern uses, for UI-side
// pattern linting.
func ValidateRegex(pattern string, extended bool) error {
	if extended {
		pattern = stripExtendedWhitespace(pattern)
	}

	if _, err := regexp.Compile(pattern); err != nil {
		return fmt.Errorf("renamer: invalid pattern: %w", err)
	}

	return nil
}
