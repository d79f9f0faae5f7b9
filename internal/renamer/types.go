// Package renamer implements the Regex Renamer: a
// bulk-rename planner that previews a regex-driven rename pattern across
// a batch of nodes without mutating anything, then applies it through
// the Cloud Client with an undo/redo stack.
package renamer

// CaseConversion is applied to the stem after the regex replacement step.
type CaseConversion int

// Case conversions
const (
	NoCaseChange CaseConversion = iota
	CaseLower
	CaseUpper
	CaseTitle
	CaseSentence
	CaseCamel
	CaseSnake
	CaseKebab
)

// Pattern is one rename specification, applied identically to every node
// in a batch. Every field is exported with a json tag so a named set of
// patterns can round-trip through ExportRules/ImportRules.
type Pattern struct {
	Search        string `json:"search"`
	Replace       string `json:"replace"`
	CaseSensitive bool   `json:"case_sensitive"`
	// Extended enables verbose/free-spacing regex syntax: unescaped
	// whitespace and '#'-to-end-of-line comments are stripped from
	// Search before it is compiled (RE2 has no native (?x) flag).
	Extended bool `json:"extended"`

	PreserveExtension bool `json:"preserve_extension"`
	ApplyToExtension  bool `json:"apply_to_extension"`
	MaxReplacements   *int `json:"max_replacements,omitempty"`

	SequentialNumbering bool `json:"sequential_numbering"`
	NumberStart         int  `json:"number_start"`
	NumberPadding       int  `json:"number_padding"`
	// NumberFormat, if set, is a fmt.Sprintf verb (e.g. "%03d") applied to
	// the sequence number in place of the default zero-padding, used only
	// when the name after the replace step has no {num}/{num:0Nd}
	// placeholder.
	NumberFormat string `json:"number_format,omitempty"`

	InsertDatetime bool   `json:"insert_datetime"`
	DatetimeFormat string `json:"datetime_format,omitempty"` // Go reference-time layout, e.g. "2006-01-02"
	UseFileMTime   bool   `json:"use_file_mtime"`

	CaseConversion        CaseConversion    `json:"case_conversion"`
	CharacterReplacements map[string]string `json:"character_replacements,omitempty"`

	SanitizeForFilesystem bool `json:"sanitize_for_filesystem"`
	NormalizeUnicode      bool `json:"normalize_unicode"`
}

// ConflictKind classifies why a proposed name can't be applied directly.
type ConflictKind int

// Conflict kinds
const (
	NoConflict ConflictKind = iota
	DuplicateInBatch
	ExistingSibling
)

func (k ConflictKind) String() string {
	switch k {
	case DuplicateInBatch:
		return "duplicate_in_batch"
	case ExistingSibling:
		return "existing_sibling"
	default:
		return "none"
	}
}
