package renamer

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// invalidFSChars are stripped by SanitizeForFilesystem.
const invalidFSChars = `<>:"/\|?*`

// ApplyPattern runs the full rename pipeline against one node's current
// name: optional extension split, regex replacement, case conversion,
// character replacements, sequential numbering, datetime insertion,
// sanitization, then extension re-attach.
func ApplyPattern(p Pattern, name string, mtime time.Time, seqIndex int) (string, error) {
	stem := name
	ext := ""

	if p.PreserveExtension && !p.ApplyToExtension {
		ext = filepath.Ext(name)
		stem = strings.TrimSuffix(name, ext)
	}

	if p.NormalizeUnicode {
		stem = norm.NFC.String(stem)
	}

	stem, err := regexReplace(p, stem)
	if err != nil {
		return "", fmt.Errorf("renamer: applying pattern to %q: %w", name, err)
	}

	stem = applyCaseConversion(p.CaseConversion, stem)

	for old, repl := range p.CharacterReplacements {
		stem = strings.ReplaceAll(stem, old, repl)
	}

	if p.SequentialNumbering {
		stem = applySequentialNumbering(p, stem, seqIndex)
	}

	if p.InsertDatetime {
		ts := time.Now()
		if p.UseFileMTime {
			ts = mtime
		}

		layout := p.DatetimeFormat
		if layout == "" {
			layout = "2006-01-02"
		}

		stem = ts.Format(layout) + stem
	}

	if p.SanitizeForFilesystem {
		stem = sanitizeForFilesystem(stem)
	}

	return stem + ext, nil
}

func regexReplace(p Pattern, s string) (string, error) {
	if p.Search == "" {
		return s, nil
	}

	search := p.Search
	if p.Extended {
		search = stripExtendedWhitespace(search)
	}

	if !p.CaseSensitive {
		search = "(?i)" + search
	}

	re, err := regexp.Compile(search)
	if err != nil {
		return "", fmt.Errorf("compiling search pattern: %w", err)
	}

	if p.MaxReplacements != nil {
		return replaceLimited(re, s, p.Replace, *p.MaxReplacements), nil
	}

	return re.ReplaceAllString(s, p.Replace), nil
}

// replaceLimited replaces at most n matches of re in s with repl,
// expanding $1-style group references the way ReplaceAllString does.
func replaceLimited(re *regexp.Regexp, s, repl string, n int) string {
	if n <= 0 {
		return s
	}

	matches := re.FindAllSubmatchIndex([]byte(s), -1)

	var buf []byte

	last := 0

	for i, m := range matches {
		if i >= n {
			break
		}

		buf = append(buf, s[last:m[0]]...)
		buf = re.ExpandString(buf, repl, s, m)
		last = m[1]
	}

	buf = append(buf, s[last:]...)

	return string(buf)
}

// stripExtendedWhitespace approximates free-spacing ("extended") regex
// mode by removing unescaped whitespace and '#' line comments outside of
// character classes. It does not implement the full PCRE extended-mode
// grammar, only the common whitespace/comment case.
func stripExtendedWhitespace(pattern string) string {
	var out strings.Builder

	inClass := false
	escaped := false
	inComment := false

	for _, r := range pattern {
		if inComment {
			if r == '\n' {
				inComment = false
			}

			continue
		}

		if escaped {
			out.WriteRune(r)
			escaped = false

			continue
		}

		switch r {
		case '\\':
			out.WriteRune(r)
			escaped = true
		case '[':
			inClass = true
			out.WriteRune(r)
		case ']':
			inClass = false
			out.WriteRune(r)
		case '#':
			if !inClass {
				inComment = true
				continue
			}

			out.WriteRune(r)
		case ' ', '\t', '\n', '\r':
			if !inClass {
				continue
			}

			out.WriteRune(r)
		default:
			out.WriteRune(r)
		}
	}

	return out.String()
}

var (
	camelBoundary = regexp.MustCompile(`([a-z0-9])([A-Z])`)
	wordBoundary = regexp.MustCompile(`[^A-Za-z0-9]+`)
)

func splitWords(s string) []string {
	s = camelBoundary.ReplaceAllString(s, "$1 $2")
	parts := wordBoundary.Split(s, -1)

	out := make([]string, 0, len(parts))

	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}

	return out
}

func applyCaseConversion(kind CaseConversion, s string) string {
	switch kind {
	case CaseLower:
		return cases.Lower(language.Und).String(s)
	case CaseUpper:
		return cases.Upper(language.Und).String(s)
	case CaseTitle:
		return cases.Title(language.Und).String(s)
	case CaseSentence:
		return sentenceCase(s)
	case CaseCamel:
		return camelCase(s)
	case CaseSnake:
		return strings.Join(lowerAll(splitWords(s)), "_")
	case CaseKebab:
		return strings.Join(lowerAll(splitWords(s)), "-")
	default:
		return s
	}
}

func lowerAll(words []string) []string {
	out := make([]string, len(words))
	for i, w := range words {
		out[i] = strings.ToLower(w)
	}

	return out
}

func sentenceCase(s string) string {
	lower := cases.Lower(language.Und).String(s)
	for _, r := range lower {
		return strings.ToUpper(string(r)) + lower[len(string(r)):]
	}

	return lower
}

func camelCase(s string) string {
	words := lowerAll(splitWords(s))
	if len(words) == 0 {
		return ""
	}

	var out strings.Builder

	out.WriteString(words[0])

	titler := cases.Title(language.Und)
	for _, w := range words[1:] {
		out.WriteString(titler.String(w))
	}

	return out.String()
}

var numberPlaceholder = regexp.MustCompile(`\{num(?::(\d+)d)?\}`)

// applySequentialNumbering substitutes {num}/{num:0Nd} placeholders, or
// appends "_NNN" if none is present.
func applySequentialNumbering(p Pattern, s string, seqIndex int) string {
	num := p.NumberStart + seqIndex

	if numberPlaceholder.MatchString(s) {
		return numberPlaceholder.ReplaceAllStringFunc(s, func(m string) string {
			sub := numberPlaceholder.FindStringSubmatch(m)

			width := p.NumberPadding
			if sub[1] != "" {
				if w, err := strconv.Atoi(sub[1]); err == nil {
					width = w
				}
			}

			return fmt.Sprintf("%0*d", width, num)
		})
	}

	if p.NumberFormat != "" {
		return s + "_" + fmt.Sprintf(p.NumberFormat, num)
	}

	width := p.NumberPadding
	if width <= 0 {
		width = 3
	}

	return fmt.Sprintf("%s_%0*d", s, width, num)
}

// sanitizeForFilesystem strips characters invalid on common filesystems,
// trims trailing dots/spaces, and substitutes a fallback name for an
// empty result.
func sanitizeForFilesystem(s string) string {
	var out strings.Builder

	for _, r := range s {
		if r < 0x20 || strings.ContainsRune(invalidFSChars, r) {
			continue
		}

		out.WriteRune(r)
	}

	trimmed := strings.TrimRight(out.String(), ". ")
	if trimmed == "" {
		return "renamed_file"
	}

	return trimmed
}
