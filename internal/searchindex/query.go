package searchindex

import (
	"fmt"
	"math"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/megacustom/core/internal/cloudclient"
)

// sizeRange bounds Size, in bytes. Equality queries ("size:50mb") get a
// ±5% tolerance band.
type sizeRange struct {
	min, max uint64
}

type dateRange struct {
	min, max time.Time
}

// ParsedQuery is the compiled form of a query string, ready to match
// against IndexedNode values in a single pass.
type ParsedQuery struct {
	raw string

	typeFilter  *cloudclient.NodeKind
	notTerms    []string
	extensions  []string
	size        *sizeRange
	date        *dateRange
	pathSubstrs []string
	regex       *regexp.Regexp
	wildcards   []string
	orGroups [][]string
	andTerms []string
}

// relevanceTerm is the term used for name-match relevance scoring: the
// first bare AND term, if any.
func (q ParsedQuery) relevanceTerm() string {
	if len(q.andTerms) == 0 {
		return ""
	}

	return q.andTerms[0]
}

// ParseQuery compiles a query string into a ParsedQuery. now is the
// reference instant for relative date keywords ("today", "thisweek", …).
func ParseQuery(query string, now time.Time) (ParsedQuery, error) {
	q := ParsedQuery{raw: query}

	for _, token := range strings.Fields(query) {
		if err := q.applyToken(token, now); err != nil {
			return ParsedQuery{}, fmt.Errorf("searchindex: parsing %q: %w", token, err)
		}
	}

	return q, nil
}

func (q *ParsedQuery) applyToken(token string, now time.Time) error {
	if strings.HasPrefix(token, "!") {
		q.notTerms = append(q.notTerms, strings.TrimPrefix(token, "!"))
		return nil
	}

	if op, val, ok := splitOperator(token); ok {
		return q.applyOperator(op, val, now)
	}

	if strings.ContainsAny(token, "*?") {
		q.wildcards = append(q.wildcards, token)
		return nil
	}

	if strings.Contains(token, "|") {
		q.orGroups = append(q.orGroups, strings.Split(token, "|"))
		return nil
	}

	q.andTerms = append(q.andTerms, token)

	return nil
}

// knownOperators gates which "word:rest" tokens are treated as operators;
// anything else (e.g. a bare term that happens to contain ':') falls
// through to a plain AND term.
var knownOperators = map[string]bool{
	"ext": true, "size": true, "dm": true, "path": true, "type": true, "regex": true,
}

func splitOperator(token string) (op, val string, ok bool) {
	idx := strings.Index(token, ":")
	if idx <= 0 || idx == len(token)-1 {
		return "", "", false
	}

	op = strings.ToLower(token[:idx])
	if !knownOperators[op] {
		return "", "", false
	}

	return op, token[idx+1:], true
}

func (q *ParsedQuery) applyOperator(op, val string, now time.Time) error {
	switch op {
	case "ext":
		for _, e := range strings.Split(val, ",") {
			e = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(e), "."))
			if e != "" {
				q.extensions = append(q.extensions, e)
			}
		}
	case "size":
		r, err := parseSizeRange(val)
		if err != nil {
			return err
		}

		q.size = &r
	case "dm":
		r, err := parseDateRange(val, now)
		if err != nil {
			return err
		}

		q.date = &r
	case "path":
		q.pathSubstrs = append(q.pathSubstrs, val)
	case "type":
		var k cloudclient.NodeKind

		switch strings.ToLower(val) {
		case "file":
			k = cloudclient.KindFile
		case "folder":
			k = cloudclient.KindFolder
		default:
			return fmt.Errorf("searchindex: unknown type %q", val)
		}

		q.typeFilter = &k
	case "regex":
		re, err := regexp.Compile(val)
		if err != nil {
			return fmt.Errorf("searchindex: invalid regex: %w", err)
		}

		q.regex = re
	}

	return nil
}

// ValidateRegex reports whether pattern compiles, for UI-side linting
// before it is submitted in a query.
func ValidateRegex(pattern string) error {
	_, err := regexp.Compile(pattern)
	if err != nil {
		return fmt.Errorf("searchindex: invalid regex: %w", err)
	}

	return nil
}

var sizeUnit = regexp.MustCompile(`(?i)^([0-9]+(?:\.[0-9]+)?)\s*(b|kb|mb|gb|tb)?$`)

func parseSizeBytes(s string) (uint64, error) {
	m := sizeUnit.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, fmt.Errorf("searchindex: invalid size %q", s)
	}

	val, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, fmt.Errorf("searchindex: invalid size %q: %w", s, err)
	}

	mult := 1.0

	switch strings.ToLower(m[2]) {
	case "kb":
		mult = 1024
	case "mb":
		mult = 1024 * 1024
	case "gb":
		mult = 1024 * 1024 * 1024
	case "tb":
		mult = 1024 * 1024 * 1024 * 1024
	}

	return uint64(val * mult), nil
}

// parseSizeRange handles ">100mb", "<1gb", "10kb-50mb", "50mb" (the last
// with a ±5% equality tolerance)
func parseSizeRange(val string) (sizeRange, error) {
	switch {
	case strings.HasPrefix(val, ">"):
		b, err := parseSizeBytes(val[1:])
		if err != nil {
			return sizeRange{}, err
		}

		return sizeRange{min: b + 1, max: math.MaxUint64}, nil
	case strings.HasPrefix(val, "<"):
		b, err := parseSizeBytes(val[1:])
		if err != nil {
			return sizeRange{}, err
		}

		if b == 0 {
			return sizeRange{min: 0, max: 0}, nil
		}

		return sizeRange{min: 0, max: b - 1}, nil
	default:
		if lo, hi, ok := strings.Cut(val, "-"); ok {
			minB, err := parseSizeBytes(lo)
			if err != nil {
				return sizeRange{}, err
			}

			maxB, err := parseSizeBytes(hi)
			if err != nil {
				return sizeRange{}, err
			}

			return sizeRange{min: minB, max: maxB}, nil
		}

		b, err := parseSizeBytes(val)
		if err != nil {
			return sizeRange{}, err
		}

		tol := uint64(float64(b) * 0.05)

		return sizeRange{min: b - tol, max: b + tol}, nil
	}
}

var dateLayouts = []string{"2006-01-02", "2006/01/02", "01-02-2006"}

func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("searchindex: invalid date %q", s)
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	return startOfDay(t).Add(24*time.Hour - time.Nanosecond)
}

// parseDateRange handles the dm operator's keyword, single-date,
// after-date, and range forms.
func parseDateRange(val string, now time.Time) (dateRange, error) {
	switch strings.ToLower(val) {
	case "today":
		return dateRange{min: startOfDay(now), max: endOfDay(now)}, nil
	case "yesterday":
		y := now.AddDate(0, 0, -1)
		return dateRange{min: startOfDay(y), max: endOfDay(y)}, nil
	case "thisweek":
		start := startOfDay(now.AddDate(0, 0, -int(now.Weekday())))
		return dateRange{min: start, max: endOfDay(now)}, nil
	case "thismonth":
		y, m, _ := now.Date()
		start := time.Date(y, m, 1, 0, 0, 0, 0, now.Location())

		return dateRange{min: start, max: endOfDay(now)}, nil
	case "thisyear":
		start := time.Date(now.Year(), 1, 1, 0, 0, 0, 0, now.Location())
		return dateRange{min: start, max: endOfDay(now)}, nil
	}

	if strings.HasPrefix(val, ">") {
		d, err := parseDate(val[1:])
		if err != nil {
			return dateRange{}, err
		}

		return dateRange{min: endOfDay(d).Add(time.Nanosecond), max: now.Add(time.Hour * 24 * 365 * 100)}, nil
	}

	if strings.Count(val, "-") >= 2 {
		// "a-b" where a and b are themselves dash-separated dates; split
		// the token in half rather than on the first/last dash.
		if a, b, ok := splitDateRange(val); ok {
			da, err := parseDate(a)
			if err != nil {
				return dateRange{}, err
			}

			db, err := parseDate(b)
			if err != nil {
				return dateRange{}, err
			}

			return dateRange{min: startOfDay(da), max: endOfDay(db)}, nil
		}
	}

	d, err := parseDate(val)
	if err != nil {
		return dateRange{}, err
	}

	return dateRange{min: startOfDay(d), max: endOfDay(d)}, nil
}

// splitDateRange splits "YYYY-MM-DD-YYYY-MM-DD"-shaped strings (or the
// /-and-MM-DD-YYYY variants) into two date strings.
func splitDateRange(val string) (a, b string, ok bool) {
	parts := strings.Split(val, "-")
	if len(parts)%2 != 0 {
		return "", "", false
	}

	half := len(parts) / 2

	return strings.Join(parts[:half], "-"), strings.Join(parts[half:], "-"), true
}

// Matches applies a fixed decision order: type, NOT terms, extension, size,
// date, path-contains, regex, wildcards (all), OR set (any), AND terms
// (all), short-circuiting on the first false.
func (q ParsedQuery) Matches(n IndexedNode) bool {
	if q.typeFilter != nil && n.Kind != *q.typeFilter {
		return false
	}

	lowerName := strings.ToLower(n.Name)
	lowerPath := strings.ToLower(n.Path)

	for _, term := range q.notTerms {
		lt := strings.ToLower(term)
		if strings.Contains(lowerName, lt) || strings.Contains(lowerPath, lt) {
			return false
		}
	}

	if len(q.extensions) > 0 {
		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(n.Name), "."))

		match := false

		for _, e := range q.extensions {
			if ext == e {
				match = true
				break
			}
		}

		if !match {
			return false
		}
	}

	if q.size != nil && (n.Size < q.size.min || n.Size > q.size.max) {
		return false
	}

	if q.date != nil && (n.MTime.Before(q.date.min) || n.MTime.After(q.date.max)) {
		return false
	}

	for _, sub := range q.pathSubstrs {
		if !strings.Contains(lowerPath, strings.ToLower(sub)) {
			return false
		}
	}

	if q.regex != nil && !q.regex.MatchString(n.Name) {
		return false
	}

	for _, w := range q.wildcards {
		if ok, _ := filepath.Match(strings.ToLower(w), lowerName); !ok {
			return false
		}
	}

	for _, group := range q.orGroups {
		any := false

		for _, term := range group {
			lt := strings.ToLower(term)
			if strings.Contains(lowerName, lt) || strings.Contains(lowerPath, lt) {
				any = true
				break
			}
		}

		if !any {
			return false
		}
	}

	for _, term := range q.andTerms {
		lt := strings.ToLower(term)
		if !strings.Contains(lowerName, lt) && !strings.Contains(lowerPath, lt) {
			return false
		}
	}

	return true
}

// relevanceScore ranks a matched node for a bare search term.
func relevanceScore(term string, n IndexedNode, now time.Time) int {
	score := 0

	if term != "" {
		lowerName := strings.ToLower(n.Name)
		lowerTerm := strings.ToLower(term)
		lowerStem := strings.TrimSuffix(lowerName, strings.ToLower(filepath.Ext(n.Name)))

		switch {
		case lowerName == lowerTerm || lowerStem == lowerTerm:
			score += 100
		case strings.HasPrefix(lowerName, lowerTerm):
			score += 50
		case strings.Contains(lowerName, lowerTerm):
			score += 20
		}
	}

	if n.Kind == cloudclient.KindFolder {
		score += 5
	}

	days := int(now.Sub(n.MTime).Hours() / 24)

	switch {
	case days < 7:
		score += 10 - days
	case days < 30:
		score += 3
	}

	depth := strings.Count(strings.Trim(n.Path, "/"), "/") + 1
	if depth < 3 {
		score += (3 - depth) * 2
	}

	return score
}
