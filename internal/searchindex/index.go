package searchindex

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/megacustom/core/internal/cloudclient"
)

// minWordLen is the shortest word kept in the by-word postings list
// "retaining those of length >= 2".
const minWordLen = 2

var wordSplitter = func(r rune) bool {
	switch r {
	case ' ', '\t', '_', '-', '.':
		return true
	default:
		return false
	}
}

// Index is an in-memory inverted index over remote nodes. All reads and
// writes hold a single mutex; Search returns copies so callers hold no
// reference into the index after it returns.
type Index struct {
	mu sync.RWMutex

	nodes       []IndexedNode
	byHandle    map[uint64]int
	byExtension map[string][]int
	byWord      map[string][]int

	ready      bool
	builtAt    time.Time
	buildStart time.Time
}

// New creates an empty Index.
func New() *Index {
	return &Index{
		byHandle:    make(map[uint64]int),
		byExtension: make(map[string][]int),
		byWord:      make(map[string][]int),
	}
}

// BeginBuilding marks the index as not-ready and records the build start
// time, for front-ends that want to report elapsed build time.
func (idx *Index) BeginBuilding() {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.ready = false
	idx.buildStart = time.Now()
}

// AddNode appends node to the index, or replaces an existing entry with
// the same Handle in place.
func (idx *Index) AddNode(n cloudclient.Node) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	entry := indexedFromNode(n)

	if pos, ok := idx.byHandle[n.Handle]; ok {
		idx.removePostingsLocked(pos)
		idx.nodes[pos] = entry
		idx.addPostingsLocked(pos)

		return
	}

	pos := len(idx.nodes)
	idx.nodes = append(idx.nodes, entry)
	idx.byHandle[n.Handle] = pos
	idx.addPostingsLocked(pos)
}

// RemoveNode tombstones the entry for handle by clearing its name. The
// slot and its by_handle mapping are kept so Handle lookups still resolve
// to a dead entry rather than panicking on a stale index.
func (idx *Index) RemoveNode(handle uint64) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	pos, ok := idx.byHandle[handle]
	if !ok {
		return
	}

	idx.removePostingsLocked(pos)
	idx.nodes[pos].Name = ""
}

// FinishBuilding marks the index ready and records the build completion
// time.
func (idx *Index) FinishBuilding() {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.ready = true
	idx.builtAt = time.Now()
}

// Ready reports whether FinishBuilding has been called since the last
// BeginBuilding.
func (idx *Index) Ready() bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return idx.ready
}

// BuildDuration returns how long the most recent build took, valid once
// Ready() is true.
func (idx *Index) BuildDuration() time.Duration {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return idx.builtAt.Sub(idx.buildStart)
}

func (idx *Index) addPostingsLocked(pos int) {
	n := idx.nodes[pos]
	if n.tombstoned() {
		return
	}

	ext := extensionOf(n.Name)
	if ext != "" {
		idx.byExtension[ext] = append(idx.byExtension[ext], pos)
	}

	for _, w := range wordsOf(n.Name) {
		idx.byWord[w] = append(idx.byWord[w], pos)
	}
}

func (idx *Index) removePostingsLocked(pos int) {
	n := idx.nodes[pos]
	if n.tombstoned() {
		return
	}

	ext := extensionOf(n.Name)
	if ext != "" {
		idx.byExtension[ext] = removeFromPostings(idx.byExtension[ext], pos)
	}

	for _, w := range wordsOf(n.Name) {
		idx.byWord[w] = removeFromPostings(idx.byWord[w], pos)
	}
}

func removeFromPostings(list []int, pos int) []int {
	out := list[:0]

	for _, p := range list {
		if p != pos {
			out = append(out, p)
		}
	}

	return out
}

func extensionOf(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i <= 0 || i == len(name)-1 {
		return ""
	}

	return strings.ToLower(name[i+1:])
}

func wordsOf(name string) []string {
	fields := strings.FieldsFunc(strings.ToLower(name), wordSplitter)

	out := make([]string, 0, len(fields))

	for _, f := range fields {
		if len(f) >= minWordLen {
			out = append(out, f)
		}
	}

	return out
}

// candidatesLocked narrows the scan using the by_extension postings list
// when the query's ext operator can do so precisely; otherwise it falls
// back to scanning every position. Must be called with idx.mu held.
func (idx *Index) candidatesLocked(q ParsedQuery) []int {
	if len(q.extensions) == 0 {
		all := make([]int, len(idx.nodes))
		for i := range idx.nodes {
			all[i] = i
		}

		return all
	}

	var out []int
	for _, e := range q.extensions {
		out = append(out, idx.byExtension[e]...)
	}

	return out
}

// Search parses query, matches it against every non-tombstoned node, and
// returns the results sorted by sortKey. Relevance order is descending;
// every other key is ascending.
func (idx *Index) Search(query string, sortKey SortKey) ([]IndexedNode, error) {
	now := time.Now()

	parsed, err := ParseQuery(query, now)
	if err != nil {
		return nil, err
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	type scored struct {
		node  IndexedNode
		score int
	}

	var matched []scored

	term := parsed.relevanceTerm()

	for _, pos := range idx.candidatesLocked(parsed) {
		n := idx.nodes[pos]
		if n.tombstoned() {
			continue
		}

		if !parsed.Matches(n) {
			continue
		}

		matched = append(matched, scored{node: n, score: relevanceScore(term, n, now)})
	}

	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]

		switch sortKey {
		case SortName:
			return strings.ToLower(a.node.Name) < strings.ToLower(b.node.Name)
		case SortSize:
			return a.node.Size < b.node.Size
		case SortDateModified:
			return a.node.MTime.Before(b.node.MTime)
		case SortDateCreated:
			return a.node.CTime.Before(b.node.CTime)
		case SortType:
			return a.node.Kind < b.node.Kind
		case SortPath:
			return strings.ToLower(a.node.Path) < strings.ToLower(b.node.Path)
		default: // SortRelevance
			return a.score > b.score
		}
	})

	out := make([]IndexedNode, len(matched))
	for i, m := range matched {
		out[i] = m.node
	}

	return out, nil
}

// Len returns the number of live (non-tombstoned) entries.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	n := 0

	for _, e := range idx.nodes {
		if !e.tombstoned() {
			n++
		}
	}

	return n
}
