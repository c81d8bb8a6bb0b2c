// Package normalizer proposes name fixes for OCR output: names from the
// event's invitation roster and corrections people made before. It never
// rewrites records itself; callers decide whether to apply a suggestion.
package normalizer

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/cloudflare/ahocorasick"
	"github.com/lithammer/fuzzysearch/fuzzy"
)

// MatchMethod says how a roster name was found.
type MatchMethod string

const (
	MethodExact    MatchMethod = "exact"
	MethodContains MatchMethod = "contains"
	MethodFuzzy    MatchMethod = "fuzzy"
)

// DefaultThreshold is the minimum similarity (0-100) for a fuzzy match.
const DefaultThreshold = 70

// minContainedRunes keeps one-syllable roster entries from matching inside
// every longer name.
const minContainedRunes = 2

// RosterMatch is a roster name proposed for an OCR name.
type RosterMatch struct {
	Name   string      `json:"name"`
	Score  int         `json:"score"`
	Method MatchMethod `json:"method"`
}

// Roster is the guest list for an event. It is safe for concurrent use and
// can be rebuilt in place.
type Roster struct {
	mu      sync.RWMutex
	names   []string       // display form, roster order
	keys    []string       // compacted form, same order
	byKey   map[string]int // compacted -> index
	matcher *ahocorasick.Matcher
	acIndex []int // matcher dictionary index -> names index
}

// NewRoster builds a roster from names. Blank and duplicate names are dropped.
func NewRoster(names []string) *Roster {
	r := &Roster{}
	r.Build(names)
	return r
}

// LoadRoster reads one name per line.
func LoadRoster(rd io.Reader) (*Roster, error) {
	var names []string
	sc := bufio.NewScanner(rd)
	for sc.Scan() {
		names = append(names, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read roster: %w", err)
	}
	return NewRoster(names), nil
}

// LoadRosterFile reads a roster file. An empty path yields an empty roster.
func LoadRosterFile(path string) (*Roster, error) {
	if path == "" {
		return NewRoster(nil), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open roster: %w", err)
	}
	defer f.Close()
	return LoadRoster(f)
}

// Build replaces the roster contents.
func (r *Roster) Build(names []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.names = r.names[:0]
	r.keys = r.keys[:0]
	r.byKey = make(map[string]int, len(names))
	r.acIndex = r.acIndex[:0]

	var patterns [][]byte
	for _, n := range names {
		display := strings.Join(strings.Fields(n), " ")
		key := compact(display)
		if key == "" {
			continue
		}
		if _, dup := r.byKey[key]; dup {
			continue
		}
		r.byKey[key] = len(r.names)
		if utf8.RuneCountInString(key) >= minContainedRunes {
			patterns = append(patterns, []byte(key))
			r.acIndex = append(r.acIndex, len(r.names))
		}
		r.names = append(r.names, display)
		r.keys = append(r.keys, key)
	}

	r.matcher = nil
	if len(patterns) > 0 {
		r.matcher = ahocorasick.NewMatcher(patterns)
	}
}

// Len returns the number of distinct names.
func (r *Roster) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.names)
}

// Names returns a copy of the roster in its original order.
func (r *Roster) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Best returns the roster name that most likely corresponds to an OCR name:
// an exact match first, then the longest roster name contained in it, then
// the closest name by edit distance at or above threshold.
func (r *Roster) Best(name string, threshold int) (RosterMatch, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	key := compact(name)
	if key == "" || len(r.names) == 0 {
		return RosterMatch{}, false
	}

	if i, ok := r.byKey[key]; ok {
		return RosterMatch{Name: r.names[i], Score: 100, Method: MethodExact}, true
	}

	if m, ok := r.contained(key); ok {
		return m, true
	}

	best, bestScore := -1, threshold-1
	for i, k := range r.keys {
		if s := similarity(key, k); s > bestScore {
			best, bestScore = i, s
		}
	}
	if best < 0 {
		return RosterMatch{}, false
	}
	return RosterMatch{Name: r.names[best], Score: bestScore, Method: MethodFuzzy}, true
}

// contained finds roster names occurring inside key in a single pass and
// keeps the longest one.
func (r *Roster) contained(key string) (RosterMatch, bool) {
	if r.matcher == nil {
		return RosterMatch{}, false
	}
	hits := r.matcher.Match([]byte(key))
	best := -1
	for _, h := range hits {
		if h < 0 || h >= len(r.acIndex) {
			continue
		}
		i := r.acIndex[h]
		if best < 0 || len(r.keys[i]) > len(r.keys[best]) {
			best = i
		}
	}
	if best < 0 {
		return RosterMatch{}, false
	}
	return RosterMatch{Name: r.names[best], Score: similarity(key, r.keys[best]), Method: MethodContains}, true
}

// Candidates returns up to limit roster names containing the characters of
// query in order, closest first. It backs autocompletion while editing.
func (r *Roster) Candidates(query string, limit int) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	key := compact(query)
	if key == "" {
		return nil
	}
	ranks := fuzzy.RankFindNormalizedFold(key, r.keys)
	sort.Stable(ranks)

	if limit <= 0 || limit > len(ranks) {
		limit = len(ranks)
	}
	out := make([]string, 0, limit)
	for _, rk := range ranks[:limit] {
		out = append(out, r.names[rk.OriginalIndex])
	}
	return out
}

// similarity scores two compacted names from 0 to 100.
func similarity(a, b string) int {
	if a == b {
		return 100
	}
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	if la == 0 || lb == 0 {
		return 0
	}
	if strings.Contains(a, b) {
		return 75 + 25*lb/la
	}
	if strings.Contains(b, a) {
		return 75 + 25*la/lb
	}

	maxLen := max(la, lb)
	d := fuzzy.LevenshteinDistance(a, b)
	if d >= maxLen {
		return 0
	}
	return 100 * (maxLen - d) / maxLen
}

// compact drops whitespace and upper-cases Latin letters so "김 철수" and
// "김철수" compare equal.
func compact(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}
