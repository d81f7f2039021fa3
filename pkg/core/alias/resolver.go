// Package alias maps observed (bilingual, abbreviated or suffixed) financial
// field names onto canonical field ids.
package alias

import (
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/cloudflare/ahocorasick"
	"github.com/lithammer/fuzzysearch/fuzzy"
)

// Match stages
const (
	StageExact     = 1
	StageSubstring = 2
	StageToken     = 3
)

// Match describes how an observed key was resolved.
type Match struct {
	ID       string   `json:"id"`
	Category Category `json:"category"`
	Stage    int      `json:"stage"`
	Alias    string   `json:"alias"`
}

type entry struct {
	id     string
	alias  string // folded
	tokens []string
}

type table struct {
	category Category
	entries  []entry
	exact    map[string]int // folded alias -> first entry index

	matcher  *ahocorasick.Matcher
	patterns []int // matcher pattern index -> entry index
}

// Resolver performs three-stage alias resolution over category-scoped tables.
// It is safe for concurrent use.
type Resolver struct {
	tables map[Category]*table

	// the Aho-Corasick matcher keeps per-call state internally
	mu sync.Mutex
}

// NewResolver builds a resolver over the built-in alias tables.
func NewResolver() *Resolver {
	r := &Resolver{tables: map[Category]*table{}}
	for _, c := range []Category{CategoryIncome, CategoryBalance, CategoryCashFlow, CategoryRatio} {
		r.tables[c] = buildTable(c, Tables(c))
	}
	return r
}

func buildTable(c Category, fields []Field) *table {
	t := &table{category: c, exact: map[string]int{}}
	seenPattern := map[string]bool{}
	var patterns [][]byte

	for _, f := range fields {
		aliases := append([]string{f.ID}, f.Aliases...)
		for _, a := range aliases {
			folded := Fold(a)
			if folded == "" {
				continue
			}
			idx := len(t.entries)
			t.entries = append(t.entries, entry{id: f.ID, alias: folded, tokens: Tokens(folded)})
			if _, exists := t.exact[folded]; !exists {
				t.exact[folded] = idx
			}
			if substringEligible(folded) && !seenPattern[folded] {
				seenPattern[folded] = true
				patterns = append(patterns, []byte(folded))
				t.patterns = append(t.patterns, idx)
			}
		}
	}
	if len(patterns) > 0 {
		t.matcher = ahocorasick.NewMatcher(patterns)
	}
	return t
}

var (
	defaultOnce     sync.Once
	defaultResolver *Resolver
)

// Default returns the shared read-only resolver built from the built-in tables.
func Default() *Resolver {
	defaultOnce.Do(func() {
		defaultResolver = NewResolver()
	})
	return defaultResolver
}

// Resolve maps an observed key to a canonical id using the default resolver.
func Resolve(observedKey string, category Category) (string, bool) {
	return Default().Resolve(observedKey, category)
}

// Resolve maps an observed key to a canonical id within category.
func (r *Resolver) Resolve(observedKey string, category Category) (string, bool) {
	m, ok := r.ResolveMatch(observedKey, category)
	return m.ID, ok
}

// ResolveMatch is Resolve with match details.
func (r *Resolver) ResolveMatch(observedKey string, category Category) (Match, bool) {
	folded := Fold(observedKey)
	if folded == "" {
		return Match{}, false
	}

	tables := r.tablesFor(category)
	if len(tables) == 0 {
		return Match{}, false
	}

	// Stage 1: exact
	for _, t := range tables {
		if idx, ok := t.exact[folded]; ok {
			e := t.entries[idx]
			return Match{ID: e.id, Category: t.category, Stage: StageExact, Alias: e.alias}, true
		}
	}

	if isNumeric(folded) {
		return Match{}, false
	}
	if category != CategoryRatio && looksLikeRatio(folded) {
		return Match{}, false
	}

	// partial matches must agree on exclusion markers
	markers := exclusionsIn(folded)

	// Stage 2: containment either way
	if m, ok := r.substringMatch(folded, markers, tables); ok {
		return m, true
	}

	// Stage 3: keyword overlap
	return tokenMatch(folded, markers, tables)
}

func (r *Resolver) tablesFor(category Category) []*table {
	if category == CategoryAny {
		out := make([]*table, 0, 3)
		for _, c := range StatementCategories() {
			out = append(out, r.tables[c])
		}
		return out
	}
	if t, ok := r.tables[category]; ok {
		return []*table{t}
	}
	return nil
}

func (r *Resolver) substringMatch(folded string, markers []string, tables []*table) (Match, bool) {
	if !substringEligible(folded) {
		return Match{}, false
	}

	var best Match
	bestScore, found := 0, false
	consider := func(t *table, idx, score int) {
		e := t.entries[idx]
		if !carriesAll(e.alias, markers) {
			return
		}
		// strict > keeps the earlier declared entry on ties
		if score > bestScore {
			best = Match{ID: e.id, Category: t.category, Stage: StageSubstring, Alias: e.alias}
			bestScore, found = score, true
		}
	}

	for _, t := range tables {
		// aliases contained in the key
		if t.matcher != nil {
			r.mu.Lock()
			hits := t.matcher.Match([]byte(folded))
			r.mu.Unlock()
			sort.Ints(hits)
			for _, h := range hits {
				if h < 0 || h >= len(t.patterns) {
					continue
				}
				idx := t.patterns[h]
				consider(t, idx, utf8.RuneCountInString(t.entries[idx].alias))
			}
		}
		// key contained in an alias
		keyLen := utf8.RuneCountInString(folded)
		for idx, e := range t.entries {
			if len(e.alias) > len(folded) && strings.Contains(e.alias, folded) && carriesAll(e.alias, markers) {
				consider(t, idx, keyLen)
				break
			}
		}
	}
	return best, found
}

func tokenMatch(folded string, markers []string, tables []*table) (Match, bool) {
	keyTokens := Tokens(folded)
	if len(keyTokens) == 0 {
		return Match{}, false
	}
	keySet := make(map[string]bool, len(keyTokens))
	for _, t := range keyTokens {
		keySet[t] = true
	}

	var best Match
	bestOverlap := 0
	for _, t := range tables {
		for _, e := range t.entries {
			if len(e.tokens) == 0 || !carriesAll(e.alias, markers) {
				continue
			}
			overlap, specific := 0, false
			for _, tok := range e.tokens {
				if keySet[tok] {
					overlap++
					if !stopTokens[tok] {
						specific = true
					}
				}
			}
			if !specific || overlap*2 < len(e.tokens) {
				continue
			}
			if overlap > bestOverlap {
				bestOverlap = overlap
				best = Match{ID: e.id, Category: t.category, Stage: StageToken, Alias: e.alias}
			}
		}
	}
	return best, bestOverlap > 0
}

// stopTokens never count as the deciding overlap on their own.
var stopTokens = map[string]bool{
	"total": true, "net": true, "of": true, "and": true, "the": true, "in": true, "from": true,
	"to": true, "for": true, "amount": true, "合计": true, "总额": true, "总计": true, "净额": true,
}

func isNumeric(s string) bool {
	for _, r := range s {
		if (r < '0' || r > '9') && r != '.' && r != '-' && r != '_' {
			return false
		}
	}
	return true
}

// Suggest returns up to n canonical ids whose aliases are close to the
// observed key. Used for diagnostics on keys that did not resolve.
func (r *Resolver) Suggest(observedKey string, category Category, n int) []string {
	folded := Fold(observedKey)
	if folded == "" || n <= 0 {
		return nil
	}

	type scored struct {
		id    string
		dist  int
		order int
	}
	var candidates []scored
	order := 0
	for _, t := range r.tablesFor(category) {
		targets := make([]string, len(t.entries))
		for i, e := range t.entries {
			targets[i] = e.alias
		}
		for _, rank := range fuzzy.RankFindNormalizedFold(folded, targets) {
			candidates = append(candidates, scored{id: t.entries[rank.OriginalIndex].id, dist: rank.Distance, order: order + rank.OriginalIndex})
		}
		limit := utf8.RuneCountInString(folded)/3 + 1
		for i, e := range t.entries {
			if d := fuzzy.LevenshteinDistance(folded, e.alias); d <= limit {
				candidates = append(candidates, scored{id: e.id, dist: d, order: order + i})
			}
		}
		order += len(t.entries)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].dist != candidates[j].dist {
			return candidates[i].dist < candidates[j].dist
		}
		return candidates[i].order < candidates[j].order
	})

	seen := map[string]bool{}
	var out []string
	for _, c := range candidates {
		if seen[c.id] {
			continue
		}
		seen[c.id] = true
		out = append(out, c.id)
		if len(out) == n {
			break
		}
	}
	return out
}
