// Package normalize turns a detected raw payload into a CanonicalStatement
// (income, balance, cash_flow sections) and an optional HistoryTable.
// Normalization never fails: anything it cannot place is recorded in
// Diagnostics and dropped.
package normalize

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"finsight/pkg/core/alias"
	"finsight/pkg/core/clean"
	"finsight/pkg/core/detect"
	"finsight/pkg/models"
)

// CurrentLabel marks the unlabeled (latest) period of a flat payload.
const CurrentLabel = "current"

// =============================================================================
// OUTPUT
// =============================================================================

// UnmappedField is an observed key that did not resolve to a canonical field.
type UnmappedField struct {
	Path        string   `json:"path"`
	Key         string   `json:"key"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// DuplicateField records several observed keys resolving to one canonical field.
type DuplicateField struct {
	Section string   `json:"section"`
	Period  string   `json:"period"`
	Field   string   `json:"field"`
	Keys    []string `json:"keys"`
}

// Diagnostics collects everything the normalizer could not place cleanly.
type Diagnostics struct {
	Unmapped       []UnmappedField   `json:"unmapped_fields"`
	Rejected       []clean.Rejection `json:"rejected_values"`
	FlaggedYears   []string          `json:"flagged_years"`
	Duplicates     []DuplicateField  `json:"duplicate_fields"`
	NonNumeric     []string          `json:"non_numeric_fields"`
	InvalidTypes   []string          `json:"invalid_types"`
	ImplicitScaled []string          `json:"implicit_scaled,omitempty"`
	HistorySource  string            `json:"history_source,omitempty"`
	Notes          []string          `json:"notes,omitempty"`
	// ObservedLeaves counts scalar leaves visited in the payload.
	ObservedLeaves int `json:"observed_leaves"`
}

// Output is the normalizer's result.
type Output struct {
	Statement models.CanonicalStatement `json:"statement"`
	History   models.HistoryTable       `json:"history,omitempty"`
	// ReportedRatios holds ratios supplied directly by the payload, by ratio category.
	ReportedRatios map[string]map[string]float64 `json:"reported_ratios,omitempty"`
	Diagnostics    Diagnostics                   `json:"diagnostics"`
}

// IsEmpty reports whether nothing usable came out of normalization.
func (o *Output) IsEmpty() bool {
	return o.Statement.IsEmpty() && len(o.History) == 0 && len(o.ReportedRatios) == 0
}

// =============================================================================
// NORMALIZER
// =============================================================================

// Normalizer resolves keys and cleans values while restructuring a payload.
type Normalizer struct {
	resolver *alias.Resolver
	cleaner  *clean.Cleaner
	now      func() time.Time
}

// New creates a normalizer. Nil arguments fall back to package defaults.
func New(resolver *alias.Resolver, cleaner *clean.Cleaner) *Normalizer {
	if resolver == nil {
		resolver = alias.Default()
	}
	if cleaner == nil {
		cleaner = clean.New(clean.DefaultOptions())
	}
	return &Normalizer{resolver: resolver, cleaner: cleaner, now: time.Now}
}

// WithClock overrides the clock used for year validation.
func (n *Normalizer) WithClock(now func() time.Time) *Normalizer {
	n.now = now
	return n
}

// Normalize restructures raw with a default normalizer.
func Normalize(raw interface{}, det detect.Detection) Output {
	return New(nil, nil).Normalize(raw, det)
}

// Normalize restructures raw according to its detected format.
func (n *Normalizer) Normalize(raw interface{}, det detect.Detection) Output {
	b := newBuilder(n)
	root := cursor{category: alias.CategoryAny, label: CurrentLabel, path: "$"}

	switch v := raw.(type) {
	case map[string]interface{}:
		skip := b.reservedKeys(v, det)
		if det.Format == models.FormatNestedSections {
			b.nestedSections(v, det, root)
		}
		b.walkMap(root.withUnit(v), v, skip)
		if det.HistoryKey != "" {
			if hv, ok := detect.LookupKey(v, det.HistoryKey); ok {
				b.historyBlock(root.at(det.HistoryKey), hv)
				b.diag.HistorySource = det.HistoryKey
			}
		}
		if det.ArrayTrends {
			b.arrayTrends(root, v)
		}
	case []interface{}:
		b.periodList(root, v)
	case string:
		b.text(root, v)
	default:
		if raw != nil {
			b.diag.Notes = append(b.diag.Notes, fmt.Sprintf("payload of type %T carries no fields", raw))
		}
	}

	return b.finish()
}

// =============================================================================
// BUILDER
// =============================================================================

type fieldValue struct {
	value float64
	stage int
	key   string
}

type record struct {
	label  string
	fields map[string]fieldValue
}

type periodSet struct {
	order   []string
	byLabel map[string]*record
}

func newPeriodSet() *periodSet {
	return &periodSet{byLabel: map[string]*record{}}
}

func (ps *periodSet) get(label string) *record {
	if r, ok := ps.byLabel[label]; ok {
		return r
	}
	r := &record{label: label, fields: map[string]fieldValue{}}
	ps.byLabel[label] = r
	ps.order = append(ps.order, label)
	return r
}

type builder struct {
	n        *Normalizer
	sections map[string]*periodSet
	hist     *periodSet
	ratios   map[string]map[string]float64
	diag     Diagnostics

	dupSeen map[string]int // section|period|field -> index in diag.Duplicates
	yearSet map[string]bool
}

func newBuilder(n *Normalizer) *builder {
	b := &builder{
		n:        n,
		sections: map[string]*periodSet{},
		hist:     newPeriodSet(),
		dupSeen:  map[string]int{},
		yearSet:  map[string]bool{},
	}
	for _, s := range models.SectionNames() {
		b.sections[s] = newPeriodSet()
	}
	return b
}

// cursor tracks where in the payload a value was found and where it goes.
type cursor struct {
	category alias.Category
	label    string
	path     string
	unit     string
	history  bool
}

func (c cursor) at(key string) cursor {
	c.path = c.path + "." + key
	return c
}

func (c cursor) in(label string) cursor {
	c.label = label
	return c
}

// scaleKey is the key handed to the cleaner; a container-level unit
// annotation applies when the key carries none of its own.
func (c cursor) scaleKey(key string) string {
	if c.unit == "" {
		return key
	}
	if m, _ := clean.DetectScale(key); m != 1 {
		return key
	}
	return key + "(" + c.unit + ")"
}

// put resolves key within the cursor's category, cleans raw and stores it.
// It returns true when the value landed in the statement or history.
func (b *builder) put(c cursor, key string, raw interface{}) bool {
	b.diag.ObservedLeaves++
	path := c.path + "." + key

	match, ok := b.n.resolver.ResolveMatch(key, c.category)
	if (!ok || match.Stage != alias.StageExact) && c.category != alias.CategoryAny && c.category != alias.CategoryRatio {
		// an exact hit in another statement table beats a partial one here
		if m, found := b.n.resolver.ResolveMatch(key, alias.CategoryAny); found && m.Stage == alias.StageExact {
			match, ok = m, true
		}
	}
	if !ok {
		if rid, isRatio := b.n.resolver.Resolve(key, alias.CategoryRatio); isRatio {
			b.putRatio(rid, key, path, raw)
			return false
		}
		b.unmapped(c.category, key, path)
		return false
	}

	if match.Category == alias.CategoryRatio {
		b.putRatio(match.ID, key, path, raw)
		return false
	}

	out := b.n.cleaner.CleanKeyed(match.ID, c.scaleKey(key), raw)
	if !out.OK {
		b.reject(match.ID, key, path, raw, out.Reason)
		return false
	}
	if out.Implicit {
		b.diag.ImplicitScaled = append(b.diag.ImplicitScaled, path)
	}

	fv := fieldValue{value: out.Value, stage: match.Stage, key: key}
	b.noteYear(c.label)

	if c.history {
		if year, isYear := yearOf(c.label); isYear {
			label := strconv.Itoa(year)
			b.store("history", b.hist.get(label), match.ID, fv)
			return true
		}
	}

	section := string(match.Category)
	ps, exists := b.sections[section]
	if !exists {
		return false
	}
	b.store(section, ps.get(c.label), match.ID, fv)
	return true
}

func (b *builder) store(section string, rec *record, field string, fv fieldValue) {
	prev, exists := rec.fields[field]
	if !exists {
		rec.fields[field] = fv
		return
	}
	if prev.key != fv.key && prev.value != fv.value {
		id := section + "|" + rec.label + "|" + field
		if idx, seen := b.dupSeen[id]; seen {
			b.diag.Duplicates[idx].Keys = append(b.diag.Duplicates[idx].Keys, fv.key)
		} else {
			b.dupSeen[id] = len(b.diag.Duplicates)
			b.diag.Duplicates = append(b.diag.Duplicates, DuplicateField{
				Section: section, Period: rec.label, Field: field, Keys: []string{prev.key, fv.key},
			})
		}
	}
	// a more precise match replaces a looser one; Chinese keys win ties
	if fv.stage < prev.stage || (fv.stage == prev.stage && hasHan(fv.key) && !hasHan(prev.key)) {
		rec.fields[field] = fv
	}
}

func (b *builder) putRatio(id, key, path string, raw interface{}) {
	out := b.n.cleaner.CleanKeyed(id, key, raw)
	if !out.OK {
		b.reject(id, key, path, raw, out.Reason)
		return
	}
	cat := alias.RatioCategoryOf[id]
	if cat == "" {
		return
	}
	if b.ratios == nil {
		b.ratios = map[string]map[string]float64{}
	}
	if b.ratios[cat] == nil {
		b.ratios[cat] = map[string]float64{}
	}
	if _, exists := b.ratios[cat][id]; !exists {
		b.ratios[cat][id] = out.Value
	}
}

func (b *builder) unmapped(category alias.Category, key, path string) {
	suggestCat := category
	if suggestCat == alias.CategoryRatio {
		suggestCat = alias.CategoryAny
	}
	b.diag.Unmapped = append(b.diag.Unmapped, UnmappedField{
		Path:        path,
		Key:         key,
		Suggestions: b.n.resolver.Suggest(key, suggestCat, 3),
	})
}

func (b *builder) reject(field, key, path string, raw interface{}, reason string) {
	b.diag.Rejected = append(b.diag.Rejected, clean.Rejection{Field: field, Key: path, Raw: raw, Reason: reason})
	if s, ok := raw.(string); ok && strings.HasPrefix(reason, "not numeric") {
		b.diag.NonNumeric = append(b.diag.NonNumeric, path+"="+s)
	}
	switch raw.(type) {
	case map[string]interface{}, []interface{}, bool:
		b.diag.InvalidTypes = append(b.diag.InvalidTypes, path)
	}
}

// noteYear validates a period label that looks like a year.
func (b *builder) noteYear(label string) {
	year, ok := yearOf(label)
	if !ok || b.yearSet[label] {
		return
	}
	b.yearSet[label] = true
	if year < 1990 || year > b.n.now().Year()+1 {
		b.diag.FlaggedYears = append(b.diag.FlaggedYears, label)
	}
}

var leadingYearRe = regexp.MustCompile(`^((?:19|20)\d{2})(?:$|[-/.年]|\d{4}$|\d{2}$)`)

// yearOf extracts the year of a period label ("2024", "2024-12-31", "2024年", "20240630").
func yearOf(label string) (int, bool) {
	m := leadingYearRe.FindStringSubmatch(strings.TrimSpace(label))
	if m == nil {
		return 0, false
	}
	y, err := strconv.Atoi(m[1])
	return y, err == nil
}

// YearOf is the exported form of the period-label year parser.
func YearOf(label string) (int, bool) {
	return yearOf(label)
}

// finish converts accumulated records into the canonical output.
func (b *builder) finish() Output {
	b.projectHistory()

	var stmt models.CanonicalStatement
	for _, name := range models.SectionNames() {
		stmt.SetSection(name, b.sections[name].periods())
	}

	out := Output{Statement: stmt, Diagnostics: b.diag}
	if history := b.historyTable(); len(history) > 0 {
		out.History = history
	}
	if len(b.ratios) > 0 {
		out.ReportedRatios = b.ratios
	}
	sort.Strings(out.Diagnostics.FlaggedYears)
	return out
}

// periods orders records: the current period first, then years descending,
// then any other labels in insertion order. Empty records are dropped.
func (ps *periodSet) periods() []models.Period {
	var out []models.Period
	for _, label := range ps.order {
		rec := ps.byLabel[label]
		if len(rec.fields) == 0 {
			continue
		}
		values := make(models.PeriodRecord, len(rec.fields))
		for k, fv := range rec.fields {
			values[k] = fv.value
		}
		p := models.Period{Label: label, Values: values}
		if y, ok := yearOf(label); ok {
			p.Year = y
		}
		out = append(out, p)
	}

	rank := func(p models.Period) int {
		switch {
		case p.Label == CurrentLabel:
			return 0
		case p.Year > 0:
			return 1
		}
		return 2
	}
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := rank(out[i]), rank(out[j])
		if ri != rj {
			return ri < rj
		}
		if ri == 1 && out[i].Label != out[j].Label {
			if out[i].Year != out[j].Year {
				return out[i].Year > out[j].Year
			}
			return out[i].Label > out[j].Label
		}
		return false
	})
	return out
}

func hasHan(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Han, r) {
			return true
		}
	}
	return false
}
