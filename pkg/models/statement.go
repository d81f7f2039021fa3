package models

import (
	"sort"
	"strconv"
)

// Section names of a CanonicalStatement
const (
	SectionIncome   = "income"
	SectionBalance  = "balance"
	SectionCashFlow = "cash_flow"
)

// FormatTag classifies the top-level shape of an incoming payload
type FormatTag string

const (
	FormatNestedSections FormatTag = "nested_sections"
	FormatFlatMetrics    FormatTag = "flat_metrics"
	FormatYearKeyed      FormatTag = "year_keyed"
	FormatRatioOnly      FormatTag = "ratio_only"
	FormatUnknown        FormatTag = "unknown"
)

// PeriodRecord maps canonical field id -> value. Values are always finite.
type PeriodRecord map[string]float64

// Get returns the value and whether the field is present.
func (r PeriodRecord) Get(field string) (float64, bool) {
	if r == nil {
		return 0, false
	}
	v, ok := r[field]
	return v, ok
}

// Fields returns the sorted field ids of the record.
func (r PeriodRecord) Fields() []string {
	out := make([]string, 0, len(r))
	for k := range r {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Clone returns a shallow copy.
func (r PeriodRecord) Clone() PeriodRecord {
	out := make(PeriodRecord, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Period is one reporting period of a statement section.
type Period struct {
	Label  string       `json:"label"` // "2024", "2024-06-30" or "current"
	Year   int          `json:"year,omitempty"`
	Values PeriodRecord `json:"values"`
}

// CanonicalStatement holds the three statement sections, most recent period first.
type CanonicalStatement struct {
	Income   []Period `json:"income"`
	Balance  []Period `json:"balance"`
	CashFlow []Period `json:"cash_flow"`
}

// Section returns the periods of the named section.
func (s *CanonicalStatement) Section(name string) []Period {
	switch name {
	case SectionIncome:
		return s.Income
	case SectionBalance:
		return s.Balance
	case SectionCashFlow:
		return s.CashFlow
	}
	return nil
}

// SetSection replaces the periods of the named section.
func (s *CanonicalStatement) SetSection(name string, periods []Period) {
	switch name {
	case SectionIncome:
		s.Income = periods
	case SectionBalance:
		s.Balance = periods
	case SectionCashFlow:
		s.CashFlow = periods
	}
}

// SectionNames lists sections in canonical order.
func SectionNames() []string {
	return []string{SectionIncome, SectionBalance, SectionCashFlow}
}

// FieldCount counts every stored value across all sections and periods.
func (s *CanonicalStatement) FieldCount() int {
	n := 0
	for _, name := range SectionNames() {
		for _, p := range s.Section(name) {
			n += len(p.Values)
		}
	}
	return n
}

// IsEmpty reports whether normalization produced no usable field at all.
func (s *CanonicalStatement) IsEmpty() bool {
	return s.FieldCount() == 0
}

// Latest returns the value of field in the most recent period of section.
func (s *CanonicalStatement) Latest(section, field string) (float64, bool) {
	periods := s.Section(section)
	if len(periods) == 0 {
		return 0, false
	}
	return periods[0].Values.Get(field)
}

// Previous returns the value of field in the second most recent period of section.
func (s *CanonicalStatement) Previous(section, field string) (float64, bool) {
	periods := s.Section(section)
	if len(periods) < 2 {
		return 0, false
	}
	return periods[1].Values.Get(field)
}

// Lookup searches the latest period of every section for field, in canonical section order.
func (s *CanonicalStatement) Lookup(field string) (float64, bool) {
	for _, name := range SectionNames() {
		if v, ok := s.Latest(name, field); ok {
			return v, true
		}
	}
	return 0, false
}

// Flat merges the latest period of every section into one record. Earlier sections win.
func (s *CanonicalStatement) Flat() PeriodRecord {
	out := PeriodRecord{}
	for _, name := range SectionNames() {
		periods := s.Section(name)
		if len(periods) == 0 {
			continue
		}
		for k, v := range periods[0].Values {
			if _, exists := out[k]; !exists {
				out[k] = v
			}
		}
	}
	return out
}

// HistoryTable maps a 4-digit year string to that year's period record.
type HistoryTable map[string]PeriodRecord

// Years returns the year keys, most recent first. Non-numeric keys sort last.
func (h HistoryTable) Years() []string {
	out := make([]string, 0, len(h))
	for k := range h {
		out = append(out, k)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, errA := strconv.Atoi(out[i])
		b, errB := strconv.Atoi(out[j])
		switch {
		case errA == nil && errB == nil:
			return a > b
		case errA == nil:
			return true
		case errB == nil:
			return false
		}
		return out[i] > out[j]
	})
	return out
}
