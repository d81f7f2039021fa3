package normalize

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"finsight/pkg/core/alias"
	"finsight/pkg/core/detect"
	"finsight/pkg/models"
)

// historyBlock walks a dedicated multi-year container. Year-labelled records
// go to the history table, anything else falls through to the sections.
func (b *builder) historyBlock(c cursor, hv interface{}) {
	c.history = true
	switch t := hv.(type) {
	case map[string]interface{}:
		b.walkMap(c.withUnit(t), t, nil)
	case []interface{}:
		b.periodList(c, t)
	}
}

// arrayTrends reads {"years": [...], "revenue_trend": [...]} style payloads.
func (b *builder) arrayTrends(root cursor, m map[string]interface{}) {
	yv, ok := detect.LookupKey(m, "years")
	if !ok {
		yv, ok = detect.LookupKey(m, "年份")
	}
	list, _ := yv.([]interface{})
	if !ok || len(list) == 0 {
		return
	}
	labels := make([]string, len(list))
	for i, y := range list {
		switch t := y.(type) {
		case float64:
			labels[i] = strconv.FormatFloat(t, 'f', -1, 64)
		case string:
			labels[i] = strings.TrimSpace(t)
		default:
			labels[i] = fmt.Sprint(t)
		}
	}

	for _, k := range sortedKeys(m) {
		values, isList := m[k].([]interface{})
		if !isList || isMetaKey(k) {
			continue
		}
		metric := trimTrendSuffix(k)
		if len(values) != len(labels) {
			b.diag.Notes = append(b.diag.Notes,
				fmt.Sprintf("%s has %d values for %d years", k, len(values), len(labels)))
		}
		for i, v := range values {
			if i >= len(labels) {
				break
			}
			c := root.in(labels[i])
			c.history = true
			c.path = fmt.Sprintf("$.%s[%d]", k, i)
			b.put(c, metric, v)
		}
	}
	if b.diag.HistorySource == "" {
		b.diag.HistorySource = "array_trends"
	}
}

func trimTrendSuffix(k string) string {
	lk := strings.ToLower(k)
	for _, suffix := range []string{"_trend", "_trends", "趋势"} {
		if strings.HasSuffix(lk, suffix) {
			return k[:len(k)-len(suffix)]
		}
	}
	return k
}

// historyTable converts the accumulated history records.
func (b *builder) historyTable() models.HistoryTable {
	out := models.HistoryTable{}
	for _, label := range b.hist.order {
		rec := b.hist.byLabel[label]
		if len(rec.fields) == 0 {
			continue
		}
		values := make(models.PeriodRecord, len(rec.fields))
		for k, fv := range rec.fields {
			values[k] = fv.value
		}
		out[label] = values
	}
	return out
}

// projectHistory copies history years into the statement sections so ratio
// growth can see prior periods. Explicit section data is never overwritten.
// An unlabeled current period that agrees with a history year takes its label.
func (b *builder) projectHistory() {
	if len(b.hist.order) == 0 {
		return
	}
	years := append([]string(nil), b.hist.order...)
	sort.Sort(sort.Reverse(sort.StringSlice(years)))

	for _, section := range models.SectionNames() {
		ps := b.sections[section]
		merged := false

		for _, year := range years {
			fields := map[string]fieldValue{}
			for id, fv := range b.hist.byLabel[year].fields {
				if cat, ok := alias.CategoryOf(id); ok && string(cat) == section {
					fields[id] = fv
				}
			}
			if len(fields) == 0 || ps.hasYear(year) {
				continue
			}
			if cur, ok := ps.byLabel[CurrentLabel]; ok && !merged && agrees(cur.fields, fields) {
				ps.relabel(CurrentLabel, year)
				merged = true
				rec := ps.byLabel[year]
				for id, fv := range fields {
					if _, exists := rec.fields[id]; !exists {
						rec.fields[id] = fv
					}
				}
				continue
			}
			rec := ps.get(year)
			for id, fv := range fields {
				rec.fields[id] = fv
			}
		}
	}
}

func (ps *periodSet) hasYear(year string) bool {
	want, _ := yearOf(year)
	for _, label := range ps.order {
		if y, ok := yearOf(label); ok && y == want {
			return true
		}
	}
	return false
}

func (ps *periodSet) relabel(from, to string) {
	rec := ps.byLabel[from]
	delete(ps.byLabel, from)
	rec.label = to
	ps.byLabel[to] = rec
	for i, l := range ps.order {
		if l == from {
			ps.order[i] = to
		}
	}
}

// agrees reports whether two records share at least one field and every
// shared field holds the same value.
func agrees(a, b map[string]fieldValue) bool {
	shared := 0
	for id, av := range a {
		bv, ok := b[id]
		if !ok {
			continue
		}
		shared++
		if math.Abs(av.value-bv.value) > 1e-9*math.Max(1, math.Abs(av.value)) {
			return false
		}
	}
	return shared > 0
}
