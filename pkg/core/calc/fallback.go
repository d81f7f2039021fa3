package calc

import (
	"sort"

	"finsight/pkg/core/alias"
	"finsight/pkg/core/clean"
	"finsight/pkg/models"
)

// minimalFields is the field set the direct-extraction fallback looks for.
var minimalFields = map[string]bool{
	alias.Revenue:          true,
	alias.NetProfit:        true,
	alias.TotalAssets:      true,
	alias.Equity:           true,
	alias.TotalLiabilities: true,
}

// DirectExtract scans raw at every nesting level, shallowest first, for the
// minimal field set. Only exact and substring alias matches count and the
// first hit of a field wins.
func DirectExtract(raw interface{}) models.PeriodRecord {
	out := models.PeriodRecord{}
	resolver := alias.Default()

	queue := []interface{}{raw}
	for len(queue) > 0 && len(out) < len(minimalFields) {
		node := queue[0]
		queue = queue[1:]

		switch t := node.(type) {
		case map[string]interface{}:
			keys := make([]string, 0, len(t))
			for k := range t {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				v := t[k]
				switch v.(type) {
				case map[string]interface{}, []interface{}:
					queue = append(queue, v)
					continue
				}
				m, ok := resolver.ResolveMatch(k, alias.CategoryAny)
				if !ok || m.Stage > alias.StageSubstring || !minimalFields[m.ID] {
					continue
				}
				if _, seen := out[m.ID]; seen {
					continue
				}
				if f, ok := clean.Clean(m.ID, v); ok {
					out[m.ID] = f
				}
			}
		case []interface{}:
			queue = append(queue, t...)
		}
	}
	return out
}

// statementFromRecord routes a flat record into current-period sections.
func statementFromRecord(rec models.PeriodRecord) models.CanonicalStatement {
	var stmt models.CanonicalStatement
	sections := map[string]models.PeriodRecord{}
	for id, v := range rec {
		cat, ok := alias.CategoryOf(id)
		if !ok {
			continue
		}
		if sections[string(cat)] == nil {
			sections[string(cat)] = models.PeriodRecord{}
		}
		sections[string(cat)][id] = v
	}
	for name, values := range sections {
		stmt.SetSection(name, []models.Period{{Label: "current", Values: values}})
	}
	return stmt
}
