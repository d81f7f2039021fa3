package normalize

import (
	"finsight/pkg/models"
)

// ToRaw renders a statement back into a nested-sections payload that
// normalizes to the same statement.
func ToRaw(stmt models.CanonicalStatement) map[string]interface{} {
	out := map[string]interface{}{}
	for _, name := range models.SectionNames() {
		periods := stmt.Section(name)
		if len(periods) == 0 {
			continue
		}
		if len(periods) == 1 && periods[0].Label == CurrentLabel {
			out[name] = recordToRaw(periods[0].Values)
			continue
		}
		section := make(map[string]interface{}, len(periods))
		for _, p := range periods {
			section[p.Label] = recordToRaw(p.Values)
		}
		out[name] = section
	}
	return out
}

func recordToRaw(r models.PeriodRecord) map[string]interface{} {
	m := make(map[string]interface{}, len(r))
	for k, v := range r {
		m[k] = v
	}
	return m
}
