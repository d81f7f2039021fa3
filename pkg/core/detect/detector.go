// Package detect classifies the top-level shape of a financial payload.
package detect

import (
	"regexp"
	"strconv"
	"strings"

	"finsight/pkg/core/alias"
	"finsight/pkg/models"
)

// =============================================================================
// KEY VOCABULARY
// =============================================================================

// SectionKeys maps a statement section to its recognised (bilingual) container keys.
// Each list is ordered English first, then Chinese.
var SectionKeys = map[string][]string{
	models.SectionIncome:   {"income_statement", "income", "profit_statement", "利润表", "损益表"},
	models.SectionBalance:  {"balance_sheet", "balance", "资产负债表"},
	models.SectionCashFlow: {"cash_flow", "cash_flow_statement", "cashflow", "cash_flow_sheet", "现金流量表"},
}

// HistoryKeys are dedicated multi-year container keys, in priority order.
var HistoryKeys = []string{
	"historical_data", "historical_trends", "历史数据", "financial_data", "financial_metrics", "historical", "多年数据",
}

// RatioCategoryKeys mark a ratio-only payload.
var RatioCategoryKeys = []string{
	"profitability", "solvency", "efficiency", "growth", "cash_flow_ratios", "ratios",
	"盈利能力", "偿债能力", "营运能力", "成长能力", "财务比率",
}

// coreMetricIDs are the canonical fields whose presence marks a flat metric map.
var coreMetricIDs = map[string]bool{
	alias.Revenue:          true,
	alias.NetProfit:        true,
	alias.NetProfitParent:  true,
	alias.TotalAssets:      true,
	alias.TotalLiabilities: true,
	alias.Equity:           true,
	alias.OperatingProfit:  true,
	alias.GrossProfit:      true,
}

var yearRe = regexp.MustCompile(`^(19|20)\d{2}$`)

// IsYearKey reports whether k is a 4-digit year string.
func IsYearKey(k string) bool {
	return yearRe.MatchString(strings.TrimSpace(k))
}

// =============================================================================
// DETECTION
// =============================================================================

// Detection is the outcome of format detection.
type Detection struct {
	Format models.FormatTag `json:"format"`
	// HistoryKey names the multi-year container key, when one was found.
	HistoryKey string `json:"history_key,omitempty"`
	// ArrayTrends is set when the payload carries years + *_trend arrays.
	ArrayTrends bool `json:"array_trends,omitempty"`
	// Sections maps canonical section name -> observed keys present in the payload.
	Sections map[string][]string `json:"sections,omitempty"`
	Evidence []string            `json:"evidence"`
}

// Detect classifies raw. Checks run in fixed precedence: statement sections,
// multi-year container, core flat metrics, year-keyed map, ratio keys.
func Detect(raw interface{}) Detection {
	switch v := raw.(type) {
	case map[string]interface{}:
		return detectMap(v)
	case []interface{}:
		if isPeriodList(v) {
			return Detection{Format: models.FormatYearKeyed, Evidence: []string{"list of period records"}}
		}
	}
	return Detection{Format: models.FormatUnknown, Evidence: []string{"payload is not an object"}}
}

func detectMap(m map[string]interface{}) Detection {
	d := Detection{Format: models.FormatUnknown}
	if len(m) == 0 {
		d.Evidence = append(d.Evidence, "empty object")
		return d
	}

	// 1. statement sections
	for _, section := range models.SectionNames() {
		for _, k := range SectionKeys[section] {
			if v, ok := lookupKey(m, k); ok && isContainer(v) {
				if d.Sections == nil {
					d.Sections = map[string][]string{}
				}
				d.Sections[section] = append(d.Sections[section], k)
			}
		}
	}
	if hk, ok := findHistoryKey(m); ok {
		d.HistoryKey = hk
	}
	if hasArrayTrends(m) {
		d.ArrayTrends = true
	}
	if len(d.Sections) > 0 {
		d.Format = models.FormatNestedSections
		d.Evidence = append(d.Evidence, "statement section keys present")
		return d
	}

	hasCore := hasCoreMetric(m)

	// 2. multi-year container
	if d.HistoryKey != "" || d.ArrayTrends {
		if hasCore {
			d.Format = models.FormatFlatMetrics
			d.Evidence = append(d.Evidence, "multi-year container with top-level metrics")
		} else {
			d.Format = models.FormatYearKeyed
			d.Evidence = append(d.Evidence, "multi-year container")
		}
		return d
	}

	// 3. core flat metrics
	if hasCore {
		d.Format = models.FormatFlatMetrics
		d.Evidence = append(d.Evidence, "core metric keys present")
		return d
	}

	// 4. all keys are years
	if allYearKeys(m) {
		d.Format = models.FormatYearKeyed
		d.Evidence = append(d.Evidence, "all top-level keys are years")
		return d
	}

	// 5. ratio categories or ratio names
	if hasRatioKeys(m) {
		d.Format = models.FormatRatioOnly
		d.Evidence = append(d.Evidence, "ratio keys present")
		return d
	}

	d.Evidence = append(d.Evidence, "no recognised keys")
	return d
}

// lookupKey finds k in m ignoring case and surrounding whitespace.
func lookupKey(m map[string]interface{}, k string) (interface{}, bool) {
	if v, ok := m[k]; ok {
		return v, true
	}
	for key, v := range m {
		if strings.EqualFold(strings.TrimSpace(key), k) {
			return v, true
		}
	}
	return nil, false
}

// LookupKey is the exported case-insensitive key lookup.
func LookupKey(m map[string]interface{}, k string) (interface{}, bool) {
	return lookupKey(m, k)
}

func findHistoryKey(m map[string]interface{}) (string, bool) {
	for _, k := range HistoryKeys {
		v, ok := lookupKey(m, k)
		if !ok {
			continue
		}
		switch t := v.(type) {
		case map[string]interface{}:
			if len(t) == 0 || anyYearKey(t) || metricYearShape(t) {
				return k, true
			}
		case []interface{}:
			if isPeriodList(t) {
				return k, true
			}
		}
	}
	return "", false
}

func hasArrayTrends(m map[string]interface{}) bool {
	years, ok := lookupKey(m, "years")
	if !ok {
		if years, ok = lookupKey(m, "年份"); !ok {
			return false
		}
	}
	list, ok := years.([]interface{})
	if !ok || len(list) == 0 {
		return false
	}
	for key, v := range m {
		if _, isList := v.([]interface{}); !isList {
			continue
		}
		lk := strings.ToLower(key)
		if strings.HasSuffix(lk, "_trend") || strings.HasSuffix(lk, "趋势") {
			return true
		}
		if id, ok := alias.Resolve(key, alias.CategoryAny); ok && coreMetricIDs[id] {
			return true
		}
	}
	return false
}

func hasCoreMetric(m map[string]interface{}) bool {
	for k, v := range m {
		if _, isList := v.([]interface{}); isList || IsRatioGroupKey(k) {
			continue
		}
		match, ok := alias.Default().ResolveMatch(k, alias.CategoryAny)
		if ok && match.Stage <= alias.StageSubstring && coreMetricIDs[match.ID] {
			return true
		}
	}
	return false
}

// IsRatioGroupKey reports whether k names a ratio category container.
func IsRatioGroupKey(k string) bool {
	for _, rk := range RatioCategoryKeys {
		if strings.EqualFold(strings.TrimSpace(k), rk) {
			return true
		}
	}
	return false
}

func isContainer(v interface{}) bool {
	switch v.(type) {
	case map[string]interface{}, []interface{}:
		return true
	}
	return false
}

func allYearKeys(m map[string]interface{}) bool {
	for k := range m {
		if !IsYearKey(k) {
			return false
		}
	}
	return true
}

func anyYearKey(m map[string]interface{}) bool {
	for k := range m {
		if IsYearKey(k) {
			return true
		}
	}
	return false
}

// metricYearShape reports whether m looks like metric -> {year -> value}.
func metricYearShape(m map[string]interface{}) bool {
	for _, v := range m {
		if inner, ok := v.(map[string]interface{}); ok && anyYearKey(inner) {
			return true
		}
	}
	return false
}

func hasRatioKeys(m map[string]interface{}) bool {
	for _, k := range RatioCategoryKeys {
		if _, ok := lookupKey(m, k); ok {
			return true
		}
	}
	for k := range m {
		if _, ok := alias.Resolve(k, alias.CategoryRatio); ok {
			return true
		}
	}
	return false
}

// isPeriodList reports whether v is a list of maps each carrying a year field.
func isPeriodList(v []interface{}) bool {
	if len(v) == 0 {
		return false
	}
	for _, item := range v {
		m, ok := item.(map[string]interface{})
		if !ok {
			return false
		}
		if _, ok := PeriodLabel(m); !ok {
			return false
		}
	}
	return true
}

// periodKeys name the field that labels a period inside a record.
var periodKeys = []string{"year", "年份", "fiscal_year", "period", "report_date", "报告期", "REPORT_DATE"}

// PeriodLabel extracts the period label of a record ("2024", "2024-12-31").
func PeriodLabel(m map[string]interface{}) (string, bool) {
	for _, k := range periodKeys {
		v, ok := lookupKey(m, k)
		if !ok {
			continue
		}
		switch t := v.(type) {
		case string:
			if s := strings.TrimSpace(t); s != "" {
				return s, true
			}
		case float64:
			return formatYear(t), true
		case int:
			return formatYear(float64(t)), true
		}
	}
	return "", false
}

// IsPeriodKey reports whether k labels a period rather than a metric.
func IsPeriodKey(k string) bool {
	for _, p := range periodKeys {
		if strings.EqualFold(k, p) {
			return true
		}
	}
	return false
}

func formatYear(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
