package quality

import (
	"crypto/md5"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"finsight/pkg/core/alias"
	"finsight/pkg/core/detect"
	"finsight/pkg/core/utils"
	"finsight/pkg/core/validate"
	"finsight/pkg/models"
)

// Plausibility limits
const (
	ExtremeValueLimit = 1e15
	ProfitLimit       = 1e12
	GrowthLimitPct    = 500
)

// requiredFields lists the fields completeness expects per section.
var requiredFields = []struct {
	section string
	fields  []string
}{
	{models.SectionIncome, []string{alias.Revenue, alias.NetProfit}},
	{models.SectionBalance, []string{alias.TotalAssets, alias.TotalLiabilities, alias.Equity}},
	{models.SectionCashFlow, []string{alias.OperatingCashFlow}},
}

var sectionTitles = map[string]string{
	models.SectionIncome:   "利润表",
	models.SectionBalance:  "资产负债表",
	models.SectionCashFlow: "现金流量表",
}

type assessment struct {
	in        Input
	ctx       Context
	tolerance float64
	issues    []models.Issue
}

func (a *assessment) add(dim, typ, severity, desc, rec string, fields ...string) {
	if fields == nil {
		fields = []string{}
	}
	a.issues = append(a.issues, models.Issue{
		Type:           typ,
		Severity:       severity,
		Description:    desc,
		AffectedFields: fields,
		Recommendation: rec,
		Dimension:      dim,
	})
}

// tally counts issues added since index from as (critical+high, medium, all).
func (a *assessment) tally(from int) (severe, medium, all int) {
	for _, i := range a.issues[from:] {
		switch i.Severity {
		case models.SeverityCritical, models.SeverityHigh:
			severe++
		case models.SeverityMedium:
			medium++
		}
		all++
	}
	return
}

func clampScore(s float64) float64 {
	return math.Max(0, math.Min(100, s))
}

// =============================================================================
// COMPLETENESS
// =============================================================================

func (a *assessment) completeness() float64 {
	total, present := 0, 0
	for _, req := range requiredFields {
		total += len(req.fields)
		periods := a.in.Statement.Section(req.section)
		title := sectionTitles[req.section]
		if len(periods) == 0 {
			a.add(DimCompleteness, "missing_section", models.SeverityHigh,
				fmt.Sprintf("缺少%s数据", title),
				fmt.Sprintf("请提供%s数据", title),
				req.section)
			continue
		}
		for _, f := range req.fields {
			if hasField(periods, f) {
				present++
				continue
			}
			a.add(DimCompleteness, "missing_field", models.SeverityHigh,
				fmt.Sprintf("%s缺少必需字段: %s", title, f),
				fmt.Sprintf("请添加%s数据%s", f, fieldHint(f)),
				req.section+"."+f)
		}
	}

	a.historyGaps()

	if total == 0 {
		return 100
	}
	return float64(present) / float64(total) * 100
}

func hasField(periods []models.Period, field string) bool {
	for _, p := range periods {
		if _, ok := p.Values.Get(field); ok {
			return true
		}
	}
	return false
}

// MissingFields lists the required "section.field" entries absent from stmt.
func MissingFields(stmt models.CanonicalStatement) []string {
	missing := []string{}
	for _, req := range requiredFields {
		periods := stmt.Section(req.section)
		for _, f := range req.fields {
			if !hasField(periods, f) {
				missing = append(missing, req.section+"."+f)
			}
		}
	}
	return missing
}

// fieldHint names accepted aliases for a canonical field.
func fieldHint(field string) string {
	cat, ok := alias.CategoryOf(field)
	if !ok {
		return ""
	}
	for _, f := range alias.Tables(cat) {
		if f.ID != field {
			continue
		}
		var han, latin string
		for _, al := range f.Aliases {
			if han == "" && hasHan(al) {
				han = al
			}
			if latin == "" && !hasHan(al) {
				latin = al
			}
		}
		var names []string
		for _, n := range []string{han, latin} {
			if n != "" {
				names = append(names, n)
			}
		}
		if len(names) > 0 {
			return "（可用字段名: " + strings.Join(names, ", ") + "）"
		}
	}
	return ""
}

func hasHan(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Han, r) {
			return true
		}
	}
	return false
}

// historyGaps reports an empty multi-year container or empty years in it.
func (a *assessment) historyGaps() {
	key := a.in.Detection.HistoryKey
	if key == "" {
		return
	}
	root, ok := a.in.Raw.(map[string]interface{})
	if !ok {
		return
	}
	hv, _ := detect.LookupKey(root, key)
	years, _ := hv.(map[string]interface{})
	if len(years) == 0 || len(a.in.History) == 0 {
		a.add(DimCompleteness, "empty_history", models.SeverityMedium,
			"历史数据为空",
			"建议添加历史数据以支持趋势分析",
			key)
		return
	}
	keys := make([]string, 0, len(years))
	for y := range years {
		keys = append(keys, y)
	}
	sort.Strings(keys)
	for _, y := range keys {
		if countLeaves(years[y]) == 0 {
			a.add(DimCompleteness, "empty_period", models.SeverityLow,
				fmt.Sprintf("年份%s的历史数据为空", y),
				fmt.Sprintf("请补充年份%s的数据", y),
				key+"."+y)
		}
	}
}

// =============================================================================
// ACCURACY
// =============================================================================

func (a *assessment) accuracy() float64 {
	start := len(a.issues)

	a.eachValue(func(where, field string, v float64) {
		switch {
		case field == alias.Revenue && v < 0:
			a.add(DimAccuracy, "negative_revenue", models.SeverityHigh,
				fmt.Sprintf("%s为负值: %g", field, v),
				"请检查收入数据的准确性",
				where+"."+field)
		case math.Abs(v) > ExtremeValueLimit:
			a.add(DimAccuracy, "extreme_value", models.SeverityHigh,
				fmt.Sprintf("%s值异常大: %g", field, v),
				"请检查数值单位和数据录入",
				where+"."+field)
		case isProfit(field) && math.Abs(v) > ProfitLimit:
			a.add(DimAccuracy, "abnormal_profit", models.SeverityMedium,
				fmt.Sprintf("%s值异常: %g", field, v),
				"请检查利润数据的合理性",
				where+"."+field)
		}
	})

	for _, r := range a.in.Diagnostics.Rejected {
		switch {
		case r.Field == alias.Revenue && strings.HasPrefix(r.Reason, "negative"):
			a.add(DimAccuracy, "negative_revenue", models.SeverityHigh,
				fmt.Sprintf("%s为负值: %v", r.Field, r.Raw),
				"请检查收入数据的准确性",
				r.Key)
		case strings.HasPrefix(r.Reason, "magnitude"):
			a.add(DimAccuracy, "extreme_value", models.SeverityHigh,
				fmt.Sprintf("%s值异常大: %v", r.Field, r.Raw),
				"请检查数值单位和数据录入",
				r.Key)
		}
	}

	for _, w := range a.in.RatioWarnings {
		if !strings.Contains(w, "clamped") {
			continue
		}
		id := strings.SplitN(w, ":", 2)[0]
		a.add(DimAccuracy, "ratio_out_of_range", models.SeverityMedium,
			fmt.Sprintf("%s比率异常: %s", id, w),
			"请检查比率计算或单位转换",
			id)
	}

	if check := a.balanceCheck(); check != nil && !check.IsBalanced {
		a.add(DimAccuracy, "balance_mismatch", models.SeverityHigh,
			fmt.Sprintf("资产负债不平衡，差异: %.2f", check.Difference),
			"请检查资产负债表数据的准确性",
			alias.TotalAssets, alias.TotalLiabilities, alias.Equity)
	}

	severe, _, all := a.tally(start)
	return clampScore(100 - 15*float64(severe) - 5*float64(all))
}

func isProfit(field string) bool {
	switch field {
	case alias.NetProfit, alias.NetProfitParent, alias.OperatingProfit, alias.TotalProfit, alias.GrossProfit:
		return true
	}
	return false
}

// eachValue visits every stored section value. History years are projected
// into the sections by the normalizer.
func (a *assessment) eachValue(fn func(where, field string, v float64)) {
	for _, name := range models.SectionNames() {
		for _, p := range a.in.Statement.Section(name) {
			for _, f := range p.Values.Fields() {
				fn(name+"["+p.Label+"]", f, p.Values[f])
			}
		}
	}
}

func (a *assessment) balanceCheck() *validate.BalanceCheck {
	stmt := &a.in.Statement
	assets, okA := stmt.Latest(models.SectionBalance, alias.TotalAssets)
	liabs, okL := stmt.Latest(models.SectionBalance, alias.TotalLiabilities)
	equity, okE := stmt.Latest(models.SectionBalance, alias.Equity)
	if !okA || !okL || !okE {
		return nil
	}
	return validate.CheckBalanceEquation(assets, liabs, equity, a.tolerance)
}

// =============================================================================
// CONSISTENCY
// =============================================================================

func (a *assessment) consistency() float64 {
	start := len(a.issues)

	for _, f := range []string{alias.Revenue, alias.NetProfit} {
		values := a.series(f)
		if spread := validate.MagnitudeSpread(values); spread > 1 {
			a.add(DimConsistency, "inconsistent_units", models.SeverityMedium,
				fmt.Sprintf("%s的数值量级跨越%d个数量级，单位可能不一致", f, spread),
				"请统一历史数据的数值单位",
				f)
		}
	}

	if growth := validate.MeanAbs(validate.GrowthSeries(a.series(alias.Revenue))); growth > GrowthLimitPct {
		a.add(DimConsistency, "unrealistic_growth", models.SeverityMedium,
			fmt.Sprintf("历史收入增长异常，平均增长率: %.2f%%", growth),
			"请检查历史数据的准确性和一致性",
			alias.Revenue)
	}

	links := validate.ValidateLinkages(&a.in.Statement, a.tolerance)
	for _, name := range links.FailedChecks {
		if name == validate.CheckBalanceIdentity {
			a.add(DimConsistency, "balance_identity_drift", models.SeverityMedium,
				"资产不等于负债与所有者权益之和",
				"请核对资产负债表各项合计",
				alias.TotalAssets, alias.TotalLiabilities, alias.Equity)
			continue
		}
		a.add(DimConsistency, "linkage_mismatch", models.SeverityLow,
			fmt.Sprintf("报表勾稽关系不一致: %s", name),
			"请核对三张报表之间的勾稽关系",
			name)
	}

	for _, p := range validate.SimilarNames(a.leafKeys(), 2, 4) {
		if distinctFields(p.A, p.B) {
			continue
		}
		a.add(DimConsistency, "similar_field_names", models.SeverityLow,
			fmt.Sprintf("发现相似字段名: %s, %s", p.A, p.B),
			"考虑统一字段命名规范",
			"fields."+p.A, "fields."+p.B)
	}

	_, medium, all := a.tally(start)
	return clampScore(100 - 10*float64(medium) - 3*float64(all))
}

// series returns a field chronologically from history, else from dated periods.
func (a *assessment) series(field string) []float64 {
	var out []float64
	if len(a.in.History) > 0 {
		years := a.in.History.Years()
		for i := len(years) - 1; i >= 0; i-- {
			if v, ok := a.in.History[years[i]].Get(field); ok {
				out = append(out, v)
			}
		}
		return out
	}
	cat, ok := alias.CategoryOf(field)
	if !ok {
		return nil
	}
	periods := a.in.Statement.Section(string(cat))
	for i := len(periods) - 1; i >= 0; i-- {
		if v, ok := periods[i].Values.Get(field); ok {
			out = append(out, v)
		}
	}
	return out
}

// leafKeys collects the distinct scalar-valued keys of the payload that are
// not period labels.
func (a *assessment) leafKeys() []string {
	seen := map[string]bool{}
	var walk func(v interface{})
	walk = func(v interface{}) {
		switch t := v.(type) {
		case map[string]interface{}:
			for k, c := range t {
				switch c.(type) {
				case map[string]interface{}, []interface{}:
					walk(c)
					continue
				}
				if detect.IsYearKey(k) || detect.IsPeriodKey(k) || strings.ContainsAny(k, "0123456789") {
					continue
				}
				seen[k] = true
			}
		case []interface{}:
			for _, c := range t {
				walk(c)
			}
		}
	}
	walk(a.in.Raw)

	names := make([]string, 0, len(seen))
	for k := range seen {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// distinctFields reports whether a and b resolve to two different canonical fields.
func distinctFields(a, b string) bool {
	ia, okA := alias.Resolve(a, alias.CategoryAny)
	ib, okB := alias.Resolve(b, alias.CategoryAny)
	return okA && okB && ia != ib
}

// =============================================================================
// VALIDITY
// =============================================================================

func (a *assessment) validity() float64 {
	start := len(a.issues)
	diag := a.in.Diagnostics

	for _, entry := range diag.NonNumeric {
		path, value := entry, ""
		if i := strings.Index(entry, "="); i >= 0 {
			path, value = entry[:i], entry[i+1:]
		}
		a.add(DimValidity, "non_numeric_string", models.SeverityMedium,
			fmt.Sprintf("%s字符串无法转换为数值: %s", path, value),
			"请确保数值字段包含有效数字",
			path)
	}
	for _, path := range diag.InvalidTypes {
		a.add(DimValidity, "invalid_data_type", models.SeverityMedium,
			fmt.Sprintf("%s数据类型无效", path),
			"数值字段应为数字或数字字符串",
			path)
	}
	if a.in.Detection.Format == models.FormatUnknown || a.in.Detection.Format == "" {
		a.add(DimValidity, "invalid_structure", models.SeverityHigh,
			"无法识别的数据结构",
			"请使用标准财务数据格式")
	}
	for _, y := range diag.FlaggedYears {
		a.add(DimValidity, "implausible_year", models.SeverityLow,
			fmt.Sprintf("年份%s超出合理范围", y),
			"请检查报告期年份",
			y)
	}

	severe, _, all := a.tally(start)
	return clampScore(100 - 20*float64(severe) - 5*float64(all))
}

// =============================================================================
// TIMELINESS
// =============================================================================

func (a *assessment) timeliness() float64 {
	latest := a.latestDate()
	if latest.IsZero() {
		a.add(DimTimeliness, "unknown_timeliness", models.SeverityLow,
			"无法确定数据的时间",
			"建议在数据中包含时间信息")
		return 70
	}

	days := a.ctx.Now.Sub(latest).Hours() / 24
	switch {
	case days <= 30:
		return 100
	case days <= 90:
		return 85
	case days <= 180:
		return 70
	case days <= 365:
		return 50
	}
	a.add(DimTimeliness, "outdated_data", models.SeverityMedium,
		fmt.Sprintf("数据过时，最新数据来自%s", latest.Format("2006-01-02")),
		"建议更新到最新的财务数据")
	return 30
}

// latestDate is the most recent date implied by period years, ReportDate and Period.
func (a *assessment) latestDate() time.Time {
	flagged := map[string]bool{}
	for _, y := range a.in.Diagnostics.FlaggedYears {
		flagged[y] = true
	}

	var latest time.Time
	consider := func(t time.Time) {
		if t.After(latest) {
			latest = t
		}
	}
	yearEnd := func(y int) time.Time {
		return time.Date(y, time.December, 31, 0, 0, 0, 0, time.UTC)
	}

	for _, y := range a.in.History.Years() {
		if flagged[y] {
			continue
		}
		if n, err := strconv.Atoi(y); err == nil {
			consider(yearEnd(n))
		}
	}
	for _, name := range models.SectionNames() {
		for _, p := range a.in.Statement.Section(name) {
			if p.Year > 0 && !flagged[p.Label] && !flagged[strconv.Itoa(p.Year)] {
				consider(yearEnd(p.Year))
			}
		}
	}
	if !a.ctx.ReportDate.IsZero() {
		consider(a.ctx.ReportDate)
	}
	if a.ctx.Period != "" {
		if t, err := time.Parse("200601", a.ctx.Period); err == nil {
			consider(t)
		}
	}
	return latest
}

// =============================================================================
// UNIQUENESS
// =============================================================================

func (a *assessment) uniqueness() float64 {
	total, dups := 0, 0

	check := func(group string, labels []string, records []models.PeriodRecord) {
		seen := map[[md5.Size]byte]string{}
		for i, rec := range records {
			if len(rec) == 0 {
				continue
			}
			b, err := utils.CanonicalJSON(rec)
			if err != nil {
				continue
			}
			total++
			id := group + "_" + labels[i]
			sum := md5.Sum(b)
			if first, exists := seen[sum]; exists {
				dups++
				a.add(DimUniqueness, "duplicate_record", models.SeverityLow,
					fmt.Sprintf("发现重复记录: %s 和 %s", id, first),
					"请检查并移除重复的数据记录",
					id)
				continue
			}
			seen[sum] = id
		}
	}

	years := a.in.History.Years()
	records := make([]models.PeriodRecord, len(years))
	for i, y := range years {
		records[i] = a.in.History[y]
	}
	check("historical", years, records)

	for _, name := range models.SectionNames() {
		periods := a.in.Statement.Section(name)
		labels := make([]string, len(periods))
		records := make([]models.PeriodRecord, len(periods))
		for i, p := range periods {
			labels[i] = p.Label
			records[i] = p.Values
		}
		check(name, labels, records)
	}

	for _, d := range a.in.Diagnostics.Duplicates {
		a.add(DimUniqueness, "duplicate_fields", models.SeverityLow,
			fmt.Sprintf("%s.%s 在%s期有多个来源字段: %s", d.Section, d.Field, d.Period, strings.Join(d.Keys, ", ")),
			"请检查字段命名的唯一性",
			d.Section+"."+d.Field)
	}

	if total == 0 {
		return 100
	}
	return float64(total-dups) / float64(total) * 100
}
