// Package quality scores a normalized payload on six weighted dimensions
// and turns every finding into a ranked, actionable issue.
package quality

import (
	"crypto/md5"
	"encoding/hex"
	"math"
	"sort"
	"time"

	"finsight/pkg/core/calc"
	"finsight/pkg/core/detect"
	"finsight/pkg/core/normalize"
	"finsight/pkg/core/utils"
	"finsight/pkg/models"
)

// Dimension names
const (
	DimCompleteness = "completeness"
	DimAccuracy     = "accuracy"
	DimConsistency  = "consistency"
	DimValidity     = "validity"
	DimTimeliness   = "timeliness"
	DimUniqueness   = "uniqueness"
)

// Weights of each dimension in the overall score.
var Weights = map[string]float64{
	DimCompleteness: 0.25,
	DimAccuracy:     0.25,
	DimConsistency:  0.20,
	DimValidity:     0.15,
	DimTimeliness:   0.10,
	DimUniqueness:   0.05,
}

// Quality levels
const (
	LevelExcellent  = "excellent"
	LevelGood       = "good"
	LevelAcceptable = "acceptable"
	LevelPoor       = "poor"
)

// LevelFor maps an overall score to its quality level.
func LevelFor(score float64) string {
	switch {
	case score >= 90:
		return LevelExcellent
	case score >= 75:
		return LevelGood
	case score >= 60:
		return LevelAcceptable
	}
	return LevelPoor
}

// Input is everything the monitor looks at for one payload.
type Input struct {
	Raw           interface{}
	Statement     models.CanonicalStatement
	History       models.HistoryTable
	Detection     detect.Detection
	Diagnostics   normalize.Diagnostics
	RatioWarnings []string
}

// Context carries the dates used for timeliness.
type Context struct {
	ReportDate time.Time
	// Period is a YYYYMM reporting period.
	Period string
	Now    time.Time
}

// Options tunes the monitor.
type Options struct {
	// BalanceTolerance is the allowed relative gap in assets = liabilities + equity.
	BalanceTolerance float64
}

// DefaultOptions returns the 5% balance tolerance.
func DefaultOptions() Options {
	return Options{BalanceTolerance: 0.05}
}

// Monitor assesses payload quality.
type Monitor struct {
	opts Options
}

// New creates a monitor. A non-positive tolerance falls back to the default.
func New(opts Options) *Monitor {
	if opts.BalanceTolerance <= 0 {
		opts.BalanceTolerance = DefaultOptions().BalanceTolerance
	}
	return &Monitor{opts: opts}
}

// Assess runs a default monitor.
func Assess(in Input, ctx Context) models.QualityReport {
	return New(DefaultOptions()).Assess(in, ctx)
}

// Assess scores in on every dimension and ranks the resulting issues.
func (m *Monitor) Assess(in Input, ctx Context) models.QualityReport {
	if ctx.Now.IsZero() {
		ctx.Now = time.Now()
	}

	report := models.QualityReport{
		DataID:     dataID(in.Raw),
		Issues:     []models.Issue{},
		AssessedAt: ctx.Now,
	}

	if isEmpty(in) {
		report.QualityLevel = LevelPoor
		report.Issues = append(report.Issues, models.Issue{
			Type:           "no_structured_data",
			Severity:       models.SeverityCritical,
			Description:    "未发现可用的结构化财务数据",
			AffectedFields: []string{},
			Recommendation: "请提供包含利润表、资产负债表或现金流量表的财务数据",
			Dimension:      DimCompleteness,
		})
		report.Recommendations = recommendations(report.Issues, report.Dimensions, 0)
		return report
	}

	a := &assessment{in: in, ctx: ctx, tolerance: m.opts.BalanceTolerance}
	report.Dimensions = models.DimensionScores{
		Completeness: calc.Round2(a.completeness()),
		Accuracy:     calc.Round2(a.accuracy()),
		Consistency:  calc.Round2(a.consistency()),
		Validity:     calc.Round2(a.validity()),
		Timeliness:   calc.Round2(a.timeliness()),
		Uniqueness:   calc.Round2(a.uniqueness()),
	}
	report.OverallScore = Overall(report.Dimensions)
	report.QualityLevel = LevelFor(report.OverallScore)

	sort.SliceStable(a.issues, func(i, j int) bool {
		return models.SeverityRank(a.issues[i].Severity) < models.SeverityRank(a.issues[j].Severity)
	})
	if a.issues != nil {
		report.Issues = a.issues
	}
	report.Recommendations = recommendations(report.Issues, report.Dimensions, report.OverallScore)
	return report
}

// Overall is the weighted dimension sum, rounded and clamped to [0, 100].
func Overall(d models.DimensionScores) float64 {
	s := d.Completeness*Weights[DimCompleteness] +
		d.Accuracy*Weights[DimAccuracy] +
		d.Consistency*Weights[DimConsistency] +
		d.Validity*Weights[DimValidity] +
		d.Timeliness*Weights[DimTimeliness] +
		d.Uniqueness*Weights[DimUniqueness]
	return calc.Round2(math.Max(0, math.Min(100, s)))
}

func dataID(raw interface{}) string {
	b, err := utils.CanonicalJSON(raw)
	if err != nil {
		return ""
	}
	sum := md5.Sum(b)
	return hex.EncodeToString(sum[:])[:16]
}

// isEmpty is true when neither the payload nor the normalized output carry a value.
func isEmpty(in Input) bool {
	return in.Statement.IsEmpty() && len(in.History) == 0 && countLeaves(in.Raw) == 0
}

func countLeaves(v interface{}) int {
	switch t := v.(type) {
	case nil:
		return 0
	case map[string]interface{}:
		n := 0
		for _, c := range t {
			n += countLeaves(c)
		}
		return n
	case []interface{}:
		n := 0
		for _, c := range t {
			n += countLeaves(c)
		}
		return n
	case string:
		if t == "" {
			return 0
		}
	}
	return 1
}

// =============================================================================
// RECOMMENDATIONS
// =============================================================================

func recommendations(issues []models.Issue, d models.DimensionScores, overall float64) []string {
	var out []string
	seen := map[string]bool{}
	add := func(s string) {
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}

	var critical, high bool
	for _, i := range issues {
		switch i.Severity {
		case models.SeverityCritical:
			critical = true
		case models.SeverityHigh:
			high = true
		}
	}
	if critical {
		add("存在严重数据质量问题，建议优先修复这些问题")
	}
	if high {
		add("建议检查数据来源和录入过程，提高数据准确性")
	}
	for _, i := range issues {
		add(i.Recommendation)
	}

	if d.Completeness < 80 {
		add("建议补充缺失的财务数据字段，提高数据完整性")
	}
	if d.Accuracy < 80 {
		add("建议验证数值的准确性，检查单位和计算方法")
	}
	if d.Consistency < 80 {
		add("建议统一数据格式和命名规范，确保数据一致性")
	}
	if d.Timeliness < 70 {
		add("建议更新到最新的财务数据，确保分析的时效性")
	}

	switch LevelFor(overall) {
	case LevelExcellent:
		add("数据质量优秀，可以直接用于财务分析")
	case LevelGood:
		add("数据质量良好，建议修复发现的问题后使用")
	case LevelAcceptable:
		add("数据质量一般，建议进行数据清洗和验证")
	default:
		add("数据质量较差，强烈建议进行全面的数据清洗和修复")
	}
	return out
}
