package models

import "time"

// =============================================================================
// RATIOS
// =============================================================================

// Ratio category names
const (
	CategoryProfitability = "profitability"
	CategorySolvency      = "solvency"
	CategoryEfficiency    = "efficiency"
	CategoryGrowth        = "growth"
	CategoryCashFlow      = "cash_flow"
)

// RatioCategories lists ratio categories in report order.
func RatioCategories() []string {
	return []string{CategoryProfitability, CategorySolvency, CategoryEfficiency, CategoryGrowth, CategoryCashFlow}
}

// RatioResult holds computed ratios by category plus calculation warnings.
type RatioResult struct {
	Profitability map[string]float64 `json:"profitability"`
	Solvency      map[string]float64 `json:"solvency"`
	Efficiency    map[string]float64 `json:"efficiency"`
	Growth        map[string]float64 `json:"growth"`
	CashFlow      map[string]float64 `json:"cash_flow"`
	Warnings      []string           `json:"warnings"`
	FallbackUsed  bool               `json:"fallback_used,omitempty"`
}

// NewRatioResult returns a result with every category map allocated.
func NewRatioResult() RatioResult {
	return RatioResult{
		Profitability: map[string]float64{},
		Solvency:      map[string]float64{},
		Efficiency:    map[string]float64{},
		Growth:        map[string]float64{},
		CashFlow:      map[string]float64{},
		Warnings:      []string{},
	}
}

// Category returns the map for a category name.
func (r *RatioResult) Category(name string) map[string]float64 {
	switch name {
	case CategoryProfitability:
		return r.Profitability
	case CategorySolvency:
		return r.Solvency
	case CategoryEfficiency:
		return r.Efficiency
	case CategoryGrowth:
		return r.Growth
	case CategoryCashFlow:
		return r.CashFlow
	}
	return nil
}

// Count returns the number of computed ratios.
func (r *RatioResult) Count() int {
	n := 0
	for _, c := range RatioCategories() {
		n += len(r.Category(c))
	}
	return n
}

// =============================================================================
// TRENDS
// =============================================================================

// Trend labels
const (
	TrendIncreasing       = "increasing"
	TrendDecreasing       = "decreasing"
	TrendStable           = "stable"
	TrendSinglePoint      = "single_point"
	TrendNoData           = "no_data"
	TrendInsufficientData = "insufficient_data"
)

// Point is one observation of a trend series.
type Point struct {
	Year  string  `json:"year"`
	Value float64 `json:"value"`
}

// TrendResult describes one metric's multi-year trend.
type TrendResult struct {
	Data          []Point   `json:"data"`
	Trend         string    `json:"trend"`
	AverageGrowth *float64  `json:"average_growth"`
	GrowthRates   []float64 `json:"growth_rates"`
	Message       string    `json:"message"`
}

// =============================================================================
// QUALITY
// =============================================================================

// Issue severities, most severe first
const (
	SeverityCritical = "critical"
	SeverityHigh     = "high"
	SeverityMedium   = "medium"
	SeverityLow      = "low"
)

// SeverityRank orders severities for sorting (lower is more severe).
func SeverityRank(s string) int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityHigh:
		return 1
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 3
	}
	return 4
}

// Issue is one quality finding with a remediation hint.
type Issue struct {
	Type           string   `json:"type"`
	Severity       string   `json:"severity"`
	Description    string   `json:"description"`
	AffectedFields []string `json:"affected_fields"`
	Recommendation string   `json:"recommendation"`
	Dimension      string   `json:"dimension"`
}

// DimensionScores holds the six quality sub-scores.
type DimensionScores struct {
	Completeness float64 `json:"completeness"`
	Accuracy     float64 `json:"accuracy"`
	Consistency  float64 `json:"consistency"`
	Validity     float64 `json:"validity"`
	Timeliness   float64 `json:"timeliness"`
	Uniqueness   float64 `json:"uniqueness"`
}

// QualityReport is the outcome of a quality assessment.
type QualityReport struct {
	DataID          string          `json:"data_id"`
	OverallScore    float64         `json:"overall_score"`
	QualityLevel    string          `json:"quality_level"`
	Dimensions      DimensionScores `json:"dimension_scores"`
	Issues          []Issue         `json:"issues"`
	Recommendations []string        `json:"recommendations"`
	AssessedAt      time.Time       `json:"assessed_at"`
}

// CriticalIssues returns issues with critical severity.
func (q *QualityReport) CriticalIssues() []Issue {
	var out []Issue
	for _, i := range q.Issues {
		if i.Severity == SeverityCritical {
			out = append(out, i)
		}
	}
	return out
}

// =============================================================================
// HEALTH
// =============================================================================

// HealthAssessment is the weighted financial health summary.
type HealthAssessment struct {
	OverallScore       float64  `json:"overall_score"`
	ProfitabilityScore float64  `json:"profitability_score"`
	SolvencyScore      float64  `json:"solvency_score"`
	EfficiencyScore    float64  `json:"efficiency_score"`
	GrowthScore        float64  `json:"growth_score"`
	RiskLevel          string   `json:"risk_level"`
	Recommendations    []string `json:"recommendations"`
	Summary            string   `json:"summary"`
}
