// Package validate provides reusable financial validation utilities.
// These checks back the quality monitor and can be called from tests or
// API handlers to verify data integrity.
package validate

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// =============================================================================
// YEAR-OVER-YEAR (YoY) CALCULATIONS
// =============================================================================

// CalculateYoY returns (current - prior) / prior * 100. The result is
// undefined (false) unless prior is positive.
func CalculateYoY(current, prior float64) (float64, bool) {
	if prior <= 0 {
		return 0, false
	}
	return (current - prior) / prior * 100, true
}

// GrowthSeries returns consecutive YoY changes of a chronological series,
// skipping steps whose prior value is not positive.
func GrowthSeries(values []float64) []float64 {
	out := []float64{}
	for i := 1; i < len(values); i++ {
		if g, ok := CalculateYoY(values[i], values[i-1]); ok {
			out = append(out, g)
		}
	}
	return out
}

// MeanAbs is the mean absolute value of xs, 0 for an empty slice.
func MeanAbs(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += math.Abs(x)
	}
	return sum / float64(len(xs))
}

// =============================================================================
// BALANCE IDENTITY
// =============================================================================

// BalanceCheck verifies Assets = Liabilities + Equity.
type BalanceCheck struct {
	TotalAssets      float64 `json:"total_assets"`
	TotalLiabilities float64 `json:"total_liabilities"`
	TotalEquity      float64 `json:"total_equity"`
	ComputedAssets   float64 `json:"computed_assets"` // L + E
	Difference       float64 `json:"difference"`
	DifferencePct    float64 `json:"difference_pct"` // |diff| / assets * 100
	IsBalanced       bool    `json:"is_balanced"`
	Tolerance        float64 `json:"tolerance"` // fraction of assets
}

// CheckBalanceEquation validates A = L + E within tolerance, a fraction of assets.
func CheckBalanceEquation(assets, liabilities, equity, tolerance float64) *BalanceCheck {
	computed := liabilities + equity
	diff := assets - computed

	check := &BalanceCheck{
		TotalAssets:      assets,
		TotalLiabilities: liabilities,
		TotalEquity:      equity,
		ComputedAssets:   computed,
		Difference:       diff,
		Tolerance:        tolerance,
	}
	if assets == 0 {
		check.IsBalanced = diff == 0
		return check
	}
	check.DifferencePct = math.Abs(diff) / math.Abs(assets) * 100
	check.IsBalanced = math.Abs(diff) <= tolerance*math.Abs(assets)
	return check
}

// =============================================================================
// CASH FLOW VALIDATION
// =============================================================================

// CashFlowCheck verifies CFO + CFI + CFF = Net Change in Cash.
type CashFlowCheck struct {
	CFO           float64 `json:"cfo"`
	CFI           float64 `json:"cfi"`
	CFF           float64 `json:"cff"`
	ComputedTotal float64 `json:"computed_total"`
	ReportedTotal float64 `json:"reported_total"`
	Difference    float64 `json:"difference"`
	IsBalanced    bool    `json:"is_balanced"`
	Tolerance     float64 `json:"tolerance"` // fraction of the largest component
}

// CheckCashFlowEquation validates CFO + CFI + CFF = Net Change.
func CheckCashFlowEquation(cfo, cfi, cff, reportedNetChange, tolerance float64) *CashFlowCheck {
	computed := cfo + cfi + cff
	diff := reportedNetChange - computed
	scale := math.Max(math.Abs(cfo), math.Max(math.Abs(cfi), math.Abs(cff)))

	return &CashFlowCheck{
		CFO:           cfo,
		CFI:           cfi,
		CFF:           cff,
		ComputedTotal: computed,
		ReportedTotal: reportedNetChange,
		Difference:    diff,
		IsBalanced:    math.Abs(diff) <= tolerance*scale,
		Tolerance:     tolerance,
	}
}

// =============================================================================
// OUTLIER DETECTION
// =============================================================================

// OutlierCheck identifies suspicious values.
type OutlierCheck struct {
	Item       string  `json:"item"`
	Value      float64 `json:"value"`
	PriorValue float64 `json:"prior_value"`
	ChangePct  float64 `json:"change_pct"`
	IsOutlier  bool    `json:"is_outlier"`
	Reason     string  `json:"reason,omitempty"`
	Threshold  float64 `json:"threshold"`
}

// CheckForOutlier identifies if a value change is suspicious.
func CheckForOutlier(item string, current, prior, thresholdPct float64) *OutlierCheck {
	check := &OutlierCheck{
		Item:       item,
		Value:      current,
		PriorValue: prior,
		Threshold:  thresholdPct,
	}

	// a drop to zero from a positive prior is usually an extraction error
	if current == 0 && prior > 0 {
		check.IsOutlier = true
		check.ChangePct = -100
		check.Reason = "value dropped to zero"
		return check
	}

	changePct, ok := CalculateYoY(current, prior)
	if !ok {
		return check
	}
	check.ChangePct = changePct
	if math.Abs(changePct) > thresholdPct {
		check.IsOutlier = true
		check.Reason = fmt.Sprintf("change of %.1f%% exceeds threshold of %.1f%%", changePct, thresholdPct)
	}
	return check
}

// =============================================================================
// UNIT CONSISTENCY
// =============================================================================

// MagnitudeOrder returns floor(log10|v|); false for zero.
func MagnitudeOrder(v float64) (int, bool) {
	if v == 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return int(math.Floor(math.Log10(math.Abs(v)))), true
}

// MagnitudeSpread returns max order - min order over the non-zero values.
func MagnitudeSpread(values []float64) int {
	lo, hi, seen := 0, 0, false
	for _, v := range values {
		o, ok := MagnitudeOrder(v)
		if !ok {
			continue
		}
		if !seen {
			lo, hi, seen = o, o, true
			continue
		}
		if o < lo {
			lo = o
		}
		if o > hi {
			hi = o
		}
	}
	return hi - lo
}

// =============================================================================
// FIELD NAMES
// =============================================================================

// SimilarPair is two distinct field names within a small edit distance.
type SimilarPair struct {
	A        string `json:"a"`
	B        string `json:"b"`
	Distance int    `json:"distance"`
}

// SimilarNames finds pairs of names within maxDistance edits. Names shorter
// than minRunes and case-insensitive duplicates are ignored.
func SimilarNames(names []string, maxDistance, minRunes int) []SimilarPair {
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)

	var out []SimilarPair
	for i := 0; i < len(sorted); i++ {
		a := strings.ToLower(strings.TrimSpace(sorted[i]))
		if utf8.RuneCountInString(a) < minRunes {
			continue
		}
		for j := i + 1; j < len(sorted); j++ {
			b := strings.ToLower(strings.TrimSpace(sorted[j]))
			if a == b || utf8.RuneCountInString(b) < minRunes {
				continue
			}
			if d := fuzzy.LevenshteinDistance(a, b); d <= maxDistance {
				out = append(out, SimilarPair{A: sorted[i], B: sorted[j], Distance: d})
			}
		}
	}
	return out
}
