package calc

import (
	"math"

	"github.com/shopspring/decimal"
)

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// Round2 rounds half away from zero to 2 decimals.
func Round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// CAGR is the compound annual growth rate over years periods.
func CAGR(endingValue, beginningValue float64, years int) float64 {
	if beginningValue <= 0 || endingValue < 0 || years == 0 {
		return 0
	}
	return math.Pow(endingValue/beginningValue, 1.0/float64(years)) - 1
}
