// Package calc computes deterministic financial ratios and health scores from
// a canonical statement.
package calc

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"finsight/pkg/core/alias"
	"finsight/pkg/models"
)

// ErrNoUsableData is returned when neither the canonical statement nor the
// direct-extraction fallback yields a single field.
var ErrNoUsableData = errors.New("no usable financial data")

// Band is the plausible range of a ratio. Values outside are clamped.
type Band struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Bands lists the plausibility range of every banded ratio.
var Bands = map[string]Band{
	"gross_profit_margin":      {-100, 100},
	"net_profit_margin":        {-50, 50},
	"operating_margin":         {-100, 100},
	"roe":                      {-100, 100},
	"roa":                      {-50, 50},
	"debt_to_asset_ratio":      {0, 100},
	"current_ratio":            {0.1, 10},
	"quick_ratio":              {0.1, 5},
	"equity_ratio":             {0, 100},
	"interest_coverage":        {-100, 1000},
	"asset_turnover":           {0.1, 10},
	"inventory_turnover":       {0.1, 50},
	"receivables_turnover":     {0.1, 100},
	"revenue_growth":           {-100, 1000},
	"profit_growth":            {-1000, 1000},
	"asset_growth":             {-100, 1000},
	"cash_flow_ratio":          {-10, 10},
	"ocf_to_net_profit":        {-10, 10},
	"cash_reinvestment_ratio":  {-50, 100},
	"cash_to_investment_ratio": {-5, 20},
}

// Compute derives every ratio it can from stmt. When stmt is empty the raw
// payload is scanned directly for a minimal field set.
func Compute(stmt models.CanonicalStatement, raw interface{}) (models.RatioResult, error) {
	if !stmt.IsEmpty() {
		c := newCalculator(&stmt)
		c.profitability()
		c.solvency()
		c.efficiency()
		c.growth()
		c.cashFlow()
		return c.res, nil
	}

	found := DirectExtract(raw)
	if len(found) == 0 {
		return models.NewRatioResult(), ErrNoUsableData
	}
	fb := statementFromRecord(found)
	c := newCalculator(&fb)
	c.warn("canonical statement empty; ratios derived by direct extraction")
	c.ratio(models.CategoryProfitability, "net_profit_margin", alias.NetProfit, alias.Revenue, true, true)
	c.ratio(models.CategoryProfitability, "roe", alias.NetProfit, alias.Equity, true, true)
	c.ratio(models.CategoryProfitability, "roa", alias.NetProfit, alias.TotalAssets, true, true)
	c.ratio(models.CategorySolvency, "debt_to_asset_ratio", alias.TotalLiabilities, alias.TotalAssets, true, true)
	c.res.FallbackUsed = true
	return c.res, nil
}

// MergeReported adds ratios supplied directly by the payload for every ratio
// the engine did not compute itself.
func MergeReported(res *models.RatioResult, reported map[string]map[string]float64) {
	for category, ratios := range reported {
		dst := res.Category(category)
		if dst == nil {
			continue
		}
		for id, v := range ratios {
			if _, exists := dst[id]; exists {
				continue
			}
			v = Round2(v)
			if b, ok := Bands[id]; ok {
				v = clampWarn(res, id, v, b)
			}
			dst[id] = v
			res.Warnings = append(res.Warnings, fmt.Sprintf("%s: taken from payload", id))
		}
	}
}

// =============================================================================
// CALCULATOR
// =============================================================================

type calculator struct {
	stmt *models.CanonicalStatement
	res  models.RatioResult
}

func newCalculator(stmt *models.CanonicalStatement) *calculator {
	return &calculator{stmt: stmt, res: models.NewRatioResult()}
}

func (c *calculator) warn(format string, args ...interface{}) {
	c.res.Warnings = append(c.res.Warnings, fmt.Sprintf(format, args...))
}

// value looks in the field's own section first, then in every other section.
func (c *calculator) value(field string) (float64, bool) {
	if cat, ok := alias.CategoryOf(field); ok {
		if v, found := c.stmt.Latest(string(cat), field); found {
			return v, true
		}
	}
	return c.stmt.Lookup(field)
}

func (c *calculator) previous(field string) (float64, bool) {
	cat, ok := alias.CategoryOf(field)
	if !ok {
		return 0, false
	}
	return c.stmt.Previous(string(cat), field)
}

// need fetches fields, warning with every missing name.
func (c *calculator) need(id string, fields ...string) ([]float64, bool) {
	values := make([]float64, len(fields))
	var missing []string
	for i, f := range fields {
		v, ok := c.value(f)
		if !ok {
			missing = append(missing, f)
			continue
		}
		values[i] = v
	}
	if len(missing) > 0 {
		c.warn("%s: missing %s", id, strings.Join(missing, ", "))
		return nil, false
	}
	return values, true
}

// usable checks a denominator. positive additionally rejects negatives.
func (c *calculator) usable(id, field string, v float64, positive bool) bool {
	switch {
	case v == 0:
		c.warn("%s: %s is zero", id, field)
		return false
	case positive && v < 0:
		c.warn("%s: %s is negative", id, field)
		return false
	}
	return true
}

// set stores a ratio rounded to 2 decimals and clamped into its band.
func (c *calculator) set(category, id string, v float64, percent bool) {
	if percent {
		v *= 100
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		c.warn("%s: result is not finite", id)
		return
	}
	v = Round2(v)
	if b, ok := Bands[id]; ok {
		v = clampWarn(&c.res, id, v, b)
	}
	c.res.Category(category)[id] = v
}

func clampWarn(res *models.RatioResult, id string, v float64, b Band) float64 {
	clamped := math.Max(b.Min, math.Min(b.Max, v))
	if clamped != v {
		res.Warnings = append(res.Warnings, fmt.Sprintf("%s: %.2f clamped to %.2f", id, v, clamped))
	}
	return clamped
}

// ratio computes num/den for two canonical fields.
func (c *calculator) ratio(category, id, num, den string, percent, positive bool) {
	v, ok := c.need(id, num, den)
	if !ok || !c.usable(id, den, v[1], positive) {
		return
	}
	c.set(category, id, v[0]/v[1], percent)
}

// =============================================================================
// CATEGORIES
// =============================================================================

func (c *calculator) profitability() {
	cat := models.CategoryProfitability

	if gp, ok := c.value(alias.GrossProfit); ok {
		if rev, ok := c.need("gross_profit_margin", alias.Revenue); ok && c.usable("gross_profit_margin", alias.Revenue, rev[0], true) {
			c.set(cat, "gross_profit_margin", gp/rev[0], true)
		}
	} else if v, ok := c.need("gross_profit_margin", alias.Revenue, alias.CostOfRevenue); ok {
		if c.usable("gross_profit_margin", alias.Revenue, v[0], true) {
			c.set(cat, "gross_profit_margin", (v[0]-v[1])/v[0], true)
		}
	}

	c.ratio(cat, "net_profit_margin", alias.NetProfit, alias.Revenue, true, true)
	c.ratio(cat, "operating_margin", alias.OperatingProfit, alias.Revenue, true, true)
	c.ratio(cat, "roe", alias.NetProfit, alias.Equity, true, true)
	c.ratio(cat, "roa", alias.NetProfit, alias.TotalAssets, true, true)
}

func (c *calculator) solvency() {
	cat := models.CategorySolvency

	c.ratio(cat, "debt_to_asset_ratio", alias.TotalLiabilities, alias.TotalAssets, true, true)
	c.ratio(cat, "current_ratio", alias.CurrentAssets, alias.CurrentLiabilities, false, true)

	if v, ok := c.need("quick_ratio", alias.CurrentAssets, alias.CurrentLiabilities); ok &&
		c.usable("quick_ratio", alias.CurrentLiabilities, v[1], true) {
		inventory, found := c.value(alias.Inventory)
		if !found {
			c.warn("quick_ratio: missing %s, treated as 0", alias.Inventory)
		}
		c.set(cat, "quick_ratio", (v[0]-inventory)/v[1], false)
	}

	c.ratio(cat, "equity_ratio", alias.Equity, alias.TotalAssets, true, true)

	if v, ok := c.need("interest_coverage", alias.OperatingProfit, alias.InterestExpense); ok &&
		c.usable("interest_coverage", alias.InterestExpense, v[1], false) {
		c.set(cat, "interest_coverage", v[0]/math.Abs(v[1]), false)
	}
}

func (c *calculator) efficiency() {
	cat := models.CategoryEfficiency

	c.ratio(cat, "asset_turnover", alias.Revenue, alias.TotalAssets, false, true)
	c.ratio(cat, "inventory_turnover", alias.CostOfRevenue, alias.Inventory, false, true)
	c.ratio(cat, "receivables_turnover", alias.Revenue, alias.AccountsReceivable, false, true)
}

func (c *calculator) growth() {
	cat := models.CategoryGrowth
	for _, g := range []struct{ id, field string }{
		{"revenue_growth", alias.Revenue},
		{"profit_growth", alias.NetProfit},
		{"asset_growth", alias.TotalAssets},
	} {
		cur, ok := c.value(g.field)
		if !ok {
			c.warn("%s: missing %s", g.id, g.field)
			continue
		}
		prev, ok := c.previous(g.field)
		if !ok {
			c.warn("%s: needs two periods of %s", g.id, g.field)
			continue
		}
		if prev <= 0 {
			c.warn("%s: previous %s is not positive", g.id, g.field)
			continue
		}
		c.set(cat, g.id, (cur-prev)/prev, true)
	}
}

func (c *calculator) cashFlow() {
	cat := models.CategoryCashFlow

	ocf, ok := c.value(alias.OperatingCashFlow)
	if !ok {
		c.warn("cash_flow: missing %s", alias.OperatingCashFlow)
		return
	}
	c.set(cat, "operating_cash_flow", ocf, false)

	capex, hasCapex := c.value(alias.CapitalExpenditure)
	if hasCapex {
		c.set(cat, "free_cash_flow", ocf-math.Abs(capex), false)
	} else {
		c.warn("free_cash_flow: missing %s", alias.CapitalExpenditure)
	}

	if cl, ok := c.need("cash_flow_ratio", alias.CurrentLiabilities); ok &&
		c.usable("cash_flow_ratio", alias.CurrentLiabilities, cl[0], true) {
		c.set(cat, "cash_flow_ratio", ocf/cl[0], false)
	}

	if np, ok := c.need("ocf_to_net_profit", alias.NetProfit); ok &&
		c.usable("ocf_to_net_profit", alias.NetProfit, np[0], true) {
		c.set(cat, "ocf_to_net_profit", ocf/np[0], false)
	}

	if v, ok := c.need("cash_reinvestment_ratio", alias.FixedAssets, alias.CurrentAssets, alias.CurrentLiabilities); ok {
		dividends, found := c.value(alias.DividendsPaid)
		if !found {
			c.warn("cash_reinvestment_ratio: missing %s, treated as 0", alias.DividendsPaid)
		}
		invested := v[0] + (v[1] - v[2])
		if c.usable("cash_reinvestment_ratio", "fixed_assets + working capital", invested, true) {
			c.set(cat, "cash_reinvestment_ratio", (ocf-math.Abs(dividends))/invested, true)
		}
	}

	if hasCapex {
		if c.usable("cash_to_investment_ratio", alias.CapitalExpenditure, capex, false) {
			c.set(cat, "cash_to_investment_ratio", ocf/math.Abs(capex), false)
		}
	} else {
		c.warn("cash_to_investment_ratio: missing %s", alias.CapitalExpenditure)
	}
}
