package validate

import (
	"math"

	"finsight/pkg/core/alias"
	"finsight/pkg/models"
)

// =============================================================================
// CROSS-STATEMENT LINKAGE VALIDATION (跨报表勾稽验证)
// =============================================================================

// LinkageReport contains the cross-statement checks that had enough data.
type LinkageReport struct {
	Balance          *BalanceCheck         `json:"balance,omitempty"`
	CashFlow         *CashFlowCheck        `json:"cash_flow,omitempty"`
	Cash             *CashLinkage          `json:"cash,omitempty"`
	RetainedEarnings *RetainedEarningsLink `json:"retained_earnings,omitempty"`
	AllPassed        bool                  `json:"all_passed"`
	FailedChecks     []string              `json:"failed_checks,omitempty"`
}

// CashLinkage validates: CF net change == BS cash YoY change.
type CashLinkage struct {
	CFNetChange  float64 `json:"cf_net_change"`
	BSCashChange float64 `json:"bs_cash_change"` // current - prior
	Difference   float64 `json:"difference"`
	IsLinked     bool    `json:"is_linked"`
	Tolerance    float64 `json:"tolerance"`
}

// RetainedEarningsLink validates: ΔRE ≈ Net Profit - Dividends
type RetainedEarningsLink struct {
	NetProfit        float64 `json:"net_profit"`
	DividendsPaid    float64 `json:"dividends_paid"`
	ExpectedREChange float64 `json:"expected_re_change"`
	ActualREChange   float64 `json:"actual_re_change"`
	Difference       float64 `json:"difference"`
	IsLinked         bool    `json:"is_linked"`
	Tolerance        float64 `json:"tolerance"`
}

// Failed check names
const (
	CheckBalanceIdentity  = "balance_identity"
	CheckCashFlowIdentity = "cash_flow_identity"
	CheckCashLinkage      = "cash_linkage"
	CheckRetainedEarnings = "retained_earnings_linkage"
)

// ValidateLinkages runs every check the latest periods of stmt can support.
// tolerance is relative (0.05 = 5%).
func ValidateLinkages(stmt *models.CanonicalStatement, tolerance float64) *LinkageReport {
	report := &LinkageReport{AllPassed: true}
	fail := func(name string) {
		report.AllPassed = false
		report.FailedChecks = append(report.FailedChecks, name)
	}

	latest := func(field string) (float64, bool) {
		cat, _ := alias.CategoryOf(field)
		return stmt.Latest(string(cat), field)
	}
	prior := func(field string) (float64, bool) {
		cat, _ := alias.CategoryOf(field)
		return stmt.Previous(string(cat), field)
	}

	// 1. A = L + E
	assets, okA := latest(alias.TotalAssets)
	liabs, okL := latest(alias.TotalLiabilities)
	equity, okE := latest(alias.Equity)
	if okA && okL && okE {
		report.Balance = CheckBalanceEquation(assets, liabs, equity, tolerance)
		if !report.Balance.IsBalanced {
			fail(CheckBalanceIdentity)
		}
	}

	// 2. CFO + CFI + CFF = net change
	cfo, ok1 := latest(alias.OperatingCashFlow)
	cfi, ok2 := latest(alias.InvestingCashFlow)
	cff, ok3 := latest(alias.FinancingCashFlow)
	net, ok4 := latest(alias.NetCashFlow)
	if ok1 && ok2 && ok3 && ok4 {
		report.CashFlow = CheckCashFlowEquation(cfo, cfi, cff, net, tolerance)
		if !report.CashFlow.IsBalanced {
			fail(CheckCashFlowIdentity)
		}
	}

	// 3. CF net change == Δcash
	cashNow, okC := latest(alias.Cash)
	cashPrior, okP := prior(alias.Cash)
	if ok4 && okC && okP {
		change := cashNow - cashPrior
		diff := net - change
		tol := tolerance * math.Max(math.Abs(cashNow), math.Abs(cashPrior))
		report.Cash = &CashLinkage{
			CFNetChange:  net,
			BSCashChange: change,
			Difference:   diff,
			IsLinked:     math.Abs(diff) <= tol,
			Tolerance:    tolerance,
		}
		if !report.Cash.IsLinked {
			fail(CheckCashLinkage)
		}
	}

	// 4. ΔRE ≈ NP - dividends
	reNow, okR := latest(alias.RetainedEarnings)
	rePrior, okRP := prior(alias.RetainedEarnings)
	np, okN := latest(alias.NetProfit)
	if okR && okRP && okN {
		div, _ := latest(alias.DividendsPaid)
		link := &RetainedEarningsLink{
			NetProfit:        np,
			DividendsPaid:    math.Abs(div),
			ExpectedREChange: np - math.Abs(div),
			ActualREChange:   reNow - rePrior,
			Tolerance:        tolerance,
		}
		link.Difference = link.ActualREChange - link.ExpectedREChange
		// buybacks and OCI also move RE, so allow 10% of net profit
		reTolerance := math.Max(tolerance*math.Abs(reNow), math.Abs(np*0.10))
		link.IsLinked = math.Abs(link.Difference) <= reTolerance
		report.RetainedEarnings = link
		if !link.IsLinked {
			fail(CheckRetainedEarnings)
		}
	}

	return report
}
