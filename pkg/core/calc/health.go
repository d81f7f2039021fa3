package calc

import (
	"fmt"
	"math"

	"finsight/pkg/models"
)

// =============================================================================
// FINANCIAL HEALTH ASSESSMENT
// Each dimension starts at 50 and earns threshold bonuses, capped at 100.
// =============================================================================

// Risk levels
const (
	RiskLow    = "低"
	RiskMedium = "中"
	RiskHigh   = "高"
)

type tier struct {
	above float64
	bonus float64
}

// bonus returns the first tier bonus whose threshold v exceeds.
func bonus(v float64, tiers ...tier) float64 {
	for _, t := range tiers {
		if v > t.above {
			return t.bonus
		}
	}
	return 0
}

// bonusBelow returns the first tier bonus whose threshold v stays under.
func bonusBelow(v float64, tiers ...tier) float64 {
	for _, t := range tiers {
		if v < t.above {
			return t.bonus
		}
	}
	return 0
}

func capScore(s float64) float64 {
	return math.Min(100, s)
}

// AssessHealth scores a ratio result on four dimensions.
func AssessHealth(r models.RatioResult) models.HealthAssessment {
	p := 50.0
	if v, ok := r.Profitability["net_profit_margin"]; ok {
		p += bonus(v, tier{15, 20}, tier{5, 10}, tier{0, 5})
	}
	if v, ok := r.Profitability["roe"]; ok {
		p += bonus(v, tier{20, 20}, tier{10, 10}, tier{0, 5})
	}
	if v, ok := r.Profitability["roa"]; ok {
		p += bonus(v, tier{10, 10}, tier{5, 5}, tier{0, 2})
	}

	s := 50.0
	if v, ok := r.Solvency["debt_to_asset_ratio"]; ok {
		s += bonusBelow(v, tier{40, 20}, tier{60, 10}, tier{80, 5})
	}
	if v, ok := r.Solvency["current_ratio"]; ok {
		s += bonus(v, tier{2, 15}, tier{1, 10}, tier{0.5, 5})
	}
	if v, ok := r.Solvency["quick_ratio"]; ok {
		s += bonus(v, tier{1.5, 10}, tier{1, 5}, tier{0.5, 2})
	}

	e := 50.0
	if v, ok := r.Efficiency["asset_turnover"]; ok {
		e += bonus(v, tier{1, 20}, tier{0.5, 10}, tier{0, 5})
	}
	if v, ok := r.Efficiency["inventory_turnover"]; ok {
		e += bonus(v, tier{10, 20}, tier{5, 10}, tier{0, 5})
	}

	g := 50.0
	for _, id := range []string{"revenue_growth", "profit_growth"} {
		if v, ok := r.Growth[id]; ok {
			g += bonus(v, tier{15, 20}, tier{5, 10}, tier{0, 5})
		}
	}

	p, s, e, g = capScore(p), capScore(s), capScore(e), capScore(g)
	overall := Round2(0.3*p + 0.3*s + 0.2*e + 0.2*g)

	h := models.HealthAssessment{
		OverallScore:       overall,
		ProfitabilityScore: p,
		SolvencyScore:      s,
		EfficiencyScore:    e,
		GrowthScore:        g,
		RiskLevel:          RiskLevelFor(overall),
		Recommendations:    healthRecommendations(r),
	}
	h.Summary = fmt.Sprintf("综合健康评分%.1f分，风险等级%s。盈利能力%.0f分，偿债能力%.0f分，营运能力%.0f分，成长能力%.0f分。",
		overall, h.RiskLevel, p, s, e, g)
	return h
}

// RiskLevelFor maps an overall health score to a risk level.
func RiskLevelFor(score float64) string {
	switch {
	case score >= 80:
		return RiskLow
	case score >= 60:
		return RiskMedium
	}
	return RiskHigh
}

func healthRecommendations(r models.RatioResult) []string {
	var out []string
	if v, ok := r.Profitability["net_profit_margin"]; ok && v < 5 {
		out = append(out, "净利润率偏低，建议优化成本结构、提升产品附加值")
	}
	if v, ok := r.Profitability["roe"]; ok && v < 10 {
		out = append(out, "净资产收益率不足10%，建议提高资本使用效率")
	}
	if v, ok := r.Solvency["debt_to_asset_ratio"]; ok && v > 60 {
		out = append(out, "资产负债率偏高，建议控制负债规模、优化资本结构")
	}
	if v, ok := r.Solvency["current_ratio"]; ok && v < 1 {
		out = append(out, "流动比率低于1，短期偿债压力较大，建议加强营运资金管理")
	}
	if v, ok := r.Efficiency["asset_turnover"]; ok && v < 0.5 {
		out = append(out, "总资产周转率偏低，建议盘活闲置资产、提升资产运营效率")
	}
	if v, ok := r.Growth["revenue_growth"]; ok && v < 5 {
		out = append(out, "营收增长放缓，建议拓展市场、寻找新的增长点")
	}
	if len(out) == 0 {
		out = append(out, "财务状况整体良好，建议保持现有经营策略", "持续关注行业变化和潜在风险")
	}
	return out
}
