package pipeline

import (
	"context"
	"sort"

	"finsight/pkg/models"
)

// Ranking is one company's place in a comparison.
type Ranking struct {
	Rank         int                `json:"rank"`
	Company      string             `json:"company"`
	HealthScore  float64            `json:"health_score"`
	RiskLevel    string             `json:"risk_level,omitempty"`
	QualityScore float64            `json:"quality_score"`
	KeyRatios    map[string]float64 `json:"key_ratios"`
	Error        string             `json:"error,omitempty"`
}

// Comparison holds per-company results and their ranking.
type Comparison struct {
	Results map[string]*Result `json:"results"`
	Ranking []Ranking          `json:"ranking"`
}

// keyRatios are copied into every ranking row when present.
var keyRatios = []struct{ category, id string }{
	{models.CategoryProfitability, "roe"},
	{models.CategoryProfitability, "net_profit_margin"},
	{models.CategorySolvency, "debt_to_asset_ratio"},
	{models.CategorySolvency, "current_ratio"},
	{models.CategoryGrowth, "revenue_growth"},
}

// Compare analyzes each company's payload and ranks them by health score,
// then quality score, then name. Companies without ratios rank last.
func (e *Engine) Compare(ctx context.Context, companies map[string]interface{}, years int) (*Comparison, error) {
	names := make([]string, 0, len(companies))
	for name := range companies {
		names = append(names, name)
	}
	sort.Strings(names)

	cmp := &Comparison{Results: make(map[string]*Result, len(names)), Ranking: []Ranking{}}
	for _, name := range names {
		res, err := e.Analyze(ctx, Request{Payload: companies[name], Years: years})
		if err != nil {
			return nil, err
		}
		cmp.Results[name] = res
		cmp.Ranking = append(cmp.Ranking, rankingRow(name, res))
	}

	sort.SliceStable(cmp.Ranking, func(i, j int) bool {
		a, b := cmp.Ranking[i], cmp.Ranking[j]
		if a.HealthScore != b.HealthScore {
			return a.HealthScore > b.HealthScore
		}
		if a.QualityScore != b.QualityScore {
			return a.QualityScore > b.QualityScore
		}
		return a.Company < b.Company
	})
	for i := range cmp.Ranking {
		cmp.Ranking[i].Rank = i + 1
	}
	return cmp, nil
}

func rankingRow(name string, res *Result) Ranking {
	row := Ranking{
		Company:      name,
		QualityScore: res.Quality.OverallScore,
		KeyRatios:    map[string]float64{},
		Error:        res.Error,
	}
	if res.Health != nil {
		row.HealthScore = res.Health.OverallScore
		row.RiskLevel = res.Health.RiskLevel
	}
	for _, k := range keyRatios {
		if v, ok := res.Ratios.Category(k.category)[k.id]; ok {
			row.KeyRatios[k.id] = v
		}
	}
	return row
}
