// Package trend derives multi-year trend summaries from a history table or,
// when none exists, from the dated periods of a canonical statement.
package trend

import (
	"sort"
	"strconv"

	"finsight/pkg/core/alias"
	"finsight/pkg/core/calc"
	"finsight/pkg/core/validate"
	"finsight/pkg/models"
)

// DefaultHorizon is the number of most recent periods used by default.
const DefaultHorizon = 4

// Metric is one tracked trend series.
type Metric struct {
	Name  string
	Field string
	// Always metrics appear in the output even without data.
	Always bool
	// Loss wording applies to profit-like metrics.
	Loss bool
}

// Metrics lists the tracked series in output order.
var Metrics = []Metric{
	{Name: "revenue", Field: alias.Revenue, Always: true},
	{Name: "profit", Field: alias.NetProfit, Always: true, Loss: true},
	{Name: "assets", Field: alias.TotalAssets},
	{Name: "equity", Field: alias.Equity},
	{Name: "operating_cash_flow", Field: alias.OperatingCashFlow, Loss: true},
}

// Messages
const (
	MsgLossToProfit       = "moved from loss to profit"
	MsgNegativeToPositive = "moved from negative to positive"
	MsgGrewFromZero       = "grew from zero"
	MsgLossNarrowed       = "loss narrowed"
	MsgLossWidened        = "loss widened"
	MsgMovedToLoss        = "moved to a loss"
	MsgNoBaseline         = "no positive baseline"
	MsgSinglePoint        = "only one period available"
	MsgNoData             = "no data"
)

// Analyze builds a TrendResult per tracked metric over at most horizonYears
// periods. horizonYears <= 0 selects DefaultHorizon. Without any data at all
// the result is empty.
func Analyze(history models.HistoryTable, stmt models.CanonicalStatement, horizonYears int) map[string]models.TrendResult {
	if horizonYears <= 0 {
		horizonYears = DefaultHorizon
	}

	out := make(map[string]models.TrendResult, len(Metrics))
	if len(history) == 0 && stmt.IsEmpty() {
		return out
	}
	for _, m := range Metrics {
		var points []models.Point
		if len(history) > 0 {
			points = seriesFromHistory(history, m.Field, horizonYears)
		} else {
			points = seriesFromStatement(stmt, m.Field, horizonYears)
		}
		if len(points) == 0 && !m.Always {
			continue
		}
		out[m.Name] = Summarize(points, m.Loss)
	}
	return out
}

// seriesFromHistory collects the most recent horizon years, chronologically.
func seriesFromHistory(history models.HistoryTable, field string, horizon int) []models.Point {
	var points []models.Point
	for _, year := range history.Years() {
		if len(points) == horizon {
			break
		}
		if v, ok := history[year].Get(field); ok {
			points = append(points, models.Point{Year: year, Value: v})
		}
	}
	reverse(points)
	return points
}

// seriesFromStatement uses section periods whose label carries a year.
func seriesFromStatement(stmt models.CanonicalStatement, field string, horizon int) []models.Point {
	cat, ok := alias.CategoryOf(field)
	if !ok {
		return nil
	}
	byYear := map[int]float64{}
	for _, p := range stmt.Section(string(cat)) {
		if p.Year == 0 {
			continue
		}
		if _, seen := byYear[p.Year]; seen {
			continue
		}
		if v, ok := p.Values.Get(field); ok {
			byYear[p.Year] = v
		}
	}

	years := make([]int, 0, len(byYear))
	for y := range byYear {
		years = append(years, y)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(years)))
	if len(years) > horizon {
		years = years[:horizon]
	}

	points := make([]models.Point, 0, len(years))
	for _, y := range years {
		points = append(points, models.Point{Year: strconv.Itoa(y), Value: byYear[y]})
	}
	reverse(points)
	return points
}

func reverse(points []models.Point) {
	for i, j := 0, len(points)-1; i < j; i, j = i+1, j-1 {
		points[i], points[j] = points[j], points[i]
	}
}

// Summarize labels a chronological series. loss selects profit wording for
// sign changes.
func Summarize(points []models.Point, loss bool) models.TrendResult {
	res := models.TrendResult{Data: points, GrowthRates: []float64{}}
	if res.Data == nil {
		res.Data = []models.Point{}
	}

	switch len(points) {
	case 0:
		res.Trend = models.TrendNoData
		res.Message = MsgNoData
		return res
	case 1:
		res.Trend = models.TrendSinglePoint
		res.Message = MsgSinglePoint
		return res
	}

	values := make([]float64, len(points))
	for i, p := range points {
		values[i] = p.Value
	}
	for _, g := range validate.GrowthSeries(values) {
		res.GrowthRates = append(res.GrowthRates, calc.Round2(g))
	}

	earliest, latest := values[0], values[len(values)-1]
	switch {
	case earliest > 0:
		g := calc.Round2((latest - earliest) / earliest / float64(len(values)-1) * 100)
		res.AverageGrowth = &g
		res.Trend = Label(g)
		if latest < 0 {
			res.Message = MsgMovedToLoss
		}
	case earliest < 0 && latest > 0:
		res.Trend = models.TrendInsufficientData
		res.Message = MsgLossToProfit
		if !loss {
			res.Message = MsgNegativeToPositive
		}
	case earliest < 0 && latest < 0:
		res.Trend = models.TrendInsufficientData
		if latest > earliest {
			res.Message = MsgLossNarrowed
		} else {
			res.Message = MsgLossWidened
		}
	case earliest == 0 && latest > 0:
		res.Trend = models.TrendInsufficientData
		res.Message = MsgGrewFromZero
	default:
		res.Trend = models.TrendInsufficientData
		res.Message = MsgNoBaseline
	}
	return res
}

// Label maps an average growth percentage to a trend label.
func Label(g float64) string {
	switch {
	case g > 5:
		return models.TrendIncreasing
	case g < -5:
		return models.TrendDecreasing
	}
	return models.TrendStable
}
