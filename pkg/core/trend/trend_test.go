package trend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finsight/pkg/models"
)

func points(values ...float64) []models.Point {
	out := make([]models.Point, len(values))
	for i, v := range values {
		out[i] = models.Point{Year: string(rune('a' + i)), Value: v}
	}
	return out
}

func TestAnalyze_HistoryTable(t *testing.T) {
	history := models.HistoryTable{
		"2024": {"revenue": 1511.39, "net_profit": 36.11},
		"2023": {"revenue": 1420.56, "net_profit": 32.45},
	}

	got := Analyze(history, models.CanonicalStatement{}, 0)

	rev, ok := got["revenue"]
	require.True(t, ok)
	require.NotNil(t, rev.AverageGrowth)
	assert.InDelta(t, 6.40, *rev.AverageGrowth, 0.1)
	assert.Equal(t, models.TrendIncreasing, rev.Trend)
	require.Len(t, rev.Data, 2)
	assert.Equal(t, "2023", rev.Data[0].Year, "points are chronological")
	assert.Equal(t, "2024", rev.Data[1].Year)
	assert.Equal(t, []float64{6.39}, rev.GrowthRates)

	profit := got["profit"]
	require.NotNil(t, profit.AverageGrowth)
	assert.InDelta(t, 11.28, *profit.AverageGrowth, 1e-9)

	_, hasAssets := got["assets"]
	assert.False(t, hasAssets, "optional metrics need data")
}

func TestAnalyze_HorizonKeepsMostRecent(t *testing.T) {
	history := models.HistoryTable{}
	for i, y := range []string{"2019", "2020", "2021", "2022", "2023", "2024"} {
		history[y] = models.PeriodRecord{"revenue": float64(100 + i*10)}
	}

	got := Analyze(history, models.CanonicalStatement{}, 3)["revenue"]
	require.Len(t, got.Data, 3)
	assert.Equal(t, "2022", got.Data[0].Year)
	assert.Equal(t, "2024", got.Data[2].Year)
	// (150-130)/130/2*100
	require.NotNil(t, got.AverageGrowth)
	assert.InDelta(t, 7.69, *got.AverageGrowth, 1e-9)
}

func TestAnalyze_FromStatementPeriods(t *testing.T) {
	stmt := models.CanonicalStatement{
		Income: []models.Period{
			{Label: "current", Values: models.PeriodRecord{"revenue": 999}},
			{Label: "2024", Year: 2024, Values: models.PeriodRecord{"revenue": 120, "net_profit": 12}},
			{Label: "2023", Year: 2023, Values: models.PeriodRecord{"revenue": 100, "net_profit": 10}},
		},
		Balance: []models.Period{
			{Label: "2024", Year: 2024, Values: models.PeriodRecord{"total_assets": 500}},
		},
	}

	got := Analyze(nil, stmt, 4)

	rev := got["revenue"]
	require.Len(t, rev.Data, 2, "undated periods are skipped")
	require.NotNil(t, rev.AverageGrowth)
	assert.Equal(t, 20.0, *rev.AverageGrowth)
	assert.Equal(t, models.TrendIncreasing, rev.Trend)

	assets, ok := got["assets"]
	require.True(t, ok)
	assert.Equal(t, models.TrendSinglePoint, assets.Trend)
	assert.Nil(t, assets.AverageGrowth)
}

func TestAnalyze_Empty(t *testing.T) {
	assert.Empty(t, Analyze(nil, models.CanonicalStatement{}, 4))
}

func TestAnalyze_AlwaysMetrics(t *testing.T) {
	stmt := models.CanonicalStatement{
		Balance: []models.Period{{Label: "current", Values: models.PeriodRecord{"total_assets": 10}}},
	}
	got := Analyze(nil, stmt, 4)

	require.Contains(t, got, "revenue")
	require.Contains(t, got, "profit")
	assert.Equal(t, models.TrendNoData, got["revenue"].Trend)
	assert.NotNil(t, got["revenue"].Data)
}

func TestSummarize_SignChanges(t *testing.T) {
	tests := []struct {
		name    string
		values  []float64
		loss    bool
		trend   string
		message string
		growth  bool
	}{
		{"loss to profit", []float64{-10, 5}, true, models.TrendInsufficientData, MsgLossToProfit, false},
		{"negative to positive", []float64{-10, 5}, false, models.TrendInsufficientData, MsgNegativeToPositive, false},
		{"grew from zero", []float64{0, 5}, true, models.TrendInsufficientData, MsgGrewFromZero, false},
		{"loss narrowed", []float64{-10, -5}, true, models.TrendInsufficientData, MsgLossNarrowed, false},
		{"loss widened", []float64{-5, -10}, true, models.TrendInsufficientData, MsgLossWidened, false},
		{"no baseline", []float64{0, -3}, true, models.TrendInsufficientData, MsgNoBaseline, false},
		{"moved to loss", []float64{10, -5}, true, models.TrendDecreasing, MsgMovedToLoss, true},
		{"flat", []float64{100, 102}, true, models.TrendStable, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Summarize(points(tt.values...), tt.loss)
			assert.Equal(t, tt.trend, res.Trend)
			assert.Equal(t, tt.message, res.Message)
			assert.Equal(t, tt.growth, res.AverageGrowth != nil)
		})
	}
}

func TestSummarize_PointCounts(t *testing.T) {
	none := Summarize(nil, false)
	assert.Equal(t, models.TrendNoData, none.Trend)
	assert.Empty(t, none.Data)

	one := Summarize(points(42), false)
	assert.Equal(t, models.TrendSinglePoint, one.Trend)
	assert.Nil(t, one.AverageGrowth)
	assert.Empty(t, one.GrowthRates)
}

func TestLabel_Consistency(t *testing.T) {
	for g := -20.0; g <= 20.0; g += 0.25 {
		label := Label(g)
		switch {
		case g > 5:
			assert.Equal(t, models.TrendIncreasing, label, "g=%v", g)
		case g < -5:
			assert.Equal(t, models.TrendDecreasing, label, "g=%v", g)
		default:
			assert.Equal(t, models.TrendStable, label, "g=%v", g)
		}
	}
}

func TestSummarize_LabelMatchesGrowth(t *testing.T) {
	series := [][]float64{{100, 106}, {100, 94}, {100, 105}, {100, 95}, {100, 200, 50}, {1, 1, 1, 1}}
	for _, s := range series {
		res := Summarize(points(s...), false)
		require.NotNil(t, res.AverageGrowth)
		assert.Equal(t, Label(*res.AverageGrowth), res.Trend, "series %v", s)
	}
}
