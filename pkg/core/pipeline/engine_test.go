package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finsight/pkg/core/calc"
	"finsight/pkg/core/utils"
	"finsight/pkg/models"
)

func testEngine(t *testing.T, cacheSize int) *Engine {
	t.Helper()
	opts := DefaultOptions()
	opts.CacheSize = cacheSize
	opts.Now = func() time.Time { return time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC) }
	e, err := New(opts)
	require.NoError(t, err)
	return e
}

func analyze(t *testing.T, e *Engine, payload interface{}) *Result {
	t.Helper()
	res, err := e.Analyze(context.Background(), Request{Payload: payload})
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}

func decodeJSON(t *testing.T, res *Result) map[string]interface{} {
	t.Helper()
	b, err := json.Marshal(res)
	require.NoError(t, err)
	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &doc))
	return doc
}

func TestAnalyze_FlatMetrics(t *testing.T) {
	res := analyze(t, testEngine(t, 0), `{"营业收入": 573.88, "净利润": 11.04}`)

	assert.Empty(t, res.Error)
	assert.InDelta(t, 1.92, res.Ratios.Profitability["net_profit_margin"], 1e-9)
	assert.Equal(t, models.FormatFlatMetrics, res.Diagnostics.DataFormatDetected)
	assert.Equal(t, "json", res.Diagnostics.ParseStrategy)
	require.NotNil(t, res.Health)
	assert.NotEmpty(t, res.RequestID)

	doc := decodeJSON(t, res)
	for _, k := range []string{"ratios", "trends", "quality", "diagnostics"} {
		assert.Contains(t, doc, k)
	}
	assert.NotContains(t, doc, "error")
}

func TestAnalyze_HistoryTrend(t *testing.T) {
	payload := map[string]interface{}{
		"历史数据": map[string]interface{}{
			"2024": map[string]interface{}{"营业收入": 1511.39, "净利润": 36.11},
			"2023": map[string]interface{}{"营业收入": 1420.56, "净利润": 32.45},
		},
	}
	res := analyze(t, testEngine(t, 0), payload)

	rev, ok := res.Trends["revenue"]
	require.True(t, ok)
	require.NotNil(t, rev.AverageGrowth)
	assert.InDelta(t, 6.40, *rev.AverageGrowth, 0.1)
	assert.Equal(t, models.TrendIncreasing, rev.Trend)
	assert.Equal(t, "历史数据", res.Diagnostics.HistorySource)
}

func TestAnalyze_ZeroRevenue(t *testing.T) {
	res := analyze(t, testEngine(t, 0), map[string]interface{}{
		"利润表": map[string]interface{}{"营业收入": 0.0, "净利润": -500.0},
	})

	assert.Empty(t, res.Error)
	_, ok := res.Ratios.Profitability["net_profit_margin"]
	assert.False(t, ok)

	found := false
	for _, w := range res.Diagnostics.CalculationWarnings {
		if strings.Contains(w, "net_profit_margin") && strings.Contains(w, "revenue") {
			found = true
		}
	}
	assert.True(t, found, "warnings: %v", res.Diagnostics.CalculationWarnings)
}

func TestAnalyze_EmptyObject(t *testing.T) {
	res := analyze(t, testEngine(t, 0), "{}")

	assert.Empty(t, res.Error)
	assert.NoError(t, res.Err())
	assert.Equal(t, 0, res.Ratios.Count())
	assert.Empty(t, res.Trends)
	assert.Equal(t, 0.0, res.Quality.OverallScore)
	assert.Nil(t, res.Health)

	doc := decodeJSON(t, res)
	assert.NotContains(t, doc, "error")
	assert.Contains(t, doc, "quality")
}

func TestAnalyze_Unparsable(t *testing.T) {
	for _, input := range []string{
		"<<<not a financial payload>>>",
		"{not json at all",
		`{"净利润": }garbage`,
		`{"营业收入": 573.88, "净利润": }garbage`,
	} {
		t.Run(input, func(t *testing.T) {
			res := analyze(t, testEngine(t, 0), input)

			assert.True(t, res.ParseFailed())
			assert.True(t, errors.Is(res.Err(), utils.ErrParseFailed))
			assert.NotEmpty(t, res.Error)

			doc := decodeJSON(t, res)
			assert.Contains(t, doc, "error")
			assert.Contains(t, doc, "diagnostics")
			for _, k := range []string{"ratios", "trends", "quality"} {
				assert.NotContains(t, doc, k)
			}
		})
	}
}

func TestAnalyze_RepairedPayload(t *testing.T) {
	res := analyze(t, testEngine(t, 0), `{'营业收入': 573.88, '净利润': 11.04,}`)

	assert.False(t, res.ParseFailed())
	assert.Equal(t, "json_repair", res.Diagnostics.ParseStrategy)
	assert.InDelta(t, 1.92, res.Ratios.Profitability["net_profit_margin"], 1e-9)
}

func TestAnalyze_ContainedLineItemsDoNotFeedRatios(t *testing.T) {
	res := analyze(t, testEngine(t, 0), map[string]interface{}{
		"资产负债表": map[string]interface{}{
			"非流动资产合计":    1500.0,
			"流动负债合计":     400.0,
			"负债合计":       1000.0,
			"负债和所有者权益总计": 3000.0,
		},
		"利润表": map[string]interface{}{
			"营业外收入": 5.0,
			"净利润":   10.0,
		},
	})

	assert.NotContains(t, res.Ratios.Solvency, "current_ratio")
	assert.NotContains(t, res.Ratios.Solvency, "equity_ratio")
	assert.NotContains(t, res.Ratios.Profitability, "net_profit_margin")
	assert.Empty(t, res.Diagnostics.UnmappedFields)
}

func TestAnalyze_NoUsableData(t *testing.T) {
	res := analyze(t, testEngine(t, 0), map[string]interface{}{"company": "ACME", "ticker": "ACM"})

	assert.True(t, errors.Is(res.Err(), calc.ErrNoUsableData))
	assert.NotEmpty(t, res.Error)
	assert.False(t, res.ParseFailed())
	assert.Contains(t, decodeJSON(t, res), "ratios")
}

func TestAnalyze_ReportedRatiosOnly(t *testing.T) {
	res := analyze(t, testEngine(t, 0), map[string]interface{}{
		"profitability": map[string]interface{}{"roe": 15.5},
	})

	assert.Empty(t, res.Error)
	assert.Equal(t, 15.5, res.Ratios.Profitability["roe"])
}

func TestAnalyze_TextPayload(t *testing.T) {
	res := analyze(t, testEngine(t, 0), "营业收入: 500亿, 净利润: 50亿")

	assert.Empty(t, res.Error)
	assert.Equal(t, "text", res.Diagnostics.ParseStrategy)
	assert.InDelta(t, 10.0, res.Ratios.Profitability["net_profit_margin"], 1e-9)
}

func TestAnalyze_TypedPayload(t *testing.T) {
	type income struct {
		Revenue   float64 `json:"revenue"`
		NetProfit float64 `json:"net_profit"`
	}
	res := analyze(t, testEngine(t, 0), income{Revenue: 200, NetProfit: 30})
	assert.InDelta(t, 15.0, res.Ratios.Profitability["net_profit_margin"], 1e-9)
}

func TestAnalyze_DataQualityScore(t *testing.T) {
	res := analyze(t, testEngine(t, 0), `{"营业收入": 573.88, "净利润": 11.04}`)
	d := res.Diagnostics

	want := DataQualityScore(len(d.UnmappedFields)+len(d.RejectedValues), len(d.CalculationWarnings), len(d.MissingFields))
	assert.Equal(t, want, d.DataQualityScore)
	assert.Contains(t, d.MissingFields, "balance.total_assets")
	assert.NotContains(t, d.MissingFields, "income.revenue")
}

func TestDataQualityScore(t *testing.T) {
	assert.Equal(t, 100.0, DataQualityScore(0, 0, 0))
	assert.Equal(t, 65.0, DataQualityScore(1, 1, 1))
	assert.Equal(t, 0.0, DataQualityScore(10, 0, 0))
}

func TestAnalyze_Cache(t *testing.T) {
	e := testEngine(t, 10)
	payload := `{"营业收入": 573.88, "净利润": 11.04}`

	first := analyze(t, e, payload)
	second := analyze(t, e, payload)

	assert.False(t, first.Cached)
	assert.True(t, second.Cached)
	assert.NotEqual(t, first.RequestID, second.RequestID)
	assert.Equal(t, first.Ratios, second.Ratios)

	// a different horizon is a different entry
	_, err := e.Analyze(context.Background(), Request{Payload: payload, Years: 2})
	require.NoError(t, err)

	s := e.CacheStats()
	assert.Equal(t, uint64(1), s.Hits)
	assert.Equal(t, uint64(2), s.Misses)
	assert.Equal(t, 2, s.Entries)
}

func TestAnalyze_CacheExpiresWithTheDay(t *testing.T) {
	now := time.Date(2025, 1, 20, 12, 0, 0, 0, time.UTC)
	opts := DefaultOptions()
	opts.Now = func() time.Time { return now }
	e, err := New(opts)
	require.NoError(t, err)

	payload := map[string]interface{}{
		"历史数据": map[string]interface{}{
			"2024": map[string]interface{}{"营业收入": 1511.39, "净利润": 36.11},
		},
	}
	first := analyze(t, e, payload)
	assert.Equal(t, 100.0, first.Quality.Dimensions.Timeliness)

	now = now.Add(3 * time.Hour)
	assert.True(t, analyze(t, e, payload).Cached)

	now = time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)
	later := analyze(t, e, payload)
	assert.False(t, later.Cached)
	assert.Equal(t, 85.0, later.Quality.Dimensions.Timeliness)
	assert.Equal(t, now, later.Quality.AssessedAt)
}

func TestAnalyze_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := testEngine(t, 0).Analyze(ctx, Request{Payload: "{}"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, res)
}

func TestPackageAnalyze(t *testing.T) {
	res, err := Analyze(context.Background(), `{"revenue": 100, "net_profit": 5}`, 0)
	require.NoError(t, err)
	assert.InDelta(t, 5.0, res.Ratios.Profitability["net_profit_margin"], 1e-9)
}

func TestCompare(t *testing.T) {
	e := testEngine(t, 0)
	cmp, err := e.Compare(context.Background(), map[string]interface{}{
		"weak":   map[string]interface{}{"营业收入": 100.0, "净利润": 1.0},
		"strong": map[string]interface{}{"营业收入": 100.0, "净利润": 20.0, "总资产": 200.0, "总负债": 80.0, "所有者权益": 120.0},
		"broken": "<<<not a financial payload>>>",
	}, 0)
	require.NoError(t, err)

	require.Len(t, cmp.Ranking, 3)
	assert.Equal(t, "strong", cmp.Ranking[0].Company)
	assert.Equal(t, 1, cmp.Ranking[0].Rank)
	assert.Equal(t, "weak", cmp.Ranking[1].Company)
	assert.Equal(t, "broken", cmp.Ranking[2].Company)
	assert.NotEmpty(t, cmp.Ranking[2].Error)
	assert.InDelta(t, 20.0, cmp.Ranking[0].KeyRatios["net_profit_margin"], 1e-9)
	assert.Len(t, cmp.Results, 3)
}
