package detect

import (
	"testing"

	"finsight/pkg/models"

	"github.com/stretchr/testify/assert"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		name       string
		raw        interface{}
		want       models.FormatTag
		historyKey string
	}{
		{
			name: "flat chinese metrics",
			raw:  map[string]interface{}{"营业收入": 573.88, "净利润": 11.04, "总资产": 2000.0},
			want: models.FormatFlatMetrics,
		},
		{
			name:       "history container only",
			raw:        map[string]interface{}{"历史数据": map[string]interface{}{"2023": map[string]interface{}{"营业收入": 1420.56}}},
			want:       models.FormatYearKeyed,
			historyKey: "历史数据",
		},
		{
			name: "history container with top-level metrics",
			raw: map[string]interface{}{
				"revenue":         100.0,
				"historical_data": map[string]interface{}{"2023": map[string]interface{}{"revenue": 90.0}},
			},
			want:       models.FormatFlatMetrics,
			historyKey: "historical_data",
		},
		{
			name: "statement sections",
			raw: map[string]interface{}{
				"利润表":   map[string]interface{}{"营业收入": 100.0},
				"资产负债表": map[string]interface{}{"总资产": 500.0},
			},
			want: models.FormatNestedSections,
		},
		{
			name: "year keyed",
			raw: map[string]interface{}{
				"2023": map[string]interface{}{"revenue": 90.0},
				"2024": map[string]interface{}{"revenue": 100.0},
			},
			want: models.FormatYearKeyed,
		},
		{
			name: "ratio only",
			raw:  map[string]interface{}{"净利润率": 5.0, "流动比率": 1.2},
			want: models.FormatRatioOnly,
		},
		{
			name: "ratio group",
			raw:  map[string]interface{}{"profitability": map[string]interface{}{"roe": 12.0}},
			want: models.FormatRatioOnly,
		},
		{
			name: "section key holding a scalar is a metric",
			raw:  map[string]interface{}{"income": 100.0},
			want: models.FormatFlatMetrics,
		},
		{name: "empty object", raw: map[string]interface{}{}, want: models.FormatUnknown},
		{name: "unrecognised keys", raw: map[string]interface{}{"foo": 1.0}, want: models.FormatUnknown},
		{name: "scalar", raw: 42.0, want: models.FormatUnknown},
		{name: "nil", raw: nil, want: models.FormatUnknown},
		{
			name: "list of period records",
			raw: []interface{}{
				map[string]interface{}{"year": 2023.0, "revenue": 90.0},
				map[string]interface{}{"year": 2024.0, "revenue": 100.0},
			},
			want: models.FormatYearKeyed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Detect(tt.raw)
			assert.Equal(t, tt.want, got.Format)
			assert.Equal(t, tt.historyKey, got.HistoryKey)
			assert.NotEmpty(t, got.Evidence)
		})
	}
}

func TestDetect_ArrayTrends(t *testing.T) {
	raw := map[string]interface{}{
		"years":         []interface{}{2022.0, 2023.0, 2024.0},
		"revenue_trend": []interface{}{80.0, 90.0, 100.0},
	}
	got := Detect(raw)
	assert.True(t, got.ArrayTrends)
	assert.Equal(t, models.FormatYearKeyed, got.Format)
}

func TestDetect_SectionsRecordsEveryBilingualKey(t *testing.T) {
	raw := map[string]interface{}{
		"income_statement": map[string]interface{}{"revenue": 100.0},
		"利润表":              map[string]interface{}{"营业收入": 110.0},
	}
	got := Detect(raw)
	assert.Equal(t, []string{"income_statement", "利润表"}, got.Sections[models.SectionIncome])
}

func TestPeriodLabel(t *testing.T) {
	label, ok := PeriodLabel(map[string]interface{}{"year": 2024.0})
	assert.True(t, ok)
	assert.Equal(t, "2024", label)

	label, ok = PeriodLabel(map[string]interface{}{"REPORT_DATE": "2024-12-31"})
	assert.True(t, ok)
	assert.Equal(t, "2024-12-31", label)

	_, ok = PeriodLabel(map[string]interface{}{"revenue": 1.0})
	assert.False(t, ok)
}

func TestIsYearKey(t *testing.T) {
	assert.True(t, IsYearKey("2024"))
	assert.True(t, IsYearKey(" 1999 "))
	assert.False(t, IsYearKey("2024-12"))
	assert.False(t, IsYearKey("3024"))
	assert.False(t, IsYearKey("revenue"))
}
