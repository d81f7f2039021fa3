package clean

import (
	"encoding/json"
	"math"
	"testing"

	"finsight/pkg/core/alias"

	"github.com/stretchr/testify/assert"
)

func TestClean_Values(t *testing.T) {
	tests := []struct {
		name   string
		field  string
		raw    interface{}
		want   float64
		wantOK bool
	}{
		{"plain float", alias.Revenue, 573.88, 573.88, true},
		{"int", alias.Revenue, 100, 100, true},
		{"json number", alias.Revenue, json.Number("1511.39"), 1511.39, true},
		{"thousands separators", alias.Revenue, "1,234,567.5", 1234567.5, true},
		{"full-width comma", alias.Revenue, "1，234", 1234, true},
		{"currency symbol", alias.Revenue, "¥ 2,000", 2000, true},
		{"dollar", alias.TotalAssets, "$1,000", 1000, true},
		{"percent string on ratio", "net_profit_margin", "15.5%", 15.5, true},
		{"yi marker", alias.Revenue, "1.5亿", 1.5e8, true},
		{"wan marker", alias.Revenue, "300万元", 3e6, true},
		{"million word", alias.Revenue, "12.5 million", 12.5e6, true},
		{"compact suffix", alias.Revenue, "3k", 3000, true},
		{"parenthesised negative profit", alias.NetProfit, "(500)", -500, true},
		{"negative net profit allowed", alias.NetProfit, -500.0, -500, true},
		{"negative cash flow allowed", alias.OperatingCashFlow, -20.0, -20, true},
		{"negative revenue rejected", alias.Revenue, -10.0, 0, false},
		{"negative assets rejected", alias.TotalAssets, "-5", 0, false},
		{"magnitude limit", alias.Revenue, 2e15, 0, false},
		{"placeholder dash", alias.Revenue, "-", 0, false},
		{"placeholder na", alias.Revenue, "N/A", 0, false},
		{"nan string", alias.Revenue, "nan", 0, false},
		{"nil", alias.Revenue, nil, 0, false},
		{"garbage", alias.Revenue, "abc", 0, false},
		{"bool", alias.Revenue, true, 0, false},
		{"map", alias.Revenue, map[string]interface{}{"a": 1}, 0, false},
		{"ratio out of range", "roe", 5000.0, 0, false},
		{"negative count", alias.SharesOutstanding, -1.0, 0, false},
		{"ratio not scaled by marker", "roe", "12万", 12, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Clean(tt.field, tt.raw)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK && math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("Clean(%s, %v) = %v, want %v", tt.field, tt.raw, got, tt.want)
			}
		})
	}
}

func TestClean_KeyAnnotation(t *testing.T) {
	c := New(DefaultOptions())

	out := c.CleanKeyed(alias.Revenue, "营业收入(亿元)", 573.88)
	assert.True(t, out.OK)
	assert.InDelta(t, 573.88e8, out.Value, 1)
	assert.Equal(t, 1e8, out.Multiplier)

	out = c.CleanKeyed(alias.Revenue, "Revenue (in millions)", 12.0)
	assert.True(t, out.OK)
	assert.InDelta(t, 12e6, out.Value, 1e-6)

	// a marker in the value wins over the key annotation
	out = c.CleanKeyed(alias.Revenue, "营业收入(亿元)", "300万")
	assert.InDelta(t, 3e6, out.Value, 1e-6)
}

func TestClean_ImplicitScalingDisabledByDefault(t *testing.T) {
	got, ok := Clean(alias.Revenue, 573.88)
	assert.True(t, ok)
	assert.Equal(t, 573.88, got)
}

func TestClean_ImplicitScalingConfigured(t *testing.T) {
	c := New(Options{
		ImplicitKinds:  []alias.Kind{alias.KindMonetary, alias.KindRatio},
		ImplicitFields: []string{alias.Revenue, "roe"},
	})

	out := c.CleanKeyed(alias.Revenue, "营业收入", 573.88)
	assert.True(t, out.Implicit)
	assert.InDelta(t, 573.88e8, out.Value, 1)

	// large numbers are already in base units
	out = c.CleanKeyed(alias.Revenue, "营业收入", 5.7388e10)
	assert.False(t, out.Implicit)
	assert.Equal(t, 5.7388e10, out.Value)

	// ratio kinds never scale even when listed
	out = c.CleanKeyed("roe", "roe", 12.5)
	assert.False(t, out.Implicit)
	assert.Equal(t, 12.5, out.Value)

	// fields outside the configured set are left alone
	out = c.CleanKeyed(alias.TotalAssets, "总资产", 100.0)
	assert.False(t, out.Implicit)

	// explicit markers suppress implicit scaling
	out = c.CleanKeyed(alias.Revenue, "营业收入", "5万")
	assert.False(t, out.Implicit)
	assert.Equal(t, 5e4, out.Value)
}

func TestDetectScale(t *testing.T) {
	tests := []struct {
		text string
		want float64
	}{
		{"营业收入(亿元)", 1e8},
		{"单位：万元", 1e4},
		{"2.3万亿", 1e12},
		{"(in millions)", 1e6},
		{"USD thousands", 1e3},
		{"5 billion", 1e9},
		{"revenue", 1},
		{"", 1},
	}
	for _, tt := range tests {
		got, _ := DetectScale(tt.text)
		if got != tt.want {
			t.Errorf("DetectScale(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestAllowsNegative(t *testing.T) {
	assert.True(t, AllowsNegative(alias.NetProfit))
	assert.True(t, AllowsNegative(alias.FinancingCashFlow))
	assert.True(t, AllowsNegative("roe"))
	assert.False(t, AllowsNegative(alias.Revenue))
	assert.False(t, AllowsNegative(alias.TotalAssets))
}
