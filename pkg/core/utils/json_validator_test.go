package utils

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePayload_StrictJSON(t *testing.T) {
	res, err := ParsePayload(`{"营业收入": 573.88, "净利润": 11.04}`)
	require.NoError(t, err)
	assert.Equal(t, "json", res.Strategy)
	assert.False(t, res.Lenient)

	m, ok := res.Value.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 573.88, m["营业收入"])
}

func TestParsePayload_ScalarIsNotAParseFailure(t *testing.T) {
	res, err := ParsePayload(`42`)
	require.NoError(t, err)
	assert.Equal(t, float64(42), res.Value)
}

func TestParsePayload_Repair(t *testing.T) {
	res, err := ParsePayload(`{'revenue': 100, 'net_profit': 10,}`)
	require.NoError(t, err)
	assert.True(t, res.Lenient)

	m, ok := res.Value.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(100), m["revenue"])
}

func TestParsePayload_HJSON(t *testing.T) {
	res, err := ParsePayload("# annual\nrevenue: 100\nnet_profit: 10\n")
	require.NoError(t, err)
	assert.Equal(t, "hjson", res.Strategy)
	assert.True(t, res.Lenient)
	assert.Equal(t, float64(10), res.Value.(map[string]interface{})["net_profit"])
}

func TestIsRecoverable(t *testing.T) {
	tests := []struct {
		name string
		v    interface{}
		want bool
	}{
		{"numbers", map[string]interface{}{"revenue": 100.0}, true},
		{"numeric string", map[string]interface{}{"revenue": "1,200"}, true},
		{"nested", map[string]interface{}{"2024": map[string]interface{}{"revenue": 1.0}}, true},
		{"empty map", map[string]interface{}{}, false},
		{"scalar", 1.0, false},
		{"blank value", map[string]interface{}{"revenue": 100.0, "net_profit": ""}, false},
		{"null value", map[string]interface{}{"revenue": 100.0, "net_profit": nil}, false},
		{"words only", map[string]interface{}{"not json at all": "x"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isRecoverable(tt.v))
		})
	}
}

func TestParsePayload_CodeFence(t *testing.T) {
	res, err := ParsePayload("```json\n{\"revenue\": 1}\n```")
	require.NoError(t, err)
	assert.Equal(t, "json", res.Strategy)
}

func TestParsePayload_YAML(t *testing.T) {
	res, err := ParsePayload("---\nrevenue: 100\nbalance_sheet:\n  total_assets: 500\n")
	require.NoError(t, err)
	assert.Equal(t, "yaml", res.Strategy)

	m := res.Value.(map[string]interface{})
	assert.Equal(t, float64(100), m["revenue"])
	bs, ok := m["balance_sheet"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(500), bs["total_assets"])
}

func TestParsePayload_Failures(t *testing.T) {
	for _, input := range []string{
		"",
		"   ",
		"<<<not a financial payload>>>",
		"{not json at all",
		`{"净利润": }garbage`,
		`{"营业收入": 573.88, "净利润": }garbage`,
		`[`,
	} {
		_, err := ParsePayload(input)
		require.Error(t, err, input)
		assert.True(t, errors.Is(err, ErrParseFailed), input)
	}
}

func TestCanonicalJSON_SortedKeys(t *testing.T) {
	a, err := CanonicalJSON(map[string]interface{}{"b": 1, "a": 2})
	require.NoError(t, err)
	b, err := CanonicalJSON(map[string]interface{}{"a": 2, "b": 1})
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestMarkdownToHTML(t *testing.T) {
	html, err := MarkdownToHTML("# Title\n\n| a | b |\n|---|---|\n| 1 | 2 |\n")
	require.NoError(t, err)
	assert.Contains(t, html, "<h1>Title</h1>")
	assert.Contains(t, html, "<table>")
}

func TestMarkdownOutline(t *testing.T) {
	got := MarkdownOutline("# Report\n\ntext\n\n## Ratios\n\n## Trends\n")
	assert.Equal(t, []string{"Report", "Ratios", "Trends"}, got)
}

func TestCleanMarkdown(t *testing.T) {
	assert.Equal(t, "# A", CleanMarkdown("```markdown\n# A\n```"))
	assert.Equal(t, "plain", CleanMarkdown("  plain "))
}
