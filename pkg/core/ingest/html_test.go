package ingest

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const incomeTable = `
<html><body>
<p>单位：亿元</p>
<table>
  <tr><th>项目</th><th>2024年</th><th>2023年</th></tr>
  <tr><td>营业收入</td><td>1,511.39</td><td>1,420.56</td></tr>
  <tr><td>净利润</td><td>(36.11)</td><td>32.45</td></tr>
  <tr><td colspan="3">注：数据未经审计</td></tr>
</table>
</body></html>`

func TestParseHTMLTables(t *testing.T) {
	out, err := ParseHTMLTables(incomeTable)
	require.NoError(t, err)

	assert.Equal(t, map[string]interface{}{"2024": "1511.39", "2023": "1420.56"}, out["营业收入"])
	assert.Equal(t, map[string]interface{}{"2024": "-36.11", "2023": "32.45"}, out["净利润"])
	assert.Equal(t, "单位：亿元", out["unit"])
	assert.NotContains(t, out, "注：数据未经审计")
}

func TestParseHTMLTables_FiscalYearHeaders(t *testing.T) {
	doc := `<table>
	  <caption>(in millions)</caption>
	  <tr><td></td><td>FY2024</td><td>FY2023</td></tr>
	  <tr><td>Revenue</td><td>$391,040</td><td>$383,285</td></tr>
	</table>`
	out, err := ParseHTMLTables(doc)
	require.NoError(t, err)

	assert.Equal(t, map[string]interface{}{"2024": "391040", "2023": "383285"}, out["Revenue"])
	assert.Equal(t, "(in millions)", out["unit"])
}

func TestParseHTMLTables_FirstTableWins(t *testing.T) {
	doc := `<table><tr><td>项目</td><td>2024</td></tr><tr><td>营业收入</td><td>100</td></tr></table>
	        <table><tr><td>项目</td><td>2024</td></tr><tr><td>营业收入</td><td>999</td><td></td></tr></table>`
	out, err := ParseHTMLTables(doc)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"2024": "100"}, out["营业收入"])
	assert.NotContains(t, out, "unit")
}

func TestParseHTMLTables_NoTables(t *testing.T) {
	_, err := ParseHTMLTables("<p>no tables here</p>")
	assert.ErrorIs(t, err, ErrNoTables)

	_, err = ParseHTMLTables("<table><tr><td>a</td><td>b</td></tr></table>")
	assert.ErrorIs(t, err, ErrNoTables)
}

func TestBuildGrid_Spans(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(
		`<table><tr><td rowspan="2">A</td><td>1</td></tr><tr><td>2</td></tr><tr><td colspan="2">B</td></tr></table>`))
	require.NoError(t, err)

	grid := BuildGrid(doc.Find("table").First())
	assert.Equal(t, [][]string{
		{"A", "1"},
		{" ", "2"},
		{"B", " "},
	}, grid)
}

func TestNormalizeNumber(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"(1,234.56)", "-1234.56"},
		{"$1,234", "1234"},
		{"¥500", "500"},
		{"N/A", "N/A"},
		{"2024年", "2024年"},
		{"12%", "12%"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeNumber(tt.in), "input %q", tt.in)
	}
}
