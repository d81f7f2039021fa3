// Package ingest converts HTML financial tables into payloads the engine
// can normalize.
package ingest

import (
	"errors"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"finsight/pkg/core/clean"
	"finsight/pkg/core/normalize"
)

// ErrNoTables is returned when no table with year columns was found.
var ErrNoTables = errors.New("no financial table with year columns found")

// TableConverter extracts metric rows from HTML tables using a virtual grid
// so colspan and rowspan cells stay aligned with their columns.
type TableConverter struct{}

// ParseHTMLTables converts every year-columned table in doc into a
// metric -> {year -> value} payload. The first table that reports a metric wins.
func ParseHTMLTables(doc string) (map[string]interface{}, error) {
	return (&TableConverter{}).Parse(doc)
}

// Parse converts the tables of doc.
func (tc *TableConverter) Parse(doc string) (map[string]interface{}, error) {
	root, err := goquery.NewDocumentFromReader(strings.NewReader(doc))
	if err != nil {
		return nil, err
	}

	out := map[string]interface{}{}
	unit := ""
	root.Find("table").Each(func(_ int, table *goquery.Selection) {
		metrics := tc.tableMetrics(BuildGrid(table))
		if len(metrics) == 0 {
			return
		}
		if unit == "" {
			unit = tableUnit(table)
		}
		for label, years := range metrics {
			if _, exists := out[label]; !exists {
				out[label] = years
			}
		}
	})

	if len(out) == 0 {
		return nil, ErrNoTables
	}
	if unit != "" {
		out["unit"] = unit
	}
	return out, nil
}

// tableMetrics reads the header row of grid for year columns and returns
// every labelled row with at least one value.
func (tc *TableConverter) tableMetrics(grid [][]string) map[string]map[string]interface{} {
	header, cols := -1, map[int]string{}
	for i, row := range grid {
		// column 0 holds row labels
		for c := 1; c < len(row); c++ {
			if year, ok := headerYear(row[c]); ok {
				cols[c] = year
			}
		}
		if len(cols) > 0 {
			header = i
			break
		}
	}
	if header < 0 {
		return nil
	}

	metrics := map[string]map[string]interface{}{}
	for _, row := range grid[header+1:] {
		label := ""
		for c, cell := range row {
			if _, isYear := cols[c]; isYear {
				break
			}
			if strings.TrimSpace(cell) != "" {
				label = strings.TrimSpace(cell)
				break
			}
		}
		if label == "" {
			continue
		}

		values := map[string]interface{}{}
		for c, year := range cols {
			if c >= len(row) {
				continue
			}
			v := strings.TrimSpace(row[c])
			if v == "" || !hasDigit(v) {
				continue
			}
			if _, exists := values[year]; !exists {
				values[year] = v
			}
		}
		if len(values) > 0 {
			if _, exists := metrics[label]; !exists {
				metrics[label] = values
			}
		}
	}
	return metrics
}

// headerYear reads a column header such as "2024", "FY2024", "2024年" or "2024-12-31".
func headerYear(cell string) (string, bool) {
	s := strings.TrimSpace(cell)
	if len(s) > 2 && strings.EqualFold(s[:2], "FY") {
		s = strings.TrimSpace(s[2:])
	}
	year, ok := normalize.YearOf(s)
	if !ok {
		return "", false
	}
	return strconv.Itoa(year), true
}

// tableUnit looks for a scale marker in the caption or the text just before the table.
func tableUnit(table *goquery.Selection) string {
	candidates := []string{
		table.Find("caption").Text(),
		table.PrevFiltered("p, div, span, h1, h2, h3, h4").First().Text(),
	}
	for _, text := range candidates {
		if strings.Contains(text, "单位") || strings.Contains(strings.ToLower(text), "in ") {
			if scale, _ := clean.DetectScale(text); scale != 1 {
				return strings.TrimSpace(text)
			}
		}
	}
	return ""
}

// =============================================================================
// VIRTUAL GRID
// =============================================================================

// BuildGrid lays the rows of table onto a rectangular grid. Spanned slots
// hold a single space so they count as occupied.
func BuildGrid(table *goquery.Selection) [][]string {
	rows := table.Find("tr")
	if rows.Length() == 0 {
		return nil
	}

	maxCols := 0
	rowCount := rows.Length()
	rows.Each(func(_ int, s *goquery.Selection) {
		localCols := 0
		s.Find("td, th").Each(func(_ int, cell *goquery.Selection) {
			localCols += span(cell, "colspan")
		})
		if localCols > maxCols {
			maxCols = localCols
		}
	})

	grid := make([][]string, rowCount)
	for i := range grid {
		grid[i] = make([]string, maxCols)
	}

	rows.Each(func(rowIdx int, tr *goquery.Selection) {
		colIdx := 0
		for colIdx < maxCols && grid[rowIdx][colIdx] != "" {
			colIdx++
		}

		tr.Find("td, th").Each(func(_ int, cell *goquery.Selection) {
			colspan, rowspan := span(cell, "colspan"), span(cell, "rowspan")
			text := cleanCellText(cell.Text())

			for r := 0; r < rowspan; r++ {
				for c := 0; c < colspan; c++ {
					targetRow, targetCol := rowIdx+r, colIdx+c
					if targetRow >= rowCount || targetCol >= maxCols {
						continue
					}
					if r == 0 && c == 0 {
						grid[targetRow][targetCol] = text
					} else {
						grid[targetRow][targetCol] = " "
					}
				}
			}

			colIdx += colspan
			for colIdx < maxCols && grid[rowIdx][colIdx] != "" {
				colIdx++
			}
		})
	})
	return grid
}

func span(cell *goquery.Selection, attr string) int {
	n, _ := strconv.Atoi(cell.AttrOr(attr, "1"))
	if n < 1 {
		return 1
	}
	return n
}

func cleanCellText(text string) string {
	text = strings.TrimSpace(text)
	text = strings.ReplaceAll(text, "\n", " ")
	text = strings.ReplaceAll(text, "\u00a0", " ")
	text = normalizeNumber(text)
	if text == "" {
		return " "
	}
	return text
}

func hasDigit(s string) bool {
	for _, r := range s {
		if r >= '0' && r <= '9' {
			return true
		}
	}
	return false
}

// normalizeNumber converts accounting-format numbers to plain ones:
// (1,234) -> -1234, "$1,234.5" -> 1234.5. Non-numeric text is returned as is.
func normalizeNumber(text string) string {
	if !hasDigit(text) {
		return text
	}
	original := text

	isNegative := false
	if strings.HasPrefix(text, "(") && strings.HasSuffix(text, ")") {
		isNegative = true
		text = text[1 : len(text)-1]
	}

	for _, sym := range []string{"$", "€", "£", "¥", "￥", ","} {
		text = strings.ReplaceAll(text, sym, "")
	}
	text = strings.TrimSpace(text)

	for _, r := range text {
		if !((r >= '0' && r <= '9') || r == '.' || r == '-') {
			return original
		}
	}

	if isNegative && !strings.HasPrefix(text, "-") {
		text = "-" + text
	}
	return text
}
