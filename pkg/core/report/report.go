// Package report renders an analysis result as a Markdown or HTML document.
package report

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"finsight/pkg/core/calc"
	"finsight/pkg/core/pipeline"
	"finsight/pkg/core/quality"
	"finsight/pkg/core/trend"
	"finsight/pkg/core/utils"
	"finsight/pkg/core/validate"
	"finsight/pkg/models"
)

// Section headings, in document order.
const (
	HeadingSummary     = "Summary"
	HeadingRatios      = "Financial Ratios"
	HeadingTrends      = "Trends"
	HeadingQuality     = "Data Quality"
	HeadingHealth      = "Financial Health"
	HeadingDiagnostics = "Diagnostics"
)

// RequiredSections must appear in every rendered report.
var RequiredSections = []string{HeadingSummary, HeadingRatios, HeadingTrends, HeadingQuality, HeadingDiagnostics}

// ErrIncompleteReport is returned by Validate when a required section is missing.
var ErrIncompleteReport = errors.New("report is missing required sections")

var categoryTitles = map[string]string{
	models.CategoryProfitability: "Profitability",
	models.CategorySolvency:      "Solvency",
	models.CategoryEfficiency:    "Efficiency",
	models.CategoryGrowth:        "Growth",
	models.CategoryCashFlow:      "Cash Flow",
}

// Markdown renders res under title. A parse failure renders only the error
// and diagnostics.
func Markdown(res *pipeline.Result, title string) string {
	if title == "" {
		title = "Financial Analysis"
	}
	var sb strings.Builder
	sb.WriteString("# " + title + "\n\n")

	sb.WriteString("## " + HeadingSummary + "\n\n")
	if res.Error != "" {
		sb.WriteString("**Error:** " + res.Error + "\n\n")
	}
	if res.Diagnostics.Summary != "" {
		sb.WriteString(res.Diagnostics.Summary + "\n\n")
	}

	if !res.ParseFailed() {
		writeRatios(&sb, res.Ratios)
		writeTrends(&sb, res.Trends)
		writeQuality(&sb, res.Quality)
		if res.Health != nil {
			writeHealth(&sb, res.Health)
		}
	}
	writeDiagnostics(&sb, res.Diagnostics)
	return sb.String()
}

// RenderHTML renders res as an HTML fragment.
func RenderHTML(res *pipeline.Result, title string) (string, error) {
	return utils.MarkdownToHTML(Markdown(res, title))
}

// Validate checks that markdown carries every required section.
func Validate(markdown string) error {
	present := map[string]bool{}
	for _, h := range utils.MarkdownOutline(markdown) {
		present[strings.TrimSpace(h)] = true
	}
	var missing []string
	for _, s := range RequiredSections {
		if !present[s] {
			missing = append(missing, s)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrIncompleteReport, strings.Join(missing, ", "))
	}
	return nil
}

// =============================================================================
// SECTIONS
// =============================================================================

func writeRatios(sb *strings.Builder, r models.RatioResult) {
	sb.WriteString("## " + HeadingRatios + "\n\n")
	if r.Count() == 0 {
		sb.WriteString("No ratios could be computed.\n\n")
		return
	}
	for _, cat := range models.RatioCategories() {
		ratios := r.Category(cat)
		if len(ratios) == 0 {
			continue
		}
		sb.WriteString("### " + categoryTitles[cat] + "\n\n")
		rows := [][]string{}
		for _, id := range sortedKeys(ratios) {
			rows = append(rows, []string{id, fmt.Sprintf("%.2f", ratios[id])})
		}
		writeTable(sb, []string{"Ratio", "Value"}, rows)
	}
	if len(r.Warnings) > 0 {
		sb.WriteString("### Warnings\n\n")
		for _, w := range r.Warnings {
			sb.WriteString("- " + w + "\n")
		}
		sb.WriteString("\n")
	}
}

func writeTrends(sb *strings.Builder, trends map[string]models.TrendResult) {
	sb.WriteString("## " + HeadingTrends + "\n\n")
	if len(trends) == 0 {
		sb.WriteString("No multi-period data available.\n\n")
		return
	}
	rows := [][]string{}
	var outliers []string
	for _, m := range trend.Metrics {
		t, ok := trends[m.Name]
		if !ok {
			continue
		}
		growth := "-"
		if t.AverageGrowth != nil {
			growth = fmt.Sprintf("%.2f%%", *t.AverageGrowth)
		}
		rows = append(rows, []string{m.Name, t.Trend, growth, cagr(t.Data), fmt.Sprintf("%d", len(t.Data)), t.Message})

		for i := 1; i < len(t.Data); i++ {
			cur, prior := t.Data[i], t.Data[i-1]
			if c := validate.CheckForOutlier(m.Name, cur.Value, prior.Value, quality.GrowthLimitPct); c.IsOutlier {
				outliers = append(outliers, fmt.Sprintf("%s %s→%s: %s", m.Name, prior.Year, cur.Year, c.Reason))
			}
		}
	}
	writeTable(sb, []string{"Metric", "Trend", "Average Growth", "CAGR", "Periods", "Note"}, rows)

	if len(outliers) > 0 {
		sb.WriteString("### Outliers\n\n")
		for _, o := range outliers {
			sb.WriteString("- " + o + "\n")
		}
		sb.WriteString("\n")
	}
}

// cagr formats the compound growth between the first and last point.
func cagr(points []models.Point) string {
	if len(points) < 2 {
		return "-"
	}
	first, last := points[0].Value, points[len(points)-1].Value
	if first <= 0 || last < 0 {
		return "-"
	}
	return fmt.Sprintf("%.2f%%", calc.CAGR(last, first, len(points)-1)*100)
}

func writeQuality(sb *strings.Builder, q models.QualityReport) {
	sb.WriteString("## " + HeadingQuality + "\n\n")
	sb.WriteString(fmt.Sprintf("Overall score **%.2f** (%s)\n\n", q.OverallScore, q.QualityLevel))
	for _, i := range q.CriticalIssues() {
		sb.WriteString("> **Critical:** " + i.Description + "\n\n")
	}
	d := q.Dimensions
	writeTable(sb, []string{"Dimension", "Score"}, [][]string{
		{"completeness", fmt.Sprintf("%.2f", d.Completeness)},
		{"accuracy", fmt.Sprintf("%.2f", d.Accuracy)},
		{"consistency", fmt.Sprintf("%.2f", d.Consistency)},
		{"validity", fmt.Sprintf("%.2f", d.Validity)},
		{"timeliness", fmt.Sprintf("%.2f", d.Timeliness)},
		{"uniqueness", fmt.Sprintf("%.2f", d.Uniqueness)},
	})
	if len(q.Issues) > 0 {
		sb.WriteString("### Issues\n\n")
		rows := make([][]string, 0, len(q.Issues))
		for _, i := range q.Issues {
			rows = append(rows, []string{i.Severity, i.Type, i.Description})
		}
		writeTable(sb, []string{"Severity", "Type", "Description"}, rows)
	}
	if len(q.Recommendations) > 0 {
		sb.WriteString("### Recommendations\n\n")
		for _, r := range q.Recommendations {
			sb.WriteString("- " + r + "\n")
		}
		sb.WriteString("\n")
	}
}

func writeHealth(sb *strings.Builder, h *models.HealthAssessment) {
	sb.WriteString("## " + HeadingHealth + "\n\n")
	sb.WriteString(h.Summary + "\n\n")
	for _, r := range h.Recommendations {
		sb.WriteString("- " + r + "\n")
	}
	if len(h.Recommendations) > 0 {
		sb.WriteString("\n")
	}
}

func writeDiagnostics(sb *strings.Builder, d pipeline.Diagnostics) {
	sb.WriteString("## " + HeadingDiagnostics + "\n\n")
	sb.WriteString(fmt.Sprintf("- Format: %s\n", d.DataFormatDetected))
	sb.WriteString(fmt.Sprintf("- Data quality score: %.0f\n", d.DataQualityScore))
	if d.HistorySource != "" {
		sb.WriteString("- History source: " + d.HistorySource + "\n")
	}
	if d.FallbackUsed {
		sb.WriteString("- Ratios derived by direct extraction\n")
	}
	if len(d.MissingFields) > 0 {
		sb.WriteString("- Missing fields: " + strings.Join(d.MissingFields, ", ") + "\n")
	}
	if len(d.UnmappedFields) > 0 {
		keys := make([]string, 0, len(d.UnmappedFields))
		for _, u := range d.UnmappedFields {
			keys = append(keys, u.Key)
		}
		sb.WriteString("- Unmapped fields: " + strings.Join(keys, ", ") + "\n")
	}
	if len(d.RejectedValues) > 0 {
		sb.WriteString(fmt.Sprintf("- Rejected values: %d\n", len(d.RejectedValues)))
	}
	if len(d.FlaggedYears) > 0 {
		sb.WriteString("- Flagged years: " + strings.Join(d.FlaggedYears, ", ") + "\n")
	}
}

// writeTable writes a GFM pipe table.
func writeTable(sb *strings.Builder, header []string, rows [][]string) {
	sb.WriteString("|")
	for _, h := range header {
		sb.WriteString(" " + h + " |")
	}
	sb.WriteString("\n|")
	for range header {
		sb.WriteString(" --- |")
	}
	sb.WriteString("\n")
	for _, row := range rows {
		sb.WriteString("|")
		for _, cell := range row {
			sb.WriteString(" " + strings.ReplaceAll(cell, "|", "\\|") + " |")
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
