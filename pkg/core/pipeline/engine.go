// Package pipeline wires detection, normalization, ratio, trend and quality
// analysis into a single request-scoped call.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phuslu/log"

	"finsight/pkg/core/alias"
	"finsight/pkg/core/cache"
	"finsight/pkg/core/calc"
	"finsight/pkg/core/clean"
	"finsight/pkg/core/detect"
	"finsight/pkg/core/normalize"
	"finsight/pkg/core/quality"
	"finsight/pkg/core/trend"
	"finsight/pkg/core/utils"
	"finsight/pkg/models"
)

// DefaultYears is the default trend horizon.
const DefaultYears = trend.DefaultHorizon

// Options configures an Engine.
type Options struct {
	// DefaultYears is the trend horizon used when a request does not set one.
	DefaultYears int
	// CacheSize bounds the result memo. Zero disables caching. Entries are
	// keyed by the assessment day, so a hit carries the quality report
	// (timeliness and AssessedAt included) computed earlier that same day.
	CacheSize int
	Cleaner   clean.Options
	Quality   quality.Options
	// Now is the clock used for year validation and timeliness.
	Now func() time.Time
}

// DefaultOptions returns a 4-year horizon and a 100-entry cache.
func DefaultOptions() Options {
	return Options{
		DefaultYears: DefaultYears,
		CacheSize:    cache.DefaultSize,
		Cleaner:      clean.DefaultOptions(),
		Quality:      quality.DefaultOptions(),
		Now:          time.Now,
	}
}

// Request is one analysis call.
type Request struct {
	// Payload is raw text (JSON, YAML, loose JSON or prose) or an already
	// decoded tree.
	Payload interface{}
	// Years is the trend horizon; zero selects the engine default.
	Years      int
	ReportDate time.Time
	// Period is a YYYYMM reporting period.
	Period string
}

// =============================================================================
// RESULT
// =============================================================================

// Diagnostics summarises how the payload was understood.
type Diagnostics struct {
	DataFormatDetected  models.FormatTag          `json:"data_format_detected"`
	DataQualityScore    float64                   `json:"data_quality_score"`
	MissingFields       []string                  `json:"missing_fields"`
	CalculationWarnings []string                  `json:"calculation_warnings"`
	UnmappedFields      []normalize.UnmappedField `json:"unmapped_fields"`
	RejectedValues      []clean.Rejection         `json:"rejected_values"`
	FlaggedYears        []string                  `json:"flagged_years"`
	Summary             string                    `json:"summary"`
	FallbackUsed        bool                      `json:"fallback_used"`
	HistorySource       string                    `json:"history_source,omitempty"`
	ParseStrategy       string                    `json:"parse_strategy,omitempty"`
}

// Result is the combined analysis of one payload. Results served from the
// cache share maps with the cached entry and must not be mutated.
type Result struct {
	RequestID   string
	Ratios      models.RatioResult
	Trends      map[string]models.TrendResult
	Quality     models.QualityReport
	Diagnostics Diagnostics
	Health      *models.HealthAssessment
	// Error is set on parse failure or when nothing usable was found.
	Error string
	// Cached marks a result served from the memo.
	Cached bool

	parseFailed bool
	err         error
}

// Err returns the failure behind Error, comparable with errors.Is.
func (r *Result) Err() error {
	return r.err
}

// ParseFailed reports whether the payload could not be decoded at all.
func (r *Result) ParseFailed() bool {
	return r.parseFailed
}

// MarshalJSON renders ratios, trends, quality and diagnostics. A parse failure
// renders only error and diagnostics.
func (r Result) MarshalJSON() ([]byte, error) {
	doc := map[string]interface{}{
		"request_id":  r.RequestID,
		"diagnostics": r.Diagnostics,
	}
	if r.Error != "" {
		doc["error"] = r.Error
	}
	if !r.parseFailed {
		doc["ratios"] = r.Ratios
		doc["trends"] = r.Trends
		doc["quality"] = r.Quality
		if r.Health != nil {
			doc["health"] = r.Health
		}
	}
	return json.Marshal(doc)
}

// =============================================================================
// ENGINE
// =============================================================================

// Engine runs analyses. It is safe for concurrent use.
type Engine struct {
	opts       Options
	normalizer *normalize.Normalizer
	monitor    *quality.Monitor
	memo       *cache.Memo[*Result]
}

// New creates an engine.
func New(opts Options) (*Engine, error) {
	def := DefaultOptions()
	if opts.DefaultYears <= 0 {
		opts.DefaultYears = def.DefaultYears
	}
	if opts.Now == nil {
		opts.Now = def.Now
	}

	e := &Engine{
		opts:       opts,
		normalizer: normalize.New(alias.Default(), clean.New(opts.Cleaner)).WithClock(opts.Now),
		monitor:    quality.New(opts.Quality),
	}
	if opts.CacheSize > 0 {
		memo, err := cache.New[*Result](opts.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("failed to create result cache: %w", err)
		}
		e.memo = memo
	}
	return e, nil
}

// CacheStats reports memo usage. A disabled cache reports zeros.
func (e *Engine) CacheStats() cache.Stats {
	return e.memo.Stats()
}

// Analyze runs the full pipeline on req. The error is non-nil only when ctx
// is already done; every data problem is reported inside the Result.
func (e *Engine) Analyze(ctx context.Context, req Request) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	years := req.Years
	if years <= 0 {
		years = e.opts.DefaultYears
	}

	raw, strategy, err := decode(req.Payload)
	if err != nil {
		log.Debug().Err(err).Msg("payload parse failed")
		return parseFailure(err), nil
	}

	key := ""
	if e.memo != nil {
		key, err = cache.Key(raw, strconv.Itoa(years), dateKey(req.ReportDate), req.Period, dateKey(e.opts.Now().UTC()))
		if err == nil {
			if hit, ok := e.memo.Get(key); ok {
				res := *hit
				res.RequestID = uuid.NewString()
				res.Cached = true
				log.Debug().Str("key", key).Msg("analysis served from cache")
				return &res, nil
			}
		} else {
			key = ""
		}
	}

	res := e.run(raw, strategy, years, req)
	if key != "" {
		e.memo.Put(key, res)
	}
	return res, nil
}

func (e *Engine) run(raw interface{}, strategy string, years int, req Request) *Result {
	start := time.Now()

	det := detect.Detect(raw)
	out := e.normalizer.Normalize(raw, det)
	log.Debug().
		Str("format", string(det.Format)).
		Int("fields", out.Statement.FieldCount()).
		Int("history_years", len(out.History)).
		Msg("payload normalized")

	ratios, err := calc.Compute(out.Statement, raw)
	calc.MergeReported(&ratios, out.ReportedRatios)
	if errors.Is(err, calc.ErrNoUsableData) && ratios.Count() > 0 {
		err = nil
	}

	trends := trend.Analyze(out.History, out.Statement, years)

	report := e.monitor.Assess(quality.Input{
		Raw:           raw,
		Statement:     out.Statement,
		History:       out.History,
		Detection:     det,
		Diagnostics:   out.Diagnostics,
		RatioWarnings: ratios.Warnings,
	}, quality.Context{ReportDate: req.ReportDate, Period: req.Period, Now: e.opts.Now()})

	res := &Result{
		RequestID: uuid.NewString(),
		Ratios:    ratios,
		Trends:    trends,
		Quality:   report,
	}
	if ratios.Count() > 0 {
		h := calc.AssessHealth(ratios)
		res.Health = &h
	}
	if err != nil && hasContent(raw) {
		res.err = err
		res.Error = err.Error()
	}
	res.Diagnostics = buildDiagnostics(det, out, ratios, strategy)

	log.Debug().
		Int("ratios", ratios.Count()).
		Float64("quality", report.OverallScore).
		Dur("elapsed", time.Since(start)).
		Msg("analysis complete")
	return res
}

// Analyze runs a default engine without a cache.
func Analyze(ctx context.Context, payload interface{}, years int) (*Result, error) {
	opts := DefaultOptions()
	opts.CacheSize = 0
	e, err := New(opts)
	if err != nil {
		return nil, err
	}
	return e.Analyze(ctx, Request{Payload: payload, Years: years})
}

func parseFailure(err error) *Result {
	return &Result{
		RequestID: uuid.NewString(),
		Error:     err.Error(),
		Diagnostics: Diagnostics{
			DataFormatDetected:  models.FormatUnknown,
			MissingFields:       []string{},
			CalculationWarnings: []string{},
			UnmappedFields:      []normalize.UnmappedField{},
			RejectedValues:      []clean.Rejection{},
			FlaggedYears:        []string{},
			Summary:             "payload could not be parsed",
		},
		parseFailed: true,
		err:         err,
	}
}

func dateKey(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

// =============================================================================
// DECODING
// =============================================================================

// decode turns a request payload into a tree. Prose is mined for labelled
// figures before lenient JSON decoding gets a chance to misread it.
func decode(payload interface{}) (interface{}, string, error) {
	switch v := payload.(type) {
	case string:
		return decodeText(v)
	case []byte:
		return decodeText(string(v))
	case json.RawMessage:
		return decodeText(string(v))
	case nil, map[string]interface{}, []interface{}:
		return v, "structured", nil
	}

	// typed Go values are re-read as a generic tree
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", utils.ErrParseFailed, err)
	}
	var tree interface{}
	if err := json.Unmarshal(b, &tree); err != nil {
		return nil, "", fmt.Errorf("%w: %v", utils.ErrParseFailed, err)
	}
	return tree, "structured", nil
}

func decodeText(text string) (interface{}, string, error) {
	pr, err := utils.ParsePayload(text)
	if err == nil && !pr.Lenient {
		return pr.Value, pr.Strategy, nil
	}
	if !looksStructured(text) {
		if m := normalize.ExtractTextMetrics(text); len(m) > 0 {
			return m, "text", nil
		}
	}
	if err != nil {
		return nil, "", err
	}
	return pr.Value, pr.Strategy, nil
}

func looksStructured(text string) bool {
	t := strings.TrimSpace(text)
	for _, p := range []string{"{", "[", "```", "---"} {
		if strings.HasPrefix(t, p) {
			return true
		}
	}
	return false
}

// hasContent reports whether raw carries at least one scalar.
func hasContent(raw interface{}) bool {
	switch t := raw.(type) {
	case nil:
		return false
	case map[string]interface{}:
		for _, v := range t {
			if hasContent(v) {
				return true
			}
		}
		return false
	case []interface{}:
		for _, v := range t {
			if hasContent(v) {
				return true
			}
		}
		return false
	case string:
		return strings.TrimSpace(t) != ""
	}
	return true
}

// =============================================================================
// DIAGNOSTICS
// =============================================================================

func buildDiagnostics(det detect.Detection, out normalize.Output, ratios models.RatioResult, strategy string) Diagnostics {
	d := Diagnostics{
		DataFormatDetected:  det.Format,
		MissingFields:       quality.MissingFields(out.Statement),
		CalculationWarnings: ratios.Warnings,
		UnmappedFields:      out.Diagnostics.Unmapped,
		RejectedValues:      out.Diagnostics.Rejected,
		FlaggedYears:        out.Diagnostics.FlaggedYears,
		FallbackUsed:        ratios.FallbackUsed,
		HistorySource:       out.Diagnostics.HistorySource,
		ParseStrategy:       strategy,
	}
	if d.CalculationWarnings == nil {
		d.CalculationWarnings = []string{}
	}
	if d.UnmappedFields == nil {
		d.UnmappedFields = []normalize.UnmappedField{}
	}
	if d.RejectedValues == nil {
		d.RejectedValues = []clean.Rejection{}
	}
	if d.FlaggedYears == nil {
		d.FlaggedYears = []string{}
	}

	d.DataQualityScore = DataQualityScore(
		len(d.UnmappedFields)+len(d.RejectedValues),
		len(d.CalculationWarnings),
		len(d.MissingFields),
	)
	d.Summary = fmt.Sprintf("format %s; %d fields normalized, %d history years; %d ratios computed; %d warnings, %d unmapped, %d rejected, %d missing",
		det.Format, out.Statement.FieldCount(), len(out.History), ratios.Count(),
		len(d.CalculationWarnings), len(d.UnmappedFields), len(d.RejectedValues), len(d.MissingFields))
	return d
}

// DataQualityScore is max(0, 100 - 20*issues - 10*warnings - 5*missing).
func DataQualityScore(issues, warnings, missing int) float64 {
	return math.Max(0, 100-20*float64(issues)-10*float64(warnings)-5*float64(missing))
}
