// Package analysis serves the financial analysis engine over HTTP.
package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/phuslu/log"

	"finsight/pkg/api/metrics"
	"finsight/pkg/core/ingest"
	"finsight/pkg/core/pipeline"
	"finsight/pkg/core/report"
)

// MaxBodyBytes bounds request bodies.
const MaxBodyBytes = 8 << 20

// AnalyzeRequest is the body of the analysis endpoints.
type AnalyzeRequest struct {
	// Payload is a JSON object or a string holding JSON, YAML or prose.
	Payload    interface{} `json:"payload" validate:"required"`
	Years      int         `json:"years" validate:"min=0,max=20"`
	ReportDate string      `json:"report_date" validate:"omitempty,datetime=2006-01-02"`
	Period     string      `json:"period" validate:"omitempty,len=6,numeric"`
	Title      string      `json:"title"`
}

// CompareRequest is the body of /api/compare.
type CompareRequest struct {
	Companies map[string]interface{} `json:"companies" validate:"required,min=1"`
	Years     int                    `json:"years" validate:"min=0,max=20"`
}

// IngestRequest is the body of /api/ingest/html.
type IngestRequest struct {
	HTML       string `json:"html" validate:"required"`
	Years      int    `json:"years" validate:"min=0,max=20"`
	ReportDate string `json:"report_date" validate:"omitempty,datetime=2006-01-02"`
	Period     string `json:"period" validate:"omitempty,len=6,numeric"`
}

// Handler holds dependencies for analysis endpoints
type Handler struct {
	Engine   *pipeline.Engine
	Metrics  *metrics.Metrics
	validate *validator.Validate
}

// NewHandler creates a new analysis handler. m may be nil.
func NewHandler(engine *pipeline.Engine, m *metrics.Metrics) *Handler {
	return &Handler{Engine: engine, Metrics: m, validate: validator.New()}
}

// Register mounts every endpoint on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/analyze", h.Metrics.Wrap("/api/analyze", h.HandleAnalyze))
	mux.HandleFunc("/api/quality", h.Metrics.Wrap("/api/quality", h.HandleQuality))
	mux.HandleFunc("/api/compare", h.Metrics.Wrap("/api/compare", h.HandleCompare))
	mux.HandleFunc("/api/report", h.Metrics.Wrap("/api/report", h.HandleReport))
	mux.HandleFunc("/api/ingest/html", h.Metrics.Wrap("/api/ingest/html", h.HandleIngestHTML))
	mux.HandleFunc("/api/health", h.HandleHealth)
	if h.Metrics != nil {
		mux.Handle("/metrics", h.Metrics.Handler())
	}
}

// HandleAnalyze runs the full analysis. A parse failure answers 422 with
// the error document.
func (h *Handler) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	if !preflight(w, r) {
		return
	}
	res, ok := h.analyze(w, r)
	if !ok {
		return
	}
	status := http.StatusOK
	if res.ParseFailed() {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, res)
}

// HandleQuality returns only the quality report.
func (h *Handler) HandleQuality(w http.ResponseWriter, r *http.Request) {
	if !preflight(w, r) {
		return
	}
	res, ok := h.analyze(w, r)
	if !ok {
		return
	}
	if res.ParseFailed() {
		writeJSON(w, http.StatusUnprocessableEntity, res)
		return
	}
	writeJSON(w, http.StatusOK, res.Quality)
}

// HandleReport renders the analysis as Markdown, or HTML with ?format=html.
func (h *Handler) HandleReport(w http.ResponseWriter, r *http.Request) {
	if !preflight(w, r) {
		return
	}
	var req AnalyzeRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, ok := h.run(w, r, req.Payload, req.Years, req.ReportDate, req.Period)
	if !ok {
		return
	}

	if r.URL.Query().Get("format") == "html" {
		html, err := report.RenderHTML(res, req.Title)
		if err != nil {
			log.Error().Err(err).Msg("report render failed")
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		io.WriteString(w, html)
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	io.WriteString(w, report.Markdown(res, req.Title))
}

// HandleCompare analyzes several companies and ranks them.
func (h *Handler) HandleCompare(w http.ResponseWriter, r *http.Request) {
	if !preflight(w, r) {
		return
	}
	var req CompareRequest
	if !h.decode(w, r, &req) {
		return
	}
	cmp, err := h.Engine.Compare(r.Context(), req.Companies, req.Years)
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	for _, res := range cmp.Results {
		h.Metrics.ObserveResult(res)
	}
	writeJSON(w, http.StatusOK, cmp)
}

// HandleIngestHTML extracts financial tables from HTML and analyzes them.
func (h *Handler) HandleIngestHTML(w http.ResponseWriter, r *http.Request) {
	if !preflight(w, r) {
		return
	}
	var req IngestRequest
	if !h.decode(w, r, &req) {
		return
	}
	payload, err := ingest.ParseHTMLTables(req.HTML)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ingest.ErrNoTables) {
			status = http.StatusUnprocessableEntity
		}
		http.Error(w, err.Error(), status)
		return
	}
	res, ok := h.run(w, r, payload, req.Years, req.ReportDate, req.Period)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleHealth reports liveness and cache usage.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"cache":  h.Engine.CacheStats(),
	})
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) analyze(w http.ResponseWriter, r *http.Request) (*pipeline.Result, bool) {
	var req AnalyzeRequest
	if !h.decode(w, r, &req) {
		return nil, false
	}
	return h.run(w, r, req.Payload, req.Years, req.ReportDate, req.Period)
}

func (h *Handler) run(w http.ResponseWriter, r *http.Request, payload interface{}, years int, reportDate, period string) (*pipeline.Result, bool) {
	var date time.Time
	if reportDate != "" {
		// format already checked by the validator
		date, _ = time.Parse("2006-01-02", reportDate)
	}

	res, err := h.Engine.Analyze(r.Context(), pipeline.Request{
		Payload:    payload,
		Years:      years,
		ReportDate: date,
		Period:     period,
	})
	if err != nil {
		log.Error().Err(err).Str("path", r.URL.Path).Msg("analysis aborted")
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return nil, false
	}
	h.Metrics.ObserveResult(res)

	log.Info().
		Str("request_id", res.RequestID).
		Str("format", string(res.Diagnostics.DataFormatDetected)).
		Float64("quality", res.Quality.OverallScore).
		Bool("cached", res.Cached).
		Str("error", res.Error).
		Msg("analysis served")
	return res, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request: %v", err), http.StatusBadRequest)
		return false
	}
	return true
}

// preflight sets CORS headers and rejects anything but POST.
func preflight(w http.ResponseWriter, r *http.Request) bool {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return false
	}
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
