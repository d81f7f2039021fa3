package analysis

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finsight/pkg/api/metrics"
	"finsight/pkg/core/pipeline"
)

func newServer(t *testing.T) *http.ServeMux {
	t.Helper()
	engine, err := pipeline.New(pipeline.DefaultOptions())
	require.NoError(t, err)

	mux := http.NewServeMux()
	NewHandler(engine, metrics.New(engine.CacheStats)).Register(mux)
	return mux
}

func do(t *testing.T, mux *http.ServeMux, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	return doc
}

func TestHandleAnalyze(t *testing.T) {
	mux := newServer(t)

	rec := do(t, mux, http.MethodPost, "/api/analyze", `{"payload": {"营业收入": 573.88, "净利润": 11.04}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	doc := decodeBody(t, rec)
	ratios := doc["ratios"].(map[string]interface{})
	assert.InDelta(t, 1.92, ratios["profitability"].(map[string]interface{})["net_profit_margin"], 1e-9)
	assert.Contains(t, doc, "quality")
	assert.NotContains(t, doc, "error")
}

func TestHandleAnalyze_StringPayload(t *testing.T) {
	rec := do(t, newServer(t), http.MethodPost, "/api/analyze", `{"payload": "{\"revenue\": 100, \"net_profit\": 5}", "years": 3}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "json", decodeBody(t, rec)["diagnostics"].(map[string]interface{})["parse_strategy"])
}

func TestHandleAnalyze_ParseFailure(t *testing.T) {
	rec := do(t, newServer(t), http.MethodPost, "/api/analyze", `{"payload": "<<<not a financial payload>>>"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	doc := decodeBody(t, rec)
	assert.Contains(t, doc, "error")
	assert.NotContains(t, doc, "ratios")
}

func TestHandleAnalyze_BadRequests(t *testing.T) {
	mux := newServer(t)
	tests := []struct {
		name, method, body string
		code               int
	}{
		{"wrong method", http.MethodGet, "", http.StatusMethodNotAllowed},
		{"preflight", http.MethodOptions, "", http.StatusOK},
		{"not json", http.MethodPost, "nope", http.StatusBadRequest},
		{"missing payload", http.MethodPost, `{"years": 3}`, http.StatusBadRequest},
		{"horizon", http.MethodPost, `{"payload": {}, "years": 99}`, http.StatusBadRequest},
		{"period", http.MethodPost, `{"payload": {}, "period": "2024"}`, http.StatusBadRequest},
		{"report date", http.MethodPost, `{"payload": {}, "report_date": "31/12/2024"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, do(t, mux, tt.method, "/api/analyze", tt.body).Code)
		})
	}
}

func TestHandleQuality(t *testing.T) {
	rec := do(t, newServer(t), http.MethodPost, "/api/quality",
		`{"payload": {"利润表": {"营业收入": 100, "净利润": 10}}, "report_date": "2024-12-31", "period": "202412"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	doc := decodeBody(t, rec)
	assert.Contains(t, doc, "overall_score")
	assert.Contains(t, doc, "dimension_scores")
	assert.Contains(t, doc, "issues")
}

func TestHandleCompare(t *testing.T) {
	rec := do(t, newServer(t), http.MethodPost, "/api/compare", `{"companies": {
		"a": {"营业收入": 100, "净利润": 20},
		"b": {"营业收入": 100, "净利润": 1}
	}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	ranking := decodeBody(t, rec)["ranking"].([]interface{})
	require.Len(t, ranking, 2)
	assert.Equal(t, "a", ranking[0].(map[string]interface{})["company"])

	assert.Equal(t, http.StatusBadRequest, do(t, newServer(t), http.MethodPost, "/api/compare", `{"companies": {}}`).Code)
}

func TestHandleReport(t *testing.T) {
	mux := newServer(t)
	body := `{"payload": {"营业收入": 573.88, "净利润": 11.04}, "title": "ACME"}`

	md := do(t, mux, http.MethodPost, "/api/report", body)
	require.Equal(t, http.StatusOK, md.Code)
	assert.True(t, strings.HasPrefix(md.Body.String(), "# ACME"))
	assert.Contains(t, md.Header().Get("Content-Type"), "text/markdown")

	html := do(t, mux, http.MethodPost, "/api/report?format=html", body)
	require.Equal(t, http.StatusOK, html.Code)
	assert.Contains(t, html.Body.String(), "<h1>ACME</h1>")
	assert.Contains(t, html.Header().Get("Content-Type"), "text/html")
}

func TestHandleIngestHTML(t *testing.T) {
	mux := newServer(t)
	doc := `<table><tr><th>项目</th><th>2024</th><th>2023</th></tr>` +
		`<tr><td>营业收入</td><td>1,511.39</td><td>1,420.56</td></tr>` +
		`<tr><td>净利润</td><td>36.11</td><td>32.45</td></tr></table>`
	body, err := json.Marshal(map[string]interface{}{"html": doc})
	require.NoError(t, err)

	rec := do(t, mux, http.MethodPost, "/api/ingest/html", string(body))
	require.Equal(t, http.StatusOK, rec.Code)
	trends := decodeBody(t, rec)["trends"].(map[string]interface{})
	assert.Equal(t, "increasing", trends["revenue"].(map[string]interface{})["trend"])

	rec = do(t, mux, http.MethodPost, "/api/ingest/html", `{"html": "<p>none</p>"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHandleHealthAndMetrics(t *testing.T) {
	mux := newServer(t)
	do(t, mux, http.MethodPost, "/api/analyze", `{"payload": {"revenue": 1, "net_profit": 1}}`)
	do(t, mux, http.MethodPost, "/api/analyze", `{"payload": {"revenue": 1, "net_profit": 1}}`)

	rec := do(t, mux, http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	health := decodeBody(t, rec)
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, 1.0, health["cache"].(map[string]interface{})["hits"])

	rec = do(t, mux, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `finsight_http_requests_total{code="200",endpoint="/api/analyze"} 2`)
	assert.Contains(t, rec.Body.String(), "finsight_cache_hits_total 1")
}
