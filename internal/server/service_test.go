package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/budgetopt/budgetopt/internal/artifact"
	"github.com/budgetopt/budgetopt/internal/model"
	"github.com/budgetopt/budgetopt/internal/rules"
)

// writeModel stores a linear artifact whose outputs are fixed fractions of
// income; savings gets savingsShare.
func writeModel(t *testing.T, dir string, area model.AreaType, savingsShare float64) {
	t.Helper()
	shares := []float64{0.3, 0.1, 0.2, 0.1, 0.1, savingsShare}
	coef := make([][]float64, model.NumCategories)
	for i := range coef {
		coef[i] = make([]float64, model.NumFeatures)
		coef[i][0] = shares[i]
	}
	doc := &artifact.Document{
		Kind:         artifact.KindLinear,
		FeatureNames: model.FeatureNames(),
		Coefficients: coef,
		Intercept:    make([]float64, model.NumCategories),
	}
	var buf bytes.Buffer
	require.NoError(t, artifact.Encode(&buf, doc, artifact.FormatJSON))
	path := filepath.Join(dir, artifact.ArtifactName(area, artifact.FormatJSON))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
}

func newTestService(t *testing.T, dir string) *Service {
	t.Helper()
	alloc, err := rules.New(rules.DefaultTables())
	require.NoError(t, err)
	svc, err := New(Config{
		Log:       zerolog.Nop(),
		Loader:    artifact.NewLoader(artifact.NewFileSource(dir)),
		Allocator: alloc,
	})
	require.NoError(t, err)
	return svc
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var e ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e))
	return e
}

func TestNew_RequiresDependencies(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)

	_, err = New(Config{Loader: artifact.NewLoader(artifact.NewFileSource(t.TempDir()))})
	assert.Error(t, err)
}

func TestPredict(t *testing.T) {
	dir := t.TempDir()
	writeModel(t, dir, model.Rural, 0.2)
	h := newTestService(t, dir).Handler()

	rec := do(t, h, http.MethodPost, "/v1/predict", `{"area":"rural","profile":{"income":10000,"housing_expense":2000}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res struct {
		Area        string `json:"area"`
		Source      string `json:"source"`
		Allocations []struct {
			Category string  `json:"category"`
			Amount   float64 `json:"amount"`
		} `json:"allocations"`
		Warning bool `json:"negative_savings_warning"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))

	assert.Equal(t, "Rural", res.Area)
	assert.Equal(t, "model", res.Source)
	assert.False(t, res.Warning)
	require.Len(t, res.Allocations, model.NumCategories)
	for i, name := range model.CategoryNames() {
		assert.Equal(t, name, res.Allocations[i].Category)
	}
	assert.InDelta(t, 3000, res.Allocations[0].Amount, 1e-6)
}

func TestPredict_NegativeSavings(t *testing.T) {
	dir := t.TempDir()
	writeModel(t, dir, model.Urban, -0.05)
	h := newTestService(t, dir).Handler()

	rec := do(t, h, http.MethodPost, "/v1/predict", `{"area":"Urban","profile":{"income":1000}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"negative_savings_warning":true`)
}

func TestPredict_Errors(t *testing.T) {
	dir := t.TempDir()
	writeModel(t, dir, model.Rural, 0.2)
	h := newTestService(t, dir).Handler()

	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"missing model", `{"area":"urban","profile":{"income":1}}`, http.StatusNotFound, CodeArtifactNotFound},
		{"negative field", `{"area":"rural","profile":{"income":-5}}`, http.StatusBadRequest, CodeInvalidProfile},
		{"no profile", `{"area":"rural"}`, http.StatusBadRequest, CodeInvalidRequest},
		{"bad area", `{"area":"suburban","profile":{"income":1}}`, http.StatusBadRequest, CodeInvalidRequest},
		{"unknown field", `{"area":"rural","profile":{"income":1},"x":1}`, http.StatusBadRequest, CodeInvalidRequest},
		{"not json", `nope`, http.StatusBadRequest, CodeInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/v1/predict", tt.body)
			assert.Equal(t, tt.status, rec.Code)
			e := decodeError(t, rec)
			assert.Equal(t, tt.code, e.Code)
			assert.NotEmpty(t, e.Error)
			assert.Equal(t, rec.Header().Get(RequestIDHeader), e.RequestID)
		})
	}
}

func TestPredict_BrokenArtifact(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rural_model.json"), []byte(`{"kind":"linear"}`), 0o600))
	h := newTestService(t, dir).Handler()

	rec := do(t, h, http.MethodPost, "/v1/predict", `{"area":"rural","profile":{"income":1}}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, CodePredictionFailed, decodeError(t, rec).Code)
}

func TestAllocate(t *testing.T) {
	h := newTestService(t, t.TempDir()).Handler()

	rec := do(t, h, http.MethodPost, "/v1/allocate", `{"area":"urban","income":10000}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res model.AllocationResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, model.Urban, res.Area)
	assert.Equal(t, model.SourceRules, res.Source)
	want := []float64{3500, 1500, 1500, 500, 1000, 2000}
	require.Len(t, res.Items, len(want))
	for i, w := range want {
		assert.InDelta(t, w, res.Items[i].Amount, 1e-9)
	}

	rec = do(t, h, http.MethodPost, "/v1/allocate", `{"area":"urban","income":0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, CodeInvalidIncome, decodeError(t, rec).Code)
}

func TestCategoriesAndModels(t *testing.T) {
	dir := t.TempDir()
	writeModel(t, dir, model.Rural, 0.2)
	h := newTestService(t, dir).Handler()

	rec := do(t, h, http.MethodGet, "/v1/categories", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var cats CategoriesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cats))
	assert.Equal(t, model.CategoryNames(), cats.Categories)
	assert.Equal(t, 0.4, cats.Tables["rural"]["savings"])

	rec = do(t, h, http.MethodGet, "/v1/models", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var models ModelsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &models))
	require.Len(t, models.Models, 1)
	assert.Equal(t, "rural_model.json", models.Models[0].Name)
	assert.True(t, models.Models[0].Active)
	assert.Equal(t, []string{"urban"}, models.Missing)
}

func TestHealthAndReload(t *testing.T) {
	dir := t.TempDir()
	writeModel(t, dir, model.Rural, 0.2)
	svc := newTestService(t, dir)
	h := svc.Handler()

	assert.Equal(t, "unknown", svc.Status().Models["rural"])

	svc.Reload(context.Background())
	st := svc.Status()
	assert.Equal(t, int64(1), st.ReloadCount)
	assert.Equal(t, "ok", st.Models["rural"])
	assert.Contains(t, st.Models["urban"], "not found")

	rec := do(t, h, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"degraded"`)

	writeModel(t, dir, model.Urban, 0.2)
	svc.Reload(context.Background())
	rec = do(t, h, http.MethodGet, "/healthz", "")
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestRequestID(t *testing.T) {
	h := newTestService(t, t.TempDir()).Handler()

	rec := do(t, h, http.MethodGet, "/v1/categories", "")
	_, err := uuid.Parse(rec.Header().Get(RequestIDHeader))
	assert.NoError(t, err)

	id := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/v1/categories", nil)
	req.Header.Set(RequestIDHeader, id)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, id, rec.Header().Get(RequestIDHeader))
}

func TestMetricsEndpoint(t *testing.T) {
	dir := t.TempDir()
	writeModel(t, dir, model.Rural, -0.1)
	h := newTestService(t, dir).Handler()

	do(t, h, http.MethodPost, "/v1/predict", `{"area":"rural","profile":{"income":100}}`)
	do(t, h, http.MethodPost, "/v1/allocate", `{"area":"rural","income":100}`)

	rec := do(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `budgetopt_allocations_total{area="rural",source="model"} 1`)
	assert.Contains(t, body, `budgetopt_allocations_total{area="rural",source="rules"} 1`)
	assert.Contains(t, body, "budgetopt_negative_savings_total 1")
	assert.Contains(t, body, `route="/v1/predict"`)
}
