package api

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/fieldwork-data/vignette.report/internal/config"
	"github.com/fieldwork-data/vignette.report/internal/db"
	"github.com/fieldwork-data/vignette.report/internal/model"
	"github.com/fieldwork-data/vignette.report/internal/units"
)

func strPtr(s string) *string { return &s }

func testConfig() *config.AnalysisConfig {
	return &config.AnalysisConfig{
		RatingScale: strPtr(units.Scale10),
		Currency:    strPtr(units.USD),
		Attributes: []config.Attribute{
			{Name: "wage", Type: config.AttributeNumeric},
			{Name: "contract", Type: config.AttributeCategorical, Levels: []string{"temporary", "permanent"}},
		},
		PriceAttribute: strPtr("wage"),
	}
}

func setupTestServer(t *testing.T) (*Server, *db.DB) {
	t.Helper()
	database, err := db.NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return NewServer(database, testConfig(), ""), database
}

func storeTestRun(t *testing.T, database *db.DB) *db.AnalysisRun {
	t.Helper()
	fit := &model.Fit{
		Spec: model.Spec{
			PriceAttribute: "wage",
			RatingScale:    units.Scale10,
			Currency:       units.USD,
		},
		Names:   []string{"icept", "wage", "contract_permanent"},
		Params:  []float64{-1.2, 0.08, 0.4},
		StdErr:  []float64{0.3, 0.01, 0.09},
		ZScores: []float64{-4.0, 8.0, 4.4},
		LogLike: -412.7,
		NumObs:  640,
	}
	effects := []model.Effect{
		{Name: "wage", AME: 0.02, Native: 0.2},
		{Name: "contract_permanent", AME: 0.1, Native: 1.0},
	}
	mwtp := []model.MWTP{
		{Name: "contract_permanent", Value: 5.0, Formatted: "$5.00"},
	}
	run := db.NewAnalysisRun(nil, fit, effects, mwtp)
	if err := database.CreateAnalysisRun(run); err != nil {
		t.Fatalf("Failed to create test run: %v", err)
	}
	return run
}

func TestListRuns(t *testing.T) {
	server, database := setupTestServer(t)
	storeTestRun(t, database)
	storeTestRun(t, database)

	req := httptest.NewRequest(http.MethodGet, "/api/runs", nil)
	w := httptest.NewRecorder()
	server.listRuns(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	var runs []db.AnalysisRun
	if err := json.NewDecoder(w.Body).Decode(&runs); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(runs) != 2 {
		t.Errorf("Expected 2 runs, got %d", len(runs))
	}
}

func TestListRuns_Empty(t *testing.T) {
	server, _ := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/runs", nil)
	w := httptest.NewRecorder()
	server.listRuns(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if body := w.Body.String(); body != "[]\n" {
		t.Errorf("Expected empty JSON array, got %q", body)
	}
}

func TestListRuns_InvalidLimit(t *testing.T) {
	server, _ := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/runs?limit=zero", nil)
	w := httptest.NewRecorder()
	server.listRuns(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestShowRun(t *testing.T) {
	server, database := setupTestServer(t)
	run := storeTestRun(t, database)

	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/runs/%s", run.RunID), nil)
	w := httptest.NewRecorder()
	server.showRun(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	var got db.AnalysisRun
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if got.RunID != run.RunID {
		t.Errorf("run_id = %q, want %q", got.RunID, run.RunID)
	}
	if got.Spec.PriceAttribute != "wage" {
		t.Errorf("price attribute = %q, want wage", got.Spec.PriceAttribute)
	}
}

func TestShowRun_NotFound(t *testing.T) {
	server, _ := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/runs/no-such-run", nil)
	w := httptest.NewRecorder()
	server.showRun(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestShowEffects(t *testing.T) {
	server, database := setupTestServer(t)
	storeTestRun(t, database)

	req := httptest.NewRequest(http.MethodGet, "/api/effects", nil)
	w := httptest.NewRecorder()
	server.showEffects(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	var resp struct {
		RunID   string         `json:"run_id"`
		Scale   string         `json:"scale"`
		Effects []model.Effect `json:"effects"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Scale != units.Scale10 {
		t.Errorf("scale = %q, want scale10", resp.Scale)
	}
	if len(resp.Effects) != 2 {
		t.Fatalf("Expected 2 effects, got %d", len(resp.Effects))
	}
	// Native values on scale10 are the unit AME times 10.
	if math.Abs(resp.Effects[0].Native-0.2) > 1e-9 {
		t.Errorf("wage native effect = %f, want 0.2", resp.Effects[0].Native)
	}
}

func TestShowEffects_ScaleOverride(t *testing.T) {
	server, database := setupTestServer(t)
	storeTestRun(t, database)

	req := httptest.NewRequest(http.MethodGet, "/api/effects?scale=scale100", nil)
	w := httptest.NewRecorder()
	server.showEffects(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	var resp struct {
		Scale   string         `json:"scale"`
		Effects []model.Effect `json:"effects"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Scale != units.Scale100 {
		t.Errorf("scale = %q, want scale100", resp.Scale)
	}
	if math.Abs(resp.Effects[0].Native-2.0) > 1e-9 {
		t.Errorf("wage native effect on scale100 = %f, want 2.0", resp.Effects[0].Native)
	}
}

func TestShowEffects_InvalidScale(t *testing.T) {
	server, _ := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/effects?scale=fahrenheit", nil)
	w := httptest.NewRecorder()
	server.showEffects(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestShowEffects_NoRuns(t *testing.T) {
	server, _ := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/effects", nil)
	w := httptest.NewRecorder()
	server.showEffects(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestShowMWTP(t *testing.T) {
	server, database := setupTestServer(t)
	storeTestRun(t, database)

	req := httptest.NewRequest(http.MethodGet, "/api/mwtp", nil)
	w := httptest.NewRecorder()
	server.showMWTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	var resp struct {
		PriceAttribute string       `json:"price_attribute"`
		Currency       string       `json:"currency"`
		MWTP           []model.MWTP `json:"mwtp"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.PriceAttribute != "wage" {
		t.Errorf("price_attribute = %q, want wage", resp.PriceAttribute)
	}
	if len(resp.MWTP) != 1 || resp.MWTP[0].Formatted != "$5.00" {
		t.Errorf("mwtp = %v", resp.MWTP)
	}
}

func TestShowConfig(t *testing.T) {
	server, _ := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/config", nil)
	w := httptest.NewRecorder()
	server.showConfig(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	var resp struct {
		Scale          string `json:"scale"`
		Currency       string `json:"currency"`
		PriceAttribute string `json:"price_attribute"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Scale != units.Scale10 {
		t.Errorf("scale = %q, want scale10", resp.Scale)
	}
	if resp.Currency != units.USD {
		t.Errorf("currency = %q, want USD", resp.Currency)
	}
	if resp.PriceAttribute != "wage" {
		t.Errorf("price_attribute = %q, want wage", resp.PriceAttribute)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	server, _ := setupTestServer(t)

	for _, path := range []string{"/api/runs", "/api/effects", "/api/mwtp", "/api/config"} {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		w := httptest.NewRecorder()
		server.ServeMux().ServeHTTP(w, req)
		if w.Code != http.StatusMethodNotAllowed {
			t.Errorf("POST %s: expected status 405, got %d", path, w.Code)
		}
	}
}
