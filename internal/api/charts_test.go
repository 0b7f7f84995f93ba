package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestChartEffects(t *testing.T) {
	server, database := setupTestServer(t)
	storeTestRun(t, database)

	req := httptest.NewRequest(http.MethodGet, "/charts/effects", nil)
	w := httptest.NewRecorder()
	server.chartEffects(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q, want text/html", ct)
	}
	body := w.Body.String()
	if !strings.Contains(body, "Average Marginal Effects") {
		t.Error("chart page missing title")
	}
	if !strings.Contains(body, "contract_permanent") {
		t.Error("chart page missing attribute name")
	}
}

func TestChartEffects_NoRuns(t *testing.T) {
	server, _ := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/charts/effects", nil)
	w := httptest.NewRecorder()
	server.chartEffects(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("error Content-Type = %q, want application/json", ct)
	}
	if !strings.Contains(w.Body.String(), "error") {
		t.Error("error body missing error field")
	}
}

func TestChartMWTP(t *testing.T) {
	server, database := setupTestServer(t)
	storeTestRun(t, database)

	req := httptest.NewRequest(http.MethodGet, "/charts/mwtp", nil)
	w := httptest.NewRecorder()
	server.chartMWTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Willingness to Pay") {
		t.Error("chart page missing title")
	}
}

func TestChartRatings_Empty(t *testing.T) {
	server, _ := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/charts/ratings", nil)
	w := httptest.NewRecorder()
	server.chartRatings(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 with no ratings stored, got %d", w.Code)
	}
}
