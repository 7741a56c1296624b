package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/edgekit/isr/store"
	"github.com/edgekit/isr/tagindex"
)

func TestLivenessHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	LivenessHandler()(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestReadinessHandler(t *testing.T) {
	tests := []struct {
		name       string
		checker    Checker
		wantStatus int
		wantBody   string
	}{
		{"healthy", staticChecker("x", StatusHealthy), http.StatusOK, "healthy"},
		{"degraded still ready", staticChecker("x", StatusDegraded), http.StatusOK, "degraded"},
		{"unhealthy", staticChecker("x", StatusUnhealthy), http.StatusServiceUnavailable, "unhealthy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := NewRegistry(0)
			reg.Register(tt.checker)

			rec := httptest.NewRecorder()
			ReadinessHandler(reg)(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if rec.Body.String() != tt.wantBody {
				t.Errorf("body = %q, want %q", rec.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestReportHandler(t *testing.T) {
	reg := NewRegistry(0)
	reg.Register(NewStoreChecker(store.NewMemoryStore()))
	reg.Register(NewIndexChecker(tagindex.NewMemoryIndex()))

	rec := httptest.NewRecorder()
	ReportHandler(reg)(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var report Report
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.Status != "healthy" {
		t.Errorf("overall = %q, want healthy", report.Status)
	}
	for _, name := range []string{"store", "tagindex"} {
		if _, ok := report.Checks[name]; !ok {
			t.Errorf("report missing %q check", name)
		}
	}
}

func TestRegisterHandlers(t *testing.T) {
	mux := http.NewServeMux()
	reg := NewRegistry(0)
	RegisterHandlers(mux, reg)

	for _, path := range []string{"/healthz", "/readyz", "/health"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code == http.StatusNotFound {
			t.Errorf("%s not mounted", path)
		}
	}
}
