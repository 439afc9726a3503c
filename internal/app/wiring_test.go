package app

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/blitznow/ridertraining/internal/config"
)

// unreachableConfig はライダーDBに到達できない構成を返す。
func unreachableConfig(degraded bool) *config.Config {
	return &config.Config{
		DBHost:              "127.0.0.1",
		DBPort:              1,
		DBName:              "riders",
		DBUser:              "reader",
		DBPassword:          "secret",
		DBSSLMode:           "disable",
		DBSchema:            "application_db",
		DBConnectTimeout:    time.Second,
		DBQueryTimeout:      time.Second,
		StoreBackend:        config.StoreBackendSupabase,
		SupabaseURL:         "https://project.supabase.co",
		SupabaseKey:         "test-key",
		StoreTimeout:        time.Second,
		StoreMaxRetries:     0,
		StoreRetryBaseDelay: time.Millisecond,
		DegradedMode:        degraded,
		CORSAllowedOrigin:   "*",
		RateLimitPerMinute:  600,
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestNewApplication_DegradedRiderInfo(t *testing.T) {
	a, err := newApplication(unreachableConfig(true), discardLogger())
	if err != nil {
		t.Fatalf("newApplication() error = %v", err)
	}
	defer a.Close()

	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/rider-info?rider_id=478", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body = %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if body["rider_id"] != float64(478) {
		t.Errorf("rider_id = %v, want 478", body["rider_id"])
	}
	if body["node_type"] != "central_hub" || body["rider_age"] != float64(1) {
		t.Errorf("body = %v, want central_hub fixture on day 1", body)
	}
	if body["degraded"] != true {
		t.Errorf("degraded = %v, want true", body["degraded"])
	}
}

func TestNewApplication_WithoutDegradedModeFails(t *testing.T) {
	a, err := newApplication(unreachableConfig(false), discardLogger())
	if err == nil {
		a.Close()
		t.Fatal("newApplication() should fail when the rider database is unreachable")
	}
}

func TestNewApplication_OpsHandler(t *testing.T) {
	a, err := newApplication(unreachableConfig(true), discardLogger())
	if err != nil {
		t.Fatalf("newApplication() error = %v", err)
	}
	defer a.Close()

	// リクエストを1件流してからメトリクスを確認する
	a.router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodOptions, "/tutorials", nil))

	ops := a.opsHandler()

	rec := httptest.NewRecorder()
	ops.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d, want %d", rec.Code, http.StatusOK)
	}
	if !strings.Contains(rec.Body.String(), "ridertraining_requests_total") {
		t.Error("/metrics should expose ridertraining_requests_total")
	}
	if !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Error("/metrics should expose Go runtime metrics")
	}

	rec = httptest.NewRecorder()
	ops.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("/health status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}
