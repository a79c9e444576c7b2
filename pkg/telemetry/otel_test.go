package telemetry

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/unicampus/campus-backend/pkg/config"
)

func TestSetupDisabledIsNoop(t *testing.T) {
	shutdown, err := Setup(context.Background(), config.TelemetryConfig{Enabled: false}, "campus-test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("noop shutdown failed: %v", err)
	}
}

func TestSetupStdoutExporter(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := setup(context.Background(), config.TelemetryConfig{Enabled: true, Exporter: "stdout", SampleRatio: 1}, "campus-test", &buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	handler := Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}), "api")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/vendors", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected wrapped handler status, got %d", rec.Code)
	}

	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}
	if !bytes.Contains(buf.Bytes(), []byte("GET /api/v1/vendors")) {
		t.Fatalf("expected exported span, got %q", buf.String())
	}
}

func TestSetupUnknownExporter(t *testing.T) {
	if _, err := Setup(context.Background(), config.TelemetryConfig{Enabled: true, Exporter: "zipkin"}, "campus-test"); err == nil {
		t.Fatal("expected error for unknown exporter")
	}
}

func TestNewHTTPClientPropagatesTimeout(t *testing.T) {
	client := NewHTTPClient(3 * time.Second)
	if client.Timeout != 3*time.Second {
		t.Fatalf("unexpected timeout %v", client.Timeout)
	}
	if client.Transport == nil {
		t.Fatal("expected instrumented transport")
	}
}
