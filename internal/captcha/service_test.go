package captcha

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/unicampus/campus-backend/pkg/config"
	pkgerrors "github.com/unicampus/campus-backend/pkg/errors"
)

func newTestService(url string, retries uint64) *service {
	svc := NewService(ServiceParams{
		Config: config.CaptchaConfig{Secret: "server-secret", VerifyURL: url, Timeout: time.Second, MaxRetries: retries},
	}).(*service)
	svc.retryBase = time.Millisecond
	return svc
}

func TestVerifyPassesThroughUpstreamPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if r.PostForm.Get("secret") != "server-secret" || r.PostForm.Get("response") != "tok" || r.PostForm.Get("remoteip") != "10.0.0.1" {
			t.Fatalf("unexpected form %v", r.PostForm)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":false,"error-codes":["timeout-or-duplicate"]}`))
	}))
	defer server.Close()

	result, err := newTestService(server.URL, 0).Verify(context.Background(), " tok ", "10.0.0.1")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if result.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d", result.StatusCode)
	}
	if string(result.Body) != `{"success":false,"error-codes":["timeout-or-duplicate"]}` {
		t.Fatalf("body was modified: %s", result.Body)
	}
}

func TestVerifyRetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	defer server.Close()

	result, err := newTestService(server.URL, 3).Verify(context.Background(), "tok", "")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
	if string(result.Body) != `{"success":true}` {
		t.Fatalf("unexpected body %s", result.Body)
	}
}

func TestVerifyGivesUpAsDependencyError(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := newTestService(server.URL, 2).Verify(context.Background(), "tok", "")
	if pkgerrors.CodeOf(err) != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Fatalf("expected initial call plus 2 retries, got %d", calls)
	}
}

func TestVerifyRejectsMissingInputs(t *testing.T) {
	_, err := newTestService("http://unused", 0).Verify(context.Background(), "  ", "")
	if pkgerrors.CodeOf(err) != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}

	unconfigured := NewService(ServiceParams{Config: config.CaptchaConfig{VerifyURL: "http://unused"}})
	_, err = unconfigured.Verify(context.Background(), "tok", "")
	if pkgerrors.CodeOf(err) != pkgerrors.CodeInternal {
		t.Fatalf("expected internal error, got %v", err)
	}
}
