package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/unicampus/campus-backend/internal/captcha"
	pkgerrors "github.com/unicampus/campus-backend/pkg/errors"
)

type stubCaptcha struct {
	token    string
	remoteIP string
	result   *captcha.Result
	err      error
}

func (s *stubCaptcha) Verify(ctx context.Context, token, remoteIP string) (*captcha.Result, error) {
	s.token = token
	s.remoteIP = remoteIP
	return s.result, s.err
}

func TestVerifyCaptchaRelaysUpstream(t *testing.T) {
	upstream := json.RawMessage(`{"success":false,"error-codes":["invalid-input-response"]}`)
	svc := &stubCaptcha{result: &captcha.Result{StatusCode: http.StatusOK, Body: upstream}}

	req := httptest.NewRequest(http.MethodPost, "/functions/v1/verify-captcha", bytes.NewBufferString(`{"token":"abc"}`))
	req.RemoteAddr = "203.0.113.9:5555"
	rec := httptest.NewRecorder()
	VerifyCaptcha(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if rec.Body.String() != string(upstream) {
		t.Fatalf("expected upstream body untouched, got %s", rec.Body.String())
	}
	if svc.token != "abc" {
		t.Fatalf("expected token forwarded, got %q", svc.token)
	}
	if svc.remoteIP != "203.0.113.9" {
		t.Fatalf("expected remote ip forwarded, got %q", svc.remoteIP)
	}
}

func TestVerifyCaptchaMissingToken(t *testing.T) {
	svc := &stubCaptcha{}
	req := httptest.NewRequest(http.MethodPost, "/functions/v1/verify-captcha", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()
	VerifyCaptcha(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestVerifyCaptchaNotConfigured(t *testing.T) {
	svc := &stubCaptcha{err: pkgerrors.New(pkgerrors.CodeInternal, "captcha verification is not configured")}
	req := httptest.NewRequest(http.MethodPost, "/functions/v1/verify-captcha", bytes.NewBufferString(`{"token":"abc"}`))
	rec := httptest.NewRecorder()
	VerifyCaptcha(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", rec.Code)
	}
}
