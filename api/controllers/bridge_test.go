package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/unicampus/campus-backend/internal/bridge"
	pkgerrors "github.com/unicampus/campus-backend/pkg/errors"
)

type stubBridge struct {
	gotToken string
	result   *bridge.Result
	err      error
}

func (s *stubBridge) Exchange(ctx context.Context, idToken string) (*bridge.Result, error) {
	s.gotToken = idToken
	return s.result, s.err
}

func postBridge(t *testing.T, svc bridge.Service, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/functions/v1/session-bridge", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	SessionBridge(svc, nil).ServeHTTP(rec, req)
	return rec
}

func TestSessionBridgeReturnsBareSession(t *testing.T) {
	svc := &stubBridge{result: &bridge.Result{
		Session: bridge.Session{AccessToken: "access", RefreshToken: "refresh"},
		UserID:  "u-1",
	}}

	rec := postBridge(t, svc, `{"firebaseIdToken":"tok-1"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if svc.gotToken != "tok-1" {
		t.Fatalf("expected token forwarded, got %q", svc.gotToken)
	}
	var body struct {
		Session bridge.Session `json:"session"`
		Data    any            `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Data != nil {
		t.Fatalf("expected no data envelope")
	}
	if body.Session.AccessToken != "access" || body.Session.RefreshToken != "refresh" {
		t.Fatalf("unexpected session %+v", body.Session)
	}
}

func TestSessionBridgeAcceptsIDTokenAlias(t *testing.T) {
	svc := &stubBridge{result: &bridge.Result{}}

	rec := postBridge(t, svc, `{"idToken":"tok-2"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if svc.gotToken != "tok-2" {
		t.Fatalf("expected alias token forwarded, got %q", svc.gotToken)
	}
}

func TestSessionBridgeTokenValidation(t *testing.T) {
	cases := map[string]string{
		"missing":  `{}`,
		"blank":    `{"firebaseIdToken":"   "}`,
		"both":     `{"firebaseIdToken":"a","idToken":"b"}`,
		"unknown":  `{"token":"a"}`,
		"not json": `nope`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			svc := &stubBridge{result: &bridge.Result{}}
			rec := postBridge(t, svc, body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400 got %d", rec.Code)
			}
			if svc.gotToken != "" {
				t.Fatalf("exchange must not run")
			}
		})
	}
}

func TestSessionBridgeUnverifiableToken(t *testing.T) {
	svc := &stubBridge{err: pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid identity token")}

	rec := postBridge(t, svc, `{"firebaseIdToken":"forged"}`)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
	if bytes.Contains(rec.Body.Bytes(), []byte("session")) {
		t.Fatalf("error response must not carry a session: %s", rec.Body.String())
	}
}

func TestSessionBridgeUpstreamFailureCarriesDetails(t *testing.T) {
	svc := &stubBridge{err: pkgerrors.New(pkgerrors.CodeUpstream, "failed to create account").
		WithDetails(map[string]any{"upstream": map[string]any{"code": "INTERNAL_ERROR"}})}

	rec := postBridge(t, svc, `{"firebaseIdToken":"tok"}`)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", rec.Code)
	}
	var body struct {
		Error struct {
			Code    string         `json:"code"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error.Code != string(pkgerrors.CodeUpstream) {
		t.Fatalf("unexpected code %s", body.Error.Code)
	}
	if _, ok := body.Error.Details["upstream"]; !ok {
		t.Fatalf("expected upstream details, got %v", body.Error.Details)
	}
}
