package bridge

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"

	"github.com/unicampus/campus-backend/internal/auth"
	"github.com/unicampus/campus-backend/internal/users"
	"github.com/unicampus/campus-backend/pkg/config"
	pkgerrors "github.com/unicampus/campus-backend/pkg/errors"
	"github.com/unicampus/campus-backend/pkg/identity"
)

type stubVerifier struct {
	token *identity.Token
	err   error
}

func (s stubVerifier) Verify(ctx context.Context, raw string) (*identity.Token, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.token, nil
}

// accountBook acts as both the login and the register side of the backend.
type accountBook struct {
	accounts    map[string]account
	registers   int
	registerErr error
	conflictAdd bool
}

type account struct {
	id       uuid.UUID
	password string
}

func newAccountBook() *accountBook {
	return &accountBook{accounts: map[string]account{}}
}

func (b *accountBook) Login(ctx context.Context, req auth.LoginRequest) (*auth.LoginResponse, error) {
	acct, ok := b.accounts[req.Email]
	if !ok || acct.password != req.Password {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
	}
	return &auth.LoginResponse{
		AccessToken:  "access-" + acct.id.String(),
		RefreshToken: "refresh-" + acct.id.String(),
		User:         &users.UserDTO{ID: acct.id, Email: req.Email},
	}, nil
}

func (b *accountBook) Register(ctx context.Context, req auth.RegisterRequest) (*users.UserDTO, error) {
	b.registers++
	if b.registerErr != nil {
		return nil, b.registerErr
	}
	if b.conflictAdd {
		// another exchange created the account first
		b.accounts[req.Email] = account{id: uuid.New(), password: req.Password}
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
	}
	if _, exists := b.accounts[req.Email]; exists {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
	}
	if req.IdentityUID == nil || *req.IdentityUID == "" {
		return nil, errors.New("identity uid not forwarded")
	}
	id := uuid.New()
	b.accounts[req.Email] = account{id: id, password: req.Password}
	return &users.UserDTO{ID: id, Email: req.Email}, nil
}

func newTestBridge(t *testing.T, verifier tokenVerifier, book *accountBook) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Verifier: verifier,
		Deriver:  SuffixDeriver{Suffix: "_campus"},
		Auth:     book,
		Register: book,
	})
	if err != nil {
		t.Fatalf("new bridge: %v", err)
	}
	return svc
}

func validToken() *identity.Token {
	return &identity.Token{UID: "uid-42", Email: "Student@Uni.edu", Name: "Test Student"}
}

func TestExchangeCreatesAccountOnce(t *testing.T) {
	book := newAccountBook()
	svc := newTestBridge(t, stubVerifier{token: validToken()}, book)

	first, err := svc.Exchange(context.Background(), "token")
	if err != nil {
		t.Fatalf("first exchange: %v", err)
	}
	if !first.Created {
		t.Fatal("expected first exchange to create the account")
	}
	second, err := svc.Exchange(context.Background(), "token")
	if err != nil {
		t.Fatalf("second exchange: %v", err)
	}
	if second.Created {
		t.Fatal("second exchange must not create an account")
	}
	if first.UserID != second.UserID {
		t.Fatalf("expected same user, got %s and %s", first.UserID, second.UserID)
	}
	if book.registers != 1 {
		t.Fatalf("expected one registration, got %d", book.registers)
	}
	acct := book.accounts["student@uni.edu"]
	if acct.password != "uid-42_campus" {
		t.Fatalf("unexpected derived password %q", acct.password)
	}
	if second.Session.AccessToken == "" || second.Session.RefreshToken == "" {
		t.Fatalf("incomplete session %+v", second.Session)
	}
}

func TestExchangeRejectsUnverifiableToken(t *testing.T) {
	book := newAccountBook()
	svc := newTestBridge(t, stubVerifier{err: identity.ErrInvalidToken}, book)

	result, err := svc.Exchange(context.Background(), "garbage")
	if result != nil {
		t.Fatalf("expected no session, got %+v", result)
	}
	if pkgerrors.CodeOf(err) != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if book.registers != 0 {
		t.Fatal("no account should be created for an invalid token")
	}
}

func TestExchangeKeyOutageIsDependencyError(t *testing.T) {
	book := newAccountBook()
	outage := fmt.Errorf("%w: dial tcp: connection refused", identity.ErrKeysUnavailable)
	svc := newTestBridge(t, stubVerifier{err: outage}, book)

	result, err := svc.Exchange(context.Background(), "token")
	if result != nil {
		t.Fatalf("expected no session, got %+v", result)
	}
	if pkgerrors.CodeOf(err) != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
	if book.registers != 0 {
		t.Fatal("no account should be created while keys are unavailable")
	}
}

func TestExchangeRequiresEmailClaim(t *testing.T) {
	svc := newTestBridge(t, stubVerifier{token: &identity.Token{UID: "uid-1"}}, newAccountBook())
	_, err := svc.Exchange(context.Background(), "token")
	if pkgerrors.CodeOf(err) != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestExchangeUnconfigured(t *testing.T) {
	book := newAccountBook()
	svc, err := NewService(ServiceParams{Auth: book, Register: book})
	if err != nil {
		t.Fatalf("new bridge: %v", err)
	}
	_, err = svc.Exchange(context.Background(), "token")
	if pkgerrors.CodeOf(err) != pkgerrors.CodeInternal {
		t.Fatalf("expected internal error, got %v", err)
	}
}

func TestExchangeRegisterFailureIsUpstream(t *testing.T) {
	book := newAccountBook()
	book.registerErr = pkgerrors.New(pkgerrors.CodeInternal, "create user")
	svc := newTestBridge(t, stubVerifier{token: validToken()}, book)

	_, err := svc.Exchange(context.Background(), "token")
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeUpstream {
		t.Fatalf("expected upstream error, got %v", err)
	}
	details, ok := typed.Details().(map[string]any)
	if !ok {
		t.Fatalf("expected details map, got %T", typed.Details())
	}
	upstream, ok := details["upstream"].(map[string]any)
	if !ok || upstream["code"] != string(pkgerrors.CodeInternal) {
		t.Fatalf("unexpected upstream details %+v", details)
	}
}

func TestExchangeConflictFromConcurrentCreateSignsIn(t *testing.T) {
	book := newAccountBook()
	book.conflictAdd = true
	svc := newTestBridge(t, stubVerifier{token: validToken()}, book)

	result, err := svc.Exchange(context.Background(), "token")
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if result.Created {
		t.Fatal("conflicting create should not be reported as created")
	}
}

func TestExchangeExistingPasswordAccountIsUpstream(t *testing.T) {
	book := newAccountBook()
	book.accounts["student@uni.edu"] = account{id: uuid.New(), password: "chosen-by-user"}
	svc := newTestBridge(t, stubVerifier{token: validToken()}, book)

	_, err := svc.Exchange(context.Background(), "token")
	if pkgerrors.CodeOf(err) != pkgerrors.CodeUpstream {
		t.Fatalf("expected upstream error, got %v", err)
	}
}

func TestNewDeriverModes(t *testing.T) {
	suffix, err := NewDeriver(config.BridgeConfig{PasswordSuffix: "_x"})
	if err != nil {
		t.Fatalf("suffix deriver: %v", err)
	}
	if got := suffix.Derive("abc"); got != "abc_x" {
		t.Fatalf("unexpected suffix password %q", got)
	}

	hmacA, err := NewDeriver(config.BridgeConfig{PasswordMode: "hmac", PasswordSecret: "s1"})
	if err != nil {
		t.Fatalf("hmac deriver: %v", err)
	}
	hmacB, _ := NewDeriver(config.BridgeConfig{PasswordMode: "HMAC", PasswordSecret: "s2"})
	if hmacA.Derive("abc") != hmacA.Derive("abc") {
		t.Fatal("hmac derivation must be deterministic")
	}
	if hmacA.Derive("abc") == hmacB.Derive("abc") {
		t.Fatal("different secrets must derive different passwords")
	}
	if len(hmacA.Derive("abc")) != 64 {
		t.Fatalf("expected hex sha256, got %q", hmacA.Derive("abc"))
	}

	if _, err := NewDeriver(config.BridgeConfig{}); err == nil {
		t.Fatal("expected error without suffix")
	}
	if _, err := NewDeriver(config.BridgeConfig{PasswordMode: "hmac"}); err == nil {
		t.Fatal("expected error without secret")
	}
	if _, err := NewDeriver(config.BridgeConfig{PasswordMode: "plain", PasswordSuffix: "_x"}); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}
