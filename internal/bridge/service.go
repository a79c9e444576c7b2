package bridge

import (
	"context"
	"errors"
	"strings"

	"github.com/unicampus/campus-backend/internal/auth"
	pkgerrors "github.com/unicampus/campus-backend/pkg/errors"
	"github.com/unicampus/campus-backend/pkg/identity"
	"github.com/unicampus/campus-backend/pkg/logger"
)

const notConfiguredMessage = "session bridge is not configured"

// Session is the access/refresh pair handed back to the client.
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Result carries the session plus bookkeeping the controller logs.
type Result struct {
	Session Session
	UserID  string
	Created bool
}

// Service exchanges identity-provider ID tokens for backend sessions.
type Service interface {
	Exchange(ctx context.Context, idToken string) (*Result, error)
}

type tokenVerifier interface {
	Verify(ctx context.Context, raw string) (*identity.Token, error)
}

type loginService interface {
	Login(ctx context.Context, req auth.LoginRequest) (*auth.LoginResponse, error)
}

// ServiceParams wires the bridge. A nil Verifier or Deriver leaves the bridge
// unconfigured and every exchange fails with INTERNAL_ERROR.
type ServiceParams struct {
	Verifier tokenVerifier
	Deriver  Deriver
	Auth     loginService
	Register auth.RegisterService
	Logger   *logger.Logger
}

type service struct {
	verifier tokenVerifier
	deriver  Deriver
	auth     loginService
	register auth.RegisterService
	logg     *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Auth == nil {
		return nil, errors.New("auth service is required")
	}
	if params.Register == nil {
		return nil, errors.New("register service is required")
	}
	return &service{
		verifier: params.Verifier,
		deriver:  params.Deriver,
		auth:     params.Auth,
		register: params.Register,
		logg:     params.Logger,
	}, nil
}

func (s *service) Exchange(ctx context.Context, idToken string) (*Result, error) {
	if s.verifier == nil || s.deriver == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, notConfiguredMessage)
	}

	token, err := s.verifier.Verify(ctx, idToken)
	if errors.Is(err, identity.ErrKeysUnavailable) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "identity provider keys unavailable")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid identity token")
	}
	email := strings.ToLower(strings.TrimSpace(token.Email))
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "identity token has no email")
	}
	creds := auth.LoginRequest{Email: email, Password: s.deriver.Derive(token.UID)}

	resp, err := s.auth.Login(ctx, creds)
	if err == nil {
		return newResult(resp, false), nil
	}
	if pkgerrors.CodeOf(err) != pkgerrors.CodeUnauthorized {
		return nil, err
	}

	uid := token.UID
	_, regErr := s.register.Register(ctx, auth.RegisterRequest{
		Email:       email,
		Password:    creds.Password,
		FullName:    displayName(token),
		IdentityUID: &uid,
	})
	created := regErr == nil
	if regErr != nil && pkgerrors.CodeOf(regErr) != pkgerrors.CodeConflict {
		return nil, upstreamError(regErr)
	}

	// A conflict here usually means a concurrent exchange for the same subject won the insert.
	resp, err = s.auth.Login(ctx, creds)
	if err != nil {
		if regErr != nil {
			return nil, upstreamError(regErr)
		}
		return nil, err
	}
	if created && s.logg != nil {
		s.logg.Info(s.logg.WithField(ctx, "user_id", resp.User.ID.String()), "bridge.account_created")
	}
	return newResult(resp, created), nil
}

func newResult(resp *auth.LoginResponse, created bool) *Result {
	result := &Result{
		Session: Session{AccessToken: resp.AccessToken, RefreshToken: resp.RefreshToken},
		Created: created,
	}
	if resp.User != nil {
		result.UserID = resp.User.ID.String()
	}
	return result
}

func upstreamError(err error) error {
	return pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "failed to create account").
		WithDetails(map[string]any{"upstream": upstreamPayload(err)})
}

func upstreamPayload(err error) map[string]any {
	payload := map[string]any{"message": err.Error()}
	if typed := pkgerrors.As(err); typed != nil {
		payload["code"] = string(typed.Code())
		payload["message"] = typed.Message()
	}
	return payload
}

func displayName(token *identity.Token) string {
	if name := strings.TrimSpace(token.Name); name != "" {
		return name
	}
	if at := strings.Index(token.Email, "@"); at > 0 {
		return token.Email[:at]
	}
	return token.Email
}
