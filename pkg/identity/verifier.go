package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const maxSubjectLength = 128

var (
	// ErrInvalidToken is returned for every token that fails verification.
	ErrInvalidToken = errors.New("invalid identity token")
	ErrUnknownKeyID = errors.New("unknown key id")
	// ErrKeysUnavailable means the provider's signing keys could not be loaded,
	// so the token was never checked.
	ErrKeysUnavailable = errors.New("identity signing keys unavailable")
)

// Token is the verified subset of an identity-provider ID token.
type Token struct {
	UID           string
	Email         string
	EmailVerified bool
	Name          string
	IssuedAt      time.Time
	ExpiresAt     time.Time
	AuthTime      time.Time
}

type idTokenClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	AuthTime      int64  `json:"auth_time"`
	jwt.RegisteredClaims
}

// VerifierParams configure a Verifier.
type VerifierParams struct {
	ProjectID string
	Issuer    string
	Keys      KeySource
	Leeway    time.Duration
	Now       func() time.Time
}

// Verifier checks RS256 ID tokens against the provider's published keys.
type Verifier struct {
	projectID string
	issuer    string
	keys      KeySource
	leeway    time.Duration
	now       func() time.Time
}

func NewVerifier(params VerifierParams) (*Verifier, error) {
	if strings.TrimSpace(params.ProjectID) == "" {
		return nil, errors.New("project id is required")
	}
	if strings.TrimSpace(params.Issuer) == "" {
		return nil, errors.New("issuer is required")
	}
	if params.Keys == nil {
		return nil, errors.New("key source is required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Verifier{
		projectID: params.ProjectID,
		issuer:    params.Issuer,
		keys:      params.Keys,
		leeway:    params.Leeway,
		now:       now,
	}, nil
}

// Verify validates signature and claims, returning the decoded token. Token
// failures wrap ErrInvalidToken; key loading failures wrap ErrKeysUnavailable.
func (v *Verifier) Verify(ctx context.Context, raw string) (*Token, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty token", ErrInvalidToken)
	}

	keys, err := v.keys.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrKeysUnavailable, err)
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithAudience(v.projectID),
		jwt.WithIssuer(v.issuer),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
		jwt.WithTimeFunc(v.now),
	)

	claims := &idTokenClaims{}
	_, err = parser.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		kid, _ := token.Header["kid"].(string)
		if kid == "" {
			return nil, fmt.Errorf("%w: missing kid header", ErrUnknownKeyID)
		}
		key, ok := keys[kid]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownKeyID, kid)
		}
		return key, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if claims.Subject == "" || len(claims.Subject) > maxSubjectLength {
		return nil, fmt.Errorf("%w: subject must be 1-%d characters", ErrInvalidToken, maxSubjectLength)
	}
	if claims.IssuedAt == nil {
		return nil, fmt.Errorf("%w: missing iat", ErrInvalidToken)
	}

	now := v.now()
	var authTime time.Time
	if claims.AuthTime > 0 {
		authTime = time.Unix(claims.AuthTime, 0)
		if authTime.After(now.Add(v.leeway)) {
			return nil, fmt.Errorf("%w: auth_time is in the future", ErrInvalidToken)
		}
	}

	token := &Token{
		UID:           claims.Subject,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		Name:          claims.Name,
		IssuedAt:      claims.IssuedAt.Time,
		AuthTime:      authTime,
	}
	if claims.ExpiresAt != nil {
		token.ExpiresAt = claims.ExpiresAt.Time
	}
	return token, nil
}
