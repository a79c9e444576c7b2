package captcha

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/unicampus/campus-backend/pkg/config"
	pkgerrors "github.com/unicampus/campus-backend/pkg/errors"
)

const (
	defaultRetryBase = 250 * time.Millisecond
	maxBodyBytes     = 64 << 10
)

// Result is the siteverify response, passed through untouched.
type Result struct {
	StatusCode int
	Body       json.RawMessage
}

// Service proxies CAPTCHA tokens to the provider's siteverify endpoint.
type Service interface {
	Verify(ctx context.Context, token, remoteIP string) (*Result, error)
}

type ServiceParams struct {
	Config     config.CaptchaConfig
	HTTPClient *http.Client
}

type service struct {
	secret     string
	verifyURL  string
	client     *http.Client
	maxRetries uint64
	retryBase  time.Duration
}

func NewService(params ServiceParams) Service {
	client := params.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: params.Config.Timeout}
	}
	return &service{
		secret:     params.Config.Secret,
		verifyURL:  params.Config.VerifyURL,
		client:     client,
		maxRetries: params.Config.MaxRetries,
		retryBase:  defaultRetryBase,
	}
}

func (s *service) Verify(ctx context.Context, token, remoteIP string) (*Result, error) {
	if s.secret == "" || s.verifyURL == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "captcha verification is not configured")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "token is required")
	}

	form := url.Values{}
	form.Set("secret", s.secret)
	form.Set("response", token)
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}
	encoded := form.Encode()

	var result *Result
	backoff := retry.WithMaxRetries(s.maxRetries, retry.NewExponential(s.retryBase))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var postErr error
		result, postErr = s.post(ctx, encoded)
		return postErr
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "captcha provider unavailable")
	}
	return result, nil
}

func (s *service) post(ctx context.Context, form string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.verifyURL, strings.NewReader(form))
	if err != nil {
		return nil, fmt.Errorf("build siteverify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, retry.RetryableError(fmt.Errorf("siteverify: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, retry.RetryableError(fmt.Errorf("read siteverify response: %w", err))
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, retry.RetryableError(fmt.Errorf("siteverify: upstream status %d", resp.StatusCode))
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("siteverify: response is not json")
	}
	return &Result{StatusCode: resp.StatusCode, Body: body}, nil
}
