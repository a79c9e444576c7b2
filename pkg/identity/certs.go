package identity

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
)

const (
	defaultCacheTTL   = time.Hour
	defaultMaxRetries = 3
	defaultRetryBase  = 200 * time.Millisecond
	maxCertsBodyBytes = 1 << 20
)

// KeySource resolves the RSA public keys currently published by the identity provider, keyed by kid.
type KeySource interface {
	Keys(ctx context.Context) (map[string]*rsa.PublicKey, error)
}

// StaticKeySource serves a fixed key set.
type StaticKeySource map[string]*rsa.PublicKey

func (s StaticKeySource) Keys(context.Context) (map[string]*rsa.PublicKey, error) {
	return s, nil
}

// HTTPCertSource downloads the provider's x509 certificate map and caches it
// for the max-age the provider advertises.
type HTTPCertSource struct {
	url        string
	client     *http.Client
	maxRetries uint64
	retryBase  time.Duration
	now        func() time.Time

	mu      sync.RWMutex
	keys    map[string]*rsa.PublicKey
	expires time.Time
}

// NewHTTPCertSource builds a cert source for url. A nil client falls back to http.DefaultClient.
func NewHTTPCertSource(url string, client *http.Client) (*HTTPCertSource, error) {
	if strings.TrimSpace(url) == "" {
		return nil, errors.New("certs url is required")
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPCertSource{
		url:        url,
		client:     client,
		maxRetries: defaultMaxRetries,
		retryBase:  defaultRetryBase,
		now:        time.Now,
	}, nil
}

// Keys returns the cached key set, refreshing it once expired.
func (s *HTTPCertSource) Keys(ctx context.Context) (map[string]*rsa.PublicKey, error) {
	s.mu.RLock()
	if s.keys != nil && s.now().Before(s.expires) {
		keys := s.keys
		s.mu.RUnlock()
		return keys, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.keys != nil && s.now().Before(s.expires) {
		return s.keys, nil
	}

	var (
		keys map[string]*rsa.PublicKey
		ttl  time.Duration
	)
	backoff := retry.WithMaxRetries(s.maxRetries, retry.NewExponential(s.retryBase))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var fetchErr error
		keys, ttl, fetchErr = s.fetch(ctx)
		return fetchErr
	})
	if err != nil {
		return nil, err
	}

	s.keys = keys
	s.expires = s.now().Add(ttl)
	return keys, nil
}

func (s *HTTPCertSource) fetch(ctx context.Context) (map[string]*rsa.PublicKey, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build certs request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, 0, retry.RetryableError(fmt.Errorf("fetch certs: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxCertsBodyBytes))
	if err != nil {
		return nil, 0, retry.RetryableError(fmt.Errorf("read certs: %w", err))
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, 0, retry.RetryableError(fmt.Errorf("fetch certs: upstream status %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, 0, fmt.Errorf("fetch certs: unexpected status %d", resp.StatusCode)
	}

	keys, err := ParseCertificateMap(body)
	if err != nil {
		return nil, 0, err
	}
	return keys, maxAge(resp.Header.Get("Cache-Control")), nil
}

// ParseCertificateMap decodes a JSON object of kid to PEM encoded x509 certificate.
func ParseCertificateMap(body []byte) (map[string]*rsa.PublicKey, error) {
	var raw map[string]string
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode certs: %w", err)
	}
	if len(raw) == 0 {
		return nil, errors.New("certs response contained no keys")
	}

	keys := make(map[string]*rsa.PublicKey, len(raw))
	for kid, certPEM := range raw {
		block, _ := pem.Decode([]byte(certPEM))
		if block == nil {
			return nil, fmt.Errorf("cert %s: invalid pem", kid)
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("cert %s: %w", kid, err)
		}
		pub, ok := cert.PublicKey.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("cert %s: not an rsa key", kid)
		}
		keys[kid] = pub
	}
	return keys, nil
}

func maxAge(cacheControl string) time.Duration {
	for _, directive := range strings.Split(cacheControl, ",") {
		directive = strings.TrimSpace(directive)
		value, ok := strings.CutPrefix(strings.ToLower(directive), "max-age=")
		if !ok {
			continue
		}
		secs, err := strconv.Atoi(value)
		if err != nil || secs <= 0 {
			break
		}
		return time.Duration(secs) * time.Second
	}
	return defaultCacheTTL
}
