package validators

import (
	"errors"
	"strings"
)

var ErrMissingBearer = errors.New("missing bearer token")

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	token := strings.TrimSpace(header)
	if len(token) < 7 || !strings.EqualFold(token[:7], "bearer ") {
		return "", ErrMissingBearer
	}
	token = strings.TrimSpace(token[7:])
	if token == "" {
		return "", ErrMissingBearer
	}
	return token, nil
}
