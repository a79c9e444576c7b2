package bridge

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/unicampus/campus-backend/pkg/config"
)

const (
	PasswordModeSuffix = "suffix"
	PasswordModeHMAC   = "hmac"
)

// Deriver maps an identity-provider subject to the backend account password.
type Deriver interface {
	Derive(uid string) string
}

// SuffixDeriver appends a fixed suffix to the uid. Anyone who knows the uid and
// the suffix can sign in as that user; prefer HMACDeriver for new deployments.
type SuffixDeriver struct {
	Suffix string
}

func (d SuffixDeriver) Derive(uid string) string {
	return uid + d.Suffix
}

// HMACDeriver keys the uid with a server-held secret.
type HMACDeriver struct {
	Secret []byte
}

func (d HMACDeriver) Derive(uid string) string {
	mac := hmac.New(sha256.New, d.Secret)
	mac.Write([]byte(uid))
	return hex.EncodeToString(mac.Sum(nil))
}

// NewDeriver picks the deriver configured by CAMPUS_BRIDGE_PASSWORD_MODE.
func NewDeriver(cfg config.BridgeConfig) (Deriver, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.PasswordMode)) {
	case "", PasswordModeSuffix:
		if cfg.PasswordSuffix == "" {
			return nil, fmt.Errorf("bridge password suffix is not configured")
		}
		return SuffixDeriver{Suffix: cfg.PasswordSuffix}, nil
	case PasswordModeHMAC:
		if cfg.PasswordSecret == "" {
			return nil, fmt.Errorf("bridge password secret is not configured")
		}
		return HMACDeriver{Secret: []byte(cfg.PasswordSecret)}, nil
	default:
		return nil, fmt.Errorf("unknown bridge password mode %q", cfg.PasswordMode)
	}
}
