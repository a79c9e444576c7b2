// Package instance names the running process for logs and lock ownership.
package instance

import (
	"os"

	"github.com/unicampus/campus-backend/pkg/env"
)

const defaultID = "campus-0"

// ID resolves CAMPUS_INSTANCE_ID, then the platform dyno name, then the hostname.
func ID() string {
	if id := env.Get("", "CAMPUS_INSTANCE_ID", "DYNO"); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return defaultID
}
