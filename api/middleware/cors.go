package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

var apiHeaders = []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-Requested-With", "X-Request-Id"}

// CORS applies the configured origin allow-list to the REST API.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   apiHeaders,
		ExposedHeaders:   []string{"X-Request-Id", "X-Campus-Token"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler
}

// OpenCORS admits any origin. The /functions endpoints are called from browsers before a session exists.
func OpenCORS() func(http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"POST", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type", "apikey", "x-client-info"},
		MaxAge:         86400,
	}).Handler
}
