package controllers

import (
	"net/http"

	"github.com/unicampus/campus-backend/api/responses"
	"github.com/unicampus/campus-backend/api/validators"
	"github.com/unicampus/campus-backend/internal/auth"
	"github.com/unicampus/campus-backend/pkg/logger"
)

const accessTokenHeader = "X-Campus-Token"

// AuthLogin exchanges email and password for a session pair.
func AuthLogin(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "auth service")
			return
		}

		var body auth.LoginRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Login(r.Context(), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		w.Header().Set(accessTokenHeader, result.AccessToken)
		responses.WriteSuccess(w, result)
	}
}
