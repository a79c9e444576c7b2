package controllers

import (
	"net/http"

	"github.com/unicampus/campus-backend/api/middleware"
	"github.com/unicampus/campus-backend/api/responses"
	"github.com/unicampus/campus-backend/api/validators"
	"github.com/unicampus/campus-backend/internal/captcha"
	"github.com/unicampus/campus-backend/pkg/logger"
)

type verifyCaptchaRequest struct {
	Token string `json:"token" validate:"required"`
}

// VerifyCaptcha relays the provider's siteverify payload and status code as-is.
func VerifyCaptcha(svc captcha.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "captcha service")
			return
		}

		var body verifyCaptchaRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Verify(r.Context(), body.Token, middleware.ClientIP(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteRawJSON(w, result.StatusCode, result.Body)
	}
}
