package controllers

import (
	"net/http"

	"github.com/unicampus/campus-backend/api/middleware"
	"github.com/unicampus/campus-backend/api/responses"
	"github.com/unicampus/campus-backend/api/validators"
	"github.com/unicampus/campus-backend/internal/checkout"
	"github.com/unicampus/campus-backend/pkg/logger"
)

// Checkout turns the submitted cart into one order per vendor.
func Checkout(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "checkout service")
			return
		}
		p, ok := principal(w, r, logg)
		if !ok {
			return
		}

		var body checkout.CheckoutInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Execute(r.Context(), p.UserID, body)
		if err != nil {
			if checkout.PartiallyPersisted(err) {
				middleware.MarkCommitted(r.Context())
			}
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if logg != nil {
			ctx := logg.WithFields(r.Context(), map[string]any{
				"checkout_id": result.CheckoutID.String(),
				"order_count": len(result.Orders),
			})
			logg.Info(ctx, "checkout.completed")
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// QuoteCart prices a cart without persisting anything.
func QuoteCart(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "checkout service")
			return
		}

		var body checkout.QuoteInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		quote, err := svc.Quote(r.Context(), body.Items)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, quote)
	}
}

// VerifyCheckoutPIN unlocks checkout for a short window.
func VerifyCheckoutPIN(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "checkout service")
			return
		}
		p, ok := principal(w, r, logg)
		if !ok {
			return
		}

		var body checkout.VerifyPINInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.VerifyPIN(r.Context(), p.UserID, body.PIN); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"verified": true})
	}
}
