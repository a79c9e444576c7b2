package controllers

import (
	"net/http"

	"github.com/unicampus/campus-backend/api/responses"
	"github.com/unicampus/campus-backend/api/validators"
	"github.com/unicampus/campus-backend/internal/points"
	"github.com/unicampus/campus-backend/pkg/logger"
)

func MyPointsBalance(svc points.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "points service")
			return
		}
		p, ok := principal(w, r, logg)
		if !ok {
			return
		}
		balance, err := svc.Balance(r.Context(), p.UserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, balance)
	}
}

func MyPointsHistory(svc points.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "points service")
			return
		}
		p, ok := principal(w, r, logg)
		if !ok {
			return
		}
		page, err := pageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		history, err := svc.History(r.Context(), p.UserID, page)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, history)
	}
}

// AdminRecordEngagement awards points for club activity. Platform admins may
// award anywhere; club admins only within their club.
func AdminRecordEngagement(svc points.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "points service")
			return
		}
		p, ok := principal(w, r, logg)
		if !ok {
			return
		}

		var body points.EngagementInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		engagement, err := svc.RecordEngagement(r.Context(), clubActor(p), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, engagement)
	}
}
