package controllers

import (
	"net/http"

	"github.com/unicampus/campus-backend/api/middleware"
	"github.com/unicampus/campus-backend/api/responses"
	"github.com/unicampus/campus-backend/api/validators"
	"github.com/unicampus/campus-backend/internal/clubs"
	"github.com/unicampus/campus-backend/pkg/logger"
)

func clubActor(p middleware.Principal) clubs.Actor {
	return clubs.Actor{UserID: p.UserID, Role: p.Role}
}

func ListClubs(svc clubs.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "clubs service")
			return
		}
		list, err := svc.List(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func GetClub(svc clubs.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "clubs service")
			return
		}
		clubID, err := validators.ParseURLParamUUID(r, "clubId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		club, err := svc.Get(r.Context(), clubID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, club)
	}
}

// JoinClub enrols the caller, subject to the membership cap and club capacity.
func JoinClub(svc clubs.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "clubs service")
			return
		}
		p, ok := principal(w, r, logg)
		if !ok {
			return
		}
		clubID, err := validators.ParseURLParamUUID(r, "clubId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		membership, err := svc.Join(r.Context(), p.UserID, clubID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, membership)
	}
}

func LeaveClub(svc clubs.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "clubs service")
			return
		}
		p, ok := principal(w, r, logg)
		if !ok {
			return
		}
		clubID, err := validators.ParseURLParamUUID(r, "clubId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Leave(r.Context(), p.UserID, clubID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}

func MyClubs(svc clubs.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "clubs service")
			return
		}
		p, ok := principal(w, r, logg)
		if !ok {
			return
		}
		list, err := svc.MyClubs(r.Context(), p.UserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func ListClubMembers(svc clubs.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "clubs service")
			return
		}
		p, ok := principal(w, r, logg)
		if !ok {
			return
		}
		clubID, err := validators.ParseURLParamUUID(r, "clubId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		members, err := svc.Members(r.Context(), clubActor(p), clubID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, members)
	}
}

func SetClubMemberRole(svc clubs.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "clubs service")
			return
		}
		p, ok := principal(w, r, logg)
		if !ok {
			return
		}
		clubID, err := validators.ParseURLParamUUID(r, "clubId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		userID, err := validators.ParseURLParamUUID(r, "userId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body clubs.SetRoleInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		membership, err := svc.SetMemberRole(r.Context(), clubActor(p), clubID, userID, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, membership)
	}
}
