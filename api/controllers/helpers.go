package controllers

import (
	"net/http"
	"strings"

	"github.com/unicampus/campus-backend/api/middleware"
	"github.com/unicampus/campus-backend/api/responses"
	"github.com/unicampus/campus-backend/api/validators"
	pkgerrors "github.com/unicampus/campus-backend/pkg/errors"
	"github.com/unicampus/campus-backend/pkg/logger"
	"github.com/unicampus/campus-backend/pkg/pagination"
)

func unavailable(w http.ResponseWriter, r *http.Request, logg *logger.Logger, name string) {
	responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, name+" unavailable"))
}

// principal writes a 401 and returns false when the request carries no identity.
func principal(w http.ResponseWriter, r *http.Request, logg *logger.Logger) (middleware.Principal, bool) {
	p, err := middleware.PrincipalFromContext(r.Context())
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return middleware.Principal{}, false
	}
	return p, true
}

func pageParams(r *http.Request) (pagination.Params, error) {
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return pagination.Params{}, err
	}
	return pagination.Params{
		Limit:  limit,
		Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
	}, nil
}
