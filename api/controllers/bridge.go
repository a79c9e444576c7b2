package controllers

import (
	"net/http"
	"strings"

	"github.com/unicampus/campus-backend/api/responses"
	"github.com/unicampus/campus-backend/api/validators"
	"github.com/unicampus/campus-backend/internal/bridge"
	pkgerrors "github.com/unicampus/campus-backend/pkg/errors"
	"github.com/unicampus/campus-backend/pkg/logger"
)

type sessionBridgeRequest struct {
	FirebaseIDToken string `json:"firebaseIdToken"`
	IDToken         string `json:"idToken"`
}

func (r sessionBridgeRequest) token() (string, error) {
	primary := strings.TrimSpace(r.FirebaseIDToken)
	alias := strings.TrimSpace(r.IDToken)
	switch {
	case primary != "" && alias != "":
		return "", pkgerrors.New(pkgerrors.CodeValidation, "provide exactly one of firebaseIdToken or idToken")
	case primary != "":
		return primary, nil
	case alias != "":
		return alias, nil
	default:
		return "", pkgerrors.New(pkgerrors.CodeValidation, "firebaseIdToken is required")
	}
}

// SessionBridge exchanges an identity-provider ID token for a backend session.
// The response is {"session": {...}} without the data envelope.
func SessionBridge(svc bridge.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "session bridge")
			return
		}

		var body sessionBridgeRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		token, err := body.token()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Exchange(r.Context(), token)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if logg != nil {
			ctx := logg.WithFields(r.Context(), map[string]any{
				"user_id": result.UserID,
				"created": result.Created,
			})
			logg.Info(ctx, "bridge.session_issued")
		}
		responses.WriteJSON(w, http.StatusOK, map[string]any{"session": result.Session})
	}
}
