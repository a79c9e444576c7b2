package middleware

import (
	"context"

	"github.com/google/uuid"
	"github.com/unicampus/campus-backend/pkg/enums"
	pkgerrors "github.com/unicampus/campus-backend/pkg/errors"
)

type contextKey string

const (
	ctxUserID   contextKey = "user_id"
	ctxRole     contextKey = "actor_role"
	ctxVendorID contextKey = "vendor_id"
)

// Principal is the authenticated caller resolved from the access token.
type Principal struct {
	UserID   uuid.UUID
	Role     enums.UserRole
	VendorID *uuid.UUID
}

func (p Principal) IsAdmin() bool {
	return p.Role == enums.UserRoleAdmin
}

func UserIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxUserID).(string); ok {
		return v
	}
	return ""
}

func RoleFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxRole).(string); ok {
		return v
	}
	return ""
}

func VendorIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxVendorID).(string); ok {
		return v
	}
	return ""
}

// PrincipalFromContext parses the identity stored by Auth.
func PrincipalFromContext(ctx context.Context) (Principal, error) {
	userID, err := uuid.Parse(UserIDFromContext(ctx))
	if err != nil {
		return Principal{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	role := enums.UserRole(RoleFromContext(ctx))
	if !role.IsValid() {
		return Principal{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "role context missing")
	}
	p := Principal{UserID: userID, Role: role}
	if raw := VendorIDFromContext(ctx); raw != "" {
		vendorID, err := uuid.Parse(raw)
		if err != nil {
			return Principal{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid vendor context")
		}
		p.VendorID = &vendorID
	}
	return p, nil
}

func WithUserID(ctx context.Context, userID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxUserID, userID)
}

func WithRole(ctx context.Context, role string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxRole, role)
}

// WithVendorID injects the vendor scope for vendor staff.
func WithVendorID(ctx context.Context, vendorID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxVendorID, vendorID)
}
