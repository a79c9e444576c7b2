package orders

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/unicampus/campus-backend/api/middleware"
	"github.com/unicampus/campus-backend/api/responses"
	"github.com/unicampus/campus-backend/api/validators"
	internalorders "github.com/unicampus/campus-backend/internal/orders"
	"github.com/unicampus/campus-backend/pkg/enums"
	pkgerrors "github.com/unicampus/campus-backend/pkg/errors"
	"github.com/unicampus/campus-backend/pkg/logger"
	"github.com/unicampus/campus-backend/pkg/pagination"
)

type completeOrderRequest struct {
	QRCode string `json:"qr_code" validate:"required,max=128"`
}

type vendorCancelRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

// StudentList pages through the caller's orders, newest first. ?status= filters.
func StudentList(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		p, err := middleware.PrincipalFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, params, err := listParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListStudentOrders(r.Context(), p.UserID, status, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func StudentDetail(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		p, err := middleware.PrincipalFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := validators.ParseURLParamUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.GetStudentOrder(r.Context(), p.UserID, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// StudentCancel cancels an order that the vendor has not accepted yet.
func StudentCancel(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		p, err := middleware.PrincipalFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := validators.ParseURLParamUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.CancelByStudent(r.Context(), p.UserID, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

func VendorList(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		actor, err := vendorActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, params, err := listParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListVendorOrders(r.Context(), *actor.VendorID, status, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func VendorDetail(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		actor, err := vendorActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := validators.ParseURLParamUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.GetVendorOrder(r.Context(), *actor.VendorID, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// VendorAccept moves a placed order to accepted.
func VendorAccept(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return vendorTransition(svc, logg, func(ctx context.Context, actor internalorders.Actor, orderID uuid.UUID, _ *http.Request) (*internalorders.OrderDTO, error) {
		return svc.Accept(ctx, actor, orderID)
	})
}

// VendorReady moves an accepted order to ready for pickup.
func VendorReady(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return vendorTransition(svc, logg, func(ctx context.Context, actor internalorders.Actor, orderID uuid.UUID, _ *http.Request) (*internalorders.OrderDTO, error) {
		return svc.MarkReady(ctx, actor, orderID)
	})
}

// VendorComplete hands the order over; the scanned QR code must match.
func VendorComplete(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return vendorTransition(svc, logg, func(ctx context.Context, actor internalorders.Actor, orderID uuid.UUID, r *http.Request) (*internalorders.OrderDTO, error) {
		var body completeOrderRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			return nil, err
		}
		return svc.Complete(ctx, actor, orderID, body.QRCode)
	})
}

func VendorCancel(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return vendorTransition(svc, logg, func(ctx context.Context, actor internalorders.Actor, orderID uuid.UUID, r *http.Request) (*internalorders.OrderDTO, error) {
		var body vendorCancelRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			return nil, err
		}
		return svc.CancelByVendor(ctx, actor, orderID, strings.TrimSpace(body.Reason))
	})
}

type transitionFunc func(ctx context.Context, actor internalorders.Actor, orderID uuid.UUID, r *http.Request) (*internalorders.OrderDTO, error)

func vendorTransition(svc internalorders.Service, logg *logger.Logger, apply transitionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		actor, err := vendorActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := validators.ParseURLParamUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := apply(r.Context(), actor, orderID, r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

func vendorActor(r *http.Request) (internalorders.Actor, error) {
	p, err := middleware.PrincipalFromContext(r.Context())
	if err != nil {
		return internalorders.Actor{}, err
	}
	if p.VendorID == nil {
		return internalorders.Actor{}, pkgerrors.New(pkgerrors.CodeForbidden, "vendor context missing")
	}
	return internalorders.Actor{UserID: p.UserID, Role: p.Role, VendorID: p.VendorID}, nil
}

func listParams(r *http.Request) (*enums.OrderStatus, pagination.Params, error) {
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return nil, pagination.Params{}, err
	}
	params := pagination.Params{
		Limit:  limit,
		Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
	}

	raw := strings.TrimSpace(r.URL.Query().Get("status"))
	if raw == "" {
		return nil, params, nil
	}
	status, err := enums.ParseOrderStatus(raw)
	if err != nil {
		return nil, pagination.Params{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter")
	}
	return &status, params, nil
}
