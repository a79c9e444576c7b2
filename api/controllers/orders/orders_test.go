package orders

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/unicampus/campus-backend/api/middleware"
	internalorders "github.com/unicampus/campus-backend/internal/orders"
	"github.com/unicampus/campus-backend/pkg/enums"
	pkgerrors "github.com/unicampus/campus-backend/pkg/errors"
	"github.com/unicampus/campus-backend/pkg/pagination"
)

type stubOrdersService struct {
	internalorders.Service

	lastStudentID uuid.UUID
	lastVendorID  uuid.UUID
	lastStatus    *enums.OrderStatus
	lastParams    pagination.Params
	lastActor     internalorders.Actor
	lastOrderID   uuid.UUID
	lastQR        string
	lastReason    string
	err           error
}

func (s *stubOrdersService) ListStudentOrders(ctx context.Context, studentID uuid.UUID, status *enums.OrderStatus, params pagination.Params) (*internalorders.OrderList, error) {
	s.lastStudentID = studentID
	s.lastStatus = status
	s.lastParams = params
	return &internalorders.OrderList{}, s.err
}

func (s *stubOrdersService) ListVendorOrders(ctx context.Context, vendorID uuid.UUID, status *enums.OrderStatus, params pagination.Params) (*internalorders.OrderList, error) {
	s.lastVendorID = vendorID
	s.lastStatus = status
	s.lastParams = params
	return &internalorders.OrderList{}, s.err
}

func (s *stubOrdersService) CancelByStudent(ctx context.Context, studentID, orderID uuid.UUID) (*internalorders.OrderDTO, error) {
	s.lastStudentID = studentID
	s.lastOrderID = orderID
	if s.err != nil {
		return nil, s.err
	}
	return &internalorders.OrderDTO{ID: orderID, Status: enums.OrderStatusCancelled}, nil
}

func (s *stubOrdersService) Accept(ctx context.Context, actor internalorders.Actor, orderID uuid.UUID) (*internalorders.OrderDTO, error) {
	s.lastActor = actor
	s.lastOrderID = orderID
	if s.err != nil {
		return nil, s.err
	}
	return &internalorders.OrderDTO{ID: orderID, Status: enums.OrderStatusAccepted}, nil
}

func (s *stubOrdersService) Complete(ctx context.Context, actor internalorders.Actor, orderID uuid.UUID, qrCode string) (*internalorders.OrderDTO, error) {
	s.lastActor = actor
	s.lastOrderID = orderID
	s.lastQR = qrCode
	if s.err != nil {
		return nil, s.err
	}
	return &internalorders.OrderDTO{ID: orderID, Status: enums.OrderStatusCompleted, CompletedAt: ptrTime(time.Now())}, nil
}

func (s *stubOrdersService) CancelByVendor(ctx context.Context, actor internalorders.Actor, orderID uuid.UUID, reason string) (*internalorders.OrderDTO, error) {
	s.lastActor = actor
	s.lastOrderID = orderID
	s.lastReason = reason
	return &internalorders.OrderDTO{ID: orderID, Status: enums.OrderStatusCancelled}, s.err
}

func ptrTime(t time.Time) *time.Time { return &t }

func withPrincipal(req *http.Request, userID uuid.UUID, role enums.UserRole, vendorID *uuid.UUID) *http.Request {
	ctx := middleware.WithUserID(req.Context(), userID.String())
	ctx = middleware.WithRole(ctx, string(role))
	if vendorID != nil {
		ctx = middleware.WithVendorID(ctx, vendorID.String())
	}
	return req.WithContext(ctx)
}

func withOrderParam(req *http.Request, orderID uuid.UUID) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("orderId", orderID.String())
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestStudentListParsesStatusAndLimit(t *testing.T) {
	svc := &stubOrdersService{}
	studentID := uuid.New()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders?status=ready&limit=10&cursor=abc", nil)
	req = withPrincipal(req, studentID, enums.UserRoleStudent, nil)
	rec := httptest.NewRecorder()
	StudentList(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.lastStudentID != studentID {
		t.Fatalf("expected student %s got %s", studentID, svc.lastStudentID)
	}
	if svc.lastStatus == nil || *svc.lastStatus != enums.OrderStatusReady {
		t.Fatalf("expected ready status filter, got %v", svc.lastStatus)
	}
	if svc.lastParams.Limit != 10 || svc.lastParams.Cursor != "abc" {
		t.Fatalf("unexpected params %+v", svc.lastParams)
	}
}

func TestStudentListRejectsUnknownStatus(t *testing.T) {
	svc := &stubOrdersService{}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders?status=shipped", nil)
	req = withPrincipal(req, uuid.New(), enums.UserRoleStudent, nil)
	rec := httptest.NewRecorder()
	StudentList(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestStudentListRequiresPrincipal(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	rec := httptest.NewRecorder()
	StudentList(&stubOrdersService{}, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
}

func TestStudentCancelPassesOrder(t *testing.T) {
	svc := &stubOrdersService{}
	studentID := uuid.New()
	orderID := uuid.New()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/"+orderID.String()+"/cancel", nil)
	req = withOrderParam(withPrincipal(req, studentID, enums.UserRoleStudent, nil), orderID)
	rec := httptest.NewRecorder()
	StudentCancel(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if svc.lastOrderID != orderID || svc.lastStudentID != studentID {
		t.Fatalf("unexpected call student=%s order=%s", svc.lastStudentID, svc.lastOrderID)
	}
}

func TestStudentCancelStateConflict(t *testing.T) {
	svc := &stubOrdersService{err: pkgerrors.New(pkgerrors.CodeStateConflict, "order already accepted")}
	orderID := uuid.New()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/"+orderID.String()+"/cancel", nil)
	req = withOrderParam(withPrincipal(req, uuid.New(), enums.UserRoleStudent, nil), orderID)
	rec := httptest.NewRecorder()
	StudentCancel(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", rec.Code)
	}
}

func TestVendorListUsesVendorScope(t *testing.T) {
	svc := &stubOrdersService{}
	vendorID := uuid.New()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/vendor/orders", nil)
	req = withPrincipal(req, uuid.New(), enums.UserRoleVendorStaff, &vendorID)
	rec := httptest.NewRecorder()
	VendorList(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if svc.lastVendorID != vendorID {
		t.Fatalf("expected vendor %s got %s", vendorID, svc.lastVendorID)
	}
	if svc.lastStatus != nil {
		t.Fatalf("expected no status filter")
	}
	if svc.lastParams.Limit != pagination.DefaultLimit {
		t.Fatalf("expected default limit, got %d", svc.lastParams.Limit)
	}
}

func TestVendorAcceptWithoutVendorIsForbidden(t *testing.T) {
	svc := &stubOrdersService{}
	orderID := uuid.New()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/vendor/orders/"+orderID.String()+"/accept", nil)
	req = withOrderParam(withPrincipal(req, uuid.New(), enums.UserRoleVendorStaff, nil), orderID)
	rec := httptest.NewRecorder()
	VendorAccept(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", rec.Code)
	}
	if svc.lastOrderID != uuid.Nil {
		t.Fatalf("service must not be called")
	}
}

func TestVendorAcceptBuildsActor(t *testing.T) {
	svc := &stubOrdersService{}
	vendorID := uuid.New()
	userID := uuid.New()
	orderID := uuid.New()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/vendor/orders/"+orderID.String()+"/accept", nil)
	req = withOrderParam(withPrincipal(req, userID, enums.UserRoleVendorStaff, &vendorID), orderID)
	rec := httptest.NewRecorder()
	VendorAccept(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if svc.lastActor.UserID != userID || svc.lastActor.VendorID == nil || *svc.lastActor.VendorID != vendorID {
		t.Fatalf("unexpected actor %+v", svc.lastActor)
	}

	var envelope struct {
		Data internalorders.OrderDTO `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Data.Status != enums.OrderStatusAccepted {
		t.Fatalf("expected accepted got %s", envelope.Data.Status)
	}
}

func TestVendorCompleteRequiresQRCode(t *testing.T) {
	svc := &stubOrdersService{}
	vendorID := uuid.New()
	orderID := uuid.New()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/vendor/orders/"+orderID.String()+"/complete", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")
	req = withOrderParam(withPrincipal(req, uuid.New(), enums.UserRoleVendorStaff, &vendorID), orderID)
	rec := httptest.NewRecorder()
	VendorComplete(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestVendorCompleteForwardsQRCode(t *testing.T) {
	svc := &stubOrdersService{}
	vendorID := uuid.New()
	orderID := uuid.New()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/vendor/orders/"+orderID.String()+"/complete", bytes.NewBufferString(`{"qr_code":"QR-123"}`))
	req.Header.Set("Content-Type", "application/json")
	req = withOrderParam(withPrincipal(req, uuid.New(), enums.UserRoleVendorStaff, &vendorID), orderID)
	rec := httptest.NewRecorder()
	VendorComplete(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.lastQR != "QR-123" {
		t.Fatalf("expected qr forwarded, got %q", svc.lastQR)
	}
}

func TestVendorCancelTrimsReason(t *testing.T) {
	svc := &stubOrdersService{}
	vendorID := uuid.New()
	orderID := uuid.New()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/vendor/orders/"+orderID.String()+"/cancel", bytes.NewBufferString(`{"reason":"  out of stock "}`))
	req.Header.Set("Content-Type", "application/json")
	req = withOrderParam(withPrincipal(req, uuid.New(), enums.UserRoleVendorStaff, &vendorID), orderID)
	rec := httptest.NewRecorder()
	VendorCancel(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if svc.lastReason != "out of stock" {
		t.Fatalf("unexpected reason %q", svc.lastReason)
	}
}

func TestNilServiceIsInternalError(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	rec := httptest.NewRecorder()
	StudentList(nil, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", rec.Code)
	}
}
