package orders

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/unicampus/campus-backend/internal/feed"
	"github.com/unicampus/campus-backend/pkg/db/models"
	"github.com/unicampus/campus-backend/pkg/enums"
	pkgerrors "github.com/unicampus/campus-backend/pkg/errors"
	"github.com/unicampus/campus-backend/pkg/logger"
	"github.com/unicampus/campus-backend/pkg/outbox"
	"github.com/unicampus/campus-backend/pkg/outbox/payloads"
	"github.com/unicampus/campus-backend/pkg/pagination"
)

// ReasonPickupExpired is recorded when the pickup deadline passes unclaimed.
const ReasonPickupExpired = "pickup_expired"

const maxCancelReasonLength = 500

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Actor identifies who is moving an order. A zero UserID is the system.
type Actor struct {
	UserID   uuid.UUID
	Role     enums.UserRole
	VendorID *uuid.UUID
}

// Service exposes the student and vendor order operations.
type Service interface {
	ListStudentOrders(ctx context.Context, studentID uuid.UUID, status *enums.OrderStatus, params pagination.Params) (*OrderList, error)
	GetStudentOrder(ctx context.Context, studentID, orderID uuid.UUID) (*OrderDTO, error)
	CancelByStudent(ctx context.Context, studentID, orderID uuid.UUID) (*OrderDTO, error)

	ListVendorOrders(ctx context.Context, vendorID uuid.UUID, status *enums.OrderStatus, params pagination.Params) (*OrderList, error)
	GetVendorOrder(ctx context.Context, vendorID, orderID uuid.UUID) (*OrderDTO, error)
	Accept(ctx context.Context, actor Actor, orderID uuid.UUID) (*OrderDTO, error)
	MarkReady(ctx context.Context, actor Actor, orderID uuid.UUID) (*OrderDTO, error)
	Complete(ctx context.Context, actor Actor, orderID uuid.UUID, qrCode string) (*OrderDTO, error)
	CancelByVendor(ctx context.Context, actor Actor, orderID uuid.UUID, reason string) (*OrderDTO, error)

	ExpireOverdue(ctx context.Context, now time.Time, limit int) (int, error)
}

type ServiceParams struct {
	Repo   Repository
	Tx     txRunner
	Outbox outboxPublisher
	Feed   feed.Publisher
	Logger *logger.Logger
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
	feed   feed.Publisher
	logg   *logger.Logger
	now    func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		repo:   params.Repo,
		tx:     params.Tx,
		outbox: params.Outbox,
		feed:   params.Feed,
		logg:   params.Logger,
		now:    time.Now,
	}, nil
}

type transitionInput struct {
	orderID uuid.UUID
	to      enums.OrderStatus
	actor   Actor
	reason  string
	qrCode  string
	// authorize rejects actors that may not touch the order
	authorize func(order *models.CampusOrder) error
	// from restricts the allowed source states beyond the state machine
	from []enums.OrderStatus
}

func (s *service) ListStudentOrders(ctx context.Context, studentID uuid.UUID, status *enums.OrderStatus, params pagination.Params) (*OrderList, error) {
	return s.list(ctx, ListFilter{StudentID: &studentID, Status: status}, params, true)
}

func (s *service) ListVendorOrders(ctx context.Context, vendorID uuid.UUID, status *enums.OrderStatus, params pagination.Params) (*OrderList, error) {
	return s.list(ctx, ListFilter{VendorID: &vendorID, Status: status}, params, false)
}

func (s *service) list(ctx context.Context, filter ListFilter, params pagination.Params, includeQR bool) (*OrderList, error) {
	if filter.Status != nil && !filter.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter")
	}
	if _, err := pagination.Decode(pagination.KindOrders, params.Cursor); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, next, err := s.repo.ListOrders(ctx, filter, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list orders")
	}
	list := &OrderList{Orders: make([]OrderDTO, 0, len(rows)), NextCursor: next}
	for _, row := range rows {
		list.Orders = append(list.Orders, FromModel(row, includeQR))
	}
	return list, nil
}

func (s *service) GetStudentOrder(ctx context.Context, studentID, orderID uuid.UUID) (*OrderDTO, error) {
	order, err := s.load(ctx, s.repo, orderID)
	if err != nil {
		return nil, err
	}
	if order.StudentID != studentID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	dto := FromModel(*order, true)
	return &dto, nil
}

func (s *service) GetVendorOrder(ctx context.Context, vendorID, orderID uuid.UUID) (*OrderDTO, error) {
	order, err := s.load(ctx, s.repo, orderID)
	if err != nil {
		return nil, err
	}
	if order.VendorID != vendorID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to vendor")
	}
	dto := FromModel(*order, false)
	return &dto, nil
}

func (s *service) CancelByStudent(ctx context.Context, studentID, orderID uuid.UUID) (*OrderDTO, error) {
	order, err := s.transition(ctx, transitionInput{
		orderID: orderID,
		to:      enums.OrderStatusCancelled,
		actor:   Actor{UserID: studentID, Role: enums.UserRoleStudent},
		reason:  "cancelled_by_student",
		from:    []enums.OrderStatus{enums.OrderStatusPlaced},
		authorize: func(order *models.CampusOrder) error {
			if order.StudentID != studentID {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	dto := FromModel(*order, true)
	return &dto, nil
}

func (s *service) Accept(ctx context.Context, actor Actor, orderID uuid.UUID) (*OrderDTO, error) {
	return s.vendorTransition(ctx, transitionInput{orderID: orderID, to: enums.OrderStatusAccepted, actor: actor})
}

func (s *service) MarkReady(ctx context.Context, actor Actor, orderID uuid.UUID) (*OrderDTO, error) {
	return s.vendorTransition(ctx, transitionInput{orderID: orderID, to: enums.OrderStatusReady, actor: actor})
}

func (s *service) Complete(ctx context.Context, actor Actor, orderID uuid.UUID, qrCode string) (*OrderDTO, error) {
	qrCode = strings.TrimSpace(qrCode)
	if qrCode == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "qr_code is required")
	}
	return s.vendorTransition(ctx, transitionInput{orderID: orderID, to: enums.OrderStatusCompleted, actor: actor, qrCode: qrCode})
}

func (s *service) CancelByVendor(ctx context.Context, actor Actor, orderID uuid.UUID, reason string) (*OrderDTO, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reason is required")
	}
	if len(reason) > maxCancelReasonLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reason is too long")
	}
	return s.vendorTransition(ctx, transitionInput{orderID: orderID, to: enums.OrderStatusCancelled, actor: actor, reason: reason})
}

func (s *service) vendorTransition(ctx context.Context, input transitionInput) (*OrderDTO, error) {
	if input.actor.VendorID == nil || *input.actor.VendorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "vendor context missing")
	}
	vendorID := *input.actor.VendorID
	input.authorize = func(order *models.CampusOrder) error {
		if order.VendorID != vendorID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to vendor")
		}
		return nil
	}
	order, err := s.transition(ctx, input)
	if err != nil {
		return nil, err
	}
	dto := FromModel(*order, false)
	return &dto, nil
}

// ExpireOverdue cancels open orders past their pickup deadline. Orders that
// moved concurrently are skipped; other failures are collected.
func (s *service) ExpireOverdue(ctx context.Context, now time.Time, limit int) (int, error) {
	if limit <= 0 {
		limit = 100
	}
	overdue, err := s.repo.ListOverdue(ctx, now, limit)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list overdue orders")
	}

	var (
		expired int
		errs    error
	)
	for _, order := range overdue {
		_, err := s.transition(ctx, transitionInput{
			orderID: order.ID,
			to:      enums.OrderStatusCancelled,
			reason:  ReasonPickupExpired,
		})
		if err != nil {
			if pkgerrors.CodeOf(err) == pkgerrors.CodeStateConflict {
				continue
			}
			errs = multierr.Append(errs, fmt.Errorf("expire order %s: %w", order.ID, err))
			continue
		}
		expired++
	}
	return expired, errs
}

func (s *service) transition(ctx context.Context, input transitionInput) (*models.CampusOrder, error) {
	if input.orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	var (
		updated *models.CampusOrder
		from    enums.OrderStatus
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.load(ctx, repo, input.orderID)
		if err != nil {
			return err
		}
		if input.authorize != nil {
			if err := input.authorize(order); err != nil {
				return err
			}
		}
		from = order.Status
		if !from.CanTransition(input.to) || !allowedFrom(input.from, from) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("order cannot move from %s to %s", from, input.to))
		}
		if input.to == enums.OrderStatusCompleted &&
			subtle.ConstantTimeCompare([]byte(order.QRCode), []byte(input.qrCode)) != 1 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "qr code does not match order")
		}

		now := s.now().UTC()
		updates := timestampUpdates(input.to, now)
		if input.to == enums.OrderStatusCancelled {
			reason := input.reason
			updates["cancel_reason"] = reason
			order.CancelReason = &reason
		}
		ok, err := repo.Transition(ctx, order.ID, from, input.to, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update order status")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order was updated by another request")
		}
		applyTimestamps(order, input.to, now)
		order.Status = input.to

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateCampusOrder,
			AggregateID:   order.ID,
			Actor:         buildActor(input.actor),
			Data: payloads.OrderStatusChangedEvent{
				OrderID:   order.ID,
				StudentID: order.StudentID,
				VendorID:  order.VendorID,
				From:      from,
				To:        input.to,
				Reason:    input.reason,
				ChangedAt: now,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit order status event")
		}
		updated = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	studentID, vendorID := updated.StudentID, updated.VendorID
	feed.PublishQuietly(ctx, s.feed, s.logg, feed.Change{
		Table:     feed.TableCampusOrders,
		Action:    feed.ActionUpdate,
		RowID:     updated.ID,
		StudentID: &studentID,
		VendorID:  &vendorID,
	})
	if s.logg != nil {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"order_id": updated.ID.String(),
			"from":     from,
			"to":       updated.Status,
		}), "order.transitioned")
	}
	return updated, nil
}

func (s *service) load(ctx context.Context, repo Repository, orderID uuid.UUID) (*models.CampusOrder, error) {
	order, err := repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}
	return order, nil
}

func allowedFrom(allowed []enums.OrderStatus, current enums.OrderStatus) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, status := range allowed {
		if status == current {
			return true
		}
	}
	return false
}

func timestampUpdates(to enums.OrderStatus, now time.Time) map[string]any {
	switch to {
	case enums.OrderStatusAccepted:
		return map[string]any{"accepted_at": now}
	case enums.OrderStatusReady:
		return map[string]any{"ready_at": now}
	case enums.OrderStatusCompleted:
		return map[string]any{"completed_at": now}
	case enums.OrderStatusCancelled:
		return map[string]any{"cancelled_at": now}
	default:
		return map[string]any{}
	}
}

func applyTimestamps(order *models.CampusOrder, to enums.OrderStatus, now time.Time) {
	switch to {
	case enums.OrderStatusAccepted:
		order.AcceptedAt = &now
	case enums.OrderStatusReady:
		order.ReadyAt = &now
	case enums.OrderStatusCompleted:
		order.CompletedAt = &now
	case enums.OrderStatusCancelled:
		order.CancelledAt = &now
	}
	order.UpdatedAt = now
}

func buildActor(actor Actor) *outbox.ActorRef {
	if actor.UserID == uuid.Nil {
		return nil
	}
	return &outbox.ActorRef{
		UserID:   actor.UserID,
		VendorID: actor.VendorID,
		Role:     string(actor.Role),
	}
}
