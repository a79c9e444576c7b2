package orders

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/unicampus/campus-backend/internal/feed"
	"github.com/unicampus/campus-backend/pkg/db/dbtest"
	"github.com/unicampus/campus-backend/pkg/db/models"
	"github.com/unicampus/campus-backend/pkg/enums"
	pkgerrors "github.com/unicampus/campus-backend/pkg/errors"
	"github.com/unicampus/campus-backend/pkg/outbox"
	"github.com/unicampus/campus-backend/pkg/pagination"
)

type capturingFeed struct {
	mu      sync.Mutex
	changes []feed.Change
}

func (c *capturingFeed) Publish(ctx context.Context, change feed.Change) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.changes = append(c.changes, change)
	return nil
}

type fixture struct {
	db      *gorm.DB
	svc     *service
	feed    *capturingFeed
	student uuid.UUID
	vendor  uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := dbtest.Open(t, dbtest.CampusOrders, dbtest.CampusOrderItems, dbtest.OutboxEvents)
	captured := &capturingFeed{}
	svc, err := NewService(ServiceParams{
		Repo:   NewRepository(conn),
		Tx:     dbtest.Client(conn),
		Outbox: outbox.NewService(outbox.NewRepository(conn), nil),
		Feed:   captured,
	})
	require.NoError(t, err)
	return &fixture{db: conn, svc: svc.(*service), feed: captured, student: uuid.New(), vendor: uuid.New()}
}

func (f *fixture) placeOrder(t *testing.T, deadline time.Time) models.CampusOrder {
	t.Helper()
	orderID := uuid.New()
	order := models.CampusOrder{
		ID:             orderID,
		CheckoutID:     uuid.New(),
		StudentID:      f.student,
		VendorID:       f.vendor,
		Subtotal:       decimal.RequireFromString("108.00"),
		ServiceFee:     decimal.RequireFromString("4.00"),
		TotalPrice:     decimal.RequireFromString("112.00"),
		PaymentMethod:  enums.PaymentMethodCash,
		QRCode:         "QR-" + orderID.String()[:8],
		PickupDeadline: deadline,
		Status:         enums.OrderStatusPlaced,
		Items: []models.CampusOrderItem{{
			ID:                 uuid.New(),
			ProductID:          uuid.New(),
			ProductName:        "Nasi Goreng",
			Quantity:           1,
			UnitPrice:          decimal.RequireFromString("120.00"),
			DiscountPercentage: decimal.NewFromInt(10),
			Subtotal:           decimal.RequireFromString("108.00"),
		}},
	}
	require.NoError(t, NewRepository(f.db).CreateOrder(context.Background(), &order))
	return order
}

func (f *fixture) vendorActor() Actor {
	vendorID := f.vendor
	return Actor{UserID: uuid.New(), Role: enums.UserRoleVendorStaff, VendorID: &vendorID}
}

func (f *fixture) countEvents(t *testing.T) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.db.Model(&models.OutboxEvent{}).Where("event_type = ?", enums.EventOrderStatusChanged).Count(&count).Error)
	return count
}

func TestVendorHappyPath(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	order := f.placeOrder(t, time.Now().UTC().Add(time.Hour))
	actor := f.vendorActor()

	accepted, err := f.svc.Accept(ctx, actor, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusAccepted, accepted.Status)
	assert.NotNil(t, accepted.AcceptedAt)
	assert.Empty(t, accepted.QRCode)

	_, err = f.svc.MarkReady(ctx, actor, order.ID)
	require.NoError(t, err)

	_, err = f.svc.Complete(ctx, actor, order.ID, "wrong")
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.CodeOf(err))

	completed, err := f.svc.Complete(ctx, actor, order.ID, order.QRCode)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCompleted, completed.Status)

	stored, err := f.svc.GetStudentOrder(ctx, f.student, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCompleted, stored.Status)
	assert.Equal(t, order.QRCode, stored.QRCode)
	require.Len(t, stored.Items, 1)

	assert.Equal(t, int64(3), f.countEvents(t))
	require.Len(t, f.feed.changes, 3)
	assert.Equal(t, feed.TableCampusOrders, f.feed.changes[0].Table)
	assert.Equal(t, f.student, *f.feed.changes[0].StudentID)
}

func TestIllegalTransitionsAreStateConflicts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	order := f.placeOrder(t, time.Now().UTC().Add(time.Hour))
	actor := f.vendorActor()

	_, err := f.svc.MarkReady(ctx, actor, order.ID)
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.CodeOf(err))

	_, err = f.svc.CancelByVendor(ctx, actor, order.ID, "out of stock")
	require.NoError(t, err)

	_, err = f.svc.Accept(ctx, actor, order.ID)
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.CodeOf(err))
	assert.Equal(t, int64(1), f.countEvents(t))
}

func TestStudentCancelOnlyWhilePlaced(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	first := f.placeOrder(t, time.Now().UTC().Add(time.Hour))
	second := f.placeOrder(t, time.Now().UTC().Add(time.Hour))

	cancelled, err := f.svc.CancelByStudent(ctx, f.student, first.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelReason)

	_, err = f.svc.CancelByStudent(ctx, uuid.New(), second.ID)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))

	_, err = f.svc.Accept(ctx, f.vendorActor(), second.ID)
	require.NoError(t, err)
	_, err = f.svc.CancelByStudent(ctx, f.student, second.ID)
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.CodeOf(err))
}

func TestVendorScopeIsEnforced(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	order := f.placeOrder(t, time.Now().UTC().Add(time.Hour))
	otherVendor := uuid.New()

	_, err := f.svc.Accept(ctx, Actor{UserID: uuid.New(), Role: enums.UserRoleVendorStaff, VendorID: &otherVendor}, order.ID)
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.CodeOf(err))

	_, err = f.svc.Accept(ctx, Actor{UserID: uuid.New(), Role: enums.UserRoleVendorStaff}, order.ID)
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.CodeOf(err))

	_, err = f.svc.GetVendorOrder(ctx, otherVendor, order.ID)
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.CodeOf(err))
}

func TestConditionalUpdateLosesRace(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	order := f.placeOrder(t, time.Now().UTC().Add(time.Hour))

	repo := NewRepository(f.db)
	ok, err := repo.Transition(ctx, order.ID, enums.OrderStatusPlaced, enums.OrderStatusAccepted, nil)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Transition(ctx, order.ID, enums.OrderStatusPlaced, enums.OrderStatusAccepted, nil)
	require.NoError(t, err)
	assert.False(t, ok, "second writer must not move the order")
}

func TestExpireOverdue(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	now := time.Now().UTC()
	overdue := f.placeOrder(t, now.Add(-time.Minute))
	fresh := f.placeOrder(t, now.Add(time.Hour))

	expired, err := f.svc.ExpireOverdue(ctx, now, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	got, err := f.svc.GetStudentOrder(ctx, f.student, overdue.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCancelled, got.Status)
	require.NotNil(t, got.CancelReason)
	assert.Equal(t, ReasonPickupExpired, *got.CancelReason)

	still, err := f.svc.GetStudentOrder(ctx, f.student, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPlaced, still.Status)

	again, err := f.svc.ExpireOverdue(ctx, now, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, again)
}

func TestListStudentOrdersPaginates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	for i := 0; i < 3; i++ {
		f.placeOrder(t, time.Now().UTC().Add(time.Hour))
	}

	page, err := f.svc.ListStudentOrders(ctx, f.student, nil, pagination.Params{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, page.Orders, 2)
	assert.NotEmpty(t, page.NextCursor)

	rest, err := f.svc.ListStudentOrders(ctx, f.student, nil, pagination.Params{Limit: 2, Cursor: page.NextCursor})
	require.NoError(t, err)
	assert.Len(t, rest.Orders, 1)
	assert.Empty(t, rest.NextCursor)

	placed := enums.OrderStatusPlaced
	vendorPage, err := f.svc.ListVendorOrders(ctx, f.vendor, &placed, pagination.Params{})
	require.NoError(t, err)
	assert.Len(t, vendorPage.Orders, 3)

	_, err = f.svc.ListStudentOrders(ctx, f.student, nil, pagination.Params{Cursor: "%%%"})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))

	pointsCursor := pagination.Cursor{Kind: pagination.KindPoints, CreatedAt: time.Now(), ID: uuid.New()}.Encode()
	_, err = f.svc.ListStudentOrders(ctx, f.student, nil, pagination.Params{Cursor: pointsCursor})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}
