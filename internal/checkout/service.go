package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/unicampus/campus-backend/internal/checkout/helpers"
	"github.com/unicampus/campus-backend/internal/feed"
	"github.com/unicampus/campus-backend/internal/orders"
	"github.com/unicampus/campus-backend/pkg/checkout"
	"github.com/unicampus/campus-backend/pkg/config"
	"github.com/unicampus/campus-backend/pkg/db/models"
	"github.com/unicampus/campus-backend/pkg/enums"
	pkgerrors "github.com/unicampus/campus-backend/pkg/errors"
	"github.com/unicampus/campus-backend/pkg/logger"
	"github.com/unicampus/campus-backend/pkg/outbox"
	"github.com/unicampus/campus-backend/pkg/outbox/payloads"
	"github.com/unicampus/campus-backend/pkg/security"
)

const qrTokenBytes = 24

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type productLookup interface {
	FindProductsByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error)
}

type userLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// verifiedFlags stores the short-lived "checkout verified" marker per student.
type verifiedFlags interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Exists(ctx context.Context, key string) (bool, error)
	Del(ctx context.Context, keys ...string) error
	CheckoutVerifiedKey(userID string) string
}

// Service composes client carts into per-vendor orders.
type Service interface {
	Execute(ctx context.Context, studentID uuid.UUID, input CheckoutInput) (*CheckoutResult, error)
	Quote(ctx context.Context, items []checkout.Item) (*checkout.Composition, error)
	VerifyPIN(ctx context.Context, studentID uuid.UUID, pin string) error
}

type ServiceParams struct {
	Config   config.CheckoutConfig
	Tx       txRunner
	Orders   orders.Repository
	Products productLookup
	Users    userLookup
	Flags    verifiedFlags
	Outbox   outboxPublisher
	Feed     feed.Publisher
	Logger   *logger.Logger
}

type service struct {
	cfg      config.CheckoutConfig
	tx       txRunner
	orders   orders.Repository
	products productLookup
	users    userLookup
	flags    verifiedFlags
	outbox   outboxPublisher
	feed     feed.Publisher
	logg     *logger.Logger
	now      func() time.Time
	qrToken  func() (string, error)
}

// NewService builds the checkout service.
func NewService(params ServiceParams) (Service, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Products == nil && params.Config.VerifyPrices {
		return nil, fmt.Errorf("product lookup required when price verification is enabled")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("user lookup required")
	}
	if params.Flags == nil {
		return nil, fmt.Errorf("verified flag store required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Config.PickupWindow <= 0 {
		return nil, fmt.Errorf("pickup window must be positive")
	}
	return &service{
		cfg:      params.Config,
		tx:       params.Tx,
		orders:   params.Orders,
		products: params.Products,
		users:    params.Users,
		flags:    params.Flags,
		outbox:   params.Outbox,
		feed:     params.Feed,
		logg:     params.Logger,
		now:      time.Now,
		qrToken:  func() (string, error) { return security.RandomToken(qrTokenBytes) },
	}, nil
}

func (s *service) Quote(ctx context.Context, items []checkout.Item) (*checkout.Composition, error) {
	kept, err := checkout.NormalizeItems(items, s.cfg.MaxItems)
	if err != nil {
		return nil, err
	}
	comp := checkout.Compose(kept)
	return &comp, nil
}

func (s *service) Execute(ctx context.Context, studentID uuid.UUID, input CheckoutInput) (*CheckoutResult, error) {
	if studentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "student id required")
	}
	if !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}
	items, err := checkout.NormalizeItems(input.Items, s.cfg.MaxItems)
	if err != nil {
		return nil, err
	}
	if err := s.verifyCatalog(ctx, items); err != nil {
		return nil, err
	}
	pinGated, err := s.requirePINVerified(ctx, studentID)
	if err != nil {
		return nil, err
	}

	comp := checkout.Compose(items)
	checkoutID := uuid.New()
	deadline := s.now().UTC().Add(s.cfg.PickupWindow)
	notes := trimmedNotes(input.Notes)

	ctx = s.withFields(ctx, map[string]any{
		"checkout_id": checkoutID.String(),
		"student_id":  studentID.String(),
		"vendors":     len(comp.Groups),
	})

	result := &CheckoutResult{
		CheckoutID: checkoutID,
		Orders:     make([]orders.OrderDTO, 0, len(comp.Groups)),
		Subtotal:   comp.Subtotal,
		ServiceFee: comp.ServiceFee,
		Total:      comp.Total,
	}
	persisted := make([]uuid.UUID, 0, len(comp.Groups))
	for _, group := range comp.Groups {
		order, err := s.persistGroup(ctx, checkoutID, studentID, input.PaymentMethod, notes, deadline, group)
		if err != nil {
			if s.logg != nil {
				s.logg.Error(s.logg.WithField(ctx, "failed_vendor_id", group.VendorID.String()), "checkout.vendor_order_failed", err)
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "checkout could not place every vendor order").
				WithDetails(map[string]any{
					detailFailedVendor:    group.VendorID,
					detailPersistedOrders: persisted,
				})
		}
		persisted = append(persisted, order.ID)
		result.Orders = append(result.Orders, orders.FromModel(*order, true))

		orderStudent, orderVendor := order.StudentID, order.VendorID
		feed.PublishQuietly(ctx, s.feed, s.logg, feed.Change{
			Table:     feed.TableCampusOrders,
			Action:    feed.ActionInsert,
			RowID:     order.ID,
			StudentID: &orderStudent,
			VendorID:  &orderVendor,
		})
	}

	if pinGated {
		if err := s.flags.Del(ctx, s.flags.CheckoutVerifiedKey(studentID.String())); err != nil && s.logg != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "checkout.pin_flag_consume_failed")
		}
	}
	if s.logg != nil {
		s.logg.Info(s.logg.WithField(ctx, "total", comp.Total.StringFixed(2)), "checkout.completed")
	}
	return result, nil
}

func (s *service) VerifyPIN(ctx context.Context, studentID uuid.UUID, pin string) error {
	if !security.ValidPIN(pin) {
		return pkgerrors.New(pkgerrors.CodeValidation, "pin must be 4 to 6 digits")
	}
	user, err := s.users.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user")
	}
	if user.CheckoutPINHash == nil || *user.CheckoutPINHash == "" {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "checkout pin is not set")
	}
	ok, err := security.VerifyPassword(pin, *user.CheckoutPINHash)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify checkout pin")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid checkout pin")
	}
	if err := s.flags.Set(ctx, s.flags.CheckoutVerifiedKey(studentID.String()), "1", s.cfg.PINTTL); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store checkout verification")
	}
	return nil
}

func (s *service) verifyCatalog(ctx context.Context, items []checkout.Item) error {
	if !s.cfg.VerifyPrices {
		return nil
	}
	products, err := s.products.FindProductsByIDs(ctx, helpers.ProductIDs(items))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart products")
	}
	if err := helpers.VerifyAgainstCatalog(items, products); err != nil {
		return err
	}
	helpers.ApplyCatalogNames(items, products)
	return nil
}

// requirePINVerified reports whether the student is PIN gated and fails when
// the gate has not been passed.
func (s *service) requirePINVerified(ctx context.Context, studentID uuid.UUID) (bool, error) {
	if !s.cfg.RequirePIN {
		return false, nil
	}
	user, err := s.users.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user")
	}
	if user.CheckoutPINHash == nil || *user.CheckoutPINHash == "" {
		return false, nil
	}
	verified, err := s.flags.Exists(ctx, s.flags.CheckoutVerifiedKey(studentID.String()))
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check checkout verification")
	}
	if !verified {
		return false, pkgerrors.New(pkgerrors.CodeForbidden, "checkout pin verification required")
	}
	return true, nil
}

func (s *service) persistGroup(
	ctx context.Context,
	checkoutID, studentID uuid.UUID,
	method enums.PaymentMethod,
	notes *string,
	deadline time.Time,
	group checkout.Group,
) (*models.CampusOrder, error) {
	qr, err := s.qrToken()
	if err != nil {
		return nil, fmt.Errorf("generate qr token: %w", err)
	}

	order := &models.CampusOrder{
		ID:             uuid.New(),
		CheckoutID:     checkoutID,
		StudentID:      studentID,
		VendorID:       group.VendorID,
		Subtotal:       group.Subtotal,
		ServiceFee:     group.ServiceFee,
		TotalPrice:     group.Total,
		PaymentMethod:  method,
		QRCode:         qr,
		Notes:          notes,
		PickupDeadline: deadline,
		Status:         enums.OrderStatusPlaced,
		Items:          make([]models.CampusOrderItem, 0, len(group.Lines)),
	}
	for _, line := range group.Lines {
		order.Items = append(order.Items, models.CampusOrderItem{
			ID:                 uuid.New(),
			OrderID:            order.ID,
			ProductID:          line.ProductID,
			ProductName:        line.Name,
			Quantity:           line.Quantity,
			UnitPrice:          line.Price,
			DiscountPercentage: line.DiscountPercentage,
			Subtotal:           line.Subtotal,
		})
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.orders.WithTx(tx).CreateOrder(ctx, order); err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		event := outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateCampusOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: studentID, Role: string(enums.UserRoleStudent)},
			Data: payloads.OrderCreatedEvent{
				OrderID:        order.ID,
				CheckoutID:     checkoutID,
				StudentID:      studentID,
				VendorID:       order.VendorID,
				TotalPrice:     order.TotalPrice,
				ItemCount:      len(order.Items),
				PaymentMethod:  method,
				PickupDeadline: deadline,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return fmt.Errorf("emit order created: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (s *service) withFields(ctx context.Context, fields map[string]any) context.Context {
	if s.logg == nil {
		return ctx
	}
	return s.logg.WithFields(ctx, fields)
}

func trimmedNotes(notes *string) *string {
	if notes == nil {
		return nil
	}
	value := strings.TrimSpace(*notes)
	if value == "" {
		return nil
	}
	return &value
}
