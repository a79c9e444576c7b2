package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/unicampus/campus-backend/internal/feed"
	"github.com/unicampus/campus-backend/internal/orders"
	"github.com/unicampus/campus-backend/pkg/db/models"
	"github.com/unicampus/campus-backend/pkg/enums"
	"github.com/unicampus/campus-backend/pkg/logger"
	"github.com/unicampus/campus-backend/pkg/outbox"
	"github.com/unicampus/campus-backend/pkg/outbox/idempotency"
	"github.com/unicampus/campus-backend/pkg/outbox/payloads"
	"github.com/unicampus/campus-backend/pkg/outbox/registry"
)

const consumerName = "campus-notifications"

type repository interface {
	Create(ctx context.Context, notification *models.Notification) error
}

type idempotencyGuard interface {
	Begin(ctx context.Context, consumer string, eventID uuid.UUID) (idempotency.State, error)
	Complete(ctx context.Context, consumer string, eventID uuid.UUID) error
	Release(ctx context.Context, consumer string, eventID uuid.UUID) error
}

// Message is the part of a Pub/Sub message the consumer reads.
type Message struct {
	ID         string
	Attributes map[string]string
	Data       []byte
}

type ConsumerParams struct {
	Repo          repository
	Subscriptions []*pubsub.Subscriber
	Idempotency   idempotencyGuard
	Feed          feed.Publisher
	Logger        *logger.Logger
}

// Consumer turns order and loyalty domain events into notifications.
type Consumer struct {
	repo          repository
	subscriptions []*pubsub.Subscriber
	decoders      *registry.Decoders
	idempotency   idempotencyGuard
	feed          feed.Publisher
	logg          *logger.Logger
}

// NewConsumer builds the notification consumer.
func NewConsumer(params ConsumerParams) (*Consumer, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if params.Idempotency == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		repo:          params.Repo,
		subscriptions: params.Subscriptions,
		decoders:      NewDecoders(),
		idempotency:   params.Idempotency,
		feed:          params.Feed,
		logg:          params.Logger,
	}, nil
}

// NewDecoders registers the payload decoders for every event the consumer handles.
func NewDecoders() *registry.Decoders {
	reg := registry.NewDecoders()
	registry.Register[payloads.OrderCreatedEvent](reg, enums.EventOrderCreated, 1)
	registry.Register[payloads.OrderStatusChangedEvent](reg, enums.EventOrderStatusChanged, 1)
	registry.Register[payloads.PointsAwardedEvent](reg, enums.EventPointsAwarded, 1)
	registry.Register[payloads.VoucherRedeemedEvent](reg, enums.EventVoucherRedeemed, 1)
	return reg
}

// Run receives from every subscription until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	if len(c.subscriptions) == 0 {
		return fmt.Errorf("at least one subscription required")
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs error
	)
	for _, sub := range c.subscriptions {
		wg.Add(1)
		go func(sub *pubsub.Subscriber) {
			defer wg.Done()
			err := sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
				result := c.Handle(ctx, Message{ID: msg.ID, Attributes: msg.Attributes, Data: msg.Data})
				if result.Nack {
					msg.Nack()
					return
				}
				msg.Ack()
			})
			if err != nil {
				mu.Lock()
				errs = multierr.Append(errs, err)
				mu.Unlock()
			}
		}(sub)
	}
	wg.Wait()
	return errs
}

// complete records the event as handled. A failure only shortens dedup to
// the claim lease, so it is logged rather than nacked.
func (c *Consumer) complete(ctx context.Context, eventID uuid.UUID) {
	if err := c.idempotency.Complete(ctx, consumerName, eventID); err != nil {
		c.logg.Error(ctx, "failed to mark event done", err)
	}
}

// ProcessResult tells the receive loop whether to ack or nack.
type ProcessResult struct {
	Ack  bool
	Nack bool
}

// Handle processes one message. Undecodable messages are acked so they do not
// redeliver forever; handler failures are nacked for retry.
func (c *Consumer) Handle(ctx context.Context, msg Message) ProcessResult {
	eventType := enums.OutboxEventType(msg.Attributes["event_type"])
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": string(eventType),
	})

	if !eventType.IsValid() {
		c.logg.Info(logCtx, "skipping unknown event")
		return ProcessResult{Ack: true}
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return ProcessResult{Ack: true}
	}
	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return ProcessResult{Ack: true}
	}
	decoded, err := c.decoders.Decode(eventType, envelope.Version, envelope.Data)
	if err != nil {
		c.logg.Error(logCtx, "failed to decode payload", err)
		return ProcessResult{Ack: true}
	}
	logCtx = c.logg.WithField(logCtx, "event_id", eventID.String())

	state, err := c.idempotency.Begin(ctx, consumerName, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return ProcessResult{Nack: true}
	}
	switch state {
	case idempotency.Done:
		c.logg.Info(logCtx, "event already processed")
		return ProcessResult{Ack: true}
	case idempotency.InFlight:
		c.logg.Info(logCtx, "event in flight elsewhere, retrying later")
		return ProcessResult{Nack: true}
	}

	notification := BuildNotification(decoded)
	if notification == nil {
		c.complete(logCtx, eventID)
		c.logg.Info(logCtx, "event produces no notification")
		return ProcessResult{Ack: true}
	}
	if err := c.repo.Create(ctx, notification); err != nil {
		c.logg.Error(logCtx, "notification handling failed", err)
		if err := c.idempotency.Release(ctx, consumerName, eventID); err != nil {
			c.logg.Warn(logCtx, "failed to release idempotency claim")
		}
		return ProcessResult{Nack: true}
	}
	c.complete(logCtx, eventID)

	feed.PublishQuietly(ctx, c.feed, c.logg, feed.Change{
		Table:    feed.TableNotifications,
		Action:   feed.ActionInsert,
		RowID:    notification.ID,
		UserID:   notification.UserID,
		VendorID: notification.VendorID,
	})
	c.logg.Info(logCtx, "notification created")
	return ProcessResult{Ack: true}
}

// BuildNotification maps a decoded domain payload to the row it produces.
func BuildNotification(payload interface{}) *models.Notification {
	switch p := payload.(type) {
	case payloads.OrderCreatedEvent:
		vendorID := p.VendorID
		return &models.Notification{
			ID:       uuid.New(),
			VendorID: &vendorID,
			Type:     enums.NotificationTypeOrderAlert,
			Title:    "New order",
			Message:  fmt.Sprintf("New order of %d item(s) totalling RM%s. Pickup by %s.", p.ItemCount, p.TotalPrice.StringFixed(2), p.PickupDeadline.Format("15:04")),
			Link:     stringPtr("/vendor/orders/" + p.OrderID.String()),
		}
	case payloads.OrderStatusChangedEvent:
		studentID := p.StudentID
		title, message := orderUpdateText(p)
		return &models.Notification{
			ID:      uuid.New(),
			UserID:  &studentID,
			Type:    enums.NotificationTypeOrderUpdate,
			Title:   title,
			Message: message,
			Link:    stringPtr("/orders/" + p.OrderID.String()),
		}
	case payloads.PointsAwardedEvent:
		userID := p.UserID
		return &models.Notification{
			ID:      uuid.New(),
			UserID:  &userID,
			Type:    enums.NotificationTypePoints,
			Title:   "Points earned",
			Message: fmt.Sprintf("You earned %d points for %s. Balance: %d.", p.Points, p.Activity, p.BalanceAfter),
			Link:    stringPtr("/me/points"),
		}
	case payloads.VoucherRedeemedEvent:
		userID := p.UserID
		return &models.Notification{
			ID:      uuid.New(),
			UserID:  &userID,
			Type:    enums.NotificationTypeVoucher,
			Title:   "Voucher redeemed",
			Message: fmt.Sprintf("%s redeemed for %d points. Show code %s at the counter.", p.Title, p.PointsSpent, p.Code),
			Link:    stringPtr("/me/vouchers"),
		}
	default:
		return nil
	}
}

func orderUpdateText(p payloads.OrderStatusChangedEvent) (string, string) {
	switch p.To {
	case enums.OrderStatusAccepted:
		return "Order accepted", "The vendor is preparing your order."
	case enums.OrderStatusReady:
		return "Order ready", "Your order is ready for pickup. Show your QR code at the counter."
	case enums.OrderStatusCompleted:
		return "Order completed", "Enjoy your meal!"
	case enums.OrderStatusCancelled:
		if p.Reason == orders.ReasonPickupExpired {
			return "Order expired", "Your order was cancelled because the pickup window passed."
		}
		if p.Reason != "" {
			return "Order cancelled", "Your order was cancelled: " + p.Reason
		}
		return "Order cancelled", "Your order was cancelled."
	default:
		return "Order updated", fmt.Sprintf("Your order is now %s.", p.To)
	}
}

func stringPtr(value string) *string {
	return &value
}
