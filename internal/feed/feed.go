package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/unicampus/campus-backend/pkg/enums"
	"github.com/unicampus/campus-backend/pkg/logger"
)

const (
	TableCampusOrders  = "campus_orders"
	TableNotifications = "notifications"
	TableVouchers      = "voucher_redemptions"
	TableClubs         = "club_memberships"
	TablePoints        = "activity_points_history"

	ActionInsert = "INSERT"
	ActionUpdate = "UPDATE"
	ActionDelete = "DELETE"
)

// Change describes one row change fanned out to connected clients.
type Change struct {
	Table      string     `json:"table"`
	Action     string     `json:"action"`
	RowID      uuid.UUID  `json:"row_id"`
	StudentID  *uuid.UUID `json:"student_id,omitempty"`
	VendorID   *uuid.UUID `json:"vendor_id,omitempty"`
	UserID     *uuid.UUID `json:"user_id,omitempty"`
	OccurredAt time.Time  `json:"occurred_at"`
}

// Publisher announces committed row changes.
type Publisher interface {
	Publish(ctx context.Context, change Change) error
}

type channelPublisher interface {
	Publish(ctx context.Context, channel string, payload any) error
	FeedChannel() string
}

type channelSubscriber interface {
	Subscribe(ctx context.Context, channels ...string) (*goredis.PubSub, error)
	FeedChannel() string
}

// RedisPublisher publishes changes as JSON on the shared feed channel.
type RedisPublisher struct {
	client channelPublisher
	logg   *logger.Logger
	now    func() time.Time
}

func NewRedisPublisher(client channelPublisher, logg *logger.Logger) (*RedisPublisher, error) {
	if client == nil {
		return nil, errors.New("redis client required")
	}
	return &RedisPublisher{client: client, logg: logg, now: time.Now}, nil
}

func (p *RedisPublisher) Publish(ctx context.Context, change Change) error {
	if change.OccurredAt.IsZero() {
		change.OccurredAt = p.now().UTC()
	}
	payload, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("encode change: %w", err)
	}
	if err := p.client.Publish(ctx, p.client.FeedChannel(), payload); err != nil {
		return fmt.Errorf("publish change: %w", err)
	}
	return nil
}

// PublishQuietly logs instead of failing; feed delivery never undoes a commit.
func PublishQuietly(ctx context.Context, pub Publisher, logg *logger.Logger, change Change) {
	if pub == nil {
		return
	}
	if err := pub.Publish(ctx, change); err != nil && logg != nil {
		logg.Warn(logg.WithFields(ctx, map[string]any{
			"table":  change.Table,
			"row_id": change.RowID.String(),
			"error":  err.Error(),
		}), "feed.publish_failed")
	}
}

// Subscriber turns the Redis channel into a stream of decoded changes.
type Subscriber struct {
	client channelSubscriber
	logg   *logger.Logger
}

func NewSubscriber(client channelSubscriber, logg *logger.Logger) (*Subscriber, error) {
	if client == nil {
		return nil, errors.New("redis client required")
	}
	return &Subscriber{client: client, logg: logg}, nil
}

// Changes streams decoded changes until ctx ends. Undecodable messages are skipped.
func (s *Subscriber) Changes(ctx context.Context) (<-chan Change, error) {
	sub, err := s.client.Subscribe(ctx, s.client.FeedChannel())
	if err != nil {
		return nil, err
	}
	out := make(chan Change)
	go func() {
		defer close(out)
		defer sub.Close()
		messages := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				var change Change
				if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
					if s.logg != nil {
						s.logg.Warn(ctx, "feed.decode_failed")
					}
					continue
				}
				select {
				case out <- change:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Viewer is the signed-in principal a stream is filtered for.
type Viewer struct {
	UserID   uuid.UUID
	Role     enums.UserRole
	VendorID *uuid.UUID
}

// CanSee reports whether the change concerns the viewer.
func (v Viewer) CanSee(change Change) bool {
	if v.Role == enums.UserRoleAdmin {
		return true
	}
	if change.UserID != nil && *change.UserID == v.UserID {
		return true
	}
	if change.StudentID != nil && *change.StudentID == v.UserID {
		return true
	}
	if v.Role == enums.UserRoleVendorStaff && v.VendorID != nil && change.VendorID != nil {
		return *change.VendorID == *v.VendorID
	}
	return false
}

// ParseTables reads a comma separated table list. Empty input selects every table.
func ParseTables(raw string) map[string]struct{} {
	tables := map[string]struct{}{}
	for _, part := range strings.Split(raw, ",") {
		if name := strings.TrimSpace(part); name != "" {
			tables[name] = struct{}{}
		}
	}
	return tables
}

// Wants reports whether change belongs to one of tables.
func Wants(tables map[string]struct{}, change Change) bool {
	if len(tables) == 0 {
		return true
	}
	_, ok := tables[change.Table]
	return ok
}
