package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	redislib "github.com/redis/go-redis/v9"

	"github.com/unicampus/campus-backend/pkg/redis"
)

// DefaultLease bounds how long an in-flight claim blocks redelivery. A worker
// that dies mid-event releases its claim when the lease lapses.
const DefaultLease = 2 * time.Minute

const (
	valueProcessing = "processing"
	valueDone       = "done"
)

// State is the outcome of Begin.
type State int

const (
	// Claimed: this caller owns the event and must Complete or Release it.
	Claimed State = iota
	// Done: the event was already handled; ack and move on.
	Done
	// InFlight: another delivery holds the claim; retry later.
	InFlight
)

func (s State) String() string {
	switch s {
	case Claimed:
		return "claimed"
	case Done:
		return "done"
	case InFlight:
		return "in_flight"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Store is the Redis surface the manager needs.
type Store interface {
	redis.IdempotencyStore
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

// Manager tracks per-consumer event processing in two phases: a short lease
// while the handler runs, then a done marker kept for the retention TTL.
// Keys follow campus:idempotency:evt:processed:<consumer>:<event_id>.
type Manager struct {
	store Store
	ttl   time.Duration
	lease time.Duration
}

// NewManager keeps done markers for ttl. A zero lease selects DefaultLease.
func NewManager(store Store, ttl, lease time.Duration) (*Manager, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl <= 0 {
		return nil, errors.New("ttl must be positive")
	}
	if lease <= 0 {
		lease = DefaultLease
	}
	if lease > ttl {
		return nil, fmt.Errorf("lease (%s) must not exceed ttl (%s)", lease, ttl)
	}
	return &Manager{store: store, ttl: ttl, lease: lease}, nil
}

// Begin claims eventID for consumer, or reports why it cannot.
func (m *Manager) Begin(ctx context.Context, consumer string, eventID uuid.UUID) (State, error) {
	key, err := m.processedKey(consumer, eventID)
	if err != nil {
		return InFlight, err
	}
	claimed, err := m.store.SetNX(ctx, key, valueProcessing, m.lease)
	if err != nil {
		return InFlight, err
	}
	if claimed {
		return Claimed, nil
	}
	current, err := m.store.Get(ctx, key)
	switch {
	case errors.Is(err, redislib.Nil):
		// The lease lapsed between SETNX and GET; let the next delivery claim it.
		return InFlight, nil
	case err != nil:
		return InFlight, err
	case current == valueDone:
		return Done, nil
	default:
		return InFlight, nil
	}
}

// Complete turns a claim into a done marker held for the retention TTL.
func (m *Manager) Complete(ctx context.Context, consumer string, eventID uuid.UUID) error {
	key, err := m.processedKey(consumer, eventID)
	if err != nil {
		return err
	}
	return m.store.Set(ctx, key, valueDone, m.ttl)
}

// Release drops a claim so a redelivery can retry the event.
func (m *Manager) Release(ctx context.Context, consumer string, eventID uuid.UUID) error {
	key, err := m.processedKey(consumer, eventID)
	if err != nil {
		return err
	}
	return m.store.Del(ctx, key)
}

func (m *Manager) processedKey(consumer string, eventID uuid.UUID) (string, error) {
	if consumer == "" {
		return "", errors.New("consumer name is required")
	}
	if eventID == uuid.Nil {
		return "", errors.New("event id is required")
	}
	return m.store.IdempotencyKey("evt:processed:"+consumer, eventID.String()), nil
}
