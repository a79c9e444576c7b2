package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/unicampus/campus-backend/pkg/logger"
)

const defaultExpiryBatch = 200

type orderExpirer interface {
	ExpireOverdue(ctx context.Context, now time.Time, limit int) (int, error)
}

type PickupExpiryJobParams struct {
	Logger    *logger.Logger
	Orders    orderExpirer
	BatchSize int
}

// NewPickupExpiryJob cancels orders whose pickup deadline has passed. Each
// order moves in its own transaction inside the orders service, so one bad
// row does not hold back the batch.
func NewPickupExpiryJob(params PickupExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders service required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultExpiryBatch
	}
	return &pickupExpiryJob{
		logg:  params.Logger,
		svc:   params.Orders,
		batch: batch,
		now:   time.Now,
	}, nil
}

type pickupExpiryJob struct {
	logg  *logger.Logger
	svc   orderExpirer
	batch int
	now   func() time.Time
}

func (j *pickupExpiryJob) Name() string { return "pickup-expiry" }

func (j *pickupExpiryJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	expired, err := j.svc.ExpireOverdue(ctx, now, j.batch)
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"expired": expired,
		"batch":   j.batch,
	})
	if err != nil {
		return fmt.Errorf("expire overdue orders (%d expired): %w", expired, err)
	}
	if expired == j.batch {
		j.logg.Warn(logCtx, "pickup expiry batch saturated; remaining orders wait for next cycle")
		return nil
	}
	j.logg.Info(logCtx, "pickup expiry complete")
	return nil
}
