package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/unicampus/campus-backend/internal/notifications"
	"github.com/unicampus/campus-backend/pkg/db/dbtest"
	"github.com/unicampus/campus-backend/pkg/db/models"
	"github.com/unicampus/campus-backend/pkg/enums"
)

func TestNotificationCleanupRemovesOnlyOldReadRows(t *testing.T) {
	conn := dbtest.Open(t, dbtest.Notifications)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	user := uuid.New()

	seed := func(readAt *time.Time) uuid.UUID {
		row := models.Notification{
			ID:        uuid.New(),
			UserID:    &user,
			Type:      enums.NotificationTypeAnnouncement,
			Title:     "Library hours",
			Message:   "Open late this week",
			ReadAt:    readAt,
			CreatedAt: now.AddDate(0, 0, -90),
		}
		require.NoError(t, conn.Create(&row).Error)
		return row.ID
	}
	longAgo := now.AddDate(0, 0, -45)
	lastWeek := now.AddDate(0, 0, -7)
	seed(&longAgo)
	keepRecent := seed(&lastWeek)
	keepUnread := seed(nil)

	job, err := NewNotificationCleanupJob(NotificationCleanupJobParams{
		Logger:        testLogger(),
		DB:            dbtest.Client(conn),
		Notifications: notifications.NewRepository(conn),
		RetentionDays: 30,
	})
	require.NoError(t, err)
	job.(*notificationCleanupJob).now = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))

	var ids []uuid.UUID
	require.NoError(t, conn.Model(&models.Notification{}).Pluck("id", &ids).Error)
	assert.ElementsMatch(t, []uuid.UUID{keepRecent, keepUnread}, ids)
}

type recordingPruner struct {
	cutoff      time.Time
	minAttempts int
	err         error
}

func (r *recordingPruner) DeletePublishedBefore(_ context.Context, _ *gorm.DB, cutoff time.Time, minAttempts int) (int64, error) {
	r.cutoff = cutoff
	r.minAttempts = minAttempts
	return 3, r.err
}

type passthroughTx struct{}

func (passthroughTx) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error { return fn(nil) }

func TestOutboxRetentionCutoff(t *testing.T) {
	now := time.Date(2026, 2, 20, 0, 0, 0, 0, time.UTC)
	pruner := &recordingPruner{}
	job, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger:      testLogger(),
		DB:          passthroughTx{},
		Repository:  pruner,
		MaxAttempts: 8,
	})
	require.NoError(t, err)
	job.(*outboxRetentionJob).now = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))
	assert.True(t, pruner.cutoff.Equal(now.AddDate(0, 0, -defaultOutboxRetentionDays)))
	assert.Equal(t, 8, pruner.minAttempts)

	pruner.err = errors.New("db down")
	assert.Error(t, job.Run(context.Background()))
}

type fakeExpirer struct {
	now     time.Time
	limit   int
	expired int
	err     error
}

func (f *fakeExpirer) ExpireOverdue(_ context.Context, now time.Time, limit int) (int, error) {
	f.now = now
	f.limit = limit
	return f.expired, f.err
}

func TestPickupExpiryJob(t *testing.T) {
	now := time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC)
	expirer := &fakeExpirer{expired: 2}
	job, err := NewPickupExpiryJob(PickupExpiryJobParams{Logger: testLogger(), Orders: expirer, BatchSize: 2})
	require.NoError(t, err)
	job.(*pickupExpiryJob).now = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))
	assert.True(t, expirer.now.Equal(now))
	assert.Equal(t, 2, expirer.limit)

	expirer.err = errors.New("expire order x: boom")
	assert.Error(t, job.Run(context.Background()))

	_, err = NewPickupExpiryJob(PickupExpiryJobParams{Logger: testLogger()})
	assert.Error(t, err)
}
