package db_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/unicampus/campus-backend/pkg/db/dbtest"
	"github.com/unicampus/campus-backend/pkg/db/models"
	"github.com/unicampus/campus-backend/pkg/enums"
)

func newUser(email string) *models.User {
	return &models.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: "argon2id$stub",
		FullName:     "Test Student",
		Role:         enums.UserRoleStudent,
		IsActive:     true,
	}
}

func countUsers(t *testing.T, conn *gorm.DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, conn.Model(&models.User{}).Count(&n).Error)
	return n
}

func TestWithTxCommitsCampusRows(t *testing.T) {
	conn := dbtest.Open(t, dbtest.Users)
	client := dbtest.Client(conn)

	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		return tx.Create(newUser("ana@uni.edu")).Error
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), countUsers(t, conn))
}

func TestWithTxRollsBackOnError(t *testing.T) {
	conn := dbtest.Open(t, dbtest.Users)
	client := dbtest.Client(conn)

	boom := errors.New("vendor write failed")
	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		if err := tx.Create(newUser("budi@uni.edu")).Error; err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, countUsers(t, conn))
}

func TestWithTxRollsBackAndRepanics(t *testing.T) {
	conn := dbtest.Open(t, dbtest.Users)
	client := dbtest.Client(conn)

	assert.Panics(t, func() {
		_ = client.WithTx(context.Background(), func(tx *gorm.DB) error {
			require.NoError(t, tx.Create(newUser("citra@uni.edu")).Error)
			panic("handler bug")
		})
	})
	assert.Zero(t, countUsers(t, conn))
}

func TestWithTxHonorsCheckConstraints(t *testing.T) {
	conn := dbtest.Open(t, dbtest.Users)
	client := dbtest.Client(conn)
	user := newUser("dewi@uni.edu")
	require.NoError(t, conn.Create(user).Error)

	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		return tx.Model(&models.User{}).Where("id = ?", user.ID).
			Update("points_balance", gorm.Expr("points_balance - ?", 10)).Error
	})
	require.Error(t, err)

	var reloaded models.User
	require.NoError(t, conn.First(&reloaded, "id = ?", user.ID).Error)
	assert.Zero(t, reloaded.PointsBalance)
}

func TestPingAndRaw(t *testing.T) {
	conn := dbtest.Open(t, dbtest.Users)
	client := dbtest.Client(conn)
	ctx := context.Background()

	require.NoError(t, client.Ping(ctx))
	require.NoError(t, client.Exec(ctx, "INSERT INTO users (id, email, password_hash, full_name) VALUES (?, ?, ?, ?)",
		uuid.NewString(), "eko@uni.edu", "x", "Eko").Error)

	var email string
	require.NoError(t, client.Raw(ctx, "SELECT email FROM users LIMIT 1").Scan(&email).Error)
	assert.Equal(t, "eko@uni.edu", email)
}
