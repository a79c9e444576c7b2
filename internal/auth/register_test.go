package auth

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/unicampus/campus-backend/internal/users"
	"github.com/unicampus/campus-backend/pkg/db"
	"github.com/unicampus/campus-backend/pkg/enums"
	pkgerrors "github.com/unicampus/campus-backend/pkg/errors"
	"github.com/unicampus/campus-backend/pkg/security"
)

func openRegisterDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, conn.Exec(`CREATE TABLE users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		full_name TEXT NOT NULL,
		student_number TEXT,
		faculty TEXT,
		phone TEXT,
		role TEXT NOT NULL DEFAULT 'student',
		vendor_id TEXT,
		points_balance INTEGER NOT NULL DEFAULT 0,
		checkout_pin_hash TEXT,
		identity_uid TEXT UNIQUE,
		is_active BOOLEAN NOT NULL DEFAULT 1,
		last_login_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME
	)`).Error)
	return conn
}

func TestRegisterCreatesStudent(t *testing.T) {
	ctx := context.Background()
	conn := openRegisterDB(t)
	svc, err := NewRegisterService(RegisterServiceParams{DB: db.Wrap(conn), PasswordConfig: testPasswordCfg})
	require.NoError(t, err)

	uid := "firebase-uid"
	faculty := "Engineering"
	created, err := svc.Register(ctx, RegisterRequest{
		Email:       "New.Student@Uni.edu",
		Password:    "firebase-uid_campus",
		FullName:    " New Student ",
		Faculty:     &faculty,
		IdentityUID: &uid,
	})
	require.NoError(t, err)
	assert.Equal(t, "new.student@uni.edu", created.Email)
	assert.Equal(t, "New Student", created.FullName)
	assert.Equal(t, enums.UserRoleStudent, created.Role)

	stored, err := users.NewRepository(conn).FindByIdentityUID(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, created.ID, stored.ID)
	ok, err := security.VerifyPassword("firebase-uid_campus", stored.PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	svc, err := NewRegisterService(RegisterServiceParams{DB: db.Wrap(openRegisterDB(t)), PasswordConfig: testPasswordCfg})
	require.NoError(t, err)

	req := RegisterRequest{Email: "dup@uni.edu", Password: "password123", FullName: "Dup"}
	_, err = svc.Register(ctx, req)
	require.NoError(t, err)

	req.Email = "DUP@uni.edu"
	_, err = svc.Register(ctx, req)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.CodeOf(err))
}

func TestRegisterValidatesRequiredFields(t *testing.T) {
	svc, err := NewRegisterService(RegisterServiceParams{DB: db.Wrap(openRegisterDB(t)), PasswordConfig: testPasswordCfg})
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), RegisterRequest{Email: " ", Password: "password123", FullName: "X"})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))

	_, err = svc.Register(context.Background(), RegisterRequest{Email: "a@uni.edu", Password: "password123", FullName: "  "})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}

func TestNewRegisterServiceRequiresDB(t *testing.T) {
	_, err := NewRegisterService(RegisterServiceParams{})
	require.Error(t, err)
}
