package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgAuth "github.com/unicampus/campus-backend/pkg/auth"
	"github.com/unicampus/campus-backend/pkg/auth/session"
	"github.com/unicampus/campus-backend/pkg/config"
	"github.com/unicampus/campus-backend/pkg/db/models"
	"github.com/unicampus/campus-backend/pkg/enums"
	pkgerrors "github.com/unicampus/campus-backend/pkg/errors"
	"github.com/unicampus/campus-backend/pkg/security"
)

var testPasswordCfg = config.PasswordConfig{
	ArgonMemoryKB:    8 * 1024,
	ArgonTime:        1,
	ArgonParallelism: 1,
	ArgonSaltLen:     16,
	ArgonKeyLen:      32,
}

var testJWTCfg = config.JWTConfig{
	Secret:            "test-secret",
	Issuer:            "campus-test",
	ExpirationMinutes: 15,
}

type fakeUserRepo struct {
	users     map[string]*models.User
	lastLogin map[uuid.UUID]time.Time
	findErr   error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[string]*models.User{}, lastLogin: map[uuid.UUID]time.Time{}}
}

func (f *fakeUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	user, ok := f.users[email]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *user
	return &copied, nil
}

func (f *fakeUserRepo) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	f.lastLogin[id] = at
	return nil
}

type fakeSessions struct {
	generated  []string
	identities []session.Identity
	err        error
}

func (f *fakeSessions) Generate(ctx context.Context, accessID string, who session.Identity) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.generated = append(f.generated, accessID)
	f.identities = append(f.identities, who)
	return "refresh-" + accessID, nil
}

func mustHashPassword(t *testing.T, password string) string {
	t.Helper()
	hash, err := security.HashPassword(password, testPasswordCfg)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return hash
}

func buildTestService(t *testing.T, repo *fakeUserRepo, sessions *fakeSessions) *service {
	t.Helper()
	svc, err := NewService(ServiceParams{UserRepo: repo, SessionManager: sessions, JWTConfig: testJWTCfg})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc.(*service)
}

func TestLoginIssuesSessionForStudent(t *testing.T) {
	repo := newFakeUserRepo()
	user := &models.User{
		ID:           uuid.New(),
		Email:        "ana@uni.edu",
		PasswordHash: mustHashPassword(t, "uid-123_campus"),
		FullName:     "Ana",
		Role:         enums.UserRoleStudent,
		IsActive:     true,
	}
	repo.users[user.Email] = user
	sessions := &fakeSessions{}
	svc := buildTestService(t, repo, sessions)

	resp, err := svc.Login(context.Background(), LoginRequest{Email: "  ANA@uni.edu ", Password: "uid-123_campus"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if resp.User.ID != user.ID {
		t.Fatalf("expected user %s, got %s", user.ID, resp.User.ID)
	}
	if len(sessions.generated) != 1 || resp.RefreshToken != "refresh-"+sessions.generated[0] {
		t.Fatalf("refresh token not tied to access id: %+v", resp)
	}
	claims, err := pkgAuth.ParseAccessToken(testJWTCfg, resp.AccessToken)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if claims.UserID != user.ID || claims.Role != enums.UserRoleStudent {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if claims.ID != sessions.generated[0] {
		t.Fatalf("expected jti %s, got %s", sessions.generated[0], claims.ID)
	}
	if _, ok := repo.lastLogin[user.ID]; !ok {
		t.Fatal("expected last login to be recorded")
	}
}

func TestLoginCarriesVendorForStaff(t *testing.T) {
	repo := newFakeUserRepo()
	vendorID := uuid.New()
	user := &models.User{
		ID:           uuid.New(),
		Email:        "staff@uni.edu",
		PasswordHash: mustHashPassword(t, "password123"),
		FullName:     "Staff",
		Role:         enums.UserRoleVendorStaff,
		VendorID:     &vendorID,
		IsActive:     true,
	}
	repo.users[user.Email] = user
	sessions := &fakeSessions{}
	svc := buildTestService(t, repo, sessions)

	resp, err := svc.Login(context.Background(), LoginRequest{Email: user.Email, Password: "password123"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	claims, err := pkgAuth.ParseAccessToken(testJWTCfg, resp.AccessToken)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.VendorID == nil || *claims.VendorID != vendorID {
		t.Fatalf("expected vendor claim %s, got %v", vendorID, claims.VendorID)
	}
	stored := sessions.identities[0]
	if stored.Role != enums.UserRoleVendorStaff || stored.VendorID == nil || *stored.VendorID != vendorID {
		t.Fatalf("session identity missing vendor scope: %+v", stored)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	repo := newFakeUserRepo()
	repo.users["ana@uni.edu"] = &models.User{
		ID:           uuid.New(),
		Email:        "ana@uni.edu",
		PasswordHash: mustHashPassword(t, "right-password"),
		Role:         enums.UserRoleStudent,
		IsActive:     true,
	}
	repo.users["off@uni.edu"] = &models.User{
		ID:           uuid.New(),
		Email:        "off@uni.edu",
		PasswordHash: mustHashPassword(t, "right-password"),
		Role:         enums.UserRoleStudent,
		IsActive:     false,
	}
	svc := buildTestService(t, repo, &fakeSessions{})

	cases := []LoginRequest{
		{Email: "ana@uni.edu", Password: "wrong-password"},
		{Email: "nobody@uni.edu", Password: "right-password"},
		{Email: "off@uni.edu", Password: "right-password"},
		{Email: "", Password: "right-password"},
	}
	for _, req := range cases {
		_, err := svc.Login(context.Background(), req)
		if pkgerrors.CodeOf(err) != pkgerrors.CodeUnauthorized {
			t.Fatalf("expected unauthorized for %q, got %v", req.Email, err)
		}
	}
}

func TestLoginSurfacesSessionStoreFailure(t *testing.T) {
	repo := newFakeUserRepo()
	repo.users["ana@uni.edu"] = &models.User{
		ID:           uuid.New(),
		Email:        "ana@uni.edu",
		PasswordHash: mustHashPassword(t, "password123"),
		Role:         enums.UserRoleStudent,
		IsActive:     true,
	}
	svc := buildTestService(t, repo, &fakeSessions{err: errors.New("redis down")})

	_, err := svc.Login(context.Background(), LoginRequest{Email: "ana@uni.edu", Password: "password123"})
	if pkgerrors.CodeOf(err) != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestLoginLookupFailureIsInternal(t *testing.T) {
	repo := newFakeUserRepo()
	repo.findErr = errors.New("connection reset")
	svc := buildTestService(t, repo, &fakeSessions{})

	_, err := svc.Login(context.Background(), LoginRequest{Email: "ana@uni.edu", Password: "x"})
	if pkgerrors.CodeOf(err) != pkgerrors.CodeInternal {
		t.Fatalf("expected internal error, got %v", err)
	}
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	if _, err := NewService(ServiceParams{SessionManager: &fakeSessions{}}); err == nil {
		t.Fatal("expected error without user repo")
	}
	if _, err := NewService(ServiceParams{UserRepo: newFakeUserRepo()}); err == nil {
		t.Fatal("expected error without session manager")
	}
}
