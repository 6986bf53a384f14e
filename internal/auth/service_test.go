package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgAuth "github.com/printz/fulfillment-backend/pkg/auth"
	"github.com/printz/fulfillment-backend/pkg/auth/session"
	"github.com/printz/fulfillment-backend/pkg/config"
	"github.com/printz/fulfillment-backend/pkg/db/models"
	"github.com/printz/fulfillment-backend/pkg/enums"
	pkgerrors "github.com/printz/fulfillment-backend/pkg/errors"
	"github.com/printz/fulfillment-backend/pkg/security"
)

var testJWTConfig = config.JWTConfig{
	Secret:            "secret",
	Issuer:            "printz",
	ExpirationMinutes: 30,
}

func TestServiceSigninMintsRoleClaim(t *testing.T) {
	password := "staff-secret"
	user := &models.User{
		ID:           uuid.New(),
		Email:        "staff@printz.vn",
		PasswordHash: mustHashPassword(t, password),
		Name:         "Warehouse Staff",
		Role:         enums.RoleStaff,
		IsActive:     true,
	}

	svc, sessions := buildTestService(t, user, true)
	resp, err := svc.Signin(context.Background(), SigninRequest{Email: "STAFF@printz.vn ", Password: password})
	if err != nil {
		t.Fatalf("signin: %v", err)
	}

	claims, err := pkgAuth.ParseAccessToken(testJWTConfig, resp.AccessToken)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if claims.Role != enums.RoleStaff {
		t.Fatalf("expected staff role claim, got %s", claims.Role)
	}
	if resp.RefreshToken != "refresh-token" {
		t.Fatalf("expected refresh token to be set")
	}
	if sessions.generated != claims.ID {
		t.Fatalf("session keyed by %q, token jti %q", sessions.generated, claims.ID)
	}
	if sessions.generatedFor != user.ID {
		t.Fatalf("session opened for %s, want %s", sessions.generatedFor, user.ID)
	}
	if user.LastLoginAt == nil {
		t.Fatalf("expected last login to be recorded")
	}
}

func TestServiceSigninWrongPassword(t *testing.T) {
	user := &models.User{
		ID:           uuid.New(),
		Email:        "customer@printz.vn",
		PasswordHash: mustHashPassword(t, "right-password"),
		Role:         enums.RoleCustomer,
		IsActive:     true,
		IsVerified:   true,
	}
	svc, _ := buildTestService(t, user, true)

	_, err := svc.Signin(context.Background(), SigninRequest{Email: user.Email, Password: "wrong-password"})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeUnauthorized || typed.Message() != invalidCredentialsMessage {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
}

func TestServiceSigninUnverifiedCustomerForbidden(t *testing.T) {
	password := "customer-secret"
	user := &models.User{
		ID:           uuid.New(),
		Email:        "new@printz.vn",
		PasswordHash: mustHashPassword(t, password),
		Role:         enums.RoleCustomer,
		IsActive:     true,
	}
	svc, _ := buildTestService(t, user, true)

	_, err := svc.Signin(context.Background(), SigninRequest{Email: user.Email, Password: password})
	if !pkgerrors.IsCode(err, pkgerrors.CodeForbidden) {
		t.Fatalf("expected forbidden for unverified customer, got %v", err)
	}
}

func TestServiceSigninInactiveUser(t *testing.T) {
	password := "inactive-secret"
	user := &models.User{
		ID:           uuid.New(),
		Email:        "gone@printz.vn",
		PasswordHash: mustHashPassword(t, password),
		Role:         enums.RoleCustomer,
		IsVerified:   true,
	}
	svc, _ := buildTestService(t, user, true)

	_, err := svc.Signin(context.Background(), SigninRequest{Email: user.Email, Password: password})
	if !pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected unauthorized for inactive user, got %v", err)
	}
}

func TestServiceSigninUpgradesStaleHash(t *testing.T) {
	password := "ops-secret"
	user := &models.User{
		ID:           uuid.New(),
		Email:        "ops@printz.vn",
		PasswordHash: mustHashPassword(t, password),
		Role:         enums.RoleAdmin,
		IsActive:     true,
	}
	stale := user.PasswordHash
	stronger := config.PasswordConfig{ArgonMemoryKB: 64, ArgonTime: 2, ArgonParallelism: 1, ArgonSaltLen: 16, ArgonKeyLen: 32}

	svc, err := NewService(ServiceParams{
		UserRepo:       stubUserRepo{user: user},
		SessionManager: &stubSessionManager{refreshToken: "refresh-token"},
		JWTConfig:      testJWTConfig,
		PasswordConfig: stronger,
	})
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	if _, err := svc.Signin(context.Background(), SigninRequest{Email: user.Email, Password: password}); err != nil {
		t.Fatalf("signin: %v", err)
	}
	if user.PasswordHash == stale {
		t.Fatalf("expected hash to be upgraded")
	}
	if security.NeedsRehash(user.PasswordHash, stronger) {
		t.Fatalf("upgraded hash still uses old costs: %s", user.PasswordHash)
	}
	ok, err := security.VerifyPassword(password, user.PasswordHash)
	if err != nil || !ok {
		t.Fatalf("upgraded hash does not verify: ok=%v err=%v", ok, err)
	}
}

func TestServiceRefreshRotatesSession(t *testing.T) {
	user := &models.User{ID: uuid.New(), Email: "a@printz.vn", Role: enums.RoleAdmin, IsActive: true}
	svc, sessions := buildTestService(t, user, true)

	old, err := pkgAuth.MintAccessToken(testJWTConfig, time.Now().Add(-time.Hour), pkgAuth.AccessTokenPayload{
		UserID: user.ID,
		Role:   user.Role,
		JTI:    "old-jti",
	})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	resp, err := svc.Refresh(context.Background(), old, "refresh-token")
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	claims, err := pkgAuth.ParseAccessToken(testJWTConfig, resp.AccessToken)
	if err != nil {
		t.Fatalf("parse refreshed token: %v", err)
	}
	if claims.ID != "new-jti" || sessions.rotatedFrom != "old-jti" {
		t.Fatalf("unexpected rotation: jti=%s from=%s", claims.ID, sessions.rotatedFrom)
	}

	if _, err := svc.Refresh(context.Background(), old, "stolen"); !pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected unauthorized for bad refresh token, got %v", err)
	}
}

func TestServiceSignoutRevokes(t *testing.T) {
	user := &models.User{ID: uuid.New(), Role: enums.RoleCustomer, IsActive: true}
	svc, sessions := buildTestService(t, user, true)
	token, err := pkgAuth.MintAccessToken(testJWTConfig, time.Now(), pkgAuth.AccessTokenPayload{
		UserID: user.ID,
		Role:   user.Role,
		JTI:    "jti-1",
	})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := svc.Signout(context.Background(), token); err != nil {
		t.Fatalf("signout: %v", err)
	}
	if sessions.revoked != "jti-1" {
		t.Fatalf("expected jti-1 revoked, got %q", sessions.revoked)
	}
}

func buildTestService(t *testing.T, user *models.User, requireVerified bool) (Service, *stubSessionManager) {
	t.Helper()
	sessions := &stubSessionManager{refreshToken: "refresh-token"}
	svc, err := NewService(ServiceParams{
		UserRepo:        stubUserRepo{user: user},
		SessionManager:  sessions,
		JWTConfig:       testJWTConfig,
		RequireVerified: requireVerified,
	})
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	return svc, sessions
}

func mustHashPassword(t *testing.T, password string) string {
	t.Helper()
	hash, err := security.HashPassword(password, config.PasswordConfig{})
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return hash
}

type stubUserRepo struct {
	user *models.User
}

func (s stubUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if s.user == nil || s.user.Email != email {
		return nil, gorm.ErrRecordNotFound
	}
	return s.user, nil
}

func (s stubUserRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if s.user == nil || s.user.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return s.user, nil
}

func (s stubUserRepo) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	if s.user != nil && s.user.ID == id {
		s.user.LastLoginAt = &at
	}
	return nil
}

func (s stubUserRepo) UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error {
	if s.user != nil && s.user.ID == id {
		s.user.PasswordHash = hash
	}
	return nil
}

type stubSessionManager struct {
	refreshToken string
	generated    string
	generatedFor uuid.UUID
	rotatedFrom  string
	revoked      string
}

func (s *stubSessionManager) Generate(ctx context.Context, userID uuid.UUID, accessID string) (string, error) {
	s.generated = accessID
	s.generatedFor = userID
	return s.refreshToken, nil
}

func (s *stubSessionManager) Rotate(ctx context.Context, oldAccessID, provided string) (string, string, error) {
	if provided != s.refreshToken {
		return "", "", session.ErrInvalidRefreshToken
	}
	s.rotatedFrom = oldAccessID
	return "new-jti", "new-refresh", nil
}

func (s *stubSessionManager) Revoke(ctx context.Context, accessID string) error {
	s.revoked = accessID
	return nil
}
