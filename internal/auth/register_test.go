package auth

import (
	"context"
	"testing"

	"gorm.io/gorm"

	"github.com/printz/fulfillment-backend/internal/users"
	"github.com/printz/fulfillment-backend/pkg/db/dbtest"
	"github.com/printz/fulfillment-backend/pkg/enums"
	pkgerrors "github.com/printz/fulfillment-backend/pkg/errors"
	"github.com/printz/fulfillment-backend/pkg/security"
)

func newRegisterFixtures(t *testing.T) (RegisterService, AdminRegisterService, *gorm.DB) {
	t.Helper()
	client := dbtest.OpenClient(t, "auth_register")
	reg, err := NewRegisterService(RegisterServiceParams{
		TxRunner:    client,
		ExposeToken: true,
		Users:       users.NewRepository(client.DB()),
	})
	if err != nil {
		t.Fatalf("register service: %v", err)
	}
	admin, err := NewAdminRegisterService(AdminRegisterServiceParams{TxRunner: client})
	if err != nil {
		t.Fatalf("admin register service: %v", err)
	}
	return reg, admin, client.DB()
}

func TestSignupThenVerify(t *testing.T) {
	reg, _, _ := newRegisterFixtures(t)
	ctx := context.Background()

	resp, err := reg.Signup(ctx, SignupRequest{Email: " Buyer@Printz.VN", Password: "longenough", Name: "Buyer"})
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if resp.User.Email != "buyer@printz.vn" || resp.User.IsVerified || resp.User.Role != enums.RoleCustomer {
		t.Fatalf("unexpected user %+v", resp.User)
	}
	if resp.VerificationToken == "" {
		t.Fatalf("expected verification token in non-prod response")
	}

	verified, err := reg.VerifyEmail(ctx, resp.VerificationToken)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !verified.IsVerified {
		t.Fatalf("expected verified user")
	}
	if _, err := reg.VerifyEmail(ctx, resp.VerificationToken); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected burned token to be not found, got %v", err)
	}
}

func TestSignupDuplicateEmailConflict(t *testing.T) {
	reg, _, _ := newRegisterFixtures(t)
	ctx := context.Background()
	req := SignupRequest{Email: "dup@printz.vn", Password: "longenough", Name: "Dup"}
	if _, err := reg.Signup(ctx, req); err != nil {
		t.Fatalf("first signup: %v", err)
	}
	if _, err := reg.Signup(ctx, req); !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestSignupPasswordPolicy(t *testing.T) {
	reg, _, _ := newRegisterFixtures(t)
	_, err := reg.Signup(context.Background(), SignupRequest{Email: "short@printz.vn", Password: "short", Name: "S"})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAdminRegisterCreatesVerifiedStaff(t *testing.T) {
	_, admin, conn := newRegisterFixtures(t)
	dto, err := admin.Register(context.Background(), AdminRegisterRequest{
		Email:    "ops@printz.vn",
		Password: "warehouse-pass",
		Name:     "Ops",
		Role:     enums.RoleStaff,
	})
	if err != nil {
		t.Fatalf("admin register: %v", err)
	}
	if !dto.IsVerified || dto.Role != enums.RoleStaff {
		t.Fatalf("unexpected user %+v", dto)
	}

	stored, err := users.NewRepository(conn).FindByEmail(context.Background(), "ops@printz.vn")
	if err != nil {
		t.Fatalf("load user: %v", err)
	}
	ok, err := security.VerifyPassword("warehouse-pass", stored.PasswordHash)
	if err != nil || !ok {
		t.Fatalf("expected stored hash to verify: ok=%v err=%v", ok, err)
	}

	if _, err := admin.Register(context.Background(), AdminRegisterRequest{
		Email: "c@printz.vn", Password: "customer-pass", Name: "C", Role: enums.RoleCustomer,
	}); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected customer role to be rejected, got %v", err)
	}
}

