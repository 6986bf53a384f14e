package users

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/printz/fulfillment-backend/internal/auditlog"
	"github.com/printz/fulfillment-backend/pkg/db/dbtest"
	"github.com/printz/fulfillment-backend/pkg/db/models"
	"github.com/printz/fulfillment-backend/pkg/enums"
	pkgerrors "github.com/printz/fulfillment-backend/pkg/errors"
	"github.com/printz/fulfillment-backend/pkg/logger"
)

type recordingRevoker struct {
	revoked []uuid.UUID
}

func (r *recordingRevoker) RevokeUser(_ context.Context, userID uuid.UUID) (int, error) {
	r.revoked = append(r.revoked, userID)
	return 1, nil
}

func newTestService(t *testing.T) (Service, *Repository, *gorm.DB) {
	svc, repo, conn, _ := newTestServiceWithRevoker(t)
	return svc, repo, conn
}

func newTestServiceWithRevoker(t *testing.T) (Service, *Repository, *gorm.DB, *recordingRevoker) {
	t.Helper()
	conn := dbtest.Open(t, "users")
	audit, err := auditlog.NewService(auditlog.NewRepository(conn), logger.Nop())
	if err != nil {
		t.Fatalf("audit service: %v", err)
	}
	repo := NewRepository(conn)
	revoker := &recordingRevoker{}
	svc, err := NewService(repo, audit, revoker)
	if err != nil {
		t.Fatalf("users service: %v", err)
	}
	return svc, repo, conn, revoker
}

func TestSetActiveWritesAuditLog(t *testing.T) {
	svc, repo, conn := newTestService(t)
	ctx := context.Background()
	user, err := repo.Create(ctx, CreateUserDTO{Email: "staff@printz.vn", PasswordHash: "hash", Name: "Staff", Role: enums.RoleStaff})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	admin := auditlog.Actor{UserID: uuid.New(), Role: enums.RoleAdmin}
	dto, err := svc.SetActive(ctx, admin, user.ID, false)
	if err != nil {
		t.Fatalf("set active: %v", err)
	}
	if dto.IsActive {
		t.Fatalf("expected inactive user")
	}

	var logs []models.AuditLog
	if err := conn.Find(&logs).Error; err != nil {
		t.Fatalf("load audit logs: %v", err)
	}
	if len(logs) != 1 || logs[0].Action != auditlog.ActionUserStatusChanged {
		t.Fatalf("unexpected audit logs %+v", logs)
	}
}

func TestDeactivateRevokesSessions(t *testing.T) {
	svc, repo, _, revoker := newTestServiceWithRevoker(t)
	ctx := context.Background()
	user, err := repo.Create(ctx, CreateUserDTO{Email: "packer@printz.vn", PasswordHash: "hash", Name: "Packer", Role: enums.RoleStaff})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	admin := auditlog.Actor{UserID: uuid.New(), Role: enums.RoleAdmin}

	if _, err := svc.SetActive(ctx, admin, user.ID, true); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if len(revoker.revoked) != 0 {
		t.Fatalf("activation must not revoke sessions")
	}
	if _, err := svc.SetActive(ctx, admin, user.ID, false); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if len(revoker.revoked) != 1 || revoker.revoked[0] != user.ID {
		t.Fatalf("expected sessions of %s revoked, got %v", user.ID, revoker.revoked)
	}
}

func TestSetActiveUnknownUser(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.SetActive(context.Background(), auditlog.Actor{UserID: uuid.New()}, uuid.New(), true)
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSetActiveRejectsSelfDeactivation(t *testing.T) {
	svc, _, _ := newTestService(t)
	id := uuid.New()
	_, err := svc.SetActive(context.Background(), auditlog.Actor{UserID: id}, id, false)
	if !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestListFiltersByRole(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()
	for _, role := range []enums.UserRole{enums.RoleCustomer, enums.RoleCustomer, enums.RoleStaff} {
		if _, err := repo.Create(ctx, CreateUserDTO{Email: uuid.NewString() + "@printz.vn", PasswordHash: "hash", Name: "U", Role: role}); err != nil {
			t.Fatalf("create user: %v", err)
		}
	}
	res, err := svc.List(ctx, ListParams{Role: "customer"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(res.Users) != 2 {
		t.Fatalf("expected 2 customers, got %d", len(res.Users))
	}
	if _, err := svc.List(ctx, ListParams{Role: "owner"}); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for unknown role, got %v", err)
	}
}
