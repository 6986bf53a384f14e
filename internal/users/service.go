package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/printz/fulfillment-backend/internal/auditlog"
	"github.com/printz/fulfillment-backend/pkg/db/models"
	"github.com/printz/fulfillment-backend/pkg/enums"
	pkgerrors "github.com/printz/fulfillment-backend/pkg/errors"
	"github.com/printz/fulfillment-backend/pkg/pagination"
)

// Service backs the profile and back-office user endpoints.
type Service interface {
	Me(ctx context.Context, userID uuid.UUID) (*UserDTO, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
	SetActive(ctx context.Context, actor auditlog.Actor, userID uuid.UUID, active bool) (*UserDTO, error)
}

type ListParams struct {
	Role string
	pagination.Params
}

type ListResult struct {
	Users      []UserDTO `json:"users"`
	NextCursor string    `json:"nextCursor,omitempty"`
}

// SessionRevoker ends every open session of a user.
type SessionRevoker interface {
	RevokeUser(ctx context.Context, userID uuid.UUID) (int, error)
}

type service struct {
	repo     *Repository
	audit    auditlog.Recorder
	sessions SessionRevoker
}

// NewService builds the users service. sessions may be nil, in which case a
// deactivated user keeps any access token until it expires.
func NewService(repo *Repository, audit auditlog.Recorder, sessions SessionRevoker) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("user repository required")
	}
	if audit == nil {
		return nil, fmt.Errorf("audit recorder required")
	}
	return &service{repo: repo, audit: audit, sessions: sessions}, nil
}

func (s *service) Me(ctx context.Context, userID uuid.UUID) (*UserDTO, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.NotFound("user", userID)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user")
	}
	return FromModel(user), nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	var role *enums.UserRole
	if params.Role != "" {
		parsed, err := enums.ParseUserRole(params.Role)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid role filter")
		}
		role = &parsed
	}
	rows, err := s.repo.List(ctx, role, params.Params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "list users")
	}
	page, next := pagination.TrimPage(rows, params.Limit, func(u models.User) pagination.Cursor {
		return pagination.Cursor{CreatedAt: u.CreatedAt, ID: u.ID}
	})
	out := make([]UserDTO, 0, len(page))
	for i := range page {
		out = append(out, *FromModel(&page[i]))
	}
	return &ListResult{Users: out, NextCursor: next}, nil
}

func (s *service) SetActive(ctx context.Context, actor auditlog.Actor, userID uuid.UUID, active bool) (*UserDTO, error) {
	if actor.UserID == userID && !active {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "cannot deactivate your own account")
	}
	ok, err := s.repo.SetActive(ctx, userID, active)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update user status")
	}
	if !ok {
		return nil, pkgerrors.NotFound("user", userID)
	}
	if err := s.audit.Record(ctx, nil, auditlog.Entry{
		Actor:        actor,
		Action:       auditlog.ActionUserStatusChanged,
		ResourceType: "user",
		ResourceID:   userID.String(),
		Details:      map[string]any{"isActive": active},
	}); err != nil {
		return nil, err
	}
	if !active && s.sessions != nil {
		if _, err := s.sessions.RevokeUser(ctx, userID); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoke user sessions")
		}
	}
	return s.Me(ctx, userID)
}
