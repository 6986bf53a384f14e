package auditlog

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/printz/fulfillment-backend/pkg/db/models"
	"github.com/printz/fulfillment-backend/pkg/enums"
	pkgerrors "github.com/printz/fulfillment-backend/pkg/errors"
	"github.com/printz/fulfillment-backend/pkg/logger"
	"github.com/printz/fulfillment-backend/pkg/pagination"
	"github.com/printz/fulfillment-backend/pkg/types"
)

// Actions recorded by the back office.
const (
	ActionProductStatusChanged = "product.status_changed"
	ActionUserStatusChanged    = "user.status_changed"
	ActionInventoryAdjusted    = "inventory.adjusted"
	ActionKittingCompleted     = "kitting.completed"
	ActionShipmentCancelled    = "shipment.cancelled"
	ActionSwagOrderCancelled   = "swag_order.cancelled"
	ActionProductionUpdated    = "swag_order.production_updated"
	ActionBreakerReset         = "circuit_breaker.reset"
	ActionInvoiceVoided        = "invoice.voided"
	ActionPrintOrderStatus     = "print_order.status_changed"
	ActionDeadLetterReplayed   = "outbox.dead_letter_replayed"
)

// Actor identifies who performed an audited action.
type Actor struct {
	UserID uuid.UUID
	Role   enums.UserRole
	IP     string
}

// Entry is one audited action.
type Entry struct {
	Actor        Actor
	Action       string
	ResourceType string
	ResourceID   string
	Details      map[string]any
}

// ListParams filters the audit trail listing.
type ListParams struct {
	ResourceType string
	ResourceID   string
	ActorID      *uuid.UUID
	pagination.Params
}

type ListResult struct {
	Logs       []models.AuditLog `json:"logs"`
	NextCursor string            `json:"nextCursor,omitempty"`
}

// Recorder is the narrow dependency other services take.
type Recorder interface {
	Record(ctx context.Context, tx *gorm.DB, entry Entry) error
}

type Service interface {
	Recorder
	List(ctx context.Context, params ListParams) (*ListResult, error)
}

type service struct {
	repo *Repository
	logg *logger.Logger
}

func NewService(repo *Repository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("audit repository required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{repo: repo, logg: logg}, nil
}

// Record stores the entry inside tx when given so the audit row commits
// with the mutation it describes.
func (s *service) Record(ctx context.Context, tx *gorm.DB, entry Entry) error {
	action := strings.TrimSpace(entry.Action)
	if action == "" || strings.TrimSpace(entry.ResourceType) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "audit action and resource type are required")
	}
	row := &models.AuditLog{
		ActorRole:    string(entry.Actor.Role),
		Action:       action,
		ResourceType: entry.ResourceType,
		ResourceID:   entry.ResourceID,
		Details:      types.NewJSON(entry.Details),
	}
	if entry.Actor.UserID != uuid.Nil {
		id := entry.Actor.UserID
		row.ActorID = &id
	}
	if ip := strings.TrimSpace(entry.Actor.IP); ip != "" {
		row.IPAddress = &ip
	}
	if err := s.repo.WithTx(tx).Create(ctx, row); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record audit log")
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"audit_action":  action,
		"resource_type": entry.ResourceType,
		"resource_id":   entry.ResourceID,
	})
	s.logg.Info(logCtx, "audit log recorded")
	return nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	rows, err := s.repo.List(ctx, ListFilter{
		ResourceType: strings.TrimSpace(params.ResourceType),
		ResourceID:   strings.TrimSpace(params.ResourceID),
		ActorID:      params.ActorID,
	}, params.Params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "list audit logs")
	}
	page, next := pagination.TrimPage(rows, params.Limit, func(row models.AuditLog) pagination.Cursor {
		return pagination.Cursor{CreatedAt: row.CreatedAt, ID: row.ID}
	})
	return &ListResult{Logs: page, NextCursor: next}, nil
}
