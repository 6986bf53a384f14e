package outbox

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/printz/fulfillment-backend/pkg/db/models"
	pkgerrors "github.com/printz/fulfillment-backend/pkg/errors"
	"github.com/printz/fulfillment-backend/pkg/logger"
	"github.com/printz/fulfillment-backend/pkg/pagination"
)

type DeadLetterPage struct {
	Items      []models.OutboxDLQ `json:"items"`
	NextCursor string             `json:"nextCursor,omitempty"`
}

// DeadLetters is the operator view over parked events.
type DeadLetters struct {
	db     *gorm.DB
	dlq    *DLQRepository
	events *Repository
	logg   *logger.Logger
}

func NewDeadLetters(db *gorm.DB, logg *logger.Logger) *DeadLetters {
	if logg == nil {
		logg = logger.Nop()
	}
	return &DeadLetters{db: db, dlq: NewDLQRepository(db), events: NewRepository(db), logg: logg}
}

func (d *DeadLetters) List(ctx context.Context, filter DeadLetterFilter, params pagination.Params) (*DeadLetterPage, error) {
	rows, err := d.dlq.List(ctx, filter, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "list dead letters")
	}
	page, next := pagination.TrimPage(rows, params.Limit, func(row models.OutboxDLQ) pagination.Cursor {
		return pagination.Cursor{CreatedAt: row.FailedAt, ID: row.ID}
	})
	return &DeadLetterPage{Items: page, NextCursor: next}, nil
}

// Replay puts a parked event back on the outbox as a fresh row carrying the
// original envelope, then drops the dead-letter entry. Consumers see the
// same envelope event id as before, so their dedupe still applies.
func (d *DeadLetters) Replay(ctx context.Context, id uuid.UUID) (models.OutboxEvent, error) {
	var queued models.OutboxEvent
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		parked, err := d.dlq.LockTx(tx, id)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "dead letter not found")
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load dead letter")
		}
		queued = models.OutboxEvent{
			EventType:     parked.EventType,
			AggregateType: parked.AggregateType,
			AggregateID:   parked.AggregateID,
			Payload:       parked.Payload,
		}
		if err := d.events.Insert(tx, &queued); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "requeue dead letter")
		}
		if err := d.dlq.DeleteTx(tx, parked.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear dead letter")
		}
		return nil
	})
	if err != nil {
		return models.OutboxEvent{}, err
	}
	d.logg.Info(d.logg.WithFields(ctx, map[string]any{
		"dead_letter_id": id.String(),
		"event_type":     queued.EventType,
		"aggregate_id":   queued.AggregateID.String(),
	}), "dead letter requeued")
	return queued, nil
}
