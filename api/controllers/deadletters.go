package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/printz/fulfillment-backend/api/controllers/actorctx"
	"github.com/printz/fulfillment-backend/api/responses"
	"github.com/printz/fulfillment-backend/api/validators"
	"github.com/printz/fulfillment-backend/internal/auditlog"
	"github.com/printz/fulfillment-backend/pkg/db/models"
	"github.com/printz/fulfillment-backend/pkg/enums"
	pkgerrors "github.com/printz/fulfillment-backend/pkg/errors"
	"github.com/printz/fulfillment-backend/pkg/logger"
	"github.com/printz/fulfillment-backend/pkg/outbox"
	"github.com/printz/fulfillment-backend/pkg/pagination"
)

// DeadLetterQueue is the operator surface over outbox events the publisher parked.
type DeadLetterQueue interface {
	List(ctx context.Context, filter outbox.DeadLetterFilter, params pagination.Params) (*outbox.DeadLetterPage, error)
	Replay(ctx context.Context, id uuid.UUID) (models.OutboxEvent, error)
}

func AdminListDeadLetters(queue DeadLetterQueue, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if queue == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "dead letter queue unavailable"))
			return
		}
		page, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		aggregateID, err := validators.ParseQueryUUID(r, "aggregateId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filter := outbox.DeadLetterFilter{
			EventType:   enums.OutboxEventType(strings.TrimSpace(r.URL.Query().Get("eventType"))),
			AggregateID: aggregateID,
		}
		switch reason := enums.OutboxDLQErrorReason(strings.TrimSpace(r.URL.Query().Get("reason"))); reason {
		case "", enums.OutboxDLQReasonMaxAttempts, enums.OutboxDLQReasonNonRetryable:
			filter.Reason = reason
		default:
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "unknown dead letter reason").WithDetails(map[string]any{"field": "reason"}))
			return
		}
		result, err := queue.List(r.Context(), filter, page)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// AdminReplayDeadLetter puts a parked event back on the outbox.
func AdminReplayDeadLetter(queue DeadLetterQueue, audit auditlog.Recorder, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if queue == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "dead letter queue unavailable"))
			return
		}
		actor, err := actorctx.Resolve(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		queued, err := queue.Replay(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if audit != nil {
			if err := audit.Record(r.Context(), nil, auditlog.Entry{
				Actor:        actor,
				Action:       auditlog.ActionDeadLetterReplayed,
				ResourceType: "outbox_dead_letter",
				ResourceID:   id.String(),
				Details:      map[string]any{"eventType": queued.EventType, "outboxEventId": queued.ID.String()},
			}); err != nil && logg != nil {
				logg.Error(r.Context(), "record dead letter replay", err)
			}
		}
		responses.WriteSuccess(w, queued)
	}
}
