package outbox

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/printz/fulfillment-backend/pkg/db/models"
	"github.com/printz/fulfillment-backend/pkg/enums"
	pkgerrors "github.com/printz/fulfillment-backend/pkg/errors"
	"github.com/printz/fulfillment-backend/pkg/logger"
	"github.com/printz/fulfillment-backend/pkg/pagination"
)

func parkEvent(t *testing.T, repo *DLQRepository, eventType enums.OutboxEventType, reason enums.OutboxDLQErrorReason, failedAt time.Time) models.OutboxDLQ {
	t.Helper()
	msg := "topic missing"
	entry := models.OutboxDLQ{
		EventID:       uuid.New(),
		EventType:     eventType,
		AggregateType: enums.AggregateSwagOrder,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{"version":1,"eventId":"evt-1","data":{}}`),
		ErrorReason:   reason,
		ErrorMessage:  &msg,
		AttemptCount:  3,
		FailedAt:      failedAt,
	}
	require.NoError(t, repo.InsertTx(repo.db, entry))
	var stored models.OutboxDLQ
	require.NoError(t, repo.db.Where("event_id = ?", entry.EventID).First(&stored).Error)
	return stored
}

func TestDeadLettersListFiltersAndPages(t *testing.T) {
	conn := openOutboxDB(t)
	svc := NewDeadLetters(conn, logger.Nop())
	base := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

	parkEvent(t, svc.dlq, enums.EventSwagOrderCreated, enums.OutboxDLQReasonMaxAttempts, base)
	parkEvent(t, svc.dlq, enums.EventSwagOrderCreated, enums.OutboxDLQReasonMaxAttempts, base.Add(time.Minute))
	parkEvent(t, svc.dlq, enums.EventInvoiceIssued, enums.OutboxDLQReasonNonRetryable, base.Add(2*time.Minute))

	first, err := svc.List(context.Background(), DeadLetterFilter{EventType: enums.EventSwagOrderCreated}, pagination.Params{Limit: 1})
	require.NoError(t, err)
	require.Len(t, first.Items, 1)
	require.NotEmpty(t, first.NextCursor)
	require.True(t, first.Items[0].FailedAt.Equal(base.Add(time.Minute)))

	second, err := svc.List(context.Background(), DeadLetterFilter{EventType: enums.EventSwagOrderCreated}, pagination.Params{Limit: 1, Cursor: first.NextCursor})
	require.NoError(t, err)
	require.Len(t, second.Items, 1)
	require.Empty(t, second.NextCursor)

	byReason, err := svc.List(context.Background(), DeadLetterFilter{Reason: enums.OutboxDLQReasonNonRetryable}, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, byReason.Items, 1)
	require.Equal(t, enums.EventInvoiceIssued, byReason.Items[0].EventType)
}

func TestDeadLetterInsertIgnoresRepeatPark(t *testing.T) {
	conn := openOutboxDB(t)
	repo := NewDLQRepository(conn)
	parked := parkEvent(t, repo, enums.EventInvoiceIssued, enums.OutboxDLQReasonMaxAttempts, time.Now().UTC())

	again := parked
	again.ID = uuid.Nil
	require.NoError(t, repo.InsertTx(conn, again))

	var count int64
	require.NoError(t, conn.Model(&models.OutboxDLQ{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestDeadLetterReplayRequeuesPayload(t *testing.T) {
	conn := openOutboxDB(t)
	svc := NewDeadLetters(conn, logger.Nop())
	parked := parkEvent(t, svc.dlq, enums.EventSwagOrderCreated, enums.OutboxDLQReasonMaxAttempts, time.Now().UTC())

	queued, err := svc.Replay(context.Background(), parked.ID)
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, queued.ID)
	require.Equal(t, parked.AggregateID, queued.AggregateID)

	rows, err := svc.events.FetchUnpublishedForPublish(conn, 10, 5)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Zero(t, rows[0].AttemptCount)
	require.JSONEq(t, string(parked.Payload), string(rows[0].Payload))

	_, err = svc.Replay(context.Background(), parked.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}
