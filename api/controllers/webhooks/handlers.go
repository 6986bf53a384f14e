package webhooks

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/printz/fulfillment-backend/api/responses"
	internalwebhooks "github.com/printz/fulfillment-backend/internal/webhooks"
	pkgerrors "github.com/printz/fulfillment-backend/pkg/errors"
	"github.com/printz/fulfillment-backend/pkg/logger"
)

// Consumer processes authenticated webhook bodies.
type Consumer interface {
	HandleCarrier(ctx context.Context, carrier string, body []byte) (string, error)
	HandlePayOS(ctx context.Context, body []byte) (string, error)
}

type ack struct {
	Success bool   `json:"success"`
	Result  string `json:"result,omitempty"`
}

// Carrier applies a carrier status push. Processing failures surface as
// errors so the carrier retries; duplicates and unknown shipments are acked.
func Carrier(svc Consumer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
			return
		}

		result, err := svc.HandleCarrier(ctx, urlParam(r, "carrier"), body)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteRaw(w, http.StatusOK, ack{Success: true, Result: result})
	}
}

// PayOS always acknowledges an authenticated delivery. PayOS does not act on
// the response body, so failures are only logged.
func PayOS(svc Consumer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
			return
		}

		result, err := svc.HandlePayOS(ctx, body)
		if err != nil && logg != nil {
			logg.Error(logg.WithField(ctx, "result", result), "payos webhook processing failed", err)
		}
		responses.WriteRaw(w, http.StatusOK, ack{Success: true, Result: result})
	}
}

func urlParam(r *http.Request, name string) string {
	return strings.ToLower(strings.TrimSpace(chi.URLParam(r, name)))
}

var _ Consumer = (*internalwebhooks.Service)(nil)
