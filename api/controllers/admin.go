package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/printz/fulfillment-backend/api/controllers/actorctx"
	"github.com/printz/fulfillment-backend/api/responses"
	"github.com/printz/fulfillment-backend/api/validators"
	"github.com/printz/fulfillment-backend/internal/auditlog"
	"github.com/printz/fulfillment-backend/internal/circuitbreaker"
	"github.com/printz/fulfillment-backend/internal/dashboard"
	pkgerrors "github.com/printz/fulfillment-backend/pkg/errors"
	"github.com/printz/fulfillment-backend/pkg/logger"
)

// BreakerControl is the operator surface of the circuit breaker registry.
type BreakerControl interface {
	List() []circuitbreaker.Status
	Get(name string) (circuitbreaker.Status, error)
	Reset(name string) (circuitbreaker.Status, error)
}

func AdminDashboardOverview(svc dashboard.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "dashboard service unavailable"))
			return
		}
		overview, err := svc.Overview(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, overview)
	}
}

func AdminListBreakers(breakers BreakerControl, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if breakers == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "circuit breakers unavailable"))
			return
		}
		responses.WriteSuccess(w, map[string]any{"breakers": breakers.List()})
	}
}

func AdminGetBreaker(breakers BreakerControl, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if breakers == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "circuit breakers unavailable"))
			return
		}
		status, err := breakers.Get(strings.TrimSpace(chi.URLParam(r, "name")))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, status)
	}
}

// AdminResetBreaker closes the named breaker and records who did it.
func AdminResetBreaker(breakers BreakerControl, audit auditlog.Recorder, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if breakers == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "circuit breakers unavailable"))
			return
		}
		actor, err := actorctx.Resolve(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		name := strings.TrimSpace(chi.URLParam(r, "name"))
		previous, err := breakers.Get(name)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := breakers.Reset(name)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if audit != nil {
			if err := audit.Record(r.Context(), nil, auditlog.Entry{
				Actor:        actor,
				Action:       auditlog.ActionBreakerReset,
				ResourceType: "circuit_breaker",
				ResourceID:   name,
				Details:      map[string]any{"previousState": previous.State},
			}); err != nil && logg != nil {
				logg.Error(r.Context(), "record breaker reset", err)
			}
		}
		if logg != nil {
			logg.Info(logg.WithFields(r.Context(), map[string]any{"breaker": name, "previous_state": previous.State}), "circuit breaker reset")
		}
		responses.WriteSuccess(w, status)
	}
}

func AdminListAuditLogs(svc auditlog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "audit log service unavailable"))
			return
		}
		page, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actorID, err := validators.ParseQueryUUID(r, "actorId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		q := r.URL.Query()
		result, err := svc.List(r.Context(), auditlog.ListParams{
			ResourceType: strings.TrimSpace(q.Get("resourceType")),
			ResourceID:   strings.TrimSpace(q.Get("resourceId")),
			ActorID:      actorID,
			Params:       page,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
