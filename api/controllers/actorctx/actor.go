package actorctx

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/printz/fulfillment-backend/api/middleware"
	"github.com/printz/fulfillment-backend/internal/auditlog"
	pkgerrors "github.com/printz/fulfillment-backend/pkg/errors"
)

// UserID extracts the authenticated caller.
func UserID(r *http.Request) (uuid.UUID, error) {
	caller, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	return caller.UserID, nil
}

// Resolve builds the audit actor for the current request.
func Resolve(r *http.Request) (auditlog.Actor, error) {
	caller, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		return auditlog.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	return auditlog.Actor{UserID: caller.UserID, Role: caller.Role, IP: caller.IP}, nil
}
