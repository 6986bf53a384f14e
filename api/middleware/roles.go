package middleware

import (
	"fmt"
	"net/http"
	"slices"

	"github.com/printz/fulfillment-backend/api/responses"
	"github.com/printz/fulfillment-backend/pkg/enums"
	pkgerrors "github.com/printz/fulfillment-backend/pkg/errors"
	"github.com/printz/fulfillment-backend/pkg/logger"
)

// RequireRole admits callers whose role is in allowed. Mount it behind Auth;
// a request with no identity is treated as unauthenticated.
func RequireRole(logg *logger.Logger, allowed ...enums.UserRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller, ok := IdentityFrom(r.Context())
			switch {
			case !ok:
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
			case !slices.Contains(allowed, caller.Role):
				msg := fmt.Sprintf("role %q may not access this route", caller.Role)
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, msg))
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}
