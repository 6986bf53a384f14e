package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/printz/fulfillment-backend/api/responses"
	pkgAuth "github.com/printz/fulfillment-backend/pkg/auth"
	"github.com/printz/fulfillment-backend/pkg/auth/session"
	"github.com/printz/fulfillment-backend/pkg/config"
	pkgerrors "github.com/printz/fulfillment-backend/pkg/errors"
	"github.com/printz/fulfillment-backend/pkg/logger"
)

// BearerToken reads the Authorization header. The "Bearer" scheme is
// optional and matched case-insensitively.
func BearerToken(r *http.Request) (string, error) {
	token := strings.TrimSpace(r.Header.Get("Authorization"))
	if scheme, rest, found := strings.Cut(token, " "); found && strings.EqualFold(scheme, "bearer") {
		token = strings.TrimSpace(rest)
	} else if strings.EqualFold(token, "bearer") {
		token = ""
	}
	if token == "" {
		return "", pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	return token, nil
}

// Auth admits requests carrying a valid access token whose session is still
// open, and attaches the caller Identity to the request context.
func Auth(cfg config.JWTConfig, sessions session.AccessSessionChecker, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller, err := authenticate(r, cfg, sessions)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			ctx := withIdentity(r.Context(), caller)
			if logg != nil {
				ctx = logg.WithActor(ctx, caller.UserID.String(), string(caller.Role))
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func authenticate(r *http.Request, cfg config.JWTConfig, sessions session.AccessSessionChecker) (Identity, error) {
	token, err := BearerToken(r)
	if err != nil {
		return Identity{}, err
	}
	claims, err := pkgAuth.ParseAccessToken(cfg, token)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return Identity{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "token expired")
	case err != nil:
		return Identity{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token")
	case claims.ID == "":
		return Identity{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "token has no session")
	}
	if sessions != nil {
		open, err := sessions.HasSession(r.Context(), claims.ID)
		if err != nil {
			return Identity{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check session")
		}
		if !open {
			return Identity{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "session revoked")
		}
	}
	return Identity{UserID: claims.UserID, Role: claims.Role, SessionID: claims.ID, IP: ClientIP(r)}, nil
}
