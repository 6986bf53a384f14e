package webhooks

import (
	"bytes"
	"io"
	"net/http"

	"github.com/printz/fulfillment-backend/api/responses"
	internalwebhooks "github.com/printz/fulfillment-backend/internal/webhooks"
	pkgerrors "github.com/printz/fulfillment-backend/pkg/errors"
	"github.com/printz/fulfillment-backend/pkg/logger"
)

const maxWebhookBody = 1 << 20

// AuthenticatorResolver picks the authenticator guarding a request. ok is
// false when no provider matches the route.
type AuthenticatorResolver func(r *http.Request) (auth internalwebhooks.Authenticator, ok bool)

// Static guards a route with a single authenticator.
func Static(auth internalwebhooks.Authenticator) AuthenticatorResolver {
	return func(*http.Request) (internalwebhooks.Authenticator, bool) {
		return auth, auth != nil
	}
}

// ByParam picks the authenticator keyed by a chi URL parameter.
func ByParam(param string, auths map[string]internalwebhooks.Authenticator) AuthenticatorResolver {
	return func(r *http.Request) (internalwebhooks.Authenticator, bool) {
		auth, ok := auths[urlParam(r, param)]
		return auth, ok && auth != nil
	}
}

// Authenticate reads the raw body once, rejects the delivery with 401 unless
// the resolved authenticator accepts it, and hands the body on untouched.
// Nothing behind it parses a payload that failed authentication.
func Authenticate(resolve AuthenticatorResolver, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			auth, ok := resolve(r)
			if !ok {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "unknown webhook provider"))
				return
			}

			body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
				return
			}

			if err := auth.Authenticate(r, body); err != nil {
				if logg != nil {
					logg.Warn(logg.WithField(ctx, "path", r.URL.Path), "webhook authentication failed")
				}
				if pkgerrors.As(err) == nil {
					err = pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "webhook authentication failed")
				}
				responses.WriteError(ctx, logg, w, err)
				return
			}

			r.Body = io.NopCloser(bytes.NewReader(body))
			next.ServeHTTP(w, r)
		})
	}
}
