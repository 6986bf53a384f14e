package controllers

import (
	"net/http"
	"strings"

	"github.com/printz/fulfillment-backend/api/responses"
	"github.com/printz/fulfillment-backend/api/validators"
	"github.com/printz/fulfillment-backend/internal/address"
	pkgerrors "github.com/printz/fulfillment-backend/pkg/errors"
	"github.com/printz/fulfillment-backend/pkg/logger"
)

type resolveAddressRequest struct {
	PlaceID string `json:"placeId" validate:"required"`
}

// AddressSuggest returns place predictions for a partially typed recipient address.
func AddressSuggest(svc address.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "address service unavailable"))
			return
		}
		q := r.URL.Query()
		suggestions, err := svc.Suggest(r.Context(), address.SuggestRequest{
			Query:    strings.TrimSpace(q.Get("q")),
			Country:  strings.TrimSpace(q.Get("country")),
			Language: strings.TrimSpace(q.Get("language")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"suggestions": suggestions})
	}
}

// AddressResolve turns a place id into street, ward, district and city fields.
func AddressResolve(svc address.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "address service unavailable"))
			return
		}
		var req resolveAddressRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		resolved, err := svc.Resolve(r.Context(), req.PlaceID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, resolved)
	}
}
