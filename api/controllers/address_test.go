package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/printz/fulfillment-backend/internal/address"
	"github.com/printz/fulfillment-backend/pkg/logger"
)

type fakeAddress struct {
	gotQuery string
	gotPlace string
}

func (f *fakeAddress) Suggest(_ context.Context, req address.SuggestRequest) ([]address.Suggestion, error) {
	f.gotQuery = req.Query
	return []address.Suggestion{{PlaceID: "p1", Description: "12 Nguyễn Huệ"}}, nil
}

func (f *fakeAddress) Resolve(_ context.Context, placeID string) (address.Resolved, error) {
	f.gotPlace = placeID
	return address.Resolved{PlaceID: placeID, Street: "12 Nguyễn Huệ", City: "Hồ Chí Minh", Country: "VN"}, nil
}

func TestAddressSuggestReadsQuery(t *testing.T) {
	svc := &fakeAddress{}
	rec := httptest.NewRecorder()
	AddressSuggest(svc, logger.Nop())(rec, httptest.NewRequest(http.MethodGet, "/api/address/suggest?q=12+Nguyen", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "12 Nguyen", svc.gotQuery)
	require.Contains(t, rec.Body.String(), `"placeId":"p1"`)
}

func TestAddressResolveRequiresPlaceID(t *testing.T) {
	rec := httptest.NewRecorder()
	AddressResolve(&fakeAddress{}, logger.Nop())(rec, httptest.NewRequest(http.MethodPost, "/api/address/resolve", strings.NewReader(`{}`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAddressResolveReturnsRecipientFields(t *testing.T) {
	svc := &fakeAddress{}
	rec := httptest.NewRecorder()
	AddressResolve(svc, logger.Nop())(rec, httptest.NewRequest(http.MethodPost, "/api/address/resolve", strings.NewReader(`{"placeId":"p9"}`)))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "p9", svc.gotPlace)
	var body struct {
		Data address.Resolved `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "Hồ Chí Minh", body.Data.City)
}

func TestAddressSuggestUnconfigured(t *testing.T) {
	rec := httptest.NewRecorder()
	AddressSuggest(address.NewService(nil), logger.Nop())(rec, httptest.NewRequest(http.MethodGet, "/api/address/suggest?q=abc", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
