package actorctx

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/printz/fulfillment-backend/api/middleware"
	"github.com/printz/fulfillment-backend/pkg/enums"
	pkgerrors "github.com/printz/fulfillment-backend/pkg/errors"
)

func TestResolve(t *testing.T) {
	id := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(middleware.WithIdentity(req.Context(), id, enums.RoleStaff))

	actor, err := Resolve(req)
	require.NoError(t, err)
	require.Equal(t, id, actor.UserID)
	require.Equal(t, enums.RoleStaff, actor.Role)
}

func TestResolveWithoutIdentity(t *testing.T) {
	_, err := Resolve(httptest.NewRequest(http.MethodGet, "/", nil))
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
}
