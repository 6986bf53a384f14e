package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/printz/fulfillment-backend/internal/auth"
	"github.com/printz/fulfillment-backend/internal/users"
	"github.com/printz/fulfillment-backend/pkg/config"
	"github.com/printz/fulfillment-backend/pkg/enums"
	pkgerrors "github.com/printz/fulfillment-backend/pkg/errors"
)

type stubAuthService struct {
	signin       func(ctx context.Context, req auth.SigninRequest) (*auth.SigninResponse, error)
	refresh      func(ctx context.Context, accessToken, refreshToken string) (*auth.SigninResponse, error)
	signoutToken string
}

func (s *stubAuthService) Signin(ctx context.Context, req auth.SigninRequest) (*auth.SigninResponse, error) {
	return s.signin(ctx, req)
}

func (s *stubAuthService) Refresh(ctx context.Context, accessToken, refreshToken string) (*auth.SigninResponse, error) {
	return s.refresh(ctx, accessToken, refreshToken)
}

func (s *stubAuthService) Signout(ctx context.Context, accessToken string) error {
	s.signoutToken = accessToken
	return nil
}

type stubRegisterService struct {
	err error
}

func (s stubRegisterService) Signup(ctx context.Context, req auth.SignupRequest) (*auth.SignupResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &auth.SignupResponse{User: &users.UserDTO{ID: uuid.New(), Email: req.Email, Role: enums.RoleCustomer}}, nil
}

func (s stubRegisterService) VerifyEmail(ctx context.Context, token string) (*users.UserDTO, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "verification token not found")
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "prod", CookieDomain: "printz.vn"},
		JWT: config.JWTConfig{Secret: "secret", Issuer: "printz", ExpirationMinutes: 15, RefreshTokenTTLMinutes: 60},
	}
}

func TestAuthSigninSetsRefreshCookie(t *testing.T) {
	svc := &stubAuthService{
		signin: func(ctx context.Context, req auth.SigninRequest) (*auth.SigninResponse, error) {
			require.Equal(t, "ops@printz.vn", req.Email)
			return &auth.SigninResponse{
				AccessToken:  "access",
				RefreshToken: "refresh-secret",
				User:         &users.UserDTO{ID: uuid.New(), Email: req.Email},
			}, nil
		},
	}
	body := []byte(`{"email":"ops@printz.vn","password":"hunter22"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/auth/signin", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	AuthSignin(svc, testConfig(), nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotContains(t, rec.Body.String(), "refresh-secret")

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, RefreshCookieName, cookies[0].Name)
	require.Equal(t, "refresh-secret", cookies[0].Value)
	require.True(t, cookies[0].HttpOnly)
	require.True(t, cookies[0].Secure)
	require.Equal(t, 3600, cookies[0].MaxAge)

	var payload struct {
		Data struct {
			AccessToken string `json:"accessToken"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.Equal(t, "access", payload.Data.AccessToken)
}

func TestAuthSigninInvalidCredentials(t *testing.T) {
	svc := &stubAuthService{
		signin: func(ctx context.Context, req auth.SigninRequest) (*auth.SigninResponse, error) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
		},
	}
	req := httptest.NewRequest(http.MethodPost, "/api/auth/signin", bytes.NewReader([]byte(`{"email":"a@printz.vn","password":"x"}`)))
	rec := httptest.NewRecorder()
	AuthSignin(svc, testConfig(), nil).ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Empty(t, rec.Result().Cookies())
}

func TestAuthRefreshRequiresCookie(t *testing.T) {
	svc := &stubAuthService{}
	req := httptest.NewRequest(http.MethodPost, "/api/auth/refresh", nil)
	req.Header.Set("Authorization", "Bearer expired")
	rec := httptest.NewRecorder()
	AuthRefresh(svc, testConfig(), nil).ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthRefreshRotatesCookie(t *testing.T) {
	svc := &stubAuthService{
		refresh: func(ctx context.Context, accessToken, refreshToken string) (*auth.SigninResponse, error) {
			require.Equal(t, "expired", accessToken)
			require.Equal(t, "old-refresh", refreshToken)
			return &auth.SigninResponse{AccessToken: "new-access", RefreshToken: "new-refresh"}, nil
		},
	}
	req := httptest.NewRequest(http.MethodPost, "/api/auth/refresh", nil)
	req.Header.Set("Authorization", "Bearer expired")
	req.AddCookie(&http.Cookie{Name: RefreshCookieName, Value: "old-refresh"})
	rec := httptest.NewRecorder()
	AuthRefresh(svc, testConfig(), nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, "new-refresh", cookies[0].Value)
}

func TestAuthSignoutClearsCookie(t *testing.T) {
	svc := &stubAuthService{}
	req := httptest.NewRequest(http.MethodPost, "/api/auth/signout", nil)
	req.Header.Set("Authorization", "Bearer token-1")
	rec := httptest.NewRecorder()
	AuthSignout(svc, testConfig(), nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "token-1", svc.signoutToken)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	require.True(t, cookies[0].MaxAge < 0)
}

func TestAuthSignupCreated(t *testing.T) {
	body := []byte(`{"email":"new@printz.vn","password":"longenough","name":"New Customer"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/auth/signup", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	AuthSignup(stubRegisterService{}, nil).ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)
}

func TestAuthSignupRejectsShortPassword(t *testing.T) {
	body := []byte(`{"email":"new@printz.vn","password":"short","name":"New Customer"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/auth/signup", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	AuthSignup(stubRegisterService{}, nil).ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthSignupDuplicateEmail(t *testing.T) {
	body := []byte(`{"email":"dup@printz.vn","password":"longenough","name":"Dup"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/auth/signup", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	AuthSignup(stubRegisterService{err: pkgerrors.New(pkgerrors.CodeConflict, "email already registered")}, nil).ServeHTTP(rec, req)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestAuthVerifyEmailUnknownToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/auth/verify-email", bytes.NewReader([]byte(`{"token":"missing"}`)))
	rec := httptest.NewRecorder()
	AuthVerifyEmail(stubRegisterService{}, nil).ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}
