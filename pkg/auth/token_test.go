package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/printz/fulfillment-backend/pkg/config"
	"github.com/printz/fulfillment-backend/pkg/enums"
)

var testCfg = config.JWTConfig{Secret: "secret", Issuer: "printz", ExpirationMinutes: 30}

func TestMintAndParseAccessToken(t *testing.T) {
	now := time.Now()
	userID := uuid.New()

	token, err := MintAccessToken(testCfg, now, AccessTokenPayload{
		UserID: userID,
		Email:  " Ops@Printz.VN ",
		Role:   enums.RoleStaff,
		JTI:    "session-1",
	})
	require.NoError(t, err)

	claims, err := ParseAccessToken(testCfg, token)
	require.NoError(t, err)
	require.Equal(t, userID, claims.UserID)
	require.Equal(t, enums.RoleStaff, claims.Role)
	require.Equal(t, "ops@printz.vn", claims.Email)
	require.Equal(t, "session-1", claims.ID)
	require.Equal(t, userID.String(), claims.Subject)
	require.Equal(t, "printz", claims.Issuer)
	require.WithinDuration(t, now.Add(30*time.Minute), claims.ExpiresAt.Time, time.Second)
}

func TestMintAccessTokenGeneratesJTI(t *testing.T) {
	token, err := MintAccessToken(testCfg, time.Now(), AccessTokenPayload{UserID: uuid.New(), Role: enums.RoleCustomer})
	require.NoError(t, err)
	claims, err := ParseAccessToken(testCfg, token)
	require.NoError(t, err)
	_, err = uuid.Parse(claims.ID)
	require.NoError(t, err)
}

func TestMintAccessTokenValidatesInput(t *testing.T) {
	cases := map[string]struct {
		cfg     config.JWTConfig
		payload AccessTokenPayload
	}{
		"no secret":  {config.JWTConfig{Issuer: "printz", ExpirationMinutes: 5}, AccessTokenPayload{UserID: uuid.New(), Role: enums.RoleAdmin}},
		"no issuer":  {config.JWTConfig{Secret: "s", ExpirationMinutes: 5}, AccessTokenPayload{UserID: uuid.New(), Role: enums.RoleAdmin}},
		"no ttl":     {config.JWTConfig{Secret: "s", Issuer: "printz"}, AccessTokenPayload{UserID: uuid.New(), Role: enums.RoleAdmin}},
		"no user":    {testCfg, AccessTokenPayload{Role: enums.RoleAdmin}},
		"empty role": {testCfg, AccessTokenPayload{UserID: uuid.New()}},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := MintAccessToken(tc.cfg, time.Now(), tc.payload)
			require.Error(t, err)
		})
	}
}

func TestParseAccessTokenExpired(t *testing.T) {
	token, err := MintAccessToken(testCfg, time.Now().Add(-time.Hour), AccessTokenPayload{
		UserID: uuid.New(),
		Role:   enums.RoleAdmin,
		JTI:    "old-session",
	})
	require.NoError(t, err)

	_, err = ParseAccessToken(testCfg, token)
	require.ErrorIs(t, err, jwt.ErrTokenExpired)

	claims, err := ParseAccessTokenAllowExpired(testCfg, token)
	require.NoError(t, err)
	require.Equal(t, "old-session", claims.ID)
}

func TestParseAccessTokenRejectsTampering(t *testing.T) {
	token, err := MintAccessToken(testCfg, time.Now(), AccessTokenPayload{UserID: uuid.New(), Role: enums.RoleAdmin})
	require.NoError(t, err)

	_, err = ParseAccessToken(testCfg, token+"x")
	require.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)

	other := testCfg
	other.Secret = "rotated"
	_, err = ParseAccessToken(other, token)
	require.Error(t, err)
	_, err = ParseAccessTokenAllowExpired(other, token)
	require.Error(t, err)

	other = testCfg
	other.Issuer = "someone-else"
	_, err = ParseAccessToken(other, token)
	require.ErrorIs(t, err, jwt.ErrTokenInvalidIssuer)
}

func TestParseAccessTokenRejectsOtherAlgorithms(t *testing.T) {
	claims := AccessTokenClaims{
		UserID:           uuid.New(),
		Role:             enums.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "printz", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testCfg.Secret))
	require.NoError(t, err)

	_, err = ParseAccessToken(testCfg, raw)
	require.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)
}

func TestParseAccessTokenRejectsForgedClaims(t *testing.T) {
	sign := func(c AccessTokenClaims) string {
		raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(testCfg.Secret))
		require.NoError(t, err)
		return raw
	}
	base := newAccessTokenClaims(testCfg.Issuer, time.Now(), time.Hour, AccessTokenPayload{UserID: uuid.New(), Role: enums.RoleStaff})

	badRole := base
	badRole.Role = "superuser"
	_, err := ParseAccessToken(testCfg, sign(badRole))
	require.ErrorIs(t, err, jwt.ErrTokenInvalidClaims)

	swapped := base
	swapped.UserID = uuid.New()
	_, err = ParseAccessToken(testCfg, sign(swapped))
	require.ErrorIs(t, err, jwt.ErrTokenInvalidClaims)
}

func TestParseAllowExpiredStillChecksIssuer(t *testing.T) {
	token, err := MintAccessToken(testCfg, time.Now().Add(-time.Hour*2), AccessTokenPayload{UserID: uuid.New(), Role: enums.RoleCustomer})
	require.NoError(t, err)

	claims, err := ParseAccessTokenAllowExpired(testCfg, token)
	require.NoError(t, err)
	require.NotEmpty(t, claims.ID)

	other := testCfg
	other.Issuer = "someone-else"
	_, err = ParseAccessTokenAllowExpired(other, token)
	require.ErrorIs(t, err, jwt.ErrTokenInvalidIssuer)
}
