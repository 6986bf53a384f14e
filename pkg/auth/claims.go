package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/printz/fulfillment-backend/pkg/enums"
)

// AccessTokenPayload is what the auth service knows when it signs a token.
type AccessTokenPayload struct {
	UserID uuid.UUID
	Email  string
	Role   enums.UserRole
	JTI    string
}

// AccessTokenClaims is the signed body of an access token. The registered
// jti doubles as the session id in Redis.
type AccessTokenClaims struct {
	UserID uuid.UUID      `json:"user_id"`
	Email  string         `json:"email,omitempty"`
	Role   enums.UserRole `json:"role"`
	jwt.RegisteredClaims
}

func newAccessTokenClaims(issuer string, now time.Time, ttl time.Duration, p AccessTokenPayload) AccessTokenClaims {
	jti := strings.TrimSpace(p.JTI)
	if jti == "" {
		jti = uuid.NewString()
	}
	now = now.UTC()
	return AccessTokenClaims{
		UserID: p.UserID,
		Email:  strings.ToLower(strings.TrimSpace(p.Email)),
		Role:   p.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Issuer:    issuer,
			Subject:   p.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
}

// Validate is called by the jwt parser after the registered claims pass.
func (c AccessTokenClaims) Validate() error {
	if !c.Role.IsValid() {
		return fmt.Errorf("%w: unknown role %q", jwt.ErrTokenInvalidClaims, c.Role)
	}
	if c.Subject != "" && c.Subject != c.UserID.String() {
		return fmt.Errorf("%w: subject does not match user_id", jwt.ErrTokenInvalidClaims)
	}
	return nil
}
