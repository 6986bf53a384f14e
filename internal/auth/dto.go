package auth

import (
	"github.com/printz/fulfillment-backend/internal/users"
	"github.com/printz/fulfillment-backend/pkg/enums"
)

// SigninRequest captures the user credentials sent to the signin endpoint.
type SigninRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// SigninResponse carries the minted access token and the signed-in user. The
// refresh token travels in an httpOnly cookie and never in the body.
type SigninResponse struct {
	AccessToken  string         `json:"accessToken"`
	RefreshToken string         `json:"-"`
	User         *users.UserDTO `json:"user"`
}

// SignupRequest creates a customer account.
type SignupRequest struct {
	Email    string  `json:"email" validate:"required,email"`
	Password string  `json:"password" validate:"required,min=8"`
	Name     string  `json:"name" validate:"required"`
	Phone    *string `json:"phone,omitempty"`
}

// SignupResponse returns the created user. The verification token is only
// echoed outside production so local flows can verify without email.
type SignupResponse struct {
	User              *users.UserDTO `json:"user"`
	VerificationToken string         `json:"verificationToken,omitempty"`
}

type VerifyEmailRequest struct {
	Token string `json:"token" validate:"required"`
}

// AdminRegisterRequest creates back-office accounts that skip verification.
type AdminRegisterRequest struct {
	Email    string         `json:"email" validate:"required,email"`
	Password string         `json:"password" validate:"required,min=8"`
	Name     string         `json:"name" validate:"required"`
	Phone    *string        `json:"phone,omitempty"`
	Role     enums.UserRole `json:"role" validate:"required"`
}
