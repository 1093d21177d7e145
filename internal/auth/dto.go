package auth

import (
	"time"

	"github.com/bookswap/bookswap-backend/internal/users"
)

// RegisterRequest is the public sign-up payload. Role is never accepted from
// the client.
type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=30,username"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	ClientIP string `json:"-"`
}

// LoginRequest captures the user credentials sent to the login endpoint.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	ClientIP string `json:"-"`
}

// Session is the outcome of a successful register or login. Token carries
// the session id and is also set as the session cookie.
type Session struct {
	User      *users.UserDTO
	Token     string
	SessionID string
	ExpiresAt time.Time
}
