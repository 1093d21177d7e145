package auth

import (
	"github.com/bookswap/bookswap-backend/pkg/enums"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessTokenPayload captures the data available when minting a JWT.
// SessionID ties the token to a revocable server-side session.
type AccessTokenPayload struct {
	UserID    uuid.UUID
	Role      enums.UserRole
	SessionID string
}

// AccessTokenClaims represents the typed JWT issued to clients. The JWT ID
// carries the session identifier.
type AccessTokenClaims struct {
	UserID uuid.UUID      `json:"user_id"`
	Role   enums.UserRole `json:"role"`
	jwt.RegisteredClaims
}

// SessionID returns the session identifier encoded as the JWT ID.
func (c *AccessTokenClaims) SessionID() string {
	if c == nil {
		return ""
	}
	return c.ID
}
