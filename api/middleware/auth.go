package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/bookswap/bookswap-backend/api/responses"
	pkgAuth "github.com/bookswap/bookswap-backend/pkg/auth"
	"github.com/bookswap/bookswap-backend/pkg/auth/session"
	"github.com/bookswap/bookswap-backend/pkg/config"
	pkgerrors "github.com/bookswap/bookswap-backend/pkg/errors"
	"github.com/bookswap/bookswap-backend/pkg/logger"
)

const authRequiredMessage = "Authentication required"

// Authenticator resolves the session cookie or bearer token into an identity.
type Authenticator struct {
	jwt        config.JWTConfig
	sessions   session.Checker
	cookieName string
	logg       *logger.Logger
}

func NewAuthenticator(jwt config.JWTConfig, sessions session.Checker, cookieName string, logg *logger.Logger) *Authenticator {
	return &Authenticator{jwt: jwt, sessions: sessions, cookieName: cookieName, logg: logg}
}

// Require rejects requests without a live session.
func (a *Authenticator) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, err := a.authenticate(r)
		if err != nil {
			responses.WriteError(r.Context(), a.logg, w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Optional attaches the identity when a valid session is presented and lets
// anonymous requests through otherwise.
func (a *Authenticator) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ctx, err := a.authenticate(r); err == nil {
			r = r.WithContext(ctx)
		}
		next.ServeHTTP(w, r)
	})
}

func (a *Authenticator) authenticate(r *http.Request) (context.Context, error) {
	token := a.tokenFrom(r)
	if token == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, authRequiredMessage)
	}

	claims, err := pkgAuth.ParseAccessToken(a.jwt, token)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "Invalid or expired session")
	}

	ctx := r.Context()
	role := string(claims.Role)
	if a.sessions != nil {
		record, err := a.sessions.Resolve(ctx, claims.SessionID())
		if err != nil {
			if errors.Is(err, session.ErrSessionNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "Invalid or expired session")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve session")
		}
		if record.UserID != claims.UserID {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "Invalid or expired session")
		}
		role = string(record.Role)
	}

	ctx = WithIdentity(ctx, claims.UserID.String(), role, claims.SessionID())
	if a.logg != nil {
		ctx = a.logg.WithFields(ctx, map[string]any{
			"user_id":    claims.UserID.String(),
			"actor_role": role,
		})
	}
	return ctx, nil
}

func (a *Authenticator) tokenFrom(r *http.Request) string {
	if a.cookieName != "" {
		if cookie, err := r.Cookie(a.cookieName); err == nil && strings.TrimSpace(cookie.Value) != "" {
			return strings.TrimSpace(cookie.Value)
		}
	}
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(raw) > 7 && strings.EqualFold(raw[:7], "bearer ") {
		return strings.TrimSpace(raw[7:])
	}
	return ""
}
