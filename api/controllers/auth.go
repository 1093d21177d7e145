package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/bookswap/bookswap-backend/api/middleware"
	"github.com/bookswap/bookswap-backend/api/responses"
	"github.com/bookswap/bookswap-backend/api/validators"
	"github.com/bookswap/bookswap-backend/internal/auth"
	"github.com/bookswap/bookswap-backend/internal/users"
	"github.com/bookswap/bookswap-backend/pkg/config"
	"github.com/bookswap/bookswap-backend/pkg/logger"
)

type authService interface {
	Register(ctx context.Context, req auth.RegisterRequest) (*auth.Session, error)
	Login(ctx context.Context, req auth.LoginRequest) (*auth.Session, error)
	Logout(ctx context.Context, sessionID string) error
	Me(ctx context.Context, userID uuid.UUID) (*users.UserDTO, error)
}

type sessionResponse struct {
	Message string         `json:"message"`
	User    *users.UserDTO `json:"user"`
	Token   string         `json:"token"`
}

func AuthRegister(svc authService, cookies config.SessionConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body auth.RegisterRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		body.ClientIP = middleware.ClientIP(r)

		sess, err := svc.Register(r.Context(), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		setSessionCookie(w, cookies, sess.Token, sess.ExpiresAt)
		responses.WriteSuccessStatus(w, http.StatusCreated, sessionResponse{
			Message: "User registered successfully",
			User:    sess.User,
			Token:   sess.Token,
		})
	}
}

func AuthLogin(svc authService, cookies config.SessionConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body auth.LoginRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		body.ClientIP = middleware.ClientIP(r)

		sess, err := svc.Login(r.Context(), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		setSessionCookie(w, cookies, sess.Token, sess.ExpiresAt)
		responses.WriteSuccess(w, sessionResponse{
			Message: "Login successful",
			User:    sess.User,
			Token:   sess.Token,
		})
	}
}

// AuthLogout revokes the caller's session if there is one and always clears
// the cookie.
func AuthLogout(svc authService, cookies config.SessionConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Logout(r.Context(), middleware.SessionIDFromContext(r.Context())); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		clearSessionCookie(w, cookies)
		responses.WriteMessage(w, http.StatusOK, "Logout successful", nil)
	}
}

func AuthMe(svc authService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := currentUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		user, err := svc.Me(r.Context(), caller.UserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"user": user})
	}
}

func setSessionCookie(w http.ResponseWriter, cfg config.SessionConfig, token string, expires time.Time) {
	maxAge := int(time.Until(expires).Seconds())
	if maxAge < 1 {
		maxAge = 1
	}
	http.SetCookie(w, &http.Cookie{
		Name:     cfg.CookieName,
		Value:    token,
		Path:     "/",
		Domain:   cfg.CookieDomain,
		Expires:  expires,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(w http.ResponseWriter, cfg config.SessionConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     cfg.CookieName,
		Value:    "",
		Path:     "/",
		Domain:   cfg.CookieDomain,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
