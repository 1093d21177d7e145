package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/bookswap/bookswap-backend/api/middleware"
	"github.com/bookswap/bookswap-backend/internal/auth"
	"github.com/bookswap/bookswap-backend/internal/users"
	"github.com/bookswap/bookswap-backend/pkg/config"
	"github.com/bookswap/bookswap-backend/pkg/enums"
	pkgerrors "github.com/bookswap/bookswap-backend/pkg/errors"
)

type stubAuth struct {
	registered auth.RegisterRequest
	revoked    string
	err        error
}

func (s *stubAuth) session(username, email string) *auth.Session {
	return &auth.Session{
		User:      &users.UserDTO{ID: uuid.New(), Username: username, Email: email, Role: enums.UserRoleUser},
		Token:     "signed-token",
		SessionID: "sess-1",
		ExpiresAt: time.Now().Add(time.Hour),
	}
}

func (s *stubAuth) Register(ctx context.Context, req auth.RegisterRequest) (*auth.Session, error) {
	s.registered = req
	if s.err != nil {
		return nil, s.err
	}
	return s.session(req.Username, req.Email), nil
}

func (s *stubAuth) Login(ctx context.Context, req auth.LoginRequest) (*auth.Session, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.session("reader", req.Email), nil
}

func (s *stubAuth) Logout(ctx context.Context, sessionID string) error {
	s.revoked = sessionID
	return s.err
}

func (s *stubAuth) Me(ctx context.Context, userID uuid.UUID) (*users.UserDTO, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &users.UserDTO{ID: userID, Username: "reader"}, nil
}

var testCookies = config.SessionConfig{CookieName: "bookswap_session"}

func sessionCookie(resp *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range resp.Result().Cookies() {
		if c.Name == testCookies.CookieName {
			return c
		}
	}
	return nil
}

func TestAuthRegisterSetsCookie(t *testing.T) {
	svc := &stubAuth{}
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(`{"username":"reader_1","email":"r@example.com","password":"secret1"}`))
	req.RemoteAddr = "10.0.0.9:5555"
	resp := httptest.NewRecorder()
	AuthRegister(svc, testCookies, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	cookie := sessionCookie(resp)
	if cookie == nil || cookie.Value != "signed-token" || !cookie.HttpOnly {
		t.Fatalf("expected http-only session cookie, got %+v", cookie)
	}
	if svc.registered.ClientIP != "10.0.0.9" {
		t.Fatalf("expected client ip to be forwarded, got %q", svc.registered.ClientIP)
	}
	env := decodeEnvelope(t, resp)
	if dataString(t, env, "message") != "User registered successfully" || dataString(t, env, "token") != "signed-token" {
		t.Fatalf("unexpected payload %v", env.Data)
	}
}

func TestAuthRegisterValidation(t *testing.T) {
	bodies := []string{
		`{"username":"ab","email":"r@example.com","password":"secret1"}`,
		`{"username":"bad name","email":"r@example.com","password":"secret1"}`,
		`{"username":"reader","email":"nope","password":"secret1"}`,
		`{"username":"reader","email":"r@example.com","password":"123"}`,
		`{"username":"reader","email":"r@example.com","password":"secret1","role":"admin"}`,
	}
	for _, body := range bodies {
		svc := &stubAuth{}
		resp := httptest.NewRecorder()
		AuthRegister(svc, testCookies, nil).ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(body)))
		if resp.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400 got %d", body, resp.Code)
		}
		if svc.registered.Email != "" {
			t.Fatalf("%s: service should not be called", body)
		}
	}
}

func TestAuthLoginInvalidCredentials(t *testing.T) {
	svc := &stubAuth{err: pkgerrors.New(pkgerrors.CodeUnauthorized, "Invalid credentials")}
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"email":"r@example.com","password":"wrong"}`))
	resp := httptest.NewRecorder()
	AuthLogin(svc, testCookies, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
	if sessionCookie(resp) != nil {
		t.Fatalf("no cookie expected on failed login")
	}
}

func TestAuthLogoutClearsCookie(t *testing.T) {
	svc := &stubAuth{}
	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	req = req.WithContext(middleware.WithIdentity(req.Context(), uuid.NewString(), "user", "sess-42"))
	resp := httptest.NewRecorder()
	AuthLogout(svc, testCookies, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK || svc.revoked != "sess-42" {
		t.Fatalf("expected revoke of sess-42, got %d %q", resp.Code, svc.revoked)
	}
	if cookie := sessionCookie(resp); cookie == nil || cookie.MaxAge >= 0 {
		t.Fatalf("expected expired cookie, got %+v", cookie)
	}
}

func TestAuthMe(t *testing.T) {
	req := asUser(httptest.NewRequest(http.MethodGet, "/api/auth/me", nil), uuid.New(), enums.UserRoleUser)
	resp := httptest.NewRecorder()
	AuthMe(&stubAuth{}, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if _, ok := decodeEnvelope(t, resp).Data["user"]; !ok {
		t.Fatalf("expected user in payload")
	}
}
