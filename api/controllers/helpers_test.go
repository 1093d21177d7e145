package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/bookswap/bookswap-backend/api/middleware"
	"github.com/bookswap/bookswap-backend/internal/users"
	"github.com/bookswap/bookswap-backend/pkg/enums"
)

func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.RouteContext(req.Context())
	if rctx == nil {
		rctx = chi.NewRouteContext()
	}
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func asUser(req *http.Request, userID uuid.UUID, role enums.UserRole) *http.Request {
	return req.WithContext(middleware.WithIdentity(req.Context(), userID.String(), string(role), "sess-1"))
}

type envelope struct {
	Data  map[string]json.RawMessage `json:"data"`
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func decodeEnvelope(t *testing.T, resp *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return env
}

func dataString(t *testing.T, env envelope, key string) string {
	t.Helper()
	raw, ok := env.Data[key]
	if !ok {
		t.Fatalf("missing data.%s in %v", key, env.Data)
	}
	var out string
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("data.%s is not a string: %s", key, raw)
	}
	return out
}

type stubNamer struct {
	name string
	err  error
}

func (s stubNamer) Me(ctx context.Context, userID uuid.UUID) (*users.UserDTO, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &users.UserDTO{ID: userID, Username: s.name}, nil
}

func TestCurrentUserRequiresIdentity(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if _, err := currentUser(req); err == nil {
		t.Fatalf("expected error without identity")
	}

	id := uuid.New()
	caller, err := currentUser(asUser(req, id, enums.UserRoleAdmin))
	if err != nil {
		t.Fatalf("current user: %v", err)
	}
	if caller.UserID != id || caller.Role != enums.UserRoleAdmin {
		t.Fatalf("unexpected identity %+v", caller)
	}
}

func TestDecodeOptionalJSONEmptyBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPut, "/", nil)
	var body approveRequest
	if err := decodeOptionalJSON(req, &body); err != nil {
		t.Fatalf("empty body should be accepted: %v", err)
	}
	if body.ProcessedBy != "" {
		t.Fatalf("expected zero value, got %q", body.ProcessedBy)
	}
}
