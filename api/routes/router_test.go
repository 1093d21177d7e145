package routes

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/bookswap/bookswap-backend/internal/auth"
	"github.com/bookswap/bookswap-backend/internal/cart"
	"github.com/bookswap/bookswap-backend/internal/listings"
	"github.com/bookswap/bookswap-backend/internal/purchases"
	"github.com/bookswap/bookswap-backend/internal/uploads"
	"github.com/bookswap/bookswap-backend/internal/users"
	pkgAuth "github.com/bookswap/bookswap-backend/pkg/auth"
	"github.com/bookswap/bookswap-backend/pkg/auth/session"
	"github.com/bookswap/bookswap-backend/pkg/config"
	"github.com/bookswap/bookswap-backend/pkg/enums"
	"github.com/bookswap/bookswap-backend/pkg/logger"
	"github.com/bookswap/bookswap-backend/pkg/storage"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

// stubCache is an in-memory stand-in for the Redis client.
type stubCache struct {
	mu      sync.Mutex
	values  map[string]string
	counts  map[string]int64
	allowed bool
}

func newStubCache() *stubCache {
	return &stubCache{values: map[string]string{}, counts: map[string]int64{}, allowed: true}
}

func (c *stubCache) Ping(context.Context) error { return nil }

func (c *stubCache) FixedWindowAllow(_ context.Context, scope string, limit int64, _ time.Duration) (bool, int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[scope]++
	return c.allowed && c.counts[scope] <= limit, c.counts[scope], nil
}

func (c *stubCache) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.values[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (c *stubCache) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.values[key]; ok {
		return false, nil
	}
	c.values[key] = value.(string)
	return true, nil
}

func (c *stubCache) IdempotencyKey(scope, id string) string {
	return "test:idem:" + scope + ":" + id
}

type stubSessions struct {
	records map[string]*session.Record
}

func (s stubSessions) Resolve(_ context.Context, sessionID string) (*session.Record, error) {
	if rec, ok := s.records[sessionID]; ok {
		return rec, nil
	}
	return nil, session.ErrSessionNotFound
}

type stubAuth struct{}

func (stubAuth) Register(context.Context, auth.RegisterRequest) (*auth.Session, error) {
	return nil, nil
}

func (stubAuth) Login(context.Context, auth.LoginRequest) (*auth.Session, error) {
	return nil, nil
}

func (stubAuth) Logout(context.Context, string) error {
	return nil
}

func (stubAuth) Me(_ context.Context, userID uuid.UUID) (*users.UserDTO, error) {
	return &users.UserDTO{ID: userID, Username: "admin"}, nil
}

type stubListings struct{}

func (stubListings) Create(context.Context, uuid.UUID, listings.CreateInput, []uploads.File) (*listings.ListingDTO, error) {
	return &listings.ListingDTO{}, nil
}

func (stubListings) List(context.Context, listings.Filters) (*listings.ListResult, error) {
	return &listings.ListResult{Listings: []listings.ListingDTO{}}, nil
}

func (stubListings) Get(_ context.Context, id uuid.UUID) (*listings.ListingDTO, error) {
	return &listings.ListingDTO{ID: id}, nil
}

func (stubListings) Delete(context.Context, uuid.UUID, enums.UserRole, uuid.UUID) error {
	return nil
}

func (stubListings) UpdateStock(_ context.Context, id uuid.UUID, _ listings.StockUpdate) (*listings.ListingDTO, error) {
	return &listings.ListingDTO{ID: id}, nil
}

type stubCart struct{}

func (stubCart) empty() *cart.CartView {
	return &cart.CartView{Items: []cart.ItemView{}}
}

func (s stubCart) AddItem(context.Context, uuid.UUID, uuid.UUID, int) (*cart.CartView, error) {
	return s.empty(), nil
}

func (s stubCart) UpdateItem(context.Context, uuid.UUID, uuid.UUID, int) (*cart.CartView, error) {
	return s.empty(), nil
}

func (s stubCart) RemoveItem(context.Context, uuid.UUID, uuid.UUID) (*cart.CartView, error) {
	return s.empty(), nil
}

func (stubCart) Clear(context.Context, uuid.UUID) error {
	return nil
}

func (s stubCart) ReadCart(context.Context, uuid.UUID) (*cart.CartView, error) {
	return s.empty(), nil
}

func (stubCart) ReconcileAll(context.Context, int) (int, error) {
	return 0, nil
}

type stubPurchases struct {
	mu      sync.Mutex
	submits int
}

func (s *stubPurchases) Submit(_ context.Context, input purchases.SubmitInput, _ *uploads.File) (*purchases.SubmitResult, error) {
	s.mu.Lock()
	s.submits++
	s.mu.Unlock()
	return &purchases.SubmitResult{ID: uuid.New(), BookTitle: input.BookTitle, Quantity: input.Quantity, Status: enums.PurchaseStatusPending}, nil
}

func (s *stubPurchases) List(context.Context, purchases.ListParams) (*purchases.ListResult, error) {
	return &purchases.ListResult{Notifications: []purchases.NotificationDTO{}}, nil
}

func (s *stubPurchases) Get(_ context.Context, id uuid.UUID) (*purchases.NotificationDTO, error) {
	return &purchases.NotificationDTO{ID: id}, nil
}

func (s *stubPurchases) Approve(_ context.Context, id uuid.UUID, _ purchases.Actor) (*purchases.ApproveResult, error) {
	return &purchases.ApproveResult{}, nil
}

func (s *stubPurchases) Reject(_ context.Context, id uuid.UUID, reason string, _ purchases.Actor) (*purchases.RejectResult, error) {
	return &purchases.RejectResult{ID: id, RejectionReason: reason}, nil
}

func (s *stubPurchases) Delete(context.Context, uuid.UUID) error {
	return nil
}

func (s *stubPurchases) OpenProof(context.Context, uuid.UUID) (io.ReadCloser, storage.ObjectInfo, error) {
	return io.NopCloser(strings.NewReader("")), storage.ObjectInfo{}, nil
}

type stubImages struct{}

func (stubImages) OpenListingImage(context.Context, string) (io.ReadCloser, storage.ObjectInfo, error) {
	return io.NopCloser(strings.NewReader("img")), storage.ObjectInfo{ContentType: "image/png", Size: 3}, nil
}

type testRouter struct {
	handler   http.Handler
	cfg       *config.Config
	cache     *stubCache
	sessions  stubSessions
	purchases *stubPurchases
}

func testConfig() *config.Config {
	return &config.Config{
		App:       config.AppConfig{Env: "test", Port: "0"},
		JWT:       config.JWTConfig{Secret: "secret", Issuer: "bookswap", ExpirationMinutes: 60},
		Session:   config.SessionConfig{CookieName: "bookswap_session"},
		RateLimit: config.RateLimitConfig{PurchaseWindow: time.Minute, PurchaseIPLimit: 2},
		CORS:      config.CORSConfig{AllowedOrigins: []string{"http://localhost:3000"}},
		Eventing:  config.EventingConfig{IdempotencyTTL: time.Hour},
		Storage:   config.StorageConfig{MaxImageMB: 5},
	}
}

func newTestRouter() *testRouter {
	tr := &testRouter{
		cfg:       testConfig(),
		cache:     newStubCache(),
		sessions:  stubSessions{records: map[string]*session.Record{}},
		purchases: &stubPurchases{},
	}
	tr.handler = NewRouter(Dependencies{
		Config:    tr.cfg,
		Logger:    logger.New(logger.Options{ServiceName: "test-routing", Level: "debug", Output: io.Discard}),
		DB:        stubPinger{},
		Cache:     tr.cache,
		Sessions:  tr.sessions,
		Auth:      stubAuth{},
		Listings:  stubListings{},
		Cart:      stubCart{},
		Purchases: tr.purchases,
		Images:    stubImages{},
	})
	return tr
}

func (tr *testRouter) login(t *testing.T, role enums.UserRole) string {
	t.Helper()
	userID := uuid.New()
	sessionID := uuid.NewString()
	tr.sessions.records[sessionID] = &session.Record{UserID: userID, Role: role, CreatedAt: time.Now()}
	token, err := pkgAuth.MintAccessToken(tr.cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{
		UserID:    userID,
		Role:      role,
		SessionID: sessionID,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func (tr *testRouter) do(req *http.Request) *httptest.ResponseRecorder {
	resp := httptest.NewRecorder()
	tr.handler.ServeHTTP(resp, req)
	return resp
}

func purchaseForm(t *testing.T) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	_ = mw.WriteField("bookTitle", "Dune")
	_ = mw.WriteField("bookAuthor", "Frank Herbert")
	_ = mw.WriteField("quantityPurchased", "1")
	part, err := mw.CreateFormFile("transactionProof", "proof.png")
	if err != nil {
		t.Fatalf("create proof: %v", err)
	}
	_, _ = part.Write([]byte("\x89PNG\r\n\x1a\n"))
	_ = mw.Close()
	return buf, mw.FormDataContentType()
}

func TestHealthRoutes(t *testing.T) {
	tr := newTestRouter()
	for _, path := range []string{"/health/live", "/health/ready"} {
		if resp := tr.do(httptest.NewRequest(http.MethodGet, path, nil)); resp.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 got %d", path, resp.Code)
		}
	}
}

func TestPublicRoutesNeedNoSession(t *testing.T) {
	tr := newTestRouter()
	for _, path := range []string{"/api/listings", "/api/listings/" + uuid.NewString(), "/api/uploads/cover.png"} {
		if resp := tr.do(httptest.NewRequest(http.MethodGet, path, nil)); resp.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 got %d", path, resp.Code)
		}
	}
}

func TestSessionRoutesRejectAnonymous(t *testing.T) {
	tr := newTestRouter()
	cases := []struct{ method, path string }{
		{http.MethodGet, "/api/cart"},
		{http.MethodDelete, "/api/cart/clear"},
		{http.MethodGet, "/api/auth/me"},
		{http.MethodPost, "/api/listings"},
		{http.MethodGet, "/api/purchase-notifications"},
	}
	for _, tc := range cases {
		if resp := tr.do(httptest.NewRequest(tc.method, tc.path, nil)); resp.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s: expected 401 got %d", tc.method, tc.path, resp.Code)
		}
	}
}

func TestSessionCookieAuthenticatesCart(t *testing.T) {
	tr := newTestRouter()
	req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	req.AddCookie(&http.Cookie{Name: "bookswap_session", Value: tr.login(t, enums.UserRoleUser)})
	if resp := tr.do(req); resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	tr := newTestRouter()
	userToken := tr.login(t, enums.UserRoleUser)
	adminToken := tr.login(t, enums.UserRoleAdmin)
	id := uuid.NewString()

	cases := []struct{ method, path, body string }{
		{http.MethodGet, "/api/purchase-notifications", ""},
		{http.MethodPut, "/api/purchase-notifications/" + id + "/approve", ""},
		{http.MethodPut, "/api/purchase-notifications/" + id + "/reject", `{"reason":"blurry"}`},
		{http.MethodDelete, "/api/purchase-notifications/" + id, ""},
		{http.MethodPut, "/api/listings/" + id + "/stock", `{"quantity":3}`},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(tc.method, tc.path, strings.NewReader(tc.body))
		req.Header.Set("Authorization", "Bearer "+userToken)
		if resp := tr.do(req); resp.Code != http.StatusForbidden {
			t.Fatalf("%s %s as user: expected 403 got %d", tc.method, tc.path, resp.Code)
		}

		req = httptest.NewRequest(tc.method, tc.path, strings.NewReader(tc.body))
		req.Header.Set("Authorization", "Bearer "+adminToken)
		if resp := tr.do(req); resp.Code != http.StatusOK {
			t.Fatalf("%s %s as admin: expected 200 got %d: %s", tc.method, tc.path, resp.Code, resp.Body.String())
		}
	}
}

func TestPurchaseSubmitIsRateLimited(t *testing.T) {
	tr := newTestRouter()
	for i := 0; i < 2; i++ {
		body, ct := purchaseForm(t)
		req := httptest.NewRequest(http.MethodPost, "/api/purchase-notifications", body)
		req.Header.Set("Content-Type", ct)
		if resp := tr.do(req); resp.Code != http.StatusCreated {
			t.Fatalf("submit %d: expected 201 got %d: %s", i, resp.Code, resp.Body.String())
		}
	}
	body, ct := purchaseForm(t)
	req := httptest.NewRequest(http.MethodPost, "/api/purchase-notifications", body)
	req.Header.Set("Content-Type", ct)
	if resp := tr.do(req); resp.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after limit, got %d", resp.Code)
	}
}

func TestPurchaseSubmitReplaysIdempotentRetry(t *testing.T) {
	tr := newTestRouter()
	body, ct := purchaseForm(t)
	payload := body.Bytes()

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/purchase-notifications", bytes.NewReader(payload))
		req.Header.Set("Content-Type", ct)
		req.Header.Set("Idempotency-Key", "retry-1")
		return tr.do(req)
	}

	first := send()
	second := send()
	if first.Code != http.StatusCreated || second.Code != http.StatusCreated {
		t.Fatalf("expected both 201, got %d and %d", first.Code, second.Code)
	}
	if second.Header().Get("Idempotent-Replayed") != "true" {
		t.Fatalf("expected replay header on retry")
	}
	if tr.purchases.submits != 1 {
		t.Fatalf("expected a single submission, got %d", tr.purchases.submits)
	}
	if first.Body.String() != second.Body.String() {
		t.Fatalf("replayed body differs")
	}
}
