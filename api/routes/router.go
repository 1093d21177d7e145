package routes

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/bookswap/bookswap-backend/api/controllers"
	"github.com/bookswap/bookswap-backend/api/middleware"
	"github.com/bookswap/bookswap-backend/internal/auth"
	"github.com/bookswap/bookswap-backend/internal/cart"
	"github.com/bookswap/bookswap-backend/internal/listings"
	"github.com/bookswap/bookswap-backend/internal/purchases"
	"github.com/bookswap/bookswap-backend/internal/users"
	"github.com/bookswap/bookswap-backend/pkg/auth/session"
	"github.com/bookswap/bookswap-backend/pkg/config"
	"github.com/bookswap/bookswap-backend/pkg/logger"
	"github.com/bookswap/bookswap-backend/pkg/storage"
)

const purchaseIdempotencyBodyBytes = 10 << 20

type Pinger interface {
	Ping(ctx context.Context) error
}

// Cache is the Redis surface the router needs: readiness, the fixed-window
// limiter and idempotency records.
type Cache interface {
	Pinger
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
	Get(ctx context.Context, key string) (string, error)
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	IdempotencyKey(scope, id string) string
}

type AuthService interface {
	Register(ctx context.Context, req auth.RegisterRequest) (*auth.Session, error)
	Login(ctx context.Context, req auth.LoginRequest) (*auth.Session, error)
	Logout(ctx context.Context, sessionID string) error
	Me(ctx context.Context, userID uuid.UUID) (*users.UserDTO, error)
}

type ImageOpener interface {
	OpenListingImage(ctx context.Context, filename string) (io.ReadCloser, storage.ObjectInfo, error)
}

// Dependencies collects everything the HTTP surface is wired to.
type Dependencies struct {
	Config    *config.Config
	Logger    *logger.Logger
	DB        Pinger
	Cache     Cache
	Sessions  session.Checker
	Auth      AuthService
	Listings  listings.Service
	Cart      cart.Service
	Purchases purchases.Service
	Images    ImageOpener
}

func NewRouter(deps Dependencies) http.Handler {
	cfg, logg := deps.Config, deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.CORS.AllowedOrigins),
	)

	authn := middleware.NewAuthenticator(cfg.JWT, deps.Sessions, cfg.Session.CookieName, logg)
	adminOnly := middleware.RequireAdmin(logg)

	purchasePolicy := middleware.NewRateLimitPolicy("purchase", cfg.RateLimit.PurchaseWindow, cfg.RateLimit.PurchaseIPLimit)
	purchaseIdempotency := middleware.IdempotencyOptions{
		TTL:          cfg.Eventing.IdempotencyTTL,
		MaxBodyBytes: purchaseIdempotencyBodyBytes,
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg.App.Env))
		r.Get("/ready", controllers.HealthReady(cfg.App.Env, deps.DB, deps.Cache, logg))
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", controllers.AuthRegister(deps.Auth, cfg.Session, logg))
			r.Post("/login", controllers.AuthLogin(deps.Auth, cfg.Session, logg))
			r.With(authn.Optional).Post("/logout", controllers.AuthLogout(deps.Auth, cfg.Session, logg))
			r.With(authn.Require).Get("/me", controllers.AuthMe(deps.Auth, logg))
		})

		r.Route("/listings", func(r chi.Router) {
			r.Get("/", controllers.ListingsList(deps.Listings, logg))
			r.Get("/{id}", controllers.ListingGet(deps.Listings, logg))
			r.Group(func(r chi.Router) {
				r.Use(authn.Require)
				r.Post("/", controllers.ListingCreate(deps.Listings, cfg.Storage.MaxImageBytes(), logg))
				r.Delete("/{id}", controllers.ListingDelete(deps.Listings, logg))
				r.With(adminOnly).Put("/{id}/stock", controllers.ListingUpdateStock(deps.Listings, deps.Auth, logg))
			})
		})

		r.Route("/cart", func(r chi.Router) {
			r.Use(authn.Require)
			r.Get("/", controllers.CartGet(deps.Cart, logg))
			r.Post("/add", controllers.CartAdd(deps.Cart, logg))
			r.Put("/update", controllers.CartUpdate(deps.Cart, logg))
			r.Delete("/remove/{listingId}", controllers.CartRemove(deps.Cart, logg))
			r.Delete("/clear", controllers.CartClear(deps.Cart, logg))
		})

		r.Route("/purchase-notifications", func(r chi.Router) {
			r.With(
				middleware.RateLimit(purchasePolicy, deps.Cache, logg),
				middleware.Idempotency(deps.Cache, purchaseIdempotency, logg),
			).Post("/", controllers.PurchaseSubmit(deps.Purchases, logg))

			r.Group(func(r chi.Router) {
				r.Use(authn.Require, adminOnly)
				r.Get("/", controllers.PurchaseList(deps.Purchases, logg))
				r.Get("/{id}", controllers.PurchaseGet(deps.Purchases, logg))
				r.Get("/{id}/proof", controllers.PurchaseProof(deps.Purchases, logg))
				r.Put("/{id}/approve", controllers.PurchaseApprove(deps.Purchases, deps.Auth, logg))
				r.Put("/{id}/reject", controllers.PurchaseReject(deps.Purchases, deps.Auth, logg))
				r.Delete("/{id}", controllers.PurchaseDelete(deps.Purchases, logg))
			})
		})

		r.Get("/uploads/{filename}", controllers.UploadServe(deps.Images, logg))
	})

	return r
}
