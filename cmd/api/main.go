package main

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/bookswap/bookswap-backend/api"
	"github.com/bookswap/bookswap-backend/api/routes"
	"github.com/bookswap/bookswap-backend/internal/auth"
	"github.com/bookswap/bookswap-backend/internal/cart"
	"github.com/bookswap/bookswap-backend/internal/listings"
	"github.com/bookswap/bookswap-backend/internal/purchases"
	"github.com/bookswap/bookswap-backend/internal/uploads"
	"github.com/bookswap/bookswap-backend/internal/users"
	"github.com/bookswap/bookswap-backend/pkg/auth/session"
	"github.com/bookswap/bookswap-backend/pkg/config"
	"github.com/bookswap/bookswap-backend/pkg/db"
	"github.com/bookswap/bookswap-backend/pkg/logger"
	"github.com/bookswap/bookswap-backend/pkg/migrate"
	"github.com/bookswap/bookswap-backend/pkg/outbox"
	"github.com/bookswap/bookswap-backend/pkg/redis"
	"github.com/bookswap/bookswap-backend/pkg/search"
	"github.com/bookswap/bookswap-backend/pkg/security"
	"github.com/bookswap/bookswap-backend/pkg/storage/backend"
)

func main() {
	// Prices render as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true

	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       cfg.App.LogLevel,
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(ctx, "failed to create session manager", err)
		os.Exit(1)
	}

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       users.NewRepository(dbClient.DB()),
		SessionManager: sessionManager,
		Hasher:         security.NewHasher(cfg.Password),
		Limiter:        redisClient,
		JWTConfig:      cfg.JWT,
		AppConfig:      cfg.App,
		RateLimit:      cfg.RateLimit,
		Logger:         logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create auth service", err)
		os.Exit(1)
	}

	store, err := backend.Open(ctx, cfg, logg)
	if err != nil {
		logg.Error(ctx, "failed to open upload storage", err)
		os.Exit(1)
	}
	if closer, ok := store.(io.Closer); ok {
		defer func() {
			if err := closer.Close(); err != nil {
				logg.Error(context.Background(), "error closing upload storage", err)
			}
		}()
	}

	uploadService, err := uploads.NewService(store, cfg.Storage.MaxImageBytes(), logg)
	if err != nil {
		logg.Error(ctx, "failed to create upload service", err)
		os.Exit(1)
	}

	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	listingRepo := listings.NewRepository(dbClient.DB())

	listingService, err := listings.NewService(listings.ServiceParams{
		DB:      dbClient,
		Repo:    listingRepo,
		Uploads: uploadService,
		Search:  openSearch(ctx, cfg, logg),
		Outbox:  outboxService,
		Logger:  logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create listing service", err)
		os.Exit(1)
	}

	cartService, err := cart.NewService(cart.NewRepository(dbClient.DB()), dbClient, logg)
	if err != nil {
		logg.Error(ctx, "failed to create cart service", err)
		os.Exit(1)
	}

	purchaseService, err := purchases.NewService(purchases.ServiceParams{
		DB:       dbClient,
		Repo:     purchases.NewRepository(dbClient.DB()),
		Listings: listingRepo,
		Uploads:  uploadService,
		Outbox:   outboxService,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create purchase service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	runCtx := logg.WithFields(ctx, map[string]any{
		"env":             cfg.App.Env,
		"addr":            addr,
		"storage_backend": cfg.Storage.Backend,
		"search_enabled":  cfg.Search.Enabled,
	})
	logg.Info(runCtx, "starting api server")

	server := api.NewServer(addr, routes.NewRouter(routes.Dependencies{
		Config:    cfg,
		Logger:    logg,
		DB:        dbClient,
		Cache:     redisClient,
		Sessions:  sessionManager,
		Auth:      authService,
		Listings:  listingService,
		Cart:      cartService,
		Purchases: purchaseService,
		Images:    uploadService,
	}))

	if err := api.Serve(runCtx, server, logg); err != nil {
		logg.Error(runCtx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(runCtx, "api server stopped")
}

// openSearch returns nil when search is disabled or unreachable so listing
// queries fall back to SQL matching.
func openSearch(ctx context.Context, cfg *config.Config, logg *logger.Logger) search.Index {
	client, err := search.NewClient(ctx, cfg.Search, logg)
	if err != nil {
		if !errors.Is(err, search.ErrDisabled) {
			logg.Warn(logg.WithField(ctx, "error", err.Error()), "elasticsearch unavailable, using sql search")
		}
		return nil
	}
	return client
}
