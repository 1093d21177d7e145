// Package backend selects the configured storage implementation.
package backend

import (
	"context"
	"fmt"
	"strings"

	"github.com/bookswap/bookswap-backend/pkg/config"
	"github.com/bookswap/bookswap-backend/pkg/logger"
	"github.com/bookswap/bookswap-backend/pkg/storage"
	"github.com/bookswap/bookswap-backend/pkg/storage/gcs"
	"github.com/bookswap/bookswap-backend/pkg/storage/local"
)

func Open(ctx context.Context, cfg *config.Config, logg *logger.Logger) (storage.Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Storage.Backend)) {
	case config.StorageBackendGCS:
		return gcs.NewClient(ctx, cfg.GCS, cfg.GCP, logg)
	case config.StorageBackendLocal, "":
		return local.New(cfg.Storage.LocalRoot)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}
