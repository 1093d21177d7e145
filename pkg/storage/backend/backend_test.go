package backend

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/bookswap/bookswap-backend/pkg/config"
	"github.com/bookswap/bookswap-backend/pkg/storage/local"
	"github.com/stretchr/testify/require"
)

func TestOpenLocal(t *testing.T) {
	cfg := &config.Config{Storage: config.StorageConfig{Backend: "LOCAL", LocalRoot: filepath.Join(t.TempDir(), "uploads")}}
	store, err := Open(context.Background(), cfg, nil)
	require.NoError(t, err)
	require.IsType(t, &local.Store{}, store)
}

func TestOpenUnknown(t *testing.T) {
	cfg := &config.Config{Storage: config.StorageConfig{Backend: "s3"}}
	_, err := Open(context.Background(), cfg, nil)
	require.Error(t, err)
}
