// Package storage abstracts where uploaded images live. Keys are slash
// separated paths such as "listings/01J...png".
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

// ErrNotFound is returned when an object does not exist.
var ErrNotFound = errors.New("storage: object not found")

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	ContentType string
	Size        int64
}

// Store persists and serves uploaded files.
type Store interface {
	Put(ctx context.Context, key string, body io.Reader, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)
	Delete(ctx context.Context, key string) error
}

// CleanKey validates and normalizes an object key. It rejects absolute paths
// and any attempt to escape the key space.
func CleanKey(key string) (string, error) {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return "", fmt.Errorf("storage: empty key")
	}
	if strings.HasPrefix(trimmed, "/") || strings.Contains(trimmed, "\\") {
		return "", fmt.Errorf("storage: invalid key %q", key)
	}
	for _, segment := range strings.Split(trimmed, "/") {
		if segment == ".." || segment == "." || segment == "" {
			return "", fmt.Errorf("storage: invalid key %q", key)
		}
	}
	return path.Clean(trimmed), nil
}

// DeleteQuietly removes key and treats a missing object as success.
func DeleteQuietly(ctx context.Context, store Store, key string) error {
	if store == nil || strings.TrimSpace(key) == "" {
		return nil
	}
	if err := store.Delete(ctx, key); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	return nil
}
