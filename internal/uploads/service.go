// Package uploads validates and stores listing photos and payment proofs.
package uploads

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	pkgerrors "github.com/bookswap/bookswap-backend/pkg/errors"
	"github.com/bookswap/bookswap-backend/pkg/ids"
	"github.com/bookswap/bookswap-backend/pkg/logger"
	"github.com/bookswap/bookswap-backend/pkg/storage"
)

// Kind selects the key namespace of an upload.
type Kind string

const (
	KindListingImage     Kind = "listing_image"
	KindTransactionProof Kind = "transaction_proof"
)

const (
	listingPrefix = "listings/"
	proofPrefix   = "transaction-proofs/"
	sniffLen      = 512

	imageNotFoundMessage = "Image not found"
)

// File is one incoming multipart part.
type File struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

// Stored describes a persisted upload.
type Stored struct {
	Key         string
	ContentType string
	Size        int64
}

// Filename returns the last path segment, which is what clients use to fetch
// listing images.
func (s Stored) Filename() string {
	return path.Base(s.Key)
}

type Service struct {
	store    storage.Store
	maxBytes int64
	logg     *logger.Logger
	newID    func() string
}

func NewService(store storage.Store, maxBytes int64, logg *logger.Logger) (*Service, error) {
	if store == nil {
		return nil, errors.New("storage is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	if maxBytes <= 0 {
		maxBytes = 5 << 20
	}
	return &Service{store: store, maxBytes: maxBytes, logg: logg, newID: ids.NewULID}, nil
}

// Save validates f and writes it under the namespace for kind.
func (s *Service) Save(ctx context.Context, kind Kind, f File) (Stored, error) {
	if f.Body == nil {
		return Stored{}, pkgerrors.New(pkgerrors.CodeValidation, "file is required")
	}
	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(f.Body, s.maxBytes+1))
	if err != nil {
		return Stored{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "could not read uploaded file")
	}
	if n > s.maxBytes {
		return Stored{}, pkgerrors.Newf(pkgerrors.CodeTooLarge, "File too large. Maximum size is %dMB.", s.maxBytes>>20).
			WithDetails(map[string]any{"maxBytes": s.maxBytes})
	}

	head := buf.Bytes()
	if len(head) > sniffLen {
		head = head[:sniffLen]
	}
	mediaType, ok := isAllowedImage(f.ContentType, head)
	if !ok {
		return Stored{}, pkgerrors.New(pkgerrors.CodeValidation, invalidTypeMessage)
	}

	key, err := s.keyFor(kind, extensionFor(f.Filename, mediaType))
	if err != nil {
		return Stored{}, err
	}
	if err := s.store.Put(ctx, key, bytes.NewReader(buf.Bytes()), mediaType); err != nil {
		return Stored{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store upload")
	}
	return Stored{Key: key, ContentType: mediaType, Size: n}, nil
}

// SaveAll stores every file or none: on failure the already written files
// are removed.
func (s *Service) SaveAll(ctx context.Context, kind Kind, files []File) ([]Stored, error) {
	stored := make([]Stored, 0, len(files))
	for _, f := range files {
		out, err := s.Save(ctx, kind, f)
		if err != nil {
			s.Discard(ctx, keysOf(stored)...)
			return nil, err
		}
		stored = append(stored, out)
	}
	return stored, nil
}

// Discard deletes keys, logging instead of failing. Used to undo uploads
// after a validation or business failure.
func (s *Service) Discard(ctx context.Context, keys ...string) {
	for _, key := range keys {
		if err := storage.DeleteQuietly(ctx, s.store, key); err != nil {
			s.logg.Warn(s.logg.WithFields(ctx, map[string]any{"key": key, "error": err.Error()}), "upload cleanup failed")
		}
	}
}

// Open streams a stored object. Missing objects map to NOT_FOUND.
func (s *Service) Open(ctx context.Context, key string) (io.ReadCloser, storage.ObjectInfo, error) {
	clean, err := storage.CleanKey(key)
	if err != nil {
		return nil, storage.ObjectInfo{}, pkgerrors.New(pkgerrors.CodeNotFound, imageNotFoundMessage)
	}
	body, info, err := s.store.Open(ctx, clean)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, storage.ObjectInfo{}, pkgerrors.New(pkgerrors.CodeNotFound, imageNotFoundMessage)
		}
		return nil, storage.ObjectInfo{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "open upload")
	}
	return body, info, nil
}

// OpenListingImage resolves a public listing image by file name. Only the
// listings namespace is reachable this way.
func (s *Service) OpenListingImage(ctx context.Context, filename string) (io.ReadCloser, storage.ObjectInfo, error) {
	name := strings.TrimSpace(filename)
	if name == "" || strings.ContainsAny(name, "/\\") {
		return nil, storage.ObjectInfo{}, pkgerrors.New(pkgerrors.CodeNotFound, imageNotFoundMessage)
	}
	return s.Open(ctx, ListingImageKey(name))
}

func (s *Service) keyFor(kind Kind, ext string) (string, error) {
	switch kind {
	case KindListingImage:
		return listingPrefix + s.newID() + ext, nil
	case KindTransactionProof:
		return proofPrefix + "proof_" + s.newID() + ext, nil
	default:
		return "", pkgerrors.New(pkgerrors.CodeInternal, fmt.Sprintf("unknown upload kind %q", kind))
	}
}

// ListingImageKey maps a public file name back to its storage key.
func ListingImageKey(filename string) string {
	return listingPrefix + filename
}

func keysOf(stored []Stored) []string {
	keys := make([]string, 0, len(stored))
	for _, s := range stored {
		keys = append(keys, s.Key)
	}
	return keys
}
