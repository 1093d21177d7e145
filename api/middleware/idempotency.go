package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bookswap/bookswap-backend/api/responses"
	pkgerrors "github.com/bookswap/bookswap-backend/pkg/errors"
	"github.com/bookswap/bookswap-backend/pkg/logger"
)

const (
	IdempotencyHeader     = "Idempotency-Key"
	ReplayedHeader        = "Idempotent-Replayed"
	defaultIdempotencyTTL = 24 * time.Hour
	maxIdempotencyKeyLen  = 128
)

type idempotencyStore interface {
	Get(context.Context, string) (string, error)
	SetNX(context.Context, string, any, time.Duration) (bool, error)
	IdempotencyKey(scope, id string) string
}

// storedResponse is what a retry gets back. Body is base64 in JSON.
type storedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body"`
	Fingerprint string `json:"fingerprint"`
}

// IdempotencyOptions bounds what the middleware buffers and how long a
// response is replayable.
type IdempotencyOptions struct {
	TTL          time.Duration
	MaxBodyBytes int64
}

// Idempotency replays the stored response when a client retries with the same
// Idempotency-Key and request. Requests without the header run normally.
// Server errors are not stored so a retry can succeed.
func Idempotency(store idempotencyStore, opts IdempotencyOptions, logg *logger.Logger) func(http.Handler) http.Handler {
	if opts.TTL <= 0 {
		opts.TTL = defaultIdempotencyTTL
	}
	return func(next http.Handler) http.Handler {
		if store == nil {
			return next
		}
		g := &idempotencyGuard{store: store, opts: opts, logg: logg, next: next}
		return http.HandlerFunc(g.serve)
	}
}

type idempotencyGuard struct {
	store idempotencyStore
	opts  IdempotencyOptions
	logg  *logger.Logger
	next  http.Handler
}

func (g *idempotencyGuard) serve(w http.ResponseWriter, r *http.Request) {
	clientKey := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
	if clientKey == "" {
		g.next.ServeHTTP(w, r)
		return
	}
	ctx := r.Context()
	if len(clientKey) > maxIdempotencyKeyLen {
		responses.WriteError(ctx, g.logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key is too long"))
		return
	}

	body, err := g.bufferBody(w, r)
	if err != nil {
		responses.WriteError(ctx, g.logg, w, err)
		return
	}
	fingerprint := requestFingerprint(r.Header.Get("Content-Type"), body)
	key := g.store.IdempotencyKey(idempotencyScope(r), clientKey)

	prior, err := g.lookup(ctx, key)
	if err != nil {
		responses.WriteError(ctx, g.logg, w, err)
		return
	}
	if prior != nil {
		if prior.Fingerprint != fingerprint {
			responses.WriteError(ctx, g.logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "Idempotency-Key reused with a different request"))
			return
		}
		replay(w, prior)
		return
	}

	rec := &recorder{ResponseWriter: w, capture: &bytes.Buffer{}}
	g.next.ServeHTTP(rec, r)
	if rec.Status() >= http.StatusInternalServerError {
		return
	}
	g.remember(ctx, key, storedResponse{
		Status:      rec.Status(),
		ContentType: rec.Header().Get("Content-Type"),
		Body:        rec.capture.Bytes(),
		Fingerprint: fingerprint,
	})
}

// bufferBody reads the whole body so it can be fingerprinted, then hands a
// fresh reader to the handler.
func (g *idempotencyGuard) bufferBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	src := io.Reader(r.Body)
	if g.opts.MaxBodyBytes > 0 {
		src = http.MaxBytesReader(w, r.Body, g.opts.MaxBodyBytes)
	}
	body, err := io.ReadAll(src)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, pkgerrors.New(pkgerrors.CodeTooLarge, "Request body too large")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request")
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	return body, nil
}

func (g *idempotencyGuard) lookup(ctx context.Context, key string) (*storedResponse, error) {
	raw, err := g.store.Get(ctx, key)
	switch {
	case errors.Is(err, redis.Nil), err == nil && raw == "":
		return nil, nil
	case err != nil:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency")
	}
	var prior storedResponse
	if err := json.Unmarshal([]byte(raw), &prior); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record")
	}
	return &prior, nil
}

// remember is best effort: the response already went out.
func (g *idempotencyGuard) remember(ctx context.Context, key string, resp storedResponse) {
	payload, err := json.Marshal(resp)
	if err == nil {
		_, err = g.store.SetNX(ctx, key, string(payload), g.opts.TTL)
	}
	if err != nil && g.logg != nil {
		g.logg.Error(ctx, "persist idempotency record", err)
	}
}

func replay(w http.ResponseWriter, resp *storedResponse) {
	if resp.ContentType != "" {
		w.Header().Set("Content-Type", resp.ContentType)
	}
	w.Header().Set(ReplayedHeader, "true")
	w.WriteHeader(resp.Status)
	_, _ = w.Write(resp.Body)
}

func idempotencyScope(r *http.Request) string {
	return strings.Join([]string{UserIDFromContext(r.Context()), r.Method, r.URL.Path}, "|")
}

// requestFingerprint hashes the body. Multipart bodies have their boundary
// removed first because clients pick a new one on every retry.
func requestFingerprint(contentType string, body []byte) string {
	if mediaType, params, err := mime.ParseMediaType(contentType); err == nil &&
		strings.HasPrefix(mediaType, "multipart/") && params["boundary"] != "" {
		body = bytes.ReplaceAll(body, []byte(params["boundary"]), nil)
	}
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}
