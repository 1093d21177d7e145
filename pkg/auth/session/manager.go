package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bookswap/bookswap-backend/pkg/config"
	"github.com/bookswap/bookswap-backend/pkg/enums"
	redisclient "github.com/bookswap/bookswap-backend/pkg/redis"
	"github.com/google/uuid"
	redislib "github.com/redis/go-redis/v9"
)

// ErrSessionNotFound is returned when a session expired or was revoked.
var ErrSessionNotFound = errors.New("session not found")

type sessionStore interface {
	StoreSession(ctx context.Context, sessionID, record string, ttl time.Duration) error
	GetSession(ctx context.Context, sessionID string) (string, error)
	RevokeSession(ctx context.Context, sessionID string) error
}

// Record is the server-side state of a login. Role is read from here, not
// from the token, so demoting a user takes effect on their next request
// after the session is replaced.
type Record struct {
	UserID    uuid.UUID      `json:"user_id"`
	Role      enums.UserRole `json:"role"`
	CreatedAt time.Time      `json:"created_at"`
}

// Manager creates, resolves and revokes Redis-backed sessions.
type Manager struct {
	store sessionStore
	ttl   time.Duration
	now   func() time.Time
}

// Checker exposes the read-only surface needed by middleware.
type Checker interface {
	Resolve(ctx context.Context, sessionID string) (*Record, error)
}

// NewManager constructs a session manager whose TTL matches the token lifetime.
func NewManager(client *redisclient.Client, cfg config.JWTConfig) (*Manager, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	return newManager(client, cfg.Expiration())
}

func newManager(store sessionStore, ttl time.Duration) (*Manager, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("session ttl must be positive")
	}
	return &Manager{store: store, ttl: ttl, now: time.Now}, nil
}

// Create stores a new session and returns its identifier.
func (m *Manager) Create(ctx context.Context, userID uuid.UUID, role enums.UserRole) (string, error) {
	if userID == uuid.Nil {
		return "", fmt.Errorf("user id is required")
	}
	if !role.IsValid() {
		return "", fmt.Errorf("invalid role %q", role)
	}
	sessionID := NewSessionID()
	payload, err := json.Marshal(Record{UserID: userID, Role: role, CreatedAt: m.now().UTC()})
	if err != nil {
		return "", fmt.Errorf("encode session: %w", err)
	}
	if err := m.store.StoreSession(ctx, sessionID, string(payload), m.ttl); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}
	return sessionID, nil
}

// Resolve loads the session record. Missing sessions map to ErrSessionNotFound.
func (m *Manager) Resolve(ctx context.Context, sessionID string) (*Record, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrSessionNotFound
	}
	raw, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, redislib.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	var record Record
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if record.UserID == uuid.Nil {
		return nil, ErrSessionNotFound
	}
	return &record, nil
}

// Revoke deletes the session. Revoking an unknown session is not an error.
func (m *Manager) Revoke(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return fmt.Errorf("session id is required")
	}
	return m.store.RevokeSession(ctx, sessionID)
}

// TTL returns the session lifetime, used for cookie Max-Age.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// NewSessionID returns a fresh opaque session identifier.
func NewSessionID() string {
	return uuid.NewString()
}
