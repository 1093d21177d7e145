package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bookswap/bookswap-backend/pkg/enums"
	"github.com/google/uuid"
	redislib "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type mockStore struct {
	mu   sync.Mutex
	data map[string]string
	ttls map[string]time.Duration
	err  error
}

func newMockStore() *mockStore {
	return &mockStore{data: make(map[string]string), ttls: make(map[string]time.Duration)}
}

func (m *mockStore) StoreSession(ctx context.Context, sessionID, record string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[sessionID] = record
	m.ttls[sessionID] = ttl
	return nil
}

func (m *mockStore) GetSession(ctx context.Context, sessionID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	val, ok := m.data[sessionID]
	if !ok {
		return "", redislib.Nil
	}
	return val, nil
}

func (m *mockStore) RevokeSession(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, sessionID)
	return nil
}

func TestManagerCreateResolveRevoke(t *testing.T) {
	store := newMockStore()
	manager, err := newManager(store, time.Hour)
	require.NoError(t, err)

	userID := uuid.New()
	sid, err := manager.Create(context.Background(), userID, enums.UserRoleAdmin)
	require.NoError(t, err)
	require.NotEmpty(t, sid)
	require.Equal(t, time.Hour, store.ttls[sid])

	record, err := manager.Resolve(context.Background(), sid)
	require.NoError(t, err)
	require.Equal(t, userID, record.UserID)
	require.Equal(t, enums.UserRoleAdmin, record.Role)

	require.NoError(t, manager.Revoke(context.Background(), sid))
	_, err = manager.Resolve(context.Background(), sid)
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestManagerResolveUnknownAndBlank(t *testing.T) {
	manager, err := newManager(newMockStore(), time.Minute)
	require.NoError(t, err)

	_, err = manager.Resolve(context.Background(), "missing")
	require.ErrorIs(t, err, ErrSessionNotFound)

	_, err = manager.Resolve(context.Background(), "  ")
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestManagerResolvePropagatesStoreErrors(t *testing.T) {
	store := newMockStore()
	store.err = errors.New("redis down")
	manager, err := newManager(store, time.Minute)
	require.NoError(t, err)

	_, err = manager.Resolve(context.Background(), "sid")
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrSessionNotFound)
}

func TestManagerCreateValidatesInput(t *testing.T) {
	manager, err := newManager(newMockStore(), time.Minute)
	require.NoError(t, err)

	_, err = manager.Create(context.Background(), uuid.Nil, enums.UserRoleUser)
	require.Error(t, err)
	_, err = manager.Create(context.Background(), uuid.New(), "root")
	require.Error(t, err)

	_, err = newManager(newMockStore(), 0)
	require.Error(t, err)
}
