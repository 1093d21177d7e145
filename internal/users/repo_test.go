package users

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/bookswap/bookswap-backend/pkg/db"
	"github.com/bookswap/bookswap-backend/pkg/db/dbtest"
	"github.com/bookswap/bookswap-backend/pkg/db/models"
	"github.com/bookswap/bookswap-backend/pkg/enums"
)

func TestRepositoryCreateAndLookup(t *testing.T) {
	conn := dbtest.Open(t, &models.User{})
	repo := NewRepository(conn)
	ctx := context.Background()

	user, err := repo.Create(ctx, CreateUserDTO{Username: "reader_one", Email: "Reader@Example.com", PasswordHash: "hash"})
	require.NoError(t, err)
	require.Equal(t, enums.UserRoleUser, user.Role)

	found, err := repo.FindByEmail(ctx, "reader@example.com")
	require.NoError(t, err)
	require.Equal(t, user.ID, found.ID)

	exists, err := repo.ExistsByEmailOrUsername(ctx, "other@example.com", "READER_ONE")
	require.NoError(t, err)
	require.True(t, exists)

	exists, err = repo.ExistsByEmailOrUsername(ctx, "other@example.com", "someone")
	require.NoError(t, err)
	require.False(t, exists)

	_, err = repo.FindByID(ctx, found.ID)
	require.NoError(t, err)
}

func TestRepositoryUniqueEmail(t *testing.T) {
	conn := dbtest.Open(t, &models.User{})
	repo := NewRepository(conn)
	ctx := context.Background()

	_, err := repo.Create(ctx, CreateUserDTO{Username: "a", Email: "dup@example.com", PasswordHash: "x"})
	require.NoError(t, err)
	_, err = repo.Create(ctx, CreateUserDTO{Username: "b", Email: "dup@example.com", PasswordHash: "x"})
	require.True(t, db.IsUniqueViolation(err, ""))
}

func TestRepositoryUpdates(t *testing.T) {
	conn := dbtest.Open(t, &models.User{})
	repo := NewRepository(conn)
	ctx := context.Background()

	user, err := repo.Create(ctx, CreateUserDTO{Username: "admin", Email: "admin@example.com", PasswordHash: "x"})
	require.NoError(t, err)

	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.UpdateLastLogin(ctx, user.ID, at))
	require.NoError(t, repo.UpdateRole(ctx, user.ID, enums.UserRoleAdmin))
	require.NoError(t, repo.UpdatePasswordHash(ctx, user.ID, "y"))

	reloaded, err := repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, enums.UserRoleAdmin, reloaded.Role)
	require.Equal(t, "y", reloaded.PasswordHash)
	require.NotNil(t, reloaded.LastLoginAt)
	require.True(t, at.Equal(*reloaded.LastLoginAt))

	dto := FromModel(reloaded)
	require.True(t, dto.IsAdmin)

	_, err = repo.FindByEmail(ctx, "missing@example.com")
	require.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}
