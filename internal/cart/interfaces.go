package cart

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bookswap/bookswap-backend/pkg/db/models"
)

// CartRepository defines the persistence surface required by the cart service.
type CartRepository interface {
	WithTx(tx *gorm.DB) CartRepository
	FindByUser(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
	LockByUser(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
	LockByID(ctx context.Context, id uuid.UUID) (*models.Cart, error)
	EnsureForUser(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
	LoadItems(ctx context.Context, cartID uuid.UUID) ([]models.CartItem, error)
	FindListing(ctx context.Context, id uuid.UUID) (*models.Listing, error)
	SaveItem(ctx context.Context, item *models.CartItem) error
	DeleteItems(ctx context.Context, ids ...uuid.UUID) error
	ClearItems(ctx context.Context, cartID uuid.UUID) error
	SaveTotals(ctx context.Context, cart *models.Cart) error
	ListIDsAfter(ctx context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error)
}
