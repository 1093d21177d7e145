package cart

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/bookswap/bookswap-backend/pkg/db"
	"github.com/bookswap/bookswap-backend/pkg/db/dbtest"
	"github.com/bookswap/bookswap-backend/pkg/db/models"
	"github.com/bookswap/bookswap-backend/pkg/enums"
	pkgerrors "github.com/bookswap/bookswap-backend/pkg/errors"
	"github.com/bookswap/bookswap-backend/pkg/logger"
)

type fixture struct {
	conn  *gorm.DB
	svc   Service
	buyer uuid.UUID
	owner uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := dbtest.Open(t)
	logg := logger.New(logger.Options{ServiceName: "cart-test", Output: io.Discard})
	svc, err := NewService(NewRepository(conn), db.FromGorm(conn), logg)
	require.NoError(t, err)

	buyer := models.User{Username: "buyer", Email: "buyer@example.com", PasswordHash: "x", Role: enums.UserRoleUser}
	owner := models.User{Username: "owner", Email: "owner@example.com", PasswordHash: "x", Role: enums.UserRoleUser}
	require.NoError(t, conn.Create(&buyer).Error)
	require.NoError(t, conn.Create(&owner).Error)
	return &fixture{conn: conn, svc: svc, buyer: buyer.ID, owner: owner.ID}
}

func (f *fixture) listing(t *testing.T, title string, qty int, price string) *models.Listing {
	t.Helper()
	l := &models.Listing{
		Title:       title,
		Author:      "Author",
		Description: "Gently used paperback.",
		Condition:   enums.ListingConditionGood,
		Category:    enums.ListingCategoryFiction,
		Price:       decimal.RequireFromString(price),
		City:        "Delhi",
		Quantity:    qty,
		SellerID:    f.owner,
		SellerPhone: "9999999999",
		SellerEmail: "owner@example.com",
		UPIID:       "owner@upi",
	}
	require.NoError(t, f.conn.Create(l).Error)
	return l
}

func (f *fixture) setStock(t *testing.T, id uuid.UUID, qty int) {
	t.Helper()
	require.NoError(t, f.conn.Model(&models.Listing{}).Where("id = ?", id).Update("quantity", qty).Error)
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) *pkgerrors.Error {
	t.Helper()
	typed := pkgerrors.As(err)
	require.NotNil(t, typed, "expected typed error, got %v", err)
	require.Equal(t, code, typed.Code())
	return typed
}

func TestAddItemSnapshotsPriceAndRejectsOverflow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.listing(t, "Dune", 5, "100")

	view, err := f.svc.AddItem(ctx, f.buyer, l.ID, 2)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	require.Equal(t, 2, view.Items[0].Quantity)
	require.True(t, view.Items[0].UnitPrice.Equal(decimal.RequireFromString("100")))
	require.True(t, view.Items[0].LineTotal.Equal(decimal.RequireFromString("200")))
	require.Equal(t, 2, view.TotalItems)
	require.True(t, view.TotalPrice.Equal(decimal.RequireFromString("200")))

	_, err = f.svc.AddItem(ctx, f.buyer, l.ID, 4)
	typed := requireCode(t, err, pkgerrors.CodeStateConflict)
	require.Equal(t, "Only 5 unit(s) available. Current cart has 2, cannot add 4 more.", typed.Message())
	require.Equal(t, map[string]any{"availableQuantity": 5, "currentQuantity": 2}, typed.Details())

	read, err := f.svc.ReadCart(ctx, f.buyer)
	require.NoError(t, err)
	require.Equal(t, 2, read.TotalItems, "failed add leaves the cart unchanged")

	require.NoError(t, f.conn.Model(&models.Listing{}).Where("id = ?", l.ID).Update("price", decimal.RequireFromString("150")).Error)
	view, err = f.svc.AddItem(ctx, f.buyer, l.ID, 3)
	require.NoError(t, err)
	require.Equal(t, 5, view.TotalItems)
	require.True(t, view.TotalPrice.Equal(decimal.RequireFromString("500")), "price stays at the first snapshot")
}

func TestAddItemValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.listing(t, "Dune", 2, "100")
	empty := f.listing(t, "Emma", 0, "80")

	_, err := f.svc.AddItem(ctx, f.buyer, uuid.New(), 1)
	requireCode(t, err, pkgerrors.CodeNotFound)

	_, err = f.svc.AddItem(ctx, f.buyer, empty.ID, 1)
	typed := requireCode(t, err, pkgerrors.CodeStateConflict)
	require.Equal(t, "Emma is currently unavailable. Stock quantity is 0.", typed.Message())

	_, err = f.svc.AddItem(ctx, f.buyer, l.ID, 0)
	requireCode(t, err, pkgerrors.CodeValidation)

	_, err = f.svc.AddItem(ctx, f.buyer, l.ID, 3)
	typed = requireCode(t, err, pkgerrors.CodeStateConflict)
	require.Equal(t, "Only 2 unit(s) available. Cannot add 3 to cart.", typed.Message())

	var carts int64
	require.NoError(t, f.conn.Model(&models.Cart{}).Count(&carts).Error)
	require.Zero(t, carts, "failed adds do not create a cart")
}

func TestUpdateItem(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.listing(t, "Dune", 5, "100")
	other := f.listing(t, "Emma", 5, "50")

	_, err := f.svc.UpdateItem(ctx, f.buyer, l.ID, 1)
	requireCode(t, err, pkgerrors.CodeNotFound)

	_, err = f.svc.AddItem(ctx, f.buyer, l.ID, 1)
	require.NoError(t, err)
	_, err = f.svc.AddItem(ctx, f.buyer, other.ID, 1)
	require.NoError(t, err)

	_, err = f.svc.UpdateItem(ctx, f.buyer, uuid.New(), 1)
	requireCode(t, err, pkgerrors.CodeNotFound)

	view, err := f.svc.UpdateItem(ctx, f.buyer, l.ID, 4)
	require.NoError(t, err)
	require.Equal(t, 5, view.TotalItems)
	require.True(t, view.TotalPrice.Equal(decimal.RequireFromString("450")))

	_, err = f.svc.UpdateItem(ctx, f.buyer, l.ID, 6)
	typed := requireCode(t, err, pkgerrors.CodeStateConflict)
	require.Equal(t, "Only 5 unit(s) available for this book.", typed.Message())

	view, err = f.svc.UpdateItem(ctx, f.buyer, other.ID, 0)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)

	f.setStock(t, l.ID, 0)
	_, err = f.svc.UpdateItem(ctx, f.buyer, l.ID, 1)
	typed = requireCode(t, err, pkgerrors.CodeStateConflict)
	require.Equal(t, "Dune is now out of stock and has been removed from your cart.", typed.Message())

	read, err := f.svc.ReadCart(ctx, f.buyer)
	require.NoError(t, err)
	require.Empty(t, read.Items, "out of stock removal is persisted")
	require.Zero(t, read.TotalItems)
}

func TestRemoveAndClear(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.listing(t, "Dune", 5, "100")

	_, err := f.svc.RemoveItem(ctx, f.buyer, l.ID)
	requireCode(t, err, pkgerrors.CodeNotFound)
	require.NoError(t, f.svc.Clear(ctx, f.buyer), "clearing a missing cart is a no-op")

	_, err = f.svc.AddItem(ctx, f.buyer, l.ID, 2)
	require.NoError(t, err)

	view, err := f.svc.RemoveItem(ctx, f.buyer, uuid.New())
	require.NoError(t, err)
	require.Len(t, view.Items, 1)

	view, err = f.svc.RemoveItem(ctx, f.buyer, l.ID)
	require.NoError(t, err)
	require.Empty(t, view.Items)
	require.True(t, view.TotalPrice.IsZero())

	_, err = f.svc.AddItem(ctx, f.buyer, l.ID, 1)
	require.NoError(t, err)
	require.NoError(t, f.svc.Clear(ctx, f.buyer))

	var cart models.Cart
	require.NoError(t, f.conn.Where("user_id = ?", f.buyer).First(&cart).Error)
	require.Zero(t, cart.TotalItems)
	require.True(t, cart.TotalPrice.IsZero())
	var items int64
	require.NoError(t, f.conn.Model(&models.CartItem{}).Where("cart_id = ?", cart.ID).Count(&items).Error)
	require.Zero(t, items)
}

func TestReadCartHealsAgainstStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	view, err := f.svc.ReadCart(ctx, f.buyer)
	require.NoError(t, err)
	require.Empty(t, view.Items)
	require.True(t, view.TotalPrice.IsZero())

	soldOut := f.listing(t, "Dune", 3, "100")
	clamp := f.listing(t, "Emma", 4, "50")
	_, err = f.svc.AddItem(ctx, f.buyer, soldOut.ID, 1)
	require.NoError(t, err)
	_, err = f.svc.AddItem(ctx, f.buyer, clamp.ID, 4)
	require.NoError(t, err)

	f.setStock(t, soldOut.ID, 0)
	f.setStock(t, clamp.ID, 2)

	view, err = f.svc.ReadCart(ctx, f.buyer)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	require.Equal(t, clamp.ID, view.Items[0].ListingID)
	require.Equal(t, 2, view.Items[0].Quantity)
	require.Equal(t, 2, view.TotalItems)
	require.True(t, view.TotalPrice.Equal(decimal.RequireFromString("100")))

	var cart models.Cart
	require.NoError(t, f.conn.Where("user_id = ?", f.buyer).First(&cart).Error)
	require.Equal(t, 2, cart.TotalItems, "healing is persisted")

	again, err := f.svc.ReadCart(ctx, f.buyer)
	require.NoError(t, err)
	require.Len(t, again.Items, 1)
	require.Equal(t, 2, again.Items[0].Quantity)
	require.Equal(t, view.TotalItems, again.TotalItems)
	require.True(t, view.TotalPrice.Equal(again.TotalPrice))
}

func TestReconcileAllCountsChangedCarts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.listing(t, "Dune", 3, "100")

	other := models.User{Username: "reader2", Email: "reader2@example.com", PasswordHash: "x", Role: enums.UserRoleUser}
	require.NoError(t, f.conn.Create(&other).Error)
	stable := f.listing(t, "Emma", 9, "10")

	_, err := f.svc.AddItem(ctx, f.buyer, l.ID, 3)
	require.NoError(t, err)
	_, err = f.svc.AddItem(ctx, other.ID, stable.ID, 1)
	require.NoError(t, err)

	f.setStock(t, l.ID, 1)

	changed, err := f.svc.ReconcileAll(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 1, changed)

	changed, err = f.svc.ReconcileAll(ctx, 10)
	require.NoError(t, err)
	require.Zero(t, changed)
}

func TestMutationReportsFreshUpdatedAt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.listing(t, "Dune", 5, "100")

	_, err := f.svc.AddItem(ctx, f.buyer, l.ID, 1)
	require.NoError(t, err)
	stale := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, f.conn.Model(&models.Cart{}).Where("user_id = ?", f.buyer).UpdateColumn("updated_at", stale).Error)

	view, err := f.svc.AddItem(ctx, f.buyer, l.ID, 1)
	require.NoError(t, err)
	require.NotNil(t, view.UpdatedAt)
	require.True(t, view.UpdatedAt.After(stale))

	var stored models.Cart
	require.NoError(t, f.conn.Where("user_id = ?", f.buyer).First(&stored).Error)
	require.WithinDuration(t, stored.UpdatedAt, *view.UpdatedAt, time.Second)
}
