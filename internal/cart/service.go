package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bookswap/bookswap-backend/pkg/db/models"
	pkgerrors "github.com/bookswap/bookswap-backend/pkg/errors"
	"github.com/bookswap/bookswap-backend/pkg/logger"
)

const (
	cartNotFoundMessage    = "Cart not found"
	itemNotFoundMessage    = "Item not found in cart"
	listingNotFoundMessage = "listing not found"
	defaultReconcileBatch  = 100
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes cart operations. Every mutation recomputes the totals and
// runs with the cart row locked.
type Service interface {
	AddItem(ctx context.Context, userID, listingID uuid.UUID, qty int) (*CartView, error)
	UpdateItem(ctx context.Context, userID, listingID uuid.UUID, qty int) (*CartView, error)
	RemoveItem(ctx context.Context, userID, listingID uuid.UUID) (*CartView, error)
	Clear(ctx context.Context, userID uuid.UUID) error
	ReadCart(ctx context.Context, userID uuid.UUID) (*CartView, error)
	ReconcileAll(ctx context.Context, batch int) (int, error)
}

type service struct {
	repo CartRepository
	tx   txRunner
	logg *logger.Logger
}

// NewService builds a cart service backed by the provided stack.
func NewService(repo CartRepository, tx txRunner, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, tx: tx, logg: logg}, nil
}

func (s *service) AddItem(ctx context.Context, userID, listingID uuid.UUID, qty int) (*CartView, error) {
	var view *CartView
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		listing, err := repo.FindListing(ctx, listingID)
		if err != nil {
			return listingLookupErr(err)
		}
		if listing.Quantity == 0 {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "%s is currently unavailable. Stock quantity is 0.", listing.Title).
				WithDetails(map[string]any{"availableQuantity": 0})
		}
		if qty <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
		}
		if qty > listing.Quantity {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "Only %d unit(s) available. Cannot add %d to cart.", listing.Quantity, qty).
				WithDetails(map[string]any{"availableQuantity": listing.Quantity})
		}

		cart, err := repo.EnsureForUser(ctx, userID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}
		if cart.Items, err = repo.LoadItems(ctx, cart.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart items")
		}

		idx := indexOf(cart.Items, listingID)
		if idx >= 0 {
			line := &cart.Items[idx]
			if line.Quantity+qty > listing.Quantity {
				return pkgerrors.Newf(pkgerrors.CodeStateConflict,
					"Only %d unit(s) available. Current cart has %d, cannot add %d more.", listing.Quantity, line.Quantity, qty).
					WithDetails(map[string]any{"availableQuantity": listing.Quantity, "currentQuantity": line.Quantity})
			}
			line.Quantity += qty
			line.LineTotal = lineTotal(line.UnitPrice, line.Quantity)
		} else {
			cart.Items = append(cart.Items, models.CartItem{
				CartID:    cart.ID,
				ListingID: listing.ID,
				Quantity:  qty,
				UnitPrice: listing.Price,
				LineTotal: lineTotal(listing.Price, qty),
				Listing:   listing,
			})
			idx = len(cart.Items) - 1
		}

		changed := &cart.Items[idx]
		if err := repo.SaveItem(ctx, changed); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart item")
		}
		if err := s.persistTotals(ctx, repo, cart); err != nil {
			return err
		}
		view = viewOf(cart)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

func (s *service) UpdateItem(ctx context.Context, userID, listingID uuid.UUID, qty int) (*CartView, error) {
	var (
		view     *CartView
		conflict error
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cart, err := s.lockedCart(ctx, repo, userID)
		if err != nil {
			return err
		}
		idx := indexOf(cart.Items, listingID)
		if idx < 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, itemNotFoundMessage)
		}
		line := cart.Items[idx]
		if line.Listing == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, listingNotFoundMessage)
		}
		stock := line.Listing.Quantity

		if stock == 0 {
			// The removal commits even though the caller gets an error.
			if err := s.removeLine(ctx, repo, cart, idx); err != nil {
				return err
			}
			conflict = pkgerrors.Newf(pkgerrors.CodeStateConflict,
				"%s is now out of stock and has been removed from your cart.", line.Listing.Title).
				WithDetails(map[string]any{"availableQuantity": 0})
			return nil
		}
		if qty > stock {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "Only %d unit(s) available for this book.", stock).
				WithDetails(map[string]any{"availableQuantity": stock})
		}

		if qty <= 0 {
			if err := s.removeLine(ctx, repo, cart, idx); err != nil {
				return err
			}
		} else {
			cart.Items[idx].Quantity = qty
			cart.Items[idx].LineTotal = lineTotal(line.UnitPrice, qty)
			if err := repo.SaveItem(ctx, &cart.Items[idx]); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart item")
			}
			if err := s.persistTotals(ctx, repo, cart); err != nil {
				return err
			}
		}
		view = viewOf(cart)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if conflict != nil {
		return nil, conflict
	}
	return view, nil
}

func (s *service) RemoveItem(ctx context.Context, userID, listingID uuid.UUID) (*CartView, error) {
	var view *CartView
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cart, err := s.lockedCart(ctx, repo, userID)
		if err != nil {
			return err
		}
		if idx := indexOf(cart.Items, listingID); idx >= 0 {
			if err := s.removeLine(ctx, repo, cart, idx); err != nil {
				return err
			}
		}
		view = viewOf(cart)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

func (s *service) Clear(ctx context.Context, userID uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cart, err := repo.LockByUser(ctx, userID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}
		if err := repo.ClearItems(ctx, cart.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart items")
		}
		cart.Items = nil
		return s.persistTotals(ctx, repo, cart)
	})
}

// ReadCart returns the cart after healing it against current stock. Any
// dropped or clamped line is persisted before the view is returned.
func (s *service) ReadCart(ctx context.Context, userID uuid.UUID) (*CartView, error) {
	view := emptyView()
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cart, err := repo.LockByUser(ctx, userID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}
		if _, err := s.heal(ctx, repo, cart); err != nil {
			return err
		}
		view = viewOf(cart)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// ReconcileAll heals every cart in batches, one transaction per cart, and
// returns how many carts changed.
func (s *service) ReconcileAll(ctx context.Context, batch int) (int, error) {
	if batch <= 0 {
		batch = defaultReconcileBatch
	}
	changed := 0
	after := uuid.Nil
	for {
		if err := ctx.Err(); err != nil {
			return changed, err
		}
		ids, err := s.repo.ListIDsAfter(ctx, after, batch)
		if err != nil {
			return changed, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list carts")
		}
		for _, id := range ids {
			var healed bool
			err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
				repo := s.repo.WithTx(tx)
				cart, err := repo.LockByID(ctx, id)
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return nil
				}
				if err != nil {
					return err
				}
				healed, err = s.heal(ctx, repo, cart)
				return err
			})
			if err != nil {
				return changed, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reconcile cart")
			}
			if healed {
				changed++
			}
		}
		if len(ids) < batch {
			return changed, nil
		}
		after = ids[len(ids)-1]
	}
}

// heal loads the cart lines, reconciles them against stock and persists the
// result when anything changed.
func (s *service) heal(ctx context.Context, repo CartRepository, cart *models.Cart) (bool, error) {
	items, err := repo.LoadItems(ctx, cart.ID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart items")
	}
	res := reconcileLines(items, stockOf(items))
	cart.Items = res.Kept
	if !res.Changed() {
		return false, nil
	}

	if err := repo.DeleteItems(ctx, res.Removed...); err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "drop unavailable cart items")
	}
	clamped := make(map[uuid.UUID]struct{}, len(res.Clamped))
	for _, id := range res.Clamped {
		clamped[id] = struct{}{}
	}
	for i := range cart.Items {
		if _, ok := clamped[cart.Items[i].ID]; !ok {
			continue
		}
		if err := repo.SaveItem(ctx, &cart.Items[i]); err != nil {
			return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clamp cart item")
		}
	}
	if err := s.persistTotals(ctx, repo, cart); err != nil {
		return false, err
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"cart_id": cart.ID.String(),
		"removed": len(res.Removed),
		"clamped": len(res.Clamped),
	}), "cart reconciled against stock")
	return true, nil
}

func (s *service) lockedCart(ctx context.Context, repo CartRepository, userID uuid.UUID) (*models.Cart, error) {
	cart, err := repo.LockByUser(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, cartNotFoundMessage)
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	if cart.Items, err = repo.LoadItems(ctx, cart.ID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart items")
	}
	return cart, nil
}

func (s *service) removeLine(ctx context.Context, repo CartRepository, cart *models.Cart, idx int) error {
	if err := repo.DeleteItems(ctx, cart.Items[idx].ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove cart item")
	}
	cart.Items = append(cart.Items[:idx], cart.Items[idx+1:]...)
	return s.persistTotals(ctx, repo, cart)
}

func (s *service) persistTotals(ctx context.Context, repo CartRepository, cart *models.Cart) error {
	recalculate(cart)
	if err := repo.SaveTotals(ctx, cart); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart totals")
	}
	return nil
}

func indexOf(items []models.CartItem, listingID uuid.UUID) int {
	for i := range items {
		if items[i].ListingID == listingID {
			return i
		}
	}
	return -1
}

func listingLookupErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, listingNotFoundMessage)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load listing")
}
