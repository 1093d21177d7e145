package cart

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bookswap/bookswap-backend/pkg/db/models"
)

// lineTotal is unit price times quantity.
func lineTotal(unit decimal.Decimal, qty int) decimal.Decimal {
	return unit.Mul(decimal.NewFromInt(int64(qty)))
}

// recalculate derives the cart totals from its lines.
func recalculate(cart *models.Cart) {
	total := decimal.Zero
	count := 0
	for i := range cart.Items {
		item := &cart.Items[i]
		item.LineTotal = lineTotal(item.UnitPrice, item.Quantity)
		total = total.Add(item.LineTotal)
		count += item.Quantity
	}
	cart.TotalPrice = total
	cart.TotalItems = count
}

// reconcileResult splits cart lines against current stock.
type reconcileResult struct {
	Kept    []models.CartItem
	Removed []uuid.UUID
	Clamped []uuid.UUID
}

func (r reconcileResult) Changed() bool {
	return len(r.Removed) > 0 || len(r.Clamped) > 0
}

// reconcileLines drops lines whose listing is gone or sold out and clamps
// quantities above current stock. stock holds the live quantity of every
// listing that still exists.
func reconcileLines(lines []models.CartItem, stock map[uuid.UUID]int) reconcileResult {
	var res reconcileResult
	res.Kept = make([]models.CartItem, 0, len(lines))
	for _, line := range lines {
		available, ok := stock[line.ListingID]
		if !ok || available <= 0 {
			res.Removed = append(res.Removed, line.ID)
			continue
		}
		if line.Quantity > available {
			line.Quantity = available
			line.LineTotal = lineTotal(line.UnitPrice, available)
			res.Clamped = append(res.Clamped, line.ID)
		}
		res.Kept = append(res.Kept, line)
	}
	return res
}

// stockOf collects the live stock of preloaded listings.
func stockOf(lines []models.CartItem) map[uuid.UUID]int {
	stock := make(map[uuid.UUID]int, len(lines))
	for _, line := range lines {
		if line.Listing != nil {
			stock[line.ListingID] = line.Listing.Quantity
		}
	}
	return stock
}
