package cart

import (
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bookswap/bookswap-backend/pkg/db/models"
	"github.com/bookswap/bookswap-backend/pkg/enums"
)

// ListingSummary is the listing data shown next to a cart line.
type ListingSummary struct {
	ID        uuid.UUID              `json:"id"`
	Title     string                 `json:"title"`
	Author    string                 `json:"author"`
	Price     decimal.Decimal        `json:"price"`
	Images    []string               `json:"images"`
	City      string                 `json:"city"`
	Condition enums.ListingCondition `json:"condition"`
	Quantity  int                    `json:"quantity"`
}

type ItemView struct {
	ListingID uuid.UUID       `json:"listingId"`
	Listing   *ListingSummary `json:"listing,omitempty"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	LineTotal decimal.Decimal `json:"lineTotal"`
}

// CartView is the client representation of a cart. An absent cart renders
// as an empty view.
type CartView struct {
	ID         *uuid.UUID      `json:"id,omitempty"`
	Items      []ItemView      `json:"items"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
	TotalItems int             `json:"totalItems"`
	UpdatedAt  *time.Time      `json:"updatedAt,omitempty"`
}

func emptyView() *CartView {
	return &CartView{Items: []ItemView{}, TotalPrice: decimal.Zero}
}

func viewOf(cart *models.Cart) *CartView {
	id := cart.ID
	updated := cart.UpdatedAt
	view := &CartView{
		ID:         &id,
		Items:      make([]ItemView, 0, len(cart.Items)),
		TotalPrice: cart.TotalPrice,
		TotalItems: cart.TotalItems,
		UpdatedAt:  &updated,
	}
	for _, item := range cart.Items {
		iv := ItemView{
			ListingID: item.ListingID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			LineTotal: item.LineTotal,
		}
		if l := item.Listing; l != nil {
			images := make([]string, 0, len(l.Images))
			for _, key := range l.ImageKeys() {
				images = append(images, path.Base(key))
			}
			iv.Listing = &ListingSummary{
				ID:        l.ID,
				Title:     l.Title,
				Author:    l.Author,
				Price:     l.Price,
				Images:    images,
				City:      l.City,
				Condition: l.Condition,
				Quantity:  l.Quantity,
			}
		}
		view.Items = append(view.Items, iv)
	}
	return view
}
