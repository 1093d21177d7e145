package listings

import (
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bookswap/bookswap-backend/pkg/db/models"
	"github.com/bookswap/bookswap-backend/pkg/enums"
	"github.com/bookswap/bookswap-backend/pkg/pagination"
)

const (
	defaultListLimit = 12
	maxListLimit     = 50
	maxImages        = 5
)

// CreateInput is the validated listing form. Quantity zero means one copy.
type CreateInput struct {
	Title        string
	Author       string
	Description  string
	Condition    enums.ListingCondition
	Category     enums.ListingCategory
	Price        decimal.Decimal
	City         string
	ISBN         *string
	Quantity     int
	ContactPhone string
	ContactEmail string
	UPIID        string
}

// Filters narrows the public listing catalogue.
type Filters struct {
	Search    string
	Author    string
	Category  enums.ListingCategory
	City      string
	Condition enums.ListingCondition
	MinPrice  *decimal.Decimal
	MaxPrice  *decimal.Decimal
	Page      int
	Limit     int
}

// StockUpdate is the admin stock edit request.
type StockUpdate struct {
	Quantity  int
	Reason    string
	UpdatedBy string
	ActorID   uuid.UUID
}

type SellerDTO struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
}

type ContactDTO struct {
	Phone string `json:"phone"`
	Email string `json:"email"`
}

type ListingDTO struct {
	ID                uuid.UUID              `json:"id"`
	Title             string                 `json:"title"`
	Author            string                 `json:"author"`
	Description       string                 `json:"description"`
	Condition         enums.ListingCondition `json:"condition"`
	Category          enums.ListingCategory  `json:"category"`
	Price             decimal.Decimal        `json:"price"`
	ISBN              *string                `json:"isbn,omitempty"`
	Images            []string               `json:"images"`
	City              string                 `json:"city"`
	Quantity          int                    `json:"quantity"`
	Seller            *SellerDTO             `json:"seller,omitempty"`
	SellerContact     ContactDTO             `json:"sellerContact"`
	UPIID             string                 `json:"upiId"`
	StockUpdateReason *string                `json:"stockUpdateReason,omitempty"`
	LastUpdatedBy     *string                `json:"lastUpdatedBy,omitempty"`
	LastStockUpdateAt *time.Time             `json:"lastStockUpdate,omitempty"`
	CreatedAt         time.Time              `json:"createdAt"`
	UpdatedAt         time.Time              `json:"updatedAt"`
}

type ListResult struct {
	Listings   []ListingDTO    `json:"listings"`
	Pagination pagination.Page `json:"pagination"`
}

// FromModel maps a listing with optional preloaded seller and images.
// Images are exposed as file names served by the uploads endpoint.
func FromModel(l *models.Listing) ListingDTO {
	images := make([]string, 0, len(l.Images))
	for _, key := range l.ImageKeys() {
		images = append(images, path.Base(key))
	}
	dto := ListingDTO{
		ID:                l.ID,
		Title:             l.Title,
		Author:            l.Author,
		Description:       l.Description,
		Condition:         l.Condition,
		Category:          l.Category,
		Price:             l.Price,
		ISBN:              l.ISBN,
		Images:            images,
		City:              l.City,
		Quantity:          l.Quantity,
		SellerContact:     ContactDTO{Phone: l.SellerPhone, Email: l.SellerEmail},
		UPIID:             l.UPIID,
		StockUpdateReason: l.StockUpdateReason,
		LastUpdatedBy:     l.LastUpdatedBy,
		LastStockUpdateAt: l.LastStockUpdateAt,
		CreatedAt:         l.CreatedAt,
		UpdatedAt:         l.UpdatedAt,
	}
	if l.Seller != nil {
		dto.Seller = &SellerDTO{ID: l.Seller.ID, Username: l.Seller.Username}
	}
	return dto
}
