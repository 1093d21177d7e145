package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/bookswap/bookswap-backend/pkg/enums"
)

// Listing is a seller's book-for-sale record. Quantity is the remaining stock.
type Listing struct {
	ID                uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	Title             string                 `gorm:"column:title;not null"`
	Author            string                 `gorm:"column:author;not null"`
	Description       string                 `gorm:"column:description;not null"`
	Condition         enums.ListingCondition `gorm:"column:condition;not null"`
	Category          enums.ListingCategory  `gorm:"column:category;not null"`
	Price             decimal.Decimal        `gorm:"column:price;type:numeric(12,2);not null"`
	ISBN              *string                `gorm:"column:isbn"`
	City              string                 `gorm:"column:city;not null"`
	Quantity          int                    `gorm:"column:quantity;not null"`
	SellerID          uuid.UUID              `gorm:"column:seller_id;type:uuid;not null"`
	SellerPhone       string                 `gorm:"column:seller_phone;not null"`
	SellerEmail       string                 `gorm:"column:seller_email;not null"`
	UPIID             string                 `gorm:"column:upi_id;not null"`
	StockUpdateReason *string                `gorm:"column:stock_update_reason"`
	LastUpdatedBy     *string                `gorm:"column:last_updated_by"`
	LastStockUpdateAt *time.Time             `gorm:"column:last_stock_update_at"`
	CreatedAt         time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time              `gorm:"column:updated_at;autoUpdateTime"`

	Seller *User          `gorm:"foreignKey:SellerID;references:ID;constraint:OnDelete:CASCADE"`
	Images []ListingImage `gorm:"foreignKey:ListingID;references:ID;constraint:OnDelete:CASCADE"`
}

func (l *Listing) BeforeCreate(*gorm.DB) error {
	ensureID(&l.ID)
	return nil
}

// ImageKeys returns the storage keys in display order.
func (l *Listing) ImageKeys() []string {
	keys := make([]string, 0, len(l.Images))
	for _, img := range l.Images {
		keys = append(keys, img.StorageKey)
	}
	return keys
}

// ListingImage is one uploaded photo of a listing.
type ListingImage struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ListingID  uuid.UUID `gorm:"column:listing_id;type:uuid;not null;index"`
	StorageKey string    `gorm:"column:storage_key;not null"`
	Position   int       `gorm:"column:position;not null;default:0"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (i *ListingImage) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}
