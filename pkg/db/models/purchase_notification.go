package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/bookswap/bookswap-backend/pkg/enums"
)

// PurchaseNotification is a buyer's claim of an off-platform purchase awaiting
// admin review. StockBefore is a snapshot, not a reservation.
type PurchaseNotification struct {
	ID               uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	ListingID        *uuid.UUID           `gorm:"column:listing_id;type:uuid;index"`
	BookTitle        string               `gorm:"column:book_title;not null"`
	BookAuthor       string               `gorm:"column:book_author;not null"`
	Quantity         int                  `gorm:"column:quantity;not null"`
	BuyerName        string               `gorm:"column:buyer_name;not null;default:'Anonymous'"`
	BuyerEmail       *string              `gorm:"column:buyer_email"`
	BuyerPhone       *string              `gorm:"column:buyer_phone"`
	AmountPaid       *decimal.Decimal     `gorm:"column:amount_paid;type:numeric(12,2)"`
	PaymentMethod    enums.PaymentMethod  `gorm:"column:payment_method;not null;default:'UPI'"`
	TransactionProof string               `gorm:"column:transaction_proof;not null"`
	Notes            *string              `gorm:"column:notes"`
	Status           enums.PurchaseStatus `gorm:"column:status;not null;default:'pending';index"`
	StockBefore      int                  `gorm:"column:stock_before;not null"`
	StockAfter       *int                 `gorm:"column:stock_after"`
	ProcessedAt      *time.Time           `gorm:"column:processed_at"`
	ProcessedBy      *string              `gorm:"column:processed_by"`
	RejectionReason  *string              `gorm:"column:rejection_reason"`
	CreatedAt        time.Time            `gorm:"column:created_at;autoCreateTime;index"`
	UpdatedAt        time.Time            `gorm:"column:updated_at;autoUpdateTime"`

	Listing *Listing `gorm:"foreignKey:ListingID;references:ID;constraint:OnDelete:SET NULL"`
}

func (n *PurchaseNotification) BeforeCreate(*gorm.DB) error {
	ensureID(&n.ID)
	if n.Status == "" {
		n.Status = enums.PurchaseStatusPending
	}
	return nil
}
