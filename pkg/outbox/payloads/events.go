package payloads

import (
	"time"

	"github.com/google/uuid"
)

// PurchaseSubmittedEvent is emitted when a buyer files a purchase notification.
type PurchaseSubmittedEvent struct {
	NotificationID uuid.UUID `json:"notification_id"`
	ListingID      uuid.UUID `json:"listing_id"`
	BookTitle      string    `json:"book_title"`
	BookAuthor     string    `json:"book_author"`
	Quantity       int       `json:"quantity"`
	StockBefore    int       `json:"stock_before"`
	PaymentMethod  string    `json:"payment_method"`
	SubmittedAt    time.Time `json:"submitted_at"`
}

// PurchaseApprovedEvent is emitted after stock was decremented for an approval.
type PurchaseApprovedEvent struct {
	NotificationID uuid.UUID `json:"notification_id"`
	ListingID      uuid.UUID `json:"listing_id"`
	Quantity       int       `json:"quantity"`
	StockBefore    int       `json:"stock_before"`
	StockAfter     int       `json:"stock_after"`
	ProcessedBy    string    `json:"processed_by"`
	ProcessedAt    time.Time `json:"processed_at"`
}

// PurchaseRejectedEvent is emitted when an admin rejects a notification.
type PurchaseRejectedEvent struct {
	NotificationID  uuid.UUID  `json:"notification_id"`
	ListingID       *uuid.UUID `json:"listing_id,omitempty"`
	RejectionReason string     `json:"rejection_reason"`
	ProcessedBy     string     `json:"processed_by"`
	ProcessedAt     time.Time  `json:"processed_at"`
}

// ListingStockUpdatedEvent records any stock change on a listing.
type ListingStockUpdatedEvent struct {
	ListingID    uuid.UUID `json:"listing_id"`
	QuantityFrom int       `json:"quantity_from"`
	QuantityTo   int       `json:"quantity_to"`
	Reason       string    `json:"reason"`
	UpdatedBy    string    `json:"updated_by"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ListingOutOfStockEvent is emitted when stock reaches zero.
type ListingOutOfStockEvent struct {
	ListingID uuid.UUID `json:"listing_id"`
	Title     string    `json:"title"`
	SellerID  uuid.UUID `json:"seller_id"`
	At        time.Time `json:"at"`
}
