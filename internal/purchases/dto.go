package purchases

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
	defaultListLimit = 50
	maxListLimit     = 100
	defaultBuyerName = "Anonymous"
	defaultActorName = "admin"
)

// SubmitInput is a validated purchase notification form.
type SubmitInput struct {
	BookTitle     string
	BookAuthor    string
	Quantity      int
	BuyerName     string
	BuyerEmail    string
	BuyerPhone    string
	AmountPaid    *decimal.Decimal
	PaymentMethod enums.PaymentMethod
	Notes         string
}

// Actor identifies the admin processing a notification. Name is recorded as
// processed_by.
type Actor struct {
	UserID uuid.UUID
	Name   string
}

type ListParams struct {
	Status *enums.PurchaseStatus
	Page   int
	Limit  int
}

type SubmitResult struct {
	ID          uuid.UUID            `json:"id"`
	BookTitle   string               `json:"bookTitle"`
	Quantity    int                  `json:"quantity"`
	Status      enums.PurchaseStatus `json:"status"`
	SubmittedAt time.Time            `json:"submittedAt"`
}

// ListingSummary is the listing data embedded in a notification. Quantity is
// only filled on single-notification reads.
type ListingSummary struct {
	ID       uuid.UUID       `json:"id"`
	Title    string          `json:"title"`
	Author   string          `json:"author"`
	Price    decimal.Decimal `json:"price"`
	Quantity *int            `json:"quantity,omitempty"`
}

type NotificationDTO struct {
	ID               uuid.UUID            `json:"id"`
	ListingID        *uuid.UUID           `json:"listingId"`
	Listing          *ListingSummary      `json:"listing"`
	BookTitle        string               `json:"bookTitle"`
	BookAuthor       string               `json:"bookAuthor"`
	Quantity         int                  `json:"quantity"`
	BuyerName        string               `json:"buyerName"`
	BuyerEmail       *string              `json:"buyerEmail"`
	BuyerPhone       *string              `json:"buyerPhone"`
	AmountPaid       *decimal.Decimal     `json:"amountPaid"`
	PaymentMethod    enums.PaymentMethod  `json:"paymentMethod"`
	TransactionProof string               `json:"transactionProof"`
	Notes            *string              `json:"notes"`
	Status           enums.PurchaseStatus `json:"status"`
	StockBefore      int                  `json:"stockBefore"`
	StockAfter       *int                 `json:"stockAfter"`
	ProcessedAt      *time.Time           `json:"processedAt"`
	ProcessedBy      *string              `json:"processedBy"`
	RejectionReason  *string              `json:"rejectionReason"`
	CreatedAt        time.Time            `json:"createdAt"`
	UpdatedAt        time.Time            `json:"updatedAt"`
}

type ListResult struct {
	Notifications []NotificationDTO `json:"notifications"`
	Pagination    pagination.Page   `json:"pagination"`
}

type ApprovedNotification struct {
	ID          uuid.UUID            `json:"id"`
	Status      enums.PurchaseStatus `json:"status"`
	StockBefore int                  `json:"stockBefore"`
	StockAfter  int                  `json:"stockAfter"`
}

type ApprovedListing struct {
	ID       uuid.UUID `json:"id"`
	Title    string    `json:"title"`
	NewStock int       `json:"newStock"`
}

type ApproveResult struct {
	Notification ApprovedNotification `json:"notification"`
	Listing      ApprovedListing      `json:"listing"`
}

type RejectResult struct {
	ID              uuid.UUID            `json:"id"`
	Status          enums.PurchaseStatus `json:"status"`
	RejectionReason string               `json:"rejectionReason"`
}

// FromModel maps a notification. withStock controls whether the embedded
// listing summary carries the live quantity.
func FromModel(n *models.PurchaseNotification, withStock bool) NotificationDTO {
	dto := NotificationDTO{
		ID:               n.ID,
		ListingID:        n.ListingID,
		BookTitle:        n.BookTitle,
		BookAuthor:       n.BookAuthor,
		Quantity:         n.Quantity,
		BuyerName:        n.BuyerName,
		BuyerEmail:       n.BuyerEmail,
		BuyerPhone:       n.BuyerPhone,
		AmountPaid:       n.AmountPaid,
		PaymentMethod:    n.PaymentMethod,
		TransactionProof: path.Base(n.TransactionProof),
		Notes:            n.Notes,
		Status:           n.Status,
		StockBefore:      n.StockBefore,
		StockAfter:       n.StockAfter,
		ProcessedAt:      n.ProcessedAt,
		ProcessedBy:      n.ProcessedBy,
		RejectionReason:  n.RejectionReason,
		CreatedAt:        n.CreatedAt,
		UpdatedAt:        n.UpdatedAt,
	}
	if l := n.Listing; l != nil {
		dto.Listing = &ListingSummary{ID: l.ID, Title: l.Title, Author: l.Author, Price: l.Price}
		if withStock {
			qty := l.Quantity
			dto.Listing.Quantity = &qty
		}
	}
	return dto
}
