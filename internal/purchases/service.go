// Package purchases implements the purchase notification workflow: buyers
// report an off-platform payment, admins approve (taking stock) or reject.
package purchases

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bookswap/bookswap-backend/internal/listings"
	"github.com/bookswap/bookswap-backend/internal/uploads"
	"github.com/bookswap/bookswap-backend/pkg/db/models"
	"github.com/bookswap/bookswap-backend/pkg/enums"
	pkgerrors "github.com/bookswap/bookswap-backend/pkg/errors"
	"github.com/bookswap/bookswap-backend/pkg/logger"
	"github.com/bookswap/bookswap-backend/pkg/outbox"
	"github.com/bookswap/bookswap-backend/pkg/outbox/payloads"
	"github.com/bookswap/bookswap-backend/pkg/pagination"
	"github.com/bookswap/bookswap-backend/pkg/storage"
)

const (
	notificationNotFoundMessage = "Purchase notification not found"
	alreadyProcessedMessage     = "Notification has already been processed"
	proofRequiredMessage        = "Transaction proof image is required"

	// matches rejection_reason varchar(200)
	maxRejectionReasonLen = 200
)

// Service is the purchase notification state machine. Notifications start
// pending and move once to approved or rejected.
type Service interface {
	Submit(ctx context.Context, input SubmitInput, proof *uploads.File) (*SubmitResult, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
	Get(ctx context.Context, id uuid.UUID) (*NotificationDTO, error)
	Approve(ctx context.Context, id uuid.UUID, actor Actor) (*ApproveResult, error)
	Reject(ctx context.Context, id uuid.UUID, reason string, actor Actor) (*RejectResult, error)
	Delete(ctx context.Context, id uuid.UUID) error
	OpenProof(ctx context.Context, id uuid.UUID) (io.ReadCloser, storage.ObjectInfo, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type proofStore interface {
	Save(ctx context.Context, kind uploads.Kind, f uploads.File) (uploads.Stored, error)
	Discard(ctx context.Context, keys ...string)
	Open(ctx context.Context, key string) (io.ReadCloser, storage.ObjectInfo, error)
}

type ServiceParams struct {
	DB       txRunner
	Repo     *Repository
	Listings *listings.Repository
	Uploads  proofStore
	Outbox   outbox.Emitter
	Logger   *logger.Logger
}

type service struct {
	db       txRunner
	repo     *Repository
	listings *listings.Repository
	uploads  proofStore
	outbox   outbox.Emitter
	logg     *logger.Logger
	now      func() time.Time
}

func NewService(p ServiceParams) (Service, error) {
	switch {
	case p.DB == nil:
		return nil, errors.New("db client required")
	case p.Repo == nil:
		return nil, errors.New("purchase repository required")
	case p.Listings == nil:
		return nil, errors.New("listing repository required")
	case p.Uploads == nil:
		return nil, errors.New("uploads service required")
	case p.Outbox == nil:
		return nil, errors.New("outbox emitter required")
	case p.Logger == nil:
		return nil, errors.New("logger required")
	}
	return &service{
		db:       p.DB,
		repo:     p.Repo,
		listings: p.Listings,
		uploads:  p.Uploads,
		outbox:   p.Outbox,
		logg:     p.Logger,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// Submit stores the proof, matches the book against the catalogue and files
// a pending notification. The proof is removed again on any failure.
func (s *service) Submit(ctx context.Context, input SubmitInput, proof *uploads.File) (*SubmitResult, error) {
	if proof == nil || proof.Body == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, proofRequiredMessage)
	}
	if input.Quantity < 1 || input.Quantity > 10 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Quantity must be between 1 and 10")
	}

	stored, err := s.uploads.Save(ctx, uploads.KindTransactionProof, *proof)
	if err != nil {
		return nil, err
	}

	var result *SubmitResult
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		listing, err := s.listings.WithTx(tx).FindByTitleAuthor(ctx, input.BookTitle, input.BookAuthor)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "Book not found in inventory").
				WithDetails(map[string]any{"message": "Please verify the book title and author match exactly as listed"})
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "match listing")
		}
		if err := checkSubmitStock(listing, input.Quantity); err != nil {
			return err
		}

		n := &models.PurchaseNotification{
			ListingID:        &listing.ID,
			BookTitle:        listing.Title,
			BookAuthor:       listing.Author,
			Quantity:         input.Quantity,
			BuyerName:        defaultString(input.BuyerName, defaultBuyerName),
			BuyerEmail:       optional(strings.ToLower(input.BuyerEmail)),
			BuyerPhone:       optional(input.BuyerPhone),
			AmountPaid:       input.AmountPaid,
			PaymentMethod:    defaultPaymentMethod(input.PaymentMethod),
			TransactionProof: stored.Key,
			Notes:            optional(input.Notes),
			Status:           enums.PurchaseStatusPending,
			StockBefore:      listing.Quantity,
		}
		if err := s.repo.WithTx(tx).Create(ctx, n); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create purchase notification")
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPurchaseSubmitted,
			AggregateType: enums.AggregatePurchaseNotification,
			AggregateID:   n.ID,
			OccurredAt:    n.CreatedAt,
			Data: payloads.PurchaseSubmittedEvent{
				NotificationID: n.ID,
				ListingID:      listing.ID,
				BookTitle:      n.BookTitle,
				BookAuthor:     n.BookAuthor,
				Quantity:       n.Quantity,
				StockBefore:    n.StockBefore,
				PaymentMethod:  string(n.PaymentMethod),
				SubmittedAt:    n.CreatedAt,
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit purchase submitted")
		}

		result = &SubmitResult{
			ID:          n.ID,
			BookTitle:   n.BookTitle,
			Quantity:    n.Quantity,
			Status:      n.Status,
			SubmittedAt: n.CreatedAt,
		}
		return nil
	})
	if err != nil {
		s.uploads.Discard(ctx, stored.Key)
		return nil, err
	}
	return result, nil
}

func checkSubmitStock(listing *models.Listing, requested int) error {
	available := listing.Quantity
	if available <= 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "Book is out of stock").
			WithDetails(map[string]any{
				"bookTitle":      listing.Title,
				"availableStock": 0,
				"message":        "This book is currently unavailable. Stock quantity is 0.",
			})
	}
	if requested > available {
		noun := "copies"
		if available == 1 {
			noun = "copy"
		}
		return pkgerrors.New(pkgerrors.CodeStateConflict, "Insufficient stock").
			WithDetails(map[string]any{
				"bookTitle":         listing.Title,
				"availableStock":    available,
				"requestedQuantity": requested,
				"message":           formatInsufficient(available, noun, requested),
			})
	}
	return nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	page := pagination.NormalizeWith(pagination.Params{Page: params.Page, Limit: params.Limit}, defaultListLimit, maxListLimit)
	if params.Status != nil && !params.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Invalid status filter")
	}
	rows, total, err := s.repo.List(ctx, params.Status, page)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list purchase notifications")
	}
	out := make([]NotificationDTO, 0, len(rows))
	for i := range rows {
		out = append(out, FromModel(&rows[i], false))
	}
	return &ListResult{Notifications: out, Pagination: pagination.Build(page, total)}, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*NotificationDTO, error) {
	n, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notificationLookupErr(err)
	}
	dto := FromModel(n, true)
	return &dto, nil
}

// Approve takes the notification's quantity out of stock. The decrement is a
// single conditional update, so concurrent approvals can never oversell.
func (s *service) Approve(ctx context.Context, id uuid.UUID, actor Actor) (*ApproveResult, error) {
	processedBy := defaultString(actor.Name, defaultActorName)

	var result *ApproveResult
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		listingRepo := s.listings.WithTx(tx)

		n, err := repo.LockByID(ctx, id)
		if err != nil {
			return notificationLookupErr(err)
		}
		if n.Status != enums.PurchaseStatusPending {
			return alreadyProcessed(n.Status)
		}
		if n.ListingID == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "Book listing not found")
		}
		listing, err := listingRepo.Find(ctx, *n.ListingID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "Book listing not found")
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load listing")
		}

		at := s.now()
		rows, err := listingRepo.DecrementStock(ctx, listing.ID, n.Quantity, processedBy, at)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decrement stock")
		}
		if rows == 0 {
			current, err := listingRepo.CurrentQuantity(ctx, listing.ID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read stock")
			}
			return pkgerrors.New(pkgerrors.CodeStateConflict, "Insufficient current stock").
				WithDetails(map[string]any{
					"currentStock":      current,
					"requestedQuantity": n.Quantity,
					"message":           formatCurrentStock(current, n.Quantity),
				})
		}
		stockAfter, err := listingRepo.CurrentQuantity(ctx, listing.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read stock")
		}

		flipped, err := repo.MarkApproved(ctx, id, stockAfter, processedBy, at)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "approve purchase notification")
		}
		if flipped == 0 {
			return alreadyProcessed(enums.PurchaseStatusApproved)
		}

		ref := &outbox.ActorRef{UserID: actor.UserID, Role: string(enums.UserRoleAdmin), Name: processedBy}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPurchaseApproved,
			AggregateType: enums.AggregatePurchaseNotification,
			AggregateID:   n.ID,
			Actor:         ref,
			OccurredAt:    at,
			Data: payloads.PurchaseApprovedEvent{
				NotificationID: n.ID,
				ListingID:      listing.ID,
				Quantity:       n.Quantity,
				StockBefore:    n.StockBefore,
				StockAfter:     stockAfter,
				ProcessedBy:    processedBy,
				ProcessedAt:    at,
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit purchase approved")
		}
		if stockAfter == 0 {
			if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventListingOutOfStock,
				AggregateType: enums.AggregateListing,
				AggregateID:   listing.ID,
				Actor:         ref,
				OccurredAt:    at,
				Data: payloads.ListingOutOfStockEvent{
					ListingID: listing.ID,
					Title:     listing.Title,
					SellerID:  listing.SellerID,
					At:        at,
				},
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit out of stock")
			}
		}

		result = &ApproveResult{
			Notification: ApprovedNotification{
				ID:          n.ID,
				Status:      enums.PurchaseStatusApproved,
				StockBefore: n.StockBefore,
				StockAfter:  stockAfter,
			},
			Listing: ApprovedListing{ID: listing.ID, Title: listing.Title, NewStock: stockAfter},
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"notification_id": id.String(),
		"stock_after":     result.Listing.NewStock,
		"processed_by":    processedBy,
	}), "purchase notification approved")
	return result, nil
}

func (s *service) Reject(ctx context.Context, id uuid.UUID, reason string, actor Actor) (*RejectResult, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Rejection reason is required")
	}
	if utf8.RuneCountInString(reason) > maxRejectionReasonLen {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "Rejection reason must be at most %d characters", maxRejectionReasonLen)
	}
	processedBy := defaultString(actor.Name, defaultActorName)

	var result *RejectResult
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		n, err := repo.LockByID(ctx, id)
		if err != nil {
			return notificationLookupErr(err)
		}
		if n.Status != enums.PurchaseStatusPending {
			return alreadyProcessed(n.Status)
		}

		at := s.now()
		flipped, err := repo.MarkRejected(ctx, id, reason, processedBy, at)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reject purchase notification")
		}
		if flipped == 0 {
			return alreadyProcessed(enums.PurchaseStatusRejected)
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPurchaseRejected,
			AggregateType: enums.AggregatePurchaseNotification,
			AggregateID:   n.ID,
			Actor:         &outbox.ActorRef{UserID: actor.UserID, Role: string(enums.UserRoleAdmin), Name: processedBy},
			OccurredAt:    at,
			Data: payloads.PurchaseRejectedEvent{
				NotificationID:  n.ID,
				ListingID:       n.ListingID,
				RejectionReason: reason,
				ProcessedBy:     processedBy,
				ProcessedAt:     at,
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit purchase rejected")
		}

		result = &RejectResult{ID: n.ID, Status: enums.PurchaseStatusRejected, RejectionReason: reason}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Delete removes the notification in any status together with its proof.
func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	var proofKey string
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		n, err := repo.LockByID(ctx, id)
		if err != nil {
			return notificationLookupErr(err)
		}
		proofKey = n.TransactionProof
		if _, err := repo.Delete(ctx, id); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete purchase notification")
		}
		return nil
	})
	if err != nil {
		return err
	}
	if proofKey != "" {
		s.uploads.Discard(ctx, proofKey)
	}
	return nil
}

func (s *service) OpenProof(ctx context.Context, id uuid.UUID) (io.ReadCloser, storage.ObjectInfo, error) {
	n, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, storage.ObjectInfo{}, notificationLookupErr(err)
	}
	return s.uploads.Open(ctx, n.TransactionProof)
}

func alreadyProcessed(current enums.PurchaseStatus) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, alreadyProcessedMessage).
		WithDetails(map[string]any{"currentStatus": current})
}

func notificationLookupErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, notificationNotFoundMessage)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load purchase notification")
}

func defaultString(value, fallback string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return fallback
}

func optional(value string) *string {
	v := strings.TrimSpace(value)
	if v == "" {
		return nil
	}
	return &v
}

func defaultPaymentMethod(m enums.PaymentMethod) enums.PaymentMethod {
	if m == "" {
		return enums.PaymentMethodUPI
	}
	return m
}

func formatInsufficient(available int, noun string, requested int) string {
	return fmt.Sprintf("Only %d %s available. You requested %d.", available, noun, requested)
}

func formatCurrentStock(current, requested int) string {
	return fmt.Sprintf("Current stock (%d) is less than notification quantity (%d)", current, requested)
}
