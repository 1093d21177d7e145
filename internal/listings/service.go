package listings

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bookswap/bookswap-backend/internal/uploads"
	"github.com/bookswap/bookswap-backend/pkg/db/models"
	"github.com/bookswap/bookswap-backend/pkg/enums"
	pkgerrors "github.com/bookswap/bookswap-backend/pkg/errors"
	"github.com/bookswap/bookswap-backend/pkg/logger"
	"github.com/bookswap/bookswap-backend/pkg/outbox"
	"github.com/bookswap/bookswap-backend/pkg/outbox/payloads"
	"github.com/bookswap/bookswap-backend/pkg/pagination"
	"github.com/bookswap/bookswap-backend/pkg/search"
)

const (
	listingNotFoundMessage = "Listing not found"
	forbiddenDeleteMessage = "Not authorized to delete this listing"
	invalidQuantityMessage = "Invalid quantity. Must be 0 or greater."
)

// Service manages the listing catalogue.
type Service interface {
	Create(ctx context.Context, sellerID uuid.UUID, input CreateInput, images []uploads.File) (*ListingDTO, error)
	List(ctx context.Context, filters Filters) (*ListResult, error)
	Get(ctx context.Context, id uuid.UUID) (*ListingDTO, error)
	Delete(ctx context.Context, actorID uuid.UUID, role enums.UserRole, id uuid.UUID) error
	UpdateStock(ctx context.Context, id uuid.UUID, update StockUpdate) (*ListingDTO, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type imageStore interface {
	SaveAll(ctx context.Context, kind uploads.Kind, files []uploads.File) ([]uploads.Stored, error)
	Discard(ctx context.Context, keys ...string)
}

// ServiceParams wires the listing service. Search is optional.
type ServiceParams struct {
	DB      txRunner
	Repo    *Repository
	Uploads imageStore
	Search  search.Index
	Outbox  outbox.Emitter
	Logger  *logger.Logger
}

type service struct {
	db      txRunner
	repo    *Repository
	uploads imageStore
	search  search.Index
	outbox  outbox.Emitter
	logg    *logger.Logger
	now     func() time.Time
}

func NewService(p ServiceParams) (Service, error) {
	switch {
	case p.DB == nil:
		return nil, errors.New("db client required")
	case p.Repo == nil:
		return nil, errors.New("listing repository required")
	case p.Uploads == nil:
		return nil, errors.New("uploads service required")
	case p.Outbox == nil:
		return nil, errors.New("outbox emitter required")
	case p.Logger == nil:
		return nil, errors.New("logger required")
	}
	return &service{
		db:      p.DB,
		repo:    p.Repo,
		uploads: p.Uploads,
		search:  p.Search,
		outbox:  p.Outbox,
		logg:    p.Logger,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) Create(ctx context.Context, sellerID uuid.UUID, input CreateInput, images []uploads.File) (*ListingDTO, error) {
	if sellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	if len(images) > maxImages {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "At most %d images are allowed", maxImages)
	}
	if input.Quantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, invalidQuantityMessage)
	}
	if input.Quantity == 0 {
		input.Quantity = 1
	}

	stored, err := s.uploads.SaveAll(ctx, uploads.KindListingImage, images)
	if err != nil {
		return nil, err
	}

	listing := &models.Listing{
		Title:       strings.TrimSpace(input.Title),
		Author:      strings.TrimSpace(input.Author),
		Description: strings.TrimSpace(input.Description),
		Condition:   input.Condition,
		Category:    input.Category,
		Price:       input.Price,
		ISBN:        input.ISBN,
		City:        strings.TrimSpace(input.City),
		Quantity:    input.Quantity,
		SellerID:    sellerID,
		SellerPhone: strings.TrimSpace(input.ContactPhone),
		SellerEmail: strings.TrimSpace(input.ContactEmail),
		UPIID:       strings.TrimSpace(input.UPIID),
	}
	for i, st := range stored {
		listing.Images = append(listing.Images, models.ListingImage{StorageKey: st.Key, Position: i})
	}

	var created *models.Listing
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Create(ctx, listing); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create listing")
		}
		loaded, err := repo.FindByID(ctx, listing.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload listing")
		}
		created = loaded
		return nil
	})
	if err != nil {
		s.uploads.Discard(ctx, keysOf(stored)...)
		return nil, err
	}

	s.index(ctx, created)
	dto := FromModel(created)
	return &dto, nil
}

func (s *service) List(ctx context.Context, filters Filters) (*ListResult, error) {
	page := pagination.NormalizeWith(pagination.Params{Page: filters.Page, Limit: filters.Limit}, defaultListLimit, maxListLimit)
	if filters.MinPrice != nil && filters.MaxPrice != nil && filters.MinPrice.GreaterThan(*filters.MaxPrice) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "minPrice cannot exceed maxPrice")
	}

	query := listQuery{Filters: filters}
	if strings.TrimSpace(filters.Search) != "" {
		ids, ok := s.searchCandidates(ctx, filters.Search)
		if ok {
			if len(ids) == 0 {
				return &ListResult{Listings: []ListingDTO{}, Pagination: pagination.Build(page, 0)}, nil
			}
			query.CandidateIDs = ids
		} else {
			query.TextFallback = true
		}
	}

	rows, total, err := s.repo.List(ctx, query, page)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list listings")
	}
	out := make([]ListingDTO, 0, len(rows))
	for i := range rows {
		out = append(out, FromModel(&rows[i]))
	}
	return &ListResult{Listings: out, Pagination: pagination.Build(page, total)}, nil
}

// searchCandidates asks the full-text index for matching ids. ok is false
// when the index is disabled or failed and SQL matching should be used.
func (s *service) searchCandidates(ctx context.Context, text string) ([]uuid.UUID, bool) {
	if s.search == nil {
		return nil, false
	}
	ids, err := s.search.SearchListingIDs(ctx, strings.TrimSpace(text), search.MaxCandidates)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "listing search unavailable, falling back to sql")
		return nil, false
	}
	return ids, true
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*ListingDTO, error) {
	listing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapLookupErr(err, "load listing")
	}
	dto := FromModel(listing)
	return &dto, nil
}

func (s *service) Delete(ctx context.Context, actorID uuid.UUID, role enums.UserRole, id uuid.UUID) error {
	var keys []string
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		listing, err := repo.FindByID(ctx, id)
		if err != nil {
			return mapLookupErr(err, "load listing")
		}
		if listing.SellerID != actorID && role != enums.UserRoleAdmin {
			return pkgerrors.New(pkgerrors.CodeForbidden, forbiddenDeleteMessage)
		}
		keys = listing.ImageKeys()
		if err := repo.Delete(ctx, id); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete listing")
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.uploads.Discard(ctx, keys...)
	if s.search != nil {
		if err := s.search.DeleteListing(ctx, id); err != nil {
			s.logg.Warn(s.logg.WithFields(ctx, map[string]any{"listing_id": id.String(), "error": err.Error()}), "search delete failed")
		}
	}
	return nil
}

func (s *service) UpdateStock(ctx context.Context, id uuid.UUID, update StockUpdate) (*ListingDTO, error) {
	if update.Quantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, invalidQuantityMessage)
	}
	reason := strings.TrimSpace(update.Reason)
	if reason == "" {
		reason = "Manual stock update"
	}
	updatedBy := strings.TrimSpace(update.UpdatedBy)
	if updatedBy == "" {
		updatedBy = "admin"
	}

	var updated *models.Listing
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := repo.FindForUpdate(ctx, id)
		if err != nil {
			return mapLookupErr(err, "lock listing")
		}
		at := s.now()
		rows, err := repo.SetQuantity(ctx, id, update.Quantity, reason, updatedBy, at)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update stock")
		}
		if rows == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, listingNotFoundMessage)
		}

		actor := &outbox.ActorRef{UserID: update.ActorID, Role: string(enums.UserRoleAdmin), Name: updatedBy}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventListingStockUpdated,
			AggregateType: enums.AggregateListing,
			AggregateID:   id,
			Actor:         actor,
			OccurredAt:    at,
			Data: payloads.ListingStockUpdatedEvent{
				ListingID:    id,
				QuantityFrom: current.Quantity,
				QuantityTo:   update.Quantity,
				Reason:       reason,
				UpdatedBy:    updatedBy,
				UpdatedAt:    at,
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit stock update")
		}
		if current.Quantity > 0 && update.Quantity == 0 {
			if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventListingOutOfStock,
				AggregateType: enums.AggregateListing,
				AggregateID:   id,
				Actor:         actor,
				OccurredAt:    at,
				Data: payloads.ListingOutOfStockEvent{
					ListingID: id,
					Title:     current.Title,
					SellerID:  current.SellerID,
					At:        at,
				},
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit out of stock")
			}
		}

		updated, err = repo.FindByID(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload listing")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	dto := FromModel(updated)
	return &dto, nil
}

func (s *service) index(ctx context.Context, l *models.Listing) {
	if s.search == nil {
		return
	}
	if err := s.search.IndexListing(ctx, DocumentFor(l)); err != nil {
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{"listing_id": l.ID.String(), "error": err.Error()}), "search index failed")
	}
}

// DocumentFor projects a listing into its search document.
func DocumentFor(l *models.Listing) search.Document {
	return search.Document{
		ID:          l.ID,
		Title:       l.Title,
		Author:      l.Author,
		Description: l.Description,
		Category:    string(l.Category),
		Condition:   string(l.Condition),
		City:        l.City,
		Price:       l.Price.StringFixed(2),
		CreatedAt:   l.CreatedAt,
	}
}

func mapLookupErr(err error, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, listingNotFoundMessage)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, op)
}

func keysOf(stored []uploads.Stored) []string {
	keys := make([]string, 0, len(stored))
	for _, st := range stored {
		keys = append(keys, st.Key)
	}
	return keys
}
