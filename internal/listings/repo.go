package listings

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/bookswap/bookswap-backend/pkg/db/models"
	"github.com/bookswap/bookswap-backend/pkg/pagination"
)

// Repository persists listings and their images.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// Create inserts the listing together with its images.
func (r *Repository) Create(ctx context.Context, listing *models.Listing) error {
	return r.db.WithContext(ctx).Create(listing).Error
}

// FindByID loads a listing with seller and images.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	var listing models.Listing
	err := r.db.WithContext(ctx).
		Preload("Seller").
		Preload("Images", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		First(&listing, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &listing, nil
}

// Find loads the bare listing row.
func (r *Repository) Find(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	var listing models.Listing
	if err := r.db.WithContext(ctx).First(&listing, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &listing, nil
}

// FindForUpdate loads the bare listing row with a row lock.
func (r *Repository) FindForUpdate(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	var listing models.Listing
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&listing, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &listing, nil
}

// FindByTitleAuthor matches a listing by title and author ignoring case and
// surrounding whitespace. The oldest match wins when several exist.
func (r *Repository) FindByTitleAuthor(ctx context.Context, title, author string) (*models.Listing, error) {
	var listing models.Listing
	err := r.db.WithContext(ctx).
		Where("LOWER(TRIM(title)) = LOWER(?) AND LOWER(TRIM(author)) = LOWER(?)", strings.TrimSpace(title), strings.TrimSpace(author)).
		Order("created_at ASC").
		First(&listing).Error
	if err != nil {
		return nil, err
	}
	return &listing, nil
}

// listQuery is a resolved catalogue query. CandidateIDs, when non-nil,
// restricts results to a full-text search hit set.
type listQuery struct {
	Filters
	CandidateIDs []uuid.UUID
	TextFallback bool
}

// List returns one page of listings, newest first, and the total match count.
func (r *Repository) List(ctx context.Context, q listQuery, page pagination.Params) ([]models.Listing, int64, error) {
	base := r.db.WithContext(ctx).Model(&models.Listing{})

	if q.CandidateIDs != nil {
		base = base.Where("id IN ?", q.CandidateIDs)
	}
	if q.TextFallback {
		if search := strings.TrimSpace(q.Search); search != "" {
			pattern := likePattern(search)
			base = base.Where(
				"(LOWER(title) LIKE ? ESCAPE '\\' OR LOWER(author) LIKE ? ESCAPE '\\' OR LOWER(description) LIKE ? ESCAPE '\\')",
				pattern, pattern, pattern,
			)
		}
	}
	if author := strings.TrimSpace(q.Author); author != "" {
		base = base.Where("LOWER(author) LIKE ? ESCAPE '\\'", likePattern(author))
	}
	if city := strings.TrimSpace(q.City); city != "" {
		base = base.Where("LOWER(city) LIKE ? ESCAPE '\\'", likePattern(city))
	}
	if q.Category != "" {
		base = base.Where("category = ?", q.Category)
	}
	if q.Condition != "" {
		base = base.Where("condition = ?", q.Condition)
	}
	if q.MinPrice != nil {
		base = base.Where("price >= ?", *q.MinPrice)
	}
	if q.MaxPrice != nil {
		base = base.Where("price <= ?", *q.MaxPrice)
	}

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.Listing
	err := base.Session(&gorm.Session{}).
		Preload("Seller").
		Preload("Images", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Order("created_at DESC").
		Order("id DESC").
		Offset(page.Offset()).
		Limit(page.Limit).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// Delete removes the listing row; images cascade.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.Listing{}, "id = ?", id).Error
}

// SetQuantity overwrites stock and records who changed it.
func (r *Repository) SetQuantity(ctx context.Context, id uuid.UUID, quantity int, reason, updatedBy string, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Listing{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"quantity":             quantity,
			"stock_update_reason":  reason,
			"last_updated_by":      updatedBy,
			"last_stock_update_at": at,
			"updated_at":           at,
		})
	return res.RowsAffected, res.Error
}

// DecrementStock takes qty copies only when enough remain. Zero rows
// affected means the stock was insufficient at the time of the update.
func (r *Repository) DecrementStock(ctx context.Context, id uuid.UUID, qty int, updatedBy string, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Listing{}).
		Where("id = ? AND quantity >= ?", id, qty).
		Updates(map[string]any{
			"quantity":             gorm.Expr("quantity - ?", qty),
			"last_updated_by":      updatedBy,
			"last_stock_update_at": at,
			"updated_at":           at,
		})
	return res.RowsAffected, res.Error
}

// CurrentQuantity reads the live stock value.
func (r *Repository) CurrentQuantity(ctx context.Context, id uuid.UUID) (int, error) {
	var qty int
	err := r.db.WithContext(ctx).
		Model(&models.Listing{}).
		Where("id = ?", id).
		Select("quantity").
		Scan(&qty).Error
	return qty, err
}

func likePattern(value string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(strings.ToLower(value))
	return "%" + escaped + "%"
}
