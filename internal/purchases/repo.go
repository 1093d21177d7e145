package purchases

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/bookswap/bookswap-backend/pkg/db/models"
	"github.com/bookswap/bookswap-backend/pkg/enums"
	"github.com/bookswap/bookswap-backend/pkg/pagination"
)

// Repository persists purchase notifications.
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

func (r *Repository) Create(ctx context.Context, n *models.PurchaseNotification) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(n).Error
}

// FindByID loads a notification with its listing, which may be gone.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.PurchaseNotification, error) {
	var n models.PurchaseNotification
	if err := r.db.WithContext(ctx).Preload("Listing").First(&n, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &n, nil
}

// LockByID loads the notification row under a row lock.
func (r *Repository) LockByID(ctx context.Context, id uuid.UUID) (*models.PurchaseNotification, error) {
	var n models.PurchaseNotification
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&n, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// List returns one page of notifications, newest first.
func (r *Repository) List(ctx context.Context, status *enums.PurchaseStatus, page pagination.Params) ([]models.PurchaseNotification, int64, error) {
	base := r.db.WithContext(ctx).Model(&models.PurchaseNotification{})
	if status != nil {
		base = base.Where("status = ?", *status)
	}

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.PurchaseNotification
	err := base.Session(&gorm.Session{}).
		Preload("Listing").
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

// MarkApproved flips a pending notification to approved. Zero rows affected
// means another request already processed it.
func (r *Repository) MarkApproved(ctx context.Context, id uuid.UUID, stockAfter int, processedBy string, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.PurchaseNotification{}).
		Where("id = ? AND status = ?", id, enums.PurchaseStatusPending).
		Updates(map[string]any{
			"status":       enums.PurchaseStatusApproved,
			"stock_after":  stockAfter,
			"processed_at": at,
			"processed_by": processedBy,
			"updated_at":   at,
		})
	return res.RowsAffected, res.Error
}

// MarkRejected flips a pending notification to rejected.
func (r *Repository) MarkRejected(ctx context.Context, id uuid.UUID, reason, processedBy string, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.PurchaseNotification{}).
		Where("id = ? AND status = ?", id, enums.PurchaseStatusPending).
		Updates(map[string]any{
			"status":           enums.PurchaseStatusRejected,
			"rejection_reason": reason,
			"processed_at":     at,
			"processed_by":     processedBy,
			"updated_at":       at,
		})
	return res.RowsAffected, res.Error
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).Delete(&models.PurchaseNotification{}, "id = ?", id)
	return res.RowsAffected, res.Error
}
