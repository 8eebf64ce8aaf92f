package reviews

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/timecredit-backend/internal/repo"
	"github.com/angelmondragon/timecredit-backend/pkg/db/models"
	"github.com/angelmondragon/timecredit-backend/pkg/pagination"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, review *models.Review) error
	FindByBookingID(ctx context.Context, bookingID uuid.UUID) (*models.Review, error)
	ListForSkill(ctx context.Context, skillID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.Review, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, review *models.Review) error {
	return r.db.WithContext(ctx).Create(review).Error
}

func (r *repository) FindByBookingID(ctx context.Context, bookingID uuid.UUID) (*models.Review, error) {
	var review models.Review
	if err := r.db.WithContext(ctx).Where("booking_id = ?", bookingID).First(&review).Error; err != nil {
		return nil, err
	}
	return &review, nil
}

func (r *repository) ListForSkill(ctx context.Context, skillID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.Review, error) {
	q := r.db.WithContext(ctx).Where("reviews.skill_id = ?", skillID)
	q = repo.ApplyCursor(q, "reviews", cursor)

	var rows []models.Review
	err := q.Order("reviews.created_at DESC").
		Order("reviews.id DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
