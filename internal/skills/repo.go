package skills

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/timecredit-backend/pkg/db"
	"github.com/angelmondragon/timecredit-backend/pkg/db/models"
)

// Repository manages persistence for skills. Every mutation is a versioned
// compare-and-swap against the row the caller read.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, skill *models.Skill) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Skill, error)
	AdjustSlots(ctx context.Context, skill *models.Skill, delta int) error
	IncrementSessions(ctx context.Context, skill *models.Skill) error
	SetRating(ctx context.Context, skill *models.Skill, rating float64, reviewCount int) error
	SetActive(ctx context.Context, skill *models.Skill, active bool) error
	ListNegativeSlots(ctx context.Context) ([]models.Skill, error)
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

func (r *repository) Create(ctx context.Context, skill *models.Skill) error {
	return r.db.WithContext(ctx).Create(skill).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Skill, error) {
	var skill models.Skill
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&skill).Error; err != nil {
		return nil, err
	}
	return &skill, nil
}

func (r *repository) AdjustSlots(ctx context.Context, skill *models.Skill, delta int) error {
	if err := r.casUpdate(ctx, skill, "available_slots + ? >= 0", []any{delta}, map[string]any{
		"available_slots": gorm.Expr("available_slots + ?", delta),
	}); err != nil {
		return err
	}
	skill.AvailableSlots += delta
	return nil
}

func (r *repository) IncrementSessions(ctx context.Context, skill *models.Skill) error {
	if err := r.casUpdate(ctx, skill, "", nil, map[string]any{
		"total_sessions": gorm.Expr("total_sessions + 1"),
	}); err != nil {
		return err
	}
	skill.TotalSessions++
	return nil
}

func (r *repository) SetRating(ctx context.Context, skill *models.Skill, rating float64, reviewCount int) error {
	if err := r.casUpdate(ctx, skill, "", nil, map[string]any{
		"rating":       rating,
		"review_count": reviewCount,
	}); err != nil {
		return err
	}
	skill.Rating = rating
	skill.ReviewCount = reviewCount
	return nil
}

func (r *repository) SetActive(ctx context.Context, skill *models.Skill, active bool) error {
	if err := r.casUpdate(ctx, skill, "", nil, map[string]any{"is_active": active}); err != nil {
		return err
	}
	skill.IsActive = active
	return nil
}

func (r *repository) ListNegativeSlots(ctx context.Context) ([]models.Skill, error) {
	var rows []models.Skill
	err := r.db.WithContext(ctx).Where("available_slots < 0").Find(&rows).Error
	return rows, err
}

func (r *repository) casUpdate(ctx context.Context, skill *models.Skill, guard string, guardArgs []any, updates map[string]any) error {
	now := time.Now().UTC()
	updates["version"] = gorm.Expr("version + 1")
	updates["updated_at"] = now

	q := r.db.WithContext(ctx).
		Model(&models.Skill{}).
		Where("id = ? AND version = ?", skill.ID, skill.Version)
	if guard != "" {
		q = q.Where(guard, guardArgs...)
	}
	res := q.Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return db.ErrStaleWrite
	}
	skill.Version++
	skill.UpdatedAt = now
	return nil
}
