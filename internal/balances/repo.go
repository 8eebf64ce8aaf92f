package balances

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/timecredit-backend/pkg/db"
	"github.com/angelmondragon/timecredit-backend/pkg/db/models"
)

// Repository manages persistence for user balances.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, balance *models.UserBalance) error
	FindByUserID(ctx context.Context, userID uuid.UUID) (*models.UserBalance, error)
	// AdjustCredits applies delta to the balance if its version still matches
	// and the result stays non-negative; otherwise it returns db.ErrStaleWrite.
	AdjustCredits(ctx context.Context, balance *models.UserBalance, delta int) error
	ListNegative(ctx context.Context) ([]models.UserBalance, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a balance repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, balance *models.UserBalance) error {
	return r.db.WithContext(ctx).Create(balance).Error
}

func (r *repository) FindByUserID(ctx context.Context, userID uuid.UUID) (*models.UserBalance, error) {
	var balance models.UserBalance
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&balance).Error; err != nil {
		return nil, err
	}
	return &balance, nil
}

func (r *repository) AdjustCredits(ctx context.Context, balance *models.UserBalance, delta int) error {
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).
		Model(&models.UserBalance{}).
		Where("user_id = ? AND version = ? AND credits + ? >= 0", balance.UserID, balance.Version, delta).
		Updates(map[string]any{
			"credits":    gorm.Expr("credits + ?", delta),
			"version":    gorm.Expr("version + 1"),
			"updated_at": now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return db.ErrStaleWrite
	}
	balance.Credits += delta
	balance.Version++
	balance.UpdatedAt = now
	return nil
}

func (r *repository) ListNegative(ctx context.Context) ([]models.UserBalance, error) {
	var rows []models.UserBalance
	err := r.db.WithContext(ctx).Where("credits < 0").Find(&rows).Error
	return rows, err
}
