package bookings

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/timecredit-backend/internal/repo"
	"github.com/angelmondragon/timecredit-backend/pkg/db"
	"github.com/angelmondragon/timecredit-backend/pkg/db/models"
	"github.com/angelmondragon/timecredit-backend/pkg/enums"
	"github.com/angelmondragon/timecredit-backend/pkg/pagination"
)

// Repository persists bookings. Updates are versioned compare-and-swap writes.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, booking *models.Booking) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Booking, error)
	Update(ctx context.Context, booking *models.Booking) error
	ListForUser(ctx context.Context, userID uuid.UUID, filter ListFilter, cursor *pagination.Cursor, limit int) ([]BookingView, error)
	ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]models.Booking, error)
	ListCompletedWithoutLedgerPair(ctx context.Context) ([]uuid.UUID, error)
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

func (r *repository) Create(ctx context.Context, booking *models.Booking) error {
	return r.db.WithContext(ctx).Create(booking).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	var booking models.Booking
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&booking).Error; err != nil {
		return nil, err
	}
	return &booking, nil
}

// Update writes the mutable columns if the row still has the version the
// caller read, and bumps the version on the struct.
func (r *repository) Update(ctx context.Context, booking *models.Booking) error {
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).
		Model(&models.Booking{}).
		Where("id = ? AND version = ?", booking.ID, booking.Version).
		Updates(map[string]any{
			"status":         booking.Status,
			"reviewed":       booking.Reviewed,
			"meeting_ref":    booking.MeetingRef,
			"decline_reason": booking.DeclineReason,
			"completed_at":   booking.CompletedAt,
			"version":        gorm.Expr("version + 1"),
			"updated_at":     now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return db.ErrStaleWrite
	}
	booking.Version++
	booking.UpdatedAt = now
	return nil
}

func (r *repository) ListForUser(ctx context.Context, userID uuid.UUID, filter ListFilter, cursor *pagination.Cursor, limit int) ([]BookingView, error) {
	q := r.db.WithContext(ctx).
		Table("bookings").
		Select("bookings.*, skills.title AS skill_title").
		Joins("LEFT JOIN skills ON skills.id = bookings.skill_id")

	switch filter.Role {
	case enums.BookingRoleRequester:
		q = q.Where("bookings.requester_id = ?", userID)
	case enums.BookingRoleProvider:
		q = q.Where("bookings.provider_id = ?", userID)
	default:
		q = q.Where("bookings.requester_id = ? OR bookings.provider_id = ?", userID, userID)
	}
	if filter.Status != nil {
		q = q.Where("bookings.status = ?", *filter.Status)
	}
	q = repo.ApplyCursor(q, "bookings", cursor)

	var rows []BookingView
	err := q.Order("bookings.created_at DESC").
		Order("bookings.id DESC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}

func (r *repository) ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]models.Booking, error) {
	var rows []models.Booking
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", enums.BookingStatusPending, createdBefore).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// ListCompletedWithoutLedgerPair returns completed bookings that do not have
// exactly two completed ledger entries.
func (r *repository) ListCompletedWithoutLedgerPair(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.Booking{}).
		Where("bookings.status = ?", enums.BookingStatusCompleted).
		Where("(SELECT COUNT(*) FROM ledger_entries le WHERE le.booking_id = bookings.id AND le.status = ?) <> 2",
			enums.LedgerEntryStatusCompleted).
		Pluck("bookings.id", &ids).Error
	return ids, err
}
