package ledger

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

// Repository manages persistence for ledger entries. Entries are append-only;
// the only mutation is flipping a completed pair to cancelled.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreatePair(ctx context.Context, spent, earned *models.LedgerEntry) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.LedgerEntry, error)
	ListByBookingID(ctx context.Context, bookingID uuid.UUID) ([]models.LedgerEntry, error)
	CancelPair(ctx context.Context, spentID, earnedID uuid.UUID, at time.Time) error
	ListForUser(ctx context.Context, userID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.LedgerEntryView, error)
	ListMismatchedPairs(ctx context.Context) ([]uuid.UUID, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreatePair(ctx context.Context, spent, earned *models.LedgerEntry) error {
	conn := r.db.WithContext(ctx)
	if err := conn.Create(spent).Error; err != nil {
		return err
	}
	return conn.Create(earned).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.LedgerEntry, error) {
	var entry models.LedgerEntry
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&entry).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *repository) ListByBookingID(ctx context.Context, bookingID uuid.UUID) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	if err := r.db.WithContext(ctx).
		Where("booking_id = ?", bookingID).
		Order("kind DESC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// CancelPair flips both entries from completed to cancelled. Anything other than
// exactly two rows changing means a concurrent reversal won and yields db.ErrStaleWrite.
func (r *repository) CancelPair(ctx context.Context, spentID, earnedID uuid.UUID, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&models.LedgerEntry{}).
		Where("id IN ? AND status = ?", []uuid.UUID{spentID, earnedID}, enums.LedgerEntryStatusCompleted).
		Updates(map[string]any{
			"status":       enums.LedgerEntryStatusCancelled,
			"cancelled_at": at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 2 {
		return db.ErrStaleWrite
	}
	return nil
}

// ListForUser returns entries where the user is on either side, newest first,
// with the skill title joined in.
func (r *repository) ListForUser(ctx context.Context, userID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.LedgerEntryView, error) {
	q := r.db.WithContext(ctx).
		Table("ledger_entries").
		Select("ledger_entries.*, skills.title AS skill_title").
		Joins("LEFT JOIN skills ON skills.id = ledger_entries.skill_id").
		Where("(ledger_entries.from_user_id = ? AND ledger_entries.kind = ?) OR (ledger_entries.to_user_id = ? AND ledger_entries.kind = ?)",
			userID, enums.LedgerEntryKindSpent, userID, enums.LedgerEntryKindEarned)
	q = repo.ApplyCursor(q, "ledger_entries", cursor)

	var rows []models.LedgerEntryView
	err := q.Order("ledger_entries.created_at DESC").
		Order("ledger_entries.id DESC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}

// ListMismatchedPairs returns booking ids whose entries disagree on status.
func (r *repository) ListMismatchedPairs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.LedgerEntry{}).
		Group("booking_id").
		Having("COUNT(DISTINCT status) > 1").
		Pluck("booking_id", &ids).Error
	return ids, err
}
