package bookings

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/timecredit-backend/internal/ledger"
	"github.com/angelmondragon/timecredit-backend/pkg/db/models"
	"github.com/angelmondragon/timecredit-backend/pkg/outbox"
)

type atomicRunner interface {
	Run(ctx context.Context, op string, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// SlotManager reserves and returns skill capacity inside the caller's transaction.
type SlotManager interface {
	ReserveSlot(ctx context.Context, tx *gorm.DB, skillID uuid.UUID) error
	ReleaseSlot(ctx context.Context, tx *gorm.DB, skillID uuid.UUID) error
}

// CreditEngine moves and reverses credits inside the caller's transaction.
type CreditEngine interface {
	Transfer(ctx context.Context, tx *gorm.DB, input ledger.TransferInput) (ledger.TransferResult, error)
	ReverseBooking(ctx context.Context, tx *gorm.DB, bookingID uuid.UUID) (ledger.TransferResult, error)
	FindEntry(ctx context.Context, tx *gorm.DB, entryID uuid.UUID) (*models.LedgerEntry, error)
}

type changePublisher interface {
	Publish(change BookingChange) int
}
