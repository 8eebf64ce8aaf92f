package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/timecredit-backend/internal/balances"
	"github.com/angelmondragon/timecredit-backend/pkg/db"
	"github.com/angelmondragon/timecredit-backend/pkg/db/models"
	"github.com/angelmondragon/timecredit-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/timecredit-backend/pkg/errors"
	"github.com/angelmondragon/timecredit-backend/pkg/outbox"
	"github.com/angelmondragon/timecredit-backend/pkg/outbox/payloads"
)

// TransferInput describes one credit movement tied to a booking.
type TransferInput struct {
	From        uuid.UUID
	To          uuid.UUID
	Amount      int
	SkillID     uuid.UUID
	BookingID   uuid.UUID
	Description string
	ActorID     uuid.UUID
}

// TransferResult identifies the entry pair written (or cancelled) by the engine.
type TransferResult struct {
	BookingID     uuid.UUID
	SpentEntryID  uuid.UUID
	EarnedEntryID uuid.UUID
	Credits       int
}

// Engine moves credits between exactly two balances. Every method takes the
// caller's transaction and never commits on its own; callers run it inside
// db.AtomicRunner so a conflicting writer replays the whole unit.
type Engine struct {
	balances balances.Repository
	entries  Repository
	outbox   outbox.Emitter
	now      func() time.Time
}

func NewEngine(balanceRepo balances.Repository, entries Repository, emitter outbox.Emitter) (*Engine, error) {
	if balanceRepo == nil {
		return nil, fmt.Errorf("balance repository required")
	}
	if entries == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	return &Engine{
		balances: balanceRepo,
		entries:  entries,
		outbox:   emitter,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// Transfer debits From and credits To by Amount and writes the spent/earned pair.
// Funds are checked against the balance read inside tx.
func (e *Engine) Transfer(ctx context.Context, tx *gorm.DB, input TransferInput) (TransferResult, error) {
	if err := validateTransfer(input); err != nil {
		return TransferResult{}, err
	}

	balanceRepo := e.balances.WithTx(tx)
	from, err := loadBalance(ctx, balanceRepo, input.From)
	if err != nil {
		return TransferResult{}, err
	}
	to, err := loadBalance(ctx, balanceRepo, input.To)
	if err != nil {
		return TransferResult{}, err
	}
	if from.Credits < input.Amount {
		return TransferResult{}, insufficient(input.From, input.Amount, from.Credits)
	}

	if err := balanceRepo.AdjustCredits(ctx, from, -input.Amount); err != nil {
		return TransferResult{}, err
	}
	if err := balanceRepo.AdjustCredits(ctx, to, input.Amount); err != nil {
		return TransferResult{}, err
	}

	description := strings.TrimSpace(input.Description)
	spent := &models.LedgerEntry{
		FromUserID:  input.From,
		ToUserID:    input.To,
		SkillID:     input.SkillID,
		BookingID:   input.BookingID,
		Credits:     input.Amount,
		Kind:        enums.LedgerEntryKindSpent,
		Description: description,
		Status:      enums.LedgerEntryStatusCompleted,
	}
	earned := &models.LedgerEntry{
		FromUserID:  input.From,
		ToUserID:    input.To,
		SkillID:     input.SkillID,
		BookingID:   input.BookingID,
		Credits:     input.Amount,
		Kind:        enums.LedgerEntryKindEarned,
		Description: description,
		Status:      enums.LedgerEntryStatusCompleted,
	}
	if err := e.entries.WithTx(tx).CreatePair(ctx, spent, earned); err != nil {
		if db.IsUniqueViolation(err, "ux_ledger_entries_booking_kind", "ledger_entries.booking_id") {
			return TransferResult{}, pkgerrors.New(pkgerrors.CodeConflict, "credits already transferred for booking").
				WithDetails(map[string]any{"booking_id": input.BookingID})
		}
		return TransferResult{}, err
	}

	if err := e.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventCreditsTransferred,
		AggregateType: enums.AggregateLedgerEntry,
		AggregateID:   spent.ID,
		Actor:         outbox.Actor(input.ActorID),
		Data: payloads.CreditsTransferredEvent{
			BookingID:     input.BookingID,
			SkillID:       input.SkillID,
			FromUserID:    input.From,
			ToUserID:      input.To,
			Credits:       input.Amount,
			SpentEntryID:  spent.ID,
			EarnedEntryID: earned.ID,
		},
	}); err != nil {
		return TransferResult{}, err
	}

	return TransferResult{
		BookingID:     input.BookingID,
		SpentEntryID:  spent.ID,
		EarnedEntryID: earned.ID,
		Credits:       input.Amount,
	}, nil
}

// Reverse locates the pair that entryID belongs to and undoes it.
func (e *Engine) Reverse(ctx context.Context, tx *gorm.DB, entryID uuid.UUID) (TransferResult, error) {
	entry, err := e.FindEntry(ctx, tx, entryID)
	if err != nil {
		return TransferResult{}, err
	}
	return e.ReverseBooking(ctx, tx, entry.BookingID)
}

// FindEntry loads a single entry, mapping a missing row to NOT_FOUND.
func (e *Engine) FindEntry(ctx context.Context, tx *gorm.DB, entryID uuid.UUID) (*models.LedgerEntry, error) {
	entry, err := e.entries.WithTx(tx).FindByID(ctx, entryID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "ledger entry not found")
		}
		return nil, err
	}
	return entry, nil
}

// ReverseBooking moves the booking's credits back from provider to requester and
// flips both entries to cancelled. A pair that is not fully completed is
// rejected with ALREADY_CANCELLED.
func (e *Engine) ReverseBooking(ctx context.Context, tx *gorm.DB, bookingID uuid.UUID) (TransferResult, error) {
	entryRepo := e.entries.WithTx(tx)
	rows, err := entryRepo.ListByBookingID(ctx, bookingID)
	if err != nil {
		return TransferResult{}, err
	}
	spent, earned, err := splitPair(bookingID, rows)
	if err != nil {
		return TransferResult{}, err
	}
	if spent.Status != enums.LedgerEntryStatusCompleted || earned.Status != enums.LedgerEntryStatusCompleted {
		return TransferResult{}, pkgerrors.New(pkgerrors.CodeAlreadyCancelled, "ledger entries already cancelled").
			WithDetails(map[string]any{"booking_id": bookingID})
	}

	amount := spent.Credits
	balanceRepo := e.balances.WithTx(tx)
	requester, err := loadBalance(ctx, balanceRepo, spent.FromUserID)
	if err != nil {
		return TransferResult{}, err
	}
	provider, err := loadBalance(ctx, balanceRepo, earned.ToUserID)
	if err != nil {
		return TransferResult{}, err
	}
	if provider.Credits < amount {
		return TransferResult{}, insufficient(provider.UserID, amount, provider.Credits)
	}

	if err := balanceRepo.AdjustCredits(ctx, provider, -amount); err != nil {
		return TransferResult{}, err
	}
	if err := balanceRepo.AdjustCredits(ctx, requester, amount); err != nil {
		return TransferResult{}, err
	}

	at := e.now()
	if err := entryRepo.CancelPair(ctx, spent.ID, earned.ID, at); err != nil {
		return TransferResult{}, err
	}

	if err := e.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventCreditsReversed,
		AggregateType: enums.AggregateLedgerEntry,
		AggregateID:   spent.ID,
		Data: payloads.CreditsReversedEvent{
			BookingID:     bookingID,
			FromUserID:    spent.FromUserID,
			ToUserID:      earned.ToUserID,
			Credits:       amount,
			SpentEntryID:  spent.ID,
			EarnedEntryID: earned.ID,
			ReversedAt:    at,
		},
	}); err != nil {
		return TransferResult{}, err
	}

	return TransferResult{
		BookingID:     bookingID,
		SpentEntryID:  spent.ID,
		EarnedEntryID: earned.ID,
		Credits:       amount,
	}, nil
}

// EntriesForBooking returns the entries recorded for a booking, spent first.
func (e *Engine) EntriesForBooking(ctx context.Context, tx *gorm.DB, bookingID uuid.UUID) ([]models.LedgerEntry, error) {
	return e.entries.WithTx(tx).ListByBookingID(ctx, bookingID)
}

func validateTransfer(input TransferInput) error {
	switch {
	case input.Amount <= 0:
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	case input.From == uuid.Nil || input.To == uuid.Nil:
		return pkgerrors.New(pkgerrors.CodeValidation, "both users are required")
	case input.From == input.To:
		return pkgerrors.New(pkgerrors.CodeValidation, "cannot transfer credits to the same user")
	case input.BookingID == uuid.Nil:
		return pkgerrors.New(pkgerrors.CodeValidation, "booking id is required")
	}
	return nil
}

func loadBalance(ctx context.Context, repo balances.Repository, userID uuid.UUID) (*models.UserBalance, error) {
	balance, err := repo.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user balance not found").
				WithDetails(map[string]any{"user_id": userID})
		}
		return nil, err
	}
	return balance, nil
}

func insufficient(userID uuid.UUID, required, available int) error {
	return pkgerrors.New(pkgerrors.CodeInsufficientCredits, "insufficient credits").
		WithDetails(map[string]any{
			"user_id":   userID,
			"required":  required,
			"available": available,
		})
}

func splitPair(bookingID uuid.UUID, rows []models.LedgerEntry) (*models.LedgerEntry, *models.LedgerEntry, error) {
	if len(rows) == 0 {
		return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "no ledger entries for booking").
			WithDetails(map[string]any{"booking_id": bookingID})
	}
	var spent, earned *models.LedgerEntry
	for i := range rows {
		switch rows[i].Kind {
		case enums.LedgerEntryKindSpent:
			spent = &rows[i]
		case enums.LedgerEntryKindEarned:
			earned = &rows[i]
		}
	}
	if len(rows) != 2 || spent == nil || earned == nil {
		return nil, nil, pkgerrors.New(pkgerrors.CodePrecondition, "ledger pair incomplete").
			WithDetails(map[string]any{"booking_id": bookingID, "entries": len(rows)})
	}
	return spent, earned, nil
}
