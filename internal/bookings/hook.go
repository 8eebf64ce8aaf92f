package bookings

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/angelmondragon/timecredit-backend/pkg/db/models"
	"github.com/angelmondragon/timecredit-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/timecredit-backend/pkg/errors"
	"github.com/angelmondragon/timecredit-backend/pkg/logger"
	"github.com/angelmondragon/timecredit-backend/pkg/observer"
)

const hookSubscriberName = "booking_confirmation_hook"

// ConfirmationHook watches for bookings entering confirmed and re-checks their
// related records in a separate unit. A failed check declines the booking and
// returns its slot. The hook never moves credits.
type ConfirmationHook struct {
	svc          *service
	sub          *observer.Subscription[BookingChange]
	checkCredits bool
	logg         *logger.Logger
}

// NewConfirmationHook subscribes to hub. When checkCredits is set the hook also
// declines bookings whose requester cannot currently cover the price.
func NewConfirmationHook(svc Service, hub *observer.Hub[BookingChange], checkCredits bool, logg *logger.Logger) (*ConfirmationHook, error) {
	impl, ok := svc.(*service)
	if !ok || impl == nil {
		return nil, fmt.Errorf("booking service required")
	}
	if hub == nil {
		return nil, fmt.Errorf("change hub required")
	}
	return &ConfirmationHook{
		svc:          impl,
		sub:          hub.Subscribe(hookSubscriberName, 0),
		checkCredits: checkCredits,
		logg:         logg,
	}, nil
}

// Run handles changes until ctx is cancelled or the hub closes.
func (h *ConfirmationHook) Run(ctx context.Context) error {
	defer h.sub.Close()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case change, ok := <-h.sub.C():
			if !ok {
				return nil
			}
			if change.To != enums.BookingStatusConfirmed {
				continue
			}
			if _, err := h.Handle(ctx, change); err != nil {
				h.logg.Error(h.logg.WithBookingID(ctx, change.BookingID.String()), "confirmation hook failed", err)
			}
		}
	}
}

// Handle re-checks one confirmed booking. It returns the booking when it was
// declined and nil when the booking passed or had already moved on.
func (h *ConfirmationHook) Handle(ctx context.Context, change BookingChange) (*models.Booking, error) {
	var result *transitionResult
	err := h.svc.runner.Run(ctx, "booking.confirm_hook", func(tx *gorm.DB) error {
		result = nil
		booking, err := h.svc.repo.WithTx(tx).FindByID(ctx, change.BookingID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		if booking.Status != enums.BookingStatusConfirmed {
			return nil
		}

		reason, err := h.check(ctx, tx, booking)
		if err != nil || reason == "" {
			return err
		}
		var from enums.BookingStatus
		result, err = h.svc.applyInTx(ctx, tx, booking.ID, enums.BookingStatusDeclined, TransitionContext{Reason: reason}, &from)
		return err
	})
	if err != nil {
		return nil, pkgerrors.Ensure(err, pkgerrors.CodeDependency, "confirmation hook")
	}
	if result == nil {
		return nil, nil
	}
	result.declined = true
	h.svc.afterCommit(ctx, result)
	return result.booking, nil
}

func (h *ConfirmationHook) check(ctx context.Context, tx *gorm.DB, booking *models.Booking) (string, error) {
	skill, err := h.svc.skills.WithTx(tx).FindByID(ctx, booking.SkillID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return DeclineReasonMissingRecords, nil
		}
		return "", err
	}
	if !skill.IsActive {
		return DeclineReasonMissingRecords, nil
	}

	balanceRepo := h.svc.balances.WithTx(tx)
	requester, err := balanceRepo.FindByUserID(ctx, booking.RequesterID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return DeclineReasonMissingRecords, nil
		}
		return "", err
	}
	if _, err := balanceRepo.FindByUserID(ctx, booking.ProviderID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return DeclineReasonMissingRecords, nil
		}
		return "", err
	}

	if h.checkCredits && requester.Credits < booking.Credits {
		return DeclineReasonInsufficientCredits, nil
	}
	return "", nil
}
