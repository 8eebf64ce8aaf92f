package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/timecredit-backend/internal/bookings"
	"github.com/angelmondragon/timecredit-backend/pkg/db/models"
	"github.com/angelmondragon/timecredit-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/timecredit-backend/pkg/errors"
	"github.com/angelmondragon/timecredit-backend/pkg/logger"
)

const (
	defaultPendingExpiry = 48 * time.Hour
	defaultExpiryBatch   = 200
)

type stalePendingLister interface {
	ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]models.Booking, error)
}

type bookingTransitioner interface {
	RequestTransition(ctx context.Context, bookingID uuid.UUID, target enums.BookingStatus, tc bookings.TransitionContext) (*models.Booking, error)
}

type BookingExpiryJobParams struct {
	Logger      *logger.Logger
	Repository  stalePendingLister
	Transitions bookingTransitioner
	Expiry      time.Duration
	BatchSize   int
}

// NewBookingExpiryJob cancels bookings left pending for longer than Expiry.
// Cancellation goes through the state machine, so a booking confirmed in the
// meantime is skipped.
func NewBookingExpiryJob(params BookingExpiryJobParams) (Job, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("booking repository required")
	}
	if params.Transitions == nil {
		return nil, fmt.Errorf("booking service required")
	}
	if params.Expiry <= 0 {
		params.Expiry = defaultPendingExpiry
	}
	if params.BatchSize <= 0 {
		params.BatchSize = defaultExpiryBatch
	}
	return &bookingExpiryJob{params: params, now: time.Now}, nil
}

type bookingExpiryJob struct {
	params BookingExpiryJobParams
	now    func() time.Time
}

func (j *bookingExpiryJob) Name() string { return "booking-expiry" }

func (j *bookingExpiryJob) Run(ctx context.Context) error {
	logg := j.params.Logger
	cutoff := j.now().UTC().Add(-j.params.Expiry)
	stale, err := j.params.Repository.ListStalePending(ctx, cutoff, j.params.BatchSize)
	if err != nil {
		return fmt.Errorf("list stale bookings: %w", err)
	}

	var errs error
	expired, skipped := 0, 0
	for _, booking := range stale {
		_, err := j.params.Transitions.RequestTransition(ctx, booking.ID, enums.BookingStatusCancelled, bookings.TransitionContext{
			Reason:       bookings.CancelReasonExpired,
			ExpectedFrom: enums.BookingStatusPending,
		})
		switch {
		case err == nil:
			expired++
		case pkgerrors.Is(err, pkgerrors.CodeStateConflict), pkgerrors.Is(err, pkgerrors.CodeAlreadyCancelled):
			skipped++
		default:
			errs = multierr.Append(errs, fmt.Errorf("expire booking %s: %w", booking.ID, err))
		}
	}

	logg.Info(logg.WithFields(ctx, map[string]any{
		"cutoff":  cutoff,
		"found":   len(stale),
		"expired": expired,
		"skipped": skipped,
	}), "pending booking expiry complete")
	return errs
}
