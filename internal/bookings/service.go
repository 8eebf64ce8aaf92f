package bookings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/timecredit-backend/internal/balances"
	"github.com/angelmondragon/timecredit-backend/internal/ledger"
	"github.com/angelmondragon/timecredit-backend/internal/skills"
	"github.com/angelmondragon/timecredit-backend/pkg/db/models"
	"github.com/angelmondragon/timecredit-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/timecredit-backend/pkg/errors"
	"github.com/angelmondragon/timecredit-backend/pkg/logger"
	"github.com/angelmondragon/timecredit-backend/pkg/metrics"
	"github.com/angelmondragon/timecredit-backend/pkg/outbox"
	"github.com/angelmondragon/timecredit-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/timecredit-backend/pkg/pagination"
)

// Service owns the booking lifecycle. Each call is one atomic unit: the status
// write, slot accounting, credit movement and outbox row commit together.
type Service interface {
	Create(ctx context.Context, input CreateBookingInput) (*models.Booking, error)
	RequestTransition(ctx context.Context, bookingID uuid.UUID, target enums.BookingStatus, tc TransitionContext) (*models.Booking, error)
	ReverseLedgerEntry(ctx context.Context, entryID uuid.UUID, tc TransitionContext) (*models.Booking, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Booking, error)
	ListForUser(ctx context.Context, userID uuid.UUID, filter ListFilter, params pagination.Params) (*ListResult, error)
}

// ServiceDeps bundles the collaborators a booking service needs. Changes and
// Metrics may be nil.
type ServiceDeps struct {
	Repo     Repository
	Skills   skills.Repository
	Balances balances.Repository
	Slots    SlotManager
	Credits  CreditEngine
	Runner   atomicRunner
	Outbox   outboxPublisher
	Changes  changePublisher
	Metrics  *metrics.LedgerMetrics
	Logger   *logger.Logger
}

type service struct {
	repo     Repository
	skills   skills.Repository
	balances balances.Repository
	slots    SlotManager
	credits  CreditEngine
	runner   atomicRunner
	outbox   outboxPublisher
	changes  changePublisher
	metrics  *metrics.LedgerMetrics
	logg     *logger.Logger
}

func NewService(deps ServiceDeps) (Service, error) {
	switch {
	case deps.Repo == nil:
		return nil, fmt.Errorf("booking repository required")
	case deps.Skills == nil:
		return nil, fmt.Errorf("skill repository required")
	case deps.Balances == nil:
		return nil, fmt.Errorf("balance repository required")
	case deps.Slots == nil:
		return nil, fmt.Errorf("slot manager required")
	case deps.Credits == nil:
		return nil, fmt.Errorf("credit engine required")
	case deps.Runner == nil:
		return nil, fmt.Errorf("atomic runner required")
	case deps.Outbox == nil:
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		repo:     deps.Repo,
		skills:   deps.Skills,
		balances: deps.Balances,
		slots:    deps.Slots,
		credits:  deps.Credits,
		runner:   deps.Runner,
		outbox:   deps.Outbox,
		changes:  deps.Changes,
		metrics:  deps.Metrics,
		logg:     deps.Logger,
	}, nil
}

// newBookingLabel stands in for the source status of a freshly created booking.
const newBookingLabel = "new"

// transitionResult is what a committed unit hands to the post-commit hooks.
type transitionResult struct {
	booking  *models.Booking
	from     enums.BookingStatus
	reason   string
	declined bool
	transfer *ledger.TransferResult
	reversal *ledger.TransferResult
}

func (s *service) Create(ctx context.Context, input CreateBookingInput) (*models.Booking, error) {
	if err := validateCreate(input); err != nil {
		return nil, err
	}

	var booking *models.Booking
	err := s.runner.Run(ctx, "booking.create", func(tx *gorm.DB) error {
		skill, err := s.skills.WithTx(tx).FindByID(ctx, input.SkillID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "skill not found")
			}
			return err
		}
		if !skill.IsActive {
			return pkgerrors.New(pkgerrors.CodePrecondition, "skill is not active").
				WithDetails(map[string]any{"skill_id": skill.ID})
		}
		if skill.ProviderID == input.RequesterID {
			return pkgerrors.New(pkgerrors.CodeValidation, "cannot book your own skill")
		}
		if err := s.requireBalances(ctx, tx, input.RequesterID, skill.ProviderID); err != nil {
			return err
		}

		credits := input.Credits
		if credits == 0 {
			credits = skill.CreditsPerHour
		}
		booking = &models.Booking{
			SkillID:       skill.ID,
			RequesterID:   input.RequesterID,
			ProviderID:    skill.ProviderID,
			Credits:       credits,
			ScheduledDate: input.ScheduledDate,
			ScheduledTime: input.ScheduledTime,
			Status:        enums.BookingStatusPending,
			MeetingRef:    input.MeetingRef,
		}
		if input.Confirmed {
			if err := s.slots.ReserveSlot(ctx, tx, skill.ID); err != nil {
				return err
			}
			booking.Status = enums.BookingStatusConfirmed
		}
		if err := s.repo.WithTx(tx).Create(ctx, booking); err != nil {
			return err
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventBookingCreated,
			AggregateType: enums.AggregateBooking,
			AggregateID:   booking.ID,
			Actor:         outbox.Actor(input.RequesterID),
			Data: payloads.BookingCreatedEvent{
				BookingID:     booking.ID,
				SkillID:       booking.SkillID,
				RequesterID:   booking.RequesterID,
				ProviderID:    booking.ProviderID,
				Credits:       booking.Credits,
				Status:        booking.Status,
				ScheduledDate: booking.ScheduledDate,
				ScheduledTime: booking.ScheduledTime,
			},
		})
	})
	if err != nil {
		s.metrics.IncTransition(newBookingLabel, statusLabel(input.Confirmed), metrics.OutcomeRejected)
		return nil, pkgerrors.Ensure(err, pkgerrors.CodeDependency, "create booking")
	}

	s.afterCommit(ctx, &transitionResult{booking: booking})
	return booking, nil
}

// RequestTransition moves a booking to target. A confirm that finds no free
// slot commits the booking as declined and returns it without an error.
func (s *service) RequestTransition(ctx context.Context, bookingID uuid.UUID, target enums.BookingStatus, tc TransitionContext) (*models.Booking, error) {
	if !target.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown booking status").
			WithDetails(map[string]any{"status": target})
	}

	var result *transitionResult
	var from enums.BookingStatus
	err := s.runner.Run(ctx, "booking.transition", func(tx *gorm.DB) error {
		var err error
		result, err = s.applyInTx(ctx, tx, bookingID, target, tc, &from)
		return err
	})
	if err != nil {
		return nil, s.rejected(ctx, bookingID, from, target, err)
	}

	s.afterCommit(ctx, result)
	return result.booking, nil
}

// ReverseLedgerEntry cancels the completed booking that entryID was written for,
// which reverses its credit pair.
func (s *service) ReverseLedgerEntry(ctx context.Context, entryID uuid.UUID, tc TransitionContext) (*models.Booking, error) {
	var result *transitionResult
	var bookingID uuid.UUID
	var from enums.BookingStatus
	err := s.runner.Run(ctx, "ledger.reverse", func(tx *gorm.DB) error {
		entry, err := s.credits.FindEntry(ctx, tx, entryID)
		if err != nil {
			return err
		}
		bookingID = entry.BookingID
		result, err = s.applyInTx(ctx, tx, entry.BookingID, enums.BookingStatusCancelled, tc, &from)
		return err
	})
	if err != nil {
		return nil, s.rejected(ctx, bookingID, from, enums.BookingStatusCancelled, err)
	}

	s.afterCommit(ctx, result)
	return result.booking, nil
}

// applyInTx reads the booking, validates the edge, runs the edge's effect and
// writes the new status. Writes happen in the order balances, ledger, skill
// counters, booking, outbox.
func (s *service) applyInTx(ctx context.Context, tx *gorm.DB, bookingID uuid.UUID, target enums.BookingStatus, tc TransitionContext, from *enums.BookingStatus) (*transitionResult, error) {
	bookingRepo := s.repo.WithTx(tx)
	booking, err := bookingRepo.FindByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "booking not found")
		}
		return nil, err
	}
	*from = booking.Status
	if tc.ExpectedFrom != "" && booking.Status != tc.ExpectedFrom {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "booking status changed").
			WithDetails(map[string]any{"expected": tc.ExpectedFrom, "actual": booking.Status})
	}

	eff, err := lookupEdge(booking.Status, target)
	if err != nil {
		return nil, err
	}

	result := &transitionResult{booking: booking, from: booking.Status, reason: strings.TrimSpace(tc.Reason)}
	switch eff {
	case effectReserveSlot:
		if err := s.slots.ReserveSlot(ctx, tx, booking.SkillID); err != nil {
			if !pkgerrors.Is(err, pkgerrors.CodeNoCapacity) {
				return nil, err
			}
			target = enums.BookingStatusDeclined
			result.reason = DeclineReasonNoCapacity
			result.declined = true
		}
	case effectReleaseSlot:
		if err := s.slots.ReleaseSlot(ctx, tx, booking.SkillID); err != nil {
			// a skill that no longer exists has no capacity to take back
			if !pkgerrors.Is(err, pkgerrors.CodeNotFound) {
				return nil, err
			}
		}
	case effectTransfer:
		transfer, err := s.completeSession(ctx, tx, booking, tc)
		if err != nil {
			return nil, err
		}
		result.transfer = transfer
	case effectReverse:
		reversal, err := s.credits.ReverseBooking(ctx, tx, booking.ID)
		if err != nil {
			return nil, err
		}
		result.reversal = &reversal
	}

	booking.Status = target
	if target == enums.BookingStatusDeclined && result.reason != "" {
		reason := result.reason
		booking.DeclineReason = &reason
	}
	if err := bookingRepo.Update(ctx, booking); err != nil {
		return nil, err
	}

	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventBookingStatusChanged,
		AggregateType: enums.AggregateBooking,
		AggregateID:   booking.ID,
		Actor:         outbox.Actor(tc.ActorID),
		Data: payloads.BookingStatusChangedEvent{
			BookingID:     booking.ID,
			SkillID:       booking.SkillID,
			RequesterID:   booking.RequesterID,
			ProviderID:    booking.ProviderID,
			From:          result.from,
			To:            booking.Status,
			Reason:        result.reason,
			ChangedAt:     booking.UpdatedAt,
			DeclineReason: booking.DeclineReason,
		},
	}); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) completeSession(ctx context.Context, tx *gorm.DB, booking *models.Booking, tc TransitionContext) (*ledger.TransferResult, error) {
	skillRepo := s.skills.WithTx(tx)
	skill, err := skillRepo.FindByID(ctx, booking.SkillID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodePrecondition, "skill for booking no longer exists")
		}
		return nil, err
	}

	description := strings.TrimSpace(tc.Description)
	if description == "" {
		description = fmt.Sprintf("Session: %s", skill.Title)
	}
	transfer, err := s.credits.Transfer(ctx, tx, ledger.TransferInput{
		From:        booking.RequesterID,
		To:          booking.ProviderID,
		Amount:      booking.Credits,
		SkillID:     booking.SkillID,
		BookingID:   booking.ID,
		Description: description,
		ActorID:     tc.ActorID,
	})
	if err != nil {
		return nil, err
	}
	if err := skillRepo.IncrementSessions(ctx, skill); err != nil {
		return nil, err
	}

	completedAt := time.Now().UTC()
	booking.CompletedAt = &completedAt
	return &transfer, nil
}

func (s *service) requireBalances(ctx context.Context, tx *gorm.DB, userIDs ...uuid.UUID) error {
	repo := s.balances.WithTx(tx)
	for _, id := range userIDs {
		if _, err := repo.FindByUserID(ctx, id); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodePrecondition, "missing related records").
					WithDetails(map[string]any{"user_id": id})
			}
			return err
		}
	}
	return nil
}

func (s *service) afterCommit(ctx context.Context, result *transitionResult) {
	booking := result.booking
	outcome := metrics.OutcomeCommitted
	if result.declined {
		outcome = metrics.OutcomeDeclined
	}
	fromLabel := string(result.from)
	if fromLabel == "" {
		fromLabel = newBookingLabel
	}
	s.metrics.IncTransition(fromLabel, string(booking.Status), outcome)
	if result.transfer != nil {
		s.metrics.AddCreditsMoved(metrics.DirectionTransferred, result.transfer.Credits)
	}
	if result.reversal != nil {
		s.metrics.AddCreditsMoved(metrics.DirectionReversed, result.reversal.Credits)
	}

	ctx = s.logg.WithBookingID(ctx, booking.ID.String())
	fields := map[string]any{"from": result.from, "to": booking.Status}
	if result.reason != "" {
		fields["reason"] = result.reason
	}
	if result.declined {
		s.logg.Warn(s.logg.WithFields(ctx, fields), "booking declined at confirm")
	} else {
		s.logg.Info(s.logg.WithFields(ctx, fields), "booking transition committed")
	}

	if s.changes != nil {
		s.changes.Publish(BookingChange{
			BookingID:   booking.ID,
			SkillID:     booking.SkillID,
			RequesterID: booking.RequesterID,
			ProviderID:  booking.ProviderID,
			Credits:     booking.Credits,
			From:        result.from,
			To:          booking.Status,
			Reason:      result.reason,
			At:          booking.UpdatedAt,
		})
	}
}

func (s *service) rejected(ctx context.Context, bookingID uuid.UUID, from, target enums.BookingStatus, err error) error {
	s.metrics.IncTransition(string(from), string(target), metrics.OutcomeRejected)
	if bookingID != uuid.Nil {
		ctx = s.logg.WithBookingID(ctx, bookingID.String())
	}
	ctx = s.logg.WithFields(ctx, map[string]any{"from": from, "to": target, "code": pkgerrors.CodeOf(err)})
	s.logg.Warn(ctx, "booking transition rejected")
	return pkgerrors.Ensure(err, pkgerrors.CodeDependency, "transition booking")
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "booking not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load booking")
	}
	return booking, nil
}

func (s *service) ListForUser(ctx context.Context, userID uuid.UUID, filter ListFilter, params pagination.Params) (*ListResult, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if filter.Status != nil && !filter.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown booking status")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	rows, err := s.repo.ListForUser(ctx, userID, filter, cursor, pagination.LimitWithBuffer(params.Limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list bookings")
	}
	page, next := pagination.Page(rows, params.Limit, func(v BookingView) pagination.Cursor {
		return pagination.Cursor{CreatedAt: v.CreatedAt, ID: v.ID}
	})
	if page == nil {
		page = []BookingView{}
	}
	return &ListResult{Bookings: page, NextCursor: next}, nil
}

func validateCreate(input CreateBookingInput) error {
	switch {
	case input.SkillID == uuid.Nil:
		return pkgerrors.New(pkgerrors.CodeValidation, "skill id is required")
	case input.RequesterID == uuid.Nil:
		return pkgerrors.New(pkgerrors.CodeValidation, "requester id is required")
	case input.Credits < 0:
		return pkgerrors.New(pkgerrors.CodeValidation, "credits must be positive")
	}
	if _, err := time.Parse(dateLayout, input.ScheduledDate); err != nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "scheduled date must be YYYY-MM-DD")
	}
	if _, err := time.Parse(timeLayout, input.ScheduledTime); err != nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "scheduled time must be HH:MM")
	}
	return nil
}

func statusLabel(confirmed bool) string {
	if confirmed {
		return string(enums.BookingStatusConfirmed)
	}
	return string(enums.BookingStatusPending)
}
