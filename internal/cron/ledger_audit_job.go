package cron

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/timecredit-backend/pkg/db/models"
	"github.com/angelmondragon/timecredit-backend/pkg/logger"
)

type negativeBalanceLister interface {
	ListNegative(ctx context.Context) ([]models.UserBalance, error)
}

type negativeSlotLister interface {
	ListNegativeSlots(ctx context.Context) ([]models.Skill, error)
}

type unpairedBookingLister interface {
	ListCompletedWithoutLedgerPair(ctx context.Context) ([]uuid.UUID, error)
}

type mismatchedPairLister interface {
	ListMismatchedPairs(ctx context.Context) ([]uuid.UUID, error)
}

type LedgerAuditJobParams struct {
	Logger   *logger.Logger
	Balances negativeBalanceLister
	Skills   negativeSlotLister
	Bookings unpairedBookingLister
	Ledger   mismatchedPairLister
}

// NewLedgerAuditJob checks the stored ledger against its invariants: no negative
// balance, no negative slot count, a completed entry pair for every completed
// booking, and no pair split across statuses. Every violation is reported.
func NewLedgerAuditJob(params LedgerAuditJobParams) (Job, error) {
	switch {
	case params.Balances == nil:
		return nil, fmt.Errorf("balance repository required")
	case params.Skills == nil:
		return nil, fmt.Errorf("skill repository required")
	case params.Bookings == nil:
		return nil, fmt.Errorf("booking repository required")
	case params.Ledger == nil:
		return nil, fmt.Errorf("ledger repository required")
	}
	return &ledgerAuditJob{params: params}, nil
}

type ledgerAuditJob struct {
	params LedgerAuditJobParams
}

func (j *ledgerAuditJob) Name() string { return "ledger-audit" }

func (j *ledgerAuditJob) Run(ctx context.Context) error {
	logg := j.params.Logger
	var errs error

	balances, err := j.params.Balances.ListNegative(ctx)
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("list negative balances: %w", err))
	}
	for _, b := range balances {
		errs = multierr.Append(errs, fmt.Errorf("user %s has negative balance %d", b.UserID, b.Credits))
	}

	skills, err := j.params.Skills.ListNegativeSlots(ctx)
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("list negative slots: %w", err))
	}
	for _, s := range skills {
		errs = multierr.Append(errs, fmt.Errorf("skill %s has negative slots %d", s.ID, s.AvailableSlots))
	}

	unpaired, err := j.params.Bookings.ListCompletedWithoutLedgerPair(ctx)
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("list unpaired bookings: %w", err))
	}
	for _, id := range unpaired {
		errs = multierr.Append(errs, fmt.Errorf("completed booking %s lacks a completed ledger pair", id))
	}

	mismatched, err := j.params.Ledger.ListMismatchedPairs(ctx)
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("list mismatched pairs: %w", err))
	}
	for _, id := range mismatched {
		errs = multierr.Append(errs, fmt.Errorf("ledger pair for booking %s has mixed statuses", id))
	}

	logg.Info(logg.WithFields(ctx, map[string]any{
		"negative_balances": len(balances),
		"negative_slots":    len(skills),
		"unpaired_bookings": len(unpaired),
		"mismatched_pairs":  len(mismatched),
	}), "ledger audit complete")
	return errs
}
