package balances

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/timecredit-backend/pkg/db"
	"github.com/angelmondragon/timecredit-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/timecredit-backend/pkg/errors"
	"github.com/angelmondragon/timecredit-backend/pkg/logger"
)

// Service opens accounts and reads balances. Credits only move through the ledger engine.
type Service interface {
	OpenAccount(ctx context.Context, userID uuid.UUID) (*models.UserBalance, bool, error)
	GetBalance(ctx context.Context, userID uuid.UUID) (*models.UserBalance, error)
}

type service struct {
	repo            Repository
	startingBalance int
	logg            *logger.Logger
}

func NewService(repo Repository, startingBalance int, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("balance repository required")
	}
	if startingBalance < 0 {
		return nil, fmt.Errorf("starting balance must be non-negative")
	}
	return &service{repo: repo, startingBalance: startingBalance, logg: logg}, nil
}

// OpenAccount creates the user's balance with the starting grant. Opening an
// existing account returns it unchanged with created=false.
func (s *service) OpenAccount(ctx context.Context, userID uuid.UUID) (*models.UserBalance, bool, error) {
	if userID == uuid.Nil {
		return nil, false, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	existing, err := s.GetBalance(ctx, userID)
	if err == nil {
		return existing, false, nil
	}
	if !pkgerrors.Is(err, pkgerrors.CodeNotFound) {
		return nil, false, err
	}

	balance := &models.UserBalance{UserID: userID, Credits: s.startingBalance}
	if err := s.repo.Create(ctx, balance); err != nil {
		if db.IsUniqueViolation(err) {
			existing, getErr := s.GetBalance(ctx, userID)
			return existing, false, getErr
		}
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create balance")
	}

	ctx = s.logg.WithUserID(ctx, userID.String())
	s.logg.Info(s.logg.WithField(ctx, "credits", balance.Credits), "account opened")
	return balance, true, nil
}

func (s *service) GetBalance(ctx context.Context, userID uuid.UUID) (*models.UserBalance, error) {
	balance, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user balance not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load balance")
	}
	return balance, nil
}
