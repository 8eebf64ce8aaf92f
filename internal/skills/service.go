package skills

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/timecredit-backend/internal/balances"
	"github.com/angelmondragon/timecredit-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/timecredit-backend/pkg/errors"
	"github.com/angelmondragon/timecredit-backend/pkg/logger"
)

type atomicRunner interface {
	Run(ctx context.Context, op string, fn func(tx *gorm.DB) error) error
}

// Service manages the skill catalog. Slot counts move through the capacity
// manager and ratings through the review aggregator.
type Service interface {
	Create(ctx context.Context, input CreateSkillInput) (*models.Skill, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Skill, error)
	Deactivate(ctx context.Context, id uuid.UUID) (*models.Skill, error)
}

type CreateSkillInput struct {
	ProviderID     uuid.UUID
	Title          string
	CreditsPerHour int
	AvailableSlots int
}

type service struct {
	repo     Repository
	balances balances.Repository
	runner   atomicRunner
	logg     *logger.Logger
}

func NewService(repo Repository, balanceRepo balances.Repository, runner atomicRunner, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("skill repository required")
	}
	if balanceRepo == nil {
		return nil, fmt.Errorf("balance repository required")
	}
	if runner == nil {
		return nil, fmt.Errorf("atomic runner required")
	}
	return &service{repo: repo, balances: balanceRepo, runner: runner, logg: logg}, nil
}

func (s *service) Create(ctx context.Context, input CreateSkillInput) (*models.Skill, error) {
	title := strings.TrimSpace(input.Title)
	switch {
	case input.ProviderID == uuid.Nil:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "provider id is required")
	case title == "":
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title is required")
	case input.CreditsPerHour <= 0:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "credits per hour must be positive")
	case input.AvailableSlots < 0:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "available slots must be non-negative")
	}

	var skill *models.Skill
	err := s.runner.Run(ctx, "skill.create", func(tx *gorm.DB) error {
		if _, err := s.balances.WithTx(tx).FindByUserID(ctx, input.ProviderID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodePrecondition, "provider has no balance record").
					WithDetails(map[string]any{"provider_id": input.ProviderID})
			}
			return err
		}
		skill = &models.Skill{
			ProviderID:     input.ProviderID,
			Title:          title,
			CreditsPerHour: input.CreditsPerHour,
			AvailableSlots: input.AvailableSlots,
			IsActive:       true,
		}
		return s.repo.WithTx(tx).Create(ctx, skill)
	})
	if err != nil {
		return nil, pkgerrors.Ensure(err, pkgerrors.CodeDependency, "create skill")
	}

	ctx = s.logg.WithSkillID(ctx, skill.ID.String())
	s.logg.Info(s.logg.WithField(ctx, "available_slots", skill.AvailableSlots), "skill created")
	return skill, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Skill, error) {
	skill, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "skill not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load skill")
	}
	return skill, nil
}

// Deactivate hides the skill from new bookings. Existing bookings are unaffected.
func (s *service) Deactivate(ctx context.Context, id uuid.UUID) (*models.Skill, error) {
	var skill *models.Skill
	err := s.runner.Run(ctx, "skill.deactivate", func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		found, err := repo.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "skill not found")
			}
			return err
		}
		skill = found
		if !skill.IsActive {
			return nil
		}
		return repo.SetActive(ctx, skill, false)
	})
	if err != nil {
		return nil, pkgerrors.Ensure(err, pkgerrors.CodeDependency, "deactivate skill")
	}
	return skill, nil
}
