package reviews

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/timecredit-backend/internal/bookings"
	"github.com/angelmondragon/timecredit-backend/internal/skills"
	"github.com/angelmondragon/timecredit-backend/pkg/db"
	"github.com/angelmondragon/timecredit-backend/pkg/db/models"
	"github.com/angelmondragon/timecredit-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/timecredit-backend/pkg/errors"
	"github.com/angelmondragon/timecredit-backend/pkg/logger"
	"github.com/angelmondragon/timecredit-backend/pkg/outbox"
	"github.com/angelmondragon/timecredit-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/timecredit-backend/pkg/pagination"
)

type atomicRunner interface {
	Run(ctx context.Context, op string, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// ApplyReviewInput is one review for a completed booking. ReviewerID defaults
// to the booking's requester.
type ApplyReviewInput struct {
	SkillID    uuid.UUID
	BookingID  uuid.UUID
	ReviewerID uuid.UUID
	Rating     int
	Comment    *string
}

type ReviewPage struct {
	Reviews    []models.Review `json:"reviews"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

// Service aggregates reviews into the skill rating. At most one review lands
// per booking; the booking's reviewed flag and the unique booking_id index both
// guard it.
type Service interface {
	ApplyReview(ctx context.Context, input ApplyReviewInput) (*models.Review, error)
	ListForSkill(ctx context.Context, skillID uuid.UUID, params pagination.Params) (*ReviewPage, error)
}

type service struct {
	repo     Repository
	bookings bookings.Repository
	skills   skills.Repository
	runner   atomicRunner
	outbox   outboxPublisher
	logg     *logger.Logger
}

func NewService(repo Repository, bookingRepo bookings.Repository, skillRepo skills.Repository, runner atomicRunner, publisher outboxPublisher, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("review repository required")
	}
	if bookingRepo == nil {
		return nil, fmt.Errorf("booking repository required")
	}
	if skillRepo == nil {
		return nil, fmt.Errorf("skill repository required")
	}
	if runner == nil {
		return nil, fmt.Errorf("atomic runner required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		repo:     repo,
		bookings: bookingRepo,
		skills:   skillRepo,
		runner:   runner,
		outbox:   publisher,
		logg:     logg,
	}, nil
}

func (s *service) ApplyReview(ctx context.Context, input ApplyReviewInput) (*models.Review, error) {
	if input.Rating < MinRating || input.Rating > MaxRating {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rating must be between 1 and 5")
	}
	if input.BookingID == uuid.Nil || input.SkillID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "skill id and booking id are required")
	}
	comment := normalizeComment(input.Comment)

	var review *models.Review
	var skill *models.Skill
	err := s.runner.Run(ctx, "review.apply", func(tx *gorm.DB) error {
		bookingRepo := s.bookings.WithTx(tx)
		booking, err := bookingRepo.FindByID(ctx, input.BookingID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "booking not found")
			}
			return err
		}
		if booking.SkillID != input.SkillID {
			return pkgerrors.New(pkgerrors.CodeValidation, "booking does not belong to skill")
		}
		if booking.Status != enums.BookingStatusCompleted {
			return pkgerrors.New(pkgerrors.CodeBookingNotCompleted, "booking is not completed").
				WithDetails(map[string]any{"status": booking.Status})
		}
		if booking.Reviewed {
			return pkgerrors.New(pkgerrors.CodeAlreadyReviewed, "booking already reviewed")
		}

		skillRepo := s.skills.WithTx(tx)
		skill, err = skillRepo.FindByID(ctx, booking.SkillID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "skill not found")
			}
			return err
		}

		reviewer := input.ReviewerID
		if reviewer == uuid.Nil {
			reviewer = booking.RequesterID
		}
		review = &models.Review{
			BookingID:  booking.ID,
			SkillID:    booking.SkillID,
			ReviewerID: reviewer,
			ProviderID: booking.ProviderID,
			Rating:     input.Rating,
			Comment:    comment,
		}
		if err := s.repo.WithTx(tx).Create(ctx, review); err != nil {
			if db.IsUniqueViolation(err, "reviews_booking_id_key", "reviews.booking_id") {
				return pkgerrors.New(pkgerrors.CodeAlreadyReviewed, "booking already reviewed")
			}
			return err
		}

		rating := NextRating(skill.Rating, skill.ReviewCount, input.Rating)
		if err := skillRepo.SetRating(ctx, skill, rating, skill.ReviewCount+1); err != nil {
			return err
		}
		booking.Reviewed = true
		if err := bookingRepo.Update(ctx, booking); err != nil {
			return err
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventReviewSubmitted,
			AggregateType: enums.AggregateReview,
			AggregateID:   review.ID,
			Actor:         outbox.Actor(reviewer),
			Data: payloads.ReviewSubmittedEvent{
				ReviewID:    review.ID,
				BookingID:   booking.ID,
				SkillID:     skill.ID,
				Rating:      input.Rating,
				SkillRating: skill.Rating,
				ReviewCount: skill.ReviewCount,
			},
		})
	})
	if err != nil {
		return nil, pkgerrors.Ensure(err, pkgerrors.CodeDependency, "apply review")
	}

	ctx = s.logg.WithSkillID(s.logg.WithBookingID(ctx, input.BookingID.String()), skill.ID.String())
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"rating":       skill.Rating,
		"review_count": skill.ReviewCount,
	}), "review applied")
	return review, nil
}

func (s *service) ListForSkill(ctx context.Context, skillID uuid.UUID, params pagination.Params) (*ReviewPage, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.ListForSkill(ctx, skillID, cursor, pagination.LimitWithBuffer(params.Limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list reviews")
	}
	page, next := pagination.Page(rows, params.Limit, func(r models.Review) pagination.Cursor {
		return pagination.Cursor{CreatedAt: r.CreatedAt, ID: r.ID}
	})
	if page == nil {
		page = []models.Review{}
	}
	return &ReviewPage{Reviews: page, NextCursor: next}, nil
}

func normalizeComment(comment *string) *string {
	if comment == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*comment)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
