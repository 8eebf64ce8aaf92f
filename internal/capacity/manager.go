package capacity

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/timecredit-backend/internal/skills"
	pkgerrors "github.com/angelmondragon/timecredit-backend/pkg/errors"
)

// Manager owns skill slot accounting. Reserve and release run inside the
// caller's unit of work so the slot change commits with the booking write.
type Manager struct {
	skills skills.Repository
}

func NewManager(repo skills.Repository) (*Manager, error) {
	if repo == nil {
		return nil, fmt.Errorf("skill repository required")
	}
	return &Manager{skills: repo}, nil
}

// ReserveSlot takes one slot from the skill or fails with NO_CAPACITY.
func (m *Manager) ReserveSlot(ctx context.Context, tx *gorm.DB, skillID uuid.UUID) error {
	repo := m.skills.WithTx(tx)
	skill, err := repo.FindByID(ctx, skillID)
	if err != nil {
		return notFound(err)
	}
	if skill.AvailableSlots <= 0 {
		return pkgerrors.New(pkgerrors.CodeNoCapacity, "no session slots available").
			WithDetails(map[string]any{"skill_id": skillID})
	}
	return repo.AdjustSlots(ctx, skill, -1)
}

// ReleaseSlot returns one slot to the skill. There is no upper bound.
func (m *Manager) ReleaseSlot(ctx context.Context, tx *gorm.DB, skillID uuid.UUID) error {
	repo := m.skills.WithTx(tx)
	skill, err := repo.FindByID(ctx, skillID)
	if err != nil {
		return notFound(err)
	}
	return repo.AdjustSlots(ctx, skill, 1)
}

// Remaining reads the current slot count outside any unit of work.
func (m *Manager) Remaining(ctx context.Context, skillID uuid.UUID) (int, error) {
	skill, err := m.skills.FindByID(ctx, skillID)
	if err != nil {
		return 0, notFound(err)
	}
	return skill.AvailableSlots, nil
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "skill not found")
	}
	return err
}
