package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/timecredit-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/timecredit-backend/pkg/errors"
	"github.com/angelmondragon/timecredit-backend/pkg/pagination"
)

// HistoryPage is one page of a user's transaction history.
type HistoryPage struct {
	Entries    []models.LedgerEntryView `json:"entries"`
	NextCursor string                   `json:"next_cursor,omitempty"`
}

// Service serves read-side ledger history. Writes go through Engine.
type Service interface {
	ListForUser(ctx context.Context, userID uuid.UUID, params pagination.Params) (*HistoryPage, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{repo: repo}, nil
}

// ListForUser returns the entries a user sees in their history: the spent side
// when they paid and the earned side when they were paid.
func (s *service) ListForUser(ctx context.Context, userID uuid.UUID, params pagination.Params) (*HistoryPage, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	rows, err := s.repo.ListForUser(ctx, userID, cursor, pagination.LimitWithBuffer(params.Limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list transactions")
	}
	entries, next := pagination.Page(rows, params.Limit, func(v models.LedgerEntryView) pagination.Cursor {
		return pagination.Cursor{CreatedAt: v.CreatedAt, ID: v.ID}
	})
	if entries == nil {
		entries = []models.LedgerEntryView{}
	}
	return &HistoryPage{Entries: entries, NextCursor: next}, nil
}
