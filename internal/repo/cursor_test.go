package repo

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/timecredit-backend/pkg/db/dbtest"
	"github.com/angelmondragon/timecredit-backend/pkg/db/models"
	"github.com/angelmondragon/timecredit-backend/pkg/pagination"
)

func TestApplyCursorSkipsRowsAtOrBeforeCursor(t *testing.T) {
	conn := dbtest.Open(t).DB()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	provider := uuid.New()

	var skills []models.Skill
	for i := 0; i < 3; i++ {
		skill := models.Skill{
			ProviderID:     provider,
			Title:          "skill",
			CreditsPerHour: 1,
			IsActive:       true,
			CreatedAt:      base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, conn.Create(&skill).Error)
		skills = append(skills, skill)
	}

	var all []models.Skill
	require.NoError(t, ApplyCursor(conn.Table("skills"), "skills", nil).
		Order("skills.created_at DESC").Find(&all).Error)
	require.Len(t, all, 3)

	cursor := &pagination.Cursor{CreatedAt: skills[2].CreatedAt, ID: skills[2].ID}
	var after []models.Skill
	require.NoError(t, ApplyCursor(conn.Table("skills"), "skills", cursor).
		Order("skills.created_at DESC").Find(&after).Error)
	require.Len(t, after, 2)
	require.Equal(t, skills[1].ID, after[0].ID)
	require.Equal(t, skills[0].ID, after[1].ID)
}
