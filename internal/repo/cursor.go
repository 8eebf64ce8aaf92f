// Package repo holds query helpers shared by the domain repositories.
package repo

import (
	"gorm.io/gorm"

	"github.com/angelmondragon/timecredit-backend/pkg/pagination"
)

// ApplyCursor restricts q to rows strictly after cursor in (created_at DESC, id DESC) order.
func ApplyCursor(q *gorm.DB, table string, cursor *pagination.Cursor) *gorm.DB {
	if cursor == nil {
		return q
	}
	return q.Where(
		"("+table+".created_at < ?) OR ("+table+".created_at = ? AND "+table+".id < ?)",
		cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
	)
}
