// Package pagination implements keyset paging over (created_at, id). Cursors
// are opaque URL-safe tokens naming the last row of the previous page.
package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultLimit = 25
	MaxLimit     = 100

	cursorVersion = 1
)

// ErrInvalidCursor wraps every ParseCursor failure.
var ErrInvalidCursor = errors.New("invalid cursor")

// Params carries the limit and cursor a caller asked for.
type Params struct {
	Limit  int
	Cursor string
}

// Cursor is the keyset position. Rows strictly after it, in
// (created_at desc, id desc) order, form the next page.
type Cursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

type wireCursor struct {
	V  int       `json:"v"`
	At time.Time `json:"at"`
	ID uuid.UUID `json:"id"`
}

func NormalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}

// LimitWithBuffer asks for one extra row so Page can tell whether more exist.
func LimitWithBuffer(limit int) int {
	return NormalizeLimit(limit) + 1
}

func EncodeCursor(cursor Cursor) string {
	raw, _ := json.Marshal(wireCursor{V: cursorVersion, At: cursor.CreatedAt.UTC(), ID: cursor.ID})
	return base64.RawURLEncoding.EncodeToString(raw)
}

// ParseCursor returns nil for an empty token.
func ParseCursor(value string) (*Cursor, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	var wc wireCursor
	if err := json.Unmarshal(raw, &wc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	if wc.V != cursorVersion || wc.ID == uuid.Nil || wc.At.IsZero() {
		return nil, ErrInvalidCursor
	}
	return &Cursor{CreatedAt: wc.At, ID: wc.ID}, nil
}

// Page trims a result fetched with LimitWithBuffer down to limit rows and
// returns the cursor for the next page, or "" when rows were exhausted.
func Page[T any](rows []T, limit int, cursorOf func(T) Cursor) ([]T, string) {
	limit = NormalizeLimit(limit)
	if len(rows) <= limit {
		return rows, ""
	}
	rows = rows[:limit]
	return rows, EncodeCursor(cursorOf(rows[len(rows)-1]))
}
