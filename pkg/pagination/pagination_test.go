package pagination

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	in := Cursor{CreatedAt: time.Date(2026, 3, 1, 9, 30, 0, 123, time.UTC), ID: uuid.New()}
	out, err := ParseCursor(EncodeCursor(in))
	require.NoError(t, err)
	require.True(t, in.CreatedAt.Equal(out.CreatedAt))
	require.Equal(t, in.ID, out.ID)
}

func TestParseCursorRejectsGarbage(t *testing.T) {
	c, err := ParseCursor("")
	require.NoError(t, err)
	require.Nil(t, c)

	for _, raw := range []string{
		"%%%",
		base64.RawURLEncoding.EncodeToString([]byte("not json")),
		base64.RawURLEncoding.EncodeToString([]byte(`{"v":2,"at":"2026-03-01T00:00:00Z","id":"` + uuid.NewString() + `"}`)),
		base64.RawURLEncoding.EncodeToString([]byte(`{"v":1,"at":"2026-03-01T00:00:00Z"}`)),
	} {
		_, err = ParseCursor(raw)
		require.ErrorIs(t, err, ErrInvalidCursor, raw)
	}
}

func TestCursorIsURLSafe(t *testing.T) {
	token := EncodeCursor(Cursor{CreatedAt: time.Now(), ID: uuid.New()})
	require.NotContains(t, token, "+")
	require.NotContains(t, token, "/")
	require.NotContains(t, token, "=")
}

func TestNormalizeLimit(t *testing.T) {
	require.Equal(t, DefaultLimit, NormalizeLimit(0))
	require.Equal(t, MaxLimit, NormalizeLimit(1000))
	require.Equal(t, 11, LimitWithBuffer(10))
}

func TestPageTrimsBufferRow(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	cursorOf := func(id uuid.UUID) Cursor { return Cursor{CreatedAt: base, ID: id} }

	page, next := Page(ids, 2, cursorOf)
	require.Len(t, page, 2)
	require.NotEmpty(t, next)
	c, err := ParseCursor(next)
	require.NoError(t, err)
	require.Equal(t, ids[1], c.ID)

	page, next = Page(ids[:2], 2, cursorOf)
	require.Len(t, page, 2)
	require.Empty(t, next)
}
