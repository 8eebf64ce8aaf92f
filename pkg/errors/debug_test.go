package errors

import (
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
)

func TestDumpIncludesPostgresDetails(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "reviews_booking_id_key", TableName: "reviews", Message: "duplicate key value"}
	err := Wrap(CodeAlreadyReviewed, fmt.Errorf("insert review: %w", pgErr), "booking already reviewed")

	d := Dump(err)
	require.Equal(t, CodeAlreadyReviewed, d.Code)
	require.Equal(t, "23505", d.PGCode)
	require.Equal(t, "reviews_booking_id_key", d.PGConstraint)
	require.Len(t, d.Chain, 3)
}

func TestDumpNil(t *testing.T) {
	require.Equal(t, ErrorDump{}, Dump(nil))
}

func TestDumpIncludesSQLiteCodes(t *testing.T) {
	liteErr := sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}
	d := Dump(Wrap(CodeConflict, fmt.Errorf("insert ledger entry: %w", liteErr), "duplicate transfer"))

	require.Equal(t, CodeConflict, d.Code)
	require.Equal(t, "19/2067", d.SQLiteCode)
	require.Empty(t, d.PGCode)
}

func TestDumpMarksRetryableCodes(t *testing.T) {
	require.True(t, Dump(New(CodeContention, "retry budget exhausted")).Retryable)
	require.False(t, Dump(New(CodeValidation, "bad input")).Retryable)
}
