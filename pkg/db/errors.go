package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// ErrStaleWrite is returned when a versioned update matched no row: another
// writer committed first and the caller must redo its reads.
var ErrStaleWrite = errors.New("stale write: row version changed")

const (
	pgUniqueViolation       = "23505"
	pgSerializationFailure  = "40001"
	pgDeadlockDetected      = "40P01"
	sqliteUniqueFailedToken = "UNIQUE constraint failed"
)

// IsUniqueViolation reports whether err is a unique violation. When constraint
// names are given, one of them must appear in the error text; pass the sqlite
// "table.column" form alongside the Postgres constraint name to match both.
func IsUniqueViolation(err error, constraints ...string) bool {
	if err == nil {
		return false
	}
	var liteErr sqlite3.Error
	if code := sqlState(err); code != "" {
		if code != pgUniqueViolation {
			return false
		}
	} else if errors.As(err, &liteErr) {
		if liteErr.ExtendedCode != sqlite3.ErrConstraintUnique && liteErr.ExtendedCode != sqlite3.ErrConstraintPrimaryKey {
			return false
		}
	} else {
		msg := err.Error()
		if !strings.Contains(msg, "duplicate key value") && !strings.Contains(msg, sqliteUniqueFailedToken) {
			return false
		}
	}
	if len(constraints) == 0 {
		return true
	}
	msg := err.Error()
	for _, name := range constraints {
		if name == "" || strings.Contains(msg, name) {
			return true
		}
	}
	return false
}

// IsConflict reports whether err means the unit of work lost a race and can be
// replayed from its reads.
func IsConflict(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrStaleWrite) {
		return true
	}
	switch sqlState(err) {
	case pgSerializationFailure, pgDeadlockDetected:
		return true
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code == sqlite3.ErrBusy || liteErr.Code == sqlite3.ErrLocked
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "sqlite_busy")
}

func sqlState(err error) string {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return pgxErr.Code
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}
