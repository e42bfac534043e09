package store

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate key")
)

const uniqueViolationCode = "23505"

// classify maps driver errors onto the store's sentinel errors so callers
// can dispatch with errors.Is.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
		return ErrDuplicate
	}
	return err
}

// Fragments that mark an error as underlying-store corruption rather than a
// transient failure. Matched case-insensitively against the error message.
var corruptionMarkers = []string{
	"corrupt",
	"malformed",
	"invalid page",
	"index contains unexpected",
}

// IsCorruption reports whether err looks like store corruption. Corruption
// triggers the backup-then-repair flow instead of a plain failure.
func IsCorruption(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range corruptionMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
