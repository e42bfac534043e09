package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestClassify_UniqueViolation(t *testing.T) {
	pgErr := &pgconn.PgError{Code: uniqueViolationCode, Message: "duplicate key value violates unique constraint"}

	if got := classify(pgErr); !errors.Is(got, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", got)
	}
	if got := classify(fmt.Errorf("exec: %w", pgErr)); !errors.Is(got, ErrDuplicate) {
		t.Fatalf("expected wrapped unique violation to classify, got %v", got)
	}
}

func TestClassify_PassThrough(t *testing.T) {
	other := errors.New("connection reset")
	if got := classify(other); got != other {
		t.Fatalf("expected passthrough, got %v", got)
	}
	if got := classify(nil); got != nil {
		t.Fatalf("expected nil passthrough, got %v", got)
	}
	pgErr := &pgconn.PgError{Code: "23503"}
	if got := classify(pgErr); errors.Is(got, ErrDuplicate) {
		t.Fatal("foreign key violation must not classify as duplicate")
	}
}

func TestIsCorruption(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("connection refused"), false},
		{errors.New("ERROR: index \"idx_patterns_confidence\" contains unexpected zero page"), true},
		{errors.New("could not read block 42: Corrupt page header"), true},
		{errors.New("invalid page in block 3 of relation base/16384/16423"), true},
		{errors.New("malformed record at offset 12"), true},
	}
	for _, tc := range cases {
		if got := IsCorruption(tc.err); got != tc.want {
			t.Errorf("IsCorruption(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}
