package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/lib/pq"
)

// These exercise the parts of PostgresStore that don't need a live
// connection: the in-memory lockout fallback and small scan helpers. The
// SQL-touching methods are covered by the concrete deployment, not here.

func newLockoutTestStore() *PostgresStore {
	return NewPostgresStore(nil, nil, defaultMaxLoginAttempts, defaultLockoutDuration)
}

func TestLockoutLocksAfterMaxAttempts(t *testing.T) {
	s := newLockoutTestStore()
	ctx := context.Background()

	for i := 0; i < defaultMaxLoginAttempts-1; i++ {
		s.recordFailure(ctx, "hero")
		locked, err := s.isLocked(ctx, "hero")
		if err != nil {
			t.Fatalf("isLocked: %v", err)
		}
		if locked {
			t.Fatalf("locked out after only %d failures, want %d", i+1, defaultMaxLoginAttempts)
		}
	}

	s.recordFailure(ctx, "hero")
	locked, err := s.isLocked(ctx, "hero")
	if err != nil {
		t.Fatalf("isLocked: %v", err)
	}
	if !locked {
		t.Fatalf("expected lockout after %d failures", defaultMaxLoginAttempts)
	}
}

func TestClearFailuresResetsLockout(t *testing.T) {
	s := newLockoutTestStore()
	ctx := context.Background()

	for i := 0; i < defaultMaxLoginAttempts; i++ {
		s.recordFailure(ctx, "hero")
	}
	s.clearFailures(ctx, "hero")

	locked, err := s.isLocked(ctx, "hero")
	if err != nil {
		t.Fatalf("isLocked: %v", err)
	}
	if locked {
		t.Fatal("expected lockout cleared")
	}
}

func TestLockoutIsPerUsername(t *testing.T) {
	s := newLockoutTestStore()
	ctx := context.Background()

	for i := 0; i < defaultMaxLoginAttempts; i++ {
		s.recordFailure(ctx, "hero")
	}
	locked, _ := s.isLocked(ctx, "villain")
	if locked {
		t.Fatal("unrelated username should not be locked")
	}
}

func TestIsUniqueViolationDetectsPQCode(t *testing.T) {
	err := &pq.Error{Code: "23505"}
	if !isUniqueViolation(err) {
		t.Fatal("expected 23505 to be detected as a unique violation")
	}
	other := &pq.Error{Code: "23503"}
	if isUniqueViolation(other) {
		t.Fatal("foreign key violation should not be treated as a unique violation")
	}
}

func TestIsUniqueViolationFalseForUnrelatedError(t *testing.T) {
	if isUniqueViolation(errors.New("connection refused")) {
		t.Fatal("unrelated error misclassified as unique violation")
	}
}

func TestNullableRef(t *testing.T) {
	if got := nullableRef(sql.NullInt64{Valid: false}); got != nil {
		t.Fatalf("expected nil for invalid NullInt64, got %v", got)
	}
	got := nullableRef(sql.NullInt64{Valid: true, Int64: 42})
	if got == nil || *got != 42 {
		t.Fatalf("expected pointer to 42, got %v", got)
	}
}

func TestApplyBackoffCutShortByContextCancel(t *testing.T) {
	s := newLockoutTestStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	s.applyBackoff(ctx)
	if elapsed := time.Since(start); elapsed >= loginFailureBackoff {
		t.Fatalf("expected cancellation to cut the backoff short, waited %v", elapsed)
	}
}

func TestNullableSkillID(t *testing.T) {
	if got := nullableSkillID(0); got != nil {
		t.Fatalf("expected nil for skill id 0, got %v", got)
	}
	if got := nullableSkillID(7); got != 7 {
		t.Fatalf("expected 7, got %v", got)
	}
}
