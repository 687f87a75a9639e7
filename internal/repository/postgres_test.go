package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
)

// isUniqueViolationがpqの一意制約違反のみを検出することを検証
func TestIsUniqueViolation(t *testing.T) {
	uniqueErr := &pq.Error{Code: "23505", Constraint: constraintBooksISBN}

	if !isUniqueViolation(uniqueErr, constraintBooksISBN) {
		t.Error("expected unique violation with matching constraint to be detected")
	}
	if !isUniqueViolation(uniqueErr, "") {
		t.Error("expected unique violation with empty constraint filter to be detected")
	}
	if isUniqueViolation(uniqueErr, constraintUsersEmail) {
		t.Error("expected mismatched constraint name to not be detected")
	}
}

// ラップされたpqエラーも検出できることを検証
func TestIsUniqueViolation_Wrapped(t *testing.T) {
	wrapped := fmt.Errorf("failed to insert: %w", &pq.Error{Code: "23505", Constraint: constraintOpenBorrowings})
	if !isUniqueViolation(wrapped, constraintOpenBorrowings) {
		t.Error("expected wrapped unique violation to be detected")
	}
}

// 一意制約違反以外のエラーは検出しないことを検証
func TestIsUniqueViolation_OtherErrors(t *testing.T) {
	if isUniqueViolation(&pq.Error{Code: "23503"}, "") {
		t.Error("expected foreign key violation to not be detected")
	}
	if isUniqueViolation(errors.New("connection refused"), "") {
		t.Error("expected non-pq error to not be detected")
	}
	if isUniqueViolation(nil, "") {
		t.Error("expected nil error to not be detected")
	}
}
