package repository

import (
	"errors"

	"github.com/lib/pq"
)

// 一意制約名。マイグレーションの定義と一致させること。
const (
	constraintBooksISBN      = "books_isbn_key"
	constraintUsersEmail     = "users_email_key"
	constraintOpenBorrowings = "borrowings_open_unique"
)

// isUniqueViolation はPostgreSQLの一意制約違反（23505）かどうかを判定する。
// constraintが空でない場合は制約名の一致も要求する。
func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	if pqErr.Code != "23505" {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}
