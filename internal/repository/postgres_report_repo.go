package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/bookman/internal/model"
)

// PostgresReportRepo はPostgreSQLを使用した読み取り専用の集計リポジトリ。
// 状態を一切変更しない。
type PostgresReportRepo struct {
	db *sql.DB
}

// NewPostgresReportRepo はPostgresReportRepoを生成する。
func NewPostgresReportRepo(db *sql.DB) *PostgresReportRepo {
	return &PostgresReportRepo{db: db}
}

// MostBorrowedBooks は貸出回数（返却済みを含む全ステータス）の多い蔵書を上位limit件返す。
// 削除済み蔵書の記録はJOINで除外される。同数の場合の順序は保証しない。
func (r *PostgresReportRepo) MostBorrowedBooks(ctx context.Context, limit int) ([]BookBorrowCount, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT bk.id, bk.title, bk.author, bk.isbn, bk.publication_date, bk.genre,
		        bk.total_copies, bk.available_copies, bk.created_at, bk.updated_at,
		        count(*) AS borrow_count
		 FROM borrowings b
		 JOIN books bk ON bk.id = b.book_id
		 GROUP BY bk.id, bk.title, bk.author, bk.isbn, bk.publication_date, bk.genre,
		          bk.total_copies, bk.available_copies, bk.created_at, bk.updated_at
		 ORDER BY borrow_count DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query most borrowed books: %w", err)
	}
	defer rows.Close()

	var results []BookBorrowCount
	for rows.Next() {
		var row BookBorrowCount
		err := rows.Scan(
			&row.Book.ID, &row.Book.Title, &row.Book.Author, &row.Book.ISBN,
			&row.Book.PublicationDate, &row.Book.Genre,
			&row.Book.TotalCopies, &row.Book.AvailableCopies,
			&row.Book.CreatedAt, &row.Book.UpdatedAt,
			&row.BorrowCount,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan most borrowed row: %w", err)
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate most borrowed rows: %w", err)
	}

	return results, nil
}

// MostActiveMembers は貸出回数の多いユーザーを上位limit件返す。
// 認証情報を漏らさないよう、公開フィールドのみをSELECTする。
func (r *PostgresReportRepo) MostActiveMembers(ctx context.Context, limit int) ([]MemberBorrowCount, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT u.id, u.name, u.email, u.role, u.created_at, count(*) AS borrow_count
		 FROM borrowings b
		 JOIN users u ON u.id = b.user_id
		 GROUP BY u.id, u.name, u.email, u.role, u.created_at
		 ORDER BY borrow_count DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query most active members: %w", err)
	}
	defer rows.Close()

	var results []MemberBorrowCount
	for rows.Next() {
		var row MemberBorrowCount
		err := rows.Scan(
			&row.User.ID, &row.User.Name, &row.User.Email, &row.User.Role,
			&row.User.CreatedAt, &row.BorrowCount,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan most active member row: %w", err)
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate most active member rows: %w", err)
	}

	return results, nil
}

// AvailabilitySummary は蔵書全体の在庫サマリを取得する。
// 5つの値を単一文で取得し同一スナップショットに揃えることで、
// 集計レベルの整合性 borrowed_copies == active_borrows を保証する。
func (r *PostgresReportRepo) AvailabilitySummary(ctx context.Context) (*AvailabilitySummary, error) {
	summary := &AvailabilitySummary{}
	err := r.db.QueryRowContext(ctx,
		`SELECT
		   (SELECT count(*) FROM books),
		   COALESCE((SELECT sum(total_copies) FROM books), 0),
		   COALESCE((SELECT sum(available_copies) FROM books), 0),
		   (SELECT count(*) FROM borrowings WHERE status = $1)`,
		model.BorrowStatusBorrowed,
	).Scan(&summary.TotalBooks, &summary.TotalCopies, &summary.AvailableCopies, &summary.ActiveBorrows)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to query availability summary: %w", err)
	}

	summary.BorrowedCopies = summary.TotalCopies - summary.AvailableCopies

	return summary, nil
}

// compile-time interface check
var _ ReportRepository = (*PostgresReportRepo)(nil)
