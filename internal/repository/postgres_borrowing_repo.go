package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/bookman/internal/model"
)

// PostgresBorrowingRepo はPostgreSQLを使用した貸出記録リポジトリ。
//
// 貸出・返却はそれぞれ単一トランザクション内の条件付きUPDATEで実装する。
// 在庫カウンタの減算は available_copies > 0 を条件とし、影響行数0を在庫切れと
// みなす。貸出中記録の一意性は部分ユニークインデックス
// (user_id, book_id) WHERE status = 'Borrowed' がストア側で強制するため、
// 並行する二重貸出はトランザクションごと中断され、減算も巻き戻る。
type PostgresBorrowingRepo struct {
	db *sql.DB
}

// NewPostgresBorrowingRepo はPostgresBorrowingRepoを生成する。
func NewPostgresBorrowingRepo(db *sql.DB) *PostgresBorrowingRepo {
	return &PostgresBorrowingRepo{db: db}
}

const borrowingColumns = `id, user_id, book_id, borrow_date, return_date, status, created_at, updated_at`

// scanBorrowing は1行を*model.Borrowingに読み込む。
func scanBorrowing(row interface{ Scan(dest ...any) error }) (*model.Borrowing, error) {
	b := &model.Borrowing{}
	var returnDate sql.NullTime
	err := row.Scan(
		&b.ID, &b.UserID, &b.BookID, &b.BorrowDate, &returnDate,
		&b.Status, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if returnDate.Valid {
		t := returnDate.Time
		b.ReturnDate = &t
	}
	return b, nil
}

// OpenBorrow は在庫の条件付き減算と貸出記録の挿入を単一トランザクションで行う。
func (r *PostgresBorrowingRepo) OpenBorrow(ctx context.Context, borrowing *model.Borrowing) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// 減算は available_copies > 0 の場合のみ成立する。
	// 影響行数0は「最後の1冊を並行する貸出に取られた」場合を含む。
	result, err := tx.ExecContext(ctx,
		`UPDATE books
		 SET available_copies = available_copies - 1, updated_at = now()
		 WHERE id = $1 AND available_copies > 0`,
		borrowing.BookID,
	)
	if err != nil {
		return fmt.Errorf("failed to decrement available copies: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrBookUnavailable
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO borrowings (id, user_id, book_id, borrow_date, return_date, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, NULL, $5, $6, $7)`,
		borrowing.ID, borrowing.UserID, borrowing.BookID, borrowing.BorrowDate,
		borrowing.Status, borrowing.CreatedAt, borrowing.UpdatedAt,
	)
	if isUniqueViolation(err, constraintOpenBorrowings) {
		// ロールバックにより減算も巻き戻る
		return ErrOpenBorrowExists
	}
	if err != nil {
		return fmt.Errorf("failed to insert borrowing: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// CloseBorrow は貸出記録の返却への遷移と在庫の加算を単一トランザクションで行う。
// 状態遷移は status = 'Borrowed' を条件とするため、再試行された返却が
// 在庫を二重に加算することはない。加算はtotal_copiesを上限とする。
func (r *PostgresBorrowingRepo) CloseBorrow(ctx context.Context, borrowingID string, returnDate time.Time) (*model.Borrowing, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE borrowings
		 SET status = $2, return_date = $3, updated_at = now()
		 WHERE id = $1 AND status = $4`,
		borrowingID, model.BorrowStatusReturned, returnDate, model.BorrowStatusBorrowed,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to close borrowing: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, ErrAlreadyReturned
	}

	// 総冊数が縮小済みの場合に備え、上限はtotal_copiesでクランプする
	_, err = tx.ExecContext(ctx,
		`UPDATE books
		 SET available_copies = LEAST(available_copies + 1, total_copies), updated_at = now()
		 WHERE id = (SELECT book_id FROM borrowings WHERE id = $1)`,
		borrowingID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to increment available copies: %w", err)
	}

	borrowing, err := scanBorrowing(tx.QueryRowContext(ctx,
		`SELECT `+borrowingColumns+` FROM borrowings WHERE id = $1`,
		borrowingID,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to reload borrowing: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return borrowing, nil
}

// FindOpen はユーザーIDと蔵書IDで貸出中の記録を検索する。見つからない場合はnilを返す。
func (r *PostgresBorrowingRepo) FindOpen(ctx context.Context, userID, bookID string) (*model.Borrowing, error) {
	borrowing, err := scanBorrowing(r.db.QueryRowContext(ctx,
		`SELECT `+borrowingColumns+` FROM borrowings
		 WHERE user_id = $1 AND book_id = $2 AND status = $3`,
		userID, bookID, model.BorrowStatusBorrowed,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find open borrowing: %w", err)
	}
	return borrowing, nil
}

// scanBorrowingWithBook は蔵書情報をLEFT JOINした1行を読み込む。
func scanBorrowingWithBook(rows *sql.Rows) (BorrowingWithBook, error) {
	var row BorrowingWithBook
	var returnDate sql.NullTime
	var title, author, isbn sql.NullString
	err := rows.Scan(
		&row.ID, &row.UserID, &row.BookID, &row.BorrowDate, &returnDate,
		&row.Status, &row.CreatedAt, &row.UpdatedAt,
		&title, &author, &isbn,
	)
	if err != nil {
		return row, err
	}
	if returnDate.Valid {
		t := returnDate.Time
		row.ReturnDate = &t
	}
	row.BookTitle = title.String
	row.BookAuthor = author.String
	row.BookISBN = isbn.String
	return row, nil
}

const borrowingWithBookQuery = `
	SELECT b.id, b.user_id, b.book_id, b.borrow_date, b.return_date, b.status, b.created_at, b.updated_at,
	       bk.title, bk.author, bk.isbn
	FROM borrowings b
	LEFT JOIN books bk ON bk.id = b.book_id`

// ListByUser はユーザーの貸出履歴をborrow_date降順で返す。
func (r *PostgresBorrowingRepo) ListByUser(ctx context.Context, userID string, limit int) ([]BorrowingWithBook, error) {
	rows, err := r.db.QueryContext(ctx,
		borrowingWithBookQuery+`
		 WHERE b.user_id = $1
		 ORDER BY b.borrow_date DESC
		 LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list borrowings by user: %w", err)
	}
	defer rows.Close()

	return collectBorrowingsWithBook(rows)
}

// ListActiveByUser はユーザーの貸出中の記録を返す。
func (r *PostgresBorrowingRepo) ListActiveByUser(ctx context.Context, userID string) ([]BorrowingWithBook, error) {
	rows, err := r.db.QueryContext(ctx,
		borrowingWithBookQuery+`
		 WHERE b.user_id = $1 AND b.status = $2
		 ORDER BY b.borrow_date DESC`,
		userID, model.BorrowStatusBorrowed,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list active borrowings: %w", err)
	}
	defer rows.Close()

	return collectBorrowingsWithBook(rows)
}

func collectBorrowingsWithBook(rows *sql.Rows) ([]BorrowingWithBook, error) {
	var results []BorrowingWithBook
	for rows.Next() {
		row, err := scanBorrowingWithBook(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan borrowing row: %w", err)
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate borrowing rows: %w", err)
	}
	return results, nil
}

const borrowingDetailQuery = `
	SELECT b.id, b.user_id, b.book_id, b.borrow_date, b.return_date, b.status, b.created_at, b.updated_at,
	       bk.title, bk.author, bk.isbn, u.name, u.email
	FROM borrowings b
	LEFT JOIN books bk ON bk.id = b.book_id
	LEFT JOIN users u ON u.id = b.user_id`

// scanBorrowingDetail は蔵書・ユーザー情報をLEFT JOINした1行を読み込む。
func scanBorrowingDetail(row interface{ Scan(dest ...any) error }) (BorrowingDetail, error) {
	var d BorrowingDetail
	var returnDate sql.NullTime
	var title, author, isbn, userName, userEmail sql.NullString
	err := row.Scan(
		&d.ID, &d.UserID, &d.BookID, &d.BorrowDate, &returnDate,
		&d.Status, &d.CreatedAt, &d.UpdatedAt,
		&title, &author, &isbn, &userName, &userEmail,
	)
	if err != nil {
		return d, err
	}
	if returnDate.Valid {
		t := returnDate.Time
		d.ReturnDate = &t
	}
	d.BookTitle = title.String
	d.BookAuthor = author.String
	d.BookISBN = isbn.String
	d.UserName = userName.String
	d.UserEmail = userEmail.String
	return d, nil
}

// ListAll は全貸出記録をborrow_date降順・オフセットページネーションで返す。
func (r *PostgresBorrowingRepo) ListAll(ctx context.Context, page, limit int) ([]BorrowingDetail, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT count(*) FROM borrowings`,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count borrowings: %w", err)
	}

	offset := (page - 1) * limit
	rows, err := r.db.QueryContext(ctx,
		borrowingDetailQuery+`
		 ORDER BY b.borrow_date DESC
		 LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list borrowings: %w", err)
	}
	defer rows.Close()

	var results []BorrowingDetail
	for rows.Next() {
		d, err := scanBorrowingDetail(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan borrowing row: %w", err)
		}
		results = append(results, d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate borrowing rows: %w", err)
	}

	return results, total, nil
}

// FindDetail は貸出記録を蔵書・ユーザー情報付きで取得する。見つからない場合はnilを返す。
func (r *PostgresBorrowingRepo) FindDetail(ctx context.Context, id string) (*BorrowingDetail, error) {
	d, err := scanBorrowingDetail(r.db.QueryRowContext(ctx,
		borrowingDetailQuery+` WHERE b.id = $1`,
		id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find borrowing detail: %w", err)
	}
	return &d, nil
}

// compile-time interface check
var _ BorrowingRepository = (*PostgresBorrowingRepo)(nil)
