package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/hitoshi/bookman/internal/model"
)

// PostgresBookRepo はPostgreSQLを使用した蔵書リポジトリ。
type PostgresBookRepo struct {
	db *sql.DB
}

// NewPostgresBookRepo はPostgresBookRepoを生成する。
func NewPostgresBookRepo(db *sql.DB) *PostgresBookRepo {
	return &PostgresBookRepo{db: db}
}

const bookColumns = `id, title, author, isbn, publication_date, genre, total_copies, available_copies, created_at, updated_at`

// scanBook は1行を*model.Bookに読み込む。
func scanBook(row interface{ Scan(dest ...any) error }) (*model.Book, error) {
	book := &model.Book{}
	err := row.Scan(
		&book.ID, &book.Title, &book.Author, &book.ISBN, &book.PublicationDate,
		&book.Genre, &book.TotalCopies, &book.AvailableCopies,
		&book.CreatedAt, &book.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return book, nil
}

// Create は蔵書を作成する。ISBNが重複する場合はErrDuplicateISBNを返す。
func (r *PostgresBookRepo) Create(ctx context.Context, book *model.Book) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO books (id, title, author, isbn, publication_date, genre, total_copies, available_copies, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		book.ID, book.Title, book.Author, book.ISBN, book.PublicationDate,
		book.Genre, book.TotalCopies, book.AvailableCopies,
		book.CreatedAt, book.UpdatedAt,
	)
	if isUniqueViolation(err, constraintBooksISBN) {
		return ErrDuplicateISBN
	}
	if err != nil {
		return fmt.Errorf("failed to insert book: %w", err)
	}
	return nil
}

// FindByID は指定IDの蔵書を取得する。見つからない場合はnilを返す。
func (r *PostgresBookRepo) FindByID(ctx context.Context, id string) (*model.Book, error) {
	book, err := scanBook(r.db.QueryRowContext(ctx,
		`SELECT `+bookColumns+` FROM books WHERE id = $1`,
		id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find book by ID: %w", err)
	}
	return book, nil
}

// List は条件に一致する蔵書をcreated_at降順で返す。
// genreは完全一致、authorはILIKEによる部分一致、searchはタイトル+著者の全文検索。
func (r *PostgresBookRepo) List(ctx context.Context, filter BookFilter, page, limit int) ([]*model.Book, int, error) {
	var conds []string
	var args []any

	if filter.Genre != "" {
		args = append(args, filter.Genre)
		conds = append(conds, fmt.Sprintf("genre = $%d", len(args)))
	}
	if filter.Author != "" {
		args = append(args, "%"+filter.Author+"%")
		conds = append(conds, fmt.Sprintf("author ILIKE $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, filter.Search)
		conds = append(conds, fmt.Sprintf(
			"to_tsvector('simple', title || ' ' || author) @@ plainto_tsquery('simple', $%d)", len(args)))
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	// 全件数はページウィンドウに依存しない
	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT count(*) FROM books`+where, args...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count books: %w", err)
	}

	offset := (page - 1) * limit
	args = append(args, limit, offset)
	query := fmt.Sprintf(
		`SELECT `+bookColumns+` FROM books`+where+` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		len(args)-1, len(args),
	)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list books: %w", err)
	}
	defer rows.Close()

	var books []*model.Book
	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan book row: %w", err)
		}
		books = append(books, book)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate book rows: %w", err)
	}

	return books, total, nil
}

// Update は蔵書を部分更新する。見つからない場合はnilを返す。
// TotalCopiesを含むパッチは行ロック（SELECT ... FOR UPDATE）の下で
// available = max(0, newTotal - borrowed) を再計算する。
// 貸出・返却の条件付き更新と同じ行ロックを奪い合うため、再計算が並行する
// 貸出と交錯してavailable_copiesが負になったりtotal_copiesを超えることはない。
func (r *PostgresBookRepo) Update(ctx context.Context, id string, patch BookPatch) (*model.Book, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	book, err := scanBook(tx.QueryRowContext(ctx,
		`SELECT `+bookColumns+` FROM books WHERE id = $1 FOR UPDATE`,
		id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock book row: %w", err)
	}

	if patch.Title != nil {
		book.Title = *patch.Title
	}
	if patch.Author != nil {
		book.Author = *patch.Author
	}
	if patch.ISBN != nil {
		book.ISBN = *patch.ISBN
	}
	if patch.PublicationDate != nil {
		book.PublicationDate = *patch.PublicationDate
	}
	if patch.Genre != nil {
		book.Genre = *patch.Genre
	}
	if patch.TotalCopies != nil {
		// 貸出中の冊数を維持したままavailableを再導出する。
		// 貸出中より少なく縮小した場合は0にクランプし、返却で自己回復させる。
		borrowed := book.TotalCopies - book.AvailableCopies
		book.TotalCopies = *patch.TotalCopies
		book.AvailableCopies = book.TotalCopies - borrowed
		if book.AvailableCopies < 0 {
			book.AvailableCopies = 0
		}
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE books
		 SET title = $2, author = $3, isbn = $4, publication_date = $5, genre = $6,
		     total_copies = $7, available_copies = $8, updated_at = now()
		 WHERE id = $1`,
		book.ID, book.Title, book.Author, book.ISBN, book.PublicationDate,
		book.Genre, book.TotalCopies, book.AvailableCopies,
	)
	if isUniqueViolation(err, constraintBooksISBN) {
		return nil, ErrDuplicateISBN
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update book: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return book, nil
}

// Delete は蔵書を削除する。
// 貸出中の記録が存在しないことの確認と削除を単一文で行い、
// チェックと削除の間に割り込む貸出と競合しないようにする。
func (r *PostgresBookRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM books
		 WHERE id = $1
		   AND NOT EXISTS (
		     SELECT 1 FROM borrowings WHERE book_id = $1 AND status = 'Borrowed'
		   )`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete book: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		// 未検出か貸出中かを区別する
		var exists bool
		if err := r.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM books WHERE id = $1)`, id,
		).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check book existence: %w", err)
		}
		if exists {
			return ErrActiveBorrowsExist
		}
		return sql.ErrNoRows
	}
	return nil
}

// compile-time interface check
var _ BookRepository = (*PostgresBookRepo)(nil)
