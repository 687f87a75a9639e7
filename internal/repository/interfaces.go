// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/hitoshi/bookman/internal/model"
)

// ストア層で発生する条件付き更新の失敗を表すエラー。
// サービス層がAPIErrorにマッピングする。
var (
	// ErrBookUnavailable は貸出可能な冊数が残っていないことを表す。
	ErrBookUnavailable = errors.New("book has no available copies")
	// ErrOpenBorrowExists は同一(user, book)の貸出中記録が既に存在することを表す。
	ErrOpenBorrowExists = errors.New("open borrowing already exists for user and book")
	// ErrAlreadyReturned は貸出記録が既に返却済みであることを表す。
	ErrAlreadyReturned = errors.New("borrowing is already returned")
	// ErrDuplicateISBN は同一ISBNの蔵書が既に存在することを表す。
	ErrDuplicateISBN = errors.New("book with the same ISBN already exists")
	// ErrDuplicateEmail は同一メールアドレスのユーザーが既に存在することを表す。
	ErrDuplicateEmail = errors.New("user with the same email already exists")
	// ErrActiveBorrowsExist は貸出中の記録が残る蔵書の削除を表す。
	ErrActiveBorrowsExist = errors.New("book has active borrowings")
)

// BookFilter は蔵書一覧の絞り込み条件を表す。
// ゼロ値のフィールドは条件として使用しない。
type BookFilter struct {
	Genre  model.Genre // 完全一致
	Author string      // 大文字小文字を無視した部分一致
	Search string      // タイトル+著者の全文検索
}

// BookPatch は蔵書の部分更新を表す。nilフィールドは変更しない。
type BookPatch struct {
	Title           *string
	Author          *string
	ISBN            *string
	PublicationDate *time.Time
	Genre           *model.Genre
	TotalCopies     *int
}

// BookRepository は蔵書データの永続化インターフェース。
type BookRepository interface {
	// Create は蔵書を作成する。ISBNが重複する場合はErrDuplicateISBNを返す。
	Create(ctx context.Context, book *model.Book) error

	// FindByID は指定IDの蔵書を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Book, error)

	// List は条件に一致する蔵書をcreated_at降順・オフセットページネーションで返す。
	// totalはページウィンドウに依存しない全件数。
	List(ctx context.Context, filter BookFilter, page, limit int) (books []*model.Book, total int, err error)

	// Update は蔵書を部分更新する。見つからない場合はnilを返す。
	// TotalCopiesを含むパッチは行ロック下で
	// available = max(0, newTotal - borrowed) を再計算し、在庫数が範囲外にならないようにする。
	Update(ctx context.Context, id string, patch BookPatch) (*model.Book, error)

	// Delete は蔵書を削除する。貸出中の記録が残る場合はErrActiveBorrowsExistを返す。
	// 見つからない場合はsql.ErrNoRowsを返す。
	Delete(ctx context.Context, id string) error
}

// BorrowingRepository は貸出記録の永続化インターフェース。
// 貸出・返却は在庫カウンタの更新と同一トランザクションで実行され、
// どちらか一方だけが適用された状態は存在しない。
type BorrowingRepository interface {
	// OpenBorrow は在庫の条件付き減算と貸出記録の挿入を単一トランザクションで行う。
	// 在庫がない場合はErrBookUnavailable、同一(user, book)の貸出中記録が
	// 既に存在する場合はErrOpenBorrowExistsを返し、どちらの場合も在庫は変化しない。
	OpenBorrow(ctx context.Context, borrowing *model.Borrowing) error

	// CloseBorrow は貸出記録の返却への遷移と在庫の加算を単一トランザクションで行う。
	// 既に返却済みの場合はErrAlreadyReturnedを返し、在庫は変化しない。
	// 加算はtotal_copiesを上限とする。
	CloseBorrow(ctx context.Context, borrowingID string, returnDate time.Time) (*model.Borrowing, error)

	// FindOpen はユーザーIDと蔵書IDで貸出中の記録を検索する。見つからない場合はnilを返す。
	FindOpen(ctx context.Context, userID, bookID string) (*model.Borrowing, error)

	// ListByUser はユーザーの貸出履歴をborrow_date降順で返す。
	ListByUser(ctx context.Context, userID string, limit int) ([]BorrowingWithBook, error)

	// ListActiveByUser はユーザーの貸出中の記録を返す。
	ListActiveByUser(ctx context.Context, userID string) ([]BorrowingWithBook, error)

	// ListAll は全貸出記録をborrow_date降順・オフセットページネーションで返す。
	ListAll(ctx context.Context, page, limit int) (rows []BorrowingDetail, total int, err error)

	// FindDetail は貸出記録を蔵書・ユーザー情報付きで取得する。見つからない場合はnilを返す。
	FindDetail(ctx context.Context, id string) (*BorrowingDetail, error)
}

// BorrowingWithBook は貸出記録と蔵書情報を結合した構造体。
type BorrowingWithBook struct {
	model.Borrowing
	BookTitle  string
	BookAuthor string
	BookISBN   string
}

// BorrowingDetail は貸出記録に蔵書とユーザーの情報を結合した構造体。
// 蔵書が削除済みの場合、蔵書フィールドは空になる。
type BorrowingDetail struct {
	model.Borrowing
	BookTitle  string
	BookAuthor string
	BookISBN   string
	UserName   string
	UserEmail  string
}

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// Create はユーザーを作成する。メールアドレスが重複する場合はErrDuplicateEmailを返す。
	Create(ctx context.Context, user *model.User) error

	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	// 認証用にPasswordHashを含めて返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// List はユーザー一覧をcreated_at降順・オフセットページネーションで返す。
	List(ctx context.Context, page, limit int) (users []*model.User, total int, err error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// BookBorrowCount は蔵書ごとの貸出回数の集計結果を表す。
type BookBorrowCount struct {
	Book        model.Book
	BorrowCount int
}

// MemberBorrowCount はユーザーごとの貸出回数の集計結果を表す。
// 認証情報を漏らさないよう、公開用ユーザー情報のみを持つ。
type MemberBorrowCount struct {
	User        model.PublicUser
	BorrowCount int
}

// AvailabilitySummary は蔵書全体の在庫サマリを表す。
// 単一スナップショットで取得されるため、BorrowedCopies == ActiveBorrows が成立する。
type AvailabilitySummary struct {
	TotalBooks      int
	TotalCopies     int
	AvailableCopies int
	BorrowedCopies  int
	ActiveBorrows   int
}

// ReportRepository は読み取り専用の集計クエリのインターフェース。
type ReportRepository interface {
	// MostBorrowedBooks は貸出回数（全ステータス）の多い蔵書を上位limit件返す。
	// 同数の場合の順序は保証しない。
	MostBorrowedBooks(ctx context.Context, limit int) ([]BookBorrowCount, error)

	// MostActiveMembers は貸出回数の多いユーザーを上位limit件返す。
	MostActiveMembers(ctx context.Context, limit int) ([]MemberBorrowCount, error)

	// AvailabilitySummary は蔵書全体の在庫サマリを単一クエリで取得する。
	AvailabilitySummary(ctx context.Context) (*AvailabilitySummary, error)
}

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}
