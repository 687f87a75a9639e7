// Package lending は貸出・返却のドメインロジックを提供する。
//
// 貸出と返却はそれぞれ蔵書の在庫カウンタと貸出記録という2つの集約に
// またがるため、このパッケージが両者を単一の整合した操作として調停する。
// 在庫カウンタを貸出・返却経路で変更できるのはこのサービスだけで、
// 実際の原子性はリポジトリのトランザクション＋条件付きUPDATEが担う。
package lending

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/bookman/internal/model"
	"github.com/hitoshi/bookman/internal/repository"
)

// defaultStoreTimeout はストア呼び出しの既定タイムアウト。
const defaultStoreTimeout = 5 * time.Second

// 履歴・一覧の既定値
const (
	DefaultHistoryLimit = 10
	DefaultPageLimit    = 20
	MaxPageLimit        = 100
)

// MetricsCollector は貸出・返却の結果を記録するインターフェース。
// 計測が不要な場合はnilを渡してよい。
type MetricsCollector interface {
	RecordBorrowSuccess()
	RecordBorrowRejected(reason string)
	RecordReturnSuccess()
	RecordBorrowLatency(duration time.Duration)
}

// BorrowingInfo は貸出記録に蔵書情報を付加したドメインオブジェクト。
type BorrowingInfo struct {
	ID           string
	UserID       string
	BookID       string
	BookTitle    string
	BookAuthor   string
	BookISBN     string
	BorrowDate   time.Time
	ReturnDate   *time.Time
	Status       model.BorrowStatus
	DaysBorrowed int
}

// BorrowingRecord は管理者向け一覧の1行。蔵書とユーザーの情報を含む。
type BorrowingRecord struct {
	BorrowingInfo
	UserName  string
	UserEmail string
}

// Service は貸出・返却のサービス層。
type Service struct {
	bookRepo      repository.BookRepository
	borrowingRepo repository.BorrowingRepository
	metrics       MetricsCollector
	storeTimeout  time.Duration
	now           func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
// storeTimeoutが0の場合は既定値を使用する。
func NewService(
	bookRepo repository.BookRepository,
	borrowingRepo repository.BorrowingRepository,
	metrics MetricsCollector,
	storeTimeout time.Duration,
) *Service {
	if storeTimeout <= 0 {
		storeTimeout = defaultStoreTimeout
	}
	return &Service{
		bookRepo:      bookRepo,
		borrowingRepo: borrowingRepo,
		metrics:       metrics,
		storeTimeout:  storeTimeout,
		now:           time.Now,
	}
}

// Borrow はユーザーに蔵書を1冊貸し出す。
//
// 事前チェック（蔵書の存在、在庫、二重貸出）は読み取りのみで行い、
// 実際の減算と記録挿入はOpenBorrowが単一トランザクションで再検証する。
// チェックとトランザクションの間に並行リクエストが割り込んでも、
// 条件付きUPDATEと部分ユニークインデックスが最終判定を下すため、
// 在庫が負になったり貸出中記録が重複することはない。
func (s *Service) Borrow(ctx context.Context, userID, bookID string) (*BorrowingInfo, error) {
	start := s.now()

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	book, err := s.bookRepo.FindByID(ctx, bookID)
	if err != nil {
		return nil, fmt.Errorf("蔵書の取得に失敗しました: %w", err)
	}
	if book == nil {
		s.recordBorrowRejected("not_found")
		return nil, model.NewBookNotFoundError(bookID)
	}
	if !book.IsAvailable() {
		s.recordBorrowRejected("unavailable")
		return nil, model.NewBookUnavailableError(bookID)
	}

	existing, err := s.borrowingRepo.FindOpen(ctx, userID, bookID)
	if err != nil {
		return nil, fmt.Errorf("貸出中記録の検索に失敗しました: %w", err)
	}
	if existing != nil {
		s.recordBorrowRejected("already_borrowed")
		return nil, model.NewAlreadyBorrowedError(bookID)
	}

	now := s.now()
	borrowing := &model.Borrowing{
		ID:         uuid.New().String(),
		UserID:     userID,
		BookID:     bookID,
		BorrowDate: now,
		Status:     model.BorrowStatusBorrowed,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	// 減算と挿入は単一トランザクション。どちらか一方だけが成立することはない。
	if err := s.borrowingRepo.OpenBorrow(ctx, borrowing); err != nil {
		if errors.Is(err, repository.ErrBookUnavailable) {
			s.recordBorrowRejected("unavailable")
			return nil, model.NewBookUnavailableError(bookID)
		}
		if errors.Is(err, repository.ErrOpenBorrowExists) {
			s.recordBorrowRejected("already_borrowed")
			return nil, model.NewAlreadyBorrowedError(bookID)
		}
		return nil, fmt.Errorf("貸出処理に失敗しました: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordBorrowSuccess()
		s.metrics.RecordBorrowLatency(s.now().Sub(start))
	}

	slog.Info("book borrowed",
		slog.String("borrowing_id", borrowing.ID),
		slog.String("user_id", userID),
		slog.String("book_id", bookID),
	)

	return &BorrowingInfo{
		ID:           borrowing.ID,
		UserID:       borrowing.UserID,
		BookID:       borrowing.BookID,
		BookTitle:    book.Title,
		BookAuthor:   book.Author,
		BookISBN:     book.ISBN,
		BorrowDate:   borrowing.BorrowDate,
		Status:       borrowing.Status,
		DaysBorrowed: borrowing.DaysBorrowed(s.now()),
	}, nil
}

// Return はユーザーが借りている蔵書を返却する。
//
// 状態遷移（Borrowed → Returned）と在庫の加算はCloseBorrowが単一
// トランザクションで行う。遷移はstatus = 'Borrowed'を条件とするため、
// 再試行された返却が在庫を二重に加算することはない。
// 加算はtotal_copiesを上限とし、総冊数が縮小済みの場合はそこで止まる。
func (s *Service) Return(ctx context.Context, userID, bookID string) (*BorrowingInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	open, err := s.borrowingRepo.FindOpen(ctx, userID, bookID)
	if err != nil {
		return nil, fmt.Errorf("貸出中記録の検索に失敗しました: %w", err)
	}
	if open == nil {
		return nil, model.NewBorrowNotFoundError(bookID)
	}

	borrowing, err := s.borrowingRepo.CloseBorrow(ctx, open.ID, s.now())
	if err != nil {
		if errors.Is(err, repository.ErrAlreadyReturned) {
			// FindOpenとCloseBorrowの間に並行する返却が完了した場合
			return nil, model.NewAlreadyReturnedError(open.ID)
		}
		return nil, fmt.Errorf("返却処理に失敗しました: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordReturnSuccess()
	}

	slog.Info("book returned",
		slog.String("borrowing_id", borrowing.ID),
		slog.String("user_id", userID),
		slog.String("book_id", bookID),
	)

	book, err := s.bookRepo.FindByID(ctx, bookID)
	if err != nil {
		return nil, fmt.Errorf("蔵書の取得に失敗しました: %w", err)
	}

	info := &BorrowingInfo{
		ID:           borrowing.ID,
		UserID:       borrowing.UserID,
		BookID:       borrowing.BookID,
		BorrowDate:   borrowing.BorrowDate,
		ReturnDate:   borrowing.ReturnDate,
		Status:       borrowing.Status,
		DaysBorrowed: borrowing.DaysBorrowed(s.now()),
	}
	if book != nil {
		info.BookTitle = book.Title
		info.BookAuthor = book.Author
		info.BookISBN = book.ISBN
	}

	return info, nil
}

// History はユーザーの貸出履歴を新しい順で返す。
func (s *Service) History(ctx context.Context, userID string, limit int) ([]BorrowingInfo, error) {
	if limit < 1 {
		limit = DefaultHistoryLimit
	}

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	rows, err := s.borrowingRepo.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("貸出履歴の取得に失敗しました: %w", err)
	}

	return s.toInfos(rows), nil
}

// ActiveBorrows はユーザーの貸出中の記録を返す。
func (s *Service) ActiveBorrows(ctx context.Context, userID string) ([]BorrowingInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	rows, err := s.borrowingRepo.ListActiveByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("貸出中記録の取得に失敗しました: %w", err)
	}

	return s.toInfos(rows), nil
}

// AllBorrowings は全貸出記録を新しい順・ページ付きで返す（管理者向け）。
func (s *Service) AllBorrowings(ctx context.Context, page, limit int) ([]BorrowingRecord, int, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	rows, total, err := s.borrowingRepo.ListAll(ctx, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("貸出記録一覧の取得に失敗しました: %w", err)
	}

	now := s.now()
	records := make([]BorrowingRecord, len(rows))
	for i, row := range rows {
		records[i] = BorrowingRecord{
			BorrowingInfo: BorrowingInfo{
				ID:           row.ID,
				UserID:       row.UserID,
				BookID:       row.BookID,
				BookTitle:    row.BookTitle,
				BookAuthor:   row.BookAuthor,
				BookISBN:     row.BookISBN,
				BorrowDate:   row.BorrowDate,
				ReturnDate:   row.ReturnDate,
				Status:       row.Status,
				DaysBorrowed: row.DaysBorrowed(now),
			},
			UserName:  row.UserName,
			UserEmail: row.UserEmail,
		}
	}

	return records, total, nil
}

func (s *Service) toInfos(rows []repository.BorrowingWithBook) []BorrowingInfo {
	now := s.now()
	infos := make([]BorrowingInfo, len(rows))
	for i, row := range rows {
		infos[i] = BorrowingInfo{
			ID:           row.ID,
			UserID:       row.UserID,
			BookID:       row.BookID,
			BookTitle:    row.BookTitle,
			BookAuthor:   row.BookAuthor,
			BookISBN:     row.BookISBN,
			BorrowDate:   row.BorrowDate,
			ReturnDate:   row.ReturnDate,
			Status:       row.Status,
			DaysBorrowed: row.DaysBorrowed(now),
		}
	}
	return infos
}

func (s *Service) recordBorrowRejected(reason string) {
	if s.metrics != nil {
		s.metrics.RecordBorrowRejected(reason)
	}
}
