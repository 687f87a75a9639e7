// Package catalog は蔵書カタログ管理のドメインロジックを提供する。
package catalog

import (
	"context"
	"database/sql"
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

// 一覧の既定ページサイズと上限
const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// BookDraft は新規蔵書の入力を表す。
type BookDraft struct {
	Title           string
	Author          string
	ISBN            string
	PublicationDate time.Time
	Genre           model.Genre
	TotalCopies     int
}

// ListQuery は蔵書一覧の絞り込みとページネーションを表す。
type ListQuery struct {
	Genre  model.Genre
	Author string
	Search string
	Page   int
	Limit  int
}

// Service は蔵書カタログのサービス層。
// 在庫カウンタ（available_copies）をこの経路で変更するのは
// 総冊数更新時の再導出だけで、貸出・返却による増減はlendingパッケージが担う。
type Service struct {
	bookRepo     repository.BookRepository
	storeTimeout time.Duration
}

// NewService はServiceの新しいインスタンスを生成する。
// storeTimeoutが0の場合は既定値を使用する。
func NewService(bookRepo repository.BookRepository, storeTimeout time.Duration) *Service {
	if storeTimeout <= 0 {
		storeTimeout = defaultStoreTimeout
	}
	return &Service{
		bookRepo:     bookRepo,
		storeTimeout: storeTimeout,
	}
}

// AddBook は蔵書を登録する。
// available_copiesはtotal_copiesと同数で初期化される。
func (s *Service) AddBook(ctx context.Context, draft BookDraft) (*model.Book, error) {
	if err := validateDraft(draft); err != nil {
		return nil, err
	}

	now := time.Now()
	book := &model.Book{
		ID:              uuid.New().String(),
		Title:           draft.Title,
		Author:          draft.Author,
		ISBN:            draft.ISBN,
		PublicationDate: draft.PublicationDate,
		Genre:           draft.Genre,
		TotalCopies:     draft.TotalCopies,
		AvailableCopies: draft.TotalCopies,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	if err := s.bookRepo.Create(ctx, book); err != nil {
		if errors.Is(err, repository.ErrDuplicateISBN) {
			return nil, model.NewDuplicateISBNError(draft.ISBN)
		}
		return nil, fmt.Errorf("蔵書の登録に失敗しました: %w", err)
	}

	slog.Info("book added",
		slog.String("book_id", book.ID),
		slog.String("isbn", book.ISBN),
		slog.Int("total_copies", book.TotalCopies),
	)

	return book, nil
}

// GetBook は指定IDの蔵書を取得する。
func (s *Service) GetBook(ctx context.Context, id string) (*model.Book, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	book, err := s.bookRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("蔵書の取得に失敗しました: %w", err)
	}
	if book == nil {
		return nil, model.NewBookNotFoundError(id)
	}
	return book, nil
}

// ListBooks は条件に一致する蔵書の一覧と全件数を返す。
func (s *Service) ListBooks(ctx context.Context, q ListQuery) ([]*model.Book, int, error) {
	if q.Genre != "" && !q.Genre.IsValid() {
		return nil, 0, model.NewInvalidGenreError(string(q.Genre))
	}

	page, limit := normalizePage(q.Page, q.Limit)

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	books, total, err := s.bookRepo.List(ctx, repository.BookFilter{
		Genre:  q.Genre,
		Author: q.Author,
		Search: q.Search,
	}, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("蔵書一覧の取得に失敗しました: %w", err)
	}

	return books, total, nil
}

// UpdateBook は蔵書を部分更新する。
// TotalCopiesを含むパッチでは available = max(0, newTotal - borrowed) が
// リポジトリ側の行ロック下で再導出される。貸出中より少なく縮小した場合、
// availableは0にクランプされ、新規貸出は止まるが既存の貸出は強制返却されない。
func (s *Service) UpdateBook(ctx context.Context, id string, patch repository.BookPatch) (*model.Book, error) {
	if err := validatePatch(patch); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	book, err := s.bookRepo.Update(ctx, id, patch)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateISBN) {
			isbn := ""
			if patch.ISBN != nil {
				isbn = *patch.ISBN
			}
			return nil, model.NewDuplicateISBNError(isbn)
		}
		return nil, fmt.Errorf("蔵書の更新に失敗しました: %w", err)
	}
	if book == nil {
		return nil, model.NewBookNotFoundError(id)
	}

	slog.Info("book updated",
		slog.String("book_id", book.ID),
		slog.Int("total_copies", book.TotalCopies),
		slog.Int("available_copies", book.AvailableCopies),
	)

	return book, nil
}

// DeleteBook は蔵書を削除する。貸出中の記録が残る場合は削除できない。
// 返却済みの貸出記録は履歴として残り、削除を妨げない。
func (s *Service) DeleteBook(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	err := s.bookRepo.Delete(ctx, id)
	if errors.Is(err, repository.ErrActiveBorrowsExist) {
		return model.NewActiveBorrowsExistError(id)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return model.NewBookNotFoundError(id)
	}
	if err != nil {
		return fmt.Errorf("蔵書の削除に失敗しました: %w", err)
	}

	slog.Info("book deleted", slog.String("book_id", id))

	return nil
}

// validateDraft は新規蔵書の入力を検証する。
func validateDraft(draft BookDraft) error {
	if draft.Title == "" || len(draft.Title) > 200 {
		return model.NewInvalidBookFieldError("タイトル", "1〜200文字で入力してください")
	}
	if draft.Author == "" || len(draft.Author) > 100 {
		return model.NewInvalidBookFieldError("著者", "1〜100文字で入力してください")
	}
	if !model.IsValidISBN(draft.ISBN) {
		return model.NewInvalidISBNError(draft.ISBN)
	}
	if draft.PublicationDate.IsZero() {
		return model.NewInvalidBookFieldError("出版日", "必須項目です")
	}
	if draft.PublicationDate.After(time.Now()) {
		return model.NewInvalidBookFieldError("出版日", "未来の日付は指定できません")
	}
	if !draft.Genre.IsValid() {
		return model.NewInvalidGenreError(string(draft.Genre))
	}
	if draft.TotalCopies < model.MinTotalCopies || draft.TotalCopies > model.MaxTotalCopies {
		return model.NewInvalidBookFieldError("総冊数",
			fmt.Sprintf("%d〜%dの範囲で指定してください", model.MinTotalCopies, model.MaxTotalCopies))
	}
	return nil
}

// validatePatch は部分更新の指定フィールドのみを検証する。
func validatePatch(patch repository.BookPatch) error {
	if patch.Title != nil && (*patch.Title == "" || len(*patch.Title) > 200) {
		return model.NewInvalidBookFieldError("タイトル", "1〜200文字で入力してください")
	}
	if patch.Author != nil && (*patch.Author == "" || len(*patch.Author) > 100) {
		return model.NewInvalidBookFieldError("著者", "1〜100文字で入力してください")
	}
	if patch.ISBN != nil && !model.IsValidISBN(*patch.ISBN) {
		return model.NewInvalidISBNError(*patch.ISBN)
	}
	if patch.PublicationDate != nil && patch.PublicationDate.After(time.Now()) {
		return model.NewInvalidBookFieldError("出版日", "未来の日付は指定できません")
	}
	if patch.Genre != nil && !patch.Genre.IsValid() {
		return model.NewInvalidGenreError(string(*patch.Genre))
	}
	if patch.TotalCopies != nil &&
		(*patch.TotalCopies < model.MinTotalCopies || *patch.TotalCopies > model.MaxTotalCopies) {
		return model.NewInvalidBookFieldError("総冊数",
			fmt.Sprintf("%d〜%dの範囲で指定してください", model.MinTotalCopies, model.MaxTotalCopies))
	}
	return nil
}

// normalizePage はページ番号とページサイズを許容範囲に丸める。
func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return page, limit
}
