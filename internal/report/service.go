// Package report は貸出統計と在庫サマリの読み取り専用クエリを提供する。
package report

import (
	"context"
	"fmt"
	"time"

	"github.com/hitoshi/bookman/internal/repository"
)

// defaultStoreTimeout はストア呼び出しの既定タイムアウト。
const defaultStoreTimeout = 5 * time.Second

// ランキングの既定件数と上限
const (
	DefaultRankingLimit = 10
	MaxRankingLimit     = 100
)

// Service は集計レポートのサービス層。書き込みは行わない。
type Service struct {
	reportRepo   repository.ReportRepository
	storeTimeout time.Duration
}

// NewService はServiceの新しいインスタンスを生成する。
// storeTimeoutが0の場合は既定値を使用する。
func NewService(reportRepo repository.ReportRepository, storeTimeout time.Duration) *Service {
	if storeTimeout <= 0 {
		storeTimeout = defaultStoreTimeout
	}
	return &Service{
		reportRepo:   reportRepo,
		storeTimeout: storeTimeout,
	}
}

// MostBorrowedBooks は貸出回数の多い蔵書を上位limit件返す。
// 返却済みの記録も回数に含まれる。
func (s *Service) MostBorrowedBooks(ctx context.Context, limit int) ([]repository.BookBorrowCount, error) {
	limit = normalizeLimit(limit)

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	rows, err := s.reportRepo.MostBorrowedBooks(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("貸出ランキングの取得に失敗しました: %w", err)
	}
	return rows, nil
}

// MostActiveMembers は貸出回数の多いユーザーを上位limit件返す。
func (s *Service) MostActiveMembers(ctx context.Context, limit int) ([]repository.MemberBorrowCount, error) {
	limit = normalizeLimit(limit)

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	rows, err := s.reportRepo.MostActiveMembers(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("利用者ランキングの取得に失敗しました: %w", err)
	}
	return rows, nil
}

// AvailabilitySummary は蔵書全体の在庫サマリを返す。
// 集計は単一クエリのスナップショットなので、
// BorrowedCopiesとActiveBorrowsは常に一致する。
func (s *Service) AvailabilitySummary(ctx context.Context) (*repository.AvailabilitySummary, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	summary, err := s.reportRepo.AvailabilitySummary(ctx)
	if err != nil {
		return nil, fmt.Errorf("在庫サマリの取得に失敗しました: %w", err)
	}
	return summary, nil
}

func normalizeLimit(limit int) int {
	if limit < 1 {
		return DefaultRankingLimit
	}
	if limit > MaxRankingLimit {
		return MaxRankingLimit
	}
	return limit
}
