// Package user はユーザー情報の参照系ロジックを提供する。
// 登録・認証はauthパッケージが担う。
package user

import (
	"context"
	"fmt"
	"time"

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

// Service はユーザー参照のサービス層。
type Service struct {
	userRepo     repository.UserRepository
	storeTimeout time.Duration
}

// NewService はServiceの新しいインスタンスを生成する。
// storeTimeoutが0の場合は既定値を使用する。
func NewService(userRepo repository.UserRepository, storeTimeout time.Duration) *Service {
	if storeTimeout <= 0 {
		storeTimeout = defaultStoreTimeout
	}
	return &Service{
		userRepo:     userRepo,
		storeTimeout: storeTimeout,
	}
}

// GetUser は指定IDのユーザーを公開用形式で返す。
func (s *Service) GetUser(ctx context.Context, id string) (*model.PublicUser, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	public := user.Public()
	return &public, nil
}

// ListUsers はユーザー一覧を公開用形式・ページ付きで返す（管理者向け）。
func (s *Service) ListUsers(ctx context.Context, page, limit int) ([]model.PublicUser, int, error) {
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

	users, total, err := s.userRepo.List(ctx, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("ユーザー一覧の取得に失敗しました: %w", err)
	}

	publics := make([]model.PublicUser, len(users))
	for i, u := range users {
		publics[i] = u.Public()
	}

	return publics, total, nil
}
