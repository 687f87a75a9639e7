// Package auth はパスワード認証とセッション管理を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/bookman/internal/model"
	"github.com/hitoshi/bookman/internal/repository"
)

// defaultStoreTimeout はストア呼び出しの既定タイムアウト。
const defaultStoreTimeout = 5 * time.Second

// bcryptCost はパスワードハッシュのコストパラメータ。
const bcryptCost = 12

// 入力検証の制約
const (
	minNameLength     = 2
	maxNameLength     = 50
	minPasswordLength = 6
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// RegisterInput は新規ユーザー登録の入力を表す。
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Role     model.Role // 空の場合はMember
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
	StoreTimeout  time.Duration
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	userRepo     repository.UserRepository
	sessionRepo  repository.SessionRepository
	config       ServiceConfig
	storeTimeout time.Duration
}

// NewService はServiceを生成する。
func NewService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	config ServiceConfig,
) *Service {
	timeout := config.StoreTimeout
	if timeout <= 0 {
		timeout = defaultStoreTimeout
	}
	return &Service{
		userRepo:     userRepo,
		sessionRepo:  sessionRepo,
		config:       config,
		storeTimeout: timeout,
	}
}

// Register は新規ユーザーを登録する。
// ロールが空の場合はMemberとして登録する。
func (s *Service) Register(ctx context.Context, input RegisterInput) (*model.User, error) {
	if err := validateRegisterInput(input); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("パスワードのハッシュ化に失敗しました: %w", err)
	}

	role := input.Role
	if role == "" {
		role = model.RoleMember
	}

	now := time.Now()
	user := &model.User{
		ID:           uuid.New().String(),
		Name:         input.Name,
		Email:        input.Email,
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, model.NewDuplicateEmailError(input.Email)
		}
		return nil, fmt.Errorf("ユーザーの登録に失敗しました: %w", err)
	}

	slog.Info("user registered",
		slog.String("user_id", user.ID),
		slog.String("role", string(user.Role)),
	)

	return user, nil
}

// Login はメールアドレスとパスワードを検証し、セッションを発行する。
// ユーザーが存在しない場合とパスワードが一致しない場合は同じエラーを返し、
// メールアドレスの登録有無を外部に漏らさない。
func (s *Service) Login(ctx context.Context, email, password string) (*model.User, *model.Session, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, nil, fmt.Errorf("ユーザーの検索に失敗しました: %w", err)
	}
	if user == nil {
		return nil, nil, model.NewInvalidCredentialsError()
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, nil, model.NewInvalidCredentialsError()
	}

	session, err := s.createSession(ctx, user.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("セッションの作成に失敗しました: %w", err)
	}

	slog.Info("user logged in", slog.String("user_id", user.ID))

	return user, session, nil
}

// Logout はセッションを破棄する。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("セッションの削除に失敗しました: %w", err)
	}

	slog.Info("user logged out", slog.String("session_id", sessionID))
	return nil
}

// GetCurrentUser はセッションから現在のユーザーを取得する。
func (s *Service) GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session ID is required")
	}

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("セッションの検索に失敗しました: %w", err)
	}
	if session == nil {
		return nil, fmt.Errorf("session not found or expired")
	}

	user, err := s.userRepo.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの検索に失敗しました: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("user not found")
	}

	return user, nil
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, userID string) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	session := &model.Session{
		ID:        sessionID,
		UserID:    userID,
		ExpiresAt: time.Now().Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: time.Now(),
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("セッションの保存に失敗しました: %w", err)
	}

	return session, nil
}

// validateRegisterInput は登録入力を検証する。
func validateRegisterInput(input RegisterInput) error {
	nameLen := len([]rune(input.Name))
	if nameLen < minNameLength || nameLen > maxNameLength {
		return model.NewInvalidUserFieldError("名前",
			fmt.Sprintf("%d〜%d文字で入力してください", minNameLength, maxNameLength))
	}
	if !emailPattern.MatchString(input.Email) {
		return model.NewInvalidUserFieldError("メールアドレス", "形式が正しくありません")
	}
	if len(input.Password) < minPasswordLength {
		return model.NewInvalidUserFieldError("パスワード",
			fmt.Sprintf("%d文字以上で入力してください", minPasswordLength))
	}
	if input.Role != "" && !input.Role.IsValid() {
		return model.NewInvalidUserFieldError("ロール", "AdminまたはMemberを指定してください")
	}
	return nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
