package auth

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/bookman/internal/model"
	"github.com/hitoshi/bookman/internal/repository"
)

type mockUserRepo struct {
	createFunc      func(ctx context.Context, user *model.User) error
	findByIDFunc    func(ctx context.Context, id string) (*model.User, error)
	findByEmailFunc func(ctx context.Context, email string) (*model.User, error)
}

func (m *mockUserRepo) Create(ctx context.Context, user *model.User) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, user)
	}
	return nil
}
func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, nil
}
func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	if m.findByEmailFunc != nil {
		return m.findByEmailFunc(ctx, email)
	}
	return nil, nil
}
func (m *mockUserRepo) List(ctx context.Context, page, limit int) ([]*model.User, int, error) {
	return nil, 0, nil
}

type mockSessionRepo struct {
	createFunc   func(ctx context.Context, session *model.Session) error
	findByIDFunc func(ctx context.Context, id string) (*model.Session, error)
	deletedID    string
}

func (m *mockSessionRepo) Create(ctx context.Context, session *model.Session) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, session)
	}
	return nil
}
func (m *mockSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, nil
}
func (m *mockSessionRepo) DeleteByID(ctx context.Context, id string) error {
	m.deletedID = id
	return nil
}
func (m *mockSessionRepo) DeleteByUserID(ctx context.Context, userID string) error {
	return nil
}

func newTestService(userRepo *mockUserRepo, sessionRepo *mockSessionRepo) *Service {
	return NewService(userRepo, sessionRepo, ServiceConfig{SessionMaxAge: 3600})
}

func assertErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != code {
		t.Errorf("expected code %s, got %s", code, apiErr.Code)
	}
}

func TestRegister_Success(t *testing.T) {
	var created *model.User
	userRepo := &mockUserRepo{
		createFunc: func(ctx context.Context, user *model.User) error {
			created = user
			return nil
		},
	}
	service := newTestService(userRepo, &mockSessionRepo{})

	user, err := service.Register(context.Background(), RegisterInput{
		Name:     "山田太郎",
		Email:    "taro@example.com",
		Password: "secret123",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if created == nil {
		t.Fatal("expected Create to be called")
	}
	if user.Role != model.RoleMember {
		t.Errorf("expected default role %s, got %s", model.RoleMember, user.Role)
	}
	if user.PasswordHash == "secret123" {
		t.Error("expected password to be hashed")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("secret123")); err != nil {
		t.Errorf("expected hash to verify against original password: %v", err)
	}
}

func TestRegister_ValidationErrors(t *testing.T) {
	service := newTestService(&mockUserRepo{}, &mockSessionRepo{})

	tests := []struct {
		name  string
		input RegisterInput
	}{
		{"name too short", RegisterInput{Name: "a", Email: "a@example.com", Password: "secret123"}},
		{"invalid email", RegisterInput{Name: "山田太郎", Email: "not-an-email", Password: "secret123"}},
		{"password too short", RegisterInput{Name: "山田太郎", Email: "taro@example.com", Password: "12345"}},
		{"unknown role", RegisterInput{Name: "山田太郎", Email: "taro@example.com", Password: "secret123", Role: "SuperUser"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.Register(context.Background(), tt.input)
			assertErrorCode(t, err, "INVALID_USER_FIELD")
		})
	}
}

func TestRegister_MultibyteNameLength(t *testing.T) {
	// 文字数はバイト数ではなくルーン数で数える
	service := newTestService(&mockUserRepo{}, &mockSessionRepo{})

	_, err := service.Register(context.Background(), RegisterInput{
		Name:     "山田",
		Email:    "taro@example.com",
		Password: "secret123",
	})
	if err != nil {
		t.Fatalf("expected 2-rune name to be accepted, got %v", err)
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	userRepo := &mockUserRepo{
		createFunc: func(ctx context.Context, user *model.User) error {
			return repository.ErrDuplicateEmail
		},
	}
	service := newTestService(userRepo, &mockSessionRepo{})

	_, err := service.Register(context.Background(), RegisterInput{
		Name:     "山田太郎",
		Email:    "taro@example.com",
		Password: "secret123",
	})
	assertErrorCode(t, err, "DUPLICATE_EMAIL")
}

func TestLogin_Success(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	userRepo := &mockUserRepo{
		findByEmailFunc: func(ctx context.Context, email string) (*model.User, error) {
			return &model.User{ID: "user-1", Email: email, PasswordHash: string(hash)}, nil
		},
	}
	var savedSession *model.Session
	sessionRepo := &mockSessionRepo{
		createFunc: func(ctx context.Context, session *model.Session) error {
			savedSession = session
			return nil
		},
	}
	service := newTestService(userRepo, sessionRepo)

	user, session, err := service.Login(context.Background(), "taro@example.com", "secret123")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if user.ID != "user-1" {
		t.Errorf("expected user ID user-1, got %s", user.ID)
	}
	if savedSession == nil {
		t.Fatal("expected session to be saved")
	}
	if session.UserID != "user-1" {
		t.Errorf("expected session user ID user-1, got %s", session.UserID)
	}
	if len(session.ID) != 64 {
		t.Errorf("expected 64-char hex session ID, got %d chars", len(session.ID))
	}
}

func TestLogin_UnknownEmail(t *testing.T) {
	service := newTestService(&mockUserRepo{}, &mockSessionRepo{})

	_, _, err := service.Login(context.Background(), "nobody@example.com", "secret123")
	assertErrorCode(t, err, "INVALID_CREDENTIALS")
}

func TestLogin_WrongPassword(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	userRepo := &mockUserRepo{
		findByEmailFunc: func(ctx context.Context, email string) (*model.User, error) {
			return &model.User{ID: "user-1", Email: email, PasswordHash: string(hash)}, nil
		},
	}
	service := newTestService(userRepo, &mockSessionRepo{})

	_, _, err = service.Login(context.Background(), "taro@example.com", "wrong-password")
	assertErrorCode(t, err, "INVALID_CREDENTIALS")
}

func TestLogout(t *testing.T) {
	sessionRepo := &mockSessionRepo{}
	service := newTestService(&mockUserRepo{}, sessionRepo)

	if err := service.Logout(context.Background(), "session-1"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if sessionRepo.deletedID != "session-1" {
		t.Errorf("expected session-1 to be deleted, got %s", sessionRepo.deletedID)
	}

	if err := service.Logout(context.Background(), ""); err == nil {
		t.Error("expected error for empty session ID")
	}
}

func TestGetCurrentUser(t *testing.T) {
	userRepo := &mockUserRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.User, error) {
			return &model.User{ID: id, Name: "山田太郎"}, nil
		},
	}
	sessionRepo := &mockSessionRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.Session, error) {
			return &model.Session{ID: id, UserID: "user-1"}, nil
		},
	}
	service := newTestService(userRepo, sessionRepo)

	user, err := service.GetCurrentUser(context.Background(), "session-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if user.ID != "user-1" {
		t.Errorf("expected user ID user-1, got %s", user.ID)
	}
}

func TestGetCurrentUser_ExpiredSession(t *testing.T) {
	sessionRepo := &mockSessionRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.Session, error) {
			return nil, nil
		},
	}
	service := newTestService(&mockUserRepo{}, sessionRepo)

	if _, err := service.GetCurrentUser(context.Background(), "expired"); err == nil {
		t.Error("expected error for expired session")
	}
}

var _ repository.UserRepository = (*mockUserRepo)(nil)
var _ repository.SessionRepository = (*mockSessionRepo)(nil)
