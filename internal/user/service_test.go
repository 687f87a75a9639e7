package user

import (
	"context"
	"errors"
	"testing"

	"github.com/hitoshi/bookman/internal/model"
	"github.com/hitoshi/bookman/internal/repository"
)

type mockUserRepo struct {
	findByIDFunc func(ctx context.Context, id string) (*model.User, error)
	listFunc     func(ctx context.Context, page, limit int) ([]*model.User, int, error)
}

func (m *mockUserRepo) Create(ctx context.Context, user *model.User) error { return nil }
func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, nil
}
func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return nil, nil
}
func (m *mockUserRepo) List(ctx context.Context, page, limit int) ([]*model.User, int, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, page, limit)
	}
	return nil, 0, nil
}

func TestGetUser_OmitsPasswordHash(t *testing.T) {
	repo := &mockUserRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.User, error) {
			return &model.User{
				ID:           id,
				Name:         "山田太郎",
				Email:        "taro@example.com",
				PasswordHash: "$2a$12$secret",
				Role:         model.RoleMember,
			}, nil
		},
	}
	service := NewService(repo, 0)

	public, err := service.GetUser(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if public.Name != "山田太郎" {
		t.Errorf("expected name 山田太郎, got %s", public.Name)
	}
	if public.Email != "taro@example.com" {
		t.Errorf("expected email taro@example.com, got %s", public.Email)
	}
}

func TestGetUser_NotFound(t *testing.T) {
	service := NewService(&mockUserRepo{}, 0)

	_, err := service.GetUser(context.Background(), "missing")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != "USER_NOT_FOUND" {
		t.Errorf("expected code USER_NOT_FOUND, got %s", apiErr.Code)
	}
}

func TestListUsers_PageNormalization(t *testing.T) {
	var gotPage, gotLimit int
	repo := &mockUserRepo{
		listFunc: func(ctx context.Context, page, limit int) ([]*model.User, int, error) {
			gotPage = page
			gotLimit = limit
			return []*model.User{
				{ID: "user-1", Name: "山田太郎", PasswordHash: "hash"},
			}, 1, nil
		},
	}
	service := NewService(repo, 0)

	users, total, err := service.ListUsers(context.Background(), 0, 500)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if gotPage != 1 {
		t.Errorf("expected page 1, got %d", gotPage)
	}
	if gotLimit != MaxPageLimit {
		t.Errorf("expected limit %d, got %d", MaxPageLimit, gotLimit)
	}
	if total != 1 {
		t.Errorf("expected total 1, got %d", total)
	}
	if len(users) != 1 {
		t.Fatalf("expected 1 user, got %d", len(users))
	}
}

var _ repository.UserRepository = (*mockUserRepo)(nil)
