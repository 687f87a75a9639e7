package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/bookman/internal/model"
)

// --- モック定義 ---

// mockUserService はUserServiceInterfaceのモック実装。
type mockUserService struct {
	getUserFn   func(ctx context.Context, id string) (*model.PublicUser, error)
	listUsersFn func(ctx context.Context, page, limit int) ([]model.PublicUser, int, error)
}

func (m *mockUserService) GetUser(ctx context.Context, id string) (*model.PublicUser, error) {
	if m.getUserFn != nil {
		return m.getUserFn(ctx, id)
	}
	return nil, nil
}

func (m *mockUserService) ListUsers(ctx context.Context, page, limit int) ([]model.PublicUser, int, error) {
	if m.listUsersFn != nil {
		return m.listUsersFn(ctx, page, limit)
	}
	return nil, 0, nil
}

func samplePublicUser() *model.PublicUser {
	return &model.PublicUser{
		ID:        "user-123",
		Name:      "山田太郎",
		Email:     "taro@example.com",
		Role:      model.RoleMember,
		CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// --- GET /api/users/:id テスト ---

func TestUserHandler_GetUser_Success(t *testing.T) {
	svc := &mockUserService{
		getUserFn: func(ctx context.Context, id string) (*model.PublicUser, error) {
			if id != "user-123" {
				t.Errorf("id = %q, want user-123", id)
			}
			return samplePublicUser(), nil
		},
	}
	h := NewUserHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/users/user-123", nil)
	req = withChiURLParam(req, "id", "user-123")
	w := httptest.NewRecorder()

	h.GetUser(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp publicUserResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Email != "taro@example.com" {
		t.Errorf("email = %q, want taro@example.com", resp.Email)
	}
	if strings.Contains(w.Body.String(), "password") {
		t.Error("response must not contain password fields")
	}
}

func TestUserHandler_GetUser_NotFound_Returns404(t *testing.T) {
	svc := &mockUserService{
		getUserFn: func(ctx context.Context, id string) (*model.PublicUser, error) {
			return nil, model.NewUserNotFoundError()
		},
	}
	h := NewUserHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/users/missing", nil)
	req = withChiURLParam(req, "id", "missing")
	w := httptest.NewRecorder()

	h.GetUser(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
	result := parseAPIErrorResponse(t, w)
	if result["code"] != "USER_NOT_FOUND" {
		t.Errorf("code = %q, want USER_NOT_FOUND", result["code"])
	}
}

// --- GET /api/users テスト ---

func TestUserHandler_ListUsers_Success(t *testing.T) {
	var gotPage, gotLimit int
	svc := &mockUserService{
		listUsersFn: func(ctx context.Context, page, limit int) ([]model.PublicUser, int, error) {
			gotPage = page
			gotLimit = limit
			return []model.PublicUser{*samplePublicUser()}, 15, nil
		},
	}
	h := NewUserHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/users?page=2&limit=5", nil)
	w := httptest.NewRecorder()

	h.ListUsers(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if gotPage != 2 || gotLimit != 5 {
		t.Errorf("page/limit = %d/%d, want 2/5", gotPage, gotLimit)
	}

	var resp userListResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Total != 15 {
		t.Errorf("total = %d, want 15", resp.Total)
	}
	if len(resp.Users) != 1 {
		t.Fatalf("len(users) = %d, want 1", len(resp.Users))
	}
}
