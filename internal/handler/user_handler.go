package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/bookman/internal/model"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	GetUser(ctx context.Context, id string) (*model.PublicUser, error)
	ListUsers(ctx context.Context, page, limit int) ([]model.PublicUser, int, error)
}

// UserHandler はユーザー管理のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{service: service}
}

// userListResponse はユーザー一覧のAPIレスポンス。
type userListResponse struct {
	Users []publicUserResponse `json:"users"`
	Total int                  `json:"total"`
}

// GetUser はユーザー詳細を取得する（管理者向け）。
// GET /api/users/:id
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	user, err := h.service.GetUser(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, publicUserResponse{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		Role:      string(user.Role),
		CreatedAt: user.CreatedAt.Format(time.RFC3339),
	})
}

// ListUsers はユーザー一覧を取得する（管理者向け）。
// GET /api/users?page=&limit=
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))

	users, total, err := h.service.ListUsers(r.Context(), page, limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := userListResponse{
		Users: make([]publicUserResponse, len(users)),
		Total: total,
	}
	for i, u := range users {
		resp.Users[i] = publicUserResponse{
			ID:        u.ID,
			Name:      u.Name,
			Email:     u.Email,
			Role:      string(u.Role),
			CreatedAt: u.CreatedAt.Format(time.RFC3339),
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
