package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/hitoshi/bookman/internal/repository"
)

// ReportServiceInterface はレポートハンドラーが必要とするサービスインターフェース。
type ReportServiceInterface interface {
	MostBorrowedBooks(ctx context.Context, limit int) ([]repository.BookBorrowCount, error)
	MostActiveMembers(ctx context.Context, limit int) ([]repository.MemberBorrowCount, error)
	AvailabilitySummary(ctx context.Context) (*repository.AvailabilitySummary, error)
}

// ReportHandler は集計レポートのHTTPハンドラー。
type ReportHandler struct {
	service ReportServiceInterface
}

// NewReportHandler はReportHandlerを生成する。
func NewReportHandler(service ReportServiceInterface) *ReportHandler {
	return &ReportHandler{service: service}
}

// bookRankResponse は貸出ランキングの1行。
type bookRankResponse struct {
	Book        bookResponse `json:"book"`
	BorrowCount int          `json:"borrow_count"`
}

// memberRankResponse は利用者ランキングの1行。
type memberRankResponse struct {
	User        publicUserResponse `json:"user"`
	BorrowCount int                `json:"borrow_count"`
}

// availabilitySummaryResponse は在庫サマリのAPIレスポンス。
type availabilitySummaryResponse struct {
	TotalBooks      int `json:"total_books"`
	TotalCopies     int `json:"total_copies"`
	AvailableCopies int `json:"available_copies"`
	BorrowedCopies  int `json:"borrowed_copies"`
	ActiveBorrows   int `json:"active_borrows"`
}

// MostBorrowedBooks は貸出ランキングを取得する。
// GET /api/reports/most-borrowed?limit=
func (h *ReportHandler) MostBorrowedBooks(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	rows, err := h.service.MostBorrowedBooks(r.Context(), limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]bookRankResponse, len(rows))
	for i, row := range rows {
		resp[i] = bookRankResponse{
			Book:        toBookResponse(&row.Book),
			BorrowCount: row.BorrowCount,
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"books": resp})
}

// MostActiveMembers は利用者ランキングを取得する（管理者向け）。
// GET /api/reports/active-members?limit=
func (h *ReportHandler) MostActiveMembers(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	rows, err := h.service.MostActiveMembers(r.Context(), limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]memberRankResponse, len(rows))
	for i, row := range rows {
		resp[i] = memberRankResponse{
			User: publicUserResponse{
				ID:        row.User.ID,
				Name:      row.User.Name,
				Email:     row.User.Email,
				Role:      string(row.User.Role),
				CreatedAt: row.User.CreatedAt.Format(time.RFC3339),
			},
			BorrowCount: row.BorrowCount,
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"members": resp})
}

// AvailabilitySummary は在庫サマリを取得する。
// GET /api/reports/availability
func (h *ReportHandler) AvailabilitySummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.AvailabilitySummary(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, availabilitySummaryResponse{
		TotalBooks:      summary.TotalBooks,
		TotalCopies:     summary.TotalCopies,
		AvailableCopies: summary.AvailableCopies,
		BorrowedCopies:  summary.BorrowedCopies,
		ActiveBorrows:   summary.ActiveBorrows,
	})
}
