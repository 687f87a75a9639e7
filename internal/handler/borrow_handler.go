package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/bookman/internal/lending"
	"github.com/hitoshi/bookman/internal/middleware"
)

// LendingServiceInterface は貸出ハンドラーが必要とするサービスインターフェース。
type LendingServiceInterface interface {
	Borrow(ctx context.Context, userID, bookID string) (*lending.BorrowingInfo, error)
	Return(ctx context.Context, userID, bookID string) (*lending.BorrowingInfo, error)
	History(ctx context.Context, userID string, limit int) ([]lending.BorrowingInfo, error)
	ActiveBorrows(ctx context.Context, userID string) ([]lending.BorrowingInfo, error)
	AllBorrowings(ctx context.Context, page, limit int) ([]lending.BorrowingRecord, int, error)
}

// BorrowHandler は貸出・返却のHTTPハンドラー。
type BorrowHandler struct {
	service LendingServiceInterface
}

// NewBorrowHandler はBorrowHandlerを生成する。
func NewBorrowHandler(service LendingServiceInterface) *BorrowHandler {
	return &BorrowHandler{service: service}
}

// borrowingResponse は貸出記録のAPIレスポンス。
type borrowingResponse struct {
	ID           string  `json:"id"`
	UserID       string  `json:"user_id"`
	BookID       string  `json:"book_id"`
	BookTitle    string  `json:"book_title"`
	BookAuthor   string  `json:"book_author"`
	BookISBN     string  `json:"book_isbn"`
	BorrowDate   string  `json:"borrow_date"`
	ReturnDate   *string `json:"return_date"`
	Status       string  `json:"status"`
	DaysBorrowed int     `json:"days_borrowed"`
}

// borrowingRecordResponse は管理者向け貸出一覧の1行。
type borrowingRecordResponse struct {
	borrowingResponse
	UserName  string `json:"user_name"`
	UserEmail string `json:"user_email"`
}

// borrowingListResponse は貸出記録一覧のAPIレスポンス。
type borrowingListResponse struct {
	Borrowings []borrowingResponse `json:"borrowings"`
}

// allBorrowingsResponse は管理者向け全貸出一覧のAPIレスポンス。
type allBorrowingsResponse struct {
	Borrowings []borrowingRecordResponse `json:"borrowings"`
	Total      int                       `json:"total"`
}

// Borrow は貸出を処理する。
// POST /api/books/:id/borrow
func (h *BorrowHandler) Borrow(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	bookID := chi.URLParam(r, "id")

	info, err := h.service.Borrow(r.Context(), userID, bookID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toBorrowingResponse(info))
}

// Return は返却を処理する。
// POST /api/books/:id/return
func (h *BorrowHandler) Return(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	bookID := chi.URLParam(r, "id")

	info, err := h.service.Return(r.Context(), userID, bookID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toBorrowingResponse(info))
}

// History は自分の貸出履歴を取得する。
// GET /api/borrowings/history?limit=
func (h *BorrowHandler) History(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	infos, err := h.service.History(r.Context(), userID, limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toBorrowingListResponse(infos))
}

// Active は自分の貸出中の記録を取得する。
// GET /api/borrowings/active
func (h *BorrowHandler) Active(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	infos, err := h.service.ActiveBorrows(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toBorrowingListResponse(infos))
}

// ListAll は全貸出記録を取得する（管理者向け）。
// GET /api/borrowings?page=&limit=
func (h *BorrowHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))

	records, total, err := h.service.AllBorrowings(r.Context(), page, limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := allBorrowingsResponse{
		Borrowings: make([]borrowingRecordResponse, len(records)),
		Total:      total,
	}
	for i, rec := range records {
		resp.Borrowings[i] = borrowingRecordResponse{
			borrowingResponse: toBorrowingResponse(&rec.BorrowingInfo),
			UserName:          rec.UserName,
			UserEmail:         rec.UserEmail,
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// --- ヘルパー関数 ---

// toBorrowingResponse はBorrowingInfoからAPIレスポンスに変換する。
func toBorrowingResponse(info *lending.BorrowingInfo) borrowingResponse {
	resp := borrowingResponse{
		ID:           info.ID,
		UserID:       info.UserID,
		BookID:       info.BookID,
		BookTitle:    info.BookTitle,
		BookAuthor:   info.BookAuthor,
		BookISBN:     info.BookISBN,
		BorrowDate:   info.BorrowDate.Format(time.RFC3339),
		Status:       string(info.Status),
		DaysBorrowed: info.DaysBorrowed,
	}
	if info.ReturnDate != nil {
		s := info.ReturnDate.Format(time.RFC3339)
		resp.ReturnDate = &s
	}
	return resp
}

func toBorrowingListResponse(infos []lending.BorrowingInfo) borrowingListResponse {
	resp := borrowingListResponse{
		Borrowings: make([]borrowingResponse, len(infos)),
	}
	for i := range infos {
		resp.Borrowings[i] = toBorrowingResponse(&infos[i])
	}
	return resp
}
