package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/bookman/internal/lending"
	"github.com/hitoshi/bookman/internal/model"
)

// --- モック定義 ---

// mockLendingService はLendingServiceInterfaceのモック実装。
type mockLendingService struct {
	borrowFn        func(ctx context.Context, userID, bookID string) (*lending.BorrowingInfo, error)
	returnFn        func(ctx context.Context, userID, bookID string) (*lending.BorrowingInfo, error)
	historyFn       func(ctx context.Context, userID string, limit int) ([]lending.BorrowingInfo, error)
	activeFn        func(ctx context.Context, userID string) ([]lending.BorrowingInfo, error)
	allBorrowingsFn func(ctx context.Context, page, limit int) ([]lending.BorrowingRecord, int, error)
}

func (m *mockLendingService) Borrow(ctx context.Context, userID, bookID string) (*lending.BorrowingInfo, error) {
	if m.borrowFn != nil {
		return m.borrowFn(ctx, userID, bookID)
	}
	return nil, nil
}

func (m *mockLendingService) Return(ctx context.Context, userID, bookID string) (*lending.BorrowingInfo, error) {
	if m.returnFn != nil {
		return m.returnFn(ctx, userID, bookID)
	}
	return nil, nil
}

func (m *mockLendingService) History(ctx context.Context, userID string, limit int) ([]lending.BorrowingInfo, error) {
	if m.historyFn != nil {
		return m.historyFn(ctx, userID, limit)
	}
	return nil, nil
}

func (m *mockLendingService) ActiveBorrows(ctx context.Context, userID string) ([]lending.BorrowingInfo, error) {
	if m.activeFn != nil {
		return m.activeFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockLendingService) AllBorrowings(ctx context.Context, page, limit int) ([]lending.BorrowingRecord, int, error) {
	if m.allBorrowingsFn != nil {
		return m.allBorrowingsFn(ctx, page, limit)
	}
	return nil, 0, nil
}

func sampleBorrowingInfo() *lending.BorrowingInfo {
	return &lending.BorrowingInfo{
		ID:           "borrow-1",
		UserID:       "user-123",
		BookID:       "book-1",
		BookTitle:    "Go入門",
		BookAuthor:   "山田太郎",
		BookISBN:     "9781234567890",
		BorrowDate:   time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC),
		Status:       model.BorrowStatusBorrowed,
		DaysBorrowed: 1,
	}
}

// --- POST /api/books/:id/borrow テスト ---

func TestBorrowHandler_Borrow_Success(t *testing.T) {
	svc := &mockLendingService{
		borrowFn: func(ctx context.Context, userID, bookID string) (*lending.BorrowingInfo, error) {
			if userID != "user-123" {
				t.Errorf("userID = %q, want user-123", userID)
			}
			if bookID != "book-1" {
				t.Errorf("bookID = %q, want book-1", bookID)
			}
			return sampleBorrowingInfo(), nil
		},
	}
	h := NewBorrowHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/books/book-1/borrow", nil)
	req = withUser(req, "user-123", model.RoleMember)
	req = withChiURLParam(req, "id", "book-1")
	w := httptest.NewRecorder()

	h.Borrow(w, req)

	if w.Code != http.StatusCreated {
		t.Errorf("status = %d, want %d", w.Code, http.StatusCreated)
	}

	var resp borrowingResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != "Borrowed" {
		t.Errorf("status = %q, want Borrowed", resp.Status)
	}
	if resp.ReturnDate != nil {
		t.Error("return_date should be null for an open borrowing")
	}
}

func TestBorrowHandler_Borrow_NoUser_Returns401(t *testing.T) {
	h := NewBorrowHandler(&mockLendingService{})

	req := httptest.NewRequest(http.MethodPost, "/api/books/book-1/borrow", nil)
	req = withChiURLParam(req, "id", "book-1")
	w := httptest.NewRecorder()

	h.Borrow(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestBorrowHandler_Borrow_Unavailable_Returns409(t *testing.T) {
	svc := &mockLendingService{
		borrowFn: func(ctx context.Context, userID, bookID string) (*lending.BorrowingInfo, error) {
			return nil, model.NewBookUnavailableError(bookID)
		},
	}
	h := NewBorrowHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/books/book-1/borrow", nil)
	req = withUser(req, "user-123", model.RoleMember)
	req = withChiURLParam(req, "id", "book-1")
	w := httptest.NewRecorder()

	h.Borrow(w, req)

	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want %d", w.Code, http.StatusConflict)
	}
	result := parseAPIErrorResponse(t, w)
	if result["code"] != "BOOK_UNAVAILABLE" {
		t.Errorf("code = %q, want BOOK_UNAVAILABLE", result["code"])
	}
}

func TestBorrowHandler_Borrow_AlreadyBorrowed_Returns409(t *testing.T) {
	svc := &mockLendingService{
		borrowFn: func(ctx context.Context, userID, bookID string) (*lending.BorrowingInfo, error) {
			return nil, model.NewAlreadyBorrowedError(bookID)
		},
	}
	h := NewBorrowHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/books/book-1/borrow", nil)
	req = withUser(req, "user-123", model.RoleMember)
	req = withChiURLParam(req, "id", "book-1")
	w := httptest.NewRecorder()

	h.Borrow(w, req)

	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want %d", w.Code, http.StatusConflict)
	}
}

func TestBorrowHandler_Borrow_StoreTimeout_Returns503(t *testing.T) {
	svc := &mockLendingService{
		borrowFn: func(ctx context.Context, userID, bookID string) (*lending.BorrowingInfo, error) {
			return nil, context.DeadlineExceeded
		},
	}
	h := NewBorrowHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/books/book-1/borrow", nil)
	req = withUser(req, "user-123", model.RoleMember)
	req = withChiURLParam(req, "id", "book-1")
	w := httptest.NewRecorder()

	h.Borrow(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header on 503")
	}
	result := parseAPIErrorResponse(t, w)
	if result["code"] != "STORE_TIMEOUT" {
		t.Errorf("code = %q, want STORE_TIMEOUT", result["code"])
	}
}

func TestBorrowHandler_Borrow_WrappedTimeout_Returns503(t *testing.T) {
	// サービス層で%wラップされたタイムアウトも503になる
	svc := &mockLendingService{
		borrowFn: func(ctx context.Context, userID, bookID string) (*lending.BorrowingInfo, error) {
			return nil, errors.Join(errors.New("query failed"), context.DeadlineExceeded)
		},
	}
	h := NewBorrowHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/books/book-1/borrow", nil)
	req = withUser(req, "user-123", model.RoleMember)
	req = withChiURLParam(req, "id", "book-1")
	w := httptest.NewRecorder()

	h.Borrow(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
}

// --- POST /api/books/:id/return テスト ---

func TestBorrowHandler_Return_Success(t *testing.T) {
	returnDate := time.Date(2024, 6, 8, 10, 0, 0, 0, time.UTC)
	svc := &mockLendingService{
		returnFn: func(ctx context.Context, userID, bookID string) (*lending.BorrowingInfo, error) {
			info := sampleBorrowingInfo()
			info.Status = model.BorrowStatusReturned
			info.ReturnDate = &returnDate
			info.DaysBorrowed = 7
			return info, nil
		},
	}
	h := NewBorrowHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/books/book-1/return", nil)
	req = withUser(req, "user-123", model.RoleMember)
	req = withChiURLParam(req, "id", "book-1")
	w := httptest.NewRecorder()

	h.Return(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp borrowingResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != "Returned" {
		t.Errorf("status = %q, want Returned", resp.Status)
	}
	if resp.ReturnDate == nil {
		t.Fatal("return_date should be set")
	}
	if resp.DaysBorrowed != 7 {
		t.Errorf("days_borrowed = %d, want 7", resp.DaysBorrowed)
	}
}

func TestBorrowHandler_Return_NoOpenBorrow_Returns404(t *testing.T) {
	svc := &mockLendingService{
		returnFn: func(ctx context.Context, userID, bookID string) (*lending.BorrowingInfo, error) {
			return nil, model.NewBorrowNotFoundError(bookID)
		},
	}
	h := NewBorrowHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/books/book-1/return", nil)
	req = withUser(req, "user-123", model.RoleMember)
	req = withChiURLParam(req, "id", "book-1")
	w := httptest.NewRecorder()

	h.Return(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

// --- GET /api/borrowings/history テスト ---

func TestBorrowHandler_History_Success(t *testing.T) {
	svc := &mockLendingService{
		historyFn: func(ctx context.Context, userID string, limit int) ([]lending.BorrowingInfo, error) {
			if limit != 5 {
				t.Errorf("limit = %d, want 5", limit)
			}
			return []lending.BorrowingInfo{*sampleBorrowingInfo()}, nil
		},
	}
	h := NewBorrowHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/borrowings/history?limit=5", nil)
	req = withUser(req, "user-123", model.RoleMember)
	w := httptest.NewRecorder()

	h.History(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp borrowingListResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Borrowings) != 1 {
		t.Errorf("borrowings = %d, want 1", len(resp.Borrowings))
	}
}

// --- GET /api/borrowings テスト ---

func TestBorrowHandler_ListAll_Success(t *testing.T) {
	svc := &mockLendingService{
		allBorrowingsFn: func(ctx context.Context, page, limit int) ([]lending.BorrowingRecord, int, error) {
			return []lending.BorrowingRecord{
				{
					BorrowingInfo: *sampleBorrowingInfo(),
					UserName:      "山田太郎",
					UserEmail:     "taro@example.com",
				},
			}, 1, nil
		},
	}
	h := NewBorrowHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/borrowings", nil)
	req = withUser(req, "admin-1", model.RoleAdmin)
	w := httptest.NewRecorder()

	h.ListAll(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp allBorrowingsResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Total != 1 {
		t.Errorf("total = %d, want 1", resp.Total)
	}
	if len(resp.Borrowings) != 1 || resp.Borrowings[0].UserName != "山田太郎" {
		t.Error("expected borrower name in admin listing")
	}
}
