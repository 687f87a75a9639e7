package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/bookman/internal/catalog"
	"github.com/hitoshi/bookman/internal/model"
	"github.com/hitoshi/bookman/internal/repository"
)

// publicationDateLayout は出版日の入出力フォーマット。
const publicationDateLayout = "2006-01-02"

// CatalogServiceInterface は蔵書ハンドラーが必要とするサービスインターフェース。
type CatalogServiceInterface interface {
	AddBook(ctx context.Context, draft catalog.BookDraft) (*model.Book, error)
	GetBook(ctx context.Context, id string) (*model.Book, error)
	ListBooks(ctx context.Context, q catalog.ListQuery) ([]*model.Book, int, error)
	UpdateBook(ctx context.Context, id string, patch repository.BookPatch) (*model.Book, error)
	DeleteBook(ctx context.Context, id string) error
}

// BookHandler は蔵書管理のHTTPハンドラー。
type BookHandler struct {
	service CatalogServiceInterface
}

// NewBookHandler はBookHandlerを生成する。
func NewBookHandler(service CatalogServiceInterface) *BookHandler {
	return &BookHandler{service: service}
}

// createBookRequest は蔵書登録リクエストのボディ。
type createBookRequest struct {
	Title           string `json:"title"`
	Author          string `json:"author"`
	ISBN            string `json:"isbn"`
	PublicationDate string `json:"publication_date"`
	Genre           string `json:"genre"`
	TotalCopies     int    `json:"total_copies"`
}

// updateBookRequest は蔵書更新リクエストのボディ。nilフィールドは変更しない。
type updateBookRequest struct {
	Title           *string `json:"title"`
	Author          *string `json:"author"`
	ISBN            *string `json:"isbn"`
	PublicationDate *string `json:"publication_date"`
	Genre           *string `json:"genre"`
	TotalCopies     *int    `json:"total_copies"`
}

// bookResponse は蔵書情報のAPIレスポンス。
type bookResponse struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Author          string `json:"author"`
	ISBN            string `json:"isbn"`
	PublicationDate string `json:"publication_date"`
	Genre           string `json:"genre"`
	TotalCopies     int    `json:"total_copies"`
	AvailableCopies int    `json:"available_copies"`
	BorrowedCopies  int    `json:"borrowed_copies"`
}

// bookListResponse は蔵書一覧のAPIレスポンス。
type bookListResponse struct {
	Books []bookResponse `json:"books"`
	Total int            `json:"total"`
	Page  int            `json:"page"`
	Limit int            `json:"limit"`
}

// CreateBook は蔵書登録を処理する。
// POST /api/books
func (h *BookHandler) CreateBook(w http.ResponseWriter, r *http.Request) {
	var req createBookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDecodeErrorResponse(w)
		return
	}

	pubDate, err := parsePublicationDate(req.PublicationDate)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidBookFieldError("出版日", "YYYY-MM-DD形式で指定してください"))
		return
	}

	book, err := h.service.AddBook(r.Context(), catalog.BookDraft{
		Title:           req.Title,
		Author:          req.Author,
		ISBN:            req.ISBN,
		PublicationDate: pubDate,
		Genre:           model.Genre(req.Genre),
		TotalCopies:     req.TotalCopies,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toBookResponse(book))
}

// GetBook は蔵書詳細を取得する。
// GET /api/books/:id
func (h *BookHandler) GetBook(w http.ResponseWriter, r *http.Request) {
	bookID := chi.URLParam(r, "id")

	book, err := h.service.GetBook(r.Context(), bookID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toBookResponse(book))
}

// ListBooks は蔵書一覧を取得する。
// GET /api/books?genre=&author=&search=&page=&limit=
func (h *BookHandler) ListBooks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))

	books, total, err := h.service.ListBooks(r.Context(), catalog.ListQuery{
		Genre:  model.Genre(q.Get("genre")),
		Author: q.Get("author"),
		Search: q.Get("search"),
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = catalog.DefaultPageLimit
	}
	if limit > catalog.MaxPageLimit {
		limit = catalog.MaxPageLimit
	}

	resp := bookListResponse{
		Books: make([]bookResponse, len(books)),
		Total: total,
		Page:  page,
		Limit: limit,
	}
	for i, b := range books {
		resp.Books[i] = toBookResponse(b)
	}

	writeJSON(w, http.StatusOK, resp)
}

// UpdateBook は蔵書の部分更新を処理する。
// PATCH /api/books/:id
func (h *BookHandler) UpdateBook(w http.ResponseWriter, r *http.Request) {
	bookID := chi.URLParam(r, "id")

	var req updateBookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDecodeErrorResponse(w)
		return
	}

	patch := repository.BookPatch{
		Title:       req.Title,
		Author:      req.Author,
		ISBN:        req.ISBN,
		TotalCopies: req.TotalCopies,
	}
	if req.PublicationDate != nil {
		pubDate, err := parsePublicationDate(*req.PublicationDate)
		if err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest,
				model.NewInvalidBookFieldError("出版日", "YYYY-MM-DD形式で指定してください"))
			return
		}
		patch.PublicationDate = &pubDate
	}
	if req.Genre != nil {
		genre := model.Genre(*req.Genre)
		patch.Genre = &genre
	}

	book, err := h.service.UpdateBook(r.Context(), bookID, patch)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toBookResponse(book))
}

// DeleteBook は蔵書削除を処理する。貸出中の蔵書は削除できない。
// DELETE /api/books/:id
func (h *BookHandler) DeleteBook(w http.ResponseWriter, r *http.Request) {
	bookID := chi.URLParam(r, "id")

	if err := h.service.DeleteBook(r.Context(), bookID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// --- ヘルパー関数 ---

// toBookResponse はmodel.BookからAPIレスポンスに変換する。
func toBookResponse(book *model.Book) bookResponse {
	return bookResponse{
		ID:              book.ID,
		Title:           book.Title,
		Author:          book.Author,
		ISBN:            book.ISBN,
		PublicationDate: book.PublicationDate.Format(publicationDateLayout),
		Genre:           string(book.Genre),
		TotalCopies:     book.TotalCopies,
		AvailableCopies: book.AvailableCopies,
		BorrowedCopies:  book.BorrowedCopies(),
	}
}

// parsePublicationDate は出版日文字列を解析する。
func parsePublicationDate(s string) (time.Time, error) {
	return time.Parse(publicationDateLayout, s)
}
