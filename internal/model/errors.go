// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// トランスポート層がHTTPステータス等の外部表現にマッピングする。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, catalog, lending, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeBookNotFound       = "BOOK_NOT_FOUND"
	ErrCodeBookUnavailable    = "BOOK_UNAVAILABLE"
	ErrCodeAlreadyBorrowed    = "ALREADY_BORROWED"
	ErrCodeBorrowNotFound     = "BORROW_NOT_FOUND"
	ErrCodeAlreadyReturned    = "ALREADY_RETURNED"
	ErrCodeActiveBorrowsExist = "ACTIVE_BORROWS_EXIST"
	ErrCodeInvalidISBN        = "INVALID_ISBN"
	ErrCodeDuplicateISBN      = "DUPLICATE_ISBN"
	ErrCodeInvalidGenre       = "INVALID_GENRE"
	ErrCodeInvalidBookField   = "INVALID_BOOK_FIELD"
	ErrCodeInvalidUserField   = "INVALID_USER_FIELD"
	ErrCodeDuplicateEmail     = "DUPLICATE_EMAIL"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
	ErrCodeStoreTimeout       = "STORE_TIMEOUT"
)

// NewBookNotFoundError は蔵書未検出エラーを生成する。
func NewBookNotFoundError(bookID string) *APIError {
	return &APIError{
		Code:     ErrCodeBookNotFound,
		Message:  fmt.Sprintf("指定された蔵書が見つかりません: %s", bookID),
		Category: "catalog",
		Action:   "蔵書IDを確認してください。",
	}
}

// NewBookUnavailableError は貸出可能な冊数がない場合のエラーを生成する。
// 返却により在庫が戻るため、時間をおいた再試行は安全。
func NewBookUnavailableError(bookID string) *APIError {
	return &APIError{
		Code:     ErrCodeBookUnavailable,
		Message:  fmt.Sprintf("この蔵書は現在貸出可能な冊数がありません: %s", bookID),
		Category: "lending",
		Action:   "返却され次第借りられます。しばらく待ってから再度お試しください。",
	}
}

// NewAlreadyBorrowedError は同一ユーザーが同じ蔵書を二重に借りようとした場合のエラーを生成する。
func NewAlreadyBorrowedError(bookID string) *APIError {
	return &APIError{
		Code:     ErrCodeAlreadyBorrowed,
		Message:  fmt.Sprintf("この蔵書は既に貸出中です: %s", bookID),
		Category: "lending",
		Action:   "返却してから再度借りてください。",
	}
}

// NewBorrowNotFoundError は貸出中の記録が見つからない場合のエラーを生成する。
func NewBorrowNotFoundError(bookID string) *APIError {
	return &APIError{
		Code:     ErrCodeBorrowNotFound,
		Message:  fmt.Sprintf("この蔵書の貸出中の記録が見つかりません: %s", bookID),
		Category: "lending",
		Action:   "借りている蔵書のIDを確認してください。",
	}
}

// NewAlreadyReturnedError は返却済みの記録を再度返却しようとした場合のエラーを生成する。
func NewAlreadyReturnedError(borrowingID string) *APIError {
	return &APIError{
		Code:     ErrCodeAlreadyReturned,
		Message:  fmt.Sprintf("この貸出記録は既に返却済みです: %s", borrowingID),
		Category: "lending",
		Action:   "貸出記録の状態を確認してください。",
	}
}

// NewActiveBorrowsExistError は貸出中の記録が残る蔵書を削除しようとした場合のエラーを生成する。
func NewActiveBorrowsExistError(bookID string) *APIError {
	return &APIError{
		Code:     ErrCodeActiveBorrowsExist,
		Message:  fmt.Sprintf("貸出中の記録が残っているため削除できません: %s", bookID),
		Category: "catalog",
		Action:   "すべての貸出が返却されてから削除してください。",
	}
}

// NewInvalidISBNError は無効なISBNエラーを生成する。
func NewInvalidISBNError(isbn string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidISBN,
		Message:  fmt.Sprintf("無効なISBNです: %s", isbn),
		Category: "validation",
		Action:   "ISBNは10桁または13桁の形式で入力してください。",
	}
}

// NewDuplicateISBNError はISBN重複エラーを生成する。
func NewDuplicateISBNError(isbn string) *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateISBN,
		Message:  fmt.Sprintf("同じISBNの蔵書が既に登録されています: %s", isbn),
		Category: "catalog",
		Action:   "既存の蔵書の冊数を更新するか、ISBNを確認してください。",
	}
}

// NewInvalidGenreError は無効なジャンルエラーを生成する。
func NewInvalidGenreError(genre string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidGenre,
		Message:  fmt.Sprintf("無効なジャンルです: %s", genre),
		Category: "validation",
		Action:   "定義済みのジャンルから選択してください。",
	}
}

// NewInvalidBookFieldError は蔵書フィールドのバリデーションエラーを生成する。
func NewInvalidBookFieldError(field, reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidBookField,
		Message:  fmt.Sprintf("蔵書の%sが不正です: %s", field, reason),
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewInvalidUserFieldError はユーザーフィールドのバリデーションエラーを生成する。
func NewInvalidUserFieldError(field, reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidUserField,
		Message:  fmt.Sprintf("ユーザーの%sが不正です: %s", field, reason),
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewDuplicateEmailError はメールアドレス重複エラーを生成する。
func NewDuplicateEmailError(email string) *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateEmail,
		Message:  fmt.Sprintf("このメールアドレスは既に登録されています: %s", email),
		Category: "auth",
		Action:   "別のメールアドレスを使用するか、ログインしてください。",
	}
}

// NewInvalidCredentialsError は認証失敗エラーを生成する。
// メールアドレスの存在有無を漏らさないよう、メッセージは共通にする。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewStoreTimeoutError はストアへの問い合わせがタイムアウトした場合のエラーを生成する。
// すべての更新操作はチェックからやり直す設計のため、バックオフ付きの再試行が安全。
func NewStoreTimeoutError() *APIError {
	return &APIError{
		Code:     ErrCodeStoreTimeout,
		Message:  "データストアへの問い合わせがタイムアウトしました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
