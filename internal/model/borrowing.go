// Package model はドメインモデルを定義する。
package model

import "time"

// BorrowStatus は貸出記録の状態を表す。
// Borrowed → Returned が唯一の遷移で、逆方向には戻らない。
type BorrowStatus string

const (
	// BorrowStatusBorrowed は貸出中の状態。
	BorrowStatusBorrowed BorrowStatus = "Borrowed"
	// BorrowStatusReturned は返却済みの状態。
	BorrowStatusReturned BorrowStatus = "Returned"
)

// Borrowing は1冊の貸出記録を表す。
// 返却後も履歴として保持され、削除されることはない。
type Borrowing struct {
	ID         string
	UserID     string
	BookID     string
	BorrowDate time.Time
	ReturnDate *time.Time // 貸出中はnil
	Status     BorrowStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// IsOpen は貸出中（未返却）かどうかを返す。
func (b *Borrowing) IsOpen() bool {
	return b.Status == BorrowStatusBorrowed
}

// DaysBorrowed は貸出日数を返す（切り上げ）。
// 未返却の場合はnowまでの日数を数える。
func (b *Borrowing) DaysBorrowed(now time.Time) int {
	end := now
	if b.ReturnDate != nil {
		end = *b.ReturnDate
	}
	d := end.Sub(b.BorrowDate)
	if d <= 0 {
		return 0
	}
	days := int(d / (24 * time.Hour))
	if d%(24*time.Hour) > 0 {
		days++
	}
	return days
}
