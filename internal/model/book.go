// Package model はドメインモデルを定義する。
package model

import (
	"regexp"
	"time"
)

// Book は蔵書を表す。
// AvailableCopies は貸出可能な冊数で、常に 0 <= AvailableCopies <= TotalCopies を満たす。
type Book struct {
	ID              string
	Title           string
	Author          string
	ISBN            string
	PublicationDate time.Time
	Genre           Genre
	TotalCopies     int
	AvailableCopies int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// BorrowedCopies は貸出中の冊数を返す。
// 総冊数を貸出中より少なく縮小した直後は AvailableCopies が0にクランプされるため、
// この値が TotalCopies を超えることがある（返却により自己回復する）。
func (b *Book) BorrowedCopies() int {
	return b.TotalCopies - b.AvailableCopies
}

// IsAvailable は貸出可能な冊数が残っているかを返す。
func (b *Book) IsAvailable() bool {
	return b.AvailableCopies > 0
}

// Genre は蔵書のジャンルを表す。
type Genre string

// 定義済みジャンル
const (
	GenreFiction    Genre = "Fiction"
	GenreNonFiction Genre = "Non-Fiction"
	GenreScience    Genre = "Science"
	GenreTechnology Genre = "Technology"
	GenreHistory    Genre = "History"
	GenreBiography  Genre = "Biography"
	GenreMystery    Genre = "Mystery"
	GenreRomance    Genre = "Romance"
	GenreFantasy    Genre = "Fantasy"
	GenreHorror     Genre = "Horror"
	GenreSelfHelp   Genre = "Self-Help"
	GenreBusiness   Genre = "Business"
	GenreOther      Genre = "Other"
)

// validGenres はジャンルの閉じた集合。
var validGenres = map[Genre]bool{
	GenreFiction:    true,
	GenreNonFiction: true,
	GenreScience:    true,
	GenreTechnology: true,
	GenreHistory:    true,
	GenreBiography:  true,
	GenreMystery:    true,
	GenreRomance:    true,
	GenreFantasy:    true,
	GenreHorror:     true,
	GenreSelfHelp:   true,
	GenreBusiness:   true,
	GenreOther:      true,
}

// IsValid はジャンルが定義済み集合に含まれるかを返す。
func (g Genre) IsValid() bool {
	return validGenres[g]
}

// 総冊数の許容範囲
const (
	MinTotalCopies = 1
	MaxTotalCopies = 1000
)

// isbnPattern はISBN-10（末尾Xを許容）またはISBN-13の形式。
var isbnPattern = regexp.MustCompile(`^(?:\d{9}[\dX]|\d{13})$`)

// IsValidISBN はISBNが10桁または13桁の形式かを返す。
func IsValidISBN(isbn string) bool {
	return isbnPattern.MatchString(isbn)
}
