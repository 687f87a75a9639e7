// Package model はドメインモデルを定義する。
package model

import "time"

// Role はユーザーの権限区分を表す。
type Role string

const (
	// RoleAdmin は管理者。蔵書の変更と管理者向けレポートにアクセスできる。
	RoleAdmin Role = "Admin"
	// RoleMember は一般会員。
	RoleMember Role = "Member"
)

// IsValid はロールが定義済みかを返す。
func (r Role) IsValid() bool {
	return r == RoleAdmin || r == RoleMember
}

// User はサービス利用ユーザーを表す。
// PasswordHash は認証時のみ参照し、APIレスポンスには決して含めない。
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PublicUser は外部に公開してよいユーザー情報の部分集合。
type PublicUser struct {
	ID        string
	Name      string
	Email     string
	Role      Role
	CreatedAt time.Time
}

// Public は認証情報を除いた公開用ユーザー情報を返す。
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}

// Session はユーザーのログインセッションを表す。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}
