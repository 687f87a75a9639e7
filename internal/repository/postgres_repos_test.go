package repository

import (
	"testing"
)

// 各PostgresリポジトリがインターフェースをみたすことをDB接続なしで検証

func TestPostgresBookRepo_ImplementsInterface(t *testing.T) {
	var _ BookRepository = (*PostgresBookRepo)(nil)
}

func TestPostgresBorrowingRepo_ImplementsInterface(t *testing.T) {
	var _ BorrowingRepository = (*PostgresBorrowingRepo)(nil)
}

func TestPostgresUserRepo_ImplementsInterface(t *testing.T) {
	var _ UserRepository = (*PostgresUserRepo)(nil)
}

func TestPostgresSessionRepo_ImplementsInterface(t *testing.T) {
	var _ SessionRepository = (*PostgresSessionRepo)(nil)
}

func TestPostgresReportRepo_ImplementsInterface(t *testing.T) {
	var _ ReportRepository = (*PostgresReportRepo)(nil)
}

// コンストラクタがnilを返さないことを検証

func TestNewPostgresRepos_Initialize(t *testing.T) {
	if NewPostgresBookRepo(nil) == nil {
		t.Error("expected non-nil book repo")
	}
	if NewPostgresBorrowingRepo(nil) == nil {
		t.Error("expected non-nil borrowing repo")
	}
	if NewPostgresUserRepo(nil) == nil {
		t.Error("expected non-nil user repo")
	}
	if NewPostgresSessionRepo(nil) == nil {
		t.Error("expected non-nil session repo")
	}
	if NewPostgresReportRepo(nil) == nil {
		t.Error("expected non-nil report repo")
	}
}
