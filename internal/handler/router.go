package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/bookman/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// 運用系
	HealthChecker  HealthChecker
	MetricsHandler http.Handler
	StatusRecorder middleware.HTTPStatusRecorder

	// ミドルウェア依存
	SessionFinder     middleware.SessionFinder
	UserFinder        middleware.UserFinder
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// 蔵書
	CatalogService CatalogServiceInterface

	// 貸出
	LendingService LendingServiceInterface

	// レポート
	ReportService ReportServiceInterface

	// ユーザー
	UserService UserServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	CORSMiddleware → SessionMiddleware → RateLimitMiddleware(GeneralMiddleware)
//
// 認可マトリクス:
//   - 蔵書の参照（一覧・詳細）は認証不要
//   - 貸出・返却・履歴・貸出ランキング・在庫サマリは認証が必要
//   - 蔵書の変更、全貸出一覧、利用者ランキング、ユーザー管理は管理者のみ
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	// 全ルート共通のミドルウェア。recoveryを最上位に置き、
	// ロギング・CORSを含む下流のpanicをすべて捕捉する。
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(slog.Default()))
	if deps.StatusRecorder != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.StatusRecorder))
	}
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	bookHandler := NewBookHandler(deps.CatalogService)
	borrowHandler := NewBorrowHandler(deps.LendingService)
	reportHandler := NewReportHandler(deps.ReportService)
	userHandler := NewUserHandler(deps.UserService)

	sessionMW := middleware.NewSessionMiddleware(deps.SessionFinder, deps.UserFinder)
	adminMW := middleware.NewRequireAdminMiddleware()

	// --- 認証不要のルート ---

	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.Post("/logout", authHandler.Logout)
		r.Get("/me", authHandler.Me)
	})

	// 蔵書の参照は公開
	r.Get("/api/books", bookHandler.ListBooks)
	r.Get("/api/books/{id}", bookHandler.GetBook)

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Session → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(sessionMW)
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// 貸出・返却（専用レート制限を追加）
		r.With(deps.RateLimiter.BorrowMiddleware()).Post("/api/books/{id}/borrow", borrowHandler.Borrow)
		r.With(deps.RateLimiter.BorrowMiddleware()).Post("/api/books/{id}/return", borrowHandler.Return)

		// 自分の貸出記録
		r.Get("/api/borrowings/history", borrowHandler.History)
		r.Get("/api/borrowings/active", borrowHandler.Active)

		// レポート
		r.Get("/api/reports/most-borrowed", reportHandler.MostBorrowedBooks)
		r.Get("/api/reports/availability", reportHandler.AvailabilitySummary)

		// --- 管理者のみのルート ---
		r.Group(func(r chi.Router) {
			r.Use(adminMW)

			// 蔵書の変更
			r.Post("/api/books", bookHandler.CreateBook)
			r.Patch("/api/books/{id}", bookHandler.UpdateBook)
			r.Delete("/api/books/{id}", bookHandler.DeleteBook)

			// 全貸出記録
			r.Get("/api/borrowings", borrowHandler.ListAll)

			// 利用者ランキング
			r.Get("/api/reports/active-members", reportHandler.MostActiveMembers)

			// ユーザー管理
			r.Get("/api/users", userHandler.ListUsers)
			r.Get("/api/users/{id}", userHandler.GetUser)
		})
	})

	return r
}
