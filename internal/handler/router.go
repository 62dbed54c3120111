package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/perkbot/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger *slog.Logger

	// ミドルウェア依存
	AllowedChannels []string
	AdminToken      string
	RateLimiter     *middleware.RateLimiter

	// サービス
	PerkService      PerkServiceInterface
	CatalogRefresher CatalogRefresher

	// 運用
	HealthChecker  HealthChecker // nil可
	MetricsHandler http.Handler  // nil可
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → SecurityHeaders → Channel → Actor → RateLimit(General)
//
// /health と /metrics はチャンネル・操作者のチェックの外に配置する。
// 管理者ルートには更に AdminToken → RateLimit(Refresh) を適用する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())

	selectionHandler := NewSelectionHandler(deps.PerkService)
	searchHandler := NewSearchHandler(deps.PerkService)
	perkHandler := NewPerkHandler(deps.PerkService)
	adminHandler := NewAdminHandler(deps.CatalogRefresher)

	// --- 運用ルート ---
	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// --- チャットイベント ---
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.NewChannelMiddleware(deps.AllowedChannels))
		r.Use(middleware.NewActorMiddleware())
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// パーク選択
		r.Route("/selections", func(r chi.Router) {
			r.Post("/", selectionHandler.Open)
			r.Route("/{id}", func(r chi.Router) {
				r.Put("/pages/{page}", selectionHandler.SelectPage)
				r.Post("/submit", selectionHandler.Submit)
				r.Post("/cancel", selectionHandler.Cancel)
			})
		})

		// 保持パーク検索
		r.Route("/searches", func(r chi.Router) {
			r.Post("/", searchHandler.Open)
			r.Route("/{id}", func(r chi.Router) {
				r.Post("/type", searchHandler.ByType)
				r.Post("/specialization", searchHandler.BySpecialization)
				r.Post("/name", searchHandler.ByName)
				r.Post("/all", searchHandler.All)
			})
		})

		// カタログ参照
		r.Get("/perks", perkHandler.List)
		r.Get("/perks/{id}", perkHandler.Get)

		// 保持パーク削除
		r.Delete("/me/perks", perkHandler.Clear)

		// 管理者操作
		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.NewAdminTokenMiddleware(deps.AdminToken))
			r.With(deps.RateLimiter.RefreshMiddleware()).Post("/catalog/refresh", adminHandler.RefreshCatalog)
		})
	})

	return r
}
