package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/yuit/yuit-site/internal/middleware"
	"github.com/yuit/yuit-site/internal/model"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger

	// ハンドラー
	Contact *ContactHandler
	Feed    *FeedHandler

	// MetricsHandler はnilの場合/metricsを登録しない。
	MetricsHandler http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RealIP → RequestID → Logging → Recovery → SecurityHeaders → CORS
//
// レート制限はPOST /api/contactにのみ適用する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.NewRequestIDMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewRecoveryMiddleware(deps.Logger, model.MsgInternalError))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	r.NotFound(NotFound)

	r.Get("/health", Health)
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// お問い合わせ
	r.Route("/api/contact", func(r chi.Router) {
		r.MethodNotAllowed(MethodNotAllowed)
		r.With(deps.RateLimiter.Middleware()).Post("/", deps.Contact.Submit)
	})

	// note記事フィード
	r.Get("/api/note-latest", deps.Feed.Latest)
	r.Get("/api/note-rss", deps.Feed.Raw)

	return r
}
