package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/shoichi/unimart/internal/metrics"
	"github.com/shoichi/unimart/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Authorizer        middleware.Authorizer
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Metrics           *metrics.Collector
	Gatherer          prometheus.Gatherer

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// 出品
	PostingService PostingServiceInterface
	ImageSaver     ImageSaver

	// 画像配信
	ImageOpener ImageOpener

	// ユーザー
	UserService UserServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	SecurityHeaders → CORS → Metrics → Auth → RateLimit(General)
//
// 認証ルート（/api/auth/, /api/logout/）と画像配信はガードの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Middleware())
	}

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	postingHandler := NewPostingHandler(deps.PostingService, deps.ImageSaver)
	mediaHandler := NewMediaHandler(deps.ImageOpener)
	userHandler := NewUserHandler(deps.UserService)

	// --- 認証不要のルート ---

	r.Post("/api/auth/", authHandler.Login)
	r.Get("/api/logout/", authHandler.Logout)
	r.Get("/api/images/{file}", mediaHandler.Serve)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	if deps.Gatherer != nil {
		r.Get("/metrics", metrics.Handler(deps.Gatherer).ServeHTTP)
	}

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Auth → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewAuthMiddleware(deps.Authorizer))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Route("/api/postings", func(r chi.Router) {
			r.Get("/", postingHandler.List)
			// 出品作成には専用のレート制限を追加
			r.With(deps.RateLimiter.PostingCreateMiddleware()).Post("/", postingHandler.Create)
			r.Put("/", postingHandler.Update)
			r.Delete("/", postingHandler.Delete)
		})

		r.Get("/api/categories/", postingHandler.ListCategories)
		r.Get("/api/user/", userHandler.Lookup)
	})

	return r
}
