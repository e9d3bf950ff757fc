package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/shoichi/unimart/internal/auth"
	"github.com/shoichi/unimart/internal/config"
	"github.com/shoichi/unimart/internal/database"
	"github.com/shoichi/unimart/internal/handler"
	"github.com/shoichi/unimart/internal/logger"
	"github.com/shoichi/unimart/internal/media"
	"github.com/shoichi/unimart/internal/metrics"
	"github.com/shoichi/unimart/internal/middleware"
	"github.com/shoichi/unimart/internal/mq"
	"github.com/shoichi/unimart/internal/posting"
	"github.com/shoichi/unimart/internal/repository"
	"github.com/shoichi/unimart/internal/search"
	"github.com/shoichi/unimart/internal/security"
	"github.com/shoichi/unimart/internal/user"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	postingRepo := repository.NewPostgresPostingRepo(db)
	categoryRepo := repository.NewPostgresCategoryRepo(db)

	// 3. 認証サービスの初期化
	verifier := auth.NewGoogleVerifier(auth.VerifierConfig{
		ClientID:      cfg.GoogleClientID,
		AllowedDomain: cfg.AllowedDomain,
	})
	authService := auth.NewService(
		verifier, userRepo, sessionRepo,
		auth.ServiceConfig{SessionMaxAge: cfg.SessionMaxAge},
	)

	// 4. メディアストレージの初期化
	mediaStore, err := newMediaStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize media store: %w", err)
	}
	mediaHandler := media.NewHandler(mediaStore, slog.Default())

	// 5. 検索インデックスクライアントの初期化
	searchClient := search.NewClient(
		&http.Client{Timeout: 10 * time.Second},
		slog.Default(),
		cfg.SearchBaseURL(),
		cfg.SearchAPIKey,
	)

	// 6. インデックス同期イベントの発行先
	// AMQP_URLが未設定の場合はイベント発行を無効化する
	publisher, err := newPublisher(cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to message queue: %w", err)
	}
	defer publisher.Close()
	notifier := mq.NewIndexNotifier(publisher, slog.Default())

	// 7. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 8. ドメインサービスの初期化
	sanitizer := security.NewContentSanitizer()
	postingService := posting.NewService(
		postingRepo, categoryRepo, searchClient, notifier,
		mediaHandler, sanitizer, collector,
		slog.Default(), cfg.PerPageDefault,
	)
	userService := user.NewService(userRepo)

	// 9. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(
		middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitCreate),
	)
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		Authorizer:        authService,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Metrics:           collector,
		Gatherer:          registry,

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
		},

		PostingService: postingService,
		ImageSaver:     mediaHandler,
		ImageOpener:    mediaHandler,

		UserService: userService,
	}

	router := handler.NewRouter(deps)

	// 10. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// newMediaStore は設定に応じたメディアバックエンドを生成する。
func newMediaStore(cfg *config.Config) (media.Store, error) {
	switch cfg.MediaBackend {
	case "minio":
		return media.NewMinioStore(context.Background(), media.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
	default:
		return media.NewLocalStore(cfg.UploadRoot)
	}
}

// newPublisher はインデックス同期イベントの発行先を生成する。
// AMQP_URLが空の場合はイベントを破棄するNopPublisherを返す。
func newPublisher(cfg *config.Config) (mq.Publisher, error) {
	if cfg.AMQPURL == "" {
		slog.Info("AMQP_URL not set, index events disabled")
		return mq.NopPublisher{}, nil
	}
	return mq.NewRabbitMQPublisher(cfg.AMQPURL)
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /healthz エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/healthz", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
