// Package config は環境変数からのアプリケーション設定の読み込みを提供する。
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// 認証
	GoogleClientID string
	AllowedDomain  string // 許可する組織ドメイン（IDトークンのhdクレームと照合）
	SessionMaxAge  int    // セッション有効期間（秒）

	// 一覧・検索
	PerPageDefault int // 1ページあたりのデフォルト件数

	// 検索インデックス
	SearchHost   string
	SearchPort   string
	SearchAPIKey string

	// メディア
	MediaBackend   string // "local" または "minio"
	UploadRoot     string
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool

	// インデックス同期イベント
	AMQPURL string // 空の場合はイベント発行を無効化

	// Rate Limit（req/min単位）
	RateLimitGeneral int
	RateLimitCreate  int

	// Server
	ServerPort      string
	BaseURL         string
	ShutdownTimeout time.Duration

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// カレントディレクトリに.envがあれば先に読み込む（既存の環境変数が優先される）。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	// .envは開発用の補助。存在しなくてもエラーにしない。
	_ = godotenv.Load()

	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.GoogleClientID = os.Getenv("GOOGLE_CLIENT_ID")
	if cfg.GoogleClientID == "" {
		missing = append(missing, "GOOGLE_CLIENT_ID")
	}

	cfg.AllowedDomain = os.Getenv("ALLOWED_DOMAIN")
	if cfg.AllowedDomain == "" {
		missing = append(missing, "ALLOWED_DOMAIN")
	}

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 86400)
	cfg.PerPageDefault = getEnvInt("PER_PAGE_DEFAULT", 20)
	cfg.SearchHost = getEnvString("SEARCH_HOST", "localhost")
	cfg.SearchPort = getEnvString("SEARCH_PORT", "7700")
	cfg.SearchAPIKey = getEnvString("SEARCH_API_KEY", "")
	cfg.MediaBackend = getEnvString("MEDIA_BACKEND", "local")
	cfg.UploadRoot = getEnvString("UPLOAD_ROOT", "./uploads")
	cfg.MinioEndpoint = getEnvString("MINIO_ENDPOINT", "")
	cfg.MinioAccessKey = getEnvString("MINIO_ACCESS_KEY", "")
	cfg.MinioSecretKey = getEnvString("MINIO_SECRET_KEY", "")
	cfg.MinioBucket = getEnvString("MINIO_BUCKET", "unimart-media")
	cfg.MinioUseSSL = getEnvBool("MINIO_USE_SSL", false)
	cfg.AMQPURL = getEnvString("AMQP_URL", "")
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitCreate = getEnvInt("RATE_LIMIT_CREATE", 10)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.ShutdownTimeout = getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second)
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	if cfg.MediaBackend != "local" && cfg.MediaBackend != "minio" {
		return nil, fmt.Errorf("invalid MEDIA_BACKEND: %s (want local or minio)", cfg.MediaBackend)
	}
	if cfg.PerPageDefault < 1 {
		return nil, fmt.Errorf("invalid PER_PAGE_DEFAULT: %d", cfg.PerPageDefault)
	}

	return cfg, nil
}

// SearchBaseURL は検索インデックスサービスのベースURLを返す。
func (c *Config) SearchBaseURL() string {
	return fmt.Sprintf("http://%s:%s", c.SearchHost, c.SearchPort)
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
