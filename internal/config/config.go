package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	// DefaultFeedURL は記事一覧の取得元となるnoteのRSS。
	DefaultFeedURL = "https://note.com/yuit_note/rss"
	// DefaultContactTo はCONTACT_EMAIL未設定時の通知先アドレス。
	DefaultContactTo = "info@yuit-inc.jp"
	// ContactFrom は問い合わせ通知メールの送信元（固定）。
	ContactFrom = "YUIT Contact Form <onboarding@resend.dev>"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
// お問い合わせ送信の資格情報はここに含めず、リクエストごとにResolveContactで解決する。
type Config struct {
	// Server
	ServerPort string
	LogLevel   slog.Level

	// CORS
	CORSAllowedOrigin string

	// Feed
	FeedURL          string
	FeedUserAgent    string
	FeedFetchTimeout time.Duration
	FeedMaxSize      int64
	FeedCacheTTL     time.Duration
	FeedMaxItems     int

	// Upload
	UploadDir           string
	UploadSweepInterval time.Duration
	UploadMaxAge        time.Duration

	// Rate Limit（req/min/IP）
	ContactRateLimit int
}

// ContactConfig はお問い合わせ送信1回分の設定。
// リクエスト開始時に毎回解決し、呼び出しをまたいでキャッシュしない。
type ContactConfig struct {
	// APIKey はメール送信サービスのAPIキー。空の場合は送信できない。
	APIKey string
	// From は送信元アドレス（固定値）。
	From string
	// To は通知先アドレス。未設定時はDefaultContactTo。
	To string
}

// Load は環境変数からConfigを読み込む。
// カレントディレクトリに.envがあれば先に読み込む（既存の環境変数は上書きしない）。
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.LogLevel = getEnvLevel("LOG_LEVEL", slog.LevelInfo)
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "*")

	cfg.FeedURL = getEnvString("FEED_URL", DefaultFeedURL)
	cfg.FeedUserAgent = getEnvString("FEED_USER_AGENT", "YUIT-Site/1.0 (RSS Fetcher)")
	cfg.FeedFetchTimeout = getEnvDuration("FEED_FETCH_TIMEOUT", 5*time.Second)
	cfg.FeedMaxSize = getEnvInt64("FEED_MAX_SIZE", 5242880)
	cfg.FeedCacheTTL = getEnvDuration("FEED_CACHE_TTL", 5*time.Minute)
	cfg.FeedMaxItems = getEnvInt("FEED_MAX_ITEMS", 4)

	cfg.UploadDir = getEnvString("UPLOAD_DIR", os.TempDir())
	cfg.UploadSweepInterval = getEnvDuration("UPLOAD_SWEEP_INTERVAL", 10*time.Minute)
	cfg.UploadMaxAge = getEnvDuration("UPLOAD_MAX_AGE", 30*time.Minute)

	cfg.ContactRateLimit = getEnvInt("CONTACT_RATE_LIMIT", 5)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate は読み込んだ値の整合性を検証する。
func (c *Config) validate() error {
	u, err := url.Parse(c.FeedURL)
	if err != nil {
		return fmt.Errorf("invalid FEED_URL: %w", err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return fmt.Errorf("invalid FEED_URL scheme: %q", u.Scheme)
	}
	if c.FeedMaxItems <= 0 {
		return fmt.Errorf("FEED_MAX_ITEMS must be positive: %d", c.FeedMaxItems)
	}
	if c.ContactRateLimit <= 0 {
		return fmt.Errorf("CONTACT_RATE_LIMIT must be positive: %d", c.ContactRateLimit)
	}
	return nil
}

// ResolveContact はお問い合わせ送信用の設定を環境変数から解決する。
// RESEND_API_KEYが空でもエラーにはしない（ハンドラー側で500に変換する）。
func ResolveContact() ContactConfig {
	return ContactConfig{
		APIKey: strings.TrimSpace(os.Getenv("RESEND_API_KEY")),
		From:   ContactFrom,
		To:     getEnvString("CONTACT_EMAIL", DefaultContactTo),
	}
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

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
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

func getEnvLevel(key string, defaultVal slog.Level) slog.Level {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(v)); err != nil {
		return defaultVal
	}
	return level
}
