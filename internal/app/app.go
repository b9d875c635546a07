package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/yuit/yuit-site/internal/config"
	"github.com/yuit/yuit-site/internal/contact"
	"github.com/yuit/yuit-site/internal/feed"
	"github.com/yuit/yuit-site/internal/handler"
	"github.com/yuit/yuit-site/internal/logger"
	"github.com/yuit/yuit-site/internal/mailer"
	"github.com/yuit/yuit-site/internal/metrics"
	"github.com/yuit/yuit-site/internal/middleware"
	"github.com/yuit/yuit-site/internal/security"
	"github.com/yuit/yuit-site/internal/upload"
	"github.com/yuit/yuit-site/internal/worker/cleanup"
)

const (
	// shutdownTimeout はグレースフルシャットダウンの待ち時間。
	shutdownTimeout = 30 * time.Second
	// mailerTimeout はメール送信APIの呼び出しタイムアウト。
	mailerTimeout = 15 * time.Second
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, *slog.Logger, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	log := logger.SetupDefault(w, slog.LevelInfo)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		log.Error("設定の読み込みに失敗しました", slog.String("error", err.Error()))
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたログレベルで再構築する
	return cfg, logger.SetupDefault(w, cfg.LogLevel), nil
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
		return runHealthcheck(fmt.Sprintf("http://localhost:%s/health", port))
	}

	cfg, log, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	log.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("feed_url", cfg.FeedURL),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return New(cfg, log, afero.NewOsFs()).Serve(ctx)
}

// App はHTTPサーバーと一時ファイル削除ジョブをまとめたアプリケーション本体。
type App struct {
	cfg         *config.Config
	logger      *slog.Logger
	server      *http.Server
	sweeper     *cleanup.Sweeper
	rateLimiter *middleware.RateLimiter
}

// New は全依存関係をワイヤリングしてAppを生成する。
// fsは添付ファイル用一時ファイルの保存先ファイルシステム。
func New(cfg *config.Config, log *slog.Logger, fs afero.Fs) *App {
	// 1. メトリクス
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	// 2. フィード
	ssrfGuard := security.NewSSRFGuard()
	fetcher := feed.NewFetcher(ssrfGuard, feed.FetcherConfig{
		UserAgent:   cfg.FeedUserAgent,
		Timeout:     cfg.FeedFetchTimeout,
		MaxBodySize: cfg.FeedMaxSize,
	}, collector, log)
	upstream := feed.NewCachedUpstream(fetcher, cfg.FeedCacheTTL, collector)
	extractor := feed.NewExtractor(security.NewTextSanitizer())
	feedService := feed.NewService(upstream, extractor, cfg.FeedURL, cfg.FeedMaxItems, collector, log)

	// 3. お問い合わせ
	limits := upload.DefaultLimits()
	store := upload.NewTempStore(fs, cfg.UploadDir)
	resend := mailer.NewResendClient(&http.Client{Timeout: mailerTimeout}, log)
	contactService := contact.NewService(
		contact.NewValidator(limits), resend, config.ResolveContact, store.Fs(), log,
	)

	// 4. ルーター
	rateLimiter := middleware.NewRateLimiter(middleware.PerMinute(cfg.ContactRateLimit), log)
	router := handler.NewRouter(&handler.RouterDeps{
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Logger:            log,
		Contact: handler.NewContactHandler(
			contactService, upload.NewParser(limits, log), store, collector, log,
		),
		Feed:           handler.NewFeedHandler(feedService, log),
		MetricsHandler: metrics.Handler(registry),
	})

	return &App{
		cfg:    cfg,
		logger: log,
		server: &http.Server{
			Addr:              ":" + cfg.ServerPort,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       60 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		sweeper:     cleanup.NewSweeper(fs, cfg.UploadDir, cfg.UploadMaxAge, collector, log),
		rateLimiter: rateLimiter,
	}
}

// Handler はルーティング済みのHTTPハンドラーを返す。
func (a *App) Handler() http.Handler {
	return a.server.Handler
}

// Serve はHTTPサーバーと一時ファイル削除ジョブを起動し、ctxがキャンセルされるまでブロックする。
// キャンセル後はグレースフルシャットダウンを行う。
func (a *App) Serve(ctx context.Context) error {
	defer a.rateLimiter.Stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("API server starting", slog.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		a.sweeper.Start(gctx, a.cfg.UploadSweepInterval)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutting down API server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := a.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	a.logger.Info("API server stopped gracefully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(url string) error {
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
