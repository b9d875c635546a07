// Package feed は上流RSSフィードの取得・キャッシュ・記事抽出を提供する。
package feed

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/andybalholm/brotli"

	"github.com/yuit/yuit-site/internal/metrics"
	"github.com/yuit/yuit-site/internal/security"
)

// ErrBodyTooLarge は展開後のフィード本文が上限サイズを超えたことを示す。
var ErrBodyTooLarge = errors.New("feed body too large")

// SSRFValidator はSSRF検証のインターフェース。
// security.SSRFGuardを抽象化し、テストでは通常のhttp.Clientに差し替える。
type SSRFValidator interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client
}

// Response は上流から取得したフィードのレスポンス。
type Response struct {
	StatusCode  int
	Status      string
	ContentType string
	Body        []byte
}

// OK はステータスコードが2xxかを返す。
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// StatusText はステータス行の理由句を返す（例: "Service Unavailable"）。
func (r *Response) StatusText() string {
	if _, text, ok := strings.Cut(r.Status, " "); ok && text != "" {
		return text
	}
	return http.StatusText(r.StatusCode)
}

// Upstream はフィード取得のインターフェース。
type Upstream interface {
	Fetch(ctx context.Context, url string) (*Response, error)
}

// FetcherConfig はFetcherの設定。
type FetcherConfig struct {
	UserAgent   string
	Timeout     time.Duration
	MaxBodySize int64
}

// Fetcher は上流フィードのHTTP取得を行う。
// SSRF検証、タイムアウト、サイズ上限、br/gzipの展開を担う。
// 非2xxのレスポンスもエラーにせずそのまま返し、扱いは呼び出し側が決める。
type Fetcher struct {
	ssrfGuard SSRFValidator
	config    FetcherConfig
	metrics   metrics.MetricsCollector
	logger    *slog.Logger
}

// NewFetcher はFetcherの新しいインスタンスを生成する。
func NewFetcher(ssrfGuard SSRFValidator, config FetcherConfig, metrics metrics.MetricsCollector, logger *slog.Logger) *Fetcher {
	return &Fetcher{
		ssrfGuard: ssrfGuard,
		config:    config,
		metrics:   metrics,
		logger:    logger,
	}
}

// Fetch は指定URLのフィードを取得する。
func (f *Fetcher) Fetch(ctx context.Context, url string) (*Response, error) {
	if err := f.ssrfGuard.ValidateURL(url); err != nil {
		f.metrics.RecordFetchFailure("ssrf")
		return nil, fmt.Errorf("SSRF検証に失敗: %w", err)
	}

	if f.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.config.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("リクエスト作成に失敗: %w", err)
	}
	req.Header.Set("User-Agent", f.config.UserAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, */*")
	req.Header.Set("Accept-Encoding", "br, gzip")

	start := time.Now()
	client := f.ssrfGuard.NewSafeClient(f.config.Timeout, f.config.MaxBodySize)
	resp, err := client.Do(req)
	if err != nil {
		f.metrics.RecordFetchFailure(failureReason(err))
		return nil, fmt.Errorf("HTTPリクエスト失敗: %w", err)
	}
	defer resp.Body.Close()

	f.metrics.RecordUpstreamStatus(resp.StatusCode)

	body, err := readBody(resp, f.config.MaxBodySize)
	duration := time.Since(start)
	f.metrics.RecordFetchLatency(duration)
	if err != nil {
		f.metrics.RecordFetchFailure(failureReason(err))
		return nil, fmt.Errorf("レスポンス読み取りに失敗: %w", err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		f.metrics.RecordFetchSuccess()
	} else {
		f.metrics.RecordFetchFailure("status")
	}

	f.logger.Debug("フィードを取得しました",
		slog.String("feed_url", url),
		slog.Int("http_status", resp.StatusCode),
		slog.Int("body_size", len(body)),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return &Response{
		StatusCode:  resp.StatusCode,
		Status:      resp.Status,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

// readBody はContent-Encodingに従って本文を展開し、maxSizeバイトまで読み込む。
func readBody(resp *http.Response, maxSize int64) ([]byte, error) {
	var r io.Reader = resp.Body

	switch encoding := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))); encoding {
	case "", "identity":
	case "br":
		r = brotli.NewReader(resp.Body)
	case "gzip", "x-gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzipの展開に失敗: %w", err)
		}
		defer gz.Close()
		r = gz
	default:
		return nil, fmt.Errorf("未対応のContent-Encoding: %s", encoding)
	}

	body, err := io.ReadAll(io.LimitReader(r, maxSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > maxSize {
		return nil, ErrBodyTooLarge
	}
	return body, nil
}

// failureReason はメトリクス用に失敗理由を分類する。
func failureReason(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, ErrBodyTooLarge), errors.Is(err, security.ErrResponseTooLarge):
		return "too_large"
	default:
		var netErr interface{ Timeout() bool }
		if errors.As(err, &netErr) && netErr.Timeout() {
			return "timeout"
		}
		return "request"
	}
}
