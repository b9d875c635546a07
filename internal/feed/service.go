package feed

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/yuit/yuit-site/internal/metrics"
	"github.com/yuit/yuit-site/internal/model"
)

// 応答に含めるエラーメッセージ
const (
	MsgFetchFailed   = "RSS fetch failed"
	MsgNoItemsParsed = "No items parsed"
	MsgParseFailed   = "RSS parse failed"
)

// Service は上流フィードから最新記事を取り出すサービス層。
// 取得 → 抽出 → 整形の流れを統括し、失敗はすべてFeedResult.Errorで表す。
type Service struct {
	upstream  Upstream
	extractor *Extractor
	feedURL   string
	maxItems  int
	metrics   metrics.MetricsCollector
	logger    *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(upstream Upstream, extractor *Extractor, feedURL string, maxItems int, metrics metrics.MetricsCollector, logger *slog.Logger) *Service {
	return &Service{
		upstream:  upstream,
		extractor: extractor,
		feedURL:   feedURL,
		maxItems:  maxItems,
		metrics:   metrics,
		logger:    logger,
	}
}

// Latest は最新記事を最大maxItems件返す。
// エラーを返さず、パニックも外に出さない。失敗時はitemsが空でErrorが設定された結果になる。
func (s *Service) Latest(ctx context.Context) (result model.FeedResult) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("フィード処理中にパニックが発生しました",
				slog.String("feed_url", s.feedURL),
				slog.String("panic", fmt.Sprint(rec)),
			)
			result = model.EmptyFeedResult(MsgParseFailed)
		}
	}()

	resp, err := s.upstream.Fetch(ctx, s.feedURL)
	if err != nil {
		s.logger.Warn("フィードの取得に失敗しました",
			slog.String("feed_url", s.feedURL),
			slog.String("error", err.Error()),
		)
		return model.EmptyFeedResult(MsgFetchFailed)
	}
	if !resp.OK() {
		s.logger.Warn("フィードがエラーステータスを返しました",
			slog.String("feed_url", s.feedURL),
			slog.Int("http_status", resp.StatusCode),
		)
		return model.EmptyFeedResult(fmt.Sprintf("%s: %d", MsgFetchFailed, resp.StatusCode))
	}

	entries, found := s.extractor.Extract(resp.Body, s.maxItems)
	if !found {
		other, err := s.extractor.ExtractOther(resp.Body, s.maxItems)
		if err != nil {
			s.logger.Warn("フィードに記事が見つかりませんでした",
				slog.String("feed_url", s.feedURL),
				slog.String("error", err.Error()),
			)
		}
		entries = other
	}

	if len(entries) == 0 {
		s.metrics.RecordParseFailure()
		return model.EmptyFeedResult(MsgNoItemsParsed)
	}

	s.metrics.RecordItemsServed(len(entries))
	return model.FeedResult{Items: entries}
}

// Raw は上流フィードをそのまま取得する。非2xxのレスポンスもエラーにせず返す。
func (s *Service) Raw(ctx context.Context) (*Response, error) {
	resp, err := s.upstream.Fetch(ctx, s.feedURL)
	if err != nil {
		s.logger.Warn("フィードの取得に失敗しました",
			slog.String("feed_url", s.feedURL),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	return resp, nil
}
