package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/yuit/yuit-site/internal/feed"
	"github.com/yuit/yuit-site/internal/middleware"
	"github.com/yuit/yuit-site/internal/model"
)

const (
	// latestCacheControl は記事一覧レスポンスのキャッシュ指定。
	latestCacheControl = "public, max-age=300, s-maxage=300, stale-while-revalidate=3600"
	// rawCacheControl はRSS素通しレスポンスのキャッシュ指定。
	rawCacheControl = "s-maxage=600, stale-while-revalidate=3600"
	// rawFetchFailed はRSS素通しで取得自体に失敗した場合の本文。
	rawFetchFailed = "Failed to fetch RSS"
)

// FeedProvider はフィードハンドラーが必要とするサービスインターフェース。
type FeedProvider interface {
	// Latest は最新記事の一覧を返す。失敗時もエラーメッセージ付きの結果を返す。
	Latest(ctx context.Context) model.FeedResult
	// Raw は上流のRSSレスポンスをそのまま返す。
	Raw(ctx context.Context) (*feed.Response, error)
}

// FeedHandler はnote記事フィードのHTTPハンドラー。
type FeedHandler struct {
	service FeedProvider
	logger  *slog.Logger
}

// NewFeedHandler はFeedHandlerを生成する。
func NewFeedHandler(service FeedProvider, logger *slog.Logger) *FeedHandler {
	return &FeedHandler{
		service: service,
		logger:  logger,
	}
}

// Latest は最新記事一覧をJSONで返す。
// GET /api/note-latest
//
// 失敗時も200で{error, items:[]}を返す。キャッシュ指定は成功時のみ付与する。
func (h *FeedHandler) Latest(w http.ResponseWriter, r *http.Request) {
	result := h.service.Latest(r.Context())
	if result.Items == nil {
		result.Items = []model.FeedEntry{}
	}

	if result.Error == "" {
		w.Header().Set("Cache-Control", latestCacheControl)
	} else {
		h.logger.Warn("記事一覧の取得に失敗しました",
			slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
			slog.String("error", result.Error),
		)
	}
	writeJSON(w, http.StatusOK, result)
}

// Raw は上流のRSSをそのまま返す。
// GET /api/note-rss
//
// 上流が2xx以外の場合はそのステータスコードとステータス文言を返す。
func (h *FeedHandler) Raw(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.Raw(r.Context())
	if err != nil {
		h.logger.Error("RSSの取得に失敗しました",
			slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
			slog.String("error", err.Error()),
		)
		http.Error(w, rawFetchFailed, http.StatusInternalServerError)
		return
	}

	if !resp.OK() {
		http.Error(w, resp.StatusText(), resp.StatusCode)
		return
	}

	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.Header().Set("Cache-Control", rawCacheControl)
	w.WriteHeader(http.StatusOK)
	w.Write(resp.Body)
}
