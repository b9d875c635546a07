// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ハンドラー、フィード取得、スイーパーから利用する。
type MetricsCollector interface {
	RecordContactOutcome(outcome string)
	RecordFetchSuccess()
	RecordFetchFailure(reason string)
	RecordParseFailure()
	RecordCacheHit()
	RecordUpstreamStatus(statusCode int)
	RecordFetchLatency(duration time.Duration)
	RecordItemsServed(count int)
	RecordUploadsSwept(count int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	contactOutcome *prometheus.CounterVec
	fetchSuccess   prometheus.Counter
	fetchFail      *prometheus.CounterVec
	parseFail      prometheus.Counter
	cacheHit       prometheus.Counter
	upstreamStatus *prometheus.CounterVec
	fetchLatency   prometheus.Histogram
	itemsServed    prometheus.Counter
	uploadsSwept   prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		contactOutcome: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "yuit_contact_submissions_total",
			Help: "お問い合わせ送信の結果別件数",
		}, []string{"outcome"}),
		fetchSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "yuit_feed_fetch_success_total",
			Help: "フィード取得成功の合計数",
		}),
		fetchFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "yuit_feed_fetch_fail_total",
			Help: "フィード取得失敗の理由別件数",
		}, []string{"reason"}),
		parseFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "yuit_feed_parse_fail_total",
			Help: "有効な記事を1件も抽出できなかった回数",
		}),
		cacheHit: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "yuit_feed_cache_hit_total",
			Help: "フィードキャッシュのヒット数",
		}),
		upstreamStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "yuit_feed_upstream_status_total",
			Help: "上流フィードのHTTPステータスコード別レスポンス数",
		}, []string{"status_code"}),
		fetchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "yuit_feed_fetch_latency_seconds",
			Help:    "上流フィード取得のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		itemsServed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "yuit_feed_items_served_total",
			Help: "応答したフィード記事の合計数",
		}),
		uploadsSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "yuit_uploads_swept_total",
			Help: "スイーパーが削除した一時ファイルの合計数",
		}),
	}

	reg.MustRegister(
		c.contactOutcome,
		c.fetchSuccess,
		c.fetchFail,
		c.parseFail,
		c.cacheHit,
		c.upstreamStatus,
		c.fetchLatency,
		c.itemsServed,
		c.uploadsSwept,
	)

	return c
}

// RecordContactOutcome はお問い合わせ送信の結果を記録する。
func (c *Collector) RecordContactOutcome(outcome string) {
	c.contactOutcome.WithLabelValues(outcome).Inc()
}

// RecordFetchSuccess はフィード取得成功を記録する。
func (c *Collector) RecordFetchSuccess() {
	c.fetchSuccess.Inc()
}

// RecordFetchFailure はフィード取得失敗を記録する。
func (c *Collector) RecordFetchFailure(reason string) {
	c.fetchFail.WithLabelValues(reason).Inc()
}

// RecordParseFailure はパース失敗を記録する。
func (c *Collector) RecordParseFailure() {
	c.parseFail.Inc()
}

// RecordCacheHit はキャッシュヒットを記録する。
func (c *Collector) RecordCacheHit() {
	c.cacheHit.Inc()
}

// RecordUpstreamStatus は上流のHTTPステータスコードを記録する。
func (c *Collector) RecordUpstreamStatus(statusCode int) {
	c.upstreamStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordFetchLatency はフェッチのレイテンシを記録する。
func (c *Collector) RecordFetchLatency(duration time.Duration) {
	c.fetchLatency.Observe(duration.Seconds())
}

// RecordItemsServed は応答した記事数を記録する。
func (c *Collector) RecordItemsServed(count int) {
	c.itemsServed.Add(float64(count))
}

// RecordUploadsSwept はスイーパーが削除したファイル数を記録する。
func (c *Collector) RecordUploadsSwept(count int) {
	c.uploadsSwept.Add(float64(count))
}

// NopCollector は何も記録しないMetricsCollector。メトリクス不要なテストや構成で使う。
type NopCollector struct{}

func (NopCollector) RecordContactOutcome(string) {}
func (NopCollector) RecordFetchSuccess() {}
func (NopCollector) RecordFetchFailure(string) {}
func (NopCollector) RecordParseFailure() {}
func (NopCollector) RecordCacheHit() {}
func (NopCollector) RecordUpstreamStatus(int) {}
func (NopCollector) RecordFetchLatency(time.Duration) {}
func (NopCollector) RecordItemsServed(int) {}
func (NopCollector) RecordUploadsSwept(int) {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
