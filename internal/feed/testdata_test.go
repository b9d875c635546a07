package feed

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/yuit/yuit-site/internal/metrics"
	"github.com/yuit/yuit-site/internal/security"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

func newTestExtractor() *Extractor {
	return NewExtractor(security.NewTextSanitizer())
}

// rssItem はテスト用RSS文書の<item>1件分。
func rssItem(n int) string {
	return fmt.Sprintf(`
    <item>
      <title>記事%d</title>
      <link>https://note.com/yuit_note/n/n%d</link>
      <pubDate>Wed, 15 Jan 2025 10:0%d:00 +0900</pubDate>
    </item>`, n, n, n%10)
}

// rssDocument は<item>群をRSS文書に包む。
func rssDocument(items ...string) []byte {
	return []byte(`<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:media="http://search.yahoo.com/mrss/" xmlns:content="http://purl.org/rss/1.0/modules/content/">
  <channel>
    <title>YUIT note</title>
    <link>https://note.com/yuit_note</link>` + strings.Join(items, "") + `
  </channel>
</rss>`)
}

// rssDocumentN はn件の有効な<item>を持つRSS文書を返す。
func rssDocumentN(n int) []byte {
	items := make([]string, n)
	for i := range items {
		items[i] = rssItem(i + 1)
	}
	return rssDocument(items...)
}

const atomDocument = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom" xmlns:media="http://search.yahoo.com/mrss/">
  <title>YUIT Blog</title>
  <id>urn:uuid:60a76c80-d399-11d9-b93C-0003939e0af6</id>
  <updated>2025-01-15T10:00:00+09:00</updated>
  <entry>
    <title>Atom記事1</title>
    <link href="https://blog.example.com/1"/>
    <id>urn:uuid:1</id>
    <published>2025-01-15T10:00:00+09:00</published>
    <updated>2025-01-15T10:00:00+09:00</updated>
    <media:thumbnail url="https://cdn.example.com/1.jpg"/>
  </entry>
  <entry>
    <title>Atom記事2</title>
    <link href="https://blog.example.com/2"/>
    <id>urn:uuid:2</id>
    <updated>2025-01-10T08:30:00+09:00</updated>
    <content type="html">&lt;p&gt;&lt;img src="https://cdn.example.com/2.png"&gt;&lt;/p&gt;</content>
  </entry>
  <entry>
    <title>リンクなし</title>
    <id>urn:uuid:3</id>
    <updated>2025-01-09T08:30:00+09:00</updated>
  </entry>
</feed>`

// mockMetrics は記録内容を保持するMetricsCollectorのテスト用モック。
type mockMetrics struct {
	metrics.NopCollector

	mu            sync.Mutex
	fetchSuccess  int
	failures      []string
	statuses      []int
	cacheHits     int
	parseFailures int
	itemsServed   int
}

func (m *mockMetrics) RecordFetchSuccess() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetchSuccess++
}

func (m *mockMetrics) RecordFetchFailure(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, reason)
}

func (m *mockMetrics) RecordUpstreamStatus(code int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses = append(m.statuses, code)
}

func (m *mockMetrics) RecordCacheHit() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cacheHits++
}

func (m *mockMetrics) RecordParseFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.parseFailures++
}

func (m *mockMetrics) RecordItemsServed(count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.itemsServed += count
}

// mockSSRFGuard はSSRFValidatorのテスト用モック。
// httptestサーバーはループバックで起動するため、通常のhttp.Clientを返す。
type mockSSRFGuard struct {
	validateErr error
}

func (m *mockSSRFGuard) NewSafeClient(timeout time.Duration, _ int64) *http.Client {
	return &http.Client{Timeout: timeout}
}

func (m *mockSSRFGuard) ValidateURL(_ string) error {
	return m.validateErr
}

// mockUpstream はUpstreamのテスト用モック。
type mockUpstream struct {
	mu      sync.Mutex
	calls   int
	fetchFn func(ctx context.Context, url string) (*Response, error)
}

func (m *mockUpstream) Fetch(ctx context.Context, url string) (*Response, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	return m.fetchFn(ctx, url)
}

func (m *mockUpstream) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// okResponse は200のレスポンスを返す。
func okResponse(body []byte) *Response {
	return &Response{
		StatusCode:  http.StatusOK,
		Status:      "200 OK",
		ContentType: "application/rss+xml; charset=utf-8",
		Body:        body,
	}
}
