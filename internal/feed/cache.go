package feed

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/yuit/yuit-site/internal/metrics"
)

// cacheEntry はキャッシュされたレスポンスと有効期限。
type cacheEntry struct {
	resp      *Response
	expiresAt time.Time
}

// CachedUpstream はUpstreamの前段に置く短命キャッシュ。
// TTL内の再取得は上流に問い合わせず、同時に来た同一URLの取得は1回にまとめる。
// 2xxのレスポンスのみキャッシュする。
type CachedUpstream struct {
	next    Upstream
	ttl     time.Duration
	metrics metrics.MetricsCollector
	now     func() time.Time

	mu      sync.RWMutex
	entries map[string]cacheEntry
	group   singleflight.Group
}

// NewCachedUpstream はCachedUpstreamを生成する。ttlが0以下の場合はキャッシュせず取得の集約のみ行う。
func NewCachedUpstream(next Upstream, ttl time.Duration, metrics metrics.MetricsCollector) *CachedUpstream {
	return &CachedUpstream{
		next:    next,
		ttl:     ttl,
		metrics: metrics,
		now:     time.Now,
		entries: make(map[string]cacheEntry),
	}
}

// Fetch はキャッシュが有効ならそれを返し、なければ上流から取得する。
func (c *CachedUpstream) Fetch(ctx context.Context, url string) (*Response, error) {
	if resp, ok := c.lookup(url); ok {
		c.metrics.RecordCacheHit()
		return resp, nil
	}

	// 呼び出し元のキャンセルが相乗りしている他のリクエストに波及しないようにする。
	// 上流取得のタイムアウトはFetcher側で掛かる。
	shared := context.WithoutCancel(ctx)
	v, err, _ := c.group.Do(url, func() (any, error) {
		if resp, ok := c.lookup(url); ok {
			return resp, nil
		}
		resp, err := c.next.Fetch(shared, url)
		if err != nil {
			return nil, err
		}
		if resp.OK() && c.ttl > 0 {
			c.mu.Lock()
			c.entries[url] = cacheEntry{resp: resp, expiresAt: c.now().Add(c.ttl)}
			c.mu.Unlock()
		}
		return resp, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Response), nil
}

// lookup は有効期限内のキャッシュを返す。
func (c *CachedUpstream) lookup(url string) (*Response, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[url]
	if !ok || !c.now().Before(entry.expiresAt) {
		return nil, false
	}
	return entry.resp, true
}
