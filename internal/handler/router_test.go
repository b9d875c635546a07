package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/yuit/yuit-site/internal/middleware"
)

func newTestRouter(t *testing.T, rl *middleware.RateLimiter) http.Handler {
	t.Helper()
	env := newContactEnv(t, "re_test")
	var buf bytes.Buffer
	if rl == nil {
		rl = middleware.NewRateLimiter(middleware.PerMinute(100), newTestLogger(&buf))
		t.Cleanup(rl.Stop)
	}
	return NewRouter(&RouterDeps{
		CORSAllowedOrigin: "*",
		RateLimiter:       rl,
		Logger:            newTestLogger(&buf),
		Contact:           env.handler,
		Feed:              NewFeedHandler(&mockFeedProvider{}, newTestLogger(&buf)),
		MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("# metrics"))
		}),
	})
}

func TestRouter_Health(t *testing.T) {
	w := httptest.NewRecorder()
	newTestRouter(t, nil).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got := w.Body.String(); got != "{\"status\":\"ok\"}\n" {
		t.Errorf("body = %q", got)
	}
}

func TestRouter_NotFound(t *testing.T) {
	w := httptest.NewRecorder()
	newTestRouter(t, nil).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/unknown", nil))

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	var got map[string]any
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["error"] != "Not Found" {
		t.Errorf("error = %v", got["error"])
	}
	if items, ok := got["items"].([]any); !ok || len(items) != 0 {
		t.Errorf("items = %v", got["items"])
	}
}

func TestRouter_Routes(t *testing.T) {
	router := newTestRouter(t, nil)

	tests := []struct {
		method string
		path   string
		status int
	}{
		{http.MethodGet, "/api/note-latest", http.StatusOK},
		{http.MethodGet, "/api/note-rss", http.StatusOK},
		{http.MethodGet, "/metrics", http.StatusOK},
		{http.MethodOptions, "/api/contact", http.StatusNoContent},
		{http.MethodGet, "/api/contact", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))
		if w.Code != tt.status {
			t.Errorf("%s %s: status = %d, want %d", tt.method, tt.path, w.Code, tt.status)
		}
	}
}

func TestRouter_AppliesCommonHeaders(t *testing.T) {
	w := httptest.NewRecorder()
	newTestRouter(t, nil).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Header().Get(middleware.RequestIDHeader) == "" {
		t.Error("X-Request-Idが付与されていない")
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("CORSヘッダーが付与されていない")
	}
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("セキュリティヘッダーが付与されていない")
	}
}

// TestRouter_ContactRateLimited はお問い合わせが同一IPからの連続送信で429になることを検証する。
func TestRouter_ContactRateLimited(t *testing.T) {
	var buf bytes.Buffer
	rl := middleware.NewRateLimiter(middleware.PerMinute(1), newTestLogger(&buf))
	t.Cleanup(rl.Stop)
	router := newTestRouter(t, rl)

	first := httptest.NewRecorder()
	router.ServeHTTP(first, newContactRequest(t, validFields()))
	if first.Code != http.StatusOK {
		t.Fatalf("1回目: status = %d, want 200, body=%s", first.Code, first.Body.String())
	}

	second := httptest.NewRecorder()
	router.ServeHTTP(second, newContactRequest(t, validFields()))
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("2回目: status = %d, want 429", second.Code)
	}
	got := decodeContactResponse(t, second)
	if got.OK || got.Message != middleware.RateLimitMessage {
		t.Errorf("response = %+v", got)
	}

	// フィードはレート制限の対象外
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/note-latest", nil))
	if w.Code != http.StatusOK {
		t.Errorf("note-latest: status = %d, want 200", w.Code)
	}
}
