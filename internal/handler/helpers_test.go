package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"sync"
	"testing"

	"github.com/spf13/afero"

	"github.com/yuit/yuit-site/internal/config"
	"github.com/yuit/yuit-site/internal/contact"
	"github.com/yuit/yuit-site/internal/feed"
	"github.com/yuit/yuit-site/internal/metrics"
	"github.com/yuit/yuit-site/internal/middleware"
	"github.com/yuit/yuit-site/internal/model"
	"github.com/yuit/yuit-site/internal/upload"
)

const testUploadDir = "/tmp/uploads"

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// --- モック定義 ---

// mockSender はcontact.Senderのモック実装。
type mockSender struct {
	mu     sync.Mutex
	sendFn func(ctx context.Context, apiKey string, email model.Email) (string, error)
	calls  []model.Email
}

func (m *mockSender) Send(ctx context.Context, apiKey string, email model.Email) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, email)
	m.mu.Unlock()
	if m.sendFn != nil {
		return m.sendFn(ctx, apiKey, email)
	}
	return "email-1", nil
}

func (m *mockSender) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// mockFeedProvider はFeedProviderのモック実装。
type mockFeedProvider struct {
	latestFn func(ctx context.Context) model.FeedResult
	rawFn    func(ctx context.Context) (*feed.Response, error)
}

func (m *mockFeedProvider) Latest(ctx context.Context) model.FeedResult {
	if m.latestFn != nil {
		return m.latestFn(ctx)
	}
	return model.FeedResult{Items: []model.FeedEntry{}}
}

func (m *mockFeedProvider) Raw(ctx context.Context) (*feed.Response, error) {
	if m.rawFn != nil {
		return m.rawFn(ctx)
	}
	return &feed.Response{StatusCode: http.StatusOK, Status: "200 OK"}, nil
}

// --- テストヘルパー ---

// contactEnv はお問い合わせハンドラーのテスト環境。
type contactEnv struct {
	fs      afero.Fs
	sender  *mockSender
	handler *ContactHandler
	logs    *bytes.Buffer
}

// newContactEnv はメモリ上のファイルシステムと実際のcontact.Serviceでハンドラーを組み立てる。
func newContactEnv(t *testing.T, apiKey string) *contactEnv {
	t.Helper()
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	fs := afero.NewMemMapFs()
	store := upload.NewTempStore(fs, testUploadDir)
	limits := upload.DefaultLimits()
	sender := &mockSender{}

	resolve := func() config.ContactConfig {
		return config.ContactConfig{
			APIKey: apiKey,
			From:   config.ContactFrom,
			To:     "owner@example.com",
		}
	}
	svc := contact.NewService(contact.NewValidator(limits), sender, resolve, fs, logger)

	return &contactEnv{
		fs:      fs,
		sender:  sender,
		handler: NewContactHandler(svc, upload.NewParser(limits, logger), store, metrics.NopCollector{}, logger),
		logs:    &buf,
	}
}

// router はenvのハンドラーを組み込んだルーターを返す。
func (e *contactEnv) router(t *testing.T) http.Handler {
	t.Helper()
	rl := middleware.NewRateLimiter(middleware.PerMinute(100), newTestLogger(e.logs))
	t.Cleanup(rl.Stop)

	return NewRouter(&RouterDeps{
		CORSAllowedOrigin: "*",
		RateLimiter:       rl,
		Logger:            newTestLogger(e.logs),
		Contact:           e.handler,
		Feed:              NewFeedHandler(&mockFeedProvider{}, newTestLogger(e.logs)),
	})
}

// countTempFiles はアップロードディレクトリに残っているファイル数を返す。
func (e *contactEnv) countTempFiles(t *testing.T) int {
	t.Helper()
	return countFiles(t, e.fs)
}

func countFiles(t *testing.T, fs afero.Fs) int {
	t.Helper()
	infos, err := afero.ReadDir(fs, testUploadDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0
		}
		t.Fatalf("ReadDir: %v", err)
	}
	return len(infos)
}

type testFile struct {
	filename    string
	contentType string
	content     []byte
}

// newContactRequest はマルチパートのお問い合わせリクエストを組み立てる。
func newContactRequest(t *testing.T, fields map[string]string, files ...testFile) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("WriteField: %v", err)
		}
	}
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="attachments"; filename="`+f.filename+`"`)
		if f.contentType != "" {
			h.Set("Content-Type", f.contentType)
		}
		part, err := mw.CreatePart(h)
		if err != nil {
			t.Fatalf("CreatePart: %v", err)
		}
		part.Write(f.content)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/contact", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func validFields() map[string]string {
	return map[string]string{
		"name":     "Taro",
		"email":    "taro@example.com",
		"category": "その他",
	}
}

// decodeContactResponse はレスポンスボディを{ok, message}としてデコードする。
func decodeContactResponse(t *testing.T, w *httptest.ResponseRecorder) contactResponse {
	t.Helper()
	var got contactResponse
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return got
}

func pngBytes(size int) []byte {
	b := make([]byte, size)
	copy(b, []byte("\x89PNG\r\n\x1a\n"))
	return b
}
