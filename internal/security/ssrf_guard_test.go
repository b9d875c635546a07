package security

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNewSafeClient_Timeout(t *testing.T) {
	guard := NewSSRFGuard()
	timeout := 5 * time.Second
	client := guard.NewSafeClient(timeout, 5*1024*1024)
	if client.Timeout != timeout {
		t.Errorf("expected timeout %v, got %v", timeout, client.Timeout)
	}
}

// TestNewSafeClient_HasLimitedTransport は応答サイズ制限付きTransportが設定されることをテストする。
func TestNewSafeClient_HasLimitedTransport(t *testing.T) {
	guard := NewSSRFGuard()
	client := guard.NewSafeClient(5*time.Second, 1024)

	lt, ok := client.Transport.(*limitedTransport)
	if !ok {
		t.Fatalf("expected *limitedTransport, got %T", client.Transport)
	}
	if lt.limit != 1024 {
		t.Errorf("limit = %d, want 1024", lt.limit)
	}
	if lt.next == http.DefaultTransport {
		t.Error("inner transport should be the safeurl transport, got http.DefaultTransport")
	}
}

// TestNewSafeClient_BlocksLoopback はhttptestサーバー（127.0.0.1）への接続がブロックされることをテストする。
func TestNewSafeClient_BlocksLoopback(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	client := NewSSRFGuard().NewSafeClient(5*time.Second, 5*1024*1024)

	if _, err := client.Get(ts.URL); err == nil {
		t.Fatal("expected error for loopback address request, got nil")
	}
}

func TestLimitedTransport_AllowsBodyWithinLimit(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("a", 100)))
	}))
	defer ts.Close()

	client := &http.Client{Transport: &limitedTransport{next: http.DefaultTransport, limit: 100}}
	resp, err := client.Get(ts.URL)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(body) != 100 {
		t.Errorf("len(body) = %d, want 100", len(body))
	}
}

func TestLimitedTransport_RejectsOversizedBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("a", 101)))
	}))
	defer ts.Close()

	client := &http.Client{Transport: &limitedTransport{next: http.DefaultTransport, limit: 100}}
	resp, err := client.Get(ts.URL)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if !errors.Is(err, ErrResponseTooLarge) {
		t.Fatalf("err = %v, want ErrResponseTooLarge", err)
	}
	if len(body) > 100 {
		t.Errorf("read %d bytes, must not exceed limit", len(body))
	}
}

func TestValidateURL(t *testing.T) {
	guard := NewSSRFGuard()

	allowed := []string{
		"https://note.com/yuit_note/rss",
		"https://feeds.example.com/rss.xml",
		"http://blog.example.org/feed",
		"https://8.8.8.8/feed",
	}
	for _, u := range allowed {
		t.Run("allow "+u, func(t *testing.T) {
			if err := guard.ValidateURL(u); err != nil {
				t.Errorf("ValidateURL(%q) returned error: %v", u, err)
			}
		})
	}

	blocked := []string{
		// プライベートIP
		"http://10.0.0.1/feed",
		"http://172.31.255.255/feed",
		"http://192.168.1.100/feed",
		// ループバック
		"http://127.0.0.2/feed",
		"http://localhost/feed",
		"http://api.localhost/feed",
		"http://[::1]/feed",
		"http://[::ffff:127.0.0.1]/feed",
		// リンクローカル・メタデータ
		"http://169.254.169.254/latest/meta-data/",
		"http://0.0.0.0/feed",
		"http://[fd00::1]/feed",
		// 不正なURL・スキーム
		"",
		"not-a-url",
		"ftp://example.com/feed",
		"file:///etc/passwd",
		"https:///no-host",
	}
	for _, u := range blocked {
		t.Run("block "+u, func(t *testing.T) {
			if err := guard.ValidateURL(u); err == nil {
				t.Errorf("ValidateURL(%q) should have returned error", u)
			}
		})
	}
}
