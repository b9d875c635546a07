// Package mailer はメール送信サービスとの連携を提供する。
package mailer

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/yuit/yuit-site/internal/model"
)

const (
	// defaultEndpoint はResendのメール送信APIのエンドポイント。
	defaultEndpoint = "https://api.resend.com/emails"
	// maxErrorBodySize はエラーレスポンスとして読み取る最大バイト数。
	maxErrorBodySize = 4 * 1024
)

// ResendClient はResendのメール送信APIのクライアント。
// APIキーは送信のたびに呼び出し元から渡される。
type ResendClient struct {
	httpClient *http.Client
	logger     *slog.Logger
	endpoint   string // テスト用にエンドポイントを差し替え可能
}

// NewResendClient はResendClientの新しいインスタンスを生成する。
func NewResendClient(httpClient *http.Client, logger *slog.Logger) *ResendClient {
	return &ResendClient{
		httpClient: httpClient,
		logger:     logger,
		endpoint:   defaultEndpoint,
	}
}

// sendRequest はResend APIのリクエストボディ。
type sendRequest struct {
	From        string              `json:"from"`
	To          []string            `json:"to"`
	ReplyTo     string              `json:"reply_to,omitempty"`
	Subject     string              `json:"subject"`
	HTML        string              `json:"html"`
	Attachments []attachmentPayload `json:"attachments,omitempty"`
}

type attachmentPayload struct {
	Filename    string `json:"filename"`
	Content     string `json:"content"`
	ContentType string `json:"content_type,omitempty"`
}

// sendResponse はResend APIの成功レスポンス。
type sendResponse struct {
	ID string `json:"id"`
}

// Send はメールを1通送信し、Resendが採番したメールIDを返す。
// 2xx以外のステータスはエラーとして扱う。
func (c *ResendClient) Send(ctx context.Context, apiKey string, email model.Email) (string, error) {
	payload := sendRequest{
		From:    email.From,
		To:      []string{email.To},
		ReplyTo: email.ReplyTo,
		Subject: email.Subject,
		HTML:    email.HTML,
	}
	for _, a := range email.Attachments {
		payload.Attachments = append(payload.Attachments, attachmentPayload{
			Filename:    a.Filename,
			Content:     base64.StdEncoding.EncodeToString(a.Content),
			ContentType: a.ContentType,
		})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("リクエストJSONの生成に失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "YUIT-Site/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("メール送信APIの呼び出しに失敗しました",
			slog.String("error", err.Error()),
			slog.Int("attachment_count", len(email.Attachments)),
		)
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		c.logger.Error("メール送信APIがエラーステータスを返しました",
			slog.Int("http_status", resp.StatusCode),
			slog.String("response", string(detail)),
		)
		return "", fmt.Errorf("メール送信APIがステータス %d を返しました", resp.StatusCode)
	}

	var result sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		// 送信自体は受理されているため、ID不明のまま成功とする
		c.logger.Warn("メール送信APIのレスポンスのパースに失敗しました",
			slog.String("error", err.Error()),
		)
		return "", nil
	}

	return result.ID, nil
}
