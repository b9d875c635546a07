package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/yuit/yuit-site/internal/metrics"
	"github.com/yuit/yuit-site/internal/middleware"
	"github.com/yuit/yuit-site/internal/model"
	"github.com/yuit/yuit-site/internal/upload"
)

// ContactSubmitter はお問い合わせハンドラーが必要とするサービスインターフェース。
type ContactSubmitter interface {
	// Submit は送信内容を検証してメールを送信する。成功時はnilを返す。
	Submit(ctx context.Context, sub *model.Submission) *model.ContactError
}

// ContactHandler はお問い合わせフォーム送信のHTTPハンドラー。
type ContactHandler struct {
	service ContactSubmitter
	parser  *upload.Parser
	store   *upload.TempStore
	metrics metrics.MetricsCollector
	logger  *slog.Logger
}

// NewContactHandler はContactHandlerを生成する。
func NewContactHandler(service ContactSubmitter, parser *upload.Parser, store *upload.TempStore, m metrics.MetricsCollector, logger *slog.Logger) *ContactHandler {
	return &ContactHandler{
		service: service,
		parser:  parser,
		store:   store,
		metrics: m,
		logger:  logger,
	}
}

// Submit はお問い合わせフォームの送信を処理する。
// POST /api/contact
//
// 解析中に作成した一時ファイルは、どの経路で抜けてもdeferで削除する。
func (h *ContactHandler) Submit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		MethodNotAllowed(w, r)
		return
	}

	requestID := middleware.RequestIDFromContext(r.Context())

	set := h.store.NewSet()
	defer func() {
		if err := set.Release(); err != nil {
			h.logger.Warn("一時ファイルの削除に失敗しました",
				slog.String("request_id", requestID),
				slog.String("error", err.Error()),
			)
		}
	}()

	r.Body = http.MaxBytesReader(w, r.Body, h.parser.MaxBodyBytes())

	form, err := h.parser.Parse(r, set)
	if err != nil {
		cerr := parseError(err)
		h.logger.Info("フォームの解析に失敗しました",
			slog.String("request_id", requestID),
			slog.Int("status", cerr.Status),
			slog.String("error", err.Error()),
		)
		h.respondError(w, cerr)
		return
	}

	sub := &model.Submission{
		Name:        form.Values.First("name"),
		Email:       form.Values.First("email"),
		Category:    form.Values.First("category"),
		Kana:        form.Values.First("kana"),
		Phone:       form.Values.First("phone"),
		Message:     form.Values.First("message"),
		Attachments: form.Files,
	}

	if cerr := h.service.Submit(r.Context(), sub); cerr != nil {
		h.respondError(w, cerr)
		return
	}

	h.metrics.RecordContactOutcome(model.OutcomeSent)
	writeContactResult(w, http.StatusOK, model.MsgEmailSent)
}

// respondError はContactErrorをレスポンスに変換する。内部エラーの詳細は返さない。
func (h *ContactHandler) respondError(w http.ResponseWriter, cerr *model.ContactError) {
	h.metrics.RecordContactOutcome(cerr.Outcome)
	writeContactResult(w, cerr.Status, cerr.Message)
}

// parseError はマルチパート解析のエラーを利用者向けのエラーに変換する。
// 解析中に検出した件数・サイズ超過は検証時と同じ400メッセージにする。
func parseError(err error) *model.ContactError {
	switch {
	case errors.Is(err, upload.ErrTooManyFiles):
		return model.NewValidationError(model.MsgTooManyFiles)
	case errors.Is(err, upload.ErrTotalSizeExceeded):
		return model.NewValidationError(model.MsgTotalSizeExceeded)
	case errors.Is(err, upload.ErrMalformedForm):
		return model.NewValidationError(model.MsgInvalidFormData)
	default:
		return model.NewInternalError(err)
	}
}
