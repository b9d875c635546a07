package contact

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/yuit/yuit-site/internal/config"
	"github.com/yuit/yuit-site/internal/model"
)

// Sender はメール送信サービスのインターフェース。
// テスト時にモックに差し替え可能。
type Sender interface {
	Send(ctx context.Context, apiKey string, email model.Email) (string, error)
}

// ConfigResolver はリクエストごとにお問い合わせ設定を解決する関数。
type ConfigResolver func() config.ContactConfig

// Service はお問い合わせ送信のパイプラインを実行する。
// 検証 → 設定解決 → 添付読み込み → 送信 の順に処理し、最初の失敗で打ち切る。
type Service struct {
	validator *Validator
	sender    Sender
	resolve   ConfigResolver
	fs        afero.Fs
	logger    *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
// fsは添付ファイルの一時ファイルが置かれているファイルシステム。
func NewService(validator *Validator, sender Sender, resolve ConfigResolver, fs afero.Fs, logger *slog.Logger) *Service {
	return &Service{
		validator: validator,
		sender:    sender,
		resolve:   resolve,
		fs:        fs,
		logger:    logger,
	}
}

// Submit は送信内容を検証してメールを1通送信する。
// 失敗時は応答用のステータスとメッセージを持つ*model.ContactErrorを返す。
func (s *Service) Submit(ctx context.Context, sub *model.Submission) *model.ContactError {
	if cerr := s.validator.Validate(sub); cerr != nil {
		s.logger.Info("お問い合わせ内容の検証に失敗しました",
			slog.String("reason", cerr.Message),
		)
		return cerr
	}

	cfg := s.resolve()
	if cfg.APIKey == "" {
		s.logger.Error("RESEND_API_KEYが設定されていません")
		return model.NewConfigError(errors.New("RESEND_API_KEY is not configured"))
	}

	submissionID := uuid.NewString()
	email := model.Email{
		From:        cfg.From,
		To:          cfg.To,
		ReplyTo:     sub.Email,
		Subject:     buildSubject(sub),
		HTML:        buildHTML(sub),
		Attachments: s.readAttachments(submissionID, sub.Attachments),
	}

	emailID, err := s.sender.Send(ctx, cfg.APIKey, email)
	if err != nil {
		s.logger.Error("お問い合わせメールの送信に失敗しました",
			slog.String("submission_id", submissionID),
			slog.String("error", err.Error()),
		)
		return model.NewSendFailedError(fmt.Errorf("メール送信に失敗: %w", err))
	}

	s.logger.Info("お問い合わせメールを送信しました",
		slog.String("submission_id", submissionID),
		slog.String("email_id", emailID),
		slog.String("category", sub.Category),
		slog.Int("attachment_count", len(email.Attachments)),
	)
	return nil
}

// readAttachments は一時ファイルから添付ファイルの内容を読み込む。
// 元のファイル名がないもの、読み込めないものはログに残して除外する。
func (s *Service) readAttachments(submissionID string, files []*model.UploadedFile) []model.Attachment {
	attachments := make([]model.Attachment, 0, len(files))

	for _, f := range files {
		if f.TempPath == "" || f.OriginalName == "" {
			continue
		}

		content, err := afero.ReadFile(s.fs, f.TempPath)
		if err != nil {
			s.logger.Warn("添付ファイルの読み込みに失敗しました",
				slog.String("submission_id", submissionID),
				slog.String("filename", f.OriginalName),
				slog.String("error", err.Error()),
			)
			continue
		}

		attachments = append(attachments, model.Attachment{
			Filename:    filepath.Base(f.OriginalName),
			ContentType: contentType(f.MimeType, content),
			Content:     content,
		})
	}

	return attachments
}

// contentType は内容から判定したMIMEタイプを返す。
// 判定できない場合は申告されたMIMEタイプを使う。
func contentType(declared string, content []byte) string {
	detected := mimetype.Detect(content)
	if detected.Is("application/octet-stream") && declared != "" {
		return declared
	}
	return detected.String()
}
