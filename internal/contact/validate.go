// Package contact はお問い合わせフォーム送信の検証・メール組み立て・送信を提供する。
package contact

import (
	"errors"
	"regexp"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/yuit/yuit-site/internal/model"
	"github.com/yuit/yuit-site/internal/upload"
)

// emailPattern はメールアドレスの簡易形式チェック（local@domain.tld）。
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// fieldMessages はフィールドと失敗タグの組み合わせごとの応答メッセージ。
var fieldMessages = map[string]map[string]string{
	"Name": {
		"trimmed_required": model.MsgNameRequired,
	},
	"Email": {
		"trimmed_required": model.MsgEmailRequired,
		"contact_email":    model.MsgInvalidEmail,
	},
	"Category": {
		"trimmed_required": model.MsgCategoryRequired,
	},
}

// Validator はお問い合わせ内容をサーバー側で検証する。
// クライアント側の検証結果は信用しない。
type Validator struct {
	validate *validator.Validate
	limits   upload.Limits
}

// NewValidator はカスタムルールを登録したValidatorを生成する。
func NewValidator(limits upload.Limits) *Validator {
	v := validator.New()
	_ = v.RegisterValidation("trimmed_required", trimmedRequired)
	_ = v.RegisterValidation("contact_email", contactEmail)

	return &Validator{
		validate: v,
		limits:   limits,
	}
}

// trimmedRequired は前後の空白を除いて空でないことを検証する。
func trimmedRequired(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

// contactEmail はメールアドレスの簡易形式を検証する。
// regexpの\sはASCII空白のみに一致するため、全角空白などUnicodeの空白は別途拒否する。
func contactEmail(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	return emailPattern.MatchString(s) && !strings.ContainsFunc(s, isSpaceRune)
}

// isSpaceRune はUnicodeの空白文字とBOM（U+FEFF）を空白として扱う。
func isSpaceRune(r rune) bool {
	return unicode.IsSpace(r) || r == '\uFEFF'
}

// Validate は送信内容を検証し、最初に見つかった不備を400エラーとして返す。
// 検査順は name → email（必須・形式）→ category → 添付ファイル。
func (v *Validator) Validate(sub *model.Submission) *model.ContactError {
	if err := v.validate.Struct(sub); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			first := verrs[0]
			if msg, ok := fieldMessages[first.StructField()][first.Tag()]; ok {
				return model.NewValidationError(msg)
			}
		}
		return model.NewInternalError(err)
	}

	if len(sub.Attachments) > 0 {
		return v.validateAttachments(sub.Attachments)
	}
	return nil
}

// validateAttachments は添付ファイルの件数・合計サイズ・拡張子を再検証する。
func (v *Validator) validateAttachments(files []*model.UploadedFile) *model.ContactError {
	if len(files) > v.limits.MaxFiles {
		return model.NewValidationError(model.MsgTooManyFiles)
	}

	var total int64
	for _, f := range files {
		total += f.SizeBytes
	}
	if total > v.limits.MaxTotalFileSize {
		return model.NewValidationError(model.MsgTotalSizeExceeded)
	}

	for _, f := range files {
		ext := strings.ToLower(upload.Ext(f.OriginalName))
		if !upload.IsAllowedExtension(ext) {
			return model.NewInvalidExtensionError(ext)
		}
	}
	return nil
}
