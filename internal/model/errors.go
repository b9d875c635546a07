package model

import (
	"fmt"
	"net/http"
)

// ContactError はお問い合わせ処理の失敗を表す。
// Messageはそのままユーザーに表示できる文字列とする。
type ContactError struct {
	Status  int    // HTTPステータスコード
	Message string // 呼び出し元に返すメッセージ
	Outcome string // メトリクス用の結果ラベル
	Err     error  // ログ用の内部エラー（レスポンスには含めない）
}

// Error はerrorインターフェースを実装する。
func (e *ContactError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Status, e.Message, e.Err)
	}
	return fmt.Sprintf("[%d] %s", e.Status, e.Message)
}

// Unwrap は内部エラーを返す。
func (e *ContactError) Unwrap() error {
	return e.Err
}

// お問い合わせ処理の結果ラベル
const (
	OutcomeSent        = "sent"
	OutcomeInvalid     = "invalid"
	OutcomeConfigError = "config_error"
	OutcomeSendFailed  = "send_failed"
	OutcomeError       = "error"
)

// 呼び出し元に返す定型メッセージ
const (
	MsgEmailSent         = "Email sent successfully"
	MsgMethodNotAllowed  = "Method not allowed"
	MsgNameRequired      = "Name is required"
	MsgEmailRequired     = "Email is required"
	MsgInvalidEmail      = "Invalid email format"
	MsgCategoryRequired  = "Category is required"
	MsgTooManyFiles      = "Maximum 3 files allowed"
	MsgTotalSizeExceeded = "Total file size exceeds 30MB limit"
	MsgInvalidFormData   = "Invalid form data"
	MsgConfigError       = "Server configuration error"
	MsgSendFailed        = "Failed to send email"
	MsgInternalError     = "Internal server error"
)

// NewValidationError は入力不備による400エラーを生成する。
func NewValidationError(message string) *ContactError {
	return &ContactError{
		Status:  http.StatusBadRequest,
		Message: message,
		Outcome: OutcomeInvalid,
	}
}

// NewInvalidExtensionError は許可されていない拡張子の400エラーを生成する。
// extは先頭のドットを含む形（例: ".exe"）で渡す。空文字列の場合もそのまま埋め込む。
func NewInvalidExtensionError(ext string) *ContactError {
	return NewValidationError(fmt.Sprintf("Invalid file extension: %s. Allowed: png, jpg, jpeg, pdf", ext))
}

// NewConfigError は設定不備による500エラーを生成する。
func NewConfigError(err error) *ContactError {
	return &ContactError{
		Status:  http.StatusInternalServerError,
		Message: MsgConfigError,
		Outcome: OutcomeConfigError,
		Err:     err,
	}
}

// NewSendFailedError はメール送信失敗による500エラーを生成する。
func NewSendFailedError(err error) *ContactError {
	return &ContactError{
		Status:  http.StatusInternalServerError,
		Message: MsgSendFailed,
		Outcome: OutcomeSendFailed,
		Err:     err,
	}
}

// NewInternalError は想定外の失敗による500エラーを生成する。
func NewInternalError(err error) *ContactError {
	return &ContactError{
		Status:  http.StatusInternalServerError,
		Message: MsgInternalError,
		Outcome: OutcomeError,
		Err:     err,
	}
}
