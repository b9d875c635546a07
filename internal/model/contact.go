// Package model はドメインモデルを定義する。
package model

// Submission はお問い合わせフォームの1回分の送信内容を表す。
// 1リクエストの間だけ存在し、永続化はしない。
type Submission struct {
	Name     string `validate:"trimmed_required"`
	Email    string `validate:"trimmed_required,contact_email"`
	Category string `validate:"trimmed_required"`
	Kana     string
	Phone    string
	Message  string

	Attachments []*UploadedFile `validate:"-"`
}

// UploadedFile はマルチパート解析中に一時ファイルへ書き出された添付ファイル。
// 内容はメール組み立て時にはじめてメモリへ読み込む。
type UploadedFile struct {
	OriginalName string
	MimeType     string
	SizeBytes    int64
	TempPath     string
}

// Attachment は送信メールに添付するファイル。
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Email はメール送信サービスに渡す送信リクエスト。
type Email struct {
	From        string
	To          string
	ReplyTo     string
	Subject     string
	HTML        string
	Attachments []Attachment
}
