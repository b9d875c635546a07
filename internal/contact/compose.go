package contact

import (
	"fmt"
	"strings"

	"github.com/yuit/yuit-site/internal/model"
)

// subjectPrefix は通知メール件名の接頭辞。
const subjectPrefix = "[YUIT Contact]"

// 通知メールの項目ラベル
const (
	labelCategory = "お問い合わせ項目"
	labelName     = "氏名・会社名"
	labelKana     = "フリガナ"
	labelEmail    = "メールアドレス"
	labelPhone    = "電話番号"
	labelMessage  = "お問い合わせ内容"
)

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#039;",
)

// escapeHTML はユーザー入力をHTML本文に埋め込める形にエスケープする。
func escapeHTML(s string) string {
	return htmlEscaper.Replace(s)
}

// buildSubject は件名「[YUIT Contact] <category> - <name>」を組み立てる。
func buildSubject(sub *model.Submission) string {
	return fmt.Sprintf("%s %s - %s", subjectPrefix, sub.Category, sub.Name)
}

const htmlHead = `<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <style>
    body { font-family: sans-serif; line-height: 1.6; color: #333; }
    .container { max-width: 600px; margin: 0 auto; padding: 20px; }
    .header { background: #000; color: #fff; padding: 20px; margin-bottom: 20px; }
    .field { margin-bottom: 16px; }
    .label { font-weight: bold; color: #666; margin-bottom: 4px; }
    .value { padding: 8px; background: #f5f5f5; border-radius: 4px; }
    .footer { margin-top: 30px; padding-top: 20px; border-top: 1px solid #ddd; font-size: 12px; color: #666; }
  </style>
</head>
<body>
  <div class="container">
    <div class="header">
      <h1 style="margin:0;font-size:20px;">YUIT Contact Form</h1>
    </div>`

const htmlFoot = `
    <div class="footer">
      This email was sent from YUIT website contact form.
    </div>
  </div>
</body>
</html>`

// buildHTML は通知メールのHTML本文を組み立てる。
// ユーザー入力はすべてescapeHTMLを通す。任意項目は値がある場合のみ出力する。
func buildHTML(sub *model.Submission) string {
	var b strings.Builder
	b.WriteString(htmlHead)

	writeField(&b, labelCategory, escapeHTML(sub.Category), "")
	writeField(&b, labelName, escapeHTML(sub.Name), "")
	if sub.Kana != "" {
		writeField(&b, labelKana, escapeHTML(sub.Kana), "")
	}

	email := escapeHTML(sub.Email)
	writeField(&b, labelEmail, fmt.Sprintf(`<a href="mailto:%s">%s</a>`, email, email), "")

	if sub.Phone != "" {
		writeField(&b, labelPhone, escapeHTML(sub.Phone), "")
	}
	if sub.Message != "" {
		writeField(&b, labelMessage, escapeHTML(sub.Message), ` style="white-space:pre-wrap;"`)
	}

	b.WriteString(htmlFoot)
	return b.String()
}

// writeField はラベルと値の1項目を書き出す。valueはエスケープ済みであること。
func writeField(b *strings.Builder, label, value, valueAttr string) {
	fmt.Fprintf(b, `
    <div class="field">
      <div class="label">%s</div>
      <div class="value"%s>%s</div>
    </div>`, label, valueAttr, value)
}
