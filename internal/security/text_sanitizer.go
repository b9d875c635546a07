package security

import (
	"html"
	"net/url"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer は外部フィード由来の文字列からマークアップを取り除き、プレーンテキストにする。
// JSON応答に含める記事タイトルに使用する。
type TextSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はすべてのタグを除去するポリシーでTextSanitizerを生成する。
func NewTextSanitizer() *TextSanitizer {
	return &TextSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Text はタグを除去し、文字参照を展開し、連続する空白を1つにまとめた文字列を返す。
func (s *TextSanitizer) Text(raw string) string {
	if raw == "" {
		return ""
	}
	stripped := s.policy.Sanitize(raw)
	return strings.Join(strings.Fields(html.UnescapeString(stripped)), " ")
}

// IsWebURL はhttp/httpsの絶対URLかを返す。
// javascript:やdata:など、リンクや画像として返すべきでないURLを弾く。
func IsWebURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return (scheme == "http" || scheme == "https") && u.Host != ""
}
