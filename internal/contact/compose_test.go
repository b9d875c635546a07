package contact

import (
	"strings"
	"testing"

	"github.com/yuit/yuit-site/internal/model"
)

func TestEscapeHTML(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"a & b", "a &amp; b"},
		{"<b>", "&lt;b&gt;"},
		{`"quoted"`, "&quot;quoted&quot;"},
		{"it's", "it&#039;s"},
		{"&lt;", "&amp;lt;"},
		{"山田 太郎", "山田 太郎"},
	}

	for _, tt := range tests {
		if got := escapeHTML(tt.in); got != tt.want {
			t.Errorf("escapeHTML(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBuildSubject(t *testing.T) {
	sub := &model.Submission{Name: "Taro", Category: "その他"}
	want := "[YUIT Contact] その他 - Taro"
	if got := buildSubject(sub); got != want {
		t.Errorf("buildSubject = %q, want %q", got, want)
	}
}

func TestBuildHTML_ScriptIsEscaped(t *testing.T) {
	sub := &model.Submission{
		Name:     "<script>alert(1)</script>",
		Email:    "taro@example.com",
		Category: "その他",
	}

	body := buildHTML(sub)

	if strings.Contains(body, "<script>") {
		t.Fatalf("本文にエスケープされていないscriptタグが含まれている:\n%s", body)
	}
	if !strings.Contains(body, "&lt;script&gt;alert(1)&lt;/script&gt;") {
		t.Errorf("本文にエスケープ済みの名前が含まれるべき:\n%s", body)
	}
}

func TestBuildHTML_RequiredFieldsAndMailto(t *testing.T) {
	sub := &model.Submission{
		Name:     "Taro",
		Email:    "taro@example.com",
		Category: "採用について",
	}

	body := buildHTML(sub)

	for _, want := range []string{
		labelCategory, "採用について",
		labelName, "Taro",
		labelEmail, `<a href="mailto:taro@example.com">taro@example.com</a>`,
		"YUIT Contact Form",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("本文に %q が含まれるべき", want)
		}
	}

	for _, absent := range []string{labelKana, labelPhone, labelMessage} {
		if strings.Contains(body, absent) {
			t.Errorf("未入力の任意項目 %q が出力されている", absent)
		}
	}
}

func TestBuildHTML_OptionalFields(t *testing.T) {
	sub := &model.Submission{
		Name:     "山田太郎",
		Email:    "taro@example.com",
		Category: "その他",
		Kana:     "ヤマダタロウ",
		Phone:    "03-1234-5678",
		Message:  "1行目\n2行目 & <続き>",
	}

	body := buildHTML(sub)

	for _, want := range []string{
		labelKana, "ヤマダタロウ",
		labelPhone, "03-1234-5678",
		labelMessage, `style="white-space:pre-wrap;">1行目` + "\n" + `2行目 &amp; &lt;続き&gt;`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("本文に %q が含まれるべき", want)
		}
	}
}
