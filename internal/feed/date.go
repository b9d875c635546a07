package feed

import (
	"strings"
	"time"
)

// displayDateLayout はサイト上の日付表示形式（例: 2025.01.15）。
const displayDateLayout = "2006.01.02"

// pubDateLayouts はpubDateとして受け付ける日時形式。RSSのRFC 822系を先に試す。
var pubDateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	time.RFC822Z,
	time.RFC822,
	"2 Jan 2006 15:04:05 -0700",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// parsePubDate はpubDateを解釈する。どの形式にも一致しない場合はfalseを返す。
func parsePubDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	for _, layout := range pubDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// formatDate はpubDateを表示形式に変換する。解釈できない場合は空文字列を返す。
// 日付はpubDateに記載されたタイムゾーンのまま扱う。
func formatDate(raw string) string {
	t, ok := parsePubDate(raw)
	if !ok {
		return ""
	}
	return t.Format(displayDateLayout)
}
