package feed

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/yuit/yuit-site/internal/model"
	"github.com/yuit/yuit-site/internal/security"
)

var (
	itemPattern    = regexp.MustCompile(`(?is)<item(?:\s[^>]*)?>(.*?)</item>`)
	cdataPattern   = regexp.MustCompile(`(?s)<!\[CDATA\[(.*?)\]\]>`)
	titlePattern   = tagPattern("title")
	linkPattern    = tagPattern("link")
	pubDatePattern = tagPattern("pubDate")
	descPattern    = tagPattern("description")
	encodedPattern = tagPattern("content:encoded")
	contentPattern = tagPattern("content")

	mediaThumbPattern     = tagPattern("media:thumbnail")
	mediaThumbAttrPattern = regexp.MustCompile(`(?is)<media:thumbnail\s[^>]*?\burl\s*=\s*["']([^"']*)["']`)
)

// tagPattern は<name ...>本文</name>の本文を取り出す正規表現を生成する。
// 自己終了タグ（<name ... />）には一致しない。タグ名の大文字小文字は区別しない。
func tagPattern(name string) *regexp.Regexp {
	q := regexp.QuoteMeta(name)
	return regexp.MustCompile(`(?is)<` + q + `(?:\s[^>]*[^/>])?\s*>(.*?)</` + q + `>`)
}

// Extractor はRSS文書から記事を先頭から順に抽出する。
type Extractor struct {
	sanitizer *security.TextSanitizer
}

// NewExtractor はExtractorを生成する。
func NewExtractor(sanitizer *security.TextSanitizer) *Extractor {
	return &Extractor{sanitizer: sanitizer}
}

// Extract は<item>ブロックを文書順に走査し、有効な記事をmaxItems件集めた時点で走査をやめる。
// title・link・pubDateのいずれかが欠けた記事は除外し、件数にも数えない。
// foundは<item>ブロックが1つでも見つかったかを示す。
func (e *Extractor) Extract(body []byte, maxItems int) (entries []model.FeedEntry, found bool) {
	entries = make([]model.FeedEntry, 0, maxItems)

	offset := 0
	for len(entries) < maxItems && offset < len(body) {
		loc := itemPattern.FindSubmatchIndex(body[offset:])
		if loc == nil {
			break
		}
		found = true
		block := string(body[offset+loc[2] : offset+loc[3]])
		offset += loc[1]

		if entry, ok := e.parseItem(block); ok {
			entries = append(entries, entry)
		}
	}
	return entries, found
}

// parseItem は1つの<item>ブロックから記事を組み立てる。
func (e *Extractor) parseItem(block string) (model.FeedEntry, bool) {
	title := e.sanitizer.Text(firstMatch(titlePattern, block))
	link := webURL(html.UnescapeString(firstMatch(linkPattern, block)))
	pubDate := firstMatch(pubDatePattern, block)

	if title == "" || link == "" || pubDate == "" {
		return model.FeedEntry{}, false
	}

	return model.FeedEntry{
		Title:     title,
		Link:      link,
		PubDate:   pubDate,
		Date:      formatDate(pubDate),
		Thumbnail: findThumbnail(block),
	}, true
}

// findThumbnail はサムネイルURLを優先順に探す。最初に見つかった方法の結果を採用する。
//  1. media:thumbnailの本文またはurl属性
//  2. descriptionの最初の<img src>
//  3. content:encoded（なければcontent）の最初の<img src>
func findThumbnail(block string) *string {
	candidates := []func() string{
		func() string {
			if v := firstMatch(mediaThumbPattern, block); v != "" {
				return v
			}
			if m := mediaThumbAttrPattern.FindStringSubmatch(block); m != nil {
				return strings.TrimSpace(m[1])
			}
			return ""
		},
		func() string {
			return firstImageSrc(htmlFragment(descPattern, block))
		},
		func() string {
			if frag := htmlFragment(encodedPattern, block); frag != "" {
				return firstImageSrc(frag)
			}
			return firstImageSrc(htmlFragment(contentPattern, block))
		},
	}

	for _, candidate := range candidates {
		if u := webURL(html.UnescapeString(candidate())); u != "" {
			return &u
		}
	}
	return nil
}

// firstMatch はパターンに最初に一致した本文を、CDATAを外して前後の空白を除いて返す。
func firstMatch(re *regexp.Regexp, block string) string {
	m := re.FindStringSubmatch(block)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(stripCDATA(m[1]))
}

// stripCDATA はCDATAセクションの区切りを取り除き、中身だけを残す。
func stripCDATA(s string) string {
	if !strings.Contains(s, "<![CDATA[") {
		return s
	}
	return cdataPattern.ReplaceAllString(s, "$1")
}

// htmlFragment はHTMLを含む要素の本文を取り出す。
// CDATAで包まれていない場合は文字参照としてエスケープされたHTMLとみなして展開する。
func htmlFragment(re *regexp.Regexp, block string) string {
	m := re.FindStringSubmatch(block)
	if m == nil {
		return ""
	}
	raw := m[1]
	if strings.Contains(raw, "<![CDATA[") {
		return stripCDATA(raw)
	}
	return html.UnescapeString(raw)
}

// firstImageSrc はHTML断片から最初の<img>のsrc属性を返す。
func firstImageSrc(fragment string) string {
	if fragment == "" {
		return ""
	}

	z := html.NewTokenizer(strings.NewReader(fragment))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return ""
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			if string(name) != "img" || !hasAttr {
				continue
			}
			for {
				key, val, more := z.TagAttr()
				if string(key) == "src" && len(val) > 0 {
					return strings.TrimSpace(string(val))
				}
				if !more {
					break
				}
			}
		}
	}
}

// webURL はhttp/httpsの絶対URLであればそのまま、そうでなければ空文字列を返す。
func webURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if !security.IsWebURL(raw) {
		return ""
	}
	return raw
}
