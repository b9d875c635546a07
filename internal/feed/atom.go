package feed

import (
	"bytes"
	"fmt"

	"github.com/mmcdole/gofeed"

	"github.com/yuit/yuit-site/internal/model"
)

// ExtractOther は<item>を持たない文書（Atom・JSON Feed）をgofeedで解析し、先頭からmaxItems件の記事を返す。
// 記事の採否とサムネイルの優先順位はRSSの抽出と同じ。RSSと判定された文書は対象外としてエラーを返す。
func (e *Extractor) ExtractOther(body []byte, maxItems int) ([]model.FeedEntry, error) {
	feedType := gofeed.DetectFeedType(bytes.NewReader(body))
	if feedType != gofeed.FeedTypeAtom && feedType != gofeed.FeedTypeJSON {
		return nil, fmt.Errorf("unsupported feed type: %v", feedType)
	}

	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("フィードのパースに失敗: %w", err)
	}

	entries := make([]model.FeedEntry, 0, maxItems)
	for _, item := range parsed.Items {
		if len(entries) >= maxItems {
			break
		}
		if entry, ok := e.convertItem(item); ok {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

// convertItem はgofeedの記事をFeedEntryに変換する。
func (e *Extractor) convertItem(item *gofeed.Item) (model.FeedEntry, bool) {
	title := e.sanitizer.Text(item.Title)
	link := webURL(item.Link)

	pubDate := item.Published
	published := item.PublishedParsed
	if pubDate == "" {
		pubDate = item.Updated
		published = item.UpdatedParsed
	}

	if title == "" || link == "" || pubDate == "" {
		return model.FeedEntry{}, false
	}

	entry := model.FeedEntry{
		Title:     title,
		Link:      link,
		PubDate:   pubDate,
		Thumbnail: itemThumbnail(item),
	}
	// gofeedの解析済み時刻はUTCに変換されるため、元の時差を保つ文字列側を優先する
	entry.Date = formatDate(pubDate)
	if entry.Date == "" && published != nil {
		entry.Date = published.Format(displayDateLayout)
	}
	return entry, true
}

// itemThumbnail はmedia:thumbnail → 記事画像 → description → contentの順でサムネイルを探す。
func itemThumbnail(item *gofeed.Item) *string {
	candidates := []string{
		mediaThumbnail(item),
		imageURL(item.Image),
		firstImageSrc(item.Description),
		firstImageSrc(item.Content),
	}
	for _, c := range candidates {
		if u := webURL(c); u != "" {
			return &u
		}
	}
	return nil
}

func mediaThumbnail(item *gofeed.Item) string {
	thumbs := item.Extensions["media"]["thumbnail"]
	if len(thumbs) == 0 {
		return ""
	}
	if u := thumbs[0].Attrs["url"]; u != "" {
		return u
	}
	return thumbs[0].Value
}

func imageURL(img *gofeed.Image) string {
	if img == nil {
		return ""
	}
	return img.URL
}
