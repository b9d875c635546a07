package model

// FeedEntry はRSSの<item>1件から抽出した記事情報。
// Title・Link・PubDateがすべて揃ったものだけが結果に含まれる。
type FeedEntry struct {
	Title     string  `json:"title"`
	Link      string  `json:"link"`
	PubDate   string  `json:"pubDate"`
	Date      string  `json:"date,omitempty"`
	Thumbnail *string `json:"thumbnail"`
}

// FeedResult はフィードAPIのレスポンス。
// Itemsは失敗時も空スライスとして必ずシリアライズされる。
type FeedResult struct {
	Error string      `json:"error,omitempty"`
	Items []FeedEntry `json:"items"`
}

// EmptyFeedResult はエラーメッセージ付きの空の結果を返す。
func EmptyFeedResult(message string) FeedResult {
	return FeedResult{
		Error: message,
		Items: []FeedEntry{},
	}
}
