package dataservice

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/mmcdole/gofeed"
	"github.com/pkg/errors"
)

const (
	newsLimit    = 5
	newsCacheTTL = 60 * time.Second
)

// defaultFeeds maps news categories to RSS feeds.
var defaultFeeds = map[string]string{
	"us":  "https://feeds.content.dowjones.io/public/rss/mw_topstories",
	"all": "https://feeds.content.dowjones.io/public/rss/mw_topstories",

	"cn": "https://news.google.com/rss/search?q=A%E8%82%A1&hl=zh-CN&gl=CN&ceid=CN:zh-CN",

	"macro":    "https://search.cnbc.com/rs/search/combinedcms/view.xml?partnerId=wrss01&id=20910258",
	"wsj_econ": "https://feeds.a.dj.com/rss/WSJcomUSBusiness.xml",

	"crypto":  "https://cointelegraph.com/rss",
	"加密":      "https://cointelegraph.com/rss",
	"bitcoin": "https://cointelegraph.com/rss",
}

var htmlTag = regexp.MustCompile(`<[^>]*>`)

// NewsService reads RSS feeds with gofeed. Anything that is not a known
// category becomes a Google News search.
type NewsService struct {
	parser    *gofeed.Parser
	feeds     map[string]string
	searchURL string
	cache     *ristretto.Cache
}

type NewsOption func(*NewsService)

// WithFeeds replaces the category to feed URL table.
func WithFeeds(feeds map[string]string) NewsOption {
	return func(n *NewsService) { n.feeds = feeds }
}

// WithSearchURL replaces the Google News search endpoint. The query string
// is appended to it.
func WithSearchURL(u string) NewsOption {
	return func(n *NewsService) { n.searchURL = u }
}

func NewNewsService(timeout time.Duration, opts ...NewsOption) (*NewsService, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e4,
		MaxCost:     1 << 20,
		BufferItems: 64,
	})
	if err != nil {
		return nil, errors.Wrap(err, "news cache")
	}

	fp := gofeed.NewParser()
	fp.UserAgent = userAgent
	fp.Client = &http.Client{Timeout: timeout}

	n := &NewsService{
		parser:    fp,
		feeds:     defaultFeeds,
		searchURL: "https://news.google.com/rss/search",
		cache:     cache,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// Search returns up to five items for a category or free-text query.
// Results are cached for a minute per query.
func (n *NewsService) Search(ctx context.Context, query string) ([]NewsItem, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		query = "all"
	}
	key := strings.ToLower(query)
	if v, ok := n.cache.Get(key); ok {
		return v.([]NewsItem), nil
	}

	feedURL, ok := n.feeds[key]
	if !ok {
		feedURL = n.searchFeedURL(query)
	}

	feed, err := n.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch news")
	}

	var news []NewsItem
	for i, item := range feed.Items {
		if i >= newsLimit {
			break
		}
		published := item.Published
		if item.PublishedParsed != nil {
			published = item.PublishedParsed.Format("2006-01-02 15:04")
		}
		news = append(news, NewsItem{
			Title:   strings.TrimSpace(item.Title),
			Summary: truncate(stripHTML(item.Description), 200),
			Link:    item.Link,
			Source:  feed.Title,
			Time:    published,
		})
	}

	n.cache.SetWithTTL(key, news, int64(len(news)+1), newsCacheTTL)
	return news, nil
}

func (n *NewsService) searchFeedURL(query string) string {
	// Default to English unless the query contains Chinese.
	lang, region, ceid := "en-US", "US", "US:en"
	for _, r := range query {
		if r >= 0x4e00 && r <= 0x9fff {
			lang, region, ceid = "zh-CN", "CN", "CN:zh-CN"
			break
		}
	}
	return fmt.Sprintf("%s?q=%s&hl=%s&gl=%s&ceid=%s", n.searchURL, url.QueryEscape(query), lang, region, ceid)
}

// SearchMarketNews delegates to the RSS news service.
func (s *LiveDataService) SearchMarketNews(ctx context.Context, query string) ([]NewsItem, error) {
	return s.news.Search(ctx, query)
}

func stripHTML(s string) string {
	return strings.TrimSpace(htmlTag.ReplaceAllString(s, ""))
}
