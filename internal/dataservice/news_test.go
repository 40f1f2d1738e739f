package dataservice

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rssFeed(title string, items int) string {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?><rss version="2.0"><channel>`)
	sb.WriteString("<title>" + title + "</title>")
	for i := 1; i <= items; i++ {
		sb.WriteString(fmt.Sprintf(`<item><title> Headline %d </title><link>https://example.com/%d</link>`+
			`<description><![CDATA[<p>Body <b>%d</b></p>]]></description>`+
			`<pubDate>Mon, 01 Jan 2024 10:0%d:00 GMT</pubDate></item>`, i, i, i, i%10))
	}
	sb.WriteString("</channel></rss>")
	return sb.String()
}

func newsServer(t *testing.T, calls *int32, lastQuery *atomic.Value) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		if lastQuery != nil {
			lastQuery.Store(r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(rssFeed("Test Wire", 8)))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewsSearchCategory(t *testing.T) {
	var calls int32
	srv := newsServer(t, &calls, nil)
	n, err := NewNewsService(time.Second, WithFeeds(map[string]string{"crypto": srv.URL + "/rss"}))
	require.NoError(t, err)

	items, err := n.Search(context.Background(), "Crypto")
	require.NoError(t, err)
	require.Len(t, items, newsLimit)
	assert.Equal(t, "Headline 1", items[0].Title)
	assert.Equal(t, "Body 1", items[0].Summary)
	assert.Equal(t, "https://example.com/1", items[0].Link)
	assert.Equal(t, "Test Wire", items[0].Source)
	assert.Equal(t, "2024-01-01 10:01", items[0].Time)

	n.cache.Wait()
	_, err = n.Search(context.Background(), "crypto")
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "second lookup is served from cache")
}

func TestNewsSearchFreeText(t *testing.T) {
	var (
		calls int32
		query atomic.Value
	)
	srv := newsServer(t, &calls, &query)
	n, err := NewNewsService(time.Second, WithFeeds(map[string]string{}), WithSearchURL(srv.URL+"/search"))
	require.NoError(t, err)

	_, err = n.Search(context.Background(), "bitcoin etf")
	require.NoError(t, err)
	assert.Contains(t, query.Load(), "q=bitcoin+etf")
	assert.Contains(t, query.Load(), "hl=en-US")

	_, err = n.Search(context.Background(), "比特币")
	require.NoError(t, err)
	assert.Contains(t, query.Load(), "hl=zh-CN")
}

func TestNewsSearchFeedError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	n, err := NewNewsService(time.Second, WithFeeds(map[string]string{"all": srv.URL}))
	require.NoError(t, err)

	_, err = n.Search(context.Background(), "")
	assert.Error(t, err)
}

func TestToMarkdownNewsList(t *testing.T) {
	assert.Equal(t, "暂无相关新闻资讯。", ToMarkdownNewsList(nil))

	text := ToMarkdownNewsList([]NewsItem{
		{Title: "Linked", Link: "https://example.com", Source: "Wire", Time: "2024-01-01 10:00", Summary: "short"},
		{Title: "Plain", Source: "Wire", Time: "2024-01-01 11:00"},
	})
	assert.Contains(t, text, "• **[Linked](https://example.com)**")
	assert.Contains(t, text, "• **Plain**")
	assert.Contains(t, text, "  > short")
	assert.False(t, strings.HasSuffix(text, "\n"))
}
