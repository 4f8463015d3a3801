package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civilian24601/amon-hen/internal/core/domain"
)

const testFeedXML = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
<title>Test Feed</title>
<link>https://example.com</link>
<item>
  <title>First headline</title>
  <link>https://example.com/first</link>
  <description><![CDATA[<p>Body &amp; text</p>]]></description>
  <author>reporter@example.com (Jane Reporter)</author>
  <pubDate>Mon, 02 Feb 2026 10:00:00 GMT</pubDate>
  <category>world</category>
</item>
<item>
  <title>No link entry</title>
  <description>dropped</description>
</item>
<item>
  <title>Title only</title>
  <link>https://example.com/second</link>
</item>
</channel>
</rss>`

func TestRSSSource_Fetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(testFeedXML))
	}))
	defer server.Close()

	src := NewRSSSource([]FeedConfig{
		{Name: "test_feed", URL: server.URL, Category: "news"},
	}, zerolog.Nop())

	items, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2, "entry without link is skipped")

	first := items[0]
	assert.Equal(t, domain.SourceRSS, first.SourceType)
	assert.Equal(t, "test_feed", first.SourceName)
	assert.Equal(t, "https://example.com/first", first.SourceURL)
	assert.Equal(t, "First headline", first.Title)
	assert.Equal(t, "Body & text", first.ContentText)
	assert.Equal(t, "Jane Reporter", first.Author)
	assert.True(t, first.PublishedAt.Equal(time.Date(2026, 2, 2, 10, 0, 0, 0, time.UTC)))
	assert.Equal(t, "news", first.Metadata["category"])
	assert.Equal(t, server.URL, first.Metadata["feed_url"])
	assert.Equal(t, []string{"world"}, first.Metadata["tags"])
	assert.NotEmpty(t, first.ID)
	assert.Equal(t, "en", first.Language)

	second := items[1]
	assert.Equal(t, "Title only", second.ContentText, "content falls back to title")
}

func TestRSSSource_FeedErrorSkipsFeed(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()

	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(testFeedXML))
	}))
	defer good.Close()

	src := NewRSSSource([]FeedConfig{
		{Name: "bad", URL: bad.URL},
		{Name: "good", URL: good.URL},
	}, zerolog.Nop())

	items, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, items, 2, "working feed still delivers")

	for _, item := range items {
		assert.Equal(t, "good", item.SourceName)
	}
}
