package sources

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"
)

const rssFixture = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>Example Feed</title>
  <link>https://example.com</link>
  <item>
    <title>Quantum computing milestone</title>
    <link>https://example.com/quantum</link>
    <description>&lt;p&gt;Researchers report &lt;b&gt;progress&lt;/b&gt; in tech.&lt;/p&gt;</description>
    <pubDate>Thu, 02 Jan 2025 10:00:00 GMT</pubDate>
  </item>
  <item>
    <title>Football results</title>
    <link>https://example.com/football</link>
    <description>Weekend scores.</description>
    <pubDate>Fri, 03 Jan 2025 10:00:00 GMT</pubDate>
  </item>
  <item>
    <title>New AI model</title>
    <link>https://example.com/ai</link>
    <description>Another release.</description>
    <pubDate>Sat, 04 Jan 2025 10:00:00 GMT</pubDate>
  </item>
  <item>
    <title>No link about tech</title>
    <description>Missing link.</description>
  </item>
</channel>
</rss>`

func TestFeedURLs(t *testing.T) {
	got := FeedURLs([]string{
		"BBC",
		"https://example.com/feed.xml",
		"see https://example.com/feed.xml and http://insecure.example.com/rss",
		"https://other.example.com/atom",
	})
	want := []string{"https://example.com/feed.xml", "https://other.example.com/atom"}

	if !slices.Equal(got, want) {
		t.Fatalf("unexpected URLs: got %q want %q", got, want)
	}
}

func TestHTMLText(t *testing.T) {
	got := htmlText("<p>Hello <b>world</b></p>\n<p>again</p>")
	if got != "Hello worldagain" && got != "Hello world again" {
		t.Fatalf("unexpected text: %q", got)
	}
	if htmlText("   ") != "" {
		t.Fatalf("expected empty text for blank input")
	}
}

func TestRSSSearchFiltersByTerms(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(rssFixture))
	}))
	defer srv.Close()

	src := NewRSSSource(slog.New(slog.NewTextHandler(io.Discard, nil)))
	articles, err := src.Search(context.Background(), Query{
		Topics:   []string{"tech"},
		Keywords: []string{"ai"},
		FeedURLs: []string{srv.URL},
		PageSize: 10,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(articles) != 2 {
		t.Fatalf("expected 2 matching articles, got %d: %+v", len(articles), articles)
	}
	if articles[0].URL != "https://example.com/ai" || articles[1].URL != "https://example.com/quantum" {
		t.Fatalf("expected newest first, got %s then %s", articles[0].URL, articles[1].URL)
	}
	if articles[1].SourceName != "Example Feed" {
		t.Errorf("unexpected source name: %q", articles[1].SourceName)
	}
	if articles[1].Description != "Researchers report progress in tech." {
		t.Errorf("expected markup to be flattened, got %q", articles[1].Description)
	}
}

func TestRSSSearchWithoutFeeds(t *testing.T) {
	src := NewRSSSource(slog.New(slog.NewTextHandler(io.Discard, nil)))

	articles, err := src.Search(context.Background(), Query{Topics: []string{"tech"}})
	if err != nil || articles != nil {
		t.Fatalf("expected nil result, got %v, %v", articles, err)
	}
}
