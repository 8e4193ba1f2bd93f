package sources

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"newsinsight/internal/domain"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"mvdan.cc/xurls/v2"
)

const (
	rssClientTimeout = 20 * time.Second
	userAgent        = "NewsInsight/1.0 (+https://newsinsight.app)"
)

// RSSSource reads the feeds among a user's preferred sources and keeps the
// items that mention any of the user's terms.
type RSSSource struct {
	parser *gofeed.Parser
	log    *slog.Logger
}

func NewRSSSource(log *slog.Logger) *RSSSource {
	parser := gofeed.NewParser()
	parser.Client = &http.Client{Timeout: rssClientTimeout}
	parser.UserAgent = userAgent

	return &RSSSource{parser: parser, log: log}
}

func (s *RSSSource) Name() string {
	return "rss"
}

// FeedURLs picks the https URLs out of free-form preferred sources. Telegram
// links are left to ChannelSlugs.
func FeedURLs(preferredSources []string) []string {
	re, err := xurls.StrictMatchingScheme("https://")
	if err != nil {
		return nil
	}

	var urls []string
	for _, src := range preferredSources {
		for _, u := range re.FindAllString(strings.TrimSpace(src), -1) {
			if ok, _ := isTelegramChannelURL(u); ok {
				continue
			}
			if !slices.Contains(urls, u) {
				urls = append(urls, u)
			}
		}
	}

	return urls
}

func (s *RSSSource) Search(ctx context.Context, q Query) ([]domain.RawArticle, error) {
	if len(q.FeedURLs) == 0 {
		return nil, nil
	}

	terms := q.Terms()
	if len(terms) == 0 {
		return nil, nil
	}

	var (
		articles []domain.RawArticle
		errs     []error
	)

	for _, feedURL := range q.FeedURLs {
		parsed, err := s.parser.ParseURLWithContext(feedURL, ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("parse feed (URL = %s): %w", feedURL, err))
			continue
		}

		sourceName := strings.TrimSpace(parsed.Title)
		if sourceName == "" {
			s.log.WarnContext(ctx, "Empty feed title",
				"feedURL", feedURL,
				"fallbackTitle", feedURL)

			sourceName = feedURL
		}

		for _, item := range parsed.Items {
			article, ok := rawArticleFromItem(item, sourceName)
			if !ok || !mentionsAny(article, terms) {
				continue
			}
			articles = append(articles, article)
		}
	}

	slices.SortStableFunc(articles, func(a, b domain.RawArticle) int {
		return b.PublishedAt.Compare(a.PublishedAt)
	})

	pageSize := q.PageSize
	if pageSize <= 0 {
		pageSize = defaultNewsAPIPage
	}
	if len(articles) > pageSize {
		articles = articles[:pageSize]
	}

	return articles, errors.Join(errs...)
}

func rawArticleFromItem(item *gofeed.Item, sourceName string) (domain.RawArticle, bool) {
	if item == nil {
		return domain.RawArticle{}, false
	}

	link := strings.TrimSpace(item.Link)
	if link == "" {
		return domain.RawArticle{}, false
	}

	var published time.Time
	if item.PublishedParsed != nil {
		published = *item.PublishedParsed
	} else if item.UpdatedParsed != nil {
		published = *item.UpdatedParsed
	}

	return domain.RawArticle{
		Title:       strings.TrimSpace(item.Title),
		URL:         link,
		SourceName:  sourceName,
		PublishedAt: published,
		Content:     htmlText(item.Content),
		Description: htmlText(item.Description),
	}, true
}

// htmlText flattens an HTML fragment into whitespace-normalized text.
func htmlText(fragment string) string {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.Join(strings.Fields(fragment), " ")
	}

	return strings.Join(strings.Fields(doc.Text()), " ")
}

func mentionsAny(article domain.RawArticle, terms []string) bool {
	haystack := strings.ToLower(article.Title + "\n" + article.Description + "\n" + article.Content)
	for _, term := range terms {
		if strings.Contains(haystack, strings.ToLower(term)) {
			return true
		}
	}
	return false
}
