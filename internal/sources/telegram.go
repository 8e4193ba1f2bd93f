package sources

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"slices"
	"strings"
	"time"

	"newsinsight/internal/domain"

	"github.com/PuerkitoBio/goquery"
)

const (
	telegramClientTimeout = 20 * time.Second
	telegramHost          = "t.me"
	telegramBaseURL       = "https://" + telegramHost
	telegramBrowserAgent  = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/127.0.0.0 Safari/537.36"

	minPartsForTelegramChannelSlugStartingWithS = 2
	minPartsForTelegramChannelAtSignSlug        = 3
	maxChannelPostTitleRunes                    = 120
)

var (
	telegramSlugRe       = regexp.MustCompile(`^\w{5,32}$`)
	telegramAtSignSlugRe = regexp.MustCompile(`(\s|^)@(\w{5,32})(\s|$)`)
)

// TelegramChannelSource reads the public web preview of Telegram channels
// listed among preferred sources.
type TelegramChannelSource struct {
	client  *http.Client
	baseURL string
	log     *slog.Logger
}

func NewTelegramChannelSource(log *slog.Logger) *TelegramChannelSource {
	return &TelegramChannelSource{
		client:  &http.Client{Timeout: telegramClientTimeout},
		baseURL: telegramBaseURL,
		log:     log,
	}
}

func (s *TelegramChannelSource) Name() string {
	return "telegram"
}

// ChannelSlugs extracts channel slugs from "@slug" mentions and t.me links.
func ChannelSlugs(preferredSources []string) []string {
	var slugs []string

	add := func(slug string) {
		if telegramSlugRe.MatchString(slug) && !slices.Contains(slugs, slug) {
			slugs = append(slugs, slug)
		}
	}

	for _, src := range preferredSources {
		src = strings.TrimSpace(src)

		for _, m := range telegramAtSignSlugRe.FindAllStringSubmatch(src, -1) {
			if len(m) < minPartsForTelegramChannelAtSignSlug {
				continue
			}
			add(strings.TrimSpace(m[2]))
		}

		for _, field := range strings.Fields(src) {
			if ok, slug := isTelegramChannelURL(field); ok {
				add(slug)
			}
		}
	}

	return slugs
}

func (s *TelegramChannelSource) Search(ctx context.Context, q Query) ([]domain.RawArticle, error) {
	if len(q.Channels) == 0 {
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

	for _, slug := range q.Channels {
		posts, err := s.fetchChannelPosts(ctx, slug)
		if err != nil {
			errs = append(errs, fmt.Errorf("fetch channel posts (slug = %s): %w", slug, err))
		}

		for _, post := range posts {
			if mentionsAny(post, terms) {
				articles = append(articles, post)
			}
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

func (s *TelegramChannelSource) fetchChannelPosts(ctx context.Context, slug string) ([]domain.RawArticle, error) {
	channelURL := strings.TrimRight(s.baseURL, "/") + "/s/" + slug

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, channelURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", telegramBrowserAgent)

	resp, err := s.client.Do(req) //nolint:gosec // Telegram URL
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer func() {
		if err = resp.Body.Close(); err != nil {
			s.log.ErrorContext(ctx, "Failed to close response body",
				"error", err,
				"channelURL", channelURL,
				"slug", slug)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("do request: unexpected status: %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("create document from reader: %w", err)
	}

	title := strings.TrimSpace(doc.Find("meta[property='og:title']").AttrOr("content", ""))
	if title == "" {
		title = strings.TrimSpace(doc.Find(".tgme_channel_info_header_title").Text())
	}
	if title == "" {
		title = "@" + slug
	}

	var (
		posts []domain.RawArticle
		errs  []error
	)

	doc.Find("a.tgme_widget_message_date").Each(func(_ int, sel *goquery.Selection) {
		post, ok, postErr := channelPost(sel, title)
		if postErr != nil {
			errs = append(errs, fmt.Errorf("process channel post: %w", postErr))
			return
		}
		if ok {
			posts = append(posts, post)
		}
	})

	return posts, errors.Join(errs...)
}

func channelPost(sel *goquery.Selection, channelTitle string) (domain.RawArticle, bool, error) {
	href, ok := sel.Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return domain.RawArticle{}, false, errors.New("href empty")
	}

	var text strings.Builder
	message := sel.ParentsFiltered(".tgme_widget_message").First()
	message.Find(".tgme_widget_message_text, .tgme_widget_message_caption").Each(
		func(_ int, inner *goquery.Selection) {
			inner.Find("br").Each(func(_ int, br *goquery.Selection) {
				br.ReplaceWithHtml("\n")
			})
			fragment := strings.TrimSpace(inner.Text())
			if fragment == "" {
				return
			}
			if text.Len() > 0 {
				text.WriteString("\n")
			}
			text.WriteString(fragment)
		},
	)

	content := strings.TrimSpace(text.String())
	if content == "" {
		return domain.RawArticle{}, false, nil
	}

	var published time.Time
	if datetime := strings.TrimSpace(sel.Find("time").AttrOr("datetime", "")); datetime != "" {
		parsed, err := time.Parse(time.RFC3339, datetime)
		if err != nil {
			return domain.RawArticle{}, false, fmt.Errorf("parse datetime: %w", err)
		}
		published = parsed
	}

	return domain.RawArticle{
		Title:       postTitle(content),
		URL:         canonicalMessageURL(href),
		SourceName:  channelTitle,
		PublishedAt: published,
		Content:     content,
	}, true, nil
}

// postTitle is the first line of a post, shortened.
func postTitle(content string) string {
	line, _, _ := strings.Cut(content, "\n")
	runes := []rune(strings.TrimSpace(line))
	if len(runes) <= maxChannelPostTitleRunes {
		return string(runes)
	}
	return strings.TrimSpace(string(runes[:maxChannelPostTitleRunes])) + "…"
}

func canonicalMessageURL(raw string) string {
	trimmed := strings.TrimSpace(raw)

	u, err := url.Parse(trimmed)
	if err != nil {
		return trimmed
	}

	u.RawQuery = ""
	u.Fragment = ""

	return u.String()
}

func isTelegramChannelURL(raw string) (bool, string) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host != telegramHost {
		return false, ""
	}

	path := strings.Trim(u.Path, "/")
	if path == "" {
		return false, ""
	}

	parts := strings.Split(path, "/")

	var slug string
	switch parts[0] {
	case "s":
		if len(parts) < minPartsForTelegramChannelSlugStartingWithS {
			return false, ""
		}
		slug = parts[1]
	default:
		slug = parts[0]
	}

	if !telegramSlugRe.MatchString(slug) {
		return false, ""
	}

	return true, slug
}
