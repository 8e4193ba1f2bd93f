package ingest

import (
	"html"
	"regexp"
	"strings"
	"time"

	"newsinsight/internal/domain"

	"github.com/microcosm-cc/bluemonday"
)

//nolint:gochecknoglobals // Immutable after init.
var (
	strictPolicy = bluemonday.StrictPolicy()

	// NewsAPI cuts content and appends e.g. "… [+2841 chars]".
	truncationMarkerRe = regexp.MustCompile(`\s*\[\+\d+ chars\]\s*$`)
	spaceCollapseRe    = regexp.MustCompile(`\s+`)
)

// normalize cleans raw articles for one user. Articles without a URL or title
// are dropped, as are repeated URLs.
func normalize(raw []domain.RawArticle, topics []string, now time.Time) []domain.NormalizedArticle {
	out := make([]domain.NormalizedArticle, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))

	for _, r := range raw {
		title := plainText(r.Title)
		articleURL := strings.TrimSpace(r.URL)
		if title == "" || articleURL == "" {
			continue
		}
		if _, ok := seen[articleURL]; ok {
			continue
		}
		seen[articleURL] = struct{}{}

		content := r.Content
		if strings.TrimSpace(content) == "" {
			content = r.Description
		}

		publishedAt := r.PublishedAt
		if publishedAt.IsZero() {
			publishedAt = now
		}

		out = append(out, domain.NormalizedArticle{
			Title:       title,
			URL:         articleURL,
			SourceName:  strings.TrimSpace(r.SourceName),
			PublishedAt: publishedAt.UTC(),
			Content:     plainText(truncationMarkerRe.ReplaceAllString(content, "")),
			Topics:      append([]string(nil), topics...),
		})
	}

	return out
}

func plainText(s string) string {
	if s == "" {
		return ""
	}

	text := html.UnescapeString(strictPolicy.Sanitize(s))

	return strings.TrimSpace(spaceCollapseRe.ReplaceAllString(text, " "))
}
