package sources

import (
	"context"
	"strings"

	"newsinsight/internal/domain"
)

// Query describes one per-user search.
type Query struct {
	Topics   []string
	Keywords []string
	// FeedURLs are preferred sources that point at RSS or Atom feeds.
	FeedURLs []string
	// Channels are public Telegram channel slugs among preferred sources.
	Channels []string
	Language string
	PageSize int
}

// Terms returns topics followed by keywords, blank values dropped.
func (q Query) Terms() []string {
	terms := make([]string, 0, len(q.Topics)+len(q.Keywords))
	for _, t := range append(append([]string{}, q.Topics...), q.Keywords...) {
		if t = strings.TrimSpace(t); t != "" {
			terms = append(terms, t)
		}
	}
	return terms
}

type Source interface {
	Name() string
	Search(ctx context.Context, q Query) ([]domain.RawArticle, error)
}

// BuildSearchQuery OR-joins the terms, quoting multi-word phrases.
func BuildSearchQuery(terms []string) string {
	parts := make([]string, 0, len(terms))
	for _, term := range terms {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		if strings.ContainsAny(term, " \t") {
			term = `"` + strings.ReplaceAll(term, `"`, "") + `"`
		}
		parts = append(parts, term)
	}
	return strings.Join(parts, " OR ")
}
