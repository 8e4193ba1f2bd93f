package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"newsinsight/internal/domain"

	"github.com/google/uuid"
)

// UpsertArticle inserts the article or, when its URL is already stored,
// updates title, source, content and topics in place. The stored ID is
// written back into article.
func (d *Database) UpsertArticle(ctx context.Context, article *domain.Article) error {
	articleURL := strings.TrimSpace(article.URL)
	if articleURL == "" {
		return errors.New("article URL is empty")
	}

	topics, err := encodeSet(domain.NormalizeSet(article.Topics))
	if err != nil {
		return err
	}

	if article.ID == uuid.Nil {
		article.ID = uuid.New()
	}

	now := d.now().Unix()
	query := `insert into news_articles
	(id, title, url, source, published_at, content, topics, created_at, updated_at)
	values (?, ?, ?, ?, ?, ?, ?, ?, ?)
	on conflict (url) do update
	set title = excluded.title,
		source = excluded.source,
		content = excluded.content,
		topics = excluded.topics,
		updated_at = excluded.updated_at
	returning id`

	var storedID uuid.UUID
	err = d.db.QueryRowContext(ctx, query,
		article.ID, article.Title, articleURL, article.Source,
		article.PublishedAt.Unix(), article.Content, topics, now, now).
		Scan(&storedID)
	if err != nil {
		return fmt.Errorf("upsert article: %w", err)
	}

	article.ID = storedID
	article.URL = articleURL

	return nil
}

// UpsertProcessedArticle keeps a single annotation per article.
func (d *Database) UpsertProcessedArticle(ctx context.Context, p *domain.ProcessedArticle) error {
	if _, ok := domain.ParseSentiment(string(p.Sentiment)); !ok {
		return fmt.Errorf("invalid sentiment %q", p.Sentiment)
	}

	processedAt := p.ProcessedAt
	if processedAt.IsZero() {
		processedAt = d.now()
	}

	query := `insert into processed_articles
	(article_id, summary, sentiment, sentiment_explanation, fallback, model, processed_at)
	values (?, ?, ?, ?, ?, ?, ?)
	on conflict (article_id) do update
	set summary = excluded.summary,
		sentiment = excluded.sentiment,
		sentiment_explanation = excluded.sentiment_explanation,
		fallback = excluded.fallback,
		model = excluded.model,
		processed_at = excluded.processed_at`

	_, err := d.db.ExecContext(ctx, query,
		p.ArticleID, p.Summary, string(p.Sentiment), p.SentimentExplanation,
		boolInt(p.Fallback), p.Model, processedAt.Unix())
	if err != nil {
		return fmt.Errorf("upsert processed article: %w", err)
	}

	return nil
}

