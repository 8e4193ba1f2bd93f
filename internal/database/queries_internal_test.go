package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"newsinsight/internal/domain"

	"github.com/google/uuid"
)

func (d *Database) getArticle(ctx context.Context, articleID uuid.UUID) (*domain.Article, error) {
	var (
		a           domain.Article
		publishedAt int64
		topics      string
	)

	err := d.db.QueryRowContext(ctx,
		`select id, title, url, source, published_at, content, topics
		from news_articles where id = ?`,
		articleID).
		Scan(&a.ID, &a.Title, &a.URL, &a.Source, &publishedAt, &a.Content, &topics)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan article: %w", err)
	}

	a.PublishedAt = unixTime(publishedAt)
	if a.Topics, err = decodeSet(topics); err != nil {
		return nil, err
	}

	return &a, nil
}

func (d *Database) countArticlesByURL(ctx context.Context, articleURL string) (int, error) {
	var n int
	err := d.db.QueryRowContext(ctx,
		"select count(*) from news_articles where url = ?",
		strings.TrimSpace(articleURL)).Scan(&n)

	return n, err
}

func (d *Database) getProcessedArticle(ctx context.Context, articleID uuid.UUID) (*domain.ProcessedArticle, error) {
	var (
		p           domain.ProcessedArticle
		sentiment   string
		processedAt int64
	)

	err := d.db.QueryRowContext(ctx,
		`select article_id, summary, sentiment, sentiment_explanation, fallback, model, processed_at
		from processed_articles where article_id = ?`,
		articleID).
		Scan(&p.ArticleID, &p.Summary, &sentiment, &p.SentimentExplanation, &p.Fallback, &p.Model, &processedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan processed article: %w", err)
	}

	p.Sentiment = domain.Sentiment(sentiment)
	p.ProcessedAt = unixTime(processedAt)

	return &p, nil
}

func (d *Database) countInteractions(ctx context.Context, userID, articleID uuid.UUID) (int, error) {
	var n int
	err := d.db.QueryRowContext(ctx,
		"select count(*) from user_interactions where user_id = ? and article_id = ?",
		userID, articleID).Scan(&n)

	return n, err
}
