package database

import (
	"context"
	"database/sql"
	"fmt"

	"newsinsight/internal/domain"

	"github.com/google/uuid"
)

const feedItemColumns = `a.id, a.title, a.url, a.source, a.published_at, a.content, a.topics,
	p.summary, p.sentiment, p.sentiment_explanation, p.fallback, p.model, p.processed_at,
	coalesce(i.is_read, 0), coalesce(i.is_saved, 0)`

// ListUnreadFeed returns articles whose topics overlap the given topics and
// that the user has not marked read, newest first.
func (d *Database) ListUnreadFeed(
	ctx context.Context,
	userID uuid.UUID,
	topics []string,
	limit int,
) ([]domain.FeedItem, error) {
	topicsJSON, err := encodeSet(topics)
	if err != nil {
		return nil, err
	}

	query := `select ` + feedItemColumns + `
	from news_articles as a
	left join processed_articles as p on p.article_id = a.id
	left join user_interactions as i on i.article_id = a.id and i.user_id = ?
	where exists (
		select 1 from json_each(a.topics) as t
		where t.value in (select value from json_each(?))
	)
	and coalesce(i.is_read, 0) = 0
	order by a.published_at desc, a.id
	limit ?`

	rows, err := d.db.QueryContext(ctx, query, userID, topicsJSON, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer d.closeRows(ctx, rows, "ListUnreadFeed", "userID", userID)

	return scanFeedItems(rows)
}

// ListSaved returns every article the user saved, read or not.
func (d *Database) ListSaved(ctx context.Context, userID uuid.UUID, limit int) ([]domain.FeedItem, error) {
	query := `select ` + feedItemColumns + `
	from user_interactions as i
	join news_articles as a on a.id = i.article_id
	left join processed_articles as p on p.article_id = a.id
	where i.user_id = ? and i.is_saved = 1
	order by a.published_at desc, a.id
	limit ?`

	rows, err := d.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer d.closeRows(ctx, rows, "ListSaved", "userID", userID)

	return scanFeedItems(rows)
}

func scanFeedItems(rows *sql.Rows) ([]domain.FeedItem, error) {
	items := []domain.FeedItem{}

	for rows.Next() {
		var (
			item        domain.FeedItem
			publishedAt int64
			topics      string

			summary     sql.NullString
			sentiment   sql.NullString
			explanation sql.NullString
			fallback    sql.NullBool
			model       sql.NullString
			processedAt sql.NullInt64
		)

		err := rows.Scan(
			&item.Article.ID, &item.Article.Title, &item.Article.URL, &item.Article.Source,
			&publishedAt, &item.Article.Content, &topics,
			&summary, &sentiment, &explanation, &fallback, &model, &processedAt,
			&item.IsRead, &item.IsSaved,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		item.Article.PublishedAt = unixTime(publishedAt)
		if item.Article.Topics, err = decodeSet(topics); err != nil {
			return nil, err
		}

		if sentiment.Valid {
			item.Processed = &domain.ProcessedArticle{
				ArticleID:            item.Article.ID,
				Summary:              summary.String,
				Sentiment:            domain.Sentiment(sentiment.String),
				SentimentExplanation: explanation.String,
				Fallback:             fallback.Bool,
				Model:                model.String,
				ProcessedAt:          unixTime(processedAt.Int64),
			}
		}

		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	return items, nil
}
