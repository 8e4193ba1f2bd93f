package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"newsinsight/internal/domain"

	"github.com/google/uuid"
)

// GetInteraction returns a zero interaction when the user never touched the
// article.
func (d *Database) GetInteraction(ctx context.Context, userID, articleID uuid.UUID) (*domain.Interaction, error) {
	in := domain.Interaction{UserID: userID, ArticleID: articleID}
	var updatedAt int64

	err := d.db.QueryRowContext(ctx,
		`select is_read, is_saved, updated_at
		from user_interactions where user_id = ? and article_id = ?`,
		userID, articleID).
		Scan(&in.IsRead, &in.IsSaved, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return &in, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan interaction: %w", err)
	}

	in.UpdatedAt = unixTime(updatedAt)

	return &in, nil
}

// MarkRead sets is_read on the (user, article) row, creating it if needed.
// is_saved is left as it was.
func (d *Database) MarkRead(ctx context.Context, userID, articleID uuid.UUID) error {
	query := `insert into user_interactions (id, user_id, article_id, is_read, is_saved, updated_at)
	values (?, ?, ?, 1, 0, ?)
	on conflict (user_id, article_id) do update
	set is_read = 1,
		updated_at = excluded.updated_at`

	_, err := d.db.ExecContext(ctx, query, uuid.New(), userID, articleID, d.now().Unix())
	if err != nil {
		return wrapInteractionErr(err)
	}

	return nil
}

// SetSaved writes is_saved on the (user, article) row, creating it if
// needed. is_read is left as it was.
func (d *Database) SetSaved(ctx context.Context, userID, articleID uuid.UUID, saved bool) error {
	query := `insert into user_interactions (id, user_id, article_id, is_read, is_saved, updated_at)
	values (?, ?, ?, 0, ?, ?)
	on conflict (user_id, article_id) do update
	set is_saved = excluded.is_saved,
		updated_at = excluded.updated_at`

	_, err := d.db.ExecContext(ctx, query, uuid.New(), userID, articleID, boolInt(saved), d.now().Unix())
	if err != nil {
		return wrapInteractionErr(err)
	}

	return nil
}

func wrapInteractionErr(err error) error {
	if isForeignKeyViolation(err) {
		return domain.ErrNotFound
	}
	return fmt.Errorf("upsert interaction: %w", err)
}
