package database

import (
	"context"
	"fmt"
	"time"

	"newsinsight/internal/domain"

	"github.com/google/uuid"
)

// DigestedArticleIDs returns which of articleIDs were already delivered to
// the user in a digest.
func (d *Database) DigestedArticleIDs(
	ctx context.Context,
	userID uuid.UUID,
	articleIDs []uuid.UUID,
) (map[uuid.UUID]bool, error) {
	digested := make(map[uuid.UUID]bool, len(articleIDs))
	if len(articleIDs) == 0 {
		return digested, nil
	}

	idsJSON, err := encodeSet(idStrings(articleIDs))
	if err != nil {
		return nil, err
	}

	rows, err := d.db.QueryContext(ctx,
		`select article_id from user_digests
		where user_id = ?
		and article_id in (select value from json_each(?))`,
		userID, idsJSON)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer d.closeRows(ctx, rows, "DigestedArticleIDs", "userID", userID)

	for rows.Next() {
		var articleID uuid.UUID
		if err = rows.Scan(&articleID); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		digested[articleID] = true
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	return digested, nil
}

// MarkDigested records delivered articles. Already recorded pairs keep their
// original sent_at.
func (d *Database) MarkDigested(
	ctx context.Context,
	userID uuid.UUID,
	articleIDs []uuid.UUID,
	sentAt time.Time,
) error {
	if len(articleIDs) == 0 {
		return nil
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`insert into user_digests (user_id, article_id, sent_at)
		values (?, ?, ?)
		on conflict (user_id, article_id) do nothing`)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, articleID := range articleIDs {
		if _, err = stmt.ExecContext(ctx, userID, articleID, sentAt.Unix()); err != nil {
			if isForeignKeyViolation(err) {
				return fmt.Errorf("mark article %s digested: %w", articleID, domain.ErrNotFound)
			}
			return fmt.Errorf("mark article %s digested: %w", articleID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

func idStrings(ids []uuid.UUID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}
