package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"newsinsight/internal/domain"

	"github.com/google/uuid"
)

// GetPreferences returns empty sets when the user has no preferences row.
func (d *Database) GetPreferences(ctx context.Context, userID uuid.UUID) (*domain.Preferences, error) {
	row := d.db.QueryRowContext(ctx,
		`select user_id, topics, keywords, preferred_sources, updated_at
		from user_preferences where user_id = ?`,
		userID)

	p, err := scanPreferences(row)
	if errors.Is(err, domain.ErrNotFound) {
		return &domain.Preferences{
			UserID:           userID,
			Topics:           []string{},
			Keywords:         []string{},
			PreferredSources: []string{},
		}, nil
	}

	return p, err
}

// ReplacePreferences overwrites the whole triple of sets in one statement.
func (d *Database) ReplacePreferences(ctx context.Context, prefs *domain.Preferences) error {
	topics, err := encodeSet(domain.NormalizeSet(prefs.Topics))
	if err != nil {
		return err
	}
	keywords, err := encodeSet(domain.NormalizeSet(prefs.Keywords))
	if err != nil {
		return err
	}
	sources, err := encodeSet(domain.NormalizeSet(prefs.PreferredSources))
	if err != nil {
		return err
	}

	query := `insert into user_preferences (user_id, topics, keywords, preferred_sources, updated_at)
	values (?, ?, ?, ?, ?)
	on conflict (user_id) do update
	set topics = excluded.topics,
		keywords = excluded.keywords,
		preferred_sources = excluded.preferred_sources,
		updated_at = excluded.updated_at`

	_, err = d.db.ExecContext(ctx, query, prefs.UserID, topics, keywords, sources, d.now().Unix())
	if err != nil {
		return fmt.Errorf("upsert preferences: %w", err)
	}

	return nil
}

func (d *Database) ListPreferences(ctx context.Context) ([]domain.Preferences, error) {
	rows, err := d.db.QueryContext(ctx,
		`select user_id, topics, keywords, preferred_sources, updated_at
		from user_preferences order by user_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer d.closeRows(ctx, rows, "ListPreferences")

	var prefs []domain.Preferences
	for rows.Next() {
		p, scanErr := scanPreferences(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		prefs = append(prefs, *p)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	return prefs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPreferences(row rowScanner) (*domain.Preferences, error) {
	var (
		p                         domain.Preferences
		topics, keywords, sources string
		updatedAt                 int64
	)

	err := row.Scan(&p.UserID, &topics, &keywords, &sources, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}

	if p.Topics, err = decodeSet(topics); err != nil {
		return nil, err
	}
	if p.Keywords, err = decodeSet(keywords); err != nil {
		return nil, err
	}
	if p.PreferredSources, err = decodeSet(sources); err != nil {
		return nil, err
	}
	p.UpdatedAt = unixTime(updatedAt)

	return &p, nil
}
