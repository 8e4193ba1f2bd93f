package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"newsinsight/internal/domain"
)

// CreateUser inserts the user together with an empty preferences row so the
// preferences view always has exactly one row to replace.
func (d *Database) CreateUser(ctx context.Context, user *domain.User) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := d.now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}

	_, err = tx.ExecContext(ctx,
		`insert into users (id, email, display_name, password_hash, created_at)
		values (?, ?, ?, ?, ?)`,
		user.ID, strings.TrimSpace(user.Email), strings.TrimSpace(user.DisplayName),
		user.PasswordHash, user.CreatedAt.Unix())
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrEmailTaken
		}
		return fmt.Errorf("insert user: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`insert into user_preferences (user_id, updated_at) values (?, ?)
		on conflict (user_id) do nothing`,
		user.ID, now.Unix())
	if err != nil {
		return fmt.Errorf("insert preferences: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

func (d *Database) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := d.db.QueryRowContext(ctx,
		`select id, email, display_name, password_hash, created_at
		from users where email = ?`,
		strings.TrimSpace(email))

	return scanUser(row)
}

func scanUser(row *sql.Row) (*domain.User, error) {
	var (
		u         domain.User
		createdAt int64
	)

	err := row.Scan(&u.ID, &u.Email, &u.DisplayName, &u.PasswordHash, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}

	u.CreatedAt = unixTime(createdAt)

	return &u, nil
}
