package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"newsinsight/internal/domain"

	"github.com/google/uuid"
)

func (d *Database) CreateSession(ctx context.Context, session *domain.Session) error {
	_, err := d.db.ExecContext(ctx,
		"insert into sessions (id, user_id, created_at, expires_at) values (?, ?, ?, ?)",
		session.ID, session.UserID, session.CreatedAt.Unix(), session.ExpiresAt.Unix())
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	return nil
}

func (d *Database) GetSession(ctx context.Context, sessionID uuid.UUID) (*domain.Session, error) {
	var (
		s         domain.Session
		createdAt int64
		expiresAt int64
	)

	err := d.db.QueryRowContext(ctx,
		`select s.id, s.user_id, u.email, u.display_name, s.created_at, s.expires_at
		from sessions as s
		join users as u on u.id = s.user_id
		where s.id = ?`,
		sessionID).
		Scan(&s.ID, &s.UserID, &s.Email, &s.DisplayName, &createdAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan session: %w", err)
	}

	s.CreatedAt = unixTime(createdAt)
	s.ExpiresAt = unixTime(expiresAt)

	return &s, nil
}

func (d *Database) DeleteSession(ctx context.Context, sessionID uuid.UUID) error {
	_, err := d.db.ExecContext(ctx, "delete from sessions where id = ?", sessionID)

	return err
}

func (d *Database) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	res, err := d.db.ExecContext(ctx, "delete from sessions where expires_at <= ?", d.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}

	return res.RowsAffected()
}
