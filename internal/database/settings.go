package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"newsinsight/internal/domain"

	"github.com/google/uuid"
)

func (d *Database) GetUserSettingsWithDefault(
	ctx context.Context,
	userID uuid.UUID,
) (*domain.UserSettings, error) {
	us := domain.UserSettings{UserID: userID}

	err := d.db.QueryRowContext(ctx,
		`select telegram_chat_id, digest_enabled
		from user_settings
		where user_id = ?`,
		userID).
		Scan(&us.TelegramChatID, &us.DigestEnabled)
	if errors.Is(err, sql.ErrNoRows) {
		return &us, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}

	return &us, nil
}

func (d *Database) UpsertUserSettings(ctx context.Context, userSettings *domain.UserSettings) error {
	query := `insert into user_settings (user_id, telegram_chat_id, digest_enabled)
	values (?, ?, ?)
	on conflict (user_id) do update
	set telegram_chat_id = excluded.telegram_chat_id,
		digest_enabled = excluded.digest_enabled`

	_, err := d.db.ExecContext(ctx, query,
		userSettings.UserID, userSettings.TelegramChatID, boolInt(userSettings.DigestEnabled))

	return err
}
