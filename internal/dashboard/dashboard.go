package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"newsinsight/internal/domain"

	"github.com/google/uuid"
)

const (
	FeedPageSize = 20
	// SavedListLimit caps the saved tab; it is not paged.
	SavedListLimit = 500
)

type Store interface {
	GetPreferences(ctx context.Context, userID uuid.UUID) (*domain.Preferences, error)
	ReplacePreferences(ctx context.Context, prefs *domain.Preferences) error
	ListUnreadFeed(ctx context.Context, userID uuid.UUID, topics []string, limit int) ([]domain.FeedItem, error)
	ListSaved(ctx context.Context, userID uuid.UUID, limit int) ([]domain.FeedItem, error)
	GetInteraction(ctx context.Context, userID, articleID uuid.UUID) (*domain.Interaction, error)
	MarkRead(ctx context.Context, userID, articleID uuid.UUID) error
	SetSaved(ctx context.Context, userID, articleID uuid.UUID, saved bool) error
	GetUserSettingsWithDefault(ctx context.Context, userID uuid.UUID) (*domain.UserSettings, error)
	UpsertUserSettings(ctx context.Context, userSettings *domain.UserSettings) error
}

// FeedPage is what the feed tab shows. NeedsPreferences is set instead of
// items when the user has no topics yet.
type FeedPage struct {
	Items            []domain.FeedItem
	SavedOnly        bool
	NeedsPreferences bool
}

// Service backs the preferences, feed, saved and settings views. Every call
// takes the caller's session explicitly.
type Service struct {
	store Store
	now   func() time.Time
	log   *slog.Logger
}

func New(store Store, log *slog.Logger) *Service {
	return &Service{store: store, now: time.Now, log: log}
}

func (s *Service) userID(session *domain.Session) (uuid.UUID, error) {
	if session == nil || session.UserID == uuid.Nil {
		return uuid.Nil, domain.ErrUnauthorized
	}
	if session.Expired(s.now()) {
		return uuid.Nil, domain.ErrSessionExpired
	}
	return session.UserID, nil
}

func (s *Service) LoadPreferences(ctx context.Context, session *domain.Session) (*domain.Preferences, error) {
	userID, err := s.userID(session)
	if err != nil {
		return nil, err
	}

	prefs, err := s.store.GetPreferences(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get preferences: %w", err)
	}

	return prefs, nil
}

// SavePreferences replaces the stored triple with the draft. Concurrent saves
// are not detected; the last one wins.
func (s *Service) SavePreferences(
	ctx context.Context,
	session *domain.Session,
	draft domain.PreferenceDraft,
) (*domain.Preferences, error) {
	userID, err := s.userID(session)
	if err != nil {
		return nil, err
	}

	normalized := draft.Normalized()
	prefs := &domain.Preferences{
		UserID:           userID,
		Topics:           normalized.Topics,
		Keywords:         normalized.Keywords,
		PreferredSources: normalized.PreferredSources,
	}

	if err = s.store.ReplacePreferences(ctx, prefs); err != nil {
		return nil, fmt.Errorf("replace preferences: %w", err)
	}

	s.log.InfoContext(ctx, "Preferences are saved",
		"userID", userID,
		"topicCount", len(prefs.Topics),
		"keywordCount", len(prefs.Keywords),
		"sourceCount", len(prefs.PreferredSources))

	return s.LoadPreferences(ctx, session)
}

// LoadFeed returns the latest unread page for the user's topics. With
// savedOnly the same page is filtered down to saved articles.
func (s *Service) LoadFeed(ctx context.Context, session *domain.Session, savedOnly bool) (*FeedPage, error) {
	prefs, err := s.LoadPreferences(ctx, session)
	if err != nil {
		return nil, err
	}

	page := &FeedPage{SavedOnly: savedOnly, Items: []domain.FeedItem{}}

	topics := domain.NormalizeSet(prefs.Topics)
	if len(topics) == 0 {
		page.NeedsPreferences = true
		return page, nil
	}

	items, err := s.store.ListUnreadFeed(ctx, prefs.UserID, topics, FeedPageSize)
	if err != nil {
		return nil, fmt.Errorf("list unread feed: %w", err)
	}

	for _, item := range items {
		if savedOnly && !item.IsSaved {
			continue
		}
		page.Items = append(page.Items, item)
	}

	return page, nil
}

// LoadSaved lists every saved article, read or unread, newest first.
func (s *Service) LoadSaved(ctx context.Context, session *domain.Session) ([]domain.FeedItem, error) {
	userID, err := s.userID(session)
	if err != nil {
		return nil, err
	}

	items, err := s.store.ListSaved(ctx, userID, SavedListLimit)
	if err != nil {
		return nil, fmt.Errorf("list saved: %w", err)
	}
	if items == nil {
		items = []domain.FeedItem{}
	}

	return items, nil
}

func (s *Service) MarkRead(ctx context.Context, session *domain.Session, articleID uuid.UUID) error {
	userID, err := s.userID(session)
	if err != nil {
		return err
	}

	if err = s.store.MarkRead(ctx, userID, articleID); err != nil {
		return fmt.Errorf("mark read: %w", err)
	}

	return nil
}

// ToggleSaved flips is_saved and returns the new value.
func (s *Service) ToggleSaved(ctx context.Context, session *domain.Session, articleID uuid.UUID) (bool, error) {
	userID, err := s.userID(session)
	if err != nil {
		return false, err
	}

	current, err := s.store.GetInteraction(ctx, userID, articleID)
	if err != nil {
		return false, fmt.Errorf("get interaction: %w", err)
	}

	saved := !current.IsSaved
	if err = s.store.SetSaved(ctx, userID, articleID, saved); err != nil {
		return false, fmt.Errorf("set saved: %w", err)
	}

	return saved, nil
}

func (s *Service) LoadSettings(ctx context.Context, session *domain.Session) (*domain.UserSettings, error) {
	userID, err := s.userID(session)
	if err != nil {
		return nil, err
	}

	settings, err := s.store.GetUserSettingsWithDefault(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user settings: %w", err)
	}

	return settings, nil
}

func (s *Service) SaveSettings(
	ctx context.Context,
	session *domain.Session,
	telegramChatID int64,
	digestEnabled bool,
) (*domain.UserSettings, error) {
	userID, err := s.userID(session)
	if err != nil {
		return nil, err
	}

	settings := &domain.UserSettings{
		UserID:         userID,
		TelegramChatID: telegramChatID,
		DigestEnabled:  digestEnabled,
	}
	if err = s.store.UpsertUserSettings(ctx, settings); err != nil {
		return nil, fmt.Errorf("upsert user settings: %w", err)
	}

	return settings, nil
}
