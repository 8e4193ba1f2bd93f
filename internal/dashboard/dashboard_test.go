package dashboard_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"newsinsight/internal/dashboard"
	"newsinsight/internal/database"
	"newsinsight/internal/domain"

	"github.com/google/uuid"
)

type fixture struct {
	db      *database.Database
	svc     *dashboard.Service
	session *domain.Session
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	ctx := context.Background()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := database.New(ctx, filepath.Join(t.TempDir(), "dashboard.sqlite"), log)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	user := &domain.User{ID: uuid.New(), Email: "reader@example.com", DisplayName: "Reader", PasswordHash: "x"}
	if err = db.CreateUser(ctx, user); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	return &fixture{
		db:  db,
		svc: dashboard.New(db, log),
		session: &domain.Session{
			ID:        uuid.New(),
			UserID:    user.ID,
			Email:     user.Email,
			ExpiresAt: time.Now().Add(time.Hour),
		},
	}
}

func (f *fixture) addArticle(t *testing.T, url string, published time.Time, topics ...string) uuid.UUID {
	t.Helper()

	a := &domain.Article{Title: url, URL: url, Source: "Test", PublishedAt: published, Topics: topics}
	if err := f.db.UpsertArticle(context.Background(), a); err != nil {
		t.Fatalf("failed to upsert article: %v", err)
	}
	return a.ID
}

func (f *fixture) savePrefs(t *testing.T, topics ...string) {
	t.Helper()

	if _, err := f.svc.SavePreferences(context.Background(), f.session,
		domain.PreferenceDraft{Topics: topics}); err != nil {
		t.Fatalf("SavePreferences() error = %v", err)
	}
}

func TestPreferencesRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	prefs, err := f.svc.LoadPreferences(ctx, f.session)
	if err != nil {
		t.Fatalf("LoadPreferences() error = %v", err)
	}
	if len(prefs.Topics)+len(prefs.Keywords)+len(prefs.PreferredSources) != 0 {
		t.Fatalf("expected empty preferences, got %+v", prefs)
	}

	draft := domain.DraftFrom(*prefs)
	draft.Add(domain.PreferenceTopic, "ai")
	draft.Add(domain.PreferenceTopic, " climate ")
	draft.Add(domain.PreferenceTopic, "ai")
	draft.Add(domain.PreferenceKeyword, "open source")
	draft.Add(domain.PreferenceSource, "BBC")
	draft.Remove(domain.PreferenceSource, "BBC")
	draft.Add(domain.PreferenceSource, "Reuters")

	saved, err := f.svc.SavePreferences(ctx, f.session, draft)
	if err != nil {
		t.Fatalf("SavePreferences() error = %v", err)
	}

	if !slices.Equal(saved.Topics, []string{"ai", "climate"}) ||
		!slices.Equal(saved.Keywords, []string{"open source"}) ||
		!slices.Equal(saved.PreferredSources, []string{"Reuters"}) {
		t.Fatalf("unexpected saved preferences: %+v", saved)
	}

	reloaded, err := f.svc.LoadPreferences(ctx, f.session)
	if err != nil {
		t.Fatalf("LoadPreferences() error = %v", err)
	}
	if !slices.Equal(reloaded.Topics, saved.Topics) || !slices.Equal(reloaded.Keywords, saved.Keywords) {
		t.Fatalf("reload mismatch: %+v vs %+v", reloaded, saved)
	}
}

func TestLoadFeedNeedsPreferences(t *testing.T) {
	f := newFixture(t)

	page, err := f.svc.LoadFeed(context.Background(), f.session, false)
	if err != nil {
		t.Fatalf("LoadFeed() error = %v", err)
	}
	if !page.NeedsPreferences || len(page.Items) != 0 {
		t.Fatalf("expected needs-preferences page, got %+v", page)
	}
}

func TestLoadFeedFiltersAndOrders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	f.savePrefs(t, "ai")
	older := f.addArticle(t, "https://example.com/older", base, "ai")
	newer := f.addArticle(t, "https://example.com/newer", base.Add(time.Hour), "ai", "chips")
	f.addArticle(t, "https://example.com/other", base.Add(2*time.Hour), "sports")

	page, err := f.svc.LoadFeed(ctx, f.session, false)
	if err != nil {
		t.Fatalf("LoadFeed() error = %v", err)
	}
	if len(page.Items) != 2 || page.Items[0].Article.ID != newer || page.Items[1].Article.ID != older {
		t.Fatalf("unexpected feed order: %+v", page.Items)
	}

	if err = f.svc.MarkRead(ctx, f.session, newer); err != nil {
		t.Fatalf("MarkRead() error = %v", err)
	}
	if err = f.svc.MarkRead(ctx, f.session, newer); err != nil {
		t.Fatalf("second MarkRead() error = %v", err)
	}

	in, err := f.db.GetInteraction(ctx, f.session.UserID, newer)
	if err != nil || !in.IsRead || in.IsSaved {
		t.Fatalf("unexpected interaction after repeated MarkRead: %+v (err %v)", in, err)
	}

	page, err = f.svc.LoadFeed(ctx, f.session, false)
	if err != nil {
		t.Fatalf("LoadFeed() error = %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].Article.ID != older {
		t.Fatalf("expected read article to disappear, got %+v", page.Items)
	}
}

func TestLoadFeedPageSize(t *testing.T) {
	f := newFixture(t)
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	f.savePrefs(t, "ai")
	for i := range dashboard.FeedPageSize + 5 {
		f.addArticle(t, "https://example.com/"+uuid.NewString(), base.Add(time.Duration(i)*time.Minute), "ai")
	}

	page, err := f.svc.LoadFeed(context.Background(), f.session, false)
	if err != nil {
		t.Fatalf("LoadFeed() error = %v", err)
	}
	if len(page.Items) != dashboard.FeedPageSize {
		t.Fatalf("expected %d items, got %d", dashboard.FeedPageSize, len(page.Items))
	}
}

func TestToggleSaved(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.savePrefs(t, "ai")
	id := f.addArticle(t, "https://example.com/a", time.Now(), "ai")
	f.addArticle(t, "https://example.com/b", time.Now().Add(-time.Hour), "ai")

	saved, err := f.svc.ToggleSaved(ctx, f.session, id)
	if err != nil || !saved {
		t.Fatalf("first ToggleSaved() = %v, %v", saved, err)
	}

	page, err := f.svc.LoadFeed(ctx, f.session, true)
	if err != nil {
		t.Fatalf("LoadFeed() error = %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].Article.ID != id || !page.Items[0].IsSaved {
		t.Fatalf("expected only the saved article, got %+v", page.Items)
	}

	if err = f.svc.MarkRead(ctx, f.session, id); err != nil {
		t.Fatalf("MarkRead() error = %v", err)
	}

	items, err := f.svc.LoadSaved(ctx, f.session)
	if err != nil {
		t.Fatalf("LoadSaved() error = %v", err)
	}
	if len(items) != 1 || !items[0].IsRead || !items[0].IsSaved {
		t.Fatalf("expected saved list to keep read article, got %+v", items)
	}

	saved, err = f.svc.ToggleSaved(ctx, f.session, id)
	if err != nil || saved {
		t.Fatalf("second ToggleSaved() = %v, %v", saved, err)
	}

	in, err := f.db.GetInteraction(ctx, f.session.UserID, id)
	if err != nil {
		t.Fatalf("GetInteraction() error = %v", err)
	}
	if in.IsSaved || !in.IsRead {
		t.Fatalf("expected unsaved but still read, got %+v", in)
	}
}

func TestToggleSavedUnknownArticle(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.ToggleSaved(context.Background(), f.session, uuid.New())
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSettings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	got, err := f.svc.LoadSettings(ctx, f.session)
	if err != nil || got.WantsDigest() {
		t.Fatalf("unexpected default settings %+v, err %v", got, err)
	}

	if _, err = f.svc.SaveSettings(ctx, f.session, 42, true); err != nil {
		t.Fatalf("SaveSettings() error = %v", err)
	}

	got, err = f.svc.LoadSettings(ctx, f.session)
	if err != nil || got.TelegramChatID != 42 || !got.DigestEnabled {
		t.Fatalf("unexpected settings %+v, err %v", got, err)
	}
}

func TestRejectsMissingOrExpiredSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.LoadFeed(ctx, nil, false); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	expired := *f.session
	expired.ExpiresAt = time.Now().Add(-time.Minute)
	if _, err := f.svc.LoadPreferences(ctx, &expired); !errors.Is(err, domain.ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
}
