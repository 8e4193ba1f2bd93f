package database

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"newsinsight/internal/domain"

	"github.com/google/uuid"
)

func newTestDatabase(t *testing.T) *Database {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	db, err := New(context.Background(), filepath.Join(t.TempDir(), "test.sqlite"), log)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("failed to close test database: %v", err)
		}
	})

	return db
}

func createTestUser(t *testing.T, db *Database, email string) *domain.User {
	t.Helper()

	user := &domain.User{
		ID:           uuid.New(),
		Email:        email,
		DisplayName:  "Tester",
		PasswordHash: "hash",
	}
	if err := db.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	return user
}

func createTestArticle(t *testing.T, db *Database, url string, published time.Time, topics ...string) *domain.Article {
	t.Helper()

	article := &domain.Article{
		Title:       "Title " + url,
		URL:         url,
		Source:      "Example",
		PublishedAt: published,
		Content:     "content",
		Topics:      topics,
	}
	if err := db.UpsertArticle(context.Background(), article); err != nil {
		t.Fatalf("failed to upsert article: %v", err)
	}

	return article
}

func TestCreateUserRejectsDuplicateEmail(t *testing.T) {
	db := newTestDatabase(t)
	createTestUser(t, db, "reader@example.com")

	err := db.CreateUser(context.Background(), &domain.User{
		ID:           uuid.New(),
		Email:        "Reader@Example.com",
		DisplayName:  "Other",
		PasswordHash: "hash",
	})
	if !errors.Is(err, domain.ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestCreateUserCreatesEmptyPreferences(t *testing.T) {
	db := newTestDatabase(t)
	user := createTestUser(t, db, "reader@example.com")

	all, err := db.ListPreferences(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 1 || all[0].UserID != user.ID {
		t.Fatalf("expected one preferences row for the new user, got %+v", all)
	}
	if len(all[0].Topics) != 0 || len(all[0].Keywords) != 0 || len(all[0].PreferredSources) != 0 {
		t.Fatalf("expected empty sets, got %+v", all[0])
	}
}

func TestReplacePreferencesRoundTrip(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()
	user := createTestUser(t, db, "reader@example.com")

	for _, prefs := range []domain.Preferences{
		{Topics: []string{"tech", "science"}, Keywords: []string{"AI"}, PreferredSources: []string{"BBC"}},
		{Topics: []string{"politics"}, Keywords: []string{}, PreferredSources: []string{"CNN", "Reuters"}},
	} {
		prefs.UserID = user.ID
		if err := db.ReplacePreferences(ctx, &prefs); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		got, err := db.GetPreferences(ctx, user.ID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if !slices.Equal(got.Topics, prefs.Topics) ||
			!slices.Equal(got.Keywords, prefs.Keywords) ||
			!slices.Equal(got.PreferredSources, prefs.PreferredSources) {
			t.Fatalf("reloaded preferences differ: got %+v want %+v", got, prefs)
		}
	}

	all, err := db.ListPreferences(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected a single preferences row, got %d", len(all))
	}
}

func TestGetPreferencesWithoutRow(t *testing.T) {
	db := newTestDatabase(t)

	prefs, err := db.GetPreferences(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if prefs.Topics == nil || len(prefs.Topics) != 0 {
		t.Fatalf("expected empty non-nil topics, got %#v", prefs.Topics)
	}
}

func TestUpsertArticleUpdatesExistingURL(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()
	published := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)

	first := createTestArticle(t, db, "https://example.com/a", published, "tech")

	second := &domain.Article{
		Title:       "Updated title",
		URL:         " https://example.com/a ",
		Source:      "Other",
		PublishedAt: published.Add(time.Hour),
		Content:     "new content",
		Topics:      []string{"science"},
	}
	if err := db.UpsertArticle(ctx, second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if second.ID != first.ID {
		t.Fatalf("expected upsert to keep ID %s, got %s", first.ID, second.ID)
	}

	n, err := db.countArticlesByURL(ctx, "https://example.com/a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected a single row for the URL, got %d", n)
	}

	stored, err := db.getArticle(ctx, first.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored.Title != "Updated title" || stored.Content != "new content" || !slices.Equal(stored.Topics, []string{"science"}) {
		t.Fatalf("expected row to be updated in place, got %+v", stored)
	}
	if !stored.PublishedAt.Equal(published) {
		t.Fatalf("expected published_at to be kept, got %v", stored.PublishedAt)
	}
}

func TestUpsertProcessedArticleKeepsOneRow(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()
	article := createTestArticle(t, db, "https://example.com/a", time.Now(), "tech")

	for _, sentiment := range []domain.Sentiment{domain.SentimentPositive, domain.SentimentNegative} {
		err := db.UpsertProcessedArticle(ctx, &domain.ProcessedArticle{
			ArticleID:            article.ID,
			Summary:              "summary " + string(sentiment),
			Sentiment:            sentiment,
			SentimentExplanation: "because",
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	got, err := db.getProcessedArticle(ctx, article.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Sentiment != domain.SentimentNegative || got.Summary != "summary negative" {
		t.Fatalf("expected latest annotation, got %+v", got)
	}

	if err = db.UpsertProcessedArticle(ctx, &domain.ProcessedArticle{ArticleID: article.ID, Sentiment: "mixed"}); err == nil {
		t.Fatalf("expected invalid sentiment to be rejected")
	}
}

func TestListUnreadFeed(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()
	user := createTestUser(t, db, "reader@example.com")
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	older := createTestArticle(t, db, "https://example.com/older", base, "tech")
	newer := createTestArticle(t, db, "https://example.com/newer", base.Add(2*time.Hour), "science", "tech")
	read := createTestArticle(t, db, "https://example.com/read", base.Add(3*time.Hour), "tech")
	createTestArticle(t, db, "https://example.com/other", base.Add(4*time.Hour), "politics")

	if err := db.MarkRead(ctx, user.ID, read.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := db.UpsertProcessedArticle(ctx, &domain.ProcessedArticle{
		ArticleID:            newer.ID,
		Summary:              "summary",
		Sentiment:            domain.SentimentPositive,
		SentimentExplanation: "good news",
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	items, err := db.ListUnreadFeed(ctx, user.ID, []string{"tech"}, 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].Article.ID != newer.ID || items[1].Article.ID != older.ID {
		t.Fatalf("expected newest first, got %s then %s", items[0].Article.URL, items[1].Article.URL)
	}
	if items[0].Processed == nil || items[0].Processed.Sentiment != domain.SentimentPositive {
		t.Fatalf("expected processed annotation on newer item, got %+v", items[0].Processed)
	}
	if items[1].Processed != nil {
		t.Fatalf("expected no annotation on older item, got %+v", items[1].Processed)
	}
}

func TestListUnreadFeedRespectsLimit(t *testing.T) {
	db := newTestDatabase(t)
	user := createTestUser(t, db, "reader@example.com")
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := range 25 {
		createTestArticle(t, db, fmt.Sprintf("https://example.com/%d", i), base.Add(time.Duration(i)*time.Minute), "tech")
	}

	items, err := db.ListUnreadFeed(context.Background(), user.ID, []string{"tech"}, 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 20 {
		t.Fatalf("expected 20 items, got %d", len(items))
	}
	if items[0].Article.URL != "https://example.com/24" {
		t.Fatalf("expected newest article first, got %s", items[0].Article.URL)
	}
}

func TestMarkReadIsIdempotent(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()
	user := createTestUser(t, db, "reader@example.com")
	article := createTestArticle(t, db, "https://example.com/a", time.Now(), "tech")

	for range 2 {
		if err := db.MarkRead(ctx, user.ID, article.ID); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	n, err := db.countInteractions(ctx, user.ID, article.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected exactly one interaction row, got %d", n)
	}

	in, err := db.GetInteraction(ctx, user.ID, article.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !in.IsRead {
		t.Fatalf("expected is_read to be true")
	}
}

func TestSetSavedKeepsReadFlag(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()
	user := createTestUser(t, db, "reader@example.com")
	article := createTestArticle(t, db, "https://example.com/a", time.Now(), "tech")

	if err := db.MarkRead(ctx, user.ID, article.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := db.SetSaved(ctx, user.ID, article.ID, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	in, err := db.GetInteraction(ctx, user.ID, article.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !in.IsRead || !in.IsSaved {
		t.Fatalf("expected read and saved, got %+v", in)
	}

	saved, err := db.ListSaved(ctx, user.ID, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(saved) != 1 || !saved[0].IsSaved || !saved[0].IsRead {
		t.Fatalf("expected saved read article in saved list, got %+v", saved)
	}
}

func TestSetSavedUnknownArticle(t *testing.T) {
	db := newTestDatabase(t)
	user := createTestUser(t, db, "reader@example.com")

	err := db.SetSaved(context.Background(), user.ID, uuid.New(), true)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSessions(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()
	user := createTestUser(t, db, "reader@example.com")
	now := time.Now().UTC().Truncate(time.Second)

	live := &domain.Session{ID: uuid.New(), UserID: user.ID, CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	stale := &domain.Session{ID: uuid.New(), UserID: user.ID, CreatedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour)}

	for _, s := range []*domain.Session{live, stale} {
		if err := db.CreateSession(ctx, s); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	got, err := db.GetSession(ctx, live.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Email != "reader@example.com" || !got.ExpiresAt.Equal(live.ExpiresAt) {
		t.Fatalf("unexpected session: %+v", got)
	}

	purged, err := db.DeleteExpiredSessions(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if purged != 1 {
		t.Fatalf("expected one expired session to be purged, got %d", purged)
	}

	if err = db.DeleteSession(ctx, live.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err = db.GetSession(ctx, live.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestUserSettingsDefaultAndUpsert(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()
	user := createTestUser(t, db, "reader@example.com")

	got, err := db.GetUserSettingsWithDefault(ctx, user.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.WantsDigest() {
		t.Fatalf("expected digest to be disabled by default")
	}

	want := domain.UserSettings{UserID: user.ID, TelegramChatID: 42, DigestEnabled: true}
	if err = db.UpsertUserSettings(ctx, &want); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err = db.GetUserSettingsWithDefault(ctx, user.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *got != want {
		t.Fatalf("unexpected settings: got %+v want %+v", *got, want)
	}
}

func TestDigestLedger(t *testing.T) {
	ctx := context.Background()
	db := newTestDatabase(t)
	user := createTestUser(t, db, "digest@example.com")
	other := createTestUser(t, db, "other@example.com")
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	first := createTestArticle(t, db, "https://example.com/one", now, "ai")
	second := createTestArticle(t, db, "https://example.com/two", now, "ai")
	ids := []uuid.UUID{first.ID, second.ID}

	digested, err := db.DigestedArticleIDs(ctx, user.ID, ids)
	if err != nil {
		t.Fatalf("DigestedArticleIDs() error = %v", err)
	}
	if len(digested) != 0 {
		t.Fatalf("expected nothing digested yet, got %v", digested)
	}

	for range 2 {
		if err = db.MarkDigested(ctx, user.ID, []uuid.UUID{first.ID}, now); err != nil {
			t.Fatalf("MarkDigested() error = %v", err)
		}
	}

	digested, err = db.DigestedArticleIDs(ctx, user.ID, ids)
	if err != nil {
		t.Fatalf("DigestedArticleIDs() error = %v", err)
	}
	if !digested[first.ID] || digested[second.ID] || len(digested) != 1 {
		t.Fatalf("unexpected digested set: %v", digested)
	}

	digested, err = db.DigestedArticleIDs(ctx, other.ID, ids)
	if err != nil {
		t.Fatalf("DigestedArticleIDs() error = %v", err)
	}
	if len(digested) != 0 {
		t.Fatalf("expected ledger to be per user, got %v", digested)
	}

	err = db.MarkDigested(ctx, user.ID, []uuid.UUID{uuid.New()}, now)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown article, got %v", err)
	}
}
