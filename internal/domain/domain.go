package domain

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID           uuid.UUID
	Email        string
	DisplayName  string
	PasswordHash string
	CreatedAt    time.Time
}

// Session is the explicit identity handed to every view. It is created on
// sign-in and removed on sign-out.
type Session struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	Email       string
	DisplayName string
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

func (s *Session) Expired(now time.Time) bool {
	return s == nil || !now.Before(s.ExpiresAt)
}

type Preferences struct {
	UserID           uuid.UUID
	Topics           []string
	Keywords         []string
	PreferredSources []string
	UpdatedAt        time.Time
}

type Article struct {
	ID          uuid.UUID
	Title       string
	URL         string
	Source      string
	PublishedAt time.Time
	Content     string
	Topics      []string
}

type ProcessedArticle struct {
	ArticleID            uuid.UUID
	Summary              string
	Sentiment            Sentiment
	SentimentExplanation string
	Fallback             bool
	Model                string
	ProcessedAt          time.Time
}

type Interaction struct {
	UserID    uuid.UUID
	ArticleID uuid.UUID
	IsRead    bool
	IsSaved   bool
	UpdatedAt time.Time
}

// FeedItem is an article as seen by one user: the processed annotation may be
// missing when ingestion has not analyzed the article yet.
type FeedItem struct {
	Article   Article
	Processed *ProcessedArticle
	IsRead    bool
	IsSaved   bool
}

type UserSettings struct {
	UserID         uuid.UUID
	TelegramChatID int64
	DigestEnabled  bool
}

func (s UserSettings) WantsDigest() bool {
	return s.DigestEnabled && s.TelegramChatID != 0
}
