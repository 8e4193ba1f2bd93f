package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"newsinsight/internal/domain"
	"newsinsight/internal/markdown"
	"newsinsight/internal/ratelimiter"
)

const (
	telegramMessageMaxLength = 4096
	maxSummaryRunes          = 600
	maxTitleRunes            = 120
	maxSourceRunes           = 64
	maxLinkURLBytes          = 512

	digestHeader         = "📰 *News digest*\n\n"
	digestContinueHeader = "📰 *News digest \\(continue\\)*\n\n"
)

// Digest formats processed articles into MarkdownV2 messages and sends them
// through a paced sender.
type Digest struct {
	sender ratelimiter.Sender
	log    *slog.Logger
}

func NewDigest(sender ratelimiter.Sender, log *slog.Logger) *Digest {
	return &Digest{sender: sender, log: log}
}

func (d *Digest) SendDigest(ctx context.Context, chatID int64, entries []domain.DigestEntry) error {
	if len(entries) == 0 {
		return nil
	}

	var errs []error

	for _, text := range FormatDigest(entries) {
		if err := d.sender.Send(ctx, ratelimiter.Message{ChatID: chatID, Text: text}); err != nil {
			errs = append(errs, fmt.Errorf("send digest message: %w", err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}

	d.log.DebugContext(ctx, "Digest is sent",
		"chatID", chatID,
		"entryCount", len(entries))

	return nil
}

// FormatDigest renders entries in order, starting a new message whenever the
// next entry would push the current one past Telegram's length limit.
func FormatDigest(entries []domain.DigestEntry) []string {
	var messages []string
	var current strings.Builder

	current.WriteString(digestHeader)
	headerLength := current.Len()

	for _, entry := range entries {
		block, ok := formatEntry(entry)
		if !ok {
			continue
		}

		if current.Len() > headerLength && current.Len()+len(block) > telegramMessageMaxLength {
			messages = append(messages, current.String())
			current.Reset()
			current.WriteString(digestContinueHeader)
			headerLength = current.Len()
		}

		current.WriteString(block)
	}

	if current.Len() > headerLength {
		messages = append(messages, current.String())
	}

	return messages
}

func formatEntry(entry domain.DigestEntry) (string, bool) {
	title := truncateRunes(entry.Article.Title, maxTitleRunes)
	articleURL := strings.TrimSpace(entry.Article.URL)
	if title == "" || articleURL == "" {
		return "", false
	}

	var b strings.Builder

	b.WriteString("– *")
	// Oversized URLs lose the link so one entry always fits a message.
	if len(markdown.EscapeLinkURL(articleURL)) > maxLinkURLBytes {
		b.WriteString(markdown.EscapeV2(title))
	} else {
		b.WriteString(markdown.Link(title, articleURL))
	}
	b.WriteString("*\n")

	b.WriteString(sentimentEmoji(entry.Analysis.Sentiment))
	b.WriteString(" _")
	b.WriteString(markdown.EscapeV2(string(entry.Analysis.Sentiment)))
	b.WriteString("_")
	if src := strings.TrimSpace(entry.Article.Source); src != "" {
		b.WriteString(" · ")
		b.WriteString(markdown.EscapeV2(truncateRunes(src, maxSourceRunes)))
	}
	b.WriteString("\n")

	if !entry.Analysis.Fallback {
		b.WriteString(markdown.EscapeV2(truncateRunes(entry.Analysis.Summary, maxSummaryRunes)))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	return b.String(), true
}

func sentimentEmoji(s domain.Sentiment) string {
	switch s {
	case domain.SentimentPositive:
		return "🟢"
	case domain.SentimentNegative:
		return "🔴"
	default:
		return "⚪"
	}
}

func truncateRunes(s string, limit int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return strings.TrimSpace(string(runes[:limit])) + "…"
}
