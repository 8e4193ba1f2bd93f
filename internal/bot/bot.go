package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"newsinsight/internal/ratelimiter"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

const updateProcessingTimeout = 60 * time.Second

// Bot is the Telegram side of digests: it delivers MarkdownV2 messages and
// answers /start with the chat ID a user pastes into their settings.
type Bot struct {
	api *tgbot.Bot
	log *slog.Logger
}

func New(token string, log *slog.Logger) (*Bot, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errors.New("telegram token is empty")
	}

	b := &Bot{log: log}

	api, err := tgbot.New(token,
		tgbot.WithSkipGetMe(),
		tgbot.WithDefaultHandler(b.handleDefault),
		tgbot.WithErrorsHandler(func(err error) {
			log.Error("Telegram polling error", "error", err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	api.RegisterHandler(tgbot.HandlerTypeMessageText, "/start", tgbot.MatchTypePrefix, b.handleStart)
	b.api = api

	return b, nil
}

// Start long-polls for updates until ctx is done.
func (b *Bot) Start(ctx context.Context) {
	b.log.InfoContext(ctx, "Telegram bot is started")
	b.api.Start(ctx)
	b.log.InfoContext(ctx, "Bot context is done",
		"error", ctx.Err())
}

// Send delivers one MarkdownV2 message without link previews.
func (b *Bot) Send(ctx context.Context, msg ratelimiter.Message) error {
	_, err := b.api.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID:             msg.ChatID,
		Text:               msg.Text,
		ParseMode:          models.ParseModeMarkdown,
		LinkPreviewOptions: &models.LinkPreviewOptions{IsDisabled: tgbot.True()},
	})
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}

	return nil
}

func (b *Bot) handleStart(ctx context.Context, _ *tgbot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}

	updateCtx, cancel := context.WithTimeout(ctx, updateProcessingTimeout)
	defer cancel()

	chatID := update.Message.Chat.ID

	err := b.Send(updateCtx, ratelimiter.Message{ChatID: chatID, Text: welcomeText(chatID)})
	if err != nil {
		b.log.ErrorContext(updateCtx, "Failed to handle message",
			"error", err,
			"chatID", chatID,
			"chatType", update.Message.Chat.Type,
			"messageID", update.Message.ID)
	}
}

func (b *Bot) handleDefault(ctx context.Context, _ *tgbot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}

	b.log.DebugContext(ctx, "Ignoring update",
		"chatID", update.Message.Chat.ID,
		"updateID", update.ID)
}
