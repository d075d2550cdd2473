// Package telegram posts announcements to a Telegram chat.
package telegram

import (
	"context"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/SpaceTimerAPI-Admin/christmastech/internal/notifier"
)

// Config holds Telegram bot settings.
type Config struct {
	Token  string `json:"token"`   // Bot token from @BotFather
	ChatID int64  `json:"chat_id"` // chat to announce in
}

// Notifier implements notifier.Notifier on the Telegram bot API.
type Notifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	logger *slog.Logger
}

// New creates a Telegram notifier and verifies the token.
func New(cfg Config, logger *slog.Logger) (*Notifier, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("telegram: token is required")
	}
	if cfg.ChatID == 0 {
		return nil, fmt.Errorf("telegram: chat_id is required")
	}
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram: init bot: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("telegram bot authorized", "username", bot.Self.UserName)

	return &Notifier{bot: bot, chatID: cfg.ChatID, logger: logger}, nil
}

func (n *Notifier) Name() string { return "telegram" }

// Notify delivers text to the configured chat.
func (n *Notifier) Notify(_ context.Context, text string) error {
	for _, chunk := range notifier.Chunk(text, 0) {
		msg := tgbotapi.NewMessage(n.chatID, chunk)
		msg.DisableWebPagePreview = true
		if _, err := n.bot.Send(msg); err != nil {
			return fmt.Errorf("telegram: send: %w", err)
		}
	}
	return nil
}
