// Package slackn posts announcements to a Slack channel.
package slackn

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/slack-go/slack"

	"github.com/SpaceTimerAPI-Admin/christmastech/internal/notifier"
)

// Config holds Slack notifier settings.
type Config struct {
	BotToken string `json:"bot_token"` // xoxb-... Bot User OAuth Token
	Channel  string `json:"channel"`   // channel ID to announce in
}

// Notifier implements notifier.Notifier on the Slack Web API.
type Notifier struct {
	api     *slack.Client
	channel string
	logger  *slog.Logger
}

// New creates a Slack notifier and verifies the token.
func New(cfg Config, logger *slog.Logger) (*Notifier, error) {
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("slack: bot_token is required")
	}
	if cfg.Channel == "" {
		return nil, fmt.Errorf("slack: channel is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	api := slack.New(cfg.BotToken)
	authResp, err := api.AuthTest()
	if err != nil {
		return nil, fmt.Errorf("slack: auth test: %w", err)
	}
	logger.Info("slack bot authorized", "user", authResp.User, "team", authResp.Team)

	return &Notifier{api: api, channel: cfg.Channel, logger: logger}, nil
}

func (n *Notifier) Name() string { return "slack" }

// Notify delivers text to the configured channel.
func (n *Notifier) Notify(ctx context.Context, text string) error {
	for _, chunk := range notifier.Chunk(text, 0) {
		_, _, err := n.api.PostMessageContext(ctx, n.channel, slack.MsgOptionText(chunk, false))
		if err != nil {
			return fmt.Errorf("slack: post message: %w", err)
		}
	}
	return nil
}
