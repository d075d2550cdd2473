// Package groupme posts announcements through a GroupMe bot. This is
// the crew's primary channel.
package groupme

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/SpaceTimerAPI-Admin/christmastech/internal/notifier"
)

// DefaultPostURL is GroupMe's bot post endpoint.
const DefaultPostURL = "https://api.groupme.com/v3/bots/post"

// Config holds GroupMe bot settings.
type Config struct {
	BotID   string `json:"bot_id"`
	PostURL string `json:"post_url,omitempty"` // defaults to DefaultPostURL
}

// Notifier implements notifier.Notifier against the GroupMe bot API.
type Notifier struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger
}

// New creates a GroupMe notifier.
func New(cfg Config, logger *slog.Logger) (*Notifier, error) {
	if cfg.BotID == "" {
		return nil, fmt.Errorf("groupme: bot_id is required")
	}
	if cfg.PostURL == "" {
		cfg.PostURL = DefaultPostURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}, nil
}

func (n *Notifier) Name() string { return "groupme" }

// Notify posts text to the bot's group, chunking long messages.
func (n *Notifier) Notify(ctx context.Context, text string) error {
	for _, chunk := range notifier.Chunk(text, 0) {
		if err := n.post(ctx, chunk); err != nil {
			return err
		}
	}
	return nil
}

func (n *Notifier) post(ctx context.Context, text string) error {
	payload, err := json.Marshal(map[string]string{
		"bot_id": n.cfg.BotID,
		"text":   text,
	})
	if err != nil {
		return fmt.Errorf("groupme: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.PostURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("groupme: request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("groupme: post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("groupme: post failed with status %d", resp.StatusCode)
	}
	return nil
}
