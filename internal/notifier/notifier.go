// Package notifier delivers outbound chat announcements to the crew.
// Delivery is fire-and-forget: a failed post is logged and dropped,
// never retried, and never rolls back the state change that caused it.
package notifier

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/SpaceTimerAPI-Admin/christmastech/pkg/protocol"
)

// Notifier posts a text message to one chat backend.
type Notifier interface {
	// Name returns the backend type (e.g. "groupme", "slack").
	Name() string
	// Notify delivers text to the backend, chunking if necessary.
	Notify(ctx context.Context, text string) error
}

// maxChunkRunes keeps messages under GroupMe's post limit; the other
// backends tolerate the same chunking.
const maxChunkRunes = 900

// Chunk splits text into pieces of at most max runes, preferring to
// break on newlines so report sections stay readable.
func Chunk(text string, max int) []string {
	if max <= 0 {
		max = maxChunkRunes
	}
	runes := []rune(text)
	if len(runes) <= max {
		return []string{text}
	}

	var chunks []string
	for len(runes) > 0 {
		if len(runes) <= max {
			chunks = append(chunks, string(runes))
			break
		}
		cut := max
		for i := max; i > max/2; i-- {
			if runes[i-1] == '\n' {
				cut = i
				break
			}
		}
		chunks = append(chunks, string(runes[:cut]))
		runes = runes[cut:]
	}
	return chunks
}

// Multi fans a notification out to every configured backend. One
// backend failing does not stop the others.
type Multi struct {
	Backends []Notifier
	Logger   *slog.Logger
}

func (m *Multi) Name() string { return "multi" }

func (m *Multi) Notify(ctx context.Context, text string) error {
	logger := m.Logger
	if logger == nil {
		logger = slog.Default()
	}
	var firstErr error
	for _, n := range m.Backends {
		if err := n.Notify(ctx, text); err != nil {
			logger.Error("notification failed", "backend", n.Name(), "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("notifier: %s: %w", n.Name(), err)
			}
		}
	}
	return firstErr
}

// Nop discards notifications. Used when no backend is configured.
type Nop struct{}

func (Nop) Name() string { return "nop" }

func (Nop) Notify(context.Context, string) error { return nil }

// TicketURL is the crew-facing link for a ticket.
func TicketURL(siteBaseURL string, id int64) string {
	return fmt.Sprintf("%s/ticket.html?id=%d", siteBaseURL, id)
}

// FormatNewTicket renders the announcement for a freshly created ticket.
func FormatNewTicket(t *protocol.Ticket, siteBaseURL string) string {
	text := fmt.Sprintf("🚨 NEW Ticket #%d created by %s\n%s\n%q\n",
		t.ID, t.TechName, t.Location, clip(t.Description, 200))
	if t.PhotoURL != "" {
		text += "Photo: " + t.PhotoURL + "\n"
	}
	return text + TicketURL(siteBaseURL, t.ID)
}

// FormatEvent renders the announcement for a lifecycle transition.
func FormatEvent(ev protocol.LifecycleEvent, t *protocol.Ticket, siteBaseURL string) string {
	location := t.Location
	if location == "" {
		location = "(no location)"
	}
	link := TicketURL(siteBaseURL, t.ID)
	switch ev.New {
	case protocol.StatusFixed:
		return fmt.Sprintf("🎄 Ticket #%d fixed – %s\nMarked fixed in the system.\n%s", t.ID, location, link)
	case protocol.StatusOpen:
		return fmt.Sprintf("🔁 Ticket #%d reopened – %s\n%s", t.ID, location, link)
	}
	return fmt.Sprintf("Ticket #%d is now %s – %s\n%s", t.ID, ev.New, location, link)
}

// clip truncates s to max runes with an ellipsis.
func clip(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
