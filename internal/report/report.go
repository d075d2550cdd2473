// Package report renders the recurring open-ticket summary posted to
// the crew chat. Open tickets with no comments yet are listed first as
// the priority section for the next walk-around.
package report

import (
	"fmt"
	"strings"

	"github.com/SpaceTimerAPI-Admin/christmastech/internal/notifier"
	"github.com/SpaceTimerAPI-Admin/christmastech/pkg/protocol"
)

// Build renders the report text for the given open tickets. commented
// says which tickets already have at least one comment. The result is a
// single message; callers chunk it for delivery.
func Build(open []*protocol.Ticket, commented map[int64]bool, siteBaseURL string) string {
	if len(open) == 0 {
		return "🎄 5pm report: No open light issues. Nice work!"
	}

	var priority, updated []*protocol.Ticket
	for _, t := range open {
		if commented[t.ID] {
			updated = append(updated, t)
		} else {
			priority = append(priority, t)
		}
	}

	var lines []string
	lines = append(lines,
		"🎄 5pm Report — please prioritize the below tickets during the next walk-around",
		"",
		"Submit a new ticket: "+siteBaseURL+"/new",
		"",
		"Ticket system guidance:",
		"- The ticket system is for issues that troubleshooting did not fix.",
		"- Always try to fix the issue before making a ticket.",
		"",
		"=== Priority Tickets (Open • No comments/updates yet) ===",
	)
	lines = append(lines, section(priority, siteBaseURL)...)
	lines = append(lines, "", "=== Open Tickets (With comments/updates) ===")
	lines = append(lines, section(updated, siteBaseURL)...)
	lines = append(lines, "", "To view all open tickets and the map, visit "+siteBaseURL+"/dashboard.")

	return strings.Join(lines, "\n")
}

func section(tickets []*protocol.Ticket, siteBaseURL string) []string {
	if len(tickets) == 0 {
		return []string{"None ✅"}
	}
	lines := make([]string, 0, len(tickets))
	for _, t := range tickets {
		location := t.Location
		if location == "" {
			location = "(no location)"
		}
		lines = append(lines, fmt.Sprintf("- #%d • %s • %s", t.ID, location, notifier.TicketURL(siteBaseURL, t.ID)))
	}
	return lines
}
