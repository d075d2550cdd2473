package report

import (
	"strings"
	"testing"

	"github.com/SpaceTimerAPI-Admin/christmastech/pkg/protocol"
)

const site = "https://swoems.com"

func TestBuild_NoOpenTickets(t *testing.T) {
	got := Build(nil, nil, site)
	if !strings.Contains(got, "No open light issues") {
		t.Errorf("report = %q", got)
	}
}

func TestBuild_SplitsPriorityAndUpdated(t *testing.T) {
	open := []*protocol.Ticket{
		{ID: 1, Location: "North Gate Arch"},
		{ID: 2, Location: "Candy Cane Lane"},
		{ID: 3, Location: ""},
	}
	commented := map[int64]bool{2: true}

	got := Build(open, commented, site)

	prioritySection := got[strings.Index(got, "Priority Tickets"):strings.Index(got, "Open Tickets (With")]
	if !strings.Contains(prioritySection, "#1 • North Gate Arch") {
		t.Errorf("ticket 1 missing from priority section:\n%s", prioritySection)
	}
	if !strings.Contains(prioritySection, "#3 • (no location)") {
		t.Errorf("ticket 3 placeholder missing:\n%s", prioritySection)
	}
	if strings.Contains(prioritySection, "#2") {
		t.Errorf("commented ticket leaked into priority section:\n%s", prioritySection)
	}

	updatedSection := got[strings.Index(got, "Open Tickets (With"):]
	if !strings.Contains(updatedSection, "#2 • Candy Cane Lane") {
		t.Errorf("ticket 2 missing from updated section:\n%s", updatedSection)
	}
	if !strings.Contains(got, "ticket.html?id=1") {
		t.Errorf("ticket links missing:\n%s", got)
	}
}

func TestBuild_EmptySectionsSayNone(t *testing.T) {
	open := []*protocol.Ticket{{ID: 1, Location: "Gate"}}
	got := Build(open, map[int64]bool{1: true}, site)
	if !strings.Contains(got, "None ✅") {
		t.Errorf("empty priority section not marked:\n%s", got)
	}
}
