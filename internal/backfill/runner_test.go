package backfill

import (
	"context"
	"errors"
	"testing"

	"github.com/SpaceTimerAPI-Admin/christmastech/pkg/protocol"
)

type fakeTickets struct {
	missing  []*protocol.Ticket
	attached map[int64]string
	failOn   int64
}

func (f *fakeTickets) ListMissingPhoto(_ context.Context) ([]*protocol.Ticket, error) {
	return f.missing, nil
}

func (f *fakeTickets) AttachPhoto(_ context.Context, id int64, url string) error {
	if id == f.failOn {
		return errors.New("disk full")
	}
	if f.attached == nil {
		f.attached = make(map[int64]string)
	}
	f.attached[id] = url
	return nil
}

type fakeObjects struct {
	objects []PhotoObject
}

func (f *fakeObjects) List(_ context.Context) ([]PhotoObject, error) { return f.objects, nil }
func (f *fakeObjects) URL(name string) string                        { return "https://example.test/photos/" + name }

func TestRunner_AttachesMatches(t *testing.T) {
	tickets := &fakeTickets{missing: []*protocol.Ticket{ticketAt(1, 1000), ticketAt(2, 2000)}}
	objects := &fakeObjects{objects: []PhotoObject{objectAt(1010, "aa"), objectAt(2005, "bb")}}

	r := &Runner{Tickets: tickets, Objects: objects, Before: beforeWin, After: afterWin}
	report, err := r.Run(context.Background(), false)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Updated != 2 {
		t.Errorf("updated = %d, want 2", report.Updated)
	}
	if got := tickets.attached[1]; got != "https://example.test/photos/"+objects.objects[0].Name {
		t.Errorf("ticket 1 attached %q", got)
	}
}

func TestRunner_DryRunWritesNothing(t *testing.T) {
	tickets := &fakeTickets{missing: []*protocol.Ticket{ticketAt(1, 1000)}}
	objects := &fakeObjects{objects: []PhotoObject{objectAt(1010, "aa")}}

	r := &Runner{Tickets: tickets, Objects: objects, Before: beforeWin, After: afterWin}
	report, err := r.Run(context.Background(), true)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !report.DryRun || len(report.Matches) != 1 {
		t.Errorf("report = %+v, want dry run with 1 match", report)
	}
	if len(tickets.attached) != 0 {
		t.Errorf("dry run attached photos: %v", tickets.attached)
	}
}

func TestRunner_ContinuesPastFailures(t *testing.T) {
	tickets := &fakeTickets{
		missing: []*protocol.Ticket{ticketAt(1, 1000), ticketAt(2, 2000)},
		failOn:  1,
	}
	objects := &fakeObjects{objects: []PhotoObject{objectAt(1010, "aa"), objectAt(2005, "bb")}}

	r := &Runner{Tickets: tickets, Objects: objects, Before: beforeWin, After: afterWin}
	report, err := r.Run(context.Background(), false)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Updated != 1 {
		t.Errorf("updated = %d, want 1", report.Updated)
	}
	if len(report.Failures) != 1 || report.Failures[0].TicketID != 1 {
		t.Errorf("failures = %+v", report.Failures)
	}
}

func TestRunner_IdempotentRerun(t *testing.T) {
	// After a successful run the matched tickets drop out of the
	// missing-photo query, so a second run assigns nothing.
	tickets := &fakeTickets{missing: []*protocol.Ticket{ticketAt(1, 1000)}}
	objects := &fakeObjects{objects: []PhotoObject{objectAt(1010, "aa")}}
	r := &Runner{Tickets: tickets, Objects: objects, Before: beforeWin, After: afterWin}

	if _, err := r.Run(context.Background(), false); err != nil {
		t.Fatalf("first run: %v", err)
	}
	tickets.missing = nil

	report, err := r.Run(context.Background(), false)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if report.Updated != 0 || len(report.Matches) != 0 {
		t.Errorf("second run = %+v, want no new work", report)
	}
}
