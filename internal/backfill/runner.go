package backfill

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/SpaceTimerAPI-Admin/christmastech/pkg/protocol"
)

// TicketSource is what the runner needs from the ticket store.
type TicketSource interface {
	// ListMissingPhoto returns tickets with no primary photo reference,
	// ordered by creation time ascending.
	ListMissingPhoto(ctx context.Context) ([]*protocol.Ticket, error)
	// AttachPhoto sets a ticket's primary photo reference.
	AttachPhoto(ctx context.Context, ticketID int64, url string) error
}

// ObjectSource is what the runner needs from the object store.
type ObjectSource interface {
	// List returns every object in the photo bucket.
	List(ctx context.Context) ([]PhotoObject, error)
	// URL returns the public URL for a stored object.
	URL(name string) string
}

// Failure records a match whose persistence failed. The run continues
// past failures; the report carries them back to the operator.
type Failure struct {
	TicketID int64  `json:"ticket_id"`
	Error    string `json:"error"`
}

// RunReport summarizes one backfill run for the operator.
type RunReport struct {
	DryRun           bool      `json:"dry_run"`
	Matches          []Match   `json:"matches"`
	Updated          int       `json:"tickets_updated"`
	Failures         []Failure `json:"failures,omitempty"`
	UnmatchedTickets int       `json:"unmatched_tickets"`
	UnmatchedObjects int       `json:"unmatched_objects"`
	UnusableObjects  int       `json:"unusable_objects"`
}

// Runner wires the reconciler to the ticket and object stores. A run is
// idempotent: tickets that already gained a photo no longer appear in
// ListMissingPhoto, and re-running assigns nothing new.
type Runner struct {
	Tickets TicketSource
	Objects ObjectSource
	Before  time.Duration
	After   time.Duration
	Logger  *slog.Logger
}

// Run performs one reconciliation pass. With dryRun the computed
// matches are reported but nothing is written.
func (r *Runner) Run(ctx context.Context, dryRun bool) (*RunReport, error) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}

	tickets, err := r.Tickets.ListMissingPhoto(ctx)
	if err != nil {
		return nil, fmt.Errorf("backfill: list tickets: %w", err)
	}
	objects, err := r.Objects.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("backfill: list objects: %w", err)
	}

	result, err := Reconcile(tickets, objects, r.Before, r.After)
	if err != nil {
		return nil, err
	}

	report := &RunReport{
		DryRun:           dryRun,
		Matches:          result.Matches,
		UnmatchedTickets: len(result.UnmatchedTickets),
		UnmatchedObjects: len(result.UnmatchedObjects),
		UnusableObjects:  len(result.Unusable),
	}

	logger.Info("backfill reconciled",
		"tickets", len(tickets),
		"objects", len(objects),
		"matches", len(result.Matches),
		"unusable", len(result.Unusable),
		"dry_run", dryRun,
	)

	if dryRun {
		return report, nil
	}

	for _, m := range result.Matches {
		url := r.Objects.URL(m.Object)
		if err := r.Tickets.AttachPhoto(ctx, m.TicketID, url); err != nil {
			logger.Error("backfill attach failed", "ticket", m.TicketID, "object", m.Object, "error", err)
			report.Failures = append(report.Failures, Failure{TicketID: m.TicketID, Error: err.Error()})
			continue
		}
		report.Updated++
	}

	return report, nil
}
