// Package tracker is the orchestration hub: it wires the duplicate
// matcher, lifecycle machine, backfill runner, and report builder to
// the ticket store, object store, and notifier. Handlers and the
// scheduler talk to the Tracker; the pure components underneath never
// touch I/O themselves.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/SpaceTimerAPI-Admin/christmastech/internal/backfill"
	"github.com/SpaceTimerAPI-Admin/christmastech/internal/dedupe"
	"github.com/SpaceTimerAPI-Admin/christmastech/internal/lifecycle"
	"github.com/SpaceTimerAPI-Admin/christmastech/internal/metrics"
	"github.com/SpaceTimerAPI-Admin/christmastech/internal/notifier"
	"github.com/SpaceTimerAPI-Admin/christmastech/internal/objstore"
	"github.com/SpaceTimerAPI-Admin/christmastech/internal/report"
	"github.com/SpaceTimerAPI-Admin/christmastech/internal/ticket"
	"github.com/SpaceTimerAPI-Admin/christmastech/pkg/protocol"
)

// ErrInvalidReport marks a create request missing required fields.
var ErrInvalidReport = errors.New("tracker: invalid report")

// Config holds the tracker's tuning knobs.
type Config struct {
	SiteBaseURL     string
	DupRadiusMeters float64
	DupLookback     time.Duration
	BackfillBefore  time.Duration
	BackfillAfter   time.Duration
}

// Tracker coordinates the core components against the collaborators.
type Tracker struct {
	store   ticket.Store
	objects objstore.Store
	notify  notifier.Notifier
	machine *lifecycle.Machine
	metrics *metrics.Metrics
	cfg     Config
	logger  *slog.Logger

	// createMu serializes duplicate check + insert so two
	// near-simultaneous reports of the same issue cannot both win.
	createMu sync.Mutex

	// now is swappable for tests.
	now func() time.Time
}

// New creates a Tracker. notify may be nil for a silent instance.
func New(store ticket.Store, objects objstore.Store, notify notifier.Notifier, m *metrics.Metrics, cfg Config, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	if notify == nil {
		notify = notifier.Nop{}
	}
	if m == nil {
		m = metrics.New()
	}

	counted := &countingNotifier{inner: notify, metrics: m}
	tr := &Tracker{
		store:   store,
		objects: objects,
		notify:  counted,
		metrics: m,
		cfg:     cfg,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}

	tr.machine = lifecycle.New(storeAdapter{store}, counted, cfg.SiteBaseURL, logger.With("component", "lifecycle"))
	tr.machine.OnEvent = func(ev protocol.LifecycleEvent) {
		m.StatusTransitions.WithLabelValues(string(ev.New)).Inc()
	}
	return tr
}

// CreateResult is the outcome of a ticket creation request.
type CreateResult struct {
	Ticket    *protocol.Ticket   `json:"ticket,omitempty"`
	Duplicate bool               `json:"duplicate"`
	RadiusM   float64            `json:"radius_m,omitempty"`
	Matches   []dedupe.Candidate `json:"matches,omitempty"`
}

// CreateTicket runs duplicate detection and, unless blocked, creates
// the ticket and announces it. With dryRun only the duplicate probe
// runs; nothing is created. With force a duplicate no longer blocks.
func (tr *Tracker) CreateTicket(ctx context.Context, rep protocol.Report, dryRun, force bool) (*CreateResult, error) {
	if rep.SubmittedAt.IsZero() {
		rep.SubmittedAt = tr.now()
	}

	tr.createMu.Lock()
	defer tr.createMu.Unlock()

	if rep.Coordinate != nil {
		candidates, err := tr.store.ListOpenSince(ctx, rep.SubmittedAt.Add(-tr.cfg.DupLookback))
		if err != nil {
			return nil, fmt.Errorf("tracker: duplicate check: %w", err)
		}
		matches := dedupe.FindDuplicates(rep, candidates, tr.cfg.DupRadiusMeters, tr.cfg.DupLookback, rep.SubmittedAt)
		if len(matches) > 0 && (dryRun || !force) {
			if !dryRun {
				tr.metrics.DuplicatesBlocked.Inc()
				tr.logger.Info("ticket blocked as duplicate", "matches", len(matches), "nearest_m", matches[0].DistanceMeters)
			}
			return &CreateResult{Duplicate: true, RadiusM: tr.cfg.DupRadiusMeters, Matches: matches}, nil
		}
	}

	if dryRun {
		return &CreateResult{Duplicate: false}, nil
	}

	if err := validateReport(rep); err != nil {
		return nil, err
	}

	created, err := tr.store.Create(ctx, rep)
	if err != nil {
		return nil, fmt.Errorf("tracker: create ticket: %w", err)
	}
	tr.metrics.TicketsCreated.Inc()
	tr.logger.Info("ticket created", "ticket", created.ID, "tech", created.TechName, "location", created.Location)

	if err := tr.notify.Notify(ctx, notifier.FormatNewTicket(created, tr.cfg.SiteBaseURL)); err != nil {
		tr.logger.Warn("new ticket announcement failed", "ticket", created.ID, "error", err)
	}

	return &CreateResult{Ticket: created}, nil
}

func validateReport(rep protocol.Report) error {
	var missing []string
	if strings.TrimSpace(rep.TechName) == "" {
		missing = append(missing, "tech_name")
	}
	if strings.TrimSpace(rep.Location) == "" {
		missing = append(missing, "location_friendly")
	}
	if strings.TrimSpace(rep.Description) == "" {
		missing = append(missing, "description")
	}
	if rep.PhotoURL == "" {
		missing = append(missing, "photo_url")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s required", ErrInvalidReport, strings.Join(missing, ", "))
	}
	return nil
}

// UpdateStatus applies a lifecycle transition.
func (tr *Tracker) UpdateStatus(ctx context.Context, id int64, status protocol.TicketStatus, actor string) (*protocol.Ticket, error) {
	return tr.machine.Transition(ctx, id, status, actor)
}

// TicketDetail is a ticket with its comments and photo rows.
type TicketDetail struct {
	Ticket   *protocol.Ticket    `json:"ticket"`
	Comments []*protocol.Comment `json:"comments"`
	Photos   []*protocol.Photo   `json:"photos"`
}

// GetTicket loads a ticket with its comments and photos.
func (tr *Tracker) GetTicket(ctx context.Context, id int64) (*TicketDetail, error) {
	t, err := tr.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	comments, err := tr.store.ListComments(ctx, id)
	if err != nil {
		return nil, err
	}
	photos, err := tr.store.ListPhotos(ctx, id)
	if err != nil {
		return nil, err
	}
	return &TicketDetail{Ticket: t, Comments: comments, Photos: photos}, nil
}

// ListTickets returns tickets matching the filter.
func (tr *Tracker) ListTickets(ctx context.Context, filter ticket.Filter) ([]*protocol.Ticket, error) {
	return tr.store.List(ctx, filter)
}

// AddComment appends a technician comment to a ticket.
func (tr *Tracker) AddComment(ctx context.Context, ticketID int64, author, body string) (*protocol.Comment, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, fmt.Errorf("%w: comment body required", ErrInvalidReport)
	}
	return tr.store.AddComment(ctx, ticketID, strings.TrimSpace(author), body)
}

// UploadPhoto stores raw image bytes in the object store under a fresh
// capture-stamped name and returns the name and public URL.
func (tr *Tracker) UploadPhoto(ctx context.Context, data []byte, contentType string) (name, url string, err error) {
	if len(data) == 0 {
		return "", "", fmt.Errorf("%w: empty upload", ErrInvalidReport)
	}
	name = objstore.NewObjectName(tr.now(), contentType)
	url, err = tr.objects.Put(ctx, name, data)
	if err != nil {
		return "", "", err
	}
	return name, url, nil
}

// AttachRequest is a follow-up to an existing ticket: an extra photo,
// a location fix, a progress note, or any combination.
type AttachRequest struct {
	TicketID    int64
	TechName    string
	Description string
	Coordinate  *protocol.Coordinate
	PhotoData   []byte
	ContentType string
}

// Attach applies a follow-up to a ticket. The uploaded photo becomes a
// secondary photo row; the primary reference is left alone.
func (tr *Tracker) Attach(ctx context.Context, req AttachRequest) (photoURL string, err error) {
	if _, err := tr.store.Get(ctx, req.TicketID); err != nil {
		return "", err
	}

	if len(req.PhotoData) > 0 {
		_, url, err := tr.UploadPhoto(ctx, req.PhotoData, req.ContentType)
		if err != nil {
			return "", err
		}
		if _, err := tr.store.AddPhoto(ctx, req.TicketID, url); err != nil {
			return "", err
		}
		photoURL = url
	}

	if req.Coordinate != nil {
		if err := tr.store.SetCoordinate(ctx, req.TicketID, req.Coordinate); err != nil {
			return photoURL, err
		}
	}

	if req.Description != "" || req.TechName != "" {
		tech := req.TechName
		if tech == "" {
			tech = "Tech"
		}
		note := strings.TrimSpace(tech + " update: " + req.Description)
		if err := tr.store.AppendDescription(ctx, req.TicketID, note); err != nil {
			return photoURL, err
		}
	}

	return photoURL, nil
}

// RunBackfill reconciles orphaned photo objects against tickets
// missing a photo reference.
func (tr *Tracker) RunBackfill(ctx context.Context, dryRun bool) (*backfill.RunReport, error) {
	runner := &backfill.Runner{
		Tickets: tr.store,
		Objects: objectAdapter{tr.objects},
		Before:  tr.cfg.BackfillBefore,
		After:   tr.cfg.BackfillAfter,
		Logger:  tr.logger.With("component", "backfill"),
	}
	rep, err := runner.Run(ctx, dryRun)
	if err != nil {
		return nil, err
	}
	if !dryRun {
		tr.metrics.BackfillMatches.Add(float64(len(rep.Matches)))
	}
	return rep, nil
}

// SendDailyReport posts the open-ticket summary to the crew chat.
func (tr *Tracker) SendDailyReport(ctx context.Context) error {
	// Zero time means "everything"; open tickets come back oldest first.
	open, err := tr.store.ListOpenSince(ctx, time.Time{})
	if err != nil {
		return fmt.Errorf("tracker: daily report: %w", err)
	}
	tr.metrics.OpenTickets.Set(float64(len(open)))

	ids := make([]int64, len(open))
	for i, t := range open {
		ids[i] = t.ID
	}
	commented, err := tr.store.CommentedTicketIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("tracker: daily report: %w", err)
	}

	text := report.Build(open, commented, tr.cfg.SiteBaseURL)
	if err := tr.notify.Notify(ctx, text); err != nil {
		return fmt.Errorf("tracker: daily report: %w", err)
	}
	tr.logger.Info("daily report sent", "open_tickets", len(open))
	return nil
}

// --- adapters ---

// storeAdapter narrows ticket.Store to what the lifecycle machine needs.
type storeAdapter struct {
	ticket.Store
}

// objectAdapter converts objstore listings into backfill inputs.
type objectAdapter struct {
	store objstore.Store
}

func (a objectAdapter) List(ctx context.Context) ([]backfill.PhotoObject, error) {
	objects, err := a.store.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]backfill.PhotoObject, len(objects))
	for i, o := range objects {
		out[i] = backfill.PhotoObject{Name: o.Name, ModTime: o.ModTime}
	}
	return out, nil
}

func (a objectAdapter) URL(name string) string { return a.store.URL(name) }

// countingNotifier tracks delivery outcomes for the metrics endpoint.
type countingNotifier struct {
	inner   notifier.Notifier
	metrics *metrics.Metrics
}

func (c *countingNotifier) Name() string { return c.inner.Name() }

func (c *countingNotifier) Notify(ctx context.Context, text string) error {
	err := c.inner.Notify(ctx, text)
	if err != nil {
		c.metrics.NotificationErrors.Inc()
		return err
	}
	c.metrics.NotificationsSent.Inc()
	return nil
}
