// Package lifecycle is the state machine over ticket status. Tickets
// are born open, can be marked fixed, and can be reopened. Every true
// transition is a read-modify-store round trip through the ticket
// store, and the crew is notified only after the store confirms the
// write.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/SpaceTimerAPI-Admin/christmastech/internal/notifier"
	"github.com/SpaceTimerAPI-Admin/christmastech/pkg/protocol"
)

// ErrInvalidStatus is returned for a requested status outside the
// open/fixed enum. The ticket is left unchanged.
var ErrInvalidStatus = errors.New("lifecycle: invalid status")

// Store is what the state machine needs from the ticket store.
type Store interface {
	Get(ctx context.Context, id int64) (*protocol.Ticket, error)
	UpdateStatus(ctx context.Context, id int64, status protocol.TicketStatus) error
}

// Machine applies status transitions and emits lifecycle events.
type Machine struct {
	store       Store
	notify      notifier.Notifier
	siteBaseURL string
	logger      *slog.Logger

	// OnEvent, when set, observes every emitted event (metrics hook).
	OnEvent func(protocol.LifecycleEvent)
}

// New creates a lifecycle machine. notify may be a notifier.Nop.
func New(store Store, notify notifier.Notifier, siteBaseURL string, logger *slog.Logger) *Machine {
	if logger == nil {
		logger = slog.Default()
	}
	if notify == nil {
		notify = notifier.Nop{}
	}
	return &Machine{store: store, notify: notify, siteBaseURL: siteBaseURL, logger: logger}
}

// Transition requests a status change to target. Requesting the current
// status is a no-op that succeeds without emitting an event, so marking
// a fixed ticket fixed (or reopening an open one) is idempotent.
func (m *Machine) Transition(ctx context.Context, id int64, target protocol.TicketStatus, actor string) (*protocol.Ticket, error) {
	if !target.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, target)
	}

	t, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Status == target {
		return t, nil
	}

	previous := t.Status
	if err := m.store.UpdateStatus(ctx, id, target); err != nil {
		// No partial transition: the event is only emitted after the
		// store confirms the write.
		return nil, err
	}
	t.Status = target

	ev := protocol.LifecycleEvent{TicketID: id, Previous: previous, New: target, Actor: actor}
	m.logger.Info("ticket transitioned", "ticket", id, "from", previous, "to", target, "actor", actor)
	if m.OnEvent != nil {
		m.OnEvent(ev)
	}
	if err := m.notify.Notify(ctx, notifier.FormatEvent(ev, t, m.siteBaseURL)); err != nil {
		// Best effort only; the transition already happened.
		m.logger.Warn("lifecycle notification failed", "ticket", id, "error", err)
	}

	return t, nil
}

// MarkFixed moves an open ticket to fixed.
func (m *Machine) MarkFixed(ctx context.Context, id int64, actor string) (*protocol.Ticket, error) {
	return m.Transition(ctx, id, protocol.StatusFixed, actor)
}

// Reopen moves a fixed ticket back to open.
func (m *Machine) Reopen(ctx context.Context, id int64, actor string) (*protocol.Ticket, error) {
	return m.Transition(ctx, id, protocol.StatusOpen, actor)
}
