package ticket

import (
	"context"
	"errors"
	"time"

	"github.com/SpaceTimerAPI-Admin/christmastech/pkg/protocol"
)

// ErrNotFound is returned when a ticket ID does not exist.
var ErrNotFound = errors.New("ticket not found")

// Store is the persistence interface for tickets, their comments, and
// their photo rows. One fixed schema; there is no probing of alternate
// table or column spellings.
type Store interface {
	// Create inserts a new open ticket from a report and returns it
	// with its store-assigned ID.
	Create(ctx context.Context, report protocol.Report) (*protocol.Ticket, error)
	// Get retrieves a ticket by ID.
	Get(ctx context.Context, id int64) (*protocol.Ticket, error)
	// List returns tickets matching the filter, newest first.
	List(ctx context.Context, filter Filter) ([]*protocol.Ticket, error)
	// ListOpenSince returns open tickets created at or after since,
	// oldest first. This feeds duplicate detection.
	ListOpenSince(ctx context.Context, since time.Time) ([]*protocol.Ticket, error)
	// ListMissingPhoto returns tickets with no primary photo, oldest
	// first. This feeds backfill reconciliation.
	ListMissingPhoto(ctx context.Context) ([]*protocol.Ticket, error)
	// UpdateStatus changes a ticket's status.
	UpdateStatus(ctx context.Context, id int64, status protocol.TicketStatus) error
	// AttachPhoto sets the primary photo reference and records a photo row.
	AttachPhoto(ctx context.Context, id int64, url string) error
	// AddPhoto records a secondary photo row without touching the
	// primary reference.
	AddPhoto(ctx context.Context, ticketID int64, url string) (*protocol.Photo, error)
	// ListPhotos returns a ticket's photo rows, oldest first.
	ListPhotos(ctx context.Context, ticketID int64) ([]*protocol.Photo, error)
	// AddComment appends a technician comment.
	AddComment(ctx context.Context, ticketID int64, author, body string) (*protocol.Comment, error)
	// ListComments returns a ticket's comments, oldest first.
	ListComments(ctx context.Context, ticketID int64) ([]*protocol.Comment, error)
	// CommentedTicketIDs reports which of the given tickets have at
	// least one comment. This feeds the daily report's priority split.
	CommentedTicketIDs(ctx context.Context, ids []int64) (map[int64]bool, error)
	// SetCoordinate updates a ticket's location fix.
	SetCoordinate(ctx context.Context, id int64, coord *protocol.Coordinate) error
	// AppendDescription appends a note to the ticket's description.
	AppendDescription(ctx context.Context, id int64, note string) error
}

// Filter constrains ticket list queries.
type Filter struct {
	Status *protocol.TicketStatus
	Limit  int // 0 = no limit
}
