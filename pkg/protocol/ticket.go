package protocol

import "time"

// TicketStatus represents the lifecycle state of a ticket.
type TicketStatus string

const (
	StatusOpen  TicketStatus = "open"
	StatusFixed TicketStatus = "fixed"
)

// Valid reports whether s is one of the known statuses. Early revisions
// of the system carried an in_progress state; nothing observable was
// gated on it, so it is not part of the enum and is rejected on input.
func (s TicketStatus) Valid() bool {
	return s == StatusOpen || s == StatusFixed
}

// Ticket is a single field-issue report tracked by the system.
// The store assigns IDs; everything else comes from the technician.
type Ticket struct {
	ID          int64        `json:"id"`
	TechName    string       `json:"tech_name"`
	Location    string       `json:"location_friendly"`
	Description string       `json:"description"`
	Coordinate  *Coordinate  `json:"coordinate,omitempty"`
	Status      TicketStatus `json:"status"`
	PhotoURL    string       `json:"photo_url,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}

// Report is the ephemeral input to ticket creation and duplicate
// checking. It exists only for the duration of one request.
type Report struct {
	TechName    string      `json:"tech_name"`
	Location    string      `json:"location_friendly"`
	Description string      `json:"description"`
	Coordinate  *Coordinate `json:"coordinate,omitempty"`
	PhotoURL    string      `json:"photo_url,omitempty"`
	SubmittedAt time.Time   `json:"submitted_at"`
}

// Comment is a technician update attached to a ticket.
type Comment struct {
	ID        int64     `json:"id"`
	TicketID  int64     `json:"ticket_id"`
	Author    string    `json:"author,omitempty"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// Photo is a secondary photo row attached to a ticket, beyond the
// ticket's primary photo_url.
type Photo struct {
	ID         int64     `json:"id"`
	TicketID   int64     `json:"ticket_id"`
	URL        string    `json:"photo_url"`
	UploadedAt time.Time `json:"uploaded_at"`
}
