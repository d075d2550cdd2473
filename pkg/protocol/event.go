package protocol

// LifecycleEvent records a single ticket status transition. It is
// produced by the lifecycle state machine after the store confirms the
// write, handed to the notifier, and not retained.
type LifecycleEvent struct {
	TicketID int64        `json:"ticket_id"`
	Previous TicketStatus `json:"previous"`
	New      TicketStatus `json:"new"`
	Actor    string       `json:"actor,omitempty"`
}
