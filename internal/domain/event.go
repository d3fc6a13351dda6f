package domain

// Event is a recorded occurrence. ID is its position in the store at the time
// it was appended; Timestamp is the time source payload stored verbatim.
type Event struct {
	ID        int            `json:"id"`
	Name      string         `json:"name"`
	Timestamp map[string]any `json:"timestamp"`
}

// CreateEventRequest is the body accepted by POST /. Any id or timestamp the
// caller sends is ignored.
type CreateEventRequest struct {
	Name string `json:"name"`
}
