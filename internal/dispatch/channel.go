package dispatch

import "context"

// Message is one outbound dispatch to a user.
type Message struct {
	Subject string
	Body    string
}

// Channel delivers a message to a contact over one carrier (email,
// SMS). A nil return is the carrier's acknowledgement; callers only
// advance an assignment's cursor after it.
type Channel interface {
	Send(ctx context.Context, contact string, msg Message) error
}
