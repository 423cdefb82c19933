package mail

import (
	"context"
)

// Message is an outgoing email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers email. Send returns only once delivery has been accepted
// by the underlying transport.
type Sender interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}
