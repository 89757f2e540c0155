// Package mailer delivers transactional email.
package mailer

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned by a sender that lacks credentials.
var ErrNotConfigured = errors.New("mailer not configured")

// Message is one outgoing email. Text is required, HTML is optional.
type Message struct {
	To      string
	ToName  string
	Subject string
	Text    string
	HTML    string
}

// Sender delivers a message or reports why it could not.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}
