// Package notify delivers outbound email. The SMTP sender is used when the
// deployment configures a relay; otherwise LogSender records what would have
// been sent, which keeps local development mail-free.
package notify

import (
	"context"

	"github.com/rs/zerolog"
)

type Message struct {
	To      string
	Subject string
	Body    string
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// LogSender writes messages to the log instead of delivering them.
type LogSender struct {
	Logger *zerolog.Logger
}

func (s *LogSender) Send(_ context.Context, msg Message) error {
	s.Logger.Info().
		Str("to", msg.To).
		Str("subject", msg.Subject).
		Msg("email suppressed, no smtp relay configured")

	return nil
}
