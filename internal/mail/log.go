package mail

import (
	"context"
	"log/slog"
)

// LogSender writes messages to the log instead of delivering them. It is
// meant for local development where no broker runs.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a log-only sender.
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// Name returns the name of this sender.
func (s *LogSender) Name() string {
	return "log"
}

// Send logs msg and always succeeds.
func (s *LogSender) Send(ctx context.Context, msg Message) error {
	s.logger.InfoContext(ctx, "log sender: email sent",
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
	)
	s.logger.DebugContext(ctx, "log sender: email body", slog.String("body", msg.Body))
	return nil
}
