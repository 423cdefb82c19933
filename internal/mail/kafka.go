package mail

import (
	"context"
	"fmt"
	"log/slog"

	pkgkafka "github.com/utafrali/storefront/pkg/kafka"
	"github.com/utafrali/storefront/pkg/logger"
)

// TopicEmail is consumed by the notification pipeline that delivers email.
var TopicEmail = pkgkafka.Topic("notification", "email")

const (
	aggregateTypeEmail = "email"
	sourceStorefront   = "storefront"
)

// EmailRequestedData is the payload of an email notification event.
type EmailRequestedData struct {
	To      string `json:"to"`
	From    string `json:"from"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// KafkaSender hands email to the notification pipeline by publishing an
// event. Publishing is synchronous, so broker failures surface to the caller.
type KafkaSender struct {
	publisher pkgkafka.Publisher
	from      string
	logger    *slog.Logger
}

// NewKafkaSender creates a sender that publishes to TopicEmail.
func NewKafkaSender(publisher pkgkafka.Publisher, from string, logger *slog.Logger) *KafkaSender {
	return &KafkaSender{publisher: publisher, from: from, logger: logger}
}

// Name returns the name of this sender.
func (s *KafkaSender) Name() string {
	return "kafka"
}

// Send publishes msg as an email notification event.
func (s *KafkaSender) Send(ctx context.Context, msg Message) error {
	data := EmailRequestedData{
		To:      msg.To,
		From:    s.from,
		Subject: msg.Subject,
		Body:    msg.Body,
	}

	event, err := pkgkafka.NewEvent(TopicEmail, msg.To, aggregateTypeEmail, sourceStorefront, data)
	if err != nil {
		return fmt.Errorf("create email event: %w", err)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		event.WithCorrelationID(id)
	}

	if err := s.publisher.Publish(ctx, TopicEmail, event); err != nil {
		return fmt.Errorf("publish email event: %w", err)
	}

	s.logger.DebugContext(ctx, "email handed to notification pipeline",
		slog.String("event_id", event.EventID),
		slog.String("subject", msg.Subject),
	)
	return nil
}
