package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/utafrali/storefront/internal/domain"
	pkgkafka "github.com/utafrali/storefront/pkg/kafka"
	"github.com/utafrali/storefront/pkg/logger"
)

// Kafka topics for storefront domain events.
var (
	TopicUserRegistered         = pkgkafka.Topic("user", "registered")
	TopicProductReviewSubmitted = pkgkafka.Topic("product", "review_submitted")
	TopicProductReviewRemoved   = pkgkafka.Topic("product", "review_removed")
)

// Aggregate type constants.
const (
	AggregateTypeUser    = "user"
	AggregateTypeProduct = "product"
)

// SourceStorefront identifies events originating from this service.
const SourceStorefront = "storefront"

// UserRegisteredData is the payload for a user.registered event.
type UserRegisteredData struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// ReviewData is the payload for product review events.
type ReviewData struct {
	ProductID    string  `json:"product_id"`
	ReviewID     string  `json:"review_id"`
	UserID       string  `json:"user_id"`
	Rating       int     `json:"rating,omitempty"`
	Created      bool    `json:"created,omitempty"`
	Ratings      float64 `json:"ratings"`
	NumOfReviews int     `json:"num_of_reviews"`
}

// Producer publishes storefront domain events to Kafka.
type Producer struct {
	kafka  pkgkafka.Publisher
	logger *slog.Logger
}

// NewProducer creates a new event producer.
func NewProducer(kafka pkgkafka.Publisher, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishUserRegistered publishes a user.registered event.
func (p *Producer) PublishUserRegistered(ctx context.Context, user *domain.User) error {
	data := UserRegisteredData{
		ID:    user.ID,
		Name:  user.Name,
		Email: user.Email,
		Role:  user.Role,
	}
	return p.publish(ctx, TopicUserRegistered, user.ID, AggregateTypeUser, data)
}

// PublishReviewSubmitted publishes a product.review_submitted event for the
// review userID now holds on product.
func (p *Producer) PublishReviewSubmitted(ctx context.Context, product *domain.Product, userID string, created bool) error {
	data := ReviewData{
		ProductID:    product.ID,
		UserID:       userID,
		Created:      created,
		Ratings:      product.Ratings,
		NumOfReviews: product.NumOfReviews,
	}
	for _, r := range product.Reviews {
		if r.UserID == userID {
			data.ReviewID = r.ID
			data.Rating = r.Rating
			break
		}
	}
	return p.publish(ctx, TopicProductReviewSubmitted, product.ID, AggregateTypeProduct, data)
}

// PublishReviewRemoved publishes a product.review_removed event.
func (p *Producer) PublishReviewRemoved(ctx context.Context, product *domain.Product, review domain.Review) error {
	data := ReviewData{
		ProductID:    product.ID,
		ReviewID:     review.ID,
		UserID:       review.UserID,
		Ratings:      product.Ratings,
		NumOfReviews: product.NumOfReviews,
	}
	return p.publish(ctx, TopicProductReviewRemoved, product.ID, AggregateTypeProduct, data)
}

func (p *Producer) publish(ctx context.Context, topic, aggregateID, aggregateType string, data any) error {
	event, err := pkgkafka.NewEvent(topic, aggregateID, aggregateType, SourceStorefront, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		event.WithCorrelationID(id)
	}
	if uid := logger.UserIDFromContext(ctx); uid != "" {
		event.WithMetadata("actor_id", uid)
	}

	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published event",
		slog.String("topic", topic),
		slog.String("aggregate_id", aggregateID),
	)
	return nil
}
