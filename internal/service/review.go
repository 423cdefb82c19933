package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/event"
	"github.com/utafrali/storefront/internal/repository"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// Review messages returned to clients.
const (
	MsgReviewNotFound  = "Review not found"
	MsgReviewForbidden = "You are not allowed to delete this review"
	MsgReviewConflict  = "Product reviews were modified concurrently, please try again"
)

const (
	opSubmit = "submit"
	opRemove = "remove"
)

// SubmitReviewInput holds a caller's review of a product.
type SubmitReviewInput struct {
	ProductID string
	UserID    string
	UserName  string
	Rating    int
	Comment   string
}

// Reviewer identifies the caller removing a review.
type Reviewer struct {
	UserID  string
	IsAdmin bool
}

// ReviewService applies review changes to products under optimistic
// concurrency control.
type ReviewService struct {
	products    repository.ProductRepository
	producer    *event.Producer
	maxAttempts int
	metrics     *Metrics
	logger      *slog.Logger
	now         func() time.Time
}

// NewReviewService creates a review service that attempts each write up to
// maxAttempts times. producer and metrics may be nil.
func NewReviewService(
	products repository.ProductRepository,
	producer *event.Producer,
	maxAttempts int,
	metrics *Metrics,
	logger *slog.Logger,
) *ReviewService {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &ReviewService{
		products:    products,
		producer:    producer,
		maxAttempts: maxAttempts,
		metrics:     metrics,
		logger:      logger,
		now:         time.Now,
	}
}

// SubmitReview creates the caller's review of a product or replaces their
// existing one, and returns the updated product.
func (s *ReviewService) SubmitReview(ctx context.Context, input SubmitReviewInput) (*domain.Product, error) {
	var created bool
	p, err := s.mutate(ctx, opSubmit, input.ProductID, func(p *domain.Product) error {
		created = p.UpsertReview(input.UserID, input.UserName, input.Rating, input.Comment, s.now())
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "review submitted",
		slog.String("product_id", p.ID),
		slog.Bool("created", created),
	)

	if s.producer != nil {
		if err := s.producer.PublishReviewSubmitted(ctx, p, input.UserID, created); err != nil {
			s.logger.WarnContext(ctx, "failed to publish review_submitted event",
				slog.String("product_id", p.ID),
				slog.String("error", err.Error()),
			)
		}
	}
	return p, nil
}

// ListReviews returns the reviews of a product.
func (s *ReviewService) ListReviews(ctx context.Context, productID string) ([]domain.Review, error) {
	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFoundMessage(MsgProductNotFound)
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return p.Reviews, nil
}

// RemoveReview deletes a review from a product. Only the review's author or
// an admin may remove it.
func (s *ReviewService) RemoveReview(ctx context.Context, productID, reviewID string, caller Reviewer) (*domain.Product, error) {
	var removed domain.Review
	p, err := s.mutate(ctx, opRemove, productID, func(p *domain.Product) error {
		r := p.FindReview(reviewID)
		if r == nil {
			return apperrors.NotFoundMessage(MsgReviewNotFound)
		}
		if r.UserID != caller.UserID && !caller.IsAdmin {
			return apperrors.Forbidden(MsgReviewForbidden)
		}
		removed = *r
		p.RemoveReview(reviewID)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "review removed",
		slog.String("product_id", p.ID),
		slog.String("review_id", reviewID),
	)

	if s.producer != nil {
		if err := s.producer.PublishReviewRemoved(ctx, p, removed); err != nil {
			s.logger.WarnContext(ctx, "failed to publish review_removed event",
				slog.String("product_id", p.ID),
				slog.String("error", err.Error()),
			)
		}
	}
	return p, nil
}

// mutate loads the product, applies fn and saves the reviews if nobody wrote
// the product in between. On a version conflict the whole cycle is repeated
// with a fresh read, up to maxAttempts times.
func (s *ReviewService) mutate(ctx context.Context, op, productID string, fn func(*domain.Product) error) (*domain.Product, error) {
	for attempt := 1; ; attempt++ {
		p, err := s.products.GetByID(ctx, productID)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return nil, apperrors.NotFoundMessage(MsgProductNotFound)
			}
			s.metrics.reviewWrite(op, outcomeError)
			return nil, fmt.Errorf("get product: %w", err)
		}

		expected := p.Version
		if err := fn(p); err != nil {
			return nil, err
		}

		err = s.products.SaveReviews(ctx, p, expected)
		if err == nil {
			s.metrics.reviewWrite(op, outcomeSuccess)
			return p, nil
		}
		if !errors.Is(err, repository.ErrVersionConflict) {
			s.metrics.reviewWrite(op, outcomeError)
			return nil, fmt.Errorf("save reviews: %w", err)
		}

		s.metrics.reviewConflict()
		if attempt >= s.maxAttempts {
			s.metrics.reviewWrite(op, outcomeConflict)
			s.logger.WarnContext(ctx, "review write retries exhausted",
				slog.String("product_id", productID),
				slog.String("operation", op),
				slog.Int("attempts", attempt),
			)
			return nil, apperrors.Conflict(MsgReviewConflict)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		s.logger.DebugContext(ctx, "review write lost version race, retrying",
			slog.String("product_id", productID),
			slog.Int("attempt", attempt),
		)
	}
}
