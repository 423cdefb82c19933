package repository

import (
	"context"
	"errors"
	"time"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/pkg/pagination"
)

// ErrVersionConflict is returned by ProductRepository.SaveReviews when the
// stored product version no longer matches the expected one.
var ErrVersionConflict = errors.New("product version conflict")

// ProductFilter defines filter criteria for listing products. Nil pointers
// and empty strings disable the corresponding condition.
type ProductFilter struct {
	Keyword    string
	Category   string
	MinPrice   *float64
	MaxPrice   *float64
	MinRatings *float64
	Page       pagination.Params
}

// UserRepository defines the interface for user persistence operations.
type UserRepository interface {
	// Create inserts a new user. A taken email yields a duplicate-key error.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by their unique identifier.
	GetByID(ctx context.Context, id string) (*domain.User, error)

	// GetByEmail retrieves a user by their email address.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// GetByResetToken retrieves the user holding the reset token hash, provided
	// the token expires after now.
	GetByResetToken(ctx context.Context, tokenHash string, now time.Time) (*domain.User, error)

	// Update overwrites an existing user, including its reset-token fields.
	Update(ctx context.Context, user *domain.User) error

	// Delete removes a user by their identifier.
	Delete(ctx context.Context, id string) error

	// List returns all users, newest first.
	List(ctx context.Context) ([]domain.User, error)
}

// ProductRepository defines the interface for product persistence operations.
type ProductRepository interface {
	// Create inserts a new product into the store.
	Create(ctx context.Context, product *domain.Product) error

	// GetByID retrieves a product, including its reviews.
	GetByID(ctx context.Context, id string) (*domain.Product, error)

	// List returns one page of products matching the filter together with the
	// number of products matching it across all pages.
	List(ctx context.Context, filter ProductFilter) ([]domain.Product, int, error)

	// Count returns the number of products in the store.
	Count(ctx context.Context) (int, error)

	// Update overwrites the descriptive fields of a product and bumps its
	// version. Reviews are left untouched.
	Update(ctx context.Context, product *domain.Product) error

	// SaveReviews stores the product's reviews and derived ratings if the
	// stored version equals expectedVersion, returning ErrVersionConflict
	// otherwise. On success product.Version is incremented.
	SaveReviews(ctx context.Context, product *domain.Product, expectedVersion int64) error

	// Delete removes a product by its identifier.
	Delete(ctx context.Context, id string) error
}
