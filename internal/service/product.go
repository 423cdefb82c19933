package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/repository"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// MsgProductNotFound is returned for any lookup of a missing product.
const MsgProductNotFound = "Product not found"

// ProductInput holds the descriptive fields of a product.
type ProductInput struct {
	Name        string
	Description string
	Price       float64
	Category    string
	Stock       int
	Images      []domain.Image
}

// ProductPage is one page of a filtered product listing.
type ProductPage struct {
	Products      []domain.Product
	ProductCount  int
	FilteredCount int
	PerPage       int
}

// ProductService implements the product catalog operations.
type ProductService struct {
	products repository.ProductRepository
	logger   *slog.Logger
}

// NewProductService creates a new product service.
func NewProductService(products repository.ProductRepository, logger *slog.Logger) *ProductService {
	return &ProductService{
		products: products,
		logger:   logger,
	}
}

// CreateProduct adds a product to the catalog on behalf of creatorID.
func (s *ProductService) CreateProduct(ctx context.Context, creatorID string, input ProductInput) (*domain.Product, error) {
	now := time.Now().UTC()
	p := &domain.Product{
		ID:        uuid.New().String(),
		CreatedBy: creatorID,
		Reviews:   []domain.Review{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	applyProductInput(p, input)
	p.RecomputeRatings()

	if err := s.products.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}

	s.logger.InfoContext(ctx, "product created",
		slog.String("product_id", p.ID),
		slog.String("created_by", creatorID),
	)
	return p, nil
}

// GetProduct returns a product with its reviews.
func (s *ProductService) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	p, err := s.products.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFoundMessage(MsgProductNotFound)
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

// ListProducts returns one page of products matching filter along with the
// catalog size and the number of matches.
func (s *ProductService) ListProducts(ctx context.Context, filter repository.ProductFilter) (*ProductPage, error) {
	total, err := s.products.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count products: %w", err)
	}

	products, filtered, err := s.products.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	return &ProductPage{
		Products:      products,
		ProductCount:  total,
		FilteredCount: filtered,
		PerPage:       filter.Page.PerPage,
	}, nil
}

// UpdateProduct replaces the descriptive fields of a product.
func (s *ProductService) UpdateProduct(ctx context.Context, id string, input ProductInput) (*domain.Product, error) {
	p, err := s.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	applyProductInput(p, input)
	if err := s.products.Update(ctx, p); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFoundMessage(MsgProductNotFound)
		}
		return nil, fmt.Errorf("update product: %w", err)
	}

	s.logger.InfoContext(ctx, "product updated", slog.String("product_id", id))
	return p, nil
}

// DeleteProduct removes a product and its reviews.
func (s *ProductService) DeleteProduct(ctx context.Context, id string) error {
	if err := s.products.Delete(ctx, id); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.NotFoundMessage(MsgProductNotFound)
		}
		return fmt.Errorf("delete product: %w", err)
	}

	s.logger.InfoContext(ctx, "product deleted", slog.String("product_id", id))
	return nil
}

func applyProductInput(p *domain.Product, input ProductInput) {
	p.Name = input.Name
	p.Description = input.Description
	p.Price = input.Price
	p.Category = input.Category
	p.Stock = input.Stock
	p.Images = input.Images
	if p.Images == nil {
		p.Images = []domain.Image{}
	}
}
