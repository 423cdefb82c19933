package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/repository"
	"github.com/utafrali/storefront/pkg/database"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

const productColumns = `id, name, description, price, category, stock, images, created_by,
		ratings, num_of_reviews, reviews, version, created_at, updated_at`

// ProductRepository implements repository.ProductRepository using PostgreSQL.
// Images and reviews are stored as JSONB documents on the product row.
type ProductRepository struct {
	db database.DBTX
}

// NewProductRepository creates a new PostgreSQL-backed product repository.
func NewProductRepository(db database.DBTX) *ProductRepository {
	return &ProductRepository{db: db}
}

// Create inserts a new product into the database.
func (r *ProductRepository) Create(ctx context.Context, p *domain.Product) (err error) {
	images, reviews, err := encodeDocuments(p)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO products (` + productColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	ctx, end := database.TraceQuery(ctx, "products.create", query)
	defer func() { end(err) }()

	_, err = r.db.Exec(ctx, query,
		p.ID,
		p.Name,
		p.Description,
		p.Price,
		p.Category,
		p.Stock,
		images,
		nullString(p.CreatedBy),
		p.Ratings,
		p.NumOfReviews,
		reviews,
		p.Version,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}

	return nil
}

// GetByID retrieves a product, including its reviews.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (p *domain.Product, err error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "products.get_by_id", query)
	defer func() {
		if errors.Is(err, apperrors.ErrNotFound) {
			end(nil)
			return
		}
		end(err)
	}()

	p, err = scanProductRow(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan product: %w", err)
	}

	return p, nil
}

// List returns products matching the filter and the filtered total.
func (r *ProductRepository) List(ctx context.Context, filter repository.ProductFilter) (products []domain.Product, totalCount int, err error) {
	var (
		conditions []string
		args       []any
		argIndex   = 1
	)

	if filter.Keyword != "" {
		conditions = append(conditions, fmt.Sprintf("name ILIKE $%d", argIndex))
		args = append(args, "%"+escapeLike(filter.Keyword)+"%")
		argIndex++
	}

	if filter.Category != "" {
		conditions = append(conditions, fmt.Sprintf("category = $%d", argIndex))
		args = append(args, filter.Category)
		argIndex++
	}

	if filter.MinPrice != nil {
		conditions = append(conditions, fmt.Sprintf("price >= $%d", argIndex))
		args = append(args, *filter.MinPrice)
		argIndex++
	}

	if filter.MaxPrice != nil {
		conditions = append(conditions, fmt.Sprintf("price <= $%d", argIndex))
		args = append(args, *filter.MaxPrice)
		argIndex++
	}

	if filter.MinRatings != nil {
		conditions = append(conditions, fmt.Sprintf("ratings >= $%d", argIndex))
		args = append(args, *filter.MinRatings)
		argIndex++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(`
		SELECT %s,
			   count(*) OVER() AS total_count
		FROM products
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`,
		productColumns, whereClause, argIndex, argIndex+1,
	)
	args = append(args, filter.Page.PerPage, filter.Page.Offset)

	ctx, end := database.TraceQuery(ctx, "products.list", query)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProductRow(rows, &totalCount)
		if err != nil {
			return nil, 0, fmt.Errorf("scan product row: %w", err)
		}
		products = append(products, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate product rows: %w", err)
	}

	if products == nil {
		products = []domain.Product{}
	}

	// A page past the end carries no window count.
	if len(products) == 0 && filter.Page.Offset > 0 {
		countQuery := "SELECT count(*) FROM products " + whereClause
		if err = r.db.QueryRow(ctx, countQuery, args[:len(args)-2]...).Scan(&totalCount); err != nil {
			return nil, 0, fmt.Errorf("count filtered products: %w", err)
		}
	}

	return products, totalCount, nil
}

// Count returns the number of products in the store.
func (r *ProductRepository) Count(ctx context.Context) (n int, err error) {
	query := `SELECT count(*) FROM products`

	ctx, end := database.TraceQuery(ctx, "products.count", query)
	defer func() { end(err) }()

	if err = r.db.QueryRow(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return n, nil
}

// Update modifies the descriptive fields of a product and bumps its version.
func (r *ProductRepository) Update(ctx context.Context, p *domain.Product) (err error) {
	images, err := json.Marshal(nonNilImages(p.Images))
	if err != nil {
		return fmt.Errorf("marshal images: %w", err)
	}
	p.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE products
		SET name = $1, description = $2, price = $3, category = $4, stock = $5, images = $6,
		    version = version + 1, updated_at = $7
		WHERE id = $8
		RETURNING version`

	ctx, end := database.TraceQuery(ctx, "products.update", query)
	defer func() { end(err) }()

	err = r.db.QueryRow(ctx, query,
		p.Name,
		p.Description,
		p.Price,
		p.Category,
		p.Stock,
		images,
		p.UpdatedAt,
		p.ID,
	).Scan(&p.Version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NotFound("product", p.ID)
		}
		return fmt.Errorf("update product: %w", err)
	}

	return nil
}

// SaveReviews stores reviews and derived ratings when the stored version
// still equals expectedVersion.
func (r *ProductRepository) SaveReviews(ctx context.Context, p *domain.Product, expectedVersion int64) (err error) {
	reviews, err := json.Marshal(nonNilReviews(p.Reviews))
	if err != nil {
		return fmt.Errorf("marshal reviews: %w", err)
	}
	updatedAt := time.Now().UTC()

	query := `
		UPDATE products
		SET reviews = $1, ratings = $2, num_of_reviews = $3, version = version + 1, updated_at = $4
		WHERE id = $5 AND version = $6`

	ctx, end := database.TraceQuery(ctx, "products.save_reviews", query)
	defer func() {
		if errors.Is(err, repository.ErrVersionConflict) {
			end(nil)
			return
		}
		end(err)
	}()

	ct, err := r.db.Exec(ctx, query,
		reviews,
		p.Ratings,
		p.NumOfReviews,
		updatedAt,
		p.ID,
		expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("save reviews: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return repository.ErrVersionConflict
	}

	p.Version = expectedVersion + 1
	p.UpdatedAt = updatedAt
	return nil
}

// Delete removes a product from the database by its ID.
func (r *ProductRepository) Delete(ctx context.Context, id string) (err error) {
	query := `DELETE FROM products WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "products.delete", query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("product", id)
	}

	return nil
}

// scanProductRow scans productColumns followed by any extra destinations.
func scanProductRow(row pgx.Row, extra ...any) (*domain.Product, error) {
	var (
		p           domain.Product
		createdBy   *string
		imagesJSON  []byte
		reviewsJSON []byte
	)

	dest := []any{
		&p.ID,
		&p.Name,
		&p.Description,
		&p.Price,
		&p.Category,
		&p.Stock,
		&imagesJSON,
		&createdBy,
		&p.Ratings,
		&p.NumOfReviews,
		&reviewsJSON,
		&p.Version,
		&p.CreatedAt,
		&p.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	if createdBy != nil {
		p.CreatedBy = *createdBy
	}
	if len(imagesJSON) > 0 {
		if err := json.Unmarshal(imagesJSON, &p.Images); err != nil {
			return nil, fmt.Errorf("unmarshal images: %w", err)
		}
	}
	if len(reviewsJSON) > 0 {
		if err := json.Unmarshal(reviewsJSON, &p.Reviews); err != nil {
			return nil, fmt.Errorf("unmarshal reviews: %w", err)
		}
	}
	p.Images = nonNilImages(p.Images)
	p.Reviews = nonNilReviews(p.Reviews)

	return &p, nil
}

func encodeDocuments(p *domain.Product) (images, reviews []byte, err error) {
	images, err = json.Marshal(nonNilImages(p.Images))
	if err != nil {
		return nil, nil, fmt.Errorf("marshal images: %w", err)
	}
	reviews, err = json.Marshal(nonNilReviews(p.Reviews))
	if err != nil {
		return nil, nil, fmt.Errorf("marshal reviews: %w", err)
	}
	return images, reviews, nil
}

func nonNilImages(images []domain.Image) []domain.Image {
	if images == nil {
		return []domain.Image{}
	}
	return images
}

func nonNilReviews(reviews []domain.Review) []domain.Review {
	if reviews == nil {
		return []domain.Review{}
	}
	return reviews
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes s match literally inside an ILIKE pattern.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
