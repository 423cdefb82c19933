package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/repository"
	"github.com/utafrali/storefront/pkg/database"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// ProductRepository implements repository.ProductRepository using MongoDB.
// Reviews are embedded in the product document.
type ProductRepository struct {
	coll *mongo.Collection
}

// NewProductRepository creates a new MongoDB-backed product repository.
func NewProductRepository(db *mongo.Database) *ProductRepository {
	return &ProductRepository{coll: db.Collection(productsCollection)}
}

// Create inserts a new product document.
func (r *ProductRepository) Create(ctx context.Context, p *domain.Product) (err error) {
	ctx, end := database.TraceOperation(ctx, database.SystemMongo, "products.insert", productsCollection)
	defer func() { end(err) }()

	if _, err = r.coll.InsertOne(ctx, newProductDocument(p)); err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

// GetByID retrieves a product, including its reviews.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (p *domain.Product, err error) {
	ctx, end := database.TraceOperation(ctx, database.SystemMongo, "products.find_by_id", productsCollection)
	defer func() {
		if errors.Is(err, apperrors.ErrNotFound) {
			end(nil)
			return
		}
		end(err)
	}()

	var doc productDocument
	if err := r.coll.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("find product: %w", err)
	}
	return doc.toDomain(), nil
}

// productQuery translates a filter into a MongoDB query document.
func productQuery(filter repository.ProductFilter) bson.D {
	q := bson.D{}
	if filter.Keyword != "" {
		q = append(q, bson.E{Key: "name", Value: bson.D{
			{Key: "$regex", Value: regexp.QuoteMeta(filter.Keyword)},
			{Key: "$options", Value: "i"},
		}})
	}
	if filter.Category != "" {
		q = append(q, bson.E{Key: "category", Value: filter.Category})
	}
	if filter.MinPrice != nil || filter.MaxPrice != nil {
		price := bson.D{}
		if filter.MinPrice != nil {
			price = append(price, bson.E{Key: "$gte", Value: *filter.MinPrice})
		}
		if filter.MaxPrice != nil {
			price = append(price, bson.E{Key: "$lte", Value: *filter.MaxPrice})
		}
		q = append(q, bson.E{Key: "price", Value: price})
	}
	if filter.MinRatings != nil {
		q = append(q, bson.E{Key: "ratings", Value: bson.D{{Key: "$gte", Value: *filter.MinRatings}}})
	}
	return q
}

// List returns one page of matching products and the filtered total.
func (r *ProductRepository) List(ctx context.Context, filter repository.ProductFilter) (products []domain.Product, total int, err error) {
	ctx, end := database.TraceOperation(ctx, database.SystemMongo, "products.find", productsCollection)
	defer func() { end(err) }()

	q := productQuery(filter)

	n, err := r.coll.CountDocuments(ctx, q)
	if err != nil {
		return nil, 0, fmt.Errorf("count filtered products: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip(int64(filter.Page.Offset)).
		SetLimit(int64(filter.Page.PerPage))
	cur, err := r.coll.Find(ctx, q, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}

	var docs []productDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, fmt.Errorf("decode products: %w", err)
	}

	products = make([]domain.Product, 0, len(docs))
	for _, d := range docs {
		products = append(products, *d.toDomain())
	}
	return products, int(n), nil
}

// Count returns the number of products in the store.
func (r *ProductRepository) Count(ctx context.Context) (n int, err error) {
	ctx, end := database.TraceOperation(ctx, database.SystemMongo, "products.count", productsCollection)
	defer func() { end(err) }()

	c, err := r.coll.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return int(c), nil
}

// Update sets the descriptive fields of a product and bumps its version.
func (r *ProductRepository) Update(ctx context.Context, p *domain.Product) (err error) {
	ctx, end := database.TraceOperation(ctx, database.SystemMongo, "products.update", productsCollection)
	defer func() { end(err) }()

	p.UpdatedAt = time.Now().UTC()
	update := bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "name", Value: p.Name},
			{Key: "description", Value: p.Description},
			{Key: "price", Value: p.Price},
			{Key: "category", Value: p.Category},
			{Key: "stock", Value: p.Stock},
			{Key: "images", Value: imageDocuments(p.Images)},
			{Key: "updatedAt", Value: p.UpdatedAt},
		}},
		{Key: "$inc", Value: bson.D{{Key: "version", Value: 1}}},
	}
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(bson.D{{Key: "version", Value: 1}})

	var out struct {
		Version int64 `bson:"version"`
	}
	err = r.coll.FindOneAndUpdate(ctx, bson.D{{Key: "_id", Value: p.ID}}, update, opts).Decode(&out)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return apperrors.NotFound("product", p.ID)
		}
		return fmt.Errorf("update product: %w", err)
	}
	p.Version = out.Version
	return nil
}

// SaveReviews stores reviews and derived ratings when the stored version
// still equals expectedVersion.
func (r *ProductRepository) SaveReviews(ctx context.Context, p *domain.Product, expectedVersion int64) (err error) {
	ctx, end := database.TraceOperation(ctx, database.SystemMongo, "products.save_reviews", productsCollection)
	defer func() {
		if errors.Is(err, repository.ErrVersionConflict) {
			end(nil)
			return
		}
		end(err)
	}()

	updatedAt := time.Now().UTC()
	filter := bson.D{{Key: "_id", Value: p.ID}, {Key: "version", Value: expectedVersion}}
	update := bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "reviews", Value: reviewDocuments(p.Reviews)},
			{Key: "ratings", Value: p.Ratings},
			{Key: "numOfReviews", Value: p.NumOfReviews},
			{Key: "updatedAt", Value: updatedAt},
		}},
		{Key: "$inc", Value: bson.D{{Key: "version", Value: 1}}},
	}

	res, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("save reviews: %w", err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrVersionConflict
	}

	p.Version = expectedVersion + 1
	p.UpdatedAt = updatedAt
	return nil
}

// Delete removes a product document by ID.
func (r *ProductRepository) Delete(ctx context.Context, id string) (err error) {
	ctx, end := database.TraceOperation(ctx, database.SystemMongo, "products.delete", productsCollection)
	defer func() { end(err) }()

	res, err := r.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if res.DeletedCount == 0 {
		return apperrors.NotFound("product", id)
	}
	return nil
}
