// Package seed populates a storefront database with an admin account and a
// deterministic demo catalog. Re-running it with the same options leaves the
// store in the same state.
package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/repository"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// Namespaces for the name-based UUIDs of seeded records.
var (
	productNamespace = uuid.MustParse("6f1c2d8e-4b3a-4e5f-9a7b-1c2d3e4f5a6b")
	userNamespace    = uuid.MustParse("a9e8d7c6-b5a4-4f3e-8d2c-1b0a9f8e7d6c")
)

// Options controls what Run writes.
type Options struct {
	Products      int
	AdminName     string
	AdminEmail    string
	AdminPassword string
	BcryptCost    int
	// RandSeed drives name, price and stock generation.
	RandSeed int64
}

// DefaultOptions returns options for a small local catalog.
func DefaultOptions() Options {
	return Options{
		Products:      200,
		AdminName:     "Store Admin",
		AdminEmail:    "admin@storefront.local",
		AdminPassword: "admin12345",
		BcryptCost:    10,
		RandSeed:      42,
	}
}

// Result summarises a seeding run.
type Result struct {
	AdminID         string
	AdminCreated    bool
	ProductsCreated int
	ProductsSkipped int
}

// ProductID returns the stable identifier of the index-th seeded product.
func ProductID(index int) string {
	return uuid.NewSHA1(productNamespace, []byte(strconv.Itoa(index))).String()
}

// AdminID returns the stable identifier of the seeded admin for email.
func AdminID(email string) string {
	return uuid.NewSHA1(userNamespace, []byte(email)).String()
}

var categories = []string{
	"Electronics", "Cameras", "Laptops", "Accessories", "Headphones",
	"Food", "Books", "Clothes/Shoes", "Beauty/Health", "Sports", "Outdoor", "Home",
}

var adjectives = []string{
	"Classic", "Compact", "Deluxe", "Everyday", "Lightweight",
	"Premium", "Rugged", "Slim", "Smart", "Wireless",
}

var nouns = map[string][]string{
	"Electronics":   {"Speaker", "Smartwatch", "Tablet", "Power Bank"},
	"Cameras":       {"Mirrorless Camera", "Action Camera", "Tripod", "Lens Kit"},
	"Laptops":       {"Ultrabook", "Gaming Laptop", "Chromebook"},
	"Accessories":   {"Phone Case", "Charging Cable", "Laptop Sleeve", "Mouse"},
	"Headphones":    {"Earbuds", "Over-Ear Headphones", "Headset"},
	"Food":          {"Coffee Beans", "Green Tea", "Granola", "Olive Oil"},
	"Books":         {"Cookbook", "Travel Guide", "Novel", "Notebook"},
	"Clothes/Shoes": {"Sneakers", "Rain Jacket", "Hoodie", "Boots"},
	"Beauty/Health": {"Face Cream", "Shampoo", "Electric Toothbrush"},
	"Sports":        {"Yoga Mat", "Dumbbell Set", "Football", "Jump Rope"},
	"Outdoor":       {"Tent", "Sleeping Bag", "Backpack", "Water Bottle"},
	"Home":          {"Desk Lamp", "Throw Blanket", "Kettle", "Plant Pot"},
}

// GenerateProducts builds n products owned by createdBy. The same seed always
// yields the same products.
func GenerateProducts(n int, seed int64, createdBy string, now time.Time) []domain.Product {
	rng := rand.New(rand.NewSource(seed))
	products := make([]domain.Product, 0, n)
	for i := 0; i < n; i++ {
		category := categories[i%len(categories)]
		kinds := nouns[category]
		name := fmt.Sprintf("%s %s", adjectives[rng.Intn(len(adjectives))], kinds[rng.Intn(len(kinds))])
		// Whole cents between 4.99 and 1999.99.
		price := float64(499+rng.Intn(199501)) / 100

		id := ProductID(i)
		products = append(products, domain.Product{
			ID:          id,
			Name:        name,
			Description: fmt.Sprintf("%s from the %s range. Item %d of the demo catalog.", name, category, i+1),
			Price:       price,
			Category:    category,
			Stock:       rng.Intn(200),
			Images: []domain.Image{{
				PublicID: "seed/" + id,
				URL:      fmt.Sprintf("https://picsum.photos/seed/%s/600/600", id),
			}},
			CreatedBy: createdBy,
			Reviews:   []domain.Review{},
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	return products
}

// Run ensures the admin account exists and inserts every generated product
// that is not stored yet.
func Run(ctx context.Context, users repository.UserRepository, products repository.ProductRepository, opts Options, logger *slog.Logger) (*Result, error) {
	now := time.Now().UTC()

	admin, created, err := ensureAdmin(ctx, users, opts, now)
	if err != nil {
		return nil, err
	}
	res := &Result{AdminID: admin.ID, AdminCreated: created}
	logger.InfoContext(ctx, "seed admin ready",
		slog.String("user_id", admin.ID),
		slog.String("email", admin.Email),
		slog.Bool("created", created),
	)

	for i, p := range GenerateProducts(opts.Products, opts.RandSeed, admin.ID, now) {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		_, err := products.GetByID(ctx, p.ID)
		switch {
		case err == nil:
			res.ProductsSkipped++
			continue
		case !errors.Is(err, apperrors.ErrNotFound):
			return res, fmt.Errorf("look up product %d: %w", i, err)
		}

		if err := products.Create(ctx, &p); err != nil {
			return res, fmt.Errorf("create product %d: %w", i, err)
		}
		res.ProductsCreated++

		if res.ProductsCreated%100 == 0 {
			logger.InfoContext(ctx, "seeding products", slog.Int("created", res.ProductsCreated))
		}
	}

	logger.InfoContext(ctx, "seed complete",
		slog.Int("products_created", res.ProductsCreated),
		slog.Int("products_skipped", res.ProductsSkipped),
	)
	return res, nil
}

// ensureAdmin returns the account registered under opts.AdminEmail, promoting
// it to admin if needed, or creates it.
func ensureAdmin(ctx context.Context, users repository.UserRepository, opts Options, now time.Time) (*domain.User, bool, error) {
	existing, err := users.GetByEmail(ctx, opts.AdminEmail)
	if err == nil {
		if existing.Role == domain.RoleAdmin {
			return existing, false, nil
		}
		existing.Role = domain.RoleAdmin
		if err := users.Update(ctx, existing); err != nil {
			return nil, false, fmt.Errorf("promote seed admin: %w", err)
		}
		return existing, false, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, false, fmt.Errorf("look up seed admin: %w", err)
	}

	admin, err := domain.NewUser(domain.NewUserInput{
		Name:     opts.AdminName,
		Email:    opts.AdminEmail,
		Password: opts.AdminPassword,
	}, opts.BcryptCost)
	if err != nil {
		return nil, false, fmt.Errorf("build seed admin: %w", err)
	}
	admin.ID = AdminID(opts.AdminEmail)
	admin.Role = domain.RoleAdmin
	admin.CreatedAt = now

	if err := users.Create(ctx, admin); err != nil {
		return nil, false, fmt.Errorf("create seed admin: %w", err)
	}
	return admin, true, nil
}
