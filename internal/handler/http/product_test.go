package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/repository"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

func sampleProduct(reviews ...domain.Review) *domain.Product {
	p := &domain.Product{
		ID:          productID,
		Name:        "Laptop",
		Description: "A fast laptop",
		Price:       1299.99,
		Category:    "Laptops",
		Stock:       4,
		Images:      []domain.Image{},
		CreatedBy:   adminID,
		Reviews:     reviews,
		Version:     1,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
	p.RecomputeRatings()
	return p
}

// ============================================================================
// Catalog Tests
// ============================================================================

func TestListProducts_ParsesFilters(t *testing.T) {
	env := newTestEnv(t)
	env.products.On("Count", mock.Anything).Return(12, nil)
	env.products.On("List", mock.Anything, mock.MatchedBy(func(f repository.ProductFilter) bool {
		return f.Keyword == "lap" &&
			f.Category == "Laptops" &&
			f.MinPrice != nil && *f.MinPrice == 100 &&
			f.MaxPrice != nil && *f.MaxPrice == 2000 &&
			f.MinRatings != nil && *f.MinRatings == 4 &&
			f.Page.Page == 2 && f.Page.PerPage == 8 && f.Page.Offset == 8
	})).Return([]domain.Product{*sampleProduct()}, 9, nil)

	rec := env.do(t, http.MethodGet,
		"/api/v1/products?keyword=lap&category=Laptops&price[gte]=100&price[lte]=2000&ratings[gte]=4&page=2", nil, "")

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeJSON(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Len(t, body["products"], 1)
	assert.Equal(t, 12.0, body["productCount"])
	assert.Equal(t, 9.0, body["filteredProductsCount"])
	assert.Equal(t, 8.0, body["resultPerPage"])
	env.products.AssertExpectations(t)
}

func TestListProducts_EmptyCatalog(t *testing.T) {
	env := newTestEnv(t)
	env.products.On("Count", mock.Anything).Return(0, nil)
	env.products.On("List", mock.Anything, mock.Anything).Return([]domain.Product(nil), 0, nil)

	rec := env.do(t, http.MethodGet, "/api/v1/products", nil, "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{}, decodeJSON(t, rec)["products"])
}

func TestListProducts_BadPrice(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/products?price[gte]=cheap", nil, "")

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "price[gte] must be a number", decodeJSON(t, rec)["message"])
	env.products.AssertNotCalled(t, "Count", mock.Anything)
}

func TestGetProduct(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		env := newTestEnv(t)
		env.products.On("GetByID", mock.Anything, productID).Return(sampleProduct(), nil)

		rec := env.do(t, http.MethodGet, "/api/v1/products/"+productID, nil, "")

		require.Equal(t, http.StatusOK, rec.Code)
		product := decodeJSON(t, rec)["product"].(map[string]any)
		assert.Equal(t, "Laptop", product["name"])
		assert.Equal(t, adminID, product["user"])
		assert.NotContains(t, product, "version")
	})

	t.Run("not found", func(t *testing.T) {
		env := newTestEnv(t)
		env.products.On("GetByID", mock.Anything, productID).Return(nil, apperrors.ErrNotFound)

		rec := env.do(t, http.MethodGet, "/api/v1/products/"+productID, nil, "")

		require.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "Product not found", decodeJSON(t, rec)["message"])
	})

	t.Run("malformed id", func(t *testing.T) {
		env := newTestEnv(t)

		rec := env.do(t, http.MethodGet, "/api/v1/products/123", nil, "")

		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Resource not found. Invalid: id", decodeJSON(t, rec)["message"])
	})

	t.Run("storage failure is masked", func(t *testing.T) {
		env := newTestEnv(t)
		env.products.On("GetByID", mock.Anything, productID).Return(nil, errors.New("pq: connection refused"))

		rec := env.do(t, http.MethodGet, "/api/v1/products/"+productID, nil, "")

		require.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "an internal error occurred", decodeJSON(t, rec)["message"])
	})
}

// ============================================================================
// Admin Product Tests
// ============================================================================

func TestAdminCreateProduct(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, newUser(t, adminID, domain.RoleAdmin))
	env.products.On("Create", mock.Anything, mock.AnythingOfType("*domain.Product")).Return(nil)

	rec := env.do(t, http.MethodPost, "/api/v1/admin/products", map[string]any{
		"name":        "Laptop",
		"description": "A fast laptop",
		"price":       1299.99,
		"category":    "Laptops",
		"stock":       4,
		"images":      []map[string]string{{"public_id": "img-1", "url": "https://cdn.example.com/1.png"}},
	}, token)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	product := decodeJSON(t, rec)["product"].(map[string]any)
	assert.Equal(t, adminID, product["user"])
	assert.Equal(t, 0.0, product["ratings"])
	assert.Len(t, product["images"], 1)
}

func TestAdminCreateProduct_Validation(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, newUser(t, adminID, domain.RoleAdmin))

	rec := env.do(t, http.MethodPost, "/api/v1/admin/products", map[string]any{
		"price": -1,
		"stock": 100000,
	}, token)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	fields := decodeJSON(t, rec)["fields"].(map[string]any)
	for _, f := range []string{"name", "description", "category", "price", "stock"} {
		assert.Contains(t, fields, f)
	}
	env.products.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestAdminUpdateProduct_NotFound(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, newUser(t, adminID, domain.RoleAdmin))
	env.products.On("GetByID", mock.Anything, productID).Return(nil, apperrors.ErrNotFound)

	rec := env.do(t, http.MethodPut, "/api/v1/admin/products/"+productID, map[string]any{
		"name": "Laptop", "description": "A fast laptop", "price": 10, "category": "Laptops", "stock": 1,
	}, token)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminDeleteProduct(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, newUser(t, adminID, domain.RoleAdmin))
	env.products.On("Delete", mock.Anything, productID).Return(nil)

	rec := env.do(t, http.MethodDelete, "/api/v1/admin/products/"+productID, nil, token)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Product deleted successfully", decodeJSON(t, rec)["message"])
}

func TestAdminProducts_ForbiddenForUsers(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, newUser(t, userID, domain.RoleUser))

	rec := env.do(t, http.MethodDelete, "/api/v1/admin/products/"+productID, nil, token)

	require.Equal(t, http.StatusForbidden, rec.Code)
	env.products.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

// ============================================================================
// Review Tests
// ============================================================================

func TestSubmitReview(t *testing.T) {
	env := newTestEnv(t)
	u := newUser(t, userID, domain.RoleUser)
	token := env.login(t, u)

	existing := domain.Review{ID: "11111111-2222-4333-8444-555555555555", UserID: adminID, Name: "Admin", Rating: 2}
	env.products.On("GetByID", mock.Anything, productID).Return(sampleProduct(existing), nil)
	env.products.On("SaveReviews", mock.Anything, mock.AnythingOfType("*domain.Product"), int64(1)).Return(nil)

	rec := env.do(t, http.MethodPut, "/api/v1/review", map[string]any{
		"productId": productID,
		"rating":    4,
		"comment":   "solid",
	}, token)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeJSON(t, rec)
	assert.Equal(t, 3.0, body["ratings"])
	assert.Equal(t, 2.0, body["numOfReviews"])

	saved := env.products.Calls[len(env.products.Calls)-1].Arguments.Get(1).(*domain.Product)
	r := saved.Reviews[len(saved.Reviews)-1]
	assert.Equal(t, u.ID, r.UserID)
	assert.Equal(t, u.Name, r.Name)
}

func TestSubmitReview_Validation(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, newUser(t, userID, domain.RoleUser))

	rec := env.do(t, http.MethodPut, "/api/v1/review", map[string]any{
		"productId": productID,
		"rating":    9,
		"comment":   "too much",
	}, token)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeJSON(t, rec)["fields"], "rating")
}

func TestSubmitReview_RequiresLogin(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPut, "/api/v1/review", map[string]any{"productId": productID, "rating": 4, "comment": "x"}, "")

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSubmitReview_ConflictExhausted(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, newUser(t, userID, domain.RoleUser))
	env.products.On("GetByID", mock.Anything, productID).Return(sampleProduct(), nil)
	env.products.On("SaveReviews", mock.Anything, mock.Anything, mock.Anything).Return(repository.ErrVersionConflict)

	rec := env.do(t, http.MethodPut, "/api/v1/review", map[string]any{"productId": productID, "rating": 4, "comment": "x"}, token)

	require.Equal(t, http.StatusConflict, rec.Code)
	env.products.AssertNumberOfCalls(t, "SaveReviews", 3)
}

func TestListReviews(t *testing.T) {
	env := newTestEnv(t)
	review := domain.Review{ID: "11111111-2222-4333-8444-555555555555", UserID: userID, Name: "Alice", Rating: 5, Comment: "great"}
	env.products.On("GetByID", mock.Anything, productID).Return(sampleProduct(review), nil)

	rec := env.do(t, http.MethodGet, "/api/v1/reviews?id="+productID, nil, "")

	require.Equal(t, http.StatusOK, rec.Code)
	reviews := decodeJSON(t, rec)["reviews"].([]any)
	require.Len(t, reviews, 1)
	assert.Equal(t, userID, reviews[0].(map[string]any)["user"])
}

func TestDeleteReview(t *testing.T) {
	review := domain.Review{ID: "11111111-2222-4333-8444-555555555555", UserID: adminID, Name: "Admin", Rating: 5}
	path := "/api/v1/reviews?productId=" + productID + "&id=" + review.ID

	t.Run("other user's review", func(t *testing.T) {
		env := newTestEnv(t)
		token := env.login(t, newUser(t, userID, domain.RoleUser))
		env.products.On("GetByID", mock.Anything, productID).Return(sampleProduct(review), nil)

		rec := env.do(t, http.MethodDelete, path, nil, token)

		require.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "You are not allowed to delete this review", decodeJSON(t, rec)["message"])
	})

	t.Run("author", func(t *testing.T) {
		env := newTestEnv(t)
		token := env.login(t, newUser(t, adminID, domain.RoleAdmin))
		env.products.On("GetByID", mock.Anything, productID).Return(sampleProduct(review), nil)
		env.products.On("SaveReviews", mock.Anything, mock.Anything, int64(1)).Return(nil)

		rec := env.do(t, http.MethodDelete, path, nil, token)

		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeJSON(t, rec)
		assert.Equal(t, 0.0, body["ratings"])
		assert.Equal(t, 0.0, body["numOfReviews"])
	})

	t.Run("unknown review id", func(t *testing.T) {
		env := newTestEnv(t)
		token := env.login(t, newUser(t, adminID, domain.RoleAdmin))
		env.products.On("GetByID", mock.Anything, productID).Return(sampleProduct(review), nil)

		rec := env.do(t, http.MethodDelete, "/api/v1/reviews?productId="+productID+"&id=99999999-2222-4333-8444-555555555555", nil, token)

		require.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "Review not found", decodeJSON(t, rec)["message"])
		env.products.AssertNotCalled(t, "SaveReviews", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("missing query", func(t *testing.T) {
		env := newTestEnv(t)
		token := env.login(t, newUser(t, userID, domain.RoleUser))

		rec := env.do(t, http.MethodDelete, "/api/v1/reviews?id="+review.ID, nil, token)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Resource not found. Invalid: productId", decodeJSON(t, rec)["message"])
	})
}

// ============================================================================
// Operational Endpoint Tests
// ============================================================================

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t)
	env.health.RegisterCritical("database", func(context.Context) error { return nil })
	env.health.Register("kafka", func(context.Context) error { return errors.New("no brokers") })

	rec := env.do(t, http.MethodGet, "/health/live", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/health/ready", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code, "non-critical failure only degrades")
	assert.Equal(t, "degraded", decodeJSON(t, rec)["status"])

	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `http_requests_total{method="GET",path="/health/live",service="storefront",status="200"} 1`)
}
