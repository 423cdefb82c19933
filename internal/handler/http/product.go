package http

import (
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/repository"
	"github.com/utafrali/storefront/internal/service"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/pagination"
)

// ProductHandler handles HTTP requests for the public catalog.
type ProductHandler struct {
	service *service.ProductService
	perPage int
	logger  *slog.Logger
}

// NewProductHandler creates a new product HTTP handler listing perPage
// products per page.
func NewProductHandler(svc *service.ProductService, perPage int, logger *slog.Logger) *ProductHandler {
	return &ProductHandler{service: svc, perPage: perPage, logger: logger}
}

// List handles GET /api/v1/products
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := parseProductFilter(r.URL.Query(), h.perPage)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	page, err := h.service.ListProducts(r.Context(), filter)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	products := page.Products
	if products == nil {
		products = []domain.Product{}
	}
	httputil.WriteSuccess(w, http.StatusOK, httputil.Payload{
		"products":              products,
		"productCount":          page.ProductCount,
		"filteredProductsCount": page.FilteredCount,
		"resultPerPage":         page.PerPage,
	})
}

// Get handles GET /api/v1/products/{id}
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.ParseID(chi.URLParam(r, "id"), "id")
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	product, err := h.service.GetProduct(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteSuccess(w, http.StatusOK, httputil.Payload{"product": product})
}

// parseProductFilter reads keyword, category, price[gte], price[lte],
// ratings[gte] and page from q.
func parseProductFilter(q url.Values, perPage int) (repository.ProductFilter, error) {
	filter := repository.ProductFilter{
		Keyword:  strings.TrimSpace(q.Get("keyword")),
		Category: strings.TrimSpace(q.Get("category")),
		Page:     pagination.FromQuery(q, perPage, false),
	}

	var err error
	if filter.MinPrice, err = optionalFloat(q, "price[gte]"); err != nil {
		return filter, err
	}
	if filter.MaxPrice, err = optionalFloat(q, "price[lte]"); err != nil {
		return filter, err
	}
	if filter.MinRatings, err = optionalFloat(q, "ratings[gte]"); err != nil {
		return filter, err
	}
	return filter, nil
}

func optionalFloat(q url.Values, key string) (*float64, error) {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, apperrors.InvalidInput(key + " must be a number")
	}
	return &v, nil
}
