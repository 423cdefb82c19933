package http

import (
	"log/slog"
	"net/http"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/service"
	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/middleware"
)

// ReviewHandler handles HTTP requests for product reviews.
type ReviewHandler struct {
	service *service.ReviewService
	logger  *slog.Logger
}

// NewReviewHandler creates a new review HTTP handler.
func NewReviewHandler(svc *service.ReviewService, logger *slog.Logger) *ReviewHandler {
	return &ReviewHandler{service: svc, logger: logger}
}

// SubmitReviewRequest is the JSON request body for creating or replacing the
// caller's review.
type SubmitReviewRequest struct {
	ProductID string `json:"productId" validate:"required"`
	Rating    int    `json:"rating" validate:"required,min=1,max=5"`
	Comment   string `json:"comment" validate:"required,max=1000"`
}

// Submit handles PUT /api/v1/review
func (h *ReviewHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req SubmitReviewRequest
	if err := decodeBody(w, r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	productID, err := httputil.ParseID(req.ProductID, "productId")
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	p := middleware.PrincipalFromContext(r.Context())
	product, err := h.service.SubmitReview(r.Context(), service.SubmitReviewInput{
		ProductID: productID,
		UserID:    p.UserID,
		UserName:  p.Name,
		Rating:    req.Rating,
		Comment:   req.Comment,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteSuccess(w, http.StatusOK, httputil.Payload{
		"ratings":      product.Ratings,
		"numOfReviews": product.NumOfReviews,
	})
}

// List handles GET /api/v1/reviews?id={productId}
func (h *ReviewHandler) List(w http.ResponseWriter, r *http.Request) {
	productID, err := httputil.ParseID(r.URL.Query().Get("id"), "id")
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	reviews, err := h.service.ListReviews(r.Context(), productID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	if reviews == nil {
		reviews = []domain.Review{}
	}

	httputil.WriteSuccess(w, http.StatusOK, httputil.Payload{"reviews": reviews})
}

// Delete handles DELETE /api/v1/reviews?productId={productId}&id={reviewId}
func (h *ReviewHandler) Delete(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	productID, err := httputil.ParseID(q.Get("productId"), "productId")
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	reviewID, err := httputil.ParseID(q.Get("id"), "id")
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	p := middleware.PrincipalFromContext(r.Context())
	product, err := h.service.RemoveReview(r.Context(), productID, reviewID, service.Reviewer{
		UserID:  p.UserID,
		IsAdmin: p.Role == domain.RoleAdmin,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteSuccess(w, http.StatusOK, httputil.Payload{
		"ratings":      product.Ratings,
		"numOfReviews": product.NumOfReviews,
	})
}
