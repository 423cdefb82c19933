package domain

import (
	"time"

	"github.com/google/uuid"
)

// Image references a stored product image.
type Image struct {
	PublicID string `json:"public_id"`
	URL      string `json:"url"`
}

// Product represents a product in the catalog together with its reviews.
// Ratings and NumOfReviews are derived from Reviews; mutate reviews only
// through UpsertReview and RemoveReview.
type Product struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Price        float64   `json:"price"`
	Category     string    `json:"category"`
	Stock        int       `json:"stock"`
	Images       []Image   `json:"images"`
	CreatedBy    string    `json:"user"`
	Ratings      float64   `json:"ratings"`
	NumOfReviews int       `json:"numOfReviews"`
	Reviews      []Review  `json:"reviews"`
	Version      int64     `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// UpsertReview records userID's review. An existing review by the same user
// has its rating and comment replaced in place; otherwise a new review is
// appended. It reports whether a review was created.
func (p *Product) UpsertReview(userID, userName string, rating int, comment string, now time.Time) bool {
	defer p.RecomputeRatings()

	for i := range p.Reviews {
		if p.Reviews[i].UserID == userID {
			p.Reviews[i].Rating = rating
			p.Reviews[i].Comment = comment
			return false
		}
	}

	p.Reviews = append(p.Reviews, Review{
		ID:        uuid.New().String(),
		UserID:    userID,
		Name:      userName,
		Rating:    rating,
		Comment:   comment,
		CreatedAt: now.UTC(),
	})
	return true
}

// RemoveReview deletes the review with reviewID and reports whether one was
// found. A missing id leaves the product unchanged.
func (p *Product) RemoveReview(reviewID string) bool {
	for i := range p.Reviews {
		if p.Reviews[i].ID == reviewID {
			p.Reviews = append(p.Reviews[:i], p.Reviews[i+1:]...)
			p.RecomputeRatings()
			return true
		}
	}
	return false
}

// FindReview returns the review with reviewID, or nil.
func (p *Product) FindReview(reviewID string) *Review {
	for i := range p.Reviews {
		if p.Reviews[i].ID == reviewID {
			return &p.Reviews[i]
		}
	}
	return nil
}

// RecomputeRatings derives NumOfReviews and Ratings from Reviews. Ratings
// is 0 when there are no reviews.
func (p *Product) RecomputeRatings() {
	p.NumOfReviews = len(p.Reviews)
	if p.NumOfReviews == 0 {
		p.Ratings = 0
		return
	}
	sum := 0
	for _, r := range p.Reviews {
		sum += r.Rating
	}
	p.Ratings = float64(sum) / float64(p.NumOfReviews)
}

// Summary returns the derived review statistics.
func (p *Product) Summary() ReviewSummary {
	return ReviewSummary{Ratings: p.Ratings, NumOfReviews: p.NumOfReviews}
}
