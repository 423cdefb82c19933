package domain

import (
	"time"
)

// Review represents a product review submitted by a user. A user has at most
// one review per product.
type Review struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user"`
	Name      string    `json:"name"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"createdAt"`
}

// ReviewSummary contains aggregate review statistics for a product.
type ReviewSummary struct {
	Ratings      float64 `json:"ratings"`
	NumOfReviews int     `json:"numOfReviews"`
}
