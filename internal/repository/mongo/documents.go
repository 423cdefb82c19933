package mongo

import (
	"time"

	"github.com/utafrali/storefront/internal/domain"
)

const (
	usersCollection    = "users"
	productsCollection = "products"
)

type avatarDocument struct {
	PublicID string `bson:"public_id"`
	URL      string `bson:"url"`
}

type userDocument struct {
	ID                  string         `bson:"_id"`
	Name                string         `bson:"name"`
	Email               string         `bson:"email"`
	PasswordHash        string         `bson:"password"`
	Role                string         `bson:"role"`
	Avatar              avatarDocument `bson:"avatar"`
	ResetPasswordToken  string         `bson:"resetPasswordToken,omitempty"`
	ResetPasswordExpire *time.Time     `bson:"resetPasswordExpire,omitempty"`
	CreatedAt           time.Time      `bson:"createdAt"`
}

func newUserDocument(u *domain.User) userDocument {
	return userDocument{
		ID:                  u.ID,
		Name:                u.Name,
		Email:               u.Email,
		PasswordHash:        u.PasswordHash,
		Role:                u.Role,
		Avatar:              avatarDocument{PublicID: u.Avatar.PublicID, URL: u.Avatar.URL},
		ResetPasswordToken:  u.ResetPasswordToken,
		ResetPasswordExpire: u.ResetPasswordExpire,
		CreatedAt:           u.CreatedAt,
	}
}

func (d userDocument) toDomain() *domain.User {
	u := &domain.User{
		ID:           d.ID,
		Name:         d.Name,
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		Role:         d.Role,
		Avatar:       domain.Avatar{PublicID: d.Avatar.PublicID, URL: d.Avatar.URL},
		CreatedAt:    d.CreatedAt.UTC(),
	}
	if d.ResetPasswordToken != "" && d.ResetPasswordExpire != nil {
		u.ResetPasswordToken = d.ResetPasswordToken
		exp := d.ResetPasswordExpire.UTC()
		u.ResetPasswordExpire = &exp
	}
	return u
}

type imageDocument struct {
	PublicID string `bson:"public_id"`
	URL      string `bson:"url"`
}

type reviewDocument struct {
	ID        string    `bson:"_id"`
	UserID    string    `bson:"user"`
	Name      string    `bson:"name"`
	Rating    int       `bson:"rating"`
	Comment   string    `bson:"comment"`
	CreatedAt time.Time `bson:"createdAt"`
}

type productDocument struct {
	ID           string           `bson:"_id"`
	Name         string           `bson:"name"`
	Description  string           `bson:"description"`
	Price        float64          `bson:"price"`
	Category     string           `bson:"category"`
	Stock        int              `bson:"stock"`
	Images       []imageDocument  `bson:"images"`
	CreatedBy    string           `bson:"user,omitempty"`
	Ratings      float64          `bson:"ratings"`
	NumOfReviews int              `bson:"numOfReviews"`
	Reviews      []reviewDocument `bson:"reviews"`
	Version      int64            `bson:"version"`
	CreatedAt    time.Time        `bson:"createdAt"`
	UpdatedAt    time.Time        `bson:"updatedAt"`
}

func newProductDocument(p *domain.Product) productDocument {
	return productDocument{
		ID:           p.ID,
		Name:         p.Name,
		Description:  p.Description,
		Price:        p.Price,
		Category:     p.Category,
		Stock:        p.Stock,
		Images:       imageDocuments(p.Images),
		CreatedBy:    p.CreatedBy,
		Ratings:      p.Ratings,
		NumOfReviews: p.NumOfReviews,
		Reviews:      reviewDocuments(p.Reviews),
		Version:      p.Version,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}

func (d productDocument) toDomain() *domain.Product {
	p := &domain.Product{
		ID:           d.ID,
		Name:         d.Name,
		Description:  d.Description,
		Price:        d.Price,
		Category:     d.Category,
		Stock:        d.Stock,
		Images:       make([]domain.Image, 0, len(d.Images)),
		CreatedBy:    d.CreatedBy,
		Ratings:      d.Ratings,
		NumOfReviews: d.NumOfReviews,
		Reviews:      make([]domain.Review, 0, len(d.Reviews)),
		Version:      d.Version,
		CreatedAt:    d.CreatedAt.UTC(),
		UpdatedAt:    d.UpdatedAt.UTC(),
	}
	for _, img := range d.Images {
		p.Images = append(p.Images, domain.Image{PublicID: img.PublicID, URL: img.URL})
	}
	for _, r := range d.Reviews {
		p.Reviews = append(p.Reviews, domain.Review{
			ID:        r.ID,
			UserID:    r.UserID,
			Name:      r.Name,
			Rating:    r.Rating,
			Comment:   r.Comment,
			CreatedAt: r.CreatedAt.UTC(),
		})
	}
	return p
}

func imageDocuments(images []domain.Image) []imageDocument {
	docs := make([]imageDocument, 0, len(images))
	for _, img := range images {
		docs = append(docs, imageDocument{PublicID: img.PublicID, URL: img.URL})
	}
	return docs
}

func reviewDocuments(reviews []domain.Review) []reviewDocument {
	docs := make([]reviewDocument, 0, len(reviews))
	for _, r := range reviews {
		docs = append(docs, reviewDocument{
			ID:        r.ID,
			UserID:    r.UserID,
			Name:      r.Name,
			Rating:    r.Rating,
			Comment:   r.Comment,
			CreatedAt: r.CreatedAt,
		})
	}
	return docs
}
