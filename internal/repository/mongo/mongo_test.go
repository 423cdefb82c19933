package mongo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/repository"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/pagination"
)

var now = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func newMockT(t *testing.T) *mtest.T {
	t.Helper()
	return mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
}

// toD round-trips a document struct through BSON so mock responses carry
// exactly what the repository would have written.
func toD(t *testing.T, v any) bson.D {
	t.Helper()
	raw, err := bson.Marshal(v)
	require.NoError(t, err)
	var d bson.D
	require.NoError(t, bson.Unmarshal(raw, &d))
	return d
}

func ns(mt *mtest.T, coll string) string {
	return mt.DB.Name() + "." + coll
}

func sampleUser() *domain.User {
	return &domain.User{
		ID:           "5b7c1a3e-8f7d-4c3e-9a51-2d8f0b6e4a10",
		Name:         "Alice",
		Email:        "alice@example.com",
		PasswordHash: "hash-abc",
		Role:         domain.RoleUser,
		Avatar:       domain.Avatar{PublicID: domain.DefaultAvatarPublicID, URL: domain.DefaultAvatarURL},
		CreatedAt:    now,
	}
}

func sampleProduct() *domain.Product {
	return &domain.Product{
		ID:          "0f8b6c2a-1d3e-4a5b-9c7d-8e9f0a1b2c3d",
		Name:        "Widget",
		Description: "A fine widget",
		Price:       99.5,
		Category:    "Laptop",
		Stock:       4,
		Images:      []domain.Image{{PublicID: "img-1", URL: "https://cdn.example.com/1.jpg"}},
		CreatedBy:   "5b7c1a3e-8f7d-4c3e-9a51-2d8f0b6e4a10",
		Ratings:     5,
		Reviews: []domain.Review{
			{ID: "r1", UserID: "u1", Name: "User One", Rating: 5, Comment: "great", CreatedAt: now},
		},
		NumOfReviews: 1,
		Version:      2,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// ---------------------------------------------------------------------------
// Users
// ---------------------------------------------------------------------------

func TestUserRepository_Create(t *testing.T) {
	mt := newMockT(t)

	mt.Run("success", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())
		repo := NewUserRepository(mt.DB)

		assert.NoError(mt, repo.Create(context.Background(), sampleUser()))
	})

	mt.Run("duplicate email", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "E11000 duplicate key error collection: users index: email_1",
		}))
		repo := NewUserRepository(mt.DB)

		err := repo.Create(context.Background(), sampleUser())
		assert.ErrorIs(mt, err, apperrors.ErrAlreadyExists)
	})
}

func TestUserRepository_GetByID(t *testing.T) {
	mt := newMockT(t)

	mt.Run("found", func(mt *mtest.T) {
		u := sampleUser()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns(mt, usersCollection), mtest.FirstBatch,
			toD(mt.T, newUserDocument(u))))
		repo := NewUserRepository(mt.DB)

		got, err := repo.GetByID(context.Background(), u.ID)
		require.NoError(mt, err)
		assert.Equal(mt, u.ID, got.ID)
		assert.Equal(mt, u.Email, got.Email)
		assert.Equal(mt, u.Avatar, got.Avatar)
		assert.False(mt, got.HasResetToken())
	})

	mt.Run("not found", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns(mt, usersCollection), mtest.FirstBatch))
		repo := NewUserRepository(mt.DB)

		got, err := repo.GetByID(context.Background(), "missing")
		assert.Nil(mt, got)
		assert.ErrorIs(mt, err, apperrors.ErrNotFound)
	})
}

func TestUserRepository_GetByResetToken(t *testing.T) {
	mt := newMockT(t)

	mt.Run("found", func(mt *mtest.T) {
		u := sampleUser()
		require.NoError(mt, u.SetResetToken("token-hash", now.Add(15*time.Minute), now))
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns(mt, usersCollection), mtest.FirstBatch,
			toD(mt.T, newUserDocument(u))))
		repo := NewUserRepository(mt.DB)

		got, err := repo.GetByResetToken(context.Background(), "token-hash", now)
		require.NoError(mt, err)
		assert.Equal(mt, "token-hash", got.ResetPasswordToken)
		require.NotNil(mt, got.ResetPasswordExpire)
		assert.True(mt, got.ResetPasswordExpire.Equal(now.Add(15*time.Minute)))
	})
}

func TestUserRepository_UpdateAndDelete(t *testing.T) {
	mt := newMockT(t)

	mt.Run("update matched", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}))
		repo := NewUserRepository(mt.DB)

		assert.NoError(mt, repo.Update(context.Background(), sampleUser()))
	})

	mt.Run("update missing", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}))
		repo := NewUserRepository(mt.DB)

		assert.ErrorIs(mt, repo.Update(context.Background(), sampleUser()), apperrors.ErrNotFound)
	})

	mt.Run("delete", func(mt *mtest.T) {
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}),
		)
		repo := NewUserRepository(mt.DB)

		assert.NoError(mt, repo.Delete(context.Background(), "u-1"))
		assert.ErrorIs(mt, repo.Delete(context.Background(), "u-2"), apperrors.ErrNotFound)
	})
}

func TestUserRepository_List(t *testing.T) {
	mt := newMockT(t)

	mt.Run("two users", func(mt *mtest.T) {
		a := sampleUser()
		b := sampleUser()
		b.ID = "9e2f4d1c-3b6a-4f8e-8c7d-1a2b3c4d5e6f"
		b.Role = domain.RoleAdmin
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns(mt, usersCollection), mtest.FirstBatch,
			toD(mt.T, newUserDocument(a)), toD(mt.T, newUserDocument(b))))
		repo := NewUserRepository(mt.DB)

		users, err := repo.List(context.Background())
		require.NoError(mt, err)
		require.Len(mt, users, 2)
		assert.True(mt, users[1].IsAdmin())
	})
}

// ---------------------------------------------------------------------------
// Products
// ---------------------------------------------------------------------------

func TestProductRepository_GetByID(t *testing.T) {
	mt := newMockT(t)

	mt.Run("found", func(mt *mtest.T) {
		p := sampleProduct()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns(mt, productsCollection), mtest.FirstBatch,
			toD(mt.T, newProductDocument(p))))
		repo := NewProductRepository(mt.DB)

		got, err := repo.GetByID(context.Background(), p.ID)
		require.NoError(mt, err)
		assert.Equal(mt, p, got)
	})

	mt.Run("not found", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns(mt, productsCollection), mtest.FirstBatch))
		repo := NewProductRepository(mt.DB)

		_, err := repo.GetByID(context.Background(), "missing")
		assert.ErrorIs(mt, err, apperrors.ErrNotFound)
	})
}

func TestProductRepository_CreateAndList(t *testing.T) {
	mt := newMockT(t)

	mt.Run("create", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())
		repo := NewProductRepository(mt.DB)

		assert.NoError(mt, repo.Create(context.Background(), sampleProduct()))
	})

	mt.Run("list returns page and filtered total", func(mt *mtest.T) {
		p := sampleProduct()
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, ns(mt, productsCollection), mtest.FirstBatch, bson.D{{Key: "n", Value: int32(9)}}),
			mtest.CreateCursorResponse(0, ns(mt, productsCollection), mtest.FirstBatch, toD(mt.T, newProductDocument(p))),
		)
		repo := NewProductRepository(mt.DB)

		products, total, err := repo.List(context.Background(), repository.ProductFilter{
			Keyword: "wid",
			Page:    pagination.New(2, 8),
		})
		require.NoError(mt, err)
		assert.Equal(mt, 9, total)
		require.Len(mt, products, 1)
		assert.Equal(mt, p.ID, products[0].ID)
	})

	mt.Run("count", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns(mt, productsCollection), mtest.FirstBatch,
			bson.D{{Key: "n", Value: int32(3)}}))
		repo := NewProductRepository(mt.DB)

		n, err := repo.Count(context.Background())
		require.NoError(mt, err)
		assert.Equal(mt, 3, n)
	})
}

func TestProductQuery(t *testing.T) {
	minPrice, maxPrice, minRatings := 10.0, 20.0, 4.0
	q := productQuery(repository.ProductFilter{
		Keyword:    "a.b",
		Category:   "Phone",
		MinPrice:   &minPrice,
		MaxPrice:   &maxPrice,
		MinRatings: &minRatings,
	})

	assert.Equal(t, bson.D{
		{Key: "name", Value: bson.D{{Key: "$regex", Value: `a\.b`}, {Key: "$options", Value: "i"}}},
		{Key: "category", Value: "Phone"},
		{Key: "price", Value: bson.D{{Key: "$gte", Value: 10.0}, {Key: "$lte", Value: 20.0}}},
		{Key: "ratings", Value: bson.D{{Key: "$gte", Value: 4.0}}},
	}, q)

	assert.Empty(t, productQuery(repository.ProductFilter{}))
}

func TestProductRepository_Update(t *testing.T) {
	mt := newMockT(t)

	mt.Run("bumps version", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: bson.D{
			{Key: "_id", Value: "p1"},
			{Key: "version", Value: int64(3)},
		}}))
		repo := NewProductRepository(mt.DB)

		p := sampleProduct()
		require.NoError(mt, repo.Update(context.Background(), p))
		assert.Equal(mt, int64(3), p.Version)
	})

	mt.Run("missing", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}))
		repo := NewProductRepository(mt.DB)

		assert.ErrorIs(mt, repo.Update(context.Background(), sampleProduct()), apperrors.ErrNotFound)
	})
}

func TestProductRepository_SaveReviews(t *testing.T) {
	mt := newMockT(t)

	mt.Run("version matches", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}))
		repo := NewProductRepository(mt.DB)

		p := sampleProduct()
		require.NoError(mt, repo.SaveReviews(context.Background(), p, 2))
		assert.Equal(mt, int64(3), p.Version)
	})

	mt.Run("version conflict", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}))
		repo := NewProductRepository(mt.DB)

		p := sampleProduct()
		err := repo.SaveReviews(context.Background(), p, 2)
		assert.ErrorIs(mt, err, repository.ErrVersionConflict)
		assert.Equal(mt, int64(2), p.Version)
	})
}

func TestProductRepository_Delete(t *testing.T) {
	mt := newMockT(t)

	mt.Run("delete", func(mt *mtest.T) {
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}),
		)
		repo := NewProductRepository(mt.DB)

		assert.NoError(mt, repo.Delete(context.Background(), "p1"))
		assert.ErrorIs(mt, repo.Delete(context.Background(), "p2"), apperrors.ErrNotFound)
	})
}

func TestEnsureIndexes(t *testing.T) {
	mt := newMockT(t)

	mt.Run("creates both collections' indexes", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(), mtest.CreateSuccessResponse())
		assert.NoError(mt, EnsureIndexes(context.Background(), mt.DB))
	})
}
