package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/utafrali/storefront/internal/auth"
	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/mail"
	"github.com/utafrali/storefront/internal/repository"
	"github.com/utafrali/storefront/internal/service"
	"github.com/utafrali/storefront/pkg/health"
	"github.com/utafrali/storefront/pkg/middleware"
)

// ============================================================================
// Mock Repositories
// ============================================================================

type mockUserRepo struct {
	mock.Mock
}

func (m *mockUserRepo) Create(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepo) GetByResetToken(ctx context.Context, tokenHash string, now time.Time) (*domain.User, error) {
	args := m.Called(ctx, tokenHash, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepo) Update(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockUserRepo) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockUserRepo) List(ctx context.Context) ([]domain.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.User), args.Error(1)
}

type mockProductRepo struct {
	mock.Mock
}

func (m *mockProductRepo) Create(ctx context.Context, p *domain.Product) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *mockProductRepo) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *mockProductRepo) List(ctx context.Context, filter repository.ProductFilter) ([]domain.Product, int, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]domain.Product), args.Int(1), args.Error(2)
}

func (m *mockProductRepo) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *mockProductRepo) Update(ctx context.Context, p *domain.Product) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *mockProductRepo) SaveReviews(ctx context.Context, p *domain.Product, expectedVersion int64) error {
	args := m.Called(ctx, p, expectedVersion)
	return args.Error(0)
}

func (m *mockProductRepo) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type fakeMailer struct {
	sent []mail.Message
	err  error
}

func (f *fakeMailer) Name() string { return "fake" }

func (f *fakeMailer) Send(_ context.Context, msg mail.Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

// ============================================================================
// Test Environment
// ============================================================================

const testSecret = "handler-test-secret-key-at-least-32-chars"

type testEnv struct {
	router   http.Handler
	users    *mockUserRepo
	products *mockProductRepo
	mailer   *fakeMailer
	tokens   *auth.TokenIssuer
	health   *health.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	env := &testEnv{
		users:    new(mockUserRepo),
		products: new(mockProductRepo),
		mailer:   &fakeMailer{},
		tokens:   auth.NewTokenIssuer(testSecret, time.Hour),
		health:   health.NewHandler(),
	}

	reg := prometheus.NewRegistry()
	metrics := service.NewMetrics(reg)
	users := service.NewUserService(env.users, env.tokens, env.mailer, nil, service.UserServiceConfig{
		BcryptCost:    bcrypt.MinCost,
		PublicBaseURL: "http://localhost:4000",
	}, metrics, logger)
	products := service.NewProductService(env.products, logger)
	reviews := service.NewReviewService(env.products, nil, 3, metrics, logger)

	env.router = NewRouter(users, products, reviews, env.health, logger, RouterConfig{
		CORS:            middleware.DefaultCORSConfig(),
		CookieTTL:       5 * 24 * time.Hour,
		ProductsPerPage: 8,
		Gatherer:        reg,
		Metrics:         middleware.NewHTTPMetrics(reg, "storefront"),
	})
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.AddCookie(&http.Cookie{Name: middleware.SessionCookie, Value: token})
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

// login stubs the session lookup for user and returns a valid token.
func (e *testEnv) login(t *testing.T, user *domain.User) string {
	t.Helper()
	token, _, err := e.tokens.IssueSessionToken(user.ID)
	require.NoError(t, err)
	e.users.On("GetByID", mock.Anything, user.ID).Return(user, nil)
	return token
}

func newUser(t *testing.T, id, role string) *domain.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)
	return &domain.User{
		ID:           id,
		Name:         "User " + role,
		Email:        role + "@example.com",
		PasswordHash: string(hash),
		Role:         role,
		Avatar:       domain.Avatar{PublicID: domain.DefaultAvatarPublicID, URL: domain.DefaultAvatarURL},
		CreatedAt:    time.Now().UTC(),
	}
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out), "body: %s", rec.Body.String())
	return out
}

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == middleware.SessionCookie {
			return c
		}
	}
	return nil
}

const (
	userID    = "7f1b2c3d-4e5f-4a6b-8c7d-9e0f1a2b3c4d"
	adminID   = "a1b2c3d4-e5f6-4789-8abc-def012345678"
	productID = "0d9f7a52-3c41-4c8e-a4f3-6b1de2a7c901"
)
