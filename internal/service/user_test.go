package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/utafrali/storefront/internal/auth"
	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/event"
	"github.com/utafrali/storefront/internal/mail"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	pkgkafka "github.com/utafrali/storefront/pkg/kafka"
	"github.com/utafrali/storefront/pkg/validator"
)

type nopPublisher struct{ err error }

func (p nopPublisher) Publish(context.Context, string, *pkgkafka.Event) error { return p.err }

type userFixture struct {
	svc     *UserService
	users   *mockUserRepository
	mailer  *mockSender
	tokens  *auth.TokenIssuer
	metrics *Metrics
}

func newUserFixture(t *testing.T) *userFixture {
	t.Helper()
	f := &userFixture{
		users:   new(mockUserRepository),
		mailer:  new(mockSender),
		tokens:  newTestTokenIssuer(),
		metrics: NewMetrics(prometheus.NewRegistry()),
	}
	producer := event.NewProducer(nopPublisher{}, newTestLogger())
	f.svc = NewUserService(f.users, f.tokens, f.mailer, producer, UserServiceConfig{
		BcryptCost:    bcrypt.MinCost,
		PublicBaseURL: "https://shop.example.com/",
	}, f.metrics, newTestLogger())
	return f
}

func assertAppError(t *testing.T, err error, status int, message string) {
	t.Helper()
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %v", err)
	assert.Equal(t, status, appErr.Status)
	assert.Equal(t, message, appErr.Message)
}

// --- Register Tests ---

func TestRegister_Success(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()

	f.users.On("Create", ctx, mock.AnythingOfType("*domain.User")).Return(nil)

	user, session, err := f.svc.Register(ctx, domain.NewUserInput{
		Name:     "Alice",
		Email:    "alice@example.com",
		Password: "password123",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, user.ID)
	assert.Equal(t, domain.RoleUser, user.Role)
	assert.Equal(t, testNow, user.CreatedAt)
	assert.True(t, user.ComparePassword("password123"))

	claims, err := f.tokens.ParseSessionToken(session.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, testNow.Add(time.Hour), session.ExpiresAt)
	f.users.AssertExpectations(t)
}

func TestRegister_EventFailureIsNotFatal(t *testing.T) {
	f := newUserFixture(t)
	f.svc.producer = event.NewProducer(nopPublisher{err: errors.New("broker down")}, newTestLogger())
	ctx := context.Background()

	f.users.On("Create", ctx, mock.AnythingOfType("*domain.User")).Return(nil)

	_, session, err := f.svc.Register(ctx, domain.NewUserInput{Name: "Alice", Email: "a@example.com", Password: "password123"})
	require.NoError(t, err)
	assert.NotNil(t, session)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()

	f.users.On("Create", ctx, mock.AnythingOfType("*domain.User")).Return(apperrors.Duplicate("email"))

	user, session, err := f.svc.Register(ctx, domain.NewUserInput{Name: "Alice", Email: "a@example.com", Password: "password123"})
	assert.Nil(t, user)
	assert.Nil(t, session)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)
}

func TestRegister_InvalidInput(t *testing.T) {
	f := newUserFixture(t)

	_, _, err := f.svc.Register(context.Background(), domain.NewUserInput{Name: "Al", Email: "bad", Password: "short"})
	var ve *validator.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Len(t, ve.Fields(), 3)
	f.users.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

// --- Login / Authenticate Tests ---

func TestLogin_Success(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()
	u := existingUser()

	f.users.On("GetByEmail", ctx, u.Email).Return(u, nil)

	got, session, err := f.svc.Login(ctx, u.Email, "password123")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.NotEmpty(t, session.Token)
}

func TestLogin_Failures(t *testing.T) {
	ctx := context.Background()

	t.Run("missing fields", func(t *testing.T) {
		f := newUserFixture(t)
		_, _, err := f.svc.Login(ctx, "", "password123")
		assertAppError(t, err, 400, MsgMissingCredentials)
	})

	t.Run("unknown email", func(t *testing.T) {
		f := newUserFixture(t)
		f.users.On("GetByEmail", ctx, "ghost@example.com").Return(nil, apperrors.ErrNotFound)
		_, _, err := f.svc.Login(ctx, "ghost@example.com", "password123")
		assertAppError(t, err, 401, MsgInvalidCredentials)
	})

	t.Run("wrong password", func(t *testing.T) {
		f := newUserFixture(t)
		u := existingUser()
		f.users.On("GetByEmail", ctx, u.Email).Return(u, nil)
		_, _, err := f.svc.Login(ctx, u.Email, "wrong-password")
		assertAppError(t, err, 401, MsgInvalidCredentials)
	})
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()

	t.Run("valid token", func(t *testing.T) {
		f := newUserFixture(t)
		u := existingUser()
		token, _, err := f.tokens.IssueSessionToken(u.ID)
		require.NoError(t, err)
		f.users.On("GetByID", ctx, u.ID).Return(u, nil)

		got, err := f.svc.Authenticate(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, u.ID, got.ID)
	})

	t.Run("garbage token", func(t *testing.T) {
		f := newUserFixture(t)
		_, err := f.svc.Authenticate(ctx, "garbage")
		assertAppError(t, err, 401, MsgTokenInvalid)
	})

	t.Run("expired token", func(t *testing.T) {
		f := newUserFixture(t)
		past := auth.NewTokenIssuer("test-secret-key-for-testing-purposes", time.Hour,
			auth.WithClock(func() time.Time { return testNow.Add(-2 * time.Hour) }))
		token, _, err := past.IssueSessionToken("u1")
		require.NoError(t, err)

		_, err = f.svc.Authenticate(ctx, token)
		assertAppError(t, err, 401, MsgTokenExpired)
	})

	t.Run("deleted user", func(t *testing.T) {
		f := newUserFixture(t)
		token, _, err := f.tokens.IssueSessionToken("gone")
		require.NoError(t, err)
		f.users.On("GetByID", ctx, "gone").Return(nil, apperrors.ErrNotFound)

		_, err = f.svc.Authenticate(ctx, token)
		assertAppError(t, err, 401, MsgLoginRequired)
	})
}

// --- Password Recovery Tests ---

func TestForgotPassword_Success(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()
	u := existingUser()

	f.users.On("GetByEmail", ctx, u.Email).Return(u, nil)
	f.users.On("Update", ctx, u).Return(nil).Once()

	var sent mail.Message
	f.mailer.On("Send", ctx, mock.AnythingOfType("mail.Message")).
		Run(func(args mock.Arguments) { sent = args.Get(1).(mail.Message) }).
		Return(nil)

	require.NoError(t, f.svc.ForgotPassword(ctx, u.Email))

	assert.True(t, u.HasResetToken())
	assert.Equal(t, testNow.Add(auth.ResetTokenTTL), *u.ResetPasswordExpire)
	assert.Equal(t, u.Email, sent.To)
	assert.Equal(t, "E-commerce Password Recovery", sent.Subject)

	const prefix = "https://shop.example.com/api/v1/password/reset/"
	idx := strings.Index(sent.Body, prefix)
	require.GreaterOrEqual(t, idx, 0, "body carries the reset link: %q", sent.Body)
	plaintext := strings.Fields(sent.Body[idx+len(prefix):])[0]
	assert.Equal(t, auth.HashResetToken(plaintext), u.ResetPasswordToken, "only the hash is stored")

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.resetMails.WithLabelValues(resetMailSent)))
	f.users.AssertExpectations(t)
	f.mailer.AssertExpectations(t)
}

func TestForgotPassword_UnknownEmail(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()

	f.users.On("GetByEmail", ctx, "ghost@example.com").Return(nil, apperrors.ErrNotFound)

	err := f.svc.ForgotPassword(ctx, "ghost@example.com")
	assertAppError(t, err, 404, MsgEmailNotFound)
	f.mailer.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestForgotPassword_MailFailureRollsBack(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()
	u := existingUser()

	var stored []bool
	f.users.On("GetByEmail", ctx, u.Email).Return(u, nil)
	f.users.On("Update", ctx, u).
		Run(func(args mock.Arguments) { stored = append(stored, args.Get(1).(*domain.User).HasResetToken()) }).
		Return(nil).Twice()
	f.mailer.On("Send", ctx, mock.AnythingOfType("mail.Message")).Return(errors.New("smtp down"))

	err := f.svc.ForgotPassword(ctx, u.Email)
	assertAppError(t, err, 500, MsgResetMailFailed)

	assert.Equal(t, []bool{true, false}, stored, "token stored then withdrawn")
	assert.False(t, u.HasResetToken())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.resetMails.WithLabelValues(resetMailFailed)))
	f.users.AssertExpectations(t)
}

func TestForgotPassword_SecondRequestReplacesToken(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()
	u := existingUser()

	f.users.On("GetByEmail", ctx, u.Email).Return(u, nil)
	f.users.On("Update", ctx, u).Return(nil)
	f.mailer.On("Send", ctx, mock.Anything).Return(nil)

	require.NoError(t, f.svc.ForgotPassword(ctx, u.Email))
	first := u.ResetPasswordToken
	require.NoError(t, f.svc.ForgotPassword(ctx, u.Email))

	assert.NotEqual(t, first, u.ResetPasswordToken)
}

func userWithResetToken(t *testing.T, tokens *auth.TokenIssuer) (*domain.User, string) {
	t.Helper()
	u := existingUser()
	plain, hash, exp, err := tokens.IssuePasswordResetToken()
	require.NoError(t, err)
	require.NoError(t, u.SetResetToken(hash, exp, testNow))
	return u, plain
}

func TestResetPassword_Success(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()
	u, plain := userWithResetToken(t, f.tokens)

	f.users.On("GetByResetToken", ctx, auth.HashResetToken(plain), testNow).Return(u, nil)
	f.users.On("Update", ctx, u).Return(nil)

	got, session, err := f.svc.ResetPassword(ctx, plain, "new-password-1", "new-password-1")
	require.NoError(t, err)
	assert.NotNil(t, session)
	assert.True(t, got.ComparePassword("new-password-1"))
	assert.False(t, got.HasResetToken(), "token cleared after use")
}

func TestResetPassword_Failures(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown or expired token", func(t *testing.T) {
		f := newUserFixture(t)
		f.users.On("GetByResetToken", ctx, auth.HashResetToken("nope"), testNow).Return(nil, apperrors.ErrNotFound)

		_, _, err := f.svc.ResetPassword(ctx, "nope", "new-password-1", "new-password-1")
		assertAppError(t, err, 400, MsgResetTokenInvalid)
	})

	t.Run("stored expiry already passed", func(t *testing.T) {
		f := newUserFixture(t)
		u, plain := userWithResetToken(t, f.tokens)
		past := testNow.Add(-time.Minute)
		u.ResetPasswordExpire = &past
		f.users.On("GetByResetToken", ctx, auth.HashResetToken(plain), testNow).Return(u, nil)

		_, _, err := f.svc.ResetPassword(ctx, plain, "new-password-1", "new-password-1")
		assertAppError(t, err, 400, MsgResetTokenInvalid)
	})

	t.Run("confirmation mismatch", func(t *testing.T) {
		f := newUserFixture(t)
		u, plain := userWithResetToken(t, f.tokens)
		f.users.On("GetByResetToken", ctx, auth.HashResetToken(plain), testNow).Return(u, nil)

		_, _, err := f.svc.ResetPassword(ctx, plain, "new-password-1", "different-pass")
		assertAppError(t, err, 400, MsgPasswordMismatch)
		assert.True(t, u.HasResetToken())
		f.users.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})
}

// --- Profile Tests ---

func TestUpdatePassword(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		f := newUserFixture(t)
		u := existingUser()
		f.users.On("GetByID", ctx, u.ID).Return(u, nil)
		f.users.On("Update", ctx, u).Return(nil)

		_, session, err := f.svc.UpdatePassword(ctx, u.ID, "password123", "brand-new-pass", "brand-new-pass")
		require.NoError(t, err)
		assert.NotNil(t, session)
		assert.True(t, u.ComparePassword("brand-new-pass"))
	})

	t.Run("old password wrong", func(t *testing.T) {
		f := newUserFixture(t)
		u := existingUser()
		f.users.On("GetByID", ctx, u.ID).Return(u, nil)

		_, _, err := f.svc.UpdatePassword(ctx, u.ID, "nope-nope", "brand-new-pass", "brand-new-pass")
		assertAppError(t, err, 400, MsgOldPasswordWrong)
	})

	t.Run("mismatch", func(t *testing.T) {
		f := newUserFixture(t)
		u := existingUser()
		f.users.On("GetByID", ctx, u.ID).Return(u, nil)

		_, _, err := f.svc.UpdatePassword(ctx, u.ID, "password123", "brand-new-pass", "other-pass-123")
		assertAppError(t, err, 400, MsgPasswordMismatch)
	})
}

func TestUpdateProfile(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		f := newUserFixture(t)
		u := existingUser()
		f.users.On("GetByID", ctx, u.ID).Return(u, nil)
		f.users.On("Update", ctx, u).Return(nil)

		got, err := f.svc.UpdateProfile(ctx, u.ID, UpdateProfileInput{Name: " Alice B ", Email: "ab@example.com"})
		require.NoError(t, err)
		assert.Equal(t, "Alice B", got.Name)
		assert.Equal(t, "ab@example.com", got.Email)
	})

	t.Run("invalid email", func(t *testing.T) {
		f := newUserFixture(t)
		u := existingUser()
		f.users.On("GetByID", ctx, u.ID).Return(u, nil)

		_, err := f.svc.UpdateProfile(ctx, u.ID, UpdateProfileInput{Name: "Alice", Email: "nope"})
		var ve *validator.ValidationError
		require.True(t, errors.As(err, &ve))
		assert.Contains(t, ve.Fields(), "email")
	})

	t.Run("duplicate email", func(t *testing.T) {
		f := newUserFixture(t)
		u := existingUser()
		f.users.On("GetByID", ctx, u.ID).Return(u, nil)
		f.users.On("Update", ctx, u).Return(apperrors.Duplicate("email"))

		_, err := f.svc.UpdateProfile(ctx, u.ID, UpdateProfileInput{Name: "Alice", Email: "taken@example.com"})
		assertAppError(t, err, 400, "Duplicate email entered")
	})
}

// --- Admin Tests ---

func TestAdminUserOperations(t *testing.T) {
	ctx := context.Background()

	t.Run("get missing user", func(t *testing.T) {
		f := newUserFixture(t)
		f.users.On("GetByID", ctx, "missing").Return(nil, apperrors.ErrNotFound)

		_, err := f.svc.GetUser(ctx, "missing")
		assertAppError(t, err, 404, "User does not exist with id: missing")
	})

	t.Run("update role", func(t *testing.T) {
		f := newUserFixture(t)
		u := existingUser()
		f.users.On("GetByID", ctx, u.ID).Return(u, nil)
		f.users.On("Update", ctx, u).Return(nil)

		got, err := f.svc.UpdateUser(ctx, u.ID, UpdateUserInput{Name: "Alice", Email: u.Email, Role: domain.RoleAdmin})
		require.NoError(t, err)
		assert.True(t, got.IsAdmin())
	})

	t.Run("update rejects unknown role", func(t *testing.T) {
		f := newUserFixture(t)
		u := existingUser()
		f.users.On("GetByID", ctx, u.ID).Return(u, nil)

		_, err := f.svc.UpdateUser(ctx, u.ID, UpdateUserInput{Name: "Alice", Email: u.Email, Role: "root"})
		var ve *validator.ValidationError
		require.True(t, errors.As(err, &ve))
		assert.Contains(t, ve.Fields(), "role")
	})

	t.Run("delete missing user", func(t *testing.T) {
		f := newUserFixture(t)
		f.users.On("Delete", ctx, "missing").Return(apperrors.NotFound("user", "missing"))

		err := f.svc.DeleteUser(ctx, "missing")
		assertAppError(t, err, 404, "User does not exist with id: missing")
	})

	t.Run("list", func(t *testing.T) {
		f := newUserFixture(t)
		f.users.On("List", ctx).Return([]domain.User{*existingUser()}, nil)

		users, err := f.svc.ListUsers(ctx)
		require.NoError(t, err)
		assert.Len(t, users, 1)
	})
}
