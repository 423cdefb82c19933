package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/storefront/internal/auth"
	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/event"
	"github.com/utafrali/storefront/internal/mail"
	"github.com/utafrali/storefront/internal/repository"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// Client-facing messages shared with the HTTP layer.
const (
	MsgMissingCredentials = "Please enter email or password"
	MsgInvalidCredentials = "Invalid email or password"
	MsgLoginRequired      = "Please login to access this resource"
	MsgTokenInvalid       = "Json web token is invalid, try again"
	MsgTokenExpired       = "Json web token is expired, try again"
	MsgEmailNotFound      = "Email not found"
	MsgResetTokenInvalid  = "Reset password token is invalid or has been expired"
	MsgPasswordMismatch   = "Password does not match"
	MsgOldPasswordWrong   = "Old password is incorrect"
	MsgResetMailFailed    = "Failed to send password reset email"
)

const (
	resetMailSubject = "E-commerce Password Recovery"
	resetPath        = "/api/v1/password/reset/"

	resetMailSent           = "sent"
	resetMailFailed         = "failed"
	resetMailRollbackFailed = "rollback_failed"
)

// UserServiceConfig holds tunables for UserService.
type UserServiceConfig struct {
	BcryptCost    int
	PublicBaseURL string
}

// Session is a freshly issued session token.
type Session struct {
	Token     string
	ExpiresAt time.Time
}

// UserService implements registration, authentication, password recovery and
// user administration.
type UserService struct {
	users    repository.UserRepository
	tokens   *auth.TokenIssuer
	mailer   mail.Sender
	producer *event.Producer
	cfg      UserServiceConfig
	metrics  *Metrics
	logger   *slog.Logger
}

// NewUserService creates a new user service. producer and metrics may be nil.
func NewUserService(
	users repository.UserRepository,
	tokens *auth.TokenIssuer,
	mailer mail.Sender,
	producer *event.Producer,
	cfg UserServiceConfig,
	metrics *Metrics,
	logger *slog.Logger,
) *UserService {
	return &UserService{
		users:    users,
		tokens:   tokens,
		mailer:   mailer,
		producer: producer,
		cfg:      cfg,
		metrics:  metrics,
		logger:   logger,
	}
}

// UpdateProfileInput holds the fields a user may change on their own profile.
type UpdateProfileInput struct {
	Name  string
	Email string
}

// UpdateUserInput holds the fields an admin may change on any user.
type UpdateUserInput struct {
	Name  string
	Email string
	Role  string
}

// --- Auth Operations ---

// Register creates a new account and opens a session for it.
func (s *UserService) Register(ctx context.Context, input domain.NewUserInput) (*domain.User, *Session, error) {
	user, err := domain.NewUser(input, s.cfg.BcryptCost)
	if err != nil {
		return nil, nil, err
	}
	user.ID = uuid.New().String()
	user.CreatedAt = s.tokens.Now().UTC()

	if err := s.users.Create(ctx, user); err != nil {
		return nil, nil, err
	}

	s.logger.InfoContext(ctx, "user registered",
		slog.String("user_id", user.ID),
	)

	if s.producer != nil {
		if err := s.producer.PublishUserRegistered(ctx, user); err != nil {
			s.logger.WarnContext(ctx, "failed to publish user.registered event",
				slog.String("user_id", user.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	session, err := s.issueSession(user)
	if err != nil {
		return nil, nil, err
	}
	return user, session, nil
}

// Login checks credentials and opens a session.
func (s *UserService) Login(ctx context.Context, email, password string) (*domain.User, *Session, error) {
	if email == "" || password == "" {
		return nil, nil, apperrors.InvalidInput(MsgMissingCredentials)
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, nil, apperrors.Unauthorized(MsgInvalidCredentials)
		}
		return nil, nil, fmt.Errorf("get user by email: %w", err)
	}

	if !user.ComparePassword(password) {
		return nil, nil, apperrors.Unauthorized(MsgInvalidCredentials)
	}

	session, err := s.issueSession(user)
	if err != nil {
		return nil, nil, err
	}
	return user, session, nil
}

// Authenticate resolves a session token into the user it belongs to.
func (s *UserService) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	claims, err := s.tokens.ParseSessionToken(token)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) {
			return nil, apperrors.Unauthorized(MsgTokenExpired)
		}
		return nil, apperrors.Unauthorized(MsgTokenInvalid)
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.Unauthorized(MsgLoginRequired)
		}
		return nil, fmt.Errorf("get session user: %w", err)
	}
	return user, nil
}

// --- Password Recovery ---

// ForgotPassword stores a fresh reset token for the account and mails its
// link. If delivery fails the token is withdrawn again.
func (s *UserService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.NotFoundMessage(MsgEmailNotFound)
		}
		return fmt.Errorf("get user by email: %w", err)
	}

	plaintext, hash, expiry, err := s.tokens.IssuePasswordResetToken()
	if err != nil {
		return err
	}
	if err := user.SetResetToken(hash, expiry, s.tokens.Now()); err != nil {
		return fmt.Errorf("set reset token: %w", err)
	}
	if err := s.users.Update(ctx, user); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}

	msg := mail.Message{
		To:      user.Email,
		Subject: resetMailSubject,
		Body:    resetMailBody(s.resetURL(plaintext)),
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.logger.ErrorContext(ctx, "failed to send password reset email",
			slog.String("user_id", user.ID),
			slog.String("sender", s.mailer.Name()),
			slog.String("error", err.Error()),
		)

		user.ClearResetToken()
		if rbErr := s.users.Update(ctx, user); rbErr != nil {
			s.metrics.resetMail(resetMailRollbackFailed)
			s.logger.ErrorContext(ctx, "failed to roll back reset token",
				slog.String("user_id", user.ID),
				slog.String("error", rbErr.Error()),
			)
			return apperrors.Internal(MsgResetMailFailed, errors.Join(err, rbErr))
		}
		s.metrics.resetMail(resetMailFailed)
		return apperrors.Internal(MsgResetMailFailed, err)
	}

	s.metrics.resetMail(resetMailSent)
	s.logger.InfoContext(ctx, "password reset email sent",
		slog.String("user_id", user.ID),
	)
	return nil
}

// ResetPassword sets a new password for the holder of a valid reset token,
// clears the token and opens a session.
func (s *UserService) ResetPassword(ctx context.Context, token, password, confirm string) (*domain.User, *Session, error) {
	now := s.tokens.Now()
	user, err := s.users.GetByResetToken(ctx, auth.HashResetToken(token), now)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, nil, apperrors.InvalidInput(MsgResetTokenInvalid)
		}
		return nil, nil, fmt.Errorf("get user by reset token: %w", err)
	}
	if !user.HasResetToken() || !s.tokens.VerifyResetToken(token, user.ResetPasswordToken, *user.ResetPasswordExpire) {
		return nil, nil, apperrors.InvalidInput(MsgResetTokenInvalid)
	}

	if password != confirm {
		return nil, nil, apperrors.InvalidInput(MsgPasswordMismatch)
	}

	if err := user.SetPassword(password, s.cfg.BcryptCost); err != nil {
		return nil, nil, err
	}
	user.ClearResetToken()
	if err := s.users.Update(ctx, user); err != nil {
		return nil, nil, err
	}

	s.logger.InfoContext(ctx, "password reset completed",
		slog.String("user_id", user.ID),
	)

	session, err := s.issueSession(user)
	if err != nil {
		return nil, nil, err
	}
	return user, session, nil
}

// --- Profile Operations ---

// GetProfile returns the user with the given ID.
func (s *UserService) GetProfile(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, userNotFound(userID)
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// UpdatePassword changes the caller's password after checking the old one and
// opens a new session.
func (s *UserService) UpdatePassword(ctx context.Context, userID, oldPassword, newPassword, confirm string) (*domain.User, *Session, error) {
	user, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, nil, err
	}

	if !user.ComparePassword(oldPassword) {
		return nil, nil, apperrors.InvalidInput(MsgOldPasswordWrong)
	}
	if newPassword != confirm {
		return nil, nil, apperrors.InvalidInput(MsgPasswordMismatch)
	}

	if err := user.SetPassword(newPassword, s.cfg.BcryptCost); err != nil {
		return nil, nil, err
	}
	if err := s.users.Update(ctx, user); err != nil {
		return nil, nil, err
	}

	session, err := s.issueSession(user)
	if err != nil {
		return nil, nil, err
	}
	return user, session, nil
}

// UpdateProfile changes the caller's name and email.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, input UpdateProfileInput) (*domain.User, error) {
	user, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	user.Name = strings.TrimSpace(input.Name)
	user.Email = strings.TrimSpace(input.Email)
	if err := domain.ValidateUser(user); err != nil {
		return nil, err
	}
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// --- Admin Operations ---

// ListUsers returns every user.
func (s *UserService) ListUsers(ctx context.Context) ([]domain.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// GetUser returns a user for an admin.
func (s *UserService) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return s.GetProfile(ctx, id)
}

// UpdateUser changes a user's name, email and role.
func (s *UserService) UpdateUser(ctx context.Context, id string, input UpdateUserInput) (*domain.User, error) {
	user, err := s.GetProfile(ctx, id)
	if err != nil {
		return nil, err
	}

	user.Name = strings.TrimSpace(input.Name)
	user.Email = strings.TrimSpace(input.Email)
	user.Role = input.Role
	if err := domain.ValidateUser(user); err != nil {
		return nil, err
	}
	if err := s.users.Update(ctx, user); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, userNotFound(id)
		}
		return nil, err
	}

	s.logger.InfoContext(ctx, "user updated by admin",
		slog.String("user_id", id),
		slog.String("role", user.Role),
	)
	return user, nil
}

// DeleteUser removes a user.
func (s *UserService) DeleteUser(ctx context.Context, id string) error {
	if err := s.users.Delete(ctx, id); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return userNotFound(id)
		}
		return fmt.Errorf("delete user: %w", err)
	}

	s.logger.InfoContext(ctx, "user deleted by admin", slog.String("user_id", id))
	return nil
}

// --- Helpers ---

func (s *UserService) issueSession(user *domain.User) (*Session, error) {
	token, expiresAt, err := s.tokens.IssueSessionToken(user.ID)
	if err != nil {
		return nil, fmt.Errorf("issue session: %w", err)
	}
	return &Session{Token: token, ExpiresAt: expiresAt}, nil
}

func (s *UserService) resetURL(token string) string {
	return strings.TrimRight(s.cfg.PublicBaseURL, "/") + resetPath + token
}

func resetMailBody(url string) string {
	return fmt.Sprintf("Your reset password token is - \n\n %s \n\nif you are not requested this email then, please ignore it.", url)
}

func userNotFound(id string) error {
	return apperrors.NotFoundMessage(fmt.Sprintf("User does not exist with id: %s", id))
}
