package domain

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/validator"
)

// MaxPasswordBytes is the longest password bcrypt accepts.
const MaxPasswordBytes = 72

// ErrResetTokenExpiry is returned by SetResetToken when the expiry is not in
// the future.
var ErrResetTokenExpiry = errors.New("reset token expiry must be in the future")

// Placeholder avatar assigned at registration until media upload exists.
const (
	DefaultAvatarPublicID = "this is test id"
	DefaultAvatarURL      = "profilePicUrl"
)

// Avatar references a user's profile picture.
type Avatar struct {
	PublicID string `json:"public_id"`
	URL      string `json:"url"`
}

// User represents a registered user in the system.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name" validate:"required,min=3,max=30"`
	Email        string    `json:"email" validate:"required,email"`
	PasswordHash string    `json:"-" validate:"required"`
	Role         string    `json:"role" validate:"required,oneof=user admin"`
	Avatar       Avatar    `json:"avatar"`
	CreatedAt    time.Time `json:"createdAt"`

	// Set and cleared only through SetResetToken and ClearResetToken.
	ResetPasswordToken  string     `json:"-"`
	ResetPasswordExpire *time.Time `json:"-"`
}

// NewUserInput is the registration payload.
type NewUserInput struct {
	Name     string `json:"name" validate:"required,min=3,max=30"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,maxbytes=72"`
}

// NewUser validates input and builds a user with a bcrypt hash of the
// password. The caller assigns ID and CreatedAt.
func NewUser(input NewUserInput, cost int) (*User, error) {
	if err := validator.Validate(input); err != nil {
		return nil, err
	}
	u := &User{
		Name:   input.Name,
		Email:  input.Email,
		Role:   RoleUser,
		Avatar: Avatar{PublicID: DefaultAvatarPublicID, URL: DefaultAvatarURL},
	}
	if err := u.SetPassword(input.Password, cost); err != nil {
		return nil, err
	}
	return u, nil
}

// SetPassword replaces the stored hash with a bcrypt hash of plain. A
// password longer than MaxPasswordBytes is a validation error.
func (u *User) SetPassword(plain string, cost int) error {
	if len(plain) > MaxPasswordBytes {
		return apperrors.Validation(map[string]string{
			"password": fmt.Sprintf("must be at most %d bytes", MaxPasswordBytes),
		})
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	u.PasswordHash = string(hash)
	return nil
}

// ComparePassword reports whether plain matches the stored hash.
func (u *User) ComparePassword(plain string) bool {
	if u.PasswordHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(plain)) == nil
}

// SetResetToken stores the hash of a password-reset token together with its
// expiry, replacing any earlier token.
func (u *User) SetResetToken(hash string, expiry, now time.Time) error {
	if !expiry.After(now) {
		return ErrResetTokenExpiry
	}
	u.ResetPasswordToken = hash
	exp := expiry.UTC()
	u.ResetPasswordExpire = &exp
	return nil
}

// ClearResetToken removes the reset token and its expiry.
func (u *User) ClearResetToken() {
	u.ResetPasswordToken = ""
	u.ResetPasswordExpire = nil
}

// HasResetToken reports whether a reset token is stored.
func (u *User) HasResetToken() bool {
	return u.ResetPasswordToken != "" && u.ResetPasswordExpire != nil
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// ValidateUser checks a user record before it is persisted. A
// *validator.ValidationError lists the offending fields.
func ValidateUser(u *User) error {
	return validator.Validate(u)
}
