package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	issuer = "storefront"

	resetTokenBytes = 20
	// ResetTokenTTL is how long a password-reset token stays valid.
	ResetTokenTTL = 15 * time.Minute
)

var (
	// ErrInvalidToken is returned for malformed, tampered or wrongly signed tokens.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken is returned for a well-formed token past its expiry.
	ErrExpiredToken = errors.New("token expired")
)

// Claims represents the JWT claims of a session token.
type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// Option configures a TokenIssuer.
type Option func(*TokenIssuer)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(t *TokenIssuer) { t.now = now }
}

// TokenIssuer mints and verifies session tokens and password-reset tokens.
type TokenIssuer struct {
	secret        []byte
	sessionExpiry time.Duration
	now           func() time.Time
}

// NewTokenIssuer creates a TokenIssuer signing sessions with secret.
func NewTokenIssuer(secret string, sessionExpiry time.Duration, opts ...Option) *TokenIssuer {
	t := &TokenIssuer{
		secret:        []byte(secret),
		sessionExpiry: sessionExpiry,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// IssueSessionToken creates a signed HS256 session token for userID.
func (t *TokenIssuer) IssueSessionToken(userID string) (string, time.Time, error) {
	now := t.now().UTC()
	expiresAt := now.Add(t.sessionExpiry)
	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			Issuer:    issuer,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session token: %w", err)
	}
	return signed, expiresAt, nil
}

// ParseSessionToken validates a session token and returns its claims. Errors
// wrap ErrExpiredToken or ErrInvalidToken.
func (t *TokenIssuer) ParseSessionToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(t.now), jwt.WithIssuer(issuer))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("parse session token: %w", ErrExpiredToken)
		}
		return nil, fmt.Errorf("parse session token: %w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, fmt.Errorf("parse session token: %w", ErrInvalidToken)
	}
	return claims, nil
}

// IssuePasswordResetToken returns a random plaintext token, its sha256 hex
// hash for storage, and its expiry.
func (t *TokenIssuer) IssuePasswordResetToken() (plaintext, hash string, expiry time.Time, err error) {
	buf := make([]byte, resetTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", time.Time{}, fmt.Errorf("generate reset token: %w", err)
	}
	plaintext = hex.EncodeToString(buf)
	return plaintext, HashResetToken(plaintext), t.now().UTC().Add(ResetTokenTTL), nil
}

// VerifyResetToken reports whether plaintext hashes to storedHash and
// storedExpiry has not passed.
func (t *TokenIssuer) VerifyResetToken(plaintext, storedHash string, storedExpiry time.Time) bool {
	if plaintext == "" || storedHash == "" {
		return false
	}
	if !t.now().Before(storedExpiry) {
		return false
	}
	got := HashResetToken(plaintext)
	return subtle.ConstantTimeCompare([]byte(got), []byte(storedHash)) == 1
}

// HashResetToken is the one-way function applied to reset tokens before they
// are stored or looked up.
func HashResetToken(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

// Now returns the issuer's current time.
func (t *TokenIssuer) Now() time.Time {
	return t.now()
}
