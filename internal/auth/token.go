// Package auth issues and verifies bearer tokens and hashes passwords.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"mixnotes/internal/apperr"
)

const issuer = "mixnotes"

var (
	// ErrInvalidToken covers malformed, expired and wrongly signed tokens.
	ErrInvalidToken = apperr.Unauthorized("invalid or expired token")
	// ErrRevokedToken is returned for tokens that were logged out.
	ErrRevokedToken = apperr.Unauthorized("token has been revoked")
)

// Claims identifies the user a token was issued to.
type Claims struct {
	UserID    int64
	TokenID   string
	ExpiresAt time.Time
}

// Revoker tracks tokens that were explicitly logged out.
type Revoker interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// TokenManager signs HS256 tokens with a shared secret.
type TokenManager struct {
	secret  []byte
	ttl     time.Duration
	now     func() time.Time
	revoker Revoker
}

// Option customizes a TokenManager.
type Option func(*TokenManager)

// WithRevoker enables logout support.
func WithRevoker(r Revoker) Option {
	return func(m *TokenManager) { m.revoker = r }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *TokenManager) { m.now = now }
}

// NewTokenManager requires a non-empty secret.
func NewTokenManager(secret string, ttl time.Duration, opts ...Option) (*TokenManager, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	if ttl <= 0 {
		return nil, errors.New("token ttl must be positive")
	}
	m := &TokenManager{secret: []byte(secret), ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Issue signs a token for userID.
func (m *TokenManager) Issue(userID int64) (string, Claims, error) {
	now := m.now()
	claims := Claims{
		UserID:    userID,
		TokenID:   uuid.NewString(),
		ExpiresAt: now.Add(m.ttl),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   strconv.FormatInt(userID, 10),
		ID:        claims.TokenID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(claims.ExpiresAt),
	})
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", Claims{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, claims, nil
}

// Parse verifies signature and expiry without consulting the revocation list.
func (m *TokenManager) Parse(raw string) (Claims, error) {
	var registered jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(raw, &registered, func(t *jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return Claims{}, ErrInvalidToken
	}

	userID, err := strconv.ParseInt(registered.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return Claims{}, ErrInvalidToken
	}

	return Claims{
		UserID:    userID,
		TokenID:   registered.ID,
		ExpiresAt: registered.ExpiresAt.Time,
	}, nil
}

// Authenticate parses raw and rejects revoked tokens.
func (m *TokenManager) Authenticate(ctx context.Context, raw string) (Claims, error) {
	claims, err := m.Parse(raw)
	if err != nil {
		return Claims{}, err
	}
	if m.revoker == nil || claims.TokenID == "" {
		return claims, nil
	}
	revoked, err := m.revoker.IsRevoked(ctx, claims.TokenID)
	if err != nil {
		return Claims{}, fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return Claims{}, ErrRevokedToken
	}
	return claims, nil
}

// Revoke invalidates a token until it would have expired anyway.
// Without a revoker configured logout is a no-op.
func (m *TokenManager) Revoke(ctx context.Context, claims Claims) error {
	if m.revoker == nil || claims.TokenID == "" {
		return nil
	}
	return m.revoker.Revoke(ctx, claims.TokenID, claims.ExpiresAt)
}
