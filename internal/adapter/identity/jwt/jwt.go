// Package jwt verifies HS256 session tokens carrying the caller's identity.
// Issuing is provided for operator tooling and tests; the service itself only
// verifies tokens minted by the identity provider.
package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/vadimbarashkov/shortlink/internal/entity"
)

const DefaultTokenTTL = 24 * time.Hour

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrEmptySecret  = errors.New("empty signing secret")
)

type claims struct {
	UserID string `json:"_id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

type Option func(*TokenManager)

func WithTTL(ttl time.Duration) Option {
	return func(m *TokenManager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(m *TokenManager) {
		m.now = now
	}
}

func NewTokenManager(secret string, opts ...Option) (*TokenManager, error) {
	if secret == "" {
		return nil, fmt.Errorf("identity.jwt.NewTokenManager: %w", ErrEmptySecret)
	}

	m := &TokenManager{
		secret: []byte(secret),
		ttl:    DefaultTokenTTL,
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m, nil
}

func (m *TokenManager) Issue(user *entity.User) (string, error) {
	const op = "identity.jwt.TokenManager.Issue"

	now := m.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		UserID: user.ID,
		Name:   user.Name,
		Email:  user.Email,
		Role:   string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	})

	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("%s: failed to sign token: %w", op, err)
	}

	return signed, nil
}

// Verify checks signature and expiry and returns the identity carried by the token.
// A token without a user id or with an unknown role is rejected.
func (m *TokenManager) Verify(tokenString string) (*entity.User, error) {
	const op = "identity.jwt.TokenManager.Verify"

	var c claims

	_, err := jwt.ParseWithClaims(tokenString, &c, func(*jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrInvalidToken, err)
	}

	role := entity.Role(c.Role)
	if c.UserID == "" || (role != entity.RoleAdmin && role != entity.RoleUser) {
		return nil, fmt.Errorf("%s: %w: missing identity claims", op, ErrInvalidToken)
	}

	return &entity.User{
		ID:    c.UserID,
		Name:  c.Name,
		Email: c.Email,
		Role:  role,
	}, nil
}
