package jwt

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadimbarashkov/shortlink/internal/entity"
)

var testUser = &entity.User{
	ID:    "u1",
	Name:  "Alice",
	Email: "alice@example.com",
	Role:  entity.RoleUser,
}

func TestNewTokenManager(t *testing.T) {
	_, err := NewTokenManager("")

	assert.ErrorIs(t, err, ErrEmptySecret)
}

func TestTokenManager_IssueVerify(t *testing.T) {
	now := time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	m, err := NewTokenManager("secret", WithClock(clock), WithTTL(time.Hour))
	require.NoError(t, err)

	token, err := m.Issue(testUser)
	require.NoError(t, err)

	t.Run("valid", func(t *testing.T) {
		user, err := m.Verify(token)

		assert.NoError(t, err)
		assert.Equal(t, testUser, user)
	})

	t.Run("expired", func(t *testing.T) {
		later, err := NewTokenManager("secret", WithClock(func() time.Time { return now.Add(2 * time.Hour) }))
		require.NoError(t, err)

		_, err = later.Verify(token)

		assert.ErrorIs(t, err, ErrInvalidToken)
		assert.ErrorIs(t, err, jwt.ErrTokenExpired)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other, err := NewTokenManager("other", WithClock(clock))
		require.NoError(t, err)

		_, err = other.Verify(token)

		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := m.Verify("not-a-token")

		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("unexpected signing method", func(t *testing.T) {
		unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
			"_id":  "u1",
			"role": "admin",
			"exp":  now.Add(time.Hour).Unix(),
		}).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = m.Verify(unsigned)

		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("missing identity", func(t *testing.T) {
		token, err := m.Issue(&entity.User{Role: entity.RoleUser})
		require.NoError(t, err)

		_, err = m.Verify(token)

		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("unknown role", func(t *testing.T) {
		token, err := m.Issue(&entity.User{ID: "u1", Role: "root"})
		require.NoError(t, err)

		_, err = m.Verify(token)

		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}
