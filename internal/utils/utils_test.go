package utils

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("hunter2", 4)
	require.NoError(t, err)
	assert.NotEqual(t, "hunter2", hash)
	assert.True(t, VerifyPassword(hash, "hunter2"))
	assert.False(t, VerifyPassword(hash, "hunter3"))
	assert.False(t, VerifyPassword("not-a-hash", "hunter2"))
}

func TestPasswordBeyondBcryptLimit(t *testing.T) {
	long := strings.Repeat("p", 80)
	hash, err := HashPassword(long, 4)
	require.NoError(t, err)
	assert.True(t, VerifyPassword(hash, long))
	assert.False(t, VerifyPassword(hash, long[:72]), "bytes past 72 still count")
}

func TestAccessToken(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		tok, err := NewAccessToken("s3cret", 42, "alice", 5)
		require.NoError(t, err)
		assert.WithinDuration(t, time.Now().Add(5*time.Minute), tok.Exp, 5*time.Second)

		claims, err := ParseAccessToken("s3cret", tok.Token)
		require.NoError(t, err)
		assert.Equal(t, uint64(42), claims.UserID)
		assert.Equal(t, "alice", claims.Username)
	})

	t.Run("wrong secret", func(t *testing.T) {
		tok, err := NewAccessToken("s3cret", 42, "alice", 5)
		require.NoError(t, err)
		_, err = ParseAccessToken("other", tok.Token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		tok, err := NewAccessToken("s3cret", 42, "alice", -1)
		require.NoError(t, err)
		_, err = ParseAccessToken("s3cret", tok.Token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := ParseAccessToken("s3cret", "not.a.jwt")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("non numeric subject", func(t *testing.T) {
		raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub": "alice",
			"exp": time.Now().Add(time.Minute).Unix(),
		}).SignedString([]byte("s3cret"))
		require.NoError(t, err)
		_, err = ParseAccessToken("s3cret", raw)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("missing expiry", func(t *testing.T) {
		raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub": "7",
		}).SignedString([]byte("s3cret"))
		require.NoError(t, err)
		_, err = ParseAccessToken("s3cret", raw)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestHashPasswordClampsCost(t *testing.T) {
	hash, err := HashPassword("pw", 99)
	require.NoError(t, err)
	assert.True(t, VerifyPassword(hash, "pw"))
}
