package jwt

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager() *Manager {
	return NewManager(strings.Repeat("s", 32), "mailroute-test", 15*time.Minute, 24*time.Hour)
}

func TestManager_GenerateAndValidate(t *testing.T) {
	m := newTestManager()

	pair, err := m.GenerateTokenPair("acct-1", "alice", true)
	require.NoError(t, err)
	assert.Equal(t, "Bearer", pair.TokenType)
	assert.Equal(t, int64(900), pair.ExpiresIn)

	t.Run("访问令牌", func(t *testing.T) {
		claims, err := m.ValidateAccessToken(pair.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, "acct-1", claims.AccountID)
		assert.Equal(t, "alice", claims.Username)
		assert.True(t, claims.Premium)
		assert.Equal(t, "acct-1", claims.Subject)
	})

	t.Run("刷新令牌不能当访问令牌用", func(t *testing.T) {
		_, err := m.ValidateAccessToken(pair.RefreshToken)
		assert.ErrorIs(t, err, ErrWrongTokenType)
	})

	t.Run("刷新访问令牌", func(t *testing.T) {
		token, claims, err := m.RefreshAccessToken(pair.RefreshToken)
		require.NoError(t, err)
		assert.Equal(t, "alice", claims.Username)

		fresh, err := m.ValidateAccessToken(token)
		require.NoError(t, err)
		assert.Equal(t, "acct-1", fresh.AccountID)
	})

	t.Run("访问令牌不能用于刷新", func(t *testing.T) {
		_, _, err := m.RefreshAccessToken(pair.AccessToken)
		assert.ErrorIs(t, err, ErrWrongTokenType)
	})
}

func TestManager_InvalidTokens(t *testing.T) {
	m := newTestManager()

	t.Run("签名密钥不同", func(t *testing.T) {
		other := NewManager(strings.Repeat("o", 32), "mailroute-test", time.Minute, time.Hour)
		pair, err := other.GenerateTokenPair("acct-1", "alice", false)
		require.NoError(t, err)

		_, err = m.ValidateToken(pair.AccessToken)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("令牌过期", func(t *testing.T) {
		past := NewManager(strings.Repeat("s", 32), "mailroute-test", time.Minute, time.Hour)
		past.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
		pair, err := past.GenerateTokenPair("acct-1", "alice", false)
		require.NoError(t, err)

		_, err = m.ValidateToken(pair.AccessToken)
		assert.ErrorIs(t, err, ErrExpiredToken)
	})

	t.Run("格式错误", func(t *testing.T) {
		_, err := m.ValidateToken("not-a-token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}
