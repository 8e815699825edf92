package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateToken(t *testing.T) {
	tg := NewTokenGenerator()

	token, hash, prefix, err := tg.GenerateToken()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(token, TokenPrefix))
	assert.Len(t, hash, 64) // hex-encoded SHA256
	assert.True(t, strings.HasPrefix(prefix, TokenPrefix))
	assert.Len(t, prefix, len(TokenPrefix)+8)

	// Hash must match recomputation
	assert.Equal(t, hash, tg.HashToken(token))
}

func TestGenerateToken_Unique(t *testing.T) {
	tg := NewTokenGenerator()

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		token, _, _, err := tg.GenerateToken()
		require.NoError(t, err)
		assert.False(t, seen[token], "generated duplicate token")
		seen[token] = true
	}
}

func TestValidateTokenFormat(t *testing.T) {
	tg := NewTokenGenerator()

	token, _, _, err := tg.GenerateToken()
	require.NoError(t, err)
	assert.NoError(t, tg.ValidateTokenFormat(token))

	assert.Error(t, tg.ValidateTokenFormat("tok_abc123"))
	assert.Error(t, tg.ValidateTokenFormat("gable_"))
	assert.Error(t, tg.ValidateTokenFormat("gable_!!!not-base64!!!"))
	assert.Error(t, tg.ValidateTokenFormat(""))
}

func TestExtractPrefix(t *testing.T) {
	tg := NewTokenGenerator()

	token, _, prefix, err := tg.GenerateToken()
	require.NoError(t, err)
	assert.Equal(t, prefix, tg.ExtractPrefix(token))

	assert.Equal(t, "", tg.ExtractPrefix("bearer xyz"))
	assert.Equal(t, "gable_abc", tg.ExtractPrefix("gable_abc"))
}
