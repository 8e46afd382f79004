package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateKey(t *testing.T) {
	gen := NewAPIKeyGenerator()

	key, hash, prefix, err := gen.GenerateKey()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(key, KeyPrefix))
	assert.Len(t, hash, 64) // hex-encoded SHA-256
	assert.True(t, strings.HasPrefix(prefix, KeyPrefix))
	assert.Greater(t, len(prefix), len(KeyPrefix))

	// Hash must be reproducible for lookup
	assert.Equal(t, hash, gen.HashKey(key))
}

func TestGenerateKey_Unique(t *testing.T) {
	gen := NewAPIKeyGenerator()

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		key, _, _, err := gen.GenerateKey()
		require.NoError(t, err)
		assert.False(t, seen[key], "generated duplicate key")
		seen[key] = true
	}
}

func TestValidateKeyFormat(t *testing.T) {
	gen := NewAPIKeyGenerator()

	key, _, _, err := gen.GenerateKey()
	require.NoError(t, err)
	assert.NoError(t, gen.ValidateKeyFormat(key))

	assert.Error(t, gen.ValidateKeyFormat("wrong_prefix_abc"))
	assert.Error(t, gen.ValidateKeyFormat(KeyPrefix))
	assert.Error(t, gen.ValidateKeyFormat(KeyPrefix+"not!valid!base64!"))
}
