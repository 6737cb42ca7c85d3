package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashClientSecret_ValidSecret(t *testing.T) {
	tests := []struct {
		name   string
		secret string
	}{
		{"16 characters", "sixteen-chars-ok"},
		{"long secret", "this-is-a-very-long-client-secret-123!@#"},
		{"with special chars", "s3cr3t!with#special$chars"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := HashClientSecret(tt.secret)
			require.NoError(t, err)
			assert.NotEmpty(t, hash)
			assert.NotEqual(t, tt.secret, hash)

			// Verify the hash is valid bcrypt format
			assert.True(t, len(hash) >= 60, "bcrypt hash should be at least 60 chars")
		})
	}
}

func TestHashClientSecret_ShortSecret(t *testing.T) {
	tests := []struct {
		name   string
		secret string
	}{
		{"15 characters", "fifteen-chars-x"},
		{"empty", ""},
		{"1 character", "a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := HashClientSecret(tt.secret)
			assert.ErrorIs(t, err, ErrSecretTooShort)
			assert.Empty(t, hash)
		})
	}
}

func TestHashClientSecret_DifferentHashesForSameSecret(t *testing.T) {
	secret := "test-client-secret-123"

	hash1, err := HashClientSecret(secret)
	require.NoError(t, err)

	hash2, err := HashClientSecret(secret)
	require.NoError(t, err)

	// bcrypt generates different hashes due to random salt
	assert.NotEqual(t, hash1, hash2)
}

func TestCheckClientSecret_CorrectSecret(t *testing.T) {
	secret := "correct-client-secret"

	hash, err := HashClientSecret(secret)
	require.NoError(t, err)

	assert.True(t, CheckClientSecret(secret, hash))
}

func TestCheckClientSecret_WrongSecret(t *testing.T) {
	hash, err := HashClientSecret("correct-client-secret")
	require.NoError(t, err)

	assert.False(t, CheckClientSecret("wrong-client-secret", hash))
}

func TestCheckClientSecret_InvalidHash(t *testing.T) {
	assert.False(t, CheckClientSecret("some-client-secret", "invalid-hash"))
	assert.False(t, CheckClientSecret("some-client-secret", ""))
}
