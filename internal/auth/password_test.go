package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPasswordFormat(t *testing.T) {
	stored, err := HashPassword("abcd")
	require.NoError(t, err)

	salt, key, ok := strings.Cut(stored, ":")
	require.True(t, ok, "stored form must be salt:key")
	assert.Len(t, salt, 32, "salt is 16 bytes hex-encoded")
	assert.Len(t, key, 128, "derived key is 64 bytes hex-encoded")
}

func TestHashPasswordSaltsDiffer(t *testing.T) {
	a, err := HashPassword("same-password")
	require.NoError(t, err)
	b, err := HashPassword("same-password")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestVerifyPasswordRoundTrip(t *testing.T) {
	for _, password := range []string{"abcd", "пароль", "a much longer passphrase with spaces", ""} {
		stored, err := HashPassword(password)
		require.NoError(t, err)
		assert.True(t, VerifyPassword(password, stored), "password %q must verify against its own hash", password)
	}
}

func TestVerifyPasswordRejectsWrongPassword(t *testing.T) {
	stored, err := HashPassword("abcd")
	require.NoError(t, err)

	assert.False(t, VerifyPassword("wxyz", stored))
	assert.False(t, VerifyPassword("abcde", stored))
	assert.False(t, VerifyPassword("", stored))
}

func TestVerifyPasswordFailsClosedOnMalformedStoredForm(t *testing.T) {
	tests := []struct {
		name   string
		stored string
	}{
		{"empty", ""},
		{"no separator", "deadbeef"},
		{"missing key", "deadbeef:"},
		{"missing salt", ":deadbeef"},
		{"only separator", ":"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, VerifyPassword("abcd", tt.stored))
		})
	}
}
