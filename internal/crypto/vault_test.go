package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func newTestVault(t *testing.T) *Vault {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	v, err := NewVault(base64.StdEncoding.EncodeToString(key))
	require.NoError(t, err)
	return v
}

func TestVaultSealOpen(t *testing.T) {
	v := newTestVault(t)

	t.Run("Should seal and open successfully", func(t *testing.T) {
		sealed, err := v.Seal("console-api-token")
		require.NoError(t, err)
		assert.NotEqual(t, "console-api-token", sealed)

		opened, err := v.Open(sealed)
		require.NoError(t, err)
		assert.Equal(t, "console-api-token", opened)
	})

	t.Run("Should produce different ciphertexts for same plaintext", func(t *testing.T) {
		a, err := v.Seal("same")
		require.NoError(t, err)
		b, err := v.Seal("same")
		require.NoError(t, err)
		assert.NotEqual(t, a, b)
	})

	t.Run("Should fail gracefully with invalid ciphertext", func(t *testing.T) {
		_, err := v.Open("invalid-base64-data!!!")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to decode base64")
	})

	t.Run("Should fail with ciphertext too short", func(t *testing.T) {
		_, err := v.Open(base64.StdEncoding.EncodeToString([]byte("short")))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ciphertext too short")
	})

	t.Run("Should fail to open with a different key", func(t *testing.T) {
		sealed, err := v.Seal("secret")
		require.NoError(t, err)

		_, err = newTestVault(t).Open(sealed)
		assert.Error(t, err)
	})

	t.Run("Should handle empty plaintext", func(t *testing.T) {
		sealed, err := v.Seal("")
		require.NoError(t, err)
		opened, err := v.Open(sealed)
		require.NoError(t, err)
		assert.Equal(t, "", opened)
	})
}

func TestNewVault(t *testing.T) {
	t.Run("Should hash raw string keys to 32 bytes", func(t *testing.T) {
		v, err := NewVault("test-encryption-key-raw-string")
		require.NoError(t, err)
		assert.Len(t, v.key, 32)
	})

	t.Run("Should reject empty key", func(t *testing.T) {
		_, err := NewVault("")
		assert.ErrorIs(t, err, ErrNotInitialized)
	})

	t.Run("Should fail on nil vault", func(t *testing.T) {
		var v *Vault
		_, err := v.Seal("x")
		assert.ErrorIs(t, err, ErrNotInitialized)
	})
}

func TestLoadVault(t *testing.T) {
	t.Run("Should prefer environment variable", func(t *testing.T) {
		t.Setenv(EnvKey, "env-key")
		keyring.MockInit()

		v, err := LoadVault(SystemKeyStore{})
		require.NoError(t, err)
		assert.False(t, IsKeyStored(SystemKeyStore{}), "env key must not touch the keychain")

		sealed, err := v.Seal("x")
		require.NoError(t, err)
		opened, err := v.Open(sealed)
		require.NoError(t, err)
		assert.Equal(t, "x", opened)
	})

	t.Run("Should generate once and reuse keychain key", func(t *testing.T) {
		t.Setenv(EnvKey, "")
		keyring.MockInit()
		store := SystemKeyStore{}

		first, err := LoadVault(store)
		require.NoError(t, err)
		assert.True(t, IsKeyStored(store))

		second, err := LoadVault(store)
		require.NoError(t, err)
		assert.Equal(t, first.key, second.key)

		require.NoError(t, DeleteKey(store))
		assert.False(t, IsKeyStored(store))
	})
}
