package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"runtime"

	"github.com/zalando/go-keyring"

	"tenant-console/internal/logging"

	"go.uber.org/zap"
)

const (
	keystoreService = "tenant-console"
	keystoreUser    = "encryption-key"
)

// KeyStore is the subset of the OS keychain the vault needs
type KeyStore interface {
	Get(service, user string) (string, error)
	Set(service, user, secret string) error
	Delete(service, user string) error
}

// SystemKeyStore is the OS keychain via go-keyring
type SystemKeyStore struct{}

func (SystemKeyStore) Get(service, user string) (string, error) { return keyring.Get(service, user) }
func (SystemKeyStore) Set(service, user, secret string) error  { return keyring.Set(service, user, secret) }
func (SystemKeyStore) Delete(service, user string) error       { return keyring.Delete(service, user) }

// GenerateOrLoadKey loads the master key from the keychain, creating and
// storing a fresh one on first use. Returns 32 bytes for AES-256.
func GenerateOrLoadKey(store KeyStore) ([]byte, error) {
	encoded, err := store.Get(keystoreService, keystoreUser)
	if err == nil && encoded != "" {
		key, decodeErr := base64.StdEncoding.DecodeString(encoded)
		if decodeErr == nil && len(key) == 32 {
			return key, nil
		}
		logging.Log.Warn("Stored encryption key is malformed, generating a new one")
	}

	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		logging.Log.Warn("Keystore lookup failed", zap.Error(err))
	}

	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate random key: %w", err)
	}

	if err := store.Set(keystoreService, keystoreUser, base64.StdEncoding.EncodeToString(key)); err != nil {
		// Headless Linux often has no secret service; tokens then only live for this process
		logging.Log.Warn("Failed to store key in keychain, key will be regenerated next launch", zap.Error(err))
		if runtime.GOOS == "darwin" || runtime.GOOS == "windows" {
			return nil, fmt.Errorf("keychain storage required on %s: %w", runtime.GOOS, err)
		}
	}

	return key, nil
}

// DeleteKey removes the master key from the keychain
func DeleteKey(store KeyStore) error {
	return store.Delete(keystoreService, keystoreUser)
}

// IsKeyStored checks if a master key exists in the keychain
func IsKeyStored(store KeyStore) bool {
	_, err := store.Get(keystoreService, keystoreUser)
	return err == nil
}
