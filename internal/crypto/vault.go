package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
)

// EnvKey overrides the keyring-held master key (development and tests)
const EnvKey = "ENCRYPTION_KEY"

// ErrNotInitialized is returned when a Vault has no key
var ErrNotInitialized = errors.New("encryption not initialized")

// Vault seals API tokens at rest with AES-256-GCM
type Vault struct {
	key []byte
}

// NewVault derives a 32 byte key from raw. A base64 encoded 32 byte key is
// used as is; anything else is hashed with SHA-256.
func NewVault(raw string) (*Vault, error) {
	if raw == "" {
		return nil, ErrNotInitialized
	}
	keyBytes, err := base64.StdEncoding.DecodeString(raw)
	if err != nil || len(keyBytes) != 32 {
		hash := sha256.Sum256([]byte(raw))
		return &Vault{key: hash[:]}, nil
	}
	return &Vault{key: keyBytes}, nil
}

// LoadVault builds a Vault from ENCRYPTION_KEY, falling back to the keystore
func LoadVault(store KeyStore) (*Vault, error) {
	if raw := os.Getenv(EnvKey); raw != "" {
		return NewVault(raw)
	}

	key, err := GenerateOrLoadKey(store)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize encryption from keystore: %w", err)
	}
	return &Vault{key: key}, nil
}

// Seal encrypts plaintext and returns base64(nonce || ciphertext)
func (v *Vault) Seal(plaintext string) (string, error) {
	gcm, err := v.gcm()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Open reverses Seal
func (v *Vault) Open(sealed string) (string, error) {
	gcm, err := v.gcm()
	if err != nil {
		return "", err
	}

	ciphertext, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("failed to decode base64: %w", err)
	}

	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return "", errors.New("ciphertext too short")
	}

	nonce, ciphertext := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt: %w", err)
	}
	return string(plaintext), nil
}

func (v *Vault) gcm() (cipher.AEAD, error) {
	if v == nil || len(v.key) == 0 {
		return nil, ErrNotInitialized
	}
	block, err := aes.NewCipher(v.key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}
