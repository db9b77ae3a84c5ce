// Package security implements the credential cipher: a deterministic
// machine/user-bound symmetric key with authenticated encryption.
//
// The key is derived once per process from the username and a machine
// identifier; it is never persisted. As long as both stay stable, values
// encrypted in one process decrypt in the next. Copying the store to a
// different machine or user makes old ciphertexts unreadable. There is no
// rotation or migration path.
package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/pbkdf2"

	"github.com/castellan-sh/castellan/internal/log"
	"github.com/castellan-sh/castellan/internal/providers/domain"
)

const (
	// Fixed application salt. Determinism across restarts matters more
	// here than salt uniqueness: the password already binds user+machine.
	keySalt = "CastellanCredentialStore"

	keyIterations = 150_000
	keyLength     = 32 // AES-256
)

// Cipher encrypts and decrypts individual credential values with AES-GCM.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher derives the process-wide key from (username, machine id) and
// builds the AEAD. The derivation is repeated identically on every start.
func NewCipher() (*Cipher, error) {
	username := os.Getenv("USER")
	if username == "" {
		username = os.Getenv("USERNAME")
	}
	if username == "" {
		username = "default_user"
	}

	machineID := MachineID()
	log.Debug(log.CatCrypto, "deriving credential key", "machine_id_len", len(machineID))

	password := []byte(username + "_" + machineID)
	key := pbkdf2.Key(password, []byte(keySalt), keyIterations, keyLength, sha256.New)
	return NewCipherWithKey(key)
}

// NewCipherWithKey builds a cipher from an explicit 32-byte key.
// Tests use this to get deterministic keys without touching the environment.
func NewCipherWithKey(key []byte) (*Cipher, error) {
	if len(key) != keyLength {
		return nil, fmt.Errorf("cipher key must be %d bytes, got %d", keyLength, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}
	return &Cipher{aead: aead}, nil
}

// Encrypt seals plaintext and returns base64(nonce || ciphertext).
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a value produced by Encrypt. Any failure (bad base64,
// truncated input, failed authentication tag, wrong key) is reported as a
// *domain.DecryptionError so callers can treat the row as unreadable.
func (c *Cipher) Decrypt(encoded string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", &domain.DecryptionError{Err: fmt.Errorf("decode base64: %w", err)}
	}

	nonceSize := c.aead.NonceSize()
	if len(raw) < nonceSize {
		return "", &domain.DecryptionError{Err: fmt.Errorf("ciphertext too short: %d bytes", len(raw))}
	}

	nonce, ciphertext := raw[:nonceSize], raw[nonceSize:]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", &domain.DecryptionError{Err: err}
	}
	return string(plaintext), nil
}
