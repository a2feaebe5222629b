package backup

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"os"
)

const (
	// EncryptionKeyEnvVar holds the archive encryption key when the backup
	// config does not set encryption_key.
	EncryptionKeyEnvVar = "TETHER_BACKUP_ENCRYPTION_KEY"

	sealedHeader = "# TETHER_SEALED_BACKUP\n"
)

// Seal encrypts content with AES-256-GCM. A nil key returns content as is.
func Seal(key, content []byte) ([]byte, error) {
	if key == nil {
		return content, nil
	}
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	encoded := base64.StdEncoding.EncodeToString(gcm.Seal(nonce, nonce, content, nil))
	return []byte(sealedHeader + encoded + "\n"), nil
}

// Open reverses Seal. Content without the sealed header is returned as is.
func Open(key, content []byte) ([]byte, error) {
	if !IsSealed(content) {
		return content, nil
	}
	if key == nil {
		return nil, fmt.Errorf("backup is encrypted but no key is configured")
	}

	encoded := bytes.TrimSpace(bytes.TrimPrefix(content, []byte(sealedHeader)))
	ciphertext, err := base64.StdEncoding.DecodeString(string(encoded))
	if err != nil {
		return nil, fmt.Errorf("failed to decode sealed backup: %w", err)
	}
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, fmt.Errorf("ciphertext too short")
	}
	nonce, ciphertext := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt backup (wrong key?): %w", err)
	}
	return plaintext, nil
}

// IsSealed reports whether content was produced by Seal.
func IsSealed(content []byte) bool {
	return bytes.HasPrefix(content, []byte(sealedHeader))
}

// encryptionKey derives the 32-byte key from config or the environment,
// or returns nil when neither sets one. Short keys are zero padded and
// long keys truncated.
func encryptionKey(config map[string]string) []byte {
	s := config["encryption_key"]
	if s == "" {
		s = os.Getenv(EncryptionKeyEnvVar)
	}
	if s == "" {
		return nil
	}
	key := make([]byte, 32)
	copy(key, s)
	return key
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}
