package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"scribe/etc"
)

const (
	keyLength   = 32
	keyAlphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	hashCost    = 10
)

// GenerateKey produces a fresh API key and its bcrypt hash. The plaintext
// is returned exactly once; only the hash may be persisted.
func GenerateKey() (plaintext, hash string, err error) {
	plaintext, err = etc.RandomString(keyLength, keyAlphabet)
	if err != nil {
		return "", "", fmt.Errorf("failed to generate key: %w", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), hashCost)
	if err != nil {
		return "", "", fmt.Errorf("failed to hash key: %w", err)
	}

	return plaintext, string(hashed), nil
}
