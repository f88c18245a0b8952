package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/scrypt"
)

// scrypt parameters. These match the defaults of the deployment that
// produced the existing credential hashes, so they cannot change without
// invalidating every stored hash.
const (
	scryptN = 16384
	scryptR = 8
	scryptP = 1

	saltBytes          = 16
	passwordKeyBytes   = 64
	encryptionKeyBytes = 32
)

// HashPassword derives a storable one-way hash from a plaintext password.
// The result is "saltHex:derivedKeyHex" with a fresh random 16-byte salt.
// Empty passwords are hashed like any other string; length policy belongs
// to the caller.
func HashPassword(password string) (string, error) {
	salt := make([]byte, saltBytes)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	saltHex := hex.EncodeToString(salt)

	key, err := scrypt.Key([]byte(password), []byte(saltHex), scryptN, scryptR, scryptP, passwordKeyBytes)
	if err != nil {
		return "", fmt.Errorf("derive key: %w", err)
	}

	return saltHex + ":" + hex.EncodeToString(key), nil
}

// VerifyPassword reports whether password matches the stored hash form.
// A malformed stored form verifies as false rather than erroring: a broken
// credential record must fail closed.
func VerifyPassword(password, stored string) bool {
	saltHex, keyHex, ok := strings.Cut(stored, ":")
	if !ok || saltHex == "" || keyHex == "" {
		return false
	}

	key, err := scrypt.Key([]byte(password), []byte(saltHex), scryptN, scryptR, scryptP, passwordKeyBytes)
	if err != nil {
		return false
	}

	return subtle.ConstantTimeCompare([]byte(hex.EncodeToString(key)), []byte(keyHex)) == 1
}
