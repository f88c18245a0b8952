package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/scrypt"
)

// keyDerivationSalt is fixed and non-secret. Every deployment derives its
// session key from AUTH_SECRET alone; changing this constant would
// invalidate all outstanding session tokens.
const keyDerivationSalt = "salt"

// SessionPayload is the plaintext carried inside a session token. Subject
// stays in the model even though the single-user deployment always issues
// "user", so multi-user support needs no token format change.
type SessionPayload struct {
	Subject   string `json:"userId"`
	ExpiresAt int64  `json:"expiresAt"` // milliseconds since epoch
}

// Expired reports whether the payload's expiry lies at or before now.
func (p SessionPayload) Expired(now time.Time) bool {
	return p.ExpiresAt <= now.UnixMilli()
}

// TokenCodec seals session payloads into opaque bearer tokens and opens
// them again. Tokens are "ivHex:cipherHex": a fresh 16-byte IV and an
// AES-256-CBC ciphertext under a key derived from the server secret.
type TokenCodec struct {
	key []byte
}

// NewTokenCodec derives the symmetric key from the server secret. The KDF
// normalizes arbitrary-length operator secrets into a 32-byte key and buys
// a resistance margin against weak ones.
func NewTokenCodec(secret string) (*TokenCodec, error) {
	key, err := scrypt.Key([]byte(secret), []byte(keyDerivationSalt), scryptN, scryptR, scryptP, encryptionKeyBytes)
	if err != nil {
		return nil, fmt.Errorf("derive session key: %w", err)
	}
	return &TokenCodec{key: key}, nil
}

// Encrypt seals the payload into a token. The IV is freshly random on every
// call; two encryptions of the same payload never produce the same token.
func (c *TokenCodec) Encrypt(payload SessionPayload) (string, error) {
	plaintext, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal session payload: %w", err)
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("generate iv: %w", err)
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", fmt.Errorf("create cipher: %w", err)
	}

	padded := padPKCS7(plaintext, aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	return hex.EncodeToString(iv) + ":" + hex.EncodeToString(ciphertext), nil
}

// Decrypt opens a token and returns its payload. Any failure (wrong shape,
// bad hex, corrupt ciphertext, bad padding, unparseable plaintext, expired
// payload) yields (zero, false). Callers cannot distinguish an expired
// session from an absent or forged one, which is the point.
func (c *TokenCodec) Decrypt(token string) (SessionPayload, bool) {
	ivHex, cipherHex, ok := strings.Cut(token, ":")
	if !ok || ivHex == "" || cipherHex == "" {
		return SessionPayload{}, false
	}

	iv, err := hex.DecodeString(ivHex)
	if err != nil || len(iv) != aes.BlockSize {
		return SessionPayload{}, false
	}
	ciphertext, err := hex.DecodeString(cipherHex)
	if err != nil || len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return SessionPayload{}, false
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return SessionPayload{}, false
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)

	plaintext, ok = unpadPKCS7(plaintext, aes.BlockSize)
	if !ok {
		return SessionPayload{}, false
	}

	var payload SessionPayload
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		return SessionPayload{}, false
	}
	if payload.Expired(time.Now()) {
		return SessionPayload{}, false
	}

	return payload, true
}

// ValidTokenFormat is the structural check the perimeter gate runs on every
// request. It needs no key material and performs no decryption: exactly two
// non-empty colon-separated parts (a second colon anywhere disqualifies the
// token), the first being a 32-hex-char IV. A forgery that matches this
// shape still fails Decrypt at the authoritative layer.
func ValidTokenFormat(token string) bool {
	if strings.Count(token, ":") != 1 {
		return false
	}
	ivHex, cipherHex, _ := strings.Cut(token, ":")
	if ivHex == "" || cipherHex == "" {
		return false
	}
	if len(ivHex) != aes.BlockSize*2 {
		return false
	}
	_, err := hex.DecodeString(ivHex)
	return err == nil
}

func padPKCS7(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	padded := make([]byte, len(data)+n)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(n)
	}
	return padded
}

func unpadPKCS7(data []byte, blockSize int) ([]byte, bool) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, false
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, false
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, false
		}
	}
	return data[:len(data)-n], true
}
