// Package cryptox holds the at-rest field encryption, searchable hashes and
// password hashing used for user identity data.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/dmitrijs2005/taskforge/internal/common"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// ErrMalformedCiphertext is returned when a stored value is not in the
// "<nonce hex>:<ciphertext hex>" layout produced by Encrypt.
var ErrMalformedCiphertext = errors.New("malformed ciphertext")

// DefaultPasswordCost is the bcrypt cost used for new password hashes.
const DefaultPasswordCost = bcrypt.DefaultCost

// DeriveKey stretches a configured secret into a 32-byte AES-256 key.
func DeriveKey(secret []byte, salt []byte) []byte {
	return argon2.IDKey(secret, salt, 1, 64*1024, 4, 32)
}

// FieldCipher encrypts individual column values with AES-GCM and produces
// deterministic lookup hashes for the same values.
type FieldCipher struct {
	aead       cipher.AEAD
	searchSalt []byte
}

// NewFieldCipher derives the encryption key from secret and searchSalt.
func NewFieldCipher(secret, searchSalt string) (*FieldCipher, error) {
	if secret == "" || searchSalt == "" {
		return nil, errors.New("encryption secret and search salt are required")
	}

	key := DeriveKey([]byte(secret), []byte(searchSalt))
	defer common.WipeByteArray(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	return &FieldCipher{aead: aead, searchSalt: []byte(searchSalt)}, nil
}

// Encrypt seals plaintext with a fresh random nonce. The result is
// "<nonce hex>:<ciphertext+tag hex>".
func (c *FieldCipher) Encrypt(plaintext string) (string, error) {
	nonce := common.GenerateRandByteArray(c.aead.NonceSize())
	sealed := c.aead.Seal(nil, nonce, []byte(plaintext), nil)
	return hex.EncodeToString(nonce) + ":" + hex.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt.
func (c *FieldCipher) Decrypt(value string) (string, error) {
	nonceHex, sealedHex, ok := strings.Cut(value, ":")
	if !ok {
		return "", ErrMalformedCiphertext
	}

	nonce, err := hex.DecodeString(nonceHex)
	if err != nil || len(nonce) != c.aead.NonceSize() {
		return "", ErrMalformedCiphertext
	}
	sealed, err := hex.DecodeString(sealedHex)
	if err != nil {
		return "", ErrMalformedCiphertext
	}

	plaintext, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

// SearchHash returns a keyed, deterministic hash of the normalized value so
// encrypted columns can still be looked up by equality.
func (c *FieldCipher) SearchHash(value string) string {
	mac := hmac.New(sha256.New, c.searchSalt)
	mac.Write([]byte(strings.ToLower(strings.TrimSpace(value))))
	return hex.EncodeToString(mac.Sum(nil))
}

// HashPassword returns a bcrypt digest of password.
func HashPassword(password string, cost int) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(digest), nil
}

// ComparePassword reports whether password matches the bcrypt digest.
func ComparePassword(digest, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(password)) == nil
}
