package superadmin

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	hashScheme     = "pbkdf2-sha256"
	hashIterations = 120_000
	saltLength     = 16
	keyLength      = 32
)

// HashPassword derives a key from the password with a fresh random salt.
// The stored form is scheme$iterations$salt$key, all base64url without
// padding, so old hashes keep verifying if iterations are raised later.
func HashPassword(password string) (string, error) {
	if len(password) == 0 {
		return "", errors.New("superadmin: password is empty")
	}
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("superadmin: generate salt: %w", err)
	}
	key := pbkdf2.Key([]byte(password), salt, hashIterations, keyLength, sha256.New)
	return fmt.Sprintf("%s$%d$%s$%s",
		hashScheme,
		hashIterations,
		base64.RawURLEncoding.EncodeToString(salt),
		base64.RawURLEncoding.EncodeToString(key),
	), nil
}

// VerifyPassword recomputes the derived key with the stored salt and
// compares in constant time. A malformed stored hash verifies false rather
// than erroring, so the failure path cannot become a timing oracle.
func VerifyPassword(encoded, password string) bool {
	parts := strings.Split(encoded, "$")
	if len(parts) != 4 || parts[0] != hashScheme {
		return false
	}
	iterations, err := strconv.Atoi(parts[1])
	if err != nil || iterations <= 0 {
		return false
	}
	salt, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil || len(salt) < saltLength {
		return false
	}
	want, err := base64.RawURLEncoding.DecodeString(parts[3])
	if err != nil || len(want) == 0 {
		return false
	}
	got := pbkdf2.Key([]byte(password), salt, iterations, len(want), sha256.New)
	return subtle.ConstantTimeCompare(got, want) == 1
}
