package users

import (
	"errors"

	"golang.org/x/crypto/bcrypt"

	"github.com/Ultrahd-dev/assignment-portal/backend/internal/apperrors"
)

// MaxPasswordBytes bcrypt uses only the first 72 bytes of the input
const MaxPasswordBytes = 72

// ErrPasswordTooLong the password does not fit bcrypt's byte limit
var ErrPasswordTooLong = apperrors.New(apperrors.KindValidation, "Password must be at most 72 bytes")

// PasswordHasher hashes and verifies passwords with bcrypt
type PasswordHasher struct {
	cost int
}

// NewPasswordHasher creates a hasher; out of range costs fall back to bcrypt.DefaultCost
func NewPasswordHasher(cost int) *PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &PasswordHasher{cost: cost}
}

// Cost returns the configured bcrypt cost
func (h *PasswordHasher) Cost() int {
	return h.cost
}

// Hash returns a salted bcrypt hash of the plaintext password
func (h *PasswordHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", errors.New("password must not be empty")
	}
	// multibyte symbols count as several bytes
	if len(password) > MaxPasswordBytes {
		return "", ErrPasswordTooLong
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Verify reports whether password matches hash.
// bcrypt compares the derived keys in constant time.
func (h *PasswordHasher) Verify(password, hash string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
