// Package secrets implements the SecretHasher and SecretSealer ports:
// bcrypt for one-way account secrets and age for reversible credential secrets.
package secrets

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/ericfisherdev/sharevault/internal/domain/apperr"
	"github.com/ericfisherdev/sharevault/internal/domain/password"
	"github.com/ericfisherdev/sharevault/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.SecretHasher = (*BcryptHasher)(nil)

// BcryptHasher hashes account secrets with bcrypt.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher creates a hasher with the given cost. A cost outside
// bcrypt's accepted range falls back to bcrypt.DefaultCost.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

// Hash returns the bcrypt hash of secret. Secrets longer than 72 bytes fail
// with apperr.ErrInvalidSecret.
func (h *BcryptHasher) Hash(secret string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), h.cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", apperr.ErrInvalidSecret.WithDetails(
			fmt.Sprintf("must be at most %d bytes long", password.MaxSecretBytes))
	}
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Verify reports whether secret matches hash.
func (h *BcryptHasher) Verify(hash, secret string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}
