package driven

import "errors"

// ErrSealKeyNotSet is returned by SecretSealer implementations constructed
// without a key.
var ErrSealKeyNotSet = errors.New("seal key not configured: set SHAREVAULT_SEAL_KEY")

// SecretHasher performs one-way hashing of account secrets.
type SecretHasher interface {
	Hash(secret string) (string, error)

	// Verify reports whether secret matches hash. Any malformed hash yields false.
	Verify(hash, secret string) bool
}

// SecretSealer performs reversible encryption of credential secrets.
type SecretSealer interface {
	Seal(plaintext string) (string, error)
	Open(sealed string) (string, error)
}
