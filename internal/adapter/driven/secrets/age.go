package secrets

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"filippo.io/age"

	"github.com/ericfisherdev/sharevault/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.SecretSealer = (*AgeSealer)(nil)

// AgeSealer seals credential secrets to a single age X25519 identity.
// Ciphertext is base64-encoded so it fits a TEXT column.
type AgeSealer struct {
	identity  *age.X25519Identity
	recipient *age.X25519Recipient
}

// NewAgeSealer parses an AGE-SECRET-KEY-1... identity string.
func NewAgeSealer(identity string) (*AgeSealer, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return nil, driven.ErrSealKeyNotSet
	}

	id, err := age.ParseX25519Identity(identity)
	if err != nil {
		return nil, fmt.Errorf("parse seal key: %w", err)
	}

	return &AgeSealer{identity: id, recipient: id.Recipient()}, nil
}

// GenerateSealKey returns a fresh identity string suitable for NewAgeSealer.
func GenerateSealKey() (string, error) {
	id, err := age.GenerateX25519Identity()
	if err != nil {
		return "", fmt.Errorf("generate seal key: %w", err)
	}
	return id.String(), nil
}

// Seal encrypts plaintext and returns base64 ciphertext.
func (s *AgeSealer) Seal(plaintext string) (string, error) {
	var buf bytes.Buffer

	w, err := age.Encrypt(&buf, s.recipient)
	if err != nil {
		return "", fmt.Errorf("create age encryptor: %w", err)
	}
	if _, err := io.WriteString(w, plaintext); err != nil {
		return "", fmt.Errorf("write plaintext: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize encryption: %w", err)
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Open decrypts base64 ciphertext produced by Seal.
func (s *AgeSealer) Open(sealed string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}

	r, err := age.Decrypt(bytes.NewReader(raw), s.identity)
	if err != nil {
		return "", fmt.Errorf("decrypt: %w", err)
	}

	plaintext, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read plaintext: %w", err)
	}
	return string(plaintext), nil
}
