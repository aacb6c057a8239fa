// Package session implements the SessionGateway port with signed JWTs.
// Tokens are HS256, carry the account id as subject and a random token id,
// and are revoked by persisting the token id until its natural expiry.
package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/ericfisherdev/sharevault/internal/domain/apperr"
	"github.com/ericfisherdev/sharevault/internal/domain/model"
	"github.com/ericfisherdev/sharevault/internal/domain/port/driven"
)

const issuer = "sharevault"

// MinKeyLength is the shortest accepted signing key, in bytes.
const MinKeyLength = 32

// ErrKeyTooShort is returned by NewJWTGateway for keys under MinKeyLength.
var ErrKeyTooShort = fmt.Errorf("session key must be at least %d bytes", MinKeyLength)

// Compile-time interface satisfaction checks.
var (
	_ driven.SessionGateway = (*JWTGateway)(nil)
	_ driven.SessionIssuer  = (*JWTGateway)(nil)
)

// AccountLookup is the slice of the account store the gateway needs.
type AccountLookup interface {
	GetByID(ctx context.Context, id int64) (*model.Account, error)
}

// JWTGateway issues and resolves session tokens.
type JWTGateway struct {
	key         []byte
	ttl         time.Duration
	accounts    AccountLookup
	revocations driven.RevocationStore
	now         func() time.Time
}

// Option configures a JWTGateway.
type Option func(*JWTGateway)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(g *JWTGateway) { g.now = now }
}

// NewJWTGateway creates a gateway signing with key. ttl <= 0 defaults to 24h.
func NewJWTGateway(key []byte, ttl time.Duration, accounts AccountLookup, revocations driven.RevocationStore, opts ...Option) (*JWTGateway, error) {
	if len(key) < MinKeyLength {
		return nil, ErrKeyTooShort
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	g := &JWTGateway{
		key:         append([]byte(nil), key...),
		ttl:         ttl,
		accounts:    accounts,
		revocations: revocations,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Issue mints a token for acct.
func (g *JWTGateway) Issue(_ context.Context, acct model.Account) (string, time.Time, error) {
	now := g.now().UTC()
	expiresAt := now.Add(g.ttl)

	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   strconv.FormatInt(acct.ID, 10),
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session token: %w", err)
	}
	return signed, expiresAt, nil
}

// ResolveIdentity verifies token and returns the active account behind it.
// Every rejection is apperr.ErrNotAuthenticated; storage failures pass through.
func (g *JWTGateway) ResolveIdentity(ctx context.Context, token string) (model.Account, error) {
	if token == "" {
		return model.Account{}, apperr.ErrNotAuthenticated
	}

	claims, err := g.parse(token, true)
	if err != nil {
		return model.Account{}, fmt.Errorf("%w: %v", apperr.ErrNotAuthenticated, err)
	}

	revoked, err := g.revocations.IsRevoked(ctx, claims.ID)
	if err != nil {
		return model.Account{}, fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return model.Account{}, fmt.Errorf("%w: session revoked", apperr.ErrNotAuthenticated)
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return model.Account{}, fmt.Errorf("%w: bad subject", apperr.ErrNotAuthenticated)
	}

	acct, err := g.accounts.GetByID(ctx, id)
	if errors.Is(err, driven.ErrAccountNotFound) {
		return model.Account{}, fmt.Errorf("%w: account %d gone", apperr.ErrNotAuthenticated, id)
	}
	if err != nil {
		return model.Account{}, fmt.Errorf("load session account: %w", err)
	}
	if !acct.Active {
		return model.Account{}, fmt.Errorf("%w: account %d inactive", apperr.ErrNotAuthenticated, id)
	}

	return *acct, nil
}

// Invalidate revokes token until its expiry. Tokens that fail signature
// checks or have already expired are ignored.
func (g *JWTGateway) Invalidate(ctx context.Context, token string) error {
	claims, err := g.parse(token, false)
	if err != nil || claims.ID == "" || claims.ExpiresAt == nil {
		return nil
	}

	expiresAt := claims.ExpiresAt.Time
	if !expiresAt.After(g.now()) {
		return nil
	}

	if err := g.revocations.Revoke(ctx, claims.ID, expiresAt); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// PurgeRevoked drops revocations for tokens that have expired anyway.
func (g *JWTGateway) PurgeRevoked(ctx context.Context) (int64, error) {
	return g.revocations.PurgeExpired(ctx, g.now())
}

func (g *JWTGateway) parse(token string, validate bool) (*jwt.RegisteredClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(g.now),
	}
	if validate {
		opts = append(opts, jwt.WithIssuer(issuer), jwt.WithExpirationRequired())
	} else {
		opts = append(opts, jwt.WithoutClaimsValidation())
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.NewParser(opts...).ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return g.key, nil
	})
	if err != nil {
		return nil, err
	}
	if claims.ID == "" {
		return nil, errors.New("missing token id")
	}
	return claims, nil
}
