package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ericfisherdev/sharevault/internal/domain/apperr"
	"github.com/ericfisherdev/sharevault/internal/domain/model"
	"github.com/ericfisherdev/sharevault/internal/domain/port/driven"
)

// Session is the result of a successful login.
type Session struct {
	Token     string
	ExpiresAt time.Time
	Account   model.Account
}

// AuthService turns email and secret into a session and back.
type AuthService struct {
	accounts driven.AccountStore
	hasher   driven.SecretHasher
	issuer   driven.SessionIssuer
	gateway  driven.SessionGateway
	logger   *slog.Logger
}

// NewAuthService creates a new AuthService. A nil logger uses slog.Default.
func NewAuthService(accounts driven.AccountStore, hasher driven.SecretHasher, issuer driven.SessionIssuer, gateway driven.SessionGateway, logger *slog.Logger) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		accounts: accounts,
		hasher:   hasher,
		issuer:   issuer,
		gateway:  gateway,
		logger:   logger,
	}
}

// Login verifies the secret for email and issues a session. Unknown emails,
// inactive accounts and wrong secrets all yield apperr.ErrBadLogin.
func (s *AuthService) Login(ctx context.Context, email, secret string) (Session, error) {
	email = normalizeEmail(email)
	if email == "" || secret == "" {
		return Session{}, apperr.ErrBadLogin
	}

	acct, err := s.accounts.GetByEmail(ctx, email)
	if errors.Is(err, driven.ErrAccountNotFound) {
		s.logger.Info("login rejected", "reason", "unknown email")
		return Session{}, apperr.ErrBadLogin
	}
	if err != nil {
		return Session{}, fmt.Errorf("load account: %w", err)
	}

	if !acct.Active || !s.hasher.Verify(acct.SecretHash, secret) {
		s.logger.Info("login rejected", "account_id", acct.ID, "active", acct.Active)
		return Session{}, apperr.ErrBadLogin
	}

	token, expiresAt, err := s.issuer.Issue(ctx, *acct)
	if err != nil {
		return Session{}, fmt.Errorf("issue session: %w", err)
	}

	s.logger.Info("login succeeded", "account_id", acct.ID)
	return Session{Token: token, ExpiresAt: expiresAt, Account: *acct}, nil
}

// Authenticate resolves token into the active account behind it.
func (s *AuthService) Authenticate(ctx context.Context, token string) (model.Account, error) {
	return s.gateway.ResolveIdentity(ctx, token)
}

// Logout invalidates token.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if err := s.gateway.Invalidate(ctx, token); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}
