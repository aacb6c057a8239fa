package httphandler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/ericfisherdev/sharevault/internal/application"
	"github.com/ericfisherdev/sharevault/internal/domain/apperr"
	"github.com/ericfisherdev/sharevault/internal/domain/model"
)

const (
	maxBodyBytes = 1 << 20
	healthPath   = "/api/v1/health"
)

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	accounts *application.AccountService
	auth     *application.AuthService
	vault    *application.VaultService
	logger   *slog.Logger
	now      func() time.Time
	ping     func(context.Context) error

	rateLimit  int
	rateWindow time.Duration
}

// Option configures a Handler.
type Option func(*Handler)

// WithHealthCheck makes the health endpoint report 503 when ping fails.
func WithHealthCheck(ping func(context.Context) error) Option {
	return func(h *Handler) { h.ping = ping }
}

// WithRateLimit caps every client address at perHour API requests per hour.
// Zero or less disables the limit.
func WithRateLimit(perHour int) Option {
	return func(h *Handler) {
		h.rateLimit = perHour
		h.rateWindow = time.Hour
	}
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(
	accounts *application.AccountService,
	auth *application.AuthService,
	vault *application.VaultService,
	logger *slog.Logger,
	opts ...Option,
) *Handler {
	h := &Handler{
		accounts: accounts,
		auth:     auth,
		vault:    vault,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET "+healthPath, h.Health)
	mux.HandleFunc("POST /api/v1/bootstrap", h.Bootstrap)
	mux.HandleFunc("POST /api/v1/login", h.Login)
	mux.HandleFunc("POST /api/v1/logout", h.Logout)
	mux.HandleFunc("GET /api/v1/password/check", h.CheckPassword)
	mux.HandleFunc("GET /api/v1/catalog/platforms", h.ListPlatforms)
	mux.HandleFunc("GET /api/v1/catalog/statuses", h.ListStatuses)

	mux.HandleFunc("GET /api/v1/me", h.requireAuth(h.Me))
	mux.HandleFunc("GET /api/v1/me/access-log", h.requireAuth(h.MyAccessLog))

	mux.HandleFunc("GET /api/v1/accounts", h.requireAuth(h.ListAccounts))
	mux.HandleFunc("POST /api/v1/accounts", h.requireAuth(h.CreateAccount))
	mux.HandleFunc("GET /api/v1/accounts/subordinates", h.requireAuth(h.ListSubordinates))
	mux.HandleFunc("GET /api/v1/accounts/{id}", h.requireAuth(h.GetAccount))
	mux.HandleFunc("PATCH /api/v1/accounts/{id}", h.requireAuth(h.UpdateAccount))
	mux.HandleFunc("DELETE /api/v1/accounts/{id}", h.requireAuth(h.DeactivateAccount))
	mux.HandleFunc("GET /api/v1/accounts/{id}/ancestors", h.requireAuth(h.ListAncestors))
	mux.HandleFunc("POST /api/v1/accounts/{id}/secret", h.requireAuth(h.ChangeSecret))

	mux.HandleFunc("GET /api/v1/credentials", h.requireAuth(h.ListCredentials))
	mux.HandleFunc("POST /api/v1/credentials", h.requireAuth(h.CreateCredential))
	mux.HandleFunc("GET /api/v1/credentials/{id}", h.requireAuth(h.RevealCredential))
	mux.HandleFunc("PATCH /api/v1/credentials/{id}", h.requireAuth(h.UpdateCredential))
	mux.HandleFunc("DELETE /api/v1/credentials/{id}", h.requireAuth(h.DeleteCredential))
	mux.HandleFunc("GET /api/v1/credentials/{id}/shares", h.requireAuth(h.ListShares))
	mux.HandleFunc("POST /api/v1/credentials/{id}/shares", h.requireAuth(h.ShareCredential))
	mux.HandleFunc("DELETE /api/v1/credentials/{id}/shares/{accountID}", h.requireAuth(h.UnshareCredential))
	mux.HandleFunc("GET /api/v1/credentials/{id}/access-log", h.requireAuth(h.AccessLog))

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	if h.rateLimit > 0 {
		wrapped = rateLimitMiddleware(newClientLimiter(h.rateLimit, h.rateWindow, h.now), wrapped)
	}
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// Health reports whether the server and its storage are reachable.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	now := h.now().UTC().Format(time.RFC3339)

	if h.ping != nil {
		if err := h.ping(r.Context()); err != nil {
			h.logger.Error("health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unavailable", Time: now})
			return
		}
	}

	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Time: now})
}

// Bootstrap creates the first administrator. It succeeds once per store.
func (h *Handler) Bootstrap(w http.ResponseWriter, r *http.Request) {
	var req BootstrapRequest
	if !decodeBody(w, r, &req) {
		return
	}

	name, err := plainText("display_name", req.DisplayName)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}

	acct, err := h.accounts.BootstrapAdmin(r.Context(), name, req.Email, req.Secret)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toAccountResponse(acct))
}

// Login exchanges email and secret for a bearer token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeBody(w, r, &req) {
		return
	}

	sess, err := h.auth.Login(r.Context(), req.Email, req.Secret)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, SessionResponse{
		Token:     sess.Token,
		ExpiresAt: sess.ExpiresAt.UTC().Format(time.RFC3339),
		Account:   toAccountResponse(sess.Account),
	})
}

// Logout revokes the bearer token. A missing token is treated as already
// logged out.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if err := h.auth.Logout(r.Context(), token); err != nil {
		h.writeAppError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// CheckPassword reports which policy rules the secret query parameter fails.
func (h *Handler) CheckPassword(w http.ResponseWriter, r *http.Request) {
	err := h.accounts.ValidateSecret(r.URL.Query().Get("secret"))
	if err == nil {
		writeJSON(w, http.StatusOK, PasswordCheckResponse{Valid: true, Violations: []string{}})
		return
	}

	var ae *apperr.Error
	if !errors.As(err, &ae) {
		h.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, PasswordCheckResponse{Valid: false, Violations: ae.Details})
}

// ListPlatforms returns the platform catalog.
func (h *Handler) ListPlatforms(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, toCatalogResponses(h.vault.Platforms()))
}

// ListStatuses returns the credential status catalog.
func (h *Handler) ListStatuses(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, toCatalogResponses(h.vault.Statuses()))
}

// writeAppError maps classified errors to their status and logs the rest as
// internal failures.
func (h *Handler) writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		writeJSON(w, statusForKind(ae.Kind), errorResponse{
			Error:   ae.Message,
			Code:    ae.Code,
			Details: ae.Details,
		})
		return
	}

	h.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	writeError(w, http.StatusInternalServerError, "internal server error")
}

// decodeBody decodes the JSON request body into v, writing a 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// pathID parses the named path value as a positive int64, writing a 400 on
// failure.
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}

// accessMeta describes the caller for the credential access log.
func accessMeta(r *http.Request) model.AccessMeta {
	return model.AccessMeta{SourceAddress: clientAddr(r), ClientInfo: r.UserAgent()}
}

// clientAddr is the request's remote host without the port.
func clientAddr(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
