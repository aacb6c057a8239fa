package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ericfisherdev/sharevault/internal/application"
	"github.com/ericfisherdev/sharevault/internal/domain/apperr"
	"github.com/ericfisherdev/sharevault/internal/domain/model"
)

const dateLayout = "2006-01-02"

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// statusForKind maps an apperr.Kind to its HTTP status.
func statusForKind(k apperr.Kind) int {
	switch k {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindPermission:
		return http.StatusForbidden
	case apperr.KindNotAuthenticated:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error   string   `json:"error"`
	Code    string   `json:"code,omitempty"`
	Details []string `json:"details,omitempty"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// AccountResponse is the JSON representation of an account. The secret hash
// is never serialized. Depth is set on list endpoints.
type AccountResponse struct {
	ID          int64  `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	Role        string `json:"role"`
	ParentID    *int64 `json:"parent_id"`
	CreatedByID *int64 `json:"created_by_id"`
	Photo       string `json:"photo,omitempty"`
	Active      bool   `json:"active"`
	CreatedAt   string `json:"created_at"`
	Depth       *int   `json:"depth,omitempty"`
}

// MeResponse describes the authenticated account.
type MeResponse struct {
	Account AccountResponse `json:"account"`
	Depth   int             `json:"depth"`
}

// SessionResponse is returned by login and bootstrap.
type SessionResponse struct {
	Token     string          `json:"token"`
	ExpiresAt string          `json:"expires_at"`
	Account   AccountResponse `json:"account"`
}

// PasswordCheckResponse lists the policy rules a candidate secret fails.
type PasswordCheckResponse struct {
	Valid      bool     `json:"valid"`
	Violations []string `json:"violations"`
}

// CredentialResponse is the JSON representation of a credential. Secret is
// only populated on the detail endpoint.
type CredentialResponse struct {
	ID              int64   `json:"id"`
	Label           string  `json:"label"`
	Platform        string  `json:"platform"`
	ServiceEmail    string  `json:"service_email"`
	ServiceUsername string  `json:"service_username,omitempty"`
	Secret          string  `json:"secret,omitempty"`
	Photo           string  `json:"photo,omitempty"`
	Notes           string  `json:"notes,omitempty"`
	NotesHTML       string  `json:"notes_html,omitempty"`
	Status          string  `json:"status"`
	CreatedAt       string  `json:"created_at"`
	ExpiresAt       *string `json:"expires_at"`
	Expired         bool    `json:"expired"`
	LastAccessedAt  *string `json:"last_accessed_at"`
	OwnerID         int64   `json:"owner_id"`
	AccessLevel     string  `json:"access_level"`
}

// ShareResponse is the JSON representation of an active share.
type ShareResponse struct {
	ID           int64           `json:"id"`
	CredentialID int64           `json:"credential_id"`
	Grantee      AccountResponse `json:"grantee"`
	Level        string          `json:"level"`
	SharedAt     string          `json:"shared_at"`
}

// AccessLogResponse is the JSON representation of one access log entry.
type AccessLogResponse struct {
	ID            int64  `json:"id"`
	CredentialID  int64  `json:"credential_id"`
	ActorID       int64  `json:"actor_id"`
	At            string `json:"at"`
	SourceAddress string `json:"source_address,omitempty"`
	ClientInfo    string `json:"client_info,omitempty"`
	Succeeded     bool   `json:"succeeded"`
	Note          string `json:"note,omitempty"`
}

// CatalogResponse is one entry of the platform or status catalog.
type CatalogResponse struct {
	Code  string `json:"code"`
	Label string `json:"label"`
}

// BootstrapRequest is the JSON body for the bootstrap endpoint.
type BootstrapRequest struct {
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	Secret      string `json:"secret"`
}

// LoginRequest is the JSON body for the login endpoint.
type LoginRequest struct {
	Email  string `json:"email"`
	Secret string `json:"secret"`
}

// CreateAccountRequest is the JSON body for creating a subordinate account.
type CreateAccountRequest struct {
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	Secret      string `json:"secret"`
	Role        string `json:"role"`
	ParentID    *int64 `json:"parent_id"`
	Photo       string `json:"photo"`
}

// UpdateAccountRequest is the JSON body for patching an account. Absent
// fields are left unchanged.
type UpdateAccountRequest struct {
	DisplayName *string `json:"display_name"`
	Email       *string `json:"email"`
	Role        *string `json:"role"`
	Photo       *string `json:"photo"`
}

// ChangeSecretRequest is the JSON body for replacing an account secret.
type ChangeSecretRequest struct {
	Secret string `json:"secret"`
}

// CreateCredentialRequest is the JSON body for storing a credential.
// ExpiresAt is a YYYY-MM-DD date.
type CreateCredentialRequest struct {
	Label           string `json:"label"`
	Platform        string `json:"platform"`
	ServiceEmail    string `json:"service_email"`
	ServiceUsername string `json:"service_username"`
	Secret          string `json:"secret"`
	Photo           string `json:"photo"`
	Notes           string `json:"notes"`
	Status          string `json:"status"`
	ExpiresAt       string `json:"expires_at"`
}

// UpdateCredentialRequest is the JSON body for patching a credential. An
// empty expires_at clears the expiry date.
type UpdateCredentialRequest struct {
	Label           *string `json:"label"`
	Platform        *string `json:"platform"`
	ServiceEmail    *string `json:"service_email"`
	ServiceUsername *string `json:"service_username"`
	Secret          *string `json:"secret"`
	Photo           *string `json:"photo"`
	Notes           *string `json:"notes"`
	Status          *string `json:"status"`
	ExpiresAt       *string `json:"expires_at"`
}

// ShareRequest is the JSON body for sharing a credential.
type ShareRequest struct {
	Email string `json:"email"`
	Level string `json:"level"`
}

// toAccountResponse converts a domain Account to its JSON representation.
func toAccountResponse(a model.Account) AccountResponse {
	return AccountResponse{
		ID:          a.ID,
		DisplayName: a.DisplayName,
		Email:       a.Email,
		Role:        string(a.Role),
		ParentID:    a.ParentID,
		CreatedByID: a.CreatedByID,
		Photo:       a.Photo,
		Active:      a.Active,
		CreatedAt:   a.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func toAccountResponses(accounts []model.Account) []AccountResponse {
	resp := make([]AccountResponse, 0, len(accounts))
	for _, a := range accounts {
		resp = append(resp, toAccountResponse(a))
	}
	return resp
}

// toCredentialResponse converts a credential view to its JSON representation.
func toCredentialResponse(v application.CredentialView, now time.Time) CredentialResponse {
	c := v.Credential
	resp := CredentialResponse{
		ID:              c.ID,
		Label:           c.Label,
		Platform:        string(c.Platform),
		ServiceEmail:    c.ServiceEmail,
		ServiceUsername: c.ServiceUsername,
		Secret:          c.Secret,
		Photo:           c.Photo,
		Notes:           c.Notes,
		NotesHTML:       renderNotes(c.Notes),
		Status:          string(c.Status),
		CreatedAt:       c.CreatedAt.UTC().Format(time.RFC3339),
		Expired:         c.IsExpired(now),
		OwnerID:         c.OwnerID,
		AccessLevel:     string(v.Level),
	}
	if c.ExpiresAt != nil {
		d := c.ExpiresAt.UTC().Format(dateLayout)
		resp.ExpiresAt = &d
	}
	if c.LastAccessedAt != nil {
		t := c.LastAccessedAt.UTC().Format(time.RFC3339)
		resp.LastAccessedAt = &t
	}
	return resp
}

// toShareResponse converts a share view to its JSON representation.
func toShareResponse(v application.ShareView) ShareResponse {
	return ShareResponse{
		ID:           v.Share.ID,
		CredentialID: v.Share.CredentialID,
		Grantee:      toAccountResponse(v.Grantee),
		Level:        string(v.Share.Level),
		SharedAt:     v.Share.SharedAt.UTC().Format(time.RFC3339),
	}
}

// toAccessLogResponse converts an access log entry to its JSON representation.
func toAccessLogResponse(e model.AccessLog) AccessLogResponse {
	return AccessLogResponse{
		ID:            e.ID,
		CredentialID:  e.CredentialID,
		ActorID:       e.ActorID,
		At:            e.At.UTC().Format(time.RFC3339),
		SourceAddress: e.SourceAddress,
		ClientInfo:    e.ClientInfo,
		Succeeded:     e.Succeeded,
		Note:          e.Note,
	}
}

func toAccessLogResponses(entries []model.AccessLog) []AccessLogResponse {
	resp := make([]AccessLogResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, toAccessLogResponse(e))
	}
	return resp
}

func toCatalogResponses(entries []model.CatalogEntry) []CatalogResponse {
	resp := make([]CatalogResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, CatalogResponse{Code: e.Code, Label: e.Label})
	}
	return resp
}
