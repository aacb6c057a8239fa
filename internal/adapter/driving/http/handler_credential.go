package httphandler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/ericfisherdev/sharevault/internal/application"
	"github.com/ericfisherdev/sharevault/internal/domain/apperr"
	"github.com/ericfisherdev/sharevault/internal/domain/model"
)

const defaultAccessLogLimit = 50

var errInvalidExpiry = apperr.Validation("invalid_expiry", "expires_at must be a YYYY-MM-DD date")

// ListCredentials returns every credential the caller owns or holds a share on.
func (h *Handler) ListCredentials(w http.ResponseWriter, r *http.Request) {
	views, err := h.vault.ListVisible(r.Context(), actorFrom(r.Context()))
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}

	now := h.now()
	resp := make([]CredentialResponse, 0, len(views))
	for _, v := range views {
		resp = append(resp, toCredentialResponse(v, now))
	}

	writeJSON(w, http.StatusOK, resp)
}

// CreateCredential stores a credential owned by the caller.
func (h *Handler) CreateCredential(w http.ResponseWriter, r *http.Request) {
	var req CreateCredentialRequest
	if !decodeBody(w, r, &req) {
		return
	}

	label, err := plainText("label", req.Label)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}

	in := application.NewCredentialInput{
		Label:           label,
		Platform:        model.Platform(req.Platform),
		ServiceEmail:    req.ServiceEmail,
		ServiceUsername: req.ServiceUsername,
		Secret:          req.Secret,
		Photo:           req.Photo,
		Notes:           req.Notes,
		Status:          model.CredentialStatus(req.Status),
	}
	if req.ExpiresAt != "" {
		d, err := time.Parse(dateLayout, req.ExpiresAt)
		if err != nil {
			h.writeAppError(w, r, errInvalidExpiry.WithDetails(req.ExpiresAt))
			return
		}
		in.ExpiresAt = &d
	}

	actor := actorFrom(r.Context())
	cred, err := h.vault.CreateCredential(r.Context(), actor, in)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}

	view := application.CredentialView{Credential: cred, Level: model.AccessOwner}
	writeJSON(w, http.StatusCreated, toCredentialResponse(view, h.now()))
}

// RevealCredential returns one credential including its secret. The read is
// recorded in the access log whether or not it is allowed.
func (h *Handler) RevealCredential(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	view, err := h.vault.Reveal(r.Context(), actorFrom(r.Context()), id, accessMeta(r))
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toCredentialResponse(view, h.now()))
}

// UpdateCredential patches a credential the caller may edit.
func (h *Handler) UpdateCredential(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req UpdateCredentialRequest
	if !decodeBody(w, r, &req) {
		return
	}

	label, err := plainTextPtr("label", req.Label)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}

	patch := model.CredentialPatch{
		Label:           label,
		ServiceEmail:    req.ServiceEmail,
		ServiceUsername: req.ServiceUsername,
		Secret:          req.Secret,
		Photo:           req.Photo,
		Notes:           req.Notes,
	}
	if req.Platform != nil {
		p := model.Platform(*req.Platform)
		patch.Platform = &p
	}
	if req.Status != nil {
		s := model.CredentialStatus(*req.Status)
		patch.Status = &s
	}
	if req.ExpiresAt != nil {
		if *req.ExpiresAt == "" {
			patch.ClearExpiry = true
		} else {
			d, err := time.Parse(dateLayout, *req.ExpiresAt)
			if err != nil {
				h.writeAppError(w, r, errInvalidExpiry.WithDetails(*req.ExpiresAt))
				return
			}
			patch.ExpiresAt = &d
		}
	}

	actor := actorFrom(r.Context())
	cred, err := h.vault.Update(r.Context(), actor, id, patch)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}

	level, err := h.vault.AccessLevel(r.Context(), cred, actor)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}

	cred.Secret = ""
	writeJSON(w, http.StatusOK, toCredentialResponse(application.CredentialView{Credential: cred, Level: level}, h.now()))
}

// DeleteCredential soft-deletes a credential.
func (h *Handler) DeleteCredential(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.vault.Delete(r.Context(), id, actorFrom(r.Context())); err != nil {
		h.writeAppError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListShares returns the active shares on a credential the caller owns.
func (h *Handler) ListShares(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	views, err := h.vault.ListShares(r.Context(), actorFrom(r.Context()), id)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}

	resp := make([]ShareResponse, 0, len(views))
	for _, v := range views {
		resp = append(resp, toShareResponse(v))
	}

	writeJSON(w, http.StatusOK, resp)
}

// ShareCredential grants another account access to a credential.
func (h *Handler) ShareCredential(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req ShareRequest
	if !decodeBody(w, r, &req) {
		return
	}

	share, err := h.vault.Share(r.Context(), id, actorFrom(r.Context()), req.Email, model.AccessLevel(req.Level))
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}

	grantee, err := h.accounts.GetByID(r.Context(), share.GranteeID)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toShareResponse(application.ShareView{Share: share, Grantee: grantee}))
}

// UnshareCredential revokes an account's share on a credential.
func (h *Handler) UnshareCredential(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	granteeID, ok := pathID(w, r, "accountID")
	if !ok {
		return
	}

	if err := h.vault.Unshare(r.Context(), id, actorFrom(r.Context()), granteeID); err != nil {
		h.writeAppError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// AccessLog returns the newest access log entries for a credential. The
// limit query parameter caps the result; it defaults to 50.
func (h *Handler) AccessLog(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	limit, ok := queryLimit(w, r)
	if !ok {
		return
	}

	entries, err := h.vault.AccessHistory(r.Context(), actorFrom(r.Context()), id, limit)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toAccessLogResponses(entries))
}

// MyAccessLog returns the caller's own credential reads, newest first.
func (h *Handler) MyAccessLog(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryLimit(w, r)
	if !ok {
		return
	}

	entries, err := h.vault.ActorHistory(r.Context(), actorFrom(r.Context()), limit)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toAccessLogResponses(entries))
}

func queryLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultAccessLogLimit, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return 0, false
	}
	return n, true
}
