package httphandler

import (
	"net/http"

	"github.com/ericfisherdev/sharevault/internal/application"
	"github.com/ericfisherdev/sharevault/internal/domain/model"
)

// Me returns the authenticated account and its depth in the tree.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r.Context())

	depth, err := h.accounts.Depth(r.Context(), actor)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, MeResponse{Account: toAccountResponse(actor), Depth: depth})
}

// ListAccounts returns every account the caller may see with its depth.
func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.accounts.ListVisible(r.Context(), actorFrom(r.Context()))
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}

	h.writeAccountList(w, r, accounts)
}

// ListSubordinates returns the caller's direct children with their depth.
func (h *Handler) ListSubordinates(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.accounts.ListSubordinates(r.Context(), actorFrom(r.Context()))
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}

	h.writeAccountList(w, r, accounts)
}

func (h *Handler) writeAccountList(w http.ResponseWriter, r *http.Request, accounts []model.Account) {
	resp := make([]AccountResponse, 0, len(accounts))
	for _, a := range accounts {
		depth, err := h.accounts.Depth(r.Context(), a)
		if err != nil {
			h.writeAppError(w, r, err)
			return
		}
		item := toAccountResponse(a)
		item.Depth = &depth
		resp = append(resp, item)
	}

	writeJSON(w, http.StatusOK, resp)
}

// CreateAccount creates an account below the caller.
func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if !decodeBody(w, r, &req) {
		return
	}

	name, err := plainText("display_name", req.DisplayName)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}

	acct, err := h.accounts.CreateSubordinate(r.Context(), actorFrom(r.Context()), application.SubordinateInput{
		DisplayName: name,
		Email:       req.Email,
		Secret:      req.Secret,
		Role:        model.Role(req.Role),
		ParentID:    req.ParentID,
		Photo:       req.Photo,
	})
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toAccountResponse(acct))
}

// GetAccount returns one account the caller may see.
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	acct, err := h.accounts.Get(r.Context(), actorFrom(r.Context()), id)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toAccountResponse(acct))
}

// ListAncestors returns the root-first ancestor chain of an account the
// caller may see.
func (h *Handler) ListAncestors(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	acct, err := h.accounts.Get(r.Context(), actorFrom(r.Context()), id)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}

	chain, err := h.accounts.AncestorChain(r.Context(), acct)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toAccountResponses(chain))
}

// UpdateAccount patches profile fields or the role of an account.
func (h *Handler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req UpdateAccountRequest
	if !decodeBody(w, r, &req) {
		return
	}

	name, err := plainTextPtr("display_name", req.DisplayName)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}

	patch := model.AccountPatch{
		DisplayName: name,
		Email:       req.Email,
		Photo:       req.Photo,
	}
	if req.Role != nil {
		role := model.Role(*req.Role)
		patch.Role = &role
	}

	acct, err := h.accounts.Update(r.Context(), actorFrom(r.Context()), id, patch)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toAccountResponse(acct))
}

// ChangeSecret replaces an account's login secret.
func (h *Handler) ChangeSecret(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req ChangeSecretRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.accounts.ChangeSecret(r.Context(), actorFrom(r.Context()), id, req.Secret); err != nil {
		h.writeAppError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DeactivateAccount soft-deletes an account the caller manages.
func (h *Handler) DeactivateAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.accounts.Deactivate(r.Context(), actorFrom(r.Context()), id); err != nil {
		h.writeAppError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
