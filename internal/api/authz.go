package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/wardenhq/warden/internal/auth"
	"github.com/wardenhq/warden/internal/platform/httpx"
	"github.com/wardenhq/warden/internal/store"
)

type simulatePayload struct {
	Module string `json:"module" validate:"required,max=120"`
	Action string `json:"action" validate:"required"`
}

// minePermissions returns the caller's effective grants as
// "Module:action" strings.
func (h *Handler) minePermissions(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFromContext(r.Context())
	grants, err := h.authorizer.Mine(r.Context(), principal.UserID)
	if err != nil {
		// A live token for a deleted user means the session is invalid.
		if errors.Is(err, httpx.ErrNotFound) {
			err = fmt.Errorf("principal no longer exists: %w", httpx.ErrUnauthorized)
		}
		h.respondError(w, r, err)
		return
	}
	httpx.OK(w, http.StatusOK, grants)
}

// simulate answers a what-if check for the caller without mutating
// anything or consulting the decision cache.
func (h *Handler) simulate(w http.ResponseWriter, r *http.Request) {
	var payload simulatePayload
	if err := h.decodeValid(r, &payload); err != nil {
		h.respondError(w, r, err)
		return
	}
	action, err := store.ParseAction(payload.Action)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	principal := auth.PrincipalFromContext(r.Context())
	decision := h.authorizer.Simulate(r.Context(), principal.UserID, payload.Module, action)
	httpx.OK(w, http.StatusOK, decision)
}
