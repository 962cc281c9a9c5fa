package api

import (
	"net/http"

	"github.com/wardenhq/warden/internal/auth"
	"github.com/wardenhq/warden/internal/platform/httpx"
)

type loginPayload struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token string         `json:"token"`
	User  auth.Principal `json:"user"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var payload loginPayload
	if err := h.decodeValid(r, &payload); err != nil {
		h.respondError(w, r, err)
		return
	}
	token, principal, err := h.authn.Login(r.Context(), payload.Username, payload.Password)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.OKMessage(w, http.StatusOK, loginResponse{Token: token, User: principal}, "login successful")
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	if err := h.authn.Logout(r.Context(), auth.BearerToken(r)); err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.OKMessage(w, http.StatusOK, nil, "logged out")
}
