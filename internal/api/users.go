package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wardenhq/warden/internal/auth"
	"github.com/wardenhq/warden/internal/platform/httpx"
	"github.com/wardenhq/warden/internal/store"
)

type createUserPayload struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

type updateUserPayload struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Password string `json:"password" validate:"omitempty,min=8,max=128"`
}

func (h *Handler) mountUserRoutes(r chi.Router) {
	r.Route("/users", func(r chi.Router) {
		r.With(h.guard.Require(moduleUsers, store.ActionRead)).Get("/", h.listUsers)
		r.With(h.guard.Require(moduleUsers, store.ActionRead)).Get("/{id}", h.getUser)
		r.With(h.guard.Require(moduleUsers, store.ActionCreate)).Post("/", h.createUser)
		r.With(h.guard.Require(moduleUsers, store.ActionUpdate)).Put("/{id}", h.updateUser)
		r.With(h.guard.Require(moduleUsers, store.ActionDelete)).Delete("/{id}", h.deleteUser)
	})
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	q := listQuery(r)
	users, total, err := h.directory.ListUsers(r.Context(), q)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.OKMeta(w, http.StatusOK, users, newPageMeta(q, total))
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	detail, err := h.directory.GetUserDetail(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.OK(w, http.StatusOK, detail)
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var payload createUserPayload
	if err := h.decodeValid(r, &payload); err != nil {
		h.respondError(w, r, err)
		return
	}
	credentialRef, err := auth.HashCredential(payload.Password)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	user, err := h.mutator.CreateUser(r.Context(), actorID(r), payload.Username, credentialRef)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.OKMessage(w, http.StatusCreated, user, "user created")
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	var payload updateUserPayload
	if err := h.decodeValid(r, &payload); err != nil {
		h.respondError(w, r, err)
		return
	}
	credentialRef := ""
	if payload.Password != "" {
		credentialRef, err = auth.HashCredential(payload.Password)
		if err != nil {
			h.respondError(w, r, err)
			return
		}
	}
	user, err := h.mutator.UpdateUser(r.Context(), actorID(r), id, payload.Username, credentialRef)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.OKMessage(w, http.StatusOK, user, "user updated")
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if err := h.mutator.DeleteUser(r.Context(), actorID(r), id); err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.OKMessage(w, http.StatusOK, nil, "user deleted")
}
