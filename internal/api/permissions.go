package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wardenhq/warden/internal/platform/httpx"
	"github.com/wardenhq/warden/internal/store"
)

type permissionPayload struct {
	ModuleID int64  `json:"moduleId" validate:"required,gt=0"`
	Action   string `json:"action" validate:"required"`
}

func (p permissionPayload) action() (store.Action, error) {
	return store.ParseAction(p.Action)
}

func (h *Handler) mountPermissionRoutes(r chi.Router) {
	r.Route("/permissions", func(r chi.Router) {
		r.With(h.guard.Require(modulePermissions, store.ActionRead)).Get("/", h.listPermissions)
		r.With(h.guard.Require(modulePermissions, store.ActionRead)).Get("/{id}", h.getPermission)
		r.With(h.guard.Require(modulePermissions, store.ActionCreate)).Post("/", h.createPermission)
		r.With(h.guard.Require(modulePermissions, store.ActionUpdate)).Put("/{id}", h.updatePermission)
		r.With(h.guard.Require(modulePermissions, store.ActionDelete)).Delete("/{id}", h.deletePermission)
	})
}

func (h *Handler) listPermissions(w http.ResponseWriter, r *http.Request) {
	q := listQuery(r)
	permissions, total, err := h.directory.ListPermissions(r.Context(), q)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.OKMeta(w, http.StatusOK, permissions, newPageMeta(q, total))
}

func (h *Handler) getPermission(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	permission, err := h.directory.GetPermission(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.OK(w, http.StatusOK, permission)
}

func (h *Handler) createPermission(w http.ResponseWriter, r *http.Request) {
	var payload permissionPayload
	if err := h.decodeValid(r, &payload); err != nil {
		h.respondError(w, r, err)
		return
	}
	action, err := payload.action()
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	permission, err := h.mutator.CreatePermission(r.Context(), actorID(r), payload.ModuleID, action)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.OKMessage(w, http.StatusCreated, permission, "permission created")
}

func (h *Handler) updatePermission(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	var payload permissionPayload
	if err := h.decodeValid(r, &payload); err != nil {
		h.respondError(w, r, err)
		return
	}
	action, err := payload.action()
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	permission, err := h.mutator.UpdatePermission(r.Context(), actorID(r), id, payload.ModuleID, action)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.OKMessage(w, http.StatusOK, permission, "permission updated")
}

func (h *Handler) deletePermission(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if err := h.mutator.DeletePermission(r.Context(), actorID(r), id); err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.OKMessage(w, http.StatusOK, nil, "permission deleted")
}
