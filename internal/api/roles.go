package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wardenhq/warden/internal/platform/httpx"
	"github.com/wardenhq/warden/internal/store"
)

type rolePayload struct {
	Name        string `json:"name" validate:"required,max=120"`
	Description string `json:"description" validate:"max=500"`
}

type rolePermissionPayload struct {
	PermissionID int64 `json:"permissionId" validate:"required,gt=0"`
}

func (h *Handler) mountRoleRoutes(r chi.Router) {
	r.Route("/roles", func(r chi.Router) {
		r.With(h.guard.Require(moduleRoles, store.ActionRead)).Get("/", h.listRoles)
		r.With(h.guard.Require(moduleRoles, store.ActionRead)).Get("/{id}", h.getRole)
		r.With(h.guard.Require(moduleRoles, store.ActionCreate)).Post("/", h.createRole)
		r.With(h.guard.Require(moduleRoles, store.ActionUpdate)).Put("/{id}", h.updateRole)
		r.With(h.guard.Require(moduleRoles, store.ActionDelete)).Delete("/{id}", h.deleteRole)

		r.With(h.guard.Require(moduleRoles, store.ActionUpdate)).Post("/{id}/permissions", h.assignRolePermission)
		r.With(h.guard.Require(moduleRoles, store.ActionUpdate)).Delete("/{id}/permissions/{permissionID}", h.unassignRolePermission)
	})
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	q := listQuery(r)
	roles, total, err := h.directory.ListRoles(r.Context(), q)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.OKMeta(w, http.StatusOK, roles, newPageMeta(q, total))
}

func (h *Handler) getRole(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	detail, err := h.directory.GetRoleDetail(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.OK(w, http.StatusOK, detail)
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	var payload rolePayload
	if err := h.decodeValid(r, &payload); err != nil {
		h.respondError(w, r, err)
		return
	}
	role, err := h.mutator.CreateRole(r.Context(), actorID(r), payload.Name, payload.Description)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.OKMessage(w, http.StatusCreated, role, "role created")
}

func (h *Handler) updateRole(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	var payload rolePayload
	if err := h.decodeValid(r, &payload); err != nil {
		h.respondError(w, r, err)
		return
	}
	role, err := h.mutator.UpdateRole(r.Context(), actorID(r), id, payload.Name, payload.Description)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.OKMessage(w, http.StatusOK, role, "role updated")
}

func (h *Handler) deleteRole(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if err := h.mutator.DeleteRole(r.Context(), actorID(r), id); err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.OKMessage(w, http.StatusOK, nil, "role deleted")
}

func (h *Handler) assignRolePermission(w http.ResponseWriter, r *http.Request) {
	roleID, err := pathID(r, "id")
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	var payload rolePermissionPayload
	if err := h.decodeValid(r, &payload); err != nil {
		h.respondError(w, r, err)
		return
	}
	if err := h.mutator.AssignRolePermission(r.Context(), actorID(r), roleID, payload.PermissionID); err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.OKMessage(w, http.StatusOK, nil, "permission assigned to role")
}

func (h *Handler) unassignRolePermission(w http.ResponseWriter, r *http.Request) {
	roleID, err := pathID(r, "id")
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	permissionID, err := pathID(r, "permissionID")
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if err := h.mutator.UnassignRolePermission(r.Context(), actorID(r), roleID, permissionID); err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.OKMessage(w, http.StatusOK, nil, "permission removed from role")
}
