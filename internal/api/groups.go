package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wardenhq/warden/internal/platform/httpx"
	"github.com/wardenhq/warden/internal/store"
)

type groupPayload struct {
	Name        string `json:"name" validate:"required,max=120"`
	Description string `json:"description" validate:"max=500"`
}

type groupRolePayload struct {
	RoleID int64 `json:"roleId" validate:"required,gt=0"`
}

type groupUserPayload struct {
	UserID int64 `json:"userId" validate:"required,gt=0"`
}

func (h *Handler) mountGroupRoutes(r chi.Router) {
	r.Route("/groups", func(r chi.Router) {
		r.With(h.guard.Require(moduleGroups, store.ActionRead)).Get("/", h.listGroups)
		r.With(h.guard.Require(moduleGroups, store.ActionRead)).Get("/{id}", h.getGroup)
		r.With(h.guard.Require(moduleGroups, store.ActionCreate)).Post("/", h.createGroup)
		r.With(h.guard.Require(moduleGroups, store.ActionUpdate)).Put("/{id}", h.updateGroup)
		r.With(h.guard.Require(moduleGroups, store.ActionDelete)).Delete("/{id}", h.deleteGroup)

		r.With(h.guard.Require(moduleGroups, store.ActionUpdate)).Post("/{id}/roles", h.assignGroupRole)
		r.With(h.guard.Require(moduleGroups, store.ActionUpdate)).Delete("/{id}/roles/{roleID}", h.unassignGroupRole)
		r.With(h.guard.Require(moduleGroups, store.ActionUpdate)).Post("/{id}/users", h.assignGroupUser)
		r.With(h.guard.Require(moduleGroups, store.ActionUpdate)).Delete("/{id}/users/{userID}", h.unassignGroupUser)
	})
}

func (h *Handler) listGroups(w http.ResponseWriter, r *http.Request) {
	q := listQuery(r)
	groups, total, err := h.directory.ListGroups(r.Context(), q)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.OKMeta(w, http.StatusOK, groups, newPageMeta(q, total))
}

func (h *Handler) getGroup(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	detail, err := h.directory.GetGroupDetail(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.OK(w, http.StatusOK, detail)
}

func (h *Handler) createGroup(w http.ResponseWriter, r *http.Request) {
	var payload groupPayload
	if err := h.decodeValid(r, &payload); err != nil {
		h.respondError(w, r, err)
		return
	}
	group, err := h.mutator.CreateGroup(r.Context(), actorID(r), payload.Name, payload.Description)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.OKMessage(w, http.StatusCreated, group, "group created")
}

func (h *Handler) updateGroup(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	var payload groupPayload
	if err := h.decodeValid(r, &payload); err != nil {
		h.respondError(w, r, err)
		return
	}
	group, err := h.mutator.UpdateGroup(r.Context(), actorID(r), id, payload.Name, payload.Description)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.OKMessage(w, http.StatusOK, group, "group updated")
}

func (h *Handler) deleteGroup(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if err := h.mutator.DeleteGroup(r.Context(), actorID(r), id); err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.OKMessage(w, http.StatusOK, nil, "group deleted")
}

func (h *Handler) assignGroupRole(w http.ResponseWriter, r *http.Request) {
	groupID, err := pathID(r, "id")
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	var payload groupRolePayload
	if err := h.decodeValid(r, &payload); err != nil {
		h.respondError(w, r, err)
		return
	}
	if err := h.mutator.AssignGroupRole(r.Context(), actorID(r), groupID, payload.RoleID); err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.OKMessage(w, http.StatusOK, nil, "role assigned to group")
}

func (h *Handler) unassignGroupRole(w http.ResponseWriter, r *http.Request) {
	groupID, err := pathID(r, "id")
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	roleID, err := pathID(r, "roleID")
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if err := h.mutator.UnassignGroupRole(r.Context(), actorID(r), groupID, roleID); err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.OKMessage(w, http.StatusOK, nil, "role removed from group")
}

func (h *Handler) assignGroupUser(w http.ResponseWriter, r *http.Request) {
	groupID, err := pathID(r, "id")
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	var payload groupUserPayload
	if err := h.decodeValid(r, &payload); err != nil {
		h.respondError(w, r, err)
		return
	}
	if err := h.mutator.AssignGroupUser(r.Context(), actorID(r), groupID, payload.UserID); err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.OKMessage(w, http.StatusOK, nil, "user added to group")
}

func (h *Handler) unassignGroupUser(w http.ResponseWriter, r *http.Request) {
	groupID, err := pathID(r, "id")
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	userID, err := pathID(r, "userID")
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if err := h.mutator.UnassignGroupUser(r.Context(), actorID(r), groupID, userID); err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.OKMessage(w, http.StatusOK, nil, "user removed from group")
}
