package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wardenhq/warden/internal/platform/httpx"
	"github.com/wardenhq/warden/internal/store"
)

type modulePayload struct {
	Name        string `json:"name" validate:"required,max=120"`
	Description string `json:"description" validate:"max=500"`
}

func (h *Handler) mountModuleRoutes(r chi.Router) {
	r.Route("/modules", func(r chi.Router) {
		r.With(h.guard.Require(moduleModules, store.ActionRead)).Get("/", h.listModules)
		r.With(h.guard.Require(moduleModules, store.ActionRead)).Get("/{id}", h.getModule)
		r.With(h.guard.Require(moduleModules, store.ActionCreate)).Post("/", h.createModule)
		r.With(h.guard.Require(moduleModules, store.ActionUpdate)).Put("/{id}", h.updateModule)
		r.With(h.guard.Require(moduleModules, store.ActionDelete)).Delete("/{id}", h.deleteModule)
	})
}

func (h *Handler) listModules(w http.ResponseWriter, r *http.Request) {
	q := listQuery(r)
	modules, total, err := h.directory.ListModules(r.Context(), q)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.OKMeta(w, http.StatusOK, modules, newPageMeta(q, total))
}

func (h *Handler) getModule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	detail, err := h.directory.GetModuleDetail(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.OK(w, http.StatusOK, detail)
}

func (h *Handler) createModule(w http.ResponseWriter, r *http.Request) {
	var payload modulePayload
	if err := h.decodeValid(r, &payload); err != nil {
		h.respondError(w, r, err)
		return
	}
	module, err := h.mutator.CreateModule(r.Context(), actorID(r), payload.Name, payload.Description)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.OKMessage(w, http.StatusCreated, module, "module created")
}

func (h *Handler) updateModule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	var payload modulePayload
	if err := h.decodeValid(r, &payload); err != nil {
		h.respondError(w, r, err)
		return
	}
	module, err := h.mutator.UpdateModule(r.Context(), actorID(r), id, payload.Name, payload.Description)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.OKMessage(w, http.StatusOK, module, "module updated")
}

func (h *Handler) deleteModule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	cascade := r.URL.Query().Get("cascade") == "true"
	if err := h.mutator.DeleteModule(r.Context(), actorID(r), id, cascade); err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.OKMessage(w, http.StatusOK, nil, "module deleted")
}
