// Package api exposes the REST surface consumed by the administrative
// console: CRUD per entity, relationship assignment, the principal's
// effective permissions, and what-if simulation.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"github.com/wardenhq/warden/internal/auth"
	"github.com/wardenhq/warden/internal/authz"
	"github.com/wardenhq/warden/internal/platform/httpx"
	"github.com/wardenhq/warden/internal/store"
)

// Module names guarding the console's own administration surface. The
// seed tool creates them.
const (
	moduleModules     = "Modules"
	modulePermissions = "Permissions"
	moduleRoles       = "Roles"
	moduleGroups      = "Groups"
	moduleUsers       = "Users"
)

// Directory is the read side of the entity store.
type Directory interface {
	ListModules(ctx context.Context, q store.ListQuery) ([]store.Module, int, error)
	GetModuleDetail(ctx context.Context, id int64) (store.ModuleDetail, error)
	ListPermissions(ctx context.Context, q store.ListQuery) ([]store.Permission, int, error)
	GetPermission(ctx context.Context, id int64) (store.Permission, error)
	ListRoles(ctx context.Context, q store.ListQuery) ([]store.Role, int, error)
	GetRoleDetail(ctx context.Context, id int64) (store.RoleDetail, error)
	ListGroups(ctx context.Context, q store.ListQuery) ([]store.Group, int, error)
	GetGroupDetail(ctx context.Context, id int64) (store.GroupDetail, error)
	ListUsers(ctx context.Context, q store.ListQuery) ([]store.User, int, error)
	GetUserDetail(ctx context.Context, id int64) (store.UserDetail, error)
}

// Mutator is the write side; every call flows through the mutation gateway.
type Mutator interface {
	CreateModule(ctx context.Context, actorID int64, name, description string) (store.Module, error)
	UpdateModule(ctx context.Context, actorID, id int64, name, description string) (store.Module, error)
	DeleteModule(ctx context.Context, actorID, id int64, cascade bool) error
	CreatePermission(ctx context.Context, actorID, moduleID int64, action store.Action) (store.Permission, error)
	UpdatePermission(ctx context.Context, actorID, id, moduleID int64, action store.Action) (store.Permission, error)
	DeletePermission(ctx context.Context, actorID, id int64) error
	CreateRole(ctx context.Context, actorID int64, name, description string) (store.Role, error)
	UpdateRole(ctx context.Context, actorID, id int64, name, description string) (store.Role, error)
	DeleteRole(ctx context.Context, actorID, id int64) error
	CreateGroup(ctx context.Context, actorID int64, name, description string) (store.Group, error)
	UpdateGroup(ctx context.Context, actorID, id int64, name, description string) (store.Group, error)
	DeleteGroup(ctx context.Context, actorID, id int64) error
	CreateUser(ctx context.Context, actorID int64, username, credentialRef string) (store.User, error)
	UpdateUser(ctx context.Context, actorID, id int64, username, credentialRef string) (store.User, error)
	DeleteUser(ctx context.Context, actorID, id int64) error
	AssignRolePermission(ctx context.Context, actorID, roleID, permissionID int64) error
	UnassignRolePermission(ctx context.Context, actorID, roleID, permissionID int64) error
	AssignGroupRole(ctx context.Context, actorID, groupID, roleID int64) error
	UnassignGroupRole(ctx context.Context, actorID, groupID, roleID int64) error
	AssignGroupUser(ctx context.Context, actorID, groupID, userID int64) error
	UnassignGroupUser(ctx context.Context, actorID, groupID, userID int64) error
}

// Authorizer answers permission queries for the current principal.
type Authorizer interface {
	Mine(ctx context.Context, userID int64) ([]string, error)
	Simulate(ctx context.Context, userID int64, module string, action store.Action) authz.Decision
}

// Authenticator handles the login flow against the identity store.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (string, auth.Principal, error)
	Logout(ctx context.Context, token string) error
}

// Handler wires the REST endpoints.
type Handler struct {
	logger     *slog.Logger
	directory  Directory
	mutator    Mutator
	authorizer Authorizer
	authn      Authenticator
	principals auth.Middleware
	guard      authz.Middleware
	validator  *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, directory Directory, mutator Mutator, authorizer Authorizer, authn Authenticator, principals auth.Middleware, guard authz.Middleware) *Handler {
	return &Handler{
		logger:     logger,
		directory:  directory,
		mutator:    mutator,
		authorizer: authorizer,
		authn:      authn,
		principals: principals,
		guard:      guard,
		validator:  validator.New(),
	}
}

// MountRoutes registers the /api surface.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/auth/login", h.login)

	r.Group(func(r chi.Router) {
		r.Use(h.principals.RequirePrincipal)

		r.Post("/auth/logout", h.logout)
		r.Get("/permissions/mine", h.minePermissions)

		r.Group(func(r chi.Router) {
			r.Use(httprate.Limit(30, time.Minute, httprate.WithKeyFuncs(principalRateKey)))
			r.Post("/simulate", h.simulate)
		})

		h.mountModuleRoutes(r)
		h.mountPermissionRoutes(r)
		h.mountRoleRoutes(r)
		h.mountGroupRoutes(r)
		h.mountUserRoutes(r)
	})
}

func principalRateKey(r *http.Request) (string, error) {
	if p := auth.PrincipalFromContext(r.Context()); p != nil {
		return strconv.FormatInt(p.UserID, 10), nil
	}
	return r.RemoteAddr, nil
}

// decodeValid decodes the JSON body and runs struct validation, reporting
// field-level detail.
func (h *Handler) decodeValid(r *http.Request, target any) error {
	if err := httpx.DecodeJSON(r, target); err != nil {
		return fmt.Errorf("malformed request body: %w", httpx.ErrValidation)
	}
	if err := h.validator.Struct(target); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			fields := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("invalid fields: %s: %w", strings.Join(fields, ", "), httpx.ErrValidation)
		}
		return fmt.Errorf("invalid request: %w", httpx.ErrValidation)
	}
	return nil
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s: %w", name, httpx.ErrValidation)
	}
	return id, nil
}

func listQuery(r *http.Request) store.ListQuery {
	q := store.ListQuery{Search: r.URL.Query().Get("search")}
	if page, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil {
		q.Page = page
	}
	if perPage, err := strconv.Atoi(r.URL.Query().Get("per_page")); err == nil {
		q.PerPage = perPage
	}
	return q.Normalize()
}

type pageMeta struct {
	Page       int `json:"page"`
	PerPage    int `json:"perPage"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

func newPageMeta(q store.ListQuery, total int) pageMeta {
	return pageMeta{
		Page:       q.Page,
		PerPage:    q.PerPage,
		Total:      total,
		TotalPages: int(math.Ceil(float64(total) / float64(q.PerPage))),
	}
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	if h.logger != nil {
		switch {
		case errors.Is(err, httpx.ErrNotFound),
			errors.Is(err, httpx.ErrValidation),
			errors.Is(err, httpx.ErrDuplicate),
			errors.Is(err, httpx.ErrConflict),
			errors.Is(err, httpx.ErrUnauthorized),
			errors.Is(err, httpx.ErrForbidden):
			h.logger.Debug("request rejected", slog.String("path", r.URL.Path), slog.Any("error", err))
		default:
			h.logger.Error("request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
		}
	}
	httpx.RespondError(w, err)
}

func actorID(r *http.Request) int64 {
	if p := auth.PrincipalFromContext(r.Context()); p != nil {
		return p.UserID
	}
	return 0
}
