package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/taskmanager/apiserver/internal/services"
	"github.com/taskmanager/apiserver/internal/store"
	"github.com/taskmanager/apiserver/types"
)

// AdminHandler exposes role catalog and user management to administrators.
type AdminHandler struct {
	roleService *services.RoleService
	userService *services.UserService
	logger      *slog.Logger
}

func NewAdminHandler(roleService *services.RoleService, userService *services.UserService, logger *slog.Logger) *AdminHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminHandler{roleService: roleService, userService: userService, logger: logger}
}

// RoleRouter registers role management routes. Callers must be ADMIN.
func RoleRouter(r chi.Router, roleService *services.RoleService, userService *services.UserService, logger *slog.Logger) {
	handler := NewAdminHandler(roleService, userService, logger)

	r.Use(RequireRole(types.RoleAdmin))
	r.Get("/", handler.ListRoles)
	r.Post("/", handler.CreateRole)
	r.Route("/{roleName}", func(r chi.Router) {
		r.Get("/", handler.GetRole)
		r.Put("/", handler.RenameRole)
		r.Delete("/", handler.DeleteRole)
		r.Post("/authorities", handler.GrantAuthority)
	})
}

// UserRouter registers user management routes. Callers must be ADMIN.
func UserRouter(r chi.Router, roleService *services.RoleService, userService *services.UserService, logger *slog.Logger) {
	handler := NewAdminHandler(roleService, userService, logger)

	r.Use(RequireRole(types.RoleAdmin))
	r.Get("/", handler.ListUsers)
	r.Route("/{userID}", func(r chi.Router) {
		r.Get("/", handler.GetUser)
		r.Delete("/", handler.DeleteUser)
	})
	r.Route("/by-username/{username}/roles/{roleName}", func(r chi.Router) {
		r.Put("/", handler.AssignRole)
		r.Delete("/", handler.RevokeRole)
	})
}

func (h *AdminHandler) ListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.roleService.List(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err, "failed to list roles")
		return
	}
	writeJSON(w, http.StatusOK, roles)
}

func (h *AdminHandler) GetRole(w http.ResponseWriter, r *http.Request) {
	role, err := h.roleService.Get(r.Context(), chi.URLParam(r, "roleName"))
	if err != nil {
		h.writeServiceError(w, r, err, "failed to fetch role")
		return
	}
	writeJSON(w, http.StatusOK, role)
}

func (h *AdminHandler) CreateRole(w http.ResponseWriter, r *http.Request) {
	var req NameRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	role, err := h.roleService.Create(r.Context(), req.Name)
	if err != nil {
		h.writeServiceError(w, r, err, "failed to create role")
		return
	}
	writeJSON(w, http.StatusCreated, role)
}

func (h *AdminHandler) RenameRole(w http.ResponseWriter, r *http.Request) {
	var req NameRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	role, err := h.roleService.Rename(r.Context(), chi.URLParam(r, "roleName"), req.Name)
	if err != nil {
		h.writeServiceError(w, r, err, "failed to rename role")
		return
	}
	writeJSON(w, http.StatusOK, role)
}

func (h *AdminHandler) DeleteRole(w http.ResponseWriter, r *http.Request) {
	if err := h.roleService.Delete(r.Context(), chi.URLParam(r, "roleName")); err != nil {
		h.writeServiceError(w, r, err, "failed to delete role")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) GrantAuthority(w http.ResponseWriter, r *http.Request) {
	var req NameRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	role, err := h.roleService.GrantAuthority(r.Context(), chi.URLParam(r, "roleName"), req.Name)
	if err != nil {
		h.writeServiceError(w, r, err, "failed to grant authority")
		return
	}
	writeJSON(w, http.StatusOK, role)
}

func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	users, total, err := h.userService.List(r.Context(), offset, limit)
	if err != nil {
		h.writeServiceError(w, r, err, "failed to list users")
		return
	}
	writeJSON(w, http.StatusOK, PageResponse[types.User]{Items: users, Page: page, Limit: limit, Total: total})
}

func (h *AdminHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.userService.GetByID(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err, "failed to fetch user")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.userService.Delete(r.Context(), id); err != nil {
		h.writeServiceError(w, r, err, "failed to delete user")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) AssignRole(w http.ResponseWriter, r *http.Request) {
	user, err := h.roleService.AssignToUser(r.Context(), chi.URLParam(r, "username"), chi.URLParam(r, "roleName"))
	if err != nil {
		h.writeServiceError(w, r, err, "failed to assign role")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *AdminHandler) RevokeRole(w http.ResponseWriter, r *http.Request) {
	user, err := h.roleService.RevokeFromUser(r.Context(), chi.URLParam(r, "username"), chi.URLParam(r, "roleName"))
	if err != nil {
		h.writeServiceError(w, r, err, "failed to revoke role")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *AdminHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, store.ErrConflict):
		writeError(w, http.StatusConflict, "already exists")
	case errors.Is(err, services.ErrInvalidRoleName):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.ErrorContext(r.Context(), fallback, "error", err)
		writeError(w, http.StatusInternalServerError, fallback)
	}
}

// NameRequest carries a single role or authority name.
type NameRequest struct {
	Name string `json:"name"`
}
