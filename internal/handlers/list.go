package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/taskmanager/apiserver/internal/auth"
	"github.com/taskmanager/apiserver/internal/services"
	"github.com/taskmanager/apiserver/internal/store"
	"github.com/taskmanager/apiserver/types"
)

// ListHandler provides HTTP handlers for checklists.
type ListHandler struct {
	listService *services.ListService
	logger      *slog.Logger
}

func NewListHandler(listService *services.ListService, logger *slog.Logger) *ListHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ListHandler{listService: listService, logger: logger}
}

// ListRouter registers checklist routes on the given router.
func ListRouter(r chi.Router, listService *services.ListService, logger *slog.Logger) {
	handler := NewListHandler(listService, logger)

	r.Use(RequireAuth)
	r.Get("/", handler.ListLists)
	r.Post("/", handler.CreateList)
	r.Route("/{listID}", func(r chi.Router) {
		r.Get("/", handler.GetList)
		r.Put("/", handler.UpdateList)
		r.Delete("/", handler.DeleteList)
	})
}

func (h *ListHandler) ListLists(w http.ResponseWriter, r *http.Request) {
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, total, err := h.listService.List(r.Context(), principal(r), r.URL.Query().Get("owner"), offset, limit)
	if err != nil {
		h.writeServiceError(w, r, err, "failed to list lists")
		return
	}

	writeJSON(w, http.StatusOK, PageResponse[types.List]{Items: items, Page: page, Limit: limit, Total: total})
}

func (h *ListHandler) GetList(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "listID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	list, err := h.listService.Get(r.Context(), principal(r), id)
	if err != nil {
		h.writeServiceError(w, r, err, "failed to fetch list")
		return
	}

	writeJSON(w, http.StatusOK, list)
}

func (h *ListHandler) CreateList(w http.ResponseWriter, r *http.Request) {
	var req ListRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	created, err := h.listService.Create(r.Context(), principal(r), req.list(0))
	if err != nil {
		h.writeServiceError(w, r, err, "failed to create list")
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

func (h *ListHandler) UpdateList(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "listID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req ListRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	updated, err := h.listService.Update(r.Context(), principal(r), req.list(id))
	if err != nil {
		h.writeServiceError(w, r, err, "failed to update list")
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

func (h *ListHandler) DeleteList(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "listID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.listService.Delete(r.Context(), principal(r), id); err != nil {
		h.writeServiceError(w, r, err, "failed to delete list")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *ListHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "list not found")
	case errors.Is(err, auth.ErrNotPermitted):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, services.ErrInvalidList):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrInvalidReference):
		writeError(w, http.StatusBadRequest, "unknown owner")
	default:
		h.logger.ErrorContext(r.Context(), fallback, "error", err)
		writeError(w, http.StatusInternalServerError, fallback)
	}
}

// ListRequest is the create and update payload for checklists.
type ListRequest struct {
	Owner       string              `json:"owner"`
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Elements    []types.ListElement `json:"elements"`
}

func (req ListRequest) list(id int) types.List {
	return types.List{
		ID:          id,
		Owner:       req.Owner,
		Name:        req.Name,
		Description: req.Description,
		Elements:    req.Elements,
	}
}
