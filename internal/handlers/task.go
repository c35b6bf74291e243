package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/taskmanager/apiserver/internal/auth"
	"github.com/taskmanager/apiserver/internal/services"
	"github.com/taskmanager/apiserver/internal/store"
	"github.com/taskmanager/apiserver/types"
)

// TaskHandler provides HTTP handlers for tasks.
type TaskHandler struct {
	taskService *services.TaskService
	logger      *slog.Logger
}

func NewTaskHandler(taskService *services.TaskService, logger *slog.Logger) *TaskHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskHandler{taskService: taskService, logger: logger}
}

// TaskRouter registers task routes on the given router. Every route
// requires an authenticated principal.
func TaskRouter(r chi.Router, taskService *services.TaskService, logger *slog.Logger) {
	handler := NewTaskHandler(taskService, logger)

	r.Use(RequireAuth)
	r.Get("/", handler.ListTasks)
	r.Post("/", handler.CreateTask)
	r.Route("/{taskID}", func(r chi.Router) {
		r.Get("/", handler.GetTask)
		r.Put("/", handler.UpdateTask)
		r.Delete("/", handler.DeleteTask)
	})
}

func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, total, err := h.taskService.List(r.Context(), principal(r), r.URL.Query().Get("owner"), offset, limit)
	if err != nil {
		h.writeServiceError(w, r, err, "failed to list tasks")
		return
	}

	writeJSON(w, http.StatusOK, PageResponse[types.Task]{Items: items, Page: page, Limit: limit, Total: total})
}

func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "taskID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	task, err := h.taskService.Get(r.Context(), principal(r), id)
	if err != nil {
		h.writeServiceError(w, r, err, "failed to fetch task")
		return
	}

	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var req TaskRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	created, err := h.taskService.Create(r.Context(), principal(r), req.task(0))
	if err != nil {
		h.writeServiceError(w, r, err, "failed to create task")
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "taskID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req TaskRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	updated, err := h.taskService.Update(r.Context(), principal(r), req.task(id))
	if err != nil {
		h.writeServiceError(w, r, err, "failed to update task")
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "taskID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.taskService.Delete(r.Context(), principal(r), id); err != nil {
		h.writeServiceError(w, r, err, "failed to delete task")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *TaskHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "task not found")
	case errors.Is(err, auth.ErrNotPermitted):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, services.ErrInvalidTask):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrInvalidReference):
		writeError(w, http.StatusBadRequest, "unknown owner")
	default:
		h.logger.ErrorContext(r.Context(), fallback, "error", err)
		writeError(w, http.StatusInternalServerError, fallback)
	}
}

// TaskRequest is the create and update payload for tasks.
type TaskRequest struct {
	Owner       string          `json:"owner"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Priority    int             `json:"priority"`
	State       types.TaskState `json:"state"`
	DueAt       *time.Time      `json:"due_at"`
}

func (req TaskRequest) task(id int) types.Task {
	return types.Task{
		ID:          id,
		Owner:       req.Owner,
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		State:       req.State,
		DueAt:       req.DueAt,
	}
}
