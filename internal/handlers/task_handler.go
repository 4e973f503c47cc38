package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/genielink/backend/internal/middleware"
	"github.com/genielink/backend/internal/models"
	"github.com/genielink/backend/internal/services"
)

// Lifecycle is the orchestrator interface the handler drives.
type Lifecycle interface {
	Claim(ctx context.Context, taskID, workerID uuid.UUID) (*models.Task, error)
	Start(ctx context.Context, taskID, workerID uuid.UUID) (*models.Task, error)
	Complete(ctx context.Context, taskID, workerID uuid.UUID) (*models.Task, error)
	Unclaim(ctx context.Context, taskID, requesterID uuid.UUID) (*models.Task, error)
	Rate(ctx context.Context, taskID, raterID uuid.UUID, rating int, comment string) (*services.RatingResult, error)
}

// TaskStore is the repository slice used for the plain CRUD/query surface.
type TaskStore interface {
	Create(ctx context.Context, t *models.Task) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListAvailable(ctx context.Context, limit, offset int) ([]*models.Task, error)
	ListByRequester(ctx context.Context, requesterID uuid.UUID) ([]*models.Task, error)
	ListByWorker(ctx context.Context, workerID uuid.UUID) ([]*models.Task, error)
}

// MessageStore reads the chat thread attached to a task.
type MessageStore interface {
	ListByTask(ctx context.Context, taskID uuid.UUID) ([]*models.Message, error)
}

type TaskHandler struct {
	Tasks     TaskStore
	Messages  MessageStore
	Lifecycle Lifecycle
	Logger    *slog.Logger
}

type createTaskRequest struct {
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Location    *string          `json:"location,omitempty"`
	Duration    *string          `json:"duration,omitempty"`
	Price       *decimal.Decimal `json:"price,omitempty"`
}

// CreateTask handles POST /api/v1/tasks.
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromCtx(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if req.Title == "" || req.Description == "" {
		http.Error(w, `{"error":"title and description are required"}`, http.StatusBadRequest)
		return
	}
	if req.Price != nil && req.Price.Sign() <= 0 {
		http.Error(w, `{"error":"price must be positive"}`, http.StatusBadRequest)
		return
	}
	t := &models.Task{
		ID:          uuid.New(),
		RequesterID: userID,
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		Duration:    req.Duration,
		Price:       req.Price,
		Status:      models.TaskStatusPosted,
	}
	if err := h.Tasks.Create(r.Context(), t); err != nil {
		h.Logger.Error("create task", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// GetTask handles GET /api/v1/tasks/{id}.
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	taskID, ok := taskIDFromPath(r)
	if !ok {
		http.Error(w, `{"error":"invalid task id"}`, http.StatusBadRequest)
		return
	}
	t, err := h.Tasks.GetByID(r.Context(), taskID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			http.Error(w, `{"error":"task not found"}`, http.StatusNotFound)
			return
		}
		h.Logger.Error("get task", "task_id", taskID, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// DeleteTask handles DELETE /api/v1/tasks/{id}. Only the owner may delete,
// and only while the task is still POSTED; a claimed task holds escrow and
// must be unclaimed first.
func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromCtx(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	taskID, ok := taskIDFromPath(r)
	if !ok {
		http.Error(w, `{"error":"invalid task id"}`, http.StatusBadRequest)
		return
	}
	t, err := h.Tasks.GetByID(r.Context(), taskID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			http.Error(w, `{"error":"task not found"}`, http.StatusNotFound)
			return
		}
		h.Logger.Error("get task", "task_id", taskID, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if t.RequesterID != userID {
		http.Error(w, `{"error":"task is not yours"}`, http.StatusForbidden)
		return
	}
	if t.Status != models.TaskStatusPosted {
		http.Error(w, `{"error":"only POSTED tasks can be deleted"}`, http.StatusBadRequest)
		return
	}
	if err := h.Tasks.Delete(r.Context(), taskID); err != nil {
		h.Logger.Error("delete task", "task_id", taskID, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListMessages handles GET /api/v1/tasks/{id}/messages. Only the two parties
// on the task can read its thread.
func (h *TaskHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromCtx(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	taskID, ok := taskIDFromPath(r)
	if !ok {
		http.Error(w, `{"error":"invalid task id"}`, http.StatusBadRequest)
		return
	}
	t, err := h.Tasks.GetByID(r.Context(), taskID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			http.Error(w, `{"error":"task not found"}`, http.StatusNotFound)
			return
		}
		h.Logger.Error("get task", "task_id", taskID, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if t.RequesterID != userID && (t.WorkerID == nil || *t.WorkerID != userID) {
		http.Error(w, `{"error":"task is not yours"}`, http.StatusForbidden)
		return
	}
	msgs, err := h.Messages.ListByTask(r.Context(), taskID)
	if err != nil {
		h.Logger.Error("list task messages", "task_id", taskID, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

// ListAvailable handles GET /api/v1/tasks/available.
func (h *TaskHandler) ListAvailable(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.Tasks.ListAvailable(r.Context(), 50, 0)
	if err != nil {
		h.Logger.Error("list available tasks", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

// ListMine handles GET /api/v1/tasks/mine (tasks the caller posted).
func (h *TaskHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromCtx(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	tasks, err := h.Tasks.ListByRequester(r.Context(), userID)
	if err != nil {
		h.Logger.Error("list tasks by requester", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

// ListAssigned handles GET /api/v1/tasks/assigned (tasks assigned to the caller).
func (h *TaskHandler) ListAssigned(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromCtx(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	tasks, err := h.Tasks.ListByWorker(r.Context(), userID)
	if err != nil {
		h.Logger.Error("list tasks by worker", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

// Claim handles PATCH /api/v1/tasks/{id}/accept.
func (h *TaskHandler) Claim(w http.ResponseWriter, r *http.Request) {
	h.lifecycleOp(w, r, h.Lifecycle.Claim)
}

// Start handles POST /api/v1/tasks/{id}/start.
func (h *TaskHandler) Start(w http.ResponseWriter, r *http.Request) {
	h.lifecycleOp(w, r, h.Lifecycle.Start)
}

// Complete handles POST /api/v1/tasks/{id}/complete.
func (h *TaskHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.lifecycleOp(w, r, h.Lifecycle.Complete)
}

// Unclaim handles POST /api/v1/tasks/{id}/cancel-assignment.
func (h *TaskHandler) Unclaim(w http.ResponseWriter, r *http.Request) {
	h.lifecycleOp(w, r, h.Lifecycle.Unclaim)
}

type rateRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

// Rate handles POST /api/v1/tasks/{id}/rate.
func (h *TaskHandler) Rate(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromCtx(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	taskID, ok := taskIDFromPath(r)
	if !ok {
		http.Error(w, `{"error":"invalid task id"}`, http.StatusBadRequest)
		return
	}
	var req rateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	result, err := h.Lifecycle.Rate(r.Context(), taskID, userID, req.Rating, req.Comment)
	if err != nil {
		h.writeLifecycleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// lifecycleOp runs one of the (taskID, callerID) orchestrator operations and
// writes the task or the mapped error.
func (h *TaskHandler) lifecycleOp(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, taskID, callerID uuid.UUID) (*models.Task, error)) {
	userID, ok := middleware.UserIDFromCtx(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	taskID, ok := taskIDFromPath(r)
	if !ok {
		http.Error(w, `{"error":"invalid task id"}`, http.StatusBadRequest)
		return
	}
	t, err := op(r.Context(), taskID, userID)
	if err != nil {
		h.writeLifecycleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *TaskHandler) writeLifecycleError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusForError(err)
	if status == http.StatusInternalServerError {
		h.Logger.Error("lifecycle operation failed", "path", r.URL.Path, "error", err)
		http.Error(w, `{"error":"internal error"}`, status)
		return
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// statusForError maps the engine's failure conditions onto HTTP statuses.
// Anything outside the taxonomy is an opaque 500.
func statusForError(err error) int {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrAlreadyAssigned):
		return http.StatusConflict
	case errors.Is(err, services.ErrAccessDenied):
		return http.StatusForbidden
	case errors.Is(err, services.ErrInvalidTransition),
		errors.Is(err, services.ErrInsufficientFunds),
		errors.Is(err, services.ErrInvalidAmount),
		errors.Is(err, services.ErrInvalidRating):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func taskIDFromPath(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
