package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/KarpovAlexandrGo/taskboard/internal/entity"
	"github.com/KarpovAlexandrGo/taskboard/internal/lifecycle"
	"github.com/KarpovAlexandrGo/taskboard/internal/usecase"
	"github.com/KarpovAlexandrGo/taskboard/pkg/logger"
)

// TaskHandler serves the task board API.
type TaskHandler struct {
	taskUseCase usecase.TaskUseCase
	now         func() time.Time
}

func NewTaskHandler(taskUseCase usecase.TaskUseCase) *TaskHandler {
	return &TaskHandler{
		taskUseCase: taskUseCase,
		now:         time.Now,
	}
}

// RegisterRoutes mounts the task routes. Every route requires an owner, see
// OwnerMiddleware.
func (h *TaskHandler) RegisterRoutes(r chi.Router) {
	r.Route("/v1/tasks", func(r chi.Router) {
		r.Post("/", h.CreateTask)
		r.Get("/", h.ListTasks)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetTask)
			r.Put("/", h.UpdateTask)
			r.Delete("/", h.DeleteTask)
			r.Patch("/completion", h.SetCompletion)
		})
	})
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// taskView is a task as shown to the client, with the display-only overdue flag.
type taskView struct {
	entity.Task
	Overdue bool `json:"overdue"`
}

type boardResponse struct {
	Active    []taskView `json:"active"`
	Completed []taskView `json:"completed"`
	Stale     bool       `json:"stale"`
	Error     string     `json:"error,omitempty"`
}

type completionRequest struct {
	Completed *bool `json:"completed"`
}

// CreateTask creates a task for the requesting owner.
// @Summary      Create task
// @Description  Validates the draft, stores the task and schedules its reminder
// @Tags         tasks
// @Accept       json
// @Produce      json
// @Param        X-Owner-ID header   string       false "Owner id when token auth is disabled"
// @Param        task       body     entity.Draft true  "Task fields"
// @Success      201        {object} taskView
// @Failure      400        {object} errorResponse "Malformed body"
// @Failure      401        {object} errorResponse "Missing owner"
// @Failure      422        {object} errorResponse "Validation failed"
// @Failure      502        {object} errorResponse "Store write failed"
// @Router       /v1/tasks [post]
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var draft entity.Draft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		logger.Log.WithError(err).Warn("Failed to decode request body")
		respondWithError(w, http.StatusBadRequest, "Invalid request body", "bad_request")
		return
	}

	task, err := h.taskUseCase.Create(r.Context(), OwnerFromContext(r.Context()), draft)
	if err != nil {
		h.respondWithUseCaseError(w, err, logrus.Fields{"method": "CreateTask"})
		return
	}

	respondWithJSON(w, http.StatusCreated, h.view(task))
}

// GetTask returns a single task.
// @Summary      Get task
// @Description  Returns the task with its overdue flag
// @Tags         tasks
// @Produce      json
// @Param        id   path     string true "Task ID"
// @Success      200  {object} taskView
// @Failure      400  {object} errorResponse "Invalid task ID"
// @Failure      404  {object} errorResponse "Task not found"
// @Router       /v1/tasks/{id} [get]
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(w, r)
	if !ok {
		return
	}

	task, err := h.taskUseCase.Get(r.Context(), OwnerFromContext(r.Context()), id)
	if err != nil {
		h.respondWithUseCaseError(w, err, logrus.Fields{"method": "GetTask", "task_id": id})
		return
	}

	respondWithJSON(w, http.StatusOK, h.view(task))
}

// ListTasks returns the owner's board.
// @Summary      Task board
// @Description  Active tasks ranked by urgency then due date, followed by completed tasks. When the store cannot be read the last known board is returned with stale=true.
// @Tags         tasks
// @Produce      json
// @Success      200  {object} boardResponse
// @Failure      500  {object} errorResponse "Store unavailable and no cached board"
// @Router       /v1/tasks [get]
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	owner := OwnerFromContext(r.Context())

	board, err := h.taskUseCase.Board(r.Context(), owner)
	if err != nil && !board.Stale {
		h.respondWithUseCaseError(w, err, logrus.Fields{"method": "ListTasks", "owner_id": owner})
		return
	}

	resp := boardResponse{
		Active:    h.views(board.Active),
		Completed: h.views(board.Completed),
		Stale:     board.Stale,
	}
	if err != nil {
		logger.Log.WithError(err).WithField("owner_id", owner).Warn("Serving stale board")
		resp.Error = err.Error()
	}

	respondWithJSON(w, http.StatusOK, resp)
}

// UpdateTask replaces the editable fields of a task.
// @Summary      Edit task
// @Description  Replaces title, description, urgency, due date and time range. Identity and completion are kept.
// @Tags         tasks
// @Accept       json
// @Produce      json
// @Param        id   path     string       true "Task ID"
// @Param        task body     entity.Draft true "Task fields"
// @Success      200  {object} taskView
// @Failure      400  {object} errorResponse "Invalid task ID or body"
// @Failure      404  {object} errorResponse "Task not found"
// @Failure      422  {object} errorResponse "Validation failed"
// @Failure      502  {object} errorResponse "Store write failed"
// @Router       /v1/tasks/{id} [put]
func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(w, r)
	if !ok {
		return
	}

	var draft entity.Draft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		logger.Log.WithError(err).Warn("Failed to decode request body")
		respondWithError(w, http.StatusBadRequest, "Invalid request body", "bad_request")
		return
	}

	task, err := h.taskUseCase.Update(r.Context(), OwnerFromContext(r.Context()), id, draft)
	if err != nil {
		h.respondWithUseCaseError(w, err, logrus.Fields{"method": "UpdateTask", "task_id": id})
		return
	}

	respondWithJSON(w, http.StatusOK, h.view(task))
}

// SetCompletion marks a task completed or not completed.
// @Summary      Toggle completion
// @Description  Completing a task cancels its reminder. Un-completing does not reschedule it.
// @Tags         tasks
// @Accept       json
// @Produce      json
// @Param        id   path     string            true "Task ID"
// @Param        body body     completionRequest true "Completion state"
// @Success      200  {object} taskView
// @Failure      400  {object} errorResponse "Invalid task ID or body"
// @Failure      404  {object} errorResponse "Task not found"
// @Failure      502  {object} errorResponse "Store write failed"
// @Router       /v1/tasks/{id}/completion [patch]
func (h *TaskHandler) SetCompletion(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(w, r)
	if !ok {
		return
	}

	var req completionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Completed == nil {
		respondWithError(w, http.StatusBadRequest, `Body must be {"completed": true|false}`, "bad_request")
		return
	}

	task, err := h.taskUseCase.SetCompletion(r.Context(), OwnerFromContext(r.Context()), id, *req.Completed)
	if err != nil {
		h.respondWithUseCaseError(w, err, logrus.Fields{"method": "SetCompletion", "task_id": id})
		return
	}

	respondWithJSON(w, http.StatusOK, h.view(task))
}

// DeleteTask removes a task.
// @Summary      Delete task
// @Tags         tasks
// @Param        id   path     string true "Task ID"
// @Success      204
// @Failure      400  {object} errorResponse "Invalid task ID"
// @Failure      404  {object} errorResponse "Task not found"
// @Failure      502  {object} errorResponse "Store write failed"
// @Router       /v1/tasks/{id} [delete]
func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(w, r)
	if !ok {
		return
	}

	if err := h.taskUseCase.Delete(r.Context(), OwnerFromContext(r.Context()), id); err != nil {
		h.respondWithUseCaseError(w, err, logrus.Fields{"method": "DeleteTask", "task_id": id})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func taskID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		logger.Log.WithField("task_id", id).WithError(err).Warn("Invalid task ID format")
		respondWithError(w, http.StatusBadRequest, "Invalid task ID format", "bad_request")
		return "", false
	}
	return id, true
}

func (h *TaskHandler) view(task entity.Task) taskView {
	return taskView{Task: task, Overdue: lifecycle.IsOverdue(task, h.now())}
}

func (h *TaskHandler) views(tasks []entity.Task) []taskView {
	views := make([]taskView, 0, len(tasks))
	for _, task := range tasks {
		views = append(views, h.view(task))
	}
	return views
}

func (h *TaskHandler) respondWithUseCaseError(w http.ResponseWriter, err error, fields logrus.Fields) {
	log := logger.Log.WithFields(fields).WithError(err)

	var writeErr *entity.WriteError
	switch {
	case entity.IsValidation(err):
		log.Warn("Task validation failed")
		respondWithError(w, http.StatusUnprocessableEntity, err.Error(), entity.ValidationCode(err))
	case errors.Is(err, usecase.ErrTaskNotFound):
		log.Warn("Task not found")
		respondWithError(w, http.StatusNotFound, "Task not found", "not_found")
	case errors.As(err, &writeErr):
		log.Error("Task store write failed")
		respondWithError(w, http.StatusBadGateway, writeErr.Error(), "write_failed")
	default:
		log.Error("Request failed")
		respondWithError(w, http.StatusInternalServerError, "Internal server error", "internal")
	}
}

func respondWithError(w http.ResponseWriter, status int, message, code string) {
	respondWithJSON(w, status, errorResponse{Error: message, Code: code})
}

func respondWithJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			logger.Log.WithError(err).Error("Failed to encode response")
		}
	}
}
