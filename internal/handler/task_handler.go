package handler

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"

	"taskservice/internal/auth"
	"taskservice/internal/errors"
	"taskservice/internal/logging"
	"taskservice/internal/model"
	"taskservice/internal/service"
)

const taskContextKey = "task"

// TaskAPI is the set of task endpoints one API version exposes. The router
// mounts any implementation under its version prefix.
type TaskAPI interface {
	Create(c echo.Context) error
	Get(c echo.Context) error
	List(c echo.Context) error
	Update(c echo.Context) error
	Delete(c echo.Context) error
	// Authorize loads the task named by :id and rejects non-owners.
	Authorize(next echo.HandlerFunc) echo.HandlerFunc
}

var _ TaskAPI = (*TaskHandler)(nil)

// TaskHandler serves the v1 task API.
type TaskHandler struct {
	tasks service.TaskService
	log   logging.Logger
}

// NewTaskHandler creates a new v1 task handler.
func NewTaskHandler(tasks service.TaskService, log logging.Logger) *TaskHandler {
	return &TaskHandler{
		tasks: tasks,
		log:   log.With("component", "task_handler"),
	}
}

// CreateTaskRequest is the body of task creation. A status, if sent, is
// ignored.
type CreateTaskRequest struct {
	Name        string `json:"name" validate:"required" example:"n"`
	Description string `json:"description" validate:"required" example:"d"`
	DueDate     string `json:"dueDate" validate:"required" example:"2030-01-02T15:04:05Z"`
}

// UpdateTaskRequest is a partial update. Absent or empty fields are left
// unchanged.
type UpdateTaskRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	DueDate     *string `json:"dueDate,omitempty"`
	Status      *string `json:"status,omitempty" example:"completed"`
}

// CreateTaskResponse is returned after creation.
type CreateTaskResponse struct {
	ID string `json:"id"`
}

// Create godoc
// @Summary Create a task
// @Tags task
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateTaskRequest true "Task"
// @Success 200 {object} CreateTaskResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 422 {object} errors.ErrorResponse
// @Router /v1/task [post]
func (h *TaskHandler) Create(c echo.Context) error {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		return errors.ErrUnauthenticated
	}

	var req CreateTaskRequest
	if err := c.Bind(&req); err != nil {
		return bindError(err)
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	task, err := h.tasks.Create(c.Request().Context(), identity, service.CreateTaskInput{
		Name:        req.Name,
		Description: req.Description,
		DueDate:     req.DueDate,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, CreateTaskResponse{ID: task.ID.String()})
}

// Get godoc
// @Summary Get a task
// @Tags task
// @Produce json
// @Security BearerAuth
// @Param id path string true "Task ID"
// @Success 200 {object} model.PublicTask
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 422 {object} errors.ErrorResponse
// @Router /v1/task/{id} [get]
func (h *TaskHandler) Get(c echo.Context) error {
	task, err := TaskFromContext(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, task.Public())
}

// List godoc
// @Summary List the caller's tasks
// @Description The array is streamed: elements are written as they are read from the store.
// @Tags task
// @Produce json
// @Security BearerAuth
// @Success 200 {array} model.PublicTask
// @Failure 401 {object} errors.ErrorResponse
// @Router /v1/task [get]
func (h *TaskHandler) List(c echo.Context) error {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		return errors.ErrUnauthenticated
	}

	res := c.Response()
	enc := json.NewEncoder(res)
	started := false

	// The status line is deferred until the first row so that a failing
	// query can still be reported as an error response.
	begin := func() error {
		res.Header().Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		res.WriteHeader(http.StatusOK)
		_, err := res.Write([]byte("["))
		started = true
		return err
	}

	err := h.tasks.ForEachOwned(c.Request().Context(), identity, func(task *model.Task) error {
		if !started {
			if err := begin(); err != nil {
				return err
			}
		} else if _, err := res.Write([]byte(",")); err != nil {
			return err
		}
		if err := enc.Encode(task.Public()); err != nil {
			return err
		}
		res.Flush()
		return nil
	})
	if err != nil {
		if !started {
			return err
		}
		// Headers are gone; all that is left is to cut the stream short.
		h.log.Error(c.Request().Context(), "task stream aborted", "user_id", identity.ID, "error", err.Error())
		return nil
	}

	if !started {
		if err := begin(); err != nil {
			return err
		}
	}
	_, err = res.Write([]byte("]"))
	return err
}

// Update godoc
// @Summary Update a task
// @Description Only supplied fields that differ from the stored task are written. v1 accepts status new or completed and never moves a task backwards.
// @Tags task
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Task ID"
// @Param request body UpdateTaskRequest true "Fields to change"
// @Success 200 {object} model.PublicTask
// @Success 304 "No changes"
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 422 {object} errors.ErrorResponse
// @Router /v1/task/{id} [put]
func (h *TaskHandler) Update(c echo.Context) error {
	return h.update(c, model.V1Statuses)
}

// update is the version-independent update core; versions differ only in
// the status policy they pass.
func (h *TaskHandler) update(c echo.Context, policy model.StatusPolicy) error {
	task, err := TaskFromContext(c)
	if err != nil {
		return err
	}

	var req UpdateTaskRequest
	if err := c.Bind(&req); err != nil {
		return bindError(err)
	}

	updated, err := h.tasks.Update(c.Request().Context(), task, service.UpdateTaskInput{
		Name:        req.Name,
		Description: req.Description,
		DueDate:     req.DueDate,
		Status:      req.Status,
	}, policy)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, updated.Public())
}

// Delete godoc
// @Summary Delete a task
// @Tags task
// @Security BearerAuth
// @Param id path string true "Task ID"
// @Success 204 "Deleted"
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 422 {object} errors.ErrorResponse
// @Router /v1/task/{id} [delete]
func (h *TaskHandler) Delete(c echo.Context) error {
	task, err := TaskFromContext(c)
	if err != nil {
		return err
	}
	if err := h.tasks.Delete(c.Request().Context(), task); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Authorize is route middleware that loads the :id task for its owner and
// stores it on the context. It short-circuits on any failure.
func (h *TaskHandler) Authorize(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		identity, ok := auth.IdentityFromContext(c)
		if !ok {
			return errors.ErrUnauthenticated
		}
		task, err := h.tasks.LoadOwned(c.Request().Context(), c.Param("id"), identity)
		if err != nil {
			return err
		}
		c.Set(taskContextKey, task)
		return next(c)
	}
}

// TaskFromContext returns the task placed by Authorize.
func TaskFromContext(c echo.Context) (*model.Task, error) {
	task, ok := c.Get(taskContextKey).(*model.Task)
	if !ok || task == nil {
		return nil, errors.ErrNotFound
	}
	return task, nil
}
