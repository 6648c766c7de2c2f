package handler

import (
	"github.com/labstack/echo/v4"

	"taskservice/internal/logging"
	"taskservice/internal/model"
	"taskservice/internal/service"
)

var _ TaskAPI = (*TaskHandlerV2)(nil)

// TaskHandlerV2 serves the v2 task API. Create, read, list, delete and
// authorization are the v1 handlers; only Update differs, accepting the
// in-progress status with no ordering between statuses.
type TaskHandlerV2 struct {
	*TaskHandler
}

// NewTaskHandlerV2 creates a v2 handler on top of a v1 handler.
func NewTaskHandlerV2(tasks service.TaskService, log logging.Logger) *TaskHandlerV2 {
	return &TaskHandlerV2{TaskHandler: NewTaskHandler(tasks, log.With("api", "v2"))}
}

// Update godoc
// @Summary Update a task (v2)
// @Description Like v1 but status may be new, in-progress or completed in any order.
// @Tags task-v2
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
// @Router /v2/task/{id} [put]
func (h *TaskHandlerV2) Update(c echo.Context) error {
	return h.update(c, model.V2Statuses)
}
