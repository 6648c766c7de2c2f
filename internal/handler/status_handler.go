package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"taskservice/internal/service"
)

// StatusHandler exposes backing-service diagnostics.
type StatusHandler struct {
	status service.StatusService
}

// NewStatusHandler creates a new status handler.
func NewStatusHandler(status service.StatusService) *StatusHandler {
	return &StatusHandler{status: status}
}

// Status godoc
// @Summary Backing service diagnostics
// @Tags status
// @Produce json
// @Success 200 {object} service.StatusReport
// @Router /v1/status [get]
func (h *StatusHandler) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, h.status.Report(c.Request().Context()))
}
