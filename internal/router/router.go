package router

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	echoSwagger "github.com/swaggo/echo-swagger"

	"taskservice/internal/errors"
	"taskservice/internal/handler"
	"taskservice/internal/logging"
	"taskservice/internal/validation"
)

// Handlers groups everything the router mounts.
type Handlers struct {
	User   *handler.UserHandler
	TaskV1 handler.TaskAPI
	TaskV2 handler.TaskAPI
	Status *handler.StatusHandler
	// Auth gates protected routes on a bearer token.
	Auth echo.MiddlewareFunc
}

// Register wires routes and middleware.
func Register(e *echo.Echo, log logging.Logger, h Handlers) {
	e.HideBanner = true
	e.HTTPErrorHandler = errors.HTTPErrorHandler(log)
	e.Validator = validation.NewCustomValidator()

	e.Use(middleware.RequestID())
	e.Use(requestLogger(log))
	e.Use(middleware.Recover())

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	e.GET("/swagger/*", echoSwagger.WrapHandler)

	v1 := e.Group("/v1")

	// Public routes
	v1.POST("/user/create", h.User.Create)
	v1.POST("/user/login", h.User.Login)
	v1.GET("/status", h.Status.Status)

	// Secured routes (require bearer authentication)
	v1.GET("/user/whoami", h.User.Whoami, h.Auth)

	registerTasks(v1.Group("/task", h.Auth), h.TaskV1)
	registerTasks(e.Group("/v2/task", h.Auth), h.TaskV2)
}

// registerTasks mounts one API version's task routes. Routes addressing a
// single task pass through the version's authorization gate first.
func registerTasks(g *echo.Group, api handler.TaskAPI) {
	g.POST("", api.Create)
	g.GET("", api.List)
	g.GET("/:id", api.Get, api.Authorize)
	g.PUT("/:id", api.Update, api.Authorize)
	g.DELETE("/:id", api.Delete, api.Authorize)
}

func requestLogger(log logging.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			args := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency.String(),
				"request_id", v.RequestID,
			}
			ctx := c.Request().Context()
			if v.Error != nil {
				args = append(args, "error", v.Error.Error())
				if v.Status >= http.StatusInternalServerError {
					log.Error(ctx, "request", args...)
					return nil
				}
			}
			log.Info(ctx, "request", args...)
			return nil
		},
	})
}
