package errors

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"taskservice/internal/logging"
)

// HTTPErrorHandler renders every handler error as an ErrorResponse so that
// clients always receive {"error", "code"}. 5xx causes are logged with the
// request context; their details never reach the response.
func HTTPErrorHandler(log logging.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, body := resolve(err)
		req := c.Request()
		if status >= http.StatusInternalServerError {
			log.Error(req.Context(), "request failed",
				"error", err.Error(),
				"method", req.Method,
				"uri", req.RequestURI,
				"request_id", c.Response().Header().Get(echo.HeaderXRequestID),
			)
		}

		var werr error
		if status == http.StatusNotModified || req.Method == http.MethodHead {
			werr = c.NoContent(status)
		} else {
			werr = c.JSON(status, body)
		}
		if werr != nil {
			log.Warn(req.Context(), "write error response", "error", werr.Error())
		}
	}
}

func resolve(err error) (int, ErrorResponse) {
	var echoErr *echo.HTTPError
	if errors.As(err, &echoErr) {
		switch m := echoErr.Message.(type) {
		case ErrorResponse:
			return echoErr.Code, m
		case string:
			return echoErr.Code, ErrorResponse{Error: m, Code: codeForStatus(echoErr.Code)}
		default:
			return echoErr.Code, ErrorResponse{Error: http.StatusText(echoErr.Code), Code: codeForStatus(echoErr.Code)}
		}
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode, httpErr.ToErrorResponse()
	}

	mapped := MapErrorToHTTP(err)
	return mapped.StatusCode, mapped.ToErrorResponse()
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "BAD_REQUEST"
	case http.StatusUnauthorized:
		return "UNAUTHENTICATED"
	case http.StatusForbidden:
		return "FORBIDDEN"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusMethodNotAllowed:
		return "METHOD_NOT_ALLOWED"
	case http.StatusRequestEntityTooLarge:
		return "PAYLOAD_TOO_LARGE"
	case http.StatusUnsupportedMediaType:
		return "UNSUPPORTED_MEDIA_TYPE"
	case http.StatusUnprocessableEntity:
		return "VALIDATION_ERROR"
	default:
		if status >= http.StatusInternalServerError {
			return "INTERNAL_ERROR"
		}
		return "HTTP_ERROR"
	}
}
