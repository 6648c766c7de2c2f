package handler

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"taskservice/internal/auth"
	"taskservice/internal/errors"
	"taskservice/internal/service"
)

// UserHandler handles registration, login and identity endpoints.
type UserHandler struct {
	authService service.AuthService
}

// NewUserHandler creates a new user handler.
func NewUserHandler(authService service.AuthService) *UserHandler {
	return &UserHandler{authService: authService}
}

// CredentialsRequest is the body of both create and login. Rules are
// enforced by the auth service so that login can tell a missing field from
// bad credentials.
type CredentialsRequest struct {
	Email    string `json:"email" example:"u@test.com"`
	Password string `json:"password" example:"pw123456789012"`
}

// CreateUserResponse is returned after registration.
type CreateUserResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// TokenResponse carries a bearer token.
type TokenResponse struct {
	Token string `json:"token"`
}

// WhoamiResponse echoes the authenticated email.
type WhoamiResponse struct {
	Email string `json:"email"`
}

// Create godoc
// @Summary Register a new user
// @Tags user
// @Accept json
// @Produce json
// @Param request body CredentialsRequest true "Registration data"
// @Success 200 {object} CreateUserResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Failure 422 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /v1/user/create [post]
func (h *UserHandler) Create(c echo.Context) error {
	var req CredentialsRequest
	if err := c.Bind(&req); err != nil {
		return bindError(err)
	}

	user, err := h.authService.Register(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, CreateUserResponse{ID: user.ID.String(), Email: user.Email})
}

// Login godoc
// @Summary Exchange credentials for a bearer token
// @Tags user
// @Accept json
// @Produce json
// @Param request body CredentialsRequest true "Login credentials"
// @Success 200 {object} TokenResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 422 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /v1/user/login [post]
func (h *UserHandler) Login(c echo.Context) error {
	var req CredentialsRequest
	if err := c.Bind(&req); err != nil {
		return bindError(err)
	}

	token, _, err := h.authService.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, TokenResponse{Token: token})
}

// Whoami godoc
// @Summary Show the authenticated user
// @Tags user
// @Produce json
// @Security BearerAuth
// @Success 200 {object} WhoamiResponse
// @Failure 401 {object} errors.ErrorResponse
// @Router /v1/user/whoami [get]
func (h *UserHandler) Whoami(c echo.Context) error {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		return errors.ErrUnauthenticated
	}
	return c.JSON(http.StatusOK, WhoamiResponse{Email: identity.Email})
}

// bindError reports a body that parsed but carries a field of the wrong
// type as a validation error; anything else is a malformed body.
func bindError(err error) error {
	var typeErr *json.UnmarshalTypeError
	if stderrors.As(err, &typeErr) {
		return errors.Validation("%s must be a %s", typeErr.Field, typeErr.Type)
	}
	return invalidBody()
}

func invalidBody() error {
	return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
		Error: "invalid request body",
		Code:  "INVALID_REQUEST",
	})
}
