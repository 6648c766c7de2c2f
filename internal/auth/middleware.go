package auth

import (
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"

	apperrors "taskservice/internal/errors"
	"taskservice/internal/model"
)

const (
	claimsContextKey   = "token_claims"
	identityContextKey = "identity"
)

// Middleware gates a route on a valid bearer token. echo-jwt extracts the
// "Authorization: bearer <token>" header and hands it to the token service;
// the resolver then produces the identity stored on the context. Every
// failure is reported as ErrUnauthenticated.
func Middleware(tokens *JWTService, resolver *IdentityResolver) echo.MiddlewareFunc {
	verify := echojwt.WithConfig(echojwt.Config{
		ContextKey: claimsContextKey,
		ParseTokenFunc: func(c echo.Context, auth string) (interface{}, error) {
			return tokens.Verify(auth)
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return apperrors.ErrUnauthenticated
		},
	})

	resolve := func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, _ := c.Get(claimsContextKey).(*Claims)
			identity, err := resolver.Resolve(c.Request().Context(), claims)
			if err != nil {
				return err
			}
			c.Set(identityContextKey, identity)
			return next(c)
		}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return verify(resolve(next))
	}
}

// IdentityFromContext returns the identity set by Middleware.
func IdentityFromContext(c echo.Context) (*model.Identity, bool) {
	identity, ok := c.Get(identityContextKey).(*model.Identity)
	return identity, ok && identity != nil
}

// SetIdentity stores identity on the context. Exposed for handler tests.
func SetIdentity(c echo.Context, identity *model.Identity) {
	c.Set(identityContextKey, identity)
}
