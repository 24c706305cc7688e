package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// requireKind only lets principals of the given kinds through.
func requireKind(kinds ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			for _, kind := range kinds {
				if claims.Kind == kind {
					return next(ctx)
				}
			}
			return errHttpForbidden
		}
	}
}

// requirePermission only lets club members holding the named permission
// through.
func requirePermission(perm string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if claims.Kind == KindMember && claims.HasPermission(perm) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}
