package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core/access"
)

func adminMiddleware(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if claims.IsAdmin && contextHasAnyRole(ctx, roles) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

// allow lets the request through when the caller's identity passes check.
func allow(check func(access.Identity) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			id, err := getContextIdentity(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context identity")
			}
			if !check(id) {
				return errHttpForbidden
			}
			return next(ctx)
		}
	}
}

// allowStudent guards routes whose :id is a student.
// A parent asking for someone else's child gets a 404, so ids cannot be probed.
func allowStudent() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			id, err := getContextIdentity(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context identity")
			}
			if !id.CanViewStudent(ctx.Param("id")) {
				return errHttpNotFound
			}
			return next(ctx)
		}
	}
}

var (
	canMark           = access.Identity.CanMark
	canDelete         = access.Identity.CanDelete
	canManageRoster   = access.Identity.CanManageRoster
	canManageSettings = access.Identity.CanManageSettings
	canViewClass      = access.Identity.CanViewClass
	canViewSchool     = access.Identity.CanViewSchool
)
