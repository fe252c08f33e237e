package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core/access"
	"github.com/trezcool/mahudhurio/core/roster"
)

type rosterApi struct {
	svc      *roster.Service
	validate *validator.Validate
}

func registerRosterAPI(
	g *echo.Group,
	jwt, ident echo.MiddlewareFunc,
	svc *roster.Service,
	validate *validator.Validate,
) {
	api := rosterApi{svc: svc, validate: validate}

	cg := g.Group("/classes", jwt, ident)
	cg.GET("", api.queryClasses, allow(canViewClass))
	cg.POST("", api.createClass, allow(canManageRoster))
	cg.GET("/:id", api.retrieveClass, allow(canViewClass))
	cg.PUT("/:id", api.updateClass, allow(canManageRoster))
	cg.GET("/:id/students", api.classStudents, allow(canViewClass))

	sg := g.Group("/students", jwt, ident)
	sg.GET("", api.queryStudents)
	sg.POST("", api.createStudent, allow(canManageRoster))
	sg.GET("/:id", api.retrieveStudent, allowStudent())
	sg.PUT("/:id", api.updateStudent, allow(canManageRoster))
	sg.DELETE("/:id", api.deactivateStudent, allow(canManageRoster))
	sg.POST("/:id/transfer", api.transferStudent, allow(canManageRoster))

	stg := g.Group("/settings", jwt, ident)
	stg.GET("", api.retrieveSettings, allow(canViewSchool))
	stg.PUT("", api.updateSettings, allow(canManageSettings))
}

// Classes

func (api *rosterApi) queryClasses(ctx echo.Context) error {
	filter := new(roster.ClassFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []roster.Class{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	classes, err := api.svc.QueryClasses(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying classes")
	}
	return ctx.JSON(http.StatusOK, classes)
}

func (api *rosterApi) createClass(ctx echo.Context) error {
	var data roster.NewClass
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewClass")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	class, err := api.svc.CreateClass(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating class")
	}
	return ctx.JSON(http.StatusCreated, class)
}

func (api *rosterApi) retrieveClass(ctx echo.Context) error {
	class, err := api.svc.GetClass(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding class")
	}
	return ctx.JSON(http.StatusOK, class)
}

func (api *rosterApi) updateClass(ctx echo.Context) error {
	var data roster.UpdateClass
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateClass")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	class, err := api.svc.UpdateClass(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating class")
	}
	return ctx.JSON(http.StatusOK, class)
}

func (api *rosterApi) classStudents(ctx echo.Context) error {
	class, err := api.svc.GetClass(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding class")
	}
	students, err := api.svc.ActiveStudents(ctx.Request().Context(), class.ID)
	if err != nil {
		return errors.Wrap(err, "listing class students")
	}
	return ctx.JSON(http.StatusOK, students)
}

// Students

func (api *rosterApi) queryStudents(ctx echo.Context) error {
	id, err := getContextIdentity(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context identity")
	}

	filter := new(roster.StudentFilter)
	if err = ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []roster.Student{})
	}
	filter.Clean()
	if id.Role == access.RoleParent {
		filter.IDs = id.Children()
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	students, err := api.svc.QueryStudents(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *rosterApi) createStudent(ctx echo.Context) error {
	var data roster.NewStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStudent")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	student, err := api.svc.CreateStudent(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating student")
	}
	return ctx.JSON(http.StatusCreated, student)
}

func (api *rosterApi) retrieveStudent(ctx echo.Context) error {
	student, err := api.svc.GetStudent(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding student")
	}
	return ctx.JSON(http.StatusOK, student)
}

func (api *rosterApi) updateStudent(ctx echo.Context) error {
	var data roster.UpdateStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateStudent")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	student, err := api.svc.UpdateStudent(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating student")
	}
	return ctx.JSON(http.StatusOK, student)
}

func (api *rosterApi) deactivateStudent(ctx echo.Context) error {
	if _, err := api.svc.Deactivate(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deactivating student")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *rosterApi) transferStudent(ctx echo.Context) error {
	var data roster.TransferStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to TransferStudent")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	student, err := api.svc.Transfer(ctx.Request().Context(), ctx.Param("id"), data.ClassID)
	if err != nil {
		return errors.Wrap(err, "transferring student")
	}
	return ctx.JSON(http.StatusOK, student)
}

// Settings

func (api *rosterApi) retrieveSettings(ctx echo.Context) error {
	settings, err := api.svc.GetSettings(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "reading settings")
	}
	return ctx.JSON(http.StatusOK, settings)
}

func (api *rosterApi) updateSettings(ctx echo.Context) error {
	var data roster.Settings
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Settings")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	settings, err := api.svc.UpdateSettings(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "updating settings")
	}
	return ctx.JSON(http.StatusOK, settings)
}
