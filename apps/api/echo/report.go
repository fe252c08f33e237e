package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core/attendance"
)

type reportApi struct {
	svc *attendance.Service
}

func registerReportAPI(g *echo.Group, jwt, ident echo.MiddlewareFunc, svc *attendance.Service) {
	api := reportApi{svc: svc}

	g.GET("/students/:id/summary", api.student, jwt, ident, allowStudent())
	g.GET("/classes/:id/summary", api.class, jwt, ident, allow(canViewClass))
	g.GET("/reports/school", api.school, jwt, ident, allow(canViewSchool))
}

func (api *reportApi) student(ctx echo.Context) error {
	var dr DateRange
	if err := dr.Bind(ctx); err != nil {
		return err
	}

	sum, err := api.svc.SummarizeStudent(ctx.Request().Context(), ctx.Param("id"), dr.Start, dr.End)
	if err != nil {
		return errors.Wrap(err, "summarizing student attendance")
	}
	return ctx.JSON(http.StatusOK, sum)
}

func (api *reportApi) class(ctx echo.Context) error {
	var dr DateRange
	if err := dr.Bind(ctx); err != nil {
		return err
	}

	sum, err := api.svc.SummarizeClass(ctx.Request().Context(), ctx.Param("id"), dr.Start, dr.End)
	if err != nil {
		return errors.Wrap(err, "summarizing class attendance")
	}
	return ctx.JSON(http.StatusOK, sum)
}

func (api *reportApi) school(ctx echo.Context) error {
	var dr DateRange
	if err := dr.Bind(ctx); err != nil {
		return err
	}

	sum, err := api.svc.SummarizeSchool(ctx.Request().Context(), dr.Start, dr.End)
	if err != nil {
		return errors.Wrap(err, "summarizing school attendance")
	}
	return ctx.JSON(http.StatusOK, sum)
}
