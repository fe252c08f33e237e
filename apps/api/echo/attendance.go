package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/attendance"
	metricsvc "github.com/trezcool/mahudhurio/services/metrics"
)

type attendanceApi struct {
	svc     *attendance.Service
	metrics *metricsvc.Metrics
}

func registerAttendanceAPI(
	g *echo.Group,
	jwt, ident echo.MiddlewareFunc,
	svc *attendance.Service,
	metrics *metricsvc.Metrics,
) {
	api := attendanceApi{svc: svc, metrics: metrics}

	cg := g.Group("/classes/:id/attendance", jwt, ident)
	cg.POST("", api.mark, allow(canMark))
	cg.GET("", api.classDay, allow(canViewClass))

	g.GET("/students/:id/attendance", api.history, jwt, ident, allowStudent())

	rg := g.Group("/attendance", jwt, ident)
	rg.GET("/:id", api.retrieve)
	rg.DELETE("/:id", api.destroy, allow(canDelete))
}

type MarkResponse struct {
	Updated int `json:"updated"`
}

func (api *attendanceApi) mark(ctx echo.Context) error {
	id, err := getContextIdentity(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context identity")
	}

	var req attendance.MarkRequest
	if err = ctx.Bind(&req); err != nil {
		return errors.Wrap(err, "binding to MarkRequest")
	}
	req.ClassID = ctx.Param("id")
	req.MarkedBy = id.UserID

	res, err := api.svc.Mark(ctx.Request().Context(), req)
	if err != nil {
		return errors.Wrap(err, "marking attendance")
	}
	api.metrics.ObserveMark(res)
	return ctx.JSON(http.StatusOK, MarkResponse{Updated: res.Updated})
}

func (api *attendanceApi) classDay(ctx echo.Context) error {
	var date core.Date
	if err := bindDate(ctx.QueryParam("date"), &date); err != nil {
		return core.NewValidationError(nil, core.FieldError{Field: "date", Error: err.Error()})
	}

	rows, err := api.svc.ClassDay(ctx.Request().Context(), ctx.Param("id"), date)
	if err != nil {
		return errors.Wrap(err, "listing class day")
	}
	return ctx.JSON(http.StatusOK, rows)
}

func (api *attendanceApi) history(ctx echo.Context) error {
	var dr DateRange
	if err := dr.Bind(ctx); err != nil {
		return err
	}

	records, err := api.svc.History(ctx.Request().Context(), ctx.Param("id"), dr.Start, dr.End)
	if err != nil {
		return errors.Wrap(err, "listing attendance history")
	}
	return ctx.JSON(http.StatusOK, records)
}

func (api *attendanceApi) retrieve(ctx echo.Context) error {
	id, err := getContextIdentity(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context identity")
	}

	rec, err := api.svc.GetRecord(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding attendance record")
	}
	if !id.CanViewStudent(rec.StudentID) {
		return errHttpNotFound
	}
	return ctx.JSON(http.StatusOK, rec)
}

func (api *attendanceApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting attendance record")
	}
	return ctx.NoContent(http.StatusNoContent)
}
