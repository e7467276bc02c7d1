package echoapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/edusense/core"
	"github.com/trezcool/edusense/core/attendance"
)

type attendanceApi struct {
	deps *ServerDeps
}

func registerAttendanceAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps *ServerDeps) {
	api := attendanceApi{deps: deps}

	ag := g.Group("/attendance", jwt)
	ag.POST("/mark", api.mark, adminMiddleware())
	ag.PUT("/edit/:id", api.edit, adminMiddleware())
	ag.GET("/student/:id", api.studentOverview, selfOrAdminMiddleware())
	ag.GET("/subject/:id", api.roster, adminMiddleware())
	ag.GET("/report", api.report, adminMiddleware())
	ag.GET("/low-attendance", api.lowAttendance, adminMiddleware())
}

func (api *attendanceApi) mark(ctx echo.Context) error {
	var data attendance.NewBatch
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewBatch")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	events, err := api.deps.AttendanceSvc.MarkBatch(ctx.Request().Context(), data, claims.Subject)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, events)
}

func (api *attendanceApi) edit(ctx echo.Context) error {
	var data attendance.EditEvent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to EditEvent")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	ev, err := api.deps.AttendanceSvc.EditOne(ctx.Request().Context(), ctx.Param("id"), data, claims.Subject)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, ev)
}

func (api *attendanceApi) studentOverview(ctx echo.Context) error {
	overview, err := api.deps.AttendanceSvc.StudentOverview(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, overview)
}

func (api *attendanceApi) roster(ctx echo.Context) error {
	date, err := bindDateParam(ctx, "date")
	if err != nil {
		return err
	}

	events, err := api.deps.AttendanceSvc.Roster(ctx.Request().Context(), ctx.Param("id"), date)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, events)
}

func (api *attendanceApi) report(ctx echo.Context) error {
	var filter attendance.Filter
	filter.StudentID = ctx.QueryParam("student_id")
	filter.SubjectID = ctx.QueryParam("subject_id")

	var err error
	if filter.DateFrom, err = bindDateParam(ctx, "date_from"); err != nil {
		return err
	}
	if filter.DateTo, err = bindDateParam(ctx, "date_to"); err != nil {
		return err
	}

	report, err := api.deps.AttendanceSvc.Report(ctx.Request().Context(), filter)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, report)
}

func (api *attendanceApi) lowAttendance(ctx echo.Context) error {
	var threshold float64
	if raw := ctx.QueryParam("threshold"); raw != "" {
		var err error
		if threshold, err = strconv.ParseFloat(raw, 64); err != nil {
			return core.NewValidationError(nil, core.FieldError{Field: "threshold", Error: "invalid threshold"})
		}
	}

	stats, err := api.deps.AttendanceSvc.LowAttendance(ctx.Request().Context(), threshold)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, stats)
}
