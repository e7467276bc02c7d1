package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

type analyticsApi struct {
	deps *ServerDeps
}

func registerAnalyticsAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps *ServerDeps) {
	api := analyticsApi{deps: deps}

	ag := g.Group("/analytics", jwt)
	ag.GET("/dashboard", api.dashboard)
	ag.GET("/student/:id", api.student, adminMiddleware())
}

// dashboard dispatches on the caller's role: admins get the institution-wide
// overview, students their own landing view.
func (api *analyticsApi) dashboard(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	if claims.IsAdmin {
		dash, err := api.deps.AnalyticsSvc.AdminDashboard(ctx.Request().Context())
		if err != nil {
			return err
		}
		return ctx.JSON(http.StatusOK, dash)
	}

	dash, err := api.deps.AnalyticsSvc.StudentDashboard(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, dash)
}

func (api *analyticsApi) student(ctx echo.Context) error {
	report, err := api.deps.AnalyticsSvc.StudentAnalytics(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, report)
}
