package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

type assistantApi struct {
	deps *ServerDeps
}

// registerAssistantAPI exposes the pre-assembled student context consumed by
// advisor tooling and AI assistants. Assembly only; no inference here.
func registerAssistantAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps *ServerDeps) {
	api := assistantApi{deps: deps}

	ag := g.Group("/ai", jwt)
	ag.GET("/student-context/:id", api.studentContext, selfOrAdminMiddleware())
}

func (api *assistantApi) studentContext(ctx echo.Context) error {
	sc, err := api.deps.AnalyticsSvc.StudentContext(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sc)
}
