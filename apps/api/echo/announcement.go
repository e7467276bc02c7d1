package echoapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/edusense/core/announcement"
)

type announcementApi struct {
	deps *ServerDeps
}

func registerAnnouncementAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps *ServerDeps) {
	api := announcementApi{deps: deps}

	ag := g.Group("/announcements", jwt)
	ag.GET("", api.query)
	ag.POST("", api.create, adminMiddleware())
	ag.DELETE("/:id", api.destroy, adminMiddleware())

	ng := g.Group("/notes", jwt)
	ng.GET("", api.queryNotes)
	ng.POST("", api.createNote, adminMiddleware())
	ng.POST("/:id/download", api.downloadNote)
	ng.DELETE("/:id", api.destroyNote, adminMiddleware())
}

// query lists active announcements. Students see campus-wide ones plus those
// of their enrolled subjects; admins see everything.
func (api *announcementApi) query(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var filter announcement.Filter
	if raw := ctx.QueryParam("limit"); raw != "" {
		if filter.Limit, err = strconv.Atoi(raw); err != nil {
			filter.Limit = 0
		}
	}
	if !claims.IsAdmin {
		usr, err := getContextUser(ctx, api.deps.UserSvc)
		if err != nil {
			return errors.Wrap(err, "getting context user")
		}
		filter.SubjectIDs = usr.Subjects
	}

	announcements, err := api.deps.AnnouncementSvc.QueryActive(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying announcements")
	}
	return ctx.JSON(http.StatusOK, announcements)
}

func (api *announcementApi) create(ctx echo.Context) error {
	var data announcement.NewAnnouncement
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAnnouncement")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	a, err := api.deps.AnnouncementSvc.Create(ctx.Request().Context(), data, claims.Subject)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, a)
}

func (api *announcementApi) destroy(ctx echo.Context) error {
	if err := api.deps.AnnouncementSvc.Deactivate(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *announcementApi) queryNotes(ctx echo.Context) error {
	notes, err := api.deps.AnnouncementSvc.QueryActiveNotes(ctx.Request().Context(), ctx.QueryParam("subject_id"))
	if err != nil {
		return errors.Wrap(err, "querying notes")
	}
	return ctx.JSON(http.StatusOK, notes)
}

func (api *announcementApi) createNote(ctx echo.Context) error {
	var data announcement.NewNote
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewNote")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	n, err := api.deps.AnnouncementSvc.CreateNote(ctx.Request().Context(), data, claims.Subject)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, n)
}

func (api *announcementApi) downloadNote(ctx echo.Context) error {
	n, err := api.deps.AnnouncementSvc.RecordNoteDownload(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, n)
}

func (api *announcementApi) destroyNote(ctx echo.Context) error {
	if err := api.deps.AnnouncementSvc.DeactivateNote(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}
