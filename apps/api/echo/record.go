package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/academic"
	"github.com/trezcool/shule/core/record"
	"github.com/trezcool/shule/core/user"
)

type recordAPI struct {
	svc         record.Service
	academicSvc academic.Service
}

func registerRecordAPI(g *echo.Group, authed []echo.MiddlewareFunc, opts *Options) {
	api := recordAPI{svc: opts.RecordSvc, academicSvc: opts.AcademicSvc}

	g.GET("/dashboard", api.dashboard, withMiddleware(authed, adminMiddleware())...)
	g.GET("/users/:id/transcript", api.transcript,
		withMiddleware(authed, ctxUserOrAdminMiddleware(opts.UserSvc, user.RoleLecturer))...)
	g.GET("/classes/:id/report", api.classReport,
		withMiddleware(authed, roleMiddleware(user.RoleAdmin, user.RoleLecturer))...)
}

func (api *recordAPI) dashboard(ctx echo.Context) error {
	dash, err := api.svc.Dashboard(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "building dashboard")
	}
	return ctx.JSON(http.StatusOK, dash)
}

func (api *recordAPI) transcript(ctx echo.Context) error {
	student, err := ctxObjectUser(ctx)
	if err != nil {
		return err
	}
	t, err := api.svc.Transcript(ctx.Request().Context(), student.ID)
	if err != nil {
		return errors.Wrap(err, "building transcript")
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *recordAPI) classReport(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	class, err := api.academicSvc.GetClass(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding class")
	}
	if !canManageClass(usr, class) {
		return errHTTPForbidden
	}

	report, err := api.svc.ClassReport(ctx.Request().Context(), class.ID)
	if err != nil {
		return errors.Wrap(err, "building class report")
	}
	return ctx.JSON(http.StatusOK, report)
}
