package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/academic"
	"github.com/trezcool/shule/core/user"
)

type academicAPI struct {
	svc        academic.Service
	usrSvc     user.Service
	validate   *validator.Validate
	translator ut.Translator
}

// withMiddleware returns a fresh slice so route-level middlewares never share a backing array.
func withMiddleware(base []echo.MiddlewareFunc, extra ...echo.MiddlewareFunc) []echo.MiddlewareFunc {
	m := make([]echo.MiddlewareFunc, 0, len(base)+len(extra))
	m = append(m, base...)
	return append(m, extra...)
}

// Routes are registered one by one: overlapping echo groups would shadow each other's handlers.
func registerAcademicAPI(g *echo.Group, authed []echo.MiddlewareFunc, opts *Options) {
	api := academicAPI{
		svc:        opts.AcademicSvc,
		usrSvc:     opts.UserSvc,
		validate:   opts.Validate,
		translator: opts.Translator,
	}
	admin := withMiddleware(authed, adminMiddleware())

	g.GET("/courses", api.queryCourses, authed...)
	g.POST("/courses", api.createCourse, admin...)
	g.GET("/courses/:id", api.retrieveCourse, authed...)
	g.PUT("/courses/:id", api.updateCourse, admin...)
	g.DELETE("/courses/:id", api.destroyCourse, admin...)

	g.GET("/semesters", api.querySemesters, authed...)
	g.POST("/semesters", api.createSemester, admin...)
	g.GET("/semesters/:id", api.retrieveSemester, authed...)

	g.GET("/classes", api.queryClasses, authed...)
	g.POST("/classes", api.createClass, admin...)
	g.GET("/classes/:id", api.retrieveClass, authed...)
	g.PUT("/classes/:id", api.updateClass, admin...)
	g.DELETE("/classes/:id", api.destroyClass, admin...)
	g.PUT("/classes/:id/assignment", api.assignLecturer, admin...)

	g.GET("/users/:id/timetable", api.timetable, withMiddleware(authed, ctxUserOrAdminMiddleware(api.usrSvc))...)
}

// Courses

func (api *academicAPI) queryCourses(ctx echo.Context) error {
	filter := &academic.CourseFilter{Search: ctx.QueryParam("search")}
	courses, err := api.svc.QueryCourses(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}
	if courses == nil {
		courses = []academic.Course{}
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *academicAPI) createCourse(ctx echo.Context) error {
	var data academic.NewCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCourse")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	course, err := api.svc.CreateCourse(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating course")
	}
	return ctx.JSON(http.StatusCreated, course)
}

func (api *academicAPI) retrieveCourse(ctx echo.Context) error {
	course, err := api.svc.GetCourse(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding course")
	}
	return ctx.JSON(http.StatusOK, course)
}

func (api *academicAPI) updateCourse(ctx echo.Context) error {
	course, err := api.svc.GetCourse(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding course")
	}

	var data academic.UpdateCourse
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateCourse")
	}
	if err = data.Validate(course, api.validate); err != nil {
		return err
	}

	course, err = api.svc.UpdateCourse(ctx.Request().Context(), course, data)
	if err != nil {
		return errors.Wrap(err, "updating course")
	}
	return ctx.JSON(http.StatusOK, course)
}

func (api *academicAPI) destroyCourse(ctx echo.Context) error {
	if err := api.svc.DeleteCourse(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting course")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Semesters

func (api *academicAPI) querySemesters(ctx echo.Context) error {
	sems, err := api.svc.QuerySemesters(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying semesters")
	}
	if sems == nil {
		sems = []academic.Semester{}
	}
	return ctx.JSON(http.StatusOK, sems)
}

func (api *academicAPI) createSemester(ctx echo.Context) error {
	var data academic.NewSemester
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSemester")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	sem, err := api.svc.CreateSemester(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating semester")
	}
	return ctx.JSON(http.StatusCreated, sem)
}

func (api *academicAPI) retrieveSemester(ctx echo.Context) error {
	sem, err := api.svc.GetSemester(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding semester")
	}
	return ctx.JSON(http.StatusOK, sem)
}

// Classes

func (api *academicAPI) queryClasses(ctx echo.Context) error {
	filter := &academic.ClassFilter{
		CourseID:   ctx.QueryParam("course_id"),
		SemesterID: ctx.QueryParam("semester_id"),
		LecturerID: ctx.QueryParam("lecturer_id"),
	}
	classes, err := api.svc.QueryClasses(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying classes")
	}
	if classes == nil {
		classes = []academic.Class{}
	}
	return ctx.JSON(http.StatusOK, classes)
}

func (api *academicAPI) createClass(ctx echo.Context) error {
	var data academic.NewClass
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

func (api *academicAPI) retrieveClass(ctx echo.Context) error {
	class, err := api.svc.GetClass(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding class")
	}
	return ctx.JSON(http.StatusOK, class)
}

func (api *academicAPI) updateClass(ctx echo.Context) error {
	class, err := api.svc.GetClass(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding class")
	}

	var data academic.UpdateClass
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateClass")
	}
	if err = data.Validate(class, api.validate); err != nil {
		return err
	}

	class, err = api.svc.UpdateClass(ctx.Request().Context(), class, data)
	if err != nil {
		return errors.Wrap(err, "updating class")
	}
	return ctx.JSON(http.StatusOK, class)
}

func (api *academicAPI) destroyClass(ctx echo.Context) error {
	if err := api.svc.DeleteClass(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting class")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *academicAPI) assignLecturer(ctx echo.Context) error {
	var data academic.AssignClass
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AssignClass")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	class, err := api.svc.AssignLecturer(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "assigning lecturer")
	}
	return ctx.JSON(http.StatusOK, class)
}

func (api *academicAPI) timetable(ctx echo.Context) error {
	lecturer, err := ctxObjectUser(ctx)
	if err != nil {
		return err
	}
	if !lecturer.IsLecturer() {
		return errHTTPNotFound
	}

	entries, err := api.svc.LecturerTimetable(ctx.Request().Context(), lecturer.ID, ctx.QueryParam("semester_id"))
	if err != nil {
		return errors.Wrap(err, "building timetable")
	}
	return ctx.JSON(http.StatusOK, entries)
}
