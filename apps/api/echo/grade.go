package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/academic"
	"github.com/trezcool/shule/core/grade"
	"github.com/trezcool/shule/core/user"
)

type gradeAPI struct {
	svc         grade.Service
	academicSvc academic.Service
	validate    *validator.Validate
}

func registerGradeAPI(g *echo.Group, authed []echo.MiddlewareFunc, opts *Options) {
	api := gradeAPI{
		svc:         opts.GradeSvc,
		academicSvc: opts.AcademicSvc,
		validate:    opts.Validate,
	}
	staff := withMiddleware(authed, roleMiddleware(user.RoleAdmin, user.RoleLecturer))

	g.POST("/classes/:id/enrollments", api.enroll, withMiddleware(authed, roleMiddleware(user.RoleAdmin, user.RoleStudent))...)
	g.GET("/classes/:id/grades", api.queryClassGrades, staff...)
	g.POST("/classes/:id/lock", api.lockClass, staff...)

	g.GET("/grades/:id", api.retrieve, authed...)
	g.PUT("/grades/:id/scores", api.enterScores, staff...)
	g.POST("/grades/:id/lock", api.lock, staff...)
	g.DELETE("/grades/:id", api.unenroll, withMiddleware(authed, adminMiddleware())...)
}

// canManageClass reports whether usr may grade the students of class.
func canManageClass(usr user.User, class academic.Class) bool {
	return usr.IsAdmin() || (usr.IsLecturer() && class.LecturerID != "" && class.LecturerID == usr.ID)
}

// managedClass finds the class of classID, making sure the acting User manages it.
func (api *gradeAPI) managedClass(ctx echo.Context, classID string) (academic.Class, error) {
	usr, err := getContextUser(ctx)
	if err != nil {
		return academic.Class{}, errors.Wrap(err, "getting context user")
	}
	class, err := api.academicSvc.GetClass(ctx.Request().Context(), classID)
	if err != nil {
		return academic.Class{}, errors.Wrap(err, "finding class")
	}
	if !canManageClass(usr, class) {
		return academic.Class{}, errHTTPForbidden
	}
	return class, nil
}

// managedGrade finds the grade of the `:id` param, making sure the acting User manages its class.
func (api *gradeAPI) managedGrade(ctx echo.Context) (grade.Grade, error) {
	g, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return grade.Grade{}, errors.Wrap(err, "finding grade")
	}
	if _, err = api.managedClass(ctx, g.ClassID); err != nil {
		return grade.Grade{}, err
	}
	return g, nil
}

func (api *gradeAPI) enroll(ctx echo.Context) error {
	var data grade.Enrollment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Enrollment")
	}

	// students may only enroll themselves
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if usr.IsStudent() {
		if data.StudentID != "" && data.StudentID != usr.ID {
			return errHTTPForbidden
		}
		data.StudentID = usr.ID
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	g, err := api.svc.Enroll(ctx.Request().Context(), data.StudentID, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "enrolling student")
	}
	return ctx.JSON(http.StatusCreated, g)
}

func (api *gradeAPI) queryClassGrades(ctx echo.Context) error {
	class, err := api.managedClass(ctx, ctx.Param("id"))
	if err != nil {
		return err
	}
	grades, err := api.svc.ListByClass(ctx.Request().Context(), class.ID)
	if err != nil {
		return errors.Wrap(err, "querying grades")
	}
	if grades == nil {
		grades = []grade.Grade{}
	}
	return ctx.JSON(http.StatusOK, grades)
}

func (api *gradeAPI) lockClass(ctx echo.Context) error {
	class, err := api.managedClass(ctx, ctx.Param("id"))
	if err != nil {
		return err
	}
	cnt, err := api.svc.LockClass(ctx.Request().Context(), class.ID)
	if err != nil {
		return errors.Wrap(err, "locking class grades")
	}
	return ctx.JSON(http.StatusOK, CountResponse{Count: cnt})
}

func (api *gradeAPI) retrieve(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	g, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding grade")
	}

	// students only see their own grades
	if usr.IsStudent() {
		if g.StudentID != usr.ID {
			return errHTTPNotFound
		}
		return ctx.JSON(http.StatusOK, g)
	}
	if _, err = api.managedClass(ctx, g.ClassID); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, g)
}

func (api *gradeAPI) enterScores(ctx echo.Context) error {
	g, err := api.managedGrade(ctx)
	if err != nil {
		return err
	}

	var data grade.Scores
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Scores")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	g, err = api.svc.EnterScores(ctx.Request().Context(), g.ID, data)
	if err != nil {
		return errors.Wrap(err, "entering scores")
	}
	return ctx.JSON(http.StatusOK, g)
}

func (api *gradeAPI) lock(ctx echo.Context) error {
	g, err := api.managedGrade(ctx)
	if err != nil {
		return err
	}
	g, err = api.svc.Lock(ctx.Request().Context(), g.ID)
	if err != nil {
		return errors.Wrap(err, "locking grade")
	}
	return ctx.JSON(http.StatusOK, g)
}

func (api *gradeAPI) unenroll(ctx echo.Context) error {
	if err := api.svc.Unenroll(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "unenrolling student")
	}
	return ctx.NoContent(http.StatusNoContent)
}
