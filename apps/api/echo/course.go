package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/spimentel1201/EduMF-sub001/core/course"
	"github.com/spimentel1201/EduMF-sub001/core/user"
)

type courseApi struct {
	svc      *course.Service
	validate *validator.Validate
}

func registerCourseAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *course.Service, validate *validator.Validate) {
	api := courseApi{
		svc:      svc,
		validate: validate,
	}

	cg := g.Group("/courses", jwt)
	isAdmin := roleMiddleware(user.RoleAdmin)
	isStaff := roleMiddleware(user.RoleAdmin, user.RoleTeacher)

	cg.GET("", api.query)
	cg.POST("", api.create, isAdmin)

	dg := cg.Group("/:id")
	dg.GET("", api.retrieve)
	dg.PUT("", api.update, isAdmin)
	dg.DELETE("", api.destroy, isAdmin)

	// enrollment
	dg.GET("/students", api.students, isStaff)
	dg.POST("/students", api.enroll, isAdmin)
	dg.DELETE("/students/:studentId", api.unenroll, isAdmin)
}

// Handlers

func (api *courseApi) query(ctx echo.Context) error {
	filter := course.QueryFilter{
		Search:    ctx.QueryParam("search"),
		TeacherID: ctx.QueryParam("teacherId"),
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	courses, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings...)
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}
	if courses == nil {
		courses = []course.Course{}
	}
	return respond(ctx, http.StatusOK, courses)
}

func (api *courseApi) create(ctx echo.Context) error {
	var data course.NewCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCourse")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	crs, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating course")
	}
	return respond(ctx, http.StatusCreated, crs)
}

func (api *courseApi) retrieve(ctx echo.Context) error {
	id, err := intParam(ctx, "id")
	if err != nil {
		return err
	}
	crs, err := api.svc.GetByID(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "finding course")
	}
	return respond(ctx, http.StatusOK, crs)
}

func (api *courseApi) update(ctx echo.Context) error {
	id, err := intParam(ctx, "id")
	if err != nil {
		return err
	}
	var data course.UpdateCourse
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateCourse")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	crs, err := api.svc.Update(ctx.Request().Context(), id, data)
	if err != nil {
		return errors.Wrap(err, "updating course")
	}
	return respond(ctx, http.StatusOK, crs)
}

func (api *courseApi) destroy(ctx echo.Context) error {
	id, err := intParam(ctx, "id")
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "deleting course")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *courseApi) students(ctx echo.Context) error {
	id, err := intParam(ctx, "id")
	if err != nil {
		return err
	}
	students, err := api.svc.Students(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "querying course students")
	}
	if students == nil {
		students = []user.User{}
	}
	return respond(ctx, http.StatusOK, students)
}

func (api *courseApi) enroll(ctx echo.Context) error {
	id, err := intParam(ctx, "id")
	if err != nil {
		return err
	}
	var data course.EnrollStudents
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to EnrollStudents")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	c := ctx.Request().Context()
	if err = api.svc.Enroll(c, id, data.StudentIDs...); err != nil {
		return errors.Wrap(err, "enrolling students")
	}
	students, err := api.svc.Students(c, id)
	if err != nil {
		return errors.Wrap(err, "querying course students")
	}
	return respond(ctx, http.StatusOK, students)
}

func (api *courseApi) unenroll(ctx echo.Context) error {
	id, err := intParam(ctx, "id")
	if err != nil {
		return err
	}
	if err = api.svc.Unenroll(ctx.Request().Context(), id, ctx.Param("studentId")); err != nil {
		return errors.Wrap(err, "unenrolling student")
	}
	return ctx.NoContent(http.StatusNoContent)
}
