package echoapi

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/spimentel1201/EduMF-sub001/core"
	"github.com/spimentel1201/EduMF-sub001/core/attendance"
	"github.com/spimentel1201/EduMF-sub001/core/user"
)

const errCourseID = "courseId must be a number"

type attendanceApi struct {
	*auth
	attSvc   *attendance.Service
	validate *validator.Validate
}

func registerAttendanceAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	a *auth,
	svc *attendance.Service,
	validate *validator.Validate,
) {
	api := attendanceApi{
		auth:     a,
		attSvc:   svc,
		validate: validate,
	}
	isStaff := roleMiddleware(user.RoleAdmin, user.RoleTeacher)

	// sessions
	sg := g.Group("/attendance", jwt, isStaff)
	sg.GET("", api.querySessions)
	sg.POST("", api.createSession)
	sg.GET("/:id", api.retrieveSession)
	sg.GET("/:id/details", api.sessionDetails)
	sg.POST("/:id/details", api.createDetails)

	// per-student records
	dg := g.Group("/attendance-details", jwt)
	dg.GET("", api.queryDetails)
	dg.POST("", api.createDetail, isStaff)
	dg.GET("/:id", api.retrieveDetail)
	dg.PUT("/:id", api.updateDetail, isStaff)
}

// Handlers

func (api *attendanceApi) querySessions(ctx echo.Context) error {
	var filter attendance.QueryFilter
	if val := ctx.QueryParam("courseId"); val != "" {
		courseID, err := strconv.Atoi(val)
		if err != nil {
			return core.NewValidationError(err, core.FieldError{Field: "courseId", Error: errCourseID})
		}
		filter.CourseID = courseID
	}

	atts, err := api.attSvc.QueryAttendances(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying attendances")
	}
	if atts == nil {
		atts = []attendance.Attendance{}
	}
	return respond(ctx, http.StatusOK, atts)
}

func (api *attendanceApi) createSession(ctx echo.Context) error {
	var data attendance.NewAttendance
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAttendance")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	att, err := api.attSvc.CreateAttendance(ctx.Request().Context(), data, claims.Subject)
	if err != nil {
		return errors.Wrap(err, "creating attendance")
	}
	return respond(ctx, http.StatusCreated, att)
}

func (api *attendanceApi) retrieveSession(ctx echo.Context) error {
	att, err := api.attSvc.GetAttendance(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding attendance")
	}
	return respond(ctx, http.StatusOK, att)
}

func (api *attendanceApi) sessionDetails(ctx echo.Context) error {
	c := ctx.Request().Context()
	att, err := api.attSvc.GetAttendance(c, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding attendance")
	}
	details, err := api.attSvc.QueryDetails(c, attendance.DetailFilter{
		AttendanceID: att.ID,
		Status:       attendance.Status(ctx.QueryParam("status")),
	})
	if err != nil {
		return errors.Wrap(err, "querying attendance details")
	}
	return respond(ctx, http.StatusOK, nonNilDetails(details))
}

// createDetails records many students' statuses at once: all of them or none.
func (api *attendanceApi) createDetails(ctx echo.Context) error {
	c := ctx.Request().Context()
	att, err := api.attSvc.GetAttendance(c, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding attendance")
	}

	var data attendance.NewDetails
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewDetails")
	}
	if err = data.Validate(api.validate, att.ID); err != nil {
		return err
	}

	details, err := api.attSvc.CreateDetails(c, att.ID, data.Details...)
	if err != nil {
		return errors.Wrap(err, "creating attendance details")
	}
	return respond(ctx, http.StatusCreated, details)
}

func (api *attendanceApi) queryDetails(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	filter := attendance.DetailFilter{
		Status:       attendance.Status(ctx.QueryParam("status")),
		AttendanceID: ctx.QueryParam("attendanceId"),
		StudentID:    ctx.QueryParam("studentId"),
	}
	// students only see their own records
	if claims.IsStudent {
		filter.StudentID = claims.Subject
	}

	details, err := api.attSvc.QueryDetails(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying attendance details")
	}
	return respond(ctx, http.StatusOK, nonNilDetails(details))
}

func (api *attendanceApi) createDetail(ctx echo.Context) error {
	var data attendance.NewDetail
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewDetail")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	d, err := api.attSvc.CreateDetail(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating attendance detail")
	}
	return respond(ctx, http.StatusCreated, d)
}

func (api *attendanceApi) retrieveDetail(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	d, err := api.attSvc.GetDetail(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding attendance detail")
	}
	if claims.IsStudent && d.StudentID != claims.Subject {
		return errHttpNotFound
	}
	return respond(ctx, http.StatusOK, d)
}

func (api *attendanceApi) updateDetail(ctx echo.Context) error {
	var data attendance.UpdateDetail
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateDetail")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	d, err := api.attSvc.UpdateDetail(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating attendance detail")
	}
	return respond(ctx, http.StatusOK, d)
}

func nonNilDetails(details []attendance.Detail) []attendance.Detail {
	if details == nil {
		return []attendance.Detail{}
	}
	return details
}
