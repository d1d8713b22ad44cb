package echoapi

import (
	"encoding/csv"
	"io"
	"net/http"
	"strconv"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/spimentel1201/EduMF-sub001/core"
	"github.com/spimentel1201/EduMF-sub001/core/course"
	"github.com/spimentel1201/EduMF-sub001/core/user"
)

var (
	importColumns    = []string{"dni", "name", "email", "role", "password"}
	errImportFile    = "a CSV file is required"
	errImportColumns = "expected columns: " + strings.Join(importColumns, ",")
	errUnknownCourse = "course not found"
	errImportCreate  = "user could not be created"
	errImportEnroll  = "student could not be enrolled"
)

type userApi struct {
	*auth
	courseSvc  *course.Service
	validate   *validator.Validate
	translator ut.Translator
	logger     core.Logger
}

func registerUserAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	a *auth,
	courseSvc *course.Service,
	validate *validator.Validate,
	translator ut.Translator,
	logger core.Logger,
) {
	api := userApi{
		auth:       a,
		courseSvc:  courseSvc,
		validate:   validate,
		translator: translator,
		logger:     logger,
	}

	ug := g.Group("/users", jwt)
	isAdmin := roleMiddleware(user.RoleAdmin)

	ug.POST("", api.create, isAdmin)
	ug.POST("/import", api.importCSV, isAdmin)
	ug.GET("", api.query, isAdmin)
	ug.GET("/roles", api.queryRoles, isAdmin)

	// detail endpoints
	dg := ug.Group("/:id", ctxUserOrAdminMiddleware(a))
	dg.GET("", api.retrieve)
	dg.DELETE("", api.destroy, isAdmin)
	dg.GET("/qr-code", api.qrCode, isAdmin)
}

// Handlers

func (api *userApi) create(ctx echo.Context) error {
	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	usr, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating user")
	}
	return respond(ctx, http.StatusCreated, usr)
}

// importCSV creates a User per CSV line (`dni,name,email,role,password`, optional header).
// Invalid lines are reported and skipped. Created students are enrolled into `courseId` if given,
// and enrollment failures are reported per line.
func (api *userApi) importCSV(ctx echo.Context) error {
	c := ctx.Request().Context()

	var crs *course.Course
	if val := ctx.FormValue("courseId"); val != "" {
		courseID, err := strconv.Atoi(val)
		if err != nil {
			return core.NewValidationError(nil, core.FieldError{Field: "courseId", Error: errUnknownCourse})
		}
		found, err := api.courseSvc.GetByID(c, courseID)
		if err != nil {
			if errors.Cause(err) == core.ErrNotFound {
				return core.NewValidationError(nil, core.FieldError{Field: "courseId", Error: errUnknownCourse})
			}
			return errors.Wrap(err, "finding course")
		}
		crs = &found
	}

	fh, err := ctx.FormFile("file")
	if err != nil {
		return core.NewValidationError(err, core.FieldError{Field: "file", Error: errImportFile})
	}
	file, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening uploaded file")
	}
	defer func() { _ = file.Close() }()

	report := ImportReport{Created: []user.User{}, Errors: []ImportLineError{}}

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	for line := 1; ; line++ {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			report.Errors = append(report.Errors, ImportLineError{Line: line, Errors: map[string]string{"line": err.Error()}})
			continue
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(record[0]), importColumns[0]) {
			continue // header
		}
		if len(record) != len(importColumns) {
			report.Errors = append(report.Errors, ImportLineError{Line: line, Errors: map[string]string{"line": errImportColumns}})
			continue
		}

		nu := user.NewUser{
			DNI:             record[0],
			Name:            record[1],
			Email:           record[2],
			Role:            record[3],
			Password:        record[4],
			PasswordConfirm: record[4],
		}
		usr, err := api.importUser(ctx, nu)
		if err != nil {
			msgs, ok := validationMessages(err, api.translator)
			if !ok {
				api.logger.Error("importing user", errors.Wrapf(err, "line %d", line))
				msgs = map[string]string{"line": errImportCreate}
			}
			report.Errors = append(report.Errors, ImportLineError{Line: line, DNI: nu.DNI, Errors: msgs})
			continue
		}
		report.Created = append(report.Created, usr)

		// a failed enrollment is reported on its line; the user stays created
		if crs == nil || !usr.IsStudent() {
			continue
		}
		if err = api.courseSvc.Enroll(c, crs.ID, usr.ID); err != nil {
			api.logger.Error("enrolling imported student", errors.Wrapf(err, "line %d", line))
			report.Errors = append(report.Errors, ImportLineError{Line: line, DNI: nu.DNI, Errors: map[string]string{"courseId": errImportEnroll}})
			continue
		}
		report.EnrolledIn = crs.ID
	}
	return respond(ctx, http.StatusOK, report)
}

func (api *userApi) importUser(ctx echo.Context, nu user.NewUser) (user.User, error) {
	if err := nu.Validate(api.validate); err != nil {
		return user.User{}, err
	}
	return api.svc.Create(ctx.Request().Context(), nu)
}

func (api *userApi) query(ctx echo.Context) error {
	filter := user.QueryFilter{
		Search:   ctx.QueryParam("search"),
		Role:     ctx.QueryParam("role"),
		IsActive: boolQueryParam(ctx, "isActive"),
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	users, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings...)
	if err != nil {
		return errors.Wrap(err, "querying users")
	}
	if users == nil {
		users = []user.User{}
	}
	return respond(ctx, http.StatusOK, users)
}

func (api *userApi) object(ctx echo.Context) (user.User, error) {
	usr, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return user.User{}, errors.Wrap(err, "finding user by ID")
	}
	return usr, nil
}

func (api *userApi) retrieve(ctx echo.Context) error {
	usr, err := api.object(ctx)
	if err != nil {
		return err
	}
	return respond(ctx, http.StatusOK, usr)
}

func (api *userApi) destroy(ctx echo.Context) error {
	usr, err := api.object(ctx)
	if err != nil {
		return err
	}

	// ctxUser cannot delete themselves
	ctxUsr, err := api.getContextUser(ctx)
	if err != nil {
		return err
	}
	if usr.ID == ctxUsr.ID {
		return errHttpForbidden
	}

	if err = api.svc.Delete(ctx.Request().Context(), usr.ID); err != nil {
		return errors.Wrap(err, "deleting user")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *userApi) qrCode(ctx echo.Context) error {
	usr, err := api.object(ctx)
	if err != nil {
		return err
	}
	data, err := api.svc.QRCode(usr)
	if err != nil {
		return errors.Wrap(err, "generating QR code")
	}
	return respond(ctx, http.StatusOK, QRCodeResponse{QRData: data})
}

func (api *userApi) queryRoles(ctx echo.Context) error {
	return respond(ctx, http.StatusOK, user.Roles)
}

// validationMessages returns the field messages of a validation error.
func validationMessages(err error, translator ut.Translator) (map[string]string, bool) {
	switch vErr := errors.Cause(err).(type) {
	case validator.ValidationErrors:
		return core.TranslateValidationErrors(vErr, translator), true
	case *core.ValidationError:
		msgs := make(map[string]string, len(vErr.Fields))
		for _, fErr := range vErr.Fields {
			msgs[fErr.Field] = fErr.Error
		}
		if len(msgs) == 0 {
			msgs["line"] = vErr.Error()
		}
		return msgs, true
	}
	return nil, false
}

type (
	QRCodeResponse struct {
		QRData string `json:"qrData"`
	}

	ImportLineError struct {
		Line   int               `json:"line"`
		DNI    string            `json:"dni,omitempty"`
		Errors map[string]string `json:"errors"`
	}

	ImportReport struct {
		Created    []user.User       `json:"created"`
		Errors     []ImportLineError `json:"errors"`
		EnrolledIn int               `json:"enrolledIn,omitempty"`
	}
)
