package attendance

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/spimentel1201/EduMF-sub001/core"
	"github.com/spimentel1201/EduMF-sub001/core/course"
	"github.com/spimentel1201/EduMF-sub001/core/user"
)

var (
	errUnknownAttendance = "attendance session not found"
	errUnknownStudent    = "student not found"
	errNotEnrolled       = "student is not enrolled in this course"
	errUnknownCourse     = "course not found"
	errDuplicateStudent  = errors.New("student recorded twice in the same session")

	// DetailUniqueConstraint names the (attendance_id, student_id) unique key.
	DetailUniqueConstraint = "attendance_detail_attendance_student_key"

	absenceTemplate = "absence"

	nowFunc = time.Now // mockable
)

type (
	Repository interface {
		CreateAttendance(ctx context.Context, att Attendance) (Attendance, error)
		GetAttendance(ctx context.Context, id string) (Attendance, error)
		QueryAttendances(ctx context.Context, filter QueryFilter) ([]Attendance, error)

		// CreateDetails inserts all details or none. A (AttendanceID, StudentID) pair that already
		// exists (or repeats within details) fails with a core.ConstraintError.
		CreateDetails(ctx context.Context, details ...Detail) ([]Detail, error)
		GetDetail(ctx context.Context, id string) (Detail, error)
		// UpdateDetail saves Status & Notes, keeping UpdatedAt strictly increasing.
		UpdateDetail(ctx context.Context, d Detail) (Detail, error)
		// QueryDetails returns the matching details in storage order.
		QueryDetails(ctx context.Context, filter DetailFilter) ([]Detail, error)
	}

	// UserGetter finds users by ID.
	UserGetter interface {
		GetByID(ctx context.Context, id string) (user.User, error)
	}

	// CourseGetter finds courses & their enrollments.
	CourseGetter interface {
		GetByID(ctx context.Context, id int) (course.Course, error)
		IsEnrolled(ctx context.Context, id int, studentID string) (bool, error)
	}

	Service struct {
		repo    Repository
		users   UserGetter
		courses CourseGetter
		mailSvc core.EmailService
		logger  core.Logger
	}

	absenceData struct {
		AttendanceID string
		StudentName  string
		CourseName   string
		Date         string
		Status       Status
		Notes        string
	}
)

func NewService(
	repo Repository,
	users UserGetter,
	courses CourseGetter,
	mailSvc core.EmailService,
	logger core.Logger,
) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(users, "users"),
		vala.IsNotNil(courses, "courses"),
		vala.IsNotNil(mailSvc, "mailSvc"),
		vala.IsNotNil(logger, "logger"),
	).CheckAndPanic()

	return &Service{repo: repo, users: users, courses: courses, mailSvc: mailSvc, logger: logger}
}

// CreateAttendance opens a new session for a Course. na must have been validated beforehand.
func (svc *Service) CreateAttendance(ctx context.Context, na NewAttendance, takenBy string) (Attendance, error) {
	na.Clean()
	date, err := time.Parse(dateLayout, na.Date)
	if err != nil {
		return Attendance{}, core.NewValidationError(err, core.FieldError{Field: "date", Error: err.Error()})
	}
	if _, err = svc.courses.GetByID(ctx, na.CourseID); err != nil {
		if errors.Cause(err) == core.ErrNotFound {
			return Attendance{}, core.NewValidationError(nil, core.FieldError{Field: "courseId", Error: errUnknownCourse})
		}
		return Attendance{}, errors.Wrap(err, "finding course")
	}

	now := nowFunc().UTC().Truncate(time.Microsecond)
	att := Attendance{
		ID:        uuid.New().String(),
		CourseID:  na.CourseID,
		Date:      date.UTC(),
		Topic:     na.Topic,
		TakenBy:   takenBy,
		CreatedAt: now,
		UpdatedAt: now,
	}
	att, err = svc.repo.CreateAttendance(ctx, att)
	if err != nil {
		return Attendance{}, errors.Wrap(err, "creating attendance")
	}
	return att, nil
}

func (svc *Service) GetAttendance(ctx context.Context, id string) (Attendance, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Attendance{}, core.ErrNotFound
	}
	return svc.repo.GetAttendance(ctx, id)
}

func (svc *Service) QueryAttendances(ctx context.Context, filter QueryFilter) ([]Attendance, error) {
	return svc.repo.QueryAttendances(ctx, filter)
}

// CreateDetail records one student's status within a session. nd must have been validated beforehand.
func (svc *Service) CreateDetail(ctx context.Context, nd NewDetail) (Detail, error) {
	details, err := svc.CreateDetails(ctx, nd.AttendanceID, nd)
	if err != nil {
		return Detail{}, err
	}
	return details[0], nil
}

// CreateDetails records the statuses of many students within session attendanceID, atomically.
// Every nds item must have been validated beforehand.
func (svc *Service) CreateDetails(ctx context.Context, attendanceID string, nds ...NewDetail) ([]Detail, error) {
	if len(nds) == 0 {
		return nil, core.NewValidationError(nil, core.FieldError{Field: "details", Error: "this field is required"})
	}

	att, err := svc.repo.GetAttendance(ctx, attendanceID)
	if err != nil {
		if errors.Cause(err) == core.ErrNotFound {
			return nil, core.NewValidationError(nil, core.FieldError{Field: "attendanceId", Error: errUnknownAttendance})
		}
		return nil, errors.Wrap(err, "finding attendance")
	}

	now := nowFunc().UTC().Truncate(time.Microsecond)
	details := make([]Detail, 0, len(nds))
	students := make(map[string]user.User, len(nds))
	for _, nd := range nds {
		nd.Clean()
		status := DefaultStatus
		if nd.Status != "" {
			var ok bool
			if status, ok = ParseStatus(nd.Status); !ok {
				return nil, core.NewValidationError(nil, core.FieldError{Field: "status", Error: statusText})
			}
		}
		if _, dup := students[nd.StudentID]; dup {
			return nil, core.NewConstraintError(DetailUniqueConstraint, errDuplicateStudent)
		}

		student, err := svc.checkStudent(ctx, att, nd.StudentID)
		if err != nil {
			return nil, err
		}
		students[nd.StudentID] = student

		details = append(details, Detail{
			ID:           uuid.New().String(),
			AttendanceID: att.ID,
			StudentID:    nd.StudentID,
			Status:       status,
			Notes:        nd.Notes,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
	}

	details, err = svc.repo.CreateDetails(ctx, details...)
	if err != nil {
		return nil, errors.Wrap(err, "creating attendance details")
	}

	for _, d := range details {
		svc.notifyAbsence(ctx, att, students[d.StudentID], d)
	}
	return details, nil
}

func (svc *Service) checkStudent(ctx context.Context, att Attendance, studentID string) (user.User, error) {
	student, err := svc.users.GetByID(ctx, studentID)
	if err != nil {
		if errors.Cause(err) == core.ErrNotFound {
			return user.User{}, core.NewValidationError(nil, core.FieldError{Field: "studentId", Error: errUnknownStudent})
		}
		return user.User{}, errors.Wrap(err, "finding student")
	}
	if !student.IsStudent() {
		return user.User{}, core.NewValidationError(nil, core.FieldError{Field: "studentId", Error: errUnknownStudent})
	}

	enrolled, err := svc.courses.IsEnrolled(ctx, att.CourseID, studentID)
	if err != nil {
		return user.User{}, errors.Wrap(err, "checking enrollment")
	}
	if !enrolled {
		return user.User{}, core.NewValidationError(nil, core.FieldError{Field: "studentId", Error: errNotEnrolled})
	}
	return student, nil
}

func (svc *Service) GetDetail(ctx context.Context, id string) (Detail, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Detail{}, core.ErrNotFound
	}
	return svc.repo.GetDetail(ctx, id)
}

// UpdateDetail corrects the status and/or notes of Detail id. ud must have been validated beforehand.
func (svc *Service) UpdateDetail(ctx context.Context, id string, ud UpdateDetail) (Detail, error) {
	d, err := svc.GetDetail(ctx, id)
	if err != nil {
		return Detail{}, errors.Wrap(err, "finding attendance detail")
	}
	prevStatus := d.Status

	ud.Clean()
	if ud.Status != nil {
		status, ok := ParseStatus(*ud.Status)
		if !ok {
			return Detail{}, core.NewValidationError(nil, core.FieldError{Field: "status", Error: statusText})
		}
		d.Status = status
	}
	if ud.Notes != nil {
		d.Notes = *ud.Notes
	}
	d.UpdatedAt = NextUpdatedAt(d.UpdatedAt, nowFunc())

	d, err = svc.repo.UpdateDetail(ctx, d)
	if err != nil {
		return Detail{}, errors.Wrap(err, "updating attendance detail")
	}

	// the update is saved: a failed lookup only skips the absence email
	if d.Status == StatusAbsent && prevStatus != StatusAbsent {
		att, err := svc.repo.GetAttendance(ctx, d.AttendanceID)
		if err != nil {
			svc.logger.Error("absence email skipped: finding attendance", errors.Wrap(err, d.ID))
			return d, nil
		}
		student, err := svc.users.GetByID(ctx, d.StudentID)
		if err != nil {
			svc.logger.Error("absence email skipped: finding student", errors.Wrap(err, d.ID))
			return d, nil
		}
		svc.notifyAbsence(ctx, att, student, d)
	}
	return d, nil
}

// QueryDetails returns the details matching filter, in storage order.
func (svc *Service) QueryDetails(ctx context.Context, filter DetailFilter) ([]Detail, error) {
	if filter.Status != "" {
		status, ok := ParseStatus(string(filter.Status))
		if !ok {
			return nil, core.NewValidationError(nil, core.FieldError{Field: "status", Error: statusText})
		}
		filter.Status = status
	}
	return svc.repo.QueryDetails(ctx, filter)
}

// notifyAbsence emails the student when d records an absence.
func (svc *Service) notifyAbsence(ctx context.Context, att Attendance, student user.User, d Detail) {
	if d.Status != StatusAbsent || student.Email == "" {
		return
	}

	var courseName string
	if crs, err := svc.courses.GetByID(ctx, att.CourseID); err == nil {
		courseName = crs.Name
	}

	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: student.Name, Address: student.Email}},
		Subject:      fmt.Sprintf("Absence recorded on %s", att.Date.Format(dateLayout)),
		TemplateName: absenceTemplate,
		TemplateData: absenceData{
			AttendanceID: att.ID,
			StudentName:  student.Name,
			CourseName:   courseName,
			Date:         att.Date.Format(dateLayout),
			Status:       d.Status,
			Notes:        d.Notes,
		},
	})
}
