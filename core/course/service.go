package course

import (
	"context"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/spimentel1201/EduMF-sub001/core"
	"github.com/spimentel1201/EduMF-sub001/core/user"
)

var (
	// errors
	ErrCodeExists     = errors.New("a course with this code already exists")
	errNotATeacher    = "user is not a teacher"
	errNotAStudent    = "user is not a student"
	errUnknownStudent = "student not found"

	nowFunc = time.Now // mockable
)

type (
	Repository interface {
		// CheckCodeUniqueness returns ErrCodeExists if another course (not in excludedIDs) uses code.
		CheckCodeUniqueness(ctx context.Context, code string, excludedIDs ...int) error
		CreateCourse(ctx context.Context, crs Course) (Course, error)
		QueryCourses(ctx context.Context, filter QueryFilter, ordering ...core.DBOrdering) ([]Course, error)
		GetCourse(ctx context.Context, id int) (Course, error)
		UpdateCourse(ctx context.Context, crs Course) (Course, error)
		DeleteCourse(ctx context.Context, id int) error

		// EnrollStudents enrolls the students, ignoring those already enrolled.
		EnrollStudents(ctx context.Context, courseID int, studentIDs []string, enrolledAt time.Time) error
		QueryStudents(ctx context.Context, courseID int) ([]user.User, error)
		IsEnrolled(ctx context.Context, courseID int, studentID string) (bool, error)
		UnenrollStudent(ctx context.Context, courseID int, studentID string) error
	}

	// UserGetter finds users by ID.
	UserGetter interface {
		GetByID(ctx context.Context, id string) (user.User, error)
	}

	Service struct {
		repo  Repository
		users UserGetter
	}
)

func NewService(repo Repository, users UserGetter) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(users, "users"),
	).CheckAndPanic()

	return &Service{repo: repo, users: users}
}

func (svc *Service) checkCodeUniqueness(ctx context.Context, code string, excludedIDs ...int) error {
	if err := svc.repo.CheckCodeUniqueness(ctx, code, excludedIDs...); err != nil {
		if errors.Cause(err) == ErrCodeExists {
			return core.NewValidationError(err, core.FieldError{Field: "code", Error: err.Error()})
		}
		return errors.Wrap(err, "checking code uniqueness")
	}
	return nil
}

func (svc *Service) checkTeacher(ctx context.Context, teacherID string) error {
	if teacherID == "" {
		return nil
	}
	usr, err := svc.users.GetByID(ctx, teacherID)
	if err != nil {
		if errors.Cause(err) == core.ErrNotFound {
			return core.NewValidationError(nil, core.FieldError{Field: "teacherId", Error: errNotATeacher})
		}
		return errors.Wrap(err, "finding teacher")
	}
	if !usr.IsTeacher() {
		return core.NewValidationError(nil, core.FieldError{Field: "teacherId", Error: errNotATeacher})
	}
	return nil
}

// Create persists a new Course. nc must have been validated beforehand.
func (svc *Service) Create(ctx context.Context, nc NewCourse) (Course, error) {
	nc.Clean()
	if err := svc.checkCodeUniqueness(ctx, nc.Code); err != nil {
		return Course{}, err
	}
	if err := svc.checkTeacher(ctx, nc.TeacherID); err != nil {
		return Course{}, err
	}

	now := nowFunc().UTC()
	crs := Course{
		Code:        nc.Code,
		Name:        nc.Name,
		Description: nc.Description,
		TeacherID:   nc.TeacherID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	crs, err := svc.repo.CreateCourse(ctx, crs)
	if err != nil {
		return Course{}, errors.Wrap(err, "creating course")
	}
	return crs, nil
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter, ordering ...core.DBOrdering) ([]Course, error) {
	filter.Clean()
	return svc.repo.QueryCourses(ctx, filter, core.MapOrderings(ordering, OrderingColumns)...)
}

func (svc *Service) GetByID(ctx context.Context, id int) (Course, error) {
	return svc.repo.GetCourse(ctx, id)
}

// Update replaces the editable fields of Course id. uc must have been validated beforehand.
func (svc *Service) Update(ctx context.Context, id int, uc UpdateCourse) (Course, error) {
	crs, err := svc.repo.GetCourse(ctx, id)
	if err != nil {
		return Course{}, errors.Wrap(err, "finding course")
	}
	if err = svc.checkCodeUniqueness(ctx, uc.Code, id); err != nil {
		return Course{}, err
	}
	if err = svc.checkTeacher(ctx, uc.TeacherID); err != nil {
		return Course{}, err
	}

	crs.Code = uc.Code
	crs.Name = uc.Name
	crs.Description = uc.Description
	crs.TeacherID = uc.TeacherID
	crs.UpdatedAt = nowFunc().UTC()
	return svc.repo.UpdateCourse(ctx, crs)
}

func (svc *Service) Delete(ctx context.Context, id int) error {
	return svc.repo.DeleteCourse(ctx, id)
}

// Enroll enrolls students into Course id. Every ID must belong to an existing student.
func (svc *Service) Enroll(ctx context.Context, id int, studentIDs ...string) error {
	if _, err := svc.repo.GetCourse(ctx, id); err != nil {
		return errors.Wrap(err, "finding course")
	}

	for _, sid := range studentIDs {
		usr, err := svc.users.GetByID(ctx, sid)
		if err != nil {
			if errors.Cause(err) == core.ErrNotFound {
				return core.NewValidationError(nil, core.FieldError{Field: "studentIds", Error: errUnknownStudent + ": " + sid})
			}
			return errors.Wrap(err, "finding student")
		}
		if !usr.IsStudent() {
			return core.NewValidationError(nil, core.FieldError{Field: "studentIds", Error: errNotAStudent + ": " + sid})
		}
	}

	if len(studentIDs) == 0 {
		return nil
	}
	return svc.repo.EnrollStudents(ctx, id, studentIDs, nowFunc().UTC())
}

func (svc *Service) Students(ctx context.Context, id int) ([]user.User, error) {
	if _, err := svc.repo.GetCourse(ctx, id); err != nil {
		return nil, errors.Wrap(err, "finding course")
	}
	return svc.repo.QueryStudents(ctx, id)
}

func (svc *Service) IsEnrolled(ctx context.Context, id int, studentID string) (bool, error) {
	return svc.repo.IsEnrolled(ctx, id, studentID)
}

func (svc *Service) Unenroll(ctx context.Context, id int, studentID string) error {
	return svc.repo.UnenrollStudent(ctx, id, studentID)
}
