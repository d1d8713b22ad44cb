package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/spimentel1201/EduMF-sub001/core"
	"github.com/spimentel1201/EduMF-sub001/core/course"
	"github.com/spimentel1201/EduMF-sub001/core/user"
)

const courseColumns = `id, code, name, description, teacher_id, created_at, updated_at`

type (
	courseRepository struct {
		db *sqlx.DB
	}

	courseRow struct {
		ID          int         `db:"id"`
		Code        string      `db:"code"`
		Name        string      `db:"name"`
		Description string      `db:"description"`
		TeacherID   null.String `db:"teacher_id"`
		CreatedAt   time.Time   `db:"created_at"`
		UpdatedAt   time.Time   `db:"updated_at"`
	}
)

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *sqlx.DB) course.Repository {
	return &courseRepository{db: db}
}

func toCourseRow(crs course.Course) courseRow {
	return courseRow{
		ID:          crs.ID,
		Code:        crs.Code,
		Name:        crs.Name,
		Description: crs.Description,
		TeacherID:   null.NewString(crs.TeacherID, crs.TeacherID != ""),
		CreatedAt:   crs.CreatedAt.UTC(),
		UpdatedAt:   crs.UpdatedAt.UTC(),
	}
}

func (r courseRow) toCourse() course.Course {
	return course.Course{
		ID:          r.ID,
		Code:        r.Code,
		Name:        r.Name,
		Description: r.Description,
		TeacherID:   r.TeacherID.String,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

func (repo *courseRepository) CheckCodeUniqueness(ctx context.Context, code string, excludedIDs ...int) error {
	var w where
	w.add("LOWER(code) = LOWER(?)", code)
	if len(excludedIDs) > 0 {
		w.add("id NOT IN (?)", excludedIDs)
	}
	q, args, err := sqlx.In(`SELECT EXISTS (SELECT 1 FROM course`+w.String()+`)`, w.args...)
	if err != nil {
		return errors.Wrap(err, "building uniqueness query")
	}

	var exists bool
	if err = repo.db.GetContext(ctx, &exists, repo.db.Rebind(q), args...); err != nil {
		return errors.Wrap(err, "checking course uniqueness")
	}
	if exists {
		return course.ErrCodeExists
	}
	return nil
}

func (repo *courseRepository) CreateCourse(ctx context.Context, crs course.Course) (course.Course, error) {
	q := `INSERT INTO course (code, name, description, teacher_id, created_at, updated_at)
		VALUES (:code, :name, :description, :teacher_id, :created_at, :updated_at) RETURNING id`
	stmt, err := repo.db.PrepareNamedContext(ctx, q)
	if err != nil {
		return course.Course{}, errors.Wrap(err, "preparing course insert")
	}
	defer func() { _ = stmt.Close() }()

	if err = stmt.GetContext(ctx, &crs.ID, toCourseRow(crs)); err != nil {
		return course.Course{}, trapErr(err, "inserting course")
	}
	return crs, nil
}

func (repo *courseRepository) QueryCourses(ctx context.Context, filter course.QueryFilter, ordering ...core.DBOrdering) ([]course.Course, error) {
	var w where
	if filter.Search != "" {
		val := "%" + filter.Search + "%"
		w.add("(name ILIKE ? OR code ILIKE ?)", val, val)
	}
	if filter.TeacherID != "" {
		w.addUUID("teacher_id", filter.TeacherID)
	}
	if w.none {
		return []course.Course{}, nil
	}

	q := `SELECT ` + courseColumns + ` FROM course` + w.String() + orderBy(ordering, "id ASC")
	var rows []courseRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), w.args...); err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}

	courses := make([]course.Course, 0, len(rows))
	for _, r := range rows {
		courses = append(courses, r.toCourse())
	}
	return courses, nil
}

func (repo *courseRepository) GetCourse(ctx context.Context, id int) (course.Course, error) {
	var row courseRow
	if err := repo.db.GetContext(ctx, &row, `SELECT `+courseColumns+` FROM course WHERE id = $1`, id); err != nil {
		return course.Course{}, trapErr(err, "finding course")
	}
	return row.toCourse(), nil
}

func (repo *courseRepository) UpdateCourse(ctx context.Context, crs course.Course) (course.Course, error) {
	q := `UPDATE course SET code = :code, name = :name, description = :description, teacher_id = :teacher_id,
		updated_at = :updated_at WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, toCourseRow(crs))
	if err != nil {
		return course.Course{}, trapErr(err, "updating course")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return course.Course{}, core.ErrNotFound
	}
	return crs, nil
}

func (repo *courseRepository) DeleteCourse(ctx context.Context, id int) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM course WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting course")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (repo *courseRepository) EnrollStudents(ctx context.Context, courseID int, studentIDs []string, enrolledAt time.Time) error {
	q := `INSERT INTO course_student (course_id, student_id, enrolled_at)
		SELECT $1, UNNEST($2::uuid[]), $3
		ON CONFLICT (course_id, student_id) DO NOTHING`
	if _, err := repo.db.ExecContext(ctx, q, courseID, pq.Array(studentIDs), enrolledAt.UTC()); err != nil {
		return trapErr(err, "enrolling students")
	}
	return nil
}

func (repo *courseRepository) QueryStudents(ctx context.Context, courseID int) ([]user.User, error) {
	q := `SELECT u.id, u.dni, u.name, u.email, u.role, u.is_active, u.password_hash, u.created_at, u.updated_at, u.last_login
		FROM "user" u JOIN course_student cs ON cs.student_id = u.id
		WHERE cs.course_id = $1 ORDER BY LOWER(u.name)`
	var rows []userRow
	if err := repo.db.SelectContext(ctx, &rows, q, courseID); err != nil {
		return nil, errors.Wrap(err, "querying course students")
	}

	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.toUser())
	}
	return users, nil
}

func (repo *courseRepository) IsEnrolled(ctx context.Context, courseID int, studentID string) (bool, error) {
	if !isUUID(studentID) {
		return false, nil
	}
	var exists bool
	q := `SELECT EXISTS (SELECT 1 FROM course_student WHERE course_id = $1 AND student_id = $2)`
	if err := repo.db.GetContext(ctx, &exists, q, courseID, studentID); err != nil {
		return false, errors.Wrap(err, "checking enrollment")
	}
	return exists, nil
}

func (repo *courseRepository) UnenrollStudent(ctx context.Context, courseID int, studentID string) error {
	if !isUUID(studentID) {
		return core.ErrNotFound
	}
	q := `DELETE FROM course_student WHERE course_id = $1 AND student_id = $2`
	res, err := repo.db.ExecContext(ctx, q, courseID, studentID)
	if err != nil {
		return errors.Wrap(err, "unenrolling student")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return core.ErrNotFound
	}
	return nil
}
