package inmemdb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/spimentel1201/EduMF-sub001/core"
	"github.com/spimentel1201/EduMF-sub001/core/course"
	"github.com/spimentel1201/EduMF-sub001/core/user"
)

type courseRepository struct {
	db *DB
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *DB) course.Repository {
	return &courseRepository{db: db}
}

// query must be called with the lock held.
func (repo *courseRepository) query() []course.Course {
	courses := make([]course.Course, 0, len(repo.db.courses))
	for _, crs := range repo.db.courses {
		courses = append(courses, *crs)
	}
	sort.Slice(courses, func(i, j int) bool { return courses[i].ID < courses[j].ID })
	return courses
}

func (repo *courseRepository) checkCodeUniqueness(code string, excludedIDs ...int) error {
	for _, crs := range repo.db.courses {
		if !strings.EqualFold(crs.Code, code) {
			continue
		}
		excluded := false
		for _, id := range excludedIDs {
			if crs.ID == id {
				excluded = true
				break
			}
		}
		if !excluded {
			return course.ErrCodeExists
		}
	}
	return nil
}

func (repo *courseRepository) CheckCodeUniqueness(_ context.Context, code string, excludedIDs ...int) error {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return repo.checkCodeUniqueness(code, excludedIDs...)
}

func (repo *courseRepository) CreateCourse(_ context.Context, crs course.Course) (course.Course, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if err := repo.checkCodeUniqueness(crs.Code); err != nil {
		return course.Course{}, core.NewConstraintError("course_code_key", err)
	}
	repo.db.courseSeq++
	crs.ID = repo.db.courseSeq
	c := crs
	repo.db.courses[crs.ID] = &c
	return crs, nil
}

func (repo *courseRepository) QueryCourses(_ context.Context, filter course.QueryFilter, ordering ...core.DBOrdering) ([]course.Course, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	search := strings.ToLower(filter.Search)
	courses := make([]course.Course, 0)
	for _, crs := range repo.query() {
		if search != "" &&
			!strings.Contains(strings.ToLower(crs.Name), search) &&
			!strings.Contains(strings.ToLower(crs.Code), search) {
			continue
		}
		if filter.TeacherID != "" && crs.TeacherID != filter.TeacherID {
			continue
		}
		courses = append(courses, crs)
	}

	if len(ordering) > 0 {
		sort.SliceStable(courses, func(i, j int) bool {
			for _, ord := range ordering {
				cmp := compareCourses(courses[i], courses[j], ord.Field)
				if cmp == 0 {
					continue
				}
				return (cmp < 0) == ord.Ascending
			}
			return false
		})
	}
	return courses, nil
}

func compareCourses(a, b course.Course, col string) int {
	switch col {
	case "id":
		return a.ID - b.ID
	case "code":
		return strings.Compare(a.Code, b.Code)
	case "name":
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	case "created_at":
		return compareTimes(a.CreatedAt, b.CreatedAt)
	case "updated_at":
		return compareTimes(a.UpdatedAt, b.UpdatedAt)
	}
	return 0
}

func compareTimes(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	}
	return 0
}

func (repo *courseRepository) GetCourse(_ context.Context, id int) (course.Course, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if crs, ok := repo.db.courses[id]; ok {
		return *crs, nil
	}
	return course.Course{}, core.ErrNotFound
}

func (repo *courseRepository) UpdateCourse(_ context.Context, crs course.Course) (course.Course, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	orig, ok := repo.db.courses[crs.ID]
	if !ok {
		return course.Course{}, core.ErrNotFound
	}
	if err := repo.checkCodeUniqueness(crs.Code, crs.ID); err != nil {
		return course.Course{}, core.NewConstraintError("course_code_key", err)
	}
	crs.CreatedAt = orig.CreatedAt
	*orig = crs
	return crs, nil
}

func (repo *courseRepository) DeleteCourse(_ context.Context, id int) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.courses[id]; !ok {
		return core.ErrNotFound
	}
	delete(repo.db.courses, id)

	for key := range repo.db.enrollments {
		if key.courseID == id {
			delete(repo.db.enrollments, key)
		}
	}
	for attID, att := range repo.db.attendances {
		if att.CourseID != id {
			continue
		}
		for detailID, d := range repo.db.details {
			if d.AttendanceID == attID {
				repo.db.deleteDetail(detailID)
			}
		}
		delete(repo.db.attendances, attID)
	}
	return nil
}

func (repo *courseRepository) EnrollStudents(_ context.Context, courseID int, studentIDs []string, enrolledAt time.Time) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.courses[courseID]; !ok {
		return core.ErrNotFound
	}
	for _, sid := range studentIDs {
		if _, ok := repo.db.users[sid]; !ok {
			return core.ErrNotFound
		}
	}
	for _, sid := range studentIDs {
		key := enrollmentKey{courseID: courseID, studentID: sid}
		if _, ok := repo.db.enrollments[key]; !ok {
			repo.db.enrollments[key] = enrolledAt
		}
	}
	return nil
}

func (repo *courseRepository) QueryStudents(_ context.Context, courseID int) ([]user.User, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	students := make([]*userRow, 0)
	for key := range repo.db.enrollments {
		if key.courseID != courseID {
			continue
		}
		if row, ok := repo.db.users[key.studentID]; ok {
			students = append(students, row)
		}
	}
	sort.Slice(students, func(i, j int) bool {
		return strings.ToLower(students[i].Name) < strings.ToLower(students[j].Name)
	})

	users := make([]user.User, 0, len(students))
	for _, row := range students {
		users = append(users, row.User)
	}
	return users, nil
}

func (repo *courseRepository) IsEnrolled(_ context.Context, courseID int, studentID string) (bool, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	_, ok := repo.db.enrollments[enrollmentKey{courseID: courseID, studentID: studentID}]
	return ok, nil
}

func (repo *courseRepository) UnenrollStudent(_ context.Context, courseID int, studentID string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	key := enrollmentKey{courseID: courseID, studentID: studentID}
	if _, ok := repo.db.enrollments[key]; !ok {
		return core.ErrNotFound
	}
	delete(repo.db.enrollments, key)
	return nil
}
