package course

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/spimentel1201/EduMF-sub001/core"
)

type Course struct {
	ID          int       `json:"id"`
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	TeacherID   string    `json:"teacherId,omitempty"`
	CreatedAt   time.Time `json:"createdAt"` // UTC
	UpdatedAt   time.Time `json:"updatedAt"` // UTC
}

// Enrollment links a student to a Course.
type Enrollment struct {
	CourseID   int       `json:"courseId"`
	StudentID  string    `json:"studentId"`
	EnrolledAt time.Time `json:"enrolledAt"` // UTC
}

// NewCourse contains information needed to create a new Course.
type NewCourse struct {
	Code        string `json:"code" validate:"required,alphanum_"`
	Name        string `json:"name" validate:"required,notblank"`
	Description string `json:"description"`
	TeacherID   string `json:"teacherId" validate:"omitempty,uuid"`
}

func (nc *NewCourse) Clean() {
	nc.Code = core.CleanString(nc.Code)
	nc.Name = core.CleanString(nc.Name)
	nc.Description = core.CleanString(nc.Description)
	nc.TeacherID = core.CleanString(nc.TeacherID)
}

func (nc *NewCourse) Validate(validate *validator.Validate) error {
	nc.Clean()
	return validate.Struct(nc)
}

// UpdateCourse replaces the editable fields of a Course.
type UpdateCourse NewCourse

func (uc *UpdateCourse) Validate(validate *validator.Validate) error {
	nc := (*NewCourse)(uc)
	return nc.Validate(validate)
}

// EnrollStudents lists the students to enroll into a Course.
type EnrollStudents struct {
	StudentIDs []string `json:"studentIds" validate:"required,min=1,dive,uuid"`
}

func (es *EnrollStudents) Validate(validate *validator.Validate) error {
	for i, id := range es.StudentIDs {
		es.StudentIDs[i] = core.CleanString(id)
	}
	return validate.Struct(es)
}

type QueryFilter struct {
	Search    string
	TeacherID string
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.TeacherID = core.CleanString(qf.TeacherID)
}

// OrderingColumns maps the client-facing ordering fields to storage columns.
var OrderingColumns = map[string]string{
	"id":        "id",
	"code":      "code",
	"name":      "name",
	"createdAt": "created_at",
	"updatedAt": "updated_at",
}
