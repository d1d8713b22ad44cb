package attendance

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/spimentel1201/EduMF-sub001/core"
)

var dateLayout = "2006-01-02"

// Attendance is one class meeting of a Course against which per-student statuses are recorded.
type Attendance struct {
	ID        string    `json:"id"`
	CourseID  int       `json:"courseId"`
	Date      time.Time `json:"date"` // UTC midnight
	Topic     string    `json:"topic"`
	TakenBy   string    `json:"takenBy,omitempty"`
	CreatedAt time.Time `json:"createdAt"` // UTC
	UpdatedAt time.Time `json:"updatedAt"` // UTC
}

// Detail is one student's recorded status within one Attendance session.
// There is at most one Detail per (AttendanceID, StudentID).
type Detail struct {
	ID           string    `json:"id"`
	AttendanceID string    `json:"attendanceId"`
	StudentID    string    `json:"studentId"`
	Status       Status    `json:"status"`
	Notes        string    `json:"notes,omitempty"`
	CreatedAt    time.Time `json:"createdAt"` // UTC
	UpdatedAt    time.Time `json:"updatedAt"` // UTC
}

// NewAttendance contains information needed to open a new Attendance session.
type NewAttendance struct {
	CourseID int    `json:"courseId" validate:"required,gt=0"`
	Date     string `json:"date" validate:"required,datetime=2006-01-02"`
	Topic    string `json:"topic"`
}

func (na *NewAttendance) Clean() {
	na.Date = core.CleanString(na.Date)
	na.Topic = core.CleanString(na.Topic)
}

func (na *NewAttendance) Validate(validate *validator.Validate) error {
	na.Clean()
	return validate.Struct(na)
}

// NewDetail contains information needed to record a student's status.
// An empty Status means DefaultStatus.
type NewDetail struct {
	AttendanceID string `json:"attendanceId" validate:"required,uuid"`
	StudentID    string `json:"studentId" validate:"required,uuid"`
	Status       string `json:"status" validate:"omitempty,attendance_status"`
	Notes        string `json:"notes"`
}

func (nd *NewDetail) Clean() {
	nd.AttendanceID = core.CleanString(nd.AttendanceID)
	nd.StudentID = core.CleanString(nd.StudentID)
	nd.Status = core.CleanString(nd.Status)
	nd.Notes = core.CleanString(nd.Notes)
}

func (nd *NewDetail) Validate(validate *validator.Validate) error {
	nd.Clean()
	return validate.Struct(nd)
}

// NewDetails records many students' statuses within one session at once.
type NewDetails struct {
	Details []NewDetail `json:"details" validate:"required,min=1,dive"`
}

// Validate validates every detail, forcing their AttendanceID to attendanceID.
func (nds *NewDetails) Validate(validate *validator.Validate, attendanceID string) error {
	for i := range nds.Details {
		nds.Details[i].AttendanceID = attendanceID
		nds.Details[i].Clean()
	}
	return validate.Struct(nds)
}

// UpdateDetail corrects the status and/or notes of a Detail; nil fields are left unchanged.
type UpdateDetail struct {
	Status *string `json:"status" validate:"omitempty,attendance_status"`
	Notes  *string `json:"notes"`
}

func (ud *UpdateDetail) Clean() {
	if ud.Status != nil {
		s := core.CleanString(*ud.Status)
		ud.Status = &s
	}
	if ud.Notes != nil {
		n := core.CleanString(*ud.Notes)
		ud.Notes = &n
	}
}

func (ud *UpdateDetail) Validate(validate *validator.Validate) error {
	ud.Clean()
	return validate.Struct(ud)
}

// DetailFilter applies AND operation on its non-empty fields.
type DetailFilter struct {
	Status       Status
	AttendanceID string
	StudentID    string
}

type QueryFilter struct {
	CourseID int
}

// NextUpdatedAt returns a write timestamp strictly after prev.
// Timestamps are kept at microsecond precision, the resolution PostgreSQL stores.
func NextUpdatedAt(prev, now time.Time) time.Time {
	now = now.UTC().Truncate(time.Microsecond)
	if !now.After(prev) {
		return prev.Add(time.Microsecond)
	}
	return now
}
