package testutil

import (
	"context"
	"io"
	"log"
	"net/mail"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/spimentel1201/EduMF-sub001/core"
	"github.com/spimentel1201/EduMF-sub001/core/attendance"
	"github.com/spimentel1201/EduMF-sub001/core/course"
	"github.com/spimentel1201/EduMF-sub001/core/user"
	logsvc "github.com/spimentel1201/EduMF-sub001/services/logger"
)

// NewConfig returns a config fit for tests, independent of the environment.
func NewConfig() *core.Config {
	return &core.Config{
		Debug:    false,
		TestMode: true,
		Env:      "TEST",
		Build:    "test",
		WorkDir:  core.Getwd(),

		AppName:          "EduMF",
		SecretKey:        "test-secret-key",
		FrontendBaseURL:  "http://localhost:3000",
		DefaultFromEmail: mail.Address{Name: "EduMF", Address: "noreply@edumf.test"},

		QRCodeTimeoutDelta: 30 * 24 * time.Hour,
		LoginMaxAttempts:   3,
		LoginAttemptWindow: 15 * time.Minute,

		Server: core.ServerConfig{
			Host:                      "localhost",
			Port:                      8000,
			ShutdownTimeout:           5 * time.Second,
			JWTExpirationDelta:        time.Hour,
			JWTRefreshExpirationDelta: 4 * time.Hour,
		},
	}
}

// NewLogger returns a logger that discards everything.
func NewLogger(conf *core.Config) core.Logger {
	return logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)
}

// NewValidate returns a validator with every app validator registered.
func NewValidate() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	attendance.InitValidators(validate, translator)
	return validate, translator
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	dni, name, email, pwd, role string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		ID:        uuid.New().String(),
		DNI:       dni,
		Name:      name,
		Email:     email,
		Role:      role,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateCourse(t *testing.T, repo course.Repository, code, name, teacherID string, studentIDs ...string) course.Course {
	now := time.Now().UTC()
	crs, err := repo.CreateCourse(context.Background(), course.Course{
		Code:      code,
		Name:      name,
		TeacherID: teacherID,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateCourse() failed: %v", err)
	}
	if len(studentIDs) > 0 {
		if err = repo.EnrollStudents(context.Background(), crs.ID, studentIDs, now); err != nil {
			t.Fatalf("CreateCourse() failed: %v", err)
		}
	}
	return crs
}

func CreateAttendance(t *testing.T, repo attendance.Repository, courseID int, date time.Time, takenBy string) attendance.Attendance {
	now := time.Now().UTC().Truncate(time.Microsecond)
	att, err := repo.CreateAttendance(context.Background(), attendance.Attendance{
		ID:        uuid.New().String(),
		CourseID:  courseID,
		Date:      date.UTC(),
		TakenBy:   takenBy,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateAttendance() failed: %v", err)
	}
	return att
}
