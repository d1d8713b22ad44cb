package attendance_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spimentel1201/EduMF-sub001/core"
	"github.com/spimentel1201/EduMF-sub001/core/attendance"
	"github.com/spimentel1201/EduMF-sub001/core/course"
	"github.com/spimentel1201/EduMF-sub001/core/user"
	emailsvc "github.com/spimentel1201/EduMF-sub001/services/email"
	inmemdb "github.com/spimentel1201/EduMF-sub001/storage/database/inmem"
	testutil "github.com/spimentel1201/EduMF-sub001/tests"
)

type fixture struct {
	svc      *attendance.Service
	repo     attendance.Repository
	users    *user.Service
	courses  *course.Service
	conf     *core.Config
	mailSvc  *emailsvc.ConsoleServiceMock
	session  attendance.Attendance
	student1 user.User
	student2 user.User
	outsider user.User
}

func setUp(t *testing.T) fixture {
	conf := testutil.NewConfig()
	db := inmemdb.Open()
	usrRepo := inmemdb.NewUserRepository(db)
	crsRepo := inmemdb.NewCourseRepository(db)
	attRepo := inmemdb.NewAttendanceRepository(db)

	usrSvc := user.NewService(usrRepo, conf)
	crsSvc := course.NewService(crsRepo, usrSvc)
	mailSvc := emailsvc.NewConsoleServiceMock(conf, testutil.NewLogger(conf))

	teacher := testutil.CreateUser(t, usrRepo, "11111111", "Rosa Diaz", "rosa@edumf.test", "", user.RoleTeacher, true)
	student1 := testutil.CreateUser(t, usrRepo, "22222222", "Ana Quispe", "ana@edumf.test", "", user.RoleStudent, true)
	student2 := testutil.CreateUser(t, usrRepo, "33333333", "Luis Huaman", "", "", user.RoleStudent, true)
	outsider := testutil.CreateUser(t, usrRepo, "44444444", "Eva Rojas", "", "", user.RoleStudent, true)
	crs := testutil.CreateCourse(t, crsRepo, "MAT101", "Matematica", teacher.ID, student1.ID, student2.ID)
	session := testutil.CreateAttendance(t, attRepo, crs.ID, time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC), teacher.ID)

	return fixture{
		svc:      attendance.NewService(attRepo, usrSvc, crsSvc, mailSvc, testutil.NewLogger(conf)),
		repo:     attRepo,
		users:    usrSvc,
		courses:  crsSvc,
		conf:     conf,
		mailSvc:  mailSvc,
		session:  session,
		student1: student1,
		student2: student2,
		outsider: outsider,
	}
}

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in     string
		want   attendance.Status
		wantOk bool
	}{
		{in: "Presente", want: attendance.StatusPresent, wantOk: true},
		{in: "present", want: attendance.StatusPresent, wantOk: true},
		{in: " ABSENT ", want: attendance.StatusAbsent, wantOk: true},
		{in: "Ausente", want: attendance.StatusAbsent, wantOk: true},
		{in: "Late", want: attendance.StatusLate, wantOk: true},
		{in: "tardanza", want: attendance.StatusLate, wantOk: true},
		{in: "Excused", want: attendance.StatusExcused, wantOk: true},
		{in: "Justificado", want: attendance.StatusExcused, wantOk: true},
		{in: "", wantOk: false},
		{in: "Sick", wantOk: false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := attendance.ParseStatus(tt.in)
			assert.Equal(t, tt.wantOk, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewDetail_Validate(t *testing.T) {
	validate, _ := testutil.NewValidate()
	id := uuid.New().String()

	tests := []struct {
		name    string
		nd      attendance.NewDetail
		wantErr bool
	}{
		{name: "valid", nd: attendance.NewDetail{AttendanceID: id, StudentID: id}},
		{name: "valid english status", nd: attendance.NewDetail{AttendanceID: id, StudentID: id, Status: "late"}},
		{name: "missing attendanceId", nd: attendance.NewDetail{StudentID: id}, wantErr: true},
		{name: "missing studentId", nd: attendance.NewDetail{AttendanceID: id}, wantErr: true},
		{name: "invalid status", nd: attendance.NewDetail{AttendanceID: id, StudentID: id, Status: "Sick"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.nd.Validate(validate)
			if tt.wantErr {
				assert.True(t, core.IsValidationError(err))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestService_CreateDetail(t *testing.T) {
	ctx := context.Background()
	fx := setUp(t)

	d, err := fx.svc.CreateDetail(ctx, attendance.NewDetail{
		AttendanceID: fx.session.ID,
		StudentID:    fx.student1.ID,
		Notes:        "  llegó con permiso  ",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, d.ID)
	assert.Equal(t, attendance.StatusPresent, d.Status, "status defaults to Presente")
	assert.Equal(t, "llegó con permiso", d.Notes, "notes are trimmed")
	assert.False(t, d.CreatedAt.IsZero())
	assert.Equal(t, d.CreatedAt, d.UpdatedAt)

	// same pair again
	_, err = fx.svc.CreateDetail(ctx, attendance.NewDetail{
		AttendanceID: fx.session.ID,
		StudentID:    fx.student1.ID,
		Status:       "Ausente",
	})
	require.Error(t, err)
	assert.True(t, core.IsConstraintViolation(err))

	got, err := fx.svc.GetDetail(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, d, got, "the first record is never overwritten")

	tests := []struct {
		name string
		nd   attendance.NewDetail
	}{
		{name: "unknown session", nd: attendance.NewDetail{AttendanceID: uuid.New().String(), StudentID: fx.student2.ID}},
		{name: "unknown student", nd: attendance.NewDetail{AttendanceID: fx.session.ID, StudentID: uuid.New().String()}},
		{name: "not enrolled", nd: attendance.NewDetail{AttendanceID: fx.session.ID, StudentID: fx.outsider.ID}},
		{name: "invalid status", nd: attendance.NewDetail{AttendanceID: fx.session.ID, StudentID: fx.student2.ID, Status: "Sick"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := fx.svc.CreateDetail(ctx, tt.nd)
			assert.True(t, core.IsValidationError(err), "got %v", err)
		})
	}
}

func TestService_CreateDetail_Absence(t *testing.T) {
	ctx := context.Background()
	fx := setUp(t)

	d, err := fx.svc.CreateDetail(ctx, attendance.NewDetail{
		AttendanceID: fx.session.ID,
		StudentID:    fx.student1.ID,
		Status:       "absent",
	})
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusAbsent, d.Status, "english aliases are normalised")

	sent := fx.mailSvc.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, fx.student1.Email, sent[0].To[0].Address)
	assert.Contains(t, sent[0].TextContent, "Ausente")
	assert.Contains(t, sent[0].TextContent, "Matematica")
	assert.Contains(t, sent[0].HTMLContent, fx.session.ID)

	// no email address: nothing to send
	_, err = fx.svc.CreateDetail(ctx, attendance.NewDetail{
		AttendanceID: fx.session.ID,
		StudentID:    fx.student2.ID,
		Status:       "Ausente",
	})
	require.NoError(t, err)
	assert.Len(t, fx.mailSvc.SentMessages(), 1)
}

func TestService_CreateDetails(t *testing.T) {
	ctx := context.Background()
	fx := setUp(t)

	t.Run("duplicate within batch", func(t *testing.T) {
		_, err := fx.svc.CreateDetails(ctx, fx.session.ID,
			attendance.NewDetail{StudentID: fx.student1.ID},
			attendance.NewDetail{StudentID: fx.student1.ID, Status: "Tardanza"},
		)
		assert.True(t, core.IsConstraintViolation(err))
		details, _ := fx.svc.QueryDetails(ctx, attendance.DetailFilter{AttendanceID: fx.session.ID})
		assert.Empty(t, details)
	})

	t.Run("invalid item", func(t *testing.T) {
		_, err := fx.svc.CreateDetails(ctx, fx.session.ID,
			attendance.NewDetail{StudentID: fx.student1.ID},
			attendance.NewDetail{StudentID: fx.outsider.ID},
		)
		assert.True(t, core.IsValidationError(err))
		details, _ := fx.svc.QueryDetails(ctx, attendance.DetailFilter{AttendanceID: fx.session.ID})
		assert.Empty(t, details, "nothing is inserted")
	})

	t.Run("batch", func(t *testing.T) {
		details, err := fx.svc.CreateDetails(ctx, fx.session.ID,
			attendance.NewDetail{StudentID: fx.student1.ID, Status: "Late"},
			attendance.NewDetail{StudentID: fx.student2.ID},
		)
		require.NoError(t, err)
		require.Len(t, details, 2)
		assert.Equal(t, attendance.StatusLate, details[0].Status)
		assert.Equal(t, attendance.StatusPresent, details[1].Status)
	})

	t.Run("clash with stored", func(t *testing.T) {
		_, err := fx.svc.CreateDetails(ctx, fx.session.ID, attendance.NewDetail{StudentID: fx.student2.ID})
		assert.True(t, core.IsConstraintViolation(err))
	})

	t.Run("empty", func(t *testing.T) {
		_, err := fx.svc.CreateDetails(ctx, fx.session.ID)
		assert.True(t, core.IsValidationError(err))
	})
}

func TestService_CreateDetail_Race(t *testing.T) {
	ctx := context.Background()
	fx := setUp(t)

	const n = 20
	var (
		wg          sync.WaitGroup
		mu          sync.Mutex
		successes   int
		constraints int
	)
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, err := fx.svc.CreateDetail(ctx, attendance.NewDetail{AttendanceID: fx.session.ID, StudentID: fx.student2.ID})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
			} else if core.IsConstraintViolation(err) {
				constraints++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, n-1, constraints)
}

func TestService_UpdateDetail(t *testing.T) {
	ctx := context.Background()
	fx := setUp(t)

	d, err := fx.svc.CreateDetail(ctx, attendance.NewDetail{AttendanceID: fx.session.ID, StudentID: fx.student1.ID})
	require.NoError(t, err)

	status := "Justificado"
	notes := "  certificado médico "
	updated, err := fx.svc.UpdateDetail(ctx, d.ID, attendance.UpdateDetail{Status: &status, Notes: &notes})
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusExcused, updated.Status)
	assert.Equal(t, "certificado médico", updated.Notes)
	assert.Equal(t, d.CreatedAt, updated.CreatedAt, "createdAt never changes")
	assert.True(t, updated.UpdatedAt.After(d.UpdatedAt), "updatedAt increases")
	assert.Equal(t, d.AttendanceID, updated.AttendanceID)
	assert.Equal(t, d.StudentID, updated.StudentID)

	// notes only; updatedAt keeps increasing even within the same clock tick
	again, err := fx.svc.UpdateDetail(ctx, d.ID, attendance.UpdateDetail{Notes: &notes})
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusExcused, again.Status, "nil status is left unchanged")
	assert.True(t, again.UpdatedAt.After(updated.UpdatedAt))

	invalid := "Sick"
	_, err = fx.svc.UpdateDetail(ctx, d.ID, attendance.UpdateDetail{Status: &invalid})
	assert.True(t, core.IsValidationError(err))

	_, err = fx.svc.UpdateDetail(ctx, uuid.New().String(), attendance.UpdateDetail{Notes: &notes})
	assert.Equal(t, core.ErrNotFound, errors.Cause(err))

	// switching to Ausente notifies the student
	absent := "Ausente"
	_, err = fx.svc.UpdateDetail(ctx, d.ID, attendance.UpdateDetail{Status: &absent})
	require.NoError(t, err)
	assert.Len(t, fx.mailSvc.SentMessages(), 1)
}

// unreachableSessions fails every session lookup, as a dropped DB connection would.
type unreachableSessions struct {
	attendance.Repository
}

func (unreachableSessions) GetAttendance(context.Context, string) (attendance.Attendance, error) {
	return attendance.Attendance{}, errors.New("connection reset")
}

func TestService_UpdateDetail_SavedDespiteLookupFailure(t *testing.T) {
	ctx := context.Background()
	fx := setUp(t)

	d, err := fx.svc.CreateDetail(ctx, attendance.NewDetail{AttendanceID: fx.session.ID, StudentID: fx.student1.ID})
	require.NoError(t, err)

	svc := attendance.NewService(unreachableSessions{fx.repo}, fx.users, fx.courses, fx.mailSvc, testutil.NewLogger(fx.conf))
	absent := "Ausente"
	updated, err := svc.UpdateDetail(ctx, d.ID, attendance.UpdateDetail{Status: &absent})
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusAbsent, updated.Status)
	assert.Empty(t, fx.mailSvc.SentMessages(), "email skipped")

	stored, err := fx.svc.GetDetail(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusAbsent, stored.Status)
}

func TestService_QueryDetails(t *testing.T) {
	ctx := context.Background()
	fx := setUp(t)

	absent, err := fx.svc.CreateDetail(ctx, attendance.NewDetail{AttendanceID: fx.session.ID, StudentID: fx.student1.ID, Status: "Ausente"})
	require.NoError(t, err)
	present, err := fx.svc.CreateDetail(ctx, attendance.NewDetail{AttendanceID: fx.session.ID, StudentID: fx.student2.ID})
	require.NoError(t, err)

	tests := []struct {
		name    string
		filter  attendance.DetailFilter
		want    []attendance.Detail
		wantErr bool
	}{
		{name: "all", filter: attendance.DetailFilter{}, want: []attendance.Detail{absent, present}},
		{name: "by status", filter: attendance.DetailFilter{Status: attendance.StatusAbsent}, want: []attendance.Detail{absent}},
		{name: "by english status", filter: attendance.DetailFilter{Status: "present"}, want: []attendance.Detail{present}},
		{name: "by session", filter: attendance.DetailFilter{AttendanceID: fx.session.ID}, want: []attendance.Detail{absent, present}},
		{name: "by student", filter: attendance.DetailFilter{StudentID: fx.student2.ID}, want: []attendance.Detail{present}},
		{name: "no match", filter: attendance.DetailFilter{Status: attendance.StatusLate}, want: []attendance.Detail{}},
		{name: "invalid status", filter: attendance.DetailFilter{Status: "Sick"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := fx.svc.QueryDetails(ctx, tt.filter)
			if tt.wantErr {
				assert.True(t, core.IsValidationError(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNextUpdatedAt(t *testing.T) {
	prev := time.Date(2024, 3, 11, 8, 0, 0, 1000, time.UTC)
	assert.Equal(t, prev.Add(time.Microsecond), attendance.NextUpdatedAt(prev, prev), "same instant")
	assert.Equal(t, prev.Add(time.Microsecond), attendance.NextUpdatedAt(prev, prev.Add(-time.Hour)), "clock went back")
	later := prev.Add(time.Second)
	assert.Equal(t, later, attendance.NextUpdatedAt(prev, later))
}
