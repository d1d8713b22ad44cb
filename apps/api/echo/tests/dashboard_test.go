package tests

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/spimentel1201/EduMF-sub001/core/attendance"
	"github.com/spimentel1201/EduMF-sub001/core/dashboard"
	"github.com/spimentel1201/EduMF-sub001/core/user"
	testutil "github.com/spimentel1201/EduMF-sub001/tests"
)

func Test_dashboardApi_stats(t *testing.T) {
	f := setupAttendance(t)
	path := "/api/dashboard/stats"

	rec := f.run(t, httpTest{path: path, token: f.teacherToken, wantCode: http.StatusOK})
	var stats dashboard.Stats
	decodeData(t, rec, &stats)
	assert.Equal(t, dashboard.Stats{
		TotalStudents: 2,
		TotalTeachers: 1,
		TotalCourses:  1,
		TotalSessions: 1,
		ByStatus: map[attendance.Status]int{
			attendance.StatusPresent: 0,
			attendance.StatusAbsent:  0,
			attendance.StatusLate:    0,
			attendance.StatusExcused: 0,
		},
	}, stats)

	other := testutil.CreateAttendance(t, f.attRepo, f.crs.ID, time.Date(2024, 3, 12, 0, 0, 0, 0, time.UTC), f.teacher.ID)
	for _, nd := range []attendance.NewDetail{
		{AttendanceID: f.session.ID, StudentID: f.ana.ID, Status: "Presente"},
		{AttendanceID: f.session.ID, StudentID: f.luis.ID, Status: "Tardanza"},
		{AttendanceID: other.ID, StudentID: f.ana.ID, Status: "Ausente"},
		{AttendanceID: other.ID, StudentID: f.luis.ID, Status: "Presente"},
	} {
		f.run(t, httpTest{method: http.MethodPost, path: "/api/attendance-details", token: f.teacherToken, body: nd, wantCode: http.StatusCreated})
	}

	rec = f.run(t, httpTest{path: path, token: f.teacherToken, wantCode: http.StatusOK})
	decodeData(t, rec, &stats)
	assert.Equal(t, 2, stats.TotalSessions)
	assert.Equal(t, 4, stats.TotalRecords)
	assert.Equal(t, 2, stats.ByStatus[attendance.StatusPresent])
	assert.Equal(t, 1, stats.ByStatus[attendance.StatusAbsent])
	assert.Equal(t, 0, stats.ByStatus[attendance.StatusExcused])
	assert.InDelta(t, .75, stats.AttendanceRate, 1e-9)

	f.run(t, httpTest{path: path, token: f.token(t, f.ana), wantCode: http.StatusForbidden})
	f.run(t, httpTest{path: path, wantCode: http.StatusUnauthorized})

	testutil.CreateUser(t, f.usrRepo, "90000000", "New Student", "", "", user.RoleStudent, true)
	rec = f.run(t, httpTest{path: path, token: f.teacherToken, wantCode: http.StatusOK})
	decodeData(t, rec, &stats)
	assert.Equal(t, 3, stats.TotalStudents)
}
