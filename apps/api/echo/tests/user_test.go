package tests

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/spimentel1201/EduMF-sub001/apps/api/echo"
	"github.com/spimentel1201/EduMF-sub001/core/course"
	"github.com/spimentel1201/EduMF-sub001/core/user"
	testutil "github.com/spimentel1201/EduMF-sub001/tests"
)

func newUser(dni, name, email, role string) user.NewUser {
	return user.NewUser{DNI: dni, Name: name, Email: email, Role: role, Password: strongPwd, PasswordConfirm: strongPwd}
}

func Test_userApi_create(t *testing.T) {
	a := setup(t)
	admin := testutil.CreateUser(t, a.usrRepo, "10000000", "Admin", "admin@edumf.test", "", user.RoleAdmin, true)
	student := testutil.CreateUser(t, a.usrRepo, "20000000", "Ana Quispe", "ana@edumf.test", "", user.RoleStudent, true)
	adminToken := a.token(t, admin)

	weak := newUser("30000001", "Weak Pwd", "", user.RoleStudent)
	weak.Password, weak.PasswordConfirm = "password", "password"

	tests := []struct {
		httpTest
		wantErr map[string]string
	}{
		{httpTest: httpTest{name: "auth required", body: newUser("30000000", "Luis", "", user.RoleStudent), wantCode: http.StatusUnauthorized}},
		{httpTest: httpTest{name: "admin required", token: a.token(t, student), body: newUser("30000000", "Luis", "", user.RoleStudent),
			wantCode: http.StatusForbidden}, wantErr: map[string]string{"error": "permission denied"}},
		{httpTest: httpTest{name: "invalid DNI", token: adminToken, body: newUser("123", "Luis", "", user.RoleStudent),
			wantCode: http.StatusBadRequest}, wantErr: map[string]string{"dni": "DNI must contain exactly 8 digits"}},
		{httpTest: httpTest{name: "invalid role", token: adminToken, body: newUser("30000000", "Luis", "", "janitor"),
			wantCode: http.StatusBadRequest}, wantErr: map[string]string{"role": "invalid role"}},
		{httpTest: httpTest{name: "weak password", token: adminToken, body: weak,
			wantCode: http.StatusBadRequest}, wantErr: map[string]string{"password": "password must contain at least 1 uppercase character, 1 lowercase character, 1 digit and 1 special character"}},
		{httpTest: httpTest{name: "DNI taken", token: adminToken, body: newUser(student.DNI, "Luis", "", user.RoleStudent),
			wantCode: http.StatusBadRequest}, wantErr: map[string]string{"dni": user.ErrDNIExists.Error()}},
		{httpTest: httpTest{name: "email taken", token: adminToken, body: newUser("30000000", "Luis", "ANA@edumf.test", user.RoleStudent),
			wantCode: http.StatusBadRequest}, wantErr: map[string]string{"email": user.ErrEmailExists.Error()}},
		{httpTest: httpTest{name: "created", token: adminToken, body: newUser("30000000", "Luis Huaman", "luis@edumf.test", user.RoleStudent),
			wantCode: http.StatusCreated}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.method = http.MethodPost
			tt.path = "/api/users"
			rec := a.run(t, tt.httpTest)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, decodeErr(t, rec))
			}
			if tt.wantCode != http.StatusCreated {
				return
			}

			var usr user.User
			decodeData(t, rec, &usr)
			assert.NotEmpty(t, usr.ID)
			assert.Equal(t, "30000000", usr.DNI)
			assert.True(t, usr.IsActive)

			// the new user can log in
			rec = a.do(t, http.MethodPost, "/api/auth/login", "", echoapi.LoginRequest{DNI: usr.DNI, Password: strongPwd})
			assert.Equal(t, http.StatusOK, rec.Code)
		})
	}
}

func Test_userApi_query(t *testing.T) {
	a := setup(t)
	now := time.Now()
	admin := testutil.CreateUser(t, a.usrRepo, "10000000", "Admin", "admin@edumf.test", "", user.RoleAdmin, true, now)
	teacher := testutil.CreateUser(t, a.usrRepo, "20000000", "Rosa Diaz", "rosa@edumf.test", "", user.RoleTeacher, true, now.Add(time.Second))
	ana := testutil.CreateUser(t, a.usrRepo, "30000000", "Ana Quispe", "ana@edumf.test", "", user.RoleStudent, true, now.Add(2*time.Second))
	eva := testutil.CreateUser(t, a.usrRepo, "40000000", "Eva Rojas", "", "", user.RoleStudent, false, now.Add(3*time.Second))
	adminToken := a.token(t, admin)

	path := func(params ...string) string {
		v := make(url.Values)
		for i := 0; i+1 < len(params); i += 2 {
			v.Add(params[i], params[i+1])
		}
		return "/api/users?" + v.Encode()
	}

	tests := []struct {
		name    string
		path    string
		wantIDs []string
	}{
		{name: "all", path: "/api/users", wantIDs: []string{admin.ID, teacher.ID, ana.ID, eva.ID}},
		{name: "role", path: path("role", "STUDENT"), wantIDs: []string{ana.ID, eva.ID}},
		{name: "search by name", path: path("search", "ROSA"), wantIDs: []string{teacher.ID}},
		{name: "search by DNI", path: path("search", "3000"), wantIDs: []string{ana.ID}},
		{name: "search unknown", path: path("search", "lol"), wantIDs: []string{}},
		{name: "isActive", path: path("isActive", "false"), wantIDs: []string{eva.ID}},
		{name: "combo", path: path("role", user.RoleStudent, "isActive", "true"), wantIDs: []string{ana.ID}},
		{name: "ordering", path: path("ordering", "-createdAt"), wantIDs: []string{eva.ID, ana.ID, teacher.ID, admin.ID}},
		{name: "ordering by name", path: path("ordering", "name"), wantIDs: []string{admin.ID, ana.ID, eva.ID, teacher.ID}},
		{name: "unknown ordering ignored", path: path("ordering", "password_hash"), wantIDs: []string{admin.ID, teacher.ID, ana.ID, eva.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := a.run(t, httpTest{path: tt.path, token: adminToken, wantCode: http.StatusOK})
			var users []user.User
			decodeData(t, rec, &users)

			ids := make([]string, 0, len(users))
			for _, u := range users {
				ids = append(ids, u.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}

	a.run(t, httpTest{path: "/api/users", token: a.token(t, teacher), wantCode: http.StatusForbidden})
}

func Test_userApi_retrieveAndDestroy(t *testing.T) {
	a := setup(t)
	admin := testutil.CreateUser(t, a.usrRepo, "10000000", "Admin", "", "", user.RoleAdmin, true)
	ana := testutil.CreateUser(t, a.usrRepo, "30000000", "Ana Quispe", "", "", user.RoleStudent, true)
	eva := testutil.CreateUser(t, a.usrRepo, "40000000", "Eva Rojas", "", "", user.RoleStudent, true)
	adminToken, anaToken := a.token(t, admin), a.token(t, ana)

	tests := []httpTest{
		{name: "self", path: "/api/users/" + ana.ID, token: anaToken, wantCode: http.StatusOK},
		{name: "other (not admin)", path: "/api/users/" + eva.ID, token: anaToken, wantCode: http.StatusNotFound},
		{name: "other (admin)", path: "/api/users/" + eva.ID, token: adminToken, wantCode: http.StatusOK},
		{name: "unknown", path: "/api/users/lol", token: adminToken, wantCode: http.StatusNotFound},
		{name: "qr-code (not admin)", path: "/api/users/" + ana.ID + "/qr-code", token: anaToken, wantCode: http.StatusForbidden},
		{name: "delete (not admin)", method: http.MethodDelete, path: "/api/users/" + ana.ID, token: anaToken, wantCode: http.StatusForbidden},
		{name: "delete self", method: http.MethodDelete, path: "/api/users/" + admin.ID, token: adminToken, wantCode: http.StatusForbidden},
		{name: "delete", method: http.MethodDelete, path: "/api/users/" + eva.ID, token: adminToken, wantCode: http.StatusNoContent},
		{name: "deleted", path: "/api/users/" + eva.ID, token: adminToken, wantCode: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a.run(t, tt)
		})
	}

	rec := a.run(t, httpTest{path: "/api/users/" + ana.ID + "/qr-code", token: adminToken, wantCode: http.StatusOK})
	var qr echoapi.QRCodeResponse
	decodeData(t, rec, &qr)
	usr, err := a.usrSvc.AuthenticateQR(context.Background(), qr.QRData)
	require.NoError(t, err)
	assert.Equal(t, ana.ID, usr.ID)
}

func Test_userApi_importCSV(t *testing.T) {
	a := setup(t)
	admin := testutil.CreateUser(t, a.usrRepo, "10000000", "Admin", "", "", user.RoleAdmin, true)
	testutil.CreateUser(t, a.usrRepo, "30000000", "Ana Quispe", "", "", user.RoleStudent, true)
	crs := testutil.CreateCourse(t, a.crsRepo, "MAT101", "Matematica", "")
	adminToken := a.token(t, admin)

	csvFile := []byte(
		"dni,name,email,role,password\n" +
			"50000000,Luis Huaman,luis@edumf.test,student," + strongPwd + "\n" +
			"30000000,Ana Again,,student," + strongPwd + "\n" + // DNI taken
			"60000000,Rosa Diaz,rosa@edumf.test,teacher," + strongPwd + "\n" +
			"70000000,Weak Pwd,,student,12345678\n" +
			"80000000,Too,Few\n" +
			"90000000,Eva Rojas,,STUDENT," + strongPwd + "\n",
	)

	rec := a.upload(t, "/api/users/import", adminToken, csvFile, map[string]string{"courseId": strconv.Itoa(crs.ID)})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var report echoapi.ImportReport
	decodeData(t, rec, &report)

	created := make([]string, 0, len(report.Created))
	for _, usr := range report.Created {
		created = append(created, usr.DNI)
	}
	assert.Equal(t, []string{"50000000", "60000000", "90000000"}, created)
	assert.Equal(t, crs.ID, report.EnrolledIn)
	assert.Equal(t, []echoapi.ImportLineError{
		{Line: 3, DNI: "30000000", Errors: map[string]string{"dni": user.ErrDNIExists.Error()}},
		{Line: 5, DNI: "70000000", Errors: map[string]string{"password": "password cannot be entirely numeric"}},
		{Line: 6, Errors: map[string]string{"line": "expected columns: dni,name,email,role,password"}},
	}, report.Errors)

	// only the created students are enrolled
	rec = a.run(t, httpTest{path: "/api/courses/" + strconv.Itoa(crs.ID) + "/students", token: adminToken, wantCode: http.StatusOK})
	var students []user.User
	decodeData(t, rec, &students)
	dnis := make([]string, 0, len(students))
	for _, s := range students {
		dnis = append(dnis, s.DNI)
	}
	assert.ElementsMatch(t, []string{"50000000", "90000000"}, dnis)

	t.Run("unknown course", func(t *testing.T) {
		rec := a.upload(t, "/api/users/import", adminToken, csvFile, map[string]string{"courseId": "999"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, map[string]string{"courseId": "course not found"}, decodeErr(t, rec))
	})
	t.Run("missing file", func(t *testing.T) {
		rec := a.upload(t, "/api/users/import", adminToken, nil, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

// brokenUsers fails to store the user with the given DNI.
type brokenUsers struct {
	user.Repository
	dni string
}

func (r brokenUsers) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	if usr.DNI == r.dni {
		return user.User{}, errors.New("connection reset")
	}
	return r.Repository.CreateUser(ctx, usr)
}

// brokenEnrollment fails every enrollment.
type brokenEnrollment struct {
	course.Repository
}

func (brokenEnrollment) EnrollStudents(context.Context, int, []string, time.Time) error {
	return errors.New("connection reset")
}

func Test_userApi_importCSV_storageFailures(t *testing.T) {
	a := setupWith(t, func(r *repos) {
		r.users = brokenUsers{Repository: r.users, dni: "40000000"}
		r.courses = brokenEnrollment{r.courses}
	})
	admin := testutil.CreateUser(t, a.usrRepo, "10000000", "Admin", "", "", user.RoleAdmin, true)
	crs := testutil.CreateCourse(t, a.crsRepo, "MAT101", "Matematica", "")
	adminToken := a.token(t, admin)

	csvFile := []byte(
		"40000000,Lost Write,,student," + strongPwd + "\n" +
			"50000000,Luis Huaman,,student," + strongPwd + "\n" +
			"60000000,Rosa Diaz,,teacher," + strongPwd + "\n",
	)

	rec := a.upload(t, "/api/users/import", adminToken, csvFile, map[string]string{"courseId": strconv.Itoa(crs.ID)})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var report echoapi.ImportReport
	decodeData(t, rec, &report)

	created := make([]string, 0, len(report.Created))
	for _, usr := range report.Created {
		created = append(created, usr.DNI)
	}
	assert.Equal(t, []string{"50000000", "60000000"}, created, "the import goes on after a failed line")
	assert.Zero(t, report.EnrolledIn)
	assert.Equal(t, []echoapi.ImportLineError{
		{Line: 1, DNI: "40000000", Errors: map[string]string{"line": "user could not be created"}},
		{Line: 2, DNI: "50000000", Errors: map[string]string{"courseId": "student could not be enrolled"}},
	}, report.Errors)

	_, err := a.usrSvc.GetByDNI(context.Background(), "50000000")
	assert.NoError(t, err, "created users are kept when enrollment fails")
}
