package tests

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	echoapi "github.com/spimentel1201/EduMF-sub001/apps/api/echo"
	"github.com/spimentel1201/EduMF-sub001/core"
	"github.com/spimentel1201/EduMF-sub001/core/attendance"
	"github.com/spimentel1201/EduMF-sub001/core/course"
	"github.com/spimentel1201/EduMF-sub001/core/dashboard"
	"github.com/spimentel1201/EduMF-sub001/core/user"
	emailsvc "github.com/spimentel1201/EduMF-sub001/services/email"
	throttlesvc "github.com/spimentel1201/EduMF-sub001/services/throttle"
	inmemdb "github.com/spimentel1201/EduMF-sub001/storage/database/inmem"
	testutil "github.com/spimentel1201/EduMF-sub001/tests"
)

const strongPwd = "Qu!ck-Brown7"

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type app struct {
	server  *echoapi.Server
	conf    *core.Config
	usrRepo user.Repository
	crsRepo course.Repository
	attRepo attendance.Repository
	usrSvc  *user.Service
	mailSvc *emailsvc.ConsoleServiceMock
}

// repos are the stores a test may swap before the Server is wired.
type repos struct {
	users   user.Repository
	courses course.Repository
}

// setup wires a Server to a fresh in-memory database.
func setup(t *testing.T) app {
	t.Helper()
	return setupWith(t, nil)
}

// setupWith is setup with the stores passed through wrap first.
func setupWith(t *testing.T, wrap func(*repos)) app {
	t.Helper()
	conf := testutil.NewConfig()
	logger := testutil.NewLogger(conf)
	validate, translator := testutil.NewValidate()

	db := inmemdb.Open()
	r := repos{users: inmemdb.NewUserRepository(db), courses: inmemdb.NewCourseRepository(db)}
	if wrap != nil {
		wrap(&r)
	}
	usrRepo, crsRepo := r.users, r.courses
	attRepo := inmemdb.NewAttendanceRepository(db)

	mailSvc := emailsvc.NewConsoleServiceMock(conf, logger)
	usrSvc := user.NewService(usrRepo, conf)
	crsSvc := course.NewService(crsRepo, usrSvc)

	server := echoapi.NewServer(echoapi.ServerDeps{
		Conf:          conf,
		Logger:        logger,
		UserSvc:       usrSvc,
		CourseSvc:     crsSvc,
		AttendanceSvc: attendance.NewService(attRepo, usrSvc, crsSvc, mailSvc, logger),
		DashboardSvc:  dashboard.NewService(inmemdb.NewDashboardRepository(db)),
		Throttler:     throttlesvc.NewMemoryThrottler(conf.LoginMaxAttempts, conf.LoginAttemptWindow),
		Validate:      validate,
		Translator:    translator,
	})

	return app{
		server:  server,
		conf:    conf,
		usrRepo: usrRepo,
		crsRepo: crsRepo,
		attRepo: attRepo,
		usrSvc:  usrSvc,
		mailSvc: mailSvc,
	}
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     interface{}
	token    string
	wantCode int
}

func (a app) token(t *testing.T, usr user.User) string {
	t.Helper()
	token, err := a.server.Token(usr)
	require.NoError(t, err)
	return token
}

func (a app) serve(req *http.Request, token string) *httptest.ResponseRecorder {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.server.ServeHTTP(rec, req)
	return rec
}

// do sends body (if any) JSON-encoded.
func (a app) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return a.serve(req, token)
}

func (a app) run(t *testing.T, tt httpTest) *httptest.ResponseRecorder {
	t.Helper()
	method := tt.method
	if method == "" {
		method = http.MethodGet
	}
	rec := a.do(t, method, tt.path, tt.token, tt.body)
	require.Equalf(t, tt.wantCode, rec.Code, "body: %s", rec.Body.String())
	return rec
}

// upload posts a multipart form holding a `file` part plus the given fields.
func (a app) upload(t *testing.T, path, token string, file []byte, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if file != nil {
		part, err := w.CreateFormFile("file", "users.csv")
		require.NoError(t, err)
		_, err = io.Copy(part, bytes.NewReader(file))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return a.serve(req, token)
}

// decodeData unwraps the response envelope into v.
func decodeData(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	require.NotNilf(t, env.Data, "missing data envelope: %s", rec.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, v))
}

func decodeErr(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}
