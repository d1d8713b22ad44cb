package client_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spimentel1201/EduMF-sub001/client"
	"github.com/spimentel1201/EduMF-sub001/core/attendance"
	"github.com/spimentel1201/EduMF-sub001/core/course"
	"github.com/spimentel1201/EduMF-sub001/core/user"
)

const baseURL = "http://edumf.test/api"

// fakeDoer records the requests it receives and answers with a canned response.
type fakeDoer struct {
	requests []rest.Request
	resp     *rest.Response
	err      error
}

func (d *fakeDoer) SendWithContext(_ context.Context, req rest.Request) (*rest.Response, error) {
	d.requests = append(d.requests, req)
	if d.err != nil {
		return nil, d.err
	}
	return d.resp, nil
}

func (d *fakeDoer) last(t *testing.T) rest.Request {
	require.Len(t, d.requests, 1, "exactly one request per call")
	return d.requests[0]
}

func enveloped(t *testing.T, code int, data interface{}) *rest.Response {
	body, err := json.Marshal(map[string]interface{}{"data": data})
	require.NoError(t, err)
	return &rest.Response{StatusCode: code, Body: string(body)}
}

func newClient(doer *fakeDoer, opts ...client.Option) *client.Client {
	return client.New(baseURL, append([]client.Option{client.WithDoer(doer)}, opts...)...)
}

func TestAuth(t *testing.T) {
	summary := user.Summary{ID: "u-1", Name: "Ana", Email: "ana@test.pe", Role: user.RoleStudent}
	loginResp := client.LoginResponse{Token: "jwt", User: summary}

	t.Run("login", func(t *testing.T) {
		doer := &fakeDoer{resp: enveloped(t, http.StatusOK, loginResp)}
		got, err := newClient(doer).Auth.Login(context.Background(), client.LoginRequest{DNI: "12345678", Password: "pwd"})
		require.NoError(t, err)
		assert.Equal(t, loginResp, got)

		req := doer.last(t)
		assert.Equal(t, rest.Post, req.Method)
		assert.Equal(t, baseURL+"/auth/login", req.BaseURL)
		assert.JSONEq(t, `{"dni":"12345678","password":"pwd"}`, string(req.Body))
		assert.NotContains(t, req.Headers, "Authorization")
	})

	t.Run("qr login", func(t *testing.T) {
		doer := &fakeDoer{resp: enveloped(t, http.StatusOK, loginResp)}
		got, err := newClient(doer).Auth.LoginWithQR(context.Background(), client.QRLoginRequest{QRData: "abc:def"})
		require.NoError(t, err)
		assert.Equal(t, loginResp, got)
		assert.Equal(t, baseURL+"/auth/qr-login", doer.last(t).BaseURL)
		assert.JSONEq(t, `{"qrData":"abc:def"}`, string(doer.last(t).Body))
	})

	t.Run("me", func(t *testing.T) {
		doer := &fakeDoer{resp: enveloped(t, http.StatusOK, user.User{ID: "u-1", DNI: "12345678", Name: "Ana"})}
		c := newClient(doer)
		c.SetToken("jwt")
		got, err := c.Auth.Me(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "u-1", got.ID)
		assert.Equal(t, "12345678", got.DNI)

		req := doer.last(t)
		assert.Equal(t, rest.Get, req.Method)
		assert.Equal(t, "Bearer jwt", req.Headers["Authorization"])
		assert.Nil(t, req.Body)
	})
}

func TestCourses(t *testing.T) {
	crs := course.Course{ID: 7, Code: "MAT101", Name: "Math"}
	nc := course.NewCourse{Code: "MAT101", Name: "Math"}

	tests := []struct {
		name       string
		call       func(c *client.Client) (interface{}, error)
		resp       *rest.Response
		want       interface{}
		wantMethod rest.Method
		wantURL    string
		wantQuery  map[string]string
	}{
		{
			name: "list",
			call: func(c *client.Client) (interface{}, error) {
				return c.Courses.List(context.Background(), client.CourseListOptions{Search: "ma", Ordering: []string{"-name", "id"}})
			},
			resp:       enveloped(t, http.StatusOK, []course.Course{crs}),
			want:       []course.Course{crs},
			wantMethod: rest.Get,
			wantURL:    baseURL + "/courses",
			wantQuery:  map[string]string{"search": "ma", "ordering": "-name,id"},
		},
		{
			name: "get",
			call: func(c *client.Client) (interface{}, error) {
				return c.Courses.Get(context.Background(), 7)
			},
			resp:       enveloped(t, http.StatusOK, crs),
			want:       crs,
			wantMethod: rest.Get,
			wantURL:    baseURL + "/courses/7",
		},
		{
			name: "create",
			call: func(c *client.Client) (interface{}, error) {
				return c.Courses.Create(context.Background(), nc)
			},
			resp:       enveloped(t, http.StatusCreated, crs),
			want:       crs,
			wantMethod: rest.Post,
			wantURL:    baseURL + "/courses",
		},
		{
			name: "update",
			call: func(c *client.Client) (interface{}, error) {
				return c.Courses.Update(context.Background(), 7, course.UpdateCourse(nc))
			},
			resp:       enveloped(t, http.StatusOK, crs),
			want:       crs,
			wantMethod: rest.Put,
			wantURL:    baseURL + "/courses/7",
		},
		{
			name: "delete",
			call: func(c *client.Client) (interface{}, error) {
				return nil, c.Courses.Delete(context.Background(), 7)
			},
			resp:       &rest.Response{StatusCode: http.StatusNoContent},
			wantMethod: rest.Delete,
			wantURL:    baseURL + "/courses/7",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doer := &fakeDoer{resp: tt.resp}
			got, err := tt.call(newClient(doer))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			req := doer.last(t)
			assert.Equal(t, tt.wantMethod, req.Method)
			assert.Equal(t, tt.wantURL, req.BaseURL)
			if tt.wantQuery != nil {
				assert.Equal(t, tt.wantQuery, req.QueryParams)
			}
		})
	}
}

func TestDashboard_GetDashboardStats(t *testing.T) {
	doer := &fakeDoer{resp: &rest.Response{
		StatusCode: http.StatusOK,
		Body:       `{"data":{"totalStudents":3,"attendanceRate":0.75}}`,
	}}
	got, err := newClient(doer).Dashboard.GetDashboardStats(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, `{"totalStudents":3,"attendanceRate":0.75}`, string(got))
	assert.Equal(t, baseURL+"/dashboard/stats", doer.last(t).BaseURL)
}

func TestAttendance(t *testing.T) {
	detail := attendance.Detail{ID: "d-1", AttendanceID: "a-1", StudentID: "s-1", Status: attendance.StatusAbsent}

	t.Run("create detail", func(t *testing.T) {
		doer := &fakeDoer{resp: enveloped(t, http.StatusCreated, detail)}
		got, err := newClient(doer).Attendance.CreateDetail(context.Background(), attendance.NewDetail{AttendanceID: "a-1", StudentID: "s-1", Status: "Ausente"})
		require.NoError(t, err)
		assert.Equal(t, detail, got)
		assert.Equal(t, rest.Post, doer.last(t).Method)
		assert.Equal(t, baseURL+"/attendance-details", doer.last(t).BaseURL)
	})

	t.Run("update detail", func(t *testing.T) {
		doer := &fakeDoer{resp: enveloped(t, http.StatusOK, detail)}
		notes := "sick"
		got, err := newClient(doer).Attendance.UpdateDetail(context.Background(), "d-1", attendance.UpdateDetail{Notes: &notes})
		require.NoError(t, err)
		assert.Equal(t, detail, got)
		assert.Equal(t, rest.Put, doer.last(t).Method)
		assert.Equal(t, baseURL+"/attendance-details/d-1", doer.last(t).BaseURL)
		assert.JSONEq(t, `{"status":null,"notes":"sick"}`, string(doer.last(t).Body))
	})

	t.Run("query details", func(t *testing.T) {
		doer := &fakeDoer{resp: enveloped(t, http.StatusOK, []attendance.Detail{detail})}
		got, err := newClient(doer).Attendance.QueryDetails(context.Background(), attendance.DetailFilter{Status: attendance.StatusAbsent, StudentID: "s-1"})
		require.NoError(t, err)
		assert.Equal(t, []attendance.Detail{detail}, got)
		assert.Equal(t, map[string]string{"status": "Ausente", "studentId": "s-1"}, doer.last(t).QueryParams)
	})
}

func TestErrors(t *testing.T) {
	t.Run("non-2xx", func(t *testing.T) {
		doer := &fakeDoer{resp: &rest.Response{StatusCode: http.StatusConflict, Body: `{"error":"duplicate"}`}}
		_, err := newClient(doer).Attendance.CreateDetail(context.Background(), attendance.NewDetail{})

		var apiErr *client.Error
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
		assert.Equal(t, `{"error":"duplicate"}`, apiErr.Body)
		assert.Len(t, doer.requests, 1, "no retry")
	})

	t.Run("transport error propagates unchanged", func(t *testing.T) {
		transportErr := errors.New("connection refused")
		doer := &fakeDoer{err: transportErr}
		_, err := newClient(doer).Courses.Get(context.Background(), 1)
		assert.Equal(t, transportErr, err)
	})

	t.Run("bad envelope", func(t *testing.T) {
		doer := &fakeDoer{resp: &rest.Response{StatusCode: http.StatusOK, Body: `not json`}}
		_, err := newClient(doer).Courses.Get(context.Background(), 1)
		assert.Error(t, err)
	})
}

func TestWithHTTPClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/courses/3", r.URL.Path)
		assert.Equal(t, "Bearer jwt", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"id":3,"code":"HIS","name":"History"}}`))
	}))
	defer srv.Close()

	c := client.New(srv.URL+"/api/", client.WithHTTPClient(srv.Client()), client.WithToken("jwt"))
	got, err := c.Courses.Get(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, 3, got.ID)
	assert.Equal(t, "History", got.Name)
}
