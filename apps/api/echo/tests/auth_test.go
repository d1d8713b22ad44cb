package tests

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/spimentel1201/EduMF-sub001/apps/api/echo"
	"github.com/spimentel1201/EduMF-sub001/core/user"
	testutil "github.com/spimentel1201/EduMF-sub001/tests"
)

func Test_authApi_login(t *testing.T) {
	a := setup(t)
	teacher := testutil.CreateUser(t, a.usrRepo, "12345678", "Rosa Diaz", "rosa@edumf.test", strongPwd, user.RoleTeacher, true)
	testutil.CreateUser(t, a.usrRepo, "87654321", "N Dog", "", strongPwd, user.RoleStudent, false)

	tests := []struct {
		name     string
		body     interface{}
		wantCode int
		wantErr  map[string]string
	}{
		{name: "missing fields", body: echoapi.LoginRequest{}, wantCode: http.StatusBadRequest,
			wantErr: map[string]string{"dni": "this field is required", "password": "this field is required"}},
		{name: "unknown DNI", body: echoapi.LoginRequest{DNI: "00000000", Password: strongPwd}, wantCode: http.StatusUnauthorized,
			wantErr: map[string]string{"error": "invalid credentials"}},
		{name: "wrong password", body: echoapi.LoginRequest{DNI: teacher.DNI, Password: "lol"}, wantCode: http.StatusUnauthorized,
			wantErr: map[string]string{"error": "invalid credentials"}},
		{name: "deactivated", body: echoapi.LoginRequest{DNI: "87654321", Password: strongPwd}, wantCode: http.StatusForbidden,
			wantErr: map[string]string{"error": "account deactivated"}},
		{name: "success", body: echoapi.LoginRequest{DNI: " " + teacher.DNI + " ", Password: strongPwd}, wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := a.run(t, httpTest{method: http.MethodPost, path: "/api/auth/login", body: tt.body, wantCode: tt.wantCode})
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, decodeErr(t, rec))
				return
			}

			var resp echoapi.LoginResponse
			decodeData(t, rec, &resp)
			assert.NotEmpty(t, resp.Token)
			assert.Equal(t, teacher.Summary(), resp.User)

			usr, err := a.usrSvc.GetByID(context.Background(), teacher.ID)
			require.NoError(t, err)
			assert.False(t, usr.LastLogin.IsZero(), "lastLogin must be stamped")
		})
	}
}

func Test_authApi_loginThrottled(t *testing.T) {
	a := setup(t)
	usr := testutil.CreateUser(t, a.usrRepo, "12345678", "Rosa Diaz", "", strongPwd, user.RoleTeacher, true)

	login := func(pwd string) int {
		return a.do(t, http.MethodPost, "/api/auth/login", "", echoapi.LoginRequest{DNI: usr.DNI, Password: pwd}).Code
	}

	for i := 0; i < a.conf.LoginMaxAttempts; i++ {
		assert.Equal(t, http.StatusUnauthorized, login("wrong"))
	}
	assert.Equal(t, http.StatusTooManyRequests, login(strongPwd), "good credentials are refused once throttled")

	// other DNIs are not affected
	other := testutil.CreateUser(t, a.usrRepo, "11112222", "Luis Huaman", "", strongPwd, user.RoleTeacher, true)
	rec := a.do(t, http.MethodPost, "/api/auth/login", "", echoapi.LoginRequest{DNI: other.DNI, Password: strongPwd})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func Test_authApi_qrLogin(t *testing.T) {
	a := setup(t)
	student := testutil.CreateUser(t, a.usrRepo, "12345678", "Ana Quispe", "", "", user.RoleStudent, true)
	qrData, err := a.usrSvc.QRCode(student)
	require.NoError(t, err)

	rec := a.run(t, httpTest{method: http.MethodPost, path: "/api/auth/qr-login",
		body: echoapi.QRLoginRequest{QRData: qrData}, wantCode: http.StatusOK})
	var resp echoapi.LoginResponse
	decodeData(t, rec, &resp)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, student.ID, resp.User.ID)

	tests := []httpTest{
		{name: "missing", body: echoapi.QRLoginRequest{}, wantCode: http.StatusBadRequest},
		{name: "garbage", body: echoapi.QRLoginRequest{QRData: "lol"}, wantCode: http.StatusUnauthorized},
		{name: "tampered", body: echoapi.QRLoginRequest{QRData: qrData + "x"}, wantCode: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.method = http.MethodPost
			tt.path = "/api/auth/qr-login"
			a.run(t, tt)
		})
	}
}

func Test_authApi_me(t *testing.T) {
	a := setup(t)
	usr := testutil.CreateUser(t, a.usrRepo, "12345678", "Ana Quispe", "ana@edumf.test", "", user.RoleStudent, true)

	rec := a.run(t, httpTest{path: "/api/auth/me", wantCode: http.StatusUnauthorized})
	assert.Equal(t, errMissingToken.Error, decodeErr(t, rec)["error"])

	a.run(t, httpTest{path: "/api/auth/me", token: "not.a.jwt", wantCode: http.StatusUnauthorized})

	rec = a.run(t, httpTest{path: "/api/auth/me", token: a.token(t, usr), wantCode: http.StatusOK})
	var got user.User
	decodeData(t, rec, &got)
	assert.Equal(t, usr.ID, got.ID)
	assert.Equal(t, usr.DNI, got.DNI)
	assert.NotContains(t, rec.Body.String(), "password", "password hash must never be serialized")
}

func Test_authApi_refresh(t *testing.T) {
	a := setup(t)
	usr := testutil.CreateUser(t, a.usrRepo, "12345678", "Rosa Diaz", "", "", user.RoleTeacher, true)

	// token whose session started before the refresh window
	signed := func(origIat time.Time) string {
		now := time.Now()
		claims := &echoapi.Claims{
			StandardClaims: jwt.StandardClaims{
				Subject:   usr.ID,
				ExpiresAt: now.Add(time.Hour).Unix(),
				IssuedAt:  now.Unix(),
			},
			OrigIssuedAt: origIat.Unix(),
			Role:         usr.Role,
			IsTeacher:    true,
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(a.conf.SecretKey))
		require.NoError(t, err)
		return token
	}

	rec := a.run(t, httpTest{method: http.MethodPost, path: "/api/auth/token-refresh", token: a.token(t, usr), wantCode: http.StatusOK})
	var resp echoapi.LoginResponse
	decodeData(t, rec, &resp)
	assert.NotEmpty(t, resp.Token)

	expired := signed(time.Now().Add(-a.conf.Server.JWTRefreshExpirationDelta - time.Minute))
	rec = a.run(t, httpTest{method: http.MethodPost, path: "/api/auth/token-refresh", token: expired, wantCode: http.StatusForbidden})
	assert.Equal(t, "refresh has expired", decodeErr(t, rec)["error"])

	a.run(t, httpTest{method: http.MethodPost, path: "/api/auth/token-refresh", wantCode: http.StatusUnauthorized})
}
