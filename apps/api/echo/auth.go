package echoapi

import (
	"net/http"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/spimentel1201/EduMF-sub001/core"
	"github.com/spimentel1201/EduMF-sub001/core/user"
)

const (
	contextTokenKey = "userToken"
	contextUserKey  = "user"
	jwtAudience     = "EduMF"
)

var nowFunc = time.Now // mockable

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	OrigIssuedAt int64  `json:"oriat,omitempty"`
	Name         string `json:"name,omitempty"`
	Email        string `json:"email,omitempty"`
	Role         string `json:"role,omitempty"`
	IsStudent    bool   `json:"is_student,omitempty"`
	IsTeacher    bool   `json:"is_teacher,omitempty"`
	IsAdmin      bool   `json:"is_admin,omitempty"`
}

// auth issues & checks JWTs for the users of the API.
type auth struct {
	conf    *core.Config
	svc     *user.Service
	jwtConf middleware.JWTConfig
}

func newAuth(conf *core.Config, svc *user.Service) *auth {
	return &auth{
		conf: conf,
		svc:  svc,
		jwtConf: middleware.JWTConfig{
			SigningKey:    []byte(conf.SecretKey),
			SigningMethod: middleware.AlgorithmHS256,
			ContextKey:    contextTokenKey,
			Claims:        new(Claims),
		},
	}
}

func (a *auth) middleware() echo.MiddlewareFunc {
	return middleware.JWTWithConfig(a.jwtConf)
}

// UserClaims returns the Claims of a fresh token for usr.
// origIat is the issue time of the first token of the session, if this is a refresh.
func (a *auth) UserClaims(usr user.User, origIat ...int64) *Claims {
	now := nowFunc()
	nownix := now.Unix()

	oriat := nownix
	if len(origIat) > 0 {
		oriat = origIat[0]
	}

	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    a.conf.AppName,
			Subject:   usr.ID,
			Audience:  jwtAudience,
			ExpiresAt: now.Add(a.conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  nownix,
		},
		OrigIssuedAt: oriat,
		Name:         usr.Name,
		Email:        usr.Email,
		Role:         usr.Role,
		IsStudent:    usr.IsStudent(),
		IsTeacher:    usr.IsTeacher(),
		IsAdmin:      usr.IsAdmin(),
	}
}

// GenerateToken generates a signed JWT token string representing the user Claims.
func (a *auth) GenerateToken(claims *Claims) (string, error) {
	method := jwt.GetSigningMethod(a.jwtConf.SigningMethod)
	token := jwt.NewWithClaims(method, claims)

	ss, err := token.SignedString(a.jwtConf.SigningKey)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

func (a *auth) loginResponse(usr user.User) (LoginResponse, error) {
	token, err := a.GenerateToken(a.UserClaims(usr))
	if err != nil {
		return LoginResponse{}, err
	}
	return LoginResponse{Token: token, User: usr.Summary()}, nil
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(contextTokenKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

// getContextUser loads the authenticated User once per request.
func (a *auth) getContextUser(ctx echo.Context) (user.User, error) {
	if usr, ok := ctx.Get(contextUserKey).(user.User); ok {
		return usr, nil
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return user.User{}, err
	}
	usr, err := a.svc.GetByID(ctx.Request().Context(), claims.Subject)
	if err != nil {
		if errors.Cause(err) == core.ErrNotFound {
			return user.User{}, errUnauthorized
		}
		return user.User{}, errors.Wrap(err, "finding user by ID")
	}
	ctx.Set(contextUserKey, usr)
	return usr, nil
}

func (a *auth) refreshToken(ctx echo.Context) (LoginResponse, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return LoginResponse{}, err
	}
	usr, err := a.getContextUser(ctx)
	if err != nil {
		return LoginResponse{}, err
	}
	if !usr.IsActive {
		return LoginResponse{}, errAccountDeactivated
	}

	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(a.conf.Server.JWTRefreshExpirationDelta)
	if nowFunc().After(expTime) {
		return LoginResponse{}, errRefreshExpired
	}

	token, err := a.GenerateToken(a.UserClaims(usr, claims.OrigIssuedAt))
	if err != nil {
		return LoginResponse{}, err
	}
	return LoginResponse{Token: token, User: usr.Summary()}, nil
}

type authApi struct {
	*auth
	throttler core.Throttler
	validate  *validator.Validate
	logger    core.Logger
}

func registerAuthAPI(g *echo.Group, a *auth, throttler core.Throttler, validate *validator.Validate, logger core.Logger) {
	api := authApi{
		auth:      a,
		throttler: throttler,
		validate:  validate,
		logger:    logger,
	}

	ag := g.Group("/auth")

	// un-authed endpoints
	ag.POST("/login", api.login)
	ag.POST("/qr-login", api.qrLogin)

	// authed endpoints
	jwt := a.middleware()
	ag.GET("/me", api.me, jwt)
	ag.POST("/token-refresh", api.refresh, jwt)
}

// Handlers

func (api *authApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	return api.throttled(ctx, "login:"+data.DNI, func() (user.User, error) {
		return api.svc.Authenticate(ctx.Request().Context(), data.DNI, data.Password)
	})
}

func (api *authApi) qrLogin(ctx echo.Context) error {
	var data QRLoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to QRLoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	return api.throttled(ctx, "qr-login:"+ctx.RealIP(), func() (user.User, error) {
		return api.svc.AuthenticateQR(ctx.Request().Context(), data.QRData)
	})
}

// throttled runs authenticate unless key ran out of attempts; failures count against key.
func (api *authApi) throttled(ctx echo.Context, key string, authenticate func() (user.User, error)) error {
	c := ctx.Request().Context()
	allowed, err := api.throttler.Allowed(c, key)
	if err != nil {
		return errors.Wrap(err, "checking login attempts")
	}
	if !allowed {
		return errTooManyAttempts
	}

	usr, err := authenticate()
	if err != nil {
		switch errors.Cause(err) {
		case user.ErrAuthenticationFailed:
			if fErr := api.throttler.Fail(c, key); fErr != nil {
				api.logger.Error("recording failed login attempt", fErr)
			}
			return errAuthenticationFailed
		case user.ErrAccountDeactivated:
			return errAccountDeactivated
		}
		return errors.Wrap(err, "authenticating")
	}
	if err = api.throttler.Reset(c, key); err != nil {
		api.logger.Error("resetting login attempts", err)
	}

	resp, err := api.loginResponse(usr)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return respond(ctx, http.StatusOK, resp)
}

func (api *authApi) me(ctx echo.Context) error {
	usr, err := api.getContextUser(ctx)
	if err != nil {
		return err
	}
	return respond(ctx, http.StatusOK, usr)
}

func (api *authApi) refresh(ctx echo.Context) error {
	resp, err := api.refreshToken(ctx)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	return respond(ctx, http.StatusOK, resp)
}

type (
	LoginRequest struct {
		DNI      string `json:"dni" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	QRLoginRequest struct {
		QRData string `json:"qrData" validate:"required"`
	}

	LoginResponse struct {
		Token string       `json:"token"`
		User  user.Summary `json:"user"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.DNI = core.CleanString(lr.DNI)
	return validate.Struct(lr)
}

func (qr *QRLoginRequest) Validate(validate *validator.Validate) error {
	qr.QRData = core.CleanString(qr.QRData)
	return validate.Struct(qr)
}
