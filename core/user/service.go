package user

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/spimentel1201/EduMF-sub001/core"
)

var (
	// errors
	ErrDNIExists            = errors.New("a user with this DNI already exists")
	ErrEmailExists          = errors.New("a user with this email already exists")
	ErrAuthenticationFailed = errors.New("invalid credentials")
	ErrAccountDeactivated   = errors.New("account deactivated")

	nowFunc = time.Now // mockable
)

type (
	Repository interface {
		// CheckUniqueness returns ErrDNIExists or ErrEmailExists if another user (not in excludedIDs) uses them.
		CheckUniqueness(ctx context.Context, dni, email string, excludedIDs ...string) error
		CreateUser(ctx context.Context, usr User) (User, error)
		// QueryUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of User.Name, User.DNI or User.Email.
		QueryUsers(ctx context.Context, filter QueryFilter, ordering ...core.DBOrdering) ([]User, error)
		GetUser(ctx context.Context, filter GetFilter) (User, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
		DeleteUsersByID(ctx context.Context, ids ...string) error
	}

	Service struct {
		repo  Repository
		token *tokenGenerator
	}
)

func NewService(repo Repository, conf *core.Config) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(conf, "conf"),
		vala.StringNotEmpty(conf.SecretKey, "conf.SecretKey"),
	).CheckAndPanic()

	return &Service{
		repo:  repo,
		token: newTokenGenerator(conf.SecretKey, conf.QRCodeTimeoutDelta),
	}
}

func (svc *Service) checkUniqueness(ctx context.Context, dni, email string, excludedIDs ...string) error {
	if err := svc.repo.CheckUniqueness(ctx, dni, email, excludedIDs...); err != nil {
		var field string
		switch errors.Cause(err) {
		case ErrDNIExists:
			field = "dni"
		case ErrEmailExists:
			field = "email"
		default:
			return errors.Wrap(err, "checking uniqueness")
		}
		return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
	}
	return nil
}

// Create validates uniqueness and persists a new active User.
// nu must have been validated beforehand.
func (svc *Service) Create(ctx context.Context, nu NewUser) (User, error) {
	nu.Clean()
	if err := svc.checkUniqueness(ctx, nu.DNI, nu.Email); err != nil {
		return User{}, err
	}

	now := nowFunc().UTC()
	usr := User{
		ID:        uuid.New().String(),
		DNI:       nu.DNI,
		Name:      nu.Name,
		Email:     nu.Email,
		Role:      nu.Role,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}

	usr, err := svc.repo.CreateUser(ctx, usr)
	if err != nil {
		return User{}, errors.Wrap(err, "creating user")
	}
	return usr, nil
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter, ordering ...core.DBOrdering) ([]User, error) {
	filter.Clean()
	return svc.repo.QueryUsers(ctx, filter, core.MapOrderings(ordering, OrderingColumns)...)
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	if id == "" {
		return User{}, core.ErrNotFound
	}
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *Service) GetByDNI(ctx context.Context, dni string) (User, error) {
	dni = core.CleanString(dni)
	if dni == "" {
		return User{}, core.ErrNotFound
	}
	return svc.repo.GetUser(ctx, GetFilter{DNI: dni})
}

func (svc *Service) setLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = nowFunc().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *Service) login(ctx context.Context, usr User) (User, error) {
	if !usr.IsActive {
		return User{}, ErrAccountDeactivated
	}
	usr, err := svc.setLastLogin(ctx, usr)
	if err != nil {
		return User{}, errors.Wrap(err, "setting lastLogin")
	}
	return usr, nil
}

// Authenticate checks the DNI / password pair and stamps the User's last login.
func (svc *Service) Authenticate(ctx context.Context, dni, pwd string) (User, error) {
	usr, err := svc.GetByDNI(ctx, dni)
	if err != nil {
		if errors.Cause(err) == core.ErrNotFound {
			return User{}, ErrAuthenticationFailed
		}
		return User{}, errors.Wrap(err, "finding user by DNI")
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return User{}, ErrAuthenticationFailed
	}
	return svc.login(ctx, usr)
}

// AuthenticateQR checks QR login data as returned by QRCode and stamps the User's last login.
func (svc *Service) AuthenticateQR(ctx context.Context, qrData string) (User, error) {
	uid, token, err := splitQRData(qrData)
	if err != nil {
		return User{}, ErrAuthenticationFailed
	}
	usr, err := svc.GetByID(ctx, uid)
	if err != nil {
		if errors.Cause(err) == core.ErrNotFound {
			return User{}, ErrAuthenticationFailed
		}
		return User{}, errors.Wrap(err, "finding user by ID")
	}
	if err = svc.token.verify(usr, token); err != nil {
		return User{}, ErrAuthenticationFailed
	}
	return svc.login(ctx, usr)
}

// QRCode returns the data to encode in a User's QR login code.
func (svc *Service) QRCode(usr User) (string, error) {
	token, err := svc.token.make(usr)
	if err != nil {
		return "", errors.Wrap(err, "making token")
	}
	return joinQRData(usr, token), nil
}

// ResetPassword sets a new password on the User identified by dni.
func (svc *Service) ResetPassword(ctx context.Context, dni, pwd string) (User, error) {
	usr, err := svc.GetByDNI(ctx, dni)
	if err != nil {
		return User{}, errors.Wrap(err, "finding user by DNI")
	}
	if err = usr.SetPassword(pwd); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}
	usr.UpdatedAt = nowFunc().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *Service) Delete(ctx context.Context, ids ...string) error {
	return svc.repo.DeleteUsersByID(ctx, ids...)
}
