package user

import (
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/spimentel1201/EduMF-sub001/core"
)

// Roles
const (
	RoleAdmin   = "admin"
	RoleTeacher = "teacher"
	RoleStudent = "student"
)

var (
	AllRoles = []string{RoleAdmin, RoleTeacher, RoleStudent}

	rolePriorities = map[string]int{
		RoleAdmin:   30,
		RoleTeacher: 20,
		RoleStudent: 10,
	}

	Roles = []Role{
		{Name: "Student", Value: RoleStudent},
		{Name: "Teacher", Value: RoleTeacher},
		{Name: "Admin", Value: RoleAdmin},
	}
)

func RolePriority(role string) int {
	return rolePriorities[role]
}

type Role struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type User struct {
	ID           string    `json:"id"`
	DNI          string    `json:"dni"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Role         string    `json:"role"`
	IsActive     bool      `json:"isActive"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"` // UTC
	UpdatedAt    time.Time `json:"updatedAt"` // UTC
	LastLogin    time.Time `json:"lastLogin"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) IsAdmin() bool   { return u.Role == RoleAdmin }
func (u *User) IsTeacher() bool { return u.Role == RoleTeacher }
func (u *User) IsStudent() bool { return u.Role == RoleStudent }

// Summary is the public view of a User returned along with auth tokens.
type Summary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (u User) Summary() Summary {
	return Summary{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
}

// NewUser contains information needed to create a new User.
type NewUser struct {
	DNI             string `json:"dni" validate:"required,dni"`
	Name            string `json:"name" validate:"required,notblank"`
	Email           string `json:"email" validate:"omitempty,email"`
	Role            string `json:"role" validate:"required,role"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required,eqfield=Password"`
}

func (nu *NewUser) Clean() {
	nu.DNI = core.CleanString(nu.DNI)
	nu.Name = core.CleanString(nu.Name)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.Role = core.CleanString(nu.Role, true /* lower */)
}

func (nu *NewUser) Validate(validate *validator.Validate) error {
	nu.Clean()
	return validate.Struct(nu)
}

type QueryFilter struct {
	Search   string
	Role     string
	IsActive *bool
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Role = core.CleanString(qf.Role, true /* lower */)
}

// OrderingColumns maps the client-facing ordering fields to storage columns.
var OrderingColumns = map[string]string{
	"dni":       "dni",
	"name":      "name",
	"email":     "email",
	"role":      "role",
	"createdAt": "created_at",
	"lastLogin": "last_login",
}

// GetFilter selects a single User; the first non-empty field wins.
type GetFilter struct {
	ID    string
	DNI   string
	Email string
}
