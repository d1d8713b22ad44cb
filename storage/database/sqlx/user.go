package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/spimentel1201/EduMF-sub001/core"
	"github.com/spimentel1201/EduMF-sub001/core/user"
)

const userColumns = `id, dni, name, email, role, is_active, password_hash, created_at, updated_at, last_login`

type (
	userRepository struct {
		db *sqlx.DB
	}

	userRow struct {
		ID           string      `db:"id"`
		DNI          string      `db:"dni"`
		Name         string      `db:"name"`
		Email        null.String `db:"email"`
		Role         string      `db:"role"`
		IsActive     bool        `db:"is_active"`
		PasswordHash []byte      `db:"password_hash"`
		CreatedAt    time.Time   `db:"created_at"`
		UpdatedAt    time.Time   `db:"updated_at"`
		LastLogin    null.Time   `db:"last_login"`
	}
)

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) user.Repository {
	return &userRepository{db: db}
}

func toUserRow(usr user.User) userRow {
	return userRow{
		ID:           usr.ID,
		DNI:          usr.DNI,
		Name:         usr.Name,
		Email:        null.NewString(usr.Email, usr.Email != ""),
		Role:         usr.Role,
		IsActive:     usr.IsActive,
		PasswordHash: usr.PasswordHash,
		CreatedAt:    usr.CreatedAt.UTC(),
		UpdatedAt:    usr.UpdatedAt.UTC(),
		LastLogin:    null.NewTime(usr.LastLogin.UTC(), !usr.LastLogin.IsZero()),
	}
}

func (r userRow) toUser() user.User {
	usr := user.User{
		ID:           r.ID,
		DNI:          r.DNI,
		Name:         r.Name,
		Email:        r.Email.String,
		Role:         r.Role,
		IsActive:     r.IsActive,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
	if r.LastLogin.Valid {
		usr.LastLogin = r.LastLogin.Time.UTC()
	}
	return usr
}

func (repo *userRepository) CheckUniqueness(ctx context.Context, dni, email string, excludedIDs ...string) error {
	var w where
	if email != "" {
		w.add("(dni = ? OR email = ?)", dni, email)
	} else {
		w.add("dni = ?", dni)
	}
	if len(excludedIDs) > 0 {
		w.add("id NOT IN (?)", excludedIDs)
	}

	q, args, err := sqlx.In(`SELECT dni, email FROM "user"`+w.String()+` LIMIT 1`, w.args...)
	if err != nil {
		return errors.Wrap(err, "building uniqueness query")
	}

	var row struct {
		DNI   string      `db:"dni"`
		Email null.String `db:"email"`
	}
	if err = repo.db.GetContext(ctx, &row, repo.db.Rebind(q), args...); err != nil {
		if err == sql.ErrNoRows {
			return nil
		}
		return errors.Wrap(err, "checking user uniqueness")
	}
	if row.DNI == dni {
		return user.ErrDNIExists
	}
	return user.ErrEmailExists
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	q := `INSERT INTO "user" (` + userColumns + `)
		VALUES (:id, :dni, :name, :email, :role, :is_active, :password_hash, :created_at, :updated_at, :last_login)`
	if _, err := repo.db.NamedExecContext(ctx, q, toUserRow(usr)); err != nil {
		return user.User{}, trapErr(err, "inserting user")
	}
	return usr, nil
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter user.QueryFilter, ordering ...core.DBOrdering) ([]user.User, error) {
	var w where
	// users with Name, DNI or Email matching the search keyword
	if filter.Search != "" {
		val := "%" + filter.Search + "%"
		w.add("(name ILIKE ? OR dni ILIKE ? OR email ILIKE ?)", val, val, val)
	}
	if filter.Role != "" {
		w.add("role = ?", filter.Role)
	}
	if filter.IsActive != nil {
		w.add("is_active = ?", *filter.IsActive)
	}

	q := `SELECT ` + userColumns + ` FROM "user"` + w.String() + orderBy(ordering, "created_at ASC")
	var rows []userRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), w.args...); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}

	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.toUser())
	}
	return users, nil
}

func (repo *userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	var w where
	switch {
	case filter.ID != "":
		if _, err := uuid.Parse(filter.ID); err != nil {
			return user.User{}, core.ErrNotFound
		}
		w.add("id = ?", filter.ID)
	case filter.DNI != "":
		w.add("dni = ?", filter.DNI)
	case filter.Email != "":
		w.add("email = ?", filter.Email)
	default:
		return user.User{}, core.ErrNotFound
	}

	var row userRow
	q := `SELECT ` + userColumns + ` FROM "user"` + w.String()
	if err := repo.db.GetContext(ctx, &row, repo.db.Rebind(q), w.args...); err != nil {
		return user.User{}, trapErr(err, "finding user")
	}
	return row.toUser(), nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	q := `UPDATE "user" SET dni = :dni, name = :name, email = :email, role = :role, is_active = :is_active,
		password_hash = :password_hash, updated_at = :updated_at, last_login = :last_login
		WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, toUserRow(usr))
	if err != nil {
		return user.User{}, trapErr(err, "updating user")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.User{}, core.ErrNotFound
	}
	return usr, nil
}

func (repo *userRepository) DeleteUsersByID(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	q, args, err := sqlx.In(`DELETE FROM "user" WHERE id IN (?)`, ids)
	if err != nil {
		return errors.Wrap(err, "building delete query")
	}
	if _, err = repo.db.ExecContext(ctx, repo.db.Rebind(q), args...); err != nil {
		return errors.Wrap(err, "deleting users")
	}
	return nil
}
