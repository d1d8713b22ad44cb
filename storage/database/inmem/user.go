package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/spimentel1201/EduMF-sub001/core"
	"github.com/spimentel1201/EduMF-sub001/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db}
}

// query must be called with the lock held.
func (repo *userRepository) query() []*userRow {
	rows := make([]*userRow, 0, len(repo.db.users))
	for _, u := range repo.db.users {
		rows = append(rows, u)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })
	return rows
}

func (repo *userRepository) CheckUniqueness(_ context.Context, dni, email string, excludedIDs ...string) error {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return repo.checkUniqueness(dni, email, excludedIDs...)
}

func (repo *userRepository) checkUniqueness(dni, email string, excludedIDs ...string) error {
	sort.Strings(excludedIDs)
	for _, row := range repo.query() {
		if isExcluded(row.ID, excludedIDs) {
			continue
		}
		if row.DNI == dni {
			return user.ErrDNIExists
		}
		if email != "" && row.Email == email {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if err := repo.checkUniqueness(usr.DNI, usr.Email); err != nil {
		return user.User{}, core.NewConstraintError("user_dni_email_key", err)
	}
	repo.db.users[usr.ID] = &userRow{User: usr, seq: repo.db.nextSeq()}
	return usr, nil
}

func (repo *userRepository) QueryUsers(_ context.Context, filter user.QueryFilter, ordering ...core.DBOrdering) ([]user.User, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	search := strings.ToLower(filter.Search)
	users := make([]user.User, 0)
	for _, row := range repo.query() {
		if search != "" &&
			!strings.Contains(strings.ToLower(row.Name), search) &&
			!strings.Contains(row.DNI, search) &&
			!strings.Contains(strings.ToLower(row.Email), search) {
			continue
		}
		if filter.Role != "" && row.Role != filter.Role {
			continue
		}
		if filter.IsActive != nil && row.IsActive != *filter.IsActive {
			continue
		}
		users = append(users, row.User)
	}

	if len(ordering) > 0 {
		sort.SliceStable(users, func(i, j int) bool {
			for _, ord := range ordering {
				a, b := userColumn(users[i], ord.Field), userColumn(users[j], ord.Field)
				if a == b {
					continue
				}
				return (a < b) == ord.Ascending
			}
			return false
		})
	}
	return users, nil
}

func userColumn(usr user.User, col string) string {
	switch col {
	case "dni":
		return usr.DNI
	case "name":
		return strings.ToLower(usr.Name)
	case "email":
		return usr.Email
	case "role":
		return usr.Role
	case "created_at":
		return usr.CreatedAt.Format("20060102150405.000000000")
	case "last_login":
		return usr.LastLogin.Format("20060102150405.000000000")
	}
	return ""
}

func (repo *userRepository) GetUser(_ context.Context, filter user.GetFilter) (user.User, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if filter.ID != "" {
		if row, ok := repo.db.users[filter.ID]; ok {
			return row.User, nil
		}
		return user.User{}, core.ErrNotFound
	}
	for _, row := range repo.query() {
		if (filter.DNI != "" && row.DNI == filter.DNI) || (filter.Email != "" && row.Email == filter.Email) {
			return row.User, nil
		}
	}
	return user.User{}, core.ErrNotFound
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	row, ok := repo.db.users[usr.ID]
	if !ok {
		return user.User{}, core.ErrNotFound
	}
	if err := repo.checkUniqueness(usr.DNI, usr.Email, usr.ID); err != nil {
		return user.User{}, core.NewConstraintError("user_dni_email_key", err)
	}
	row.User = usr
	return usr, nil
}

func (repo *userRepository) DeleteUsersByID(_ context.Context, ids ...string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, id := range ids {
		delete(repo.db.users, id)
		repo.db.cascadeUser(id)
	}
	return nil
}

// cascadeUser drops the rows referencing user id. Must be called with the write lock held.
func (db *DB) cascadeUser(id string) {
	for key := range db.enrollments {
		if key.studentID == id {
			delete(db.enrollments, key)
		}
	}
	for _, crs := range db.courses {
		if crs.TeacherID == id {
			crs.TeacherID = ""
		}
	}
	for _, att := range db.attendances {
		if att.TakenBy == id {
			att.TakenBy = ""
		}
	}
	for detailID, d := range db.details {
		if d.StudentID == id {
			db.deleteDetail(detailID)
		}
	}
}

func isExcluded(id string, excludedIDs []string) bool {
	n := len(excludedIDs)
	if n == 0 {
		return false
	}
	idx := sort.SearchStrings(excludedIDs, id)
	return idx < n && excludedIDs[idx] == id
}
