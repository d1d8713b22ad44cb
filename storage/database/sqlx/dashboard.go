package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/spimentel1201/EduMF-sub001/core/attendance"
	"github.com/spimentel1201/EduMF-sub001/core/dashboard"
)

type dashboardRepository struct {
	db *sqlx.DB
}

var _ dashboard.Repository = (*dashboardRepository)(nil) // interface compliance check

func NewDashboardRepository(db *sqlx.DB) dashboard.Repository {
	return &dashboardRepository{db: db}
}

func (repo *dashboardRepository) count(ctx context.Context, q string, args ...interface{}) (int, error) {
	var n int
	if err := repo.db.GetContext(ctx, &n, q, args...); err != nil {
		return 0, errors.Wrap(err, "counting rows")
	}
	return n, nil
}

func (repo *dashboardRepository) CountUsersByRole(ctx context.Context, role string) (int, error) {
	return repo.count(ctx, `SELECT COUNT(*) FROM "user" WHERE role = $1`, role)
}

func (repo *dashboardRepository) CountCourses(ctx context.Context) (int, error) {
	return repo.count(ctx, `SELECT COUNT(*) FROM course`)
}

func (repo *dashboardRepository) CountAttendances(ctx context.Context) (int, error) {
	return repo.count(ctx, `SELECT COUNT(*) FROM attendance`)
}

func (repo *dashboardRepository) CountDetailsByStatus(ctx context.Context) (map[attendance.Status]int, error) {
	var rows []struct {
		Status string `db:"status"`
		Total  int    `db:"total"`
	}
	q := `SELECT status, COUNT(*) AS total FROM attendance_detail GROUP BY status`
	if err := repo.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, errors.Wrap(err, "counting attendance details")
	}

	counts := make(map[attendance.Status]int, len(rows))
	for _, r := range rows {
		counts[attendance.Status(r.Status)] = r.Total
	}
	return counts, nil
}
