package inmemdb

import (
	"context"

	"github.com/spimentel1201/EduMF-sub001/core/attendance"
	"github.com/spimentel1201/EduMF-sub001/core/dashboard"
)

type dashboardRepository struct {
	db *DB
}

var _ dashboard.Repository = (*dashboardRepository)(nil) // interface compliance check

func NewDashboardRepository(db *DB) dashboard.Repository {
	return &dashboardRepository{db: db}
}

func (repo *dashboardRepository) CountUsersByRole(_ context.Context, role string) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var n int
	for _, row := range repo.db.users {
		if row.Role == role {
			n++
		}
	}
	return n, nil
}

func (repo *dashboardRepository) CountCourses(context.Context) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return len(repo.db.courses), nil
}

func (repo *dashboardRepository) CountAttendances(context.Context) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return len(repo.db.attendances), nil
}

func (repo *dashboardRepository) CountDetailsByStatus(context.Context) (map[attendance.Status]int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	counts := make(map[attendance.Status]int, len(repo.db.statusIdx))
	for status, ids := range repo.db.statusIdx {
		counts[status] = len(ids)
	}
	return counts, nil
}
