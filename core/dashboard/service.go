package dashboard

import (
	"context"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/spimentel1201/EduMF-sub001/core/attendance"
	"github.com/spimentel1201/EduMF-sub001/core/user"
)

type (
	Repository interface {
		CountUsersByRole(ctx context.Context, role string) (int, error)
		CountCourses(ctx context.Context) (int, error)
		CountAttendances(ctx context.Context) (int, error)
		// CountDetailsByStatus counts attendance details per status; missing statuses count 0.
		CountDetailsByStatus(ctx context.Context) (map[attendance.Status]int, error)
	}

	// Stats is the aggregate payload of the dashboard.
	Stats struct {
		TotalStudents  int                       `json:"totalStudents"`
		TotalTeachers  int                       `json:"totalTeachers"`
		TotalCourses   int                       `json:"totalCourses"`
		TotalSessions  int                       `json:"totalSessions"`
		TotalRecords   int                       `json:"totalRecords"`
		ByStatus       map[attendance.Status]int `json:"byStatus"`
		AttendanceRate float64                   `json:"attendanceRate"` // (Presente + Tardanza) / TotalRecords
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
	).CheckAndPanic()

	return &Service{repo: repo}
}

func (svc *Service) Stats(ctx context.Context) (Stats, error) {
	var (
		stats Stats
		err   error
	)
	if stats.TotalStudents, err = svc.repo.CountUsersByRole(ctx, user.RoleStudent); err != nil {
		return Stats{}, errors.Wrap(err, "counting students")
	}
	if stats.TotalTeachers, err = svc.repo.CountUsersByRole(ctx, user.RoleTeacher); err != nil {
		return Stats{}, errors.Wrap(err, "counting teachers")
	}
	if stats.TotalCourses, err = svc.repo.CountCourses(ctx); err != nil {
		return Stats{}, errors.Wrap(err, "counting courses")
	}
	if stats.TotalSessions, err = svc.repo.CountAttendances(ctx); err != nil {
		return Stats{}, errors.Wrap(err, "counting attendances")
	}

	counts, err := svc.repo.CountDetailsByStatus(ctx)
	if err != nil {
		return Stats{}, errors.Wrap(err, "counting attendance details")
	}
	stats.ByStatus = make(map[attendance.Status]int, len(attendance.AllStatuses))
	for _, status := range attendance.AllStatuses {
		stats.ByStatus[status] = counts[status]
		stats.TotalRecords += counts[status]
	}
	if stats.TotalRecords > 0 {
		attended := stats.ByStatus[attendance.StatusPresent] + stats.ByStatus[attendance.StatusLate]
		stats.AttendanceRate = float64(attended) / float64(stats.TotalRecords)
	}
	return stats, nil
}
