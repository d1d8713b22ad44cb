package client

import (
	"context"

	"github.com/sendgrid/rest"

	"github.com/spimentel1201/EduMF-sub001/core/attendance"
)

type AttendanceService struct {
	client *Client
}

func (s *AttendanceService) CreateDetail(ctx context.Context, nd attendance.NewDetail) (attendance.Detail, error) {
	var d attendance.Detail
	err := s.client.call(ctx, rest.Post, "/attendance-details", nil, nd, &d)
	return d, err
}

func (s *AttendanceService) UpdateDetail(ctx context.Context, id string, ud attendance.UpdateDetail) (attendance.Detail, error) {
	var d attendance.Detail
	err := s.client.call(ctx, rest.Put, "/attendance-details/"+id, nil, ud, &d)
	return d, err
}

func (s *AttendanceService) QueryDetails(ctx context.Context, filter attendance.DetailFilter) ([]attendance.Detail, error) {
	q := make(map[string]string)
	if filter.Status != "" {
		q["status"] = string(filter.Status)
	}
	if filter.AttendanceID != "" {
		q["attendanceId"] = filter.AttendanceID
	}
	if filter.StudentID != "" {
		q["studentId"] = filter.StudentID
	}

	var details []attendance.Detail
	err := s.client.call(ctx, rest.Get, "/attendance-details", q, nil, &details)
	return details, err
}
