package client

import (
	"context"
	"strconv"
	"strings"

	"github.com/sendgrid/rest"

	"github.com/spimentel1201/EduMF-sub001/core/course"
)

type CourseService struct {
	client *Client
}

// CourseListOptions narrows Courses.List; Ordering fields may be prefixed by "-" for descending order.
type CourseListOptions struct {
	Search    string
	TeacherID string
	Ordering  []string
}

func (o CourseListOptions) query() map[string]string {
	q := make(map[string]string)
	if o.Search != "" {
		q["search"] = o.Search
	}
	if o.TeacherID != "" {
		q["teacherId"] = o.TeacherID
	}
	if len(o.Ordering) > 0 {
		q["ordering"] = strings.Join(o.Ordering, ",")
	}
	return q
}

func coursePath(id int) string {
	return "/courses/" + strconv.Itoa(id)
}

func (s *CourseService) List(ctx context.Context, opts CourseListOptions) ([]course.Course, error) {
	var courses []course.Course
	err := s.client.call(ctx, rest.Get, "/courses", opts.query(), nil, &courses)
	return courses, err
}

func (s *CourseService) Get(ctx context.Context, id int) (course.Course, error) {
	var crs course.Course
	err := s.client.call(ctx, rest.Get, coursePath(id), nil, nil, &crs)
	return crs, err
}

func (s *CourseService) Create(ctx context.Context, nc course.NewCourse) (course.Course, error) {
	var crs course.Course
	err := s.client.call(ctx, rest.Post, "/courses", nil, nc, &crs)
	return crs, err
}

func (s *CourseService) Update(ctx context.Context, id int, uc course.UpdateCourse) (course.Course, error) {
	var crs course.Course
	err := s.client.call(ctx, rest.Put, coursePath(id), nil, uc, &crs)
	return crs, err
}

func (s *CourseService) Delete(ctx context.Context, id int) error {
	return s.client.call(ctx, rest.Delete, coursePath(id), nil, nil, nil)
}
