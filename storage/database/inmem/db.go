package inmemdb

import (
	"sync"
	"time"

	"github.com/spimentel1201/EduMF-sub001/core/attendance"
	"github.com/spimentel1201/EduMF-sub001/core/course"
	"github.com/spimentel1201/EduMF-sub001/core/user"
)

type (
	// DB is an in-memory store used by tests & local runs without PostgreSQL.
	// A single lock serializes writers, so multi-table writes are atomic.
	DB struct {
		mu  sync.RWMutex
		seq int64 // insertion order

		users       map[string]*userRow
		courses     map[int]*course.Course
		courseSeq   int
		enrollments map[enrollmentKey]time.Time
		attendances map[string]*attendanceRow
		details     map[string]*detailRow

		// unique index on (attendance_id, student_id)
		detailKeys map[detailKey]string
		// non-unique index on status
		statusIdx map[attendance.Status]map[string]struct{}
	}

	userRow struct {
		user.User
		seq int64
	}

	attendanceRow struct {
		attendance.Attendance
		seq int64
	}

	detailRow struct {
		attendance.Detail
		seq int64
	}

	enrollmentKey struct {
		courseID  int
		studentID string
	}

	detailKey struct {
		attendanceID string
		studentID    string
	}
)

func Open() *DB {
	return &DB{
		users:       make(map[string]*userRow),
		courses:     make(map[int]*course.Course),
		enrollments: make(map[enrollmentKey]time.Time),
		attendances: make(map[string]*attendanceRow),
		details:     make(map[string]*detailRow),
		detailKeys:  make(map[detailKey]string),
		statusIdx:   make(map[attendance.Status]map[string]struct{}),
	}
}

// nextSeq must be called with the write lock held.
func (db *DB) nextSeq() int64 {
	db.seq++
	return db.seq
}
