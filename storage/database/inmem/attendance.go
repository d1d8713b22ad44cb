package inmemdb

import (
	"context"
	"sort"

	"github.com/pkg/errors"

	"github.com/spimentel1201/EduMF-sub001/core"
	"github.com/spimentel1201/EduMF-sub001/core/attendance"
)

var errDetailExists = errors.New("attendance already recorded for this student")

type attendanceRepository struct {
	db *DB
}

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(db *DB) attendance.Repository {
	return &attendanceRepository{db: db}
}

func (repo *attendanceRepository) CreateAttendance(_ context.Context, att attendance.Attendance) (attendance.Attendance, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.courses[att.CourseID]; !ok {
		return attendance.Attendance{}, core.ErrNotFound
	}
	repo.db.attendances[att.ID] = &attendanceRow{Attendance: att, seq: repo.db.nextSeq()}
	return att, nil
}

func (repo *attendanceRepository) GetAttendance(_ context.Context, id string) (attendance.Attendance, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if row, ok := repo.db.attendances[id]; ok {
		return row.Attendance, nil
	}
	return attendance.Attendance{}, core.ErrNotFound
}

// QueryAttendances returns the most recent sessions first.
func (repo *attendanceRepository) QueryAttendances(_ context.Context, filter attendance.QueryFilter) ([]attendance.Attendance, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	rows := make([]*attendanceRow, 0)
	for _, row := range repo.db.attendances {
		if filter.CourseID != 0 && row.CourseID != filter.CourseID {
			continue
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Date.Equal(rows[j].Date) {
			return rows[i].seq > rows[j].seq
		}
		return rows[i].Date.After(rows[j].Date)
	})

	atts := make([]attendance.Attendance, 0, len(rows))
	for _, row := range rows {
		atts = append(atts, row.Attendance)
	}
	return atts, nil
}

// CreateDetails checks every unique key before inserting anything, so a batch is all or nothing.
func (repo *attendanceRepository) CreateDetails(_ context.Context, details ...attendance.Detail) ([]attendance.Detail, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	batchKeys := make(map[detailKey]struct{}, len(details))
	for _, d := range details {
		if _, ok := repo.db.attendances[d.AttendanceID]; !ok {
			return nil, core.ErrNotFound
		}
		if _, ok := repo.db.users[d.StudentID]; !ok {
			return nil, core.ErrNotFound
		}
		if !d.Status.Valid() {
			return nil, core.NewValidationError(nil, core.FieldError{Field: "status", Error: "invalid status"})
		}

		key := detailKey{attendanceID: d.AttendanceID, studentID: d.StudentID}
		if _, ok := repo.db.detailKeys[key]; ok {
			return nil, core.NewConstraintError(attendance.DetailUniqueConstraint, errDetailExists)
		}
		if _, ok := batchKeys[key]; ok {
			return nil, core.NewConstraintError(attendance.DetailUniqueConstraint, errDetailExists)
		}
		batchKeys[key] = struct{}{}
	}

	for _, d := range details {
		repo.db.insertDetail(d)
	}
	return details, nil
}

func (repo *attendanceRepository) GetDetail(_ context.Context, id string) (attendance.Detail, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if row, ok := repo.db.details[id]; ok {
		return row.Detail, nil
	}
	return attendance.Detail{}, core.ErrNotFound
}

func (repo *attendanceRepository) UpdateDetail(_ context.Context, d attendance.Detail) (attendance.Detail, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	row, ok := repo.db.details[d.ID]
	if !ok {
		return attendance.Detail{}, core.ErrNotFound
	}
	if !d.Status.Valid() {
		return attendance.Detail{}, core.NewValidationError(nil, core.FieldError{Field: "status", Error: "invalid status"})
	}

	if row.Status != d.Status {
		delete(repo.db.statusIdx[row.Status], row.ID)
		repo.db.indexStatus(d.Status, row.ID)
	}
	row.Status = d.Status
	row.Notes = d.Notes
	row.UpdatedAt = attendance.NextUpdatedAt(row.UpdatedAt, d.UpdatedAt)
	return row.Detail, nil
}

func (repo *attendanceRepository) QueryDetails(_ context.Context, filter attendance.DetailFilter) ([]attendance.Detail, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var candidates []*detailRow
	if filter.Status != "" {
		// use the status index
		ids := repo.db.statusIdx[filter.Status]
		candidates = make([]*detailRow, 0, len(ids))
		for id := range ids {
			candidates = append(candidates, repo.db.details[id])
		}
	} else {
		candidates = make([]*detailRow, 0, len(repo.db.details))
		for _, row := range repo.db.details {
			candidates = append(candidates, row)
		}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].seq < candidates[j].seq })

	details := make([]attendance.Detail, 0, len(candidates))
	for _, row := range candidates {
		if filter.AttendanceID != "" && row.AttendanceID != filter.AttendanceID {
			continue
		}
		if filter.StudentID != "" && row.StudentID != filter.StudentID {
			continue
		}
		details = append(details, row.Detail)
	}
	return details, nil
}

// insertDetail must be called with the write lock held.
func (db *DB) insertDetail(d attendance.Detail) {
	db.details[d.ID] = &detailRow{Detail: d, seq: db.nextSeq()}
	db.detailKeys[detailKey{attendanceID: d.AttendanceID, studentID: d.StudentID}] = d.ID
	db.indexStatus(d.Status, d.ID)
}

// deleteDetail must be called with the write lock held.
func (db *DB) deleteDetail(id string) {
	row, ok := db.details[id]
	if !ok {
		return
	}
	delete(db.details, id)
	delete(db.detailKeys, detailKey{attendanceID: row.AttendanceID, studentID: row.StudentID})
	delete(db.statusIdx[row.Status], id)
}

func (db *DB) indexStatus(status attendance.Status, id string) {
	ids, ok := db.statusIdx[status]
	if !ok {
		ids = make(map[string]struct{})
		db.statusIdx[status] = ids
	}
	ids[id] = struct{}{}
}
