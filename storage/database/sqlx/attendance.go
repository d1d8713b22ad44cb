package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/spimentel1201/EduMF-sub001/core"
	"github.com/spimentel1201/EduMF-sub001/core/attendance"
)

const (
	attendanceColumns = `id, course_id, date, topic, taken_by, created_at, updated_at`
	detailColumns     = `id, attendance_id, student_id, status, notes, created_at, updated_at`
)

type (
	attendanceRepository struct {
		db *sqlx.DB
	}

	attendanceRow struct {
		ID        string      `db:"id"`
		CourseID  int         `db:"course_id"`
		Date      time.Time   `db:"date"`
		Topic     string      `db:"topic"`
		TakenBy   null.String `db:"taken_by"`
		CreatedAt time.Time   `db:"created_at"`
		UpdatedAt time.Time   `db:"updated_at"`
	}

	detailRow struct {
		ID           string      `db:"id"`
		AttendanceID string      `db:"attendance_id"`
		StudentID    string      `db:"student_id"`
		Status       string      `db:"status"`
		Notes        null.String `db:"notes"`
		CreatedAt    time.Time   `db:"created_at"`
		UpdatedAt    time.Time   `db:"updated_at"`
	}
)

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(db *sqlx.DB) attendance.Repository {
	return &attendanceRepository{db: db}
}

func (r attendanceRow) toAttendance() attendance.Attendance {
	return attendance.Attendance{
		ID:        r.ID,
		CourseID:  r.CourseID,
		Date:      time.Date(r.Date.Year(), r.Date.Month(), r.Date.Day(), 0, 0, 0, 0, time.UTC),
		Topic:     r.Topic,
		TakenBy:   r.TakenBy.String,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

func toDetailRow(d attendance.Detail) detailRow {
	return detailRow{
		ID:           d.ID,
		AttendanceID: d.AttendanceID,
		StudentID:    d.StudentID,
		Status:       string(d.Status),
		Notes:        null.NewString(d.Notes, d.Notes != ""),
		CreatedAt:    d.CreatedAt.UTC(),
		UpdatedAt:    d.UpdatedAt.UTC(),
	}
}

func (r detailRow) toDetail() attendance.Detail {
	return attendance.Detail{
		ID:           r.ID,
		AttendanceID: r.AttendanceID,
		StudentID:    r.StudentID,
		Status:       attendance.Status(r.Status),
		Notes:        r.Notes.String,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
}

func (repo *attendanceRepository) CreateAttendance(ctx context.Context, att attendance.Attendance) (attendance.Attendance, error) {
	q := `INSERT INTO attendance (` + attendanceColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7)`
	takenBy := null.NewString(att.TakenBy, att.TakenBy != "")
	_, err := repo.db.ExecContext(ctx, q,
		att.ID, att.CourseID, att.Date.Format("2006-01-02"), att.Topic, takenBy, att.CreatedAt.UTC(), att.UpdatedAt.UTC())
	if err != nil {
		return attendance.Attendance{}, trapErr(err, "inserting attendance")
	}
	return att, nil
}

func (repo *attendanceRepository) GetAttendance(ctx context.Context, id string) (attendance.Attendance, error) {
	if !isUUID(id) {
		return attendance.Attendance{}, core.ErrNotFound
	}
	var row attendanceRow
	q := `SELECT ` + attendanceColumns + ` FROM attendance WHERE id = $1`
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		return attendance.Attendance{}, trapErr(err, "finding attendance")
	}
	return row.toAttendance(), nil
}

func (repo *attendanceRepository) QueryAttendances(ctx context.Context, filter attendance.QueryFilter) ([]attendance.Attendance, error) {
	var w where
	if filter.CourseID != 0 {
		w.add("course_id = ?", filter.CourseID)
	}

	q := `SELECT ` + attendanceColumns + ` FROM attendance` + w.String() + ` ORDER BY date DESC, created_at DESC`
	var rows []attendanceRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), w.args...); err != nil {
		return nil, errors.Wrap(err, "querying attendances")
	}

	atts := make([]attendance.Attendance, 0, len(rows))
	for _, r := range rows {
		atts = append(atts, r.toAttendance())
	}
	return atts, nil
}

// CreateDetails inserts every detail within one transaction; the unique key rolls the whole batch back.
func (repo *attendanceRepository) CreateDetails(ctx context.Context, details ...attendance.Detail) (_ []attendance.Detail, err error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "beginning transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	q := `INSERT INTO attendance_detail (` + detailColumns + `)
		VALUES (:id, :attendance_id, :student_id, :status, :notes, :created_at, :updated_at)`
	for _, d := range details {
		if _, err = tx.NamedExecContext(ctx, q, toDetailRow(d)); err != nil {
			return nil, trapErr(err, "inserting attendance detail")
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "committing transaction")
	}
	return details, nil
}

func (repo *attendanceRepository) GetDetail(ctx context.Context, id string) (attendance.Detail, error) {
	if !isUUID(id) {
		return attendance.Detail{}, core.ErrNotFound
	}
	var row detailRow
	q := `SELECT ` + detailColumns + ` FROM attendance_detail WHERE id = $1`
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		return attendance.Detail{}, trapErr(err, "finding attendance detail")
	}
	return row.toDetail(), nil
}

func (repo *attendanceRepository) UpdateDetail(ctx context.Context, d attendance.Detail) (attendance.Detail, error) {
	if !isUUID(d.ID) {
		return attendance.Detail{}, core.ErrNotFound
	}
	q := `UPDATE attendance_detail
		SET status = $1, notes = $2, updated_at = GREATEST($3, updated_at + INTERVAL '1 microsecond')
		WHERE id = $4
		RETURNING ` + detailColumns
	row := toDetailRow(d)

	var updated detailRow
	if err := repo.db.GetContext(ctx, &updated, q, row.Status, row.Notes, row.UpdatedAt, row.ID); err != nil {
		return attendance.Detail{}, trapErr(err, "updating attendance detail")
	}
	return updated.toDetail(), nil
}

// QueryDetails returns the matching details in insertion order. Filtering on status uses attendance_detail_status_idx.
func (repo *attendanceRepository) QueryDetails(ctx context.Context, filter attendance.DetailFilter) ([]attendance.Detail, error) {
	w := detailWhere(filter)
	if w.none {
		return []attendance.Detail{}, nil
	}

	q := `SELECT ` + detailColumns + ` FROM attendance_detail` + w.String() + ` ORDER BY created_at, id`
	var rows []detailRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), w.args...); err != nil {
		return nil, errors.Wrap(err, "querying attendance details")
	}

	details := make([]attendance.Detail, 0, len(rows))
	for _, r := range rows {
		details = append(details, r.toDetail())
	}
	return details, nil
}

func detailWhere(filter attendance.DetailFilter) where {
	var w where
	if filter.Status != "" {
		w.add("status = ?", string(filter.Status))
	}
	if filter.AttendanceID != "" {
		w.addUUID("attendance_id", filter.AttendanceID)
	}
	if filter.StudentID != "" {
		w.addUUID("student_id", filter.StudentID)
	}
	return w
}

