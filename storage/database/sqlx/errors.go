package sqlxrepos

import (
	"database/sql"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/spimentel1201/EduMF-sub001/core"
)

// postgres error codes
const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
	checkViolation      = "23514"
)

// trapErr maps psql errors to core errors: no rows to core.ErrNotFound,
// unique violations to *core.ConstraintError.
func trapErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return core.ErrNotFound
	}
	if pqErr, ok := errors.Cause(err).(*pq.Error); ok {
		switch pqErr.Code {
		case uniqueViolation:
			return core.NewConstraintError(pqErr.Constraint, errors.New(pqErr.Message))
		case foreignKeyViolation:
			return core.ErrNotFound
		case checkViolation:
			return core.NewValidationError(errors.New(pqErr.Message))
		}
	}
	return errors.Wrap(err, msg)
}

// isUUID reports whether id can match a UUID column. Malformed IDs match nothing,
// so they are filtered out before the query instead of casting the indexed column.
func isUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// where collects AND-ed conditions using `?` bindvars; queries are rebound before use.
type where struct {
	conds []string
	args  []interface{}
	none  bool // a condition can never hold
}

func (w *where) add(cond string, args ...interface{}) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

// addUUID adds `col = ?` for a UUID column, or marks w as matching nothing if id is malformed.
func (w *where) addUUID(col, id string) {
	if !isUUID(id) {
		w.none = true
		return
	}
	w.add(col+" = ?", id)
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

func orderBy(ordering []core.DBOrdering, dflt string) string {
	if len(ordering) == 0 {
		return " ORDER BY " + dflt
	}
	orderList := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		orderList = append(orderList, ord.String())
	}
	return " ORDER BY " + strings.Join(orderList, ", ")
}
