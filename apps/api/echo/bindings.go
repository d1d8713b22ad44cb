package echoapi

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/spimentel1201/EduMF-sub001/core"
)

var orderingParam = "ordering"

// Envelope wraps every successful response body.
type Envelope struct {
	Data interface{} `json:"data"`
}

func respond(ctx echo.Context, code int, data interface{}) error {
	return ctx.JSON(code, Envelope{Data: data})
}

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return
	}

	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field == "" {
			continue
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// intParam parses the numeric path param name; malformed IDs are not found.
func intParam(ctx echo.Context, name string) (int, error) {
	id, err := strconv.Atoi(ctx.Param(name))
	if err != nil || id <= 0 {
		return 0, errHttpNotFound
	}
	return id, nil
}

// boolQueryParam returns nil when the query param name is absent or malformed.
func boolQueryParam(ctx echo.Context, name string) *bool {
	val, err := strconv.ParseBool(ctx.QueryParam(name))
	if err != nil {
		return nil
	}
	return &val
}
