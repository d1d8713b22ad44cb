package core

// DBOrdering is one ORDER BY term requested by a client (eg. `?ordering=-name,code`).
type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

// MapOrderings translates the requested orderings into storage columns.
// Unknown fields are dropped so that raw client input never reaches a query.
func MapOrderings(orderings []DBOrdering, columns map[string]string) []DBOrdering {
	mapped := make([]DBOrdering, 0, len(orderings))
	for _, ord := range orderings {
		if col, ok := columns[ord.Field]; ok {
			mapped = append(mapped, DBOrdering{Field: col, Ascending: ord.Ascending})
		}
	}
	return mapped
}
