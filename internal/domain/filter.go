package domain

import (
	"net/url"
	"sort"
	"strconv"
	"time"
)

// Filter maps a field name to the exact value a record must hold.
// A nil or empty Filter matches every record.
type Filter map[string]string

// FilterFromQuery builds a Filter from URL query values, keeping the first
// value of a repeated key.
func FilterFromQuery(values url.Values) Filter {
	if len(values) == 0 {
		return nil
	}
	f := make(Filter, len(values))
	for key, vals := range values {
		if len(vals) == 0 {
			continue
		}
		f[key] = vals[0]
	}
	return f
}

// filterColumns lists the filterable fields and their table columns.
var filterColumns = map[string]string{
	"id":          "id",
	"name":        "name",
	"description": "description",
	"createdAt":   "created_at",
	"updatedAt":   "updated_at",
}

// Columns translates the filter into column → typed value pairs. Unknown
// fields, non-integer ids and timestamps not in RFC 3339 form are rejected.
func (f Filter) Columns() (map[string]any, error) {
	if len(f) == 0 {
		return nil, nil
	}

	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	cols := make(map[string]any, len(f))
	for _, key := range keys {
		col, ok := filterColumns[key]
		if !ok {
			return nil, &ValidationError{Field: key, Message: "is not a filterable field"}
		}
		value := f[key]
		switch key {
		case "id":
			id, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return nil, &ValidationError{Field: key, Message: "must be an integer"}
			}
			cols[col] = id
		case "createdAt", "updatedAt":
			ts, err := time.Parse(time.RFC3339Nano, value)
			if err != nil {
				return nil, &ValidationError{Field: key, Message: "must be an RFC 3339 timestamp"}
			}
			cols[col] = ts.UTC()
		default:
			cols[col] = value
		}
	}
	return cols, nil
}
