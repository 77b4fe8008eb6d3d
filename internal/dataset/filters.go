package dataset

import (
	"fmt"
	"net/url"
	"reflect"
	"strings"
)

const (
	FilterItemNames = "item_names"
	FilterStatuses  = "statuses"
	FilterPath      = "path"
	FilterTypes     = "types"
	// FilterFilenames is an alias of FilterItemNames and replaces it when both are given.
	FilterFilenames = "filenames"
)

var allowedFilters = []string{FilterItemNames, FilterStatuses, FilterPath, FilterTypes}

// FilterValue is either a single scalar or a list of values.
type FilterValue struct {
	values []string
	list   bool
}

func Scalar(v string) FilterValue {
	return FilterValue{values: []string{v}}
}

func List(v ...string) FilterValue {
	return FilterValue{values: append([]string(nil), v...), list: true}
}

func (v FilterValue) IsList() bool { return v.list }

func (v FilterValue) Values() []string {
	return append([]string(nil), v.values...)
}

// String renders a scalar as-is and a list comma-joined.
func (v FilterValue) String() string {
	return strings.Join(v.values, ",")
}

// Filters are caller-supplied listing filters keyed by name.
type Filters map[string]FilterValue

// FiltersFromMap converts loosely typed values: slices and arrays become
// lists, everything else a scalar.
func FiltersFromMap(m map[string]any) Filters {
	out := make(Filters, len(m))
	for k, raw := range m {
		rv := reflect.ValueOf(raw)
		if raw != nil && (rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array) {
			vals := make([]string, rv.Len())
			for i := range vals {
				vals[i] = fmt.Sprint(rv.Index(i).Interface())
			}
			out[k] = List(vals...)
			continue
		}
		out[k] = Scalar(fmt.Sprint(raw))
	}
	return out
}

// Query is the normalized server-side form of filters and sort.
type Query struct {
	Filters map[string]FilterValue
	Sort    map[string]string
}

// Normalize keeps only the allowed filter keys, applies the filenames alias,
// flattens list values of path and types, and parses sort. Unknown keys are
// dropped. The input is not modified.
func Normalize(filters Filters, sort string) (Query, error) {
	q := Query{Filters: map[string]FilterValue{}}

	for _, key := range allowedFilters {
		if v, ok := filters[key]; ok {
			q.Filters[key] = v
		}
	}
	if v, ok := filters[FilterFilenames]; ok {
		q.Filters[FilterItemNames] = v
	}
	for _, key := range []string{FilterPath, FilterTypes} {
		if v, ok := q.Filters[key]; ok && v.IsList() {
			q.Filters[key] = Scalar(v.String())
		}
	}

	if strings.TrimSpace(sort) != "" {
		s, err := ParseSort(sort)
		if err != nil {
			return Query{}, err
		}
		q.Sort = map[string]string{s.Field: string(s.Direction)}
	}
	return q, nil
}

// Values encodes the query as request parameters. List filters repeat their
// key; sort becomes sort[field]=direction.
func (q Query) Values() url.Values {
	v := url.Values{}
	for key, f := range q.Filters {
		if f.IsList() {
			for _, item := range f.values {
				v.Add(key, item)
			}
			continue
		}
		v.Set(key, f.String())
	}
	for field, dir := range q.Sort {
		v.Set("sort["+field+"]", dir)
	}
	return v
}
