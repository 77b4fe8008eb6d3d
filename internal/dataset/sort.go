package dataset

import (
	"regexp"
	"strings"
)

type Direction string

const (
	Ascending  Direction = "asc"
	Descending Direction = "desc"
)

var sortPattern = regexp.MustCompile(`^([a-z_]+)(?::(asc|ascending|desc|descending))?$`)

// Sort is a single sort key.
type Sort struct {
	Field     string
	Direction Direction
}

// ParseDirection accepts asc, ascending, desc and descending in any case.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "asc", "ascending":
		return Ascending, nil
	case "desc", "descending":
		return Descending, nil
	default:
		return "", invalid("sort", "invalid direction %q, expected asc or desc", s)
	}
}

// ParseSort parses "field" or "field:direction". The field must be lowercase
// letters and underscores; the direction defaults to ascending.
func ParseSort(s string) (Sort, error) {
	s = strings.TrimSpace(s)
	field, dir, hasDir := strings.Cut(s, ":")
	if hasDir {
		dir = strings.ToLower(dir)
		s = field + ":" + dir
	}
	m := sortPattern.FindStringSubmatch(s)
	if m == nil {
		return Sort{}, invalid("sort", "%q does not match field[:asc|desc]", s)
	}
	d, err := ParseDirection(m[2])
	if err != nil {
		return Sort{}, err
	}
	return Sort{Field: m[1], Direction: d}, nil
}

func (s Sort) String() string {
	return s.Field + ":" + string(s.Direction)
}
