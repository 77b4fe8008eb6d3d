package dataset

import "fmt"

// ValidationError reports caller input rejected before any request is sent.
type ValidationError struct {
	Op  string
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Op + ": " + e.Msg
}

func invalid(op, format string, args ...any) error {
	return &ValidationError{Op: op, Msg: fmt.Sprintf(format, args...)}
}
