package model

import "fmt"

// ErrorKind classifies lookup failures on a built Application.
type ErrorKind int

const (
	// UnknownMethod means no method with the requested name exists.
	UnknownMethod ErrorKind = iota
	// UnknownLabware means no labware with the requested identifier exists.
	UnknownLabware
	// UnknownPosition means the requested deck position is not declared in the layout.
	UnknownPosition
)

func (k ErrorKind) String() string {
	switch k {
	case UnknownMethod:
		return "unknown method"
	case UnknownLabware:
		return "unknown labware"
	case UnknownPosition:
		return "unknown position"
	default:
		return "unknown error"
	}
}

// Error is returned by Application lookups given a key that does not exist.
// It is the only error class the model produces: a successfully built
// Application is internally consistent, so lookups can only fail on bad
// external keys.
type Error struct {
	Kind ErrorKind
	Key  string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %q", e.Kind, e.Key)
}
