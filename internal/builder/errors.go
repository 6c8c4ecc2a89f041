package builder

import "fmt"

// ErrorKind classifies why a document could not be built into an Application.
type ErrorKind int

const (
	// MissingField means a required node or field is absent from the document.
	MissingField ErrorKind = iota
	// UnresolvedReference means a step named a deck position or method that
	// the document never declares.
	UnresolvedReference
	// CyclicMethodCall means the method call graph contains a cycle.
	CyclicMethodCall
	// UnsupportedVersion means the document's schema version is not one this
	// builder understands.
	UnsupportedVersion
	// MalformedStep means a step carried the wrong parameter shape for its kind.
	MalformedStep
	// MalformedLabware means a labware declaration carried impossible geometry
	// or capacity values.
	MalformedLabware
)

func (k ErrorKind) String() string {
	switch k {
	case MissingField:
		return "missing field"
	case UnresolvedReference:
		return "unresolved reference"
	case CyclicMethodCall:
		return "cyclic method call"
	case UnsupportedVersion:
		return "unsupported version"
	case MalformedStep:
		return "malformed step"
	case MalformedLabware:
		return "malformed labware"
	default:
		return "build error"
	}
}

// Error is the single error type Build returns. Building is all-or-nothing:
// any Error means no Application was produced.
type Error struct {
	Kind   ErrorKind
	Detail string
	Err    error // underlying cause, if any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *Error) Unwrap() error { return e.Err }

func buildErr(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}
