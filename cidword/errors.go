package cidword

import "errors"

// Kind is a stable category for programmatic error handling.
//
// Callers should branch on Kind (or compare with the sentinel errors through
// errors.Is) rather than matching error strings.
type Kind string

const (
	KindInputTooLong      Kind = "InputTooLong"
	KindNonASCII          Kind = "NonASCII"
	KindMalformedEncoding Kind = "MalformedEncoding"
	KindUndefinedCID      Kind = "UndefinedCID"
)

// Error is the package's structured error type.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Message == "" {
		return "cidword: " + string(e.Kind)
	}
	return "cidword: " + e.Message
}

// Is reports whether target is an *Error of the same Kind, so that
// errors.Is(err, ErrInputTooLong) holds for every InputTooLong failure.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Kind == t.Kind
}

var (
	ErrInputTooLong      = &Error{Kind: KindInputTooLong}
	ErrNonASCII          = &Error{Kind: KindNonASCII}
	ErrMalformedEncoding = &Error{Kind: KindMalformedEncoding}
	ErrUndefinedCID      = &Error{Kind: KindUndefinedCID}
)

func newError(kind Kind, msg string) error {
	return &Error{Kind: kind, Message: msg}
}

// IsKind reports whether err is (or wraps) an *Error with the given Kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}
